// Command rummy is a terminal client for a rummy table.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/minaorangina/rummy"
	"github.com/minaorangina/rummy/config"
	"github.com/minaorangina/rummy/game"
	"github.com/minaorangina/rummy/hand"
	"github.com/minaorangina/rummy/notify"
	"github.com/minaorangina/rummy/protocol"
	"github.com/minaorangina/rummy/store"
	"github.com/pterm/pterm"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	tableFlag := flag.String("table", "", "table id to join")
	envFlag := flag.String("env", ".env", "optional .env file")
	flag.Parse()

	if *tableFlag == "" {
		fmt.Fprintf(os.Stderr, "usage: %s -table <id>\n", os.Args[0])
		os.Exit(2)
	}

	cfg, err := config.Load(*envFlag)
	if err != nil {
		pterm.Fatal.Println(err)
	}
	log, err := cfg.Logger()
	if err != nil {
		pterm.Fatal.Println(err)
	}
	defer log.Sync()

	if err := play(cfg, log, protocol.ID(*tableFlag)); err != nil && !errors.Is(err, errQuit) {
		log.Error("exiting", zap.Error(err))
		os.Exit(1)
	}
}

func play(cfg config.Config, log *zap.Logger, tableID protocol.ID) error {
	sessions := store.NewFileSessionStore(cfg.SessionFile, cfg.Token)
	me := store.PlayerID(sessions).String()

	results := make(chan game.Result, 1)
	client, err := rummy.New(cfg, sessions,
		rummy.WithLogger(log),
		rummy.WithNavigator(game.NavigatorFunc(func(r game.Result) {
			select {
			case results <- r:
			default:
			}
		})),
	)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	spinner, _ := pterm.DefaultSpinner.Start("Joining table " + tableID.String())
	joinCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	err = client.JoinTable(joinCtx, tableID)
	cancel()
	if err != nil {
		spinner.Fail(err.Error())
		return err
	}
	spinner.Success("Joined table " + tableID.String())

	redraw := make(chan struct{}, 1)
	poke := func() {
		select {
		case redraw <- struct{}{}:
		default:
		}
	}
	client.OnTable(func(game.Table) { poke() })
	client.OnHand(func(hand.Partition) { poke() })
	client.OnNotifications(func([]notify.Notification) { poke() })

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		printState(client, me)
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-redraw:
				printState(client, me)
			case r := <-results:
				printResult(r)
			}
		}
	})

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case line, ok := <-lines:
				if !ok {
					return errQuit
				}
				if line == "help" {
					pterm.Println(helpText)
					continue
				}
				err := run(client, line)
				switch {
				case errors.Is(err, errQuit):
					return err
				case err != nil:
					pterm.Warning.Println(err)
					time.Sleep(time.Second)
				}
				poke()
			}
		}
	})

	return g.Wait()
}
