// Command rummy-server runs a local table server for development. Any
// unknown bearer token is accepted as a new guest account.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/minaorangina/rummy/config"
	"github.com/minaorangina/rummy/server"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	envFlag := flag.String("env", ".env", "optional .env file")
	turnFlag := flag.Duration("turn-timeout", 0, "skip players who take longer than this")
	minFlag := flag.Int("min-players", server.DefaultMinPlayers, "players needed to start a game")
	flag.Parse()

	cfg, err := config.Load(*envFlag)
	if err != nil {
		panic(err)
	}
	log, err := cfg.Logger()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	accounts := server.NewInMemoryAccountStore()
	accounts.Guests = true

	s := server.NewServer(server.Opts{
		Accounts: accounts,
		Table: server.TableOpts{
			MinPlayers:  *minFlag,
			TurnTimeout: *turnFlag,
		},
		Logger: log,
	})
	s.Addr = cfg.DevAddr

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", s.Addr))
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}
