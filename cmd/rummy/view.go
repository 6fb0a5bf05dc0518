package main

import (
	"fmt"
	"strings"

	"github.com/minaorangina/rummy"
	"github.com/minaorangina/rummy/deck"
	"github.com/minaorangina/rummy/game"
	"github.com/minaorangina/rummy/hand"
	"github.com/minaorangina/rummy/notify"
	"github.com/pterm/pterm"
)

func cardText(c deck.Card) string {
	if c.IsJoker() {
		return pterm.LightMagenta(c.String())
	}
	if c.Suit.Red() {
		return pterm.LightRed(c.String())
	}
	return c.String()
}

func cardsText(cards []deck.Card) string {
	parts := make([]string, 0, len(cards))
	for i, c := range cards {
		parts = append(parts, fmt.Sprintf("%d:%s", i+1, cardText(c)))
	}
	return strings.Join(parts, "  ")
}

func playersPanel(t game.Table, me string) pterm.Panel {
	box := pterm.DefaultBox.WithHorizontalPadding(2)
	lines := []string{}
	for _, p := range t.Players {
		name := p.Username
		if p.PlayerID.String() == me {
			name = pterm.LightCyan(name + " (you)")
		}
		if p.PlayerID == t.CurrentTurn {
			name = "> " + name
		}
		status := pterm.LightGreen("online")
		if !p.Connected {
			status = pterm.Gray("offline")
		}
		if p.Status == "dropped" {
			status = pterm.LightRed("dropped")
		}
		lines = append(lines, fmt.Sprintf("%s  %d cards  %s", name, p.HandCount, status))
	}
	if len(lines) == 0 {
		lines = append(lines, "waiting for players")
	}
	return pterm.Panel{Data: box.WithTitle("|TABLE " + t.TableID.String() + "|").WithTitleTopLeft().Sprint(strings.Join(lines, "\n"))}
}

func boardPanel(t game.Table) pterm.Panel {
	box := pterm.DefaultBox.WithHorizontalPadding(2)
	discard := pterm.Gray("empty")
	if top, ok := t.DiscardTop(); ok {
		discard = cardText(top)
	}
	body := fmt.Sprintf("Discard: %s\nDraw pile: %d showing\nStatus: %s", discard, len(t.DrawPileTop), t.Status)
	return pterm.Panel{Data: box.WithTitle("|BOARD|").WithTitleTopLeft().Sprint(body)}
}

func handPanel(p hand.Partition, myTurn bool) pterm.Panel {
	box := pterm.DefaultBox.WithHorizontalPadding(2)
	lines := []string{}
	for i, g := range p.Groups {
		meld := hand.Classify(g.Items)
		label := g.Label
		if label != meld.String() {
			label += " (" + meld.String() + ")"
		}
		lines = append(lines, fmt.Sprintf("g%d %s: %s", i+1, label, cardsText(g.Items)))
	}
	lines = append(lines, "u: "+cardsText(p.Ungrouped))

	title := "|YOUR HAND|"
	if myTurn {
		title = pterm.LightGreen("|YOUR TURN|")
	}
	return pterm.Panel{Data: box.WithTitle(title).WithTitleTopCenter().Sprint(strings.Join(lines, "\n"))}
}

func printNotifications(notes []notify.Notification) {
	for _, n := range notes {
		switch n.Type {
		case notify.Success:
			pterm.Success.Println(n.Message)
		case notify.Warning:
			pterm.Warning.Println(n.Message)
		case notify.Error:
			pterm.Error.Println(n.Message)
		default:
			pterm.Info.Println(n.Message)
		}
	}
}

// printState redraws the whole screen
func printState(c *rummy.Client, me string) {
	table := c.Table()
	pterm.Print("\033[H\033[2J")
	pterm.DefaultPanel.WithPanels([][]pterm.Panel{
		{playersPanel(table, me), boardPanel(table)},
		{handPanel(c.Hand(), c.IsMyTurn())},
	}).Render()
	printNotifications(c.Notifications())
	pterm.Print(pterm.Gray(fmt.Sprintf("[%s] ", c.ConnectionState())))
}

func printResult(r game.Result) {
	box := pterm.DefaultBox.WithHorizontalPadding(4).WithTopPadding(1).WithBottomPadding(1)
	lines := []string{}
	if r.IsYou {
		lines = append(lines, pterm.LightGreen("You won!"))
	} else {
		lines = append(lines, fmt.Sprintf("%s won", pterm.LightCyan(r.Winner.String())))
	}
	for _, l := range r.Losers {
		name := l.Username
		if name == "" {
			name = l.PlayerID.String()
		}
		if points, ok := l.Points.Get(); ok {
			lines = append(lines, fmt.Sprintf("%s: %d points", name, points))
		} else {
			lines = append(lines, name)
		}
	}
	pterm.Println(box.WithTitle(pterm.LightYellow("|RESULT|")).WithTitleTopCenter().Sprint(strings.Join(lines, "\n")))
}
