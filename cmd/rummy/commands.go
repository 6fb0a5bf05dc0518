package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/minaorangina/rummy"
	"github.com/minaorangina/rummy/hand"
	"github.com/minaorangina/rummy/protocol"
)

var (
	errQuit       = errors.New("quit")
	errNotAllowed = errors.New("not allowed right now")
	errUsage      = errors.New("bad arguments")
)

const helpText = `draw [pile|discard]        take a card
discard <card>             discard a card, e.g. 3 or g2:1
group <i,j,k> [label]      group ungrouped cards
ungroup <group>            break up a group, e.g. g2
move <card> <zone>         move a card to u or g<n>
reorder <zone> <from> <to> reorder within a zone
declare                    declare a win
drop                       drop out of the game
dismiss                    clear notifications
quit`

// Cards and groups are numbered from 1 on screen. A card is either an
// ungrouped position ("3") or a group and position ("g2:1").

func parseZone(p hand.Partition, s string) (string, error) {
	if s == "u" || s == "" {
		return hand.Ungrouped, nil
	}
	if !strings.HasPrefix(s, "g") {
		return "", fmt.Errorf("%w: zone %q", errUsage, s)
	}
	n, err := strconv.Atoi(s[1:])
	if err != nil || n < 1 || n > len(p.Groups) {
		return "", fmt.Errorf("%w: no group %q", errUsage, s)
	}
	return p.Groups[n-1].ID, nil
}

func parseLocation(p hand.Partition, s string) (hand.Location, error) {
	zone, pos := "u", s
	if i := strings.IndexByte(s, ':'); i >= 0 {
		zone, pos = s[:i], s[i+1:]
	}
	z, err := parseZone(p, zone)
	if err != nil {
		return hand.Location{}, err
	}
	n, err := strconv.Atoi(pos)
	if err != nil || n < 1 {
		return hand.Location{}, fmt.Errorf("%w: card %q", errUsage, s)
	}
	return hand.Location{Zone: z, Index: n - 1}, nil
}

func parseIndices(s string) ([]int, error) {
	out := []int{}
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 1 {
			return nil, fmt.Errorf("%w: position %q", errUsage, part)
		}
		out = append(out, n-1)
	}
	return out, nil
}

func allowed(ok bool) error {
	if !ok {
		return errNotAllowed
	}
	return nil
}

// run applies one input line to c
func run(c *rummy.Client, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := fields[0], fields[1:]
	p := c.Hand()

	switch cmd {
	case "draw":
		src := ""
		if len(args) > 0 {
			src = args[0]
		}
		source, ok := protocol.ParseDrawSource(src)
		if !ok {
			return fmt.Errorf("%w: source %q", errUsage, src)
		}
		return allowed(c.Draw(source))

	case "discard":
		if len(args) != 1 {
			return errUsage
		}
		loc, err := parseLocation(p, args[0])
		if err != nil {
			return err
		}
		return allowed(c.Discard(loc))

	case "group":
		if len(args) < 1 {
			return errUsage
		}
		indices, err := parseIndices(args[0])
		if err != nil {
			return err
		}
		_, err = c.GroupSelected(indices, strings.Join(args[1:], " "))
		return err

	case "ungroup":
		if len(args) != 1 {
			return errUsage
		}
		zone, err := parseZone(p, args[0])
		if err != nil || zone == hand.Ungrouped {
			return errUsage
		}
		return allowed(c.Ungroup(zone))

	case "move":
		if len(args) != 2 {
			return errUsage
		}
		loc, err := parseLocation(p, args[0])
		if err != nil {
			return err
		}
		zone, err := parseZone(p, args[1])
		if err != nil {
			return err
		}
		return allowed(c.MoveCard(loc, zone))

	case "reorder":
		if len(args) != 3 {
			return errUsage
		}
		zone, err := parseZone(p, args[0])
		if err != nil {
			return err
		}
		from, err1 := strconv.Atoi(args[1])
		to, err2 := strconv.Atoi(args[2])
		if err1 != nil || err2 != nil {
			return errUsage
		}
		return allowed(c.Reorder(zone, from-1, to-1))

	case "declare":
		return allowed(c.Declare())

	case "drop":
		return allowed(c.Drop())

	case "dismiss":
		for _, n := range c.Notifications() {
			c.Dismiss(n.ID)
		}
		return nil

	case "quit", "exit":
		return errQuit
	}
	return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
}
