// Package command implements the operator command parser and runner (spec
// component C8): the text typed into the command FIFO, or following a "/"
// in a chat message, is tokenized and turned into zero or more packets
// aimed at the client and/or server.
package command

import (
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"

	"jx-relay/internal/gamecommand"
	"jx-relay/internal/items"
	"jx-relay/internal/protocol"
	"jx-relay/internal/routing"
	"jx-relay/internal/session"
)

// itemDropUnknown matches the fixed value the client itself writes into a
// synthesized drop's trailing unknown field.
const itemDropUnknown = 2

// restoreRadius is the circle radius, in world units, that synthesized
// restore drops are arranged around the player.
const restoreRadius = 12.0

// restoreShortcodes maps a comma/space-separated restore token to the tool
// family name items.Parse recognizes.
var restoreShortcodes = map[string]string{
	"mm": "monomate",
	"dm": "dimate",
	"tm": "trimate",
	"mf": "monofluid",
	"df": "difluid",
	"tf": "trifluid",
	"sa": "solatomizer",
	"ma": "moonatomizer",
	"sd": "scapedoll",
}

// restoreMaxStack is deliberately small: the interaction between restore
// and tool stack limits is only defined for this set of consumables, and
// any tool type outside it is skipped rather than guessed at.
var restoreMaxStack = map[string]uint8{
	"monomate":    10,
	"dimate":      10,
	"trimate":     10,
	"monofluid":   10,
	"difluid":     10,
	"trifluid":    10,
	"solatomizer": 10,
	"moonatomizer": 10,
	"scapedoll":   1,
}

// Run parses one operator command line (already known to come after a "/"
// chat prefix, or read verbatim from the command FIFO) and returns the
// packets it should emit. A parse failure is logged to the operator and
// yields no packets; the session continues.
func Run(line string, s *session.State) []routing.Targeted {
	line = strings.ToLower(strings.TrimSpace(line))
	if line == "" {
		return nil
	}
	tokens := strings.Fields(line)

	switch tokens[0] {
	case "raw":
		pkt, err := parseRaw(tokens)
		if err != nil {
			log.Printf("[Command] %v", err)
			return nil
		}
		return []routing.Targeted{pkt}

	case "restore":
		return runRestore(tokens[1:], s)

	case "itemcirclestart", "itemcircleend":
		log.Printf("[Command] %s: not implemented", tokens[0])
		return nil

	default:
		item, err := items.Parse(tokens)
		if err != nil {
			log.Printf("[Command] %v", err)
			return nil
		}
		return emitItemDrop(item, s, s.Position)
	}
}

// emitItemDrop synthesizes the client-bound and server-bound copies of an
// item drop that must accompany every operator-issued item: the client must
// see the item appear, and the server must believe the client dropped it.
func emitItemDrop(item items.Item, s *session.State, pos session.Position) []routing.Targeted {
	rows := item.Rows()
	id := s.NextItemDropID()
	drop := &gamecommand.ItemDrop{
		Floor:      s.Floor,
		X:          pos.X,
		Z:          pos.Z,
		Row1:       rows[0],
		Row2:       rows[1],
		Row3:       rows[2],
		ItemDropID: id,
		Row4:       rows[3],
		Unknown2:   itemDropUnknown,
	}
	body := gamecommand.Serialize(drop)
	msg := &protocol.GameCommandMessage{Flag: 0, Body: body}
	return []routing.Targeted{
		{Dir: routing.ClientBound, Msg: msg},
		{Dir: routing.ServerBound, Msg: msg},
	}
}

// parseRaw handles "raw client|server <cmd_hex> <flag_hex> <data_hex...>".
func parseRaw(tokens []string) (routing.Targeted, error) {
	if len(tokens) < 4 {
		return routing.Targeted{}, fmt.Errorf("raw: missing parameters")
	}
	var dir routing.Direction
	switch tokens[1] {
	case "client":
		dir = routing.ClientBound
	case "server":
		dir = routing.ServerBound
	default:
		return routing.Targeted{}, fmt.Errorf("raw: unknown target %q", tokens[1])
	}

	cmdByte, err := strconv.ParseUint(tokens[2], 16, 8)
	if err != nil {
		return routing.Targeted{}, fmt.Errorf("raw: malformed cmd byte %q", tokens[2])
	}
	flagByte, err := strconv.ParseUint(tokens[3], 16, 8)
	if err != nil {
		return routing.Targeted{}, fmt.Errorf("raw: malformed flag byte %q", tokens[3])
	}

	var body []byte
	for _, tok := range tokens[4:] {
		b, err := strconv.ParseUint(tok, 16, 8)
		if err != nil {
			return routing.Targeted{}, fmt.Errorf("raw: malformed hex byte %q", tok)
		}
		body = append(body, byte(b))
	}

	msg := protocol.Parse(byte(cmdByte), byte(flagByte), body)
	return routing.Targeted{Dir: dir, Msg: msg}, nil
}

// runRestore tops up each recognized tool shortcode to its conservative
// max stack, appends a fixed meseta top-up, and arranges the resulting
// drops in a circle of radius 12 around the player.
func runRestore(tokens []string, s *session.State) []routing.Targeted {
	var names []string
	for _, tok := range tokens {
		for _, part := range strings.Split(tok, ",") {
			if part == "" {
				continue
			}
			if name, ok := restoreShortcodes[part]; ok {
				names = append(names, name)
			} else {
				log.Printf("[Command] restore: unknown shortcode %q", part)
			}
		}
	}

	var drops []items.Item
	for _, name := range names {
		max, ok := restoreMaxStack[name]
		if !ok {
			continue
		}
		have := currentStack(s, name)
		if have >= max {
			continue
		}
		item, err := items.Parse([]string{"tool", name, strconv.Itoa(int(max - have))})
		if err != nil {
			continue
		}
		drops = append(drops, item)
	}

	meseta, _ := items.Parse([]string{"meseta", "999999"})
	drops = append(drops, meseta)

	total := float64(len(drops))
	var out []routing.Targeted
	for i, item := range drops {
		angle := 2 * math.Pi * (float64(i) / total)
		pos := session.Position{
			X: s.Position.X + float32(math.Sin(angle))*restoreRadius,
			Y: s.Position.Y,
			Z: s.Position.Z + float32(math.Cos(angle))*restoreRadius,
		}
		out = append(out, emitItemDrop(item, s, pos)...)
	}
	return out
}

// currentStack looks up a tracked tool's stack count by matching its
// encoded type code against the tracked inventory slots. The inventory
// tracker only retains recognized tool entries, so an untracked tool
// (never seen, or an unrecognized encoding) reports zero, meaning restore
// treats it as empty rather than erroring.
func currentStack(s *session.State, toolName string) uint8 {
	want, err := items.Parse([]string{"tool", toolName})
	if err != nil {
		return 0
	}
	wantRow1 := want.Rows()[0]
	for _, inv := range s.Inventory {
		if inv.Row1 == wantRow1 {
			return inv.Stack
		}
	}
	return 0
}
