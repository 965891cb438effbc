// Package filters implements the ordered packet transformation pipeline the
// event loop runs every decrypted packet through: connection-redirect,
// position tracking, chat-triggered commands, and inventory tracking, in
// that order.
package filters

import (
	"fmt"
	"log"
	"net"
	"strings"

	"jx-relay/internal/command"
	"jx-relay/internal/config"
	"jx-relay/internal/gamecommand"
	"jx-relay/internal/protocol"
	"jx-relay/internal/routing"
	"jx-relay/internal/session"
)

// inventoryBlockSize is the fixed stride of one item entry in a
// PlayerInventory packet.
const inventoryBlockSize = 28

// inventoryOffset is the fixed byte offset of the first item block,
// matching the upstream client's own inventory packet layout.
const inventoryOffset = 12

// Filter transforms one targeted packet into zero or more targeted
// packets, given the session state it may read or mutate.
type Filter func(pkt routing.Targeted, s *session.State, cfg config.Config) []routing.Targeted

// Default returns the required filters in their mandated order: redirect
// handling must run before anything else can observe a stale server
// connection, and chat commands must run after position tracking so a
// synthesized restore drop uses the freshest position.
func Default() []Filter {
	return []Filter{
		ConnectionRedirect,
		PositionTracker,
		ChatCommand,
		InventoryTracker,
	}
}

// Run feeds pkt through every filter in sequence, threading each filter's
// output packets into the next filter as independent inputs.
func Run(pipeline []Filter, pkt routing.Targeted, s *session.State, cfg config.Config) []routing.Targeted {
	batch := []routing.Targeted{pkt}
	for _, f := range pipeline {
		var next []routing.Targeted
		for _, p := range batch {
			next = append(next, f(p, s, cfg)...)
		}
		batch = next
	}
	return batch
}

// ConnectionRedirect reacts to a client-bound Redirect packet: it opens
// the new upstream connection, clears all four cipher slots, and rewrites
// the packet so the client reconnects to the proxy's own freshly bound
// listener instead of going directly upstream.
func ConnectionRedirect(pkt routing.Targeted, s *session.State, cfg config.Config) []routing.Targeted {
	if pkt.Dir != routing.ClientBound {
		return []routing.Targeted{pkt}
	}
	redirect, ok := pkt.Msg.(*protocol.RedirectMessage)
	if !ok {
		return []routing.Targeted{pkt}
	}

	upstream := fmt.Sprintf("%d.%d.%d.%d:%d", redirect.IP[0], redirect.IP[1], redirect.IP[2], redirect.IP[3], redirect.Port)
	conn, err := net.Dial("tcp", upstream)
	if err != nil {
		log.Printf("[Filter] redirect: could not dial %s: %v", upstream, err)
		return []routing.Targeted{pkt}
	}
	if s.ServerConn != nil {
		s.ServerConn.Close()
	}
	s.ServerConn = conn
	s.ClearCiphers()

	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		log.Printf("[Filter] redirect: could not open local listener: %v", err)
		return []routing.Targeted{pkt}
	}
	s.Listener = ln

	localIP := net.ParseIP(cfg.LocalListenIP).To4()
	if localIP != nil {
		copy(redirect.IP[:], localIP)
	}
	redirect.Port = uint16(ln.Addr().(*net.TCPAddr).Port)

	log.Printf("[Filter] redirect: now targeting %s, client re-pointed at %s", upstream, ln.Addr())
	return []routing.Targeted{pkt}
}

// PositionTracker updates position/floor from a server-bound motion
// command, passing the packet through byte-identical.
func PositionTracker(pkt routing.Targeted, s *session.State, _ config.Config) []routing.Targeted {
	if pkt.Dir == routing.ServerBound {
		if gc, ok := pkt.Msg.(*protocol.GameCommandMessage); ok {
			switch cmd := gamecommand.Parse(gc.Body, 4+len(gc.Body)).(type) {
			case *gamecommand.PlayerStop:
				s.UpdatePosition(session.Position{X: cmd.X, Y: cmd.Y, Z: cmd.Z})
			case *gamecommand.PlayerWalk:
				pos := s.Position
				pos.X, pos.Z = cmd.X, cmd.Z
				s.UpdatePosition(pos)
			case *gamecommand.PlayerRun:
				pos := s.Position
				pos.X, pos.Z = cmd.X, cmd.Z
				s.UpdatePosition(pos)
			case *gamecommand.PlayerArea:
				s.UpdateFloor(cmd.Floor)
			}
		}
	}
	return []routing.Targeted{pkt}
}

// ChatCommand replaces a server-bound "/"-prefixed chat message with
// whatever the command runner emits, and passes every other packet
// through unchanged.
func ChatCommand(pkt routing.Targeted, s *session.State, _ config.Config) []routing.Targeted {
	if pkt.Dir == routing.ServerBound {
		if chat, ok := pkt.Msg.(*protocol.ChatMessage); ok && strings.HasPrefix(chat.Text, "/") {
			return command.Run(chat.Text[1:], s)
		}
	}
	return []routing.Targeted{pkt}
}

// InventoryTracker decodes a server-bound PlayerInventory packet's
// 28-byte item blocks, retaining only the ones that decode as a
// recognized tool stack; anything else is skipped rather than guessed at.
// Passes the packet through byte-identical.
func InventoryTracker(pkt routing.Targeted, s *session.State, _ config.Config) []routing.Targeted {
	if pkt.Dir == routing.ServerBound {
		if opq, ok := pkt.Msg.(*protocol.OpaqueMessage); ok && opq.Tag == protocol.CmdPlayerInventory {
			s.SetInventory(decodeInventory(opq.Body))
		}
	}
	return []routing.Targeted{pkt}
}

func decodeInventory(body []byte) []session.InventorySlot {
	var slots []session.InventorySlot
	for i, off := 0, inventoryOffset; off+inventoryBlockSize <= len(body); i, off = i+1, off+inventoryBlockSize {
		block := body[off : off+inventoryBlockSize]
		row1 := beUint32(block[0:4])
		row2 := beUint32(block[4:8])
		// A tool's row2 is stack<<16: bytes [0, stack, 0, 0] big-endian.
		if row2&0xFF00FFFF != 0 {
			continue
		}
		stack := byte(row2 >> 16)
		if stack == 0 {
			continue
		}
		slots = append(slots, session.InventorySlot{Slot: i, Row1: row1, Stack: stack})
	}
	return slots
}

func beUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
