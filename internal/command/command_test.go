package command

import (
	"testing"

	"jx-relay/internal/gamecommand"
	"jx-relay/internal/protocol"
	"jx-relay/internal/routing"
	"jx-relay/internal/session"
)

func TestWeaponCommandEmitsClientAndServerCopiesWithSameID(t *testing.T) {
	s := session.New()
	s.Floor = 3
	s.UpdatePosition(session.Position{X: 5, Y: 0, Z: 7})

	out := Run("weapon df +9 100n 100a 100h", s)
	if len(out) != 2 {
		t.Fatalf("expected 2 packets, got %d", len(out))
	}
	if out[0].Dir != routing.ClientBound || out[1].Dir != routing.ServerBound {
		t.Fatalf("expected client-bound then server-bound, got %v then %v", out[0].Dir, out[1].Dir)
	}

	gcA := out[0].Msg.(*protocol.GameCommandMessage)
	gcB := out[1].Msg.(*protocol.GameCommandMessage)
	dropA := gamecommand.Parse(gcA.Body, 4+len(gcA.Body)).(*gamecommand.ItemDrop)
	dropB := gamecommand.Parse(gcB.Body, 4+len(gcB.Body)).(*gamecommand.ItemDrop)

	if dropA.ItemDropID != dropB.ItemDropID {
		t.Fatalf("client and server copies must share an item_drop_id: %d vs %d", dropA.ItemDropID, dropB.ItemDropID)
	}
	if dropA.Row1 != 0x009D0009 {
		t.Fatalf("row1 = %#08x, want %#08x", dropA.Row1, 0x009D0009)
	}
	if dropA.Floor != 3 {
		t.Fatalf("floor = %d, want 3", dropA.Floor)
	}
}

func TestUnknownCommandLogsAndEmitsNothing(t *testing.T) {
	s := session.New()
	out := Run("not-a-real-command", s)
	if out != nil {
		t.Fatalf("expected no packets for an unknown family, got %d", len(out))
	}
}

func TestItemCircleCommandsRejectedAsNotImplemented(t *testing.T) {
	s := session.New()
	if out := Run("itemcirclestart", s); out != nil {
		t.Fatalf("expected no packets, got %d", len(out))
	}
	if out := Run("itemcircleend", s); out != nil {
		t.Fatalf("expected no packets, got %d", len(out))
	}
}

func TestRestoreTopsUpToMaxStackAndAppendsMeseta(t *testing.T) {
	s := session.New()
	s.SetInventory(nil) // nothing tracked, so every recognized tool is topped from zero

	out := Run("restore mm,dm", s)
	// mm and dm each synthesize a tool drop (2 packets each) plus the
	// trailing meseta top-up (2 packets) = 6 total.
	if len(out) != 6 {
		t.Fatalf("expected 6 packets (2 tools + meseta, x2 targets), got %d", len(out))
	}
	for _, pkt := range out {
		if _, ok := pkt.Msg.(*protocol.GameCommandMessage); !ok {
			t.Fatalf("expected GameCommandMessage, got %T", pkt.Msg)
		}
	}
}

func TestRestoreSkipsToolsAlreadyAtMaxStack(t *testing.T) {
	s := session.New()
	monomateRow1 := uint32(0x0000) << 8
	s.SetInventory([]session.InventorySlot{{Slot: 0, Row1: monomateRow1, Stack: 10}})

	out := Run("restore mm", s)
	// monomate is already at its max stack (10), so only the trailing
	// meseta top-up should be emitted.
	if len(out) != 2 {
		t.Fatalf("expected 2 packets (meseta only, x2 targets), got %d", len(out))
	}
}

func TestRawCommandBuildsTargetedRawFrame(t *testing.T) {
	s := session.New()
	out := Run("raw client 06 00 01 02", s)
	if len(out) != 1 {
		t.Fatalf("expected 1 packet, got %d", len(out))
	}
	if out[0].Dir != routing.ClientBound {
		t.Fatalf("expected client-bound, got %v", out[0].Dir)
	}
}

func TestRawCommandUnknownTargetFails(t *testing.T) {
	s := session.New()
	if out := Run("raw nowhere 06 00", s); out != nil {
		t.Fatalf("expected no packets for an unknown raw target, got %d", len(out))
	}
}
