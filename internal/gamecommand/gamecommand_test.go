package gamecommand

import "testing"

func TestItemDropRoundTripPreservesBigEndianRows(t *testing.T) {
	want := &ItemDrop{
		base:       base{Client: 2, Unknown: 7},
		Floor:      3,
		X:          12.5,
		Z:          -4.25,
		Row1:       0x009D0009,
		Row2:       0x00000164,
		Row3:       0x02640364,
		ItemDropID: 99,
		Row4:       0,
		Unknown2:   0,
	}

	wire := Serialize(want)
	got := Parse(wire, 4+len(wire))

	drop, ok := got.(*ItemDrop)
	if !ok {
		t.Fatalf("expected *ItemDrop, got %T", got)
	}
	if *drop != *want {
		t.Fatalf("round trip mismatch: got %+v want %+v", drop, want)
	}
}

func TestPlayerMotionVariantsRoundTrip(t *testing.T) {
	cases := []Command{
		&PlayerArea{base: base{Client: 1}, Floor: 5},
		&PlayerStop{base: base{Client: 1}, Unk1: 1, Unk2: 2, X: 1.5, Y: 2.5, Z: 3.5},
		&PlayerWalk{base: base{Client: 1}, X: 1.5, Z: 2.5, Unk: 0.25},
		&PlayerRun{base: base{Client: 1}, X: 9.5, Z: -1.5},
	}

	for _, cmd := range cases {
		wire := Serialize(cmd)
		got := Parse(wire, 4+len(wire))
		if got.GCmd() != cmd.GCmd() {
			t.Fatalf("gcmd mismatch: got %#x want %#x", got.GCmd(), cmd.GCmd())
		}
		if _, isRaw := got.(*RawGameCommand); isRaw {
			t.Fatalf("gcmd %#x degraded to RawGameCommand unexpectedly", cmd.GCmd())
		}
	}
}

func TestSizeMismatchDegradesToRaw(t *testing.T) {
	wire := Serialize(&PlayerArea{Floor: 1})
	// Claim one more outer frame byte than the body actually occupies.
	got := Parse(wire, 4+len(wire)+1)
	if _, ok := got.(*RawGameCommand); !ok {
		t.Fatalf("expected degrade to RawGameCommand on size mismatch, got %T", got)
	}
}

func TestUnknownTagPreservesBytesVerbatim(t *testing.T) {
	body := []byte{0x7A, 2, 9, 9}
	got := Parse(body, 4+len(body))
	raw, ok := got.(*RawGameCommand)
	if !ok {
		t.Fatalf("expected *RawGameCommand, got %T", got)
	}
	if raw.GCmd() != 0x7A {
		t.Fatalf("tag not preserved: got %#x", raw.GCmd())
	}
	client, unknown := raw.Header()
	if client != 9 || unknown != 9 {
		t.Fatalf("header bytes not preserved: client=%d unknown=%d", client, unknown)
	}
}

func TestClientAndUnknownBytesSurviveRoundTrip(t *testing.T) {
	cmd := &PlayerArea{base: base{Client: 3, Unknown: 250}, Floor: 8}
	wire := Serialize(cmd)
	got := Parse(wire, 4+len(wire))
	client, unknown := got.Header()
	if client != 3 || unknown != 250 {
		t.Fatalf("header not preserved: client=%d unknown=%d", client, unknown)
	}
}
