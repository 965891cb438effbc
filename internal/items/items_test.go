package items

import "testing"

func TestWeaponEncodingMatchesGrindAndAttributes(t *testing.T) {
	item, err := Parse([]string{"weapon", "df", "+9", "100n", "100a", "100h"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rows := item.Rows()
	if rows[0] != 0x009D0009 {
		t.Fatalf("row1 = %#08x, want %#08x", rows[0], 0x009D0009)
	}
	if rows[1] != 0x00000164 {
		t.Fatalf("row2 = %#08x, want %#08x", rows[1], 0x00000164)
	}
	// attrs[1]=(ABeast,100)=0x0264, attrs[2]=(Hit,100)=0x0564 per the game's
	// own attribute-kind table (Native=1..Hit=5).
	if rows[2] != 0x02640564 {
		t.Fatalf("row3 = %#08x, want %#08x", rows[2], 0x02640564)
	}
	if rows[3] != 0 {
		t.Fatalf("row4 = %#08x, want 0", rows[3])
	}
}

func TestTechEncodingConcreteScenario(t *testing.T) {
	item, err := Parse([]string{"tech", "shifta", "20"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rows := item.Rows()
	if rows[0] != 0x03021300 {
		t.Fatalf("row1 = %#08x, want %#08x", rows[0], 0x03021300)
	}
	if rows[1] != 0x0D000000 {
		t.Fatalf("row2 = %#08x, want %#08x", rows[1], 0x0D000000)
	}
}

func TestTechLevelDefaultsToOne(t *testing.T) {
	item, err := Parse([]string{"tech", "shifta"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tech := item.(*Tech)
	if tech.Level != 0 {
		t.Fatalf("Level = %d, want 0 (stored as level-1 for input level 1)", tech.Level)
	}
}

func TestMagEncodingStatsAndPhotonBlasts(t *testing.T) {
	item, err := Parse([]string{"mag", "sato", "5/145/50/0", "leilla", "pilla", "twins"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mag := item.(*Mag)
	if mag.Def != 5 || mag.Pow != 145 || mag.Dex != 50 || mag.Mnd != 0 {
		t.Fatalf("unexpected stats: %+v", mag)
	}
	rows := mag.Rows()
	if rows[1] != 0xF401A438 {
		t.Fatalf("row2 = %#08x, want %#08x", rows[1], 0xF401A438)
	}
	if rows[3]&0xFF != 120 {
		t.Fatalf("sync byte = %#x, want 120", rows[3]&0xFF)
	}
	if (rows[3]>>8)&0xFF != 200 {
		t.Fatalf("iq byte = %#x, want 200", (rows[3]>>8)&0xFF)
	}
	// "twins" is not a recognized photon-blast name and is silently ignored,
	// leaving only the center and right slots populated.
	if mask := (rows[3] >> 16) & 0xFF; mask != 0x03 {
		t.Fatalf("pb mask = %#x, want 0x03", mask)
	}
}

func TestMesetaRowEncoding(t *testing.T) {
	item, err := Parse([]string{"meseta", "1000"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rows := item.Rows()
	if rows[0] != 0x04000000 {
		t.Fatalf("row1 = %#08x, want %#08x", rows[0], 0x04000000)
	}
	// row4 read big-endian from the wire must equal amount's LE byte order.
	if rows[3] != 0xE8030000 {
		t.Fatalf("row4 = %#08x, want %#08x", rows[3], 0xE8030000)
	}
}

func TestArmorAndShieldEncoding(t *testing.T) {
	armorItem, err := Parse([]string{"armor", "frame", "10d", "5e", "2s"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rows := armorItem.Rows()
	if rows[1] != (2<<16)|(10<<8) {
		t.Fatalf("armor row2 = %#08x", rows[1])
	}
	if rows[2] != 5<<24 {
		t.Fatalf("armor row3 = %#08x", rows[2])
	}

	shieldItem, err := Parse([]string{"shield", "brace", "10d", "5e"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rows = shieldItem.Rows()
	if rows[1] != 10<<8 {
		t.Fatalf("shield row2 = %#08x", rows[1])
	}
}

func TestUnitModifierEncoding(t *testing.T) {
	cases := map[string]uint16{"++": 3, "+": 1, "-": 0xFFFF, "--": 0xFFFE}
	for tok, want := range cases {
		item, err := Parse([]string{"unit", "hp", tok})
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", tok, err)
		}
		rows := item.Rows()
		if rows[1] != uint32(want) {
			t.Fatalf("modifier %q: row2 = %#x, want %#x", tok, rows[1], want)
		}
	}
}

func TestRawItemVerbatimHexBytes(t *testing.T) {
	item, err := Parse([]string{"rawitem", "01", "02", "03", "04"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rows := item.Rows()
	if rows[0] != 0x01020304 {
		t.Fatalf("row1 = %#08x, want %#08x", rows[0], 0x01020304)
	}
	if rows[1] != 0 || rows[2] != 0 || rows[3] != 0 {
		t.Fatalf("tail rows should be zero-padded, got %+v", rows)
	}
}

func TestUnknownFamilyFails(t *testing.T) {
	if _, err := Parse([]string{"spaceship"}); err == nil {
		t.Fatal("expected an error for an unknown family")
	}
}

func TestUnknownWeaponTypeFails(t *testing.T) {
	_, err := Parse([]string{"weapon", "nonexistent-sword"})
	if err == nil {
		t.Fatal("expected an error for an unknown weapon type")
	}
	var parseErr *ItemParseError
	if !asItemParseError(err, &parseErr) {
		t.Fatalf("expected *ItemParseError, got %T", err)
	}
	if parseErr.Value != "nonexistent-sword" {
		t.Fatalf("offending value = %q", parseErr.Value)
	}
}

func asItemParseError(err error, target **ItemParseError) bool {
	e, ok := err.(*ItemParseError)
	if ok {
		*target = e
	}
	return ok
}

func TestEncodingIsDeterministic(t *testing.T) {
	tokens := []string{"weapon", "saber", "+5", "50n"}
	a, err := Parse(tokens)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := Parse(tokens)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Rows() != b.Rows() {
		t.Fatal("encoding the same command twice produced different rows")
	}
}
