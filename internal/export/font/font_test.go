package font

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// buildTestFont assembles a minimal but structurally valid TrueType font
// with three glyphs (.notdef, 'A', 'B') so Parse/Subset can be exercised
// without a real font file on disk.
func buildTestFont(t *testing.T) []byte {
	t.Helper()

	glyphs := [][]byte{
		{0x00, 0x01}, // .notdef: a stub 2-byte "outline"
		{0x00, 0x02, 0x00, 0x03}, // 'A'
		{0x00, 0x04, 0x00, 0x05}, // 'B'
	}
	var glyf bytes.Buffer
	offsets := []uint32{0}
	for _, g := range glyphs {
		glyf.Write(g)
		if glyf.Len()%2 != 0 {
			glyf.WriteByte(0)
		}
		offsets = append(offsets, uint32(glyf.Len()))
	}

	var loca bytes.Buffer
	for _, off := range offsets {
		binary.Write(&loca, binary.BigEndian, uint16(off/2))
	}

	head := make([]byte, 54)
	binary.BigEndian.PutUint16(head[18:], 1000) // unitsPerEm
	binary.BigEndian.PutUint16(head[36:], 0xFFF0)
	binary.BigEndian.PutUint16(head[38:], 0xFF38)
	binary.BigEndian.PutUint16(head[40:], 0x02EE)
	binary.BigEndian.PutUint16(head[42:], 0x02BC)
	head[50], head[51] = 0, 0 // short loca format

	hhea := make([]byte, 36)
	binary.BigEndian.PutUint16(hhea[34:], 3) // numberOfHMetrics

	maxp := make([]byte, 6)
	binary.BigEndian.PutUint16(maxp[4:], 3) // numGlyphs

	var hmtx bytes.Buffer
	for _, w := range []uint16{250, 500, 520} {
		binary.Write(&hmtx, binary.BigEndian, w)
		binary.Write(&hmtx, binary.BigEndian, int16(0))
	}

	var cmapSub bytes.Buffer
	binary.Write(&cmapSub, binary.BigEndian, uint16(4))  // format
	binary.Write(&cmapSub, binary.BigEndian, uint16(24)) // length (placeholder, fixed below)
	binary.Write(&cmapSub, binary.BigEndian, uint16(0))  // language
	binary.Write(&cmapSub, binary.BigEndian, uint16(4))  // segCountX2 (2 segments)
	binary.Write(&cmapSub, binary.BigEndian, uint16(4))
	binary.Write(&cmapSub, binary.BigEndian, uint16(1))
	binary.Write(&cmapSub, binary.BigEndian, uint16(0))
	// endCode: 'A'(65), 0xFFFF
	binary.Write(&cmapSub, binary.BigEndian, uint16(65))
	binary.Write(&cmapSub, binary.BigEndian, uint16(0xFFFF))
	binary.Write(&cmapSub, binary.BigEndian, uint16(0)) // reservedPad
	// startCode: 65, 0xFFFF
	binary.Write(&cmapSub, binary.BigEndian, uint16(65))
	binary.Write(&cmapSub, binary.BigEndian, uint16(0xFFFF))
	// idDelta: glyph 1 for code 65 -> delta = 1-65 = -64; terminator delta=1
	binary.Write(&cmapSub, binary.BigEndian, int16(1-65))
	binary.Write(&cmapSub, binary.BigEndian, int16(1))
	// idRangeOffset
	binary.Write(&cmapSub, binary.BigEndian, uint16(0))
	binary.Write(&cmapSub, binary.BigEndian, uint16(0))
	subBytes := cmapSub.Bytes()
	binary.BigEndian.PutUint16(subBytes[2:], uint16(len(subBytes)))

	var cmap bytes.Buffer
	binary.Write(&cmap, binary.BigEndian, uint16(0)) // version
	binary.Write(&cmap, binary.BigEndian, uint16(1)) // numTables
	binary.Write(&cmap, binary.BigEndian, uint16(3)) // platformID
	binary.Write(&cmap, binary.BigEndian, uint16(1)) // encodingID
	binary.Write(&cmap, binary.BigEndian, uint32(12))
	cmap.Write(subBytes)

	tables := map[string][]byte{
		"head": head,
		"hhea": hhea,
		"maxp": maxp,
		"hmtx": hmtx.Bytes(),
		"cmap": cmap.Bytes(),
		"glyf": glyf.Bytes(),
		"loca": loca.Bytes(),
	}

	data, err := assembleSFNT(tables)
	if err != nil {
		t.Fatalf("assembleSFNT: %v", err)
	}
	return data
}

func TestParseReadsMetricsAndCmap(t *testing.T) {
	f, err := Parse(buildTestFont(t))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if f.NumGlyphs != 3 {
		t.Fatalf("NumGlyphs = %d, want 3", f.NumGlyphs)
	}
	if f.UnitsPerEm != 1000 {
		t.Fatalf("UnitsPerEm = %d, want 1000", f.UnitsPerEm)
	}
	gid, ok := f.CharToGlyph['A']
	if !ok || gid != 1 {
		t.Fatalf("CharToGlyph['A'] = (%d, %v), want (1, true)", gid, ok)
	}
	if w := f.GlyphWidth(1); w != 500 {
		t.Fatalf("GlyphWidth(1) = %d, want 500", w)
	}
}

func TestParseRejectsTruncatedData(t *testing.T) {
	if _, err := Parse([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for truncated font data")
	}
}

func TestParseRejectsUnknownVersion(t *testing.T) {
	data := make([]byte, 12)
	binary.BigEndian.PutUint32(data, 0xDEADBEEF)
	if _, err := Parse(data); err == nil {
		t.Fatal("expected error for unrecognized sfntVersion")
	}
}

func TestSubsetKeepsGlyphIDsStable(t *testing.T) {
	f, err := Parse(buildTestFont(t))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	out, err := Subset(f, map[uint16]bool{1: true})
	if err != nil {
		t.Fatalf("Subset: %v", err)
	}

	subset, err := Parse(out)
	if err != nil {
		t.Fatalf("Parse(subset): %v", err)
	}
	if subset.NumGlyphs != f.NumGlyphs {
		t.Fatalf("subset NumGlyphs = %d, want %d (ids must stay stable)", subset.NumGlyphs, f.NumGlyphs)
	}
	if gid, ok := subset.CharToGlyph['A']; !ok || gid != 1 {
		t.Fatalf("subset CharToGlyph['A'] = (%d, %v), want (1, true)", gid, ok)
	}
}

func TestSubsetPassesThroughCFFFontsUnmodified(t *testing.T) {
	f := &Font{
		RawData: []byte("pretend-cff-bytes"),
		IsCFF:   true,
		Tables:  map[string]TableEntry{"CFF ": {Tag: "CFF "}},
	}
	out, err := Subset(f, map[uint16]bool{1: true})
	if err != nil {
		t.Fatalf("Subset: %v", err)
	}
	if !bytes.Equal(out, f.RawData) {
		t.Fatal("CFF font bytes were modified, expected pass-through")
	}
}
