package export

import "github.com/chinmay-sawant/typstpdf/internal/frame"

// stubFace is a hand-rolled export.Face for tests that don't need a real
// parsed sfnt file, letting page/fontsubset tests exercise the PDF-object
// emission logic directly.
type stubFace struct {
	psName     string
	unitsPerEm int
	ascender   int
	descender  int
	capHeight  int
	bbox       [4]int
	numGlyphs  int
	mono       bool
	italic     bool
	weight     int
	cff        bool
	advances   map[uint16]int
	cmap       map[rune]uint16
}

func (f *stubFace) PostScriptName() string { return f.psName }
func (f *stubFace) Raw() []byte            { return []byte("stub-font-bytes") }
func (f *stubFace) UnitsPerEm() int        { return f.unitsPerEm }
func (f *stubFace) Ascender() int          { return f.ascender }
func (f *stubFace) Descender() int         { return f.descender }
func (f *stubFace) CapHeight() int         { return f.capHeight }
func (f *stubFace) GlobalBBox() (int, int, int, int) {
	return f.bbox[0], f.bbox[1], f.bbox[2], f.bbox[3]
}
func (f *stubFace) NumGlyphs() int       { return f.numGlyphs }
func (f *stubFace) Monospaced() bool     { return f.mono }
func (f *stubFace) Italic() bool         { return f.italic }
func (f *stubFace) Weight() int          { return f.weight }
func (f *stubFace) HasCFFOutlines() bool { return f.cff }
func (f *stubFace) GlyphAdvance(gid uint16) int {
	return f.advances[gid]
}
func (f *stubFace) Table(tag string) []byte { return nil }
func (f *stubFace) CmapSubtables() []CmapSubtable {
	return []CmapSubtable{{CodepointToGlyph: f.cmap}}
}
func (f *stubFace) GlyphIndex(r rune) (uint16, bool) {
	gid, ok := f.cmap[r]
	return gid, ok
}

// newStubFace returns a face with an empty advances map, so GlyphAdvance is
// 0 for every glyph a test does not set explicitly; glyphs with a zero
// XAdvance then net to zero extra adjustment in text positioning math.
func newStubFace(name string, unitsPerEm int) *stubFace {
	return &stubFace{
		psName:     name,
		unitsPerEm: unitsPerEm,
		ascender:   unitsPerEm * 8 / 10,
		descender:  -unitsPerEm * 2 / 10,
		capHeight:  unitsPerEm * 7 / 10,
		bbox:       [4]int{-unitsPerEm / 10, -unitsPerEm / 4, unitsPerEm, unitsPerEm},
		numGlyphs:  4,
		weight:     400,
		advances:   map[uint16]int{},
		cmap:       map[rune]uint16{},
	}
}

type stubFontStore struct {
	faces map[frame.FaceID]Face
}

func (s stubFontStore) Get(id frame.FaceID) Face { return s.faces[id] }

type stubImageStore struct {
	images map[frame.ImageID]Image
}

func (s stubImageStore) Get(id frame.ImageID) Image { return s.images[id] }
