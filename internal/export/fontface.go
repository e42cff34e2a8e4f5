package export

import "github.com/chinmay-sawant/typstpdf/internal/export/font"

// fontFace adapts a parsed font.Font to the Face interface. Kept in this
// package (rather than package font) so font stays free of any dependency
// on the object-writer side of the exporter.
type fontFace struct {
	f *font.Font
}

// NewFontFace wraps a parsed TrueType/OpenType font for use as a FontStore
// entry.
func NewFontFace(f *font.Font) Face { return &fontFace{f: f} }

func (a *fontFace) PostScriptName() string { return a.f.PostScriptName }
func (a *fontFace) Raw() []byte            { return a.f.RawData }
func (a *fontFace) UnitsPerEm() int        { return int(a.f.UnitsPerEm) }
func (a *fontFace) Ascender() int          { return int(a.f.Ascender) }
func (a *fontFace) Descender() int         { return int(a.f.Descender) }
func (a *fontFace) CapHeight() int         { return int(a.f.CapHeight) }

func (a *fontFace) GlobalBBox() (xMin, yMin, xMax, yMax int) {
	b := a.f.BBox
	return int(b[0]), int(b[1]), int(b[2]), int(b[3])
}

func (a *fontFace) NumGlyphs() int       { return int(a.f.NumGlyphs) }
func (a *fontFace) Monospaced() bool     { return a.f.IsFixedPitch }
func (a *fontFace) Italic() bool         { return a.f.IsItalic }
func (a *fontFace) Weight() int          { return int(a.f.WeightClass) }
func (a *fontFace) HasCFFOutlines() bool { return a.f.IsCFF }

func (a *fontFace) GlyphAdvance(gid uint16) int { return int(a.f.GlyphWidth(gid)) }

func (a *fontFace) Table(tag string) []byte {
	entry, ok := a.f.Tables[tag]
	if !ok {
		return nil
	}
	data := a.f.RawData
	if entry.Offset+entry.Length > uint32(len(data)) {
		return nil
	}
	return data[entry.Offset : entry.Offset+entry.Length]
}

func (a *fontFace) GlyphIndex(r rune) (uint16, bool) {
	gid, ok := a.f.CharToGlyph[r]
	return gid, ok
}

// CmapSubtables reports the font's cmap as a single subtable. The
// underlying parser reads only one Unicode cmap subtable (format 12 if
// present, else format 4; see parseCmap) into one ordered (codepoint,
// glyph) list; the other Unicode subtables of the font are not read. The
// "subtable order, then numeric codepoint order" tie-break therefore
// reduces to numeric codepoint order within that one subtable.
func (a *fontFace) CmapSubtables() []CmapSubtable {
	m := make(map[rune]uint16, len(a.f.CmapOrder))
	for _, e := range a.f.CmapOrder {
		m[e.Codepoint] = e.Glyph
	}
	return []CmapSubtable{{CodepointToGlyph: m}}
}

// underlying exposes the wrapped font.Font for fontsubset.go, which needs
// the full parser output (table directory, ordered cmap, metrics) beyond
// what the Face interface alone carries.
func (a *fontFace) underlying() *font.Font { return a.f }
