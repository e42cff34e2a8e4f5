// Package export assembles a PDF byte stream from a sequence of laid-out
// frame.Frame values. It is the core described by the exporter
// specification: resource interning, per-page content-stream generation
// with graphics-state caching, font subsetting with CID/ToUnicode mapping,
// image encoding with alpha separation, and final object-graph assembly.
package export

import "github.com/chinmay-sawant/typstpdf/internal/frame"

// PixelKind names the channel layout of a decoded raster.
type PixelKind int

const (
	Gray8 PixelKind = iota
	GrayAlpha8
	RGB8
	RGBA8
)

// HasAlpha reports whether the pixel kind carries a per-pixel alpha
// channel that must be split into a soft mask.
func (k PixelKind) HasAlpha() bool {
	return k == GrayAlpha8 || k == RGBA8
}

// RasterFormat names the source encoding a raster arrived in, which drives
// the ImageCodec's filter choice (see imagecodec.go).
type RasterFormat int

const (
	FormatOther RasterFormat = iota
	FormatJPEG
	FormatPNG
)

// Raster is a decoded image: the source format tag plus packed pixel
// bytes, row-major, no padding, Kind channels per pixel.
type Raster struct {
	Format RasterFormat
	Kind   PixelKind
	Width  int
	Height int
	Pixels []byte // original encoded bytes when Format == FormatJPEG, else raw packed pixels
}

// SVGDoc is an opaque parsed SVG document handed to the svgconvert
// converter; the core never looks inside it.
type SVGDoc struct {
	Data []byte
}

// Image is either a decoded raster or an SVG document.
type Image struct {
	Raster *Raster
	SVG    *SVGDoc
}

// CmapSubtable is one Unicode cmap subtable's codepoint -> glyph mapping,
// in the face's own subtable order, used to build ToUnicode deterministically
// (spec: "deterministic tie-break by subtable order, then numeric codepoint
// order").
type CmapSubtable struct {
	CodepointToGlyph map[rune]uint16
}

// Face is the font-store view of one embeddable font: raw bytes plus the
// metrics and tables the subsetter and PageWriter need.
type Face interface {
	PostScriptName() string
	Raw() []byte
	UnitsPerEm() int
	Ascender() int
	Descender() int
	CapHeight() int
	GlobalBBox() (xMin, yMin, xMax, yMax int)
	NumGlyphs() int
	Monospaced() bool
	Italic() bool
	Weight() int
	HasCFFOutlines() bool
	GlyphAdvance(gid uint16) int // font design units
	Table(tag string) []byte
	CmapSubtables() []CmapSubtable
	GlyphIndex(r rune) (uint16, bool)
}

// FontStore resolves a FaceID to a Face. Read-only, shared for the
// duration of one export call.
type FontStore interface {
	Get(id frame.FaceID) Face
}

// ImageStore resolves an ImageID to an Image. Read-only, shared for the
// duration of one export call.
type ImageStore interface {
	Get(id frame.ImageID) Image
}

// Context bundles the read-only collaborators an export call needs.
type Context struct {
	Fonts  FontStore
	Images ImageStore
}
