// Package imagestore is a concrete export.ImageStore backed by in-memory
// encoded image bytes (PNG, JPEG, WebP) or raw SVG documents. spec.md §1
// treats image decoding as an external collaborator the core only sees
// through the export.Image shape; this package is the one real adapter a
// complete repository ships behind that interface, generalizing the
// teacher's PNG/JPEG-only internal/pdf/image.go with WebP decode as well.
package imagestore

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"sync"

	"golang.org/x/image/webp"

	"github.com/chinmay-sawant/typstpdf/internal/export"
	"github.com/chinmay-sawant/typstpdf/internal/frame"
)

// Store resolves frame.ImageID values to decoded images, caching the
// decode result so repeated placements of the same image don't re-decode.
type Store struct {
	mu     sync.RWMutex
	images map[frame.ImageID]export.Image
}

// New returns an empty Store.
func New() *Store {
	return &Store{images: make(map[frame.ImageID]export.Image)}
}

// RegisterRaster decodes data as PNG, JPEG, or WebP and makes it available
// under id. The sniffed encoding drives the ImageCodec's filter choice
// (spec.md §4.2): JPEG bytes are kept as-is (DCTDecode), everything else is
// decoded to packed pixels for the FlateDecode path.
func (s *Store) RegisterRaster(id frame.ImageID, data []byte) error {
	r, err := decodeRaster(data)
	if err != nil {
		return fmt.Errorf("imagestore: register %s: %w", id, err)
	}
	s.mu.Lock()
	s.images[id] = export.Image{Raster: r}
	s.mu.Unlock()
	return nil
}

// RegisterSVG makes a raw SVG document available under id, passed through
// to the core's SVG→PDF delegation (spec.md §4.2, convertSVG in
// internal/export/svgconvert.go).
func (s *Store) RegisterSVG(id frame.ImageID, data []byte) {
	s.mu.Lock()
	s.images[id] = export.Image{SVG: &export.SVGDoc{Data: data}}
	s.mu.Unlock()
}

// Get implements export.ImageStore. It panics if id was never registered,
// mirroring fontstore.Store.Get's contract that resource ids on a Frame
// always resolve for the duration of one export call.
func (s *Store) Get(id frame.ImageID) export.Image {
	s.mu.RLock()
	defer s.mu.RUnlock()
	img, ok := s.images[id]
	if !ok {
		panic(fmt.Sprintf("imagestore: unregistered image %q", id))
	}
	return img
}

// decodeRaster sniffs the encoding and produces the export.Raster shape
// the core's ImageCodec dispatches on.
func decodeRaster(data []byte) (*export.Raster, error) {
	switch {
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		return decodeJPEG(data)
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return decodePNG(data)
	case bytes.HasPrefix(data, []byte("RIFF")) && len(data) > 12 && bytes.Equal(data[8:12], []byte("WEBP")):
		return decodeWebP(data)
	default:
		return nil, fmt.Errorf("imagestore: unrecognized image encoding")
	}
}

// decodeJPEG keeps the original encoded bytes (so the core can emit them
// verbatim under DCTDecode, spec.md §4.2's JPEG rows) and only decodes far
// enough to learn dimensions and whether the JPEG is grayscale or color.
func decodeJPEG(data []byte) (*export.Raster, error) {
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	kind := export.RGB8
	if cfg.ColorModel == color.Gray16Model || cfg.ColorModel == color.GrayModel {
		kind = export.Gray8
	}
	return &export.Raster{
		Format: export.FormatJPEG,
		Kind:   kind,
		Width:  cfg.Width,
		Height: cfg.Height,
		Pixels: data,
	}, nil
}

// decodePNG fully decodes so the core can compress raw pixels under
// FlateDecode. An 8-bit grayscale PNG stays FormatPNG+Gray8 to hit
// spec.md §4.2's dedicated "PNG gray -> raw luma" row; any other PNG
// (RGB, RGBA, palette, 16-bit) packs down to the generic RGB/RGBA path.
func decodePNG(data []byte) (*export.Raster, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if gray, ok := img.(*image.Gray); ok {
		return &export.Raster{
			Format: export.FormatPNG,
			Kind:   export.Gray8,
			Width:  gray.Rect.Dx(),
			Height: gray.Rect.Dy(),
			Pixels: packGray(gray),
		}, nil
	}
	return packGeneric(img, export.FormatPNG), nil
}

func decodeWebP(data []byte) (*export.Raster, error) {
	img, err := webp.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return packGeneric(img, export.FormatOther), nil
}

// packGray strips image.Gray's row stride into tightly packed 8-bit luma.
func packGray(img *image.Gray) []byte {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]byte, 0, w*h)
	for y := 0; y < h; y++ {
		row := img.Pix[(y)*img.Stride : y*img.Stride+w]
		out = append(out, row...)
	}
	return out
}

// packGeneric converts any decoded image to packed RGBA8 (the superset the
// core's writeFlateRGBImage splits into RGB + soft mask when alpha is
// present, per spec.md §4.2's alpha-mask rule).
func packGeneric(img image.Image, format export.RasterFormat) *export.Raster {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]byte, 0, w*h*4)
	opaque := true
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := img.At(x, y).RGBA()
			out = append(out, byte(r>>8), byte(g>>8), byte(bl>>8), byte(a>>8))
			if a>>8 != 0xff {
				opaque = false
			}
		}
	}
	kind := export.RGBA8
	pixels := out
	if opaque {
		kind = export.RGB8
		pixels = make([]byte, 0, w*h*3)
		for i := 0; i < len(out); i += 4 {
			pixels = append(pixels, out[i], out[i+1], out[i+2])
		}
	}
	return &export.Raster{Format: format, Kind: kind, Width: w, Height: h, Pixels: pixels}
}
