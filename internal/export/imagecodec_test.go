package export

import (
	"bytes"
	"compress/zlib"
	"io"
	"strings"
	"testing"
)

func inflate(t *testing.T, data []byte) []byte {
	t.Helper()
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("zlib.NewReader: %v", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("zlib read: %v", err)
	}
	return out
}

// streamPayload extracts the raw bytes between "stream\n" and "\nendstream"
// for the most recently written object in w's buffer, for assertions that
// need to look inside a compressed payload.
func streamPayload(t *testing.T, w *objWriter) []byte {
	t.Helper()
	full := w.buf.Bytes()
	j := bytes.LastIndex(full, []byte("\nendstream"))
	if j < 0 {
		t.Fatalf("no stream found in writer buffer")
	}
	i := bytes.LastIndex(full[:j], []byte(">>\nstream\n"))
	if i < 0 {
		t.Fatalf("malformed stream in writer buffer")
	}
	start := i + len(">>\nstream\n")
	return full[start:j]
}

// TestRGBAImageProducesPrimaryAndSoftMask covers spec.md §8 scenario 4 and
// invariant P9: an alpha-carrying raster emits a primary RGB object plus a
// gray soft-mask object of matching dimensions, linked via /SMask.
func TestRGBAImageProducesPrimaryAndSoftMask(t *testing.T) {
	w := newObjWriter()
	n := 200 * 150
	pixels := make([]byte, n*4)
	for i := 0; i < n; i++ {
		pixels[i*4+0] = 10
		pixels[i*4+1] = 20
		pixels[i*4+2] = 30
		pixels[i*4+3] = 128
	}
	ref := writeImageXObject(w, Image{Raster: &Raster{
		Format: FormatOther, Kind: RGBA8, Width: 200, Height: 150, Pixels: pixels,
	}})

	full := w.buf.String()
	if !strings.Contains(full, "/Width 200 /Height 150 /ColorSpace /DeviceRGB") {
		t.Errorf("primary image dict missing expected RGB fields:\n%s", full)
	}
	if !strings.Contains(full, "/SMask") {
		t.Errorf("primary image missing /SMask link:\n%s", full)
	}
	if !strings.Contains(full, "/ColorSpace /DeviceGray") {
		t.Errorf("soft mask missing DeviceGray color space:\n%s", full)
	}
	if ref == 0 {
		t.Fatalf("expected a nonzero primary ref")
	}
}

// TestJPEGImageKeepsOriginalBytesUnderDCTDecode covers spec.md §4.2's JPEG
// rows: the source bytes are emitted verbatim, not re-encoded.
func TestJPEGImageKeepsOriginalBytesUnderDCTDecode(t *testing.T) {
	w := newObjWriter()
	jpegBytes := []byte("\xff\xd8\xff-pretend-jpeg-bytes")
	writeImageXObject(w, Image{Raster: &Raster{
		Format: FormatJPEG, Kind: RGB8, Width: 10, Height: 10, Pixels: jpegBytes,
	}})

	payload := streamPayload(t, w)
	if !bytes.Equal(payload, jpegBytes) {
		t.Errorf("JPEG payload = %q, want original bytes %q", payload, jpegBytes)
	}
	if !strings.Contains(w.buf.String(), "/Filter /DCTDecode") {
		t.Errorf("expected DCTDecode filter for JPEG image")
	}
}

// TestGrayPNGCompressesRawLuma covers spec.md §4.2's "PNG 8-bit gray ->
// DEFLATE of raw luma" row.
func TestGrayPNGCompressesRawLuma(t *testing.T) {
	w := newObjWriter()
	gray := []byte{0, 64, 128, 255}
	writeImageXObject(w, Image{Raster: &Raster{
		Format: FormatPNG, Kind: Gray8, Width: 2, Height: 2, Pixels: gray,
	}})

	payload := inflate(t, streamPayload(t, w))
	if !bytes.Equal(payload, gray) {
		t.Errorf("decompressed payload = %v, want %v", payload, gray)
	}
	if !strings.Contains(w.buf.String(), "/Filter /FlateDecode") {
		t.Errorf("expected FlateDecode filter for gray PNG image")
	}
}

// TestNilRasterFallsBackToPlaceholder covers spec.md §7's "encode failure
// -> zero-sized 1-bit gray placeholder" recovery path.
func TestNilRasterFallsBackToPlaceholder(t *testing.T) {
	w := newObjWriter()
	writeImageXObject(w, Image{})

	full := w.buf.String()
	if !strings.Contains(full, "/Width 0 /Height 0") {
		t.Errorf("expected a zero-sized placeholder, got:\n%s", full)
	}
	if !strings.Contains(full, "/BitsPerComponent 1") {
		t.Errorf("expected a 1-bit placeholder, got:\n%s", full)
	}
}
