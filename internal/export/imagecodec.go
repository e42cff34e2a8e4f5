package export

import "fmt"

// writeImageXObject turns one decoded Image into one or two indirect
// objects (primary + optional soft mask), following spec.md §4.2's encoding
// decision table, and returns the primary object's reference. SVG
// documents are delegated to convertSVG (svgconvert.go), which is handed
// the writer's own allocator and may consume more than one reference.
func writeImageXObject(w *objWriter, img Image) int {
	if img.SVG != nil {
		return convertSVG(w, img.SVG)
	}
	r := img.Raster
	if r == nil {
		return writePlaceholderImage(w)
	}

	switch {
	case r.Format == FormatJPEG:
		return writeJPEGImage(w, r)
	case r.Format == FormatPNG && r.Kind == Gray8:
		return writeFlateGrayImage(w, r.Pixels, r.Width, r.Height, 0)
	default:
		return writeFlateRGBImage(w, r)
	}
}

func writeJPEGImage(w *objWriter, r *Raster) int {
	colorSpace := "DeviceRGB"
	if r.Kind == Gray8 {
		colorSpace = "DeviceGray"
	}
	ref := w.alloc()
	dict := fmt.Sprintf(
		"/Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /%s /BitsPerComponent 8 /Filter /DCTDecode",
		r.Width, r.Height, colorSpace)
	w.stream(ref, dict, r.Pixels)
	return ref
}

// writeFlateGrayImage emits a single-channel DeviceGray image; smaskRef, if
// nonzero, is linked as this image's soft mask.
func writeFlateGrayImage(w *objWriter, gray []byte, width, height int, smaskRef int) int {
	ref := w.alloc()
	dict := fmt.Sprintf(
		"/Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceGray /BitsPerComponent 8 /Filter /FlateDecode",
		width, height)
	if smaskRef != 0 {
		dict += fmt.Sprintf(" /SMask %d 0 R", smaskRef)
	}
	w.stream(ref, dict, deflate(gray))
	return ref
}

// writeFlateRGBImage packs any non-JPEG raster down to RGB8 (dropping
// alpha into a parallel gray soft mask when present) and DEFLATE-encodes
// it, per the "(any other)" row of the encoding table.
func writeFlateRGBImage(w *objWriter, r *Raster) int {
	n := r.Width * r.Height
	rgb := make([]byte, 0, n*3)
	var alpha []byte
	if r.Kind.HasAlpha() {
		alpha = make([]byte, 0, n)
	}

	switch r.Kind {
	case RGBA8:
		for i := 0; i < n; i++ {
			base := i * 4
			rgb = append(rgb, r.Pixels[base], r.Pixels[base+1], r.Pixels[base+2])
			alpha = append(alpha, r.Pixels[base+3])
		}
	case GrayAlpha8:
		for i := 0; i < n; i++ {
			base := i * 2
			g := r.Pixels[base]
			rgb = append(rgb, g, g, g)
			alpha = append(alpha, r.Pixels[base+1])
		}
	case RGB8:
		rgb = append(rgb, r.Pixels[:n*3]...)
	case Gray8:
		for i := 0; i < n; i++ {
			g := r.Pixels[i]
			rgb = append(rgb, g, g, g)
		}
	}

	var smaskRef int
	if alpha != nil {
		smaskRef = writeFlateGrayImage(w, alpha, r.Width, r.Height, 0)
	}

	ref := w.alloc()
	dict := fmt.Sprintf(
		"/Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceRGB /BitsPerComponent 8 /Filter /FlateDecode",
		r.Width, r.Height)
	if smaskRef != 0 {
		dict += fmt.Sprintf(" /SMask %d 0 R", smaskRef)
	}
	w.stream(ref, dict, deflate(rgb))
	return ref
}

// writePlaceholderImage emits the zero-sized 1-bit gray fallback spec.md §7
// mandates when an image can't be encoded (here: a nil Raster — the store
// contract is violated, which this package treats the same as an encode
// failure rather than panicking, since §6 promises export never fails).
func writePlaceholderImage(w *objWriter) int {
	ref := w.alloc()
	dict := "/Type /XObject /Subtype /Image /Width 0 /Height 0 /ColorSpace /DeviceGray /BitsPerComponent 1 /Filter /FlateDecode"
	w.stream(ref, dict, deflate(nil))
	return ref
}
