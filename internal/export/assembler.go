package export

import (
	"fmt"
	"strings"

	"github.com/chinmay-sawant/typstpdf/internal/frame"
)

// productName is the PDF Creator string, the one place this package names
// itself inside the output bytes.
const productName = "typstpdf"

// Export walks every frame, then assembles the complete PDF byte stream,
// per spec.md §4.5's seven-phase DocumentAssembler. It never returns an
// error: recoverable failures are absorbed locally (placeholder images,
// unsubsetted font fallback), matching spec.md §6's "never fails" contract.
func Export(ctx Context, frames []frame.Frame) []byte {
	b := newBuilder(ctx.Fonts)

	// Phase 1: build pages.
	pages := make([]Page, len(frames))
	for i, fr := range frames {
		pages[i] = writePage(b, fr)
	}

	w := newObjWriter()

	// Phase 2: write fonts.
	faceRefs := make([]int, b.faces.Len())
	for _, id := range b.faces.Iter() {
		idx := b.faces.Map(id)
		face := ctx.Fonts.Get(id)
		faceRefs[idx] = writeFontFace(w, face, b.glyphSets[id])
	}

	// Phase 3: write images.
	imageRefs := make([]int, b.images.Len())
	for _, id := range b.images.Iter() {
		idx := b.images.Map(id)
		imageRefs[idx] = writeImageXObject(w, ctx.Images.Get(id))
	}

	// Phase 4: write structure.
	pageTreeRef := w.alloc()
	pageRefs := make([]int, len(pages))
	contentRefs := make([]int, len(pages))
	pageHeights := make([]float64, len(pages))
	for i, p := range pages {
		pageRefs[i] = w.alloc()
		contentRefs[i] = w.alloc()
		pageHeights[i] = p.Size.H
	}

	// Phase 5: emit page objects + content streams. /Resources is left to
	// inherit from the page tree node (phase 6), per PDF's inheritable
	// page attributes, since spec.md §4.5 step 6 places the resource
	// dictionary on the page tree, not on individual pages.
	for i, p := range pages {
		annots := buildAnnots(p.Links, pageRefs, pageHeights)
		dict := fmt.Sprintf(
			"<< /Type /Page /Parent %d 0 R /MediaBox %s /Contents %d 0 R",
			pageTreeRef, mediaBoxRect(p.Size.W, p.Size.H), contentRefs[i])
		if annots != "" {
			dict += " /Annots [" + annots + "]"
		}
		dict += " >>"
		w.object(pageRefs[i], dict)
		w.stream(contentRefs[i], "/Filter /FlateDecode", deflate(p.Content))
	}

	// Phase 6: emit page tree.
	kids := make([]string, len(pageRefs))
	for i, ref := range pageRefs {
		kids[i] = fmt.Sprintf("%d 0 R", ref)
	}
	fontDict := make([]string, len(faceRefs))
	for i, ref := range faceRefs {
		fontDict[i] = fmt.Sprintf("/F%d %d 0 R", i, ref)
	}
	xobjDict := make([]string, len(imageRefs))
	for i, ref := range imageRefs {
		xobjDict[i] = fmt.Sprintf("/Im%d %d 0 R", i, ref)
	}
	resources := fmt.Sprintf(
		"<< /ColorSpace << /sRGB [/CalRGB << /WhitePoint [0.9505 1.0 1.089] >>] "+
			"/sRGBGray [/CalGray << /WhitePoint [0.9505 1.0 1.089] >>] >> "+
			"/Font << %s >> /XObject << %s >> >>",
		strings.Join(fontDict, " "), strings.Join(xobjDict, " "))
	w.object(pageTreeRef, fmt.Sprintf(
		"<< /Type /Pages /Count %d /Kids [%s] /Resources %s >>",
		len(pageRefs), strings.Join(kids, " "), resources))

	// Phase 7: emit catalog + info.
	totals := make(map[string]int)
	for _, p := range pages {
		for lang, n := range p.Languages {
			totals[lang] += n
		}
	}
	docLang := dominantLanguage(totals)
	direction := "L2R"
	if isRTL(docLang) {
		direction = "R2L"
	}

	catalogRef := w.alloc()
	infoRef := w.alloc()
	catalogBody := fmt.Sprintf(
		"<< /Type /Catalog /Pages %d 0 R /ViewerPreferences << /Direction /%s >>",
		pageTreeRef, direction)
	if docLang != "" {
		catalogBody += fmt.Sprintf(" /Lang (%s)", escapeString(docLang))
	}
	catalogBody += " >>"
	w.object(catalogRef, catalogBody)
	w.object(infoRef, fmt.Sprintf("<< /Creator (%s) >>", escapeString(productName)))

	return w.finish(catalogRef, infoRef)
}

// buildAnnots resolves each page's unresolved links into PDF link
// annotation dictionaries, per spec.md §4.5 step 5.
func buildAnnots(links []pageLink, pageRefs []int, pageHeights []float64) string {
	parts := make([]string, 0, len(links))
	for _, l := range links {
		rect := linkRect(l.X1, l.Y1, l.X2, l.Y2)
		var action string
		if l.Dest.Internal {
			idx := l.Dest.Page - 1
			if idx < 0 || idx >= len(pageRefs) {
				continue // out-of-range internal destination: programmer error, skip rather than panic (§7)
			}
			y := pageHeights[idx] - l.Dest.Pos.Y
			action = fmt.Sprintf("/A << /Type /Action /S /GoTo /D [%d 0 R /XYZ %s %s null] >>",
				pageRefs[idx], fmtNum(l.Dest.Pos.X), fmtNum(y))
		} else {
			action = fmt.Sprintf("/A << /Type /Action /S /URI /URI (%s) >>", escapeString(l.Dest.URI))
		}
		parts = append(parts, fmt.Sprintf("<< /Type /Annot /Subtype /Link /Rect %s /Border [0 0 0] %s >>", rect, action))
	}
	return strings.Join(parts, " ")
}
