package export

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/chinmay-sawant/typstpdf/internal/export/font"
)

const (
	flagFixedPitch = 1
	flagSerif      = 2
	flagSymbolic   = 4
	flagItalic     = 64
	flagSmallCap   = 1 << 17
)

// scaleToEm converts a value in a face's own design units to PDF's
// thousand-units-per-em glyph space, the convention CIDFont widths and the
// font descriptor's bounding box both use.
func scaleToEm(v, unitsPerEm int) int {
	if unitsPerEm == 0 {
		return v
	}
	return int(math.Round(float64(v) * 1000.0 / float64(unitsPerEm)))
}

// writeFontFace emits the five indirect objects spec.md §4.3 requires for
// one face and returns the Type0 font's object reference, the one
// face_refs entries hold.
func writeFontFace(w *objWriter, face Face, used map[uint16]bool) int {
	base := w.allocN(5)
	type0Ref, cidRef, descRef, toUniRef, fileRef := base, base+1, base+2, base+3, base+4

	baseFont := "ABCDEF+" + face.PostScriptName()
	unitsPerEm := face.UnitsPerEm()

	writeWidthsAndCIDFont(w, cidRef, descRef, face, baseFont, unitsPerEm)
	writeFontDescriptor(w, descRef, fileRef, face, baseFont, unitsPerEm)
	writeToUnicode(w, toUniRef, face, used)
	writeFontFile(w, fileRef, face, used)

	w.object(type0Ref, fmt.Sprintf(
		"<< /Type /Font /Subtype /Type0 /BaseFont /%s /Encoding /Identity-H "+
			"/DescendantFonts [%d 0 R] /ToUnicode %d 0 R >>",
		baseFont, cidRef, toUniRef))

	return type0Ref
}

func writeWidthsAndCIDFont(w *objWriter, cidRef, descRef int, face Face, baseFont string, unitsPerEm int) {
	n := face.NumGlyphs()
	widths := make([]string, n)
	for gid := 0; gid < n; gid++ {
		widths[gid] = fmtNum(float64(scaleToEm(face.GlyphAdvance(uint16(gid)), unitsPerEm)))
	}

	subtype := "CIDFontType2"
	cidToGID := " /CIDToGIDMap /Identity"
	if face.HasCFFOutlines() {
		subtype = "CIDFontType0"
		cidToGID = ""
	}

	w.object(cidRef, fmt.Sprintf(
		"<< /Type /Font /Subtype /%s /BaseFont /%s "+
			"/CIDSystemInfo << /Registry (Adobe) /Ordering (Identity) /Supplement 0 >> "+
			"/FontDescriptor %d 0 R /W [0 [%s]]%s >>",
		subtype, baseFont, descRef, strings.Join(widths, " "), cidToGID))
}

func writeFontDescriptor(w *objWriter, descRef, fileRef int, face Face, baseFont string, unitsPerEm int) {
	flags := flagSymbolic | flagSmallCap
	if strings.Contains(face.PostScriptName(), "Serif") {
		flags |= flagSerif
	}
	if face.Monospaced() {
		flags |= flagFixedPitch
	}
	if face.Italic() {
		flags |= flagItalic
	}

	stemV := 10 + 0.244*(float64(face.Weight())-50)

	xMin, yMin, xMax, yMax := face.GlobalBBox()
	bbox := fmt.Sprintf("[%s %s %s %s]",
		fmtNum(float64(scaleToEm(xMin, unitsPerEm))), fmtNum(float64(scaleToEm(yMin, unitsPerEm))),
		fmtNum(float64(scaleToEm(xMax, unitsPerEm))), fmtNum(float64(scaleToEm(yMax, unitsPerEm))))

	fileKey := "FontFile2"
	if face.HasCFFOutlines() {
		fileKey = "FontFile3"
	}

	w.object(descRef, fmt.Sprintf(
		"<< /Type /FontDescriptor /FontName /%s /Flags %d /FontBBox %s "+
			"/ItalicAngle 0 /Ascent %s /Descent %s /CapHeight %s /StemV %s /%s %d 0 R >>",
		baseFont, flags, bbox,
		fmtNum(float64(scaleToEm(face.Ascender(), unitsPerEm))),
		fmtNum(float64(scaleToEm(face.Descender(), unitsPerEm))),
		fmtNum(float64(scaleToEm(face.CapHeight(), unitsPerEm))),
		fmtNum(stemV), fileKey, fileRef))
}

// writeToUnicode builds the reverse cmap by scanning every Unicode cmap
// subtable the face exposes, keeping the last-scanned mapping on collision
// (deterministic subtable order, then numeric codepoint order within a
// subtable — see fontface.go's CmapSubtables doc for why subtable order
// degenerates to scan order for this parser).
func writeToUnicode(w *objWriter, ref int, face Face, used map[uint16]bool) {
	glyphToCP := make(map[uint16]rune)
	for _, sub := range face.CmapSubtables() {
		cps := make([]rune, 0, len(sub.CodepointToGlyph))
		for cp := range sub.CodepointToGlyph {
			cps = append(cps, cp)
		}
		sort.Slice(cps, func(i, j int) bool { return cps[i] < cps[j] })
		for _, cp := range cps {
			gid := sub.CodepointToGlyph[cp]
			if used[gid] {
				glyphToCP[gid] = cp
			}
		}
	}

	gids := make([]uint16, 0, len(glyphToCP))
	for g := range glyphToCP {
		gids = append(gids, g)
	}
	sort.Slice(gids, func(i, j int) bool { return gids[i] < gids[j] })

	var body strings.Builder
	body.WriteString("/CIDInit /ProcSet findresource begin\n")
	body.WriteString("12 dict begin\nbegincmap\n")
	body.WriteString("/CIDSystemInfo << /Registry (Adobe) /Ordering (UCS) /Supplement 0 >> def\n")
	body.WriteString("/CMapName /Adobe-Identity-UCS def\n")
	body.WriteString("1 begincodespacerange\n<0000> <FFFF>\nendcodespacerange\n")
	fmt.Fprintf(&body, "%d beginbfchar\n", len(gids))
	for _, g := range gids {
		cp := glyphToCP[g]
		fmt.Fprintf(&body, "<%04X> <%04X>\n", g, cp)
	}
	body.WriteString("endbfchar\nendcmap\nCMapName currentdict /CMap defineresource pop\nend\nend\n")

	payload := deflate([]byte(body.String()))
	w.stream(ref, "/Type /CMap /Filter /FlateDecode", payload)
}

// writeFontFile subsets the face to the used glyph set and emits the
// embedded font data stream, falling back to the original bytes on any
// subsetting failure (never fatal, per spec.md §7).
func writeFontFile(w *objWriter, ref int, face Face, used map[uint16]bool) {
	raw := face.Raw()
	subtype := ""
	if face.HasCFFOutlines() {
		subtype = " /Subtype /OpenType"
	}

	data := raw
	if adapter, ok := face.(*fontFace); ok {
		if out, err := font.Subset(adapter.underlying(), used); err == nil {
			data = out
		}
	}

	payload := deflate(data)
	w.stream(ref, fmt.Sprintf("/Filter /FlateDecode /Length1 %d%s", len(data), subtype), payload)
}
