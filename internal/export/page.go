package export

import (
	"bytes"
	"fmt"
	"math"

	"github.com/chinmay-sawant/typstpdf/internal/frame"
	"github.com/chinmay-sawant/typstpdf/internal/remap"
)

// bezierKappa is the standard constant for approximating a quarter circle
// with one cubic Bezier segment (4/3 * (sqrt(2) - 1)).
const bezierKappa = 0.5522847498307936

// pageLink is one unresolved annotation: the rectangle already lives in PDF
// space (the current-transform bbox spec.md §4.4 describes), but the
// destination may point at another page, resolved only once every page's
// height is known.
type pageLink struct {
	X1, Y1, X2, Y2 float64
	Dest           frame.Destination
}

// Page is PageWriter's output: everything DocumentAssembler needs to emit
// one page object and its content stream, plus the document-level tallies
// this page contributed.
type Page struct {
	Size      frame.Size
	Content   []byte
	Links     []pageLink
	Languages map[string]int
}

// builder carries the document-level state that must stay open across every
// page — the two remappers and the glyph-usage accumulator — because fonts
// and images are only written after all pages have been walked (spec.md
// §2's two-pass data flow).
type builder struct {
	faces     *remap.Remapper[frame.FaceID]
	images    *remap.Remapper[frame.ImageID]
	glyphSets map[frame.FaceID]map[uint16]bool
	fonts     FontStore
}

func newBuilder(fonts FontStore) *builder {
	return &builder{
		faces:     remap.New[frame.FaceID](),
		images:    remap.New[frame.ImageID](),
		glyphSets: make(map[frame.FaceID]map[uint16]bool),
		fonts:     fonts,
	}
}

func (b *builder) markGlyph(face frame.FaceID, gid uint16) {
	b.faces.Insert(face)
	set, ok := b.glyphSets[face]
	if !ok {
		set = make(map[uint16]bool)
		b.glyphSets[face] = set
	}
	set[gid] = true
}

// graphicsState mirrors spec.md §4.4's cache: font/fill/stroke only emit an
// operator when the requested value differs from what's already active.
type graphicsState struct {
	hasFont  bool
	face     frame.FaceID
	fontSize float64

	hasFill  bool
	fill     frame.Color
	fillCS   string // "" means unset, or bypassed (CMYK)

	hasStroke   bool
	strokeColor frame.Color
	strokeW     float64
	strokeCS    string
}

// writePage runs PageWriter over one frame, mutating the shared builder's
// remappers and glyph sets, and returns the resulting Page record.
func writePage(b *builder, fr frame.Frame) Page {
	p := Page{Size: fr.Size, Languages: make(map[string]int)}
	var buf bytes.Buffer

	ctm := frame.Transform{A: 1, D: -1, F: fr.Size.H}
	emitCM(&buf, ctm)
	state := graphicsState{}
	var stack []graphicsState

	var writeFrame func(fr frame.Frame, ctm frame.Transform, state *graphicsState)
	writeFrame = func(fr frame.Frame, ctm frame.Transform, state *graphicsState) {
		for _, item := range fr.Items {
			writeElement(&buf, b, &p, item, ctm, state, &stack, writeFrame)
		}
	}
	writeFrame(fr, ctm, &state)

	p.Content = buf.Bytes()
	return p
}

func writeElement(
	buf *bytes.Buffer, b *builder, p *Page, item frame.Positioned, ctm frame.Transform,
	state *graphicsState, stack *[]graphicsState,
	writeFrame func(frame.Frame, frame.Transform, *graphicsState),
) {
	switch el := item.El.(type) {
	case frame.Group:
		*stack = append(*stack, *state)
		buf.WriteString("q\n")
		emitCM(buf, frame.Translate(item.Pos.X, item.Pos.Y))
		emitCM(buf, el.Transform)
		if el.Clip {
			fmt.Fprintf(buf, "%s %s %s %s re\nW n\n",
				fmtNum(0), fmtNum(0), fmtNum(el.Frame.Size.W), fmtNum(el.Frame.Size.H))
		}
		childCTM := ctm.Concat(frame.Translate(item.Pos.X, item.Pos.Y)).Concat(el.Transform)
		writeFrame(el.Frame, childCTM, state)
		buf.WriteString("Q\n")
		*state = (*stack)[len(*stack)-1]
		*stack = (*stack)[:len(*stack)-1]
	case frame.Text:
		writeText(buf, b, item.Pos, el, state)
		p.Languages[el.Lang] += len(el.Glyphs)
	case frame.Shape:
		writeShape(buf, item.Pos, el, state)
	case frame.Image:
		writeImage(buf, b, item.Pos, el)
	case frame.Link:
		corners := [4]frame.Point{
			{X: item.Pos.X, Y: item.Pos.Y},
			{X: item.Pos.X + el.Size.W, Y: item.Pos.Y},
			{X: item.Pos.X, Y: item.Pos.Y + el.Size.H},
			{X: item.Pos.X + el.Size.W, Y: item.Pos.Y + el.Size.H},
		}
		minX, minY := math.Inf(1), math.Inf(1)
		maxX, maxY := math.Inf(-1), math.Inf(-1)
		for _, c := range corners {
			tx, ty := applyTransform(ctm, c.X, c.Y)
			minX, maxX = math.Min(minX, tx), math.Max(maxX, tx)
			minY, maxY = math.Min(minY, ty), math.Max(maxY, ty)
		}
		p.Links = append(p.Links, pageLink{X1: minX, Y1: maxY, X2: maxX, Y2: minY, Dest: el.Dest})
	case frame.Pin:
		// ignored
	}
}

func applyTransform(t frame.Transform, x, y float64) (float64, float64) {
	return t.A*x + t.C*y + t.E, t.B*x + t.D*y + t.F
}

func emitCM(buf *bytes.Buffer, t frame.Transform) {
	fmt.Fprintf(buf, "%s %s %s %s %s %s cm\n",
		fmtNum(t.A), fmtNum(t.B), fmtNum(t.C), fmtNum(t.D), fmtNum(t.E), fmtNum(t.F))
}

func setFont(buf *bytes.Buffer, state *graphicsState, face frame.FaceID, size float64, faceIndex int) {
	if state.hasFont && state.face == face && state.fontSize == size {
		return
	}
	fmt.Fprintf(buf, "/F%d %s Tf\n", faceIndex, fmtNum(size))
	state.hasFont, state.face, state.fontSize = true, face, size
}

// setFillColor applies spec.md §4.4's color-space policy and graphics-state
// cache. CMYK bypasses the named color-space cache by design (see
// SPEC_FULL.md's preserved open question): it never reads fillCS and never
// stores a name in it, only clears it afterward so the cache can't claim a
// stale named colorspace was active.
func setFillColor(buf *bytes.Buffer, state *graphicsState, c frame.Color) {
	if state.hasFill && colorsEqual(state.fill, c) {
		return
	}
	switch v := c.(type) {
	case frame.Luma:
		setColorSpace(buf, &state.fillCS, "sRGBGray", "cs")
		fmt.Fprintf(buf, "%s g\n", fmtNum(float64(v.V)/255))
	case frame.RGBA:
		setColorSpace(buf, &state.fillCS, "sRGB", "cs")
		fmt.Fprintf(buf, "%s %s %s rg\n", fmtNum(float64(v.R)/255), fmtNum(float64(v.G)/255), fmtNum(float64(v.B)/255))
	case frame.CMYK:
		fmt.Fprintf(buf, "%s %s %s %s k\n",
			fmtNum(float64(v.C)/255), fmtNum(float64(v.M)/255), fmtNum(float64(v.Y)/255), fmtNum(float64(v.K)/255))
		state.fillCS = ""
	}
	state.hasFill, state.fill = true, c
}

func setStrokeColor(buf *bytes.Buffer, state *graphicsState, c frame.Color, width float64) {
	if state.hasStroke && colorsEqual(state.strokeColor, c) && state.strokeW == width {
		return
	}
	switch v := c.(type) {
	case frame.Luma:
		setColorSpace(buf, &state.strokeCS, "sRGBGray", "CS")
		fmt.Fprintf(buf, "%s G\n", fmtNum(float64(v.V)/255))
	case frame.RGBA:
		setColorSpace(buf, &state.strokeCS, "sRGB", "CS")
		fmt.Fprintf(buf, "%s %s %s RG\n", fmtNum(float64(v.R)/255), fmtNum(float64(v.G)/255), fmtNum(float64(v.B)/255))
	case frame.CMYK:
		fmt.Fprintf(buf, "%s %s %s %s K\n",
			fmtNum(float64(v.C)/255), fmtNum(float64(v.M)/255), fmtNum(float64(v.Y)/255), fmtNum(float64(v.K)/255))
		state.strokeCS = ""
	}
	fmt.Fprintf(buf, "%s w\n", fmtNum(width))
	state.hasStroke, state.strokeColor, state.strokeW = true, c, width
}

func setColorSpace(buf *bytes.Buffer, cache *string, name, op string) {
	if *cache == name {
		return
	}
	fmt.Fprintf(buf, "/%s %s\n", name, op)
	*cache = name
}

func colorsEqual(a, b frame.Color) bool { return a == b }

func writeText(buf *bytes.Buffer, b *builder, pos frame.Point, t frame.Text, state *graphicsState) {
	b.faces.Insert(t.Face)
	for _, g := range t.Glyphs {
		b.markGlyph(t.Face, g.ID)
	}

	faceIdx := b.faces.Map(t.Face)
	face := b.fonts.Get(t.Face)
	unitsPerEm := 1000
	if face != nil && face.UnitsPerEm() > 0 {
		unitsPerEm = face.UnitsPerEm()
	}

	buf.WriteString("BT\n")
	setFont(buf, state, t.Face, t.Size, faceIdx)
	setFillColor(buf, state, t.Fill.Color)
	fmt.Fprintf(buf, "%s %s %s %s %s %s Tm\n", fmtNum(1), fmtNum(0), fmtNum(0), fmtNum(-1), fmtNum(pos.X), fmtNum(pos.Y))

	var pending bytes.Buffer
	var parts []string
	adjustment := 0.0
	flush := func() {
		if pending.Len() > 0 {
			parts = append(parts, fmt.Sprintf("<%x>", pending.Bytes()))
			pending.Reset()
		}
	}
	for _, g := range t.Glyphs {
		adjustment += g.XOffset
		if g.XOffset != 0 {
			flush()
			parts = append(parts, fmtNum(-adjustment*1000))
			adjustment = 0
		}
		pending.WriteByte(byte(g.ID >> 8))
		pending.WriteByte(byte(g.ID))
		defaultAdvance := 0.0
		if face != nil {
			defaultAdvance = float64(face.GlyphAdvance(g.ID)) / float64(unitsPerEm)
		}
		adjustment += g.XAdvance - defaultAdvance
		adjustment -= g.XOffset
	}
	flush()

	fmt.Fprintf(buf, "[%s] TJ\n", joinTJ(parts))
	buf.WriteString("ET\n")
}

func joinTJ(parts []string) string {
	var sb bytes.Buffer
	for i, p := range parts {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(p)
	}
	return sb.String()
}

func writeShape(buf *bytes.Buffer, pos frame.Point, s frame.Shape, state *graphicsState) {
	if s.Fill == nil && s.Stroke == nil {
		return
	}
	if s.Fill != nil {
		setFillColor(buf, state, s.Fill.Color)
	}
	if s.Stroke != nil {
		setStrokeColor(buf, state, s.Stroke.Paint.Color, s.Stroke.Thickness)
	}

	switch g := s.Geometry.(type) {
	case frame.Rect:
		fmt.Fprintf(buf, "%s %s %s %s re\n", fmtNum(pos.X), fmtNum(pos.Y), fmtNum(g.Size.W), fmtNum(g.Size.H))
	case frame.Ellipse:
		writeEllipse(buf, pos, g.Size)
	case frame.Line:
		fmt.Fprintf(buf, "%s %s m\n", fmtNum(pos.X), fmtNum(pos.Y))
		fmt.Fprintf(buf, "%s %s l\n", fmtNum(pos.X+g.To.X), fmtNum(pos.Y+g.To.Y))
	case frame.Path:
		for _, seg := range g.Segments {
			switch s := seg.(type) {
			case frame.MoveTo:
				fmt.Fprintf(buf, "%s %s m\n", fmtNum(pos.X+s.To.X), fmtNum(pos.Y+s.To.Y))
			case frame.LineTo:
				fmt.Fprintf(buf, "%s %s l\n", fmtNum(pos.X+s.To.X), fmtNum(pos.Y+s.To.Y))
			case frame.CubicTo:
				fmt.Fprintf(buf, "%s %s %s %s %s %s c\n",
					fmtNum(pos.X+s.C1.X), fmtNum(pos.Y+s.C1.Y),
					fmtNum(pos.X+s.C2.X), fmtNum(pos.Y+s.C2.Y),
					fmtNum(pos.X+s.To.X), fmtNum(pos.Y+s.To.Y))
			case frame.ClosePath:
				buf.WriteString("h\n")
			}
		}
	}

	switch {
	case s.Fill != nil && s.Stroke != nil:
		buf.WriteString("B\n")
	case s.Fill != nil:
		buf.WriteString("f\n")
	case s.Stroke != nil:
		buf.WriteString("S\n")
	}
}

// writeEllipse approximates an ellipse inscribed in (0,0)..size with four
// cubic Bezier quarter-arcs using the standard circle-approximation
// constant, centered at pos+size/2.
func writeEllipse(buf *bytes.Buffer, pos frame.Point, size frame.Size) {
	cx, cy := pos.X+size.W/2, pos.Y+size.H/2
	rx, ry := size.W/2, size.H/2
	kx, ky := rx*bezierKappa, ry*bezierKappa

	fmt.Fprintf(buf, "%s %s m\n", fmtNum(cx+rx), fmtNum(cy))
	fmt.Fprintf(buf, "%s %s %s %s %s %s c\n",
		fmtNum(cx+rx), fmtNum(cy+ky), fmtNum(cx+kx), fmtNum(cy+ry), fmtNum(cx), fmtNum(cy+ry))
	fmt.Fprintf(buf, "%s %s %s %s %s %s c\n",
		fmtNum(cx-kx), fmtNum(cy+ry), fmtNum(cx-rx), fmtNum(cy+ky), fmtNum(cx-rx), fmtNum(cy))
	fmt.Fprintf(buf, "%s %s %s %s %s %s c\n",
		fmtNum(cx-rx), fmtNum(cy-ky), fmtNum(cx-kx), fmtNum(cy-ry), fmtNum(cx), fmtNum(cy-ry))
	fmt.Fprintf(buf, "%s %s %s %s %s %s c\n",
		fmtNum(cx+kx), fmtNum(cy-ry), fmtNum(cx+rx), fmtNum(cy-ky), fmtNum(cx+rx), fmtNum(cy))
}

func writeImage(buf *bytes.Buffer, b *builder, pos frame.Point, img frame.Image) {
	b.images.Insert(img.ID)
	idx := b.images.Map(img.ID)
	buf.WriteString("q\n")
	emitCM(buf, frame.Transform{A: img.Size.W, D: -img.Size.H, E: pos.X, F: pos.Y + img.Size.H})
	fmt.Fprintf(buf, "/Im%d Do\n", idx)
	buf.WriteString("Q\n")
}
