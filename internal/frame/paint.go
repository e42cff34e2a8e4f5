package frame

// Paint is a solid color fill or stroke. Alpha is ignored for fills in this
// core; per-pixel alpha only ever comes from image soft masks.
type Paint struct {
	Color Color
}

// Color is the closed set of color representations a Paint can carry.
type Color interface {
	isColor()
}

// Luma is a single-channel gray value, 0..255.
type Luma struct {
	V uint8
}

func (Luma) isColor() {}

// RGBA is a 4-channel color; A is carried for completeness but ignored by
// fill/stroke emission (see Paint doc).
type RGBA struct {
	R, G, B, A uint8
}

func (RGBA) isColor() {}

// CMYK is a 4-channel subtractive color, each channel 0..255.
type CMYK struct {
	C, M, Y, K uint8
}

func (CMYK) isColor() {}
