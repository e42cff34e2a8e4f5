// Package font parses sfnt-housed TrueType/OpenType font files and
// produces glyph-subsetted copies, generalized from a single-document
// character tally to the exporter's "union of glyphs used anywhere across
// every page" accumulation.
package font

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
)

// Font represents a parsed TrueType/OpenType font with everything needed
// for PDF embedding: metrics, cmap, glyph widths, and the raw table
// directory for subsetting.
type Font struct {
	PostScriptName string
	FamilyName     string
	FullName       string
	Version        string

	UnitsPerEm   uint16
	Ascender     int16
	Descender    int16
	LineGap      int16
	CapHeight    int16
	XHeight      int16
	StemV        int16
	ItalicAngle  float64
	IsFixedPitch bool
	IsBold       bool
	IsItalic     bool
	WeightClass  uint16

	BBox [4]int16 // xMin, yMin, xMax, yMax

	NumGlyphs   uint16
	GlyphWidths []uint16
	CharToGlyph map[rune]uint16
	GlyphToChar map[uint16]rune

	// CmapOrder preserves the scan order of (codepoint, glyph) pairs as
	// they were encountered while parsing the one cmap subtable parseCmap
	// selects, oldest first, so
	// ToUnicode construction can apply the spec's "keep the last-scanned"
	// tie-break deterministically.
	CmapOrder []CmapEntry

	RawData []byte
	Tables  map[string]TableEntry

	IsCFF bool // true if the font carries a 'CFF ' or 'CFF2' outline table
}

// CmapEntry records one codepoint->glyph mapping in scan order.
type CmapEntry struct {
	Codepoint rune
	Glyph     uint16
}

// TableEntry is one sfnt table directory record.
type TableEntry struct {
	Tag      string
	Checksum uint32
	Offset   uint32
	Length   uint32
}

// Parse parses TrueType/OpenType font data.
func Parse(data []byte) (*Font, error) {
	if len(data) < 12 {
		return nil, errors.New("font data too short")
	}

	f := &Font{
		RawData:     data,
		Tables:      make(map[string]TableEntry),
		CharToGlyph: make(map[rune]uint16),
		GlyphToChar: make(map[uint16]rune),
	}

	r := bytes.NewReader(data)

	var sfntVersion uint32
	if err := binary.Read(r, binary.BigEndian, &sfntVersion); err != nil {
		return nil, fmt.Errorf("failed to read sfntVersion: %w", err)
	}
	if sfntVersion != 0x00010000 && sfntVersion != 0x4F54544F {
		return nil, fmt.Errorf("unsupported font format: 0x%08X", sfntVersion)
	}

	var numTables uint16
	if err := binary.Read(r, binary.BigEndian, &numTables); err != nil {
		return nil, fmt.Errorf("failed to read numTables: %w", err)
	}
	if _, err := r.Seek(6, io.SeekCurrent); err != nil {
		return nil, fmt.Errorf("failed to seek: %w", err)
	}

	for i := uint16(0); i < numTables; i++ {
		var tag [4]byte
		var entry TableEntry
		if _, err := r.Read(tag[:]); err != nil {
			return nil, fmt.Errorf("failed to read tag: %w", err)
		}
		if err := binary.Read(r, binary.BigEndian, &entry.Checksum); err != nil {
			return nil, fmt.Errorf("failed to read checksum: %w", err)
		}
		if err := binary.Read(r, binary.BigEndian, &entry.Offset); err != nil {
			return nil, fmt.Errorf("failed to read offset: %w", err)
		}
		if err := binary.Read(r, binary.BigEndian, &entry.Length); err != nil {
			return nil, fmt.Errorf("failed to read length: %w", err)
		}
		entry.Tag = string(tag[:])
		f.Tables[entry.Tag] = entry
	}

	_, f.IsCFF = f.Tables["CFF "]
	if !f.IsCFF {
		_, f.IsCFF = f.Tables["CFF2"]
	}

	if err := f.parseHead(data); err != nil {
		return nil, fmt.Errorf("failed to parse 'head' table: %w", err)
	}
	if err := f.parseHhea(data); err != nil {
		return nil, fmt.Errorf("failed to parse 'hhea' table: %w", err)
	}
	if err := f.parseMaxp(data); err != nil {
		return nil, fmt.Errorf("failed to parse 'maxp' table: %w", err)
	}
	if !f.IsCFF {
		if err := f.parseHmtx(data); err != nil {
			return nil, fmt.Errorf("failed to parse 'hmtx' table: %w", err)
		}
	}
	if err := f.parseCmap(data); err != nil {
		return nil, fmt.Errorf("failed to parse 'cmap' table: %w", err)
	}

	if err := f.parseName(data); err != nil {
		f.PostScriptName = "UnknownFont"
		f.FamilyName = "Unknown"
		f.FullName = "Unknown Font"
	}
	if err := f.parseOS2(data); err != nil {
		f.CapHeight = int16(float64(f.Ascender) * 0.7)
		f.XHeight = int16(float64(f.Ascender) * 0.5)
		f.WeightClass = 400
	}
	if err := f.parsePost(data); err != nil {
		f.ItalicAngle = 0
		f.IsFixedPitch = false
	}

	// spec §4.3: StemV = 10 + 0.244 * (weight - 50). The font's OS/2 weight
	// class is on the 1..1000 scale used there; preserved verbatim per the
	// open design question in spec.md §9.
	f.StemV = int16(math.Round(10 + 0.244*(float64(f.WeightClass)-50)))

	return f, nil
}

func (f *Font) parseHead(data []byte) error {
	table, ok := f.Tables["head"]
	if !ok {
		return errors.New("missing 'head' table")
	}
	if table.Offset+54 > uint32(len(data)) {
		return errors.New("head table truncated")
	}
	r := bytes.NewReader(data[table.Offset:])
	if _, err := r.Seek(18, io.SeekCurrent); err != nil {
		return errors.New("failed to seek in head table")
	}
	if err := binary.Read(r, binary.BigEndian, &f.UnitsPerEm); err != nil {
		return fmt.Errorf("failed to read UnitsPerEm: %w", err)
	}
	if _, err := r.Seek(16, io.SeekCurrent); err != nil {
		return errors.New("failed to seek in head table")
	}
	if err := binary.Read(r, binary.BigEndian, &f.BBox[0]); err != nil {
		return fmt.Errorf("failed to read xMin: %w", err)
	}
	if err := binary.Read(r, binary.BigEndian, &f.BBox[1]); err != nil {
		return fmt.Errorf("failed to read yMin: %w", err)
	}
	if err := binary.Read(r, binary.BigEndian, &f.BBox[2]); err != nil {
		return fmt.Errorf("failed to read xMax: %w", err)
	}
	if err := binary.Read(r, binary.BigEndian, &f.BBox[3]); err != nil {
		return fmt.Errorf("failed to read yMax: %w", err)
	}
	return nil
}

func (f *Font) parseHhea(data []byte) error {
	table, ok := f.Tables["hhea"]
	if !ok {
		return errors.New("missing 'hhea' table")
	}
	if table.Offset+36 > uint32(len(data)) {
		return errors.New("hhea table truncated")
	}
	r := bytes.NewReader(data[table.Offset:])
	if _, err := r.Seek(4, io.SeekCurrent); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}
	if err := binary.Read(r, binary.BigEndian, &f.Ascender); err != nil {
		return fmt.Errorf("failed to read Ascender: %w", err)
	}
	if err := binary.Read(r, binary.BigEndian, &f.Descender); err != nil {
		return fmt.Errorf("failed to read Descender: %w", err)
	}
	if err := binary.Read(r, binary.BigEndian, &f.LineGap); err != nil {
		return fmt.Errorf("failed to read LineGap: %w", err)
	}
	return nil
}

func (f *Font) parseMaxp(data []byte) error {
	table, ok := f.Tables["maxp"]
	if !ok {
		return errors.New("missing 'maxp' table")
	}
	if table.Offset+6 > uint32(len(data)) {
		return errors.New("maxp table truncated")
	}
	r := bytes.NewReader(data[table.Offset:])
	if _, err := r.Seek(4, io.SeekCurrent); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}
	if err := binary.Read(r, binary.BigEndian, &f.NumGlyphs); err != nil {
		return fmt.Errorf("failed to read NumGlyphs: %w", err)
	}
	return nil
}

func (f *Font) parseHmtx(data []byte) error {
	table, ok := f.Tables["hmtx"]
	if !ok {
		return errors.New("missing 'hmtx' table")
	}
	hheaTable := f.Tables["hhea"]
	if hheaTable.Offset+36 > uint32(len(data)) {
		return errors.New("hhea table truncated")
	}
	var numberOfHMetrics uint16
	r := bytes.NewReader(data[hheaTable.Offset+34:])
	if err := binary.Read(r, binary.BigEndian, &numberOfHMetrics); err != nil {
		return fmt.Errorf("failed to read numberOfHMetrics: %w", err)
	}

	f.GlyphWidths = make([]uint16, f.NumGlyphs)
	r = bytes.NewReader(data[table.Offset:])

	var lastWidth uint16
	for i := uint16(0); i < numberOfHMetrics && i < f.NumGlyphs; i++ {
		if err := binary.Read(r, binary.BigEndian, &f.GlyphWidths[i]); err != nil {
			return fmt.Errorf("failed to read GlyphWidths[%d]: %w", i, err)
		}
		if _, err := r.Seek(2, io.SeekCurrent); err != nil {
			return fmt.Errorf("failed to seek: %w", err)
		}
		lastWidth = f.GlyphWidths[i]
	}
	for i := numberOfHMetrics; i < f.NumGlyphs; i++ {
		f.GlyphWidths[i] = lastWidth
	}
	return nil
}

func (f *Font) parseCmap(data []byte) error {
	table, ok := f.Tables["cmap"]
	if !ok {
		return errors.New("missing 'cmap' table")
	}
	r := bytes.NewReader(data[table.Offset:])
	if _, err := r.Seek(2, io.SeekCurrent); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}
	var numTables uint16
	if err := binary.Read(r, binary.BigEndian, &numTables); err != nil {
		return fmt.Errorf("failed to read numTables: %w", err)
	}

	var bestOffset uint32
	var bestFormat uint16

	for i := uint16(0); i < numTables; i++ {
		var platformID, encodingID uint16
		var offset uint32
		if err := binary.Read(r, binary.BigEndian, &platformID); err != nil {
			return fmt.Errorf("failed to read platformID: %w", err)
		}
		if err := binary.Read(r, binary.BigEndian, &encodingID); err != nil {
			return fmt.Errorf("failed to read encodingID: %w", err)
		}
		if err := binary.Read(r, binary.BigEndian, &offset); err != nil {
			return fmt.Errorf("failed to read offset: %w", err)
		}

		isUnicode := (platformID == 3 && (encodingID == 1 || encodingID == 10)) || platformID == 0
		if !isUnicode {
			continue
		}
		formatReader := bytes.NewReader(data[table.Offset+offset:])
		var format uint16
		if err := binary.Read(formatReader, binary.BigEndian, &format); err != nil {
			return fmt.Errorf("failed to read format: %w", err)
		}
		if format == 12 || (format == 4 && bestFormat != 12) {
			bestOffset = offset
			bestFormat = format
		}
	}

	if bestOffset == 0 {
		return errors.New("no suitable cmap subtable found")
	}

	switch bestFormat {
	case 4:
		return f.parseCmapFormat4(data, table.Offset+bestOffset)
	case 12:
		return f.parseCmapFormat12(data, table.Offset+bestOffset)
	default:
		return fmt.Errorf("unsupported cmap format: %d", bestFormat)
	}
}

func (f *Font) recordMapping(c rune, glyphID uint16) {
	f.CharToGlyph[c] = glyphID
	f.GlyphToChar[glyphID] = c
	f.CmapOrder = append(f.CmapOrder, CmapEntry{Codepoint: c, Glyph: glyphID})
}

func (f *Font) parseCmapFormat4(data []byte, offset uint32) error {
	r := bytes.NewReader(data[offset:])
	if _, err := r.Seek(2, io.SeekCurrent); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}
	var length uint16
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return fmt.Errorf("failed to read length: %w", err)
	}
	if _, err := r.Seek(2, io.SeekCurrent); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}
	var segCountX2 uint16
	if err := binary.Read(r, binary.BigEndian, &segCountX2); err != nil {
		return fmt.Errorf("failed to read segCountX2: %w", err)
	}
	segCount := segCountX2 / 2
	if _, err := r.Seek(6, io.SeekCurrent); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}

	endCodes := make([]uint16, segCount)
	for i := range endCodes {
		if err := binary.Read(r, binary.BigEndian, &endCodes[i]); err != nil {
			return fmt.Errorf("failed to read endCodes: %w", err)
		}
	}
	if _, err := r.Seek(2, io.SeekCurrent); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}
	startCodes := make([]uint16, segCount)
	for i := range startCodes {
		if err := binary.Read(r, binary.BigEndian, &startCodes[i]); err != nil {
			return fmt.Errorf("failed to read startCodes: %w", err)
		}
	}
	idDeltas := make([]int16, segCount)
	for i := range idDeltas {
		if err := binary.Read(r, binary.BigEndian, &idDeltas[i]); err != nil {
			return fmt.Errorf("failed to read idDeltas: %w", err)
		}
	}
	idRangeOffsetPos, _ := r.Seek(0, io.SeekCurrent)
	idRangeOffsets := make([]uint16, segCount)
	for i := range idRangeOffsets {
		if err := binary.Read(r, binary.BigEndian, &idRangeOffsets[i]); err != nil {
			return fmt.Errorf("failed to read idRangeOffsets: %w", err)
		}
	}

	for i := uint16(0); i < segCount; i++ {
		if startCodes[i] == 0xFFFF {
			break
		}
		for c := startCodes[i]; c <= endCodes[i]; c++ {
			var glyphID uint16
			if idRangeOffsets[i] == 0 {
				glyphID = uint16(int32(c) + int32(idDeltas[i]))
			} else {
				glyphIndexOffset := idRangeOffsetPos + int64(i)*2 + int64(idRangeOffsets[i]) + int64(c-startCodes[i])*2
				if glyphIndexOffset+2 <= int64(len(data[offset:])) {
					glyphReader := bytes.NewReader(data[offset+uint32(glyphIndexOffset):])
					if err := binary.Read(glyphReader, binary.BigEndian, &glyphID); err != nil {
						break
					}
					if glyphID != 0 {
						glyphID = uint16(int32(glyphID) + int32(idDeltas[i]))
					}
				}
			}
			if glyphID != 0 && glyphID < f.NumGlyphs {
				f.recordMapping(rune(c), glyphID)
			}
			if c == 0xFFFF {
				break
			}
		}
	}
	return nil
}

func (f *Font) parseCmapFormat12(data []byte, offset uint32) error {
	r := bytes.NewReader(data[offset:])
	if _, err := r.Seek(12, io.SeekCurrent); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}
	var numGroups uint32
	if err := binary.Read(r, binary.BigEndian, &numGroups); err != nil {
		return fmt.Errorf("failed to read numGroups: %w", err)
	}
	for i := uint32(0); i < numGroups; i++ {
		var startCharCode, endCharCode, startGlyphID uint32
		if err := binary.Read(r, binary.BigEndian, &startCharCode); err != nil {
			return fmt.Errorf("failed to read startCharCode: %w", err)
		}
		if err := binary.Read(r, binary.BigEndian, &endCharCode); err != nil {
			return fmt.Errorf("failed to read endCharCode: %w", err)
		}
		if err := binary.Read(r, binary.BigEndian, &startGlyphID); err != nil {
			return fmt.Errorf("failed to read startGlyphID: %w", err)
		}
		for c := startCharCode; c <= endCharCode; c++ {
			glyphID := uint16(startGlyphID + (c - startCharCode))
			if glyphID < f.NumGlyphs {
				f.recordMapping(rune(c), glyphID)
			}
		}
	}
	return nil
}

func (f *Font) parseName(data []byte) error {
	table, ok := f.Tables["name"]
	if !ok {
		return errors.New("missing 'name' table")
	}
	r := bytes.NewReader(data[table.Offset:])
	if _, err := r.Seek(2, io.SeekCurrent); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}
	var count, stringOffset uint16
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return fmt.Errorf("failed to read count: %w", err)
	}
	if err := binary.Read(r, binary.BigEndian, &stringOffset); err != nil {
		return fmt.Errorf("failed to read stringOffset: %w", err)
	}
	storageOffset := table.Offset + uint32(stringOffset)

	for i := uint16(0); i < count; i++ {
		var platformID, encodingID, languageID, nameID, length, offset uint16
		if err := binary.Read(r, binary.BigEndian, &platformID); err != nil {
			return fmt.Errorf("failed to read platformID: %w", err)
		}
		if err := binary.Read(r, binary.BigEndian, &encodingID); err != nil {
			return fmt.Errorf("failed to read encodingID: %w", err)
		}
		if err := binary.Read(r, binary.BigEndian, &languageID); err != nil {
			return fmt.Errorf("failed to read languageID: %w", err)
		}
		if err := binary.Read(r, binary.BigEndian, &nameID); err != nil {
			return fmt.Errorf("failed to read nameID: %w", err)
		}
		if err := binary.Read(r, binary.BigEndian, &length); err != nil {
			return fmt.Errorf("failed to read length: %w", err)
		}
		if err := binary.Read(r, binary.BigEndian, &offset); err != nil {
			return fmt.Errorf("failed to read offset: %w", err)
		}

		if platformID == 3 && encodingID == 1 {
			strStart := storageOffset + uint32(offset)
			strEnd := strStart + uint32(length)
			if strEnd <= uint32(len(data)) {
				str := decodeUTF16BE(data[strStart:strEnd])
				switch nameID {
				case 1:
					f.FamilyName = str
				case 4:
					f.FullName = str
				case 6:
					f.PostScriptName = str
				case 5:
					f.Version = str
				}
			}
		}
		if platformID == 1 && encodingID == 0 && f.PostScriptName == "" {
			strStart := storageOffset + uint32(offset)
			strEnd := strStart + uint32(length)
			if strEnd <= uint32(len(data)) {
				str := string(data[strStart:strEnd])
				switch nameID {
				case 1:
					if f.FamilyName == "" {
						f.FamilyName = str
					}
				case 4:
					if f.FullName == "" {
						f.FullName = str
					}
				case 6:
					if f.PostScriptName == "" {
						f.PostScriptName = str
					}
				}
			}
		}
	}

	if f.PostScriptName == "" {
		if f.FamilyName != "" {
			f.PostScriptName = sanitizePostScriptName(f.FamilyName)
		} else {
			f.PostScriptName = "UnknownFont"
		}
	}
	return nil
}

func (f *Font) parseOS2(data []byte) error {
	table, ok := f.Tables["OS/2"]
	if !ok {
		return errors.New("missing 'OS/2' table")
	}
	if table.Length < 78 {
		return errors.New("OS/2 table too short")
	}
	r := bytes.NewReader(data[table.Offset:])

	var version uint16
	if err := binary.Read(r, binary.BigEndian, &version); err != nil {
		return fmt.Errorf("failed to read version: %w", err)
	}
	if _, err := r.Seek(2, io.SeekCurrent); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}
	var usWeightClass uint16
	if err := binary.Read(r, binary.BigEndian, &usWeightClass); err != nil {
		return fmt.Errorf("failed to read usWeightClass: %w", err)
	}
	f.WeightClass = usWeightClass
	f.IsBold = usWeightClass >= 700

	if _, err := r.Seek(56, io.SeekCurrent); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}
	var fsSelection uint16
	if err := binary.Read(r, binary.BigEndian, &fsSelection); err != nil {
		return fmt.Errorf("failed to read fsSelection: %w", err)
	}
	f.IsItalic = (fsSelection & 0x0001) != 0

	if _, err := r.Seek(8, io.SeekCurrent); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}

	if version >= 2 && table.Length >= 96 {
		if _, err := r.Seek(16, io.SeekCurrent); err != nil {
			return fmt.Errorf("failed to seek: %w", err)
		}
		if _, err := r.Seek(-2, io.SeekCurrent); err != nil {
			return fmt.Errorf("failed to seek: %w", err)
		}
		if err := binary.Read(r, binary.BigEndian, &f.XHeight); err != nil {
			return fmt.Errorf("failed to read XHeight: %w", err)
		}
		if err := binary.Read(r, binary.BigEndian, &f.CapHeight); err != nil {
			return fmt.Errorf("failed to read CapHeight: %w", err)
		}
	} else {
		f.CapHeight = int16(float64(f.Ascender) * 0.7)
		f.XHeight = int16(float64(f.Ascender) * 0.5)
	}
	return nil
}

func (f *Font) parsePost(data []byte) error {
	table, ok := f.Tables["post"]
	if !ok {
		return errors.New("missing 'post' table")
	}
	if table.Length < 32 {
		return errors.New("post table too short")
	}
	r := bytes.NewReader(data[table.Offset:])
	if _, err := r.Seek(4, io.SeekCurrent); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}
	var italicAngleFixed int32
	if err := binary.Read(r, binary.BigEndian, &italicAngleFixed); err != nil {
		return fmt.Errorf("failed to read italicAngleFixed: %w", err)
	}
	f.ItalicAngle = float64(italicAngleFixed) / 65536.0
	if _, err := r.Seek(4, io.SeekCurrent); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}
	var isFixedPitch uint32
	if err := binary.Read(r, binary.BigEndian, &isFixedPitch); err != nil {
		return fmt.Errorf("failed to read isFixedPitch: %w", err)
	}
	f.IsFixedPitch = isFixedPitch != 0
	return nil
}

// GlyphWidth returns a glyph's horizontal advance in font design units.
func (f *Font) GlyphWidth(glyphID uint16) uint16 {
	if int(glyphID) < len(f.GlyphWidths) {
		return f.GlyphWidths[glyphID]
	}
	return 0
}

func decodeUTF16BE(data []byte) string {
	if len(data)%2 != 0 {
		return ""
	}
	runes := make([]rune, 0, len(data)/2)
	for i := 0; i < len(data); i += 2 {
		r := rune(data[i])<<8 | rune(data[i+1])
		if r >= 0xD800 && r <= 0xDBFF && i+2 < len(data) {
			low := rune(data[i+2])<<8 | rune(data[i+3])
			if low >= 0xDC00 && low <= 0xDFFF {
				r = 0x10000 + (r-0xD800)<<10 + (low - 0xDC00)
				i += 2
			}
		}
		runes = append(runes, r)
	}
	return string(runes)
}

func sanitizePostScriptName(name string) string {
	result := make([]byte, 0, len(name))
	for _, c := range name {
		if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			result = append(result, byte(c))
		}
	}
	if len(result) == 0 {
		return "UnknownFont"
	}
	return string(result)
}

// sortedGlyphs returns the glyph ids in set in ascending order.
func sortedGlyphs(set map[uint16]bool) []uint16 {
	out := make([]uint16, 0, len(set))
	for g := range set {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SortedGlyphs exposes sortedGlyphs to other packages building deterministic
// glyph-ID iteration order during subsetting.
func SortedGlyphs(set map[uint16]bool) []uint16 { return sortedGlyphs(set) }
