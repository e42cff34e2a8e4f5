package font

import (
	"bytes"
	"encoding/binary"
	"errors"
	"sort"
)

// Subset rebuilds the font's glyf/loca pair so that only the glyphs in
// used carry outline data, while the glyph id numbering itself is left
// untouched. hhea, maxp, hmtx, cmap, OS/2, cvt, fpgm and prep are copied
// unchanged, head gets a fresh loca format and checksum, post and name are
// replaced with minimal versions, and every other table is dropped. This is
// deliberately NOT a renumbering subsetter: glyph
// ids here must stay stable, because content streams already reference them
// by number by the time FontSubsetter runs. Glyph 0 (.notdef) is always
// kept intact even if unused.
//
// CFF/CFF2-outlined faces are returned unmodified: dropping unused charstrings
// out of a compact CFF INDEX safely requires rewriting the charset and
// FDSelect tables, which is out of scope here, so those faces are always
// embedded in full (see SPEC_FULL.md's font-file embedding notes).
func Subset(f *Font, used map[uint16]bool) ([]byte, error) {
	if f.IsCFF {
		return f.RawData, nil
	}
	if _, ok := f.Tables["glyf"]; !ok {
		return f.RawData, nil
	}
	if _, ok := f.Tables["loca"]; !ok {
		return f.RawData, nil
	}

	keep := make(map[uint16]bool, len(used)+1)
	keep[0] = true
	for g := range used {
		if g < f.NumGlyphs {
			keep[g] = true
		}
	}

	tables := make(map[string][]byte)

	headTable, ok := f.Tables["head"]
	if !ok {
		return nil, errors.New("font has no head table")
	}
	head := make([]byte, headTable.Length)
	copy(head, f.RawData[headTable.Offset:headTable.Offset+headTable.Length])
	head[8], head[9], head[10], head[11] = 0, 0, 0, 0 // checksumAdjustment, recomputed later

	glyfData, locaData, shortLoca := subsetGlyfKeepingIDs(f, keep)
	head[50] = 0
	if shortLoca {
		head[51] = 0
	} else {
		head[51] = 1
	}
	tables["head"] = head
	tables["glyf"] = glyfData
	tables["loca"] = locaData

	for _, name := range []string{"hhea", "maxp", "hmtx", "cmap", "OS/2", "cvt ", "fpgm", "prep"} {
		entry, ok := f.Tables[name]
		if !ok {
			continue
		}
		if entry.Offset+entry.Length > uint32(len(f.RawData)) {
			continue
		}
		buf := make([]byte, entry.Length)
		copy(buf, f.RawData[entry.Offset:entry.Offset+entry.Length])
		tables[name] = buf
	}

	tables["post"] = minimalPost(f)
	tables["name"] = minimalName(f)

	return assembleSFNT(tables)
}

// subsetGlyfKeepingIDs rebuilds glyf/loca with every glyph id slot present
// but only `keep` glyphs carrying bytes; dropped glyphs become zero-length
// (empty) outlines, which is valid sfnt for a glyph that draws nothing.
func subsetGlyfKeepingIDs(f *Font, keep map[uint16]bool) (glyf, loca []byte, short bool) {
	glyfTable := f.Tables["glyf"]
	locaTable := f.Tables["loca"]
	headTable := f.Tables["head"]

	isShortLoca := f.RawData[headTable.Offset+50] == 0 && f.RawData[headTable.Offset+51] == 0
	locaData := f.RawData[locaTable.Offset : locaTable.Offset+locaTable.Length]
	glyfData := f.RawData[glyfTable.Offset : glyfTable.Offset+glyfTable.Length]

	n := int(f.NumGlyphs)
	offsets := make([]uint32, n+1)
	read := func(i int) uint32 {
		if isShortLoca {
			return uint32(binary.BigEndian.Uint16(locaData[i*2:])) * 2
		}
		return binary.BigEndian.Uint32(locaData[i*4:])
	}

	var newGlyf bytes.Buffer
	for gid := 0; gid < n; gid++ {
		offsets[gid] = uint32(newGlyf.Len())
		start := read(gid)
		end := read(gid + 1)
		if keep[uint16(gid)] && end > start && start < uint32(len(glyfData)) {
			if end > uint32(len(glyfData)) {
				end = uint32(len(glyfData))
			}
			newGlyf.Write(glyfData[start:end])
			if newGlyf.Len()%2 != 0 {
				newGlyf.WriteByte(0)
			}
		}
	}
	offsets[n] = uint32(newGlyf.Len())

	useShort := offsets[n] <= 0xFFFF*2
	var newLoca bytes.Buffer
	if useShort {
		for _, off := range offsets {
			binary.Write(&newLoca, binary.BigEndian, uint16(off/2))
		}
	} else {
		for _, off := range offsets {
			binary.Write(&newLoca, binary.BigEndian, off)
		}
	}

	return newGlyf.Bytes(), newLoca.Bytes(), useShort
}

func minimalPost(f *Font) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint32(0x00030000))
	binary.Write(&buf, binary.BigEndian, int32(f.ItalicAngle*65536))
	binary.Write(&buf, binary.BigEndian, int16(-100))
	binary.Write(&buf, binary.BigEndian, int16(50))
	if f.IsFixedPitch {
		binary.Write(&buf, binary.BigEndian, uint32(1))
	} else {
		binary.Write(&buf, binary.BigEndian, uint32(0))
	}
	binary.Write(&buf, binary.BigEndian, uint32(0))
	binary.Write(&buf, binary.BigEndian, uint32(0))
	binary.Write(&buf, binary.BigEndian, uint32(0))
	binary.Write(&buf, binary.BigEndian, uint32(0))
	return buf.Bytes()
}

func minimalName(f *Font) []byte {
	var buf bytes.Buffer
	names := []struct {
		id    uint16
		value string
	}{
		{1, f.FamilyName},
		{2, "Regular"},
		{4, f.FullName},
		{5, f.Version},
		{6, f.PostScriptName},
	}

	var stringData bytes.Buffer
	type rec struct{ platformID, encodingID, languageID, nameID, length, offset uint16 }
	var records []rec
	for _, nm := range names {
		offset := uint16(stringData.Len())
		encoded := encodeUTF16BE(nm.value)
		stringData.Write(encoded)
		records = append(records, rec{3, 1, 0x0409, nm.id, uint16(len(encoded)), offset})
	}

	binary.Write(&buf, binary.BigEndian, uint16(0))
	binary.Write(&buf, binary.BigEndian, uint16(len(records)))
	binary.Write(&buf, binary.BigEndian, uint16(6+len(records)*12))
	for _, r := range records {
		binary.Write(&buf, binary.BigEndian, r.platformID)
		binary.Write(&buf, binary.BigEndian, r.encodingID)
		binary.Write(&buf, binary.BigEndian, r.languageID)
		binary.Write(&buf, binary.BigEndian, r.nameID)
		binary.Write(&buf, binary.BigEndian, r.length)
		binary.Write(&buf, binary.BigEndian, r.offset)
	}
	buf.Write(stringData.Bytes())
	return buf.Bytes()
}

// assembleSFNT writes a full sfnt offset table, table directory, and table
// data section from the given table set, recomputing per-table checksums
// and the head table's global checksumAdjustment.
func assembleSFNT(tables map[string][]byte) ([]byte, error) {
	var buf bytes.Buffer

	numTables := uint16(len(tables))
	searchRange := uint16(1)
	entrySelector := uint16(0)
	for searchRange*2 <= numTables {
		searchRange *= 2
		entrySelector++
	}
	searchRange *= 16
	rangeShift := numTables*16 - searchRange

	if err := binary.Write(&buf, binary.BigEndian, uint32(0x00010000)); err != nil {
		return nil, err
	}
	binary.Write(&buf, binary.BigEndian, numTables)
	binary.Write(&buf, binary.BigEndian, searchRange)
	binary.Write(&buf, binary.BigEndian, entrySelector)
	binary.Write(&buf, binary.BigEndian, rangeShift)

	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)

	tableOffset := uint32(12 + int(numTables)*16)
	offsets := make(map[string]uint32, len(names))
	for _, name := range names {
		data := tables[name]
		tag := []byte(name)
		for len(tag) < 4 {
			tag = append(tag, ' ')
		}
		checksum := calculateChecksum(data)
		buf.Write(tag[:4])
		binary.Write(&buf, binary.BigEndian, checksum)
		binary.Write(&buf, binary.BigEndian, tableOffset)
		binary.Write(&buf, binary.BigEndian, uint32(len(data)))
		offsets[name] = tableOffset
		tableOffset += (uint32(len(data)) + 3) &^ 3
	}

	for _, name := range names {
		data := tables[name]
		buf.Write(data)
		if pad := (4 - len(data)%4) % 4; pad > 0 {
			buf.Write(make([]byte, pad))
		}
	}

	result := buf.Bytes()
	if headOffset, ok := offsets["head"]; ok {
		updateHeadChecksum(result, headOffset)
	}
	return result, nil
}

// calculateChecksum computes an sfnt table checksum (big-endian uint32 sum
// over 4-byte-padded data).
func calculateChecksum(data []byte) uint32 {
	padded := data
	if len(data)%4 != 0 {
		padded = make([]byte, len(data)+(4-len(data)%4))
		copy(padded, data)
	}
	var sum uint32
	for i := 0; i < len(padded); i += 4 {
		sum += binary.BigEndian.Uint32(padded[i:])
	}
	return sum
}

// updateHeadChecksum fills in the head table's checksumAdjustment so the
// whole font sums to the sfnt magic constant.
func updateHeadChecksum(fontData []byte, headOffset uint32) {
	fontChecksum := calculateChecksum(fontData)
	adjustment := uint32(0xB1B0AFBA) - fontChecksum
	binary.BigEndian.PutUint32(fontData[headOffset+8:], adjustment)
}

// encodeUTF16BE encodes a string as UTF-16BE, surrogate-pairing codepoints
// above the BMP.
func encodeUTF16BE(s string) []byte {
	var buf bytes.Buffer
	for _, r := range s {
		if r <= 0xFFFF {
			buf.WriteByte(byte(r >> 8))
			buf.WriteByte(byte(r))
			continue
		}
		r -= 0x10000
		high := uint16(0xD800 + (r >> 10))
		low := uint16(0xDC00 + (r & 0x3FF))
		buf.WriteByte(byte(high >> 8))
		buf.WriteByte(byte(high))
		buf.WriteByte(byte(low >> 8))
		buf.WriteByte(byte(low))
	}
	return buf.Bytes()
}
