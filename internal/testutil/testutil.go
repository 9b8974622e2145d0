// Package testutil provides synthetic OpenType font assembly for tests
// that need a complete sfnt blob (font/layout package integration tests)
// rather than a single isolated subtable.
package testutil

import "encoding/binary"

// FontTable is a single named table to place in a synthetic sfnt.
type FontTable struct {
	Tag  [4]byte
	Data []byte
}

// Tag builds a table tag from its 4-character string form.
func Tag(s string) [4]byte {
	var t [4]byte
	copy(t[:], s)
	return t
}

// BuildFont assembles a minimal but well-formed sfnt binary (TrueType
// sfnt version, standard table directory) wrapping the given tables, in
// the order given. Offsets are padded to 4-byte boundaries as the spec
// requires.
func BuildFont(tables []FontTable) []byte {
	numTables := len(tables)
	headerSize := 12 + numTables*16

	offsets := make([]int, numTables)
	offset := headerSize
	for i, t := range tables {
		offsets[i] = offset
		offset += len(t.Data)
		if pad := offset % 4; pad != 0 {
			offset += 4 - pad
		}
	}

	data := make([]byte, offset)
	binary.BigEndian.PutUint32(data[0:], 0x00010000) // sfnt version: TrueType
	binary.BigEndian.PutUint16(data[4:], uint16(numTables))

	for i, t := range tables {
		rec := 12 + i*16
		copy(data[rec:], t.Tag[:])
		// checksum left as 0; no consumer in this module validates it.
		binary.BigEndian.PutUint32(data[rec+8:], uint32(offsets[i]))
		binary.BigEndian.PutUint32(data[rec+12:], uint32(len(t.Data)))
		copy(data[offsets[i]:], t.Data)
	}

	return data
}

// MinimalHead builds a head table with the given unitsPerEm and a zero bbox.
func MinimalHead(unitsPerEm uint16) []byte {
	data := make([]byte, 54)
	binary.BigEndian.PutUint32(data[0:], 0x00010000)
	binary.BigEndian.PutUint16(data[18:], unitsPerEm)
	binary.BigEndian.PutUint16(data[50:], 0) // indexToLocFormat
	return data
}

// MinimalHhea builds an hhea table with the given ascender/descender/
// lineGap and number of hmtx entries.
func MinimalHhea(ascender, descender, lineGap int16, numberOfHMetrics uint16) []byte {
	data := make([]byte, 36)
	binary.BigEndian.PutUint32(data[0:], 0x00010000)
	binary.BigEndian.PutUint16(data[4:], uint16(ascender))
	binary.BigEndian.PutUint16(data[6:], uint16(descender))
	binary.BigEndian.PutUint16(data[8:], uint16(lineGap))
	binary.BigEndian.PutUint16(data[34:], numberOfHMetrics)
	return data
}

// MinimalHmtx builds an hmtx table: one (advanceWidth, lsb) pair per glyph.
func MinimalHmtx(advances []uint16) []byte {
	data := make([]byte, len(advances)*4)
	for i, a := range advances {
		binary.BigEndian.PutUint16(data[i*4:], a)
		binary.BigEndian.PutUint16(data[i*4+2:], 0)
	}
	return data
}

// MinimalMaxp builds a maxp table (version 0.5, TrueType-compatible layout)
// declaring numGlyphs.
func MinimalMaxp(numGlyphs uint16) []byte {
	data := make([]byte, 6)
	binary.BigEndian.PutUint32(data[0:], 0x00005000)
	binary.BigEndian.PutUint16(data[4:], numGlyphs)
	return data
}

// MinimalCmapFormat4 builds a cmap table with a single format-4 subtable
// (platform 3, encoding 1) mapping each rune in order to consecutive
// glyph IDs starting at startGlyph.
func MinimalCmapFormat4(runes []rune, startGlyph uint16) []byte {
	segCountX2 := uint16((len(runes) + 1) * 2) // +1 for the terminating 0xFFFF segment
	searchRange := uint16(1)
	for searchRange*2 <= segCountX2 {
		searchRange *= 2
	}
	entrySelector := uint16(0)
	for (1 << entrySelector) < int(searchRange/2) {
		entrySelector++
	}
	rangeShift := segCountX2 - searchRange

	segCount := len(runes) + 1
	subtableLen := 14 + segCount*8 + 2 // header + 4 parallel arrays + reservedPad

	subtable := make([]byte, subtableLen)
	binary.BigEndian.PutUint16(subtable[0:], 4)
	binary.BigEndian.PutUint16(subtable[2:], uint16(subtableLen))
	binary.BigEndian.PutUint16(subtable[6:], segCountX2)
	binary.BigEndian.PutUint16(subtable[8:], searchRange)
	binary.BigEndian.PutUint16(subtable[10:], entrySelector)
	binary.BigEndian.PutUint16(subtable[12:], rangeShift)

	endCodes := 14
	startCodes := endCodes + segCount*2 + 2 // +2 for reservedPad
	idDeltas := startCodes + segCount*2
	idRangeOffsets := idDeltas + segCount*2

	for i, r := range runes {
		binary.BigEndian.PutUint16(subtable[endCodes+i*2:], uint16(r))
		binary.BigEndian.PutUint16(subtable[startCodes+i*2:], uint16(r))
		delta := int(startGlyph) + i - int(r)
		binary.BigEndian.PutUint16(subtable[idDeltas+i*2:], uint16(int16(delta)))
	}
	// Terminating segment.
	binary.BigEndian.PutUint16(subtable[endCodes+len(runes)*2:], 0xFFFF)
	binary.BigEndian.PutUint16(subtable[startCodes+len(runes)*2:], 0xFFFF)
	binary.BigEndian.PutUint16(subtable[idDeltas+len(runes)*2:], 1)
	_ = idRangeOffsets

	header := make([]byte, 4+8)
	binary.BigEndian.PutUint16(header[0:], 0) // version
	binary.BigEndian.PutUint16(header[2:], 1) // numTables
	binary.BigEndian.PutUint16(header[4:], 3) // platformID: Windows
	binary.BigEndian.PutUint16(header[6:], 1) // encodingID: Unicode BMP
	binary.BigEndian.PutUint32(header[8:], uint32(len(header)))

	return append(header, subtable...)
}
