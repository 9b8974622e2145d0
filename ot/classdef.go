package ot

import (
	"encoding/binary"
	"sort"
)

// LookupFlag bits, shared by every GSUB lookup table.
const (
	LookupFlagRightToLeft         = 0x0001
	LookupFlagIgnoreBaseGlyphs    = 0x0002
	LookupFlagIgnoreLigatures     = 0x0004
	LookupFlagIgnoreMarks         = 0x0008
	LookupFlagUseMarkFilteringSet = 0x0010
	LookupFlagMarkAttachTypeMask  = 0xFF00
)

// ClassDef represents an OpenType ClassDef table, mapping glyph IDs to
// class values.
type ClassDef struct {
	format uint16
	data   []byte
	offset int

	// Format 1
	startGlyph  GlyphID
	classValues []uint16

	// Format 2
	classRanges []classRange
}

type classRange struct {
	startGlyph, endGlyph GlyphID
	class                uint16
}

// ParseClassDef parses a ClassDef table from data at the given offset.
func ParseClassDef(data []byte, offset int) (*ClassDef, error) {
	if offset+4 > len(data) {
		return nil, ErrInvalidOffset
	}

	format := binary.BigEndian.Uint16(data[offset:])
	cd := &ClassDef{format: format, data: data, offset: offset}

	switch format {
	case 1:
		startGlyph := binary.BigEndian.Uint16(data[offset+2:])
		glyphCount := int(binary.BigEndian.Uint16(data[offset+4:]))
		if offset+6+glyphCount*2 > len(data) {
			return nil, ErrInvalidOffset
		}
		cd.startGlyph = GlyphID(startGlyph)
		cd.classValues = make([]uint16, glyphCount)
		for i := 0; i < glyphCount; i++ {
			cd.classValues[i] = binary.BigEndian.Uint16(data[offset+6+i*2:])
		}
		return cd, nil

	case 2:
		rangeCount := int(binary.BigEndian.Uint16(data[offset+2:]))
		if offset+4+rangeCount*6 > len(data) {
			return nil, ErrInvalidOffset
		}
		cd.classRanges = make([]classRange, rangeCount)
		for i := 0; i < rangeCount; i++ {
			off := offset + 4 + i*6
			cd.classRanges[i] = classRange{
				startGlyph: GlyphID(binary.BigEndian.Uint16(data[off:])),
				endGlyph:   GlyphID(binary.BigEndian.Uint16(data[off+2:])),
				class:      binary.BigEndian.Uint16(data[off+4:]),
			}
		}
		return cd, nil

	default:
		return nil, ErrInvalidFormat
	}
}

// GetClass returns the class value assigned to glyph, or 0 (the default
// unassigned class) if glyph has none.
func (cd *ClassDef) GetClass(glyph GlyphID) int {
	switch cd.format {
	case 1:
		idx := int(glyph) - int(cd.startGlyph)
		if idx < 0 || idx >= len(cd.classValues) {
			return 0
		}
		return int(cd.classValues[idx])

	case 2:
		i := sort.Search(len(cd.classRanges), func(i int) bool {
			return cd.classRanges[i].endGlyph >= glyph
		})
		if i >= len(cd.classRanges) {
			return 0
		}
		r := cd.classRanges[i]
		if glyph < r.startGlyph || glyph > r.endGlyph {
			return 0
		}
		return int(r.class)

	default:
		return 0
	}
}

// Mapping builds the full glyph->class map, omitting glyphs in the
// default (0) class.
func (cd *ClassDef) Mapping() map[GlyphID]uint16 {
	m := make(map[GlyphID]uint16)
	switch cd.format {
	case 1:
		for i, class := range cd.classValues {
			if class != 0 {
				m[cd.startGlyph+GlyphID(i)] = class
			}
		}
	case 2:
		for _, r := range cd.classRanges {
			if r.class == 0 {
				continue
			}
			for g := r.startGlyph; g <= r.endGlyph; g++ {
				m[g] = r.class
			}
		}
	}
	return m
}

// ShouldSkipGlyph applies the GSUB matching rule for the given lookup
// flag and GDEF table: whether a glyph at a given cursor position is
// skipped during coverage/input/backtrack/lookahead matching.
func ShouldSkipGlyph(glyph GlyphID, lookupFlag uint16, gdef *GDEF, markFilteringSet int) bool {
	if gdef == nil {
		return false
	}

	glyphClass := gdef.GetGlyphClass(glyph)

	if lookupFlag&LookupFlagIgnoreBaseGlyphs != 0 && glyphClass == GlyphClassBase {
		return true
	}
	if lookupFlag&LookupFlagIgnoreLigatures != 0 && glyphClass == GlyphClassLigature {
		return true
	}
	if lookupFlag&LookupFlagIgnoreMarks != 0 && glyphClass == GlyphClassMark {
		return true
	}

	if glyphClass == GlyphClassMark {
		markAttachType := (lookupFlag & LookupFlagMarkAttachTypeMask) >> 8
		if markAttachType != 0 {
			markClass := gdef.GetMarkAttachClass(glyph)
			if markClass != int(markAttachType) {
				return true
			}
		}
		if lookupFlag&LookupFlagUseMarkFilteringSet != 0 {
			if markFilteringSet >= 0 && !gdef.IsInMarkGlyphSet(glyph, markFilteringSet) {
				return true
			}
		}
	}

	return false
}
