// Package ot provides OpenType font table parsing.
package ot

import (
	"encoding/binary"
)

// GlyphClass constants for GDEF glyph classification.
const (
	GlyphClassUnclassified = 0 // Unclassified glyph
	GlyphClassBase         = 1 // Base glyph (single character, spacing glyph)
	GlyphClassLigature     = 2 // Ligature glyph (multiple characters, spacing glyph)
	GlyphClassMark         = 3 // Mark glyph (non-spacing combining glyph)
	GlyphClassComponent    = 4 // Component glyph (part of a ligature)
)

// GDEF represents the Glyph Definition table. Only the parts consulted
// by GSUB skip-logic (glyph classes, mark attachment classes, mark
// glyph sets) are parsed; AttachList and LigCaretList are caret/
// rendering concerns with no GSUB consumer and are skipped over.
type GDEF struct {
	data []byte

	versionMajor uint16
	versionMinor uint16

	glyphClassDef      *ClassDef
	markAttachClassDef *ClassDef
	markGlyphSetsDef   *MarkGlyphSetsDef
}

// MarkGlyphSetsDef contains mark glyph set definitions.
type MarkGlyphSetsDef struct {
	coverages []*Coverage
}

// ParseGDEF parses the GDEF table from raw data.
func ParseGDEF(data []byte) (*GDEF, error) {
	if len(data) < 12 {
		return nil, ErrInvalidTable
	}

	versionMajor := binary.BigEndian.Uint16(data[0:])
	versionMinor := binary.BigEndian.Uint16(data[2:])

	if versionMajor != 1 || (versionMinor != 0 && versionMinor != 2 && versionMinor != 3) {
		return nil, ErrInvalidFormat
	}

	gdef := &GDEF{
		data:         data,
		versionMajor: versionMajor,
		versionMinor: versionMinor,
	}

	glyphClassDefOffset := int(binary.BigEndian.Uint16(data[4:]))
	// attachListOffset (data[6:]) and ligCaretListOffset (data[8:]) are
	// not read; GSUB never consults them.
	markAttachClassDefOffset := int(binary.BigEndian.Uint16(data[10:]))

	var markGlyphSetsDefOffset int
	if versionMinor >= 2 && len(data) >= 14 {
		markGlyphSetsDefOffset = int(binary.BigEndian.Uint16(data[12:]))
	}

	if glyphClassDefOffset != 0 {
		cd, err := ParseClassDef(data, glyphClassDefOffset)
		if err != nil {
			return nil, err
		}
		gdef.glyphClassDef = cd
	}

	if markAttachClassDefOffset != 0 {
		cd, err := ParseClassDef(data, markAttachClassDefOffset)
		if err != nil {
			return nil, err
		}
		gdef.markAttachClassDef = cd
	}

	if markGlyphSetsDefOffset != 0 {
		mgsd, err := parseMarkGlyphSetsDef(data, markGlyphSetsDefOffset)
		if err != nil {
			return nil, err
		}
		gdef.markGlyphSetsDef = mgsd
	}

	return gdef, nil
}

// parseMarkGlyphSetsDef parses the MarkGlyphSetsDef subtable.
func parseMarkGlyphSetsDef(data []byte, offset int) (*MarkGlyphSetsDef, error) {
	if offset+4 > len(data) {
		return nil, ErrInvalidOffset
	}

	format := binary.BigEndian.Uint16(data[offset:])
	if format != 1 {
		return nil, ErrInvalidFormat
	}

	markSetCount := int(binary.BigEndian.Uint16(data[offset+2:]))
	if offset+4+markSetCount*4 > len(data) {
		return nil, ErrInvalidOffset
	}

	mgsd := &MarkGlyphSetsDef{
		coverages: make([]*Coverage, markSetCount),
	}

	for i := 0; i < markSetCount; i++ {
		covOffset := int(binary.BigEndian.Uint32(data[offset+4+i*4:]))
		if covOffset == 0 {
			continue
		}

		cov, err := ParseCoverage(data, offset+covOffset)
		if err != nil {
			return nil, err
		}
		mgsd.coverages[i] = cov
	}

	return mgsd, nil
}

// Version returns the GDEF table version as (major, minor).
func (g *GDEF) Version() (uint16, uint16) {
	return g.versionMajor, g.versionMinor
}

// HasGlyphClasses returns true if the GDEF table has glyph class definitions.
func (g *GDEF) HasGlyphClasses() bool {
	return g.glyphClassDef != nil
}

// GetGlyphClass returns the glyph class for a glyph ID.
// Returns GlyphClassUnclassified (0) if no class is defined.
func (g *GDEF) GetGlyphClass(glyph GlyphID) int {
	if g.glyphClassDef == nil {
		return GlyphClassUnclassified
	}
	return g.glyphClassDef.GetClass(glyph)
}

// IsBaseGlyph returns true if the glyph is classified as a base glyph.
func (g *GDEF) IsBaseGlyph(glyph GlyphID) bool {
	return g.GetGlyphClass(glyph) == GlyphClassBase
}

// IsLigatureGlyph returns true if the glyph is classified as a ligature glyph.
func (g *GDEF) IsLigatureGlyph(glyph GlyphID) bool {
	return g.GetGlyphClass(glyph) == GlyphClassLigature
}

// IsMarkGlyph returns true if the glyph is classified as a mark glyph.
func (g *GDEF) IsMarkGlyph(glyph GlyphID) bool {
	return g.GetGlyphClass(glyph) == GlyphClassMark
}

// IsComponentGlyph returns true if the glyph is classified as a component glyph.
func (g *GDEF) IsComponentGlyph(glyph GlyphID) bool {
	return g.GetGlyphClass(glyph) == GlyphClassComponent
}

// HasMarkAttachClasses returns true if the GDEF table has mark attachment class definitions.
func (g *GDEF) HasMarkAttachClasses() bool {
	return g.markAttachClassDef != nil
}

// GetMarkAttachClass returns the mark attachment class for a glyph ID.
// Returns 0 if no class is defined.
func (g *GDEF) GetMarkAttachClass(glyph GlyphID) int {
	if g.markAttachClassDef == nil {
		return 0
	}
	return g.markAttachClassDef.GetClass(glyph)
}

// HasMarkGlyphSets returns true if the GDEF table has mark glyph sets (version >= 1.2).
func (g *GDEF) HasMarkGlyphSets() bool {
	return g.markGlyphSetsDef != nil
}

// MarkGlyphSetCount returns the number of mark glyph sets.
func (g *GDEF) MarkGlyphSetCount() int {
	if g.markGlyphSetsDef == nil {
		return 0
	}
	return len(g.markGlyphSetsDef.coverages)
}

// IsInMarkGlyphSet returns true if the glyph is in the specified mark glyph set.
func (g *GDEF) IsInMarkGlyphSet(glyph GlyphID, setIndex int) bool {
	if g.markGlyphSetsDef == nil {
		return false
	}
	if setIndex < 0 || setIndex >= len(g.markGlyphSetsDef.coverages) {
		return false
	}
	cov := g.markGlyphSetsDef.coverages[setIndex]
	if cov == nil {
		return false
	}
	return cov.GetCoverage(glyph) != NotCovered
}
