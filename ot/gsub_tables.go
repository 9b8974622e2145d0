package ot

import (
	"encoding/binary"

	"otshape/buffer"
)

// GSUB lookup types.
const (
	GSUBTypeSingle             = 1
	GSUBTypeMultiple           = 2
	GSUBTypeAlternate          = 3
	GSUBTypeLigature           = 4
	GSUBTypeContext            = 5
	GSUBTypeChainContext       = 6
	GSUBTypeExtension          = 7
	GSUBTypeReverseChainSingle = 8
)

// GSUB represents the Glyph Substitution table: its parsed lookup list
// plus the raw data needed to resolve its ScriptList/FeatureList on demand.
type GSUB struct {
	data        []byte
	version     uint32
	scriptList  uint16
	featureList uint16
	lookupList  uint16

	lookups []*GSUBLookup
}

// ParseGSUB parses a GSUB table from data.
func ParseGSUB(data []byte) (*GSUB, error) {
	if len(data) < 10 {
		return nil, ErrInvalidTable
	}

	p := NewParser(data)

	major, _ := p.U16()
	minor, _ := p.U16()
	version := uint32(major)<<16 | uint32(minor)

	if major != 1 || (minor != 0 && minor != 1) {
		return nil, ErrInvalidFormat
	}

	scriptList, _ := p.U16()
	featureList, _ := p.U16()
	lookupList, _ := p.U16()

	gsub := &GSUB{
		data:        data,
		version:     version,
		scriptList:  scriptList,
		featureList: featureList,
		lookupList:  lookupList,
	}

	if err := gsub.parseLookupList(); err != nil {
		return nil, err
	}

	return gsub, nil
}

func (g *GSUB) parseLookupList() error {
	off := int(g.lookupList)
	if off+2 > len(g.data) {
		return ErrInvalidOffset
	}

	lookupCount := int(binary.BigEndian.Uint16(g.data[off:]))
	if off+2+lookupCount*2 > len(g.data) {
		return ErrInvalidOffset
	}

	g.lookups = make([]*GSUBLookup, lookupCount)

	for i := 0; i < lookupCount; i++ {
		lookupOff := int(binary.BigEndian.Uint16(g.data[off+2+i*2:]))
		lookup, err := parseGSUBLookup(g.data, off+lookupOff, g)
		if err != nil {
			continue
		}
		g.lookups[i] = lookup
	}

	return nil
}

// NumLookups returns the number of lookups in the GSUB table.
func (g *GSUB) NumLookups() int {
	return len(g.lookups)
}

// GetLookup returns the lookup at the given index, or nil if out of range
// or unparseable.
func (g *GSUB) GetLookup(index int) *GSUBLookup {
	if index < 0 || index >= len(g.lookups) {
		return nil
	}
	return g.lookups[index]
}

// ParseScriptList parses this GSUB table's ScriptList.
func (g *GSUB) ParseScriptList() (*ScriptList, error) {
	return ParseScriptList(g.data, int(g.scriptList))
}

// ParseFeatureList parses this GSUB table's FeatureList.
func (g *GSUB) ParseFeatureList() (*FeatureList, error) {
	return ParseFeatureList(g.data, int(g.featureList))
}

// GSUBLookup represents a GSUB lookup table.
type GSUBLookup struct {
	Type       uint16
	Flag       uint16
	Subtables  []GSUBSubtable
	MarkFilter uint16 // valid when Flag & LookupFlagUseMarkFilteringSet != 0

	digest *buffer.SetDigest
}

// Digest returns a Bloom filter over every glyph this lookup's subtables
// could possibly match at the first input position, or nil if a subtable's
// shape doesn't expose a coverage table precise enough to build one (the
// caller must then try every subtable at every unskipped position, same as
// without a digest). HarfBuzz builds exactly this kind of digest per lookup
// to skip the vast majority of cursor positions without ever touching the
// subtable matchers.
func (l *GSUBLookup) Digest() *buffer.SetDigest {
	return l.digest
}

// primaryCoverage returns the coverage table consulted against the first
// input position, the same one GetCoverage calls in the engine's match
// loop, or nil if the subtable's format doesn't have one up front.
func primaryCoverage(sub GSUBSubtable) *Coverage {
	switch s := sub.(type) {
	case *SingleSubst:
		return s.Coverage()
	case *MultipleSubst:
		return s.Coverage()
	case *AlternateSubst:
		return s.Coverage()
	case *LigatureSubst:
		return s.Coverage()
	case *ContextSubst:
		if s.Format == 3 {
			if len(s.InputCoverages) == 0 {
				return nil
			}
			return s.InputCoverages[0]
		}
		return s.Coverage
	case *ChainContextSubst:
		if s.Format == 3 {
			if len(s.InputCoverages) == 0 {
				return nil
			}
			return s.InputCoverages[0]
		}
		return s.Coverage
	case *ReverseChainSingleSubst:
		return s.Coverage
	default:
		return nil
	}
}

func buildLookupDigest(subtables []GSUBSubtable) *buffer.SetDigest {
	d := &buffer.SetDigest{}
	for _, sub := range subtables {
		cov := primaryCoverage(sub)
		if cov == nil {
			return nil
		}
		for _, g := range cov.Glyphs() {
			d.Add(buffer.Codepoint(g))
		}
	}
	return d
}

// GSUBSubtable is the sum type of the eight lookup subtable shapes. Each
// concrete type exposes only data accessors; matching and substitution
// are the engine's responsibility.
type GSUBSubtable interface {
	gsubSubtable()
}

func (*SingleSubst) gsubSubtable()             {}
func (*MultipleSubst) gsubSubtable()            {}
func (*AlternateSubst) gsubSubtable()           {}
func (*LigatureSubst) gsubSubtable()            {}
func (*ContextSubst) gsubSubtable()             {}
func (*ChainContextSubst) gsubSubtable()        {}
func (*ReverseChainSingleSubst) gsubSubtable()  {}

func parseGSUBLookup(data []byte, offset int, gsub *GSUB) (*GSUBLookup, error) {
	if offset+6 > len(data) {
		return nil, ErrInvalidOffset
	}

	lookupType := binary.BigEndian.Uint16(data[offset:])
	lookupFlag := binary.BigEndian.Uint16(data[offset+2:])
	subtableCount := int(binary.BigEndian.Uint16(data[offset+4:]))

	if offset+6+subtableCount*2 > len(data) {
		return nil, ErrInvalidOffset
	}

	lookup := &GSUBLookup{
		Type:      lookupType,
		Flag:      lookupFlag,
		Subtables: make([]GSUBSubtable, 0, subtableCount),
	}

	markFilterOff := 6 + subtableCount*2
	if lookupFlag&LookupFlagUseMarkFilteringSet != 0 {
		if offset+markFilterOff+2 > len(data) {
			return nil, ErrInvalidOffset
		}
		lookup.MarkFilter = binary.BigEndian.Uint16(data[offset+markFilterOff:])
	}

	for i := 0; i < subtableCount; i++ {
		subtableOff := int(binary.BigEndian.Uint16(data[offset+6+i*2:]))
		actualType := lookupType

		// Extension lookups (type 7) are resolved transparently here, at
		// parse time, so the apply-time dispatch never special-cases them.
		if lookupType == GSUBTypeExtension {
			extOff := offset + subtableOff
			if extOff+8 > len(data) {
				continue
			}
			extFormat := binary.BigEndian.Uint16(data[extOff:])
			if extFormat != 1 {
				continue
			}
			actualType = binary.BigEndian.Uint16(data[extOff+2:])
			extOffset := binary.BigEndian.Uint32(data[extOff+4:])
			subtableOff += int(extOffset)
		}

		subtable, err := parseGSUBSubtable(data, offset+subtableOff, actualType, gsub)
		if err != nil {
			continue
		}
		if subtable != nil {
			lookup.Subtables = append(lookup.Subtables, subtable)
		}
	}

	lookup.digest = buildLookupDigest(lookup.Subtables)

	return lookup, nil
}

func parseGSUBSubtable(data []byte, offset int, lookupType uint16, gsub *GSUB) (GSUBSubtable, error) {
	if offset+2 > len(data) {
		return nil, ErrInvalidOffset
	}

	switch lookupType {
	case GSUBTypeSingle:
		return parseSingleSubst(data, offset)
	case GSUBTypeMultiple:
		return parseMultipleSubst(data, offset)
	case GSUBTypeAlternate:
		return parseAlternateSubst(data, offset)
	case GSUBTypeLigature:
		return parseLigatureSubst(data, offset)
	case GSUBTypeContext:
		return parseContextSubst(data, offset, gsub)
	case GSUBTypeChainContext:
		return parseChainContextSubst(data, offset, gsub)
	case GSUBTypeReverseChainSingle:
		return parseReverseChainSingleSubst(data, offset)
	default:
		return nil, nil
	}
}

// --- Single Substitution (type 1) ---

// SingleSubst represents a Single Substitution subtable: 1 glyph -> 1 glyph.
type SingleSubst struct {
	format   uint16
	coverage *Coverage

	delta       int16    // format 1
	substitutes []GlyphID // format 2
}

func parseSingleSubst(data []byte, offset int) (*SingleSubst, error) {
	if offset+6 > len(data) {
		return nil, ErrInvalidOffset
	}

	format := binary.BigEndian.Uint16(data[offset:])
	coverageOff := int(binary.BigEndian.Uint16(data[offset+2:]))

	coverage, err := ParseCoverage(data, offset+coverageOff)
	if err != nil {
		return nil, err
	}

	s := &SingleSubst{format: format, coverage: coverage}

	switch format {
	case 1:
		s.delta = int16(binary.BigEndian.Uint16(data[offset+4:]))
		return s, nil

	case 2:
		glyphCount := int(binary.BigEndian.Uint16(data[offset+4:]))
		if offset+6+glyphCount*2 > len(data) {
			return nil, ErrInvalidOffset
		}
		s.substitutes = make([]GlyphID, glyphCount)
		for i := 0; i < glyphCount; i++ {
			s.substitutes[i] = GlyphID(binary.BigEndian.Uint16(data[offset+6+i*2:]))
		}
		return s, nil

	default:
		return nil, ErrInvalidFormat
	}
}

// Coverage returns the input coverage table.
func (s *SingleSubst) Coverage() *Coverage { return s.coverage }

// Substitute returns the output glyph for an input glyph already known to
// be covered, given its coverage index.
func (s *SingleSubst) Substitute(glyph GlyphID, coverageIndex uint32) (GlyphID, bool) {
	switch s.format {
	case 1:
		return GlyphID(int(glyph) + int(s.delta)), true
	case 2:
		if int(coverageIndex) >= len(s.substitutes) {
			return 0, false
		}
		return s.substitutes[coverageIndex], true
	default:
		return 0, false
	}
}

// Mapping returns all input->output glyph mappings for this subtable.
func (s *SingleSubst) Mapping() map[GlyphID]GlyphID {
	result := make(map[GlyphID]GlyphID)
	glyphs := s.coverage.Glyphs()

	switch s.format {
	case 1:
		for _, glyph := range glyphs {
			result[glyph] = GlyphID(int(glyph) + int(s.delta))
		}
	case 2:
		for i, glyph := range glyphs {
			if i < len(s.substitutes) {
				result[glyph] = s.substitutes[i]
			}
		}
	}
	return result
}

// --- Multiple Substitution (type 2) ---

// MultipleSubst represents a Multiple Substitution subtable: 1 glyph -> N glyphs.
type MultipleSubst struct {
	coverage  *Coverage
	sequences [][]GlyphID
}

func parseMultipleSubst(data []byte, offset int) (*MultipleSubst, error) {
	if offset+6 > len(data) {
		return nil, ErrInvalidOffset
	}

	format := binary.BigEndian.Uint16(data[offset:])
	if format != 1 {
		return nil, ErrInvalidFormat
	}

	coverageOff := int(binary.BigEndian.Uint16(data[offset+2:]))
	coverage, err := ParseCoverage(data, offset+coverageOff)
	if err != nil {
		return nil, err
	}

	seqCount := int(binary.BigEndian.Uint16(data[offset+4:]))
	if offset+6+seqCount*2 > len(data) {
		return nil, ErrInvalidOffset
	}

	m := &MultipleSubst{coverage: coverage, sequences: make([][]GlyphID, seqCount)}

	for i := 0; i < seqCount; i++ {
		seqOff := int(binary.BigEndian.Uint16(data[offset+6+i*2:]))
		absOff := offset + seqOff
		if absOff+2 > len(data) {
			continue
		}
		glyphCount := int(binary.BigEndian.Uint16(data[absOff:]))
		if absOff+2+glyphCount*2 > len(data) {
			continue
		}
		seq := make([]GlyphID, glyphCount)
		for j := 0; j < glyphCount; j++ {
			seq[j] = GlyphID(binary.BigEndian.Uint16(data[absOff+2+j*2:]))
		}
		m.sequences[i] = seq
	}

	return m, nil
}

// Coverage returns the input coverage table.
func (m *MultipleSubst) Coverage() *Coverage { return m.coverage }

// Sequence returns the replacement sequence for a covered glyph's coverage index.
func (m *MultipleSubst) Sequence(coverageIndex uint32) ([]GlyphID, bool) {
	if int(coverageIndex) >= len(m.sequences) {
		return nil, false
	}
	return m.sequences[coverageIndex], true
}

// Mapping returns the input->output mapping for glyph closure computation.
func (m *MultipleSubst) Mapping() map[GlyphID][]GlyphID {
	result := make(map[GlyphID][]GlyphID)
	glyphs := m.coverage.Glyphs()
	for i, glyph := range glyphs {
		if i < len(m.sequences) {
			result[glyph] = m.sequences[i]
		}
	}
	return result
}

// --- Alternate Substitution (type 3) ---

// AlternateSubst represents an Alternate Substitution subtable: 1 glyph ->
// one of a set of alternatives.
type AlternateSubst struct {
	coverage      *Coverage
	alternateSets [][]GlyphID
}

func parseAlternateSubst(data []byte, offset int) (*AlternateSubst, error) {
	if offset+6 > len(data) {
		return nil, ErrInvalidOffset
	}

	format := binary.BigEndian.Uint16(data[offset:])
	if format != 1 {
		return nil, ErrInvalidFormat
	}

	coverageOff := int(binary.BigEndian.Uint16(data[offset+2:]))
	coverage, err := ParseCoverage(data, offset+coverageOff)
	if err != nil {
		return nil, err
	}

	altSetCount := int(binary.BigEndian.Uint16(data[offset+4:]))
	if offset+6+altSetCount*2 > len(data) {
		return nil, ErrInvalidOffset
	}

	a := &AlternateSubst{coverage: coverage, alternateSets: make([][]GlyphID, altSetCount)}

	for i := 0; i < altSetCount; i++ {
		altSetOff := int(binary.BigEndian.Uint16(data[offset+6+i*2:]))
		absOff := offset + altSetOff
		if absOff+2 > len(data) {
			continue
		}
		glyphCount := int(binary.BigEndian.Uint16(data[absOff:]))
		if absOff+2+glyphCount*2 > len(data) {
			continue
		}
		alts := make([]GlyphID, glyphCount)
		for j := 0; j < glyphCount; j++ {
			alts[j] = GlyphID(binary.BigEndian.Uint16(data[absOff+2+j*2:]))
		}
		a.alternateSets[i] = alts
	}

	return a, nil
}

// Coverage returns the input coverage table.
func (a *AlternateSubst) Coverage() *Coverage { return a.coverage }

// GetAlternates returns the available alternates for a glyph, or nil if
// the glyph is not covered.
func (a *AlternateSubst) GetAlternates(glyph GlyphID) []GlyphID {
	coverageIndex := a.coverage.GetCoverage(glyph)
	if coverageIndex == NotCovered || int(coverageIndex) >= len(a.alternateSets) {
		return nil
	}
	return a.alternateSets[coverageIndex]
}

// Mapping returns the input->alternates mapping for glyph closure computation.
func (a *AlternateSubst) Mapping() map[GlyphID][]GlyphID {
	result := make(map[GlyphID][]GlyphID)
	glyphs := a.coverage.Glyphs()
	for i, glyph := range glyphs {
		if i < len(a.alternateSets) {
			result[glyph] = a.alternateSets[i]
		}
	}
	return result
}

// --- Ligature Substitution (type 4) ---

// LigatureSubst represents a Ligature Substitution subtable: N glyphs -> 1 glyph.
type LigatureSubst struct {
	coverage     *Coverage
	ligatureSets [][]Ligature
}

// Ligature is a single ligature rule: a first-glyph match via coverage,
// plus the remaining component glyphs and the resulting ligature glyph.
type Ligature struct {
	LigGlyph   GlyphID
	Components []GlyphID // components after the first, which coverage matches
}

func (l *LigatureSubst) Coverage() *Coverage          { return l.coverage }
func (l *LigatureSubst) LigatureSets() [][]Ligature   { return l.ligatureSets }

func parseLigatureSubst(data []byte, offset int) (*LigatureSubst, error) {
	if offset+6 > len(data) {
		return nil, ErrInvalidOffset
	}

	format := binary.BigEndian.Uint16(data[offset:])
	if format != 1 {
		return nil, ErrInvalidFormat
	}

	coverageOff := int(binary.BigEndian.Uint16(data[offset+2:]))
	coverage, err := ParseCoverage(data, offset+coverageOff)
	if err != nil {
		return nil, err
	}

	ligSetCount := int(binary.BigEndian.Uint16(data[offset+4:]))
	if offset+6+ligSetCount*2 > len(data) {
		return nil, ErrInvalidOffset
	}

	l := &LigatureSubst{coverage: coverage, ligatureSets: make([][]Ligature, ligSetCount)}

	for i := 0; i < ligSetCount; i++ {
		ligSetOff := int(binary.BigEndian.Uint16(data[offset+6+i*2:]))
		ligatures, err := parseLigatureSet(data, offset+ligSetOff)
		if err != nil {
			continue
		}
		l.ligatureSets[i] = ligatures
	}

	return l, nil
}

func parseLigatureSet(data []byte, offset int) ([]Ligature, error) {
	if offset+2 > len(data) {
		return nil, ErrInvalidOffset
	}

	ligCount := int(binary.BigEndian.Uint16(data[offset:]))
	if offset+2+ligCount*2 > len(data) {
		return nil, ErrInvalidOffset
	}

	ligatures := make([]Ligature, 0, ligCount)

	for i := 0; i < ligCount; i++ {
		ligOff := int(binary.BigEndian.Uint16(data[offset+2+i*2:]))
		lig, err := parseLigature(data, offset+ligOff)
		if err != nil {
			continue
		}
		ligatures = append(ligatures, lig)
	}

	return ligatures, nil
}

func parseLigature(data []byte, offset int) (Ligature, error) {
	if offset+4 > len(data) {
		return Ligature{}, ErrInvalidOffset
	}

	ligGlyph := GlyphID(binary.BigEndian.Uint16(data[offset:]))
	compCount := int(binary.BigEndian.Uint16(data[offset+2:]))

	numComponents := compCount - 1
	if numComponents < 0 {
		numComponents = 0
	}

	if offset+4+numComponents*2 > len(data) {
		return Ligature{}, ErrInvalidOffset
	}

	lig := Ligature{LigGlyph: ligGlyph, Components: make([]GlyphID, numComponents)}
	for i := 0; i < numComponents; i++ {
		lig.Components[i] = GlyphID(binary.BigEndian.Uint16(data[offset+4+i*2:]))
	}

	return lig, nil
}

// --- Context Substitution (type 5) ---

// ContextSubst represents a Context Substitution subtable (formats 1-3).
type ContextSubst struct {
	Format uint16
	GSUB   *GSUB

	// Format 1
	Coverage *Coverage
	RuleSets [][]ContextRule // indexed by coverage index (format 1) or class (format 2)

	// Format 2
	ClassDef *ClassDef

	// Format 3
	InputCoverages []*Coverage
	LookupRecords  []LookupRecord
}

// ContextRule is a single glyph-context or class-context rule.
type ContextRule struct {
	Input         []GlyphID // starting from the second glyph
	LookupRecords []LookupRecord
}

func parseContextSubst(data []byte, offset int, gsub *GSUB) (*ContextSubst, error) {
	if offset+2 > len(data) {
		return nil, ErrInvalidOffset
	}

	format := binary.BigEndian.Uint16(data[offset:])

	switch format {
	case 1:
		return parseContextFormat1(data, offset, gsub)
	case 2:
		return parseContextFormat2(data, offset, gsub)
	case 3:
		return parseContextFormat3(data, offset, gsub)
	default:
		return nil, ErrInvalidFormat
	}
}

func parseContextFormat1(data []byte, offset int, gsub *GSUB) (*ContextSubst, error) {
	if offset+6 > len(data) {
		return nil, ErrInvalidOffset
	}

	coverageOff := int(binary.BigEndian.Uint16(data[offset+2:]))
	ruleSetCount := int(binary.BigEndian.Uint16(data[offset+4:]))

	if offset+6+ruleSetCount*2 > len(data) {
		return nil, ErrInvalidOffset
	}

	coverage, err := ParseCoverage(data, offset+coverageOff)
	if err != nil {
		return nil, err
	}

	cs := &ContextSubst{Format: 1, GSUB: gsub, Coverage: coverage, RuleSets: make([][]ContextRule, ruleSetCount)}

	for i := 0; i < ruleSetCount; i++ {
		ruleSetOff := int(binary.BigEndian.Uint16(data[offset+6+i*2:]))
		if ruleSetOff == 0 {
			continue
		}
		rules, err := parseContextRuleSet(data, offset+ruleSetOff)
		if err != nil {
			continue
		}
		cs.RuleSets[i] = rules
	}

	return cs, nil
}

func parseContextRuleSet(data []byte, offset int) ([]ContextRule, error) {
	if offset+2 > len(data) {
		return nil, ErrInvalidOffset
	}

	ruleCount := int(binary.BigEndian.Uint16(data[offset:]))
	if offset+2+ruleCount*2 > len(data) {
		return nil, ErrInvalidOffset
	}

	rules := make([]ContextRule, 0, ruleCount)
	for i := 0; i < ruleCount; i++ {
		ruleOff := int(binary.BigEndian.Uint16(data[offset+2+i*2:]))
		rule, err := parseContextRule(data, offset+ruleOff)
		if err != nil {
			continue
		}
		rules = append(rules, rule)
	}

	return rules, nil
}

func parseContextRule(data []byte, offset int) (ContextRule, error) {
	var rule ContextRule

	if offset+4 > len(data) {
		return rule, ErrInvalidOffset
	}

	inputCount := int(binary.BigEndian.Uint16(data[offset:]))
	lookupCount := int(binary.BigEndian.Uint16(data[offset+2:]))

	inputLen := inputCount - 1
	if inputLen < 0 {
		inputLen = 0
	}

	off := offset + 4
	if off+inputLen*2 > len(data) {
		return rule, ErrInvalidOffset
	}

	rule.Input = make([]GlyphID, inputLen)
	for i := 0; i < inputLen; i++ {
		rule.Input[i] = GlyphID(binary.BigEndian.Uint16(data[off+i*2:]))
	}
	off += inputLen * 2

	if off+lookupCount*4 > len(data) {
		return rule, ErrInvalidOffset
	}

	rule.LookupRecords = make([]LookupRecord, lookupCount)
	for i := 0; i < lookupCount; i++ {
		rule.LookupRecords[i].SequenceIndex = binary.BigEndian.Uint16(data[off+i*4:])
		rule.LookupRecords[i].LookupIndex = binary.BigEndian.Uint16(data[off+i*4+2:])
	}

	return rule, nil
}

func parseContextFormat2(data []byte, offset int, gsub *GSUB) (*ContextSubst, error) {
	if offset+8 > len(data) {
		return nil, ErrInvalidOffset
	}

	coverageOff := int(binary.BigEndian.Uint16(data[offset+2:]))
	classDefOff := int(binary.BigEndian.Uint16(data[offset+4:]))
	ruleSetCount := int(binary.BigEndian.Uint16(data[offset+6:]))

	if offset+8+ruleSetCount*2 > len(data) {
		return nil, ErrInvalidOffset
	}

	coverage, err := ParseCoverage(data, offset+coverageOff)
	if err != nil {
		return nil, err
	}

	classDef, err := ParseClassDef(data, offset+classDefOff)
	if err != nil {
		return nil, err
	}

	cs := &ContextSubst{
		Format: 2, GSUB: gsub, Coverage: coverage, ClassDef: classDef,
		RuleSets: make([][]ContextRule, ruleSetCount),
	}

	for i := 0; i < ruleSetCount; i++ {
		ruleSetOff := int(binary.BigEndian.Uint16(data[offset+8+i*2:]))
		if ruleSetOff == 0 {
			continue
		}
		rules, err := parseContextRuleSet(data, offset+ruleSetOff)
		if err != nil {
			continue
		}
		cs.RuleSets[i] = rules
	}

	return cs, nil
}

func parseContextFormat3(data []byte, offset int, gsub *GSUB) (*ContextSubst, error) {
	if offset+6 > len(data) {
		return nil, ErrInvalidOffset
	}

	glyphCount := int(binary.BigEndian.Uint16(data[offset+2:]))
	lookupCount := int(binary.BigEndian.Uint16(data[offset+4:]))

	if offset+6+glyphCount*2+lookupCount*4 > len(data) {
		return nil, ErrInvalidOffset
	}

	inputCoverages := make([]*Coverage, glyphCount)
	off := offset + 6
	for i := 0; i < glyphCount; i++ {
		covOff := int(binary.BigEndian.Uint16(data[off+i*2:]))
		cov, err := ParseCoverage(data, offset+covOff)
		if err != nil {
			return nil, err
		}
		inputCoverages[i] = cov
	}
	off += glyphCount * 2

	lookupRecords := make([]LookupRecord, lookupCount)
	for i := 0; i < lookupCount; i++ {
		lookupRecords[i].SequenceIndex = binary.BigEndian.Uint16(data[off+i*4:])
		lookupRecords[i].LookupIndex = binary.BigEndian.Uint16(data[off+i*4+2:])
	}

	return &ContextSubst{Format: 3, GSUB: gsub, InputCoverages: inputCoverages, LookupRecords: lookupRecords}, nil
}

// --- Chained Context Substitution (type 6) ---

// ChainContextSubst represents a Chaining Context Substitution subtable
// (formats 1-3): substitution keyed off backtrack/input/lookahead context.
type ChainContextSubst struct {
	Format uint16
	GSUB   *GSUB

	// Format 1
	Coverage      *Coverage
	ChainRuleSets [][]ChainRule // indexed by coverage index (format 1) or input class (format 2)

	// Format 2
	BacktrackClassDef *ClassDef
	InputClassDef     *ClassDef
	LookaheadClassDef *ClassDef

	// Format 3
	BacktrackCoverages []*Coverage
	InputCoverages     []*Coverage
	LookaheadCoverages []*Coverage
	LookupRecords      []LookupRecord
}

// ChainRule is a single chaining context rule.
type ChainRule struct {
	Backtrack     []GlyphID // in reverse reading order, nearest glyph first
	Input         []GlyphID // starting from the second glyph
	Lookahead     []GlyphID
	LookupRecords []LookupRecord
}

func parseChainContextSubst(data []byte, offset int, gsub *GSUB) (*ChainContextSubst, error) {
	if offset+2 > len(data) {
		return nil, ErrInvalidOffset
	}

	format := binary.BigEndian.Uint16(data[offset:])

	switch format {
	case 1:
		return parseChainContextFormat1(data, offset, gsub)
	case 2:
		return parseChainContextFormat2(data, offset, gsub)
	case 3:
		return parseChainContextFormat3(data, offset, gsub)
	default:
		return nil, ErrInvalidFormat
	}
}

func parseChainContextFormat1(data []byte, offset int, gsub *GSUB) (*ChainContextSubst, error) {
	if offset+6 > len(data) {
		return nil, ErrInvalidOffset
	}

	coverageOff := int(binary.BigEndian.Uint16(data[offset+2:]))
	chainRuleSetCount := int(binary.BigEndian.Uint16(data[offset+4:]))

	if offset+6+chainRuleSetCount*2 > len(data) {
		return nil, ErrInvalidOffset
	}

	coverage, err := ParseCoverage(data, offset+coverageOff)
	if err != nil {
		return nil, err
	}

	ccs := &ChainContextSubst{
		Format: 1, GSUB: gsub, Coverage: coverage,
		ChainRuleSets: make([][]ChainRule, chainRuleSetCount),
	}

	for i := 0; i < chainRuleSetCount; i++ {
		ruleSetOff := int(binary.BigEndian.Uint16(data[offset+6+i*2:]))
		if ruleSetOff == 0 {
			continue
		}
		rules, err := parseChainRuleSet(data, offset+ruleSetOff)
		if err != nil {
			continue
		}
		ccs.ChainRuleSets[i] = rules
	}

	return ccs, nil
}

func parseChainRuleSet(data []byte, offset int) ([]ChainRule, error) {
	if offset+2 > len(data) {
		return nil, ErrInvalidOffset
	}

	ruleCount := int(binary.BigEndian.Uint16(data[offset:]))
	if offset+2+ruleCount*2 > len(data) {
		return nil, ErrInvalidOffset
	}

	rules := make([]ChainRule, 0, ruleCount)
	for i := 0; i < ruleCount; i++ {
		ruleOff := int(binary.BigEndian.Uint16(data[offset+2+i*2:]))
		rule, err := parseChainRule(data, offset+ruleOff)
		if err != nil {
			continue
		}
		rules = append(rules, rule)
	}

	return rules, nil
}

func parseChainRule(data []byte, offset int) (ChainRule, error) {
	var rule ChainRule
	off := offset

	if off+2 > len(data) {
		return rule, ErrInvalidOffset
	}
	backtrackCount := int(binary.BigEndian.Uint16(data[off:]))
	off += 2
	if off+backtrackCount*2 > len(data) {
		return rule, ErrInvalidOffset
	}
	rule.Backtrack = make([]GlyphID, backtrackCount)
	for i := 0; i < backtrackCount; i++ {
		rule.Backtrack[i] = GlyphID(binary.BigEndian.Uint16(data[off+i*2:]))
	}
	off += backtrackCount * 2

	if off+2 > len(data) {
		return rule, ErrInvalidOffset
	}
	inputCount := int(binary.BigEndian.Uint16(data[off:]))
	off += 2
	inputLen := inputCount - 1
	if inputLen < 0 {
		inputLen = 0
	}
	if off+inputLen*2 > len(data) {
		return rule, ErrInvalidOffset
	}
	rule.Input = make([]GlyphID, inputLen)
	for i := 0; i < inputLen; i++ {
		rule.Input[i] = GlyphID(binary.BigEndian.Uint16(data[off+i*2:]))
	}
	off += inputLen * 2

	if off+2 > len(data) {
		return rule, ErrInvalidOffset
	}
	lookaheadCount := int(binary.BigEndian.Uint16(data[off:]))
	off += 2
	if off+lookaheadCount*2 > len(data) {
		return rule, ErrInvalidOffset
	}
	rule.Lookahead = make([]GlyphID, lookaheadCount)
	for i := 0; i < lookaheadCount; i++ {
		rule.Lookahead[i] = GlyphID(binary.BigEndian.Uint16(data[off+i*2:]))
	}
	off += lookaheadCount * 2

	if off+2 > len(data) {
		return rule, ErrInvalidOffset
	}
	lookupCount := int(binary.BigEndian.Uint16(data[off:]))
	off += 2
	if off+lookupCount*4 > len(data) {
		return rule, ErrInvalidOffset
	}
	rule.LookupRecords = make([]LookupRecord, lookupCount)
	for i := 0; i < lookupCount; i++ {
		rule.LookupRecords[i].SequenceIndex = binary.BigEndian.Uint16(data[off+i*4:])
		rule.LookupRecords[i].LookupIndex = binary.BigEndian.Uint16(data[off+i*4+2:])
	}

	return rule, nil
}

func parseChainContextFormat2(data []byte, offset int, gsub *GSUB) (*ChainContextSubst, error) {
	if offset+12 > len(data) {
		return nil, ErrInvalidOffset
	}

	coverageOff := int(binary.BigEndian.Uint16(data[offset+2:]))
	backtrackClassDefOff := int(binary.BigEndian.Uint16(data[offset+4:]))
	inputClassDefOff := int(binary.BigEndian.Uint16(data[offset+6:]))
	lookaheadClassDefOff := int(binary.BigEndian.Uint16(data[offset+8:]))
	chainRuleSetCount := int(binary.BigEndian.Uint16(data[offset+10:]))

	if offset+12+chainRuleSetCount*2 > len(data) {
		return nil, ErrInvalidOffset
	}

	coverage, err := ParseCoverage(data, offset+coverageOff)
	if err != nil {
		return nil, err
	}
	backtrackClassDef, err := ParseClassDef(data, offset+backtrackClassDefOff)
	if err != nil {
		return nil, err
	}
	inputClassDef, err := ParseClassDef(data, offset+inputClassDefOff)
	if err != nil {
		return nil, err
	}
	lookaheadClassDef, err := ParseClassDef(data, offset+lookaheadClassDefOff)
	if err != nil {
		return nil, err
	}

	ccs := &ChainContextSubst{
		Format: 2, GSUB: gsub, Coverage: coverage,
		BacktrackClassDef: backtrackClassDef,
		InputClassDef:     inputClassDef,
		LookaheadClassDef: lookaheadClassDef,
		ChainRuleSets:     make([][]ChainRule, chainRuleSetCount),
	}

	for i := 0; i < chainRuleSetCount; i++ {
		ruleSetOff := int(binary.BigEndian.Uint16(data[offset+12+i*2:]))
		if ruleSetOff == 0 {
			continue
		}
		rules, err := parseChainRuleSet(data, offset+ruleSetOff)
		if err != nil {
			continue
		}
		ccs.ChainRuleSets[i] = rules
	}

	return ccs, nil
}

func parseChainContextFormat3(data []byte, offset int, gsub *GSUB) (*ChainContextSubst, error) {
	off := offset + 2

	if off+2 > len(data) {
		return nil, ErrInvalidOffset
	}
	backtrackCount := int(binary.BigEndian.Uint16(data[off:]))
	off += 2
	if off+backtrackCount*2 > len(data) {
		return nil, ErrInvalidOffset
	}
	backtrackCoverages := make([]*Coverage, backtrackCount)
	for i := 0; i < backtrackCount; i++ {
		covOff := int(binary.BigEndian.Uint16(data[off+i*2:]))
		cov, err := ParseCoverage(data, offset+covOff)
		if err != nil {
			return nil, err
		}
		backtrackCoverages[i] = cov
	}
	off += backtrackCount * 2

	if off+2 > len(data) {
		return nil, ErrInvalidOffset
	}
	inputCount := int(binary.BigEndian.Uint16(data[off:]))
	off += 2
	if off+inputCount*2 > len(data) {
		return nil, ErrInvalidOffset
	}
	inputCoverages := make([]*Coverage, inputCount)
	for i := 0; i < inputCount; i++ {
		covOff := int(binary.BigEndian.Uint16(data[off+i*2:]))
		cov, err := ParseCoverage(data, offset+covOff)
		if err != nil {
			return nil, err
		}
		inputCoverages[i] = cov
	}
	off += inputCount * 2

	if off+2 > len(data) {
		return nil, ErrInvalidOffset
	}
	lookaheadCount := int(binary.BigEndian.Uint16(data[off:]))
	off += 2
	if off+lookaheadCount*2 > len(data) {
		return nil, ErrInvalidOffset
	}
	lookaheadCoverages := make([]*Coverage, lookaheadCount)
	for i := 0; i < lookaheadCount; i++ {
		covOff := int(binary.BigEndian.Uint16(data[off+i*2:]))
		cov, err := ParseCoverage(data, offset+covOff)
		if err != nil {
			return nil, err
		}
		lookaheadCoverages[i] = cov
	}
	off += lookaheadCount * 2

	if off+2 > len(data) {
		return nil, ErrInvalidOffset
	}
	lookupCount := int(binary.BigEndian.Uint16(data[off:]))
	off += 2
	if off+lookupCount*4 > len(data) {
		return nil, ErrInvalidOffset
	}
	lookupRecords := make([]LookupRecord, lookupCount)
	for i := 0; i < lookupCount; i++ {
		lookupRecords[i].SequenceIndex = binary.BigEndian.Uint16(data[off+i*4:])
		lookupRecords[i].LookupIndex = binary.BigEndian.Uint16(data[off+i*4+2:])
	}

	return &ChainContextSubst{
		Format: 3, GSUB: gsub,
		BacktrackCoverages: backtrackCoverages,
		InputCoverages:     inputCoverages,
		LookaheadCoverages: lookaheadCoverages,
		LookupRecords:      lookupRecords,
	}, nil
}

// --- Reverse Chained Context Single Substitution (type 8) ---

// ReverseChainSingleSubst represents a Reverse Chaining Context Single
// Substitution subtable: applied right-to-left, one glyph at a time, with
// no nested lookups.
type ReverseChainSingleSubst struct {
	Coverage           *Coverage
	BacktrackCoverages []*Coverage
	LookaheadCoverages []*Coverage
	Substitutes        []GlyphID
}

func parseReverseChainSingleSubst(data []byte, offset int) (*ReverseChainSingleSubst, error) {
	if offset+6 > len(data) {
		return nil, ErrInvalidOffset
	}

	format := binary.BigEndian.Uint16(data[offset:])
	if format != 1 {
		return nil, ErrInvalidFormat
	}

	coverageOff := int(binary.BigEndian.Uint16(data[offset+2:]))
	coverage, err := ParseCoverage(data, offset+coverageOff)
	if err != nil {
		return nil, err
	}

	off := offset + 4

	if off+2 > len(data) {
		return nil, ErrInvalidOffset
	}
	backtrackCount := int(binary.BigEndian.Uint16(data[off:]))
	off += 2
	if off+backtrackCount*2 > len(data) {
		return nil, ErrInvalidOffset
	}
	backtrackCoverages := make([]*Coverage, backtrackCount)
	for i := 0; i < backtrackCount; i++ {
		covOff := int(binary.BigEndian.Uint16(data[off+i*2:]))
		cov, err := ParseCoverage(data, offset+covOff)
		if err != nil {
			return nil, err
		}
		backtrackCoverages[i] = cov
	}
	off += backtrackCount * 2

	if off+2 > len(data) {
		return nil, ErrInvalidOffset
	}
	lookaheadCount := int(binary.BigEndian.Uint16(data[off:]))
	off += 2
	if off+lookaheadCount*2 > len(data) {
		return nil, ErrInvalidOffset
	}
	lookaheadCoverages := make([]*Coverage, lookaheadCount)
	for i := 0; i < lookaheadCount; i++ {
		covOff := int(binary.BigEndian.Uint16(data[off+i*2:]))
		cov, err := ParseCoverage(data, offset+covOff)
		if err != nil {
			return nil, err
		}
		lookaheadCoverages[i] = cov
	}
	off += lookaheadCount * 2

	if off+2 > len(data) {
		return nil, ErrInvalidOffset
	}
	substituteCount := int(binary.BigEndian.Uint16(data[off:]))
	off += 2
	if off+substituteCount*2 > len(data) {
		return nil, ErrInvalidOffset
	}
	substitutes := make([]GlyphID, substituteCount)
	for i := 0; i < substituteCount; i++ {
		substitutes[i] = GlyphID(binary.BigEndian.Uint16(data[off+i*2:]))
	}

	return &ReverseChainSingleSubst{
		Coverage:           coverage,
		BacktrackCoverages: backtrackCoverages,
		LookaheadCoverages: lookaheadCoverages,
		Substitutes:        substitutes,
	}, nil
}

// --- LookupRecord ---

// LookupRecord specifies a nested lookup to apply at a sequence position.
type LookupRecord struct {
	SequenceIndex uint16
	LookupIndex   uint16
}

// --- FeatureList ---

// FeatureList is the top-level FeatureList table: an ordered array of
// (featureTag, offset) pairs, each pointing at a FeatureRecord's lookup
// index array.
type FeatureList struct {
	data     []byte
	base     int
	features []featureListEntry
}

type featureListEntry struct {
	tag    Tag
	offset uint16
}

// FeatureRecord is a single parsed feature: its tag and the lookup
// indices it activates, in declaration order.
type FeatureRecord struct {
	Tag     Tag
	Lookups []uint16
}

// ParseFeatureList parses the FeatureList table at the given offset.
func ParseFeatureList(data []byte, offset int) (*FeatureList, error) {
	if offset+2 > len(data) {
		return nil, ErrInvalidOffset
	}
	count := int(binary.BigEndian.Uint16(data[offset:]))
	if offset+2+count*6 > len(data) {
		return nil, ErrInvalidOffset
	}

	entries := make([]featureListEntry, count)
	for i := 0; i < count; i++ {
		recOff := offset + 2 + i*6
		entries[i] = featureListEntry{
			tag:    Tag(binary.BigEndian.Uint32(data[recOff:])),
			offset: binary.BigEndian.Uint16(data[recOff+4:]),
		}
	}

	return &FeatureList{data: data, base: offset, features: entries}, nil
}

// Count returns the number of features declared in the list.
func (fl *FeatureList) Count() int {
	return len(fl.features)
}

// GetFeature parses and returns the feature at the given index.
func (fl *FeatureList) GetFeature(index int) (*FeatureRecord, error) {
	if index < 0 || index >= len(fl.features) {
		return nil, nil
	}
	entry := fl.features[index]

	off := fl.base + int(entry.offset)
	if off+4 > len(fl.data) {
		return nil, ErrInvalidOffset
	}
	// byte 0-1: featureParams offset, unused here.
	lookupCount := int(binary.BigEndian.Uint16(fl.data[off+2:]))
	if off+4+lookupCount*2 > len(fl.data) {
		return nil, ErrInvalidOffset
	}

	lookups := make([]uint16, lookupCount)
	for i := 0; i < lookupCount; i++ {
		lookups[i] = binary.BigEndian.Uint16(fl.data[off+4+i*2:])
	}

	return &FeatureRecord{Tag: entry.tag, Lookups: lookups}, nil
}

// FindFeature returns the index of the first feature record with the
// given tag, or -1 if none matches.
func (fl *FeatureList) FindFeature(tag Tag) int {
	for i, entry := range fl.features {
		if entry.tag == tag {
			return i
		}
	}
	return -1
}

// Common feature tags.
var (
	TagLiga = MakeTag('l', 'i', 'g', 'a')
	TagClig = MakeTag('c', 'l', 'i', 'g')
	TagDlig = MakeTag('d', 'l', 'i', 'g')
	TagHlig = MakeTag('h', 'l', 'i', 'g')
	TagCcmp = MakeTag('c', 'c', 'm', 'p')
	TagLocl = MakeTag('l', 'o', 'c', 'l')
	TagRlig = MakeTag('r', 'l', 'i', 'g')
	TagSmcp = MakeTag('s', 'm', 'c', 'p')
	TagCalt = MakeTag('c', 'a', 'l', 't')
)
