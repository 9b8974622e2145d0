package ot

import (
	"encoding/binary"
	"testing"
)

func buildCoverageFormat1(glyphs []GlyphID) []byte {
	data := make([]byte, 4+len(glyphs)*2)
	binary.BigEndian.PutUint16(data[0:], 1) // format
	binary.BigEndian.PutUint16(data[2:], uint16(len(glyphs)))
	for i, g := range glyphs {
		binary.BigEndian.PutUint16(data[4+i*2:], uint16(g))
	}
	return data
}

func buildCoverageFormat2(ranges [][3]uint16) []byte {
	data := make([]byte, 4+len(ranges)*6)
	binary.BigEndian.PutUint16(data[0:], 2) // format
	binary.BigEndian.PutUint16(data[2:], uint16(len(ranges)))
	for i, r := range ranges {
		off := 4 + i*6
		binary.BigEndian.PutUint16(data[off:], r[0])
		binary.BigEndian.PutUint16(data[off+2:], r[1])
		binary.BigEndian.PutUint16(data[off+4:], r[2])
	}
	return data
}

func buildSingleSubstFormat1(coverageGlyphs []GlyphID, delta int16) []byte {
	coverage := buildCoverageFormat1(coverageGlyphs)
	data := make([]byte, 6+len(coverage))
	binary.BigEndian.PutUint16(data[0:], 1) // format
	binary.BigEndian.PutUint16(data[2:], 6) // coverage offset
	binary.BigEndian.PutUint16(data[4:], uint16(delta))
	copy(data[6:], coverage)
	return data
}

func buildSingleSubstFormat2(coverageGlyphs []GlyphID, substitutes []GlyphID) []byte {
	coverage := buildCoverageFormat1(coverageGlyphs)
	headerSize := 6 + len(substitutes)*2
	data := make([]byte, headerSize+len(coverage))
	binary.BigEndian.PutUint16(data[0:], 2) // format
	binary.BigEndian.PutUint16(data[2:], uint16(headerSize))
	binary.BigEndian.PutUint16(data[4:], uint16(len(substitutes)))
	for i, g := range substitutes {
		binary.BigEndian.PutUint16(data[6+i*2:], uint16(g))
	}
	copy(data[headerSize:], coverage)
	return data
}

func buildLigature(ligGlyph GlyphID, components []GlyphID) []byte {
	data := make([]byte, 4+len(components)*2)
	binary.BigEndian.PutUint16(data[0:], uint16(ligGlyph))
	binary.BigEndian.PutUint16(data[2:], uint16(len(components)+1))
	for i, g := range components {
		binary.BigEndian.PutUint16(data[4+i*2:], uint16(g))
	}
	return data
}

func buildLigatureSet(ligatures [][]byte) []byte {
	headerSize := 2 + len(ligatures)*2
	totalSize := headerSize
	for _, l := range ligatures {
		totalSize += len(l)
	}

	data := make([]byte, totalSize)
	binary.BigEndian.PutUint16(data[0:], uint16(len(ligatures)))

	offset := headerSize
	for i, l := range ligatures {
		binary.BigEndian.PutUint16(data[2+i*2:], uint16(offset))
		copy(data[offset:], l)
		offset += len(l)
	}
	return data
}

func buildLigatureSubst(coverageGlyphs []GlyphID, ligatureSets [][]byte) []byte {
	coverage := buildCoverageFormat1(coverageGlyphs)

	headerSize := 6 + len(ligatureSets)*2
	totalSize := headerSize
	for _, ls := range ligatureSets {
		totalSize += len(ls)
	}
	totalSize += len(coverage)

	data := make([]byte, totalSize)
	binary.BigEndian.PutUint16(data[0:], 1) // format
	binary.BigEndian.PutUint16(data[4:], uint16(len(ligatureSets)))

	offset := headerSize
	for i, ls := range ligatureSets {
		binary.BigEndian.PutUint16(data[6+i*2:], uint16(offset))
		copy(data[offset:], ls)
		offset += len(ls)
	}

	binary.BigEndian.PutUint16(data[2:], uint16(offset))
	copy(data[offset:], coverage)

	return data
}

func TestCoverageFormat1(t *testing.T) {
	data := buildCoverageFormat1([]GlyphID{10, 20, 30})
	cov, err := ParseCoverage(data, 0)
	if err != nil {
		t.Fatalf("ParseCoverage failed: %v", err)
	}

	tests := []struct {
		glyph GlyphID
		want  uint32
	}{
		{10, 0}, {20, 1}, {30, 2}, {15, NotCovered}, {0, NotCovered},
	}
	for _, tt := range tests {
		if got := cov.GetCoverage(tt.glyph); got != tt.want {
			t.Errorf("GetCoverage(%d) = %d, want %d", tt.glyph, got, tt.want)
		}
	}

	glyphs := cov.Glyphs()
	want := []GlyphID{10, 20, 30}
	if len(glyphs) != len(want) {
		t.Fatalf("Glyphs() = %v, want %v", glyphs, want)
	}
	for i := range want {
		if glyphs[i] != want[i] {
			t.Errorf("Glyphs()[%d] = %d, want %d", i, glyphs[i], want[i])
		}
	}
}

func TestCoverageFormat2(t *testing.T) {
	data := buildCoverageFormat2([][3]uint16{{10, 15, 0}, {30, 32, 6}})
	cov, err := ParseCoverage(data, 0)
	if err != nil {
		t.Fatalf("ParseCoverage failed: %v", err)
	}

	tests := []struct {
		glyph GlyphID
		want  uint32
	}{
		{10, 0}, {15, 5}, {30, 6}, {32, 8}, {20, NotCovered}, {33, NotCovered},
	}
	for _, tt := range tests {
		if got := cov.GetCoverage(tt.glyph); got != tt.want {
			t.Errorf("GetCoverage(%d) = %d, want %d", tt.glyph, got, tt.want)
		}
	}
}

func TestSingleSubstFormat1(t *testing.T) {
	data := buildSingleSubstFormat1([]GlyphID{65, 66, 67}, 32)
	subst, err := parseSingleSubst(data, 0)
	if err != nil {
		t.Fatalf("parseSingleSubst failed: %v", err)
	}

	mapping := subst.Mapping()
	want := map[GlyphID]GlyphID{65: 97, 66: 98, 67: 99}
	if len(mapping) != len(want) {
		t.Fatalf("Mapping() = %v, want %v", mapping, want)
	}
	for g, w := range want {
		if mapping[g] != w {
			t.Errorf("Mapping()[%d] = %d, want %d", g, mapping[g], w)
		}
	}

	idx := subst.coverage.GetCoverage(66)
	out, ok := subst.Substitute(66, idx)
	if !ok || out != 98 {
		t.Errorf("Substitute(66) = (%d, %v), want (98, true)", out, ok)
	}
}

func TestSingleSubstFormat2(t *testing.T) {
	data := buildSingleSubstFormat2([]GlyphID{65, 66}, []GlyphID{900, 901})
	subst, err := parseSingleSubst(data, 0)
	if err != nil {
		t.Fatalf("parseSingleSubst failed: %v", err)
	}

	idx := subst.coverage.GetCoverage(65)
	out, ok := subst.Substitute(65, idx)
	if !ok || out != 900 {
		t.Errorf("Substitute(65) = (%d, %v), want (900, true)", out, ok)
	}

	idx = subst.coverage.GetCoverage(66)
	out, ok = subst.Substitute(66, idx)
	if !ok || out != 901 {
		t.Errorf("Substitute(66) = (%d, %v), want (901, true)", out, ok)
	}
}

func TestLigatureSubst(t *testing.T) {
	// f + i -> fi (200), f + l -> fl (201)
	lig1 := buildLigature(200, []GlyphID{105})
	lig2 := buildLigature(201, []GlyphID{108})
	ligSet := buildLigatureSet([][]byte{lig1, lig2})

	data := buildLigatureSubst([]GlyphID{102}, [][]byte{ligSet})
	subst, err := parseLigatureSubst(data, 0)
	if err != nil {
		t.Fatalf("parseLigatureSubst failed: %v", err)
	}

	idx := subst.Coverage().GetCoverage(102)
	if idx == NotCovered {
		t.Fatal("expected glyph 102 to be covered")
	}

	ligSets := subst.LigatureSets()
	if len(ligSets) != 1 {
		t.Fatalf("LigatureSets() has %d sets, want 1", len(ligSets))
	}

	ligs := ligSets[idx]
	if len(ligs) != 2 {
		t.Fatalf("got %d ligatures, want 2", len(ligs))
	}
	if ligs[0].LigGlyph != 200 || len(ligs[0].Components) != 1 || ligs[0].Components[0] != 105 {
		t.Errorf("ligs[0] = %+v, want {200 [105]}", ligs[0])
	}
	if ligs[1].LigGlyph != 201 || len(ligs[1].Components) != 1 || ligs[1].Components[0] != 108 {
		t.Errorf("ligs[1] = %+v, want {201 [108]}", ligs[1])
	}
}

func TestLigatureSubstMultipleComponents(t *testing.T) {
	// f + f + i -> ffi (202), a 3-glyph ligature
	lig := buildLigature(202, []GlyphID{102, 105})
	ligSet := buildLigatureSet([][]byte{lig})

	data := buildLigatureSubst([]GlyphID{102}, [][]byte{ligSet})
	subst, err := parseLigatureSubst(data, 0)
	if err != nil {
		t.Fatalf("parseLigatureSubst failed: %v", err)
	}

	ligs := subst.LigatureSets()[0]
	if len(ligs) != 1 {
		t.Fatalf("got %d ligatures, want 1", len(ligs))
	}
	want := []GlyphID{102, 105}
	if len(ligs[0].Components) != len(want) {
		t.Fatalf("Components = %v, want %v", ligs[0].Components, want)
	}
	for i := range want {
		if ligs[0].Components[i] != want[i] {
			t.Errorf("Components[%d] = %d, want %d", i, ligs[0].Components[i], want[i])
		}
	}
}

// Build a minimal GSUB table for testing
func buildGSUBTable(lookups [][]byte) []byte {
	headerSize := 10
	scriptListSize := 2
	featureListSize := 2

	lookupListHeaderSize := 2 + len(lookups)*2
	lookupListSize := lookupListHeaderSize
	for _, l := range lookups {
		lookupListSize += len(l)
	}

	totalSize := headerSize + scriptListSize + featureListSize + lookupListSize
	data := make([]byte, totalSize)

	binary.BigEndian.PutUint16(data[0:], 1)
	binary.BigEndian.PutUint16(data[2:], 0)
	binary.BigEndian.PutUint16(data[4:], uint16(headerSize))
	binary.BigEndian.PutUint16(data[6:], uint16(headerSize+scriptListSize))
	binary.BigEndian.PutUint16(data[8:], uint16(headerSize+scriptListSize+featureListSize))

	binary.BigEndian.PutUint16(data[headerSize:], 0)
	binary.BigEndian.PutUint16(data[headerSize+scriptListSize:], 0)

	lookupListOff := headerSize + scriptListSize + featureListSize
	binary.BigEndian.PutUint16(data[lookupListOff:], uint16(len(lookups)))

	offset := lookupListHeaderSize
	for i, l := range lookups {
		binary.BigEndian.PutUint16(data[lookupListOff+2+i*2:], uint16(offset))
		copy(data[lookupListOff+offset:], l)
		offset += len(l)
	}

	return data
}

// buildGSUBLookup wraps one or more subtables into a lookup table.
func buildGSUBLookup(lookupType uint16, subtables [][]byte) []byte {
	headerSize := 6 + len(subtables)*2
	totalSize := headerSize
	for _, st := range subtables {
		totalSize += len(st)
	}

	data := make([]byte, totalSize)
	binary.BigEndian.PutUint16(data[0:], lookupType)
	binary.BigEndian.PutUint16(data[2:], 0) // flag
	binary.BigEndian.PutUint16(data[4:], uint16(len(subtables)))

	offset := headerSize
	for i, st := range subtables {
		binary.BigEndian.PutUint16(data[6+i*2:], uint16(offset))
		copy(data[offset:], st)
		offset += len(st)
	}

	return data
}

func TestParseGSUB(t *testing.T) {
	subtable := buildSingleSubstFormat1([]GlyphID{65, 66}, 10)
	lookup := buildGSUBLookup(GSUBTypeSingle, [][]byte{subtable})
	gsubData := buildGSUBTable([][]byte{lookup})

	gsub, err := ParseGSUB(gsubData)
	if err != nil {
		t.Fatalf("ParseGSUB failed: %v", err)
	}

	if gsub.NumLookups() != 1 {
		t.Errorf("NumLookups = %d, want 1", gsub.NumLookups())
	}

	l := gsub.GetLookup(0)
	if l == nil {
		t.Fatal("GetLookup(0) = nil")
	}
	if l.Type != GSUBTypeSingle {
		t.Errorf("Type = %d, want %d", l.Type, GSUBTypeSingle)
	}
	if len(l.Subtables) != 1 {
		t.Fatalf("got %d subtables, want 1", len(l.Subtables))
	}
	if _, ok := l.Subtables[0].(*SingleSubst); !ok {
		t.Errorf("subtable is %T, want *SingleSubst", l.Subtables[0])
	}
}

// --- ChainContextSubst tests ---

func buildChainRule(backtrack []GlyphID, input []GlyphID, lookahead []GlyphID, lookups []LookupRecord) []byte {
	size := 2 + len(backtrack)*2 + 2 + len(input)*2 + 2 + len(lookahead)*2 + 2 + len(lookups)*4
	data := make([]byte, size)
	off := 0

	binary.BigEndian.PutUint16(data[off:], uint16(len(backtrack)))
	off += 2
	for _, g := range backtrack {
		binary.BigEndian.PutUint16(data[off:], uint16(g))
		off += 2
	}

	binary.BigEndian.PutUint16(data[off:], uint16(len(input)+1))
	off += 2
	for _, g := range input {
		binary.BigEndian.PutUint16(data[off:], uint16(g))
		off += 2
	}

	binary.BigEndian.PutUint16(data[off:], uint16(len(lookahead)))
	off += 2
	for _, g := range lookahead {
		binary.BigEndian.PutUint16(data[off:], uint16(g))
		off += 2
	}

	binary.BigEndian.PutUint16(data[off:], uint16(len(lookups)))
	off += 2
	for _, lr := range lookups {
		binary.BigEndian.PutUint16(data[off:], lr.SequenceIndex)
		binary.BigEndian.PutUint16(data[off+2:], lr.LookupIndex)
		off += 4
	}

	return data
}

func buildChainRuleSet(rules [][]byte) []byte {
	headerSize := 2 + len(rules)*2
	totalSize := headerSize
	for _, r := range rules {
		totalSize += len(r)
	}

	data := make([]byte, totalSize)
	binary.BigEndian.PutUint16(data[0:], uint16(len(rules)))

	offset := headerSize
	for i, r := range rules {
		binary.BigEndian.PutUint16(data[2+i*2:], uint16(offset))
		copy(data[offset:], r)
		offset += len(r)
	}
	return data
}

func buildChainContextFormat1(coverageGlyphs []GlyphID, ruleSets [][]byte) []byte {
	coverage := buildCoverageFormat1(coverageGlyphs)

	headerSize := 6 + len(ruleSets)*2
	totalSize := headerSize
	for _, rs := range ruleSets {
		totalSize += len(rs)
	}
	totalSize += len(coverage)

	data := make([]byte, totalSize)
	binary.BigEndian.PutUint16(data[0:], 1)
	binary.BigEndian.PutUint16(data[4:], uint16(len(ruleSets)))

	offset := headerSize
	for i, rs := range ruleSets {
		if len(rs) > 0 {
			binary.BigEndian.PutUint16(data[6+i*2:], uint16(offset))
			copy(data[offset:], rs)
			offset += len(rs)
		}
	}

	binary.BigEndian.PutUint16(data[2:], uint16(offset))
	copy(data[offset:], coverage)

	return data
}

func buildChainContextFormat2(coverageGlyphs []GlyphID, backtrackClassDef, inputClassDef, lookaheadClassDef []byte, ruleSets [][]byte) []byte {
	coverage := buildCoverageFormat1(coverageGlyphs)

	headerSize := 12 + len(ruleSets)*2
	totalSize := headerSize
	for _, rs := range ruleSets {
		totalSize += len(rs)
	}
	totalSize += len(backtrackClassDef) + len(inputClassDef) + len(lookaheadClassDef) + len(coverage)

	data := make([]byte, totalSize)
	binary.BigEndian.PutUint16(data[0:], 2)
	binary.BigEndian.PutUint16(data[10:], uint16(len(ruleSets)))

	offset := headerSize

	for i, rs := range ruleSets {
		if len(rs) > 0 {
			binary.BigEndian.PutUint16(data[12+i*2:], uint16(offset))
			copy(data[offset:], rs)
			offset += len(rs)
		}
	}

	binary.BigEndian.PutUint16(data[4:], uint16(offset))
	copy(data[offset:], backtrackClassDef)
	offset += len(backtrackClassDef)

	binary.BigEndian.PutUint16(data[6:], uint16(offset))
	copy(data[offset:], inputClassDef)
	offset += len(inputClassDef)

	binary.BigEndian.PutUint16(data[8:], uint16(offset))
	copy(data[offset:], lookaheadClassDef)
	offset += len(lookaheadClassDef)

	binary.BigEndian.PutUint16(data[2:], uint16(offset))
	copy(data[offset:], coverage)

	return data
}

func buildChainContextFormat3(backtrackCovs, inputCovs, lookaheadCovs [][]byte, lookups []LookupRecord) []byte {
	headerSize := 2 +
		2 + len(backtrackCovs)*2 +
		2 + len(inputCovs)*2 +
		2 + len(lookaheadCovs)*2 +
		2 + len(lookups)*4

	totalSize := headerSize
	for _, c := range backtrackCovs {
		totalSize += len(c)
	}
	for _, c := range inputCovs {
		totalSize += len(c)
	}
	for _, c := range lookaheadCovs {
		totalSize += len(c)
	}

	data := make([]byte, totalSize)
	off := 0

	binary.BigEndian.PutUint16(data[off:], 3)
	off += 2

	covDataOff := headerSize

	binary.BigEndian.PutUint16(data[off:], uint16(len(backtrackCovs)))
	off += 2
	for _, c := range backtrackCovs {
		binary.BigEndian.PutUint16(data[off:], uint16(covDataOff))
		off += 2
		copy(data[covDataOff:], c)
		covDataOff += len(c)
	}

	binary.BigEndian.PutUint16(data[off:], uint16(len(inputCovs)))
	off += 2
	for _, c := range inputCovs {
		binary.BigEndian.PutUint16(data[off:], uint16(covDataOff))
		off += 2
		copy(data[covDataOff:], c)
		covDataOff += len(c)
	}

	binary.BigEndian.PutUint16(data[off:], uint16(len(lookaheadCovs)))
	off += 2
	for _, c := range lookaheadCovs {
		binary.BigEndian.PutUint16(data[off:], uint16(covDataOff))
		off += 2
		copy(data[covDataOff:], c)
		covDataOff += len(c)
	}

	binary.BigEndian.PutUint16(data[off:], uint16(len(lookups)))
	off += 2
	for _, lr := range lookups {
		binary.BigEndian.PutUint16(data[off:], lr.SequenceIndex)
		binary.BigEndian.PutUint16(data[off+2:], lr.LookupIndex)
		off += 4
	}

	return data
}

func TestChainContextSubstFormat1Parsing(t *testing.T) {
	rule := buildChainRule(
		[]GlyphID{120},
		[]GlyphID{66},
		[]GlyphID{90},
		[]LookupRecord{{SequenceIndex: 0, LookupIndex: 3}},
	)
	ruleSet := buildChainRuleSet([][]byte{rule})
	data := buildChainContextFormat1([]GlyphID{65}, [][]byte{ruleSet})

	ccs, err := parseChainContextSubst(data, 0, nil)
	if err != nil {
		t.Fatalf("parseChainContextSubst failed: %v", err)
	}
	if ccs.Format != 1 {
		t.Fatalf("Format = %d, want 1", ccs.Format)
	}

	idx := ccs.Coverage.GetCoverage(65)
	rules := ccs.ChainRuleSets[idx]
	if len(rules) != 1 {
		t.Fatalf("got %d rules, want 1", len(rules))
	}
	r := rules[0]
	if len(r.Backtrack) != 1 || r.Backtrack[0] != 120 {
		t.Errorf("Backtrack = %v, want [120]", r.Backtrack)
	}
	if len(r.Input) != 1 || r.Input[0] != 66 {
		t.Errorf("Input = %v, want [66]", r.Input)
	}
	if len(r.Lookahead) != 1 || r.Lookahead[0] != 90 {
		t.Errorf("Lookahead = %v, want [90]", r.Lookahead)
	}
	if len(r.LookupRecords) != 1 || r.LookupRecords[0].LookupIndex != 3 {
		t.Errorf("LookupRecords = %v, want [{0 3}]", r.LookupRecords)
	}
}

func TestChainContextSubstFormat2Parsing(t *testing.T) {
	inputClassDef := buildClassDefFormat1(65, []uint16{1, 2, 2, 2, 1, 0, 0, 0, 1})
	backtrackClassDef := buildClassDefFormat1(65, []uint16{1, 2, 2, 2, 1, 0, 0, 0, 1})
	lookaheadClassDef := buildClassDefFormat1(65, []uint16{1, 2, 2, 2, 1, 0, 0, 0, 1})

	rule := buildChainRule([]GlyphID{2}, nil, []GlyphID{2}, []LookupRecord{{SequenceIndex: 0, LookupIndex: 0}})
	ruleSet := buildChainRuleSet([][]byte{rule})
	ruleSets := [][]byte{nil, ruleSet}

	data := buildChainContextFormat2([]GlyphID{65, 69, 73}, backtrackClassDef, inputClassDef, lookaheadClassDef, ruleSets)

	ccs, err := parseChainContextSubst(data, 0, nil)
	if err != nil {
		t.Fatalf("parseChainContextSubst failed: %v", err)
	}
	if ccs.Format != 2 {
		t.Fatalf("Format = %d, want 2", ccs.Format)
	}
	if ccs.InputClassDef.GetClass(65) != 1 {
		t.Errorf("InputClassDef.GetClass(65) = %d, want 1", ccs.InputClassDef.GetClass(65))
	}
	if ccs.BacktrackClassDef.GetClass(66) != 2 {
		t.Errorf("BacktrackClassDef.GetClass(66) = %d, want 2", ccs.BacktrackClassDef.GetClass(66))
	}
	if len(ccs.ChainRuleSets[1]) != 1 {
		t.Fatalf("ChainRuleSets[1] has %d rules, want 1", len(ccs.ChainRuleSets[1]))
	}
}

func TestChainContextSubstFormat3Parsing(t *testing.T) {
	backtrackCov := buildCoverageFormat1([]GlyphID{120})
	inputCov := buildCoverageFormat1([]GlyphID{65})
	lookaheadCov := buildCoverageFormat1([]GlyphID{66})

	data := buildChainContextFormat3(
		[][]byte{backtrackCov},
		[][]byte{inputCov},
		[][]byte{lookaheadCov},
		[]LookupRecord{{SequenceIndex: 0, LookupIndex: 0}},
	)

	ccs, err := parseChainContextSubst(data, 0, nil)
	if err != nil {
		t.Fatalf("parseChainContextSubst failed: %v", err)
	}
	if ccs.Format != 3 {
		t.Fatalf("Format = %d, want 3", ccs.Format)
	}
	if len(ccs.BacktrackCoverages) != 1 || ccs.BacktrackCoverages[0].GetCoverage(120) == NotCovered {
		t.Errorf("BacktrackCoverages not parsed correctly")
	}
	if len(ccs.InputCoverages) != 1 || ccs.InputCoverages[0].GetCoverage(65) == NotCovered {
		t.Errorf("InputCoverages not parsed correctly")
	}
	if len(ccs.LookaheadCoverages) != 1 || ccs.LookaheadCoverages[0].GetCoverage(66) == NotCovered {
		t.Errorf("LookaheadCoverages not parsed correctly")
	}
}

// --- Context Substitution tests ---

func buildContextRule(input []GlyphID, lookups []LookupRecord) []byte {
	size := 4 + len(input)*2 + len(lookups)*4
	data := make([]byte, size)

	binary.BigEndian.PutUint16(data[0:], uint16(len(input)+1))
	binary.BigEndian.PutUint16(data[2:], uint16(len(lookups)))

	off := 4
	for _, g := range input {
		binary.BigEndian.PutUint16(data[off:], uint16(g))
		off += 2
	}

	for _, lr := range lookups {
		binary.BigEndian.PutUint16(data[off:], lr.SequenceIndex)
		binary.BigEndian.PutUint16(data[off+2:], lr.LookupIndex)
		off += 4
	}

	return data
}

func buildContextRuleSet(rules [][]byte) []byte {
	headerSize := 2 + len(rules)*2
	totalSize := headerSize
	for _, r := range rules {
		totalSize += len(r)
	}

	data := make([]byte, totalSize)
	binary.BigEndian.PutUint16(data[0:], uint16(len(rules)))

	offset := headerSize
	for i, r := range rules {
		binary.BigEndian.PutUint16(data[2+i*2:], uint16(offset))
		copy(data[offset:], r)
		offset += len(r)
	}
	return data
}

func buildContextFormat1(coverageGlyphs []GlyphID, ruleSets [][]byte) []byte {
	coverage := buildCoverageFormat1(coverageGlyphs)

	headerSize := 6 + len(ruleSets)*2
	totalSize := headerSize
	for _, rs := range ruleSets {
		totalSize += len(rs)
	}
	totalSize += len(coverage)

	data := make([]byte, totalSize)
	binary.BigEndian.PutUint16(data[0:], 1)
	binary.BigEndian.PutUint16(data[4:], uint16(len(ruleSets)))

	offset := headerSize
	for i, rs := range ruleSets {
		if len(rs) > 0 {
			binary.BigEndian.PutUint16(data[6+i*2:], uint16(offset))
			copy(data[offset:], rs)
			offset += len(rs)
		}
	}

	binary.BigEndian.PutUint16(data[2:], uint16(offset))
	copy(data[offset:], coverage)

	return data
}

func buildContextFormat3(inputCovs [][]byte, lookups []LookupRecord) []byte {
	headerSize := 6 + len(inputCovs)*2 + len(lookups)*4

	totalSize := headerSize
	for _, c := range inputCovs {
		totalSize += len(c)
	}

	data := make([]byte, totalSize)
	binary.BigEndian.PutUint16(data[0:], 3)
	binary.BigEndian.PutUint16(data[2:], uint16(len(inputCovs)))
	binary.BigEndian.PutUint16(data[4:], uint16(len(lookups)))

	covDataOff := headerSize
	off := 6
	for _, c := range inputCovs {
		binary.BigEndian.PutUint16(data[off:], uint16(covDataOff))
		off += 2
		copy(data[covDataOff:], c)
		covDataOff += len(c)
	}

	for _, lr := range lookups {
		binary.BigEndian.PutUint16(data[off:], lr.SequenceIndex)
		binary.BigEndian.PutUint16(data[off+2:], lr.LookupIndex)
		off += 4
	}

	return data
}

func TestContextSubstFormat1Parsing(t *testing.T) {
	rule := buildContextRule([]GlyphID{66}, []LookupRecord{{SequenceIndex: 0, LookupIndex: 0}})
	ruleSet := buildContextRuleSet([][]byte{rule})
	data := buildContextFormat1([]GlyphID{65}, [][]byte{ruleSet})

	cs, err := parseContextSubst(data, 0, nil)
	if err != nil {
		t.Fatalf("parseContextSubst failed: %v", err)
	}
	if cs.Format != 1 {
		t.Fatalf("Format = %d, want 1", cs.Format)
	}

	idx := cs.Coverage.GetCoverage(65)
	rules := cs.RuleSets[idx]
	if len(rules) != 1 || len(rules[0].Input) != 1 || rules[0].Input[0] != 66 {
		t.Errorf("rules = %+v, want one rule with Input=[66]", rules)
	}
}

func TestContextSubstFormat3Parsing(t *testing.T) {
	inputCov1 := buildCoverageFormat1([]GlyphID{65})
	inputCov2 := buildCoverageFormat1([]GlyphID{66})

	data := buildContextFormat3([][]byte{inputCov1, inputCov2}, []LookupRecord{{SequenceIndex: 1, LookupIndex: 0}})

	cs, err := parseContextSubst(data, 0, nil)
	if err != nil {
		t.Fatalf("parseContextSubst failed: %v", err)
	}
	if cs.Format != 3 {
		t.Fatalf("Format = %d, want 3", cs.Format)
	}
	if len(cs.InputCoverages) != 2 {
		t.Fatalf("got %d input coverages, want 2", len(cs.InputCoverages))
	}
	if cs.InputCoverages[0].GetCoverage(65) == NotCovered {
		t.Error("InputCoverages[0] should cover glyph 65")
	}
	if cs.InputCoverages[1].GetCoverage(66) == NotCovered {
		t.Error("InputCoverages[1] should cover glyph 66")
	}
	if len(cs.LookupRecords) != 1 || cs.LookupRecords[0].SequenceIndex != 1 {
		t.Errorf("LookupRecords = %v", cs.LookupRecords)
	}
}

// --- Alternate Substitution tests ---

func buildAlternateSet(alternates []GlyphID) []byte {
	data := make([]byte, 2+len(alternates)*2)
	binary.BigEndian.PutUint16(data[0:], uint16(len(alternates)))
	for i, g := range alternates {
		binary.BigEndian.PutUint16(data[2+i*2:], uint16(g))
	}
	return data
}

func buildAlternateSubst(coverageGlyphs []GlyphID, alternateSets [][]byte) []byte {
	coverage := buildCoverageFormat1(coverageGlyphs)

	headerSize := 6 + len(alternateSets)*2
	totalSize := headerSize
	for _, as := range alternateSets {
		totalSize += len(as)
	}
	totalSize += len(coverage)

	data := make([]byte, totalSize)
	binary.BigEndian.PutUint16(data[0:], 1)
	binary.BigEndian.PutUint16(data[4:], uint16(len(alternateSets)))

	offset := headerSize
	for i, as := range alternateSets {
		binary.BigEndian.PutUint16(data[6+i*2:], uint16(offset))
		copy(data[offset:], as)
		offset += len(as)
	}

	binary.BigEndian.PutUint16(data[2:], uint16(offset))
	copy(data[offset:], coverage)

	return data
}

func TestAlternateSubstGetAlternates(t *testing.T) {
	altSet1 := buildAlternateSet([]GlyphID{97, 200, 201})
	altSet2 := buildAlternateSet([]GlyphID{98, 202})
	subtable := buildAlternateSubst([]GlyphID{65, 66}, [][]byte{altSet1, altSet2})

	subst, err := parseAlternateSubst(subtable, 0)
	if err != nil {
		t.Fatalf("parseAlternateSubst failed: %v", err)
	}

	alts := subst.GetAlternates(65)
	wantAlts := []GlyphID{97, 200, 201}
	if len(alts) != len(wantAlts) {
		t.Fatalf("GetAlternates(65): got %d alternates, want %d", len(alts), len(wantAlts))
	}
	for i, g := range wantAlts {
		if alts[i] != g {
			t.Errorf("GetAlternates(65)[%d] = %d, want %d", i, alts[i], g)
		}
	}

	alts = subst.GetAlternates(66)
	wantAlts = []GlyphID{98, 202}
	if len(alts) != len(wantAlts) {
		t.Fatalf("GetAlternates(66): got %d alternates, want %d", len(alts), len(wantAlts))
	}

	if alts := subst.GetAlternates(67); alts != nil {
		t.Errorf("GetAlternates(67): got %v, want nil", alts)
	}
}

// --- ReverseChainSingleSubst tests ---

func buildReverseChainSingleSubst(
	coverageGlyphs []GlyphID,
	backtrackCoverages [][]GlyphID,
	lookaheadCoverages [][]GlyphID,
	substitutes []GlyphID,
) []byte {
	mainCoverage := buildCoverageFormat1(coverageGlyphs)

	backtrackCovs := make([][]byte, len(backtrackCoverages))
	for i, glyphs := range backtrackCoverages {
		backtrackCovs[i] = buildCoverageFormat1(glyphs)
	}

	lookaheadCovs := make([][]byte, len(lookaheadCoverages))
	for i, glyphs := range lookaheadCoverages {
		lookaheadCovs[i] = buildCoverageFormat1(glyphs)
	}

	headerSize := 2 + 2 + 2 + len(backtrackCoverages)*2 + 2 + len(lookaheadCoverages)*2 + 2 + len(substitutes)*2

	totalSize := headerSize + len(mainCoverage)
	for _, cov := range backtrackCovs {
		totalSize += len(cov)
	}
	for _, cov := range lookaheadCovs {
		totalSize += len(cov)
	}

	data := make([]byte, totalSize)
	off := 0

	binary.BigEndian.PutUint16(data[off:], 1)
	off += 2

	covOffset := headerSize
	binary.BigEndian.PutUint16(data[off:], uint16(covOffset))
	off += 2
	covOffset += len(mainCoverage)

	binary.BigEndian.PutUint16(data[off:], uint16(len(backtrackCoverages)))
	off += 2
	for _, cov := range backtrackCovs {
		binary.BigEndian.PutUint16(data[off:], uint16(covOffset))
		off += 2
		covOffset += len(cov)
	}

	binary.BigEndian.PutUint16(data[off:], uint16(len(lookaheadCoverages)))
	off += 2
	for _, cov := range lookaheadCovs {
		binary.BigEndian.PutUint16(data[off:], uint16(covOffset))
		off += 2
		covOffset += len(cov)
	}

	binary.BigEndian.PutUint16(data[off:], uint16(len(substitutes)))
	off += 2
	for _, s := range substitutes {
		binary.BigEndian.PutUint16(data[off:], uint16(s))
		off += 2
	}

	copy(data[off:], mainCoverage)
	off += len(mainCoverage)
	for _, cov := range backtrackCovs {
		copy(data[off:], cov)
		off += len(cov)
	}
	for _, cov := range lookaheadCovs {
		copy(data[off:], cov)
		off += len(cov)
	}

	return data
}

func TestReverseChainSingleSubstParsing(t *testing.T) {
	data := buildReverseChainSingleSubst(
		[]GlyphID{65},
		[][]GlyphID{{66}},
		[][]GlyphID{{67}},
		[]GlyphID{97},
	)

	rcs, err := parseReverseChainSingleSubst(data, 0)
	if err != nil {
		t.Fatalf("parseReverseChainSingleSubst failed: %v", err)
	}

	if rcs.Coverage.GetCoverage(65) == NotCovered {
		t.Error("expected glyph 65 to be covered")
	}
	if len(rcs.BacktrackCoverages) != 1 || rcs.BacktrackCoverages[0].GetCoverage(66) == NotCovered {
		t.Error("backtrack coverage not parsed correctly")
	}
	if len(rcs.LookaheadCoverages) != 1 || rcs.LookaheadCoverages[0].GetCoverage(67) == NotCovered {
		t.Error("lookahead coverage not parsed correctly")
	}
	if len(rcs.Substitutes) != 1 || rcs.Substitutes[0] != 97 {
		t.Errorf("Substitutes = %v, want [97]", rcs.Substitutes)
	}
}

// --- Extension Lookup tests ---

// buildExtensionSubtable wraps a subtable in an Extension (type 7) wrapper.
func buildExtensionSubtable(extensionLookupType uint16, subtable []byte) []byte {
	data := make([]byte, 8+len(subtable))
	binary.BigEndian.PutUint16(data[0:], 1)
	binary.BigEndian.PutUint16(data[2:], extensionLookupType)
	binary.BigEndian.PutUint32(data[4:], 8)
	copy(data[8:], subtable)
	return data
}

func TestExtensionSubstResolvedAtParseTime(t *testing.T) {
	singleSubst := buildSingleSubstFormat1([]GlyphID{65, 66, 67}, 32)
	extensionSubtable := buildExtensionSubtable(GSUBTypeSingle, singleSubst)

	lookup := buildGSUBLookup(GSUBTypeExtension, [][]byte{extensionSubtable})
	gsubData := buildGSUBTable([][]byte{lookup})

	gsub, err := ParseGSUB(gsubData)
	if err != nil {
		t.Fatalf("ParseGSUB failed: %v", err)
	}

	l := gsub.GetLookup(0)
	if l == nil {
		t.Fatal("GetLookup(0) = nil")
	}
	// The raw lookup type in the table is still Extension, but the
	// resolved subtable must be the real SingleSubst, not an Extension
	// wrapper: matching never special-cases type 7.
	if len(l.Subtables) != 1 {
		t.Fatalf("got %d subtables, want 1", len(l.Subtables))
	}
	if _, ok := l.Subtables[0].(*SingleSubst); !ok {
		t.Errorf("subtable is %T, want *SingleSubst", l.Subtables[0])
	}
}

func TestExtensionSubstWithLigature(t *testing.T) {
	fiLig := buildLigature(500, []GlyphID{105})
	ligSet := buildLigatureSet([][]byte{fiLig})
	ligSubst := buildLigatureSubst([]GlyphID{102}, [][]byte{ligSet})

	extensionSubtable := buildExtensionSubtable(GSUBTypeLigature, ligSubst)
	lookup := buildGSUBLookup(GSUBTypeExtension, [][]byte{extensionSubtable})
	gsubData := buildGSUBTable([][]byte{lookup})

	gsub, err := ParseGSUB(gsubData)
	if err != nil {
		t.Fatalf("ParseGSUB failed: %v", err)
	}

	l := gsub.GetLookup(0)
	lig, ok := l.Subtables[0].(*LigatureSubst)
	if !ok {
		t.Fatalf("subtable is %T, want *LigatureSubst", l.Subtables[0])
	}
	if lig.Coverage().GetCoverage(102) == NotCovered {
		t.Error("expected glyph 102 to be covered")
	}
}

func TestExtensionSubstInvalidFormat(t *testing.T) {
	singleSubst := buildSingleSubstFormat1([]GlyphID{65}, 32)

	data := make([]byte, 8+len(singleSubst))
	binary.BigEndian.PutUint16(data[0:], 2) // invalid extension format
	binary.BigEndian.PutUint16(data[2:], GSUBTypeSingle)
	binary.BigEndian.PutUint32(data[4:], 8)
	copy(data[8:], singleSubst)

	lookup := buildGSUBLookup(GSUBTypeExtension, [][]byte{data})
	gsubData := buildGSUBTable([][]byte{lookup})

	gsub, err := ParseGSUB(gsubData)
	if err != nil {
		t.Fatalf("ParseGSUB failed: %v", err)
	}

	l := gsub.GetLookup(0)
	if l == nil {
		t.Fatal("GetLookup(0) = nil")
	}
	if len(l.Subtables) != 0 {
		t.Errorf("got %d subtables, want 0 (invalid extension skipped)", len(l.Subtables))
	}
}

// --- Lookup digest tests ---

func TestGSUBLookupDigestCoversSubstCoverage(t *testing.T) {
	subtable := buildSingleSubstFormat1([]GlyphID{65, 66}, 10)
	lookup := buildGSUBLookup(GSUBTypeSingle, [][]byte{subtable})
	gsubData := buildGSUBTable([][]byte{lookup})

	gsub, err := ParseGSUB(gsubData)
	if err != nil {
		t.Fatalf("ParseGSUB failed: %v", err)
	}

	l := gsub.GetLookup(0)
	d := l.Digest()
	if d == nil {
		t.Fatal("Digest() = nil, want a digest built from the subtable's coverage")
	}
	if !d.MayHave(uint32(65)) || !d.MayHave(uint32(66)) {
		t.Error("digest should may-have every glyph in the coverage table")
	}
}

func TestGSUBLookupDigestNilForContextFormat3WithNoInputCoverage(t *testing.T) {
	// Format 3 context subst with zero glyphCount input sequence: no
	// InputCoverages entry exists, so a safe digest can't be built and the
	// engine must fall back to trying every subtable at every position.
	data := buildContextFormat3(nil, nil)
	lookup := buildGSUBLookup(GSUBTypeContext, [][]byte{data})
	gsubData := buildGSUBTable([][]byte{lookup})

	gsub, err := ParseGSUB(gsubData)
	if err != nil {
		t.Fatalf("ParseGSUB failed: %v", err)
	}
	l := gsub.GetLookup(0)
	if l.Digest() != nil {
		t.Error("Digest() should be nil when no input coverage can be consulted")
	}
}
