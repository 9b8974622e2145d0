// Package gsub implements the OpenType GSUB substitution engine: it
// walks a stream.Stream left to right, dispatching each of the eight
// lookup subtable shapes against it, and rewrites the stream in place.
package gsub

import (
	"errors"
	"fmt"

	"otshape/ot"
	"otshape/stream"
)

// maxNestingDepth bounds how deeply a context/chain-context lookup may
// invoke nested lookups before the engine gives up on the font as
// malformed, per the recommended floor of 64.
const maxNestingDepth = 64

// ErrNestingLimitExceeded is returned (wrapped as MalformedFont) when a
// nested lookup record chain exceeds maxNestingDepth.
var ErrNestingLimitExceeded = errors.New("gsub: nested lookup depth exceeded")

// MalformedFont wraps a structural error encountered while applying a
// GSUB feature: a contradiction the engine cannot recover from mid-run.
type MalformedFont struct {
	Err error
}

func (e *MalformedFont) Error() string { return fmt.Sprintf("gsub: malformed font: %v", e.Err) }
func (e *MalformedFont) Unwrap() error { return e.Err }

// Run applies the lookups of the required feature and of every requested
// feature that the given script/language system lists, in the order the
// font's FeatureList declares those features, to st. Each feature's lookups
// are applied in turn, walking the stream left to right; later features
// see the stream as rewritten by earlier ones. Run returns true if any
// subtable changed the stream.
func Run(st *stream.Stream, tbl *ot.GSUB, gdef *ot.GDEF, script, lang string, features []string) (bool, error) {
	scriptList, err := tbl.ParseScriptList()
	if err != nil {
		return false, &MalformedFont{err}
	}
	featureList, err := tbl.ParseFeatureList()
	if err != nil {
		return false, &MalformedFont{err}
	}

	featureTags := make([]ot.Tag, len(features))
	for i, f := range features {
		featureTags[i] = tagFromString(f)
	}

	lookupIndices, err := ot.ResolveLookups(scriptList, featureList, tagFromString(script), tagFromString(lang), featureTags)
	if err != nil {
		return false, &MalformedFont{err}
	}

	e := &engine{tbl: tbl, gdef: gdef}

	changed := false
	for _, idx := range lookupIndices {
		lookup := tbl.GetLookup(int(idx))
		if lookup == nil {
			continue
		}
		c, err := e.applyLookup(st, lookup, 0)
		if err != nil {
			return changed, err
		}
		changed = changed || c
	}

	return changed, nil
}

func tagFromString(s string) ot.Tag {
	var b [4]byte
	for i := 0; i < 4; i++ {
		if i < len(s) {
			b[i] = s[i]
		} else {
			b[i] = ' '
		}
	}
	return ot.MakeTag(b[0], b[1], b[2], b[3])
}

// engine carries the read-only tables consulted while applying lookups;
// it holds no mutable state of its own and is safe to reuse across runs.
type engine struct {
	tbl  *ot.GSUB
	gdef *ot.GDEF
}

// applyLookup walks st left to right (or right to left for type 8),
// attempting lookup's subtables at each unskipped position in
// declaration order. The first subtable that substitutes something
// advances the cursor past the matched input; otherwise the cursor
// advances by one position. depth tracks nested-lookup recursion.
func (e *engine) applyLookup(st *stream.Stream, lookup *ot.GSUBLookup, depth int) (bool, error) {
	if depth > maxNestingDepth {
		return false, &MalformedFont{ErrNestingLimitExceeded}
	}

	if lookup.Type == ot.GSUBTypeReverseChainSingle {
		return e.applyReverseChainSingle(st, lookup)
	}

	digest := lookup.Digest()

	changed := false
	i := 0
	for i < st.Count() {
		gids, err := st.Get(i)
		if err != nil {
			return changed, err
		}
		if ot.ShouldSkipGlyph(gids[0], lookup.Flag, e.gdef, int(lookup.MarkFilter)) {
			i++
			continue
		}
		if digest != nil && !digest.MayHave(uint32(gids[0])) {
			i++
			continue
		}

		matched := false
		for _, sub := range lookup.Subtables {
			n, c, err := e.applySubtable(st, sub, lookup, i, depth)
			if err != nil {
				return changed, err
			}
			if n > 0 {
				i += n
				changed = changed || c
				matched = true
				break
			}
		}
		if !matched {
			i++
		}
	}

	return changed, nil
}

// applySubtable attempts one subtable at position i. It returns the
// number of input positions consumed (0 if the subtable did not match)
// and whether the stream changed.
func (e *engine) applySubtable(st *stream.Stream, sub ot.GSUBSubtable, lookup *ot.GSUBLookup, i, depth int) (consumed int, changed bool, err error) {
	gids, err := st.Get(i)
	if err != nil {
		return 0, false, err
	}
	first := gids[0]

	switch s := sub.(type) {
	case *ot.SingleSubst:
		idx := s.Coverage().GetCoverage(first)
		if idx == ot.NotCovered {
			return 0, false, nil
		}
		out, ok := s.Substitute(first, idx)
		if !ok {
			return 0, false, nil
		}
		if err := st.Replace(i, out); err != nil {
			return 0, false, err
		}
		return 1, true, nil

	case *ot.MultipleSubst:
		idx := s.Coverage().GetCoverage(first)
		if idx == ot.NotCovered {
			return 0, false, nil
		}
		seq, ok := s.Sequence(idx)
		if !ok || len(seq) == 0 {
			return 0, false, nil
		}
		if err := st.ReplaceMany(i, seq); err != nil {
			return 0, false, err
		}
		return 1, true, nil

	case *ot.AlternateSubst:
		idx := s.Coverage().GetCoverage(first)
		if idx == ot.NotCovered {
			return 0, false, nil
		}
		alts := s.GetAlternates(first)
		if len(alts) == 0 {
			return 0, false, nil
		}
		if err := st.Replace(i, alts[0]); err != nil {
			return 0, false, err
		}
		return 1, true, nil

	case *ot.LigatureSubst:
		return e.applyLigature(st, s, lookup, i)

	case *ot.ContextSubst:
		return e.applyContext(st, s, lookup, i, depth)

	case *ot.ChainContextSubst:
		return e.applyChainContext(st, s, lookup, i, depth)

	default:
		return 0, false, nil
	}
}

// applyLigature matches a ligature rule starting at i: the first glyph
// via coverage, each remaining component by scanning forward over
// unskipped slots. On match it collapses the consumed slots with
// Stream.ReplaceCount.
func (e *engine) applyLigature(st *stream.Stream, sub *ot.LigatureSubst, lookup *ot.GSUBLookup, i int) (int, bool, error) {
	gids, err := st.Get(i)
	if err != nil {
		return 0, false, err
	}
	idx := sub.Coverage().GetCoverage(gids[0])
	if idx == ot.NotCovered || int(idx) >= len(sub.LigatureSets()) {
		return 0, false, nil
	}

	for _, lig := range sub.LigatureSets()[idx] {
		positions, ok := matchSequence(st, lookup, e.gdef, i+1, lig.Components)
		if !ok {
			continue
		}
		span := 1
		if len(positions) > 0 {
			span = positions[len(positions)-1] - i + 1
		}
		if err := st.ReplaceCount(i, span, lig.LigGlyph); err != nil {
			return 0, false, err
		}
		return 1, true, nil
	}

	return 0, false, nil
}

// matchSequence scans forward from start over unskipped slots, matching
// each wanted glyph ID against the first GID of the next unskipped
// slot. It returns the dense indices consumed, in order, or ok=false if
// the sequence runs off the end of the stream or a glyph mismatches.
func matchSequence(st *stream.Stream, lookup *ot.GSUBLookup, gdef *ot.GDEF, start int, wanted []ot.GlyphID) ([]int, bool) {
	positions := make([]int, 0, len(wanted))
	pos := start
	for _, want := range wanted {
		for {
			if pos >= st.Count() {
				return nil, false
			}
			gids, err := st.Get(pos)
			if err != nil {
				return nil, false
			}
			if ot.ShouldSkipGlyph(gids[0], lookup.Flag, gdef, int(lookup.MarkFilter)) {
				pos++
				continue
			}
			if gids[0] != want {
				return nil, false
			}
			positions = append(positions, pos)
			pos++
			break
		}
	}
	return positions, true
}

// applyContext handles lookup type 5 in all three formats. A match
// yields the unskipped positions making up the input sequence; the
// rule's lookup records are then applied at the corresponding matched
// positions, each counting only unskipped slots, per the matching
// rules — the outer match itself is never restarted by a nested apply.
func (e *engine) applyContext(st *stream.Stream, sub *ot.ContextSubst, lookup *ot.GSUBLookup, i, depth int) (int, bool, error) {
	gids, err := st.Get(i)
	if err != nil {
		return 0, false, err
	}

	var rules []ot.ContextRule
	switch sub.Format {
	case 1:
		idx := sub.Coverage.GetCoverage(gids[0])
		if idx == ot.NotCovered || int(idx) >= len(sub.RuleSets) {
			return 0, false, nil
		}
		rules = sub.RuleSets[idx]

	case 2:
		if sub.Coverage.GetCoverage(gids[0]) == ot.NotCovered {
			return 0, false, nil
		}
		class := sub.ClassDef.GetClass(gids[0])
		if class < 0 || class >= len(sub.RuleSets) {
			return 0, false, nil
		}
		rules = sub.RuleSets[class]

	case 3:
		if len(sub.InputCoverages) == 0 || sub.InputCoverages[0].GetCoverage(gids[0]) == ot.NotCovered {
			return 0, false, nil
		}
		positions, ok := matchCoverageSequence(st, lookup, e.gdef, i+1, sub.InputCoverages[1:])
		if !ok {
			return 0, false, nil
		}
		allPositions := append([]int{i}, positions...)
		return e.applyLookupRecords(st, lookup, allPositions, sub.LookupRecords, depth)

	default:
		return 0, false, nil
	}

	for _, rule := range rules {
		positions, ok := matchSequence(st, lookup, e.gdef, i+1, rule.Input)
		if !ok {
			continue
		}
		allPositions := append([]int{i}, positions...)
		return e.applyLookupRecords(st, lookup, allPositions, rule.LookupRecords, depth)
	}

	return 0, false, nil
}

// applyChainContext handles lookup type 6 in all three formats, adding
// backtrack and lookahead checks around the same input-matching logic
// as applyContext.
func (e *engine) applyChainContext(st *stream.Stream, sub *ot.ChainContextSubst, lookup *ot.GSUBLookup, i, depth int) (int, bool, error) {
	gids, err := st.Get(i)
	if err != nil {
		return 0, false, err
	}

	var rules []ot.ChainRule
	switch sub.Format {
	case 1:
		idx := sub.Coverage.GetCoverage(gids[0])
		if idx == ot.NotCovered || int(idx) >= len(sub.ChainRuleSets) {
			return 0, false, nil
		}
		rules = sub.ChainRuleSets[idx]

	case 2:
		if sub.Coverage.GetCoverage(gids[0]) == ot.NotCovered {
			return 0, false, nil
		}
		class := sub.InputClassDef.GetClass(gids[0])
		if class < 0 || class >= len(sub.ChainRuleSets) {
			return 0, false, nil
		}
		rules = sub.ChainRuleSets[class]

	case 3:
		if len(sub.InputCoverages) == 0 || sub.InputCoverages[0].GetCoverage(gids[0]) == ot.NotCovered {
			return 0, false, nil
		}
		if !matchBacktrackCoverages(st, lookup, e.gdef, i-1, sub.BacktrackCoverages) {
			return 0, false, nil
		}
		inputPositions, ok := matchCoverageSequence(st, lookup, e.gdef, i+1, sub.InputCoverages[1:])
		if !ok {
			return 0, false, nil
		}
		lastInput := i
		if len(inputPositions) > 0 {
			lastInput = inputPositions[len(inputPositions)-1]
		}
		if !matchLookaheadCoverages(st, lookup, e.gdef, lastInput+1, sub.LookaheadCoverages) {
			return 0, false, nil
		}
		allPositions := append([]int{i}, inputPositions...)
		return e.applyLookupRecords(st, lookup, allPositions, sub.LookupRecords, depth)

	default:
		return 0, false, nil
	}

	for _, rule := range rules {
		if !matchBacktrackGlyphs(st, lookup, e.gdef, i-1, rule.Backtrack) {
			continue
		}
		inputPositions, ok := matchSequence(st, lookup, e.gdef, i+1, rule.Input)
		if !ok {
			continue
		}
		lastInput := i
		if len(inputPositions) > 0 {
			lastInput = inputPositions[len(inputPositions)-1]
		}
		if !matchLookaheadGlyphs(st, lookup, e.gdef, lastInput+1, rule.Lookahead) {
			continue
		}
		allPositions := append([]int{i}, inputPositions...)
		return e.applyLookupRecords(st, lookup, allPositions, rule.LookupRecords, depth)
	}

	return 0, false, nil
}

// matchBacktrackGlyphs walks backward from pos over unskipped slots,
// matching each wanted glyph (already in nearest-glyph-first order)
// against the first GID of the next unskipped slot going backward.
func matchBacktrackGlyphs(st *stream.Stream, lookup *ot.GSUBLookup, gdef *ot.GDEF, pos int, wanted []ot.GlyphID) bool {
	for _, want := range wanted {
		for {
			if pos < 0 {
				return false
			}
			gids, err := st.Get(pos)
			if err != nil {
				return false
			}
			if ot.ShouldSkipGlyph(gids[0], lookup.Flag, gdef, int(lookup.MarkFilter)) {
				pos--
				continue
			}
			if gids[0] != want {
				return false
			}
			pos--
			break
		}
	}
	return true
}

// matchLookaheadGlyphs walks forward from pos over unskipped slots,
// matching each wanted glyph in order.
func matchLookaheadGlyphs(st *stream.Stream, lookup *ot.GSUBLookup, gdef *ot.GDEF, pos int, wanted []ot.GlyphID) bool {
	for _, want := range wanted {
		for {
			if pos >= st.Count() {
				return false
			}
			gids, err := st.Get(pos)
			if err != nil {
				return false
			}
			if ot.ShouldSkipGlyph(gids[0], lookup.Flag, gdef, int(lookup.MarkFilter)) {
				pos++
				continue
			}
			if gids[0] != want {
				return false
			}
			pos++
			break
		}
	}
	return true
}

// matchCoverageSequence is matchSequence's format-3/coverage-table
// analogue: each position is tested against a Coverage rather than a
// literal glyph ID.
func matchCoverageSequence(st *stream.Stream, lookup *ot.GSUBLookup, gdef *ot.GDEF, start int, covs []*ot.Coverage) ([]int, bool) {
	positions := make([]int, 0, len(covs))
	pos := start
	for _, cov := range covs {
		for {
			if pos >= st.Count() {
				return nil, false
			}
			gids, err := st.Get(pos)
			if err != nil {
				return nil, false
			}
			if ot.ShouldSkipGlyph(gids[0], lookup.Flag, gdef, int(lookup.MarkFilter)) {
				pos++
				continue
			}
			if cov.GetCoverage(gids[0]) == ot.NotCovered {
				return nil, false
			}
			positions = append(positions, pos)
			pos++
			break
		}
	}
	return positions, true
}

func matchBacktrackCoverages(st *stream.Stream, lookup *ot.GSUBLookup, gdef *ot.GDEF, pos int, covs []*ot.Coverage) bool {
	for _, cov := range covs {
		for {
			if pos < 0 {
				return false
			}
			gids, err := st.Get(pos)
			if err != nil {
				return false
			}
			if ot.ShouldSkipGlyph(gids[0], lookup.Flag, gdef, int(lookup.MarkFilter)) {
				pos--
				continue
			}
			if cov.GetCoverage(gids[0]) == ot.NotCovered {
				return false
			}
			pos--
			break
		}
	}
	return true
}

func matchLookaheadCoverages(st *stream.Stream, lookup *ot.GSUBLookup, gdef *ot.GDEF, pos int, covs []*ot.Coverage) bool {
	for _, cov := range covs {
		for {
			if pos >= st.Count() {
				return false
			}
			gids, err := st.Get(pos)
			if err != nil {
				return false
			}
			if ot.ShouldSkipGlyph(gids[0], lookup.Flag, gdef, int(lookup.MarkFilter)) {
				pos++
				continue
			}
			if cov.GetCoverage(gids[0]) == ot.NotCovered {
				return false
			}
			pos++
			break
		}
	}
	return true
}

// applyLookupRecords applies each of a matched rule's nested lookups at
// the matched position it names, counting only unskipped slots (i.e.
// positions[record.SequenceIndex] in the already-unskipped-filtered
// positions slice). The outer match is not restarted; the engine
// reports "changed" if any nested lookup reports changed. The span from
// the first to the last matched input position (skipped slots included)
// is returned as the subtable's match length, whether or not any nested
// lookup fired.
func (e *engine) applyLookupRecords(st *stream.Stream, outerLookup *ot.GSUBLookup, positions []int, records []ot.LookupRecord, depth int) (int, bool, error) {
	span := 1
	if len(positions) > 0 {
		span = positions[len(positions)-1] - positions[0] + 1
	}

	changed := false
	for _, rec := range records {
		if int(rec.SequenceIndex) >= len(positions) {
			continue
		}
		nested := e.tbl.GetLookup(int(rec.LookupIndex))
		if nested == nil {
			continue
		}
		pos := positions[rec.SequenceIndex]
		c, err := e.applyLookupAt(st, nested, pos, depth+1)
		if err != nil {
			return 0, false, err
		}
		changed = changed || c
	}

	return span, changed, nil
}

// applyLookupAt applies a single nested lookup's subtables (in
// declaration order) at exactly one position, stopping at the first
// subtable that matches. Unlike applyLookup it does not walk the whole
// stream: the calling context has already established that pos is the
// matched position for this lookup record.
func (e *engine) applyLookupAt(st *stream.Stream, lookup *ot.GSUBLookup, pos, depth int) (bool, error) {
	if depth > maxNestingDepth {
		return false, &MalformedFont{ErrNestingLimitExceeded}
	}
	for _, sub := range lookup.Subtables {
		n, changed, err := e.applySubtable(st, sub, lookup, pos, depth)
		if err != nil {
			return false, err
		}
		if n > 0 {
			return changed, nil
		}
	}
	return false, nil
}

// applyReverseChainSingle handles lookup type 8: walked right to left,
// one glyph at a time, with backtrack/lookahead context but never any
// nested lookup application.
func (e *engine) applyReverseChainSingle(st *stream.Stream, lookup *ot.GSUBLookup) (bool, error) {
	changed := false
	for i := st.Count() - 1; i >= 0; i-- {
		gids, err := st.Get(i)
		if err != nil {
			return changed, err
		}
		if ot.ShouldSkipGlyph(gids[0], lookup.Flag, e.gdef, int(lookup.MarkFilter)) {
			continue
		}
		for _, sub := range lookup.Subtables {
			rc, ok := sub.(*ot.ReverseChainSingleSubst)
			if !ok {
				continue
			}
			idx := rc.Coverage.GetCoverage(gids[0])
			if idx == ot.NotCovered || int(idx) >= len(rc.Substitutes) {
				continue
			}
			if !matchBacktrackCoverages(st, lookup, e.gdef, i-1, rc.BacktrackCoverages) {
				continue
			}
			if !matchLookaheadCoverages(st, lookup, e.gdef, i+1, rc.LookaheadCoverages) {
				continue
			}
			if err := st.Replace(i, rc.Substitutes[idx]); err != nil {
				return changed, err
			}
			changed = true
			break
		}
	}
	return changed, nil
}
