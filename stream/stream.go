// Package stream holds the mutable, position-indexed container that the
// substitution engine rewrites in place: one slot per source code point,
// each slot carrying one or more resolved glyph IDs plus the feature tags
// requested for it.
package stream

import "fmt"

// GlyphID is an OpenType glyph index.
type GlyphID = uint16

// ErrInvalidArgument reports a violation of a Stream method's precondition
// (duplicate or non-increasing offset, out-of-range index). The source
// model treats these as programmer errors (assert/panic); this package
// returns them instead, per Go convention.
var ErrInvalidArgument = fmt.Errorf("stream: invalid argument")

// slot is one element of the stream: the stable source offset, the
// originating code point, the current (possibly ligated or expanded) GID
// list, and the set of feature tags requested for this position.
type slot struct {
	offset   int
	cp       rune
	gids     []GlyphID
	features map[string]struct{}
}

// Stream is the hybrid dense-vector-plus-offset-map representation
// recommended by the data model: a dense position→slot vector gives O(1)
// indexed access, while the offset→index map lets lookups survive the
// non-contiguous offsets that ligature collapse produces.
type Stream struct {
	slots     []slot
	byOffset  map[int]int // source offset -> index into slots
	lastOffset int
	hasLast    bool
}

// New returns an empty stream.
func New() *Stream {
	return &Stream{byOffset: make(map[int]int)}
}

// Count returns the number of slots currently in the stream.
func (s *Stream) Count() int {
	return len(s.slots)
}

// Add appends a new slot for the given glyph, code point and source
// offset. offset must be strictly greater than every previously added
// offset; Add reports ErrInvalidArgument otherwise.
func (s *Stream) Add(gid GlyphID, cp rune, offset int) error {
	if s.hasLast && offset <= s.lastOffset {
		return fmt.Errorf("%w: offset %d not greater than previous offset %d", ErrInvalidArgument, offset, s.lastOffset)
	}
	idx := len(s.slots)
	s.slots = append(s.slots, slot{
		offset: offset,
		cp:     cp,
		gids:   []GlyphID{gid},
	})
	s.byOffset[offset] = idx
	s.lastOffset = offset
	s.hasLast = true
	return nil
}

// Get returns the glyph ID list at dense position index.
func (s *Stream) Get(index int) ([]GlyphID, error) {
	if index < 0 || index >= len(s.slots) {
		return nil, fmt.Errorf("%w: index %d out of range [0,%d)", ErrInvalidArgument, index, len(s.slots))
	}
	return s.slots[index].gids, nil
}

// GlyphsAndOffset returns the code point, source offset and glyph ID list
// of the slot at dense position index.
func (s *Stream) GlyphsAndOffset(index int) (cp rune, offset int, gids []GlyphID, err error) {
	if index < 0 || index >= len(s.slots) {
		return 0, 0, nil, fmt.Errorf("%w: index %d out of range [0,%d)", ErrInvalidArgument, index, len(s.slots))
	}
	sl := &s.slots[index]
	return sl.cp, sl.offset, sl.gids, nil
}

// TryGetAtOffset returns the code point and glyph ID list of the slot
// whose stable source offset equals offset, if one still exists.
func (s *Stream) TryGetAtOffset(offset int) (cp rune, gids []GlyphID, ok bool) {
	idx, found := s.byOffset[offset]
	if !found {
		return 0, nil, false
	}
	sl := &s.slots[idx]
	return sl.cp, sl.gids, true
}

// Replace rewrites the glyph at dense position index with a single new
// glyph ID. The slot's offset and feature set are unchanged.
func (s *Stream) Replace(index int, gid GlyphID) error {
	if index < 0 || index >= len(s.slots) {
		return fmt.Errorf("%w: index %d out of range [0,%d)", ErrInvalidArgument, index, len(s.slots))
	}
	s.slots[index].gids = []GlyphID{gid}
	return nil
}

// ReplaceCount collapses count consecutive slots starting at index into a
// single slot carrying gid (a ligature substitution). The offset of slot
// index is preserved as the survivor's offset; the offsets of the
// following count-1 slots are discarded. Feature tags of the collapsed
// slots are merged into the survivor.
func (s *Stream) ReplaceCount(index, count int, gid GlyphID) error {
	if count < 1 {
		return fmt.Errorf("%w: count %d must be >= 1", ErrInvalidArgument, count)
	}
	if index < 0 || index+count > len(s.slots) {
		return fmt.Errorf("%w: range [%d,%d) out of bounds [0,%d)", ErrInvalidArgument, index, index+count, len(s.slots))
	}

	survivor := &s.slots[index]
	for i := index + 1; i < index+count; i++ {
		delete(s.byOffset, s.slots[i].offset)
		for tag := range s.slots[i].features {
			survivor.addFeature(tag)
		}
	}
	survivor.gids = []GlyphID{gid}

	s.slots = append(s.slots[:index+1], s.slots[index+count:]...)
	s.reindexFrom(index + 1)
	return nil
}

// ReplaceMany expands the slot at index into a single slot carrying
// multiple GIDs (a multiple substitution / one-to-many expansion). The
// position count of the stream is unchanged.
func (s *Stream) ReplaceMany(index int, gids []GlyphID) error {
	if index < 0 || index >= len(s.slots) {
		return fmt.Errorf("%w: index %d out of range [0,%d)", ErrInvalidArgument, index, len(s.slots))
	}
	if len(gids) == 0 {
		return fmt.Errorf("%w: gids must be non-empty", ErrInvalidArgument)
	}
	cp := make([]GlyphID, len(gids))
	copy(cp, gids)
	s.slots[index].gids = cp
	return nil
}

// AddFeature records that feature tag was requested for the slot at
// dense position index.
func (s *Stream) AddFeature(index int, tag string) error {
	if index < 0 || index >= len(s.slots) {
		return fmt.Errorf("%w: index %d out of range [0,%d)", ErrInvalidArgument, index, len(s.slots))
	}
	s.slots[index].addFeature(tag)
	return nil
}

// Features returns the feature tags requested for the slot at dense
// position index, in no particular order.
func (s *Stream) Features(index int) ([]string, error) {
	if index < 0 || index >= len(s.slots) {
		return nil, fmt.Errorf("%w: index %d out of range [0,%d)", ErrInvalidArgument, index, len(s.slots))
	}
	fs := s.slots[index].features
	out := make([]string, 0, len(fs))
	for tag := range fs {
		out = append(out, tag)
	}
	return out, nil
}

// Clear empties the stream, discarding all slots.
func (s *Stream) Clear() {
	s.slots = s.slots[:0]
	s.byOffset = make(map[int]int)
	s.lastOffset = 0
	s.hasLast = false
}

func (sl *slot) addFeature(tag string) {
	if sl.features == nil {
		sl.features = make(map[string]struct{})
	}
	sl.features[tag] = struct{}{}
}

// reindexFrom rebuilds byOffset entries for slots[from:] after a splice
// changed their dense indices; offsets themselves never change.
func (s *Stream) reindexFrom(from int) {
	for i := from; i < len(s.slots); i++ {
		s.byOffset[s.slots[i].offset] = i
	}
}
