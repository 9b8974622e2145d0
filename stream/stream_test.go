package stream

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddAndGet(t *testing.T) {
	s := New()
	require.NoError(t, s.Add(10, 'a', 0))
	require.NoError(t, s.Add(11, 'b', 1))
	require.Equal(t, 2, s.Count())

	gids, err := s.Get(0)
	require.NoError(t, err)
	require.Equal(t, []GlyphID{10}, gids)

	cp, offset, gids, err := s.GlyphsAndOffset(1)
	require.NoError(t, err)
	require.Equal(t, rune('b'), cp)
	require.Equal(t, 1, offset)
	require.Equal(t, []GlyphID{11}, gids)
}

func TestAddRequiresIncreasingOffset(t *testing.T) {
	s := New()
	require.NoError(t, s.Add(1, 'a', 5))
	require.ErrorIs(t, s.Add(2, 'b', 5), ErrInvalidArgument)
	require.ErrorIs(t, s.Add(2, 'b', 4), ErrInvalidArgument)
	require.NoError(t, s.Add(2, 'b', 6))
}

func TestGetOutOfRange(t *testing.T) {
	s := New()
	require.NoError(t, s.Add(1, 'a', 0))
	_, err := s.Get(1)
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = s.Get(-1)
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestTryGetAtOffset(t *testing.T) {
	s := New()
	require.NoError(t, s.Add(1, 'a', 0))
	require.NoError(t, s.Add(2, 'b', 3))

	cp, gids, ok := s.TryGetAtOffset(3)
	require.True(t, ok)
	require.Equal(t, rune('b'), cp)
	require.Equal(t, []GlyphID{2}, gids)

	_, _, ok = s.TryGetAtOffset(1)
	require.False(t, ok)
}

func TestReplaceSingle(t *testing.T) {
	s := New()
	require.NoError(t, s.Add(1, 'a', 0))
	require.NoError(t, s.Replace(0, 99))

	gids, err := s.Get(0)
	require.NoError(t, err)
	require.Equal(t, []GlyphID{99}, gids)

	_, offset, _, err := s.GlyphsAndOffset(0)
	require.NoError(t, err)
	require.Equal(t, 0, offset)
}

func TestReplaceCountLigature(t *testing.T) {
	// "fi" -> ligature glyph, Count decreases by inputLength-1 and the
	// offset of the first consumed slot survives.
	s := New()
	require.NoError(t, s.Add(10, 'f', 0))
	require.NoError(t, s.Add(11, 'i', 1))
	require.NoError(t, s.Add(12, 'x', 2))

	require.NoError(t, s.ReplaceCount(0, 2, 200))
	require.Equal(t, 2, s.Count())

	cp, offset, gids, err := s.GlyphsAndOffset(0)
	require.NoError(t, err)
	require.Equal(t, rune('f'), cp)
	require.Equal(t, 0, offset)
	require.Equal(t, []GlyphID{200}, gids)

	// offset 1 ('i') no longer resolvable; it was discarded by the collapse.
	_, _, ok := s.TryGetAtOffset(1)
	require.False(t, ok)

	// the surviving slot after the ligature is still reachable by its own offset.
	_, gids, ok = s.TryGetAtOffset(2)
	require.True(t, ok)
	require.Equal(t, []GlyphID{12}, gids)
}

func TestReplaceManyExpansion(t *testing.T) {
	s := New()
	require.NoError(t, s.Add(1, 'x', 0))
	require.NoError(t, s.Add(2, 'y', 1))

	require.NoError(t, s.ReplaceMany(0, []GlyphID{5, 6, 7}))
	require.Equal(t, 2, s.Count(), "expansion must not change slot count")

	gids, err := s.Get(0)
	require.NoError(t, err)
	require.Equal(t, []GlyphID{5, 6, 7}, gids)
}

func TestReplaceManyRejectsEmpty(t *testing.T) {
	s := New()
	require.NoError(t, s.Add(1, 'x', 0))
	require.ErrorIs(t, s.ReplaceMany(0, nil), ErrInvalidArgument)
}

func TestFeatures(t *testing.T) {
	s := New()
	require.NoError(t, s.Add(1, 'x', 0))
	require.NoError(t, s.AddFeature(0, "liga"))
	require.NoError(t, s.AddFeature(0, "calt"))

	tags, err := s.Features(0)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"liga", "calt"}, tags)
}

func TestFeaturesSurviveLigatureCollapse(t *testing.T) {
	s := New()
	require.NoError(t, s.Add(1, 'f', 0))
	require.NoError(t, s.Add(2, 'i', 1))
	require.NoError(t, s.AddFeature(0, "liga"))
	require.NoError(t, s.AddFeature(1, "liga"))
	require.NoError(t, s.AddFeature(1, "calt"))

	require.NoError(t, s.ReplaceCount(0, 2, 99))

	tags, err := s.Features(0)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"liga", "calt"}, tags)
}

func TestClear(t *testing.T) {
	s := New()
	require.NoError(t, s.Add(1, 'x', 0))
	s.Clear()
	require.Equal(t, 0, s.Count())
	require.NoError(t, s.Add(1, 'x', 0), "offset sequencing resets after Clear")
}

func TestOffsetsStayMonotoneUnderMixedMutation(t *testing.T) {
	// Invariant 1: offsets remain strictly monotonic through arbitrary
	// sequences of add, replace(...count...) and replace(...list).
	s := New()
	require.NoError(t, s.Add(1, 'a', 0))
	require.NoError(t, s.Add(2, 'b', 1))
	require.NoError(t, s.Add(3, 'c', 2))
	require.NoError(t, s.Add(4, 'd', 3))

	require.NoError(t, s.ReplaceMany(1, []GlyphID{20, 21}))
	require.NoError(t, s.ReplaceCount(2, 2, 99))

	var last int
	for i := 0; i < s.Count(); i++ {
		_, offset, _, err := s.GlyphsAndOffset(i)
		require.NoError(t, err)
		if i > 0 {
			require.Greater(t, offset, last)
		}
		last = offset
	}
}
