package buffer

// SetDigest is a Bloom filter for fast glyph existence checks.
//
// During shaping, lookups use the digest to quickly skip glyphs
// that can't possibly match. This avoids expensive lookup processing
// for most glyphs.
//
// The digest is not perfectly accurate (false positives possible),
// but false negatives never occur: if MayHave returns false,
// the glyph is definitely not in the set.
type SetDigest struct {
	mask uint64
}

// Add adds a glyph ID to the digest.
func (d *SetDigest) Add(g Codepoint) {
	d.mask |= 1 << (g & 63)
}

// MayHave returns true if the glyph might be in the set.
// Returns false only if the glyph is definitely not in the set.
func (d *SetDigest) MayHave(g Codepoint) bool {
	return d.mask&(1<<(g&63)) != 0
}
