// Package buffer provides the glyph-set digest the substitution engine
// uses to skip cursor positions a lookup's subtables can't possibly match.
package buffer

// Codepoint represents either a Unicode codepoint or a glyph ID.
type Codepoint = uint32
