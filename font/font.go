// Package font ties the table parser, the substitution engine and the
// layout engine together behind one load-a-file, shape-a-string entry
// point.
package font

import (
	"golang.org/x/text/language"

	"otshape/gsub"
	"otshape/layout"
	"otshape/ot"
	"otshape/stream"
)

// Font wraps a parsed sfnt/OTTO file with the tables the shaper needs:
// a Face for metrics and cmap lookup, and the optional GSUB/GDEF tables
// (a font with no GSUB simply never rewrites the initial 1:1 mapping).
type Font struct {
	Face *ot.Face
	GSUB *ot.GSUB
	GDEF *ot.GDEF
}

// Load parses font data (index selects a face within a TrueType
// Collection; 0 for a plain sfnt/OTTO file).
func Load(data []byte, index int) (*Font, error) {
	raw, err := ot.ParseFont(data, index)
	if err != nil {
		return nil, err
	}
	face, err := ot.NewFace(raw)
	if err != nil {
		return nil, err
	}

	f := &Font{Face: face}

	if gsubData, err := raw.TableData(ot.TagGSUB); err == nil {
		tbl, err := ot.ParseGSUB(gsubData)
		if err != nil {
			return nil, err
		}
		f.GSUB = tbl
	}

	if gdefData, err := raw.TableData(ot.TagGDEF); err == nil {
		tbl, err := ot.ParseGDEF(gdefData)
		if err != nil {
			return nil, err
		}
		f.GDEF = tbl
	}

	return f, nil
}

// Style is one point size/feature-set combination applied over a range of
// code points; it satisfies layout.GlyphMetricsProvider by delegating to
// its Font's Face and builds the layout.AppliedStyle the layout engine consumes.
type Style struct {
	Font               *Font
	PointSize          float32
	TabWidthMultiplier float32
	Features           []string
}

func (s Style) Advance(gid ot.GlyphID) float32 { return s.Font.Face.HorizontalAdvance(gid) }
func (s Style) Ascender() float32              { return float32(s.Font.Face.Ascender()) }
func (s Style) Descender() float32             { return float32(s.Font.Face.Descender()) }
func (s Style) LineGap() float32               { return float32(s.Font.Face.LineGap()) }
func (s Style) ScaleFactor() float32           { return s.Font.Face.ScaleFactor() }

// resolve maps a code point to a glyph ID through the font's cmap. A
// missing mapping is reported as MissingGlyph (ok=false), never an error;
// the layout engine skips the slot.
func (s Style) resolve(cp rune) (ot.GlyphID, bool) {
	cmap := s.Font.Face.Cmap()
	if cmap == nil {
		return 0, false
	}
	return cmap.Lookup(ot.Codepoint(cp))
}

// Applied returns the layout.AppliedStyle covering [start,end) that the
// layout engine refreshes against as its cursor advances.
func (s Style) Applied(start, end int) layout.AppliedStyle {
	return layout.AppliedStyle{
		Start:              start,
		End:                end,
		PointSize:          s.PointSize,
		TabWidthMultiplier: s.TabWidthMultiplier,
		Features:           s.Features,
		Metrics:            s,
		Resolve:            s.resolve,
	}
}

// StyleResolver picks the Style in effect for a code point; Resolver turns
// it into the layout.StyleResolver the layout engine calls.
type StyleResolver func(cpIndex, total int) Style

// sameStyle reports whether two Styles describe the same run, without
// relying on Go equality (Features is a slice, so Style isn't comparable).
func sameStyle(a, b Style) bool {
	if a.Font != b.Font || a.PointSize != b.PointSize || a.TabWidthMultiplier != b.TabWidthMultiplier {
		return false
	}
	if len(a.Features) != len(b.Features) {
		return false
	}
	for i, f := range a.Features {
		if b.Features[i] != f {
			return false
		}
	}
	return true
}

// Resolver adapts a StyleResolver to layout.StyleResolver. Each returned
// Style covers the run from cpIndex up to the next index whose Style
// differs (probed lazily one code point ahead), so the layout loop still
// refreshes exactly at style boundaries.
func (r StyleResolver) Resolver(total int) layout.StyleResolver {
	return func(cpIndex, _ int) layout.AppliedStyle {
		cur := r(cpIndex, total)
		end := total
		for i := cpIndex + 1; i < total; i++ {
			if next := r(i, total); !sameStyle(next, cur) {
				end = i
				break
			}
		}
		return cur.Applied(cpIndex, end)
	}
}

// otLangSysTag maps an ISO 639-1 code to its registered OpenType LangSys
// tag (the "OpenType Language System Tags" registry) for the languages
// common enough to be worth a direct mapping. gsub.tagFromString pads the
// 3-letter result with a trailing space to the full 4-byte tag. A code
// with no entry here falls back to the font's default LangSys.
var otLangSysTag = map[string]string{
	"en": "ENG", "de": "DEU", "fr": "FRA", "es": "ESP", "it": "ITA",
	"pt": "PTG", "nl": "NLD", "pl": "PLK", "tr": "TRK", "vi": "VIT",
	"th": "THA", "el": "ELL", "cs": "CSY", "hu": "HUN", "ro": "ROM",
	"sv": "SVE", "da": "DAN", "nb": "NOR", "nn": "NOR", "fi": "FIN",
	"uk": "UKR", "bg": "BGR", "hr": "HRV", "sk": "SKY", "sl": "SLV",
	"lt": "LTH", "lv": "LVI", "et": "ETI", "sq": "SQI", "hy": "HYE",
	"ka": "KAT", "fa": "FAR", "ur": "URD", "hi": "HIN", "bn": "BEN",
	"ta": "TAM", "te": "TEL", "ml": "MAL", "kn": "KAN", "gu": "GUJ",
	"pa": "PAN", "mr": "MAR", "ne": "NEP", "si": "SNH", "my": "BRM",
	"km": "KHM", "lo": "LAO", "mn": "MNG", "ja": "JAN", "ko": "KOR",
	"zh": "ZHS", "ar": "ARA", "he": "IWR", "ru": "RUS", "id": "IND",
	"ms": "MLY", "is": "ISL", "ga": "IRI", "cy": "WEL", "eu": "EUQ",
	"ca": "CAT", "gl": "GAL", "af": "AFK", "sw": "SWK", "am": "AMH",
}

// normalizeLangTag canonicalizes a BCP-47 language tag (e.g. "en-US") and
// resolves its base language to the OpenType LangSys tag a font actually
// declares. Unparseable or unmapped tags fall back to the default LangSys
// by returning the empty string.
func normalizeLangTag(bcp47 string) string {
	if bcp47 == "" {
		return ""
	}
	tag, err := language.Parse(bcp47)
	if err != nil {
		return ""
	}
	base, confidence := tag.Base()
	if confidence == language.No {
		return ""
	}
	return otLangSysTag[base.String()]
}

// Shape runs GSUB substitution (if the font has a GSUB table and the
// requested script/features resolve) and then lays the text out. script is
// a 4-letter OpenType script tag (e.g. "latn"); lang is a BCP-47 language
// tag (e.g. "en-US") or "" for the font's default LangSys. The reported
// bool mirrors run_gsub's contract: whether any lookup rewrote the stream.
// Layout's own glyph resolution runs independently off the font's cmap
// (the two core operations are decoupled entry points, not a pipeline);
// Shape exercises both against one loaded font as a single convenience
// call for callers that don't need the intermediate stream.
func Shape(f *Font, text []rune, script, lang string, features []string, opts layout.Options) ([]layout.GlyphLayout, bool, error) {
	st := stream.New()
	cmap := f.Face.Cmap()
	for i, cp := range text {
		gid, ok := ot.GlyphID(0), false
		if cmap != nil {
			gid, ok = cmap.Lookup(ot.Codepoint(cp))
		}
		if !ok {
			continue
		}
		if err := st.Add(gid, cp, i); err != nil {
			return nil, false, err
		}
	}

	var substituted bool
	if f.GSUB != nil && st.Count() > 0 {
		var err error
		substituted, err = gsub.Run(st, f.GSUB, f.GDEF, script, normalizeLangTag(lang), features)
		if err != nil {
			return nil, false, err
		}
	}

	out, err := layout.Generate(text, opts)
	return out, substituted, err
}
