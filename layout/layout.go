// Package layout turns a run of Unicode text into a flat sequence of
// positioned glyph records: line breaking, soft wrap and alignment, driven
// by a caller-supplied style resolver and per-glyph metrics provider.
package layout

import (
	"math"
	"unicode"

	"github.com/rivo/uniseg"

	"otshape/ot"
)

// GlyphMetricsProvider exposes the font-unit quantities the layout loop
// needs to turn a glyph ID into a scaled, point-sized extent. font.Style
// satisfies it by converting the values of its font's ot.Face.
type GlyphMetricsProvider interface {
	Advance(gid ot.GlyphID) float32
	Ascender() float32
	Descender() float32
	LineGap() float32
	ScaleFactor() float32
}

// AppliedStyle is the style in effect for a contiguous range of code points,
// as returned by a StyleResolver. Start/End mark the covered range
// [Start,End); the loop refreshes the style once the cursor advances past
// End.
type AppliedStyle struct {
	Start, End         int
	PointSize          float32
	TabWidthMultiplier float32
	Features           []string
	Metrics            GlyphMetricsProvider
	Resolve            func(cp rune) (ot.GlyphID, bool)
}

func (s AppliedStyle) covers(cpIndex int) bool {
	return cpIndex >= s.Start && cpIndex < s.End
}

// StyleResolver returns the AppliedStyle covering cpIndex, out of total code
// points in the (possibly trimmed) run.
type StyleResolver func(cpIndex, total int) AppliedStyle

// HAlign selects how a line is positioned within the wrapping width.
type HAlign int

const (
	AlignLeft HAlign = iota
	AlignCenter
	AlignRight
)

// VAlign selects how the whole block is positioned relative to origin.
type VAlign int

const (
	AlignTop VAlign = iota
	AlignMiddle
	AlignBottom
)

// WordBreak controls where a soft wrap is allowed to fall.
type WordBreak int

const (
	// WordBreakNormal follows UAX-14 opportunities.
	WordBreakNormal WordBreak = iota
	// WordBreakAll allows a wrap before any grapheme, ignoring UAX-14.
	WordBreakAll
	// WordBreakKeepAll never wraps inside a run of CJK code points.
	WordBreakKeepAll
)

// Options configures one Generate call.
type Options struct {
	DPIX, DPIY          float32
	OriginX, OriginY    float32
	WrappingWidth       float32
	HorizontalAlignment HAlign
	VerticalAlignment   VAlign
	LineSpacing         float32
	WordBreaking        WordBreak
	GetStyle            StyleResolver
}

// GlyphLayout is one positioned glyph in logical reading order.
type GlyphLayout struct {
	GraphemeIndex int
	CodePoint     rune
	Glyph         ot.GlyphID
	X, Y          float32
	Width, Height float32
	LineHeight    float32
	StartOfLine   bool
}

func isCR(r rune) bool { return r == '\r' }

func isNewline(r rune) bool {
	switch r {
	case '\n', '\v', '\f', '\u0085', '\u2028', '\u2029':
		return true
	}
	return false
}

func isTab(r rune) bool { return r == '\t' }

func isWhitespace(r rune) bool { return unicode.IsSpace(r) }

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hangul, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r)
}

func trimTrailingWhitespace(runes []rune) []rune {
	end := len(runes)
	for end > 0 && isWhitespace(runes[end-1]) {
		end--
	}
	return runes[:end]
}

type grapheme struct {
	runes          []rune
	start          int
	canBreakAfter  bool
	mustBreakAfter bool
}

func segmentGraphemes(runes []rune) []grapheme {
	var out []grapheme
	state := -1
	rest := string(runes)
	cpIndex := 0
	for len(rest) > 0 {
		cluster, remainder, boundaries, newState := uniseg.StepString(rest, state)
		cr := []rune(cluster)
		out = append(out, grapheme{
			runes:          cr,
			start:          cpIndex,
			canBreakAfter:  uniseg.LineCanBreak(boundaries),
			mustBreakAfter: uniseg.LineMustBreak(boundaries),
		})
		cpIndex += len(cr)
		rest = remainder
		state = newState
	}
	return out
}

type breakEvent struct {
	positionWrap int
	required     bool
}

// Generate lays out text according to opts, producing one GlyphLayout per
// resolvable code point in logical reading order.
func Generate(text []rune, opts Options) ([]GlyphLayout, error) {
	dpiX, dpiY := opts.DPIX, opts.DPIY
	if dpiX == 0 {
		dpiX = 1
	}
	if dpiY == 0 {
		dpiY = 1
	}
	originX := opts.OriginX / dpiX
	originY := opts.OriginY / dpiY

	runes := text
	wrapping := opts.WrappingWidth > 0
	if wrapping {
		runes = trimTrailingWhitespace(runes)
	}
	if len(runes) == 0 {
		return nil, nil
	}

	var maxWidth float32 = float32(math.Inf(1))
	var startX float32
	if wrapping {
		maxWidth = opts.WrappingWidth / dpiX
		switch opts.HorizontalAlignment {
		case AlignCenter:
			startX = maxWidth / 2
		case AlignRight:
			startX = maxWidth
		}
	}

	lineSpacing := opts.LineSpacing
	if lineSpacing == 0 {
		lineSpacing = 1
	}

	graphemes := segmentGraphemes(runes)
	total := len(runes)

	var events []breakEvent
	for _, g := range graphemes {
		if g.canBreakAfter || g.mustBreakAfter {
			events = append(events, breakEvent{
				positionWrap: g.start + len(g.runes),
				required:     g.mustBreakAfter,
			})
		}
	}
	evIdx := 0
	nextWrappableLocation := -1
	if len(events) > 0 {
		nextWrappableLocation = events[0].positionWrap - 1
	}

	var layout []GlyphLayout
	var isWS []bool // parallel to layout: true if the record is a whitespace/tab/CR advance

	var style AppliedStyle
	haveStyle := false

	penX, penY := startX, float32(0)
	var lineHeight, lineMaxAscender, lineMaxDescender float32
	firstLine := true
	var top float32
	lastWrappableLocation := -1
	startOfLine := true

	emit := func(graphemeIdx int, cp rune, gid ot.GlyphID, width, height float32, ws bool) {
		layout = append(layout, GlyphLayout{
			GraphemeIndex: graphemeIdx,
			CodePoint:     cp,
			Glyph:         gid,
			X:             penX,
			Y:             penY,
			Width:         width,
			Height:        height,
			LineHeight:    lineHeight,
			StartOfLine:   startOfLine,
		})
		isWS = append(isWS, ws)
		startOfLine = false
	}

	for gi, g := range graphemes {
		for localIdx, cp := range g.runes {
			cpIndex := g.start + localIdx

			if !haveStyle || !style.covers(cpIndex) {
				style = opts.GetStyle(cpIndex, total)
				haveStyle = true
			}

			gid, ok := style.Resolve(cp)
			if !ok {
				continue
			}

			m := style.Metrics
			ptSize := style.PointSize
			scale := m.ScaleFactor()
			candidate := (m.Ascender() - m.Descender() + m.LineGap()) * ptSize * scale * lineSpacing
			if candidate > lineHeight {
				lineHeight = candidate
			}
			asc := m.Ascender() * ptSize * scale
			if asc > lineMaxAscender {
				lineMaxAscender = asc
			}
			desc := m.Descender() * ptSize * scale
			if desc < 0 {
				desc = -desc
			}
			if desc > lineMaxDescender {
				lineMaxDescender = desc
			}

			if firstLine {
				switch opts.VerticalAlignment {
				case AlignTop:
					top = lineMaxAscender
				case AlignMiddle:
					top = (asc - m.Descender()*ptSize*scale) / 2
				case AlignBottom:
					top = -lineMaxDescender
				}
			}

			isWrapPoint := cpIndex == nextWrappableLocation
			requiredPending := evIdx < len(events) && events[evIdx].required && cpIndex >= events[evIdx].positionWrap-1
			if (isWrapPoint || opts.WordBreaking == WordBreakAll || requiredPending) &&
				!(opts.WordBreaking == WordBreakKeepAll && isCJK(cp)) {
				idx := len(layout) - 1
				for idx >= 0 && isWS[idx] {
					idx--
				}
				lastWrappableLocation = idx + 1
			}
			if isWrapPoint {
				evIdx++
				if evIdx < len(events) {
					nextWrappableLocation = events[evIdx].positionWrap - 1
				} else {
					nextWrappableLocation = -1
				}
			}

			advance := m.Advance(gid) * ptSize * scale

			switch {
			case isCR(cp):
				penX = 0
				layout = append(layout, GlyphLayout{
					GraphemeIndex: gi, CodePoint: cp, Glyph: gid,
					X: penX, Y: penY, Width: 0, Height: lineHeight,
					LineHeight: lineHeight, StartOfLine: true,
				})
				isWS = append(isWS, true)
				startOfLine = false

			case isNewline(cp):
				emit(gi, cp, gid, 0, lineHeight, false)
				penX = 0
				penY += lineHeight
				lineHeight, lineMaxAscender, lineMaxDescender = 0, 0, 0
				firstLine = false
				lastWrappableLocation = -1
				startOfLine = true

			case isTab(cp):
				tabStop := advance * style.TabWidthMultiplier
				if tabStop <= 0 {
					tabStop = advance
				}
				finalWidth := tabStop - float32(math.Mod(float64(penX), float64(tabStop)))
				if finalWidth < advance {
					finalWidth += tabStop
				}
				emit(gi, cp, gid, finalWidth, lineHeight, true)
				penX += finalWidth

			case isWhitespace(cp):
				emit(gi, cp, gid, advance, lineHeight, true)
				penX += advance

			default:
				emit(gi, cp, gid, advance, lineHeight, false)
				penX += advance

				if wrapping && penX >= maxWidth && lastWrappableLocation > 0 && lastWrappableLocation < len(layout) {
					i := lastWrappableLocation
					for i < len(layout) && isWS[i] {
						i++
					}
					// Whatever this line accumulated before the first
					// surviving record is baked into its X already; that's
					// the amount the wrapped remainder needs shifted back by.
					wrappingOffset := float32(0)
					if i < len(layout) {
						wrappingOffset = layout[i].X
					}
					if i > lastWrappableLocation {
						layout = append(layout[:lastWrappableLocation], layout[i:]...)
						isWS = append(isWS[:lastWrappableLocation], isWS[i:]...)
					}
					for j := lastWrappableLocation; j < len(layout); j++ {
						layout[j].X -= wrappingOffset
						layout[j].Y += lineHeight
					}
					if lastWrappableLocation < len(layout) {
						layout[lastWrappableLocation].StartOfLine = true
					}
					if n := len(layout); n > 0 {
						last := layout[n-1]
						penX = last.X + last.Width
					} else {
						penX = 0
					}
					penY += lineHeight
					firstLine = false
					lastWrappableLocation = -1
				}
			}
		}
	}

	// Vertical placement.
	totalHeight := penY + lineHeight
	offsetY := top
	switch opts.VerticalAlignment {
	case AlignMiddle:
		offsetY -= totalHeight / 2
	case AlignBottom:
		offsetY -= totalHeight
	}
	for i := range layout {
		layout[i].Y += offsetY
	}

	// Horizontal placement per line.
	i := 0
	for i < len(layout) {
		lineStart := i
		startGrapheme := layout[i].GraphemeIndex
		j := i + 1
		for j < len(layout) {
			if layout[j].StartOfLine && layout[j].GraphemeIndex != startGrapheme {
				break
			}
			j++
		}

		lineWidth := float32(0)
		for k := lineStart; k < j; k++ {
			w := layout[k].X + layout[k].Width
			if w > lineWidth {
				lineWidth = w
			}
		}
		if lineWidth < 0 {
			lineWidth = 0
		}

		var alignTerm float32
		switch opts.HorizontalAlignment {
		case AlignCenter:
			alignTerm = lineWidth / 2
		case AlignRight:
			alignTerm = lineWidth
		}
		xOffset := originX - alignTerm

		for k := lineStart; k < j; k++ {
			layout[k].X += xOffset
			layout[k].Y += originY
		}
		i = j
	}

	return layout, nil
}
