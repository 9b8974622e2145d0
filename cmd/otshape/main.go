// Command otshape loads a font, shapes a string against it, lays the
// result out, and prints the positioned glyphs as a table. It exists to
// exercise font/gsub/layout end to end; the core packages never import it.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/pterm/pterm"

	"otshape/font"
	"otshape/layout"
)

func main() {
	var (
		fontPath  = flag.String("font", "", "path to an OpenType/TrueType font file")
		text      = flag.String("text", "", "text to shape")
		script    = flag.String("script", "latn", "4-letter OpenType script tag")
		lang      = flag.String("lang", "", "BCP-47 language tag, empty for the font's default LangSys")
		features  = flag.String("features", "", "comma-separated feature tags, e.g. liga,kern")
		pointSz   = flag.Float64("size", 12, "point size")
		wrapWidth = flag.Float64("wrap", 0, "wrapping width in points, 0 disables wrapping")
	)
	flag.Parse()

	if *fontPath == "" || *text == "" {
		fmt.Fprintln(os.Stderr, "usage: otshape -font FILE -text STRING [-script latn] [-lang en-US] [-features liga,kern] [-size 12] [-wrap 0]")
		os.Exit(2)
	}

	data, err := os.ReadFile(*fontPath)
	if err != nil {
		log.Fatalf("reading %s: %v", *fontPath, err)
	}

	f, err := font.Load(data, 0)
	if err != nil {
		log.Fatalf("loading font: %v", err)
	}

	var featureTags []string
	if *features != "" {
		featureTags = splitCSV(*features)
	}

	style := font.Style{
		Font:               f,
		PointSize:          float32(*pointSz),
		TabWidthMultiplier: 4,
		Features:           featureTags,
	}

	opts := layout.Options{
		WrappingWidth: float32(*wrapWidth),
		DPIX:          72,
		DPIY:          72,
		GetStyle: func(cpIndex, total int) layout.AppliedStyle {
			return style.Applied(0, total)
		},
	}

	glyphs, substituted, err := font.Shape(f, []rune(*text), *script, *lang, featureTags, opts)
	if err != nil {
		log.Fatalf("shaping: %v", err)
	}

	pterm.DefaultSection.Println("otshape")
	pterm.Printf("font: %s   substituted: %v   glyphs: %d\n\n", *fontPath, substituted, len(glyphs))

	tableData := pterm.TableData{{"#", "cp", "gid", "x", "y", "width", "line start"}}
	for i, g := range glyphs {
		tableData = append(tableData, []string{
			fmt.Sprintf("%d", i),
			fmt.Sprintf("%q", g.CodePoint),
			fmt.Sprintf("%d", g.Glyph),
			fmt.Sprintf("%.2f", g.X),
			fmt.Sprintf("%.2f", g.Y),
			fmt.Sprintf("%.2f", g.Width),
			fmt.Sprintf("%v", g.StartOfLine),
		})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(tableData).Render(); err != nil {
		log.Fatalf("rendering table: %v", err)
	}
}

func splitCSV(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
