// Package render draws the odds card that accompanies odds broadcasts: one
// row per market, a red back-odds box and a green lay-odds box on a dark
// background, PNG-encoded for the transport layer.
package render

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"sort"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"crexbot/internal/crex"
)

type section struct {
	label     string
	values    [2]string
	underline bool
}

var (
	background = color.RGBA{35, 35, 35, 255}
	labelInk   = color.RGBA{220, 220, 220, 255}

	redFill     = color.RGBA{60, 0, 0, 255}
	redBorder   = color.RGBA{255, 50, 50, 255}
	redInk      = color.RGBA{255, 200, 200, 255}
	greenFill   = color.RGBA{0, 60, 0, 255}
	greenBorder = color.RGBA{50, 255, 50, 255}
	greenInk    = color.RGBA{200, 255, 200, 255}

	underlineInk = color.RGBA{255, 255, 255, 255}
)

// Odds renders an odds snapshot to a PNG, or nil when no market in the
// snapshot is drawable (both odds present, no N/A placeholders). It
// satisfies the engine's render hook.
func Odds(o *crex.OddsSnapshot) ([]byte, error) {
	sections := buildSections(o)
	if len(sections) == 0 {
		return nil, nil
	}

	const (
		sectionHeight = 70
		padding       = 25
		boxWidth      = 70
		boxHeight     = 35
		leftMargin    = 20
	)
	face := basicfont.Face7x13

	labelWidth := 0
	for _, s := range sections {
		if w := font.MeasureString(face, s.label).Ceil(); w > labelWidth {
			labelWidth = w
		}
	}
	labelWidth += 20

	width := leftMargin + labelWidth + 2*boxWidth + 100
	height := 2*padding + len(sections)*sectionHeight

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	y := padding
	for _, s := range sections {
		x := leftMargin
		drawText(img, face, x, y+boxHeight/2, s.label, labelInk)
		x += labelWidth

		drawBox(img, face, x, y, boxWidth, boxHeight, redFill, redBorder, redInk, s.values[0])
		x += boxWidth + 20
		drawBox(img, face, x, y, boxWidth, boxHeight, greenFill, greenBorder, greenInk, s.values[1])

		if s.underline {
			lineY := y + boxHeight + 10
			fill(img, image.Rect(leftMargin, lineY, width-leftMargin, lineY+2), underlineInk)
			y += 15
		}
		y += sectionHeight
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// buildSections turns the snapshot into drawable rows: one team market (the
// first team by name, underlined like a header) followed by every over
// projection that carries both sides of the market.
func buildSections(o *crex.OddsSnapshot) []section {
	if o == nil {
		return nil
	}
	var sections []section

	teams := make([]string, 0, len(o.Odds))
	for team := range o.Odds {
		teams = append(teams, team)
	}
	sort.Strings(teams)
	for _, team := range teams {
		odds := o.Odds[team]
		if len(odds) < 2 {
			continue
		}
		label := team
		if len(label) > 10 {
			label = label[:10]
		}
		sections = append(sections, section{
			label:     label,
			values:    [2]string{odds[0], odds[1]},
			underline: true,
		})
		break
	}

	for _, proj := range o.OverProjections {
		if proj.YesOdds == crex.NA || proj.NoOdds == crex.NA {
			continue
		}
		sections = append(sections, section{
			label:  proj.Title,
			values: [2]string{proj.NoOdds, proj.YesOdds},
		})
	}
	return sections
}

func drawBox(img *image.RGBA, face font.Face, x, y, w, h int, fillCol, borderCol, ink color.RGBA, text string) {
	r := image.Rect(x, y, x+w, y+h)
	fill(img, r, fillCol)
	// 1px border
	fill(img, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+1), borderCol)
	fill(img, image.Rect(r.Min.X, r.Max.Y-1, r.Max.X, r.Max.Y), borderCol)
	fill(img, image.Rect(r.Min.X, r.Min.Y, r.Min.X+1, r.Max.Y), borderCol)
	fill(img, image.Rect(r.Max.X-1, r.Min.Y, r.Max.X, r.Max.Y), borderCol)
	drawText(img, face, x+8, y+h/2, text, ink)
}

func fill(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	draw.Draw(img, r, image.NewUniform(c), image.Point{}, draw.Src)
}

// drawText draws s with its vertical center at y.
func drawText(img *image.RGBA, face font.Face, x, y int, s string, c color.RGBA) {
	m := face.Metrics()
	baseline := y + (m.Ascent.Ceil()-m.Descent.Ceil())/2
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, baseline),
	}
	d.DrawString(s)
}
