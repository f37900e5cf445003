// Package badge draws small two-part status images ("inhaler | wait 2h 5m")
// for embedding the gate state outside the HTML client.
package badge

import (
	"fmt"
	"image"
	"image/color"
	stddraw "image/draw"
	"image/png"
	"io"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/phillip-england/habitlog/internal/cooldown"
	"github.com/phillip-england/habitlog/internal/tracker"
)

const (
	padding  = 6
	height   = 20
	maxScale = 4
)

var (
	labelColor    = color.RGBA{R: 0x55, G: 0x55, B: 0x55, A: 0xff}
	eligibleColor = color.RGBA{R: 0x2e, G: 0x9e, B: 0x44, A: 0xff}
	cooldownColor = color.RGBA{R: 0xd9, G: 0x7b, B: 0x12, A: 0xff}
	degradedColor = color.RGBA{R: 0x9f, G: 0x9f, B: 0x9f, A: 0xff}
	textColor     = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
)

type Badge struct {
	Label   string
	Message string
	Color   color.RGBA
}

// ForView describes a category view: green when a regular event is
// allowed, amber with the remaining time otherwise, grey when the log
// could not be read.
func ForView(view tracker.View) Badge {
	b := Badge{Label: view.Category.Key}
	switch {
	case view.Degraded:
		b.Message = "unavailable"
		b.Color = degradedColor
	case view.Status.State == cooldown.StateCooldown:
		b.Message = "wait " + tracker.FormatDuration(view.Status.Remaining)
		b.Color = cooldownColor
	case view.Status.HasLast:
		b.Message = tracker.FormatDuration(view.Status.Elapsed) + " ago"
		b.Color = eligibleColor
	default:
		b.Message = "no events"
		b.Color = eligibleColor
	}
	return b
}

func textWidth(s string) int {
	d := font.Drawer{Face: basicfont.Face7x13}
	return d.MeasureString(s).Ceil()
}

// Image renders the badge at 1x.
func (b Badge) Image() *image.RGBA {
	labelW := textWidth(b.Label) + 2*padding
	msgW := textWidth(b.Message) + 2*padding
	img := image.NewRGBA(image.Rect(0, 0, labelW+msgW, height))

	stddraw.Draw(img, image.Rect(0, 0, labelW, height), image.NewUniform(labelColor), image.Point{}, stddraw.Src)
	stddraw.Draw(img, image.Rect(labelW, 0, labelW+msgW, height), image.NewUniform(b.Color), image.Point{}, stddraw.Src)

	face := basicfont.Face7x13
	baseline := (height+face.Ascent-face.Descent)/2 + 1
	d := font.Drawer{Dst: img, Src: image.NewUniform(textColor), Face: face}
	d.Dot = fixed.P(padding, baseline)
	d.DrawString(b.Label)
	d.Dot = fixed.P(labelW+padding, baseline)
	d.DrawString(b.Message)
	return img
}

// WritePNG encodes the badge scaled by an integer factor in [1, 4].
func (b Badge) WritePNG(w io.Writer, scale int) error {
	if scale < 1 || scale > maxScale {
		return fmt.Errorf("scale must be between 1 and %d, got %d", maxScale, scale)
	}
	var img image.Image = b.Image()
	if scale > 1 {
		src := img.Bounds()
		scaled := image.NewRGBA(image.Rect(0, 0, src.Dx()*scale, src.Dy()*scale))
		xdraw.NearestNeighbor.Scale(scaled, scaled.Bounds(), img, src, xdraw.Src, nil)
		img = scaled
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode badge: %w", err)
	}
	return nil
}
