package tray

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strconv"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const iconSize = 32

var (
	bellColor  = color.NRGBA{R: 0xec, G: 0xef, B: 0xf4, A: 0xff}
	mutedColor = color.NRGBA{R: 0x7b, G: 0x83, B: 0x94, A: 0xff}
	badgeColor = color.NRGBA{R: 0xbf, G: 0x61, B: 0x6a, A: 0xff}
)

// renderIcon draws the bell, greyed out under do-not-disturb, with a red
// unread badge. The result is PNG encoded for systray.SetIcon.
func renderIcon(unread int, dnd bool) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, iconSize, iconSize))

	fill := bellColor
	if dnd {
		fill = mutedColor
	}
	for y := 0; y < iconSize; y++ {
		for x := 0; x < iconSize; x++ {
			if inBell(float64(x)+0.5, float64(y)+0.5) {
				img.SetNRGBA(x, y, fill)
			}
		}
	}

	if unread > 0 {
		drawBadge(img, badgeLabel(unread))
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	return buf.Bytes()
}

// inBell reports whether the point lies in the bell silhouette: a dome, a
// flared body, the rim and the clapper.
func inBell(x, y float64) bool {
	const cx = 16.0
	dx := x - cx
	switch {
	case y >= 5 && y < 14:
		return dx*dx+(y-14)*(y-14) <= 81
	case y >= 14 && y < 23:
		half := 9 + (y-14)/3
		return dx >= -half && dx <= half
	case y >= 23 && y < 25:
		return dx >= -13 && dx <= 13
	case y >= 25 && y < 30:
		return dx*dx+(y-27)*(y-27) <= 6.25
	}
	return false
}

func badgeLabel(unread int) string {
	if unread > 9 {
		return "9+"
	}
	return strconv.Itoa(unread)
}

func drawBadge(img *image.NRGBA, label string) {
	const cx, cy, r = 24, 8, 8
	for y := cy - r; y <= cy+r; y++ {
		for x := cx - r; x <= cx+r; x++ {
			dx, dy := float64(x-cx)+0.5, float64(y-cy)+0.5
			if dx*dx+dy*dy <= r*r && image.Pt(x, y).In(img.Bounds()) {
				img.SetNRGBA(x, y, badgeColor)
			}
		}
	}

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.White),
		Face: basicfont.Face7x13,
	}
	width := d.MeasureString(label).Ceil()
	d.Dot = fixed.P(cx-width/2+1, cy+5)
	d.DrawString(label)
}

// entryIcon shrinks a notification thumbnail to menu icon size and encodes
// it as PNG. Without an image the icon is fully transparent, so a reused
// menu slot never keeps an earlier thumbnail.
func entryIcon(src *image.NRGBA, size int) []byte {
	dst := image.NewNRGBA(image.Rect(0, 0, size, size))
	if src != nil && !src.Bounds().Empty() {
		draw.ApproxBiLinear.Scale(dst, fitRect(src.Bounds(), size), src, src.Bounds(), draw.Over, nil)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil
	}
	return buf.Bytes()
}

// fitRect centres a box of the source aspect ratio inside size x size.
func fitRect(b image.Rectangle, size int) image.Rectangle {
	w, h := b.Dx(), b.Dy()
	if w >= h {
		h = max(1, h*size/w)
		w = size
	} else {
		w = max(1, w*size/h)
		h = size
	}
	x, y := (size-w)/2, (size-h)/2
	return image.Rect(x, y, x+w, y+h)
}
