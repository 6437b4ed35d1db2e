// Package imaging holds the image plumbing around the matting core:
// resizing, decoding, encoding and mask helpers.
package imaging

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// ErrInvalidSize is returned when a resize target is empty.
var ErrInvalidSize = errors.New("imaging: invalid size")

// Resizer scales images with an x/image/draw interpolator.
//
// Colour and alpha are scaled as separate planes. Going through draw's
// premultiplied path would zero the colour of transparent pixels, and the
// matting passes store meaningful colour under zero alpha.
type Resizer struct {
	Interpolator draw.Interpolator
}

// NewResizer returns a bilinear resizer.
func NewResizer() *Resizer {
	return &Resizer{Interpolator: draw.BiLinear}
}

// Resize returns img scaled to width x height.
func (r *Resizer) Resize(img image.Image, width, height int) (*image.NRGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	src := ToNRGBA(img)
	sb := src.Bounds()
	if sb.Empty() {
		return nil, fmt.Errorf("%w: empty source", ErrInvalidSize)
	}
	if sb.Dx() == width && sb.Dy() == height {
		return src, nil
	}

	rgb := image.NewRGBA(sb)
	alpha := image.NewGray(sb)
	for y := sb.Min.Y; y < sb.Max.Y; y++ {
		for x := sb.Min.X; x < sb.Max.X; x++ {
			c := src.NRGBAAt(x, y)
			rgb.SetRGBA(x, y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff})
			alpha.SetGray(x, y, color.Gray{Y: c.A})
		}
	}

	interp := r.Interpolator
	if interp == nil {
		interp = draw.BiLinear
	}
	dr := image.Rect(0, 0, width, height)
	rgbOut := image.NewRGBA(dr)
	alphaOut := image.NewGray(dr)
	interp.Scale(rgbOut, dr, rgb, sb, draw.Src, nil)
	interp.Scale(alphaOut, dr, alpha, sb, draw.Src, nil)

	out := image.NewNRGBA(dr)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := rgbOut.RGBAAt(x, y)
			out.SetNRGBA(x, y, color.NRGBA{R: c.R, G: c.G, B: c.B, A: alphaOut.GrayAt(x, y).Y})
		}
	}
	return out, nil
}

// ToNRGBA returns img as an *image.NRGBA with a zero origin, copying only
// when it has to.
func ToNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	if n, ok := img.(*image.NRGBA); ok {
		// row copy keeps colour under zero alpha
		for y := 0; y < b.Dy(); y++ {
			i := n.PixOffset(b.Min.X, b.Min.Y+y)
			copy(out.Pix[y*out.Stride:], n.Pix[i:i+4*b.Dx()])
		}
		return out
	}
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}
