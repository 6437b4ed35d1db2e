package imaging

import (
	"image"
	"image/color"
)

// AlphaMask converts a user mask into the form the matting passes sample:
// white colour with the mask value in the alpha channel.
//
// Masks carrying transparency keep their alpha. Fully opaque masks (the
// usual black/white PNG) use their luminance instead.
func AlphaMask(img image.Image) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))

	useAlpha := false
	for y := b.Min.Y; y < b.Max.Y && !useAlpha; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a != 0xffff {
				useAlpha = true
				break
			}
		}
	}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			var v uint8
			if useAlpha {
				v = color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA).A
			} else {
				v = color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y
			}
			out.SetNRGBA(x-b.Min.X, y-b.Min.Y, color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: v})
		}
	}
	return out
}

// Solid returns a width x height image filled with c.
func Solid(width, height int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
	}
	return img
}

// AlphaBounds returns the smallest rectangle holding every pixel whose
// alpha exceeds threshold. It is empty when there is none.
func AlphaBounds(img *image.NRGBA, threshold uint8) image.Rectangle {
	var r image.Rectangle
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.Pix[img.PixOffset(x, y)+3] > threshold {
				r = r.Union(image.Rect(x, y, x+1, y+1))
			}
		}
	}
	return r
}

// Coverage returns the mean alpha of img in [0,1].
func Coverage(img *image.NRGBA) float64 {
	b := img.Bounds()
	if b.Empty() {
		return 0
	}
	var sum uint64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			sum += uint64(img.Pix[img.PixOffset(x, y)+3])
		}
	}
	return float64(sum) / float64(255*b.Dx()*b.Dy())
}
