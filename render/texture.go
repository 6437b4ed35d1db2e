package render

import (
	"image"
	"image/color"
	"math"
)

// Texture is a block of RGBA texels owned by a Device.
//
// Off-screen targets store their rows bottom-up, the way GL framebuffers do:
// a fragment drawn at row y lands in storage row height-1-y. Sampling reads
// storage rows directly, so sampling an off-screen texture with
// MappingNormal sees it upside down.
type Texture struct {
	id       uint32
	width    int
	height   int
	pix      []Color
	bottomUp bool
	rendered bool
	released bool
}

func newTexture(id uint32, width, height int, bottomUp bool) *Texture {
	return &Texture{
		id:       id,
		width:    width,
		height:   height,
		pix:      make([]Color, width*height),
		bottomUp: bottomUp,
	}
}

// ID returns the device-local handle of t.
func (t *Texture) ID() uint32 { return t.id }

// Size returns the texture dimensions.
func (t *Texture) Size() image.Point { return image.Pt(t.width, t.height) }

// BottomUp reports whether rows are stored in framebuffer order.
func (t *Texture) BottomUp() bool { return t.bottomUp }

// Released reports whether t has been freed.
func (t *Texture) Released() bool { return t.released }

// texel returns the stored value at (x, y), clamped to the edge.
func (t *Texture) texel(x, y int) Color {
	x = min(max(x, 0), t.width-1)
	y = min(max(y, 0), t.height-1)
	return t.pix[y*t.width+x]
}

func (t *Texture) fill(c Color) {
	for i := range t.pix {
		t.pix[i] = c
	}
}

// Target is a drawable texture.
type Target struct {
	tex       *Texture
	offscreen bool
}

// Texture returns the texture a target draws into.
func (t *Target) Texture() *Texture { return t.tex }

// Size returns the target dimensions.
func (t *Target) Size() image.Point { return t.tex.Size() }

// Offscreen reports whether t is a framebuffer-ordered off-screen target.
func (t *Target) Offscreen() bool { return t.offscreen }

func toColor(c color.Color) Color {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return Color{
		R: float32(n.R) / 255,
		G: float32(n.G) / 255,
		B: float32(n.B) / 255,
		A: float32(n.A) / 255,
	}
}

// quantize maps [0,1] to a byte. NaN maps to 0.
func quantize(v float32) uint8 {
	if !(v > 0) {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(math.Round(float64(v) * 255))
}
