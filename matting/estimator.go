package matting

import "github.com/TIANLI0/MatteKit/render"

// Epsilon biases every neighbour weight so a flat mask still contributes.
const Epsilon float32 = 1e-5

// OutputSelector picks which estimate a pass writes.
type OutputSelector uint8

const (
	Foreground OutputSelector = iota
	Background
)

func (s OutputSelector) String() string {
	if s == Background {
		return "background"
	}
	return "foreground"
}

// Neighbor holds what a pass reads at one of the four cross offsets.
type Neighbor struct {
	Alpha float32
	FG    render.Color
	BG    render.Color
}

// Sample is everything the estimator reads for one pixel.
type Sample struct {
	Image     render.Color
	Alpha     float32
	Neighbors [4]Neighbor
}

// Estimate solves the pixel's 2x2 normal equations
//
//	[a00 a01] [F]   [fg]
//	[a01 a11] [B] = [bg]
//
// built from the pixel's own alpha and the alpha differences to its four
// neighbours, and returns F and B clamped to [0,1].
//
// The determinant is not guarded beyond Epsilon. For a flat mask it is of
// order Epsilon and the result is large before clamping. A non-finite
// channel clamps to 0.
func Estimate(s *Sample) (fg, bg [3]float32) {
	a0 := s.Alpha
	a1 := 1 - a0

	a00 := a0 * a0
	a01 := a0 * a1
	a11 := a1 * a1

	img := rgb(s.Image)
	var sf, sb [3]float32
	for c := range 3 {
		sf[c] = img[c] * a0
		sb[c] = img[c] * a1
	}

	for _, n := range s.Neighbors {
		da := Epsilon + abs32(a0-n.Alpha)
		a00 += da
		a11 += da

		f, b := rgb(n.FG), rgb(n.BG)
		for c := range 3 {
			sf[c] += da * f[c]
			sb[c] += da * b[c]
		}
	}

	invDet := 1 / (a00*a11 - a01*a01)
	b00 := invDet * a11
	b01 := invDet * -a01
	b11 := invDet * a00

	for c := range 3 {
		fg[c] = clamp01(b00*sf[c] + b01*sb[c])
		bg[c] = clamp01(b01*sf[c] + b11*sb[c])
	}
	return fg, bg
}

// Emit builds the colour a pass with selector s writes: the foreground
// estimate with alpha a0, or the background estimate with alpha 1-a0.
func (s OutputSelector) Emit(fg, bg [3]float32, a0 float32) render.Color {
	if s == Background {
		return render.Color{R: bg[0], G: bg[1], B: bg[2], A: 1 - a0}
	}
	return render.Color{R: fg[0], G: fg[1], B: fg[2], A: a0}
}

func rgb(c render.Color) [3]float32 { return [3]float32{c.R, c.G, c.B} }

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func clamp01(v float32) float32 {
	if !(v > 0) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
