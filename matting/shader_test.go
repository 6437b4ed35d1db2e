package matting

import (
	"image"
	"image/color"
	"math"
	"strings"
	"testing"

	"github.com/TIANLI0/MatteKit/imaging"
	"github.com/TIANLI0/MatteKit/render"
)

func TestMattingProgramSources(t *testing.T) {
	tests := []struct {
		sel    OutputSelector
		result string
	}{
		{Foreground, "return fg_result;"},
		{Background, "return bg_result;"},
	}
	for _, tt := range tests {
		t.Run(tt.sel.String(), func(t *testing.T) {
			p := MattingProgram(tt.sel)
			if p != MattingProgram(tt.sel) {
				t.Error("programs are not shared")
			}
			for _, want := range []string{
				"@vertex", "@fragment", "vs_main", "fs_main",
				"texture_2d<f32>", "textureSample", "0.00001", tt.result,
			} {
				if !strings.Contains(p.Source, want) {
					t.Errorf("source missing %q", want)
				}
			}
			if strings.Contains(p.Source, "%") {
				t.Error("source has an unformatted verb")
			}
			if err := render.NewSoftwareDevice().Compile(p); err != nil {
				t.Errorf("Compile: %v", err)
			}
		})
	}
}

// The fragment function must read its neighbours the same way whatever
// orientation the prior textures are stored in.
func TestMattingFragmentMatchesEstimate(t *testing.T) {
	d := render.NewSoftwareDevice()

	img := image.NewNRGBA(image.Rect(0, 0, 3, 3))
	mask := image.NewNRGBA(image.Rect(0, 0, 3, 3))
	prior := image.NewNRGBA(image.Rect(0, 0, 3, 3))
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(40 * x), G: uint8(60 * y), B: 90, A: 255})
			mask.SetNRGBA(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: uint8(30*x + 70*y)})
			prior.SetNRGBA(x, y, color.NRGBA{R: uint8(20 + 70*y), G: uint8(200 - 50*x), B: 10, A: 255})
		}
	}

	imgTex, _ := d.Upload(img)
	maskTex, _ := d.Upload(mask)
	priorTex, _ := d.Upload(prior)

	// The same prior drawn through an off-screen target ends up bottom-up.
	targets, _ := d.Allocate([]image.Point{{3, 3}})
	if err := d.Draw(targets[0], render.CopyProgram(), []render.Binding{{Texture: priorTex}}); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	flipped := render.Binding{Texture: targets[0].Texture(), Mapping: render.MappingFlipVertical}

	for _, pb := range []render.Binding{{Texture: priorTex}, flipped} {
		out, _ := d.Output(image.Pt(3, 3))
		bindings := []render.Binding{{}, {Texture: imgTex}, {Texture: maskTex}, pb, pb}
		if err := d.Draw(out, MattingProgram(Foreground), bindings); err != nil {
			t.Fatalf("Draw: %v", err)
		}
		got, _ := d.Readback(out.Texture())

		s := &Sample{
			Image: colorOf(img.NRGBAAt(1, 0)),
			Alpha: colorOf(mask.NRGBAAt(1, 0)).A,
		}
		for i, o := range crossOffsets {
			x, y := clampInt(1+o[0], 0, 2), clampInt(0+o[1], 0, 2)
			s.Neighbors[i] = Neighbor{
				Alpha: colorOf(mask.NRGBAAt(x, y)).A,
				FG:    colorOf(prior.NRGBAAt(x, y)),
				BG:    colorOf(prior.NRGBAAt(x, y)),
			}
		}
		fg, _ := Estimate(s)
		c := got.NRGBAAt(1, 0)
		want := [3]float32{fg[0], fg[1], fg[2]}
		have := [3]uint8{c.R, c.G, c.B}
		for ch := range 3 {
			if math.Abs(float64(have[ch])-float64(want[ch])*255) > 1 {
				t.Errorf("mapping %v: channel %d = %d, want %.1f", pb.Mapping, ch, have[ch], want[ch]*255)
			}
		}
		if c.A != mask.NRGBAAt(1, 0).A {
			t.Errorf("alpha = %d, want mask alpha %d", c.A, mask.NRGBAAt(1, 0).A)
		}
	}
}

func colorOf(c color.NRGBA) render.Color {
	return render.Color{
		R: float32(c.R) / 255,
		G: float32(c.G) / 255,
		B: float32(c.B) / 255,
		A: float32(c.A) / 255,
	}
}

func clampInt(v, lo, hi int) int { return min(max(v, lo), hi) }

var _ Resizer = (*imaging.Resizer)(nil)
