package matting

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/TIANLI0/MatteKit/imaging"
	"github.com/google/go-cmp/cmp"
)

type failingResizer struct{}

func (failingResizer) Resize(image.Image, int, int) (*image.NRGBA, error) {
	return nil, errors.New("resize unavailable")
}

// blockMask is transparent except for a centred inner x inner square.
func blockMask(w, h, inner int) *image.NRGBA {
	m := imaging.Solid(w, h, color.NRGBA{R: 255, G: 255, B: 255})
	x0, y0 := (w-inner)/2, (h-inner)/2
	for y := y0; y < y0+inner; y++ {
		for x := x0; x < x0+inner; x++ {
			m.SetNRGBA(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	return m
}

func TestBuildLayout(t *testing.T) {
	src := imaging.Solid(128, 128, color.NRGBA{R: 90, G: 30, B: 200, A: 255})
	s := NewScheduler(imaging.NewResizer())

	passes, err := s.Build(src, blockMask(128, 128, 64))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	// six coarse levels of 2*10+1 passes, two fine levels of 2*2+1
	if got, want := len(passes), 6*21+2*5; got != want {
		t.Fatalf("len(passes) = %d, want %d", got, want)
	}

	var perLevel []int
	for i, p := range passes {
		if p.Index != i {
			t.Errorf("passes[%d].Index = %d", i, p.Index)
		}
		if p.Level >= len(perLevel) {
			perLevel = append(perLevel, 0)
		}
		want := Foreground
		if perLevel[p.Level]%2 == 1 {
			want = Background
		}
		if p.Selector != want {
			t.Errorf("%s: selector %s, want %s", p, p.Selector, want)
		}
		if p.Program != MattingProgram(p.Selector) {
			t.Errorf("%s: wrong program %q", p, p.Program.Name)
		}
		perLevel[p.Level]++
	}
	if diff := cmp.Diff([]int{21, 21, 21, 21, 21, 21, 5, 5}, perLevel); diff != "" {
		t.Errorf("passes per level (-want +got):\n%s", diff)
	}

	last := passes[len(passes)-1]
	if last.Selector != Foreground || last.Size != image.Pt(128, 128) {
		t.Errorf("last pass = %s, want a 128x128 foreground pass", last)
	}
}

func TestBuildWiring(t *testing.T) {
	src := imaging.Solid(40, 24, color.NRGBA{R: 1, G: 2, B: 3, A: 255})
	mask := blockMask(40, 24, 10)
	s := NewScheduler(imaging.NewResizer())

	passes, err := s.Build(src, mask)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	levelStart := map[int]int{}
	for _, p := range passes {
		if _, ok := levelStart[p.Level]; !ok {
			levelStart[p.Level] = p.Index
		}
	}

	for _, p := range passes {
		start := levelStart[p.Level]
		first := passes[start]
		if p.Input(SlotImage).Image != first.Input(SlotImage).Image {
			t.Errorf("%s: image not shared across its level", p)
		}
		if p.Input(SlotMask).Image != first.Input(SlotMask).Image {
			t.Errorf("%s: mask not shared across its level", p)
		}
		if b := p.Input(SlotMask).Image.Bounds().Size(); b != p.Size {
			t.Errorf("%s: mask size %v", p, b)
		}

		fg, bg := p.Input(SlotForeground), p.Input(SlotBackground)
		k := p.Index - start
		switch {
		case p.Level == 0 && k < 2:
			// Seeds: the first pass sees the image twice; the second
			// has the first pass's foreground.
			if k == 0 && (fg.Image == nil || bg.Image == nil) {
				t.Errorf("%s: expected seeded priors, got %v %v", p, fg, bg)
			}
			if k == 1 && (fg.Pass != start || bg.Image == nil) {
				t.Errorf("%s: got priors %v %v", p, fg, bg)
			}
		case k == 0:
			// Level entry: the previous level's last foreground and
			// background.
			if fg.Pass != start-1 || bg.Pass != start-2 {
				t.Errorf("%s: level entry priors %v %v, want pass(%d) pass(%d)", p, fg, bg, start-1, start-2)
			}
		default:
			if fg.Pass < 0 || fg.Pass >= p.Index || bg.Pass < 0 || bg.Pass >= p.Index {
				t.Fatalf("%s: priors %v %v do not precede it", p, fg, bg)
			}
			if passes[fg.Pass].Selector != Foreground || passes[bg.Pass].Selector != Background {
				t.Errorf("%s: priors of the wrong kind", p)
			}
			if p.Index-fg.Pass > 2 && k > 1 {
				t.Errorf("%s: foreground prior %v is stale", p, fg)
			}
			if k > 1 && passes[fg.Pass].Level != p.Level {
				t.Errorf("%s: foreground prior from another level", p)
			}
		}
	}

	last := passes[len(passes)-1]
	if last.Input(SlotMask).Image != image.Image(mask) {
		t.Error("mask at source size should be used without resizing")
	}
}

func TestBuildZeroSeed(t *testing.T) {
	p := DefaultPolicy()
	p.Seed = SeedZero
	s := NewScheduler(imaging.NewResizer(), WithPolicy(p))

	passes, err := s.Build(imaging.Solid(4, 4, color.NRGBA{R: 200, A: 255}), blockMask(4, 4, 2))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	seed := passes[0].Input(SlotForeground).Image.(*image.NRGBA)
	for i, v := range seed.Pix {
		if v != 0 {
			t.Fatalf("zero seed Pix[%d] = %d", i, v)
		}
	}
}

func TestBuildResizeFailureLeavesInputsUnwired(t *testing.T) {
	s := NewScheduler(failingResizer{})
	src := imaging.Solid(8, 8, color.NRGBA{A: 255})

	passes, err := s.Build(src, blockMask(8, 8, 4))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	for _, p := range passes {
		if p.Size == image.Pt(8, 8) {
			if p.Input(SlotMask).Image == nil {
				t.Errorf("%s: same-size mask should not need the resizer", p)
			}
			continue
		}
		if in := p.Input(SlotMask); in != NoInput {
			t.Errorf("%s: mask input = %v, want none", p, in)
		}
	}
}

func TestBuildRejectsEmptyInputs(t *testing.T) {
	s := NewScheduler(imaging.NewResizer())
	src := imaging.Solid(4, 4, color.NRGBA{A: 255})

	if _, err := s.Build(nil, src); !errors.Is(err, ErrEmptyImage) {
		t.Errorf("nil source: %v", err)
	}
	if _, err := s.Build(src, image.NewNRGBA(image.Rectangle{})); !errors.Is(err, ErrEmptyImage) {
		t.Errorf("empty mask: %v", err)
	}
}
