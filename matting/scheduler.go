package matting

import (
	"errors"
	"fmt"
	"image"

	"go.uber.org/zap"
)

var (
	// ErrEmptyImage is returned for a missing or zero-sized source or mask.
	ErrEmptyImage = errors.New("matting: empty image")
	// ErrNoPasses is returned when an empty pass list is executed.
	ErrNoPasses = errors.New("matting: empty pass list")
)

// Resizer is the image-resize service. Implementations must keep the alpha
// channel and the colour of transparent pixels.
type Resizer interface {
	Resize(img image.Image, width, height int) (*image.NRGBA, error)
}

// Scheduler turns a source image and mask into a pass list.
type Scheduler struct {
	resizer Resizer
	policy  Policy
	logger  *zap.Logger
}

// NewScheduler creates a Scheduler.
func NewScheduler(resizer Resizer, opts ...Option) *Scheduler {
	o := buildOptions(opts)
	return &Scheduler{
		resizer: resizer,
		policy:  o.policy,
		logger:  o.logger,
	}
}

// Policy returns the iteration schedule in use.
func (s *Scheduler) Policy() Policy { return s.policy }

// Build lays out the pass chain for source and mask.
//
// Each pyramid block runs 2n+1 passes, iteration 0..2n, alternating
// Foreground (even) and Background (odd), so every block starts and ends
// on a Foreground pass. Every pass of a block shares the block's resized
// image and mask. A pass's priors are the latest Foreground and
// Background outputs before it. At the start of the first block those
// come from the policy's Seed; at the start of later blocks they are the
// previous block's last two passes, which the executor resizes when the
// level size changed.
//
// A failed resize leaves that input unwired rather than failing the build.
func (s *Scheduler) Build(source, mask image.Image) ([]*Pass, error) {
	if source == nil || source.Bounds().Empty() {
		return nil, fmt.Errorf("source: %w", ErrEmptyImage)
	}
	if mask == nil || mask.Bounds().Empty() {
		return nil, fmt.Errorf("mask: %w", ErrEmptyImage)
	}

	sb := source.Bounds()
	blocks := s.policy.Blocks(Plan(sb.Dx(), sb.Dy()))

	var passes []*Pass
	var priorFG, priorBG Input
	for li, block := range blocks {
		size := block.Level.Size()
		img := s.fit(source, size, "image", li)
		msk := s.fit(mask, size, "mask", li)

		if li == 0 {
			priorFG, priorBG = s.seed(img, size)
		}

		for it := 0; it <= 2*block.Iterations; it++ {
			sel := Foreground
			if it%2 == 1 {
				sel = Background
			}
			p := &Pass{
				Index:    len(passes),
				Level:    li,
				Size:     size,
				Selector: sel,
				Program:  MattingProgram(sel),
				Inputs:   []Input{img, msk, priorFG, priorBG},
			}
			passes = append(passes, p)

			if sel == Foreground {
				priorFG = PassInput(p.Index)
			} else {
				priorBG = PassInput(p.Index)
			}
		}

		s.logger.Debug("level scheduled",
			zap.Int("level", li),
			zap.Int("width", size.X),
			zap.Int("height", size.Y),
			zap.Int("iterations", block.Iterations))
	}

	s.logger.Debug("pass list built",
		zap.Int("levels", len(blocks)),
		zap.Int("passes", len(passes)))
	return passes, nil
}

func (s *Scheduler) seed(img Input, size image.Point) (fg, bg Input) {
	if s.policy.Seed == SeedImage && img.Image != nil {
		return img, img
	}
	zero := image.NewNRGBA(image.Rectangle{Max: size})
	return ImageInput(zero), ImageInput(zero)
}

// fit returns img at size as a one-time input, skipping the resize when it
// already matches.
func (s *Scheduler) fit(img image.Image, size image.Point, what string, level int) Input {
	if img.Bounds().Size() == size {
		return ImageInput(img)
	}
	resized, err := s.resizer.Resize(img, size.X, size.Y)
	if err != nil {
		s.logger.Warn("resize failed, input left unwired",
			zap.String("input", what),
			zap.Int("level", level),
			zap.Error(err))
		return NoInput
	}
	return ImageInput(resized)
}
