package matting

import (
	"image"
	"math"
)

// Level is one step of the resolution pyramid.
type Level struct {
	Width  int
	Height int
}

// Size returns the level dimensions as a point.
func (l Level) Size() image.Point { return image.Pt(l.Width, l.Height) }

// Plan returns the pyramid for a width x height source, coarse to fine.
// Level i of n = floor(log2(max(w, h))) has size round(w^(i/n)) x
// round(h^(i/n)), so sizes grow geometrically from 1x1 and the last level
// is the source size.
func Plan(width, height int) []Level {
	if width < 1 || height < 1 {
		return nil
	}
	n := int(math.Floor(math.Log2(float64(max(width, height)))))
	if n == 0 {
		return []Level{{Width: width, Height: height}}
	}

	levels := make([]Level, 0, n+1)
	for i := 0; i <= n; i++ {
		t := float64(i) / float64(n)
		levels = append(levels, Level{
			Width:  int(math.Round(math.Pow(float64(width), t))),
			Height: int(math.Round(math.Pow(float64(height), t))),
		})
	}
	// Pow(w, 1) is exact, but pin the last level regardless.
	levels[n] = Level{Width: width, Height: height}
	return levels
}

// IterationBlock pairs a level with the refinement iterations run at it.
type IterationBlock struct {
	Level      Level
	Iterations int
}

// Policy holds the iteration schedule.
type Policy struct {
	// CoarseIterations applies to levels no larger than CoarseLevelSize in
	// both dimensions.
	CoarseIterations int
	FineIterations   int
	CoarseLevelSize  int

	// MinLevelSize drops levels no larger than it in both dimensions.
	// The finest level is always kept. Zero keeps every level.
	MinLevelSize int

	// Seed selects the priors of the very first pass.
	Seed Seed
}

// Seed selects what the first block's foreground and background priors
// start from.
type Seed uint8

const (
	// SeedImage starts both priors at the first level's image, which for
	// a 1x1 level is the mean colour. It departs from the classic zero
	// start so that a uniform image round-trips without a colour bias;
	// SeedZero restores the classic behaviour.
	SeedImage Seed = iota
	// SeedZero starts both priors at transparent black.
	SeedZero
)

func (s Seed) String() string {
	if s == SeedZero {
		return "zero"
	}
	return "image"
}

// DefaultPolicy returns the stock schedule: 10 iterations up to 32x32,
// 2 above, every level kept, priors seeded from the image.
func DefaultPolicy() Policy {
	return Policy{
		CoarseIterations: 10,
		FineIterations:   2,
		CoarseLevelSize:  32,
	}
}

// Coarse reports whether l gets the coarse iteration count.
func (p Policy) Coarse(l Level) bool {
	return l.Width <= p.CoarseLevelSize && l.Height <= p.CoarseLevelSize
}

// Blocks assigns iteration counts to levels, applying MinLevelSize.
func (p Policy) Blocks(levels []Level) []IterationBlock {
	blocks := make([]IterationBlock, 0, len(levels))
	for i, l := range levels {
		last := i == len(levels)-1
		if !last && p.MinLevelSize > 0 && l.Width <= p.MinLevelSize && l.Height <= p.MinLevelSize {
			continue
		}
		n := p.FineIterations
		if p.Coarse(l) {
			n = p.CoarseIterations
		}
		blocks = append(blocks, IterationBlock{Level: l, Iterations: max(n, 0)})
	}
	return blocks
}
