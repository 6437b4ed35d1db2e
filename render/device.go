// Package render defines the services the matting core draws with: texture
// upload and read-back, off-screen target allocation and a shader-stage
// executor. SoftwareDevice implements them on the CPU.
package render

import (
	"errors"
	"image"
)

var (
	// ErrNotRendered is returned when reading a target nothing has drawn into yet.
	ErrNotRendered = errors.New("render: target not rendered")
	// ErrReleased is returned when a released texture or target is used.
	ErrReleased = errors.New("render: resource released")
	// ErrInvalidSize is returned for zero or negative texture sizes.
	ErrInvalidSize = errors.New("render: invalid size")
	// ErrOutOfMemory is returned when an allocation exceeds the device budget.
	ErrOutOfMemory = errors.New("render: out of texture memory")
)

// Color is a straight (non-premultiplied) RGBA value, nominally in [0,1].
type Color struct {
	R, G, B, A float32
}

// Mapping selects how a bound texture's coordinates relate to the
// coordinates of the target being drawn.
type Mapping uint8

const (
	// MappingNormal samples the texture with the target's own coordinates.
	MappingNormal Mapping = iota
	// MappingFlipVertical samples with v replaced by 1-v.
	MappingFlipVertical
)

func (m Mapping) String() string {
	if m == MappingFlipVertical {
		return "flip-vertical"
	}
	return "normal"
}

// Binding attaches a texture to one input slot of a draw.
type Binding struct {
	Texture *Texture
	Mapping Mapping
}

// Device is the set of graphics services a pass list is executed against.
// Bound state is never ambient: every call names the target it acts on.
type Device interface {
	// Compile prepares a program for drawing. Drawing compiles lazily, so
	// calling Compile up front only surfaces errors earlier.
	Compile(p *Program) error

	// Upload copies img into a new sampleable texture.
	Upload(img image.Image) (*Texture, error)

	// Readback copies the contents of t into a top-down image.
	Readback(t *Texture) (*image.NRGBA, error)

	// Allocate creates one off-screen target per size.
	Allocate(sizes []image.Point) ([]*Target, error)

	// Output creates a target with the externally visible (top-down) row order.
	Output(size image.Point) (*Target, error)

	// Clear fills dst with c.
	Clear(dst *Target, c Color) error

	// Draw runs p over every pixel of dst. inputs[0] is the primary input.
	Draw(dst *Target, p *Program, inputs []Binding) error

	// Release frees a texture. Releasing twice is a no-op.
	Release(t *Texture)

	// ReleaseTargets frees targets created by Allocate or Output.
	ReleaseTargets(targets ...*Target)
}
