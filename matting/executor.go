package matting

import (
	"context"
	"errors"
	"fmt"
	"image"
	"slices"

	"github.com/TIANLI0/MatteKit/render"
	"go.uber.org/zap"
)

// Executor runs pass lists against a device.
//
// Targets are pooled per topology: one off-screen target per non-terminal
// pass plus a double-buffered output target for the terminal pass. The
// pool, the uploaded one-time inputs and the per-pass bindings survive
// across runs until the list of pass sizes changes. An Executor is not
// safe for concurrent use.
type Executor struct {
	device  render.Device
	resizer Resizer
	logger  *zap.Logger

	topology []image.Point
	targets  []*render.Target
	output   *render.Target
	spare    *render.Target
	// retired is an output target from a replaced pool that still backs
	// last; it is released once a run on the new pool succeeds.
	retired *render.Target

	// uploads holds one-time textures keyed by the CPU image they came from.
	uploads map[image.Image]*render.Texture
	// scratch holds re-uploaded resized outputs keyed by pass and slot.
	scratch map[[2]int]*render.Texture
	// bound keeps each pass's last bindings so a missing input falls back
	// to what the slot held before.
	bound [][]render.Binding

	last *render.Texture
}

// NewExecutor creates an Executor drawing on device.
func NewExecutor(device render.Device, resizer Resizer, opts ...Option) *Executor {
	o := buildOptions(opts)
	return &Executor{
		device:  device,
		resizer: resizer,
		logger:  o.logger,
		uploads: make(map[image.Image]*render.Texture),
		scratch: make(map[[2]int]*render.Texture),
	}
}

// Last returns the output of the last successful run, or nil.
func (e *Executor) Last() *render.Texture { return e.last }

// Execute walks passes in order. Every pass but the last draws into its
// own off-screen target; the last draws into the output target, whose
// texture is returned. The first pass reads source with the caller's
// mapping. The last pass flips its primary input vertically when the list
// length is even, which keeps the output upright whatever the length.
//
// Resource errors and cancellation abort the run and leave Last unchanged.
// An input that cannot be resolved is logged and the slot keeps its
// previous binding.
func (e *Executor) Execute(ctx context.Context, passes []*Pass, source *render.Texture) (*render.Texture, error) {
	if len(passes) == 0 {
		return nil, ErrNoPasses
	}
	if source == nil {
		return nil, fmt.Errorf("source: %w", ErrEmptyImage)
	}
	if err := e.prepare(passes); err != nil {
		return nil, err
	}

	n := len(passes)
	previous := source
	for i, p := range passes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		isNotLast := i < n-1

		dst := e.spare
		primary := render.MappingNormal
		if isNotLast {
			dst = e.targets[i]
		} else if n%2 == 0 {
			primary = render.MappingFlipVertical
		}

		if err := e.device.Clear(dst, render.Color{}); err != nil {
			return nil, fmt.Errorf("clear target %d: %w", i, err)
		}
		bindings := e.bind(i, p, passes, render.Binding{Texture: previous, Mapping: primary})
		if err := e.device.Draw(dst, p.Program, bindings); err != nil {
			return nil, fmt.Errorf("draw %s: %w", p, err)
		}

		if isNotLast {
			previous = dst.Texture()
		}
	}

	e.output, e.spare = e.spare, e.output
	e.last = e.output.Texture()
	if e.retired != nil {
		e.device.ReleaseTargets(e.retired)
		e.retired = nil
	}
	e.logger.Debug("pass list executed",
		zap.Int("passes", n),
		zap.Bool("final_flip", n%2 == 0))
	return e.last, nil
}

// prepare (re)allocates the target pool when the topology changed and
// drops one-time uploads the new list no longer references.
func (e *Executor) prepare(passes []*Pass) error {
	sizes := make([]image.Point, len(passes))
	for i, p := range passes {
		sizes[i] = p.Size
	}

	if !slices.Equal(sizes, e.topology) || e.output == nil {
		n := len(passes)
		targets, err := e.device.Allocate(sizes[:n-1])
		if err != nil {
			return fmt.Errorf("allocate targets: %w", err)
		}
		output, err := e.device.Output(sizes[n-1])
		if err != nil {
			e.device.ReleaseTargets(targets...)
			return fmt.Errorf("allocate output: %w", err)
		}
		spare, err := e.device.Output(sizes[n-1])
		if err != nil {
			e.device.ReleaseTargets(targets...)
			e.device.ReleaseTargets(output)
			return fmt.Errorf("allocate output: %w", err)
		}

		e.retire(e.output, e.spare)
		e.output, e.spare = nil, nil
		e.releasePool()
		e.targets, e.output, e.spare = targets, output, spare
		e.topology = sizes
		e.bound = make([][]render.Binding, n)
		e.logger.Debug("target pool allocated",
			zap.Int("targets", len(targets)),
			zap.Int("width", sizes[n-1].X),
			zap.Int("height", sizes[n-1].Y))
	}

	live := make(map[image.Image]bool)
	for _, p := range passes {
		for _, in := range p.Inputs {
			if in.Image != nil {
				live[in.Image] = true
			}
		}
	}
	for img, tex := range e.uploads {
		if !live[img] {
			e.device.Release(tex)
			delete(e.uploads, img)
		}
	}
	return nil
}

func (e *Executor) bind(i int, p *Pass, passes []*Pass, primary render.Binding) []render.Binding {
	if len(e.bound[i]) != 1+len(p.Inputs) {
		e.bound[i] = make([]render.Binding, 1+len(p.Inputs))
	}
	b := e.bound[i]
	b[0] = primary

	for k, in := range p.Inputs {
		slot := k + 1
		tex, err := e.resolve(i, slot, in, p, passes)
		if err != nil {
			e.logger.Warn("input unavailable, keeping previous binding",
				zap.Int("pass", i),
				zap.Int("slot", slot),
				zap.Stringer("input", in),
				zap.Error(err))
			if t := b[slot].Texture; t != nil && t.Released() {
				b[slot] = render.Binding{}
			}
			continue
		}
		mapping := render.MappingNormal
		if tex.BottomUp() {
			mapping = render.MappingFlipVertical
		}
		b[slot] = render.Binding{Texture: tex, Mapping: mapping}
	}
	return b
}

var errUnwired = errors.New("input not wired")

// resolve turns a logical input into a texture. Outputs of earlier passes
// at the consumer's size are referenced directly; at any other size they
// are read back, resized and uploaded again.
func (e *Executor) resolve(i, slot int, in Input, p *Pass, passes []*Pass) (*render.Texture, error) {
	if in.Image != nil {
		if tex, ok := e.uploads[in.Image]; ok {
			return tex, nil
		}
		tex, err := e.device.Upload(in.Image)
		if err != nil {
			return nil, fmt.Errorf("upload: %w", err)
		}
		e.uploads[in.Image] = tex
		return tex, nil
	}
	if in.Pass < 0 {
		return nil, errUnwired
	}
	if in.Pass >= i {
		return nil, fmt.Errorf("pass %d runs after pass %d: %w", in.Pass, i, render.ErrNotRendered)
	}

	produced := e.targets[in.Pass].Texture()
	if passes[in.Pass].Size == p.Size {
		return produced, nil
	}

	img, err := e.device.Readback(produced)
	if err != nil {
		return nil, fmt.Errorf("read back pass %d: %w", in.Pass, err)
	}
	resized, err := e.resizer.Resize(img, p.Size.X, p.Size.Y)
	if err != nil {
		return nil, fmt.Errorf("resize pass %d: %w", in.Pass, err)
	}
	tex, err := e.device.Upload(resized)
	if err != nil {
		return nil, fmt.Errorf("upload pass %d: %w", in.Pass, err)
	}
	key := [2]int{i, slot}
	e.device.Release(e.scratch[key])
	e.scratch[key] = tex
	return tex, nil
}

// retire releases output targets, except the one backing last, which is
// kept as retired.
func (e *Executor) retire(outputs ...*render.Target) {
	for _, t := range outputs {
		if t == nil || t == e.retired {
			continue
		}
		if e.last != nil && t.Texture() == e.last {
			e.retired = t
			continue
		}
		e.device.ReleaseTargets(t)
	}
}

func (e *Executor) releasePool() {
	e.device.ReleaseTargets(e.targets...)
	e.device.ReleaseTargets(e.output, e.spare)
	for img, tex := range e.uploads {
		e.device.Release(tex)
		delete(e.uploads, img)
	}
	for k, tex := range e.scratch {
		e.device.Release(tex)
		delete(e.scratch, k)
	}
	e.targets, e.output, e.spare = nil, nil, nil
	e.bound = nil
}

// Close releases every device resource the executor holds.
func (e *Executor) Close() {
	e.releasePool()
	e.device.ReleaseTargets(e.retired)
	e.retired = nil
	e.topology = nil
	e.last = nil
}
