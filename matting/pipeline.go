// Package matting refines a coarse mask into an alpha matte with a
// coarse-to-fine chain of closed-form foreground/background estimation
// passes.
//
// Plan builds the resolution pyramid, Scheduler lays the passes out,
// Executor runs them on a render.Device, and Pipeline ties the three
// together behind ComputeMatte.
package matting

import (
	"context"
	"fmt"
	"image"

	"github.com/TIANLI0/MatteKit/render"
	"go.uber.org/zap"
)

// Pipeline computes mattes on one device. Not safe for concurrent use.
type Pipeline struct {
	device    render.Device
	scheduler *Scheduler
	executor  *Executor
	logger    *zap.Logger
}

// Result is a computed matte plus the shape of the run that produced it.
type Result struct {
	// Matte holds the foreground colour with the matte in alpha.
	Matte  *image.NRGBA
	Levels int
	Passes int
}

// NewPipeline creates a Pipeline.
func NewPipeline(device render.Device, resizer Resizer, opts ...Option) *Pipeline {
	o := buildOptions(opts)
	return &Pipeline{
		device:    device,
		scheduler: NewScheduler(resizer, opts...),
		executor:  NewExecutor(device, resizer, opts...),
		logger:    o.logger,
	}
}

// ComputeMatte refines mask (matte in the alpha channel) against source
// and returns the matte at source resolution.
func (p *Pipeline) ComputeMatte(ctx context.Context, source, mask image.Image) (*image.NRGBA, error) {
	res, err := p.Run(ctx, source, mask)
	if err != nil {
		return nil, err
	}
	return res.Matte, nil
}

// Run is ComputeMatte with run statistics.
func (p *Pipeline) Run(ctx context.Context, source, mask image.Image) (*Result, error) {
	passes, err := p.scheduler.Build(source, mask)
	if err != nil {
		return nil, err
	}

	src, err := p.device.Upload(source)
	if err != nil {
		return nil, fmt.Errorf("upload source: %w", err)
	}
	defer p.device.Release(src)

	out, err := p.executor.Execute(ctx, passes, src)
	if err != nil {
		return nil, fmt.Errorf("execute passes: %w", err)
	}
	matte, err := p.device.Readback(out)
	if err != nil {
		return nil, fmt.Errorf("read back matte: %w", err)
	}

	levels := 0
	if len(passes) > 0 {
		levels = passes[len(passes)-1].Level + 1
	}
	p.logger.Debug("matte computed",
		zap.Int("width", matte.Rect.Dx()),
		zap.Int("height", matte.Rect.Dy()),
		zap.Int("levels", levels),
		zap.Int("passes", len(passes)))

	return &Result{Matte: matte, Levels: levels, Passes: len(passes)}, nil
}

// Close releases the device resources held between runs.
func (p *Pipeline) Close() {
	p.executor.Close()
}
