package render

import (
	"fmt"
	"image"
	"runtime"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SoftwareDevice executes programs on the CPU. It is not safe for
// concurrent use; one pass list runs against one device at a time.
type SoftwareDevice struct {
	logger      *zap.Logger
	validate    bool
	workers     int
	memoryLimit int64

	mu      sync.Mutex
	modules map[string][]uint32
	nextID  uint32
	inUse   int64
}

// Option configures a SoftwareDevice.
type Option func(*SoftwareDevice)

// WithLogger sets the device logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *SoftwareDevice) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithShaderValidation toggles compiling program WGSL through naga before
// the first draw. Enabled by default.
func WithShaderValidation(enabled bool) Option {
	return func(d *SoftwareDevice) { d.validate = enabled }
}

// WithWorkers bounds the goroutines one draw call spreads its rows over.
func WithWorkers(n int) Option {
	return func(d *SoftwareDevice) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithMemoryLimit caps the bytes of live texture storage; 0 means unlimited.
func WithMemoryLimit(bytes int64) Option {
	return func(d *SoftwareDevice) { d.memoryLimit = bytes }
}

// NewSoftwareDevice creates a CPU device.
func NewSoftwareDevice(opts ...Option) *SoftwareDevice {
	d := &SoftwareDevice{
		logger:   zap.NewNop(),
		validate: true,
		workers:  runtime.GOMAXPROCS(0),
		modules:  make(map[string][]uint32),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

const texelBytes = 16

func (d *SoftwareDevice) newTexture(size image.Point, bottomUp bool) (*Texture, error) {
	if size.X <= 0 || size.Y <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, size.X, size.Y)
	}
	bytes := int64(size.X) * int64(size.Y) * texelBytes

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.memoryLimit > 0 && d.inUse+bytes > d.memoryLimit {
		return nil, fmt.Errorf("%w: need %d bytes, %d of %d in use",
			ErrOutOfMemory, bytes, d.inUse, d.memoryLimit)
	}
	d.inUse += bytes
	d.nextID++
	return newTexture(d.nextID, size.X, size.Y, bottomUp), nil
}

// Compile validates p and caches its SPIR-V by name.
func (d *SoftwareDevice) Compile(p *Program) error {
	if p == nil || p.Fragment == nil {
		return fmt.Errorf("render: program has no fragment stage")
	}
	if !d.validate {
		return nil
	}

	d.mu.Lock()
	_, ok := d.modules[p.Name]
	d.mu.Unlock()
	if ok {
		return nil
	}

	words, err := compileWGSL(p.Source)
	if err != nil {
		return fmt.Errorf("program %q: %w", p.Name, err)
	}

	d.mu.Lock()
	d.modules[p.Name] = words
	d.mu.Unlock()
	d.logger.Debug("program compiled",
		zap.String("program", p.Name),
		zap.Int("spirv_words", len(words)))
	return nil
}

// Upload copies img into a top-down texture.
func (d *SoftwareDevice) Upload(img image.Image) (*Texture, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrInvalidSize)
	}
	b := img.Bounds()
	t, err := d.newTexture(b.Size(), false)
	if err != nil {
		return nil, err
	}
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			t.pix[i] = toColor(img.At(x, y))
			i++
		}
	}
	t.rendered = true
	return t, nil
}

// Readback returns the contents of t in top-down row order.
func (d *SoftwareDevice) Readback(t *Texture) (*image.NRGBA, error) {
	if t == nil {
		return nil, ErrNotRendered
	}
	if t.released {
		return nil, ErrReleased
	}
	if !t.rendered {
		return nil, fmt.Errorf("texture %d: %w", t.id, ErrNotRendered)
	}
	img := image.NewNRGBA(image.Rect(0, 0, t.width, t.height))
	for y := 0; y < t.height; y++ {
		row := y
		if t.bottomUp {
			row = t.height - 1 - y
		}
		for x := 0; x < t.width; x++ {
			c := t.pix[row*t.width+x]
			o := img.PixOffset(x, y)
			img.Pix[o+0] = quantize(c.R)
			img.Pix[o+1] = quantize(c.G)
			img.Pix[o+2] = quantize(c.B)
			img.Pix[o+3] = quantize(c.A)
		}
	}
	return img, nil
}

// Allocate creates off-screen targets. On failure nothing stays allocated.
func (d *SoftwareDevice) Allocate(sizes []image.Point) ([]*Target, error) {
	targets := make([]*Target, 0, len(sizes))
	for i, size := range sizes {
		t, err := d.newTexture(size, true)
		if err != nil {
			d.ReleaseTargets(targets...)
			return nil, fmt.Errorf("allocate target %d: %w", i, err)
		}
		targets = append(targets, &Target{tex: t, offscreen: true})
	}
	return targets, nil
}

// Output creates a top-down target.
func (d *SoftwareDevice) Output(size image.Point) (*Target, error) {
	t, err := d.newTexture(size, false)
	if err != nil {
		return nil, fmt.Errorf("allocate output: %w", err)
	}
	return &Target{tex: t}, nil
}

// Clear fills dst with c.
func (d *SoftwareDevice) Clear(dst *Target, c Color) error {
	if dst == nil || dst.tex.released {
		return ErrReleased
	}
	dst.tex.fill(c)
	return nil
}

// Draw evaluates p for every pixel of dst. Rows are split into bands that
// run in parallel; the call returns once every band is written.
func (d *SoftwareDevice) Draw(dst *Target, p *Program, inputs []Binding) error {
	if dst == nil || dst.tex.released {
		return ErrReleased
	}
	for i, in := range inputs {
		if in.Texture != nil && in.Texture.released {
			return fmt.Errorf("input %d: %w", i, ErrReleased)
		}
	}
	if err := d.Compile(p); err != nil {
		return err
	}

	t := dst.tex
	bands := min(d.workers, t.height)
	rowsPer := (t.height + bands - 1) / bands

	var g errgroup.Group
	for y0 := 0; y0 < t.height; y0 += rowsPer {
		y1 := min(y0+rowsPer, t.height)
		g.Go(func() error {
			f := Fragment{size: [2]int{t.width, t.height}, inputs: inputs}
			for y := y0; y < y1; y++ {
				row := y
				if dst.offscreen {
					row = t.height - 1 - y
				}
				f.Y = y
				for x := 0; x < t.width; x++ {
					f.X = x
					t.pix[row*t.width+x] = p.Fragment(&f)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	t.rendered = true
	return nil
}

// Release frees t.
func (d *SoftwareDevice) Release(t *Texture) {
	if t == nil || t.released {
		return
	}
	d.mu.Lock()
	d.inUse -= int64(len(t.pix)) * texelBytes
	d.mu.Unlock()
	t.released = true
	t.pix = nil
}

// ReleaseTargets frees every target in targets.
func (d *SoftwareDevice) ReleaseTargets(targets ...*Target) {
	for _, t := range targets {
		if t != nil {
			d.Release(t.tex)
		}
	}
}

// InUse returns the bytes of live texture storage.
func (d *SoftwareDevice) InUse() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inUse
}
