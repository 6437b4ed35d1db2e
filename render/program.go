package render

import (
	"fmt"

	"github.com/gogpu/naga"
)

// FragmentFunc evaluates a program's fragment stage for one pixel.
type FragmentFunc func(f *Fragment) Color

// Program is a shader stage: WGSL source for GPU backends plus the
// equivalent fragment function the software device runs.
type Program struct {
	Name     string
	Source   string
	Fragment FragmentFunc
}

// Fragment is the per-pixel view a FragmentFunc samples its inputs through.
type Fragment struct {
	X, Y   int
	size   [2]int
	inputs []Binding
}

// Size returns the dimensions of the target being drawn.
func (f *Fragment) Size() (width, height int) { return f.size[0], f.size[1] }

// Sample reads input slot at this fragment's position.
func (f *Fragment) Sample(slot int) Color {
	return f.SampleOffset(slot, 0, 0)
}

// SampleOffset reads input slot dx, dy texels away from this fragment's
// position. Offsets are in the target's orientation and the input's texel
// size, so a given offset names the same neighbour in every input whatever
// its mapping. Reads past the edge clamp. An unbound slot reads as
// transparent black.
func (f *Fragment) SampleOffset(slot, dx, dy int) Color {
	if slot < 0 || slot >= len(f.inputs) {
		return Color{}
	}
	b := f.inputs[slot]
	t := b.Texture
	if t == nil || t.released {
		return Color{}
	}
	u := (float64(f.X) + 0.5) / float64(f.size[0])
	v := (float64(f.Y) + 0.5) / float64(f.size[1])
	if b.Mapping == MappingFlipVertical {
		v = 1 - v
		dy = -dy
	}
	return t.texel(int(u*float64(t.width))+dx, int(v*float64(t.height))+dy)
}

// compileWGSL turns WGSL into SPIR-V words.
func compileWGSL(source string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("failed to compile shader: %w", err)
	}

	// SPIR-V is little-endian 32-bit words
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return words, nil
}

// FullscreenVertexWGSL is the vertex stage shared by every full-screen pass.
// It emits one oversized triangle covering clip space.
const FullscreenVertexWGSL = `
struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) uv: vec2<f32>,
}

@vertex
fn vs_main(@builtin(vertex_index) vertex_index: u32) -> VertexOutput {
    var result: VertexOutput;
    let x = f32((vertex_index << 1u) & 2u);
    let y = f32(vertex_index & 2u);
    result.position = vec4<f32>(x * 2.0 - 1.0, 1.0 - y * 2.0, 0.0, 1.0);
    result.uv = vec2<f32>(x, y);
    return result;
}
`

const copyFragmentWGSL = `
@group(0) @binding(0) var primary_tex: texture_2d<f32>;
@group(0) @binding(1) var primary_sampler: sampler;

@fragment
fn fs_main(input: VertexOutput) -> @location(0) vec4<f32> {
    return textureSample(primary_tex, primary_sampler, input.uv);
}
`

// CopyProgram returns a program that writes its primary input unchanged.
func CopyProgram() *Program {
	return &Program{
		Name:   "copy",
		Source: FullscreenVertexWGSL + copyFragmentWGSL,
		Fragment: func(f *Fragment) Color {
			return f.Sample(0)
		},
	}
}
