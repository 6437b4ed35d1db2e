package matting

import (
	"fmt"

	"github.com/TIANLI0/MatteKit/render"
)

// Binding slots of a matting pass. Slot 0 is the executor's primary input,
// which the matting program does not read.
const (
	SlotPrimary = iota
	SlotImage
	SlotMask
	SlotForeground
	SlotBackground
)

// crossOffsets are the four neighbour offsets, in texels.
var crossOffsets = [4][2]int{{1, 0}, {0, 1}, {-1, 0}, {0, -1}}

// mattingFragmentWGSL is formatted with the name of the result to write.
const mattingFragmentWGSL = `
struct MattingParams {
    texel: vec2<f32>,
}

@group(0) @binding(0) var image_tex: texture_2d<f32>;
@group(0) @binding(1) var mask_tex: texture_2d<f32>;
@group(0) @binding(2) var fg_tex: texture_2d<f32>;
@group(0) @binding(3) var bg_tex: texture_2d<f32>;
@group(0) @binding(4) var nearest: sampler;
@group(0) @binding(5) var<uniform> params: MattingParams;

@fragment
fn fs_main(input: VertexOutput) -> @location(0) vec4<f32> {
    let color = textureSample(image_tex, nearest, input.uv);
    let a0 = textureSample(mask_tex, nearest, input.uv).a;
    let a1 = 1.0 - a0;

    var a00 = a0 * a0;
    let a01 = a0 * a1;
    var a11 = a1 * a1;

    var fg = color.rgb * a0;
    var bg = color.rgb * a1;

    let uv0 = input.uv + vec2<f32>(params.texel.x, 0.0);
    let da0 = 0.00001 + abs(a0 - textureSample(mask_tex, nearest, uv0).a);
    a00 = a00 + da0;
    a11 = a11 + da0;
    fg = fg + da0 * textureSample(fg_tex, nearest, uv0).rgb;
    bg = bg + da0 * textureSample(bg_tex, nearest, uv0).rgb;

    let uv1 = input.uv + vec2<f32>(0.0, params.texel.y);
    let da1 = 0.00001 + abs(a0 - textureSample(mask_tex, nearest, uv1).a);
    a00 = a00 + da1;
    a11 = a11 + da1;
    fg = fg + da1 * textureSample(fg_tex, nearest, uv1).rgb;
    bg = bg + da1 * textureSample(bg_tex, nearest, uv1).rgb;

    let uv2 = input.uv - vec2<f32>(params.texel.x, 0.0);
    let da2 = 0.00001 + abs(a0 - textureSample(mask_tex, nearest, uv2).a);
    a00 = a00 + da2;
    a11 = a11 + da2;
    fg = fg + da2 * textureSample(fg_tex, nearest, uv2).rgb;
    bg = bg + da2 * textureSample(bg_tex, nearest, uv2).rgb;

    let uv3 = input.uv - vec2<f32>(0.0, params.texel.y);
    let da3 = 0.00001 + abs(a0 - textureSample(mask_tex, nearest, uv3).a);
    a00 = a00 + da3;
    a11 = a11 + da3;
    fg = fg + da3 * textureSample(fg_tex, nearest, uv3).rgb;
    bg = bg + da3 * textureSample(bg_tex, nearest, uv3).rgb;

    let inv_det = 1.0 / (a00 * a11 - a01 * a01);
    let b00 = inv_det * a11;
    let b01 = inv_det * -a01;
    let b11 = inv_det * a00;

    let fc = clamp(b00 * fg + b01 * bg, vec3<f32>(0.0), vec3<f32>(1.0));
    let bc = clamp(b01 * fg + b11 * bg, vec3<f32>(0.0), vec3<f32>(1.0));

    let fg_result = vec4<f32>(fc, a0);
    let bg_result = vec4<f32>(bc, 1.0 - a0);
    return %s;
}
`

var (
	foregroundProgram = newMattingProgram(Foreground)
	backgroundProgram = newMattingProgram(Background)
)

// MattingProgram returns the shared program for selector s.
func MattingProgram(s OutputSelector) *render.Program {
	if s == Background {
		return backgroundProgram
	}
	return foregroundProgram
}

func newMattingProgram(s OutputSelector) *render.Program {
	result := "fg_result"
	if s == Background {
		result = "bg_result"
	}
	return &render.Program{
		Name:     "matting_" + s.String(),
		Source:   render.FullscreenVertexWGSL + fmt.Sprintf(mattingFragmentWGSL, result),
		Fragment: mattingFragment(s),
	}
}

func mattingFragment(s OutputSelector) render.FragmentFunc {
	return func(f *render.Fragment) render.Color {
		var smp Sample
		smp.Image = f.Sample(SlotImage)
		smp.Alpha = f.Sample(SlotMask).A
		for i, o := range crossOffsets {
			smp.Neighbors[i] = Neighbor{
				Alpha: f.SampleOffset(SlotMask, o[0], o[1]).A,
				FG:    f.SampleOffset(SlotForeground, o[0], o[1]),
				BG:    f.SampleOffset(SlotBackground, o[0], o[1]),
			}
		}
		fg, bg := Estimate(&smp)
		return s.Emit(fg, bg, smp.Alpha)
	}
}
