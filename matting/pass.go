package matting

import (
	"fmt"
	"image"

	"github.com/TIANLI0/MatteKit/render"
)

// Input is one logical input of a pass: a CPU-side image uploaded once, or
// the output of an earlier pass in the same list.
type Input struct {
	Image image.Image
	Pass  int
}

// NoInput leaves a slot unwired; the executor keeps whatever it bound last.
var NoInput = Input{Pass: -1}

// ImageInput wires a CPU-side image.
func ImageInput(img image.Image) Input { return Input{Image: img, Pass: -1} }

// PassInput wires the output of pass i.
func PassInput(i int) Input { return Input{Pass: i} }

func (in Input) String() string {
	switch {
	case in.Image != nil:
		return fmt.Sprintf("image(%v)", in.Image.Bounds().Size())
	case in.Pass >= 0:
		return fmt.Sprintf("pass(%d)", in.Pass)
	default:
		return "none"
	}
}

// Pass is one node of the render graph. Inputs fill binding slots 1..n;
// slot 0 is always the previous pass's output.
type Pass struct {
	Index    int
	Level    int
	Size     image.Point
	Selector OutputSelector
	Program  *render.Program
	Inputs   []Input
}

// Input returns the input wired to binding slot, or NoInput.
func (p *Pass) Input(slot int) Input {
	if slot < 1 || slot > len(p.Inputs) {
		return NoInput
	}
	return p.Inputs[slot-1]
}

func (p *Pass) String() string {
	return fmt.Sprintf("pass %d level %d %v %s", p.Index, p.Level, p.Size, p.Selector)
}
