package cvmask

import (
	"fmt"
	"image"

	"github.com/TIANLI0/MatteKit/imaging"
	"gocv.io/x/gocv"
)

// Resizer 用 OpenCV 缩放 NRGBA 图像。四个通道按非预乘值独立插值，
// 透明像素下的颜色不会丢失。
type Resizer struct{}

func NewResizer() *Resizer {
	return &Resizer{}
}

// Resize 缩小时使用区域插值，其余情况使用双线性插值
func (r *Resizer) Resize(img image.Image, width, height int) (*image.NRGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", imaging.ErrInvalidSize, width, height)
	}
	src := compact(imaging.ToNRGBA(img))
	b := src.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("%w: empty source", imaging.ErrInvalidSize)
	}
	if b.Dx() == width && b.Dy() == height {
		return src, nil
	}

	mat, err := gocv.NewMatFromBytes(b.Dy(), b.Dx(), gocv.MatTypeCV8UC4, src.Pix)
	if err != nil {
		return nil, fmt.Errorf("failed to wrap image: %w", err)
	}
	defer mat.Close()

	interp := gocv.InterpolationLinear
	if width < b.Dx() && height < b.Dy() {
		interp = gocv.InterpolationArea
	}
	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(mat, &resized, image.Point{X: width, Y: height}, 0, 0, interp)

	out := image.NewNRGBA(image.Rect(0, 0, width, height))
	copy(out.Pix, resized.ToBytes())
	return out, nil
}

// compact 保证 Pix 按行紧密排列
func compact(img *image.NRGBA) *image.NRGBA {
	if img.Stride == 4*img.Rect.Dx() {
		return img
	}
	out := image.NewNRGBA(image.Rect(0, 0, img.Rect.Dx(), img.Rect.Dy()))
	for y := 0; y < out.Rect.Dy(); y++ {
		i := img.PixOffset(img.Rect.Min.X, img.Rect.Min.Y+y)
		copy(out.Pix[y*out.Stride:], img.Pix[i:i+out.Stride])
	}
	return out
}
