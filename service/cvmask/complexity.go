package cvmask

import (
	"image"

	"gocv.io/x/gocv"
)

// Level 场景复杂度
type Level string

const (
	LevelSimple   Level = "simple"
	LevelMedium   Level = "medium"
	LevelComplex  Level = "complex"
	LevelPortrait Level = "portrait"
)

// ComplexityInfo 复杂度分析结果
type ComplexityInfo struct {
	Level         Level
	EdgeDensity   float64
	ColorVariance float64
	SkinRatio     float64
}

// IsPortrait 皮肤占比超过 15% 视为人像
func (c ComplexityInfo) IsPortrait() bool { return c.Level == LevelPortrait }

// ComplexityAnalyzer 负责分析图像的复杂度
type ComplexityAnalyzer struct{}

func NewComplexityAnalyzer() *ComplexityAnalyzer {
	return &ComplexityAnalyzer{}
}

// Analyze 分析 BGR 图像的复杂度
func (ca *ComplexityAnalyzer) Analyze(img *gocv.Mat) ComplexityInfo {
	info := ComplexityInfo{
		EdgeDensity:   ca.edgeDensity(img),
		ColorVariance: ca.colorVariance(img),
		SkinRatio:     ca.skinRatio(img),
	}

	switch {
	case info.SkinRatio > 0.15:
		info.Level = LevelPortrait
	case info.EdgeDensity < 0.05 && info.ColorVariance < 30:
		info.Level = LevelSimple
	case info.EdgeDensity > 0.15 || info.ColorVariance > 60:
		info.Level = LevelComplex
	default:
		info.Level = LevelMedium
	}
	return info
}

// Iterations 按复杂度调整 GrabCut 迭代次数
func (c ComplexityInfo) Iterations(base int) int {
	switch c.Level {
	case LevelSimple:
		return max(3, base-2)
	case LevelPortrait:
		return base + 1
	case LevelComplex:
		return base + 2
	}
	return base
}

func (ca *ComplexityAnalyzer) edgeDensity(img *gocv.Mat) float64 {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(*img, &gray, gocv.ColorBGRToGray)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, 50, 150)

	return float64(gocv.CountNonZero(edges)) / float64(img.Rows()*img.Cols())
}

func (ca *ComplexityAnalyzer) colorVariance(img *gocv.Mat) float64 {
	lab := gocv.NewMat()
	defer lab.Close()
	gocv.CvtColor(*img, &lab, gocv.ColorBGRToLab)

	mean := gocv.NewMat()
	stddev := gocv.NewMat()
	defer mean.Close()
	defer stddev.Close()
	gocv.MeanStdDev(lab, &mean, &stddev)

	variance := 0.0
	for i := 0; i < stddev.Rows(); i++ {
		variance += stddev.GetDoubleAt(i, 0)
	}
	return variance / float64(stddev.Rows())
}

func (ca *ComplexityAnalyzer) skinRatio(img *gocv.Mat) float64 {
	skin := DetectSkin(img)
	defer skin.Close()
	return float64(gocv.CountNonZero(skin)) / float64(img.Rows()*img.Cols())
}

// DetectSkin 在 YCrCb 空间检测皮肤区域
func DetectSkin(img *gocv.Mat) gocv.Mat {
	ycrcb := gocv.NewMat()
	defer ycrcb.Close()
	gocv.CvtColor(*img, &ycrcb, gocv.ColorBGRToYCrCb)

	lower := gocv.Scalar{Val1: 0, Val2: 133, Val3: 77, Val4: 0}
	upper := gocv.Scalar{Val1: 255, Val2: 173, Val3: 127, Val4: 255}

	skinMask := gocv.NewMat()
	gocv.InRangeWithScalar(ycrcb, lower, upper, &skinMask)

	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{X: 5, Y: 5})
	defer kernel.Close()

	gocv.MorphologyEx(skinMask, &skinMask, gocv.MorphClose, kernel)
	gocv.MorphologyEx(skinMask, &skinMask, gocv.MorphOpen, kernel)

	return skinMask
}

// EnhancePortrait 把膨胀后的皮肤区域并入前景掩码
func EnhancePortrait(fgMask, img *gocv.Mat) gocv.Mat {
	skinMask := DetectSkin(img)
	defer skinMask.Close()

	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{X: 15, Y: 15})
	defer kernel.Close()

	dilatedSkin := gocv.NewMat()
	defer dilatedSkin.Close()
	gocv.Dilate(skinMask, &dilatedSkin, kernel)

	enhanced := gocv.NewMat()
	gocv.BitwiseOr(*fgMask, dilatedSkin, &enhanced)

	return enhanced
}
