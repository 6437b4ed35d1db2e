// Package cvmask 用 OpenCV GrabCut 生成粗略前景掩码，并提供基于 OpenCV 的缩放实现。
package cvmask

import (
	"fmt"
	"image"
	"time"

	"github.com/TIANLI0/MatteKit/config"
	"github.com/TIANLI0/MatteKit/imaging"
	"github.com/TIANLI0/MatteKit/utils"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// Generator 在未上传掩码时生成粗略掩码，供抠图流水线细化
type Generator struct {
	iterations         int
	borderSize         int
	largestOnly        bool
	complexityAnalyzer *ComplexityAnalyzer
	saliencyDetector   *SaliencyDetector
	maskProcessor      *MaskProcessor
}

func NewGenerator(cfg *config.GrabCutConfig) *Generator {
	return &Generator{
		iterations:         cfg.Iterations,
		borderSize:         cfg.BorderSize,
		largestOnly:        cfg.LargestOnly,
		complexityAnalyzer: NewComplexityAnalyzer(),
		saliencyDetector:   NewSaliencyDetector(),
		maskProcessor:      NewMaskProcessor(),
	}
}

// Generate 返回与 img 同尺寸的掩码，前景 alpha 为 255，背景为 0
func (g *Generator) Generate(img image.Image) (*image.NRGBA, error) {
	startTime := time.Now()

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}
	defer mat.Close()
	if mat.Empty() {
		return nil, fmt.Errorf("failed to convert image: empty mat")
	}

	complexity := g.complexityAnalyzer.Analyze(&mat)
	utils.Logger.Debug("scene analyzed",
		zap.String("level", string(complexity.Level)),
		zap.Float64("edge_density", complexity.EdgeDensity),
		zap.Float64("color_variance", complexity.ColorVariance),
		zap.Float64("skin_ratio", complexity.SkinRatio))

	fgMask := g.segment(&mat, complexity)
	defer fgMask.Close()

	out, err := fgMask.ToImage()
	if err != nil {
		return nil, fmt.Errorf("failed to convert mask: %w", err)
	}

	utils.Logger.Info("coarse mask generated",
		zap.Int("width", mat.Cols()),
		zap.Int("height", mat.Rows()),
		zap.String("complexity", string(complexity.Level)),
		zap.Duration("duration", time.Since(startTime)))
	return imaging.AlphaMask(out), nil
}

// segment 运行 GrabCut 并后处理，返回 0/255 的单通道掩码
func (g *Generator) segment(img *gocv.Mat, complexity ComplexityInfo) gocv.Mat {
	width, height := img.Cols(), img.Rows()

	var initRect image.Rectangle
	var mask gocv.Mat
	if complexity.Level == LevelSimple {
		border := g.borderSize
		if border < 10 {
			border = int(float64(width) * 0.05)
		}
		initRect = image.Rect(border, border, width-border, height-border)
		mask = gocv.NewMat()
	} else {
		saliencyMap := g.saliencyDetector.Detect(img)
		defer saliencyMap.Close()

		initRect = g.saliencyDetector.ExtractRect(&saliencyMap, width, height)
		mask = g.saliencyDetector.CreateMask(&saliencyMap, width, height)
	}
	defer mask.Close()

	bgdModel := gocv.NewMat()
	defer bgdModel.Close()
	fgdModel := gocv.NewMat()
	defer fgdModel.Close()

	iterations := complexity.Iterations(g.iterations)
	if mask.Empty() {
		gocv.GrabCut(*img, &mask, initRect, &bgdModel, &fgdModel, iterations, gocv.GCInitWithRect)
	} else {
		gocv.GrabCut(*img, &mask, image.Rectangle{}, &bgdModel, &fgdModel, iterations, gocv.GCInitWithMask)
	}
	if complexity.Level != LevelSimple {
		gocv.GrabCut(*img, &mask, image.Rectangle{}, &bgdModel, &fgdModel, 2, gocv.GCInitWithMask)
	}

	fgMask := g.maskProcessor.ExtractForeground(&mask)

	if complexity.IsPortrait() {
		enhanced := EnhancePortrait(&fgMask, img)
		fgMask.Close()
		fgMask = enhanced
	}

	kernelSize := 3
	if complexity.Level == LevelComplex || complexity.Level == LevelPortrait {
		kernelSize = 5
	}
	optimized := g.maskProcessor.MorphologyOptimize(&fgMask, kernelSize)
	fgMask.Close()
	fgMask = optimized

	if complexity.Level != LevelSimple {
		refined := g.maskProcessor.RefineEdges(&fgMask)
		fgMask.Close()
		fgMask = refined
	}

	if g.largestOnly {
		largest := g.maskProcessor.KeepLargest(&fgMask)
		fgMask.Close()
		fgMask = largest
	}
	return fgMask
}
