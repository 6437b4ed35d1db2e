package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/TIANLI0/MatteKit/config"
	"github.com/TIANLI0/MatteKit/imaging"
	"github.com/TIANLI0/MatteKit/matting"
	"github.com/TIANLI0/MatteKit/model"
	"github.com/TIANLI0/MatteKit/render"
	"github.com/TIANLI0/MatteKit/utils"
	"go.uber.org/zap"
)

var (
	// ErrQueueFull 等待处理名额超时
	ErrQueueFull = errors.New("processing queue is full, retry later")
	// ErrInvalidImage 图片或掩码无法解码
	ErrInvalidImage = errors.New("invalid image")
	// ErrMaskRequired 未上传掩码且没有可用的掩码生成器
	ErrMaskRequired = errors.New("mask required")
)

const (
	MaskSourceUpload  = "upload"
	MaskSourceGrabCut = "grabcut"
)

// CoarseMasker 为没有掩码的图片生成粗略掩码（alpha 通道）
type CoarseMasker interface {
	Generate(img image.Image) (*image.NRGBA, error)
}

// MattingService 负责解码、缩放并运行抠图流水线
type MattingService struct {
	policy       matting.Policy
	maxDimension int
	resizer      matting.Resizer
	masker       CoarseMasker
	semaphore    chan struct{}
	queueTimeout time.Duration
	deviceOpts   []render.Option
}

// NewMattingService masker 可以为 nil，此时请求必须携带掩码
func NewMattingService(cfg *config.MattingConfig, resizer matting.Resizer, masker CoarseMasker) *MattingService {
	return &MattingService{
		policy:       cfg.Policy(),
		maxDimension: cfg.MaxDimension,
		resizer:      resizer,
		masker:       masker,
		semaphore:    make(chan struct{}, max(cfg.MaxConcurrent, 1)),
		queueTimeout: cfg.QueueTimeout,
		deviceOpts: []render.Option{
			render.WithShaderValidation(cfg.ShaderValidation),
			render.WithLogger(utils.Logger),
		},
	}
}

// Process 处理一次抠图请求
func (s *MattingService) Process(ctx context.Context, req *model.MatteRequest) (*model.MatteResult, error) {
	// 并发控制
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	startTime := time.Now()

	img, format, err := imaging.Decode(req.Image)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()

	utils.Logger.Info("processing image",
		zap.String("key", req.Key),
		zap.String("format", format),
		zap.Int("width", width),
		zap.Int("height", height))

	// 智能缩放
	scaled, err := s.smartResize(img)
	if err != nil {
		return nil, err
	}
	sw, sh := scaled.Bounds().Dx(), scaled.Bounds().Dy()

	mask, source, err := s.mask(req, scaled, sw, sh)
	if err != nil {
		return nil, err
	}

	pipeline := matting.NewPipeline(
		render.NewSoftwareDevice(s.deviceOpts...),
		s.resizer,
		matting.WithLogger(utils.Logger),
		matting.WithPolicy(s.policy),
	)
	defer pipeline.Close()

	res, err := pipeline.Run(ctx, scaled, mask)
	if err != nil {
		return nil, fmt.Errorf("failed to compute matte: %w", err)
	}

	// 还原到原始尺寸
	matte := res.Matte
	if sw != width || sh != height {
		matte, err = s.resizer.Resize(matte, width, height)
		if err != nil {
			return nil, fmt.Errorf("failed to restore matte size: %w", err)
		}
	}

	encoded, err := imaging.EncodePNG(matte)
	if err != nil {
		return nil, err
	}

	bounds := imaging.AlphaBounds(matte, 127)
	result := &model.MatteResult{
		Key:        req.Key,
		Width:      width,
		Height:     height,
		Matte:      base64.StdEncoding.EncodeToString(encoded),
		MaskSource: source,
		BBox: model.BBox{
			X:      bounds.Min.X,
			Y:      bounds.Min.Y,
			Width:  bounds.Dx(),
			Height: bounds.Dy(),
		},
		Confidence: calculateConfidence(matte),
		Levels:     res.Levels,
		Passes:     res.Passes,
		DurationMS: time.Since(startTime).Milliseconds(),
		Timestamp:  time.Now().Unix(),
	}

	utils.Logger.Info("image processed successfully",
		zap.String("key", req.Key),
		zap.Duration("duration", time.Since(startTime)),
		zap.Int("levels", res.Levels),
		zap.Int("passes", res.Passes),
		zap.Float64("confidence", result.Confidence),
		zap.String("mask_source", source))

	return result, nil
}

// acquire 在 queueTimeout 内获取处理名额
func (s *MattingService) acquire(ctx context.Context) (func(), error) {
	waitCtx, cancel := context.WithTimeout(ctx, s.queueTimeout)
	defer cancel()

	select {
	case s.semaphore <- struct{}{}:
		return func() { <-s.semaphore }, nil
	case <-waitCtx.Done():
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, ErrQueueFull
	}
}

// mask 返回与缩放后图片同尺寸的掩码及其来源
func (s *MattingService) mask(req *model.MatteRequest, scaled image.Image, w, h int) (*image.NRGBA, string, error) {
	if len(req.Mask) == 0 {
		if s.masker == nil {
			return nil, "", ErrMaskRequired
		}
		m, err := s.masker.Generate(scaled)
		if err != nil {
			return nil, "", fmt.Errorf("failed to generate mask: %w", err)
		}
		return m, MaskSourceGrabCut, nil
	}

	decoded, _, err := imaging.Decode(req.Mask)
	if err != nil {
		return nil, "", fmt.Errorf("%w: mask: %v", ErrInvalidImage, err)
	}
	m := imaging.AlphaMask(decoded)
	if m.Rect.Dx() != w || m.Rect.Dy() != h {
		utils.Logger.Debug("mask resized to image",
			zap.Int("mask_width", m.Rect.Dx()),
			zap.Int("mask_height", m.Rect.Dy()))
		if m, err = s.resizer.Resize(m, w, h); err != nil {
			return nil, "", fmt.Errorf("failed to resize mask: %w", err)
		}
	}
	return m, MaskSourceUpload, nil
}

// smartResize 把最长边缩到 maxDimension 以内
func (s *MattingService) smartResize(img image.Image) (image.Image, error) {
	b := img.Bounds()
	maxDim := max(b.Dx(), b.Dy())
	if s.maxDimension <= 0 || maxDim <= s.maxDimension {
		return img, nil
	}

	scale := float64(s.maxDimension) / float64(maxDim)
	newWidth := max(1, int(float64(b.Dx())*scale))
	newHeight := max(1, int(float64(b.Dy())*scale))

	resized, err := s.resizer.Resize(img, newWidth, newHeight)
	if err != nil {
		return nil, fmt.Errorf("failed to scale image: %w", err)
	}
	return resized, nil
}

// calculateConfidence 前景覆盖率，限制在 [0.05, 0.95]
func calculateConfidence(matte *image.NRGBA) float64 {
	return min(max(imaging.Coverage(matte), 0.05), 0.95)
}
