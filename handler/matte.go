package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/TIANLI0/MatteKit/config"
	"github.com/TIANLI0/MatteKit/model"
	"github.com/TIANLI0/MatteKit/service"
	"github.com/TIANLI0/MatteKit/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Processor 执行抠图
type Processor interface {
	Process(ctx context.Context, req *model.MatteRequest) (*model.MatteResult, error)
}

// ResultCache 抠图结果缓存
type ResultCache interface {
	GetMatteResult(ctx context.Context, key string) (*model.MatteResult, error)
	SetMatteResult(ctx context.Context, key string, result *model.MatteResult) error
}

type MatteHandler struct {
	cfg       *config.UploadConfig
	cache     ResultCache
	processor Processor
}

func NewMatteHandler(cfg *config.UploadConfig, cache ResultCache, processor Processor) *MatteHandler {
	return &MatteHandler{
		cfg:       cfg,
		cache:     cache,
		processor: processor,
	}
}

// Matte 处理图片和可选掩码的上传
func (h *MatteHandler) Matte(c *gin.Context) {
	imageData, ok := h.readFile(c, "image", true)
	if !ok {
		return
	}
	maskData, ok := h.readFile(c, "mask", false)
	if !ok {
		return
	}

	key := utils.CacheKey(imageData, maskData)
	utils.Logger.Info("file uploaded",
		zap.String("key", key),
		zap.Int("image_size", len(imageData)),
		zap.Int("mask_size", len(maskData)))

	ctx := c.Request.Context()

	// 检查缓存
	cachedResult, err := h.cache.GetMatteResult(ctx, key)
	if err != nil {
		utils.Logger.Warn("failed to get cache", zap.Error(err))
	}
	if cachedResult != nil {
		utils.Logger.Info("cache hit", zap.String("cache_key", key))
		c.JSON(http.StatusOK, model.UploadResponse{
			Success: true,
			Message: "处理成功（来自缓存）",
			Data:    cachedResult,
		})
		return
	}

	result, err := h.processor.Process(ctx, &model.MatteRequest{
		Key:   key,
		Image: imageData,
		Mask:  maskData,
	})
	if err != nil {
		status, message := classify(err)
		utils.Logger.Error("failed to process image", zap.String("key", key), zap.Error(err))
		c.JSON(status, model.ErrorResponse{
			Success: false,
			Message: message,
			Error:   err.Error(),
		})
		return
	}

	// 保存到缓存
	if err := h.cache.SetMatteResult(ctx, key, result); err != nil {
		utils.Logger.Warn("failed to set cache", zap.Error(err))
	}

	c.JSON(http.StatusOK, model.UploadResponse{
		Success: true,
		Message: "处理成功",
		Data:    result,
	})
}

// GetByKey 根据缓存键获取抠图结果
func (h *MatteHandler) GetByKey(c *gin.Context) {
	key := c.Param("key")
	if key == "" {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "key参数缺失",
		})
		return
	}

	result, err := h.cache.GetMatteResult(c.Request.Context(), key)
	if err != nil {
		utils.Logger.Error("failed to get matte result", zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Success: false,
			Message: "查询失败",
			Error:   err.Error(),
		})
		return
	}

	if result == nil {
		c.JSON(http.StatusNotFound, model.ErrorResponse{
			Success: false,
			Message: "未找到该图片的抠图结果",
		})
		return
	}

	c.JSON(http.StatusOK, model.UploadResponse{
		Success: true,
		Message: "查询成功",
		Data:    result,
	})
}

// readFile 读取上传字段；失败时已写入响应并返回 false
func (h *MatteHandler) readFile(c *gin.Context, field string, required bool) ([]byte, bool) {
	file, err := c.FormFile(field)
	if err != nil {
		if !required && errors.Is(err, http.ErrMissingFile) {
			return nil, true
		}
		utils.Logger.Error("failed to get uploaded file", zap.String("field", field), zap.Error(err))
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: fmt.Sprintf("请上传%s文件", fieldName(field)),
			Error:   err.Error(),
		})
		return nil, false
	}

	// 验证文件大小
	if file.Size > h.cfg.MaxSize {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: fmt.Sprintf("文件大小超过限制 (%d MB)", h.cfg.MaxSize/(1024*1024)),
		})
		return nil, false
	}

	// 验证文件类型
	if !h.isAllowedType(file.Header.Get("Content-Type")) {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "不支持的文件类型，仅支持 JPEG/PNG/WebP",
		})
		return nil, false
	}

	data, err := readAll(file)
	if err != nil {
		utils.Logger.Error("failed to read file", zap.String("field", field), zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Success: false,
			Message: "读取文件失败",
			Error:   err.Error(),
		})
		return nil, false
	}
	return data, true
}

func readAll(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (h *MatteHandler) isAllowedType(contentType string) bool {
	for _, allowed := range h.cfg.AllowedTypes {
		if strings.EqualFold(contentType, allowed) {
			return true
		}
	}
	return false
}

func fieldName(field string) string {
	if field == "mask" {
		return "掩码"
	}
	return "图片"
}

// classify 把处理错误映射为状态码和提示
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrQueueFull):
		return http.StatusServiceUnavailable, "处理队列已满，请稍后重试"
	case errors.Is(err, service.ErrInvalidImage):
		return http.StatusBadRequest, "图片无法解码"
	case errors.Is(err, service.ErrMaskRequired):
		return http.StatusBadRequest, "请上传掩码文件"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout, "请求已取消"
	default:
		return http.StatusInternalServerError, "图片处理失败"
	}
}
