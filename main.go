package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/TIANLI0/MatteKit/config"
	"github.com/TIANLI0/MatteKit/handler"
	"github.com/TIANLI0/MatteKit/imaging"
	"github.com/TIANLI0/MatteKit/matting"
	"github.com/TIANLI0/MatteKit/middleware"
	"github.com/TIANLI0/MatteKit/service"
	"github.com/TIANLI0/MatteKit/service/cvmask"
	"github.com/TIANLI0/MatteKit/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	BuildID   = "unknown"
	GitCommit = "unknown"
	GitBranch = "unknown"
)

func main() {
	// 加载配置
	cfg := config.New()

	// 初始化日志
	if err := utils.InitLogger(cfg.Server.Mode); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer utils.Sync()

	utils.Logger.Info("starting MatteKit server",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
		zap.String("git_branch", GitBranch))

	// 初始化Redis
	redisService := service.NewRedisService(&cfg.Redis)
	ctx := context.Background()
	if err := redisService.Ping(ctx); err != nil {
		utils.Logger.Warn("redis connection failed, cache disabled", zap.Error(err))
	} else {
		utils.Logger.Info("redis connected successfully")
	}
	defer redisService.Close()

	// 初始化抠图服务
	mattingService := service.NewMattingService(
		&cfg.Matting,
		newResizer(cfg.Matting.Resizer),
		cvmask.NewGenerator(&cfg.GrabCut),
	)

	// 初始化Handler
	matteHandler := handler.NewMatteHandler(&cfg.Upload, redisService, mattingService)

	// 设置Gin模式
	gin.SetMode(cfg.Server.Mode)

	// 创建路由
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS())

	// 健康检查和版本信息
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"version": Version,
		})
	})

	r.GET("/version", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"version":    Version,
			"build_time": BuildTime,
			"build_id":   BuildID,
			"git_commit": GitCommit,
			"git_branch": GitBranch,
		})
	})

	// API路由
	api := r.Group("/api/v1")
	{
		api.POST("/matte", matteHandler.Matte)
		api.GET("/matte/:key", matteHandler.GetByKey)
	}

	// 启动服务器
	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	utils.Logger.Info("server starting", zap.String("port", cfg.Server.Port))
	if err := srv.ListenAndServe(); err != nil {
		utils.Logger.Fatal("failed to start server", zap.Error(err))
	}
}

// newResizer 按配置选择缩放实现，默认使用 OpenCV
func newResizer(name string) matting.Resizer {
	switch name {
	case "draw":
		return imaging.NewResizer()
	default:
		return cvmask.NewResizer()
	}
}
