package config

import (
	"fmt"
	"time"

	"github.com/TIANLI0/MatteKit/matting"
	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Upload  UploadConfig  `mapstructure:"upload"`
	Matting MattingConfig `mapstructure:"matting"`
	GrabCut GrabCutConfig `mapstructure:"grabcut"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type UploadConfig struct {
	MaxSize      int64    `mapstructure:"max_size"`
	AllowedTypes []string `mapstructure:"allowed_types"`
}

// MattingConfig 抠图流水线参数
type MattingConfig struct {
	CoarseIterations int           `mapstructure:"coarse_iterations"`
	FineIterations   int           `mapstructure:"fine_iterations"`
	CoarseLevelSize  int           `mapstructure:"coarse_level_size"`
	MinLevelSize     int           `mapstructure:"min_level_size"`
	MaxDimension     int           `mapstructure:"max_dimension"`
	MaxConcurrent    int           `mapstructure:"max_concurrent"`
	QueueTimeout     time.Duration `mapstructure:"queue_timeout"`
	Resizer          string        `mapstructure:"resizer"` // opencv, draw
	ShaderValidation bool          `mapstructure:"shader_validation"`
}

// Policy 转换为迭代策略
func (m MattingConfig) Policy() matting.Policy {
	p := matting.DefaultPolicy()
	if m.CoarseIterations > 0 {
		p.CoarseIterations = m.CoarseIterations
	}
	if m.FineIterations > 0 {
		p.FineIterations = m.FineIterations
	}
	if m.CoarseLevelSize > 0 {
		p.CoarseLevelSize = m.CoarseLevelSize
	}
	p.MinLevelSize = max(m.MinLevelSize, 0)
	return p
}

// GrabCutConfig 未上传掩码时粗略掩码的生成参数
type GrabCutConfig struct {
	Iterations  int  `mapstructure:"iterations"`
	BorderSize  int  `mapstructure:"border_size"`
	LargestOnly bool `mapstructure:"largest_only"` // 只保留最大连通区域
}

// Load 从 YAML 文件加载配置
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// 设置默认值
	setDefaults(v)

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// New 使用默认配置路径加载配置
func New() *Config {
	cfg, err := Load("config.yaml")
	if err != nil {
		// 如果加载失败，返回默认配置
		return getDefaultConfig()
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	d := getDefaultConfig()

	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.mode", d.Server.Mode)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)

	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.password", d.Redis.Password)
	v.SetDefault("redis.db", d.Redis.DB)
	v.SetDefault("redis.ttl", d.Redis.TTL)

	v.SetDefault("upload.max_size", d.Upload.MaxSize)
	v.SetDefault("upload.allowed_types", d.Upload.AllowedTypes)

	v.SetDefault("matting.coarse_iterations", d.Matting.CoarseIterations)
	v.SetDefault("matting.fine_iterations", d.Matting.FineIterations)
	v.SetDefault("matting.coarse_level_size", d.Matting.CoarseLevelSize)
	v.SetDefault("matting.min_level_size", d.Matting.MinLevelSize)
	v.SetDefault("matting.max_dimension", d.Matting.MaxDimension)
	v.SetDefault("matting.max_concurrent", d.Matting.MaxConcurrent)
	v.SetDefault("matting.queue_timeout", d.Matting.QueueTimeout)
	v.SetDefault("matting.resizer", d.Matting.Resizer)
	v.SetDefault("matting.shader_validation", d.Matting.ShaderValidation)

	v.SetDefault("grabcut.iterations", d.GrabCut.Iterations)
	v.SetDefault("grabcut.border_size", d.GrabCut.BorderSize)
	v.SetDefault("grabcut.largest_only", d.GrabCut.LargestOnly)
}

func getDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         ":8080",
			Mode:         "debug",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			TTL:      24 * time.Hour,
		},
		Upload: UploadConfig{
			MaxSize:      10 * 1024 * 1024,
			AllowedTypes: []string{"image/jpeg", "image/png", "image/jpg", "image/webp"},
		},
		Matting: MattingConfig{
			CoarseIterations: 10,
			FineIterations:   2,
			CoarseLevelSize:  32,
			MinLevelSize:     0,
			MaxDimension:     1200,
			MaxConcurrent:    3,
			QueueTimeout:     30 * time.Second,
			Resizer:          "opencv",
			ShaderValidation: true,
		},
		GrabCut: GrabCutConfig{
			Iterations: 5,
			BorderSize: 10,
		},
	}
}
