package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Upload   UploadConfig   `mapstructure:"upload"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Control  ControlConfig  `mapstructure:"control"`
	Models   ModelsConfig   `mapstructure:"models"`
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
	MaxSize          int64    `mapstructure:"max_size"`
	UploadDir        string   `mapstructure:"upload_dir"`
	AllowedTypes     []string `mapstructure:"allowed_types"`
	CleanupTempFiles bool     `mapstructure:"cleanup_temp_files"`
}

// PipelineConfig 目标提取参数
type PipelineConfig struct {
	Region        RegionConfig  `mapstructure:"region"`
	Mask          MaskConfig    `mapstructure:"mask"`
	Lanes         LaneConfig    `mapstructure:"lanes"`
	Mapping       MappingConfig `mapstructure:"mapping"`
	MaxConcurrent int           `mapstructure:"max_concurrent"`
	QueueTimeout  time.Duration `mapstructure:"queue_timeout"`
}

// RegionConfig 裁剪边距（像素）与Canny阈值
type RegionConfig struct {
	BottomMargin int     `mapstructure:"bottom_margin"`
	RightMargin  int     `mapstructure:"right_margin"`
	CannyLow     float32 `mapstructure:"canny_low"`
	CannyHigh    float32 `mapstructure:"canny_high"`
}

// MaskConfig 掩码闭运算核大小与二值化阈值（经验调参）
type MaskConfig struct {
	KernelSize int     `mapstructure:"kernel_size"`
	Threshold  float32 `mapstructure:"threshold"`
}

// LaneConfig 连通域过滤条件（像素）
//
// MinLeft 为空时不检查左边界下限。
type LaneConfig struct {
	Count   int  `mapstructure:"count"`
	MinArea int  `mapstructure:"min_area"`
	MinTop  int  `mapstructure:"min_top"`
	MaxTop  int  `mapstructure:"max_top"`
	MinLeft *int `mapstructure:"min_left"`
	MaxLeft int  `mapstructure:"max_left"`
}

// MappingConfig 像素到机器人坐标系的标定参数
type MappingConfig struct {
	PlateWidthMM   float64 `mapstructure:"plate_width_mm"`
	XOffset        float64 `mapstructure:"x_offset"`
	YOffset        float64 `mapstructure:"y_offset"`
	InsertionDepth float64 `mapstructure:"insertion_depth"`
}

// ControlConfig 闭环控制参数
type ControlConfig struct {
	Policy               string    `mapstructure:"policy"`
	ConvergenceThreshold float64   `mapstructure:"convergence_threshold"`
	MaxIterations        int       `mapstructure:"max_iterations"`
	SettleSteps          int       `mapstructure:"settle_steps"`
	EngageAction         []float64 `mapstructure:"engage_action"`
	HoldAction           []float64 `mapstructure:"hold_action"`
	StepRetries          uint64    `mapstructure:"step_retries"`
	PID                  PIDConfig `mapstructure:"pid"`
}

// PIDConfig 每个轴共用的PID增益
type PIDConfig struct {
	Kp        float64 `mapstructure:"kp"`
	Ki        float64 `mapstructure:"ki"`
	Kd        float64 `mapstructure:"kd"`
	Dt        float64 `mapstructure:"dt"`
	MaxOutput float64 `mapstructure:"max_output"`
}

// ModelsConfig 外部模型与环境服务地址
type ModelsConfig struct {
	SegmenterURL   string        `mapstructure:"segmenter_url"`
	PolicyURL      string        `mapstructure:"policy_url"`
	EnvironmentURL string        `mapstructure:"environment_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// Load 从 YAML 文件加载配置
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("TIPGUIDE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

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
		return Default()
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.mode", d.Server.Mode)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)

	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.password", d.Redis.Password)
	v.SetDefault("redis.db", d.Redis.DB)
	v.SetDefault("redis.ttl", d.Redis.TTL)

	v.SetDefault("upload.max_size", d.Upload.MaxSize)
	v.SetDefault("upload.upload_dir", d.Upload.UploadDir)
	v.SetDefault("upload.allowed_types", d.Upload.AllowedTypes)
	v.SetDefault("upload.cleanup_temp_files", d.Upload.CleanupTempFiles)

	v.SetDefault("pipeline.region.bottom_margin", d.Pipeline.Region.BottomMargin)
	v.SetDefault("pipeline.region.right_margin", d.Pipeline.Region.RightMargin)
	v.SetDefault("pipeline.region.canny_low", d.Pipeline.Region.CannyLow)
	v.SetDefault("pipeline.region.canny_high", d.Pipeline.Region.CannyHigh)
	v.SetDefault("pipeline.mask.kernel_size", d.Pipeline.Mask.KernelSize)
	v.SetDefault("pipeline.mask.threshold", d.Pipeline.Mask.Threshold)
	v.SetDefault("pipeline.lanes.count", d.Pipeline.Lanes.Count)
	v.SetDefault("pipeline.lanes.min_area", d.Pipeline.Lanes.MinArea)
	v.SetDefault("pipeline.lanes.min_top", d.Pipeline.Lanes.MinTop)
	v.SetDefault("pipeline.lanes.max_top", d.Pipeline.Lanes.MaxTop)
	v.SetDefault("pipeline.lanes.max_left", d.Pipeline.Lanes.MaxLeft)
	v.SetDefault("pipeline.mapping.plate_width_mm", d.Pipeline.Mapping.PlateWidthMM)
	v.SetDefault("pipeline.mapping.x_offset", d.Pipeline.Mapping.XOffset)
	v.SetDefault("pipeline.mapping.y_offset", d.Pipeline.Mapping.YOffset)
	v.SetDefault("pipeline.mapping.insertion_depth", d.Pipeline.Mapping.InsertionDepth)
	v.SetDefault("pipeline.max_concurrent", d.Pipeline.MaxConcurrent)
	v.SetDefault("pipeline.queue_timeout", d.Pipeline.QueueTimeout)

	v.SetDefault("control.policy", d.Control.Policy)
	v.SetDefault("control.convergence_threshold", d.Control.ConvergenceThreshold)
	v.SetDefault("control.max_iterations", d.Control.MaxIterations)
	v.SetDefault("control.settle_steps", d.Control.SettleSteps)
	v.SetDefault("control.engage_action", d.Control.EngageAction)
	v.SetDefault("control.hold_action", d.Control.HoldAction)
	v.SetDefault("control.step_retries", d.Control.StepRetries)
	v.SetDefault("control.pid.kp", d.Control.PID.Kp)
	v.SetDefault("control.pid.ki", d.Control.PID.Ki)
	v.SetDefault("control.pid.kd", d.Control.PID.Kd)
	v.SetDefault("control.pid.dt", d.Control.PID.Dt)
	v.SetDefault("control.pid.max_output", d.Control.PID.MaxOutput)

	v.SetDefault("models.segmenter_url", d.Models.SegmenterURL)
	v.SetDefault("models.policy_url", d.Models.PolicyURL)
	v.SetDefault("models.environment_url", d.Models.EnvironmentURL)
	v.SetDefault("models.timeout", d.Models.Timeout)
}

// Default 返回内置默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         ":8080",
			Mode:         "debug",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Minute,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			TTL:      24 * time.Hour,
		},
		Upload: UploadConfig{
			MaxSize:          20 * 1024 * 1024,
			UploadDir:        "./uploads",
			AllowedTypes:     []string{"image/jpeg", "image/png", "image/jpg", "image/tiff"},
			CleanupTempFiles: true,
		},
		Pipeline: PipelineConfig{
			Region: RegionConfig{
				BottomMargin: 15,
				RightMargin:  100,
				CannyLow:     50,
				CannyHigh:    150,
			},
			Mask: MaskConfig{
				KernelSize: 6,
				Threshold:  0.3,
			},
			Lanes: LaneConfig{
				Count:   5,
				MinArea: 200,
				MinTop:  300,
				MaxTop:  1000,
				MaxLeft: 2600,
			},
			Mapping: MappingConfig{
				PlateWidthMM:   150,
				XOffset:        0.10775,
				YOffset:        0.088,
				InsertionDepth: 0.1695,
			},
			MaxConcurrent: 2,
			QueueTimeout:  30 * time.Second,
		},
		Control: ControlConfig{
			Policy:               "remote",
			ConvergenceThreshold: 0.001,
			MaxIterations:        100000,
			SettleSteps:          100,
			EngageAction:         []float64{0, 0, 0, 1},
			HoldAction:           []float64{0, 0, 0, 0},
			StepRetries:          3,
			PID: PIDConfig{
				Kp:        10,
				Ki:        0,
				Kd:        0.1,
				Dt:        0.05,
				MaxOutput: 1,
			},
		},
		Models: ModelsConfig{
			SegmenterURL:   "http://localhost:9001",
			PolicyURL:      "http://localhost:9002",
			EnvironmentURL: "http://localhost:9003",
			Timeout:        30 * time.Second,
		},
	}
}
