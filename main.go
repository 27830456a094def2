package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/TIANLI0/TipGuide/config"
	"github.com/TIANLI0/TipGuide/handler"
	"github.com/TIANLI0/TipGuide/metrics"
	"github.com/TIANLI0/TipGuide/middleware"
	"github.com/TIANLI0/TipGuide/service"
	"github.com/TIANLI0/TipGuide/utils"
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

	utils.Logger.Info("starting TipGuide server",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
		zap.String("git_branch", GitBranch))

	// 确保上传目录存在
	if err := os.MkdirAll(cfg.Upload.UploadDir, 0755); err != nil {
		utils.Logger.Fatal("failed to create upload directory", zap.Error(err))
	}

	m := metrics.New()

	// 初始化Redis
	cache := service.NewTargetCache(&cfg.Redis, &cfg.Pipeline)
	ctx := context.Background()
	if err := cache.Ping(ctx); err != nil {
		utils.Logger.Warn("redis connection failed, cache disabled", zap.Error(err))
	} else {
		utils.Logger.Info("redis connected successfully")
	}
	defer cache.Close()

	policy, err := service.NewPolicy(&cfg.Control, &cfg.Models)
	if err != nil {
		utils.Logger.Fatal("invalid control configuration", zap.Error(err))
	}

	targetService := service.NewTargetService(&cfg.Pipeline, service.NewRemoteSegmenter(&cfg.Models), m)
	controller := service.NewMotionController(&cfg.Control, policy, service.NewRemoteEnvironment(&cfg.Models))
	guidanceService := service.NewGuidanceService(controller, cfg.Pipeline.QueueTimeout, m)

	targetHandler := handler.NewTargetHandler(cfg, cache, targetService, guidanceService, m)

	// 设置Gin模式
	gin.SetMode(cfg.Server.Mode)

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

	r.GET("/metrics", gin.WrapH(m.Handler()))

	// API路由
	api := r.Group("/api/v1")
	{
		api.POST("/targets", targetHandler.Extract)
		api.GET("/targets/:md5", targetHandler.GetByMD5)
		api.POST("/episodes", targetHandler.Guide)
	}

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	utils.Logger.Info("server starting",
		zap.String("port", cfg.Server.Port),
		zap.String("policy", cfg.Control.Policy))
	if err := srv.ListenAndServe(); err != nil {
		utils.Logger.Fatal("failed to start server", zap.Error(err))
	}
}
