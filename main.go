package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/TIANLI0/DetectKit/api"
	"github.com/TIANLI0/DetectKit/client"
	"github.com/TIANLI0/DetectKit/config"
	"github.com/TIANLI0/DetectKit/handler"
	"github.com/TIANLI0/DetectKit/middleware"
	"github.com/TIANLI0/DetectKit/proxy"
	"github.com/TIANLI0/DetectKit/router"
	"github.com/TIANLI0/DetectKit/service"
	"github.com/TIANLI0/DetectKit/utils"
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

	utils.Logger.Info("starting DetectKit server",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
		zap.String("git_branch", GitBranch),
		zap.String("api_url", cfg.API.BaseURL))

	// 后端检测服务
	apiClient := client.New(cfg.API, client.UseNotifier(client.LogNotifier{}))
	detectionAPI := api.NewDetectionAPI(apiClient)

	// 初始化Redis，连接失败时不使用缓存
	var cache handler.ResultCache
	redisService := service.NewRedisService(&cfg.Redis)
	if err := redisService.Ping(context.Background()); err != nil {
		utils.Logger.Warn("redis connection failed, cache disabled", zap.Error(err))
	} else {
		utils.Logger.Info("redis connected successfully")
		cache = redisService
	}
	defer redisService.Close()

	preprocessor := service.NewPreprocessor(&cfg.Preprocess)

	// 设置Gin模式
	gin.SetMode(cfg.Server.Mode)

	r, err := setupRouter(cfg, detectionAPI, cache, preprocessor)
	if err != nil {
		utils.Logger.Fatal("failed to setup router", zap.Error(err))
	}

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 启动服务器
	utils.Logger.Info("server starting", zap.String("port", cfg.Server.Port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		utils.Logger.Fatal("failed to start server", zap.Error(err))
	}
}

// setupRouter 组装中间件和路由。代理挂在 CORS 之前，/api 的预检请求交给后端处理
func setupRouter(cfg *config.Config, detectionAPI handler.DetectionAPI, cache handler.ResultCache, preparer handler.ImagePreparer) (*gin.Engine, error) {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())

	// 开发模式下转发 /api 到后端
	if cfg.Server.Mode != gin.ReleaseMode && cfg.Proxy.Enabled {
		p, err := proxy.New(proxy.RuleFromConfig(cfg.Proxy))
		if err != nil {
			return nil, fmt.Errorf("failed to create proxy: %w", err)
		}
		r.Use(p.Middleware())
		utils.Logger.Info("dev proxy enabled",
			zap.String("prefix", p.Rule().Prefix),
			zap.String("target", p.Rule().Target),
			zap.Bool("ws", p.Rule().WS))
	}

	r.Use(middleware.CORS())

	// 页面路由
	table := router.NewTable(router.Routes(
		handler.NewHomeView(cfg, detectionAPI, cache, preparer),
		handler.NewModelManagerView(detectionAPI),
	))
	tmpl, err := handler.Templates(table)
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	r.SetHTMLTemplate(tmpl)
	table.Register(r)

	// 健康检查和版本信息
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"version": Version,
		})
	})

	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
			"build_id":   BuildID,
			"git_commit": GitCommit,
			"git_branch": GitBranch,
		})
	})

	return r, nil
}
