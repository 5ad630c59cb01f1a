package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/theloomik/Bunker/internal/api"
	"github.com/theloomik/Bunker/internal/config"
	"github.com/theloomik/Bunker/internal/database"
	"github.com/theloomik/Bunker/internal/game"
	"github.com/theloomik/Bunker/internal/logger"
	"github.com/theloomik/Bunker/internal/repository"
	"go.uber.org/zap"
)

// 版本信息
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "配置文件路径")
		showVersion = flag.Bool("version", false, "显示版本信息")
	)

	flag.Parse()

	if *showVersion {
		fmt.Printf("Bunker Game Server\nVersion:    %s\nBuildTime:  %s\nGitCommit:  %s\n",
			Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	// 加载配置
	if err := config.Init(*configPath); err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Get()

	// 初始化日志系统
	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("服务器启动中",
		zap.String("version", Version),
		zap.String("mode", cfg.Server.Mode))

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 初始化数据库
	if err := database.Init(&cfg.Database); err != nil {
		logger.Fatal("初始化数据库失败", zap.Error(err))
	}
	defer database.Close()

	// 内容目录
	catalog := game.DefaultCatalog()
	if err := catalog.Validate(); err != nil {
		logger.Fatal("内容目录校验失败", zap.Error(err))
	}

	// 组装游戏核心
	db := database.GetDB()
	gameLog := logger.WithModule("game")
	persister := game.NewStoreSessionPersister(repository.NewSessionStateRepository(db))
	statsRepo := repository.NewPlayerStatsRepository(db)
	manager := game.NewSessionManager(&cfg.Game, catalog, persister, statsRepo, gameLog)

	// 启动恢复：加载上次进程残留的活动会话
	recovery := game.NewRecoveryManager(manager, persister, &cfg.Game, catalog, gameLog)
	if _, err := recovery.Recover(context.Background()); err != nil {
		logger.Fatal("启动恢复失败", zap.Error(err))
	}

	// HTTP服务
	router := api.NewRouter(manager, logger.WithModule("api"))
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("HTTP服务监听", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP服务异常退出", zap.Error(err))
		}
	}()

	// 配置热更新（只接受校验通过的新配置）
	config.Watch(func(newCfg *config.Config) {
		logger.Info("配置已热更新",
			zap.Int("min_players", newCfg.Game.MinPlayers),
			zap.Int("max_players", newCfg.Game.MaxPlayers))
	})

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("收到退出信号，开始优雅关闭")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("HTTP服务关闭失败", zap.Error(err))
	}

	logger.Info("服务器已安全关闭")
}
