package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/holotable/swgoh-autopilot/internal/ai"
	"github.com/holotable/swgoh-autopilot/internal/config"
)

const (
	AppName    = "SWGOH-Autopilot"
	AppVersion = "1.0.0"
)

func main() {
	// 解析命令行参数
	var (
		configFile = flag.String("config", "", "Configuration file path")
		routine    = flag.String("routine", "morning", "Routine to run (morning|evening|dailies|ai|farm)")
		logLevel   = flag.String("log-level", "", "Log level (trace, debug, info, warn, error)")
		logDir     = flag.String("log-dir", "", "Log directory")
		statusPort = flag.Int("status-port", 0, "Status server port (0 keeps the configured port)")
		dryRun     = flag.Bool("dry-run", false, "Rehearse the routine without touching the game")
		version    = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *version {
		fmt.Printf("%s v%s\n", AppName, AppVersion)
		fmt.Println("Vision-model driven Galaxy of Heroes automation")
		return
	}

	// .env 中的密钥先于配置加载
	config.LoadDotEnv()

	// 加载配置
	var cfg *config.Config
	var err error

	if *configFile != "" {
		log.Printf("Loading configuration from: %s", *configFile)
		cfg, err = config.LoadConfigFromFile(*configFile)
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	} else {
		cfg = config.DefaultConfig()
		cfg.ApplyEnvOverrides()
	}

	// 命令行参数覆盖配置
	if *logLevel != "" {
		if level, err := config.ParseLogLevel(*logLevel); err == nil {
			cfg.Logging.Level = level
		} else {
			log.Printf("Invalid log level '%s': %v", *logLevel, err)
		}
	}
	if *logDir != "" {
		cfg.Logging.Dir = *logDir
	}
	if *statusPort != 0 {
		cfg.Server.Port = *statusPort
	}

	// 验证配置
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// 初始化日志系统
	logger, err := config.SetupLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to setup logger: %v", err)
	}

	// 装配屏幕栈与分析器
	var providers Providers
	var analyzer ai.ScreenAnalyzer

	if *dryRun {
		providers = newDryRunProviders(
			cfg.Automation.Window.Width, cfg.Automation.Window.Height).asProviders()
		analyzer = dryRunAnalyzer{}
		logger.Warn("Dry-run mode: synthetic screen stack, no game input, no model calls")
	} else {
		providers, err = platformProviders(cfg.Automation)
		if err != nil {
			log.Fatalf("No screen stack available: %v", err)
		}

		client, err := ai.NewClient(context.Background(), cfg.AI,
			config.GetLoggerWithPrefix(logger, "ai"))
		if err != nil {
			log.Fatalf("Failed to create vision model client: %v", err)
		}
		analyzer = client
	}

	// 创建应用
	app, err := NewAutopilotApp(cfg, providers, analyzer, logger)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}
	app.SetDryRun(*dryRun)

	// 设置信号处理
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := app.Start(*routine); err != nil {
		log.Fatalf("Application failed to start: %v", err)
	}

	if cfg.Server != nil && cfg.Server.Enabled {
		fmt.Printf("Status: http://%s:%d/api/status\n", cfg.Server.Host, cfg.Server.Port)
		fmt.Printf("Metrics: http://%s:%d/metrics\n", cfg.Server.Host, cfg.Server.Port)
	}

	// 在后台执行例程，完成或收到信号后退出
	done := make(chan error, 1)
	go func() { done <- app.Run() }()

	var runErr error
	select {
	case runErr = <-done:
		if runErr != nil {
			logger.WithError(runErr).Error("Routine failed")
		} else {
			logger.Infof("Routine %q completed", *routine)
		}
	case sig := <-sigChan:
		logger.Infof("Received signal %v, shutting down", sig)
	}

	// 优雅关闭
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Lifecycle.ShutdownTimeout)
	defer cancel()

	if err := app.Stop(ctx); err != nil {
		log.Printf("Application shutdown error: %v", err)
	}
	if runErr != nil {
		os.Exit(1)
	}
}
