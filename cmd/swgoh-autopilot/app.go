package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/holotable/swgoh-autopilot/internal/ai"
	"github.com/holotable/swgoh-autopilot/internal/config"
	"github.com/holotable/swgoh-autopilot/internal/game"
	"github.com/holotable/swgoh-autopilot/internal/logging"
	"github.com/holotable/swgoh-autopilot/internal/metrics"
	"github.com/holotable/swgoh-autopilot/internal/recovery"
	"github.com/holotable/swgoh-autopilot/internal/statusserver"
	"github.com/holotable/swgoh-autopilot/internal/store"
	"github.com/holotable/swgoh-autopilot/internal/vision"
)

// farmEnergyFloor 自动刷取在体力低于该值时停止
const farmEnergyFloor = 10

// farmMaxDuration 单次自动刷取的最长时长
const farmMaxDuration = 2 * time.Hour

// Providers 平台相关的屏幕采集与输入实现
// 由构建方按平台注入，dry-run 模式使用内置的合成实现。
type Providers struct {
	Capturer vision.ScreenCapturer
	Matcher  vision.TemplateMatcher
	Input    vision.InputDriver
	Locator  vision.WindowLocator
}

func (p Providers) validate() error {
	if p.Capturer == nil || p.Matcher == nil || p.Input == nil || p.Locator == nil {
		return fmt.Errorf("all screen providers are required")
	}
	return nil
}

// AutopilotApp 自动化应用
// 持有全部组件并负责按序启动、停止
type AutopilotApp struct {
	config  *config.Config
	logger  *logrus.Logger
	session *logging.SessionLogger
	metrics *metrics.Metrics

	recoveryMgr *recovery.Manager
	breaker     *recovery.CircuitBreaker

	auto     *game.Automator
	energy   *game.EnergyManager
	battles  *game.BattleRunner
	dailies  *game.DailiesManager
	routines *game.Routines
	engine   *ai.Engine

	history *store.Store         // nil 表示存储未启用
	status  *statusserver.Server // nil 表示状态服务器未启用

	storeSessionID string
	routine        string
	startTime      time.Time

	rootCtx    context.Context
	cancelFunc context.CancelFunc
}

// NewAutopilotApp 创建应用并完成全部组件装配
func NewAutopilotApp(cfg *config.Config, providers Providers, analyzer ai.ScreenAnalyzer, logger *logrus.Logger) (*AutopilotApp, error) {
	if err := providers.validate(); err != nil {
		return nil, err
	}

	rootCtx, cancelFunc := context.WithCancel(context.Background())

	app := &AutopilotApp{
		config:     cfg,
		logger:     logger,
		startTime:  time.Now(),
		rootCtx:    rootCtx,
		cancelFunc: cancelFunc,
	}

	app.session = logging.NewSessionLogger(logger, cfg.Logging)
	if err := logging.AttachFileHooks(logger, cfg.Logging); err != nil {
		cancelFunc()
		return nil, fmt.Errorf("failed to attach log hooks: %w", err)
	}

	m, err := metrics.New()
	if err != nil {
		cancelFunc()
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}
	app.metrics = m

	// 恢复动作需要 automator 的能力，automator 又依赖恢复管理器。
	// 通过闭包延迟绑定打破环：动作只会在 Handle 期间执行，
	// 此时 automator 已装配完成。
	hooks := recovery.Hooks{
		RefreshScreen: func() error {
			_, err := app.auto.CaptureScreen(app.rootCtx)
			return err
		},
		AdjustConfidence: func() error { return app.auto.LowerConfidence() },
		NavigateHome:     func() error { return app.auto.NavigateHome(app.rootCtx) },
	}
	app.recoveryMgr = recovery.NewManager(
		config.GetLoggerWithPrefix(logger, "recovery"),
		recovery.DefaultActions(hooks),
	)
	app.breaker = recovery.NewCircuitBreaker(
		cfg.Recovery.FailureThreshold, cfg.Recovery.RecoveryTimeout)

	// 模型调用计数经由装饰器进入指标
	analyzer = meteredAnalyzer{inner: analyzer, metrics: m}

	app.auto = game.NewAutomator(cfg.Automation, game.Deps{
		Capturer: providers.Capturer,
		Matcher:  providers.Matcher,
		Input:    providers.Input,
		Locator:  providers.Locator,
		Analyzer: analyzer,
		Session:  app.session,
		Recovery: app.recoveryMgr,
	}, config.GetLoggerWithPrefix(logger, "automator"))

	app.energy = game.NewEnergyManager(app.auto, &cfg.Automation.Energy,
		config.GetLoggerWithPrefix(logger, "energy"))
	app.battles = game.NewBattleRunner(app.auto, &cfg.Automation.Battle, cfg.Automation.Teams,
		config.GetLoggerWithPrefix(logger, "battle"))
	app.dailies = game.NewDailiesManager(app.auto, &cfg.Automation.Dailies,
		config.GetLoggerWithPrefix(logger, "dailies"))
	app.routines = game.NewRoutines(app.auto, app.energy, app.battles, app.dailies,
		config.GetLoggerWithPrefix(logger, "routines"))

	executor := game.NewExecutor(app.auto, app.energy, app.battles, app.dailies,
		&cfg.Automation.Battle, config.GetLoggerWithPrefix(logger, "executor"))
	app.engine = ai.NewEngine(cfg.AI, analyzer, providers.Capturer, executor,
		app.recoveryMgr, config.GetLoggerWithPrefix(logger, "engine"))

	if cfg.Store != nil && cfg.Store.Enabled {
		history, err := store.Open(cfg.Store, config.GetLoggerWithPrefix(logger, "store"))
		if err != nil {
			cancelFunc()
			return nil, fmt.Errorf("failed to open session store: %w", err)
		}
		app.history = history
	}

	if cfg.Server != nil && cfg.Server.Enabled {
		status, err := statusserver.NewServer(cfg.Server, statusserver.Sources{
			ErrorSummary: app.recoveryMgr.Summary,
			RecentErrors: app.recoveryMgr.RecentErrors,
			SessionStats: app.session.SessionStats,
			RecentBattles: func(count int) ([]store.BattleRow, error) {
				if app.history == nil {
					return nil, nil
				}
				return app.history.RecentBattles(count)
			},
			Metrics: m.Handler(),
		}, config.GetLoggerWithPrefix(logger, "status"))
		if err != nil {
			app.closeHistory()
			cancelFunc()
			return nil, fmt.Errorf("failed to create status server: %w", err)
		}
		app.status = status
	}

	// 会话事件流入指标、存储与事件推送
	app.session.SetObserver(logging.Observer{
		OnAction: func(action string, success bool, duration time.Duration) {
			app.metrics.ObserveAction(action, success, duration)

			if app.history != nil && app.storeSessionID != "" {
				if err := app.history.RecordAction(app.storeSessionID, action, success, duration); err != nil {
					app.logger.WithError(err).Warn("Failed to record action")
				}
			}

			if app.status != nil {
				app.status.Hub().Broadcast("action_completed", map[string]any{
					"action":      action,
					"success":     success,
					"duration_ms": duration.Milliseconds(),
				})
			}
		},
		OnEnergy: func(kind string, current, max int) {
			app.metrics.SetEnergy(kind, current, max)
		},
		OnDecision: func(action string, confidence float64) {
			app.metrics.ObserveAIConfidence(confidence)
		},
		OnBattle: func(mode, stage string, victory bool, stars int, duration time.Duration) {
			app.recordBattle(game.BattleResult{
				Mode: mode, Stage: stage, Victory: victory, Stars: stars, Duration: duration,
			})
		},
	})

	// 每个被处理的错误都进入指标与事件流
	app.recoveryMgr.SetErrorCallback(func(rec *recovery.ErrorRecord) {
		app.metrics.RecordError(rec.Category.String(), rec.Severity.String())
		app.metrics.RecordRecovery(rec.Category.String(), rec.Resolved)

		if app.status != nil {
			app.status.Hub().Broadcast("error_handled", map[string]any{
				"category": rec.Category.String(),
				"severity": rec.Severity.String(),
				"message":  rec.Message,
				"resolved": rec.Resolved,
				"attempts": rec.RecoveryAttempts,
			})
		}
	})

	return app, nil
}

// SetDryRun 启用演练模式：动作照常决策与记录，但不触碰输入
func (app *AutopilotApp) SetDryRun(enabled bool) {
	app.auto.SetDryRun(enabled)
}

// Start 启动应用组件
func (app *AutopilotApp) Start(routine string) error {
	app.routine = routine
	app.logger.Infof("Starting %s v%s, routine %q", AppName, AppVersion, routine)

	if app.status != nil {
		if err := app.status.Start(app.rootCtx); err != nil {
			return fmt.Errorf("failed to start status server: %w", err)
		}
	}

	if app.history != nil {
		id, err := app.history.CreateSession(routine)
		if err != nil {
			// 存储失败不阻止自动化运行
			app.logger.WithError(err).Warn("Failed to create store session")
		} else {
			app.storeSessionID = id
		}

		if app.config.Store.RetentionDays > 0 {
			if _, err := app.history.Purge(app.config.Store.RetentionDays); err != nil {
				app.logger.WithError(err).Warn("Failed to purge old history")
			}
		}
	}

	if err := app.auto.FindWindow(app.rootCtx); err != nil {
		return fmt.Errorf("failed to locate game window: %w", err)
	}

	return nil
}

// Run 执行选定的例程
func (app *AutopilotApp) Run() error {
	// 熔断器保护整个例程：连续失败过多时停止触碰游戏
	return app.breaker.Call(func() error {
		return app.runRoutine(app.rootCtx, app.routine)
	})
}

func (app *AutopilotApp) runRoutine(ctx context.Context, routine string) error {
	switch routine {
	case "morning":
		return app.routines.Morning(ctx)

	case "evening":
		return app.routines.Evening(ctx)

	case "dailies":
		results := app.dailies.AutoComplete(ctx)
		for task, ok := range results {
			if !ok {
				app.logger.Warnf("Daily task %s did not complete", task)
			}
		}
		return nil

	case "ai":
		result, err := app.engine.RunSession(ctx)
		if err != nil {
			return err
		}
		app.logger.Infof("AI session finished: %d actions, %.0f%% success",
			result.ActionsExecuted, result.SuccessRate()*100)
		return nil

	case "farm":
		battle := app.config.Automation.Battle
		results, err := app.battles.FarmStage(ctx, app.energy,
			battle.PreferredMode, battle.FarmStage, battle.PreferredMode,
			farmEnergyFloor, farmMaxDuration)
		app.logger.Infof("Farm finished after %d battles", len(results))
		return err

	default:
		return fmt.Errorf("unknown routine: %s", routine)
	}
}

// recordBattle 把一场战斗写入指标、存储与事件流
func (app *AutopilotApp) recordBattle(result game.BattleResult) {
	app.metrics.RecordBattle(result.Mode, result.Victory, result.Stars)

	if app.history != nil && app.storeSessionID != "" {
		if err := app.history.RecordBattle(app.storeSessionID,
			result.Mode, result.Stage, result.Victory, result.Stars, result.Duration); err != nil {
			app.logger.WithError(err).Warn("Failed to record battle")
		}
	}

	if app.status != nil {
		app.status.Hub().Broadcast("battle_completed", map[string]any{
			"mode":    result.Mode,
			"stage":   result.Stage,
			"victory": result.Victory,
			"stars":   result.Stars,
		})
	}
}

// Stop 按与启动相反的顺序停止组件并保存会话产物
func (app *AutopilotApp) Stop(ctx context.Context) error {
	app.logger.Info("Stopping application...")
	app.cancelFunc()

	var firstErr error

	if app.status != nil {
		if err := app.status.Stop(ctx); err != nil {
			app.logger.WithError(err).Error("Failed to stop status server")
			firstErr = err
		}
	}

	stats := app.recoveryMgr.Stats()
	if app.history != nil && app.storeSessionID != "" {
		if err := app.history.FinishSession(app.storeSessionID,
			int(stats.TotalErrors), int(stats.ResolvedErrors)); err != nil {
			app.logger.WithError(err).Warn("Failed to finalize store session")
		}
	}
	app.closeHistory()

	if path, err := app.session.SaveSessionReport(); err != nil {
		app.logger.WithError(err).Warn("Failed to save session report")
	} else {
		app.logger.Infof("Session report saved to %s", path)
	}

	if removed, err := app.session.CleanupOldLogs(); err != nil {
		app.logger.WithError(err).Warn("Failed to clean up old logs")
	} else if removed > 0 {
		app.logger.Infof("Removed %d old log files", removed)
	}

	app.logger.Infof("Application stopped after %s, errors handled: %d, recovered: %d",
		time.Since(app.startTime).Round(time.Second), stats.TotalErrors, stats.ResolvedErrors)
	return firstErr
}

// meteredAnalyzer 为每次模型调用记录成功/失败指标
type meteredAnalyzer struct {
	inner   ai.ScreenAnalyzer
	metrics *metrics.Metrics
}

func (m meteredAnalyzer) AnalyzeScreen(ctx context.Context, png []byte, prompt string) (string, error) {
	resp, err := m.inner.AnalyzeScreen(ctx, png, prompt)
	m.metrics.RecordAIRequest(err == nil)
	return resp, err
}

func (app *AutopilotApp) closeHistory() {
	if app.history == nil {
		return
	}
	if err := app.history.Close(); err != nil {
		app.logger.WithError(err).Warn("Failed to close session store")
	}
	app.history = nil
}
