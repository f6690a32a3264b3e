package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holotable/swgoh-autopilot/internal/config"
	"github.com/holotable/swgoh-autopilot/internal/recovery"
	"github.com/holotable/swgoh-autopilot/internal/vision"
)

type scriptedAnalyzer struct {
	responses []string
	calls     int
}

func (a *scriptedAnalyzer) AnalyzeScreen(ctx context.Context, png []byte, prompt string) (string, error) {
	if a.calls >= len(a.responses) {
		return "", errors.New("no scripted response left")
	}
	resp := a.responses[a.calls]
	a.calls++
	return resp, nil
}

type fakeCapturer struct{}

func (fakeCapturer) Capture(ctx context.Context) (*vision.Frame, error) {
	return &vision.Frame{PNG: []byte("png"), Width: 1952, Height: 1096}, nil
}

func (fakeCapturer) CaptureRegion(ctx context.Context, region vision.Region) (*vision.Frame, error) {
	return &vision.Frame{PNG: []byte("png"), Width: region.Width, Height: region.Height}, nil
}

type recordingExecutor struct {
	executed []Recommendation
	err      error
}

func (e *recordingExecutor) Execute(ctx context.Context, rec Recommendation) error {
	e.executed = append(e.executed, rec)
	return e.err
}

func newTestEngine(cfg *config.AIConfig, analyzer ScreenAnalyzer, executor Executor) *Engine {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	entry := logrus.NewEntry(logger)

	mgr := recovery.NewManager(entry, map[recovery.Category][]recovery.Action{})

	e := NewEngine(cfg, analyzer, fakeCapturer{}, executor, mgr, entry)
	e.sleep = func(time.Duration) {}
	return e
}

const stateResponse = `screen: main menu
energy: cantina:45/144 regular:80/144`

func TestRunSessionExecutesBestRecommendation(t *testing.T) {
	cfg := config.DefaultAIConfig()
	cfg.MaxActions = 1

	analyzer := &scriptedAnalyzer{responses: []string{
		stateResponse,
		`action: collect_rewards
priority: 4
description: collect daily login
confidence: 0.8

action: energy_refill
priority: 9
description: refill cantina
parameters: type:cantina
confidence: 0.85`,
	}}
	executor := &recordingExecutor{}

	e := newTestEngine(cfg, analyzer, executor)
	result, err := e.RunSession(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.ActionsExecuted)
	assert.Equal(t, 1, result.SuccessfulActions)
	assert.InDelta(t, 1.0, result.SuccessRate(), 1e-9)

	require.Len(t, executor.executed, 1)
	assert.Equal(t, ActionEnergyRefill, executor.executed[0].Type, "highest priority action wins")
}

func TestRunSessionStopsBelowConfidenceThreshold(t *testing.T) {
	cfg := config.DefaultAIConfig()
	cfg.MaxActions = 5
	cfg.DecisionThreshold = 0.7

	analyzer := &scriptedAnalyzer{responses: []string{
		stateResponse,
		`action: sim_battle
priority: 5
description: sim something
confidence: 0.3`,
	}}
	executor := &recordingExecutor{}

	e := newTestEngine(cfg, analyzer, executor)
	result, err := e.RunSession(context.Background())
	require.NoError(t, err)

	assert.Zero(t, result.ActionsExecuted)
	assert.Empty(t, executor.executed)
}

func TestRunSessionStopsWithoutRecommendations(t *testing.T) {
	cfg := config.DefaultAIConfig()
	cfg.MaxActions = 5

	analyzer := &scriptedAnalyzer{responses: []string{
		stateResponse,
		"no actions to recommend",
	}}
	executor := &recordingExecutor{}

	e := newTestEngine(cfg, analyzer, executor)
	result, err := e.RunSession(context.Background())
	require.NoError(t, err)

	assert.Zero(t, result.ActionsExecuted)
}

func TestRunSessionCountsFailedActions(t *testing.T) {
	cfg := config.DefaultAIConfig()
	cfg.MaxActions = 1

	analyzer := &scriptedAnalyzer{responses: []string{
		stateResponse,
		`action: complete_daily
priority: 7
description: finish dailies
confidence: 0.9`,
	}}
	executor := &recordingExecutor{err: errors.New("daily button not found")}

	e := newTestEngine(cfg, analyzer, executor)
	result, err := e.RunSession(context.Background())
	require.NoError(t, err, "non-critical execution failures are absorbed")

	assert.Equal(t, 1, result.ActionsExecuted)
	assert.Zero(t, result.SuccessfulActions)
	assert.Zero(t, result.SuccessRate())
}

func TestRunSessionHonorsContextCancellation(t *testing.T) {
	cfg := config.DefaultAIConfig()
	cfg.MaxActions = 100

	analyzer := &scriptedAnalyzer{}
	executor := &recordingExecutor{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := newTestEngine(cfg, analyzer, executor)
	result, err := e.RunSession(ctx)
	require.NoError(t, err)

	assert.Zero(t, result.ActionsExecuted)
	assert.Zero(t, analyzer.calls)
}

func TestRecommendationPromptIncludesHistory(t *testing.T) {
	cfg := config.DefaultAIConfig()
	e := newTestEngine(cfg, &scriptedAnalyzer{}, &recordingExecutor{})

	e.history = []ActionResult{
		{Description: "refilled cantina", Success: true},
		{Description: "farmed 1-A", Success: false},
	}

	prompt := e.buildRecommendationPrompt(GameState{
		CurrentScreen: "main menu",
		EnergyLevels:  map[string]EnergyLevel{"cantina": {Current: 45, Max: 144}},
	})

	assert.Contains(t, prompt, "refilled cantina (success=true)")
	assert.Contains(t, prompt, "farmed 1-A (success=false)")
	assert.Contains(t, prompt, "cantina:45/144")
}
