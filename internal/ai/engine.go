package ai

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/holotable/swgoh-autopilot/internal/config"
	"github.com/holotable/swgoh-autopilot/internal/recovery"
	"github.com/holotable/swgoh-autopilot/internal/vision"
)

const gameStatePrompt = `Analyze this Star Wars Galaxy of Heroes screen comprehensively. Provide:

1. Current screen type (main menu, battle, collection, guild, etc.)
2. Energy levels visible (cantina, regular, fleet)
3. Available activities/buttons visible
4. Any pending rewards or notifications
5. Character information if on character screen
6. Guild information if on guild screen

Format your response as:
screen: [screen type]
energy: cantina:X/Y regular:X/Y fleet:X/Y
activities: [activity1, activity2, ...]
rewards: [reward1, reward2, ...]
characters: [character info if visible]
guild: [guild info if visible]`

// Executor carries out one recommended action against the game. The
// game package provides the real implementation.
type Executor interface {
	Execute(ctx context.Context, rec Recommendation) error
}

// ActionResult records one executed recommendation.
type ActionResult struct {
	Action      ActionType `json:"action"`
	Description string     `json:"description"`
	Success     bool       `json:"success"`
	Timestamp   time.Time  `json:"timestamp"`
}

// SessionResult summarizes one AI-driven automation session.
type SessionResult struct {
	ActionsExecuted   int            `json:"actions_executed"`
	SuccessfulActions int            `json:"successful_actions"`
	Duration          time.Duration  `json:"duration"`
	Results           []ActionResult `json:"results"`
}

// SuccessRate returns the fraction of executed actions that succeeded.
func (r *SessionResult) SuccessRate() float64 {
	if r.ActionsExecuted == 0 {
		return 0
	}
	return float64(r.SuccessfulActions) / float64(r.ActionsExecuted)
}

// Engine runs AI-driven automation: it repeatedly reads the screen,
// asks the model for recommendations, and executes the best one until
// the action or time budget runs out.
type Engine struct {
	analyzer ScreenAnalyzer
	capturer vision.ScreenCapturer
	executor Executor
	recovery *recovery.Manager
	logger   *logrus.Entry
	cfg      *config.AIConfig

	history []ActionResult

	// sleep is indirected for tests.
	sleep func(time.Duration)
}

// NewEngine assembles a decision engine from its collaborators.
func NewEngine(cfg *config.AIConfig, analyzer ScreenAnalyzer, capturer vision.ScreenCapturer,
	executor Executor, mgr *recovery.Manager, logger *logrus.Entry) *Engine {
	return &Engine{
		analyzer: analyzer,
		capturer: capturer,
		executor: executor,
		recovery: mgr,
		logger:   logger,
		cfg:      cfg,
		sleep:    time.Sleep,
	}
}

// AnalyzeGameState captures the screen and asks the model to describe
// it.
func (e *Engine) AnalyzeGameState(ctx context.Context) (GameState, error) {
	frame, err := e.capturer.Capture(ctx)
	if err != nil {
		return GameState{}, fmt.Errorf("failed to capture screen: %w", err)
	}

	response, err := e.analyzer.AnalyzeScreen(ctx, frame.PNG, gameStatePrompt)
	if err != nil {
		return GameState{}, fmt.Errorf("game state analysis failed: %w", err)
	}

	return ParseGameState(response), nil
}

// Recommend asks the model for next actions given the current state and
// the recent action history.
func (e *Engine) Recommend(ctx context.Context, state GameState) ([]Recommendation, error) {
	frame, err := e.capturer.Capture(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to capture screen: %w", err)
	}

	response, err := e.analyzer.AnalyzeScreen(ctx, frame.PNG, e.buildRecommendationPrompt(state))
	if err != nil {
		return nil, fmt.Errorf("recommendation request failed: %w", err)
	}

	return ParseRecommendations(response), nil
}

func (e *Engine) buildRecommendationPrompt(state GameState) string {
	var recent []string
	start := len(e.history) - 5
	if start < 0 {
		start = 0
	}
	for _, r := range e.history[start:] {
		recent = append(recent, fmt.Sprintf("%s (success=%t)", r.Description, r.Success))
	}
	recentStr := "None"
	if len(recent) > 0 {
		recentStr = strings.Join(recent, "; ")
	}

	var energy []string
	for name, level := range state.EnergyLevels {
		energy = append(energy, fmt.Sprintf("%s:%d/%d", name, level.Current, level.Max))
	}
	sort.Strings(energy)

	return fmt.Sprintf(`Based on this SWGOH game state, recommend the best actions to take:

Current State:
- Screen: %s
- Energy: %s
- Available Activities: %s
- Pending Rewards: %s

Recent Actions: %s

Recommend 3-5 actions with priorities (1-10, 10 highest) and confidence (0.0-1.0).
Consider energy efficiency, reward value, and time sensitivity.

Format each action as:
action: [action_type]
priority: [1-10]
description: [brief description]
parameters: [key:value pairs]
confidence: [0.0-1.0]`,
		state.CurrentScreen,
		strings.Join(energy, " "),
		strings.Join(state.AvailableActivities, ", "),
		strings.Join(state.PendingRewards, ", "),
		recentStr,
	)
}

// pickBest selects the recommendation with the highest priority,
// breaking ties on confidence.
func pickBest(recs []Recommendation) Recommendation {
	best := recs[0]
	for _, rec := range recs[1:] {
		if rec.Priority > best.Priority ||
			(rec.Priority == best.Priority && rec.Confidence > best.Confidence) {
			best = rec
		}
	}
	return best
}

// RunSession drives the automation loop until the action budget, the
// session duration, or the context runs out.
func (e *Engine) RunSession(ctx context.Context) (*SessionResult, error) {
	e.logger.WithFields(logrus.Fields{
		"max_actions":      e.cfg.MaxActions,
		"session_duration": e.cfg.SessionDuration,
	}).Info("Starting AI-driven automation session")

	start := time.Now()
	result := &SessionResult{}

	for result.ActionsExecuted < e.cfg.MaxActions && time.Since(start) < e.cfg.SessionDuration {
		if err := ctx.Err(); err != nil {
			break
		}

		state, err := e.AnalyzeGameState(ctx)
		if err != nil {
			e.recovery.Handle(err, recovery.CategoryAIDecision, recovery.SeverityMedium,
				map[string]any{"operation": "analyze_game_state"})
			e.sleep(5 * time.Second)
			continue
		}

		recs, err := e.Recommend(ctx, state)
		if err != nil {
			e.recovery.Handle(err, recovery.CategoryAIDecision, recovery.SeverityMedium,
				map[string]any{"operation": "recommend"})
			e.sleep(5 * time.Second)
			continue
		}
		if len(recs) == 0 {
			e.logger.Info("No AI recommendations available, ending session")
			break
		}

		best := pickBest(recs)
		if best.Confidence < e.cfg.DecisionThreshold {
			e.logger.WithFields(logrus.Fields{
				"action":     best.Type,
				"confidence": best.Confidence,
				"threshold":  e.cfg.DecisionThreshold,
			}).Warn("Best recommendation below confidence threshold, ending session")
			break
		}

		e.logger.WithFields(logrus.Fields{
			"action":     best.Type,
			"priority":   best.Priority,
			"confidence": best.Confidence,
		}).Infof("AI recommends: %s", best.Description)

		outcome := recovery.Run(e.recovery, recovery.Operation{
			Name:     "execute_" + string(best.Type),
			Category: recovery.CategoryAIDecision,
			Severity: recovery.SeverityMedium,
			Context:  map[string]any{"description": best.Description},
			Fn:       func() error { return e.executor.Execute(ctx, best) },
		})
		if outcome.Err != nil {
			return result, outcome.Err
		}

		actionResult := ActionResult{
			Action:      best.Type,
			Description: best.Description,
			Success:     outcome.OK,
			Timestamp:   time.Now(),
		}
		result.Results = append(result.Results, actionResult)
		e.history = append(e.history, actionResult)

		result.ActionsExecuted++
		if outcome.OK {
			result.SuccessfulActions++
		}

		e.sleep(2 * time.Second)
	}

	result.Duration = time.Since(start)

	e.logger.WithFields(logrus.Fields{
		"actions_executed":   result.ActionsExecuted,
		"successful_actions": result.SuccessfulActions,
		"success_rate":       result.SuccessRate(),
		"duration_ms":        result.Duration.Milliseconds(),
	}).Info("AI-driven automation session completed")

	return result, nil
}
