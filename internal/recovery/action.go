package recovery

import (
	"time"
)

// Action is a named, attempt-bounded recovery strategy for one error
// category. Actions are registered at manager construction and are
// immutable afterwards.
type Action struct {
	// Name identifies the action in logs and statistics.
	Name string

	// Run executes the strategy. It receives the record being recovered
	// for context and reports nil on success.
	Run func(rec *ErrorRecord) error

	// MaxAttempts bounds how many times this action may execute for a
	// single record before the manager advances to the next action.
	MaxAttempts int

	// Delay is slept before every execution of the action.
	Delay time.Duration
}

// Hooks are the integration points the default recovery actions act
// through. A nil hook makes the corresponding action a no-op that
// reports success, which preserves the recovery protocol while letting
// the integrator substitute real effects.
type Hooks struct {
	// RefreshScreen forces a fresh capture of the game window.
	RefreshScreen func() error

	// AdjustConfidence relaxes the template matching threshold.
	AdjustConfidence func() error

	// NavigateHome returns the game to the main menu.
	NavigateHome func() error

	// RestartGame restarts the game client.
	RestartGame func() error

	// CheckConnection verifies network reachability.
	CheckConnection func() error

	// ClearCache drops cached screen state.
	ClearCache func() error
}

func (h Hooks) call(fn func() error) func(rec *ErrorRecord) error {
	return func(rec *ErrorRecord) error {
		if fn == nil {
			return nil
		}
		return fn()
	}
}

// DefaultActions returns the standard per-category action registry.
// Categories without entries (CONFIGURATION, USER_INPUT, SYSTEM) are
// intentionally unregistered: those failures are logged but not
// auto-recovered.
func DefaultActions(h Hooks) map[Category][]Action {
	return map[Category][]Action{
		CategoryScreenRecognition: {
			{Name: "wait_and_retry", Run: h.call(nil), MaxAttempts: 3, Delay: 2 * time.Second},
			{Name: "adjust_confidence_threshold", Run: h.call(h.AdjustConfidence), MaxAttempts: 2, Delay: time.Second},
			{Name: "refresh_screen", Run: h.call(h.RefreshScreen), MaxAttempts: 2, Delay: time.Second},
		},
		CategoryGameState: {
			{Name: "navigate_to_main_menu", Run: h.call(h.NavigateHome), MaxAttempts: 3, Delay: time.Second},
			{Name: "restart_game", Run: h.call(h.RestartGame), MaxAttempts: 1, Delay: time.Second},
		},
		CategoryNetwork: {
			{Name: "wait_for_network", Run: h.call(h.CheckConnection), MaxAttempts: 5, Delay: 5 * time.Second},
			{Name: "check_connection", Run: h.call(h.CheckConnection), MaxAttempts: 2, Delay: time.Second},
		},
		CategoryResource: {
			{Name: "clear_cache", Run: h.call(h.ClearCache), MaxAttempts: 1, Delay: time.Second},
			{Name: "restart_automation", Run: h.call(h.RestartGame), MaxAttempts: 1, Delay: time.Second},
		},
		CategoryAIDecision: {
			{Name: "fallback_to_default_action", Run: h.call(nil), MaxAttempts: 2, Delay: time.Second},
			{Name: "skip_current_action", Run: h.call(nil), MaxAttempts: 1, Delay: time.Second},
		},
	}
}
