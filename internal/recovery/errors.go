package recovery

import (
	"time"
)

// Severity represents the severity level of a handled error
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Category classifies a handled error and selects its recovery actions
type Category int

const (
	CategoryScreenRecognition Category = iota
	CategoryNetwork
	CategoryGameState
	CategoryResource
	CategoryConfiguration
	CategoryAIDecision
	CategoryUserInput
	CategorySystem
)

func (c Category) String() string {
	switch c {
	case CategoryScreenRecognition:
		return "SCREEN_RECOGNITION"
	case CategoryNetwork:
		return "NETWORK"
	case CategoryGameState:
		return "GAME_STATE"
	case CategoryResource:
		return "RESOURCE"
	case CategoryConfiguration:
		return "CONFIGURATION"
	case CategoryAIDecision:
		return "AI_DECISION"
	case CategoryUserInput:
		return "USER_INPUT"
	case CategorySystem:
		return "SYSTEM"
	default:
		return "UNKNOWN"
	}
}

// Defaults applied when a caller does not classify a failure.
const (
	DefaultSeverity = SeverityMedium
	DefaultCategory = CategorySystem
)

// ErrorRecord captures one handled failure and its recovery progress.
// Records are owned by the manager's history; the recovery loop is the
// only writer of RecoveryAttempts and Resolved.
type ErrorRecord struct {
	ID        uint64         `json:"id"`
	Err       error          `json:"-"`
	Message   string         `json:"message"`
	Severity  Severity       `json:"severity"`
	Category  Category       `json:"category"`
	Context   map[string]any `json:"context,omitempty"`
	Timestamp time.Time      `json:"timestamp"`

	// RecoveryAttempts counts recovery action executions for this record.
	// Monotonically non-decreasing, bounded by the sum of MaxAttempts
	// across the actions registered for Category.
	RecoveryAttempts int  `json:"recovery_attempts"`
	Resolved         bool `json:"resolved"`
}

// Stats aggregates recovery outcomes for the session.
type Stats struct {
	TotalErrors      int64 `json:"total_errors"`
	ResolvedErrors   int64 `json:"resolved_errors"`
	FailedRecoveries int64 `json:"failed_recoveries"`
}

// RecoveryRate returns the fraction of handled errors that were resolved.
func (s Stats) RecoveryRate() float64 {
	if s.TotalErrors == 0 {
		return 0
	}
	return float64(s.ResolvedErrors) / float64(s.TotalErrors)
}
