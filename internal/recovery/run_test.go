package recovery

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunSuccess(t *testing.T) {
	m, _ := newTestManager(map[Category][]Action{})

	outcome := Run(m, Operation{
		Name:     "claim_daily_rewards",
		Category: CategoryGameState,
		Severity: SeverityLow,
		Fn:       func() error { return nil },
	})

	assert.True(t, outcome.OK)
	assert.NoError(t, outcome.Err)
	assert.Empty(t, m.History(), "successful operations leave no record")
}

func TestRunSwallowsNonCriticalFailure(t *testing.T) {
	m, _ := newTestManager(map[Category][]Action{})

	outcome := Run(m, Operation{
		Name:     "sim_battle",
		Category: CategoryGameState,
		Severity: SeverityHigh,
		Fn:       func() error { return errors.New("battle button not found") },
	})

	assert.False(t, outcome.OK)
	assert.False(t, outcome.Recovered)
	assert.NoError(t, outcome.Err, "non-critical failures do not propagate")
	assert.Len(t, m.History(), 1)
}

func TestRunPropagatesUnresolvedCritical(t *testing.T) {
	m, _ := newTestManager(map[Category][]Action{})
	boom := errors.New("window lost")

	outcome := Run(m, Operation{
		Name:     "capture_screen",
		Category: CategoryScreenRecognition,
		Severity: SeverityCritical,
		Fn:       func() error { return boom },
	})

	require.Error(t, outcome.Err)
	assert.ErrorIs(t, outcome.Err, boom)
	assert.Contains(t, outcome.Err.Error(), "capture_screen")
}

func TestRunSwallowsRecoveredCritical(t *testing.T) {
	actions := map[Category][]Action{
		CategoryNetwork: {
			{Name: "reconnect", Run: func(*ErrorRecord) error { return nil }, MaxAttempts: 1},
		},
	}
	m, _ := newTestManager(actions)

	outcome := Run(m, Operation{
		Name:     "fetch_guild_events",
		Category: CategoryNetwork,
		Severity: SeverityCritical,
		Fn:       func() error { return errors.New("connection refused") },
	})

	assert.False(t, outcome.OK)
	assert.True(t, outcome.Recovered)
	assert.NoError(t, outcome.Err)
}

func TestRunTruncatesLongContextValues(t *testing.T) {
	m, _ := newTestManager(map[Category][]Action{})

	long := strings.Repeat("x", 1000)
	Run(m, Operation{
		Name:     "parse_ai_response",
		Category: CategoryAIDecision,
		Severity: SeverityMedium,
		Context:  map[string]any{"response": long, "attempt": 3},
		Fn:       func() error { return errors.New("unparseable response") },
	})

	history := m.History()
	require.Len(t, history, 1)

	ctx := history[0].Context
	assert.Equal(t, "parse_ai_response", ctx["operation"])
	assert.Len(t, ctx["response"], maxContextValueLen)
	assert.Equal(t, 3, ctx["attempt"], "non-string values pass through untouched")
}

func TestRunDefaultClassification(t *testing.T) {
	m, _ := newTestManager(map[Category][]Action{})

	RunDefault(m, "unclassified_step", func() error { return errors.New("oops") })

	history := m.History()
	require.Len(t, history, 1)
	assert.Equal(t, DefaultCategory, history[0].Category)
	assert.Equal(t, DefaultSeverity, history[0].Severity)
}
