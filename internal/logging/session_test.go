package logging

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holotable/swgoh-autopilot/internal/config"
)

func newTestSessionLogger(t *testing.T) *SessionLogger {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := config.DefaultLoggingConfig()
	cfg.Dir = t.TempDir()
	cfg.Console = false

	return NewSessionLogger(logger, cfg)
}

func TestSessionCounters(t *testing.T) {
	s := newTestSessionLogger(t)

	s.Info("starting", nil)
	s.Warning("low energy", nil)
	s.Warning("low energy again", nil)
	s.Error("battle failed", errors.New("timeout"), nil)

	stats := s.SessionStats()
	assert.Equal(t, 1, stats["error_count"])
	assert.Equal(t, 2, stats["warning_count"])
}

func newCapturedSessionLogger(t *testing.T) (*SessionLogger, *logrustest.Hook) {
	t.Helper()

	logger, hook := logrustest.NewNullLogger()

	cfg := config.DefaultLoggingConfig()
	cfg.Dir = t.TempDir()
	cfg.Console = false

	return NewSessionLogger(logger, cfg), hook
}

func TestErrorAttachesCauseAndStack(t *testing.T) {
	s, hook := newCapturedSessionLogger(t)

	s.Error("battle failed", errors.New("timeout"), nil)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "*errors.errorString", entry.Data["error_type"])
	assert.Equal(t, "timeout", entry.Data["error_message"])

	stack, ok := entry.Data["stack_trace"].(string)
	require.True(t, ok, "stack_trace field present")
	assert.Contains(t, stack, "TestErrorAttachesCauseAndStack")
}

func TestEntryCapturesCallerAndFunction(t *testing.T) {
	s, hook := newCapturedSessionLogger(t)

	s.Info("window located", nil)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Contains(t, entry.Data["caller"], "session_test.go:")
	assert.Contains(t, entry.Data["function"], "TestEntryCapturesCallerAndFunction")
}

func TestDurationWindowEvictsOldest(t *testing.T) {
	s := newTestSessionLogger(t)

	for i := 0; i < 150; i++ {
		s.RecordDuration("click", time.Duration(i)*time.Millisecond)
	}

	s.mu.Lock()
	window := s.durations["click"]
	s.mu.Unlock()

	require.Len(t, window, durationWindowSize)
	// The first 50 measurements were evicted.
	assert.InDelta(t, 0.050, window[0], 1e-9)
	assert.InDelta(t, 0.149, window[len(window)-1], 1e-9)
}

func TestSessionStatsSummarizesDurations(t *testing.T) {
	s := newTestSessionLogger(t)

	s.RecordDuration("battle", 2*time.Second)
	s.RecordDuration("battle", 4*time.Second)
	s.RecordDuration("battle", 6*time.Second)

	stats := s.SessionStats()
	operations := stats["operations"].(map[string]operationStats)

	battle := operations["battle"]
	assert.Equal(t, 3, battle.Count)
	assert.InDelta(t, 4.0, battle.Average, 1e-9)
	assert.InDelta(t, 2.0, battle.Min, 1e-9)
	assert.InDelta(t, 6.0, battle.Max, 1e-9)
}

func TestLogActionEndCountsActions(t *testing.T) {
	s := newTestSessionLogger(t)

	s.LogActionStart("claim_daily", nil)
	s.LogActionEnd("claim_daily", true, 1500*time.Millisecond)
	s.LogActionEnd("sim_battle", false, 3*time.Second)

	stats := s.SessionStats()
	assert.Equal(t, 2, stats["action_count"])

	operations := stats["operations"].(map[string]operationStats)
	assert.Equal(t, 1, operations["claim_daily"].Count)
	assert.Equal(t, 1, operations["sim_battle"].Count)
}

func TestObserverReceivesEvents(t *testing.T) {
	s := newTestSessionLogger(t)

	var actions, battles, energies, decisions int
	s.SetObserver(Observer{
		OnAction:   func(string, bool, time.Duration) { actions++ },
		OnEnergy:   func(string, int, int) { energies++ },
		OnDecision: func(string, float64) { decisions++ },
		OnBattle:   func(string, string, bool, int, time.Duration) { battles++ },
	})

	s.LogActionEnd("claim_daily", true, time.Second)
	s.LogEnergyState("cantina", 45, 144)
	s.LogAIDecision("start_battle", "farm gear", 0.8)
	s.LogBattleResult("regular", "1-A", true, 3, time.Minute)

	assert.Equal(t, 1, actions)
	assert.Equal(t, 1, energies)
	assert.Equal(t, 1, decisions)
	assert.Equal(t, 1, battles)
}

func TestNilObserverIsSafe(t *testing.T) {
	s := newTestSessionLogger(t)

	s.LogActionEnd("claim_daily", true, time.Second)
	s.LogEnergyState("cantina", 45, 144)
	s.LogBattleResult("regular", "1-A", true, 3, time.Minute)
}

func TestSaveSessionReport(t *testing.T) {
	s := newTestSessionLogger(t)
	s.RecordDuration("click", 100*time.Millisecond)

	path, err := s.SaveSessionReport()
	require.NoError(t, err)
	require.FileExists(t, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), s.SessionID())
	assert.Contains(t, string(data), "\"click\"")
}

func TestCleanupOldLogs(t *testing.T) {
	s := newTestSessionLogger(t)
	dir := s.cfg.Dir
	s.cfg.RetentionDays = 7

	oldFile := filepath.Join(dir, "swgoh_autopilot.log.1")
	freshFile := filepath.Join(dir, "swgoh_autopilot.log")
	require.NoError(t, os.WriteFile(oldFile, []byte("old"), 0o644))
	require.NoError(t, os.WriteFile(freshFile, []byte("fresh"), 0o644))

	stale := time.Now().AddDate(0, 0, -10)
	require.NoError(t, os.Chtimes(oldFile, stale, stale))

	removed, err := s.CleanupOldLogs()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	assert.NoFileExists(t, oldFile)
	assert.FileExists(t, freshFile)
}

func TestCleanupMissingDirectory(t *testing.T) {
	s := newTestSessionLogger(t)
	s.cfg.Dir = filepath.Join(s.cfg.Dir, "does-not-exist")

	removed, err := s.CleanupOldLogs()
	assert.NoError(t, err)
	assert.Zero(t, removed)
}

func TestPerformanceTimer(t *testing.T) {
	s := newTestSessionLogger(t)

	timer := s.StartTimer("navigation")
	time.Sleep(5 * time.Millisecond)
	elapsed := timer.Stop()

	assert.GreaterOrEqual(t, elapsed, 5*time.Millisecond)

	stats := s.SessionStats()
	operations := stats["operations"].(map[string]operationStats)
	assert.Equal(t, 1, operations["navigation"].Count)
}

func TestAttachFileHooksRoutesErrors(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := config.DefaultLoggingConfig()
	cfg.Dir = t.TempDir()

	require.NoError(t, AttachFileHooks(logger, cfg))

	logger.Info("routine message")
	logger.Error("something broke")
	logger.WithField("duration_ms", int64(120)).Info("ACTION END: click")

	errorLog, err := os.ReadFile(cfg.ErrorLogPath())
	require.NoError(t, err)
	assert.Contains(t, string(errorLog), "something broke")
	assert.NotContains(t, string(errorLog), "routine message")

	perfLog, err := os.ReadFile(cfg.PerformanceLogPath())
	require.NoError(t, err)
	assert.Contains(t, string(perfLog), "ACTION END: click")
	assert.NotContains(t, string(perfLog), "something broke")
}
