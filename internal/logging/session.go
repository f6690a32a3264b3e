package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/holotable/swgoh-autopilot/internal/config"
)

// durationWindowSize bounds the per-operation duration history so a
// long session cannot grow memory without limit.
const durationWindowSize = 100

// SessionLogger wraps a logrus logger with session-scoped bookkeeping:
// error and warning counters, per-operation duration windows, and a
// JSON session report written at shutdown. It is constructed explicitly
// and passed to components rather than accessed through a global.
type SessionLogger struct {
	logger *logrus.Logger
	cfg    *config.LoggingConfig

	sessionID string
	startTime time.Time

	mu           sync.Mutex
	observer     Observer
	errorCount   int
	warningCount int
	actionCount  int
	durations    map[string][]float64
}

// Observer receives session events for export beyond the log stream
// (metrics, persistence, live feeds). Nil callbacks are skipped.
type Observer struct {
	OnAction   func(action string, success bool, duration time.Duration)
	OnEnergy   func(kind string, current, max int)
	OnDecision func(action string, confidence float64)
	OnBattle   func(mode, stage string, victory bool, stars int, duration time.Duration)
}

// NewSessionLogger creates a session logger around an already
// configured logrus instance.
func NewSessionLogger(logger *logrus.Logger, cfg *config.LoggingConfig) *SessionLogger {
	if cfg == nil {
		cfg = config.DefaultLoggingConfig()
	}

	return &SessionLogger{
		logger:    logger,
		cfg:       cfg,
		sessionID: uuid.NewString(),
		startTime: time.Now(),
		durations: make(map[string][]float64),
	}
}

// SetObserver installs the event observer. Call before the session
// starts producing events.
func (s *SessionLogger) SetObserver(obs Observer) {
	s.mu.Lock()
	s.observer = obs
	s.mu.Unlock()
}

func (s *SessionLogger) snapshotObserver() Observer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.observer
}

// SessionID returns the unique identifier of this session.
func (s *SessionLogger) SessionID() string {
	return s.sessionID
}

// Logger exposes the underlying logrus logger for components that
// attach their own fields.
func (s *SessionLogger) Logger() *logrus.Logger {
	return s.logger
}

// callerLocation reports the file:line and function name of the code
// that called into the session logger, skipping the logger's own
// frames.
func callerLocation(skip int) (location, function string) {
	pc, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "unknown", "unknown"
	}

	function = "unknown"
	if fn := runtime.FuncForPC(pc); fn != nil {
		function = filepath.Base(fn.Name())
	}
	return fmt.Sprintf("%s:%d", filepath.Base(file), line), function
}

func (s *SessionLogger) entry() *logrus.Entry {
	location, function := callerLocation(3)
	return s.logger.WithFields(logrus.Fields{
		"session":  s.sessionID,
		"caller":   location,
		"function": function,
	})
}

// Debug logs a debug message with optional structured fields.
func (s *SessionLogger) Debug(msg string, fields logrus.Fields) {
	s.entry().WithFields(fields).Debug(msg)
}

// Info logs an informational message with optional structured fields.
func (s *SessionLogger) Info(msg string, fields logrus.Fields) {
	s.entry().WithFields(fields).Info(msg)
}

// Warning logs a warning and increments the session warning counter.
func (s *SessionLogger) Warning(msg string, fields logrus.Fields) {
	s.mu.Lock()
	s.warningCount++
	s.mu.Unlock()

	s.entry().WithFields(fields).Warn(msg)
}

// Error logs an error with its type and message attached as fields and
// increments the session error counter. A nil cause logs the message
// alone.
func (s *SessionLogger) Error(msg string, cause error, fields logrus.Fields) {
	s.mu.Lock()
	s.errorCount++
	s.mu.Unlock()

	entry := s.entry().WithFields(fields)
	if cause != nil {
		entry = entry.WithFields(logrus.Fields{
			"error_type":    fmt.Sprintf("%T", cause),
			"error_message": cause.Error(),
			"stack_trace":   string(debug.Stack()),
		})
	}
	entry.Error(msg)
}

// LogActionStart records the beginning of an automation action.
func (s *SessionLogger) LogActionStart(action string, details map[string]any) {
	s.entry().WithFields(logrus.Fields{
		"action":  action,
		"details": details,
	}).Infof("ACTION START: %s", action)
}

// LogActionEnd records the result of an automation action, feeding its
// duration into the per-operation window.
func (s *SessionLogger) LogActionEnd(action string, success bool, duration time.Duration) {
	s.mu.Lock()
	s.actionCount++
	s.mu.Unlock()

	s.RecordDuration(action, duration)

	if obs := s.snapshotObserver(); obs.OnAction != nil {
		obs.OnAction(action, success, duration)
	}

	status := "SUCCESS"
	if !success {
		status = "FAILURE"
	}

	s.entry().WithFields(logrus.Fields{
		"action":      action,
		"success":     success,
		"duration_ms": duration.Milliseconds(),
	}).Infof("ACTION END: %s [%s] (%.2fs)", action, status, duration.Seconds())
}

// RecordDuration appends one measurement to the operation's duration
// window, evicting the oldest once the window is full.
func (s *SessionLogger) RecordDuration(operation string, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	window := append(s.durations[operation], duration.Seconds())
	if len(window) > durationWindowSize {
		window = window[len(window)-durationWindowSize:]
	}
	s.durations[operation] = window
}

// LogAIDecision records a decision produced by the AI engine.
func (s *SessionLogger) LogAIDecision(action, reasoning string, confidence float64) {
	if obs := s.snapshotObserver(); obs.OnDecision != nil {
		obs.OnDecision(action, confidence)
	}

	s.entry().WithFields(logrus.Fields{
		"action":      action,
		"reasoning":   reasoning,
		"confidence":  confidence,
		"duration_ms": 0,
	}).Infof("AI DECISION: %s (confidence %.2f)", action, confidence)
}

// LogEnergyState records the current energy reading.
func (s *SessionLogger) LogEnergyState(kind string, current, max int) {
	if obs := s.snapshotObserver(); obs.OnEnergy != nil {
		obs.OnEnergy(kind, current, max)
	}

	s.entry().WithFields(logrus.Fields{
		"energy_type": kind,
		"current":     current,
		"max":         max,
	}).Infof("Energy state: %s %d/%d", kind, current, max)
}

// LogBattleResult records the outcome of a completed battle.
func (s *SessionLogger) LogBattleResult(mode, stage string, victory bool, stars int, duration time.Duration) {
	s.RecordDuration("battle", duration)

	if obs := s.snapshotObserver(); obs.OnBattle != nil {
		obs.OnBattle(mode, stage, victory, stars, duration)
	}

	s.entry().WithFields(logrus.Fields{
		"battle":      mode + " " + stage,
		"victory":     victory,
		"stars":       stars,
		"duration_ms": duration.Milliseconds(),
	}).Infof("Battle result: %s %s victory=%t stars=%d", mode, stage, victory, stars)
}

// LogScreenshot records that a screenshot was captured and where it
// was stored.
func (s *SessionLogger) LogScreenshot(path, reason string) {
	s.entry().WithFields(logrus.Fields{
		"path":   path,
		"reason": reason,
	}).Debug("Screenshot captured")
}

// operationStats summarizes one operation's duration window.
type operationStats struct {
	Count   int     `json:"count"`
	Average float64 `json:"average_seconds"`
	Min     float64 `json:"min_seconds"`
	Max     float64 `json:"max_seconds"`
}

func summarize(window []float64) operationStats {
	stats := operationStats{Count: len(window)}
	if len(window) == 0 {
		return stats
	}

	stats.Min = window[0]
	stats.Max = window[0]
	total := 0.0
	for _, v := range window {
		total += v
		if v < stats.Min {
			stats.Min = v
		}
		if v > stats.Max {
			stats.Max = v
		}
	}
	stats.Average = total / float64(len(window))
	return stats
}

// SessionStats returns a snapshot of the session counters and duration
// summaries.
func (s *SessionLogger) SessionStats() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	operations := make(map[string]operationStats, len(s.durations))
	for op, window := range s.durations {
		operations[op] = summarize(window)
	}

	return map[string]any{
		"session_id":    s.sessionID,
		"started_at":    s.startTime.Format(time.RFC3339),
		"uptime":        time.Since(s.startTime).String(),
		"error_count":   s.errorCount,
		"warning_count": s.warningCount,
		"action_count":  s.actionCount,
		"operations":    operations,
	}
}

// SaveSessionReport writes the session statistics to a timestamped JSON
// file in the log directory and returns its path.
func (s *SessionLogger) SaveSessionReport() (string, error) {
	stats := s.SessionStats()

	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal session report: %w", err)
	}

	if err := os.MkdirAll(s.cfg.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create log directory: %w", err)
	}

	path := filepath.Join(s.cfg.Dir, fmt.Sprintf("session_report_%s.json", time.Now().Format("20060102_150405")))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write session report: %w", err)
	}

	s.entry().WithField("path", path).Info("Session report saved")
	return path, nil
}

// CleanupOldLogs deletes files in the log directory whose modification
// time is strictly older than the retention window. It returns the
// number of files removed. Files exactly at the cutoff are kept.
func (s *SessionLogger) CleanupOldLogs() (int, error) {
	cutoff := time.Now().AddDate(0, 0, -s.cfg.RetentionDays)

	entries, err := os.ReadDir(s.cfg.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read log directory: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoff) {
			path := filepath.Join(s.cfg.Dir, entry.Name())
			if err := os.Remove(path); err != nil {
				s.logger.WithError(err).Warnf("Failed to remove old log file: %s", path)
				continue
			}
			removed++
		}
	}

	if removed > 0 {
		s.entry().WithField("removed", removed).Info("Old log files cleaned up")
	}
	return removed, nil
}

// PerformanceTimer measures one operation and reports its duration to
// the session logger when stopped.
type PerformanceTimer struct {
	session   *SessionLogger
	operation string
	start     time.Time
}

// StartTimer begins timing an operation.
func (s *SessionLogger) StartTimer(operation string) *PerformanceTimer {
	return &PerformanceTimer{
		session:   s,
		operation: operation,
		start:     time.Now(),
	}
}

// Stop ends the measurement, records it, and returns the elapsed time.
func (t *PerformanceTimer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	t.session.RecordDuration(t.operation, elapsed)

	t.session.logger.WithFields(logrus.Fields{
		"session":     t.session.sessionID,
		"operation":   t.operation,
		"duration_ms": elapsed.Milliseconds(),
	}).Debugf("Operation timed: %s (%.3fs)", t.operation, elapsed.Seconds())

	return elapsed
}
