package recovery

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrorCallback is invoked after a record has been handled, with the
// final recovery outcome already applied to the record.
type ErrorCallback func(rec *ErrorRecord)

// Manager classifies failures, records them, and walks the ordered
// per-category recovery actions within each action's attempt budget.
type Manager struct {
	logger  *logrus.Entry
	actions map[Category][]Action

	mu      sync.Mutex
	history []*ErrorRecord
	stats   Stats
	nextID  uint64

	callback ErrorCallback

	// sleep is indirected so tests can count or skip delays.
	sleep func(time.Duration)
}

// NewManager creates a recovery manager with the given action registry.
// A nil registry installs DefaultActions with no-op hooks.
func NewManager(logger *logrus.Entry, actions map[Category][]Action) *Manager {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if actions == nil {
		actions = DefaultActions(Hooks{})
	}

	return &Manager{
		logger:  logger,
		actions: actions,
		sleep:   time.Sleep,
	}
}

// SetErrorCallback sets the callback invoked after each handled error.
// Must be called before the manager is shared with operations.
func (m *Manager) SetErrorCallback(cb ErrorCallback) {
	m.callback = cb
}

// Handle records a failure and attempts bounded recovery. It returns
// true if a recovery action reported success.
//
// A fresh record (and a fresh attempt counter) is created per call:
// repeated failures of the same category across separate calls do not
// share budgets.
func (m *Manager) Handle(err error, category Category, severity Severity, context map[string]any) bool {
	rec := &ErrorRecord{
		Err:       err,
		Message:   fmt.Sprint(err),
		Severity:  severity,
		Category:  category,
		Context:   context,
		Timestamp: time.Now(),
	}

	m.mu.Lock()
	m.nextID++
	rec.ID = m.nextID
	m.history = append(m.history, rec)
	m.stats.TotalErrors++
	m.mu.Unlock()

	m.logger.WithFields(logrus.Fields{
		"category": category.String(),
		"severity": severity.String(),
		"context":  context,
	}).Errorf("Error detected: %s - %v", category, err)

	recovered := m.attemptRecovery(rec)

	m.mu.Lock()
	if recovered {
		rec.Resolved = true
		m.stats.ResolvedErrors++
	} else {
		m.stats.FailedRecoveries++
	}
	m.mu.Unlock()

	if recovered {
		m.logger.Infof("Error recovered successfully: %s", category)
	} else {
		m.logger.Errorf("Failed to recover from error: %s", category)
	}

	if m.callback != nil {
		m.callback(rec)
	}

	return recovered
}

// attemptRecovery walks the category's actions in registration order.
// Each action is retried up to its own MaxAttempts (sleeping its
// configured delay before every execution) before the loop advances to
// the next action. The first successful execution wins.
func (m *Manager) attemptRecovery(rec *ErrorRecord) bool {
	actions, ok := m.actions[rec.Category]
	if !ok || len(actions) == 0 {
		m.logger.Warnf("No recovery actions for category: %s", rec.Category)
		return false
	}

	for _, action := range actions {
		for attempt := 0; attempt < action.MaxAttempts; attempt++ {
			m.logger.Infof("Attempting recovery: %s (attempt %d/%d)",
				action.Name, attempt+1, action.MaxAttempts)

			if action.Delay > 0 {
				m.sleep(action.Delay)
			}

			err := m.runAction(action, rec)

			m.mu.Lock()
			rec.RecoveryAttempts++
			m.mu.Unlock()

			if err == nil {
				return true
			}

			m.logger.WithError(err).Errorf("Recovery action failed: %s", action.Name)
		}
	}

	return false
}

// runAction executes one recovery action, converting a panic into an
// error so a misbehaving action cannot abort the recovery loop.
func (m *Manager) runAction(action Action, rec *ErrorRecord) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recovery action %s panicked: %v", action.Name, r)
		}
	}()

	if action.Run == nil {
		return nil
	}
	return action.Run(rec)
}

// Stats returns a snapshot of the session's recovery statistics.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// History returns a copy of the error history in handling order.
func (m *Manager) History() []ErrorRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]ErrorRecord, len(m.history))
	for i, rec := range m.history {
		result[i] = *rec
	}
	return result
}

// RecentErrors returns the most recent count records, newest last.
func (m *Manager) RecentErrors(count int) []ErrorRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	if count <= 0 || len(m.history) == 0 {
		return nil
	}

	start := len(m.history) - count
	if start < 0 {
		start = 0
	}

	result := make([]ErrorRecord, 0, len(m.history)-start)
	for _, rec := range m.history[start:] {
		result = append(result, *rec)
	}
	return result
}

// Summary reports aggregate error statistics for status endpoints.
func (m *Manager) Summary() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	byCategory := make(map[string]int)
	recent := 0
	cutoff := time.Now().Add(-time.Hour)
	for _, rec := range m.history {
		byCategory[rec.Category.String()]++
		if rec.Timestamp.After(cutoff) {
			recent++
		}
	}

	return map[string]any{
		"total_errors":       m.stats.TotalErrors,
		"resolved_errors":    m.stats.ResolvedErrors,
		"failed_recoveries":  m.stats.FailedRecoveries,
		"recovery_rate":      m.stats.RecoveryRate(),
		"recent_errors":      recent,
		"errors_by_category": byCategory,
		"registered_actions": len(m.actions),
	}
}
