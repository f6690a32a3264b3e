package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/holotable/swgoh-autopilot/internal/config"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id          TEXT PRIMARY KEY,
	routine     TEXT NOT NULL,
	started_at  TIMESTAMP NOT NULL,
	finished_at TIMESTAMP,
	errors      INTEGER NOT NULL DEFAULT 0,
	recovered   INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS battles (
	id          TEXT PRIMARY KEY,
	session_id  TEXT NOT NULL REFERENCES sessions(id),
	mode        TEXT NOT NULL,
	stage       TEXT NOT NULL,
	victory     BOOLEAN NOT NULL,
	stars       INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	fought_at   TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS actions (
	id          TEXT PRIMARY KEY,
	session_id  TEXT NOT NULL REFERENCES sessions(id),
	name        TEXT NOT NULL,
	success     BOOLEAN NOT NULL,
	duration_ms INTEGER NOT NULL,
	executed_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_battles_session ON battles(session_id);
CREATE INDEX IF NOT EXISTS idx_battles_fought_at ON battles(fought_at);
CREATE INDEX IF NOT EXISTS idx_actions_session ON actions(session_id);
CREATE INDEX IF NOT EXISTS idx_actions_executed_at ON actions(executed_at);
`

// Store persists session, battle, and action history in SQLite.
type Store struct {
	db     *sql.DB
	logger *logrus.Entry
}

// BattleRow is one persisted battle.
type BattleRow struct {
	ID        string
	SessionID string
	Mode      string
	Stage     string
	Victory   bool
	Stars     int
	Duration  time.Duration
	FoughtAt  time.Time
}

// SessionRow is one persisted session.
type SessionRow struct {
	ID         string
	Routine    string
	StartedAt  time.Time
	FinishedAt *time.Time
	Errors     int
	Recovered  int
}

// Open opens (or creates) the database and applies the schema.
func Open(cfg *config.StoreConfig, logger *logrus.Entry) (*Store, error) {
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	logger.WithField("path", cfg.Path).Info("Store opened")

	return &Store{db: db, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateSession records the start of an automation session and returns
// its id.
func (s *Store) CreateSession(routine string) (string, error) {
	id := uuid.NewString()

	_, err := s.db.Exec(
		`INSERT INTO sessions (id, routine, started_at) VALUES (?, ?, ?)`,
		id, routine, time.Now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	return id, nil
}

// FinishSession closes out a session with its final error counters.
func (s *Store) FinishSession(id string, errors, recovered int) error {
	res, err := s.db.Exec(
		`UPDATE sessions SET finished_at = ?, errors = ?, recovered = ? WHERE id = ?`,
		time.Now().UTC(), errors, recovered, id,
	)
	if err != nil {
		return fmt.Errorf("failed to finish session: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("session not found: %s", id)
	}
	return nil
}

// RecordBattle persists one battle result.
func (s *Store) RecordBattle(sessionID, mode, stage string, victory bool, stars int, duration time.Duration) error {
	_, err := s.db.Exec(
		`INSERT INTO battles (id, session_id, mode, stage, victory, stars, duration_ms, fought_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), sessionID, mode, stage, victory, stars, duration.Milliseconds(), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record battle: %w", err)
	}
	return nil
}

// RecordAction persists one automation action result.
func (s *Store) RecordAction(sessionID, name string, success bool, duration time.Duration) error {
	_, err := s.db.Exec(
		`INSERT INTO actions (id, session_id, name, success, duration_ms, executed_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), sessionID, name, success, duration.Milliseconds(), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record action: %w", err)
	}
	return nil
}

// RecentBattles returns the newest battles, most recent first.
func (s *Store) RecentBattles(limit int) ([]BattleRow, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, mode, stage, victory, stars, duration_ms, fought_at
		 FROM battles ORDER BY fought_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query battles: %w", err)
	}
	defer rows.Close()

	var battles []BattleRow
	for rows.Next() {
		var b BattleRow
		var durationMs int64
		if err := rows.Scan(&b.ID, &b.SessionID, &b.Mode, &b.Stage, &b.Victory, &b.Stars, &durationMs, &b.FoughtAt); err != nil {
			return nil, fmt.Errorf("failed to scan battle: %w", err)
		}
		b.Duration = time.Duration(durationMs) * time.Millisecond
		battles = append(battles, b)
	}
	return battles, rows.Err()
}

// Session returns one session by id.
func (s *Store) Session(id string) (*SessionRow, error) {
	row := s.db.QueryRow(
		`SELECT id, routine, started_at, finished_at, errors, recovered FROM sessions WHERE id = ?`, id)

	var sess SessionRow
	var finished sql.NullTime
	if err := row.Scan(&sess.ID, &sess.Routine, &sess.StartedAt, &finished, &sess.Errors, &sess.Recovered); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("session not found: %s", id)
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if finished.Valid {
		sess.FinishedAt = &finished.Time
	}
	return &sess, nil
}

// WinRate returns the victory ratio over the last n battles, or zero
// when there is no history.
func (s *Store) WinRate(n int) (float64, error) {
	row := s.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(victory), 0)
		 FROM (SELECT victory FROM battles ORDER BY fought_at DESC LIMIT ?)`, n)

	var total, wins int
	if err := row.Scan(&total, &wins); err != nil {
		return 0, fmt.Errorf("failed to compute win rate: %w", err)
	}
	if total == 0 {
		return 0, nil
	}
	return float64(wins) / float64(total), nil
}

// Purge deletes battles and actions older than the retention window
// and returns the number of rows removed.
func (s *Store) Purge(retentionDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)

	var removed int64
	for _, stmt := range []string{
		`DELETE FROM battles WHERE fought_at < ?`,
		`DELETE FROM actions WHERE executed_at < ?`,
		`DELETE FROM sessions WHERE started_at < ? AND finished_at IS NOT NULL`,
	} {
		res, err := s.db.Exec(stmt, cutoff)
		if err != nil {
			return removed, fmt.Errorf("failed to purge history: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			removed += n
		}
	}

	if removed > 0 {
		s.logger.WithField("removed", removed).Info("Old history purged")
	}
	return removed, nil
}
