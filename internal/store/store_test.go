package store

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holotable/swgoh-autopilot/internal/config"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := &config.StoreConfig{
		Enabled:       true,
		Path:          filepath.Join(t.TempDir(), "autopilot.db"),
		RetentionDays: 30,
	}

	s, err := Open(cfg, logger.WithField("component", "store"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestStore(t)

	id, err := s.CreateSession("morning")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	sess, err := s.Session(id)
	require.NoError(t, err)
	assert.Equal(t, "morning", sess.Routine)
	assert.Nil(t, sess.FinishedAt)

	require.NoError(t, s.FinishSession(id, 3, 2))

	sess, err = s.Session(id)
	require.NoError(t, err)
	require.NotNil(t, sess.FinishedAt)
	assert.Equal(t, 3, sess.Errors)
	assert.Equal(t, 2, sess.Recovered)
}

func TestFinishUnknownSession(t *testing.T) {
	s := newTestStore(t)

	err := s.FinishSession("no-such-id", 0, 0)
	assert.ErrorContains(t, err, "session not found")
}

func TestRecordAndListBattles(t *testing.T) {
	s := newTestStore(t)

	id, err := s.CreateSession("ai")
	require.NoError(t, err)

	require.NoError(t, s.RecordBattle(id, "regular", "1-A", true, 3, 90*time.Second))
	require.NoError(t, s.RecordBattle(id, "cantina", "2-B", false, 0, 2*time.Minute))

	battles, err := s.RecentBattles(10)
	require.NoError(t, err)
	require.Len(t, battles, 2)

	for _, b := range battles {
		assert.Equal(t, id, b.SessionID)
	}
	assert.Equal(t, 90*time.Second, battles[0].Duration+battles[1].Duration-2*time.Minute)
}

func TestWinRate(t *testing.T) {
	s := newTestStore(t)

	rate, err := s.WinRate(20)
	require.NoError(t, err)
	assert.Zero(t, rate, "no history yet")

	id, err := s.CreateSession("farm")
	require.NoError(t, err)

	require.NoError(t, s.RecordBattle(id, "regular", "1-A", true, 3, time.Minute))
	require.NoError(t, s.RecordBattle(id, "regular", "1-A", true, 2, time.Minute))
	require.NoError(t, s.RecordBattle(id, "regular", "1-A", false, 0, time.Minute))
	require.NoError(t, s.RecordBattle(id, "regular", "1-A", false, 0, time.Minute))

	rate, err = s.WinRate(20)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, rate, 0.001)
}

func TestRecordAction(t *testing.T) {
	s := newTestStore(t)

	id, err := s.CreateSession("evening")
	require.NoError(t, err)

	require.NoError(t, s.RecordAction(id, "claim_quests", true, 4*time.Second))
	require.NoError(t, s.RecordAction(id, "galactic_war", false, time.Second))
}

func TestPurgeKeepsRecentHistory(t *testing.T) {
	s := newTestStore(t)

	id, err := s.CreateSession("morning")
	require.NoError(t, err)
	require.NoError(t, s.RecordBattle(id, "regular", "1-A", true, 3, time.Minute))

	removed, err := s.Purge(30)
	require.NoError(t, err)
	assert.Zero(t, removed)

	battles, err := s.RecentBattles(10)
	require.NoError(t, err)
	assert.Len(t, battles, 1)
}

func TestPurgeRemovesOldHistory(t *testing.T) {
	s := newTestStore(t)

	id, err := s.CreateSession("morning")
	require.NoError(t, err)
	require.NoError(t, s.RecordBattle(id, "regular", "1-A", true, 3, time.Minute))
	require.NoError(t, s.RecordAction(id, "claim_quests", true, time.Second))
	require.NoError(t, s.FinishSession(id, 0, 0))

	old := time.Now().UTC().AddDate(0, 0, -45)
	_, err = s.db.Exec(`UPDATE battles SET fought_at = ?`, old)
	require.NoError(t, err)
	_, err = s.db.Exec(`UPDATE actions SET executed_at = ?`, old)
	require.NoError(t, err)
	_, err = s.db.Exec(`UPDATE sessions SET started_at = ?`, old)
	require.NoError(t, err)

	removed, err := s.Purge(30)
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)

	battles, err := s.RecentBattles(10)
	require.NoError(t, err)
	assert.Empty(t, battles)
}
