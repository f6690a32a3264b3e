package game

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holotable/swgoh-autopilot/internal/config"
	"github.com/holotable/swgoh-autopilot/internal/vision"
)

func newBattleRunner(h *testHarness) *BattleRunner {
	cfg := config.DefaultAutomationConfig()
	return NewBattleRunner(h.auto, &cfg.Battle, cfg.Teams, h.auto.logger)
}

func stubTemplates(h *testHarness, names ...string) {
	for _, name := range names {
		h.matcher.matches[name] = vision.Match{Center: vision.Point{X: 50, Y: 50}, Confidence: 0.9}
	}
}

func TestSelectModeUnknown(t *testing.T) {
	h := newTestHarness()
	r := newBattleRunner(h)

	assert.Error(t, r.SelectMode(context.Background(), "raids"))
}

func TestSelectStageTemplateFirst(t *testing.T) {
	h := newTestHarness()
	stubTemplates(h, "1-a.png")
	r := newBattleRunner(h)

	require.NoError(t, r.SelectStage(context.Background(), "1-A"))
	assert.Len(t, h.input.clicks, 1)
	assert.Empty(t, h.analyzer.prompts, "no AI call when the template matches")
}

func TestSelectStageAIFallback(t *testing.T) {
	h := newTestHarness()
	h.analyzer.answers[`the stage "9-B"`] = "640,480"
	r := newBattleRunner(h)

	require.NoError(t, r.SelectStage(context.Background(), "9-B"))

	require.Len(t, h.input.clicks, 1)
	assert.Equal(t, vision.Point{X: 640, Y: 480}, h.input.clicks[0])
}

func TestSelectStageNotFound(t *testing.T) {
	h := newTestHarness()
	h.analyzer.answers[`the stage "9-B"`] = "I cannot locate that stage"
	r := newBattleRunner(h)

	err := r.SelectStage(context.Background(), "9-B")
	assert.ErrorIs(t, err, vision.ErrTemplateNotFound)
}

func TestSelectTeamUnknown(t *testing.T) {
	h := newTestHarness()
	r := newBattleRunner(h)

	assert.Error(t, r.SelectTeam(context.Background(), "arena"))
}

func TestWaitForCompletionVictory(t *testing.T) {
	h := newTestHarness()
	h.analyzer.answers["Is the battle complete?"] = "complete: yes\nvictory: yes\nstars: 3"
	r := newBattleRunner(h)

	result, err := r.WaitForCompletion(context.Background(), "regular", "1-A")
	require.NoError(t, err)

	assert.True(t, result.Victory)
	assert.Equal(t, 3, result.Stars)
	assert.Equal(t, "regular", result.Mode)
}

func TestWaitForCompletionTimesOut(t *testing.T) {
	h := newTestHarness()
	h.analyzer.answers["Is the battle complete?"] = "complete: no"

	cfg := config.DefaultAutomationConfig()
	cfg.Battle.CompletionTimeout = 0
	r := NewBattleRunner(h.auto, &cfg.Battle, cfg.Teams, h.auto.logger)

	_, err := r.WaitForCompletion(context.Background(), "regular", "1-A")
	assert.ErrorContains(t, err, "timed out")
}

func TestRunSequenceSkipsFailedRepetitions(t *testing.T) {
	h := newTestHarness()
	// Mode opens, but no stage ever matches and the AI cannot find it.
	stubTemplates(h, "regular_battles.png")
	h.analyzer.answers["the stage"] = "NOT_FOUND"
	r := newBattleRunner(h)

	results, err := r.RunSequence(context.Background(), "regular", "1-A", "regular", 3)
	require.NoError(t, err)
	assert.Empty(t, results, "failed repetitions are skipped, not fatal")
}

func TestRunSequenceModeFailureIsFatal(t *testing.T) {
	h := newTestHarness()
	r := newBattleRunner(h)

	_, err := r.RunSequence(context.Background(), "regular", "1-A", "regular", 1)
	assert.ErrorIs(t, err, vision.ErrTemplateNotFound)
}

func TestClaimRewardsTriesAllButtons(t *testing.T) {
	h := newTestHarness()
	stubTemplates(h, "continue.png")
	r := newBattleRunner(h)

	require.NoError(t, r.ClaimRewards(context.Background()))
	assert.Len(t, h.input.clicks, 1)
}
