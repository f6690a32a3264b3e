package game

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holotable/swgoh-autopilot/internal/ai"
	"github.com/holotable/swgoh-autopilot/internal/config"
	"github.com/holotable/swgoh-autopilot/internal/vision"
)

func newExecutor(h *testHarness) *Executor {
	cfg := config.DefaultAutomationConfig()
	energy := NewEnergyManager(h.auto, &cfg.Energy, h.auto.logger)
	battles := NewBattleRunner(h.auto, &cfg.Battle, cfg.Teams, h.auto.logger)
	dailies := NewDailiesManager(h.auto, &cfg.Dailies, h.auto.logger)
	return NewExecutor(h.auto, energy, battles, dailies, &cfg.Battle, h.auto.logger)
}

func TestExecuteEnergyRefill(t *testing.T) {
	h := newTestHarness()
	stubTemplates(h, "energy_button.png", "cantina_refill.png", "confirm_button.png")
	e := newExecutor(h)

	err := e.Execute(context.Background(), ai.Recommendation{
		Type:       ai.ActionEnergyRefill,
		Parameters: map[string]string{"type": "cantina"},
	})
	require.NoError(t, err)
	assert.Len(t, h.input.clicks, 3)
}

func TestExecuteEnergyRefillDefaultsToRegular(t *testing.T) {
	h := newTestHarness()
	stubTemplates(h, "energy_button.png", "regular_refill.png", "confirm_button.png")
	e := newExecutor(h)

	err := e.Execute(context.Background(), ai.Recommendation{Type: ai.ActionEnergyRefill})
	assert.NoError(t, err)
}

func TestExecuteCollectRewards(t *testing.T) {
	h := newTestHarness()
	h.matcher.matches["gift_box.png"] = vision.Match{Center: vision.Point{X: 5, Y: 5}, Confidence: 0.9}
	e := newExecutor(h)

	err := e.Execute(context.Background(), ai.Recommendation{Type: ai.ActionCollectRewards})
	require.NoError(t, err)
	assert.Len(t, h.input.clicks, 1)
}

func TestExecuteCollectRewardsNothingVisible(t *testing.T) {
	h := newTestHarness()
	e := newExecutor(h)

	err := e.Execute(context.Background(), ai.Recommendation{Type: ai.ActionCollectRewards})
	assert.Error(t, err)
}

func TestExecuteNoneIsNoOp(t *testing.T) {
	h := newTestHarness()
	e := newExecutor(h)

	assert.NoError(t, e.Execute(context.Background(), ai.Recommendation{Type: ai.ActionNone}))
	assert.Empty(t, h.input.clicks)
	assert.Empty(t, h.input.keys)
}

func TestExecuteUnsupportedAction(t *testing.T) {
	h := newTestHarness()
	e := newExecutor(h)

	err := e.Execute(context.Background(), ai.Recommendation{Type: ai.ActionUpgradeCharacter})
	assert.ErrorContains(t, err, "unsupported action type")
}

func TestExecuteStartBattleFailsWithoutModeButton(t *testing.T) {
	h := newTestHarness()
	e := newExecutor(h)

	err := e.Execute(context.Background(), ai.Recommendation{
		Type:       ai.ActionStartBattle,
		Parameters: map[string]string{"mode": "regular", "stage": "1-A"},
	})
	assert.ErrorIs(t, err, vision.ErrTemplateNotFound)
}
