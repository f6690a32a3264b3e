package game

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holotable/swgoh-autopilot/internal/config"
	"github.com/holotable/swgoh-autopilot/internal/vision"
)

func newEnergyManager(h *testHarness, cfg *config.EnergyConfig) *EnergyManager {
	if cfg == nil {
		c := config.DefaultAutomationConfig().Energy
		cfg = &c
	}
	return NewEnergyManager(h.auto, cfg, h.auto.logger)
}

func TestParseEnergyReport(t *testing.T) {
	levels := parseEnergyReport("cantina: 45/144\nregular: 80/144\nfleet: 120/285")

	require.Len(t, levels, 3)
	assert.Equal(t, 45, levels["cantina"].Current)
	assert.Equal(t, 144, levels["regular"].Max)
	assert.Equal(t, 120, levels["fleet"].Current)
}

func TestCurrentEnergy(t *testing.T) {
	h := newTestHarness()
	h.analyzer.answers["extract the current energy levels"] = "cantina: 45/144\nregular: 80/144\nfleet: 120/285"

	m := newEnergyManager(h, nil)
	levels, err := m.CurrentEnergy(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 45, levels["cantina"].Current)
}

func TestCurrentEnergyUnparseable(t *testing.T) {
	h := newTestHarness()
	h.analyzer.answers["extract the current energy levels"] = "I cannot see any energy display"

	m := newEnergyManager(h, nil)
	_, err := m.CurrentEnergy(context.Background())
	assert.Error(t, err)
}

func TestShouldRefill(t *testing.T) {
	h := newTestHarness()
	h.analyzer.answers["extract the current energy levels"] = "cantina: 10/144\nregular: 130/144"

	cfg := &config.EnergyConfig{AutoRefill: true, RefillThreshold: 0.2, MaxDailyRefills: 3}
	m := newEnergyManager(h, cfg)

	should, err := m.ShouldRefill(context.Background(), "cantina")
	require.NoError(t, err)
	assert.True(t, should, "10/144 is below the 20% threshold")

	should, err = m.ShouldRefill(context.Background(), "regular")
	require.NoError(t, err)
	assert.False(t, should)

	_, err = m.ShouldRefill(context.Background(), "bonus")
	assert.Error(t, err, "unknown pool name")
}

func TestRefillClickSequence(t *testing.T) {
	h := newTestHarness()
	for _, template := range []string{"energy_button.png", "cantina_refill.png", "confirm_button.png"} {
		h.matcher.matches[template] = vision.Match{Center: vision.Point{X: 10, Y: 10}, Confidence: 0.9}
	}

	m := newEnergyManager(h, nil)
	require.NoError(t, m.Refill(context.Background(), "cantina"))

	assert.Len(t, h.input.clicks, 3)
	assert.Equal(t, 1, m.RefillsToday())
}

func TestRefillBudgetExhausted(t *testing.T) {
	h := newTestHarness()
	for _, template := range []string{"energy_button.png", "regular_refill.png", "confirm_button.png"} {
		h.matcher.matches[template] = vision.Match{Center: vision.Point{X: 10, Y: 10}, Confidence: 0.9}
	}

	cfg := &config.EnergyConfig{AutoRefill: true, RefillThreshold: 0.2, MaxDailyRefills: 2}
	m := newEnergyManager(h, cfg)

	require.NoError(t, m.Refill(context.Background(), "regular"))
	require.NoError(t, m.Refill(context.Background(), "regular"))

	err := m.Refill(context.Background(), "regular")
	assert.ErrorContains(t, err, "budget exhausted")
	assert.Equal(t, 2, m.RefillsToday())
}

func TestRefillRejectsUnknownType(t *testing.T) {
	h := newTestHarness()
	m := newEnergyManager(h, nil)

	assert.Error(t, m.Refill(context.Background(), "bonus"))
	assert.Zero(t, m.RefillsToday(), "invalid type does not consume budget")
}
