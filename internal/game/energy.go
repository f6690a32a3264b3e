package game

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/holotable/swgoh-autopilot/internal/ai"
	"github.com/holotable/swgoh-autopilot/internal/config"
)

const energyPrompt = `Analyze this Star Wars Galaxy of Heroes screen and extract the current energy levels.
Look for:
- Cantina energy (current/max)
- Regular energy (current/max)
- Fleet energy (current/max)

Return the results in this format:
cantina: X/Y
regular: X/Y
fleet: X/Y`

// EnergyManager reads energy pools from the screen and refills them
// within the configured daily budget.
type EnergyManager struct {
	auto   *Automator
	cfg    *config.EnergyConfig
	logger *logrus.Entry

	mu           sync.Mutex
	refillsToday int
	refillDay    time.Time
}

// NewEnergyManager creates an energy manager bound to the automator.
func NewEnergyManager(auto *Automator, cfg *config.EnergyConfig, logger *logrus.Entry) *EnergyManager {
	return &EnergyManager{
		auto:   auto,
		cfg:    cfg,
		logger: logger,
	}
}

// CurrentEnergy asks the vision model for the visible energy readings.
func (m *EnergyManager) CurrentEnergy(ctx context.Context) (map[string]ai.EnergyLevel, error) {
	response, err := m.auto.AnalyzeScreen(ctx, energyPrompt)
	if err != nil {
		return nil, fmt.Errorf("energy analysis failed: %w", err)
	}

	levels := parseEnergyReport(response)
	if len(levels) == 0 {
		return nil, fmt.Errorf("no energy readings in response")
	}

	for kind, level := range levels {
		m.auto.session.LogEnergyState(kind, level.Current, level.Max)
	}

	return levels, nil
}

// parseEnergyReport reads one pool per line ("cantina: 45/144"),
// tolerating spaces around the separators.
func parseEnergyReport(response string) map[string]ai.EnergyLevel {
	normalized := strings.ReplaceAll(response, ": ", ":")
	normalized = strings.ReplaceAll(normalized, "\n", " ")
	return ai.ParseEnergyLevels(normalized)
}

// ShouldRefill reports whether the pool is below the refill threshold.
func (m *EnergyManager) ShouldRefill(ctx context.Context, kind string) (bool, error) {
	levels, err := m.CurrentEnergy(ctx)
	if err != nil {
		return false, err
	}

	level, ok := levels[kind]
	if !ok {
		return false, fmt.Errorf("unknown energy type: %s", kind)
	}

	return level.Ratio() < m.cfg.RefillThreshold, nil
}

// refillBudgetLeft checks and consumes one refill from the daily
// budget, resetting the counter on day change.
func (m *EnergyManager) refillBudgetLeft() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	today := time.Now().Truncate(24 * time.Hour)
	if !m.refillDay.Equal(today) {
		m.refillDay = today
		m.refillsToday = 0
	}

	if m.refillsToday >= m.cfg.MaxDailyRefills {
		return false
	}
	m.refillsToday++
	return true
}

// RefillsToday returns the number of refills consumed today.
func (m *EnergyManager) RefillsToday() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refillsToday
}

// Refill purchases one refill of the given energy pool.
func (m *EnergyManager) Refill(ctx context.Context, kind string) error {
	switch kind {
	case "cantina", "regular", "fleet":
	default:
		return fmt.Errorf("unknown energy type: %s", kind)
	}

	if !m.refillBudgetLeft() {
		return fmt.Errorf("daily refill budget exhausted (%d)", m.cfg.MaxDailyRefills)
	}

	m.logger.Infof("Refilling %s energy", kind)

	if err := m.auto.ClickImage(ctx, "energy_button.png"); err != nil {
		return fmt.Errorf("energy button not found: %w", err)
	}
	m.auto.sleep(time.Second)

	if err := m.auto.ClickImage(ctx, kind+"_refill.png"); err != nil {
		return fmt.Errorf("%s refill option not found: %w", kind, err)
	}
	m.auto.sleep(500 * time.Millisecond)

	if err := m.auto.ClickImage(ctx, "confirm_button.png"); err != nil {
		return fmt.Errorf("refill confirmation failed: %w", err)
	}

	m.logger.Infof("Refilled %s energy", kind)
	return nil
}

// AutoManage refills every pool that has fallen below the threshold.
// Pools that cannot be read are skipped.
func (m *EnergyManager) AutoManage(ctx context.Context) {
	if !m.cfg.AutoRefill {
		return
	}

	for _, kind := range []string{"cantina", "regular", "fleet"} {
		should, err := m.ShouldRefill(ctx, kind)
		if err != nil {
			m.logger.WithError(err).Warnf("Could not check %s energy", kind)
			continue
		}
		if !should {
			continue
		}

		if err := m.Refill(ctx, kind); err != nil {
			m.logger.WithError(err).Warnf("Failed to refill %s energy", kind)
			continue
		}
		m.auto.sleep(2 * time.Second)
	}
}

// WaitForRegen polls until the regular energy pool reaches the target
// or the wait budget is spent.
func (m *EnergyManager) WaitForRegen(ctx context.Context, target int, maxWait time.Duration) error {
	deadline := time.Now().Add(maxWait)

	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return err
		}

		levels, err := m.CurrentEnergy(ctx)
		if err == nil {
			if level, ok := levels["regular"]; ok && level.Current >= target {
				m.logger.Infof("Target energy reached: %d", level.Current)
				return nil
			}
		}

		m.auto.sleep(time.Minute)
	}

	return fmt.Errorf("energy regeneration timed out waiting for %d", target)
}
