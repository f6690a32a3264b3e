package game

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/holotable/swgoh-autopilot/internal/config"
	"github.com/holotable/swgoh-autopilot/internal/recovery"
)

// DailiesManager claims login rewards and walks the daily challenge
// and guild activity screens.
type DailiesManager struct {
	auto   *Automator
	cfg    *config.DailiesConfig
	logger *logrus.Entry
}

// NewDailiesManager creates a dailies manager bound to the automator.
func NewDailiesManager(auto *Automator, cfg *config.DailiesConfig, logger *logrus.Entry) *DailiesManager {
	return &DailiesManager{
		auto:   auto,
		cfg:    cfg,
		logger: logger,
	}
}

// ClaimDailyLogin collects the daily login calendar reward.
func (d *DailiesManager) ClaimDailyLogin(ctx context.Context) error {
	d.logger.Info("Checking daily login rewards")

	if err := d.auto.ClickImage(ctx, "daily_login.png"); err != nil {
		return err
	}
	d.auto.sleep(time.Second)

	if err := d.auto.ClickImage(ctx, "claim_daily.png"); err == nil {
		d.logger.Info("Daily login reward claimed")
		// Some calendars show a next-day preview after claiming.
		if err := d.auto.ClickImage(ctx, "next_day.png"); err == nil {
			d.logger.Debug("Next day preview dismissed")
		}
	}

	if err := d.auto.ClickImage(ctx, "close_button.png"); err != nil {
		d.logger.WithError(err).Debug("Close button not found after login claim")
	}
	return nil
}

// challengeSections are the tabs walked by CompleteChallenges.
var challengeSections = []struct {
	name     string
	template string
}{
	{"daily", "daily_challenges.png"},
	{"guild", "guild_challenges.png"},
	{"fleet", "fleet_challenges.png"},
	{"cantina", "cantina_challenges.png"},
}

// CompleteChallenges opens the challenges screen and completes each
// section that is available.
func (d *DailiesManager) CompleteChallenges(ctx context.Context) (map[string]bool, error) {
	d.logger.Info("Completing daily challenges")

	if err := d.auto.ClickImage(ctx, "challenges_button.png"); err != nil {
		return nil, err
	}
	d.auto.sleep(time.Second)

	results := make(map[string]bool, len(challengeSections))
	for _, section := range challengeSections {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		if err := d.auto.ClickImage(ctx, section.template); err != nil {
			d.logger.Debugf("Challenge section not available: %s", section.name)
			results[section.name] = false
			continue
		}
		d.auto.sleep(time.Second)

		completed := false
		if err := d.auto.ClickImage(ctx, "complete_challenge.png"); err == nil {
			d.auto.sleep(time.Second)
			if err := d.auto.ClickImage(ctx, "claim_reward.png"); err == nil {
				completed = true
			}
		}
		results[section.name] = completed
	}

	if err := d.auto.ClickImage(ctx, "back_button.png"); err != nil {
		d.logger.WithError(err).Debug("Back button not found after challenges")
	}
	return results, nil
}

// CheckGuildActivities donates to guild requests and joins an open
// raid when one is available.
func (d *DailiesManager) CheckGuildActivities(ctx context.Context) error {
	d.logger.Info("Checking guild activities")

	if err := d.auto.ClickImage(ctx, "guild_button.png"); err != nil {
		return err
	}
	d.auto.sleep(time.Second)

	if err := d.auto.ClickImage(ctx, "guild_donate.png"); err == nil {
		for _, resource := range []string{"donate_credits.png", "donate_materials.png", "donate_ship_parts.png"} {
			if err := d.auto.ClickImage(ctx, resource); err == nil {
				d.auto.sleep(500 * time.Millisecond)
			}
		}
		if err := d.auto.ClickImage(ctx, "close_button.png"); err != nil {
			d.logger.Debug("Donate panel close button not found")
		}
	}

	if err := d.auto.ClickImage(ctx, "guild_raids.png"); err == nil {
		d.auto.sleep(time.Second)
		if err := d.auto.ClickImage(ctx, "join_raid.png"); err == nil {
			d.auto.sleep(time.Second)
			if err := d.auto.ClickImage(ctx, "start_raid.png"); err != nil {
				d.logger.Debug("Raid joined, start not available")
			}
		}
	}

	if err := d.auto.ClickImage(ctx, "back_button.png"); err != nil {
		d.logger.WithError(err).Debug("Back button not found after guild screen")
	}
	return nil
}

// AutoComplete runs the enabled daily tasks, routing each failure
// through recovery and continuing with the rest.
func (d *DailiesManager) AutoComplete(ctx context.Context) map[string]bool {
	results := map[string]bool{}

	if d.cfg.AutoLoginRewards {
		outcome := recovery.Run(d.auto.recovery, recovery.Operation{
			Name:     "claim_daily_login",
			Category: recovery.CategoryGameState,
			Severity: recovery.SeverityLow,
			Fn:       func() error { return d.ClaimDailyLogin(ctx) },
		})
		results["login"] = outcome.OK
	}

	if d.cfg.AutoDailies {
		outcome := recovery.Run(d.auto.recovery, recovery.Operation{
			Name:     "complete_challenges",
			Category: recovery.CategoryGameState,
			Severity: recovery.SeverityMedium,
			Fn: func() error {
				_, err := d.CompleteChallenges(ctx)
				return err
			},
		})
		results["challenges"] = outcome.OK
	}

	if d.cfg.AutoGuild {
		outcome := recovery.Run(d.auto.recovery, recovery.Operation{
			Name:     "guild_activities",
			Category: recovery.CategoryGameState,
			Severity: recovery.SeverityLow,
			Fn:       func() error { return d.CheckGuildActivities(ctx) },
		})
		results["guild"] = outcome.OK
	}

	d.logger.WithField("results", results).Info("Daily tasks completed")
	return results
}
