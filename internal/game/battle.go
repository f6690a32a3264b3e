package game

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/holotable/swgoh-autopilot/internal/ai"
	"github.com/holotable/swgoh-autopilot/internal/config"
	"github.com/holotable/swgoh-autopilot/internal/vision"
)

const battleStatusPrompt = `Analyze this Star Wars Galaxy of Heroes battle screen.
Is the battle complete? If so, was it a victory?
How many stars were earned?

Return in format:
complete: yes/no
victory: yes/no
stars: 1-3`

// BattleResult is the outcome of one battle.
type BattleResult struct {
	Mode     string        `json:"mode"`
	Stage    string        `json:"stage"`
	Victory  bool          `json:"victory"`
	Stars    int           `json:"stars"`
	Duration time.Duration `json:"duration"`
}

// BattleRunner drives battle selection, team setup, and completion
// tracking.
type BattleRunner struct {
	auto   *Automator
	cfg    *config.BattleConfig
	teams  map[string]config.TeamConfig
	logger *logrus.Entry
}

// NewBattleRunner creates a battle runner with the configured teams.
func NewBattleRunner(auto *Automator, cfg *config.BattleConfig, teams map[string]config.TeamConfig, logger *logrus.Entry) *BattleRunner {
	return &BattleRunner{
		auto:   auto,
		cfg:    cfg,
		teams:  teams,
		logger: logger,
	}
}

var battleModeTemplates = map[string]string{
	"cantina": "cantina_battles.png",
	"regular": "regular_battles.png",
	"fleet":   "fleet_battles.png",
}

// SelectMode opens the battle mode screen.
func (r *BattleRunner) SelectMode(ctx context.Context, mode string) error {
	template, ok := battleModeTemplates[mode]
	if !ok {
		return fmt.Errorf("unknown battle mode: %s", mode)
	}

	r.logger.Infof("Selecting %s battle mode", mode)
	return r.auto.ClickImage(ctx, template)
}

// SelectStage picks a stage by template, falling back to AI coordinate
// detection when no template matches.
func (r *BattleRunner) SelectStage(ctx context.Context, stage string) error {
	r.logger.Infof("Selecting stage: %s", stage)

	template := "stages/" + strings.ReplaceAll(strings.ToLower(stage), " ", "_") + ".png"
	if err := r.auto.ClickImage(ctx, template); err == nil {
		return nil
	}

	prompt := fmt.Sprintf(`Find and identify the stage "%s" in this Star Wars Galaxy of Heroes battle selection screen.
Return the coordinates of the center of this stage button in format: x,y`, stage)

	response, err := r.auto.AnalyzeScreen(ctx, prompt)
	if err != nil {
		return fmt.Errorf("stage lookup failed: %w", err)
	}

	p, ok := ai.ParseCoordinates(response)
	if !ok {
		return fmt.Errorf("could not find stage %q: %w", stage, vision.ErrTemplateNotFound)
	}

	return r.auto.ClickAt(ctx, p)
}

// SelectTeam sets up the named predefined team.
func (r *BattleRunner) SelectTeam(ctx context.Context, teamName string) error {
	team, ok := r.teams[teamName]
	if !ok {
		return fmt.Errorf("team not found: %s", teamName)
	}

	r.logger.Infof("Selecting team: %s", team.Name)

	if err := r.auto.ClickImage(ctx, "team_setup.png"); err != nil {
		return fmt.Errorf("team setup button not found: %w", err)
	}
	r.auto.sleep(time.Second)

	for _, character := range team.Characters {
		if err := r.selectCharacter(ctx, character); err != nil {
			r.logger.WithError(err).Warnf("Could not select character: %s", character)
		}
	}

	return r.auto.ClickImage(ctx, "confirm_team.png")
}

// selectCharacter clicks a roster portrait by template, with an AI
// coordinate fallback.
func (r *BattleRunner) selectCharacter(ctx context.Context, character string) error {
	template := "characters/" + strings.ReplaceAll(strings.ToLower(character), " ", "_") + ".png"
	if err := r.auto.ClickImage(ctx, template); err == nil {
		return nil
	}

	prompt := fmt.Sprintf(`Find the character "%s" in this character selection screen.
Return the coordinates of the center of this character portrait in format: x,y`, character)

	response, err := r.auto.AnalyzeScreen(ctx, prompt)
	if err != nil {
		return err
	}

	p, ok := ai.ParseCoordinates(response)
	if !ok {
		return fmt.Errorf("character %q not found", character)
	}

	return r.auto.ClickAt(ctx, p)
}

// StartBattle presses the start button and enables the configured
// strategy.
func (r *BattleRunner) StartBattle(ctx context.Context) error {
	if err := r.auto.ClickImage(ctx, "start_battle.png"); err != nil {
		return fmt.Errorf("start battle button not found: %w", err)
	}
	r.auto.sleep(2 * time.Second)

	if r.cfg.Strategy == "auto" {
		if err := r.auto.ClickImage(ctx, "auto_button.png"); err != nil {
			return fmt.Errorf("auto mode button not found: %w", err)
		}
		r.logger.Info("Auto mode enabled")
	}

	return nil
}

// WaitForCompletion polls the battle screen until the model reports the
// battle as complete or the configured timeout elapses.
func (r *BattleRunner) WaitForCompletion(ctx context.Context, mode, stage string) (BattleResult, error) {
	r.logger.Info("Waiting for battle completion")
	start := time.Now()
	deadline := start.Add(r.cfg.CompletionTimeout)

	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return BattleResult{}, err
		}

		response, err := r.auto.AnalyzeScreen(ctx, battleStatusPrompt)
		if err != nil {
			r.logger.WithError(err).Debug("Battle status check failed")
			r.auto.sleep(2 * time.Second)
			continue
		}

		status := ai.ParseBattleStatus(response)
		if status.Complete {
			result := BattleResult{
				Mode:     mode,
				Stage:    stage,
				Victory:  status.Victory,
				Stars:    status.Stars,
				Duration: time.Since(start),
			}

			r.auto.session.LogBattleResult(mode, stage, result.Victory, result.Stars, result.Duration)
			return result, nil
		}

		r.auto.sleep(2 * time.Second)
	}

	return BattleResult{}, fmt.Errorf("battle completion timed out after %s", r.cfg.CompletionTimeout)
}

// ClaimRewards clicks through the post-battle reward screens.
func (r *BattleRunner) ClaimRewards(ctx context.Context) error {
	for _, template := range []string{"claim_rewards.png", "ok_button.png", "continue.png"} {
		if err := r.auto.ClickImage(ctx, template); err == nil {
			r.auto.sleep(time.Second)
			return nil
		}
	}

	return fmt.Errorf("no reward claim button visible: %w", vision.ErrTemplateNotFound)
}

// RunSequence runs a full battle sequence: mode, then per repetition
// stage, team, battle, and rewards. Failed repetitions are skipped
// rather than aborting the sequence.
func (r *BattleRunner) RunSequence(ctx context.Context, mode, stage, team string, repetitions int) ([]BattleResult, error) {
	r.logger.Infof("Starting battle sequence: %s %s with %s (%d times)", mode, stage, team, repetitions)

	if err := r.SelectMode(ctx, mode); err != nil {
		return nil, err
	}
	r.auto.sleep(time.Second)

	var results []BattleResult
	for i := 0; i < repetitions; i++ {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		r.logger.Infof("Battle %d/%d", i+1, repetitions)

		if err := r.SelectStage(ctx, stage); err != nil {
			r.logger.WithError(err).Warn("Stage selection failed, skipping repetition")
			continue
		}
		r.auto.sleep(time.Second)

		if err := r.SelectTeam(ctx, team); err != nil {
			r.logger.WithError(err).Warn("Team selection failed, skipping repetition")
			continue
		}
		r.auto.sleep(time.Second)

		if err := r.StartBattle(ctx); err != nil {
			r.logger.WithError(err).Warn("Battle start failed, skipping repetition")
			continue
		}

		result, err := r.WaitForCompletion(ctx, mode, stage)
		if err != nil {
			r.logger.WithError(err).Warn("Battle did not complete")
			continue
		}
		results = append(results, result)

		if err := r.ClaimRewards(ctx); err != nil {
			r.logger.WithError(err).Debug("Reward claim failed")
		}
		r.auto.sleep(2 * time.Second)
	}

	r.logger.Infof("Battle sequence completed: %d/%d battles finished", len(results), repetitions)
	return results, nil
}

// FarmStage repeats single-battle sequences until the energy manager
// reports the pool at or below targetEnergy or the time budget is
// spent.
func (r *BattleRunner) FarmStage(ctx context.Context, energy *EnergyManager, mode, stage, team string,
	targetEnergy int, maxDuration time.Duration) ([]BattleResult, error) {
	r.logger.Infof("Auto-farming %s %s with %s", mode, stage, team)

	start := time.Now()
	var results []BattleResult

	for time.Since(start) < maxDuration {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		levels, err := energy.CurrentEnergy(ctx)
		if err == nil {
			pool := "regular"
			if mode == "cantina" || mode == "fleet" {
				pool = mode
			}
			if level, ok := levels[pool]; ok && level.Current <= targetEnergy {
				r.logger.Info("Target energy reached, stopping auto-farm")
				break
			}
		}

		batch, err := r.RunSequence(ctx, mode, stage, team, 1)
		if err != nil {
			return results, err
		}
		results = append(results, batch...)

		r.auto.sleep(3 * time.Second)
	}

	return results, nil
}
