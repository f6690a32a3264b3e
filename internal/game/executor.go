package game

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/holotable/swgoh-autopilot/internal/ai"
	"github.com/holotable/swgoh-autopilot/internal/config"
)

// Executor dispatches AI-recommended actions to the game modules. It
// implements ai.Executor.
type Executor struct {
	auto    *Automator
	energy  *EnergyManager
	battles *BattleRunner
	dailies *DailiesManager
	cfg     *config.BattleConfig
	logger  *logrus.Entry
}

// NewExecutor creates the action dispatcher.
func NewExecutor(auto *Automator, energy *EnergyManager, battles *BattleRunner,
	dailies *DailiesManager, cfg *config.BattleConfig, logger *logrus.Entry) *Executor {
	return &Executor{
		auto:    auto,
		energy:  energy,
		battles: battles,
		dailies: dailies,
		cfg:     cfg,
		logger:  logger,
	}
}

// Execute carries out one recommendation.
func (e *Executor) Execute(ctx context.Context, rec ai.Recommendation) error {
	e.logger.WithFields(logrus.Fields{
		"action":     rec.Type,
		"parameters": rec.Parameters,
	}).Infof("Executing action: %s", rec.Description)

	e.auto.session.LogAIDecision(string(rec.Type), rec.Description, rec.Confidence)

	switch rec.Type {
	case ai.ActionEnergyRefill:
		return e.energy.Refill(ctx, paramOr(rec.Parameters, "type", "regular"))

	case ai.ActionStartBattle, ai.ActionSimBattle:
		return e.runBattles(ctx, rec, 1)

	case ai.ActionFarmStage:
		reps := e.cfg.FarmRepetitions
		if v, err := strconv.Atoi(rec.Parameters["repetitions"]); err == nil && v > 0 {
			reps = v
		}
		return e.runBattles(ctx, rec, reps)

	case ai.ActionCompleteDaily:
		results := e.dailies.AutoComplete(ctx)
		for _, ok := range results {
			if ok {
				return nil
			}
		}
		return fmt.Errorf("no daily task completed")

	case ai.ActionCollectRewards:
		return e.collectRewards(ctx)

	case ai.ActionGuildActivity:
		return e.dailies.CheckGuildActivities(ctx)

	case ai.ActionWaitEnergy:
		target := 50
		if v, err := strconv.Atoi(rec.Parameters["target"]); err == nil && v > 0 {
			target = v
		}
		return e.energy.WaitForRegen(ctx, target, 30*time.Minute)

	case ai.ActionNone:
		return nil

	default:
		return fmt.Errorf("unsupported action type: %s", rec.Type)
	}
}

func (e *Executor) runBattles(ctx context.Context, rec ai.Recommendation, repetitions int) error {
	mode := paramOr(rec.Parameters, "mode", e.cfg.PreferredMode)
	stage := paramOr(rec.Parameters, "stage", e.cfg.FarmStage)
	team := paramOr(rec.Parameters, "team", mode)

	results, err := e.battles.RunSequence(ctx, mode, stage, team, repetitions)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return fmt.Errorf("no battle completed in sequence %s %s", mode, stage)
	}
	return nil
}

// collectRewards clicks through the known reward buttons.
func (e *Executor) collectRewards(ctx context.Context) error {
	for _, template := range []string{"claim_rewards.png", "collect_button.png", "gift_box.png", "notification.png"} {
		if err := e.auto.ClickImage(ctx, template); err == nil {
			e.auto.sleep(500 * time.Millisecond)
			return nil
		}
	}
	return fmt.Errorf("no reward button visible")
}

func paramOr(params map[string]string, key, fallback string) string {
	if v, ok := params[key]; ok && v != "" {
		return v
	}
	return fallback
}
