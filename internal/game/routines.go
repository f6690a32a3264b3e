package game

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/holotable/swgoh-autopilot/internal/recovery"
)

var claimCountPattern = regexp.MustCompile(`\d+`)

// Fleet battle key sequences, played against the fleet energy screens.
var (
	fleetOpeningSequence = []string{
		"e", "s", "w", "w", "e", "q", "q", "q", "t", "down", "down", "c",
	}
	fleetFollowupSequence = []string{
		"w", "w", "e", "e", "s", "q", "q", "q", "w", "t",
		"down", "down", "w", "q", "q", "q", "w", "s", "q", "q",
		"w", "w", "t", "up", "up", "q", "q", "c",
	}
)

// routineStep is one named step of a scripted routine.
type routineStep struct {
	name string
	fn   func(context.Context) error
}

// Routines drives the scripted morning and evening sequences. Each
// step is guarded by the recovery manager; a failed step unwinds to the
// home screen and the routine continues.
type Routines struct {
	auto    *Automator
	energy  *EnergyManager
	battles *BattleRunner
	dailies *DailiesManager
	logger  *logrus.Entry
}

// NewRoutines assembles the scripted routines.
func NewRoutines(auto *Automator, energy *EnergyManager, battles *BattleRunner,
	dailies *DailiesManager, logger *logrus.Entry) *Routines {
	return &Routines{
		auto:    auto,
		energy:  energy,
		battles: battles,
		dailies: dailies,
		logger:  logger,
	}
}

// run executes the steps in order. Step failures are routed through
// recovery; the routine presses on with the next step after unwinding
// to the home screen.
func (r *Routines) run(ctx context.Context, name string, steps []routineStep) error {
	r.logger.Infof("Starting %s routine (%d steps)", name, len(steps))

	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}

		r.logger.Infof("Step %d/%d: %s", i+1, len(steps), step.name)
		timer := r.auto.session.StartTimer(step.name)

		outcome := recovery.Run(r.auto.recovery, recovery.Operation{
			Name:     step.name,
			Category: recovery.CategoryGameState,
			Severity: recovery.SeverityMedium,
			Fn:       func() error { return step.fn(ctx) },
		})
		duration := timer.Stop()
		r.auto.session.LogActionEnd(step.name, outcome.OK, duration)

		if outcome.Err != nil {
			return outcome.Err
		}
		if !outcome.OK && !outcome.Recovered {
			// Unwind to a known screen before the next step.
			if err := r.auto.NavigateHome(ctx); err != nil {
				r.logger.WithError(err).Warn("Could not navigate home after failed step")
			}
		}

		r.auto.sleep(time.Second)
	}

	r.logger.Infof("%s routine completed", name)
	return nil
}

// Morning runs the morning sequence: claim quests, then multi-sim the
// mod, fleet, light side, and cantina energy sinks.
func (r *Routines) Morning(ctx context.Context) error {
	return r.run(ctx, "morning", []routineStep{
		{"claim_quests", r.claimQuests},
		{"mod_battles", r.modBattles},
		{"fleet_battles_sim", r.fleetBattlesSim},
		{"light_side_battles", r.lightSideBattles},
		{"cantina_battles", r.cantinaBattles},
	})
}

// Evening runs the evening sequence: coliseum, quest claims, galactic
// war, challenges, fleet challenge, energy claim, and the multi-sims.
func (r *Routines) Evening(ctx context.Context) error {
	return r.run(ctx, "evening", []routineStep{
		{"coliseum", r.coliseum},
		{"claim_quest_rewards", r.claimQuestRewards},
		{"galactic_war", r.galacticWar},
		{"challenges", r.challenges},
		{"fleet_challenge", r.fleetChallenge},
		{"claim_energy", r.claimEnergy},
		{"fleet_battles_sim", r.fleetBattlesSim},
		{"light_side_battles", r.lightSideBattles},
	})
}

// FleetOpening plays the scripted fleet battle key sequences with the
// long pauses the battles need between presses.
func (r *Routines) FleetOpening(ctx context.Context, followup bool) error {
	sequence := fleetOpeningSequence
	if followup {
		sequence = fleetFollowupSequence
	}

	r.logger.Infof("Playing fleet key sequence (%d keys)", len(sequence))
	return r.auto.PressSequence(ctx, sequence, 7*time.Second)
}

// checkEnergyPopup dismisses the "buy more energy" popup when the
// model reports one.
func (r *Routines) checkEnergyPopup(ctx context.Context) {
	response, err := r.auto.AnalyzeScreen(ctx, `Is there a popup asking if you want to buy more energy or refill energy?
Look for text about "Buy Energy" or "Refill" or "Not enough energy".

Answer: YES or NO`)
	if err != nil {
		r.logger.WithError(err).Debug("Energy popup check failed")
		return
	}

	if strings.Contains(strings.ToUpper(response), "YES") {
		r.logger.Info("Energy popup detected, closing")
		if err := r.auto.PressKey(ctx, "esc", 1, 500*time.Millisecond); err != nil {
			r.logger.WithError(err).Warn("Could not dismiss energy popup")
		}
	}
}

// multiSim clicks the multi-sim button and confirms the sim dialog,
// then dismisses any energy popup.
func (r *Routines) multiSim(ctx context.Context) error {
	if err := r.auto.ClickPercent(ctx, 0.82, 0.87, "multi sim button"); err != nil {
		return err
	}
	r.auto.sleep(2 * time.Second)

	if err := r.auto.ClickPercent(ctx, 0.5, 0.63, "sim confirm button"); err != nil {
		return err
	}
	r.auto.sleep(3 * time.Second)

	r.checkEnergyPopup(ctx)
	return nil
}

func (r *Routines) claimQuests(ctx context.Context) error {
	if err := r.auto.PressKey(ctx, "c", 1, 300*time.Millisecond); err != nil {
		return err
	}
	r.auto.sleep(2 * time.Second)

	if err := r.auto.ClickPercent(ctx, 0.25, 0.95, "claim all quests"); err != nil {
		return err
	}
	r.auto.sleep(time.Second)

	return r.auto.PressKey(ctx, "esc", 1, 500*time.Millisecond)
}

func (r *Routines) modBattles(ctx context.Context) error {
	if err := r.auto.PressKey(ctx, "e", 1, 300*time.Millisecond); err != nil {
		return err
	}
	r.auto.sleep(2 * time.Second)

	if err := r.multiSim(ctx); err != nil {
		return err
	}

	return r.auto.PressKey(ctx, "esc", 2, 500*time.Millisecond)
}

func (r *Routines) fleetBattlesSim(ctx context.Context) error {
	if err := r.auto.PressKey(ctx, "u", 1, 300*time.Millisecond); err != nil {
		return err
	}
	r.auto.sleep(time.Second)

	if err := r.auto.PressKey(ctx, "s", 1, 300*time.Millisecond); err != nil {
		return err
	}
	r.auto.sleep(2 * time.Second)

	if err := r.multiSim(ctx); err != nil {
		return err
	}

	return r.auto.PressKey(ctx, "esc", 3, time.Second)
}

func (r *Routines) lightSideBattles(ctx context.Context) error {
	if err := r.auto.PressKey(ctx, "d", 1, 300*time.Millisecond); err != nil {
		return err
	}
	r.auto.sleep(2 * time.Second)

	if err := r.auto.ClickPercent(ctx, 0.3, 0.75, "light side play"); err != nil {
		return err
	}
	r.auto.sleep(2 * time.Second)

	if err := r.multiSim(ctx); err != nil {
		return err
	}

	return r.auto.PressKey(ctx, "esc", 3, time.Second)
}

func (r *Routines) cantinaBattles(ctx context.Context) error {
	if err := r.auto.PressKey(ctx, "d", 1, 300*time.Millisecond); err != nil {
		return err
	}
	r.auto.sleep(2 * time.Second)

	if err := r.auto.ClickPercent(ctx, 0.7, 0.75, "cantina play"); err != nil {
		return err
	}
	r.auto.sleep(2 * time.Second)

	if err := r.multiSim(ctx); err != nil {
		return err
	}

	return r.auto.PressKey(ctx, "esc", 3, time.Second)
}

func (r *Routines) coliseum(ctx context.Context) error {
	if err := r.auto.PressKey(ctx, "f", 1, 300*time.Millisecond); err != nil {
		return err
	}
	r.auto.sleep(10 * time.Second)

	for i := 0; i < 2; i++ {
		if err := r.auto.ClickPercent(ctx, 0.9, 0.95, "coliseum action"); err != nil {
			return err
		}
		r.auto.sleep(time.Second)
	}
	r.auto.sleep(10 * time.Second)

	if err := r.auto.PressKey(ctx, "c", 1, 300*time.Millisecond); err != nil {
		return err
	}
	// The coliseum battle runs on auto for about three minutes.
	r.auto.sleep(3 * time.Minute)

	for i := 0; i < 2; i++ {
		if err := r.auto.ClickPercent(ctx, 0.5, 0.7, "continue"); err != nil {
			return err
		}
		r.auto.sleep(2 * time.Second)
	}

	return r.auto.PressKey(ctx, "esc", 1, 3*time.Second)
}

func (r *Routines) claimQuestRewards(ctx context.Context) error {
	if err := r.auto.PressKey(ctx, "c", 1, 300*time.Millisecond); err != nil {
		return err
	}
	r.auto.sleep(time.Second)

	count := r.countClaimButtons(ctx)
	r.logger.Infof("Claiming %d quest rewards", count)

	for i := 0; i < count; i++ {
		if err := r.auto.ClickPercent(ctx, 0.9, 0.27, "claim button"); err != nil {
			return err
		}
		r.auto.sleep(2 * time.Second)
	}

	return nil
}

// countClaimButtons asks the model how many claim buttons are visible,
// defaulting to 5 when the answer is unparseable.
func (r *Routines) countClaimButtons(ctx context.Context) int {
	response, err := r.auto.AnalyzeScreen(ctx, `Look at the right side of this SWGOH quests screen.
Count how many green "Claim" buttons are visible on the right side.
These are usually rectangular green buttons with white "Claim" text.

Respond with ONLY a single number representing the count.
Example: 5
If no claim buttons are visible, respond with: 0`)
	if err != nil {
		r.logger.WithError(err).Warn("Claim count analysis failed, defaulting to 5")
		return 5
	}

	m := claimCountPattern.FindString(response)
	if m == "" {
		r.logger.Warn("Could not parse claim count, defaulting to 5")
		return 5
	}

	count, err := strconv.Atoi(m)
	if err != nil {
		return 5
	}
	return count
}

func (r *Routines) galacticWar(ctx context.Context) error {
	clicks := []struct {
		x, y float64
		name string
	}{
		{0.9, 0.27, "galactic war table"},
		{0.1, 0.95, "battle select"},
		{0.5, 0.95, "start battle"},
		{0.5, 0.63, "sim confirm"},
	}

	for _, c := range clicks {
		if err := r.auto.ClickPercent(ctx, c.x, c.y, c.name); err != nil {
			return err
		}
		r.auto.sleep(time.Second)
	}

	return r.auto.PressKey(ctx, "esc", 3, time.Second)
}

func (r *Routines) challenges(ctx context.Context) error {
	if err := r.auto.PressKey(ctx, "c", 1, 300*time.Millisecond); err != nil {
		return err
	}
	r.auto.sleep(time.Second)

	clicks := []struct {
		x, y float64
		name string
	}{
		{0.9, 0.27, "challenge entry"},
		{0.9, 0.27, "challenge entry"},
		{0.9, 0.15, "challenge battle"},
		{0.5, 0.63, "sim confirm"},
	}

	for _, c := range clicks {
		if err := r.auto.ClickPercent(ctx, c.x, c.y, c.name); err != nil {
			return err
		}
		r.auto.sleep(time.Second)
	}

	return r.auto.PressKey(ctx, "esc", 5, 1500*time.Millisecond)
}

func (r *Routines) fleetChallenge(ctx context.Context) error {
	if err := r.auto.PressKey(ctx, "c", 1, 300*time.Millisecond); err != nil {
		return err
	}
	r.auto.sleep(time.Second)

	clicks := []struct {
		x, y float64
		name string
	}{
		{0.9, 0.27, "fleet challenge entry"},
		{0.9, 0.27, "fleet challenge entry"},
		{0.9, 0.15, "fleet challenge battle"},
		{0.5, 0.63, "sim confirm"},
	}

	for _, c := range clicks {
		if err := r.auto.ClickPercent(ctx, c.x, c.y, c.name); err != nil {
			return err
		}
		r.auto.sleep(time.Second)
	}

	return r.auto.PressKey(ctx, "esc", 4, 500*time.Millisecond)
}

func (r *Routines) claimEnergy(ctx context.Context) error {
	if err := r.auto.PressKey(ctx, "c", 1, 300*time.Millisecond); err != nil {
		return err
	}
	r.auto.sleep(time.Second)

	clicks := []struct {
		x, y float64
		name string
	}{
		{0.25, 0.95, "quests tab"},
		{0.9, 0.27, "claim energy"},
		{0.25, 0.45, "energy bonus"},
	}

	for _, c := range clicks {
		if err := r.auto.ClickPercent(ctx, c.x, c.y, c.name); err != nil {
			return err
		}
		r.auto.sleep(time.Second)
	}

	return r.auto.PressKey(ctx, "esc", 2, 500*time.Millisecond)
}
