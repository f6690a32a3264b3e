package game

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/holotable/swgoh-autopilot/internal/ai"
	"github.com/holotable/swgoh-autopilot/internal/config"
	"github.com/holotable/swgoh-autopilot/internal/logging"
	"github.com/holotable/swgoh-autopilot/internal/recovery"
	"github.com/holotable/swgoh-autopilot/internal/vision"
)

// minConfidenceFloor is the lowest the recovery path may relax the
// template matching threshold to.
const minConfidenceFloor = 0.5

// Deps bundles the collaborators an Automator drives.
type Deps struct {
	Capturer vision.ScreenCapturer
	Matcher  vision.TemplateMatcher
	Input    vision.InputDriver
	Locator  vision.WindowLocator
	Analyzer ai.ScreenAnalyzer
	Session  *logging.SessionLogger
	Recovery *recovery.Manager
}

// Automator is the low-level game interaction layer: screenshots,
// template clicks, key presses, and vision model queries against the
// located game window.
type Automator struct {
	cfg      *config.AutomationConfig
	capturer vision.ScreenCapturer
	matcher  vision.TemplateMatcher
	input    vision.InputDriver
	locator  vision.WindowLocator
	analyzer ai.ScreenAnalyzer
	session  *logging.SessionLogger
	recovery *recovery.Manager
	logger   *logrus.Entry

	mu         sync.Mutex
	confidence float64
	window     vision.Region

	dryRun bool

	// sleep is indirected for tests.
	sleep func(time.Duration)
}

// NewAutomator creates the interaction layer. The window must be
// located with FindWindow before screen operations are used.
func NewAutomator(cfg *config.AutomationConfig, deps Deps, logger *logrus.Entry) *Automator {
	return &Automator{
		cfg:        cfg,
		capturer:   deps.Capturer,
		matcher:    deps.Matcher,
		input:      deps.Input,
		locator:    deps.Locator,
		analyzer:   deps.Analyzer,
		session:    deps.Session,
		recovery:   deps.Recovery,
		logger:     logger,
		confidence: cfg.ConfidenceThreshold,
		sleep:      time.Sleep,
	}
}

// SetDryRun makes all input injection log-only.
func (a *Automator) SetDryRun(dryRun bool) {
	a.dryRun = dryRun
}

// FindWindow locates the game window by the configured titles and
// records its region for subsequent clicks and captures.
func (a *Automator) FindWindow(ctx context.Context) error {
	region, err := a.locator.Locate(ctx, a.cfg.Window.Titles)
	if err != nil {
		return fmt.Errorf("failed to locate game window: %w", err)
	}

	a.mu.Lock()
	a.window = region
	a.mu.Unlock()

	a.logger.WithFields(logrus.Fields{
		"left":   region.Left,
		"top":    region.Top,
		"width":  region.Width,
		"height": region.Height,
	}).Info("Game window located")

	return nil
}

// Window returns the last located game window region.
func (a *Automator) Window() vision.Region {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.window
}

// Confidence returns the current template matching threshold.
func (a *Automator) Confidence() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.confidence
}

// LowerConfidence relaxes the matching threshold by one step. Recovery
// uses it when templates stop matching after a game update or scaling
// change.
func (a *Automator) LowerConfidence() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	next := a.confidence - 0.05
	if next < minConfidenceFloor {
		return fmt.Errorf("confidence threshold already at floor %.2f", minConfidenceFloor)
	}
	a.confidence = next

	a.logger.WithField("confidence", next).Warn("Template matching threshold lowered")
	return nil
}

// ResetConfidence restores the configured matching threshold.
func (a *Automator) ResetConfidence() {
	a.mu.Lock()
	a.confidence = a.cfg.ConfidenceThreshold
	a.mu.Unlock()
}

// CaptureScreen grabs the game window.
func (a *Automator) CaptureScreen(ctx context.Context) (*vision.Frame, error) {
	frame, err := a.capturer.Capture(ctx)
	if err != nil {
		return nil, fmt.Errorf("screen capture failed: %w", err)
	}
	return frame, nil
}

func (a *Automator) assetPath(template string) string {
	return filepath.Join(a.cfg.AssetDir, template)
}

// FindOnScreen captures the screen and searches it for the named
// template at the current confidence threshold.
func (a *Automator) FindOnScreen(ctx context.Context, template string) (vision.Match, error) {
	frame, err := a.CaptureScreen(ctx)
	if err != nil {
		return vision.Match{}, err
	}

	match, err := a.matcher.FindTemplate(frame, a.assetPath(template), a.Confidence())
	if err != nil {
		return vision.Match{}, err
	}

	a.logger.WithFields(logrus.Fields{
		"template":   template,
		"position":   match.Center.String(),
		"confidence": match.Confidence,
	}).Debug("Template found")

	return match, nil
}

// ClickAt clicks the given absolute screen position, then waits the
// configured click delay.
func (a *Automator) ClickAt(ctx context.Context, p vision.Point) error {
	if a.dryRun {
		a.logger.Infof("[dry-run] click at %s", p)
		return nil
	}

	if err := a.input.Click(ctx, p); err != nil {
		return fmt.Errorf("click at %s failed: %w", p, err)
	}

	a.logger.Debugf("Clicked at %s", p)
	a.sleep(a.cfg.ClickDelay)
	return nil
}

// ClickPercent clicks a window-relative position given as fractions of
// the window size (0.0 to 1.0 on both axes).
func (a *Automator) ClickPercent(ctx context.Context, xPct, yPct float64, description string) error {
	win := a.Window()
	if win.Width == 0 || win.Height == 0 {
		return fmt.Errorf("game window not located")
	}

	p := vision.Point{
		X: win.Left + int(xPct*float64(win.Width)),
		Y: win.Top + int(yPct*float64(win.Height)),
	}

	a.logger.Debugf("Clicking %s at (%.0f%%, %.0f%%)", description, xPct*100, yPct*100)
	return a.ClickAt(ctx, p)
}

// ClickImage clicks the named template's center if it is visible.
func (a *Automator) ClickImage(ctx context.Context, template string) error {
	match, err := a.FindOnScreen(ctx, template)
	if err != nil {
		return err
	}
	return a.ClickAt(ctx, match.Center)
}

// WaitForImage polls the screen until the template appears or the
// timeout elapses.
func (a *Automator) WaitForImage(ctx context.Context, template string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return err
		}

		if _, err := a.FindOnScreen(ctx, template); err == nil {
			return nil
		}

		a.sleep(a.cfg.ScreenshotDelay)
	}

	return fmt.Errorf("timed out waiting for %s: %w", template, vision.ErrTemplateNotFound)
}

// PressKey presses a key the given number of times with a pause after
// each press.
func (a *Automator) PressKey(ctx context.Context, key string, times int, delay time.Duration) error {
	for i := 0; i < times; i++ {
		if a.dryRun {
			a.logger.Infof("[dry-run] press key %q", key)
		} else if err := a.input.PressKey(ctx, key); err != nil {
			return fmt.Errorf("key press %q failed: %w", key, err)
		}
		a.sleep(delay)
	}

	a.logger.Debugf("Pressed key: %s x%d", key, times)
	return nil
}

// PressSequence presses each key in order with a fixed pause between
// presses. There is no pause after the last key.
func (a *Automator) PressSequence(ctx context.Context, keys []string, pause time.Duration) error {
	for i, key := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}

		if a.dryRun {
			a.logger.Infof("[dry-run] press key %q (%d/%d)", key, i+1, len(keys))
		} else if err := a.input.PressKey(ctx, key); err != nil {
			return fmt.Errorf("key press %q failed: %w", key, err)
		}

		if i < len(keys)-1 {
			a.sleep(pause)
		}
	}

	a.logger.Debugf("Pressed key sequence (%d keys)", len(keys))
	return nil
}

// AnalyzeScreen captures the window and asks the vision model about it.
func (a *Automator) AnalyzeScreen(ctx context.Context, prompt string) (string, error) {
	frame, err := a.CaptureScreen(ctx)
	if err != nil {
		return "", err
	}

	return a.analyzer.AnalyzeScreen(ctx, frame.PNG, prompt)
}

// IsPopupPresent asks the model whether a popup or modal dialog is
// covering the screen.
func (a *Automator) IsPopupPresent(ctx context.Context) bool {
	response, err := a.AnalyzeScreen(ctx, `Is there a popup dialog, modal, or notification visible on this screen?
Look for:
- Centered dialog boxes
- Notification popups
- Confirmation dialogs
- Overlay screens

Answer ONLY with: YES or NO`)
	if err != nil {
		a.logger.WithError(err).Debug("Popup check failed")
		return false
	}

	return strings.Contains(strings.ToUpper(response), "YES")
}

var percentCoordPattern = regexp.MustCompile(`(\d{1,3})[,.]\s*(\d{1,3})`)

// FindButtonWithAI asks the model where a described button is, as
// window-relative percentages. minY/maxY constrain the accepted
// vertical position; a detection outside the band is discarded.
func (a *Automator) FindButtonWithAI(ctx context.Context, description string, minY, maxY float64) (xPct, yPct float64, found bool) {
	prompt := fmt.Sprintf(`Find the "%s" on this SWGOH screen.

Return the coordinates of the center of the button as percentages:
- x_percent: percentage from left (0-100)
- y_percent: percentage from top (0-100)

Format: x_percent,y_percent
Example: 50,60

If button not found, return: NOT_FOUND`, description)

	response, err := a.AnalyzeScreen(ctx, prompt)
	if err != nil {
		a.logger.WithError(err).Warnf("AI button lookup failed: %s", description)
		return 0, 0, false
	}
	if strings.Contains(strings.ToUpper(response), "NOT_FOUND") {
		a.logger.Warnf("AI could not find button: %s", description)
		return 0, 0, false
	}

	m := percentCoordPattern.FindStringSubmatch(response)
	if m == nil {
		return 0, 0, false
	}

	x, _ := strconv.Atoi(m[1])
	y, _ := strconv.Atoi(m[2])
	xPct = float64(x) / 100.0
	yPct = float64(y) / 100.0

	if yPct < minY || yPct > maxY {
		a.logger.Warnf("AI found %q at %.0f%% height, outside expected band %.0f%%-%.0f%%",
			description, yPct*100, minY*100, maxY*100)
		return 0, 0, false
	}

	a.logger.Infof("AI found %q at (%.0f%%, %.0f%%)", description, xPct*100, yPct*100)
	return xPct, yPct, true
}

// ClickButtonWithAI clicks a described button at its AI-detected
// position, falling back to the given coordinates when detection fails.
func (a *Automator) ClickButtonWithAI(ctx context.Context, description string, fallbackX, fallbackY float64) error {
	if x, y, ok := a.FindButtonWithAI(ctx, description, 0, 1); ok {
		return a.ClickPercent(ctx, x, y, description)
	}

	a.logger.Warnf("Using fallback coordinates for %s", description)
	return a.ClickPercent(ctx, fallbackX, fallbackY, description+" (fallback)")
}

// NavigateHome presses escape repeatedly to unwind to the main screen.
func (a *Automator) NavigateHome(ctx context.Context) error {
	return a.PressKey(ctx, "esc", 5, 300*time.Millisecond)
}

// RecoveryHooks wires the automator's capabilities into the default
// recovery actions.
func (a *Automator) RecoveryHooks() recovery.Hooks {
	ctx := context.Background()

	return recovery.Hooks{
		RefreshScreen: func() error {
			_, err := a.CaptureScreen(ctx)
			return err
		},
		AdjustConfidence: a.LowerConfidence,
		NavigateHome: func() error {
			return a.NavigateHome(ctx)
		},
	}
}
