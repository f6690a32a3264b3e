package game

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/holotable/swgoh-autopilot/internal/config"
	"github.com/holotable/swgoh-autopilot/internal/logging"
	"github.com/holotable/swgoh-autopilot/internal/recovery"
	"github.com/holotable/swgoh-autopilot/internal/vision"
)

type stubCapturer struct {
	err error
}

func (c *stubCapturer) Capture(ctx context.Context) (*vision.Frame, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &vision.Frame{PNG: []byte("png"), Width: 1952, Height: 1096}, nil
}

func (c *stubCapturer) CaptureRegion(ctx context.Context, region vision.Region) (*vision.Frame, error) {
	return c.Capture(ctx)
}

// stubMatcher resolves templates by base name, e.g. "auto_button.png".
type stubMatcher struct {
	matches map[string]vision.Match
}

func (m *stubMatcher) FindTemplate(frame *vision.Frame, templatePath string, minConfidence float64) (vision.Match, error) {
	match, ok := m.matches[filepath.Base(templatePath)]
	if !ok || match.Confidence < minConfidence {
		return vision.Match{}, vision.ErrTemplateNotFound
	}
	return match, nil
}

type stubInput struct {
	clicks []vision.Point
	keys   []string
	err    error
}

func (i *stubInput) Click(ctx context.Context, p vision.Point) error {
	if i.err != nil {
		return i.err
	}
	i.clicks = append(i.clicks, p)
	return nil
}

func (i *stubInput) PressKey(ctx context.Context, key string) error {
	if i.err != nil {
		return i.err
	}
	i.keys = append(i.keys, key)
	return nil
}

type stubLocator struct {
	region vision.Region
	err    error
}

func (l *stubLocator) Locate(ctx context.Context, titles []string) (vision.Region, error) {
	if l.err != nil {
		return vision.Region{}, l.err
	}
	return l.region, nil
}

// stubAnalyzer answers prompts via a prompt-substring lookup table.
type stubAnalyzer struct {
	answers map[string]string
	err     error
	prompts []string
}

func (a *stubAnalyzer) AnalyzeScreen(ctx context.Context, png []byte, prompt string) (string, error) {
	a.prompts = append(a.prompts, prompt)
	if a.err != nil {
		return "", a.err
	}
	for needle, answer := range a.answers {
		if strings.Contains(prompt, needle) {
			return answer, nil
		}
	}
	return "NO", nil
}

type testHarness struct {
	auto     *Automator
	input    *stubInput
	matcher  *stubMatcher
	analyzer *stubAnalyzer
	sleeps   *int
}

func newTestHarness() *testHarness {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.PanicLevel)
	entry := logrus.NewEntry(logger)

	cfg := config.DefaultAutomationConfig()

	logCfg := config.DefaultLoggingConfig()
	logCfg.Console = false
	session := logging.NewSessionLogger(logger, logCfg)

	input := &stubInput{}
	matcher := &stubMatcher{matches: map[string]vision.Match{}}
	analyzer := &stubAnalyzer{answers: map[string]string{}}

	mgr := recovery.NewManager(entry, map[recovery.Category][]recovery.Action{})

	auto := NewAutomator(cfg, Deps{
		Capturer: &stubCapturer{},
		Matcher:  matcher,
		Input:    input,
		Locator:  &stubLocator{region: vision.Region{Left: 100, Top: 50, Width: 1952, Height: 1096}},
		Analyzer: analyzer,
		Session:  session,
		Recovery: mgr,
	}, entry)

	sleeps := 0
	auto.sleep = func(time.Duration) { sleeps++ }

	return &testHarness{
		auto:     auto,
		input:    input,
		matcher:  matcher,
		analyzer: analyzer,
		sleeps:   &sleeps,
	}
}
