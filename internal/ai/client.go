package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"

	"github.com/holotable/swgoh-autopilot/internal/config"
)

// ErrEmptyResponse is returned when the model produces no usable text.
var ErrEmptyResponse = errors.New("ai: model returned an empty response")

// ScreenAnalyzer is the vision model surface the decision engine and
// game modules depend on. Tests substitute a scripted implementation.
type ScreenAnalyzer interface {
	// AnalyzeScreen sends a screenshot and a prompt to the vision model
	// and returns its text response.
	AnalyzeScreen(ctx context.Context, png []byte, prompt string) (string, error)
}

// Client wraps the Gemini API for screen analysis.
type Client struct {
	client *genai.Client
	cfg    *config.AIConfig
	logger *logrus.Entry
}

// NewClient creates a Gemini client from configuration. The API key is
// read from the environment variable the configuration names.
func NewClient(ctx context.Context, cfg *config.AIConfig, logger *logrus.Entry) (*Client, error) {
	apiKey, err := cfg.APIKey()
	if err != nil {
		return nil, fmt.Errorf("ai: %w", err)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("ai: failed to create genai client: %w", err)
	}

	logger.WithField("model", cfg.Model).Info("Gemini client initialized")

	return &Client{
		client: client,
		cfg:    cfg,
		logger: logger,
	}, nil
}

// AnalyzeScreen sends the screenshot and prompt to the configured model
// and returns the raw text response.
func (c *Client) AnalyzeScreen(ctx context.Context, png []byte, prompt string) (string, error) {
	if c.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()
	}

	parts := []*genai.Part{
		genai.NewPartFromText(prompt),
		genai.NewPartFromBytes(png, "image/png"),
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.cfg.Model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("ai: screen analysis request failed: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", ErrEmptyResponse
	}

	c.logger.WithFields(logrus.Fields{
		"model":       c.cfg.Model,
		"duration_ms": time.Since(start).Milliseconds(),
		"image_bytes": len(png),
	}).Debug("Screen analysis completed")

	return text, nil
}
