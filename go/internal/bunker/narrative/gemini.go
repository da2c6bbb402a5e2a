package narrative

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/mcdev12/bunker/go/internal/models"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	DefaultModel   = "gemini-2.5-flash"
)

// ErrEmptyResponse means the model answered without any text.
var ErrEmptyResponse = errors.New("model returned no text")

// Config configures the Gemini client.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// GeminiClient generates game setups and endings with the Gemini
// generateContent API.
type GeminiClient struct {
	base  *BaseClient
	model string
}

func NewGeminiClient(cfg Config) *GeminiClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	base := NewBaseClient(strings.TrimRight(cfg.BaseURL, "/"))
	base.SetHeader("Content-Type", "application/json")
	base.SetHeader("x-goog-api-key", cfg.APIKey)
	if cfg.Timeout > 0 {
		base.SetTimeout(cfg.Timeout)
	}
	return &GeminiClient{base: base, model: cfg.Model}
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

// Generate sends a single-turn prompt and returns the text of the first
// candidate.
func (c *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("/v1beta/models/%s:generateContent", c.model)
	started := time.Now()
	resp, err := c.base.Post(ctx, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	text := gjson.GetBytes(resp, "candidates.0.content.parts.0.text")
	if !text.Exists() || strings.TrimSpace(text.String()) == "" {
		if reason := gjson.GetBytes(resp, "promptFeedback.blockReason"); reason.Exists() {
			return "", fmt.Errorf("%w: blocked (%s)", ErrEmptyResponse, reason.String())
		}
		return "", ErrEmptyResponse
	}

	log.Debug().
		Str("model", c.model).
		Dur("elapsed", time.Since(started)).
		Int64("tokens", gjson.GetBytes(resp, "usageMetadata.totalTokenCount").Int()).
		Msg("narrative generated")
	return text.String(), nil
}

// GenerateSetup asks for a scenario and one character per player.
func (c *GeminiClient) GenerateSetup(ctx context.Context, playerCount int) (*models.GameSetup, error) {
	text, err := c.Generate(ctx, setupPrompt(playerCount))
	if err != nil {
		return nil, err
	}
	return ParseSetup(text, playerCount)
}

// GenerateEnding asks for the story of how the survivors fare.
func (c *GeminiClient) GenerateEnding(ctx context.Context, scenario models.Scenario, survivors []models.Survivor) (string, error) {
	prompt, err := endingPrompt(scenario, survivors)
	if err != nil {
		return "", err
	}
	text, err := c.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
