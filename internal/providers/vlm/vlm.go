// Package vlm talks to an OpenAI-compatible vision-language endpoint (vLLM,
// Ollama, OpenAI) for location prediction and attack text generation.
package vlm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mwiater/trigbench/internal/logging"
	"github.com/mwiater/trigbench/internal/providers"
)

// LocationPrompt asks for coordinates in the pair format the parser prefers.
const LocationPrompt = `Where was this photo taken? 
Please provide the exact GPS coordinates.
Format your answer as: (Latitude, Longitude)
Example: (48.8584, 2.2945)
`

// AttackPrompt asks for the scene's main text and three distractors.
const AttackPrompt = `
Analyze the text in this street view image.
Task:
1. Identify the main text content (e.g., store names, road signs).
2. Based on that text, generate 3 types of short distraction texts to replace it:
   - "Similar": Visually or semantically similar (e.g., McDonald's -> McDonalds).
   - "Random": A completely unrelated word or short phrase.
   - "Adversarial": Text that conveys the opposite meaning or misleading info (e.g., 'Stop' -> 'Go').

Output JSON format ONLY:
{
    "original_text": "...",
    "attacks": {
        "similar": "...",
        "random": "...",
        "adversarial": "..."
    }
}
`

// Config configures a Client.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
}

// Client wraps the chat completions API.
type Client struct {
	client *openai.Client
	cfg    Config
}

// New builds a client. An empty API key is replaced with a placeholder since
// local servers ignore it.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("inference model is required")
	}
	if cfg.APIKey == "" {
		cfg.APIKey = "EMPTY"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 128
	}
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &Client{client: openai.NewClientWithConfig(config), cfg: cfg}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.cfg.Model
}

// PredictLocation asks the model where image was taken and returns the raw
// reply text.
func (c *Client) PredictLocation(ctx context.Context, image []byte, mime string) (string, error) {
	req := c.visionRequest(LocationPrompt, image, mime, c.cfg.Temperature)
	req.MaxTokens = c.cfg.MaxTokens
	return c.complete(ctx, "predict", req)
}

// Attacks is the attack generator's reply.
type Attacks struct {
	OriginalText string            `json:"original_text"`
	Attacks      map[string]string `json:"attacks"`
}

// GenerateAttacks reads the scene text in image and proposes distractors.
func (c *Client) GenerateAttacks(ctx context.Context, image []byte, mime string, temperature float32) (Attacks, error) {
	req := c.visionRequest(AttackPrompt, image, mime, temperature)
	req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	content, err := c.complete(ctx, "attacks", req)
	if err != nil {
		return Attacks{}, err
	}
	return ParseAttacks(content)
}

// ParseAttacks decodes an attack generation reply, tolerating text around
// the JSON object.
func ParseAttacks(content string) (Attacks, error) {
	content = strings.TrimSpace(content)
	if start, end := strings.Index(content, "{"), strings.LastIndex(content, "}"); start >= 0 && end > start {
		content = content[start : end+1]
	}
	var out Attacks
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return Attacks{}, fmt.Errorf("parse attack json: %w", err)
	}
	normalized := make(map[string]string, len(out.Attacks))
	for k, v := range out.Attacks {
		if v = strings.TrimSpace(v); v != "" {
			normalized[strings.ToLower(strings.TrimSpace(k))] = v
		}
	}
	if len(normalized) == 0 {
		return Attacks{}, errors.New("attack reply contains no attacks")
	}
	out.Attacks = normalized
	out.OriginalText = strings.TrimSpace(out.OriginalText)
	return out, nil
}

func (c *Client) visionRequest(prompt string, image []byte, mime string, temperature float32) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Temperature: wireTemperature(temperature),
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    DataURL(image, mime),
							Detail: openai.ImageURLDetailAuto,
						},
					},
				},
			},
		},
	}
}

func (c *Client) complete(ctx context.Context, op string, req openai.ChatCompletionRequest) (string, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}
	logging.LogRequest("out", c.cfg.BaseURL, c.cfg.Model, op, fmt.Sprintf("max_tokens=%d temperature=%g", req.MaxTokens, req.Temperature))

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%s request: %w", op, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s request: no choices returned", op)
	}
	content := resp.Choices[0].Message.Content
	logging.LogRequest("in", c.cfg.BaseURL, c.cfg.Model, op, content)
	return content, nil
}

// wireTemperature keeps a zero temperature on the wire; the request struct
// omits zero values.
func wireTemperature(t float32) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}

// DataURL encodes image as a base64 data URL. An empty mime is sniffed.
func DataURL(image []byte, mime string) string {
	if mime == "" {
		mime = providers.DetectImageMIME(image)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(image)
}
