// Package llm wraps an OpenAI-compatible chat API for structured JSON output.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ErrEmptyResponse is returned when the model produced no choices.
var ErrEmptyResponse = errors.New("llm: empty response")

// Config selects the endpoint and model.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Client issues JSON-schema constrained chat completions.
type Client struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewClient builds a client. An empty BaseURL uses the OpenAI default.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	return &Client{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
		logger: logger,
	}
}

// JSONRequest is one structured completion.
type JSONRequest struct {
	Name        string
	System      string
	Prompt      string
	Schema      *Schema
	MaxTokens   int
	Temperature float32
}

// CompleteJSON runs req and decodes the model's JSON answer into out.
func (c *Client) CompleteJSON(ctx context.Context, req JSONRequest, out any) error {
	chat := openai.ChatCompletionRequest{
		Model:       c.model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   req.Name,
				Strict: true,
				Schema: req.Schema,
			},
		},
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, chat)
	latency := time.Since(start)
	if err != nil {
		c.logger.Error("llm request failed", zap.String("name", req.Name), zap.Duration("latency", latency), zap.Error(err))
		return fmt.Errorf("llm %s: %w", req.Name, err)
	}
	if len(resp.Choices) == 0 {
		return ErrEmptyResponse
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), out); err != nil {
		c.logger.Warn("llm returned invalid json", zap.String("name", req.Name), zap.Error(err))
		return fmt.Errorf("llm %s: decode: %w", req.Name, err)
	}
	c.logger.Debug("llm completion",
		zap.String("name", req.Name),
		zap.Duration("latency", latency),
		zap.Int("tokens", resp.Usage.TotalTokens),
	)
	return nil
}

// Schema is the subset of JSON Schema accepted by strict structured outputs.
type Schema struct {
	Type                 string             `json:"type"`
	Description          string             `json:"description,omitempty"`
	Properties           map[string]*Schema `json:"properties,omitempty"`
	Required             []string           `json:"required,omitempty"`
	Items                *Schema            `json:"items,omitempty"`
	Enum                 []string           `json:"enum,omitempty"`
	AdditionalProperties *bool              `json:"additionalProperties,omitempty"`
}

func (s *Schema) MarshalJSON() ([]byte, error) {
	type alias Schema
	return json.Marshal((*alias)(s))
}

// Object builds a closed object schema requiring every property.
func Object(props map[string]*Schema) *Schema {
	required := make([]string, 0, len(props))
	for name := range props {
		required = append(required, name)
	}
	sort.Strings(required)
	closed := false
	return &Schema{Type: "object", Properties: props, Required: required, AdditionalProperties: &closed}
}

// Array builds an array schema.
func Array(items *Schema) *Schema { return &Schema{Type: "array", Items: items} }

// String builds a string schema.
func String(desc string) *Schema { return &Schema{Type: "string", Description: desc} }

// Integer builds an integer schema.
func Integer(desc string) *Schema { return &Schema{Type: "integer", Description: desc} }

// Enum builds a string schema restricted to values.
func Enum(values ...string) *Schema { return &Schema{Type: "string", Enum: values} }
