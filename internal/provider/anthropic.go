package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/hyperinfer/internal/model"
	"go.uber.org/zap"
)

const (
	anthropicDefaultBaseURL = "https://api.anthropic.com"
	anthropicVersion        = "2023-06-01"
	anthropicDefaultMaxTok  = 1024
)

// AnthropicCaller implements Caller against the Anthropic Messages API.
type AnthropicCaller struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewAnthropicCaller builds an AnthropicCaller with a 60-second total
// request timeout.
func NewAnthropicCaller(baseURL string, logger *zap.Logger) *AnthropicCaller {
	if baseURL == "" {
		baseURL = anthropicDefaultBaseURL
	}
	return &AnthropicCaller{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 60 * time.Second},
		logger:  logger.With(zap.String("provider", "anthropic")),
	}
}

func (c *AnthropicCaller) Name() model.Provider { return model.ProviderAnthropic }

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Temperature *float64           `json:"temperature,omitempty"`
}

type anthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicResponse struct {
	ID      string                  `json:"id"`
	Model   string                  `json:"model"`
	Content []anthropicContentBlock `json:"content"`
	Usage   anthropicUsage          `json:"usage"`
}

func (c *AnthropicCaller) Complete(ctx context.Context, apiKey, targetModel string, req *model.ChatRequest) (*model.ChatResponse, error) {
	body := anthropicRequest{
		Model:       targetModel,
		MaxTokens:   anthropicDefaultMaxTok,
		Temperature: req.Temperature,
	}
	if req.MaxTokens != nil {
		body.MaxTokens = *req.MaxTokens
	}

	systemSet := false
	for _, m := range req.Messages {
		if m.Role == model.RoleSystem {
			if !systemSet {
				body.System = m.Content
				systemSet = true
			}
			// Remaining system messages are dropped.
			continue
		}
		body.Messages = append(body.Messages, anthropicMessage{Role: string(m.Role), Content: m.Content})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, model.HTTPError("failed to encode anthropic request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, model.HTTPError("failed to build anthropic request", err)
	}
	httpReq.Header.Set("x-api-key", apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, model.HTTPError("anthropic request failed", err).WithProvider(string(model.ProviderAnthropic))
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, model.HTTPError("failed to read anthropic response", err).WithProvider(string(model.ProviderAnthropic))
	}

	if resp.StatusCode >= 400 {
		return nil, model.APIError(string(model.ProviderAnthropic), resp.StatusCode, string(rawBody))
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(rawBody, &parsed); err != nil {
		return nil, model.HTTPError("failed to decode anthropic response", err).WithProvider(string(model.ProviderAnthropic))
	}

	return toAnthropicChatResponse(parsed), nil
}

func toAnthropicChatResponse(resp anthropicResponse) *model.ChatResponse {
	var fragments []string
	for _, block := range resp.Content {
		if block.Text != "" {
			fragments = append(fragments, block.Text)
		}
	}
	finish := "stop"
	choice := model.Choice{
		Index: 0,
		Message: model.Message{
			Role:    model.RoleAssistant,
			Content: strings.Join(fragments, "\n"),
		},
		FinishReason: &finish,
	}

	return &model.ChatResponse{
		ID:      resp.ID,
		Model:   resp.Model,
		Choices: []model.Choice{choice},
		Usage: model.Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		},
	}
}
