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

const openAIDefaultBaseURL = "https://api.openai.com"

// OpenAICaller implements Caller against the OpenAI chat completions API.
type OpenAICaller struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewOpenAICaller builds an OpenAICaller with a 60-second total request
// timeout. baseURL overrides the default for testing; pass "" to use the
// production endpoint.
func NewOpenAICaller(baseURL string, logger *zap.Logger) *OpenAICaller {
	if baseURL == "" {
		baseURL = openAIDefaultBaseURL
	}
	return &OpenAICaller{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 60 * time.Second},
		logger:  logger.With(zap.String("provider", "openai")),
	}
}

func (c *OpenAICaller) Name() model.Provider { return model.ProviderOpenAI }

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature *float64        `json:"temperature,omitempty"`
	MaxTokens   *int            `json:"max_tokens,omitempty"`
}

type openAIChoice struct {
	Index        int           `json:"index"`
	Message      openAIMessage `json:"message"`
	FinishReason *string       `json:"finish_reason"`
}

type openAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type openAIResponse struct {
	ID      string         `json:"id"`
	Model   string         `json:"model"`
	Choices []openAIChoice `json:"choices"`
	Usage   openAIUsage    `json:"usage"`
}

func (c *OpenAICaller) Complete(ctx context.Context, apiKey, targetModel string, req *model.ChatRequest) (*model.ChatResponse, error) {
	body := openAIRequest{
		Model:       targetModel,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	for _, m := range req.Messages {
		body.Messages = append(body.Messages, openAIMessage{Role: string(m.Role), Content: m.Content})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, model.HTTPError("failed to encode openai request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, model.HTTPError("failed to build openai request", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, model.HTTPError("openai request failed", err).WithProvider(string(model.ProviderOpenAI))
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, model.HTTPError("failed to read openai response", err).WithProvider(string(model.ProviderOpenAI))
	}

	if resp.StatusCode >= 400 {
		return nil, model.APIError(string(model.ProviderOpenAI), resp.StatusCode, string(rawBody))
	}

	var parsed openAIResponse
	if err := json.Unmarshal(rawBody, &parsed); err != nil {
		return nil, model.HTTPError("failed to decode openai response", err).WithProvider(string(model.ProviderOpenAI))
	}

	return toOpenAIChatResponse(parsed, c.logger), nil
}

func toOpenAIChatResponse(resp openAIResponse, logger *zap.Logger) *model.ChatResponse {
	choices := make([]model.Choice, 0, len(resp.Choices))
	for _, ch := range resp.Choices {
		role := model.Role(ch.Message.Role)
		switch role {
		case model.RoleSystem, model.RoleUser, model.RoleAssistant:
		default:
			logger.Warn("openai response contained unknown role, defaulting to assistant",
				zap.String("role", ch.Message.Role))
			role = model.RoleAssistant
		}
		choices = append(choices, model.Choice{
			Index:        ch.Index,
			Message:      model.Message{Role: role, Content: ch.Message.Content},
			FinishReason: ch.FinishReason,
		})
	}

	return &model.ChatResponse{
		ID:      resp.ID,
		Model:   resp.Model,
		Choices: choices,
		Usage: model.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}
}

