// Package model holds the gateway's wire-level data model: chat
// request/response shapes, the policy Config snapshot, the Provider tag,
// and the usage record emitted by every completed call.
package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Role is a chat message role.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn in a ChatRequest's conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the data-plane entry point's request shape.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
}

// Validate enforces the invariant that model and messages are non-empty.
func (r *ChatRequest) Validate() error {
	if strings.TrimSpace(r.Model) == "" {
		return ConfigError("model must not be empty")
	}
	if len(r.Messages) == 0 {
		return ConfigError("messages must not be empty")
	}
	return nil
}

// Choice is one completion alternative in a ChatResponse.
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason *string `json:"finish_reason,omitempty"`
}

// Usage reports token accounting for a single completion.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ChatResponse is produced by the provider caller and returned to the
// caller unmodified.
type ChatResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Provider is a closed tag set with Other as the forward-compatible
// catch-all: any unrecognized string deserializes to Other rather than
// failing.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderOther     Provider = "other"
)

// ParseProvider normalizes s to a known Provider tag, falling back to
// ProviderOther for anything unrecognized.
func ParseProvider(s string) Provider {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(ProviderOpenAI):
		return ProviderOpenAI
	case string(ProviderAnthropic):
		return ProviderAnthropic
	default:
		return ProviderOther
	}
}

// String implements fmt.Stringer, returning the canonical lowercase tag
// ("openai"/"anthropic"/"other").
func (p Provider) String() string {
	switch p {
	case ProviderOpenAI, ProviderAnthropic:
		return string(p)
	default:
		return string(ProviderOther)
	}
}

// UnmarshalJSON accepts any JSON string, mapping unrecognized values to
// ProviderOther instead of failing the decode.
func (p *Provider) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*p = ParseProvider(s)
	return nil
}

// MarshalJSON emits the canonical lowercase tag.
func (p Provider) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// RoutingRule is an ordered fallback rule; the router itself does
// not currently consume fallback_models (the chat path never retries), but
// the field is carried through the config snapshot for forward
// compatibility and admin-surface visibility.
type RoutingRule struct {
	Name           string   `json:"name"`
	Priority       uint32   `json:"priority"`
	FallbackModels []string `json:"fallback_models"`
}

// Quota holds per-scope-key limits. internal/client does not read
// Config.Quotas: every request is admitted against the rate limiter's
// defaults (60 RPM / 100000 TPM), whatever quotas the snapshot carries.
type Quota struct {
	MaxRPM      *uint64 `json:"max_requests_per_minute,omitempty"`
	MaxTPM      *uint64 `json:"max_tokens_per_minute,omitempty"`
	BudgetCents *uint64 `json:"budget_cents,omitempty"`
}

// Config is the authoritative policy snapshot. APIKeys is
// deliberately excluded from JSON in both directions: it is only ever
// populated from process-local environment/configuration sources and must
// never traverse the pub/sub channel or the snapshot key.
type Config struct {
	APIKeys         map[Provider]string `json:"-"`
	ModelAliases    map[string]string   `json:"model_aliases"`
	RoutingRules    []RoutingRule       `json:"routing_rules"`
	Quotas          map[string]Quota    `json:"quotas"`
	DefaultProvider *Provider           `json:"default_provider,omitempty"`
}

// NewConfig returns an empty, safe-to-use default snapshot.
func NewConfig() *Config {
	return &Config{
		APIKeys:      make(map[Provider]string),
		ModelAliases: make(map[string]string),
		Quotas:       make(map[string]Quota),
	}
}

// Clone returns a deep-enough copy safe to hand to a caller outside the
// config manager's read lock: readers clone out the fields they need and
// release the lock immediately.
func (c *Config) Clone() *Config {
	if c == nil {
		return NewConfig()
	}
	clone := &Config{
		APIKeys:      make(map[Provider]string, len(c.APIKeys)),
		ModelAliases: make(map[string]string, len(c.ModelAliases)),
		Quotas:       make(map[string]Quota, len(c.Quotas)),
		RoutingRules: append([]RoutingRule(nil), c.RoutingRules...),
	}
	for k, v := range c.APIKeys {
		clone.APIKeys[k] = v
	}
	for k, v := range c.ModelAliases {
		clone.ModelAliases[k] = v
	}
	for k, v := range c.Quotas {
		clone.Quotas[k] = v
	}
	if c.DefaultProvider != nil {
		dp := *c.DefaultProvider
		clone.DefaultProvider = &dp
	}
	return clone
}

// UsageRecord is the flattened stream entry emitted by the telemetry
// producer and consumed by the telemetry consumer.
type UsageRecord struct {
	Key            string
	Model          string
	InputTokens    uint32
	OutputTokens   uint32
	ResponseTimeMs uint64
	TimestampMs    uint64
}

// Validate rejects records with empty/whitespace key or model (the
// parse-validation rule; numeric range validation happens at parse time in
// internal/telemetry since the wire format there is decimal strings).
func (r *UsageRecord) Validate() error {
	if strings.TrimSpace(r.Key) == "" {
		return fmt.Errorf("usage record: key must not be empty")
	}
	if strings.TrimSpace(r.Model) == "" {
		return fmt.Errorf("usage record: model must not be empty")
	}
	return nil
}
