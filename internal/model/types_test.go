package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatRequest_Validate(t *testing.T) {
	t.Run("rejects empty model", func(t *testing.T) {
		req := &ChatRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}}
		err := req.Validate()
		require.Error(t, err)
		assert.Equal(t, ErrConfigError, CodeOf(err))
	})

	t.Run("rejects whitespace-only model", func(t *testing.T) {
		req := &ChatRequest{Model: "   ", Messages: []Message{{Role: RoleUser, Content: "hi"}}}
		require.Error(t, req.Validate())
	})

	t.Run("rejects empty messages", func(t *testing.T) {
		req := &ChatRequest{Model: "gpt-4"}
		err := req.Validate()
		require.Error(t, err)
		assert.Equal(t, ErrConfigError, CodeOf(err))
	})

	t.Run("accepts a well-formed request", func(t *testing.T) {
		req := &ChatRequest{Model: "gpt-4", Messages: []Message{{Role: RoleUser, Content: "hi"}}}
		assert.NoError(t, req.Validate())
	})
}

func TestParseProvider(t *testing.T) {
	cases := []struct {
		in   string
		want Provider
	}{
		{"openai", ProviderOpenAI},
		{"OpenAI", ProviderOpenAI},
		{"  openai  ", ProviderOpenAI},
		{"anthropic", ProviderAnthropic},
		{"ANTHROPIC", ProviderAnthropic},
		{"azure", ProviderOther},
		{"", ProviderOther},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ParseProvider(c.in), "input %q", c.in)
	}
}

func TestProvider_String(t *testing.T) {
	assert.Equal(t, "openai", ProviderOpenAI.String())
	assert.Equal(t, "anthropic", ProviderAnthropic.String())
	assert.Equal(t, "other", ProviderOther.String())
	assert.Equal(t, "other", Provider("bogus").String())
}

func TestProvider_JSONRoundTrip(t *testing.T) {
	t.Run("known tag round-trips", func(t *testing.T) {
		b, err := json.Marshal(ProviderAnthropic)
		require.NoError(t, err)
		assert.Equal(t, `"anthropic"`, string(b))

		var p Provider
		require.NoError(t, json.Unmarshal(b, &p))
		assert.Equal(t, ProviderAnthropic, p)
	})

	t.Run("unrecognized value maps to other instead of failing", func(t *testing.T) {
		var p Provider
		require.NoError(t, json.Unmarshal([]byte(`"azure-openai"`), &p))
		assert.Equal(t, ProviderOther, p)
	})

	t.Run("non-string payload still fails", func(t *testing.T) {
		var p Provider
		assert.Error(t, json.Unmarshal([]byte(`42`), &p))
	})
}

func TestConfig_Clone(t *testing.T) {
	t.Run("nil receiver returns an empty usable config", func(t *testing.T) {
		var c *Config
		clone := c.Clone()
		require.NotNil(t, clone)
		assert.Empty(t, clone.APIKeys)
		assert.Empty(t, clone.ModelAliases)
		assert.Empty(t, clone.Quotas)
	})

	t.Run("clone is independent of the original", func(t *testing.T) {
		dp := ProviderOpenAI
		original := &Config{
			APIKeys:      map[Provider]string{ProviderOpenAI: "sk-original"},
			ModelAliases: map[string]string{"fast": "gpt-4o-mini"},
			Quotas:       map[string]Quota{"team-a": {MaxRPM: ptr(uint64(60))}},
			RoutingRules: []RoutingRule{{Name: "default", Priority: 1}},
			DefaultProvider: &dp,
		}

		clone := original.Clone()

		clone.APIKeys[ProviderOpenAI] = "sk-mutated"
		clone.ModelAliases["fast"] = "mutated-model"
		clone.Quotas["team-a"] = Quota{MaxRPM: ptr(uint64(999))}
		clone.RoutingRules[0].Name = "mutated"
		*clone.DefaultProvider = ProviderAnthropic

		assert.Equal(t, "sk-original", original.APIKeys[ProviderOpenAI])
		assert.Equal(t, "gpt-4o-mini", original.ModelAliases["fast"])
		assert.Equal(t, uint64(60), *original.Quotas["team-a"].MaxRPM)
		assert.Equal(t, "default", original.RoutingRules[0].Name)
		assert.Equal(t, ProviderOpenAI, *original.DefaultProvider)
	})
}

func TestUsageRecord_Validate(t *testing.T) {
	t.Run("rejects empty key", func(t *testing.T) {
		r := &UsageRecord{Model: "gpt-4"}
		assert.Error(t, r.Validate())
	})

	t.Run("rejects whitespace-only model", func(t *testing.T) {
		r := &UsageRecord{Key: "team-a", Model: "  "}
		assert.Error(t, r.Validate())
	})

	t.Run("accepts a well-formed record", func(t *testing.T) {
		r := &UsageRecord{Key: "team-a", Model: "gpt-4", InputTokens: 10, OutputTokens: 5}
		assert.NoError(t, r.Validate())
	})
}

func ptr[T any](v T) *T { return &v }
