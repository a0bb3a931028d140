// Package router translates a caller-supplied model identifier into a
// concrete (target_model, provider) pair. It holds no store
// references; every call is a pure function of the config snapshot handed
// to it and the input model string. The prefix-matching core follows a
// descending-length, first-match-wins convention.
package router

import (
	"fmt"
	"sort"
	"strings"

	"github.com/BaSui01/hyperinfer/internal/model"
	"go.uber.org/zap"
)

type prefixRule struct {
	prefix   string
	provider model.Provider
}

// staticPrefixRules covers the known model prefixes: gpt-*, o1-*, o3-*
// infer OpenAI; claude-* infers Anthropic. Sorted by descending prefix
// length so the longest (most specific) prefix wins first, even though
// these particular prefixes don't currently overlap.
var staticPrefixRules = sortedPrefixRules([]prefixRule{
	{prefix: "gpt-", provider: model.ProviderOpenAI},
	{prefix: "o1-", provider: model.ProviderOpenAI},
	{prefix: "o3-", provider: model.ProviderOpenAI},
	{prefix: "claude-", provider: model.ProviderAnthropic},
})

func sortedPrefixRules(rules []prefixRule) []prefixRule {
	sorted := make([]prefixRule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].prefix) > len(sorted[j].prefix)
	})
	return sorted
}

// Router resolves model identifiers against a Config snapshot.
type Router struct {
	logger *zap.Logger
}

// New builds a Router. It is stateless beyond the static prefix table;
// a Router value is safe for concurrent use and cheap to construct.
func New(logger *zap.Logger) *Router {
	return &Router{logger: logger.With(zap.String("component", "router"))}
}

// Resolve applies a four-step resolution order: alias lookup, prefix
// inference, default provider, unknown-model error.
func (r *Router) Resolve(requested string, cfg *model.Config) (targetModel string, provider model.Provider, err error) {
	if cfg == nil {
		cfg = model.NewConfig()
	}

	if aliasTarget, ok := cfg.ModelAliases[requested]; ok {
		target, resolvedProvider, explicit, valid := splitAliasTarget(aliasTarget)
		if explicit && !valid {
			r.logger.Warn("alias target names an unknown provider, ignoring alias",
				zap.String("alias", requested), zap.String("target", aliasTarget))
			// Falls through to resolve the original requested string as if
			// the alias did not exist.
		} else if explicit {
			return target, resolvedProvider, nil
		} else {
			if p, ok := inferProvider(target); ok {
				return target, p, nil
			}
			if cfg.DefaultProvider != nil {
				return target, *cfg.DefaultProvider, nil
			}
			return "", "", unknownModelError(requested)
		}
	}

	if p, ok := inferProvider(requested); ok {
		return requested, p, nil
	}
	if cfg.DefaultProvider != nil {
		return requested, *cfg.DefaultProvider, nil
	}
	return "", "", unknownModelError(requested)
}

// splitAliasTarget parses an alias target of the form "[provider/]model".
// explicit reports whether a "provider/" prefix was present at all; valid
// reports whether that prefix (when present) names a known provider. When
// explicit is false, target is the whole input and provider is the zero
// value (callers must infer).
func splitAliasTarget(raw string) (target string, provider model.Provider, explicit bool, valid bool) {
	idx := strings.Index(raw, "/")
	if idx < 0 {
		return raw, "", false, false
	}
	prefix, rest := raw[:idx], raw[idx+1:]
	switch strings.ToLower(prefix) {
	case string(model.ProviderOpenAI):
		return rest, model.ProviderOpenAI, true, true
	case string(model.ProviderAnthropic):
		return rest, model.ProviderAnthropic, true, true
	default:
		return rest, "", true, false
	}
}

// inferProvider applies the static prefix table.
func inferProvider(modelID string) (model.Provider, bool) {
	if modelID == "" {
		return "", false
	}
	for _, rule := range staticPrefixRules {
		if strings.HasPrefix(modelID, rule.prefix) {
			return rule.provider, true
		}
	}
	return "", false
}

func unknownModelError(requested string) *model.Error {
	return model.ConfigError(fmt.Sprintf("unknown model: %q", requested))
}
