// Package tokencount estimates the token cost of a chat request (prompt
// tokens plus max_tokens, or a default completion allowance when max_tokens
// is unset), so internal/client has a number to pass into the rate limiter's
// TPM/GCRA admission check.
// OpenAI's cl100k_base BPE encoding is used as a cross-provider
// approximation: it is not exact for Anthropic's tokenizer, but close enough
// to keep the TPM bucket from admitting requests the gateway can't actually
// account for.
package tokencount

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/BaSui01/hyperinfer/internal/model"
)

const encodingName = "cl100k_base"

// Estimator counts tokens in a chat request's messages. The underlying
// tiktoken encoder is expensive to build, so it is built once and reused.
type Estimator struct {
	once    sync.Once
	enc     *tiktoken.Tiktoken
	buildErr error
}

// NewEstimator returns a ready-to-use Estimator. Construction is cheap; the
// actual BPE encoding tables load lazily on first Estimate call.
func NewEstimator() *Estimator {
	return &Estimator{}
}

func (e *Estimator) encoder() (*tiktoken.Tiktoken, error) {
	e.once.Do(func() {
		e.enc, e.buildErr = tiktoken.GetEncoding(encodingName)
	})
	return e.enc, e.buildErr
}

// Estimate returns the approximate prompt token count for req, plus
// req.MaxTokens (or a conservative default completion allowance if the
// caller didn't set one) — the total is what gets passed as token_cost to
// the rate limiter's TPM check.
func (e *Estimator) Estimate(req *model.ChatRequest) (uint64, error) {
	enc, err := e.encoder()
	if err != nil {
		return 0, err
	}

	var promptTokens int
	for _, msg := range req.Messages {
		// +4 per message approximates the role/delimiter overhead OpenAI's
		// own chat-completion token counting guide describes.
		promptTokens += len(enc.Encode(msg.Content, nil, nil)) + 4
	}

	completionAllowance := defaultCompletionAllowance
	if req.MaxTokens != nil && *req.MaxTokens > 0 {
		completionAllowance = *req.MaxTokens
	}

	return uint64(promptTokens + completionAllowance), nil
}

// defaultCompletionAllowance is charged against the TPM bucket when a caller
// omits max_tokens, so an unbounded completion can't silently bypass
// admission control.
const defaultCompletionAllowance = 256
