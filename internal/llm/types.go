// Package llm adapts external language-model APIs into the two narrow
// capabilities the dialogue core needs: intent classification and
// natural-language response composition. Providers are interchangeable
// and every call degrades gracefully when the API misbehaves.
package llm

import (
	"context"
	"time"

	"github.com/agendia/sofia/pkg/types"
)

// ProviderType identifies a model API.
type ProviderType string

const (
	ProviderGemini ProviderType = "gemini"
	ProviderOpenAI ProviderType = "openai"
)

// CompletionRequest is a single prompt/response exchange. History, when
// present, is rendered into the prompt by the caller.
type CompletionRequest struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Provider generates a text completion. Implementations must honor the
// request context and bound their own HTTP timeouts.
type Provider interface {
	Name() ProviderType
	Complete(ctx context.Context, req *CompletionRequest) (string, error)
	Validate() error
}

// ProviderConfig configures one provider instance.
type ProviderConfig struct {
	Type    ProviderType
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// Params are the slot values a classification extracted from a message.
// Empty strings mean "not mentioned".
type Params struct {
	Title     string `json:"title"`
	Date      string `json:"date"`
	DateEnd   string `json:"date_end"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	ID        string `json:"id"`
	NewTitle  string `json:"new_title"`
}

// Analysis is the validated result of intent classification. Malformed
// model output never surfaces here; the classifier falls back to keyword
// matching and reports that in Fallback.
type Analysis struct {
	Intent   types.Intent `json:"intent"`
	Params   Params       `json:"params"`
	Fallback bool         `json:"fallback,omitempty"`
}
