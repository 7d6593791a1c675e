package llm

import (
	"log/slog"
	"time"
)

// LevelTrace is below Debug, used for wire-level payload logging.
const LevelTrace = slog.Level(-8)

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a chat message for the LLM.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options are sampling parameters applied to one request. The zero value
// asks for deterministic output with the provider's default length limit.
type Options struct {
	Temperature float64
	MaxTokens   int
}

// DefaultOptions are used for recaps and answers: greedy decoding with
// room for a long summary.
var DefaultOptions = Options{Temperature: 0, MaxTokens: 2000}

// ChatResponse is the unified response from any LLM provider.
// Wire format conversion happens at provider boundaries.
type ChatResponse struct {
	Model     string
	CreatedAt time.Time
	Message   Message
	Done      bool

	InputTokens  int
	OutputTokens int

	// Timing (populated when available)
	TotalDuration time.Duration
	LoadDuration  time.Duration
	EvalDuration  time.Duration
}

// StreamCallback receives each text token as it arrives.
type StreamCallback func(token string)
