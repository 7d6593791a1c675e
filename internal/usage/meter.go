package usage

import (
	"context"
	"log/slog"
	"time"

	"github.com/nugget/recap/internal/config"
	"github.com/nugget/recap/internal/llm"
)

type labelsKey struct{}

// labels tag the model calls made under a context.
type labels struct {
	operation string
	sessionID string
	videoID   string
}

func labelsFrom(ctx context.Context) labels {
	l, _ := ctx.Value(labelsKey{}).(labels)
	return l
}

// WithOperation tags model calls under ctx with the pipeline step that
// made them.
func WithOperation(ctx context.Context, op string) context.Context {
	l := labelsFrom(ctx)
	l.operation = op
	return context.WithValue(ctx, labelsKey{}, l)
}

// WithSession tags model calls under ctx with a Q&A session ID.
func WithSession(ctx context.Context, id string) context.Context {
	l := labelsFrom(ctx)
	l.sessionID = id
	return context.WithValue(ctx, labelsKey{}, l)
}

// WithVideo tags model calls under ctx with the video they are about.
func WithVideo(ctx context.Context, id string) context.Context {
	l := labelsFrom(ctx)
	l.videoID = id
	return context.WithValue(ctx, labelsKey{}, l)
}

// Recorder persists usage records. *Store implements it.
type Recorder interface {
	Record(ctx context.Context, rec Record) error
}

// Meter is an llm.Client that records the token usage of every
// successful call made through it.
type Meter struct {
	next    llm.Client
	rec     Recorder
	pricing map[string]config.PricingEntry
	logger  *slog.Logger
}

// NewMeter wraps next so that every call is recorded to rec.
func NewMeter(next llm.Client, rec Recorder, pricing map[string]config.PricingEntry, logger *slog.Logger) *Meter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Meter{
		next:    next,
		rec:     rec,
		pricing: pricing,
		logger:  logger.With("component", "usage"),
	}
}

// Chat implements llm.Client.
func (m *Meter) Chat(ctx context.Context, model string, messages []llm.Message, opts llm.Options) (*llm.ChatResponse, error) {
	resp, err := m.next.Chat(ctx, model, messages, opts)
	if err == nil {
		m.record(ctx, model, resp)
	}
	return resp, err
}

// ChatStream implements llm.Client.
func (m *Meter) ChatStream(ctx context.Context, model string, messages []llm.Message, opts llm.Options, callback llm.StreamCallback) (*llm.ChatResponse, error) {
	resp, err := m.next.ChatStream(ctx, model, messages, opts, callback)
	if err == nil {
		m.record(ctx, model, resp)
	}
	return resp, err
}

// Ping implements llm.Client.
func (m *Meter) Ping(ctx context.Context) error {
	return m.next.Ping(ctx)
}

// record never fails the call: a usage write error is only logged.
func (m *Meter) record(ctx context.Context, model string, resp *llm.ChatResponse) {
	if resp == nil {
		return
	}
	l := labelsFrom(ctx)
	if l.operation == "" {
		l.operation = "unlabeled"
	}

	// The request may already be cancelled once a stream finishes.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	err := m.rec.Record(writeCtx, Record{
		Operation:    l.operation,
		Model:        model,
		SessionID:    l.sessionID,
		VideoID:      l.videoID,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
		CostUSD:      ComputeCost(model, resp.InputTokens, resp.OutputTokens, m.pricing),
	})
	if err != nil {
		m.logger.Warn("failed to record usage", "model", model, "operation", l.operation, "error", err)
	}
}
