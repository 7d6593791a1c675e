package recap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nugget/recap/internal/llm"
	"github.com/nugget/recap/internal/prompts"
	"github.com/nugget/recap/internal/retrieval"
	"github.com/nugget/recap/internal/usage"
)

// ErrNoEmbedder is returned by Ask when the service has no embedder.
var ErrNoEmbedder = errors.New("question answering requires an embeddings backend")

// ErrEmptyQuestion is returned by Ask for a blank question.
var ErrEmptyQuestion = errors.New("question is empty")

// Conversation is the per-session question answering state. The zero
// value is ready to use; the first Ask indexes the video.
type Conversation struct {
	URL     string
	Info    Info
	Index   *retrieval.Index
	History []prompts.Turn
}

// Answer is the result of Ask.
type Answer struct {
	Question string `json:"question"`

	// Standalone is the condensed question used for retrieval. It equals
	// Question on the first turn.
	Standalone string               `json:"standalone_question"`
	Answer     string               `json:"answer"`
	Sources    []retrieval.Document `json:"sources"`
}

// Index fetches the video and builds its retrieval index.
func (s *Service) Index(ctx context.Context, rawURL string) (*retrieval.Index, Info, error) {
	if s.embedder == nil {
		return nil, Info{}, ErrNoEmbedder
	}
	p, err := s.Load(ctx, rawURL)
	if err != nil {
		return nil, Info{}, err
	}

	meta := retrieval.Metadata{
		Title:       p.Video.Title,
		Channel:     p.Video.Channel,
		PublishDate: p.Video.UploadDate,
	}
	docs := retrieval.Documents(meta, p.Alignment, s.cfg.EmbedBudget)
	ix, err := retrieval.Build(ctx, s.embedder, docs)
	if err != nil {
		return nil, Info{}, fmt.Errorf("index %s: %w", rawURL, err)
	}

	s.logger.Info("video indexed", "id", p.Video.ID, "documents", ix.Len())
	return ix, p.Info(), nil
}

// Ask answers question about the video at rawURL using the conversation's
// history. When the conversation is about a different video (or none
// yet), the video is indexed first and the history starts over. If
// callback is non-nil the answer is streamed to it token by token. The
// completed turn is appended to conv.History.
func (s *Service) Ask(ctx context.Context, conv *Conversation, rawURL, question string, callback llm.StreamCallback) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	if conv.Index == nil || conv.URL != rawURL {
		ix, info, err := s.Index(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		*conv = Conversation{URL: rawURL, Info: info, Index: ix}
	}

	ctx = usage.WithVideo(ctx, conv.Info.ID)
	standalone := question
	if len(conv.History) > 0 {
		q, err := s.complete(ctx, opCondense, s.cfg.QAModel, prompts.CondenseQuestionPrompt(conv.History, question))
		if err != nil {
			return nil, fmt.Errorf("condense question: %w", err)
		}
		standalone = q
		s.logger.Debug("question condensed", "question", question, "standalone", standalone)
	}

	docs, err := conv.Index.Search(ctx, standalone, s.cfg.Search)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}

	msgs := []llm.Message{{Role: llm.RoleUser, Content: prompts.AnswerPrompt(conv.Info.Title, texts, standalone)}}
	resp, err := s.llm.ChatStream(usage.WithOperation(ctx, opAnswer), s.cfg.QAModel, msgs, s.cfg.Options, callback)
	if err != nil {
		return nil, fmt.Errorf("answer: %w", err)
	}
	answer := strings.TrimSpace(resp.Message.Content)

	conv.History = append(conv.History, prompts.Turn{Question: question, Answer: answer})

	return &Answer{
		Question:   question,
		Standalone: standalone,
		Answer:     answer,
		Sources:    docs,
	}, nil
}
