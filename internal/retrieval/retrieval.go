// Package retrieval builds an in-memory vector index over one video's
// metadata and transcript chunks and searches it with maximal marginal
// relevance.
package retrieval

import (
	"context"
	"errors"
	"fmt"

	"github.com/nugget/recap/internal/align"
	"github.com/nugget/recap/internal/chunk"
	"github.com/nugget/recap/internal/embeddings"
)

// Document kinds.
const (
	KindMetadata   = "metadata"
	KindTranscript = "transcript"
)

// embedBatchSize bounds the number of texts sent per embedding request.
const embedBatchSize = 64

// ErrEmptyIndex is returned by Build when there is nothing to index.
var ErrEmptyIndex = errors.New("retrieval: no documents to index")

// Document is one embeddable unit of text.
type Document struct {
	Kind    string `json:"kind"`
	Chapter string `json:"chapter,omitempty"`
	Text    string `json:"text"`
}

// Metadata describes the video the index is built for.
type Metadata struct {
	Title       string
	Channel     string
	PublishDate string
}

// Documents lays out the index contents: one document each for title,
// channel and publish date, then every bucket's chunks at budget in
// bucket order. Empty metadata fields are omitted.
func Documents(meta Metadata, a align.Alignment, budget int) []Document {
	var docs []Document
	add := func(prefix, v string) {
		if v != "" {
			docs = append(docs, Document{Kind: KindMetadata, Text: prefix + v})
		}
	}
	add("video title: ", meta.Title)
	add("youtube channel name: ", meta.Channel)
	add("video publish date: ", meta.PublishDate)

	for _, b := range a.Buckets {
		heading := b.Heading()
		for _, c := range chunk.Split(b.Segments(), budget) {
			docs = append(docs, Document{Kind: KindTranscript, Chapter: heading, Text: c})
		}
	}
	return docs
}

// Index holds documents with their embeddings. It is immutable after
// Build and safe for concurrent Search calls.
type Index struct {
	embedder embeddings.Embedder
	docs     []Document
	vectors  [][]float32
}

// Build embeds docs in batches and returns the index.
func Build(ctx context.Context, e embeddings.Embedder, docs []Document) (*Index, error) {
	if len(docs) == 0 {
		return nil, ErrEmptyIndex
	}

	vectors := make([][]float32, 0, len(docs))
	for start := 0; start < len(docs); start += embedBatchSize {
		end := min(start+embedBatchSize, len(docs))
		texts := make([]string, 0, end-start)
		for _, d := range docs[start:end] {
			texts = append(texts, d.Text)
		}
		vecs, err := e.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed documents %d-%d: %w", start, end-1, err)
		}
		if len(vecs) != len(texts) {
			return nil, fmt.Errorf("embed documents %d-%d: got %d vectors", start, end-1, len(vecs))
		}
		vectors = append(vectors, vecs...)
	}

	return &Index{embedder: e, docs: docs, vectors: vectors}, nil
}

// Len returns the number of indexed documents.
func (ix *Index) Len() int { return len(ix.docs) }

// SearchOptions tune MMR search. Zero fields take the defaults
// (K 10, FetchK 20, Lambda 0.5).
type SearchOptions struct {
	K      int
	FetchK int
	Lambda float64
}

func (o SearchOptions) withDefaults() SearchOptions {
	if o.K <= 0 {
		o.K = 10
	}
	if o.FetchK < o.K {
		o.FetchK = max(o.K, 20)
	}
	if o.Lambda <= 0 || o.Lambda > 1 {
		o.Lambda = 0.5
	}
	return o
}

// Search embeds query and returns up to K documents chosen by maximal
// marginal relevance, most relevant first.
func (ix *Index) Search(ctx context.Context, query string, opts SearchOptions) ([]Document, error) {
	opts = opts.withDefaults()

	vecs, err := ix.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(vecs))
	}

	picked := MMR(vecs[0], ix.vectors, opts.K, opts.FetchK, opts.Lambda)
	out := make([]Document, len(picked))
	for i, idx := range picked {
		out[i] = ix.docs[idx]
	}
	return out, nil
}

// MMR selects up to k of the fetchK vectors most similar to query,
// trading relevance against redundancy: each pick maximizes
// lambda*sim(query, d) - (1-lambda)*max sim(d, picked). lambda 1 is pure
// similarity ranking.
func MMR(query []float32, vectors [][]float32, k, fetchK int, lambda float64) []int {
	if k <= 0 || len(vectors) == 0 {
		return nil
	}
	candidates := embeddings.TopK(query, vectors, max(fetchK, k))
	if k > len(candidates) {
		k = len(candidates)
	}

	relevance := make([]float64, len(candidates))
	for i, c := range candidates {
		relevance[i] = float64(embeddings.CosineSimilarity(query, vectors[c]))
	}

	// The first pick is always the most similar candidate.
	selected := []int{0}
	used := make([]bool, len(candidates))
	used[0] = true

	for len(selected) < k {
		best, bestScore := -1, 0.0
		for i, c := range candidates {
			if used[i] {
				continue
			}
			redundancy := -1.0
			for _, s := range selected {
				if sim := float64(embeddings.CosineSimilarity(vectors[c], vectors[candidates[s]])); sim > redundancy {
					redundancy = sim
				}
			}
			score := lambda*relevance[i] - (1-lambda)*redundancy
			if best == -1 || score > bestScore {
				best, bestScore = i, score
			}
		}
		used[best] = true
		selected = append(selected, best)
	}

	out := make([]int, len(selected))
	for i, s := range selected {
		out[i] = candidates[s]
	}
	return out
}
