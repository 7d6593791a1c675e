package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/nugget/recap/internal/align"
	"github.com/nugget/recap/internal/chapters"
	"github.com/nugget/recap/internal/transcript"
)

// fakeEmbedder maps known texts to fixed vectors; unknown texts get a
// vector derived from their length so results stay deterministic.
type fakeEmbedder struct {
	vectors map[string][]float32
	calls   int
	err     error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := f.vectors[t]; ok {
			out[i] = v
			continue
		}
		out[i] = []float32{float32(len(t) % 7), 1, 0}
	}
	return out, nil
}

func testAlignment(t *testing.T) align.Alignment {
	t.Helper()
	markers, err := chapters.Parse([]string{"0:00 Intro", "1:00 Channels"})
	if err != nil {
		t.Fatal(err)
	}
	lines := transcript.Normalize([]transcript.Segment{
		{Start: 0, Text: "welcome to the talk"},
		{Start: 5, Text: "[Music]"},
		{Start: 30, Text: "today we cover goroutines"},
		{Start: 60, Text: "channels are typed conduits"},
		{Start: 75, Text: "select waits on many channels"},
	})
	a, err := align.Align(lines, markers)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestDocuments(t *testing.T) {
	meta := Metadata{Title: "Go Concurrency", Channel: "GopherCon", PublishDate: "2024-05-01"}
	docs := Documents(meta, testAlignment(t), 40)

	want := []Document{
		{Kind: KindMetadata, Text: "video title: Go Concurrency"},
		{Kind: KindMetadata, Text: "youtube channel name: GopherCon"},
		{Kind: KindMetadata, Text: "video publish date: 2024-05-01"},
		{Kind: KindTranscript, Chapter: "00:00 Intro", Text: "welcome to the talk"},
		{Kind: KindTranscript, Chapter: "00:00 Intro", Text: "today we cover goroutines"},
		{Kind: KindTranscript, Chapter: "01:00 Channels", Text: "channels are typed conduits"},
		{Kind: KindTranscript, Chapter: "01:00 Channels", Text: "select waits on many channels"},
	}
	if len(docs) != len(want) {
		t.Fatalf("got %d docs, want %d: %+v", len(docs), len(want), docs)
	}
	for i := range want {
		if docs[i] != want[i] {
			t.Errorf("doc %d = %+v, want %+v", i, docs[i], want[i])
		}
	}
}

func TestDocuments_LargeBudgetOneChunkPerBucket(t *testing.T) {
	docs := Documents(Metadata{}, testAlignment(t), 500)
	if len(docs) != 2 {
		t.Fatalf("got %d docs, want 2 (no metadata, one chunk per chapter)", len(docs))
	}
	if docs[0].Text != "welcome to the talk today we cover goroutines" {
		t.Errorf("intro chunk = %q", docs[0].Text)
	}
}

func TestBuild(t *testing.T) {
	var docs []Document
	for i := 0; i < 150; i++ {
		docs = append(docs, Document{Kind: KindTranscript, Text: fmt.Sprintf("chunk %d", i)})
	}
	f := &fakeEmbedder{}
	ix, err := Build(context.Background(), f, docs)
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if ix.Len() != 150 {
		t.Errorf("Len = %d, want 150", ix.Len())
	}
	if f.calls != 3 {
		t.Errorf("embed calls = %d, want 3 batches", f.calls)
	}
}

func TestBuild_Errors(t *testing.T) {
	if _, err := Build(context.Background(), &fakeEmbedder{}, nil); !errors.Is(err, ErrEmptyIndex) {
		t.Errorf("Build(nil) error = %v, want ErrEmptyIndex", err)
	}

	boom := errors.New("backend down")
	_, err := Build(context.Background(), &fakeEmbedder{err: boom}, []Document{{Text: "x"}})
	if !errors.Is(err, boom) {
		t.Errorf("Build error = %v, want wrapped backend error", err)
	}
}

func TestMMR(t *testing.T) {
	query := []float32{1, 0}
	vectors := [][]float32{
		{1, 0},     // exact match
		{1, 0},     // duplicate of the exact match
		{0.6, 0.8}, // less relevant, but different
	}

	tests := []struct {
		name   string
		k      int
		lambda float64
		want   []int
	}{
		{"pure relevance keeps duplicate", 2, 1.0, []int{0, 1}},
		{"diversity skips duplicate", 2, 0.3, []int{0, 2}},
		{"k larger than candidates", 10, 0.5, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MMR(query, vectors, tt.k, 3, tt.lambda)
			if tt.want == nil {
				if len(got) != len(vectors) {
					t.Errorf("MMR returned %d, want all %d", len(got), len(vectors))
				}
				return
			}
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("MMR = %v, want %v", got, tt.want)
			}
		})
	}

	if got := MMR(query, nil, 3, 5, 0.5); got != nil {
		t.Errorf("MMR(no vectors) = %v", got)
	}
}

func TestMMR_NoDuplicatesSelected(t *testing.T) {
	query := []float32{1, 1, 0}
	var vectors [][]float32
	for i := 0; i < 40; i++ {
		vectors = append(vectors, []float32{float32(i % 5), float32(i % 3), float32(i % 2)})
	}
	got := MMR(query, vectors, 10, 20, 0.5)
	if len(got) != 10 {
		t.Fatalf("MMR returned %d, want 10", len(got))
	}
	seen := map[int]bool{}
	for _, idx := range got {
		if seen[idx] {
			t.Fatalf("index %d selected twice: %v", idx, got)
		}
		seen[idx] = true
	}
}

func TestSearch(t *testing.T) {
	docs := []Document{
		{Kind: KindMetadata, Text: "video title: Go Concurrency"},
		{Kind: KindTranscript, Text: "channels are typed conduits"},
		{Kind: KindTranscript, Text: "the weather was nice"},
	}
	f := &fakeEmbedder{vectors: map[string][]float32{
		"video title: Go Concurrency": {0, 0, 1},
		"channels are typed conduits": {1, 0, 0},
		"the weather was nice":        {0, 1, 0},
		"what are channels?":          {0.9, 0.1, 0},
	}}

	ix, err := Build(context.Background(), f, docs)
	if err != nil {
		t.Fatal(err)
	}
	got, err := ix.Search(context.Background(), "what are channels?", SearchOptions{K: 2})
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Search returned %d docs, want 2", len(got))
	}
	if !strings.Contains(got[0].Text, "channels") {
		t.Errorf("top result = %q, want the channels chunk", got[0].Text)
	}
}

func TestSearchOptions_Defaults(t *testing.T) {
	o := SearchOptions{}.withDefaults()
	if o.K != 10 || o.FetchK != 20 || o.Lambda != 0.5 {
		t.Errorf("defaults = %+v", o)
	}
	o = SearchOptions{K: 30, Lambda: 0.8}.withDefaults()
	if o.FetchK != 30 || o.Lambda != 0.8 {
		t.Errorf("K=30 options = %+v", o)
	}
}
