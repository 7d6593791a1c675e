package chunk

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name   string
		texts  []string
		budget int
		want   []string
	}{
		{
			name:   "empty input",
			texts:  nil,
			budget: 100,
			want:   nil,
		},
		{
			name:   "only empty strings",
			texts:  []string{"", "", ""},
			budget: 100,
			want:   nil,
		},
		{
			name:   "fits in one chunk",
			texts:  []string{"hello", "world"},
			budget: 100,
			want:   []string{"hello world"},
		},
		{
			name:   "exactly at budget",
			texts:  []string{"aaaa", "bbbb"},
			budget: 9,
			want:   []string{"aaaa bbbb"},
		},
		{
			name:   "one over budget splits",
			texts:  []string{"aaaa", "bbbb"},
			budget: 8,
			want:   []string{"aaaa", "bbbb"},
		},
		{
			name:   "accumulate then flush",
			texts:  []string{"AAA", "BBB", "CCC", "DDD", "EEE"},
			budget: 7,
			want:   []string{"AAA BBB", "CCC DDD", "EEE"},
		},
		{
			name:   "oversized string stands alone",
			texts:  []string{"ab", strings.Repeat("x", 20), "cd"},
			budget: 5,
			want:   []string{"ab", strings.Repeat("x", 20), "cd"},
		},
		{
			name:   "oversized first string",
			texts:  []string{strings.Repeat("y", 12), "z"},
			budget: 10,
			want:   []string{strings.Repeat("y", 12), "z"},
		},
		{
			name:   "empty strings skipped between",
			texts:  []string{"a", "", "b"},
			budget: 100,
			want:   []string{"a b"},
		},
		{
			name:   "multibyte text counted in characters",
			texts:  []string{"ééé", "ààà"},
			budget: 7,
			want:   []string{"ééé ààà"},
		},
		{
			name:   "multibyte text one over budget",
			texts:  []string{"ééé", "ààà"},
			budget: 6,
			want:   []string{"ééé", "ààà"},
		},
		{
			name:   "zero budget",
			texts:  []string{"a", "b"},
			budget: 0,
			want:   []string{"a", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Split(tt.texts, tt.budget)
			if fmt.Sprintf("%q", got) != fmt.Sprintf("%q", tt.want) {
				t.Errorf("Split = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSplit_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	words := []string{"the", "quick", "brown", "fox", "jumps", "over", "lazy", "dog",
		strings.Repeat("long", 30), ""}

	for trial := 0; trial < 200; trial++ {
		n := rng.Intn(60)
		texts := make([]string, n)
		for i := range texts {
			texts[i] = words[rng.Intn(len(words))]
		}
		budget := 1 + rng.Intn(80)

		chunks := Split(texts, budget)

		// No chunk exceeds budget unless it is a single oversized text.
		for _, c := range chunks {
			if len(c) > budget && strings.Contains(c, " ") {
				t.Fatalf("trial %d: chunk %q (len %d) exceeds budget %d", trial, c, len(c), budget)
			}
		}

		// Rejoining reproduces the joined non-empty input exactly.
		var nonEmpty []string
		for _, s := range texts {
			if s != "" {
				nonEmpty = append(nonEmpty, s)
			}
		}
		if got, want := Join(chunks), strings.Join(nonEmpty, " "); got != want {
			t.Fatalf("trial %d: Join(Split) = %q, want %q", trial, got, want)
		}

		// Everything within budget means exactly one chunk.
		if want := strings.Join(nonEmpty, " "); len(want) > 0 && len(want) <= budget && len(chunks) != 1 {
			t.Fatalf("trial %d: total %d <= budget %d but got %d chunks", trial, len(want), budget, len(chunks))
		}
	}
}

func TestSplit_IndependentBudgets(t *testing.T) {
	texts := []string{"one", "two", "three", "four", "five", "six"}
	small := Split(texts, 8)
	large := Split(texts, 50000)

	if len(large) != 1 {
		t.Errorf("large budget produced %d chunks, want 1", len(large))
	}
	if len(small) < 2 {
		t.Errorf("small budget produced %d chunks, want several", len(small))
	}
	if texts[0] != "one" || texts[5] != "six" {
		t.Error("Split mutated its input")
	}
	if Join(small) != Join(large) {
		t.Errorf("budgets disagree on content: %q vs %q", Join(small), Join(large))
	}
}
