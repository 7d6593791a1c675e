// Package chunk bounds transcript text to a size budget for prompts and
// embedding documents.
package chunk

import (
	"strings"
	"unicode/utf8"
)

// Split greedily packs texts into chunks joined by single spaces. A chunk
// is closed when appending the next text would push its length past
// budget, and the next chunk starts with that text. A text longer than
// budget on its own becomes its own chunk, untruncated. Empty texts are
// skipped. The result is nil when there is nothing to emit.
//
// Lengths are measured in characters (runes), not bytes. A budget of
// zero or less puts every text in its own chunk.
func Split(texts []string, budget int) []string {
	var chunks []string
	var current strings.Builder
	size := 0

	for _, t := range texts {
		if t == "" {
			continue
		}
		n := utf8.RuneCountInString(t)

		if size > 0 && size+1+n > budget {
			chunks = append(chunks, current.String())
			current.Reset()
			size = 0
		}

		if size > 0 {
			current.WriteByte(' ')
			size++
		}
		current.WriteString(t)
		size += n
	}

	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// Join reassembles chunks produced by Split.
func Join(chunks []string) string {
	return strings.Join(chunks, " ")
}
