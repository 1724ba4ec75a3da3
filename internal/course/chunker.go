package course

import (
	"fmt"
	"regexp"
	"strings"
)

// Chunker performs sentence-aware splitting of section text into
// segments of a target character budget with a fixed character overlap
// between consecutive segments. A sentence is only split mid-way when
// it alone exceeds the budget.
type Chunker struct {
	size    int
	overlap int
}

var sentenceEnd = regexp.MustCompile(`(?s)(.*?[.!?])(?:\s+|$)`)

// NewChunker returns a Chunker with the given character budget and
// overlap. Non-positive size falls back to 800, negative overlap to 0.
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = 800
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 2
	}
	return &Chunker{size: size, overlap: overlap}
}

// SplitText splits text into chunks of at most the configured budget,
// breaking on sentence boundaries. Consecutive chunks share trailing
// sentences amounting to roughly the configured overlap.
func (c *Chunker) SplitText(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	sentences := splitSentences(text)
	var split []string
	for _, s := range sentences {
		split = append(split, hardSplit(s, c.size)...)
	}
	sentences = split

	var chunks []string
	i := 0
	for i < len(sentences) {
		end := i
		length := 0
		for end < len(sentences) {
			add := len(sentences[end])
			if end > i {
				add++ // joining space
			}
			if length+add > c.size && end > i {
				break
			}
			length += add
			end++
		}
		chunks = append(chunks, strings.Join(sentences[i:end], " "))
		if end >= len(sentences) {
			break
		}

		// Back up over trailing sentences until roughly the overlap
		// budget is covered, without revisiting the whole chunk.
		next := end
		covered := 0
		for next > i+1 && covered < c.overlap {
			next--
			covered += len(sentences[next]) + 1
		}
		i = next
	}
	return chunks
}

// splitSentences breaks text on ., ! and ? followed by whitespace.
// Text with no terminal punctuation comes back as a single sentence.
func splitSentences(text string) []string {
	matches := sentenceEnd.FindAllStringSubmatch(text, -1)
	var sentences []string
	consumed := 0
	for _, m := range matches {
		s := strings.TrimSpace(m[1])
		if s != "" {
			sentences = append(sentences, s)
		}
		consumed += len(m[0])
	}
	if rest := strings.TrimSpace(text[consumed:]); rest != "" {
		sentences = append(sentences, rest)
	}
	if len(sentences) == 0 {
		sentences = []string{text}
	}
	return sentences
}

// hardSplit cuts a single oversized sentence into budget-sized pieces,
// preferring to break at a space near the limit.
func hardSplit(s string, size int) []string {
	if len(s) <= size {
		return []string{s}
	}
	var parts []string
	for len(s) > size {
		cut := strings.LastIndex(s[:size], " ")
		if cut <= 0 {
			cut = size
		}
		parts = append(parts, strings.TrimSpace(s[:cut]))
		s = strings.TrimSpace(s[cut:])
	}
	if s != "" {
		parts = append(parts, s)
	}
	return parts
}

// ContextPrefix is the identifying context injected at the front of
// every chunk before embedding.
func ContextPrefix(courseTitle string, lessonNumber *int) string {
	if lessonNumber != nil {
		return fmt.Sprintf("Course %s Lesson %d content: ", courseTitle, *lessonNumber)
	}
	return fmt.Sprintf("Course %s content: ", courseTitle)
}
