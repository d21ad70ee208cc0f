// Package chunk splits normalized text into overlapping segments sized for
// embedding.
package chunk

import "strings"

const (
	DefaultMaxSize = 1000
	DefaultOverlap = 200
)

// Chunk is one contiguous slice of the source text. Start and End are rune
// offsets into the source; Text is exactly the runes in [Start, End).
type Chunk struct {
	Text    string
	Ordinal int
	Start   int
	End     int
}

// Splitter produces chunks of at most maxSize runes where consecutive chunks
// share overlap runes. Splits prefer paragraph breaks, then sentence ends,
// then whitespace, and only cut mid-word as a last resort.
type Splitter struct {
	maxSize int
	overlap int
}

func NewSplitter(maxSize, overlap int) *Splitter {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}
	if overlap >= maxSize {
		overlap = maxSize / 2
	}
	return &Splitter{maxSize: maxSize, overlap: overlap}
}

// Split chunks text. Empty or whitespace-only input yields no chunks. Every
// rune of the input appears in at least one chunk, and chunk ranges increase
// monotonically with exactly the configured overlap between neighbors except
// where a shorter final chunk ends the sequence.
func (s *Splitter) Split(text string) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	total := len(runes)

	if total <= s.maxSize {
		return []Chunk{{Text: text, Ordinal: 0, Start: 0, End: total}}
	}

	chunks := make([]Chunk, 0, total/(s.maxSize-s.overlap)+1)
	start := 0
	ordinal := 0

	for start < total {
		end := start + s.maxSize
		if end >= total {
			end = total
		} else {
			end = s.splitPoint(runes, start, end)
		}

		chunks = append(chunks, Chunk{
			Text:    string(runes[start:end]),
			Ordinal: ordinal,
			Start:   start,
			End:     end,
		})
		ordinal++

		if end >= total {
			break
		}

		next := end - s.overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}

	return chunks
}

// splitPoint picks the cut position in (start, limit]. Boundaries in the
// first half of the window are ignored so chunks never collapse to a few
// runes just because a paragraph break sits near the window start.
func (s *Splitter) splitPoint(runes []rune, start, limit int) int {
	floor := start + s.maxSize/2

	if at := lastIndexFrom(runes, "\n\n", floor, limit); at > 0 {
		return at + 2
	}
	for _, boundary := range []string{". ", "! ", "? ", "\n"} {
		if at := lastIndexFrom(runes, boundary, floor, limit); at > 0 {
			return at + len([]rune(boundary))
		}
	}
	for i := limit - 1; i > floor; i-- {
		if runes[i] == ' ' {
			return i + 1
		}
	}
	return limit
}

// lastIndexFrom finds the rune index of the last occurrence of sep whose end
// lies within (floor, limit], or -1.
func lastIndexFrom(runes []rune, sep string, floor, limit int) int {
	sepRunes := []rune(sep)
	for i := limit - len(sepRunes); i > floor; i-- {
		if matchAt(runes, sepRunes, i) {
			return i
		}
	}
	return -1
}

func matchAt(runes, sep []rune, at int) bool {
	if at < 0 || at+len(sep) > len(runes) {
		return false
	}
	for i := range sep {
		if runes[at+i] != sep[i] {
			return false
		}
	}
	return true
}
