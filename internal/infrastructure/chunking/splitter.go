package chunking

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/docchatlabs/docchat/internal/core/domain"
)

// separators are tried in order; each level is only entered when the text is
// still larger than the chunk size.
var separators = []string{"\n\n", "\n", ". "}

// Splitter produces bounded chunks with a verbatim overlap carried from the
// tail of each chunk into the head of the next.
type Splitter struct {
	size    int
	overlap int
}

func NewSplitter(chunkSize, overlap int) (*Splitter, error) {
	switch {
	case chunkSize <= 0:
		return nil, domain.WrapError(domain.ErrChunking, "chunking.NewSplitter", errors.New("chunk size must be positive"))
	case overlap < 0:
		return nil, domain.WrapError(domain.ErrChunking, "chunking.NewSplitter", errors.New("overlap must not be negative"))
	case overlap >= chunkSize:
		return nil, domain.WrapError(domain.ErrChunking, "chunking.NewSplitter", errors.New("overlap must be smaller than chunk size"))
	}
	return &Splitter{size: chunkSize, overlap: overlap}, nil
}

func (s *Splitter) ChunkSize() int { return s.size }
func (s *Splitter) Overlap() int   { return s.overlap }

// Split breaks text on paragraph, line and sentence boundaries first and
// falls back to rune windows for oversized fragments. Every returned chunk is
// at most ChunkSize runes; empty input yields no chunks.
func (s *Splitter) Split(text string) ([]string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, nil
	}

	units := s.decompose(trimmed, 0)
	if len(units) == 0 {
		return nil, nil
	}

	chunks := make([]string, 0, len(units))
	current := ""
	for _, unit := range units {
		if current == "" {
			current = unit
			continue
		}
		candidate := current + "\n" + unit
		if utf8.RuneCountInString(candidate) <= s.size {
			current = candidate
			continue
		}

		chunks = append(chunks, current)
		current = s.seed(current, unit)
	}
	if current != "" {
		chunks = append(chunks, current)
	}
	return chunks, nil
}

// seed prefixes the next chunk with the trailing overlap of the previous one
// unless doing so would push it past the size cap.
func (s *Splitter) seed(previous, unit string) string {
	if s.overlap == 0 {
		return unit
	}
	tail := trailingRunes(previous, s.overlap)
	if utf8.RuneCountInString(tail)+1+utf8.RuneCountInString(unit) > s.size {
		return unit
	}
	return tail + "\n" + unit
}

func (s *Splitter) decompose(text string, level int) []string {
	if utf8.RuneCountInString(text) <= s.size {
		return []string{text}
	}
	if level >= len(separators) {
		return s.windows(text)
	}

	sep := separators[level]
	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	for i, part := range parts {
		if sep == ". " && i < len(parts)-1 {
			part += "."
		}
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, s.decompose(part, level+1)...)
	}
	return out
}

// windows slides over a fragment no boundary could break, stepping by
// size-overlap so consecutive windows share the overlap verbatim.
func (s *Splitter) windows(text string) []string {
	runes := []rune(text)
	step := s.size - s.overlap

	out := make([]string, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := start + s.size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return out
}

func trailingRunes(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[len(runes)-n:])
}
