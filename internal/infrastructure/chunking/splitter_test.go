package chunking

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/docchatlabs/docchat/internal/core/domain"
)

func TestNewSplitterRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name    string
		size    int
		overlap int
	}{
		{name: "zero size", size: 0, overlap: 0},
		{name: "negative overlap", size: 10, overlap: -1},
		{name: "overlap equals size", size: 10, overlap: 10},
		{name: "overlap exceeds size", size: 10, overlap: 15},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewSplitter(tc.size, tc.overlap)
			if err == nil {
				t.Fatalf("expected config error for size=%d overlap=%d", tc.size, tc.overlap)
			}
			if !domain.IsKind(err, domain.ErrChunking) {
				t.Fatalf("expected chunking error kind, got %v", err)
			}
		})
	}
}

func TestSplitEmptyInput(t *testing.T) {
	s, err := NewSplitter(100, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, text := range []string{"", "   \n\t  "} {
		chunks, err := s.Split(text)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(chunks) != 0 {
			t.Fatalf("expected no chunks for blank input, got %v", chunks)
		}
	}
}

func TestSplitShortTextSingleChunk(t *testing.T) {
	s, err := NewSplitter(100, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	chunks, err := s.Split("hello world")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 || chunks[0] != "hello world" {
		t.Fatalf("expected single unchanged chunk, got %v", chunks)
	}
}

func TestSplitRespectsSizeCap(t *testing.T) {
	s, err := NewSplitter(50, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text := strings.Repeat("Some words in a paragraph body here.\n\n", 12)
	chunks, err := s.Split(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if n := utf8.RuneCountInString(chunk); n > 50 {
			t.Fatalf("chunk %d exceeds size cap: %d runes", i, n)
		}
	}
}

func TestSplitCarriesOverlapVerbatim(t *testing.T) {
	s, err := NewSplitter(20, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text := "aaaaaaaaaa\n\nbbbbbbbbbb\n\ncccccccccc"
	chunks, err := s.Split(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %v", chunks)
	}
	for i := 1; i < len(chunks); i++ {
		tail := trailingRunes(chunks[i-1], 5)
		if !strings.HasPrefix(chunks[i], tail) {
			t.Fatalf("chunk %d does not start with previous tail %q: %q", i, tail, chunks[i])
		}
	}
}

func TestSplitWindowsUnbrokenText(t *testing.T) {
	s, err := NewSplitter(10, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	chunks, err := s.Split("abcdefghijklmnopqrstuv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"abcdefghij", "ghijklmnop", "mnopqrstuv"}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %v", len(want), chunks)
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Fatalf("chunk %d mismatch: want %q got %q", i, want[i], chunks[i])
		}
	}
	for i := 1; i < len(chunks); i++ {
		tail := trailingRunes(chunks[i-1], 4)
		if !strings.HasPrefix(chunks[i], tail) {
			t.Fatalf("window %d lost its overlap: %q vs tail %q", i, chunks[i], tail)
		}
	}
}

func TestSplitKeepsSentenceTerminator(t *testing.T) {
	s, err := NewSplitter(30, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	chunks, err := s.Split("First sentence here. Second sentence here. Third one.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) == 0 || chunks[0] != "First sentence here." {
		t.Fatalf("expected sentence boundary with terminator, got %v", chunks)
	}
}
