package chunker

import (
	"errors"
	"strings"
	"testing"

	"github.com/lattica-ai/ragline/internal/domain"
)

func TestNewRejectsDegenerateConfig(t *testing.T) {
	cases := []struct {
		name    string
		size    int
		overlap int
	}{
		{"zero size", 0, 0},
		{"negative size", -1, 0},
		{"negative overlap", 100, -1},
		{"overlap equals size", 100, 100},
		{"overlap exceeds size", 100, 150},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.size, tc.overlap); !errors.Is(err, domain.ErrInvalidChunkConfig) {
				t.Errorf("New(%d, %d) = %v, want ErrInvalidChunkConfig", tc.size, tc.overlap, err)
			}
		})
	}
}

func TestSplitAssignsSequentialIDs(t *testing.T) {
	c, err := New(50, 0)
	if err != nil {
		t.Fatal(err)
	}

	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 10)
	chunks, err := c.Split("doc1", "fox.txt", text)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want at least 2", len(chunks))
	}

	for i, ch := range chunks {
		if ch.ID != domain.ChunkID("doc1", i) {
			t.Errorf("chunks[%d].ID = %q, want %q", i, ch.ID, domain.ChunkID("doc1", i))
		}
		if ch.Index != i {
			t.Errorf("chunks[%d].Index = %d, want %d", i, ch.Index, i)
		}
		if ch.DocumentID != "doc1" || ch.DocumentName != "fox.txt" {
			t.Errorf("chunks[%d] identity = %q/%q", i, ch.DocumentID, ch.DocumentName)
		}
	}
}

func TestSplitRespectsChunkSize(t *testing.T) {
	c, err := New(100, 20)
	if err != nil {
		t.Fatal(err)
	}

	text := strings.Repeat("Sentence one is short. ", 30)
	chunks, err := c.Split("doc1", "a.txt", text)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}

	for i, ch := range chunks {
		if len(ch.Text) > 120 {
			t.Errorf("chunks[%d] is %d chars, want around 100", i, len(ch.Text))
		}
	}
}

func TestSplitPrefersParagraphBoundaries(t *testing.T) {
	c, err := New(40, 0)
	if err != nil {
		t.Fatal(err)
	}

	chunks, err := c.Split("doc1", "a.txt", "first paragraph here\n\nsecond paragraph here")
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2: %+v", len(chunks), chunks)
	}
	if !strings.Contains(chunks[0].Text, "first") || !strings.Contains(chunks[1].Text, "second") {
		t.Errorf("paragraphs not split cleanly: %+v", chunks)
	}
}

func TestSplitCJKSentences(t *testing.T) {
	c, err := New(20, 0)
	if err != nil {
		t.Fatal(err)
	}

	chunks, err := c.Split("doc1", "a.txt", "这是第一句话，内容比较长一些。这是第二句话，同样有内容。")
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want at least 2", len(chunks))
	}
}

func TestSplitWhitespaceOnly(t *testing.T) {
	c, err := New(100, 10)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := c.Split("doc1", "a.txt", "   \n\n  "); !errors.Is(err, domain.ErrChunkingFailed) {
		t.Fatalf("got %v, want ErrChunkingFailed", err)
	}
}

func TestSplitShortTextSingleChunk(t *testing.T) {
	c, err := New(512, 50)
	if err != nil {
		t.Fatal(err)
	}

	chunks, err := c.Split("doc1", "a.txt", "tiny document")
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].ID != "doc1_0" {
		t.Errorf("ID = %q, want doc1_0", chunks[0].ID)
	}
}
