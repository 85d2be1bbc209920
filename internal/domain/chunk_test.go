package domain

import "testing"

func TestChunkID(t *testing.T) {
	if got := ChunkID("doc-1", 3); got != "doc-1_3" {
		t.Errorf("ChunkID() = %q, want doc-1_3", got)
	}
}

func TestChunkMetadata(t *testing.T) {
	c := Chunk{
		ID:           "doc-1_0",
		DocumentID:   "doc-1",
		DocumentName: "guide.pdf",
		Index:        0,
		Text:         "ignored by metadata",
	}

	md := c.Metadata()
	want := map[string]string{
		MetaDocumentID:   "doc-1",
		MetaDocumentName: "guide.pdf",
		MetaChunkIndex:   "0",
		MetaChunkID:      "doc-1_0",
	}
	for k, v := range want {
		if md[k] != v {
			t.Errorf("metadata[%s] = %q, want %q", k, md[k], v)
		}
	}
	if len(md) != len(want) {
		t.Errorf("metadata has %d keys, want %d", len(md), len(want))
	}
}

func TestVectorCollectionName(t *testing.T) {
	if got := VectorCollectionName("abc"); got != "kb_abc" {
		t.Errorf("VectorCollectionName() = %q, want kb_abc", got)
	}
}
