package domain

import "fmt"

// Chunk metadata field names, attached to every indexed vector.
const (
	MetaDocumentID   = "document_id"
	MetaDocumentName = "document_name"
	MetaChunkIndex   = "chunk_index"
	MetaChunkID      = "id"
)

// Chunk is a bounded, ordered slice of a document's extracted text.
// Chunks live only inside the vector index and are fully regenerated
// on every processing run.
type Chunk struct {
	ID           string
	DocumentID   string
	DocumentName string
	Index        int
	Text         string
}

// ChunkID builds the deterministic chunk id for a document and sequence index.
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s_%d", documentID, index)
}

// Metadata returns the metadata map stored alongside the chunk's vector.
func (c Chunk) Metadata() map[string]string {
	return map[string]string{
		MetaDocumentID:   c.DocumentID,
		MetaDocumentName: c.DocumentName,
		MetaChunkIndex:   fmt.Sprintf("%d", c.Index),
		MetaChunkID:      c.ID,
	}
}

// VectorCollectionName derives the vector index namespace for a collection.
// One namespace per source collection id, independent of document id.
func VectorCollectionName(collectionID string) string {
	return "kb_" + collectionID
}
