package domain

import "time"

// Default chunking parameters for new collections.
const (
	DefaultChunkSize    = 512
	DefaultChunkOverlap = 50
)

// Collection groups documents sharing chunking configuration and one
// vector index namespace. The ingestion pipeline treats it as read-only
// configuration fetched once per processing run.
type Collection struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	ChunkSize    int       `json:"chunk_size"`
	ChunkOverlap int       `json:"chunk_overlap"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ApplyDefaults fills zero chunking parameters with the defaults.
func (c *Collection) ApplyDefaults() {
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.ChunkOverlap <= 0 {
		c.ChunkOverlap = DefaultChunkOverlap
	}
}
