package domain

import "time"

// Status is the ingestion state of a document.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// ValidStatus reports whether s is one of the four persisted statuses.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// MaxErrorMessageLen bounds the persisted error message of a failed run.
const MaxErrorMessageLen = 500

// Document is an uploaded file owned by exactly one collection.
// Status fields are mutated only by the ingestion orchestrator.
type Document struct {
	ID           string    `json:"id"`
	CollectionID string    `json:"collection_id"`
	Name         string    `json:"name"`
	BlobPath     string    `json:"blob_path"`
	FileType     string    `json:"file_type"`
	SizeBytes    int64     `json:"size_bytes"`
	Status       Status    `json:"status"`
	ChunkCount   int       `json:"chunk_count"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TruncateError bounds msg to MaxErrorMessageLen characters.
func TruncateError(msg string) string {
	runes := []rune(msg)
	if len(runes) <= MaxErrorMessageLen {
		return msg
	}
	return string(runes[:MaxErrorMessageLen])
}
