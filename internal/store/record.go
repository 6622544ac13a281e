package store

import (
	"time"

	"github.com/google/uuid"
)

// AdapterRecord is the catalog entry for an adapter checkpoint known to the
// engine: where it lives on disk and what was learned about it at load time.
type AdapterRecord struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Path        string    `json:"path"`
	LayerCount  int       `json:"layer_count"`
	SizeBytes   int       `json:"size_bytes"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewAdapterRecord creates a record with a fresh id and creation timestamp.
func NewAdapterRecord(name, path string) AdapterRecord {
	return AdapterRecord{
		ID:        uuid.NewString(),
		Name:      name,
		Path:      path,
		CreatedAt: time.Now().UTC(),
	}
}

// ItemID implements Item.
func (r AdapterRecord) ItemID() string {
	return r.ID
}
