// Package history maintains the local view of previously created annotation
// jobs: a bounded on-disk cache merged with the authoritative list from the
// annotation backend.
package history

import "time"

// DefaultLimit is the maximum number of entries persisted to the local cache.
const DefaultLimit = 20

// Entry is a cached summary record for one annotation job.
type Entry struct {
	AnnotationID string    `json:"annotation_id"`
	Title        string    `json:"title,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	NodeCount    int       `json:"node_count"`
	EdgeCount    int       `json:"edge_count"`
}

// EntryPatch is the wire form of a history entry as returned by the backend.
// Pointer fields that are nil were absent from the response and fall back to
// the locally cached value during a merge.
type EntryPatch struct {
	AnnotationID string     `json:"annotation_id"`
	Title        *string    `json:"title,omitempty"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
	NodeCount    *int       `json:"node_count,omitempty"`
	EdgeCount    *int       `json:"edge_count,omitempty"`
}

// apply overlays the patch onto e, field by field. Present remote fields win;
// absent fields keep the local value.
func (p EntryPatch) apply(e Entry) Entry {
	e.AnnotationID = p.AnnotationID
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.CreatedAt != nil {
		e.CreatedAt = *p.CreatedAt
	}
	if p.NodeCount != nil {
		e.NodeCount = *p.NodeCount
	}
	if p.EdgeCount != nil {
		e.EdgeCount = *p.EdgeCount
	}
	return e
}
