// Package annotation defines the annotation job model shared by the
// backend clients and the job reconciler.
//
// An annotation job is a long-running graph build tracked by the backend.
// The backend delivers sparse updates while the job runs; Patch models those
// partial payloads explicitly so callers never guess which fields arrived.
package annotation

import "time"

// Status is the lifecycle state of an annotation job as reported by the
// backend.
//
// NOTE: These values appear on the wire and are part of the backend contract.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusComplete Status = "COMPLETE"
	StatusFailed   Status = "FAILED"
)

// Terminal reports whether no further updates are expected for this status.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// Node is a graph node in an annotation payload.
type Node struct {
	ID    string         `json:"id"`
	Label string         `json:"label,omitempty"`
	Props map[string]any `json:"props,omitempty"`
}

// Edge is a graph edge in an annotation payload.
type Edge struct {
	Source string         `json:"source"`
	Target string         `json:"target"`
	Label  string         `json:"label,omitempty"`
	Props  map[string]any `json:"props,omitempty"`
}

// Record is the full annotation job record.
//
// Payload fields (Nodes, Edges, Summary, counts) may be absent until the job
// reaches StatusComplete.
type Record struct {
	JobID     string    `json:"job_id"`
	Title     string    `json:"title,omitempty"`
	Status    Status    `json:"status"`
	Summary   string    `json:"summary,omitempty"`
	Nodes     []Node    `json:"nodes,omitempty"`
	Edges     []Edge    `json:"edges,omitempty"`
	NodeCount int       `json:"node_count,omitempty"`
	EdgeCount int       `json:"edge_count,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Patch is a sparse update to a Record. Nil pointer and nil slice fields mean
// "not provided" and leave the corresponding Record field untouched.
type Patch struct {
	Title     *string `json:"title,omitempty"`
	Summary   *string `json:"summary,omitempty"`
	Nodes     []Node  `json:"nodes,omitempty"`
	Edges     []Edge  `json:"edges,omitempty"`
	NodeCount *int    `json:"node_count,omitempty"`
	EdgeCount *int    `json:"edge_count,omitempty"`
}

// HasDerivedData reports whether the patch carries graph payload fields,
// meaning new derived data is available on the backend and an authoritative
// refetch is worthwhile.
func (p Patch) HasDerivedData() bool {
	return len(p.Nodes) > 0 || len(p.Edges) > 0 || p.NodeCount != nil || p.EdgeCount != nil
}

// Apply merges p into rec, updating only the fields p provides.
func Apply(rec *Record, p Patch) {
	if rec == nil {
		return
	}
	if p.Title != nil {
		rec.Title = *p.Title
	}
	if p.Summary != nil {
		rec.Summary = *p.Summary
	}
	if p.Nodes != nil {
		rec.Nodes = p.Nodes
	}
	if p.Edges != nil {
		rec.Edges = p.Edges
	}
	if p.NodeCount != nil {
		rec.NodeCount = *p.NodeCount
	}
	if p.EdgeCount != nil {
		rec.EdgeCount = *p.EdgeCount
	}
}
