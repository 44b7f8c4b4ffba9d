package api

import (
	"context"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/patternlab/graphscout/pkg/annotation"
	"github.com/patternlab/graphscout/pkg/history"
)

// SubmitRequest uploads node/edge CSVs to start an annotation job.
type SubmitRequest struct {
	NodeFiles []string
	EdgeFiles []string

	// Title is an optional human-readable label for the job.
	Title string
}

// SubmitResult carries the backend-assigned annotation job id.
type SubmitResult struct {
	JobID string `json:"job_id"`
}

// AnnotationClient talks to the annotation API.
type AnnotationClient struct {
	*Client
}

// NewAnnotationClient creates a client for the annotation API at baseURL.
func NewAnnotationClient(baseURL string, opts Options) (*AnnotationClient, error) {
	c, err := newClient(baseURL, opts)
	if err != nil {
		return nil, fmt.Errorf("annotation client: %w", err)
	}
	return &AnnotationClient{Client: c}, nil
}

// Submit uploads node and edge CSVs to start a new annotation job.
func (c *AnnotationClient) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	if len(req.NodeFiles) == 0 && len(req.EdgeFiles) == 0 {
		return nil, fmt.Errorf("at least one node or edge file is required")
	}

	var out SubmitResult
	err := c.postMultipart(ctx, c.endpoint("annotate"), func(w *multipart.Writer) error {
		if err := attachFiles(w, "nodes", req.NodeFiles); err != nil {
			return err
		}
		if err := attachFiles(w, "edges", req.EdgeFiles); err != nil {
			return err
		}
		if req.Title != "" {
			if err := w.WriteField("title", req.Title); err != nil {
				return fmt.Errorf("write title field: %w", err)
			}
		}
		return nil
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.JobID == "" {
		return nil, fmt.Errorf("backend returned no job id")
	}
	return &out, nil
}

// Get fetches the authoritative record for one annotation job.
func (c *AnnotationClient) Get(ctx context.Context, id string) (*annotation.Record, error) {
	if id == "" {
		return nil, fmt.Errorf("annotation id is required")
	}
	var out annotation.Record
	if err := c.getJSON(ctx, c.endpoint("annotation", id), &out); err != nil {
		return nil, err
	}
	if out.JobID == "" {
		out.JobID = id
	}
	return &out, nil
}

// History fetches the authoritative history list. Entries come back in the
// backend's patch form; absent fields fall back to cached values during a
// merge.
func (c *AnnotationClient) History(ctx context.Context) ([]history.EntryPatch, error) {
	var out []history.EntryPatch
	if err := c.getJSON(ctx, c.endpoint("history"), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RenameTitle sets a new title on an annotation. Call sites treat this as
// fire-and-forget: failures are logged, never surfaced to the user.
func (c *AnnotationClient) RenameTitle(ctx context.Context, id, title string) error {
	if id == "" {
		return fmt.Errorf("annotation id is required")
	}
	path := c.endpoint("annotation", id, "title")
	return c.sendJSON(ctx, http.MethodPut, path, map[string]string{"title": title}, nil)
}
