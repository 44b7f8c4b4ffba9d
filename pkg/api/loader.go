package api

import (
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"os"
)

// Schema describes the node and edge CSV inputs known to the loader.
type Schema struct {
	Nodes  []SchemaNode  `json:"nodes"`
	Edges  []SchemaEdge  `json:"edges"`
	Inputs []SchemaInput `json:"inputs,omitempty"`
}

// SchemaNode maps a CSV file to a node label.
type SchemaNode struct {
	Label      string   `json:"label"`
	File       string   `json:"file"`
	Key        string   `json:"key,omitempty"`
	Properties []string `json:"properties,omitempty"`
}

// SchemaEdge maps a CSV file to an edge label between two node labels.
type SchemaEdge struct {
	Label      string   `json:"label"`
	File       string   `json:"file"`
	Source     string   `json:"source"`
	Target     string   `json:"target"`
	Properties []string `json:"properties,omitempty"`
}

// SchemaInput describes one uploaded input file.
type SchemaInput struct {
	Name string `json:"name"`
	Kind string `json:"kind"` // "node" or "edge"
}

// LoadRequest is a CSV import submission.
type LoadRequest struct {
	// NodeFiles and EdgeFiles are local CSV paths uploaded as multipart parts.
	NodeFiles []string
	EdgeFiles []string

	// SchemaPath is a local JSON schema file describing the CSV columns.
	// Optional; when empty the backend infers a schema.
	SchemaPath string
}

// LoadResult is the loader's import confirmation.
type LoadResult struct {
	Message     string `json:"message,omitempty"`
	NodesLoaded int    `json:"nodes_loaded,omitempty"`
	EdgesLoaded int    `json:"edges_loaded,omitempty"`
}

// SuggestRequest asks the loader for an AI-suggested schema from sample CSVs.
type SuggestRequest struct {
	NodeFiles []string
	EdgeFiles []string
}

// LoaderClient talks to the loader API.
type LoaderClient struct {
	*Client
}

// NewLoaderClient creates a client for the loader API at baseURL.
func NewLoaderClient(baseURL string, opts Options) (*LoaderClient, error) {
	c, err := newClient(baseURL, opts)
	if err != nil {
		return nil, fmt.Errorf("loader client: %w", err)
	}
	return &LoaderClient{Client: c}, nil
}

// GetSchema fetches the current schema description.
func (c *LoaderClient) GetSchema(ctx context.Context) (*Schema, error) {
	var out Schema
	if err := c.getJSON(ctx, c.endpoint("schema"), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Load uploads node and edge CSVs (plus an optional schema) for import.
func (c *LoaderClient) Load(ctx context.Context, req LoadRequest) (*LoadResult, error) {
	if len(req.NodeFiles) == 0 && len(req.EdgeFiles) == 0 {
		return nil, fmt.Errorf("at least one node or edge file is required")
	}

	var out LoadResult
	err := c.postMultipart(ctx, c.endpoint("load"), func(w *multipart.Writer) error {
		if err := attachFiles(w, "nodes", req.NodeFiles); err != nil {
			return err
		}
		if err := attachFiles(w, "edges", req.EdgeFiles); err != nil {
			return err
		}
		if req.SchemaPath != "" {
			b, err := os.ReadFile(req.SchemaPath)
			if err != nil {
				return fmt.Errorf("read schema file: %w", err)
			}
			// Reject malformed schema locally before uploading.
			var probe Schema
			if err := json.Unmarshal(b, &probe); err != nil {
				return fmt.Errorf("parse schema file %s: %w", req.SchemaPath, err)
			}
			if err := w.WriteField("schema", string(b)); err != nil {
				return fmt.Errorf("write schema field: %w", err)
			}
		}
		return nil
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SuggestSchema uploads sample CSVs and returns an AI-suggested schema.
func (c *LoaderClient) SuggestSchema(ctx context.Context, req SuggestRequest) (*Schema, error) {
	if len(req.NodeFiles) == 0 && len(req.EdgeFiles) == 0 {
		return nil, fmt.Errorf("at least one node or edge file is required")
	}

	var out Schema
	err := c.postMultipart(ctx, c.endpoint("suggest-schema"), func(w *multipart.Writer) error {
		if err := attachFiles(w, "nodes", req.NodeFiles); err != nil {
			return err
		}
		return attachFiles(w, "edges", req.EdgeFiles)
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
