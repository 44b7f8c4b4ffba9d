package api

import (
	"context"
	"fmt"
	"mime/multipart"
	"strconv"
)

// GenerateRequest submits node/edge CSVs for graph generation.
type GenerateRequest struct {
	NodeFiles []string
	EdgeFiles []string
}

// GenerateResult carries the backend-assigned job id for a graph build.
type GenerateResult struct {
	JobID string `json:"job_id"`
}

// MineRequest configures a pattern-mining run over a generated graph.
type MineRequest struct {
	JobID string

	MinPatternSize      int
	MaxPatternSize      int
	MinNeighborhoodSize int
	MaxNeighborhoodSize int
	NeighborhoodCount   int
	TrialCount          int

	SearchStrategy    string // "greedy" or "mcts"
	SampleMethod      string // "tree" or "radial"
	GraphOutputFormat string // "json" or "networkx"
}

// MineResult is the mining run's final output.
type MineResult struct {
	DownloadURL   string `json:"download_url"`
	PatternsCount int    `json:"patterns_count"`
}

// StatusUpdate is a pull-mode progress report for a mining job.
type StatusUpdate struct {
	Progress float64 `json:"progress"`
	Message  string  `json:"message"`
}

// MiningClient talks to the integration/mining API.
type MiningClient struct {
	*Client
}

// NewMiningClient creates a client for the integration API at baseURL.
func NewMiningClient(baseURL string, opts Options) (*MiningClient, error) {
	c, err := newClient(baseURL, opts)
	if err != nil {
		return nil, fmt.Errorf("mining client: %w", err)
	}
	return &MiningClient{Client: c}, nil
}

// GenerateGraph uploads CSVs and starts a graph build, returning its job id.
func (c *MiningClient) GenerateGraph(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	if len(req.NodeFiles) == 0 && len(req.EdgeFiles) == 0 {
		return nil, fmt.Errorf("at least one node or edge file is required")
	}

	var out GenerateResult
	err := c.postMultipart(ctx, c.endpoint("generate-graph"), func(w *multipart.Writer) error {
		if err := attachFiles(w, "nodes", req.NodeFiles); err != nil {
			return err
		}
		return attachFiles(w, "edges", req.EdgeFiles)
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.JobID == "" {
		return nil, fmt.Errorf("backend did not return a job_id")
	}
	return &out, nil
}

// MinePatterns starts a mining run and blocks until the backend responds with
// the result location. Progress while it runs is observed separately via
// Status polling.
func (c *MiningClient) MinePatterns(ctx context.Context, req MineRequest) (*MineResult, error) {
	if req.JobID == "" {
		return nil, fmt.Errorf("job id is required")
	}

	fields := map[string]string{
		"job_id":                req.JobID,
		"min_pattern_size":      strconv.Itoa(req.MinPatternSize),
		"max_pattern_size":      strconv.Itoa(req.MaxPatternSize),
		"min_neighborhood_size": strconv.Itoa(req.MinNeighborhoodSize),
		"max_neighborhood_size": strconv.Itoa(req.MaxNeighborhoodSize),
		"n_neighborhoods":       strconv.Itoa(req.NeighborhoodCount),
		"n_trials":              strconv.Itoa(req.TrialCount),
		"search_strategy":       req.SearchStrategy,
		"sample_method":         req.SampleMethod,
		"graph_output_format":   req.GraphOutputFormat,
	}

	var out MineResult
	err := c.postMultipart(ctx, c.endpoint("mine-patterns"), func(w *multipart.Writer) error {
		for k, v := range fields {
			if err := w.WriteField(k, v); err != nil {
				return fmt.Errorf("write field %s: %w", k, err)
			}
		}
		return nil
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Status fetches pull-mode progress for a mining job.
func (c *MiningClient) Status(ctx context.Context, jobID string) (StatusUpdate, error) {
	var out StatusUpdate
	if jobID == "" {
		return out, fmt.Errorf("job id is required")
	}
	err := c.getJSON(ctx, c.endpoint("mining-status", jobID), &out)
	return out, err
}
