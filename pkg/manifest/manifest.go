// Package manifest provides loading and validation of graphscout mining run
// manifests.
//
// A mining manifest is a YAML or JSON file that configures a pattern-mining
// run: the target graph job, pattern and neighborhood size bounds, sampling,
// and the search strategy.
//
// Manifests are validated against a JSON Schema to ensure correctness before
// execution. The schema enforces strict typing and disallows unknown
// properties.
//
// Example manifest (YAML):
//
//	version: "1.0"
//	job_id: "3f1c2a"
//	pattern:
//	  min_size: 5
//	  max_size: 10
//	neighborhood:
//	  min_size: 10
//	  max_size: 100
//	  count: 64
//	trials: 1000
//	search_strategy: greedy
//	sample_method: tree
//	output_format: json
package manifest

import (
	"fmt"

	"github.com/patternlab/graphscout/pkg/api"
)

// Manifest represents a validated mining run manifest.
//
// Required field is Version. JobID is optional: when empty, the run targets
// the most recent job from history (default selection).
type Manifest struct {
	// Schema is an optional JSON Schema reference for editor support.
	Schema string `json:"$schema,omitempty" yaml:"$schema,omitempty"`

	// Version is the manifest schema version. Must be "1.0".
	Version string `json:"version" yaml:"version"`

	// JobID is the graph job to mine. Optional.
	JobID string `json:"job_id,omitempty" yaml:"job_id,omitempty"`

	// Pattern bounds the size of mined patterns (optional, defaulted).
	Pattern SizeRange `json:"pattern,omitempty" yaml:"pattern,omitempty"`

	// Neighborhood bounds the sampled neighborhoods (optional, defaulted).
	Neighborhood NeighborhoodConfig `json:"neighborhood,omitempty" yaml:"neighborhood,omitempty"`

	// Trials is the number of search trials. Optional, defaulted.
	Trials int `json:"trials,omitempty" yaml:"trials,omitempty"`

	// SearchStrategy is "greedy" or "mcts". Optional, default "greedy".
	SearchStrategy string `json:"search_strategy,omitempty" yaml:"search_strategy,omitempty"`

	// SampleMethod is "tree" or "radial". Optional, default "tree".
	SampleMethod string `json:"sample_method,omitempty" yaml:"sample_method,omitempty"`

	// OutputFormat is "json" or "networkx". Optional, default "json".
	OutputFormat string `json:"output_format,omitempty" yaml:"output_format,omitempty"`
}

// SizeRange bounds pattern sizes (node counts).
type SizeRange struct {
	MinSize int `json:"min_size,omitempty" yaml:"min_size,omitempty"`
	MaxSize int `json:"max_size,omitempty" yaml:"max_size,omitempty"`
}

// NeighborhoodConfig bounds neighborhood sampling.
type NeighborhoodConfig struct {
	MinSize int `json:"min_size,omitempty" yaml:"min_size,omitempty"`
	MaxSize int `json:"max_size,omitempty" yaml:"max_size,omitempty"`
	Count   int `json:"count,omitempty" yaml:"count,omitempty"`
}

// Defaults for optional manifest fields.
const (
	DefaultMinPatternSize      = 5
	DefaultMaxPatternSize      = 10
	DefaultMinNeighborhoodSize = 10
	DefaultMaxNeighborhoodSize = 100
	DefaultNeighborhoodCount   = 64
	DefaultTrials              = 1000
	DefaultSearchStrategy      = "greedy"
	DefaultSampleMethod        = "tree"
	DefaultOutputFormat        = "json"
)

// ApplyDefaults fills in unset optional fields.
func (m *Manifest) ApplyDefaults() {
	if m.Pattern.MinSize == 0 {
		m.Pattern.MinSize = DefaultMinPatternSize
	}
	if m.Pattern.MaxSize == 0 {
		m.Pattern.MaxSize = DefaultMaxPatternSize
	}
	if m.Neighborhood.MinSize == 0 {
		m.Neighborhood.MinSize = DefaultMinNeighborhoodSize
	}
	if m.Neighborhood.MaxSize == 0 {
		m.Neighborhood.MaxSize = DefaultMaxNeighborhoodSize
	}
	if m.Neighborhood.Count == 0 {
		m.Neighborhood.Count = DefaultNeighborhoodCount
	}
	if m.Trials == 0 {
		m.Trials = DefaultTrials
	}
	if m.SearchStrategy == "" {
		m.SearchStrategy = DefaultSearchStrategy
	}
	if m.SampleMethod == "" {
		m.SampleMethod = DefaultSampleMethod
	}
	if m.OutputFormat == "" {
		m.OutputFormat = DefaultOutputFormat
	}
}

// CheckBounds verifies cross-field constraints the JSON schema cannot express.
func (m *Manifest) CheckBounds() error {
	if m.Pattern.MaxSize < m.Pattern.MinSize {
		return fmt.Errorf("pattern.max_size (%d) must be >= pattern.min_size (%d)",
			m.Pattern.MaxSize, m.Pattern.MinSize)
	}
	if m.Neighborhood.MaxSize < m.Neighborhood.MinSize {
		return fmt.Errorf("neighborhood.max_size (%d) must be >= neighborhood.min_size (%d)",
			m.Neighborhood.MaxSize, m.Neighborhood.MinSize)
	}
	return nil
}

// MineRequest converts the manifest into an API request against jobID.
// jobID overrides the manifest's JobID when non-empty.
func (m *Manifest) MineRequest(jobID string) api.MineRequest {
	if jobID == "" {
		jobID = m.JobID
	}
	return api.MineRequest{
		JobID:               jobID,
		MinPatternSize:      m.Pattern.MinSize,
		MaxPatternSize:      m.Pattern.MaxSize,
		MinNeighborhoodSize: m.Neighborhood.MinSize,
		MaxNeighborhoodSize: m.Neighborhood.MaxSize,
		NeighborhoodCount:   m.Neighborhood.Count,
		TrialCount:          m.Trials,
		SearchStrategy:      m.SearchStrategy,
		SampleMethod:        m.SampleMethod,
		GraphOutputFormat:   m.OutputFormat,
	}
}
