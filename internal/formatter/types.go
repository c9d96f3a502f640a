package formatter

import "github.com/alevsk/quay-ops/internal/types"

// Type represents the type of formatter
type Type string

const (
	// TypeJSON formats data as JSON
	TypeJSON Type = "json"
	// TypeYAML formats data as YAML
	TypeYAML Type = "yaml"
	// TypeTable formats data as a table
	TypeTable Type = "table"
	// TypeMarkdown formats data as markdown
	TypeMarkdown Type = "markdown"
)

// Options controls what a formatter includes
type Options struct {
	// IncludeSummary adds the per-action step counts
	IncludeSummary bool
}

// DefaultOptions returns the default formatter options
func DefaultOptions() *Options {
	return &Options{IncludeSummary: true}
}

// JSON implements JSON formatting
type JSON struct {
	opts *Options
}

// YAML implements YAML formatting
type YAML struct {
	opts *Options
}

// Table implements table formatting
type Table struct {
	opts *Options
}

// Markdown implements markdown formatting
type Markdown struct {
	opts *Options
}

// SummaryEntry counts the steps that ended in one action
type SummaryEntry struct {
	Action types.Action `json:"action" yaml:"action"`
	Count  int          `json:"count" yaml:"count"`
}

// ParsedReport is the serialized form of a run report
type ParsedReport struct {
	Operation string         `json:"operation" yaml:"operation"`
	Started   string         `json:"started" yaml:"started"`
	Elapsed   string         `json:"elapsed" yaml:"elapsed"`
	Minutes   int            `json:"minutes" yaml:"minutes"`
	Summary   []SummaryEntry `json:"summary,omitempty" yaml:"summary,omitempty"`
	Steps     []StepEntry    `json:"steps" yaml:"steps"`
}

// StepEntry is the serialized form of a report step
type StepEntry struct {
	Entity  string       `json:"entity" yaml:"entity"`
	Kind    string       `json:"kind" yaml:"kind"`
	Action  types.Action `json:"action" yaml:"action"`
	Detail  string       `json:"detail,omitempty" yaml:"detail,omitempty"`
	Elapsed string       `json:"elapsed,omitempty" yaml:"elapsed,omitempty"`
}
