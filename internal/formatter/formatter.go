package formatter

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alevsk/quay-ops/internal/types"
)

// Formatter renders a run report
type Formatter interface {
	Format(report *types.Report) (string, error)
}

// actionOrder fixes the order of summary rows
var actionOrder = []types.Action{
	types.ActionApplied,
	types.ActionReady,
	types.ActionCreated,
	types.ActionUpdated,
	types.ActionDeleted,
	types.ActionCopied,
	types.ActionSkipped,
	types.ActionFailed,
}

// Format formats the report as JSON
func (j *JSON) Format(report *types.Report) (string, error) {
	bytes, err := json.MarshalIndent(parseReport(report, j.opts), "", "  ")
	if err != nil {
		return "", fmt.Errorf("error formatting as JSON: %w", err)
	}
	return string(bytes), nil
}

// Format formats the report as YAML
func (y *YAML) Format(report *types.Report) (string, error) {
	bytes, err := yaml.Marshal(parseReport(report, y.opts))
	if err != nil {
		return "", fmt.Errorf("error formatting as YAML: %w", err)
	}
	return string(bytes), nil
}

// parseReport flattens a report into its serialized form
func parseReport(report *types.Report, opts *Options) ParsedReport {
	if report == nil {
		return ParsedReport{Steps: []StepEntry{}}
	}
	parsed := ParsedReport{
		Operation: report.Operation,
		Started:   report.Started.UTC().Format(time.RFC3339),
		Elapsed:   report.Elapsed.Round(time.Second).String(),
		Minutes:   types.Minutes(report.Elapsed),
		Steps:     make([]StepEntry, 0, len(report.Steps)),
	}
	for _, s := range report.Steps {
		entry := StepEntry{Entity: s.Entity, Kind: s.Kind, Action: s.Action, Detail: s.Detail}
		if s.Elapsed > 0 {
			entry.Elapsed = s.Elapsed.Round(time.Millisecond).String()
		}
		parsed.Steps = append(parsed.Steps, entry)
	}
	if opts != nil && opts.IncludeSummary {
		parsed.Summary = summarize(report)
	}
	return parsed
}

// summarize counts the steps per action, omitting actions that never
// occurred
func summarize(report *types.Report) []SummaryEntry {
	summary := []SummaryEntry{}
	for _, action := range actionOrder {
		if n := report.Count(action); n > 0 {
			summary = append(summary, SummaryEntry{Action: action, Count: n})
		}
	}
	return summary
}

// ParseType converts a string to a Type
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeJSON, TypeYAML, TypeTable, TypeMarkdown:
		return Type(s), nil
	default:
		return "", fmt.Errorf("unknown formatter type: %s", s)
	}
}

// NewFormatter creates a new formatter of the specified type
func NewFormatter(t Type, opts *Options) (Formatter, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	switch t {
	case TypeJSON:
		return &JSON{opts: opts}, nil
	case TypeYAML:
		return &YAML{opts: opts}, nil
	case TypeTable:
		return &Table{opts: opts}, nil
	case TypeMarkdown:
		return &Markdown{opts: opts}, nil
	default:
		return nil, fmt.Errorf("unknown formatter type: %s", t)
	}
}
