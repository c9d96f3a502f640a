package types

import (
	"math"
	"time"
)

// Action is what happened to an entity during a run
type Action string

const (
	ActionApplied Action = "applied"
	ActionReady   Action = "ready"
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
	ActionSkipped Action = "skipped"
	ActionCopied  Action = "copied"
	ActionFailed  Action = "failed"
)

// Step records a single action taken against a cluster object or registry entity
type Step struct {
	Entity  string        `json:"entity" yaml:"entity"`
	Kind    string        `json:"kind" yaml:"kind"`
	Action  Action        `json:"action" yaml:"action"`
	Detail  string        `json:"detail,omitempty" yaml:"detail,omitempty"`
	Elapsed time.Duration `json:"elapsed,omitempty" yaml:"elapsed,omitempty"`
}

// Report collects the steps of one operation
type Report struct {
	Operation string        `json:"operation" yaml:"operation"`
	Started   time.Time     `json:"started" yaml:"started"`
	Elapsed   time.Duration `json:"elapsed" yaml:"elapsed"`
	Steps     []Step        `json:"steps" yaml:"steps"`
}

// NewReport starts a report for the named operation
func NewReport(operation string) *Report {
	return &Report{Operation: operation, Started: time.Now(), Steps: []Step{}}
}

// Add appends a step. A nil report discards it.
func (r *Report) Add(step Step) {
	if r == nil {
		return
	}
	r.Steps = append(r.Steps, step)
}

// Count returns how many steps carry the given action
func (r *Report) Count(action Action) int {
	n := 0
	for _, s := range r.Steps {
		if s.Action == action {
			n++
		}
	}
	return n
}

// Finish stamps the elapsed time
func (r *Report) Finish() {
	r.Elapsed = time.Since(r.Started)
}

// Minutes rounds a duration up to whole minutes, as run times are reported
func Minutes(d time.Duration) int {
	return int(math.Ceil(d.Minutes()))
}
