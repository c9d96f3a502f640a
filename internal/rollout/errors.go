package rollout

import (
	"fmt"
	"time"

	"github.com/alevsk/quay-ops/internal/types"
)

// ApplyError is returned when the cluster rejects a manifest. It aborts
// the rollout.
type ApplyError struct {
	Kind   string
	Name   string
	Source string
	Err    error
}

func (e *ApplyError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("apply %s/%s (%s): %v", e.Kind, e.Name, e.Source, e.Err)
	}
	return fmt.Sprintf("apply %s/%s: %v", e.Kind, e.Name, e.Err)
}

func (e *ApplyError) Unwrap() error { return e.Err }

// ReadinessTimeoutError is returned when a readiness policy is not
// satisfied within its poll bounds. It aborts the rollout.
type ReadinessTimeoutError struct {
	Kind       string
	Name       string
	Resource   string
	Iterations int
	Elapsed    time.Duration
	// Pending lists the objects that were not ready on the last poll
	Pending []string
}

func (e *ReadinessTimeoutError) Error() string {
	return fmt.Sprintf("%s/%s: %s not ready after %d iterations (%d minutes)",
		e.Kind, e.Name, e.Resource, e.Iterations, types.Minutes(e.Elapsed))
}
