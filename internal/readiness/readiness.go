// Package readiness decides whether a fetched collection of cluster objects
// satisfies a readiness policy. It performs no I/O.
package readiness

import (
	"fmt"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// StatusField selects what part of an object signals readiness
type StatusField string

const (
	// Conditions: ready iff status.conditions holds Ready=True
	Conditions StatusField = "conditions"
	// Phase: ready iff status.phase equals the expected phase
	Phase StatusField = "phase"
	// Presence: the object existing is the signal
	Presence StatusField = "presence"
)

const (
	phaseRunning   = "Running"
	phaseSucceeded = "Succeeded"
)

// Policy describes when a collection of objects counts as ready
type Policy struct {
	StatusField StatusField
	// ReadyPhase is the phase that counts as ready, "Running" when empty
	ReadyPhase string
	// MinCount is the minimum number of tracked objects in phase mode
	MinCount int
	// ReplicaCount, when set, is the exact number of objects expected in
	// conditions mode
	ReplicaCount *int
}

// Validate reports policies that could never be evaluated
func (p Policy) Validate() error {
	switch p.StatusField {
	case Conditions, Phase, Presence:
	default:
		return fmt.Errorf("unknown status field %q", p.StatusField)
	}
	if p.MinCount < 0 {
		return fmt.Errorf("negative minimum count %d", p.MinCount)
	}
	if p.ReplicaCount != nil && *p.ReplicaCount < 0 {
		return fmt.Errorf("negative replica count %d", *p.ReplicaCount)
	}
	return nil
}

func (p Policy) readyPhase() string {
	if p.ReadyPhase == "" {
		return phaseRunning
	}
	return p.ReadyPhase
}

// Evaluate maps object name to readiness. The map is built from scratch
// on every call.
//
// In phase mode objects in phase "Succeeded" are left out entirely. In
// presence mode only the first object is recorded, and an empty collection
// yields an empty map.
func Evaluate(objects []unstructured.Unstructured, policy Policy) map[string]bool {
	ready := make(map[string]bool, len(objects))

	switch policy.StatusField {
	case Presence:
		if len(objects) > 0 {
			ready[objects[0].GetName()] = true
		}
	case Phase:
		want := policy.readyPhase()
		for i := range objects {
			phase := phaseOf(&objects[i])
			if phase == phaseSucceeded {
				continue
			}
			ready[objects[i].GetName()] = phase == want
		}
	case Conditions:
		for i := range objects {
			ready[objects[i].GetName()] = conditionTrue(&objects[i], "Ready")
		}
	}

	return ready
}

// Satisfied is the completion predicate for a readiness map produced by
// Evaluate with the same policy.
func Satisfied(ready map[string]bool, policy Policy) bool {
	switch policy.StatusField {
	case Presence:
		if len(ready) != 1 {
			return false
		}
		return AllReady(ready)
	case Phase:
		minCount := policy.MinCount
		if minCount < 1 {
			minCount = 1
		}
		return len(ready) >= minCount && AllReady(ready)
	case Conditions:
		if policy.ReplicaCount != nil {
			if len(ready) != *policy.ReplicaCount {
				return false
			}
		} else if len(ready) == 0 {
			return false
		}
		return AllReady(ready)
	default:
		return false
	}
}

// AllReady reports whether every entry is ready. An empty map is ready.
func AllReady(ready map[string]bool) bool {
	for _, ok := range ready {
		if !ok {
			return false
		}
	}
	return true
}

// Pending returns the names not yet ready
func Pending(ready map[string]bool) []string {
	var names []string
	for name, ok := range ready {
		if !ok {
			names = append(names, name)
		}
	}
	return names
}

func phaseOf(obj *unstructured.Unstructured) string {
	phase, _, _ := unstructured.NestedString(obj.Object, "status", "phase")
	return phase
}

func conditionTrue(obj *unstructured.Unstructured, condType string) bool {
	rawConditions, exist, err := unstructured.NestedFieldNoCopy(
		obj.Object, "status", "conditions")
	if err != nil || !exist {
		return false
	}
	conditions, ok := rawConditions.([]interface{})
	if !ok {
		return false
	}

	for _, condI := range conditions {
		cond, ok := condI.(map[string]interface{})
		if !ok {
			continue
		}
		if cond["type"] != condType {
			continue
		}
		return cond["status"] == "True"
	}
	return false
}
