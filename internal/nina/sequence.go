package nina

import "strings"

// SequenceSnapshot is the raw sequence tree. Node shapes genuinely vary by
// node kind, so the tree is kept as untyped JSON values with accessor
// helpers instead of a rigid struct hierarchy. Element 0 holds the global
// triggers; subsequent elements are top-level containers.
type SequenceSnapshot struct {
	Nodes []any
}

// targetSuffix marks containers that group instructions for one
// observation target.
const targetSuffix = "_Container"

// systemContainers are generic sequencer scaffolding, never observation
// targets, regardless of status.
var systemContainers = []string{
	"Start_Container",
	"End_Container",
	"Targets_Container",
	"Basic Sequence Startup_Container",
	"Basic Sequence End_Container",
	"Target Imaging Instructions_Container",
	"Parallel End of Sequence Instructions_Container",
}

// IsSystemContainer reports whether the container name is sequencer
// scaffolding rather than a target.
func IsSystemContainer(name string) bool {
	for _, sys := range systemContainers {
		if strings.Contains(name, sys) {
			return true
		}
	}
	return false
}

func getString(obj map[string]any, key string) (string, bool) {
	v, ok := obj[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func getSlice(obj map[string]any, key string) ([]any, bool) {
	v, ok := obj[key]
	if !ok {
		return nil, false
	}
	s, ok := v.([]any)
	return s, ok
}

func getFloat(obj map[string]any, key string) (float64, bool) {
	v, ok := obj[key]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

// CurrentTarget extracts the active observation target from the sequence
// tree: the first container in pre-order whose status is RUNNING or Active,
// whose name carries the target suffix, and which is not sequencer
// scaffolding. The suffix is stripped from the returned name. The walk
// short-circuits on the first hit; a name that is empty after stripping
// does not count.
func (s *SequenceSnapshot) CurrentTarget() (string, bool) {
	return findTarget(s.Nodes)
}

func findTarget(nodes []any) (string, bool) {
	for _, node := range nodes {
		obj, ok := node.(map[string]any)
		if !ok {
			continue
		}
		name, okName := getString(obj, "Name")
		status, okStatus := getString(obj, "Status")
		if !okName || !okStatus {
			continue
		}
		if (status == "RUNNING" || status == "Active") &&
			strings.HasSuffix(name, targetSuffix) &&
			!IsSystemContainer(name) {
			target := strings.TrimSuffix(name, targetSuffix)
			if target != "" {
				return target, true
			}
		}
		if items, ok := getSlice(obj, "Items"); ok {
			if target, found := findTarget(items); found {
				return target, true
			}
		}
	}
	return "", false
}

// MeridianFlipHours extracts the TimeToFlip value (hours) from the
// "Meridian Flip_Trigger" entry of the global triggers node, if present.
func (s *SequenceSnapshot) MeridianFlipHours() (float64, bool) {
	if len(s.Nodes) == 0 {
		return 0, false
	}
	head, ok := s.Nodes[0].(map[string]any)
	if !ok {
		return 0, false
	}
	triggers, ok := getSlice(head, "GlobalTriggers")
	if !ok {
		return 0, false
	}
	for _, t := range triggers {
		obj, ok := t.(map[string]any)
		if !ok {
			continue
		}
		if name, _ := getString(obj, "Name"); name != "Meridian Flip_Trigger" {
			continue
		}
		if hours, ok := getFloat(obj, "TimeToFlip"); ok {
			return hours, true
		}
	}
	return 0, false
}
