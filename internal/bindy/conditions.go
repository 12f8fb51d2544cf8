package bindy

import (
	"fmt"
	"sort"

	"github.com/firestoned/bindy/api/v1alpha1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// Child is the readiness summary of a single child resource used for status aggregation.
type Child struct {
	Kind    string
	Name    string
	Ready   bool
	Reason  string
	Message string
}

// Aggregate builds the two-level condition set for a resource with the given children: one
// encompassing `Ready` condition plus one condition per child. Children are brought into a
// stable kind/name ordering first so that unrelated reordering never produces a spurious
// status diff. Aggregation is local to one level, a child's own nested conditions are not
// flattened.
func Aggregate(observedGeneration int64, children []Child) []metav1.Condition {
	sorted := make([]Child, len(children))
	copy(sorted, children)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Kind != sorted[j].Kind {
			return sorted[i].Kind < sorted[j].Kind
		}
		return sorted[i].Name < sorted[j].Name
	})

	ready := 0
	for _, child := range sorted {
		if child.Ready {
			ready++
		}
	}

	conditions := make([]metav1.Condition, 0, len(sorted)+1)
	conditions = append(conditions, encompassing(observedGeneration, ready, len(sorted)))

	index := make(map[string]int, len(sorted))
	for _, child := range sorted {
		status := metav1.ConditionFalse
		reason := child.Reason
		if child.Ready {
			status = metav1.ConditionTrue
			if reason == "" {
				reason = v1alpha1.ReasonAllReady
			}
		} else if reason == "" {
			reason = v1alpha1.ReasonNotReady
		}
		conditions = append(conditions, metav1.Condition{
			Type:               fmt.Sprintf("%s-%d", child.Kind, index[child.Kind]),
			Status:             status,
			Reason:             reason,
			Message:            child.Message,
			ObservedGeneration: observedGeneration,
		})
		index[child.Kind]++
	}
	return conditions
}

func encompassing(observedGeneration int64, ready, total int) metav1.Condition {
	condition := metav1.Condition{
		Type:               v1alpha1.ConditionReady,
		ObservedGeneration: observedGeneration,
	}
	switch {
	case total == 0:
		condition.Status = metav1.ConditionFalse
		condition.Reason = v1alpha1.ReasonNoChildren
	case ready == total:
		condition.Status = metav1.ConditionTrue
		condition.Reason = v1alpha1.ReasonAllReady
	case ready == 0:
		condition.Status = metav1.ConditionFalse
		condition.Reason = v1alpha1.ReasonNotReady
	default:
		condition.Status = metav1.ConditionFalse
		condition.Reason = v1alpha1.ReasonPartiallyReady
	}
	condition.Message = fmt.Sprintf("%d/%d children ready", ready, total)
	return condition
}

// Changed returns whether the desired condition set semantically differs from the stored
// one. Transition timestamps are ignored, writing the status only when this function
// returns true prevents self-triggered requeue loops.
func Changed(current, desired []metav1.Condition) bool {
	if len(current) != len(desired) {
		return true
	}
	for i := range desired {
		if current[i].Type != desired[i].Type ||
			current[i].Status != desired[i].Status ||
			current[i].Reason != desired[i].Reason ||
			current[i].Message != desired[i].Message {
			return true
		}
	}
	return false
}

// Stamp carries the last transition times of the current conditions over to the desired
// ones where type and status are unchanged, and sets the given time everywhere else.
func Stamp(now metav1.Time, current, desired []metav1.Condition) []metav1.Condition {
	previous := make(map[string]metav1.Condition, len(current))
	for _, condition := range current {
		previous[condition.Type] = condition
	}
	for i := range desired {
		if old, ok := previous[desired[i].Type]; ok && old.Status == desired[i].Status {
			desired[i].LastTransitionTime = old.LastTransitionTime
			continue
		}
		desired[i].LastTransitionTime = now
	}
	return desired
}

// IsReady returns whether the encompassing `Ready` condition of the given set is true.
func IsReady(conditions []metav1.Condition) bool {
	for _, condition := range conditions {
		if condition.Type == v1alpha1.ConditionReady {
			return condition.Status == metav1.ConditionTrue
		}
	}
	return false
}
