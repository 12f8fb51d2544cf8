package bindy

import (
	"slices"

	"github.com/firestoned/bindy/api/v1alpha1"
)

// Matches determines whether the provided set of labels satisfies the selector. All match
// labels and all match expressions must be satisfied. A selector with neither field set
// matches nothing.
func Matches(selector v1alpha1.Selector, labels map[string]string) bool {
	if selector.Empty() {
		return false
	}
	for key, value := range selector.MatchLabels {
		if labels[key] != value {
			return false
		}
	}
	for _, requirement := range selector.MatchExpressions {
		if !matchesRequirement(requirement, labels) {
			return false
		}
	}
	return true
}

// MatchesAny determines whether the provided set of labels satisfies at least one selector
// of the source list.
func MatchesAny(selectors []v1alpha1.Selector, labels map[string]string) bool {
	for _, selector := range selectors {
		if Matches(selector, labels) {
			return true
		}
	}
	return false
}

func matchesRequirement(requirement v1alpha1.SelectorRequirement, labels map[string]string) bool {
	value, ok := labels[requirement.Key]
	switch requirement.Operator {
	case v1alpha1.SelectorOpIn:
		return ok && slices.Contains(requirement.Values, value)
	case v1alpha1.SelectorOpNotIn:
		return !ok || !slices.Contains(requirement.Values, value)
	case v1alpha1.SelectorOpExists:
		return ok
	case v1alpha1.SelectorOpDoesNotExist:
		return !ok
	default:
		// Unknown operators never match, they indicate a version skew in the CRD schema.
		return false
	}
}
