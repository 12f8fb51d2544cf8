package bindy

import (
	"fmt"
	"sort"

	"github.com/firestoned/bindy/api/v1alpha1"
	"k8s.io/apimachinery/pkg/types"
)

// Assignment is a resolved edge between a zone and a single instance.
type Assignment struct {
	Instance types.NamespacedName
	// Discovered indicates that the assignment originates from selector-based discovery
	// rather than from an explicit instance reference.
	Discovered bool
}

// Conflict describes an instance whose claim on a zone was ignored because the zone is
// already claimed through another pathway.
type Conflict struct {
	Instance types.NamespacedName
	Message  string
}

// Resolution is the outcome of resolving the instances serving a zone.
type Resolution struct {
	Assignments []Assignment
	Conflicts   []Conflict
	// Stale lists explicitly referenced instances which do not exist. They are tolerated
	// and skipped rather than treated as fatal.
	Stale []types.NamespacedName
}

// ResolveAssignments determines the set of instances serving the given zone. An explicit
// instance reference list on the zone is authoritative and disables discovery entirely.
// Otherwise, the candidate instances are evaluated against the zone's labels in a stable
// lexicographic namespace/name ordering: the first match claims the zone and every later
// match is recorded as an ignored conflict.
func ResolveAssignments(
	zone *v1alpha1.DNSZone, candidates []v1alpha1.Bind9Instance,
) Resolution {
	if len(zone.Spec.Instances) > 0 {
		return resolveExplicit(zone, candidates)
	}
	return resolveDiscovered(zone, candidates)
}

func resolveExplicit(
	zone *v1alpha1.DNSZone, candidates []v1alpha1.Bind9Instance,
) Resolution {
	available := make(map[types.NamespacedName]struct{}, len(candidates))
	for _, instance := range candidates {
		key := types.NamespacedName{Namespace: instance.Namespace, Name: instance.Name}
		available[key] = struct{}{}
	}

	var resolution Resolution
	seen := make(map[types.NamespacedName]struct{}, len(zone.Spec.Instances))
	for _, ref := range zone.Spec.Instances {
		name := ref.NamespacedName(zone.Namespace)
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		if _, ok := available[name]; !ok {
			resolution.Stale = append(resolution.Stale, name)
			continue
		}
		resolution.Assignments = append(resolution.Assignments, Assignment{Instance: name})
	}

	// Instances whose selectors also match the zone do not get to serve it, the explicit
	// reference list always outranks discovery.
	for _, instance := range sortedCandidates(candidates) {
		name := types.NamespacedName{Namespace: instance.Namespace, Name: instance.Name}
		if _, ok := seen[name]; ok {
			continue
		}
		if MatchesAny(instance.Spec.ZoneSelectors, zone.Labels) {
			resolution.Conflicts = append(resolution.Conflicts, Conflict{
				Instance: name,
				Message: fmt.Sprintf(
					"selector of instance %q matches but zone is explicitly assigned", name,
				),
			})
		}
	}
	return resolution
}

func resolveDiscovered(
	zone *v1alpha1.DNSZone, candidates []v1alpha1.Bind9Instance,
) Resolution {
	var resolution Resolution
	for _, instance := range sortedCandidates(candidates) {
		if !MatchesAny(instance.Spec.ZoneSelectors, zone.Labels) {
			continue
		}
		name := types.NamespacedName{Namespace: instance.Namespace, Name: instance.Name}
		if len(resolution.Assignments) == 0 {
			resolution.Assignments = append(resolution.Assignments, Assignment{
				Instance:   name,
				Discovered: true,
			})
			continue
		}
		resolution.Conflicts = append(resolution.Conflicts, Conflict{
			Instance: name,
			Message: fmt.Sprintf(
				"zone is already claimed by instance %q", resolution.Assignments[0].Instance,
			),
		})
	}
	return resolution
}

// FindActiveDuplicate returns the namespaced name of another zone which manages the same
// logical zone name and takes precedence over the given zone, or nil if the given zone is
// the active one. Precedence is determined by creation timestamp with the namespace/name
// pair as a deterministic tie-breaker.
func FindActiveDuplicate(zone *v1alpha1.DNSZone, zones []v1alpha1.DNSZone) *types.NamespacedName {
	for i := range zones {
		other := &zones[i]
		if other.Spec.ZoneName != zone.Spec.ZoneName {
			continue
		}
		if other.Namespace == zone.Namespace && other.Name == zone.Name {
			continue
		}
		if precedes(other, zone) {
			name := types.NamespacedName{Namespace: other.Namespace, Name: other.Name}
			return &name
		}
	}
	return nil
}

func precedes(a, b *v1alpha1.DNSZone) bool {
	if !a.CreationTimestamp.Equal(&b.CreationTimestamp) {
		return a.CreationTimestamp.Before(&b.CreationTimestamp)
	}
	if a.Namespace != b.Namespace {
		return a.Namespace < b.Namespace
	}
	return a.Name < b.Name
}

func sortedCandidates(candidates []v1alpha1.Bind9Instance) []v1alpha1.Bind9Instance {
	sorted := make([]v1alpha1.Bind9Instance, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Namespace != sorted[j].Namespace {
			return sorted[i].Namespace < sorted[j].Namespace
		}
		return sorted[i].Name < sorted[j].Name
	})
	return sorted
}
