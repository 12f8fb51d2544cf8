package bindy

import (
	"testing"
	"time"

	"github.com/firestoned/bindy/api/v1alpha1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
)

func newInstance(name, namespace string, selectors ...v1alpha1.Selector) v1alpha1.Bind9Instance {
	return v1alpha1.Bind9Instance{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace},
		Spec:       v1alpha1.Bind9InstanceSpec{ZoneSelectors: selectors},
	}
}

func newZone(name, namespace string, labels map[string]string) v1alpha1.DNSZone {
	return v1alpha1.DNSZone{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace, Labels: labels},
		Spec:       v1alpha1.DNSZoneSpec{ZoneName: "example.com"},
	}
}

func prodSelector() v1alpha1.Selector {
	return v1alpha1.Selector{MatchLabels: map[string]string{"env": "prod"}}
}

func TestResolveDiscoveredFirstClaimWins(t *testing.T) {
	zone := newZone("my-zone", "dns", map[string]string{"env": "prod"})
	candidates := []v1alpha1.Bind9Instance{
		// Deliberately unsorted, resolution must order deterministically
		newInstance("instance-b", "dns", prodSelector()),
		newInstance("instance-a", "dns", prodSelector()),
		newInstance("unrelated", "dns"),
	}

	resolution := ResolveAssignments(&zone, candidates)
	require.Len(t, resolution.Assignments, 1)
	assert.Equal(t, "instance-a", resolution.Assignments[0].Instance.Name)
	assert.True(t, resolution.Assignments[0].Discovered)

	require.Len(t, resolution.Conflicts, 1)
	assert.Equal(t, "instance-b", resolution.Conflicts[0].Instance.Name)
	assert.Empty(t, resolution.Stale)
}

func TestResolveDiscoveredNoMatch(t *testing.T) {
	zone := newZone("my-zone", "dns", map[string]string{"env": "dev"})
	candidates := []v1alpha1.Bind9Instance{
		newInstance("instance-a", "dns", prodSelector()),
		// An instance without selectors never discovers anything
		newInstance("instance-b", "dns"),
	}

	resolution := ResolveAssignments(&zone, candidates)
	assert.Empty(t, resolution.Assignments)
	assert.Empty(t, resolution.Conflicts)
}

func TestResolveExplicitOutranksDiscovery(t *testing.T) {
	zone := newZone("my-zone", "dns", map[string]string{"env": "prod"})
	zone.Spec.Instances = []v1alpha1.InstanceReference{{Name: "instance-b"}}
	candidates := []v1alpha1.Bind9Instance{
		newInstance("instance-a", "dns", prodSelector()),
		newInstance("instance-b", "dns"),
	}

	resolution := ResolveAssignments(&zone, candidates)
	require.Len(t, resolution.Assignments, 1)
	assert.Equal(t, "instance-b", resolution.Assignments[0].Instance.Name)
	assert.False(t, resolution.Assignments[0].Discovered)

	// The matching selector of instance-a is recorded as an ignored conflict
	require.Len(t, resolution.Conflicts, 1)
	assert.Equal(t, "instance-a", resolution.Conflicts[0].Instance.Name)
}

func TestResolveExplicitToleratesStaleReferences(t *testing.T) {
	zone := newZone("my-zone", "dns", nil)
	zone.Spec.Instances = []v1alpha1.InstanceReference{
		{Name: "instance-a"},
		{Name: "missing"},
		{Name: "instance-a"}, // duplicates are collapsed
	}
	candidates := []v1alpha1.Bind9Instance{newInstance("instance-a", "dns")}

	resolution := ResolveAssignments(&zone, candidates)
	require.Len(t, resolution.Assignments, 1)
	assert.Equal(t, "instance-a", resolution.Assignments[0].Instance.Name)
	assert.Equal(t,
		[]types.NamespacedName{{Namespace: "dns", Name: "missing"}},
		resolution.Stale,
	)
}

func TestResolveExplicitCrossNamespace(t *testing.T) {
	zone := newZone("my-zone", "dns", nil)
	zone.Spec.Instances = []v1alpha1.InstanceReference{{Name: "instance-a", Namespace: "other"}}
	candidates := []v1alpha1.Bind9Instance{newInstance("instance-a", "other")}

	resolution := ResolveAssignments(&zone, candidates)
	require.Len(t, resolution.Assignments, 1)
	assert.Equal(t,
		types.NamespacedName{Namespace: "other", Name: "instance-a"},
		resolution.Assignments[0].Instance,
	)
}

func TestFindActiveDuplicate(t *testing.T) {
	now := metav1.Now()
	earlier := metav1.NewTime(now.Add(-time.Hour))

	zone := newZone("newer", "dns", nil)
	zone.CreationTimestamp = now
	active := newZone("older", "dns", nil)
	active.CreationTimestamp = earlier
	unrelated := newZone("other-zone", "dns", nil)
	unrelated.Spec.ZoneName = "other.example.com"

	duplicate := FindActiveDuplicate(&zone, []v1alpha1.DNSZone{zone, active, unrelated})
	require.NotNil(t, duplicate)
	assert.Equal(t, "older", duplicate.Name)

	// The active zone itself must not report a duplicate
	assert.Nil(t, FindActiveDuplicate(&active, []v1alpha1.DNSZone{zone, active, unrelated}))
}

func TestFindActiveDuplicateTiebreak(t *testing.T) {
	now := metav1.Now()
	first := newZone("a-zone", "dns", nil)
	first.CreationTimestamp = now
	second := newZone("b-zone", "dns", nil)
	second.CreationTimestamp = now

	// Identical timestamps fall back to the lexicographic namespace/name ordering
	duplicate := FindActiveDuplicate(&second, []v1alpha1.DNSZone{first, second})
	require.NotNil(t, duplicate)
	assert.Equal(t, "a-zone", duplicate.Name)
	assert.Nil(t, FindActiveDuplicate(&first, []v1alpha1.DNSZone{first, second}))
}
