package controllers

import (
	"context"
	"testing"

	"github.com/firestoned/bindy/api/v1alpha1"
	"github.com/firestoned/bindy/internal/k8tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	apierrs "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	ctrl "sigs.k8s.io/controller-runtime"
)

func prodSelector() v1alpha1.Selector {
	return v1alpha1.Selector{MatchLabels: map[string]string{"env": "prod"}}
}

func zoneRequest(namespace, name string) ctrl.Request {
	return ctrl.Request{NamespacedName: types.NamespacedName{Namespace: namespace, Name: name}}
}

func TestZoneDiscoveryAssignsAndPushes(t *testing.T) {
	ctx := context.Background()
	instance := k8tests.DummyInstance("instance-a", "dns", prodSelector())
	zone := k8tests.DummyZone("my-zone", "dns", "example.com", map[string]string{"env": "prod"})
	ctrlClient := k8tests.NewClient(k8tests.NewScheme(), &instance, &zone)
	servers := newFakeServers()
	reconciler := NewDNSZoneReconciler(ctrlClient, zap.NewNop(), testConfig(), servers)

	_, err := reconciler.Reconcile(ctx, zoneRequest("dns", "my-zone"))
	require.Nil(t, err)

	// The zone should be assigned to the instance and pushed to its server
	var updated v1alpha1.DNSZone
	require.Nil(t, ctrlClient.Get(ctx, types.NamespacedName{Namespace: "dns", Name: "my-zone"}, &updated))
	require.Len(t, updated.Status.Instances, 1)
	assert.Equal(t, "instance-a", updated.Status.Instances[0].Name)
	assert.NotNil(t, updated.Status.Instances[0].LastReconciledAt)
	assert.Contains(t, updated.Finalizers, finalizer)
	require.NotEmpty(t, updated.Status.Conditions)
	assert.Equal(t, metav1.ConditionTrue, updated.Status.Conditions[0].Status)

	assert.ElementsMatch(t,
		[]string{"example.com"},
		servers.zoneNames("http://instance-a.dns.svc:8053"),
	)
}

func TestZoneExplicitReferencesOutrankSelectors(t *testing.T) {
	ctx := context.Background()
	discovered := k8tests.DummyInstance("instance-a", "dns", prodSelector())
	referenced := k8tests.DummyInstance("instance-b", "dns")
	zone := k8tests.DummyZone("my-zone", "dns", "example.com", map[string]string{"env": "prod"})
	zone.Spec.Instances = []v1alpha1.InstanceReference{{Name: "instance-b"}}
	ctrlClient := k8tests.NewClient(k8tests.NewScheme(), &discovered, &referenced, &zone)
	servers := newFakeServers()
	reconciler := NewDNSZoneReconciler(ctrlClient, zap.NewNop(), testConfig(), servers)

	_, err := reconciler.Reconcile(ctx, zoneRequest("dns", "my-zone"))
	require.Nil(t, err)

	var updated v1alpha1.DNSZone
	require.Nil(t, ctrlClient.Get(ctx, types.NamespacedName{Namespace: "dns", Name: "my-zone"}, &updated))
	require.Len(t, updated.Status.Instances, 1)
	assert.Equal(t, "instance-b", updated.Status.Instances[0].Name)

	// The ignored selector match surfaces as a warning condition
	var conflict *metav1.Condition
	for i := range updated.Status.Conditions {
		if updated.Status.Conditions[i].Reason == v1alpha1.ReasonConflictingClaim {
			conflict = &updated.Status.Conditions[i]
		}
	}
	require.NotNil(t, conflict)
	assert.Contains(t, conflict.Message, "instance-a")

	assert.Empty(t, servers.zoneNames("http://instance-a.dns.svc:8053"))
	assert.ElementsMatch(t,
		[]string{"example.com"},
		servers.zoneNames("http://instance-b.dns.svc:8053"),
	)
}

func TestZoneDuplicateIsExcluded(t *testing.T) {
	ctx := context.Background()
	instance := k8tests.DummyInstance("instance-a", "dns", prodSelector())
	active := k8tests.DummyZone("a-zone", "dns", "example.com", map[string]string{"env": "prod"})
	duplicate := k8tests.DummyZone("b-zone", "dns", "example.com", map[string]string{"env": "prod"})
	ctrlClient := k8tests.NewClient(k8tests.NewScheme(), &instance, &active, &duplicate)
	servers := newFakeServers()
	reconciler := NewDNSZoneReconciler(ctrlClient, zap.NewNop(), testConfig(), servers)

	// The duplicate is excluded from convergence entirely
	_, err := reconciler.Reconcile(ctx, zoneRequest("dns", "b-zone"))
	require.Nil(t, err)

	var updated v1alpha1.DNSZone
	require.Nil(t, ctrlClient.Get(ctx, types.NamespacedName{Namespace: "dns", Name: "b-zone"}, &updated))
	assert.Empty(t, updated.Status.Instances)
	require.Len(t, updated.Status.Conditions, 1)
	assert.Equal(t, v1alpha1.ReasonDuplicateZone, updated.Status.Conditions[0].Reason)
	assert.Empty(t, servers.zoneNames("http://instance-a.dns.svc:8053"))

	// The active zone converges normally
	_, err = reconciler.Reconcile(ctx, zoneRequest("dns", "a-zone"))
	require.Nil(t, err)
	assert.ElementsMatch(t,
		[]string{"example.com"},
		servers.zoneNames("http://instance-a.dns.svc:8053"),
	)
}

func TestZonePushSkippedWhenAlreadyReconciled(t *testing.T) {
	ctx := context.Background()
	instance := k8tests.DummyInstance("instance-a", "dns", prodSelector())
	zone := k8tests.DummyZone("my-zone", "dns", "example.com", map[string]string{"env": "prod"})
	ctrlClient := k8tests.NewClient(k8tests.NewScheme(), &instance, &zone)
	servers := newFakeServers()
	reconciler := NewDNSZoneReconciler(ctrlClient, zap.NewNop(), testConfig(), servers)

	request := zoneRequest("dns", "my-zone")
	_, err := reconciler.Reconcile(ctx, request)
	require.Nil(t, err)

	// A second run must not hit the server again: failing all API operations makes any
	// unexpected push visible
	servers.fail = assert.AnError
	_, err = reconciler.Reconcile(ctx, request)
	require.Nil(t, err)

	var updated v1alpha1.DNSZone
	require.Nil(t, ctrlClient.Get(ctx, request.NamespacedName, &updated))
	require.NotEmpty(t, updated.Status.Conditions)
	assert.Equal(t, metav1.ConditionTrue, updated.Status.Conditions[0].Status)
}

func TestZoneRevokedFromUnclaimedInstance(t *testing.T) {
	ctx := context.Background()
	first := k8tests.DummyInstance("instance-a", "dns")
	second := k8tests.DummyInstance("instance-b", "dns")
	zone := k8tests.DummyZone("my-zone", "dns", "example.com", nil)
	zone.Spec.Instances = []v1alpha1.InstanceReference{{Name: "instance-a"}}
	ctrlClient := k8tests.NewClient(k8tests.NewScheme(), &first, &second, &zone)
	servers := newFakeServers()

	config := testConfig()
	config.Reconcile.RevokeUnclaimed = true
	reconciler := NewDNSZoneReconciler(ctrlClient, zap.NewNop(), config, servers)

	request := zoneRequest("dns", "my-zone")
	_, err := reconciler.Reconcile(ctx, request)
	require.Nil(t, err)
	require.ElementsMatch(t,
		[]string{"example.com"},
		servers.zoneNames("http://instance-a.dns.svc:8053"),
	)

	// Reassigning the zone must remove it from the server it no longer claims
	var updated v1alpha1.DNSZone
	require.Nil(t, ctrlClient.Get(ctx, request.NamespacedName, &updated))
	updated.Spec.Instances = []v1alpha1.InstanceReference{{Name: "instance-b"}}
	require.Nil(t, ctrlClient.Update(ctx, &updated))

	_, err = reconciler.Reconcile(ctx, request)
	require.Nil(t, err)
	assert.Empty(t, servers.zoneNames("http://instance-a.dns.svc:8053"))
	assert.ElementsMatch(t,
		[]string{"example.com"},
		servers.zoneNames("http://instance-b.dns.svc:8053"),
	)

	require.Nil(t, ctrlClient.Get(ctx, request.NamespacedName, &updated))
	require.Len(t, updated.Status.Instances, 1)
	assert.Equal(t, "instance-b", updated.Status.Instances[0].Name)
}

func TestZoneFinalizerRemovesZoneFromServers(t *testing.T) {
	ctx := context.Background()
	instance := k8tests.DummyInstance("instance-a", "dns", prodSelector())
	zone := k8tests.DummyZone("my-zone", "dns", "example.com", map[string]string{"env": "prod"})
	ctrlClient := k8tests.NewClient(k8tests.NewScheme(), &instance, &zone)
	servers := newFakeServers()
	reconciler := NewDNSZoneReconciler(ctrlClient, zap.NewNop(), testConfig(), servers)

	request := zoneRequest("dns", "my-zone")
	_, err := reconciler.Reconcile(ctx, request)
	require.Nil(t, err)
	require.NotEmpty(t, servers.zoneNames("http://instance-a.dns.svc:8053"))

	// Deleting the resource only marks it due to the finalizer, the next reconciliation
	// cleans up the servers and releases it
	var updated v1alpha1.DNSZone
	require.Nil(t, ctrlClient.Get(ctx, request.NamespacedName, &updated))
	require.Nil(t, ctrlClient.Delete(ctx, &updated))

	_, err = reconciler.Reconcile(ctx, request)
	require.Nil(t, err)
	assert.Empty(t, servers.zoneNames("http://instance-a.dns.svc:8053"))

	err = ctrlClient.Get(ctx, request.NamespacedName, &updated)
	assert.True(t, apierrs.IsNotFound(err))
}
