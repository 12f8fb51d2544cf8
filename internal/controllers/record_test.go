package controllers

import (
	"context"
	"testing"

	"github.com/firestoned/bindy/api/v1alpha1"
	"github.com/firestoned/bindy/internal/k8tests"
	"github.com/firestoned/bindy/internal/nameserver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	apierrs "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

func newARecordReconciler(
	ctrlClient client.Client, servers ServerClients,
) *RecordReconciler[*v1alpha1.ARecord, *v1alpha1.ARecordList] {
	return NewRecordReconciler(ctrlClient, zap.NewNop(), testConfig(), servers,
		func() *v1alpha1.ARecord { return &v1alpha1.ARecord{} },
		func() *v1alpha1.ARecordList { return &v1alpha1.ARecordList{} },
		func(list *v1alpha1.ARecordList) []*v1alpha1.ARecord {
			records := make([]*v1alpha1.ARecord, 0, len(list.Items))
			for i := range list.Items {
				records = append(records, &list.Items[i])
			}
			return records
		},
	)
}

func servedZone(name, namespace, zoneName string) v1alpha1.DNSZone {
	zone := k8tests.DummyZone(name, namespace, zoneName, nil)
	zone.Status.Instances = []v1alpha1.AssignedInstance{{Name: "instance-a", Namespace: namespace}}
	return zone
}

func TestRecordPushedToServingInstances(t *testing.T) {
	ctx := context.Background()
	instance := k8tests.DummyInstance("instance-a", "dns")
	zone := servedZone("my-zone", "dns", "example.com")
	record := k8tests.DummyARecord("www", "dns", "my-zone", "10.0.0.1")
	ctrlClient := k8tests.NewClient(k8tests.NewScheme(), &instance, &zone, &record)
	servers := newFakeServers()
	reconciler := newARecordReconciler(ctrlClient, servers)

	request := ctrl.Request{NamespacedName: types.NamespacedName{Namespace: "dns", Name: "www"}}
	_, err := reconciler.Reconcile(ctx, request)
	require.Nil(t, err)

	records := servers.recordsOf("http://instance-a.dns.svc:8053", "example.com")
	require.Len(t, records, 1)
	assert.Equal(t, nameserver.Record{Name: "www", Type: "A", TTL: 300, Data: "10.0.0.1"}, records[0])

	var updated v1alpha1.ARecord
	require.Nil(t, ctrlClient.Get(ctx, request.NamespacedName, &updated))
	assert.Contains(t, updated.Finalizers, finalizer)
	require.NotEmpty(t, updated.Status.Conditions)
	assert.Equal(t, metav1.ConditionTrue, updated.Status.Conditions[0].Status)
}

func TestRecordInvalidSpecIsTerminal(t *testing.T) {
	ctx := context.Background()
	instance := k8tests.DummyInstance("instance-a", "dns")
	zone := servedZone("my-zone", "dns", "example.com")
	record := k8tests.DummyARecord("www", "dns", "my-zone", "not-an-address")
	ctrlClient := k8tests.NewClient(k8tests.NewScheme(), &instance, &zone, &record)
	servers := newFakeServers()
	reconciler := newARecordReconciler(ctrlClient, servers)

	request := ctrl.Request{NamespacedName: types.NamespacedName{Namespace: "dns", Name: "www"}}
	result, err := reconciler.Reconcile(ctx, request)

	// Terminal failures must neither return an error nor request a requeue
	require.Nil(t, err)
	assert.Equal(t, ctrl.Result{}, result)
	assert.Empty(t, servers.recordsOf("http://instance-a.dns.svc:8053", "example.com"))

	var updated v1alpha1.ARecord
	require.Nil(t, ctrlClient.Get(ctx, request.NamespacedName, &updated))
	require.Len(t, updated.Status.Conditions, 1)
	assert.Equal(t, v1alpha1.ReasonInvalidSpec, updated.Status.Conditions[0].Reason)
}

func TestRecordMissingZone(t *testing.T) {
	ctx := context.Background()
	record := k8tests.DummyARecord("www", "dns", "missing-zone", "10.0.0.1")
	ctrlClient := k8tests.NewClient(k8tests.NewScheme(), &record)
	reconciler := newARecordReconciler(ctrlClient, newFakeServers())

	request := ctrl.Request{NamespacedName: types.NamespacedName{Namespace: "dns", Name: "www"}}
	result, err := reconciler.Reconcile(ctx, request)
	require.Nil(t, err)
	assert.Greater(t, result.RequeueAfter.Seconds(), float64(0))

	var updated v1alpha1.ARecord
	require.Nil(t, ctrlClient.Get(ctx, request.NamespacedName, &updated))
	require.Len(t, updated.Status.Conditions, 1)
	assert.Equal(t, v1alpha1.ReasonZoneNotFound, updated.Status.Conditions[0].Reason)
}

func TestRecordTTLPrecedence(t *testing.T) {
	ctx := context.Background()
	instance := k8tests.DummyInstance("instance-a", "dns")
	zone := servedZone("my-zone", "dns", "example.com")
	zoneTTL := v1alpha1.RecordTTL(600)
	zone.Spec.TTL = &zoneTTL

	// The record's own TTL outranks the zone default
	record := k8tests.DummyARecord("www", "dns", "my-zone", "10.0.0.1")
	recordTTL := v1alpha1.RecordTTL(120)
	record.Spec.TTL = &recordTTL

	ctrlClient := k8tests.NewClient(k8tests.NewScheme(), &instance, &zone, &record)
	servers := newFakeServers()
	reconciler := newARecordReconciler(ctrlClient, servers)

	request := ctrl.Request{NamespacedName: types.NamespacedName{Namespace: "dns", Name: "www"}}
	_, err := reconciler.Reconcile(ctx, request)
	require.Nil(t, err)

	records := servers.recordsOf("http://instance-a.dns.svc:8053", "example.com")
	require.Len(t, records, 1)
	assert.Equal(t, 120, records[0].TTL)
}

func TestRecordFinalizerRemovesRecordFromServers(t *testing.T) {
	ctx := context.Background()
	instance := k8tests.DummyInstance("instance-a", "dns")
	zone := servedZone("my-zone", "dns", "example.com")
	record := k8tests.DummyARecord("www", "dns", "my-zone", "10.0.0.1")
	ctrlClient := k8tests.NewClient(k8tests.NewScheme(), &instance, &zone, &record)
	servers := newFakeServers()
	reconciler := newARecordReconciler(ctrlClient, servers)

	request := ctrl.Request{NamespacedName: types.NamespacedName{Namespace: "dns", Name: "www"}}
	_, err := reconciler.Reconcile(ctx, request)
	require.Nil(t, err)
	require.Len(t, servers.recordsOf("http://instance-a.dns.svc:8053", "example.com"), 1)

	var updated v1alpha1.ARecord
	require.Nil(t, ctrlClient.Get(ctx, request.NamespacedName, &updated))
	require.Nil(t, ctrlClient.Delete(ctx, &updated))

	_, err = reconciler.Reconcile(ctx, request)
	require.Nil(t, err)
	assert.Empty(t, servers.recordsOf("http://instance-a.dns.svc:8053", "example.com"))
	err = ctrlClient.Get(ctx, request.NamespacedName, &updated)
	assert.True(t, apierrs.IsNotFound(err))
}
