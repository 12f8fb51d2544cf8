package controllers

import (
	"context"
	"testing"

	"github.com/firestoned/bindy/api/v1alpha1"
	"github.com/firestoned/bindy/internal/k8tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	appsv1 "k8s.io/api/apps/v1"
	v1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/types"
	ctrl "sigs.k8s.io/controller-runtime"
)

func TestInstanceCreatesWorkload(t *testing.T) {
	ctx := context.Background()
	instance := k8tests.DummyInstance("my-instance", "dns")
	ctrlClient := k8tests.NewClient(k8tests.NewScheme(), &instance)
	reconciler := NewBind9InstanceReconciler(ctrlClient, zap.NewNop(), testConfig())

	request := ctrl.Request{NamespacedName: types.NamespacedName{Namespace: "dns", Name: "my-instance"}}
	result, err := reconciler.Reconcile(ctx, request)
	require.Nil(t, err)
	assert.Greater(t, result.RequeueAfter.Seconds(), float64(0))

	name := types.NamespacedName{Namespace: "dns", Name: "my-instance"}
	var configMap v1.ConfigMap
	require.Nil(t, ctrlClient.Get(ctx, name, &configMap))
	assert.Contains(t, configMap.Data["named.conf"], "port 8053")

	var service v1.Service
	require.Nil(t, ctrlClient.Get(ctx, name, &service))
	assert.Len(t, service.Spec.Ports, 3)

	var deployment appsv1.Deployment
	require.Nil(t, ctrlClient.Get(ctx, name, &deployment))
	require.Len(t, deployment.Spec.Template.Spec.Containers, 1)
	assert.Equal(t,
		"internetsystemsconsortium/bind9:9.18",
		deployment.Spec.Template.Spec.Containers[0].Image,
	)
	require.Len(t, deployment.OwnerReferences, 1)
	assert.True(t, *deployment.OwnerReferences[0].Controller)

	// The deployment is not available yet, the instance must not report readiness
	var updated v1alpha1.Bind9Instance
	require.Nil(t, ctrlClient.Get(ctx, name, &updated))
	require.NotEmpty(t, updated.Status.Conditions)
	assert.Equal(t, "2/3 children ready", updated.Status.Conditions[0].Message)
}

func TestInstanceRecreatesDeletedChildren(t *testing.T) {
	ctx := context.Background()
	instance := k8tests.DummyInstance("my-instance", "dns")
	ctrlClient := k8tests.NewClient(k8tests.NewScheme(), &instance)
	reconciler := NewBind9InstanceReconciler(ctrlClient, zap.NewNop(), testConfig())

	request := ctrl.Request{NamespacedName: types.NamespacedName{Namespace: "dns", Name: "my-instance"}}
	_, err := reconciler.Reconcile(ctx, request)
	require.Nil(t, err)

	// Delete the deployment out-of-band and reconcile again
	name := types.NamespacedName{Namespace: "dns", Name: "my-instance"}
	var deployment appsv1.Deployment
	require.Nil(t, ctrlClient.Get(ctx, name, &deployment))
	require.Nil(t, ctrlClient.Delete(ctx, &deployment))

	_, err = reconciler.Reconcile(ctx, request)
	require.Nil(t, err)
	assert.Nil(t, ctrlClient.Get(ctx, name, &deployment))
}

func TestInstanceReportsReadinessAndZoneCount(t *testing.T) {
	ctx := context.Background()
	instance := k8tests.DummyInstance("my-instance", "dns")
	zone := k8tests.DummyZone("my-zone", "dns", "example.com", nil)
	zone.Status.Instances = []v1alpha1.AssignedInstance{{Name: "my-instance", Namespace: "dns"}}
	otherZone := k8tests.DummyZone("other-zone", "dns", "other.example.com", nil)
	otherZone.Status.Instances = []v1alpha1.AssignedInstance{{Name: "other", Namespace: "dns"}}
	ctrlClient := k8tests.NewClient(k8tests.NewScheme(), &instance, &zone, &otherZone)
	reconciler := NewBind9InstanceReconciler(ctrlClient, zap.NewNop(), testConfig())

	request := ctrl.Request{NamespacedName: types.NamespacedName{Namespace: "dns", Name: "my-instance"}}
	_, err := reconciler.Reconcile(ctx, request)
	require.Nil(t, err)

	// Mark the deployment as available and reconcile again
	name := types.NamespacedName{Namespace: "dns", Name: "my-instance"}
	var deployment appsv1.Deployment
	require.Nil(t, ctrlClient.Get(ctx, name, &deployment))
	deployment.Status.Conditions = []appsv1.DeploymentCondition{{
		Type:   appsv1.DeploymentAvailable,
		Status: v1.ConditionTrue,
	}}
	require.Nil(t, ctrlClient.Status().Update(ctx, &deployment))

	_, err = reconciler.Reconcile(ctx, request)
	require.Nil(t, err)

	var updated v1alpha1.Bind9Instance
	require.Nil(t, ctrlClient.Get(ctx, name, &updated))
	assert.Equal(t, int32(1), updated.Status.ZoneCount)
	require.NotEmpty(t, updated.Status.Conditions)
	assert.Equal(t, "3/3 children ready", updated.Status.Conditions[0].Message)
}

func TestInstanceZoneCountDropsWhenUnassigned(t *testing.T) {
	ctx := context.Background()
	instance := k8tests.DummyInstance("my-instance", "dns")
	zone := k8tests.DummyZone("my-zone", "dns", "example.com", nil)
	zone.Status.Instances = []v1alpha1.AssignedInstance{{Name: "my-instance", Namespace: "dns"}}
	ctrlClient := k8tests.NewClient(k8tests.NewScheme(), &instance, &zone)
	reconciler := NewBind9InstanceReconciler(ctrlClient, zap.NewNop(), testConfig())

	request := ctrl.Request{NamespacedName: types.NamespacedName{Namespace: "dns", Name: "my-instance"}}
	_, err := reconciler.Reconcile(ctx, request)
	require.Nil(t, err)

	var updated v1alpha1.Bind9Instance
	require.Nil(t, ctrlClient.Get(ctx, request.NamespacedName, &updated))
	require.Equal(t, int32(1), updated.Status.ZoneCount)

	// Dropping the assignment must recount on the next pass
	var assigned v1alpha1.DNSZone
	require.Nil(t, ctrlClient.Get(ctx, types.NamespacedName{Namespace: "dns", Name: "my-zone"}, &assigned))
	assigned.Status.Instances = nil
	require.Nil(t, ctrlClient.Status().Update(ctx, &assigned))

	_, err = reconciler.Reconcile(ctx, request)
	require.Nil(t, err)
	require.Nil(t, ctrlClient.Get(ctx, request.NamespacedName, &updated))
	assert.Equal(t, int32(0), updated.Status.ZoneCount)
}
