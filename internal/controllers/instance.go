package controllers

import (
	"context"
	"fmt"

	"github.com/firestoned/bindy/api/v1alpha1"
	"github.com/firestoned/bindy/internal/bindy"
	configv1 "github.com/firestoned/bindy/internal/config/v1"
	"github.com/firestoned/bindy/internal/ext"
	"github.com/firestoned/bindy/internal/k8s"
	"github.com/firestoned/bindy/internal/manifests"
	"go.uber.org/zap"
	appsv1 "k8s.io/api/apps/v1"
	v1 "k8s.io/api/core/v1"
	apierrs "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"
	"sigs.k8s.io/controller-runtime/pkg/handler"
	"sigs.k8s.io/controller-runtime/pkg/reconcile"
)

// Bind9InstanceReconciler reconciles a Bind9Instance object.
type Bind9InstanceReconciler struct {
	client.Client
	logger       *zap.Logger
	config       configv1.Config
	integrations []integrationTarget
}

// NewBind9InstanceReconciler creates a new Bind9InstanceReconciler.
func NewBind9InstanceReconciler(
	client client.Client, logger *zap.Logger, config configv1.Config,
) Bind9InstanceReconciler {
	return Bind9InstanceReconciler{
		Client:       client,
		logger:       logger,
		config:       config,
		integrations: integrationsFromConfig(config, client),
	}
}

// Reconcile manages the workload of a single BIND9 server: its configuration, service and
// deployment, plus the resources of all enabled integrations. Deleted or drifted children
// are recreated from the instance specification on every run.
func (r *Bind9InstanceReconciler) Reconcile(
	ctx context.Context, req ctrl.Request,
) (result ctrl.Result, err error) {
	defer func() { observe("instance", err) }()
	logger := r.logger.With(zap.String("name", req.String()))

	var instance v1alpha1.Bind9Instance
	if err := r.Get(ctx, req.NamespacedName, &instance); err != nil {
		if !apierrs.IsNotFound(err) {
			logger.Error("unable to query for instance", zap.Error(err))
		}
		return ctrl.Result{}, client.IgnoreNotFound(err)
	}
	if !instance.DeletionTimestamp.IsZero() {
		// Owned workload resources are cleaned up by garbage collection
		return ctrl.Result{}, nil
	}
	logger.Debug("reconciling instance")

	children := make([]bindy.Child, 0, 3+len(r.integrations))
	children = append(children, r.upsertConfigMap(ctx, logger, &instance))
	children = append(children, r.upsertService(ctx, logger, &instance))
	children = append(children, r.upsertDeployment(ctx, logger, &instance))

	for _, target := range r.integrations {
		child := bindy.Child{Kind: "Integration", Name: target.Name(), Ready: true}
		if err := target.UpdateResource(ctx, &instance, target.instanceInfo(&instance)); err != nil {
			logger.Error("failed to upsert integration resource",
				zap.String("integration", target.Name()), zap.Error(err),
			)
			child.Ready = false
			child.Message = err.Error()
		}
		children = append(children, child)
	}

	// The zone count is purely informational and derived from the zone assignments, it
	// never gates readiness.
	zoneCount, err := r.countServedZones(ctx, &instance)
	if err != nil {
		logger.Error("failed to count served zones", zap.Error(err))
		return ctrl.Result{}, err
	}

	conditions := bindy.Aggregate(instance.Generation, children)
	if err := r.patchStatus(ctx, &instance, zoneCount, conditions); err != nil {
		logger.Error("failed to patch instance status", zap.Error(err))
		return ctrl.Result{}, err
	}
	logger.Info("instance is up to date", zap.Int32("zoneCount", zoneCount))
	return requeue(r.config.Reconcile, bindy.IsReady(conditions)), nil
}

//-------------------------------------------------------------------------------------------------
// WORKLOAD
//-------------------------------------------------------------------------------------------------

func (r *Bind9InstanceReconciler) upsertConfigMap(
	ctx context.Context, logger *zap.Logger, instance *v1alpha1.Bind9Instance,
) bindy.Child {
	child := bindy.Child{Kind: "ConfigMap", Name: instance.Name, Ready: true}
	desired := manifests.ConfigMap(instance)
	resource := v1.ConfigMap{ObjectMeta: metav1.ObjectMeta{
		Name: desired.Name, Namespace: desired.Namespace,
	}}
	if _, err := controllerutil.CreateOrPatch(ctx, r.Client, &resource, func() error {
		if err := ctrl.SetControllerReference(instance, &resource, r.Scheme()); err != nil {
			return fmt.Errorf("failed to set owner reference: %w", err)
		}
		resource.Labels = desired.Labels
		resource.Data = desired.Data
		return nil
	}); err != nil {
		logger.Error("failed to upsert config map", zap.Error(err))
		child.Ready = false
		child.Message = err.Error()
	}
	return child
}

func (r *Bind9InstanceReconciler) upsertService(
	ctx context.Context, logger *zap.Logger, instance *v1alpha1.Bind9Instance,
) bindy.Child {
	child := bindy.Child{Kind: "Service", Name: instance.Name, Ready: true}
	desired := manifests.Service(instance)
	resource := v1.Service{ObjectMeta: metav1.ObjectMeta{
		Name: desired.Name, Namespace: desired.Namespace,
	}}
	if _, err := controllerutil.CreateOrPatch(ctx, r.Client, &resource, func() error {
		if err := ctrl.SetControllerReference(instance, &resource, r.Scheme()); err != nil {
			return fmt.Errorf("failed to set owner reference: %w", err)
		}
		// Only the fields we manage are reconciled, cluster IPs assigned by the API server
		// must remain untouched
		resource.Labels = desired.Labels
		resource.Spec.Selector = desired.Spec.Selector
		resource.Spec.Ports = desired.Spec.Ports
		return nil
	}); err != nil {
		logger.Error("failed to upsert service", zap.Error(err))
		child.Ready = false
		child.Message = err.Error()
	}
	return child
}

func (r *Bind9InstanceReconciler) upsertDeployment(
	ctx context.Context, logger *zap.Logger, instance *v1alpha1.Bind9Instance,
) bindy.Child {
	child := bindy.Child{Kind: "Deployment", Name: instance.Name}
	desired := manifests.Deployment(instance)
	resource := appsv1.Deployment{ObjectMeta: metav1.ObjectMeta{
		Name: desired.Name, Namespace: desired.Namespace,
	}}
	if _, err := controllerutil.CreateOrPatch(ctx, r.Client, &resource, func() error {
		if err := ctrl.SetControllerReference(instance, &resource, r.Scheme()); err != nil {
			return fmt.Errorf("failed to set owner reference: %w", err)
		}
		resource.Labels = desired.Labels
		resource.Spec = desired.Spec
		return nil
	}); err != nil {
		logger.Error("failed to upsert deployment", zap.Error(err))
		child.Message = err.Error()
		return child
	}
	child.Ready = deploymentAvailable(&resource)
	if !child.Ready {
		child.Reason = v1alpha1.ReasonProgressing
		child.Message = "deployment is not available"
	}
	return child
}

func deploymentAvailable(deployment *appsv1.Deployment) bool {
	for _, condition := range deployment.Status.Conditions {
		if condition.Type == appsv1.DeploymentAvailable {
			return condition.Status == v1.ConditionTrue
		}
	}
	return false
}

//-------------------------------------------------------------------------------------------------
// ZONES
//-------------------------------------------------------------------------------------------------

func (r *Bind9InstanceReconciler) countServedZones(
	ctx context.Context, instance *v1alpha1.Bind9Instance,
) (int32, error) {
	zones, err := k8s.ListAll(ctx, r.Client, &v1alpha1.DNSZoneList{},
		func(list *v1alpha1.DNSZoneList) []v1alpha1.DNSZone { return list.Items },
		r.config.Reconcile.PageSize,
	)
	if err != nil {
		return 0, err
	}
	count := int32(0)
	for i := range zones {
		for _, assigned := range zones[i].Status.Instances {
			if assigned.Name == instance.Name && assigned.Namespace == instance.Namespace {
				count++
				break
			}
		}
	}
	return count, nil
}

//-------------------------------------------------------------------------------------------------
// STATUS
//-------------------------------------------------------------------------------------------------

func (r *Bind9InstanceReconciler) patchStatus(
	ctx context.Context,
	instance *v1alpha1.Bind9Instance,
	zoneCount int32,
	conditions []metav1.Condition,
) error {
	if instance.Status.ObservedGeneration == instance.Generation &&
		instance.Status.ZoneCount == zoneCount &&
		!bindy.Changed(instance.Status.Conditions, conditions) {
		return nil
	}
	patch := client.MergeFrom(instance.DeepCopy())
	instance.Status.ObservedGeneration = instance.Generation
	instance.Status.ZoneCount = zoneCount
	instance.Status.Conditions = bindy.Stamp(metav1.Now(), instance.Status.Conditions, conditions)
	return r.Status().Patch(ctx, instance, patch)
}

// SetupWithManager sets up the controller with the Manager.
func (r *Bind9InstanceReconciler) SetupWithManager(mgr ctrl.Manager) error {
	// Zone assignments feed the instance's zone count. All instances in the zone's namespace
	// are requeued so that instances just dropped from the assignment list recount as well.
	enqueue := k8s.EnqueueMapFunc(r.Client, r.logger, &v1alpha1.Bind9InstanceList{},
		func(obj client.Object) []client.ListOption {
			return []client.ListOption{client.InNamespace(obj.GetNamespace())}
		},
		func(list *v1alpha1.Bind9InstanceList, obj client.Object) []reconcile.Request {
			return ext.Map(list.Items, func(instance v1alpha1.Bind9Instance) reconcile.Request {
				return reconcile.Request{NamespacedName: types.NamespacedName{
					Namespace: instance.Namespace, Name: instance.Name,
				}}
			})
		},
	)

	builder := ctrl.NewControllerManagedBy(mgr).
		For(&v1alpha1.Bind9Instance{}).
		Owns(&v1.ConfigMap{}).
		Owns(&v1.Service{}).
		Owns(&appsv1.Deployment{}).
		Watches(&v1alpha1.DNSZone{}, handler.EnqueueRequestsFromMapFunc(enqueue))
	for _, target := range r.integrations {
		builder = builder.Owns(target.OwnedResource())
	}
	return builder.Complete(r)
}
