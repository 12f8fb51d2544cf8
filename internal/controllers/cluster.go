package controllers

import (
	"context"
	"fmt"

	"github.com/firestoned/bindy/api/v1alpha1"
	"github.com/firestoned/bindy/internal/bindy"
	configv1 "github.com/firestoned/bindy/internal/config/v1"
	"github.com/firestoned/bindy/internal/k8s"
	"go.uber.org/zap"
	apierrs "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/builder"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"
	"sigs.k8s.io/controller-runtime/pkg/predicate"
)

// Bind9ClusterReconciler reconciles a Bind9Cluster object.
type Bind9ClusterReconciler struct {
	client.Client
	logger *zap.Logger
	config configv1.Config
}

// NewBind9ClusterReconciler creates a new Bind9ClusterReconciler.
func NewBind9ClusterReconciler(
	client client.Client, logger *zap.Logger, config configv1.Config,
) Bind9ClusterReconciler {
	return Bind9ClusterReconciler{Client: client, logger: logger, config: config}
}

// Reconcile derives the cluster's instances from the shared template, scaling the set of
// instances up or down to the configured replica count.
func (r *Bind9ClusterReconciler) Reconcile(
	ctx context.Context, req ctrl.Request,
) (result ctrl.Result, err error) {
	defer func() { observe("cluster", err) }()
	logger := r.logger.With(zap.String("name", req.String()))

	var cluster v1alpha1.Bind9Cluster
	if err := r.Get(ctx, req.NamespacedName, &cluster); err != nil {
		if !apierrs.IsNotFound(err) {
			logger.Error("unable to query for cluster", zap.Error(err))
		}
		return ctrl.Result{}, client.IgnoreNotFound(err)
	}
	if !cluster.DeletionTimestamp.IsZero() {
		// Owned instances are cleaned up by garbage collection
		return ctrl.Result{}, nil
	}
	logger.Debug("reconciling cluster")

	// Bring the desired instances up to date
	replicas := int32(1)
	if cluster.Spec.Replicas != nil {
		replicas = *cluster.Spec.Replicas
	}
	children := make([]bindy.Child, 0, replicas)
	desired := make(map[string]struct{}, replicas)
	ready := int32(0)
	for i := int32(0); i < replicas; i++ {
		name := fmt.Sprintf("%s-%d", cluster.Name, i)
		desired[name] = struct{}{}

		child, err := r.upsertInstance(ctx, &cluster, name)
		if err != nil {
			logger.Error("failed to upsert instance",
				zap.String("instance", name), zap.Error(err),
			)
		}
		if child.Ready {
			ready++
		}
		children = append(children, child)
	}

	// Scale down: remove owned instances which exceed the desired replica count. The
	// instance set is the only child collection which is ever actively deleted, all other
	// drift handling is strictly additive.
	if err := r.deleteExcessInstances(ctx, logger, &cluster, desired); err != nil {
		return ctrl.Result{}, err
	}

	conditions := bindy.Aggregate(cluster.Generation, children)
	if err := r.patchStatus(ctx, &cluster, ready, conditions); err != nil {
		logger.Error("failed to patch cluster status", zap.Error(err))
		return ctrl.Result{}, err
	}
	logger.Info("cluster is up to date",
		zap.Int32("readyInstances", ready), zap.Int32("replicas", replicas),
	)
	return requeue(r.config.Reconcile, bindy.IsReady(conditions)), nil
}

func (r *Bind9ClusterReconciler) upsertInstance(
	ctx context.Context, cluster *v1alpha1.Bind9Cluster, name string,
) (bindy.Child, error) {
	template := cluster.Spec.InstanceTemplate
	instance := v1alpha1.Bind9Instance{ObjectMeta: metav1.ObjectMeta{
		Name: name, Namespace: cluster.Namespace,
	}}
	child := bindy.Child{Kind: "Bind9Instance", Name: name}
	if _, err := controllerutil.CreateOrPatch(ctx, r.Client, &instance, func() error {
		labels := instance.GetLabels()
		if labels == nil {
			labels = make(map[string]string)
		}
		for key, value := range template.Metadata.Labels {
			labels[key] = value
		}
		labels[clusterLabelKey] = cluster.Name
		instance.SetLabels(labels)

		if len(template.Metadata.Annotations) > 0 {
			annotations := instance.GetAnnotations()
			if annotations == nil {
				annotations = make(map[string]string)
			}
			for key, value := range template.Metadata.Annotations {
				annotations[key] = value
			}
			instance.SetAnnotations(annotations)
		}

		if err := ctrl.SetControllerReference(cluster, &instance, r.Scheme()); err != nil {
			return fmt.Errorf("failed to set owner reference: %w", err)
		}
		instance.Spec = *template.Spec.DeepCopy()
		return nil
	}); err != nil {
		child.Message = err.Error()
		return child, err
	}
	child.Ready = bindy.IsReady(instance.Status.Conditions)
	if !child.Ready {
		child.Reason = v1alpha1.ReasonProgressing
		child.Message = "instance is not ready"
	}
	return child, nil
}

func (r *Bind9ClusterReconciler) deleteExcessInstances(
	ctx context.Context,
	logger *zap.Logger,
	cluster *v1alpha1.Bind9Cluster,
	desired map[string]struct{},
) error {
	instances, err := k8s.ListAll(ctx, r.Client, &v1alpha1.Bind9InstanceList{},
		func(list *v1alpha1.Bind9InstanceList) []v1alpha1.Bind9Instance { return list.Items },
		r.config.Reconcile.PageSize,
		client.InNamespace(cluster.Namespace),
		client.MatchingLabels{clusterLabelKey: cluster.Name},
	)
	if err != nil {
		return fmt.Errorf("failed to list owned instances: %w", err)
	}
	for i := range instances {
		instance := &instances[i]
		if _, ok := desired[instance.Name]; ok {
			continue
		}
		if !metav1.IsControlledBy(instance, cluster) {
			continue
		}
		if err := k8s.DeleteIfFound(ctx, r.Client, instance); err != nil {
			return fmt.Errorf("failed to delete excess instance %q: %w", instance.Name, err)
		}
		logger.Info("deleted excess instance", zap.String("instance", instance.Name))
	}
	return nil
}

func (r *Bind9ClusterReconciler) patchStatus(
	ctx context.Context,
	cluster *v1alpha1.Bind9Cluster,
	ready int32,
	conditions []metav1.Condition,
) error {
	if cluster.Status.ObservedGeneration == cluster.Generation &&
		cluster.Status.ReadyInstances == ready &&
		!bindy.Changed(cluster.Status.Conditions, conditions) {
		return nil
	}
	patch := client.MergeFrom(cluster.DeepCopy())
	cluster.Status.ObservedGeneration = cluster.Generation
	cluster.Status.ReadyInstances = ready
	cluster.Status.Conditions = bindy.Stamp(metav1.Now(), cluster.Status.Conditions, conditions)
	return r.Status().Patch(ctx, cluster, patch)
}

// SetupWithManager sets up the controller with the Manager.
func (r *Bind9ClusterReconciler) SetupWithManager(mgr ctrl.Manager) error {
	return ctrl.NewControllerManagedBy(mgr).
		For(&v1alpha1.Bind9Cluster{}).
		Owns(&v1alpha1.Bind9Instance{},
			builder.WithPredicates(predicate.GenerationChangedPredicate{}),
		).
		Complete(r)
}
