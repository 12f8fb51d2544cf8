package controllers

import (
	"context"
	"fmt"

	"github.com/firestoned/bindy/api/v1alpha1"
	"github.com/firestoned/bindy/internal/bindy"
	configv1 "github.com/firestoned/bindy/internal/config/v1"
	"go.uber.org/zap"
	apierrs "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/builder"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"
	"sigs.k8s.io/controller-runtime/pkg/predicate"
)

// Bind9ProviderReconciler reconciles a Bind9Provider object.
type Bind9ProviderReconciler struct {
	client.Client
	logger *zap.Logger
	config configv1.Config
}

// NewBind9ProviderReconciler creates a new Bind9ProviderReconciler.
func NewBind9ProviderReconciler(
	client client.Client, logger *zap.Logger, config configv1.Config,
) Bind9ProviderReconciler {
	return Bind9ProviderReconciler{Client: client, logger: logger, config: config}
}

// Reconcile rolls out one Bind9Cluster per configured entry and aggregates the readiness
// of all clusters into the provider's status.
func (r *Bind9ProviderReconciler) Reconcile(
	ctx context.Context, req ctrl.Request,
) (result ctrl.Result, err error) {
	defer func() { observe("provider", err) }()
	logger := r.logger.With(zap.String("name", req.String()))

	var provider v1alpha1.Bind9Provider
	if err := r.Get(ctx, req.NamespacedName, &provider); err != nil {
		if !apierrs.IsNotFound(err) {
			logger.Error("unable to query for provider", zap.Error(err))
		}
		return ctrl.Result{}, client.IgnoreNotFound(err)
	}
	if !provider.DeletionTimestamp.IsZero() {
		// Owned clusters are cleaned up by garbage collection
		return ctrl.Result{}, nil
	}
	logger.Debug("reconciling provider")

	// Roll out all configured clusters. An upsert failure of one cluster is captured as
	// that cluster's condition and does not prevent the remaining clusters from being
	// brought up to date.
	children := make([]bindy.Child, 0, len(provider.Spec.Clusters))
	seen := make(map[types.NamespacedName]struct{}, len(provider.Spec.Clusters))
	ready := int32(0)
	for _, template := range provider.Spec.Clusters {
		name := types.NamespacedName{Namespace: template.Namespace, Name: template.Name}
		if _, ok := seen[name]; ok {
			logger.Warn("ignoring duplicate cluster template", zap.String("cluster", name.String()))
			continue
		}
		seen[name] = struct{}{}

		child, err := r.upsertCluster(ctx, &provider, template)
		if err != nil {
			logger.Error("failed to upsert cluster",
				zap.String("cluster", name.String()), zap.Error(err),
			)
		}
		if child.Ready {
			ready++
		}
		children = append(children, child)
	}

	conditions := bindy.Aggregate(provider.Generation, children)
	if err := r.patchStatus(ctx, &provider, ready, conditions); err != nil {
		logger.Error("failed to patch provider status", zap.Error(err))
		return ctrl.Result{}, err
	}
	logger.Info("provider is up to date",
		zap.Int32("readyClusters", ready), zap.Int("clusters", len(children)),
	)
	return requeue(r.config.Reconcile, bindy.IsReady(conditions)), nil
}

func (r *Bind9ProviderReconciler) upsertCluster(
	ctx context.Context, provider *v1alpha1.Bind9Provider, template v1alpha1.ClusterTemplate,
) (bindy.Child, error) {
	cluster := v1alpha1.Bind9Cluster{ObjectMeta: metav1.ObjectMeta{
		Name: template.Name, Namespace: template.Namespace,
	}}
	child := bindy.Child{Kind: "Bind9Cluster", Name: template.Name}
	if _, err := controllerutil.CreateOrPatch(ctx, r.Client, &cluster, func() error {
		if err := ctrl.SetControllerReference(provider, &cluster, r.Scheme()); err != nil {
			return fmt.Errorf("failed to set owner reference: %w", err)
		}
		cluster.Spec = *template.Spec.DeepCopy()
		return nil
	}); err != nil {
		child.Message = err.Error()
		return child, err
	}
	child.Ready = bindy.IsReady(cluster.Status.Conditions)
	if !child.Ready {
		child.Reason = v1alpha1.ReasonProgressing
		child.Message = "cluster is not ready"
	}
	return child, nil
}

func (r *Bind9ProviderReconciler) patchStatus(
	ctx context.Context,
	provider *v1alpha1.Bind9Provider,
	ready int32,
	conditions []metav1.Condition,
) error {
	if provider.Status.ObservedGeneration == provider.Generation &&
		provider.Status.ReadyClusters == ready &&
		!bindy.Changed(provider.Status.Conditions, conditions) {
		return nil
	}
	patch := client.MergeFrom(provider.DeepCopy())
	provider.Status.ObservedGeneration = provider.Generation
	provider.Status.ReadyClusters = ready
	provider.Status.Conditions = bindy.Stamp(
		metav1.Now(), provider.Status.Conditions, conditions,
	)
	return r.Status().Patch(ctx, provider, patch)
}

// SetupWithManager sets up the controller with the Manager.
func (r *Bind9ProviderReconciler) SetupWithManager(mgr ctrl.Manager) error {
	return ctrl.NewControllerManagedBy(mgr).
		For(&v1alpha1.Bind9Provider{}).
		Owns(&v1alpha1.Bind9Cluster{},
			builder.WithPredicates(predicate.GenerationChangedPredicate{}),
		).
		Complete(r)
}
