package controllers

import (
	"context"
	"fmt"

	"github.com/firestoned/bindy/api/v1alpha1"
	"github.com/firestoned/bindy/internal/bindy"
	configv1 "github.com/firestoned/bindy/internal/config/v1"
	"github.com/firestoned/bindy/internal/k8s"
	"github.com/firestoned/bindy/internal/nameserver"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	apierrs "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"
	"sigs.k8s.io/controller-runtime/pkg/handler"
	"sigs.k8s.io/controller-runtime/pkg/reconcile"
)

// RecordReconciler reconciles a single record kind. All record kinds share the exact same
// lifecycle, the generic reconciler is instantiated once per kind with a pair of factory
// functions providing the typed object and list.
type RecordReconciler[R v1alpha1.Record, L client.ObjectList] struct {
	client.Client
	logger    *zap.Logger
	config    configv1.Config
	servers   ServerClients
	newObject func() R
	newList   func() L
	items     k8s.ItemsAccessor[R, L]
}

// NewRecordReconciler creates a new RecordReconciler for a single record kind.
func NewRecordReconciler[R v1alpha1.Record, L client.ObjectList](
	client client.Client,
	logger *zap.Logger,
	config configv1.Config,
	servers ServerClients,
	newObject func() R,
	newList func() L,
	items k8s.ItemsAccessor[R, L],
) *RecordReconciler[R, L] {
	return &RecordReconciler[R, L]{
		Client:    client,
		logger:    logger,
		config:    config,
		servers:   servers,
		newObject: newObject,
		newList:   newList,
		items:     items,
	}
}

// Reconcile renders the record into zone-file syntax and pushes it to every instance
// currently serving the record's zone. Validation failures are terminal: they surface as an
// `InvalidSpec` condition and are not retried until the specification changes.
func (r *RecordReconciler[R, L]) Reconcile(
	ctx context.Context, req ctrl.Request,
) (result ctrl.Result, err error) {
	record := r.newObject()
	defer func() { observe("record", err) }()
	logger := r.logger.With(
		zap.String("name", req.String()), zap.String("kind", record.RecordKind()),
	)

	if err := r.Get(ctx, req.NamespacedName, record); err != nil {
		if !apierrs.IsNotFound(err) {
			logger.Error("unable to query for record", zap.Error(err))
		}
		return ctrl.Result{}, client.IgnoreNotFound(err)
	}
	meta := record.Meta()
	if !record.GetDeletionTimestamp().IsZero() {
		return ctrl.Result{}, r.finalize(ctx, logger, record)
	}
	logger.Debug("reconciling record")

	// Validation failures are terminal, requeueing cannot fix a broken specification
	rdata, err := record.RData()
	if err != nil {
		logger.Warn("record specification is invalid", zap.Error(err))
		conditions := []metav1.Condition{{
			Type:               v1alpha1.ConditionReady,
			Status:             metav1.ConditionFalse,
			Reason:             v1alpha1.ReasonInvalidSpec,
			Message:            err.Error(),
			ObservedGeneration: record.GetGeneration(),
		}}
		return ctrl.Result{}, r.patchStatus(ctx, record, conditions)
	}
	if controllerutil.AddFinalizer(record, finalizer) {
		if err := r.Update(ctx, record); err != nil {
			return ctrl.Result{}, fmt.Errorf("failed to add finalizer: %w", err)
		}
	}

	// The record follows the assignments of its zone
	var zone v1alpha1.DNSZone
	zoneName := types.NamespacedName{Namespace: record.GetNamespace(), Name: meta.Zone.Name}
	if err := r.Get(ctx, zoneName, &zone); err != nil {
		if !apierrs.IsNotFound(err) {
			logger.Error("unable to query for zone", zap.Error(err))
			return ctrl.Result{}, err
		}
		conditions := []metav1.Condition{{
			Type:               v1alpha1.ConditionReady,
			Status:             metav1.ConditionFalse,
			Reason:             v1alpha1.ReasonZoneNotFound,
			Message:            fmt.Sprintf("zone %q does not exist", meta.Zone.Name),
			ObservedGeneration: record.GetGeneration(),
		}}
		if err := r.patchStatus(ctx, record, conditions); err != nil {
			return ctrl.Result{}, err
		}
		return requeue(r.config.Reconcile, false), nil
	}
	if len(zone.Status.Instances) == 0 {
		conditions := []metav1.Condition{{
			Type:               v1alpha1.ConditionReady,
			Status:             metav1.ConditionFalse,
			Reason:             v1alpha1.ReasonProgressing,
			Message:            "zone is not served by any instance yet",
			ObservedGeneration: record.GetGeneration(),
		}}
		if err := r.patchStatus(ctx, record, conditions); err != nil {
			return ctrl.Result{}, err
		}
		return requeue(r.config.Reconcile, false), nil
	}

	children, err := r.push(ctx, logger, record, &zone, rdata)
	if err != nil {
		return ctrl.Result{}, err
	}
	conditions := bindy.Aggregate(record.GetGeneration(), children)
	if err := r.patchStatus(ctx, record, conditions); err != nil {
		logger.Error("failed to patch record status", zap.Error(err))
		return ctrl.Result{}, err
	}
	logger.Info("record is up to date", zap.Int("instances", len(children)))
	return requeue(r.config.Reconcile, bindy.IsReady(conditions)), nil
}

//-------------------------------------------------------------------------------------------------
// PUSH
//-------------------------------------------------------------------------------------------------

func (r *RecordReconciler[R, L]) push(
	ctx context.Context, logger *zap.Logger, record R, zone *v1alpha1.DNSZone, rdata string,
) ([]bindy.Child, error) {
	payload := r.payload(record, zone, rdata)
	children := make([]bindy.Child, len(zone.Status.Instances))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(maxConcurrentPushes)
	for i, instance := range zone.Status.Instances {
		name := instance.NamespacedName()
		children[i] = bindy.Child{Kind: "Instance", Name: name.String()}

		i := i
		group.Go(func() error {
			server, err := clientForInstance(groupCtx, r.Client, r.servers, name)
			if err != nil {
				if apierrs.IsNotFound(err) {
					children[i].Reason = v1alpha1.ReasonProgressing
					children[i].Message = "instance no longer exists"
					return nil
				}
				return fmt.Errorf("failed to build client for %q: %w", name, err)
			}
			if err := server.EnsureRecord(groupCtx, zone.Spec.ZoneName, payload); err != nil {
				logger.Error("failed to push record",
					zap.String("instance", name.String()), zap.Error(err),
				)
				children[i].Message = err.Error()
				if nameserver.IsTerminal(err) {
					children[i].Reason = v1alpha1.ReasonInvalidSpec
				}
				return nil
			}
			children[i].Ready = true
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return children, nil
}

func (r *RecordReconciler[R, L]) payload(
	record R, zone *v1alpha1.DNSZone, rdata string,
) nameserver.Record {
	meta := record.Meta()
	ttl := v1alpha1.RecordTTL(300)
	if zone.Spec.TTL != nil {
		ttl = *zone.Spec.TTL
	}
	if meta.TTL != nil {
		ttl = *meta.TTL
	}
	return nameserver.Record{
		Name: meta.Name,
		Type: record.RecordKind(),
		TTL:  int(ttl),
		Data: rdata,
	}
}

//-------------------------------------------------------------------------------------------------
// DELETION
//-------------------------------------------------------------------------------------------------

// finalize removes the record from every instance serving its zone before releasing the
// finalizer. If the zone itself is gone, its zones were already removed from all servers
// and there is nothing left to clean up.
func (r *RecordReconciler[R, L]) finalize(
	ctx context.Context, logger *zap.Logger, record R,
) error {
	if !controllerutil.ContainsFinalizer(record, finalizer) {
		return nil
	}
	meta := record.Meta()
	var zone v1alpha1.DNSZone
	zoneName := types.NamespacedName{Namespace: record.GetNamespace(), Name: meta.Zone.Name}
	err := r.Get(ctx, zoneName, &zone)
	switch {
	case apierrs.IsNotFound(err):
		// Nothing to do
	case err != nil:
		return fmt.Errorf("failed to query zone: %w", err)
	default:
		payload := nameserver.Record{Name: meta.Name, Type: record.RecordKind()}
		for _, instance := range zone.Status.Instances {
			name := instance.NamespacedName()
			server, err := clientForInstance(ctx, r.Client, r.servers, name)
			if err != nil {
				if apierrs.IsNotFound(err) {
					continue
				}
				return fmt.Errorf("failed to build client for %q: %w", name, err)
			}
			if err := server.DeleteRecord(ctx, zone.Spec.ZoneName, payload); err != nil {
				if nameserver.IsTerminal(err) {
					logger.Warn("skipping record removal",
						zap.String("instance", name.String()), zap.Error(err),
					)
					continue
				}
				return fmt.Errorf("failed to remove record from %q: %w", name, err)
			}
		}
	}
	controllerutil.RemoveFinalizer(record, finalizer)
	if err := r.Update(ctx, record); err != nil {
		return fmt.Errorf("failed to remove finalizer: %w", err)
	}
	logger.Info("finalized record")
	return nil
}

//-------------------------------------------------------------------------------------------------
// STATUS
//-------------------------------------------------------------------------------------------------

func (r *RecordReconciler[R, L]) patchStatus(
	ctx context.Context, record R, conditions []metav1.Condition,
) error {
	status := record.RecordStatus()
	if status.ObservedGeneration == record.GetGeneration() &&
		!bindy.Changed(status.Conditions, conditions) {
		return nil
	}
	patch := client.MergeFrom(record.DeepCopyObject().(client.Object))
	status.ObservedGeneration = record.GetGeneration()
	status.Conditions = bindy.Stamp(metav1.Now(), status.Conditions, conditions)
	return r.Status().Patch(ctx, record, patch)
}

//-------------------------------------------------------------------------------------------------
// SETUP
//-------------------------------------------------------------------------------------------------

// SetupWithManager sets up the controller with the Manager.
func (r *RecordReconciler[R, L]) SetupWithManager(mgr ctrl.Manager) error {
	// Assignment changes of a zone must be propagated to all of its records
	enqueue := k8s.EnqueueMapFunc(r.Client, r.logger, r.newList(),
		func(obj client.Object) []client.ListOption {
			return []client.ListOption{client.InNamespace(obj.GetNamespace())}
		},
		func(list L, obj client.Object) []reconcile.Request {
			requests := make([]reconcile.Request, 0)
			for _, record := range r.items(list) {
				if record.Meta().Zone.Name != obj.GetName() {
					continue
				}
				requests = append(requests, reconcile.Request{
					NamespacedName: client.ObjectKeyFromObject(record),
				})
			}
			return requests
		},
	)

	return ctrl.NewControllerManagedBy(mgr).
		For(r.newObject()).
		Watches(&v1alpha1.DNSZone{}, handler.EnqueueRequestsFromMapFunc(enqueue)).
		Complete(r)
}
