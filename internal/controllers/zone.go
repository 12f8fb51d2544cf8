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

// maxConcurrentPushes bounds the number of servers a zone is pushed to in parallel.
const maxConcurrentPushes = 4

// DNSZoneReconciler reconciles a DNSZone object.
type DNSZoneReconciler struct {
	client.Client
	logger  *zap.Logger
	config  configv1.Config
	servers ServerClients
}

// NewDNSZoneReconciler creates a new DNSZoneReconciler.
func NewDNSZoneReconciler(
	client client.Client, logger *zap.Logger, config configv1.Config, servers ServerClients,
) DNSZoneReconciler {
	return DNSZoneReconciler{Client: client, logger: logger, config: config, servers: servers}
}

// Reconcile resolves the instances serving the zone, either from the explicit reference
// list or via selector-based discovery, and pushes the zone configuration to every assigned
// server. At most one DNSZone may be active per logical zone name, later duplicates are
// excluded from convergence until the conflict is resolved.
func (r *DNSZoneReconciler) Reconcile(
	ctx context.Context, req ctrl.Request,
) (result ctrl.Result, err error) {
	defer func() { observe("zone", err) }()
	logger := r.logger.With(zap.String("name", req.String()))

	var zone v1alpha1.DNSZone
	if err := r.Get(ctx, req.NamespacedName, &zone); err != nil {
		if !apierrs.IsNotFound(err) {
			logger.Error("unable to query for zone", zap.Error(err))
		}
		return ctrl.Result{}, client.IgnoreNotFound(err)
	}
	if !zone.DeletionTimestamp.IsZero() {
		return ctrl.Result{}, r.finalize(ctx, logger, &zone)
	}
	if controllerutil.AddFinalizer(&zone, finalizer) {
		if err := r.Update(ctx, &zone); err != nil {
			return ctrl.Result{}, fmt.Errorf("failed to add finalizer: %w", err)
		}
	}
	logger.Debug("reconciling zone")

	// Duplicate detection spans all namespaces: only one DNSZone may actively manage a
	// logical zone name.
	zones, err := k8s.ListAll(ctx, r.Client, &v1alpha1.DNSZoneList{},
		func(list *v1alpha1.DNSZoneList) []v1alpha1.DNSZone { return list.Items },
		r.config.Reconcile.PageSize,
	)
	if err != nil {
		logger.Error("failed to list zones", zap.Error(err))
		return ctrl.Result{}, err
	}
	if duplicate := bindy.FindActiveDuplicate(&zone, zones); duplicate != nil {
		logger.Warn("zone name is already managed", zap.String("activeZone", duplicate.String()))
		conditions := []metav1.Condition{{
			Type:   v1alpha1.ConditionReady,
			Status: metav1.ConditionFalse,
			Reason: v1alpha1.ReasonDuplicateZone,
			Message: fmt.Sprintf(
				"zone %q is already managed by %q", zone.Spec.ZoneName, duplicate,
			),
			ObservedGeneration: zone.Generation,
		}}
		if err := r.patchStatus(ctx, &zone, zone.Status.Instances, conditions); err != nil {
			return ctrl.Result{}, err
		}
		return requeue(r.config.Reconcile, false), nil
	}

	// Resolve the serving instances. Discovery is local to the zone's namespace while
	// explicit references may cross namespaces.
	options := make([]client.ListOption, 0, 1)
	if len(zone.Spec.Instances) == 0 {
		options = append(options, client.InNamespace(zone.Namespace))
	}
	candidates, err := k8s.ListAll(ctx, r.Client, &v1alpha1.Bind9InstanceList{},
		func(list *v1alpha1.Bind9InstanceList) []v1alpha1.Bind9Instance { return list.Items },
		r.config.Reconcile.PageSize, options...,
	)
	if err != nil {
		logger.Error("failed to list candidate instances", zap.Error(err))
		return ctrl.Result{}, err
	}
	resolution := bindy.ResolveAssignments(&zone, candidates)
	for _, stale := range resolution.Stale {
		logger.Warn("skipping reference to missing instance", zap.String("instance", stale.String()))
	}

	// Push the zone to every assigned server. Edges which were already reconciled for the
	// current generation are carried over without touching the server again.
	assigned, children, err := r.push(ctx, logger, &zone, resolution.Assignments)
	if err != nil {
		return ctrl.Result{}, err
	}
	if r.config.Reconcile.RevokeUnclaimed {
		r.revokeUnclaimed(ctx, logger, &zone, assigned)
	}

	conditions := bindy.Aggregate(zone.Generation, children)
	for i, conflict := range resolution.Conflicts {
		conditions = append(conditions, metav1.Condition{
			Type:               fmt.Sprintf("Claim-%d", i),
			Status:             metav1.ConditionFalse,
			Reason:             v1alpha1.ReasonConflictingClaim,
			Message:            conflict.Message,
			ObservedGeneration: zone.Generation,
		})
	}
	if err := r.patchStatus(ctx, &zone, assigned, conditions); err != nil {
		logger.Error("failed to patch zone status", zap.Error(err))
		return ctrl.Result{}, err
	}
	logger.Info("zone is up to date", zap.Int("instances", len(assigned)))
	return requeue(r.config.Reconcile, bindy.IsReady(conditions)), nil
}

//-------------------------------------------------------------------------------------------------
// PUSH
//-------------------------------------------------------------------------------------------------

func (r *DNSZoneReconciler) push(
	ctx context.Context,
	logger *zap.Logger,
	zone *v1alpha1.DNSZone,
	assignments []bindy.Assignment,
) ([]v1alpha1.AssignedInstance, []bindy.Child, error) {
	// Previously reconciled edges only remain valid while the specification is unchanged
	previous := make(map[types.NamespacedName]*metav1.Time, len(zone.Status.Instances))
	if zone.Status.ObservedGeneration == zone.Generation {
		for _, instance := range zone.Status.Instances {
			previous[instance.NamespacedName()] = instance.LastReconciledAt
		}
	}

	now := metav1.Now()
	payload := zonePayload(zone)
	assigned := make([]v1alpha1.AssignedInstance, len(assignments))
	children := make([]bindy.Child, len(assignments))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(maxConcurrentPushes)
	for i, assignment := range assignments {
		name := assignment.Instance
		assigned[i] = v1alpha1.AssignedInstance{Name: name.Name, Namespace: name.Namespace}
		children[i] = bindy.Child{Kind: "Instance", Name: name.String()}

		if reconciledAt, ok := previous[name]; ok && reconciledAt != nil {
			assigned[i].LastReconciledAt = reconciledAt
			children[i].Ready = true
			continue
		}

		i := i
		group.Go(func() error {
			server, err := clientForInstance(groupCtx, r.Client, r.servers, name)
			if err != nil {
				if apierrs.IsNotFound(err) {
					// The instance disappeared between discovery and push
					children[i].Reason = v1alpha1.ReasonProgressing
					children[i].Message = "instance no longer exists"
					return nil
				}
				return fmt.Errorf("failed to build client for %q: %w", name, err)
			}
			if err := server.EnsureZone(groupCtx, payload); err != nil {
				logger.Error("failed to push zone",
					zap.String("instance", name.String()), zap.Error(err),
				)
				children[i].Message = err.Error()
				if nameserver.IsTerminal(err) {
					children[i].Reason = v1alpha1.ReasonInvalidSpec
				}
				return nil
			}
			assigned[i].LastReconciledAt = &now
			children[i].Ready = true
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, nil, err
	}
	return assigned, children, nil
}

// revokeUnclaimed removes the zone from servers which no longer serve it. Revocation is
// best-effort, a failure leaves the stale configuration in place until the next attempt.
func (r *DNSZoneReconciler) revokeUnclaimed(
	ctx context.Context,
	logger *zap.Logger,
	zone *v1alpha1.DNSZone,
	assigned []v1alpha1.AssignedInstance,
) {
	current := make(map[types.NamespacedName]struct{}, len(assigned))
	for _, instance := range assigned {
		current[instance.NamespacedName()] = struct{}{}
	}
	for _, instance := range zone.Status.Instances {
		name := instance.NamespacedName()
		if _, ok := current[name]; ok {
			continue
		}
		server, err := clientForInstance(ctx, r.Client, r.servers, name)
		if err != nil {
			if !apierrs.IsNotFound(err) {
				logger.Warn("failed to build client for revocation",
					zap.String("instance", name.String()), zap.Error(err),
				)
			}
			continue
		}
		if err := server.DeleteZone(ctx, zone.Spec.ZoneName); err != nil {
			logger.Warn("failed to revoke zone",
				zap.String("instance", name.String()), zap.Error(err),
			)
			continue
		}
		logger.Info("revoked zone from unclaimed instance", zap.String("instance", name.String()))
	}
}

//-------------------------------------------------------------------------------------------------
// DELETION
//-------------------------------------------------------------------------------------------------

// finalize removes the zone from every server it was pushed to before releasing the
// finalizer. Terminal API errors are skipped, transient errors abort finalization and the
// deletion is retried.
func (r *DNSZoneReconciler) finalize(
	ctx context.Context, logger *zap.Logger, zone *v1alpha1.DNSZone,
) error {
	if !controllerutil.ContainsFinalizer(zone, finalizer) {
		return nil
	}
	for _, instance := range zone.Status.Instances {
		name := instance.NamespacedName()
		server, err := clientForInstance(ctx, r.Client, r.servers, name)
		if err != nil {
			if apierrs.IsNotFound(err) {
				continue
			}
			return fmt.Errorf("failed to build client for %q: %w", name, err)
		}
		if err := server.DeleteZone(ctx, zone.Spec.ZoneName); err != nil {
			if nameserver.IsTerminal(err) {
				logger.Warn("skipping zone removal",
					zap.String("instance", name.String()), zap.Error(err),
				)
				continue
			}
			return fmt.Errorf("failed to remove zone from %q: %w", name, err)
		}
	}
	controllerutil.RemoveFinalizer(zone, finalizer)
	if err := r.Update(ctx, zone); err != nil {
		return fmt.Errorf("failed to remove finalizer: %w", err)
	}
	logger.Info("finalized zone")
	return nil
}

//-------------------------------------------------------------------------------------------------
// STATUS
//-------------------------------------------------------------------------------------------------

func (r *DNSZoneReconciler) patchStatus(
	ctx context.Context,
	zone *v1alpha1.DNSZone,
	assigned []v1alpha1.AssignedInstance,
	conditions []metav1.Condition,
) error {
	if zone.Status.ObservedGeneration == zone.Generation &&
		assignedEqual(zone.Status.Instances, assigned) &&
		!bindy.Changed(zone.Status.Conditions, conditions) {
		return nil
	}
	patch := client.MergeFrom(zone.DeepCopy())
	zone.Status.ObservedGeneration = zone.Generation
	zone.Status.Instances = assigned
	zone.Status.Conditions = bindy.Stamp(metav1.Now(), zone.Status.Conditions, conditions)
	return r.Status().Patch(ctx, zone, patch)
}

func assignedEqual(current, desired []v1alpha1.AssignedInstance) bool {
	if len(current) != len(desired) {
		return false
	}
	for i := range desired {
		if current[i].Name != desired[i].Name ||
			current[i].Namespace != desired[i].Namespace ||
			(current[i].LastReconciledAt == nil) != (desired[i].LastReconciledAt == nil) {
			return false
		}
	}
	return true
}

//-------------------------------------------------------------------------------------------------
// PAYLOAD
//-------------------------------------------------------------------------------------------------

func zonePayload(zone *v1alpha1.DNSZone) nameserver.Zone {
	ttl := v1alpha1.RecordTTL(300)
	if zone.Spec.TTL != nil {
		ttl = *zone.Spec.TTL
	}
	soa := v1alpha1.SOAConfig{}
	if zone.Spec.SOA != nil {
		soa = *zone.Spec.SOA
	}
	if soa.Primary == "" {
		soa.Primary = fmt.Sprintf("ns1.%s.", zone.Spec.ZoneName)
	}
	if soa.Admin == "" {
		soa.Admin = fmt.Sprintf("hostmaster.%s.", zone.Spec.ZoneName)
	}
	if soa.Refresh == 0 {
		soa.Refresh = 86400
	}
	if soa.Retry == 0 {
		soa.Retry = 7200
	}
	if soa.Expire == 0 {
		soa.Expire = 3600000
	}
	if soa.NegativeTTL == 0 {
		soa.NegativeTTL = 172800
	}
	return nameserver.Zone{
		Name: zone.Spec.ZoneName,
		TTL:  int(ttl),
		SOA: nameserver.SOA{
			Primary:     soa.Primary,
			Admin:       soa.Admin,
			Refresh:     soa.Refresh,
			Retry:       soa.Retry,
			Expire:      soa.Expire,
			NegativeTTL: soa.NegativeTTL,
		},
	}
}

//-------------------------------------------------------------------------------------------------
// SETUP
//-------------------------------------------------------------------------------------------------

// SetupWithManager sets up the controller with the Manager.
func (r *DNSZoneReconciler) SetupWithManager(mgr ctrl.Manager) error {
	// Selector or reference changes on instances may reassign zones in their namespace
	enqueue := k8s.EnqueueMapFunc(r.Client, r.logger, &v1alpha1.DNSZoneList{},
		func(obj client.Object) []client.ListOption {
			return []client.ListOption{client.InNamespace(obj.GetNamespace())}
		},
		func(list *v1alpha1.DNSZoneList, obj client.Object) []reconcile.Request {
			requests := make([]reconcile.Request, 0, len(list.Items))
			for i := range list.Items {
				requests = append(requests, reconcile.Request{
					NamespacedName: client.ObjectKeyFromObject(&list.Items[i]),
				})
			}
			return requests
		},
	)

	return ctrl.NewControllerManagedBy(mgr).
		For(&v1alpha1.DNSZone{}).
		Watches(&v1alpha1.Bind9Instance{}, handler.EnqueueRequestsFromMapFunc(enqueue)).
		Complete(r)
}
