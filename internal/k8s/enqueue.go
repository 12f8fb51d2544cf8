package k8s

import (
	"context"

	"go.uber.org/zap"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/reconcile"
)

// EnqueueMapFunc may be used to watch changes of a particular source kind and trigger the
// reconciliation of a set of dependent resources. The mapper lists the candidate dependents
// and maps them to reconciliation requests. A failing list is logged and the single
// notification is dropped, the periodic resync acts as the backstop.
func EnqueueMapFunc[L client.ObjectList](
	ctrlClient client.Client,
	logger *zap.Logger,
	list L,
	options func(obj client.Object) []client.ListOption,
	requests func(L, client.Object) []reconcile.Request,
) func(context.Context, client.Object) []reconcile.Request {
	return func(ctx context.Context, obj client.Object) []reconcile.Request {
		if err := ctrlClient.List(ctx, list, options(obj)...); err != nil {
			logger.Error("failed to list resources upon object change",
				zap.String("source", client.ObjectKeyFromObject(obj).String()),
				zap.Error(err),
			)
			return nil
		}
		return requests(list, obj)
	}
}
