package k8s

import (
	"context"
	"fmt"

	"sigs.k8s.io/controller-runtime/pkg/client"
)

// ItemsAccessor grants access to the items of a typed object list.
type ItemsAccessor[T any, L client.ObjectList] func(L) []T

// ListAll lists all objects matching the given options by paging through the collection
// with the provided page size. The full set is returned only if every page fetch succeeds:
// a mid-pagination failure discards the accumulated items rather than risk acting on a
// partial view of the cluster.
func ListAll[T any, L client.ObjectList](
	ctx context.Context,
	ctrlClient client.Client,
	list L,
	items ItemsAccessor[T, L],
	pageSize int64,
	options ...client.ListOption,
) ([]T, error) {
	var accumulated []T
	continuation := ""
	for {
		pageOptions := append(
			[]client.ListOption{client.Limit(pageSize), client.Continue(continuation)},
			options...,
		)
		if err := ctrlClient.List(ctx, list, pageOptions...); err != nil {
			return nil, fmt.Errorf("failed to list page: %w", err)
		}
		accumulated = append(accumulated, items(list)...)
		continuation = list.GetContinue()
		if continuation == "" {
			return accumulated, nil
		}
	}
}
