package integrations

import (
	"context"

	"github.com/firestoned/bindy/api/v1alpha1"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

const managedByLabelKey = "app.kubernetes.io/managed-by"

// InstanceInfo encapsulates information extracted from an instance that integrations act
// upon.
type InstanceInfo struct {
	// Host is the externally visible hostname of the instance, empty if the integration
	// configuration provides no domain format.
	Host string
	// APIPort is the port of the instance's management API.
	APIPort int32
}

// Integration is an interface for any component that allows to create "derivative"
// Kubernetes resources for a Bind9Instance. An example is the external-dns integration
// which publishes a DNSEndpoint resource for every instance.
type Integration interface {
	// Name returns a canonical name for this integration to identify it in logs.
	Name() string

	// OwnedResource returns the resource (i.e. CRD of an external tool) that this
	// integration owns. The resource should be "empty", i.e. no fields should be set.
	OwnedResource() client.Object

	// UpdateResource updates the resource that ought to be owned by the passed instance.
	// Updating may entail creating the resource, updating an existing resource, or
	// deleting the resource.
	UpdateResource(ctx context.Context, owner *v1alpha1.Bind9Instance, info InstanceInfo) error
}
