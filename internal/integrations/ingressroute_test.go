package integrations

import (
	"context"
	"testing"

	configv1 "github.com/firestoned/bindy/internal/config/v1"
	"github.com/firestoned/bindy/internal/k8tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	traefik "github.com/traefik/traefik/v3/pkg/provider/kubernetes/crd/traefikio/v1alpha1"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

func TestIngressUpdateResource(t *testing.T) {
	// Setup
	ctx := context.Background()
	scheme := k8tests.NewScheme()
	client := k8tests.NewClient(scheme)
	namespace, shutdown := k8tests.NewNamespace(ctx, t, client)
	defer shutdown()

	owner := k8tests.DummyInstance("my-instance", namespace)
	err := client.Create(ctx, &owner)
	require.Nil(t, err)
	integration := NewIngress(client, configv1.IngressIntegrationConfig{
		Entrypoints:  []string{"websecure"},
		DomainFormat: "%s.dns.example.com",
	})

	// No route should be created without a hostname
	info := InstanceInfo{APIPort: 8053}
	err = integration.UpdateResource(ctx, &owner, info)
	require.Nil(t, err)
	assert.Len(t, getIngressRoutes(ctx, t, client, namespace), 0)

	// With a hostname, a route towards the instance's service should be created
	info.Host = "my-instance.dns.example.com"
	err = integration.UpdateResource(ctx, &owner, info)
	require.Nil(t, err)
	routes := getIngressRoutes(ctx, t, client, namespace)
	require.Len(t, routes, 1)
	assert.Equal(t, "my-instance-api", routes[0].Name)
	assert.Equal(t, []string{"websecure"}, routes[0].Spec.EntryPoints)
	require.Len(t, routes[0].Spec.Routes, 1)
	assert.Equal(t, "Host(`my-instance.dns.example.com`)", routes[0].Spec.Routes[0].Match)
	require.Len(t, routes[0].Spec.Routes[0].Services, 1)
	assert.Equal(t, owner.Name, routes[0].Spec.Routes[0].Services[0].Name)

	// Without a hostname, the route should be removed again
	info.Host = ""
	err = integration.UpdateResource(ctx, &owner, info)
	require.Nil(t, err)
	assert.Len(t, getIngressRoutes(ctx, t, client, namespace), 0)
}

//-------------------------------------------------------------------------------------------------
// UTILS
//-------------------------------------------------------------------------------------------------

func getIngressRoutes(
	ctx context.Context, t *testing.T, ctrlClient client.Client, namespace string,
) []traefik.IngressRoute {
	var list traefik.IngressRouteList
	err := ctrlClient.List(ctx, &list, &client.ListOptions{
		Namespace: namespace,
	})
	require.Nil(t, err)
	return list.Items
}
