package integrations

import (
	"context"
	"testing"

	configv1 "github.com/firestoned/bindy/internal/config/v1"
	"github.com/firestoned/bindy/internal/k8tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	v1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
	endpointv1alpha1 "sigs.k8s.io/external-dns/apis/v1alpha1"
	"sigs.k8s.io/external-dns/endpoint"
)

func TestExternalDNSUpdateResource(t *testing.T) {
	// Setup
	ctx := context.Background()
	scheme := k8tests.NewScheme()
	client := k8tests.NewClient(scheme)
	namespace, shutdown := k8tests.NewNamespace(ctx, t, client)
	defer shutdown()

	// Create a dummy instance along with its service
	owner := k8tests.DummyInstance("my-instance", namespace)
	err := client.Create(ctx, &owner)
	require.Nil(t, err)
	service := v1.Service{
		ObjectMeta: metav1.ObjectMeta{Name: owner.Name, Namespace: namespace},
		Spec: v1.ServiceSpec{
			ClusterIPs: []string{"10.96.0.10"},
			Ports:      []v1.ServicePort{{Name: "dns-udp", Port: 53}},
		},
	}
	err = client.Create(ctx, &service)
	require.Nil(t, err)

	integration := NewExternalDNS(client, configv1.ExternalDNSIntegrationConfig{
		TTL:          250,
		DomainFormat: "%s.dns.example.com",
	})

	// No resource should be created without a hostname
	info := InstanceInfo{APIPort: 8053}
	err = integration.UpdateResource(ctx, &owner, info)
	require.Nil(t, err)
	assert.Len(t, getDNSEndpoints(ctx, t, client, namespace), 0)

	// With a hostname, the cluster IP of the service should be published
	info.Host = "my-instance.dns.example.com"
	err = integration.UpdateResource(ctx, &owner, info)
	require.Nil(t, err)
	endpoints := getDNSEndpoints(ctx, t, client, namespace)
	require.Len(t, endpoints, 1)
	require.Len(t, endpoints[0].Spec.Endpoints, 1)
	assert.Equal(t, info.Host, endpoints[0].Spec.Endpoints[0].DNSName)
	assert.Equal(t, "A", endpoints[0].Spec.Endpoints[0].RecordType)
	assert.Equal(t, endpoint.TTL(250), endpoints[0].Spec.Endpoints[0].RecordTTL)
	assert.ElementsMatch(t, []string{"10.96.0.10"}, endpoints[0].Spec.Endpoints[0].Targets)

	// Without a hostname, the endpoint should be removed again
	info.Host = ""
	err = integration.UpdateResource(ctx, &owner, info)
	require.Nil(t, err)
	assert.Len(t, getDNSEndpoints(ctx, t, client, namespace), 0)
}

func TestExternalDNSEndpoints(t *testing.T) {
	integration := externalDNS{config: configv1.ExternalDNSIntegrationConfig{TTL: 250}}
	host := "my-instance.dns.example.com"

	endpoints := integration.endpoints(host, []string{"127.0.0.1"})
	require.Len(t, endpoints, 1)
	assert.Equal(t, "A", endpoints[0].RecordType)
	assert.Equal(t, endpoint.TTL(250), endpoints[0].RecordTTL)

	endpoints = integration.endpoints(host, []string{"127.0.0.1", "2001:db8::1"})
	assert.Len(t, endpoints, 2)
	for _, ep := range endpoints {
		assert.Equal(t, host, ep.DNSName)
		switch ep.RecordType {
		case "A":
			assert.ElementsMatch(t, []string{"127.0.0.1"}, ep.Targets)
		case "AAAA":
			assert.ElementsMatch(t, []string{"2001:db8::1"}, ep.Targets)
		default:
			t.Fatalf("unexpected record type %q", ep.RecordType)
		}
	}

	endpoints = integration.endpoints(host, []string{"lb.example.com"})
	require.Len(t, endpoints, 1)
	assert.Equal(t, "CNAME", endpoints[0].RecordType)
}

func TestExternalDNSRecordType(t *testing.T) {
	integration := externalDNS{}
	assert.Equal(t, "A", integration.recordType("127.0.0.1"))
	assert.Equal(t, "AAAA", integration.recordType("2001:db8::1"))
	assert.Equal(t, "CNAME", integration.recordType("lb.example.com"))
}

//-------------------------------------------------------------------------------------------------
// UTILS
//-------------------------------------------------------------------------------------------------

func getDNSEndpoints(
	ctx context.Context, t *testing.T, ctrlClient client.Client, namespace string,
) []endpointv1alpha1.DNSEndpoint {
	var list endpointv1alpha1.DNSEndpointList
	err := ctrlClient.List(ctx, &list, &client.ListOptions{
		Namespace: namespace,
	})
	require.Nil(t, err)
	return list.Items
}
