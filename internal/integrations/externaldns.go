package integrations

import (
	"context"
	"fmt"

	"github.com/asaskevich/govalidator"
	"github.com/firestoned/bindy/api/v1alpha1"
	configv1 "github.com/firestoned/bindy/internal/config/v1"
	"github.com/firestoned/bindy/internal/k8s"
	v1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"
	endpointv1alpha1 "sigs.k8s.io/external-dns/apis/v1alpha1"
	"sigs.k8s.io/external-dns/endpoint"
)

type externalDNS struct {
	client client.Client
	config configv1.ExternalDNSIntegrationConfig
}

// NewExternalDNS initializes a new external-dns integration which publishes the service
// address of every instance under the configured domain.
func NewExternalDNS(client client.Client, config configv1.ExternalDNSIntegrationConfig) Integration {
	if config.TTL == 0 {
		config.TTL = 300
	}
	return &externalDNS{client, config}
}

func (*externalDNS) Name() string {
	return "external-dns"
}

func (*externalDNS) OwnedResource() client.Object {
	return &endpointv1alpha1.DNSEndpoint{}
}

func (e *externalDNS) UpdateResource(
	ctx context.Context, owner *v1alpha1.Bind9Instance, info InstanceInfo,
) error {
	// Without a hostname there is nothing to publish. We try deleting a previously created
	// endpoint and ignore any error if it was not found.
	if info.Host == "" {
		dnsEndpoint := endpointv1alpha1.DNSEndpoint{ObjectMeta: e.objectMeta(owner)}
		if err := k8s.DeleteIfFound(ctx, e.client, &dnsEndpoint); err != nil {
			return fmt.Errorf("failed to delete DNS endpoint: %w", err)
		}
		return nil
	}

	// Get the addresses of the instance's service
	targets, err := e.targets(ctx, owner)
	if err != nil {
		return fmt.Errorf("failed to query service addresses: %w", err)
	}

	// Create the endpoint resource
	resource := endpointv1alpha1.DNSEndpoint{ObjectMeta: e.objectMeta(owner)}
	if _, err := controllerutil.CreateOrPatch(ctx, e.client, &resource, func() error {
		if err := reconcileMetadata(owner, &resource, e.client.Scheme()); err != nil {
			return err
		}
		resource.Spec.Endpoints = e.endpoints(info.Host, targets)
		return nil
	}); err != nil {
		return fmt.Errorf("failed to upsert DNS endpoint: %w", err)
	}
	return nil
}

//-------------------------------------------------------------------------------------------------
// UTILS
//-------------------------------------------------------------------------------------------------

func (e *externalDNS) targets(
	ctx context.Context, owner *v1alpha1.Bind9Instance,
) ([]string, error) {
	var service v1.Service
	name := types.NamespacedName{Namespace: owner.Namespace, Name: owner.Name}
	if err := e.client.Get(ctx, name, &service); err != nil {
		return nil, fmt.Errorf("failed to query service: %w", err)
	}

	// Try to get load balancer IPs/hostnames...
	targets := make([]string, 0)
	for _, ingress := range service.Status.LoadBalancer.Ingress {
		if ingress.Hostname != "" {
			// We cannot have more than one CNAME record, the hostname overwrites everything
			targets = []string{ingress.Hostname}
			break
		}
		if ingress.IP != "" {
			targets = append(targets, ingress.IP)
		}
	}

	// ...fall back to cluster IPs
	if len(targets) == 0 {
		targets = append(targets, service.Spec.ClusterIPs...)
	}
	return targets, nil
}

func (*externalDNS) objectMeta(owner *v1alpha1.Bind9Instance) metav1.ObjectMeta {
	return metav1.ObjectMeta{
		Name:      owner.Name,
		Namespace: owner.Namespace,
	}
}

func (e *externalDNS) endpoints(host string, targets []string) []*endpoint.Endpoint {
	// Group the targets by their record type
	targetRecords := make(map[string][]string)
	for _, target := range targets {
		rtype := e.recordType(target)
		targetRecords[rtype] = append(targetRecords[rtype], target)
	}

	// Create the endpoints
	endpoints := make([]*endpoint.Endpoint, 0, len(targetRecords))
	for rtype, values := range targetRecords {
		endpoints = append(endpoints, &endpoint.Endpoint{
			DNSName:    host,
			Targets:    values,
			RecordType: rtype,
			RecordTTL:  endpoint.TTL(e.config.TTL),
		})
	}
	return endpoints
}

func (*externalDNS) recordType(target string) string {
	if govalidator.IsIPv4(target) {
		return "A"
	}
	if govalidator.IsIPv6(target) {
		return "AAAA"
	}
	return "CNAME"
}
