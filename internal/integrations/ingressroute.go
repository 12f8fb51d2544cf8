package integrations

import (
	"context"
	"fmt"

	"github.com/firestoned/bindy/api/v1alpha1"
	configv1 "github.com/firestoned/bindy/internal/config/v1"
	"github.com/firestoned/bindy/internal/k8s"
	traefik "github.com/traefik/traefik/v3/pkg/provider/kubernetes/crd/traefikio/v1alpha1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"
)

type ingress struct {
	client client.Client
	config configv1.IngressIntegrationConfig
}

// NewIngress initializes a new Traefik integration which exposes the management API of
// every instance through an ingress route.
func NewIngress(client client.Client, config configv1.IngressIntegrationConfig) Integration {
	return &ingress{client, config}
}

func (*ingress) Name() string {
	return "ingress"
}

func (*ingress) OwnedResource() client.Object {
	return &traefik.IngressRoute{}
}

func (i *ingress) UpdateResource(
	ctx context.Context, owner *v1alpha1.Bind9Instance, info InstanceInfo,
) error {
	if info.Host == "" {
		route := traefik.IngressRoute{ObjectMeta: i.objectMeta(owner)}
		if err := k8s.DeleteIfFound(ctx, i.client, &route); err != nil {
			return fmt.Errorf("failed to delete ingress route: %w", err)
		}
		return nil
	}

	resource := traefik.IngressRoute{ObjectMeta: i.objectMeta(owner)}
	if _, err := controllerutil.CreateOrPatch(ctx, i.client, &resource, func() error {
		if err := reconcileMetadata(owner, &resource, i.client.Scheme()); err != nil {
			return err
		}
		resource.Spec = traefik.IngressRouteSpec{
			EntryPoints: i.config.Entrypoints,
			Routes: []traefik.Route{{
				Match: fmt.Sprintf("Host(`%s`)", info.Host),
				Kind:  "Rule",
				Services: []traefik.Service{{
					LoadBalancerSpec: traefik.LoadBalancerSpec{
						Name: owner.Name,
						Port: intstr.FromInt32(info.APIPort),
					},
				}},
			}},
		}
		return nil
	}); err != nil {
		return fmt.Errorf("failed to upsert ingress route: %w", err)
	}
	return nil
}

func (*ingress) objectMeta(owner *v1alpha1.Bind9Instance) metav1.ObjectMeta {
	return metav1.ObjectMeta{
		Name:      fmt.Sprintf("%s-api", owner.Name),
		Namespace: owner.Namespace,
	}
}
