package integrations

import (
	"context"
	"fmt"

	"dario.cat/mergo"
	certmanager "github.com/cert-manager/cert-manager/pkg/apis/certmanager/v1"
	"github.com/firestoned/bindy/api/v1alpha1"
	configv1 "github.com/firestoned/bindy/internal/config/v1"
	"github.com/firestoned/bindy/internal/k8s"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"
)

type certManager struct {
	client   client.Client
	template certmanager.Certificate
}

// NewCertManager initializes a new cert-manager integration which creates a TLS
// certificate for the management API of every instance from the provided template.
func NewCertManager(client client.Client, config configv1.CertManagerIntegrationConfig) Integration {
	return &certManager{client, config.Template}
}

func (*certManager) Name() string {
	return "cert-manager"
}

func (*certManager) OwnedResource() client.Object {
	return &certmanager.Certificate{}
}

func (c *certManager) UpdateResource(
	ctx context.Context, owner *v1alpha1.Bind9Instance, info InstanceInfo,
) error {
	// Without a hostname no certificate can be issued
	if info.Host == "" {
		certificate := certmanager.Certificate{ObjectMeta: c.objectMeta(owner)}
		if err := k8s.DeleteIfFound(ctx, c.client, &certificate); err != nil {
			return fmt.Errorf("failed to delete TLS certificate: %w", err)
		}
		return nil
	}

	resource := certmanager.Certificate{ObjectMeta: c.objectMeta(owner)}
	if _, err := controllerutil.CreateOrPatch(ctx, c.client, &resource, func() error {
		if err := reconcileMetadata(owner, &resource, c.client.Scheme()); err != nil {
			return fmt.Errorf("failed to reconcile metadata: %w", err)
		}

		// Spec
		template := c.template.Spec.DeepCopy()
		template.SecretName = fmt.Sprintf("%s-api-tls", owner.Name)
		template.DNSNames = []string{info.Host}
		if err := mergo.Merge(&resource.Spec, template, mergo.WithOverride); err != nil {
			return fmt.Errorf("failed to reconcile specification: %w", err)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("failed to upsert TLS certificate: %w", err)
	}
	return nil
}

//-------------------------------------------------------------------------------------------------
// UTILS
//-------------------------------------------------------------------------------------------------

func (*certManager) objectMeta(owner *v1alpha1.Bind9Instance) metav1.ObjectMeta {
	return metav1.ObjectMeta{
		Name:      fmt.Sprintf("%s-api-tls", owner.Name),
		Namespace: owner.Namespace,
	}
}
