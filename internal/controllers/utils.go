package controllers

import (
	"context"
	"fmt"

	"github.com/firestoned/bindy/api/v1alpha1"
	configv1 "github.com/firestoned/bindy/internal/config/v1"
	"github.com/firestoned/bindy/internal/integrations"
	"github.com/firestoned/bindy/internal/manifests"
	"github.com/firestoned/bindy/internal/metrics"
	"github.com/firestoned/bindy/internal/nameserver"
	v1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/types"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

const (
	// clusterLabelKey links an instance to the cluster it was generated from.
	clusterLabelKey = "bindy.firestoned.io/cluster"
	// finalizer guards zones and records whose configuration has been pushed to at least
	// one server and must be removed again before the Kubernetes resource may go away.
	finalizer = "bindy.firestoned.io/finalizer"
)

//-------------------------------------------------------------------------------------------------
// INTEGRATIONS
//-------------------------------------------------------------------------------------------------

// integrationTarget couples an integration with the domain format used to render the
// hostname it acts upon.
type integrationTarget struct {
	integrations.Integration
	domainFormat string
}

func integrationsFromConfig(
	config configv1.Config, client client.Client,
) []integrationTarget {
	result := make([]integrationTarget, 0)
	if externalDNS := config.Integrations.ExternalDNS; externalDNS != nil {
		result = append(result, integrationTarget{
			Integration:  integrations.NewExternalDNS(client, *externalDNS),
			domainFormat: externalDNS.DomainFormat,
		})
	}
	if ingress := config.Integrations.Ingress; ingress != nil {
		result = append(result, integrationTarget{
			Integration:  integrations.NewIngress(client, *ingress),
			domainFormat: ingress.DomainFormat,
		})
	}
	if certManager := config.Integrations.CertManager; certManager != nil {
		// The certificate covers the hostname under which the management API is exposed,
		// i.e. the ingress domain when the ingress integration is enabled.
		format := ""
		if config.Integrations.Ingress != nil {
			format = config.Integrations.Ingress.DomainFormat
		} else if config.Integrations.ExternalDNS != nil {
			format = config.Integrations.ExternalDNS.DomainFormat
		}
		result = append(result, integrationTarget{
			Integration:  integrations.NewCertManager(client, *certManager),
			domainFormat: format,
		})
	}
	return result
}

func (t integrationTarget) instanceInfo(instance *v1alpha1.Bind9Instance) integrations.InstanceInfo {
	info := integrations.InstanceInfo{APIPort: manifests.APIPort(instance)}
	if t.domainFormat != "" {
		info.Host = fmt.Sprintf(t.domainFormat, fmt.Sprintf(
			"%s-%s", instance.Namespace, instance.Name,
		))
	}
	return info
}

//-------------------------------------------------------------------------------------------------
// NAMESERVER ACCESS
//-------------------------------------------------------------------------------------------------

// ServerClients creates management API clients for individual servers. It is implemented
// by nameserver.Factory.
type ServerClients interface {
	ClientFor(endpoint, key string) (nameserver.Client, error)
}

// clientForInstance builds a management API client for the given instance, resolving the
// API key from the referenced secret if the instance requires authentication.
func clientForInstance(
	ctx context.Context,
	ctrlClient client.Client,
	servers ServerClients,
	name types.NamespacedName,
) (nameserver.Client, error) {
	var instance v1alpha1.Bind9Instance
	if err := ctrlClient.Get(ctx, name, &instance); err != nil {
		return nil, err
	}
	key := ""
	if ref := instance.Spec.API.KeySecretRef; ref != nil {
		var secret v1.Secret
		if err := ctrlClient.Get(ctx, ref.NamespacedName(instance.Namespace), &secret); err != nil {
			return nil, fmt.Errorf("failed to query API key secret: %w", err)
		}
		value, ok := secret.Data[ref.Key]
		if !ok {
			return nil, fmt.Errorf("key %q not found in secret %q", ref.Key, ref.Name)
		}
		key = string(value)
	}
	return servers.ClientFor(manifests.APIEndpoint(&instance), key)
}

//-------------------------------------------------------------------------------------------------
// RECONCILE OUTCOMES
//-------------------------------------------------------------------------------------------------

// requeue returns the result scheduling the next periodic resync, with a shorter interval
// while the resource has not converged yet.
func requeue(config configv1.ReconcileConfig, ready bool) ctrl.Result {
	if ready {
		return ctrl.Result{RequeueAfter: config.ResyncReady.Duration}
	}
	return ctrl.Result{RequeueAfter: config.ResyncNotReady.Duration}
}

// observe counts the outcome of a single reconciliation run.
func observe(controller string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	metrics.Reconciliations.WithLabelValues(controller, outcome).Inc()
}
