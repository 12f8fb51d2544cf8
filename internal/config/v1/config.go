package v1

import (
	"fmt"
	"os"
	"time"

	"dario.cat/mergo"
	certmanager "github.com/cert-manager/cert-manager/pkg/apis/certmanager/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"
)

// Config is the schema for the operator configuration file.
type Config struct {
	ControllerConfig `json:",inline"`
	Nameserver       NameserverConfig   `json:"nameserver,omitempty"`
	Reconcile        ReconcileConfig    `json:"reconcile,omitempty"`
	Integrations     IntegrationConfigs `json:"integrations,omitempty"`
}

//-------------------------------------------------------------------------------------------------

// ControllerConfig provides configuration for the controller.
type ControllerConfig struct {
	Health         HealthConfig         `json:"health,omitempty"`
	LeaderElection LeaderElectionConfig `json:"leaderElection,omitempty"`
	Metrics        MetricsConfig        `json:"metrics,omitempty"`
}

// HealthConfig provides configuration for the controller health checks.
type HealthConfig struct {
	HealthProbeBindAddress string `json:"healthProbeBindAddress,omitempty"`
}

// LeaderElectionConfig provides configuration for the leader election.
type LeaderElectionConfig struct {
	LeaderElect       bool   `json:"leaderElect,omitempty"`
	ResourceName      string `json:"resourceName,omitempty"`
	ResourceNamespace string `json:"resourceNamespace,omitempty"`
}

// MetricsConfig provides configuration for the controller metrics.
type MetricsConfig struct {
	BindAddress string `json:"bindAddress,omitempty"`
}

//-------------------------------------------------------------------------------------------------

// NameserverConfig bounds the interaction with the management APIs of the BIND9 servers.
type NameserverConfig struct {
	// QPS is the sustained request rate across the entire fleet, Burst the ceiling.
	QPS   float32 `json:"qps,omitempty"`
	Burst int     `json:"burst,omitempty"`
	// Timeout bounds a single API request.
	Timeout metav1.Duration `json:"timeout,omitempty"`
	// RetryInitialInterval is the first retry delay for transient API failures.
	RetryInitialInterval metav1.Duration `json:"retryInitialInterval,omitempty"`
	// RetryMaxElapsedTime bounds the total time spent retrying a single operation.
	RetryMaxElapsedTime metav1.Duration `json:"retryMaxElapsedTime,omitempty"`
}

// ReconcileConfig tunes the convergence behavior of all reconcilers.
type ReconcileConfig struct {
	// PageSize is the page size used when listing resources from the API server.
	PageSize int64 `json:"pageSize,omitempty"`
	// ResyncReady is the periodic resync interval for resources which are ready.
	ResyncReady metav1.Duration `json:"resyncReady,omitempty"`
	// ResyncNotReady is the periodic resync interval for resources which are not ready.
	ResyncNotReady metav1.Duration `json:"resyncNotReady,omitempty"`
	// RevokeUnclaimed removes a selector-discovered zone from a server once no instance
	// claims it anymore. When false, the configuration is left in place passively.
	RevokeUnclaimed bool `json:"revokeUnclaimed,omitempty"`
}

// IntegrationConfigs describes the configurations for all integrations.
type IntegrationConfigs struct {
	ExternalDNS *ExternalDNSIntegrationConfig `json:"externalDNS,omitempty"`
	CertManager *CertManagerIntegrationConfig `json:"certManager,omitempty"`
	Ingress     *IngressIntegrationConfig     `json:"ingress,omitempty"`
}

// ExternalDNSIntegrationConfig publishes the addresses of every instance's service as a
// DNSEndpoint resource consumed by external-dns.
type ExternalDNSIntegrationConfig struct {
	TTL int64 `json:"ttl,omitempty"`
	// DomainFormat renders the published hostname, e.g. `%s.dns.example.com` where `%s`
	// is substituted with `<namespace>-<name>` of the instance.
	DomainFormat string `json:"domainFormat"`
}

// CertManagerIntegrationConfig obtains a TLS certificate for every instance's management
// API from the given certificate template.
type CertManagerIntegrationConfig struct {
	Template certmanager.Certificate `json:"certificateTemplate"`
}

// IngressIntegrationConfig exposes every instance's management API through a Traefik
// ingress route on the given domain pattern.
type IngressIntegrationConfig struct {
	// Entrypoints lists the Traefik entrypoints the route is attached to.
	Entrypoints []string `json:"entrypoints,omitempty"`
	// DomainFormat renders the route's host rule, e.g. `%s.dns.example.com` where `%s` is
	// substituted with `<namespace>-<name>` of the instance.
	DomainFormat string `json:"domainFormat"`
}

//-------------------------------------------------------------------------------------------------

// Load reads the configuration from the given file and merges it with the defaults.
func Load(path string) (Config, error) {
	var config Config
	if path != "" {
		contents, err := os.ReadFile(path)
		if err != nil {
			return config, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(contents, &config); err != nil {
			return config, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	if err := mergo.Merge(&config, defaults()); err != nil {
		return config, fmt.Errorf("failed to apply config defaults: %w", err)
	}
	return config, nil
}

func defaults() Config {
	return Config{
		Nameserver: NameserverConfig{
			QPS:                  10,
			Burst:                20,
			Timeout:              metav1.Duration{Duration: 10 * time.Second},
			RetryInitialInterval: metav1.Duration{Duration: 500 * time.Millisecond},
			RetryMaxElapsedTime:  metav1.Duration{Duration: 2 * time.Minute},
		},
		Reconcile: ReconcileConfig{
			PageSize:       100,
			ResyncReady:    metav1.Duration{Duration: 10 * time.Minute},
			ResyncNotReady: metav1.Duration{Duration: 30 * time.Second},
		},
	}
}
