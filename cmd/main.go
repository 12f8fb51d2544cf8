package main

import (
	"context"
	"flag"

	"github.com/borchero/zeus/pkg/zeus"
	certmanager "github.com/cert-manager/cert-manager/pkg/apis/certmanager/v1"
	"github.com/firestoned/bindy/api/v1alpha1"
	configv1 "github.com/firestoned/bindy/internal/config/v1"
	"github.com/firestoned/bindy/internal/controllers"
	"github.com/firestoned/bindy/internal/nameserver"
	traefik "github.com/traefik/traefik/v3/pkg/provider/kubernetes/crd/traefikio/v1alpha1"
	"go.uber.org/zap"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	_ "k8s.io/client-go/plugin/pkg/client/auth"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"
	endpointv1alpha1 "sigs.k8s.io/external-dns/apis/v1alpha1"
)

func main() {
	var cfgFile string
	flag.StringVar(&cfgFile, "config", "/etc/bindy/config.yaml", "The config file to use.")
	flag.Parse()

	// Initialize logger
	ctx := context.Background()
	logger := zeus.Logger(ctx)
	defer zeus.Sync()

	// Load the config file if available
	config, err := configv1.Load(cfgFile)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	// Initialize the options and the schema
	options := ctrl.Options{
		Scheme:                  runtime.NewScheme(),
		LeaderElection:          config.LeaderElection.LeaderElect,
		LeaderElectionID:        config.LeaderElection.ResourceName,
		LeaderElectionNamespace: config.LeaderElection.ResourceNamespace,
		Metrics:                 metricsserver.Options{BindAddress: config.Metrics.BindAddress},
		HealthProbeBindAddress:  config.Health.HealthProbeBindAddress,
	}
	initScheme(config, options.Scheme)

	// Create the manager
	manager, err := ctrl.NewManager(ctrl.GetConfigOrDie(), options)
	if err != nil {
		logger.Fatal("unable to create manager", zap.Error(err))
	}

	// All interactions with the BIND9 fleet run through a single factory so that the
	// client-side rate limit covers the entire fleet
	servers := nameserver.NewFactory(nameserver.Options{
		QPS:             config.Nameserver.QPS,
		Burst:           config.Nameserver.Burst,
		Timeout:         config.Nameserver.Timeout.Duration,
		InitialInterval: config.Nameserver.RetryInitialInterval.Duration,
		MaxElapsedTime:  config.Nameserver.RetryMaxElapsedTime.Duration,
	})

	// Create the controllers
	setupControllers(manager, logger, config, servers)

	// Add health check endpoints
	if err := manager.AddReadyzCheck("readyz", healthz.Ping); err != nil {
		logger.Fatal("unable to set up ready check at /readyz", zap.Error(err))
	}
	if err := manager.AddHealthzCheck("healthz", healthz.Ping); err != nil {
		logger.Fatal("unable to set up health check at /healthz", zap.Error(err))
	}

	// Start the manager
	logger.Info("launching manager")
	if err := manager.Start(ctrl.SetupSignalHandler()); err != nil {
		logger.Fatal("failed to run manager", zap.Error(err))
	}
	logger.Info("gracefully shut down")
}

func setupControllers(
	manager ctrl.Manager,
	logger *zap.Logger,
	config configv1.Config,
	servers *nameserver.Factory,
) {
	ctrlClient := manager.GetClient()

	provider := controllers.NewBind9ProviderReconciler(ctrlClient, logger, config)
	if err := provider.SetupWithManager(manager); err != nil {
		logger.Fatal("unable to start provider controller", zap.Error(err))
	}
	cluster := controllers.NewBind9ClusterReconciler(ctrlClient, logger, config)
	if err := cluster.SetupWithManager(manager); err != nil {
		logger.Fatal("unable to start cluster controller", zap.Error(err))
	}
	instance := controllers.NewBind9InstanceReconciler(ctrlClient, logger, config)
	if err := instance.SetupWithManager(manager); err != nil {
		logger.Fatal("unable to start instance controller", zap.Error(err))
	}
	zone := controllers.NewDNSZoneReconciler(ctrlClient, logger, config, servers)
	if err := zone.SetupWithManager(manager); err != nil {
		logger.Fatal("unable to start zone controller", zap.Error(err))
	}
	setupRecordControllers(manager, logger, config, servers)
}

// setupRecordControllers instantiates the shared record reconciler once per record kind.
func setupRecordControllers(
	manager ctrl.Manager,
	logger *zap.Logger,
	config configv1.Config,
	servers *nameserver.Factory,
) {
	ctrlClient := manager.GetClient()
	setup := func(name string, reconciler interface{ SetupWithManager(ctrl.Manager) error }) {
		if err := reconciler.SetupWithManager(manager); err != nil {
			logger.Fatal("unable to start record controller",
				zap.String("kind", name), zap.Error(err),
			)
		}
	}

	setup("ARecord", controllers.NewRecordReconciler(ctrlClient, logger, config, servers,
		func() *v1alpha1.ARecord { return &v1alpha1.ARecord{} },
		func() *v1alpha1.ARecordList { return &v1alpha1.ARecordList{} },
		func(list *v1alpha1.ARecordList) []*v1alpha1.ARecord { return refs(list.Items) },
	))
	setup("AAAARecord", controllers.NewRecordReconciler(ctrlClient, logger, config, servers,
		func() *v1alpha1.AAAARecord { return &v1alpha1.AAAARecord{} },
		func() *v1alpha1.AAAARecordList { return &v1alpha1.AAAARecordList{} },
		func(list *v1alpha1.AAAARecordList) []*v1alpha1.AAAARecord { return refs(list.Items) },
	))
	setup("CNAMERecord", controllers.NewRecordReconciler(ctrlClient, logger, config, servers,
		func() *v1alpha1.CNAMERecord { return &v1alpha1.CNAMERecord{} },
		func() *v1alpha1.CNAMERecordList { return &v1alpha1.CNAMERecordList{} },
		func(list *v1alpha1.CNAMERecordList) []*v1alpha1.CNAMERecord { return refs(list.Items) },
	))
	setup("TXTRecord", controllers.NewRecordReconciler(ctrlClient, logger, config, servers,
		func() *v1alpha1.TXTRecord { return &v1alpha1.TXTRecord{} },
		func() *v1alpha1.TXTRecordList { return &v1alpha1.TXTRecordList{} },
		func(list *v1alpha1.TXTRecordList) []*v1alpha1.TXTRecord { return refs(list.Items) },
	))
	setup("MXRecord", controllers.NewRecordReconciler(ctrlClient, logger, config, servers,
		func() *v1alpha1.MXRecord { return &v1alpha1.MXRecord{} },
		func() *v1alpha1.MXRecordList { return &v1alpha1.MXRecordList{} },
		func(list *v1alpha1.MXRecordList) []*v1alpha1.MXRecord { return refs(list.Items) },
	))
	setup("NSRecord", controllers.NewRecordReconciler(ctrlClient, logger, config, servers,
		func() *v1alpha1.NSRecord { return &v1alpha1.NSRecord{} },
		func() *v1alpha1.NSRecordList { return &v1alpha1.NSRecordList{} },
		func(list *v1alpha1.NSRecordList) []*v1alpha1.NSRecord { return refs(list.Items) },
	))
	setup("SRVRecord", controllers.NewRecordReconciler(ctrlClient, logger, config, servers,
		func() *v1alpha1.SRVRecord { return &v1alpha1.SRVRecord{} },
		func() *v1alpha1.SRVRecordList { return &v1alpha1.SRVRecordList{} },
		func(list *v1alpha1.SRVRecordList) []*v1alpha1.SRVRecord { return refs(list.Items) },
	))
	setup("PTRRecord", controllers.NewRecordReconciler(ctrlClient, logger, config, servers,
		func() *v1alpha1.PTRRecord { return &v1alpha1.PTRRecord{} },
		func() *v1alpha1.PTRRecordList { return &v1alpha1.PTRRecordList{} },
		func(list *v1alpha1.PTRRecordList) []*v1alpha1.PTRRecord { return refs(list.Items) },
	))
}

func refs[T any](items []T) []*T {
	result := make([]*T, 0, len(items))
	for i := range items {
		result = append(result, &items[i])
	}
	return result
}

func initScheme(config configv1.Config, scheme *runtime.Scheme) {
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
	utilruntime.Must(v1alpha1.AddToScheme(scheme))

	if config.Integrations.CertManager != nil {
		utilruntime.Must(certmanager.AddToScheme(scheme))
	}
	if config.Integrations.Ingress != nil {
		utilruntime.Must(traefik.AddToScheme(scheme))
	}
	if config.Integrations.ExternalDNS != nil {
		groupVersion := schema.GroupVersion{Group: "externaldns.k8s.io", Version: "v1alpha1"}
		scheme.AddKnownTypes(groupVersion,
			&endpointv1alpha1.DNSEndpoint{},
			&endpointv1alpha1.DNSEndpointList{},
		)
		metav1.AddToGroupVersion(scheme, groupVersion)
	}
}
