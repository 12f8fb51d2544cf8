package k8tests

import (
	certmanager "github.com/cert-manager/cert-manager/pkg/apis/certmanager/v1"
	"github.com/firestoned/bindy/api/v1alpha1"
	traefik "github.com/traefik/traefik/v3/pkg/provider/kubernetes/crd/traefikio/v1alpha1"
	appsv1 "k8s.io/api/apps/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
	endpointv1alpha1 "sigs.k8s.io/external-dns/apis/v1alpha1"
)

// NewScheme returns a newly configured scheme which registers all types that are relevant
// for bindy.
func NewScheme() *runtime.Scheme {
	scheme := runtime.NewScheme()
	// >>> core types
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
	// >>> bindy
	utilruntime.Must(v1alpha1.AddToScheme(scheme))
	// >>> cert-manager
	utilruntime.Must(certmanager.AddToScheme(scheme))
	// >>> traefik
	utilruntime.Must(traefik.AddToScheme(scheme))
	// >>> external-dns
	groupVersion := schema.GroupVersion{Group: "externaldns.k8s.io", Version: "v1alpha1"}
	scheme.AddKnownTypes(groupVersion,
		&endpointv1alpha1.DNSEndpoint{},
		&endpointv1alpha1.DNSEndpointList{},
	)
	metav1.AddToGroupVersion(scheme, groupVersion)
	return scheme
}

// NewClient returns a new fake Kubernetes client tracking all types of the scheme. The
// status subresources of our own types are registered so that status writes behave like on
// a real API server.
func NewClient(scheme *runtime.Scheme, objects ...client.Object) client.Client {
	return NewClientBuilder(scheme, objects...).Build()
}

// NewClientBuilder returns a pre-configured fake client builder for callers which need to
// install interceptors before building the client.
func NewClientBuilder(scheme *runtime.Scheme, objects ...client.Object) *fake.ClientBuilder {
	return fake.NewClientBuilder().
		WithScheme(scheme).
		WithObjects(objects...).
		WithStatusSubresource(
			&appsv1.Deployment{},
			&v1alpha1.Bind9Provider{},
			&v1alpha1.Bind9Cluster{},
			&v1alpha1.Bind9Instance{},
			&v1alpha1.DNSZone{},
			&v1alpha1.ARecord{},
			&v1alpha1.AAAARecord{},
			&v1alpha1.CNAMERecord{},
			&v1alpha1.TXTRecord{},
			&v1alpha1.MXRecord{},
			&v1alpha1.NSRecord{},
			&v1alpha1.SRVRecord{},
			&v1alpha1.PTRRecord{},
		)
}
