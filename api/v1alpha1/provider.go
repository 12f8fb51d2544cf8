package v1alpha1

import metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

// Bind9Provider represents the Bind9Provider CRD. It is the root of the resource hierarchy
// and rolls out one Bind9Cluster per configured entry.
// +kubebuilder:object:root=true
// +kubebuilder:resource:scope=Cluster
// +kubebuilder:subresource:status
// +kubebuilder:printcolumn:name="READY",type=string,JSONPath=.status.conditions[?(@.type=='Ready')].status
type Bind9Provider struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata"`

	Spec   Bind9ProviderSpec   `json:"spec"`
	Status Bind9ProviderStatus `json:"status,omitempty"`
}

// Bind9ProviderSpec defines the specification for a Bind9Provider CRD.
type Bind9ProviderSpec struct {
	// +kubebuilder:validation:MinItems=1
	Clusters []ClusterTemplate `json:"clusters"`
}

// ClusterTemplate describes a single Bind9Cluster that the provider rolls out into the
// given namespace.
type ClusterTemplate struct {
	Name      string           `json:"name"`
	Namespace string           `json:"namespace"`
	Spec      Bind9ClusterSpec `json:"spec"`
}

// Bind9ProviderStatus describes the aggregated state of all clusters managed by the
// provider.
type Bind9ProviderStatus struct {
	ObservedGeneration int64              `json:"observedGeneration,omitempty"`
	ReadyClusters      int32              `json:"readyClusters,omitempty"`
	Conditions         []metav1.Condition `json:"conditions,omitempty"`
}

// Bind9ProviderList represents multiple Bind9Provider CRDs.
// +kubebuilder:object:root=true
type Bind9ProviderList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []Bind9Provider `json:"items"`
}
