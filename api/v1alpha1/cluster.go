package v1alpha1

import metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

// Bind9Cluster represents the Bind9Cluster CRD. It manages a fixed number of Bind9Instance
// resources which are derived from a shared instance template.
// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:printcolumn:name="REPLICAS",type=integer,JSONPath=.spec.replicas
// +kubebuilder:printcolumn:name="READY",type=string,JSONPath=.status.conditions[?(@.type=='Ready')].status
type Bind9Cluster struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata"`

	Spec   Bind9ClusterSpec   `json:"spec"`
	Status Bind9ClusterStatus `json:"status,omitempty"`
}

// Bind9ClusterSpec defines the specification for a Bind9Cluster CRD.
type Bind9ClusterSpec struct {
	// +kubebuilder:validation:Minimum=0
	// +kubebuilder:default=1
	Replicas *int32 `json:"replicas,omitempty"`
	// InstanceTemplate provides the shared configuration from which all instances of the
	// cluster are derived.
	InstanceTemplate Bind9InstanceTemplate `json:"instanceTemplate"`
}

// Bind9InstanceTemplate carries the instance specification shared by all replicas of a
// cluster. Per-replica values (such as the instance name) are filled in by the cluster
// reconciler.
type Bind9InstanceTemplate struct {
	Metadata TemplateMetadata  `json:"metadata,omitempty"`
	Spec     Bind9InstanceSpec `json:"spec"`
}

// TemplateMetadata carries labels and annotations stamped onto generated resources.
type TemplateMetadata struct {
	Labels      map[string]string `json:"labels,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

// Bind9ClusterStatus describes the aggregated state of all instances of the cluster.
type Bind9ClusterStatus struct {
	ObservedGeneration int64              `json:"observedGeneration,omitempty"`
	ReadyInstances     int32              `json:"readyInstances,omitempty"`
	Conditions         []metav1.Condition `json:"conditions,omitempty"`
}

// Bind9ClusterList represents multiple Bind9Cluster CRDs.
// +kubebuilder:object:root=true
type Bind9ClusterList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []Bind9Cluster `json:"items"`
}
