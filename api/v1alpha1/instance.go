package v1alpha1

import (
	v1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// Bind9Instance represents the Bind9Instance CRD. Each instance manages a single BIND9
// server deployment along with its service and generated configuration, and discovers the
// zones it serves via label selectors.
// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:printcolumn:name="ZONES",type=integer,JSONPath=.status.zoneCount
// +kubebuilder:printcolumn:name="READY",type=string,JSONPath=.status.conditions[?(@.type=='Ready')].status
type Bind9Instance struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata"`

	Spec   Bind9InstanceSpec   `json:"spec"`
	Status Bind9InstanceStatus `json:"status,omitempty"`
}

// Bind9InstanceSpec defines the specification for a Bind9Instance CRD.
type Bind9InstanceSpec struct {
	// +kubebuilder:default="internetsystemsconsortium/bind9:9.18"
	Image string `json:"image,omitempty"`
	// ZoneSelectors is a source list of selectors which is evaluated against the labels of
	// DNSZone resources in the instance's namespace. The list is OR-combined: a zone
	// matching any member selector is discovered by this instance.
	ZoneSelectors []Selector `json:"zoneSelectors,omitempty"`
	// API configures the management API through which zone and record configuration is
	// pushed to the running server.
	API APIAccess `json:"api,omitempty"`
	// Resources requests compute resources for the BIND9 container.
	Resources v1.ResourceRequirements `json:"resources,omitempty"`
}

// APIAccess describes how the management API of a BIND9 server is reached.
type APIAccess struct {
	// +kubebuilder:default=8053
	Port int32 `json:"port,omitempty"`
	// +kubebuilder:validation:Enum=http;https
	// +kubebuilder:default=http
	Scheme string `json:"scheme,omitempty"`
	// KeySecretRef optionally references a secret holding the API authentication key.
	KeySecretRef *SecretKeyRef `json:"keySecretRef,omitempty"`
}

// Bind9InstanceStatus describes the state of the instance's managed workload along with
// the number of zones it currently serves.
type Bind9InstanceStatus struct {
	ObservedGeneration int64              `json:"observedGeneration,omitempty"`
	ZoneCount          int32              `json:"zoneCount,omitempty"`
	Conditions         []metav1.Condition `json:"conditions,omitempty"`
}

// Bind9InstanceList represents multiple Bind9Instance CRDs.
// +kubebuilder:object:root=true
type Bind9InstanceList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []Bind9Instance `json:"items"`
}
