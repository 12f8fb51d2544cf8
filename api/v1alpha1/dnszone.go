package v1alpha1

import metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

// DNSZone represents the DNSZone CRD. A zone is either explicitly assigned to a set of
// instances or discovered by instances via their zone selectors.
// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:printcolumn:name="ZONE",type=string,JSONPath=.spec.zoneName
// +kubebuilder:printcolumn:name="READY",type=string,JSONPath=.status.conditions[?(@.type=='Ready')].status
type DNSZone struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata"`

	Spec   DNSZoneSpec   `json:"spec"`
	Status DNSZoneStatus `json:"status,omitempty"`
}

// DNSZoneSpec defines the specification for a DNSZone CRD.
type DNSZoneSpec struct {
	// ZoneName is the logical DNS zone served, e.g. `example.com`. At most one active
	// DNSZone may exist per logical zone name.
	// +kubebuilder:validation:MinLength=1
	ZoneName string `json:"zoneName"`
	// Instances explicitly assigns the zone to the referenced instances. A non-empty list
	// is authoritative and disables selector-based discovery entirely.
	Instances []InstanceReference `json:"instances,omitempty"`
	// +kubebuilder:default=300
	TTL *RecordTTL `json:"ttl,omitempty"`
	SOA *SOAConfig `json:"soa,omitempty"`
}

// SOAConfig provides the values of the zone's SOA record.
type SOAConfig struct {
	Primary string `json:"primary,omitempty"`
	Admin   string `json:"admin,omitempty"`
	// +kubebuilder:default=86400
	Refresh int32 `json:"refresh,omitempty"`
	// +kubebuilder:default=7200
	Retry int32 `json:"retry,omitempty"`
	// +kubebuilder:default=3600000
	Expire int32 `json:"expire,omitempty"`
	// +kubebuilder:default=172800
	NegativeTTL int32 `json:"negativeTTL,omitempty"`
}

// DNSZoneStatus describes the assignment state of the zone along with per-instance
// convergence conditions.
type DNSZoneStatus struct {
	ObservedGeneration int64 `json:"observedGeneration,omitempty"`
	// Instances lists the instances currently serving the zone. Each entry carries its own
	// per-edge reconciliation state.
	Instances  []AssignedInstance `json:"instances,omitempty"`
	Conditions []metav1.Condition `json:"conditions,omitempty"`
}

// AssignedInstance is an assignment edge between a zone and an instance.
type AssignedInstance struct {
	Name      string `json:"name"`
	Namespace string `json:"namespace"`
	// LastReconciledAt is set once the zone has been successfully pushed to the instance
	// and cleared whenever the assignment must be reconciled again.
	LastReconciledAt *metav1.Time `json:"lastReconciledAt,omitempty"`
}

// DNSZoneList represents multiple DNSZone CRDs.
// +kubebuilder:object:root=true
type DNSZoneList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []DNSZone `json:"items"`
}
