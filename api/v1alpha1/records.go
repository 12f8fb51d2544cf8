package v1alpha1

import metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

// RecordMeta carries the specification fields shared by all record kinds.
type RecordMeta struct {
	// Zone references the DNSZone (in the record's namespace) the record belongs to.
	Zone ZoneReference `json:"zone"`
	// Name is the record name relative to the zone origin, or `@` for the origin itself.
	// +kubebuilder:validation:MinLength=1
	Name string `json:"name"`
	TTL  *RecordTTL `json:"ttl,omitempty"`
}

// RecordStatus describes the convergence state of a single record.
type RecordStatus struct {
	ObservedGeneration int64              `json:"observedGeneration,omitempty"`
	Conditions         []metav1.Condition `json:"conditions,omitempty"`
}

//////////////////
/// RECORD CRD ///
//////////////////

// ARecord maps a name to an IPv4 address.
// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
type ARecord struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata"`

	Spec   ARecordSpec  `json:"spec"`
	Status RecordStatus `json:"status,omitempty"`
}

// ARecordSpec defines the specification for an ARecord CRD.
type ARecordSpec struct {
	RecordMeta `json:",inline"`
	Address    string `json:"address"`
}

// ARecordList represents multiple ARecord CRDs.
// +kubebuilder:object:root=true
type ARecordList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []ARecord `json:"items"`
}

// AAAARecord maps a name to an IPv6 address.
// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
type AAAARecord struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata"`

	Spec   AAAARecordSpec `json:"spec"`
	Status RecordStatus   `json:"status,omitempty"`
}

// AAAARecordSpec defines the specification for an AAAARecord CRD.
type AAAARecordSpec struct {
	RecordMeta `json:",inline"`
	Address    string `json:"address"`
}

// AAAARecordList represents multiple AAAARecord CRDs.
// +kubebuilder:object:root=true
type AAAARecordList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []AAAARecord `json:"items"`
}

// CNAMERecord aliases a name to another canonical name.
// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
type CNAMERecord struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata"`

	Spec   CNAMERecordSpec `json:"spec"`
	Status RecordStatus    `json:"status,omitempty"`
}

// CNAMERecordSpec defines the specification for a CNAMERecord CRD.
type CNAMERecordSpec struct {
	RecordMeta `json:",inline"`
	Target     string `json:"target"`
}

// CNAMERecordList represents multiple CNAMERecord CRDs.
// +kubebuilder:object:root=true
type CNAMERecordList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []CNAMERecord `json:"items"`
}

// TXTRecord attaches free-form text values to a name.
// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
type TXTRecord struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata"`

	Spec   TXTRecordSpec `json:"spec"`
	Status RecordStatus  `json:"status,omitempty"`
}

// TXTRecordSpec defines the specification for a TXTRecord CRD.
type TXTRecordSpec struct {
	RecordMeta `json:",inline"`
	// +kubebuilder:validation:MinItems=1
	Values []string `json:"values"`
}

// TXTRecordList represents multiple TXTRecord CRDs.
// +kubebuilder:object:root=true
type TXTRecordList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []TXTRecord `json:"items"`
}

// MXRecord designates a mail exchange for a name.
// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
type MXRecord struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata"`

	Spec   MXRecordSpec `json:"spec"`
	Status RecordStatus `json:"status,omitempty"`
}

// MXRecordSpec defines the specification for an MXRecord CRD.
type MXRecordSpec struct {
	RecordMeta `json:",inline"`
	// +kubebuilder:validation:Minimum=0
	Preference int32  `json:"preference"`
	Exchange   string `json:"exchange"`
}

// MXRecordList represents multiple MXRecord CRDs.
// +kubebuilder:object:root=true
type MXRecordList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []MXRecord `json:"items"`
}

// NSRecord delegates a name to an authoritative nameserver.
// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
type NSRecord struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata"`

	Spec   NSRecordSpec `json:"spec"`
	Status RecordStatus `json:"status,omitempty"`
}

// NSRecordSpec defines the specification for an NSRecord CRD.
type NSRecordSpec struct {
	RecordMeta `json:",inline"`
	Nameserver string `json:"nameserver"`
}

// NSRecordList represents multiple NSRecord CRDs.
// +kubebuilder:object:root=true
type NSRecordList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []NSRecord `json:"items"`
}

// SRVRecord locates a service endpoint for a name.
// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
type SRVRecord struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata"`

	Spec   SRVRecordSpec `json:"spec"`
	Status RecordStatus  `json:"status,omitempty"`
}

// SRVRecordSpec defines the specification for an SRVRecord CRD.
type SRVRecordSpec struct {
	RecordMeta `json:",inline"`
	// +kubebuilder:validation:Minimum=0
	Priority int32 `json:"priority"`
	// +kubebuilder:validation:Minimum=0
	Weight int32 `json:"weight"`
	// +kubebuilder:validation:Minimum=1
	// +kubebuilder:validation:Maximum=65535
	Port   int32  `json:"port"`
	Target string `json:"target"`
}

// SRVRecordList represents multiple SRVRecord CRDs.
// +kubebuilder:object:root=true
type SRVRecordList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []SRVRecord `json:"items"`
}

// PTRRecord maps a reverse-lookup name back to a canonical name.
// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
type PTRRecord struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata"`

	Spec   PTRRecordSpec `json:"spec"`
	Status RecordStatus  `json:"status,omitempty"`
}

// PTRRecordSpec defines the specification for a PTRRecord CRD.
type PTRRecordSpec struct {
	RecordMeta `json:",inline"`
	Target     string `json:"target"`
}

// PTRRecordList represents multiple PTRRecord CRDs.
// +kubebuilder:object:root=true
type PTRRecordList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []PTRRecord `json:"items"`
}
