package v1alpha1

import (
	"k8s.io/apimachinery/pkg/runtime/schema"
	"sigs.k8s.io/controller-runtime/pkg/scheme"
)

// +kubebuilder:object:generate=true
// +groupName=bindy.firestoned.io

var (
	// GroupVersion defines the group's schema.
	GroupVersion = schema.GroupVersion{
		Group:   "bindy.firestoned.io",
		Version: "v1alpha1",
	}

	// SchemeBuilder is used to add Go types to the GroupVersionKind scheme.
	SchemeBuilder = &scheme.Builder{
		GroupVersion: GroupVersion,
	}

	// AddToScheme adds the types in this group to the given scheme.
	AddToScheme = SchemeBuilder.AddToScheme
)

func init() {
	SchemeBuilder.Register(
		&Bind9Provider{}, &Bind9ProviderList{},
		&Bind9Cluster{}, &Bind9ClusterList{},
		&Bind9Instance{}, &Bind9InstanceList{},
		&DNSZone{}, &DNSZoneList{},
		&ARecord{}, &ARecordList{},
		&AAAARecord{}, &AAAARecordList{},
		&CNAMERecord{}, &CNAMERecordList{},
		&TXTRecord{}, &TXTRecordList{},
		&MXRecord{}, &MXRecordList{},
		&NSRecord{}, &NSRecordList{},
		&SRVRecord{}, &SRVRecordList{},
		&PTRRecord{}, &PTRRecordList{},
	)
}
