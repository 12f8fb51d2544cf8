package k8tests

import (
	"github.com/firestoned/bindy/api/v1alpha1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// DummyInstance returns a minimal instance with the specified name in the given namespace,
// discovering zones via the provided selectors.
func DummyInstance(name, namespace string, selectors ...v1alpha1.Selector) v1alpha1.Bind9Instance {
	return v1alpha1.Bind9Instance{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: namespace,
		},
		Spec: v1alpha1.Bind9InstanceSpec{
			Image:         "internetsystemsconsortium/bind9:9.18",
			ZoneSelectors: selectors,
		},
	}
}

// DummyZone returns a zone with the specified name in the given namespace, carrying the
// provided labels for selector-based discovery.
func DummyZone(name, namespace, zoneName string, labels map[string]string) v1alpha1.DNSZone {
	return v1alpha1.DNSZone{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: namespace,
			Labels:    labels,
		},
		Spec: v1alpha1.DNSZoneSpec{ZoneName: zoneName},
	}
}

// DummyARecord returns an A record pointing to the given address within the given zone.
func DummyARecord(name, namespace, zone, address string) v1alpha1.ARecord {
	return v1alpha1.ARecord{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: namespace,
		},
		Spec: v1alpha1.ARecordSpec{
			RecordMeta: v1alpha1.RecordMeta{
				Zone: v1alpha1.ZoneReference{Name: zone},
				Name: name,
			},
			Address: address,
		},
	}
}
