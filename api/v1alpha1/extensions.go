package v1alpha1

import (
	"fmt"
	"strings"

	"github.com/asaskevich/govalidator"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

/////////////
/// NAMES ///
/////////////

// NamespacedName returns the namespaced name of the referenced instance, defaulting the
// namespace to the provided one if the reference does not carry its own.
func (r InstanceReference) NamespacedName(defaultNamespace string) types.NamespacedName {
	namespace := r.Namespace
	if namespace == "" {
		namespace = defaultNamespace
	}
	return types.NamespacedName{Namespace: namespace, Name: r.Name}
}

// NamespacedName returns the namespaced name of the referenced secret.
func (s SecretKeyRef) NamespacedName(namespace string) types.NamespacedName {
	return types.NamespacedName{Namespace: namespace, Name: s.Name}
}

// NamespacedName returns the namespaced name of the assigned instance.
func (a AssignedInstance) NamespacedName() types.NamespacedName {
	return types.NamespacedName{Namespace: a.Namespace, Name: a.Name}
}

/////////////
/// EMPTY ///
/////////////

// Empty returns whether the selector has neither match labels nor match expressions set.
// An empty selector matches nothing.
func (s Selector) Empty() bool {
	return len(s.MatchLabels) == 0 && len(s.MatchExpressions) == 0
}

//////////////
/// RECORD ///
//////////////

// Record is the capability interface satisfied by all record kinds. It allows a single
// generic reconciler to serve every kind.
type Record interface {
	client.Object

	// RecordKind returns the canonical DNS type of the record, e.g. `A` or `CNAME`.
	RecordKind() string
	// Meta returns the specification fields shared by all record kinds.
	Meta() RecordMeta
	// RData renders the record's payload into zone-file syntax. An error indicates a
	// terminal validation failure which is not retried until the specification changes.
	RData() (string, error)
	// RecordStatus grants the reconciler access to the record's status.
	RecordStatus() *RecordStatus
}

// RecordKind implements Record.
func (*ARecord) RecordKind() string { return "A" }

// Meta implements Record.
func (r *ARecord) Meta() RecordMeta { return r.Spec.RecordMeta }

// RData implements Record.
func (r *ARecord) RData() (string, error) {
	if !govalidator.IsIPv4(r.Spec.Address) {
		return "", fmt.Errorf("%q is not a valid IPv4 address", r.Spec.Address)
	}
	return r.Spec.Address, nil
}

// RecordStatus implements Record.
func (r *ARecord) RecordStatus() *RecordStatus { return &r.Status }

// RecordKind implements Record.
func (*AAAARecord) RecordKind() string { return "AAAA" }

// Meta implements Record.
func (r *AAAARecord) Meta() RecordMeta { return r.Spec.RecordMeta }

// RData implements Record.
func (r *AAAARecord) RData() (string, error) {
	if !govalidator.IsIPv6(r.Spec.Address) {
		return "", fmt.Errorf("%q is not a valid IPv6 address", r.Spec.Address)
	}
	return r.Spec.Address, nil
}

// RecordStatus implements Record.
func (r *AAAARecord) RecordStatus() *RecordStatus { return &r.Status }

// RecordKind implements Record.
func (*CNAMERecord) RecordKind() string { return "CNAME" }

// Meta implements Record.
func (r *CNAMERecord) Meta() RecordMeta { return r.Spec.RecordMeta }

// RData implements Record.
func (r *CNAMERecord) RData() (string, error) {
	return fqdn(r.Spec.Target)
}

// RecordStatus implements Record.
func (r *CNAMERecord) RecordStatus() *RecordStatus { return &r.Status }

// RecordKind implements Record.
func (*TXTRecord) RecordKind() string { return "TXT" }

// Meta implements Record.
func (r *TXTRecord) Meta() RecordMeta { return r.Spec.RecordMeta }

// RData implements Record.
func (r *TXTRecord) RData() (string, error) {
	quoted := make([]string, 0, len(r.Spec.Values))
	for _, value := range r.Spec.Values {
		if strings.Contains(value, `"`) {
			return "", fmt.Errorf("text value %q must not contain quotes", value)
		}
		quoted = append(quoted, fmt.Sprintf("%q", value))
	}
	return strings.Join(quoted, " "), nil
}

// RecordStatus implements Record.
func (r *TXTRecord) RecordStatus() *RecordStatus { return &r.Status }

// RecordKind implements Record.
func (*MXRecord) RecordKind() string { return "MX" }

// Meta implements Record.
func (r *MXRecord) Meta() RecordMeta { return r.Spec.RecordMeta }

// RData implements Record.
func (r *MXRecord) RData() (string, error) {
	exchange, err := fqdn(r.Spec.Exchange)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d %s", r.Spec.Preference, exchange), nil
}

// RecordStatus implements Record.
func (r *MXRecord) RecordStatus() *RecordStatus { return &r.Status }

// RecordKind implements Record.
func (*NSRecord) RecordKind() string { return "NS" }

// Meta implements Record.
func (r *NSRecord) Meta() RecordMeta { return r.Spec.RecordMeta }

// RData implements Record.
func (r *NSRecord) RData() (string, error) {
	return fqdn(r.Spec.Nameserver)
}

// RecordStatus implements Record.
func (r *NSRecord) RecordStatus() *RecordStatus { return &r.Status }

// RecordKind implements Record.
func (*SRVRecord) RecordKind() string { return "SRV" }

// Meta implements Record.
func (r *SRVRecord) Meta() RecordMeta { return r.Spec.RecordMeta }

// RData implements Record.
func (r *SRVRecord) RData() (string, error) {
	target, err := fqdn(r.Spec.Target)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d %d %d %s", r.Spec.Priority, r.Spec.Weight, r.Spec.Port, target), nil
}

// RecordStatus implements Record.
func (r *SRVRecord) RecordStatus() *RecordStatus { return &r.Status }

// RecordKind implements Record.
func (*PTRRecord) RecordKind() string { return "PTR" }

// Meta implements Record.
func (r *PTRRecord) Meta() RecordMeta { return r.Spec.RecordMeta }

// RData implements Record.
func (r *PTRRecord) RData() (string, error) {
	return fqdn(r.Spec.Target)
}

// RecordStatus implements Record.
func (r *PTRRecord) RecordStatus() *RecordStatus { return &r.Status }

// fqdn validates the given hostname and returns it in fully-qualified form with a
// trailing dot.
func fqdn(host string) (string, error) {
	trimmed := strings.TrimSuffix(host, ".")
	if !govalidator.IsDNSName(trimmed) {
		return "", fmt.Errorf("%q is not a valid DNS name", host)
	}
	return trimmed + ".", nil
}
