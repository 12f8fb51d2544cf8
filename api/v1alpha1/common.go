package v1alpha1

/////////////////
/// CONSTANTS ///
/////////////////

// RecordTTL describes the time for which a DNS record should be kept in the cache.
// +kubebuilder:validation:Minimum=60
// +kubebuilder:validation:Maximum=86400
// +kubebuilder:validation:ExclusiveMaximum=false
type RecordTTL int

// SelectorOperator is the set of operators that can be used in a selector requirement.
// +kubebuilder:validation:Enum=In;NotIn;Exists;DoesNotExist
type SelectorOperator string

const (
	// SelectorOpIn requires the label value to be contained in the requirement's values.
	SelectorOpIn = SelectorOperator("In")

	// SelectorOpNotIn requires the label to be absent or its value to be outside the
	// requirement's values.
	SelectorOpNotIn = SelectorOperator("NotIn")

	// SelectorOpExists requires the label key to be present.
	SelectorOpExists = SelectorOperator("Exists")

	// SelectorOpDoesNotExist requires the label key to be absent.
	SelectorOpDoesNotExist = SelectorOperator("DoesNotExist")
)

// Condition types shared across all resources of the group.
const (
	// ConditionReady is the encompassing condition describing overall readiness.
	ConditionReady = "Ready"
)

// Condition reasons shared across all resources of the group.
const (
	// ReasonAllReady indicates that all children of a resource are ready.
	ReasonAllReady = "AllReady"
	// ReasonPartiallyReady indicates that some but not all children are ready.
	ReasonPartiallyReady = "PartiallyReady"
	// ReasonNotReady indicates that no child of a resource is ready.
	ReasonNotReady = "NotReady"
	// ReasonNoChildren indicates that a resource has no children to be ready.
	ReasonNoChildren = "NoChildren"
	// ReasonDuplicateZone indicates that another DNSZone already manages the same logical
	// zone name. The resource is excluded from convergence until the conflict is resolved.
	ReasonDuplicateZone = "DuplicateZone"
	// ReasonConflictingClaim indicates that an additional instance matched a zone which is
	// already claimed. The additional match is ignored.
	ReasonConflictingClaim = "ConflictingClaim"
	// ReasonInvalidSpec indicates a terminal specification error which is not retried until
	// the specification changes.
	ReasonInvalidSpec = "InvalidSpec"
	// ReasonZoneNotFound indicates that the referenced zone does not exist.
	ReasonZoneNotFound = "ZoneNotFound"
	// ReasonProgressing indicates that convergence has not completed yet.
	ReasonProgressing = "Progressing"
)

////////////////
/// SELECTOR ///
////////////////

// Selector describes a label selector over a set of resources. A resource matches the
// selector if it satisfies all match labels and all match expressions. A selector with
// neither field set matches nothing.
type Selector struct {
	MatchLabels      map[string]string     `json:"matchLabels,omitempty"`
	MatchExpressions []SelectorRequirement `json:"matchExpressions,omitempty"`
}

// SelectorRequirement is a single expression of a selector, combining a key with an
// operator and an optional set of values.
type SelectorRequirement struct {
	Key      string           `json:"key"`
	Operator SelectorOperator `json:"operator"`
	Values   []string         `json:"values,omitempty"`
}

//////////////////
/// REFERENCES ///
//////////////////

// InstanceReference explicitly assigns a zone to a named instance.
type InstanceReference struct {
	Name      string `json:"name"`
	Namespace string `json:"namespace,omitempty"`
}

// ZoneReference references a DNSZone in the same namespace.
type ZoneReference struct {
	Name string `json:"name"`
}

// SecretKeyRef references a single key of a Kubernetes secret.
type SecretKeyRef struct {
	Name string `json:"name"`
	Key  string `json:"key"`
}
