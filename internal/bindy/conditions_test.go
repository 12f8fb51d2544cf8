package bindy

import (
	"testing"
	"time"

	"github.com/firestoned/bindy/api/v1alpha1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

func TestAggregateAllReady(t *testing.T) {
	conditions := Aggregate(3, []Child{
		{Kind: "Bind9Instance", Name: "a", Ready: true},
		{Kind: "Bind9Instance", Name: "b", Ready: true},
	})
	require.Len(t, conditions, 3)

	assert.Equal(t, v1alpha1.ConditionReady, conditions[0].Type)
	assert.Equal(t, metav1.ConditionTrue, conditions[0].Status)
	assert.Equal(t, v1alpha1.ReasonAllReady, conditions[0].Reason)
	assert.Equal(t, "2/2 children ready", conditions[0].Message)
	assert.Equal(t, int64(3), conditions[0].ObservedGeneration)

	assert.Equal(t, "Bind9Instance-0", conditions[1].Type)
	assert.Equal(t, "Bind9Instance-1", conditions[2].Type)
}

func TestAggregatePartiallyReady(t *testing.T) {
	conditions := Aggregate(1, []Child{
		{Kind: "Deployment", Name: "a", Ready: true},
		{Kind: "Service", Name: "a", Ready: false, Message: "pending"},
	})
	require.Len(t, conditions, 3)
	assert.Equal(t, metav1.ConditionFalse, conditions[0].Status)
	assert.Equal(t, v1alpha1.ReasonPartiallyReady, conditions[0].Reason)
	assert.Equal(t, "1/2 children ready", conditions[0].Message)
}

func TestAggregateNoChildren(t *testing.T) {
	conditions := Aggregate(1, nil)
	require.Len(t, conditions, 1)
	assert.Equal(t, metav1.ConditionFalse, conditions[0].Status)
	assert.Equal(t, v1alpha1.ReasonNoChildren, conditions[0].Reason)
}

func TestAggregateStableOrdering(t *testing.T) {
	first := Aggregate(1, []Child{
		{Kind: "Bind9Cluster", Name: "b", Ready: true},
		{Kind: "Bind9Cluster", Name: "a", Ready: true},
	})
	second := Aggregate(1, []Child{
		{Kind: "Bind9Cluster", Name: "a", Ready: true},
		{Kind: "Bind9Cluster", Name: "b", Ready: true},
	})
	assert.Equal(t, first, second)
	assert.False(t, Changed(first, second))
}

func TestChangedIgnoresTimestamps(t *testing.T) {
	current := Aggregate(1, []Child{{Kind: "Instance", Name: "a", Ready: true}})
	current = Stamp(metav1.Now(), nil, current)

	desired := Aggregate(1, []Child{{Kind: "Instance", Name: "a", Ready: true}})
	assert.False(t, Changed(current, desired))

	desired = Aggregate(1, []Child{{Kind: "Instance", Name: "a", Ready: false}})
	assert.True(t, Changed(current, desired))
}

func TestStampPreservesTransitionTimes(t *testing.T) {
	past := metav1.NewTime(time.Now().Add(-time.Hour))
	current := Stamp(past, nil, Aggregate(1, []Child{{Kind: "Instance", Name: "a", Ready: true}}))

	// An unchanged status keeps its original transition time
	now := metav1.Now()
	desired := Stamp(now, current, Aggregate(2, []Child{{Kind: "Instance", Name: "a", Ready: true}}))
	assert.Equal(t, past, desired[0].LastTransitionTime)

	// A status flip moves the transition time forward
	desired = Stamp(now, current, Aggregate(2, []Child{{Kind: "Instance", Name: "a", Ready: false}}))
	assert.Equal(t, now, desired[0].LastTransitionTime)
}

func TestIsReady(t *testing.T) {
	assert.True(t, IsReady(Aggregate(1, []Child{{Kind: "A", Name: "a", Ready: true}})))
	assert.False(t, IsReady(Aggregate(1, []Child{{Kind: "A", Name: "a"}})))
	assert.False(t, IsReady(nil))
}
