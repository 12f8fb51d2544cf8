package manifests

import (
	"testing"

	"github.com/firestoned/bindy/api/v1alpha1"
	"github.com/firestoned/bindy/internal/k8tests"
	"github.com/stretchr/testify/assert"
)

func TestAPIEndpointDefaults(t *testing.T) {
	instance := k8tests.DummyInstance("my-instance", "dns")
	assert.Equal(t, "http://my-instance.dns.svc:8053", APIEndpoint(&instance))

	instance.Spec.API.Scheme = "https"
	instance.Spec.API.Port = 9000
	assert.Equal(t, "https://my-instance.dns.svc:9000", APIEndpoint(&instance))
}

func TestConfigMapRendersAPIPort(t *testing.T) {
	instance := k8tests.DummyInstance("my-instance", "dns")
	instance.Spec.API.Port = 9000
	configMap := ConfigMap(&instance)
	assert.Contains(t, configMap.Data["named.conf"], "port 9000")
}

func TestServiceSelectsDeploymentPods(t *testing.T) {
	instance := k8tests.DummyInstance("my-instance", "dns")
	service := Service(&instance)
	deployment := Deployment(&instance)
	assert.Equal(t, deployment.Spec.Template.Labels, service.Spec.Selector)

	// Every service port must resolve to a container port of the same name
	containerPorts := make(map[string]bool)
	for _, port := range deployment.Spec.Template.Spec.Containers[0].Ports {
		containerPorts[port.Name] = true
	}
	for _, port := range service.Spec.Ports {
		assert.True(t, containerPorts[port.TargetPort.StrVal], port.Name)
	}
}

func TestLabelsIdentifyInstance(t *testing.T) {
	first := k8tests.DummyInstance("first", "dns")
	second := k8tests.DummyInstance("second", "dns")
	assert.NotEqual(t, Labels(&first), Labels(&second))
	assert.Equal(t, "first", Labels(&first)["app.kubernetes.io/instance"])
}

func TestDeploymentMountsConfig(t *testing.T) {
	instance := v1alpha1.Bind9Instance{}
	instance.Name = "my-instance"
	deployment := Deployment(&instance)
	volumes := deployment.Spec.Template.Spec.Volumes
	assert.Len(t, volumes, 1)
	assert.Equal(t, "my-instance", volumes[0].ConfigMap.Name)
	mounts := deployment.Spec.Template.Spec.Containers[0].VolumeMounts
	assert.Len(t, mounts, 1)
	assert.Equal(t, volumes[0].Name, mounts[0].Name)
}
