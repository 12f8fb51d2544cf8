// Package manifests builds the workload resources owned by a Bind9Instance. The builders
// only produce the desired specification, ownership and persistence are handled by the
// instance reconciler.
package manifests

import (
	"fmt"

	"github.com/firestoned/bindy/api/v1alpha1"
	appsv1 "k8s.io/api/apps/v1"
	v1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
)

const (
	managedByLabelKey = "app.kubernetes.io/managed-by"
	nameLabelKey      = "app.kubernetes.io/name"
	instanceLabelKey  = "app.kubernetes.io/instance"

	configVolumeName = "config"
	configMountPath  = "/etc/bind"
)

// Labels returns the selector labels identifying the workload of the given instance.
func Labels(instance *v1alpha1.Bind9Instance) map[string]string {
	return map[string]string{
		managedByLabelKey: "bindy",
		nameLabelKey:      "bind9",
		instanceLabelKey:  instance.Name,
	}
}

func objectMeta(instance *v1alpha1.Bind9Instance) metav1.ObjectMeta {
	return metav1.ObjectMeta{
		Name:      instance.Name,
		Namespace: instance.Namespace,
		Labels:    Labels(instance),
	}
}

// ConfigMap returns the configuration file consumed by the BIND9 container.
func ConfigMap(instance *v1alpha1.Bind9Instance) v1.ConfigMap {
	options := fmt.Sprintf(
		"options {\n\tdirectory \"/var/cache/bind\";\n\tlisten-on port 53 { any; };\n"+
			"\tlisten-on-v6 port 53 { any; };\n\tallow-query { any; };\n\trecursion no;\n};\n"+
			"controls {\n\tinet 0.0.0.0 port %d allow { any; };\n};\n",
		APIPort(instance),
	)
	return v1.ConfigMap{
		ObjectMeta: objectMeta(instance),
		Data: map[string]string{
			"named.conf": options,
		},
	}
}

// Service returns the service exposing the DNS ports along with the management API port.
func Service(instance *v1alpha1.Bind9Instance) v1.Service {
	return v1.Service{
		ObjectMeta: objectMeta(instance),
		Spec: v1.ServiceSpec{
			Selector: Labels(instance),
			Ports: []v1.ServicePort{{
				Name:       "dns-udp",
				Port:       53,
				Protocol:   v1.ProtocolUDP,
				TargetPort: intstr.FromString("dns-udp"),
			}, {
				Name:       "dns-tcp",
				Port:       53,
				Protocol:   v1.ProtocolTCP,
				TargetPort: intstr.FromString("dns-tcp"),
			}, {
				Name:       "api",
				Port:       APIPort(instance),
				Protocol:   v1.ProtocolTCP,
				TargetPort: intstr.FromString("api"),
			}},
		},
	}
}

// Deployment returns the deployment running the BIND9 server.
func Deployment(instance *v1alpha1.Bind9Instance) appsv1.Deployment {
	replicas := int32(1)
	return appsv1.Deployment{
		ObjectMeta: objectMeta(instance),
		Spec: appsv1.DeploymentSpec{
			Replicas: &replicas,
			Selector: &metav1.LabelSelector{MatchLabels: Labels(instance)},
			Template: v1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: Labels(instance)},
				Spec: v1.PodSpec{
					Containers: []v1.Container{{
						Name:  "bind9",
						Image: instance.Spec.Image,
						Ports: []v1.ContainerPort{{
							Name:          "dns-udp",
							ContainerPort: 53,
							Protocol:      v1.ProtocolUDP,
						}, {
							Name:          "dns-tcp",
							ContainerPort: 53,
							Protocol:      v1.ProtocolTCP,
						}, {
							Name:          "api",
							ContainerPort: APIPort(instance),
							Protocol:      v1.ProtocolTCP,
						}},
						Resources: instance.Spec.Resources,
						VolumeMounts: []v1.VolumeMount{{
							Name:      configVolumeName,
							MountPath: configMountPath,
							ReadOnly:  true,
						}},
					}},
					Volumes: []v1.Volume{{
						Name: configVolumeName,
						VolumeSource: v1.VolumeSource{
							ConfigMap: &v1.ConfigMapVolumeSource{
								LocalObjectReference: v1.LocalObjectReference{
									Name: instance.Name,
								},
							},
						},
					}},
				},
			},
		},
	}
}

// APIEndpoint returns the in-cluster URL of the instance's management API.
func APIEndpoint(instance *v1alpha1.Bind9Instance) string {
	scheme := instance.Spec.API.Scheme
	if scheme == "" {
		scheme = "http"
	}
	return fmt.Sprintf(
		"%s://%s.%s.svc:%d", scheme, instance.Name, instance.Namespace, APIPort(instance),
	)
}

// APIPort returns the management API port of the instance, applying the default.
func APIPort(instance *v1alpha1.Bind9Instance) int32 {
	if instance.Spec.API.Port != 0 {
		return instance.Spec.API.Port
	}
	return 8053
}
