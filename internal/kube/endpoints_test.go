package kube

import (
	"context"
	"net"
	"testing"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

func newEndpoints(namespace, name string, subsets ...corev1.EndpointSubset) *corev1.Endpoints {
	return &corev1.Endpoints{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace},
		Subsets:    subsets,
	}
}

func TestResolveEndpointsSinglePort(t *testing.T) {
	eps := newEndpoints("prod", "svc-foo", corev1.EndpointSubset{
		Addresses: []corev1.EndpointAddress{{IP: "10.1.1.1"}, {IP: "10.1.1.2"}},
		Ports:     []corev1.EndpointPort{{Port: 80}},
	})

	clientset := fake.NewSimpleClientset(eps)

	targets, err := ResolveEndpoints(context.Background(), clientset, "prod", "svc-foo", 8080)
	if err != nil {
		t.Fatalf("ResolveEndpoints() error: %v", err)
	}

	if len(targets) != 2 {
		t.Fatalf("len(targets) = %d, want 2", len(targets))
	}

	for _, tg := range targets {
		if tg.Port != 80 {
			t.Errorf("target %v has port %d, want 80 (single distinct port wins over fallback)", tg, tg.Port)
		}
	}

	if !targets[0].IP.Equal(net.ParseIP("10.1.1.1")) {
		t.Errorf("targets[0].IP = %v, want 10.1.1.1", targets[0].IP)
	}
}

func TestResolveEndpointsMultiplePortsUsesFallback(t *testing.T) {
	eps := newEndpoints("prod", "svc-foo",
		corev1.EndpointSubset{
			Addresses: []corev1.EndpointAddress{{IP: "10.1.1.1"}},
			Ports:     []corev1.EndpointPort{{Port: 80}},
		},
		corev1.EndpointSubset{
			Addresses: []corev1.EndpointAddress{{IP: "10.1.1.2"}},
			Ports:     []corev1.EndpointPort{{Port: 443}},
		},
	)

	clientset := fake.NewSimpleClientset(eps)

	targets, err := ResolveEndpoints(context.Background(), clientset, "prod", "svc-foo", 9999)
	if err != nil {
		t.Fatalf("ResolveEndpoints() error: %v", err)
	}

	if len(targets) != 2 {
		t.Fatalf("len(targets) = %d, want 2", len(targets))
	}

	for _, tg := range targets {
		if tg.Port != 9999 {
			t.Errorf("target %v has port %d, want fallback 9999", tg, tg.Port)
		}
	}
}

func TestResolveEndpointsEmptyWhenNoAddresses(t *testing.T) {
	eps := newEndpoints("prod", "svc-foo", corev1.EndpointSubset{
		Ports: []corev1.EndpointPort{{Port: 80}},
	})

	clientset := fake.NewSimpleClientset(eps)

	targets, err := ResolveEndpoints(context.Background(), clientset, "prod", "svc-foo", 8080)
	if err != nil {
		t.Fatalf("ResolveEndpoints() error: %v", err)
	}

	if len(targets) != 0 {
		t.Errorf("len(targets) = %d, want 0", len(targets))
	}
}

func TestResolveEndpointsEmptyWhenNoPorts(t *testing.T) {
	eps := newEndpoints("prod", "svc-foo", corev1.EndpointSubset{
		Addresses: []corev1.EndpointAddress{{IP: "10.1.1.1"}},
	})

	clientset := fake.NewSimpleClientset(eps)

	targets, err := ResolveEndpoints(context.Background(), clientset, "prod", "svc-foo", 8080)
	if err != nil {
		t.Fatalf("ResolveEndpoints() error: %v", err)
	}

	if len(targets) != 0 {
		t.Errorf("len(targets) = %d, want 0", len(targets))
	}
}

func TestResolveEndpointsNotFound(t *testing.T) {
	clientset := fake.NewSimpleClientset()

	if _, err := ResolveEndpoints(context.Background(), clientset, "prod", "missing", 80); err == nil {
		t.Error("ResolveEndpoints() should have failed for a missing service")
	}
}

func TestResolveEndpointsInvalidAddress(t *testing.T) {
	eps := newEndpoints("prod", "svc-foo", corev1.EndpointSubset{
		Addresses: []corev1.EndpointAddress{{IP: "not-an-ip"}},
		Ports:     []corev1.EndpointPort{{Port: 80}},
	})

	clientset := fake.NewSimpleClientset(eps)

	if _, err := ResolveEndpoints(context.Background(), clientset, "prod", "svc-foo", 8080); err == nil {
		t.Error("ResolveEndpoints() should have failed on an unparseable address")
	}
}
