package kube

import (
	"context"
	"fmt"
	"net"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

const (
	kubeDNSNamespace = "kube-system"
	kubeDNSName      = "kube-dns"
	dnsPort          = 53
)

// NewAPIClient obtains a Kubernetes API client using the environment's
// default discovery chain: in-cluster service account and CA first, then a
// user kubeconfig. If kubeconfigPath is empty, client-go's own loading rules
// (KUBECONFIG env, then ~/.kube/config) apply. If kubeContext is empty, the
// kubeconfig's current-context is used.
func NewAPIClient(kubeconfigPath, kubeContext string) (*rest.Config, kubernetes.Interface, error) {
	restCfg, err := rest.InClusterConfig()
	if err != nil {
		loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
		if kubeconfigPath != "" {
			loadingRules.ExplicitPath = kubeconfigPath
		}

		overrides := &clientcmd.ConfigOverrides{CurrentContext: kubeContext}

		restCfg, err = clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, overrides).ClientConfig()
		if err != nil {
			return nil, nil, fmt.Errorf("loading kubeconfig %q: %w", kubeconfigPath, err)
		}
	}

	clientset, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating kubernetes client: %w", err)
	}

	return restCfg, clientset, nil
}

// ValidateAPIClient issues a request to the API server's version endpoint to
// confirm the client is usable before the proxy accepts any connections.
func ValidateAPIClient(ctx context.Context, clientset kubernetes.Interface) error {
	if _, err := clientset.Discovery().ServerVersion(); err != nil {
		return fmt.Errorf("first request to the server: %w", err)
	}

	return nil
}

// DiscoverDNSServers fetches the kube-dns Endpoints object in kube-system
// and collects, across every subset that exposes port 53, every address IP.
// The returned list is deduplicated in arrival order. A missing Subsets
// field yields an empty, non-error slice. A parse failure on an individual
// address literal is fatal, matching the original design's behavior.
func DiscoverDNSServers(ctx context.Context, clientset kubernetes.Interface) ([]net.IP, error) {
	endpoints, err := clientset.CoreV1().Endpoints(kubeDNSNamespace).Get(ctx, kubeDNSName, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("finding dns servers: %w", err)
	}

	seen := make(map[string]bool)

	var servers []net.IP

	for _, subset := range endpoints.Subsets {
		if !subsetHasPort(subset.Ports, dnsPort) {
			continue
		}

		for _, addr := range subset.Addresses {
			if seen[addr.IP] {
				continue
			}

			ip := net.ParseIP(addr.IP)
			if ip == nil {
				return nil, fmt.Errorf("finding dns servers: parsing %q: invalid IP address", addr.IP)
			}

			seen[addr.IP] = true
			servers = append(servers, ip)
		}
	}

	return servers, nil
}

func subsetHasPort(ports []corev1.EndpointPort, port int32) bool {
	for _, p := range ports {
		if p.Port == port {
			return true
		}
	}

	return false
}
