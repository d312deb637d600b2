package kube

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// ErrPortOutOfRange is returned when an Endpoints subset's distinct port
// value cannot be narrowed to an unsigned 16-bit port number.
var ErrPortOutOfRange = errors.New("endpoint port out of range")

// ResolveEndpoints translates a Kubernetes service name in a namespace to
// the (IP, port) pairs backing it. It aggregates, across every subset, a
// set of distinct port numbers and a list of IP addresses.
//
// Port selection policy:
//   - if either the IP list or the port set is empty, the result is empty
//     (a successful non-match, not an error)
//   - if exactly one distinct port exists, it is used for every address
//   - otherwise fallbackPort is used for every address
//
// Ordering follows subset-then-address order; duplicate addresses are not
// removed.
func ResolveEndpoints(ctx context.Context, clientset kubernetes.Interface, namespace, name string, fallbackPort uint16) ([]Target, error) {
	endpoints, err := clientset.CoreV1().Endpoints(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("resolving endpoints %s/%s: %w", namespace, name, err)
	}

	ports := make(map[int32]struct{})

	var ips []net.IP

	for _, subset := range endpoints.Subsets {
		for _, p := range subset.Ports {
			ports[p.Port] = struct{}{}
		}

		for _, addr := range subset.Addresses {
			ip := net.ParseIP(addr.IP)
			if ip == nil {
				return nil, fmt.Errorf("resolving endpoints %s/%s: parsing %q: invalid IP address", namespace, name, addr.IP)
			}

			ips = append(ips, ip)
		}
	}

	if len(ports) == 0 || len(ips) == 0 {
		return nil, nil
	}

	port := fallbackPort

	if len(ports) == 1 {
		var only int32
		for p := range ports {
			only = p
		}

		if only < 0 || only > math.MaxUint16 {
			return nil, fmt.Errorf("%w: %d", ErrPortOutOfRange, only)
		}

		port = uint16(only)
	}

	targets := make([]Target, 0, len(ips))
	for _, ip := range ips {
		targets = append(targets, Target{IP: ip, Port: port})
	}

	return targets, nil
}
