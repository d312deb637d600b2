// Package kube implements the layered hostname resolver: a virtual-TLD
// router backed by Kubernetes Endpoints lookups, falling back to DNS
// resolution against the cluster's discovered kube-dns servers.
package kube

import (
	"net"

	"k8s.io/client-go/kubernetes"
)

// ResolveCtx is the per-connection configuration snapshot described by the
// data model: a DNS suffix, a default namespace, a shareable Kubernetes API
// client handle, and the ordered list of DNS servers discovered at startup.
// It is constructed once at startup and shallow-copied for each worker.
type ResolveCtx struct {
	ClusterLocal     string
	DefaultNamespace string
	Clientset        kubernetes.Interface
	DNSServers       []net.IP
}

// Clone returns a shallow copy suitable for handing to a single worker. The
// clientset is reference-counted internally and the DNSServers slice is
// read-only after startup, so both are shared, not deep-copied.
func (rc *ResolveCtx) Clone() *ResolveCtx {
	clone := *rc
	return &clone
}

// Target is a resolved dial destination: one address paired with the port
// selected for it by the Endpoints Resolver, the DNS Resolver, or taken
// directly from a SOCKS4 legacy request.
type Target struct {
	IP   net.IP
	Port uint16
}
