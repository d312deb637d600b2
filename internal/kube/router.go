package kube

import (
	"context"
	"fmt"
	"regexp"
)

// virtualTLDPattern matches the synthetic endpoints.local / pod.local /
// pod-by-name.local namespaces this proxy intercepts before DNS is
// consulted.
var virtualTLDPattern = regexp.MustCompile(
	`^([a-zA-Z0-9-]{1,63})(?:\.([a-zA-Z0-9-]{1,63}))?\.(endpoints|pod|pod-by-name)\.local\.?$`,
)

// hostKind is the closed set of virtual-TLD kinds. Unknown kinds are
// rejected explicitly rather than falling through to DNS resolution.
type hostKind int

const (
	kindEndpoints hostKind = iota
	kindPod
	kindPodByName
)

func parseHostKind(s string) (hostKind, bool) {
	switch s {
	case "endpoints":
		return kindEndpoints, true
	case "pod":
		return kindPod, true
	case "pod-by-name":
		return kindPodByName, true
	default:
		return 0, false
	}
}

// ErrNotImplemented is returned for virtual-TLD kinds that are reserved but
// not yet implemented (pod, pod-by-name).
type ErrNotImplemented struct {
	Kind string
}

func (e *ErrNotImplemented) Error() string {
	return fmt.Sprintf("resolution kind %q not implemented", e.Kind)
}

// ResolveHost routes a hostname to its resolved dial targets. It first
// matches hostname against the virtual-TLD pattern; on a match it dispatches
// to the Endpoints Resolver (for "endpoints") or fails explicitly for the
// reserved "pod"/"pod-by-name" kinds. On no match, it falls back to the DNS
// Resolver and pairs every resulting IP with specifiedPort.
func ResolveHost(ctx context.Context, rc *ResolveCtx, hostname string, specifiedPort uint16) ([]Target, error) {
	if m := virtualTLDPattern.FindStringSubmatch(hostname); m != nil {
		name, ns, kindStr := m[1], m[2], m[3]
		if ns == "" {
			ns = rc.DefaultNamespace
		}

		kind, ok := parseHostKind(kindStr)
		if !ok {
			// unreachable given the pattern's own alternation, kept for
			// defense against a future pattern change.
			return nil, &ErrNotImplemented{Kind: kindStr}
		}

		switch kind {
		case kindEndpoints:
			return ResolveEndpoints(ctx, rc.Clientset, ns, name, specifiedPort)
		case kindPod, kindPodByName:
			return nil, &ErrNotImplemented{Kind: kindStr}
		}
	}

	ips, err := resolveDNS(ctx, rc, hostname)
	if err != nil {
		return nil, err
	}

	targets := make([]Target, 0, len(ips))
	for _, ip := range ips {
		targets = append(targets, Target{IP: ip, Port: specifiedPort})
	}

	return targets, nil
}
