package kube

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/miekg/dns"
)

// ErrNoDNSServers is returned when a DNS fallback resolution is attempted
// with no discovered kube-dns servers.
var ErrNoDNSServers = errors.New("no dns servers configured")

// resolverPort is the UDP port each discovered DNS server is queried on.
// kube-dns always exposes DNS on 53; overridden in tests to talk to an
// in-process server bound to an ephemeral port.
var resolverPort = "53"

// searchList builds the cluster DNS search list in the documented order:
//
//	{default_namespace}.svc.{cluster_local}
//	svc.{cluster_local}
//	{cluster_local}
//
// Unlike the reference implementation, which appends this list once per
// upstream server (a documented, unintentional quirk), this builds it once
// total.
func searchList(rc *ResolveCtx) []string {
	return []string{
		dns.Fqdn(rc.DefaultNamespace + ".svc." + rc.ClusterLocal),
		dns.Fqdn("svc." + rc.ClusterLocal),
		dns.Fqdn(rc.ClusterLocal),
	}
}

// resolveDNS performs an A/AAAA lookup of hostname against the discovered
// kube-dns servers, honoring the cluster search list: the first search
// suffix that yields a successful, non-empty answer from any server wins.
// A hostname without a trailing dot is only ever queried with a search
// suffix appended, never on its own; a hostname with a trailing dot is
// treated as fully qualified and queried as-is, bypassing the search list.
func resolveDNS(ctx context.Context, rc *ResolveCtx, hostname string) ([]net.IP, error) {
	if len(rc.DNSServers) == 0 {
		return nil, ErrNoDNSServers
	}

	client := &dns.Client{Net: "udp"}

	var lastErr error

	qnames := []string{hostname}
	if !dns.IsFqdn(hostname) {
		qnames = qnames[:0]
		for _, suffix := range searchList(rc) {
			qnames = append(qnames, dns.Fqdn(hostname)+suffix)
		}
	}

	for _, qname := range qnames {
		for _, server := range rc.DNSServers {
			addr := net.JoinHostPort(server.String(), resolverPort)

			ips, err := queryBothFamilies(ctx, client, addr, qname)
			if err != nil {
				lastErr = err
				continue
			}

			if len(ips) > 0 {
				return ips, nil
			}
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("resolving %q: %w", hostname, lastErr)
	}

	return nil, fmt.Errorf("resolving %q: no matching records", hostname)
}

func queryBothFamilies(ctx context.Context, client *dns.Client, addr, qname string) ([]net.IP, error) {
	var ips []net.IP

	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		msg := new(dns.Msg)
		msg.SetQuestion(qname, qtype)
		msg.RecursionDesired = true

		resp, _, err := client.ExchangeContext(ctx, msg, addr)
		if err != nil {
			return nil, fmt.Errorf("querying %s for %s: %w", addr, qname, err)
		}

		if resp.Rcode == dns.RcodeNameError {
			continue
		}

		if resp.Rcode != dns.RcodeSuccess {
			continue
		}

		for _, rr := range resp.Answer {
			switch rec := rr.(type) {
			case *dns.A:
				ips = append(ips, rec.A)
			case *dns.AAAA:
				ips = append(ips, rec.AAAA)
			}
		}
	}

	return ips, nil
}
