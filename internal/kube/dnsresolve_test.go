package kube

import (
	"context"
	"net"
	"strings"
	"testing"

	"github.com/miekg/dns"
)

// startTestDNSServer spins up an in-process UDP DNS server that answers A
// queries for the given FQDN with ip, and NXDOMAIN otherwise.
func startTestDNSServer(t *testing.T, fqdn, ip string) (addr string, stop func()) {
	t.Helper()

	mux := dns.NewServeMux()
	mux.HandleFunc(".", func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(r)

		if len(r.Question) > 0 && strings.EqualFold(r.Question[0].Name, fqdn) && r.Question[0].Qtype == dns.TypeA {
			a, err := dns.NewRR(fqdn + " 60 IN A " + ip)
			if err == nil {
				m.Answer = []dns.RR{a}
			}
		} else {
			m.Rcode = dns.RcodeNameError
		}

		_ = w.WriteMsg(m)
	})

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen udp: %v", err)
	}

	s := &dns.Server{Net: "udp", PacketConn: pc, Handler: mux}

	go func() { _ = s.ActivateAndServe() }()

	return pc.LocalAddr().String(), func() { _ = s.Shutdown() }
}

func TestSearchListOrder(t *testing.T) {
	rc := &ResolveCtx{DefaultNamespace: "default", ClusterLocal: "cluster.local"}

	got := searchList(rc)
	want := []string{"default.svc.cluster.local.", "svc.cluster.local.", "cluster.local."}

	if len(got) != len(want) {
		t.Fatalf("searchList() = %v, want %v", got, want)
	}

	for i := range want {
		if got[i] != want[i] {
			t.Errorf("searchList()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestResolveDNSFirstSearchSuffixWins(t *testing.T) {
	addr, stop := startTestDNSServer(t, "example.com.default.svc.cluster.local.", "93.184.216.34")
	defer stop()

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}

	origPort := resolverPort
	resolverPort = port
	t.Cleanup(func() { resolverPort = origPort })

	rc := &ResolveCtx{
		DefaultNamespace: "default",
		ClusterLocal:     "cluster.local",
		DNSServers:       []net.IP{net.ParseIP(host)},
	}

	ips, err := resolveDNS(context.Background(), rc, "example.com")
	if err != nil {
		t.Fatalf("resolveDNS() error: %v", err)
	}

	if len(ips) != 1 || ips[0].String() != "93.184.216.34" {
		t.Errorf("resolveDNS() = %v, want [93.184.216.34]", ips)
	}
}

func TestResolveDNSNoServersConfigured(t *testing.T) {
	rc := &ResolveCtx{DefaultNamespace: "default", ClusterLocal: "cluster.local"}

	if _, err := resolveDNS(context.Background(), rc, "example.com"); err == nil {
		t.Error("resolveDNS() should fail with no DNS servers configured")
	}
}

func TestResolveDNSNoMatchingRecords(t *testing.T) {
	addr, stop := startTestDNSServer(t, "something-else.", "93.184.216.34")
	defer stop()

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}

	origPort := resolverPort
	resolverPort = port
	t.Cleanup(func() { resolverPort = origPort })

	rc := &ResolveCtx{
		DefaultNamespace: "default",
		ClusterLocal:     "cluster.local",
		DNSServers:       []net.IP{net.ParseIP(host)},
	}

	if _, err := resolveDNS(context.Background(), rc, "example.com"); err == nil {
		t.Error("resolveDNS() should fail when no search suffix resolves")
	}
}
