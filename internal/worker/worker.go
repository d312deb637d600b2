// Package worker drives a single accepted connection from handshake
// through relay: parsing the client's framing, resolving its target,
// dialing it, and writing the protocol-appropriate success reply before
// handing the connection off to the bidirectional relay.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/entwico/kproxy/internal/kube"
	"github.com/entwico/kproxy/internal/wire"
)

// socks4Rejection and socks4Success are the fixed 8-byte SOCKS4 reply
// frames; only the first two bytes are meaningful, the remaining six
// (would-be bound address/port) are zeroed per spec.
var (
	socks4Rejection = [8]byte{0x00, 0x5B, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	socks4Success   = [8]byte{0x00, 0x5A, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
)

const httpSuccessLine = "HTTP/1.0 200 OK\r\n\r\n"

// Handler serves one accepted connection at a time. A Handler is safe to
// share across goroutines as long as its ResolveCtx is (ResolveCtx itself
// is read-only after startup; callers typically pass a per-connection
// Clone so Clientset/DNSServers are shared by reference without risk).
type Handler struct {
	ResolveCtx  *kube.ResolveCtx
	ProductName string
	Dialer      net.Dialer
	Logger      *slog.Logger
}

// Serve drains the handshake, dials the resolved destination, and relays.
// It never returns an error: all failures are logged with the peer address
// and the connection is closed, matching spec.md's "worker errors are
// logged ... and do not affect other connections".
func (h *Handler) Serve(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	peer := conn.RemoteAddr()
	logger := h.logger()

	req, err := wire.ParseHandshake(conn)
	if err != nil {
		var rej *wire.Socks4Rejection
		if errors.As(err, &rej) {
			logger.Debug("rejected socks4 command", "peer", peer, "error", err)
			return
		}

		logger.Debug("handshake error", "peer", peer, "error", err)

		return
	}

	switch req.Kind {
	case wire.KindDiagnosticGet:
		h.serveDiagnostic(conn, req.Path)
	case wire.KindHTTP:
		h.proxyHTTP(ctx, conn, peer, req.Hostname, req.Port)
	case wire.KindSocks4Host:
		h.proxySocks4Host(ctx, conn, peer, req.Hostname, req.Port)
	case wire.KindSocks4IP:
		h.proxySocks4IP(ctx, conn, peer, req.IPv4, req.Port)
	default:
		logger.Error("unreachable connect request kind", "peer", peer, "kind", req.Kind)
	}
}

func (h *Handler) serveDiagnostic(conn net.Conn, path string) {
	switch path {
	case "/":
		fmt.Fprintf(conn, "HTTP/1.0 200 OK\r\n\r\n%s", h.productName())
	case "/healthcheck":
		fmt.Fprint(conn, "HTTP/1.0 200 OK\r\nContent-Type: application/json\r\n\r\n{\"ok\":true}")
	default:
		fmt.Fprint(conn, "HTTP/1.0 404 NO\r\n\r\n")
	}
}

func (h *Handler) proxyHTTP(ctx context.Context, conn net.Conn, peer net.Addr, hostname string, port uint16) {
	targets, err := kube.ResolveHost(ctx, h.ResolveCtx, hostname, port)
	if err != nil {
		h.logger().Debug("resolve error", "peer", peer, "hostname", hostname, "error", err)
		return
	}

	if len(targets) == 0 {
		h.logger().Debug("resolution returned no targets", "peer", peer, "hostname", hostname)
		return
	}

	dest, err := h.dialFirst(ctx, targets)
	if err != nil {
		h.logger().Debug("dial error", "peer", peer, "hostname", hostname, "error", err)
		return
	}

	defer func() {
		if dest != nil {
			dest.Close()
		}
	}()

	if _, err := conn.Write([]byte(httpSuccessLine)); err != nil {
		h.logger().Debug("write success reply failed", "peer", peer, "error", err)
		return
	}

	h.logger().Info("establishing http connect tunnel", "peer", peer, "hostname", hostname, "dest", dest.RemoteAddr())

	d := dest
	dest = nil
	relay(conn, d)
}

func (h *Handler) proxySocks4Host(ctx context.Context, conn net.Conn, peer net.Addr, hostname string, port uint16) {
	targets, err := kube.ResolveHost(ctx, h.ResolveCtx, hostname, port)
	if err != nil || len(targets) == 0 {
		h.logger().Debug("socks4a resolve error", "peer", peer, "hostname", hostname, "error", err)
		_, _ = conn.Write(socks4Rejection[:])

		return
	}

	h.dialAndRelaySocks4(ctx, conn, peer, targets, hostname)
}

func (h *Handler) proxySocks4IP(ctx context.Context, conn net.Conn, peer net.Addr, ip [4]byte, port uint16) {
	target := kube.Target{IP: net.IPv4(ip[0], ip[1], ip[2], ip[3]), Port: port}
	h.dialAndRelaySocks4(ctx, conn, peer, []kube.Target{target}, target.IP.String())
}

func (h *Handler) dialAndRelaySocks4(ctx context.Context, conn net.Conn, peer net.Addr, targets []kube.Target, label string) {
	dest, err := h.dialFirst(ctx, targets)
	if err != nil {
		h.logger().Debug("dial error", "peer", peer, "target", label, "error", err)
		return
	}

	defer func() {
		if dest != nil {
			dest.Close()
		}
	}()

	if _, err := conn.Write(socks4Success[:]); err != nil {
		h.logger().Debug("write success reply failed", "peer", peer, "error", err)
		return
	}

	h.logger().Info("establishing socks4 connect tunnel", "peer", peer, "target", label, "dest", dest.RemoteAddr())

	d := dest
	dest = nil
	relay(conn, d)
}

// dialFirst attempts targets in order and returns the first successful
// connection. Per spec.md §4.F step 3, a simple sequential attempt is
// acceptable; multi-IP happy-eyeballs is not required.
func (h *Handler) dialFirst(ctx context.Context, targets []kube.Target) (net.Conn, error) {
	var lastErr error

	for _, t := range targets {
		addr := net.JoinHostPort(t.IP.String(), portString(t.Port))

		conn, err := h.Dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			return conn, nil
		}

		lastErr = err
	}

	if lastErr == nil {
		lastErr = errors.New("no dial targets")
	}

	return nil, lastErr
}

func portString(port uint16) string {
	return strconv.Itoa(int(port))
}

func (h *Handler) productName() string {
	if h.ProductName == "" {
		return "kproxy"
	}

	return h.ProductName
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}

	return slog.Default()
}
