package worker

import (
	"context"
	"net"
)

// Serve binds addr (dual-stack when addr's host is "" or "[::]") and runs
// the accept loop until ctx is cancelled. Each accepted connection is
// handed to a freshly cloned ResolveCtx so concurrent workers never share
// mutable state, and is served on its own goroutine. Accept-loop errors
// are fatal and returned to the caller; per-connection errors are logged
// by Handler.Serve and never reach here.
func Serve(ctx context.Context, addr string, base *Handler) error {
	lc := net.ListenConfig{}

	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	logger := base.logger()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}

		h := &Handler{
			ResolveCtx:  base.ResolveCtx.Clone(),
			ProductName: base.ProductName,
			Dialer:      base.Dialer,
			Logger:      logger,
		}

		go h.Serve(ctx, conn)
	}
}
