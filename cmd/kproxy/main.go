package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"github.com/xlab/closer"

	"github.com/entwico/kproxy/internal/config"
	"github.com/entwico/kproxy/internal/kube"
	"github.com/entwico/kproxy/internal/version"
	"github.com/entwico/kproxy/internal/worker"
)

func main() {
	showVersion := pflag.Bool("version", false, "print version information and exit")
	configPath := pflag.String("config", "", "path to YAML config file (default: config.yaml in working directory)")

	pflag.Parse()

	if *showVersion {
		version.Print()
		return
	}

	if *configPath == "" {
		*configPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	logger := config.Logger

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	defer closer.Close()

	_, clientset, err := kube.NewAPIClient(cfg.Kubeconfig, cfg.KubeContext)
	if err != nil {
		logger.Error("kubernetes client error", "error", err)
		os.Exit(1)
	}

	if err := kube.ValidateAPIClient(ctx, clientset); err != nil {
		logger.Error("kubernetes api server unreachable", "error", err)
		os.Exit(1)
	}

	versionInfo, err := clientset.Discovery().ServerVersion()
	if err != nil {
		logger.Error("reading kubernetes server version", "error", err)
		os.Exit(1)
	}

	logger.Info("found kube api server", "major", versionInfo.Major, "minor", versionInfo.Minor)

	dnsServers, err := kube.DiscoverDNSServers(ctx, clientset)
	if err != nil {
		logger.Error("finding dns servers", "error", err)
		os.Exit(1)
	}

	logger.Info("found kube-dns", "servers", dnsServers)

	resolveCtx := &kube.ResolveCtx{
		ClusterLocal:     cfg.ClusterLocal,
		DefaultNamespace: cfg.DefaultNamespace,
		Clientset:        clientset,
		DNSServers:       dnsServers,
	}

	handler := &worker.Handler{
		ResolveCtx:  resolveCtx,
		ProductName: cfg.ProductName,
		Logger:      logger.With("component", "worker"),
	}

	logger.Info("starting proxy server", "addr", cfg.ListenAddress)

	if err := worker.Serve(ctx, cfg.ListenAddress, handler); err != nil {
		logger.Error("accept loop failed", "error", err)
		os.Exit(1)
	}

	logger.Info("shutting down")
}
