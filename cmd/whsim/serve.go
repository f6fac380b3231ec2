package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/GoSim-25-26J-441/warehouse-sim/internal/metrics"
	"github.com/GoSim-25-26J-441/warehouse-sim/internal/simd"
	"github.com/GoSim-25-26J-441/warehouse-sim/pkg/config"
	"github.com/GoSim-25-26J-441/warehouse-sim/pkg/logger"
	"github.com/GoSim-25-26J-441/warehouse-sim/pkg/utils"
)

type serveOptions struct {
	configPath string
	httpAddr   string
	grpcAddr   string
	archive    string
}

func newServeCmd() *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the evaluation daemon",
		Long: `Serve the HTTP and gRPC evaluation APIs. Runs are created with their own
YAML config, started asynchronously and can be stopped at any time. Finished
runs are archived when --archive is set.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.configPath, "config", "", "optional config file with a server section")
	cmd.Flags().StringVar(&opts.httpAddr, "http-addr", ":8080", "HTTP listen address")
	cmd.Flags().StringVar(&opts.grpcAddr, "grpc-addr", ":50051", "gRPC listen address")
	cmd.Flags().StringVar(&opts.archive, "archive", "", "bbolt file for finished runs (disabled when empty)")
	return cmd
}

// serverSettings merges the config's server section with explicit flags
func serverSettings(cmd *cobra.Command, opts *serveOptions) (*config.Server, error) {
	server := &config.Server{HTTPAddr: opts.httpAddr, GRPCAddr: opts.grpcAddr, ArchivePath: opts.archive, CallbackRetries: 3}
	if opts.configPath == "" {
		return server, nil
	}

	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}
	if cfg.Server == nil {
		return server, nil
	}

	merged := *cfg.Server
	flags := cmd.Flags()
	if flags.Changed("http-addr") || merged.HTTPAddr == "" {
		merged.HTTPAddr = opts.httpAddr
	}
	if flags.Changed("grpc-addr") || merged.GRPCAddr == "" {
		merged.GRPCAddr = opts.grpcAddr
	}
	if flags.Changed("archive") {
		merged.ArchivePath = opts.archive
	}
	return &merged, nil
}

func runServe(ctx context.Context, cmd *cobra.Command, opts *serveOptions) error {
	settings, err := serverSettings(cmd, opts)
	if err != nil {
		return err
	}
	callbackTimeout, err := settings.GetCallbackTimeout()
	if err != nil {
		return fmt.Errorf("invalid callback_timeout: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	store := simd.NewRunStore()
	executor := simd.NewRunExecutor(store)
	executor.SetTelemetry(metrics.NewTelemetry(registry))
	notifier := simd.NewNotifier(callbackTimeout, settings.CallbackRetries)
	if settings.CallbackBackoff != "" {
		notifier.SetBackoff(utils.BackoffFromConfig(settings.CallbackBackoff, time.Second, 30*time.Second))
	}
	executor.SetNotifier(notifier)

	if settings.ArchivePath != "" {
		archive, err := simd.OpenArchive(settings.ArchivePath)
		if err != nil {
			return err
		}
		defer archive.Close()
		executor.SetArchive(archive)
		logger.Info("archive enabled", "path", settings.ArchivePath)
	}

	// TODO: Configure gRPC server security (e.g., TLS, authentication)
	// before exposing this service outside a trusted network.
	grpcServer := grpc.NewServer()
	simd.RegisterGRPC(grpcServer, simd.NewEvaluationGRPCServer(store, executor))

	grpcLis, err := net.Listen("tcp", settings.GRPCAddr)
	if err != nil {
		return fmt.Errorf("failed to listen for gRPC on %s: %w", settings.GRPCAddr, err)
	}

	httpSrv := &http.Server{
		Addr:              settings.HTTPAddr,
		Handler:           simd.NewHTTPServer(store, executor).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		logger.Info("gRPC server listening", "addr", settings.GRPCAddr)
		if err := grpcServer.Serve(grpcLis); err != nil {
			logger.Error("gRPC server error", "error", err)
			stop()
		}
	}()

	go func() {
		logger.Info("HTTP server listening", "addr", settings.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown requested")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	grpcServer.GracefulStop()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", "error", err)
	}
	executor.Shutdown()
	return nil
}
