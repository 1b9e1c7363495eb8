package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/11-rizwan/health-mirror-stage-3/server/internal/alerts"
	"github.com/11-rizwan/health-mirror-stage-3/server/internal/analyzer"
	"github.com/11-rizwan/health-mirror-stage-3/server/internal/api"
	"github.com/11-rizwan/health-mirror-stage-3/server/internal/config"
	"github.com/11-rizwan/health-mirror-stage-3/server/internal/inference"
	"github.com/11-rizwan/health-mirror-stage-3/server/internal/metrics"
	"github.com/11-rizwan/health-mirror-stage-3/server/internal/shipper"
	"github.com/11-rizwan/health-mirror-stage-3/server/internal/store"
	"github.com/11-rizwan/health-mirror-stage-3/server/internal/ws"
)

// serviceName is the gRPC health service name this server reports under.
const serviceName = "healthmirror.v1.Server"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	envPath := flag.String("env", ".env", "optional dotenv file loaded before the config")
	flag.Parse()

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("health-mirror-server starting", "config", *configPath)

	if err := config.LoadDotEnv(*envPath); err != nil {
		slog.Error("failed to load env file", "err", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	setLevel(level, cfg.Server.LogLevel)

	slog.Info("config loaded",
		"grpc_port", cfg.Server.GRPCPort,
		"http_port", cfg.Server.HTTPPort,
		"storage", cfg.Storage.Backend,
		"inference", cfg.Inference.Endpoint,
		"timezone", cfg.Server.Location().String(),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *configPath, cfg, level); err != nil {
		slog.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, cfg *config.Config, level *slog.LevelVar) error {
	// Session summary store.
	st, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer st.Close()

	// Asynchronous summary writes.
	ship := shipper.New(st, cfg.Shipper)
	shipDone := make(chan struct{})
	go func() {
		ship.Run(ctx)
		close(shipDone)
	}()

	// Inference sidecar. A model that is not ready within the load timeout
	// puts every session into degraded mode for the life of the process.
	client, err := inference.Dial(cfg.Inference)
	if err != nil {
		return err
	}
	defer client.Close()

	readyCtx, readyCancel := context.WithTimeout(ctx, cfg.Inference.LoadTimeout)
	degraded := false
	if err := client.WaitReady(readyCtx); err != nil {
		slog.Error("emotion model not ready, running degraded", "endpoint", cfg.Inference.Endpoint, "err", err)
		degraded = true
	}
	readyCancel()

	pool := analyzer.NewPool(cfg.Inference.Workers)
	defer pool.Wait()

	var registry *analyzer.Registry
	m := metrics.New(func() float64 { return float64(registry.Count()) })
	registry = analyzer.NewRegistry(cfg.Analyzer, analyzer.Deps{
		Landmarks: client,
		Model:     client,
		Exec:      pool,
		Recorder:  m,
		OnEmotion: func(sessionID, label string) {
			slog.Debug("emotion updated", "session", sessionID, "emotion", label)
		},
	}, degraded)

	// Alerts: webhooks plus MQTT when a broker is configured.
	sinks := alerts.Webhooks(cfg.Alerts.Webhooks, nil)
	if cfg.Alerts.MQTT.Broker != "" {
		mq, err := alerts.DialMQTT(cfg.Alerts.MQTT)
		if err != nil {
			slog.Error("mqtt unavailable, alerts will not be published", "err", err)
		} else {
			defer mq.Close()
			sinks = append(sinks, mq)
		}
	}
	alertEngine := alerts.New(cfg.Alerts, sinks...)
	alertEngine.OnFire = func(a alerts.Alert) { m.AlertFired(a.RuleName) }
	defer alertEngine.Wait()

	// Hot reload: analyzer tunables apply to new sessions, rules immediately.
	go func() {
		err := config.Watch(ctx, configPath, func(next *config.Config) {
			setLevel(level, next.Server.LogLevel)
			registry.SetConfig(next.Analyzer)
			alertEngine.SetRules(next.Alerts.Rules)
		})
		if err != nil {
			slog.Warn("config watch disabled", "err", err)
		}
	}()

	// gRPC health service for orchestrators.
	healthSrv := health.NewServer()
	status := healthpb.HealthCheckResponse_SERVING
	if degraded {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	healthSrv.SetServingStatus("", status)
	healthSrv.SetServingStatus(serviceName, status)

	grpcSrv := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
	if err != nil {
		return fmt.Errorf("listen on gRPC port %d: %w", cfg.Server.GRPCPort, err)
	}
	go func() {
		slog.Info("gRPC health listening", "port", cfg.Server.GRPCPort)
		if err := grpcSrv.Serve(lis); err != nil {
			slog.Error("gRPC server stopped", "err", err)
		}
	}()

	// Live channel: one monitoring session per connection.
	hub := ws.New(ws.Deps{
		Sessions: registry,
		Shipper:  ship,
		Alerts:   alertEngine,
		Metrics:  m,
		Identity: cfg.Server.Identity,
	})
	go hub.Run(ctx)

	// Combined HTTP server: REST API, WebSocket hub and metrics on HTTPPort.
	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", api.New(cfg, api.Deps{
		Store:    st,
		Shipper:  ship,
		Sessions: registry,
		Alerts:   alertEngine,
		Metrics:  m,
	}))
	httpMux.Handle("/ws/monitor", hub)
	httpMux.Handle("/metrics", m.Handler())

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           httpMux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("health-mirror-server shutting down")
	healthSrv.Shutdown()
	grpcSrv.GracefulStop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck

	<-shipDone
	return nil
}

func openStore(ctx context.Context, cfg config.StorageConfig) (store.Store, error) {
	switch cfg.Backend {
	case "postgres":
		dsn := cfg.DSN()
		if dsn == "" {
			return nil, fmt.Errorf("storage: %s is not set", cfg.DSNEnv)
		}
		pg, err := store.OpenPostgres(ctx, dsn)
		if err != nil {
			return nil, err
		}
		slog.Info("storage: postgres ready")
		return pg, nil
	default:
		mem := store.NewMemory(cfg.Retention)
		go mem.Run(ctx)
		slog.Info("storage: in-memory store", "retention", cfg.Retention)
		return mem, nil
	}
}

func setLevel(v *slog.LevelVar, name string) {
	if name == "" {
		return
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(name)); err != nil {
		slog.Warn("unknown log level, keeping current", "level", name)
		return
	}
	v.Set(l)
}
