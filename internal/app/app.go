package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	server "vigor/server"
	"vigor/server/internal/config"
	servernet "vigor/server/internal/net"
	"vigor/server/internal/observability"
	"vigor/server/internal/sim"
	"vigor/server/internal/telemetry"
	"vigor/server/logging"
	loggingSinks "vigor/server/logging/sinks"
)

const shutdownTimeout = 5 * time.Second

type Config struct {
	Logger telemetry.Logger
	Env    config.Env
}

func Run(ctx context.Context, cfg Config) error {
	telemetryLogger := cfg.Logger
	if telemetryLogger == nil {
		telemetryLogger = telemetry.WrapLogger(log.Default())
	}

	fallbackLogger := log.Default()
	if provider, ok := telemetryLogger.(interface{ StandardLogger() *log.Logger }); ok {
		if candidate := provider.StandardLogger(); candidate != nil {
			fallbackLogger = candidate
		}
	}

	tuning, err := config.LoadTuning(cfg.Env.TuningFile)
	if err != nil {
		return err
	}

	logConfig, sinks, err := loggingSetup(cfg.Env)
	if err != nil {
		return err
	}
	router, err := logging.NewRouter(logConfig, logging.SystemClock{}, fallbackLogger, sinks)
	if err != nil {
		return fmt.Errorf("failed to construct logging router: %w", err)
	}
	defer func() {
		if cerr := router.Close(context.Background()); cerr != nil {
			telemetryLogger.Printf("failed to close logging router: %v", cerr)
		}
	}()

	observabilityCfg := observability.ConfigFromEnv(cfg.Env)
	shutdownTracing, err := observability.Setup(ctx, observabilityCfg)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() {
		if serr := shutdownTracing(context.Background()); serr != nil {
			telemetryLogger.Printf("failed to flush traces: %v", serr)
		}
	}()

	metrics := &logging.Metrics{}
	hubCfg, err := hubConfig(cfg.Env, tuning)
	if err != nil {
		return err
	}
	hubCfg.Logger = telemetryLogger
	hubCfg.Metrics = telemetry.WrapMetrics(metrics)
	hubCfg.Counters = telemetry.NewCounters(cfg.Env.DebugTelemetry, telemetryLogger)

	hub := server.NewHub(hubCfg, router)

	handler := servernet.NewHTTPHandler(hub, servernet.HTTPHandlerConfig{
		Logger:        telemetryLogger,
		Observability: observabilityCfg,
		Metrics:       metrics,
		Router:        router,
	})
	srv := &http.Server{Addr: cfg.Env.Addr, Handler: handler}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return hub.Run(gctx)
	})
	g.Go(func() error {
		telemetryLogger.Printf("server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// hubConfig maps the environment and tuning file onto the hub.
func hubConfig(env config.Env, tuning config.Tuning) (server.HubConfig, error) {
	staminaTuning, err := tuning.Stamina.Build()
	if err != nil {
		return server.HubConfig{}, err
	}
	cfg := server.DefaultHubConfig()
	cfg.World = tuning.World
	cfg.Stamina = staminaTuning
	cfg.Slide = tuning.Slide
	cfg.Pain = tuning.Pain

	loop := sim.DefaultLoopConfig()
	loop.TickRate = env.TickRate
	loop.CatchupMaxTicks = env.CatchupMaxTicks
	loop.CommandCapacity = env.CommandCapacity
	loop.PerActorLimit = env.PerActorLimit
	cfg.Loop = loop
	return cfg, nil
}

// loggingSetup builds the router config and sinks. The console sink is always
// on; a JSON sink is added when a log path is configured.
func loggingSetup(env config.Env) (logging.Config, map[string]logging.Sink, error) {
	logConfig := logging.DefaultConfig()
	if env.LogBufferSize > 0 {
		logConfig.BufferSize = env.LogBufferSize
	}
	logConfig.MinimumSeverity = logging.ParseSeverity(env.LogMinSeverity)

	sinks := map[string]logging.Sink{
		"console": loggingSinks.NewConsoleSink(os.Stdout, logConfig.Console),
	}
	if env.LogJSONPath != "" {
		// Hide Close so the JSON sink never closes stdout.
		var w io.Writer = struct{ io.Writer }{os.Stdout}
		if env.LogJSONPath != "-" {
			file, err := os.OpenFile(env.LogJSONPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return logging.Config{}, nil, fmt.Errorf("open json log: %w", err)
			}
			w = file
		}
		logConfig.JSON.FilePath = env.LogJSONPath
		logConfig.EnabledSinks = append(logConfig.EnabledSinks, "json")
		sinks["json"] = loggingSinks.NewJSON(w, logConfig.JSON.FlushInterval)
	}
	return logConfig, sinks, nil
}
