package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tutorbase/realtime/internal/api"
	"github.com/tutorbase/realtime/internal/auth"
	"github.com/tutorbase/realtime/internal/backoff"
	"github.com/tutorbase/realtime/internal/config"
	"github.com/tutorbase/realtime/internal/connection"
	"github.com/tutorbase/realtime/internal/metrics"
	"github.com/tutorbase/realtime/internal/model"
	"github.com/tutorbase/realtime/internal/poller"
	"github.com/tutorbase/realtime/internal/router"
	"github.com/tutorbase/realtime/internal/subscription"
	"github.com/tutorbase/realtime/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/pushmon.local.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting pushmon",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"user_id", cfg.Instance.UserID,
		"ws_url", cfg.Realtime.WSURL,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Credential source: file wins over env var.
	var tokens auth.TokenProvider
	if cfg.Realtime.TokenFile != "" {
		tokens = auth.FromFile(cfg.Realtime.TokenFile)
	} else {
		tokens = auth.FromEnv(cfg.Realtime.TokenEnv)
	}

	// Metrics
	var met *metrics.Set
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		met = metrics.NewSet(registry)

		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, metrics.Handler(registry))
		metricsServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler: mux,
		}

		go func() {
			logger.Info("starting metrics server", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
			if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
				logger.Error("metrics server error", "error", err)
			}
		}()
	}

	// Build the realtime channel.
	registry := subscription.NewRegistry()
	rt := router.New(registry, logger.With("component", "router"), met)

	mgrCfg := connection.ManagerConfig{
		UserID: cfg.Instance.UserID,
		Policy: backoff.Policy{
			InitialDelay: cfg.Realtime.ReconnectBaseDelay,
			MaxDelay:     cfg.Realtime.ReconnectMaxDelay,
			Factor:       cfg.Realtime.ReconnectFactor,
			MaxAttempts:  cfg.Realtime.MaxReconnectAttempts,
		},
		PingTimeout:      cfg.Realtime.PingTimeout,
		WriteTimeout:     cfg.Realtime.WriteTimeout,
		HandshakeTimeout: cfg.Realtime.HandshakeTimeout,
		BufferSize:       cfg.Realtime.BufferSize,
		OnStateChange: func(old, next connection.State) {
			logger.Info("channel state changed", "from", old, "to", next)
		},
		OnError: func(err error) {
			logger.Error("channel failed", "error", err)
		},
		Metrics: met,
	}
	manager := connection.NewManager(mgrCfg, tokens, registry, rt, logger.With("component", "connection"))

	// Push handlers keep the dashboard log current.
	manager.Subscribe(model.TopicBalanceUpdate, func(msg model.Message) {
		var balance model.Balance
		if err := json.Unmarshal(msg.Data, &balance); err != nil {
			logger.Warn("bad balance payload", "error", err)
			return
		}
		logger.Info("balance update", "amount", balance.Amount, "currency", balance.Currency)
	})
	manager.Subscribe(model.TopicMetricsUpdate, func(msg model.Message) {
		var dm model.DashboardMetrics
		if err := json.Unmarshal(msg.Data, &dm); err != nil {
			logger.Warn("bad metrics payload", "error", err)
			return
		}
		logger.Info("dashboard update",
			"active_students", dm.ActiveStudents,
			"lessons_today", dm.LessonsToday,
			"pending_invitations", dm.PendingInvitations,
		)
	})
	manager.Subscribe(model.TopicInvitationStatusUpdate, func(msg model.Message) {
		var inv model.InvitationStatus
		if err := json.Unmarshal(msg.Data, &inv); err != nil {
			logger.Warn("bad invitation payload", "error", err)
			return
		}
		logger.Info("invitation update", "invitation_id", inv.InvitationID, "status", inv.Status)
	})

	if err := manager.Connect(ctx, cfg.Realtime.WSURL); err != nil {
		// Transport failures are retried by the manager; only a missing
		// credential is fatal at startup.
		logger.Error("initial connect failed", "error", err)
		if manager.State() == connection.StateFailed {
			os.Exit(1)
		}
	}
	defer manager.Disconnect()

	// Fallback poller keeps data flowing while the socket is down.
	var fallback *poller.Poller
	if cfg.Poller.Enabled {
		apiClient := api.NewClient(
			cfg.API.RestURL,
			tokens,
			api.WithLogger(logger.With("component", "api")),
			api.WithTimeout(cfg.API.Timeout),
			api.WithRetries(cfg.API.MaxRetries, cfg.API.RetryBackoff),
		)

		pollerCfg := poller.Config{
			UserID:   cfg.Instance.UserID,
			Interval: cfg.Poller.Interval,
			Timeout:  cfg.Poller.Timeout,
		}
		fallback = poller.New(pollerCfg, apiClient, manager, logSink{logger}, logger.With("component", "poller"), met)
		if err := fallback.Start(ctx); err != nil {
			logger.Error("failed to start fallback poller", "error", err)
			os.Exit(1)
		}
	}

	logger.Info("pushmon running", "instance_id", cfg.Instance.ID)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if fallback != nil {
		if err := fallback.Stop(shutdownCtx); err != nil {
			logger.Warn("poller shutdown error", "error", err)
		}
	}
	if metricsServer != nil {
		metricsServer.Shutdown(shutdownCtx)
	}

	logger.Info("pushmon stopped")
}

// logSink surfaces polled fallback data the same way the push handlers do.
type logSink struct {
	logger *slog.Logger
}

func (s logSink) HandleBalance(b model.Balance) error {
	s.logger.Info("balance (polled)", "amount", b.Amount, "currency", b.Currency)
	return nil
}

func (s logSink) HandleMetrics(m model.DashboardMetrics) error {
	s.logger.Info("dashboard (polled)",
		"active_students", m.ActiveStudents,
		"lessons_today", m.LessonsToday,
		"pending_invitations", m.PendingInvitations,
	)
	return nil
}
