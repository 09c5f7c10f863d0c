// Copyright (C) 2025 Queueworks Ltd (mq@queueworks.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/queueworks/mqassist/services/agent"
	"github.com/queueworks/mqassist/services/rest"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

var (
	servePort  int
	serveDebug bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the assistant as an HTTP API",
	Long: `Starts the HTTP API server.

Endpoints:
  POST   /v1/mq/chat      - conversational turn
  DELETE /v1/mq/chat/:id  - close a chat session
  POST   /v1/mq/resolve   - deterministic queue resolution
  GET    /v1/mq/qmgrs     - list queue managers
  GET    /v1/mq/version   - list installations
  GET    /v1/mq/health    - liveness
  GET    /v1/mq/ready     - readiness (probes MQ REST connectivity)
  GET    /metrics         - Prometheus metrics`,
	Args: cobra.NoArgs,
	RunE: runServeCommand,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "Port to listen on")
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable Gin debug mode and request logging")
}

func runServeCommand(cmd *cobra.Command, _ []string) error {
	deps, err := buildDeps()
	if err != nil {
		return err
	}
	provider, err := agent.NewProvider(deps.cfg.ProviderConfig())
	if err != nil {
		return err
	}

	if serveDebug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// W3C TraceContext propagation so inbound traceparent headers flow
	// through handlers and provider calls.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	handlers := rest.NewHandlers(rest.HandlersConfig{
		Executor: deps.executor,
		Admin:    deps.client,
		Ready:    deps.client.VerifyConnectivity,
		NewSession: func() *agent.Session {
			return agent.NewSession(provider, deps.executor, agent.SessionConfig{
				MaxIterations: deps.cfg.MaxToolIterations,
				HistoryCap:    deps.cfg.HistoryCap,
			})
		},
	})

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("mqassist"))
	if serveDebug {
		router.Use(gin.Logger())
	}

	v1 := router.Group("/v1")
	rest.RegisterRoutes(v1, handlers)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := fmt.Sprintf(":%d", servePort)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting mqassist server",
			slog.String("address", addr),
			slog.String("provider", deps.cfg.Provider),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down mqassist server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
