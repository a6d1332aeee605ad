// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/justinas/alice"
	"github.com/xmidt-org/arethusa/faucet"
	"github.com/xmidt-org/candlelight"
	"github.com/xmidt-org/httpaux"
	"github.com/xmidt-org/httpaux/recovery"

	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ServerConfig holds the listen settings for one of the application's
// servers. A server with no address is not started.
type ServerConfig struct {
	Address string
}

type ServersIn struct {
	fx.In
	LC         fx.Lifecycle
	Shutdowner fx.Shutdowner
	Logger     *zap.Logger
}

type PrimaryRouterIn struct {
	fx.In
	Servers  ServersIn
	Config   ServerConfig `name:"servers.primary"`
	Tracing  candlelight.Tracing
	Handlers PrimaryHandlersIn
}

type PrimaryHandlersIn struct {
	fx.In
	Create  faucet.Handler `name:"create_handler"`
	Resolve faucet.Handler `name:"resolve_handler"`
	Revoke  faucet.Handler `name:"revoke_handler"`
	Lineage faucet.Handler `name:"lineage_handler"`
}

func BuildPrimaryRoutes(in PrimaryRouterIn) {
	router := mux.NewRouter()

	options := []otelmux.Option{
		otelmux.WithTracerProvider(in.Tracing.TracerProvider()),
		otelmux.WithPropagators(in.Tracing.Propagator()),
	}
	router.Use(otelmux.Middleware("server_primary", options...))

	faucetsPath := fmt.Sprintf("/%s/faucets", apiBase)
	router.Handle(faucetsPath, in.Handlers.Create).Methods(http.MethodPost)
	router.Handle(faucetsPath+"/{id}", in.Handlers.Revoke).Methods(http.MethodDelete)
	router.Handle(fmt.Sprintf("/%s/resolve/{code}", apiBase), in.Handlers.Resolve).Methods(http.MethodGet)
	router.Handle(fmt.Sprintf("/%s/scans/{id}/lineage", apiBase), in.Handlers.Lineage).Methods(http.MethodGet)

	chain := alice.New(
		recovery.Middleware(recovery.WithStatusCode(http.StatusInternalServerError)),
		candlelight.EchoFirstTraceNodeInfo(in.Tracing, false),
	)

	startServer(in.Servers, "primary", in.Config, chain.Then(router))
}

type MetricsRoutesIn struct {
	fx.In
	Servers ServersIn
	Config  ServerConfig `name:"servers.metrics"`
	Handler http.Handler `name:"metrics_handler"`
}

func BuildMetricsRoutes(in MetricsRoutesIn) {
	router := mux.NewRouter()
	router.Handle("/metrics", in.Handler).Methods(http.MethodGet)
	startServer(in.Servers, "metrics", in.Config, router)
}

type HealthRoutesIn struct {
	fx.In
	Servers ServersIn
	Config  ServerConfig `name:"servers.health"`
}

func BuildHealthRoutes(in HealthRoutesIn) {
	router := mux.NewRouter()
	router.Handle("/health", httpaux.ConstantHandler{
		StatusCode: http.StatusOK,
	}).Methods(http.MethodGet)
	startServer(in.Servers, "health", in.Config, router)
}

// startServer ties an http.Server to the fx lifecycle. Serve failures after
// startup shut the whole application down rather than limping along with a
// dead listener.
func startServer(in ServersIn, name string, config ServerConfig, handler http.Handler) {
	if len(config.Address) < 1 {
		in.Logger.Info("server disabled, no address configured", zap.String("server", name))
		return
	}

	server := &http.Server{
		Addr:    config.Address,
		Handler: handler,
	}

	in.LC.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			listener, err := net.Listen("tcp", server.Addr)
			if err != nil {
				return err
			}
			in.Logger.Info("server listening",
				zap.String("server", name), zap.String("address", server.Addr))
			go func() {
				err := server.Serve(listener)
				if !errors.Is(err, http.ErrServerClosed) {
					in.Logger.Error("server exited",
						zap.String("server", name), zap.Error(err))
					in.Shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return server.Shutdown(ctx)
		},
	})
}
