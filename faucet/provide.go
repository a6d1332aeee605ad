// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package faucet

import (
	"github.com/xmidt-org/arethusa/lineage"
	"github.com/xmidt-org/arethusa/store"
	"github.com/xmidt-org/arethusa/store/db/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// AuthorizationConfig is the admin gate for the management endpoints.
type AuthorizationConfig struct {
	AdminToken string
}

type serviceIn struct {
	fx.In

	Config   Config
	Store    store.S
	Measures Measures
	Logger   *zap.Logger
}

type handlerIn struct {
	fx.In

	Service Service
	Config  *transportConfig
}

// Provide builds the recorder, resolver, service and the four HTTP
// handlers.
func Provide() fx.Option {
	return fx.Options(
		ProvideMetrics(),
		fx.Provide(
			newTransportConfig,
			func(s store.S, measures metric.Measures, logger *zap.Logger) *lineage.Recorder {
				return lineage.NewRecorder(s, measures, logger)
			},
			func(s store.S) *lineage.Resolver {
				return lineage.NewResolver(s)
			},
			func(in serviceIn, recorder *lineage.Recorder, resolver *lineage.Resolver) (Service, error) {
				return NewService(in.Config, in.Store, recorder, resolver, in.Measures, in.Logger)
			},
			fx.Annotated{
				Name: "create_handler",
				Target: func(in handlerIn) Handler {
					return newCreateFaucetHandler(in.Service, in.Config)
				},
			},
			fx.Annotated{
				Name: "resolve_handler",
				Target: func(in handlerIn) Handler {
					return newResolveHandler(in.Service)
				},
			},
			fx.Annotated{
				Name: "revoke_handler",
				Target: func(in handlerIn) Handler {
					return newRevokeFaucetHandler(in.Service, in.Config)
				},
			},
			fx.Annotated{
				Name: "lineage_handler",
				Target: func(in handlerIn) Handler {
					return newLineageHandler(in.Service, in.Config)
				},
			},
		),
	)
}

func newTransportConfig(auth AuthorizationConfig) *transportConfig {
	return &transportConfig{AdminToken: auth.AdminToken}
}
