// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/xmidt-org/arethusa/faucet"
	"github.com/xmidt-org/arethusa/store/db"
	"github.com/xmidt-org/arrange"
	"github.com/xmidt-org/candlelight"
	"go.uber.org/fx"
)

const (
	applicationName = "arethusa"
	apiBase         = "api/v1"
)

var (
	GitCommit = "undefined"
	Version   = "undefined"
	BuildTime = "undefined"
)

func main() {
	v, logger, err := setup(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	app := fx.New(
		arrange.LoggerFunc(logger.Sugar().Infof),
		arrange.ForViper(v),
		fx.Supply(logger, v),
		provideMetrics(),
		db.Provide(),
		faucet.Provide(),
		fx.Provide(
			arrange.UnmarshalKey("store", db.Configs{}),
			arrange.UnmarshalKey("faucet", faucet.Config{}),
			arrange.UnmarshalKey("authorization", faucet.AuthorizationConfig{}),
			fx.Annotated{
				Name:   "servers.primary",
				Target: arrange.UnmarshalKey("servers.primary", ServerConfig{}),
			},
			fx.Annotated{
				Name:   "servers.metrics",
				Target: arrange.UnmarshalKey("servers.metrics", ServerConfig{}),
			},
			fx.Annotated{
				Name:   "servers.health",
				Target: arrange.UnmarshalKey("servers.health", ServerConfig{}),
			},
			candlelight.New,
			func(v *viper.Viper) (candlelight.Config, error) {
				var config candlelight.Config
				err := v.UnmarshalKey("tracing", &config)
				if err != nil {
					return candlelight.Config{}, err
				}
				config.ApplicationName = applicationName
				return config, nil
			},
		),

		fx.Invoke(
			BuildPrimaryRoutes,
			BuildMetricsRoutes,
			BuildHealthRoutes,
		),
	)

	switch err := app.Err(); {
	case errors.Is(err, pflag.ErrHelp):
		return
	case err == nil:
		app.Run()
	default:
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}
