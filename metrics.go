// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/xmidt-org/arrange"
	"github.com/xmidt-org/touchstone"
	"go.uber.org/fx"
)

// provideMetrics bootstraps the prometheus registry, the touchstone factory
// used by the packages to build their measures, and the scrape handler.
func provideMetrics() fx.Option {
	return fx.Provide(
		arrange.UnmarshalKey("prometheus", touchstone.Config{}),
		touchstone.New,
		touchstone.NewFactory,
		fx.Annotated{
			Name: "metrics_handler",
			Target: func(g prometheus.Gatherer) http.Handler {
				return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
			},
		},
	)
}
