// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package faucet

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/xmidt-org/arethusa/store"
	"github.com/xmidt-org/touchstone"
	"go.uber.org/fx"
)

// Names
const (
	ResolveCounter = "faucet_resolves_total"
	CreateCounter  = "faucet_creates_total"
)

// Labels
const (
	KindLabel = "kind"
)

// ProvideMetrics returns the Metrics relevant to this package
func ProvideMetrics() fx.Option {
	return fx.Options(
		touchstone.CounterVec(
			prometheus.CounterOpts{
				Name: ResolveCounter,
				Help: "Counter for resolve attempts partitioned by their recorded outcome.",
			},
			store.OutcomeLabel,
		),
		touchstone.CounterVec(
			prometheus.CounterOpts{
				Name: CreateCounter,
				Help: "Counter for created faucets partitioned by payload kind.",
			},
			KindLabel,
		),
	)
}

type Measures struct {
	fx.In
	Resolves *prometheus.CounterVec `name:"faucet_resolves_total"`
	Creates  *prometheus.CounterVec `name:"faucet_creates_total"`
}
