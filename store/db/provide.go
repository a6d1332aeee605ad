// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package db

import (
	"github.com/xmidt-org/arethusa/store"
	"github.com/xmidt-org/arethusa/store/cassandra"
	"github.com/xmidt-org/arethusa/store/db/metric"
	"github.com/xmidt-org/arethusa/store/dynamodb"
	"github.com/xmidt-org/arethusa/store/inmem"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Configs selects the backing store. The first configured backend wins:
// dynamo, then yugabyte, then the in-memory dev store.
type Configs struct {
	Dynamo   *dynamodb.Config
	Yugabyte *cassandra.Config
}

type SetupIn struct {
	fx.In
	Configs  Configs
	Measures metric.Measures
	LC       fx.Lifecycle
	Logger   *zap.Logger
}

func Provide() fx.Option {
	return fx.Options(
		metric.ProvideMetrics(),
		fx.Provide(
			SetupStore,
		),
	)
}

func SetupStore(in SetupIn) (store.S, error) {
	if in.Configs.Dynamo != nil {
		in.Logger.Info("using dynamodb store implementation")
		return dynamodb.NewDynamoDB(*in.Configs.Dynamo, in.Measures)
	}
	if in.Configs.Yugabyte != nil {
		in.Logger.Info("using yugabyte store implementation")
		return cassandra.NewCassandra(*in.Configs.Yugabyte, in.Measures, in.LC,
			in.Logger)
	}
	in.Logger.Info("using in memory store implementation")
	return inmem.NewInMem(), nil
}
