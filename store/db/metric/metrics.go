// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package metric

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/xmidt-org/arethusa/store"
	"github.com/xmidt-org/touchstone"
	"go.uber.org/fx"
)

const (
	QuerySuccessCounter  = "db_query_success_count"
	QueryFailureCounter  = "db_query_failure_count"
	QueryDurationSeconds = "db_query_duration_seconds"
	QueryRetryCounter    = "db_query_retry_count"
	ReadCapacityCounter  = "read_capacity_unit_consumed"
	WriteCapacityCounter = "write_capacity_unit_consumed"
)

// Measures bundles the backend-facing instrumentation.
type Measures struct {
	QuerySuccessCount *prometheus.CounterVec
	QueryFailureCount *prometheus.CounterVec
	QueryDuration     prometheus.ObserverVec
	QueryRetryCount   *prometheus.CounterVec

	// DynamoDB capacity tracking
	ConsumedReadCapacityCount  *prometheus.CounterVec
	ConsumedWriteCapacityCount *prometheus.CounterVec
}

// NewMeasures builds all backend metrics through the touchstone factory.
func NewMeasures(f *touchstone.Factory) (Measures, error) {
	var (
		m   Measures
		err error
	)

	if m.QuerySuccessCount, err = f.NewCounterVec(prometheus.CounterOpts{
		Name: QuerySuccessCounter,
		Help: "The total number of successful backend queries",
	}, store.TypeLabel); err != nil {
		return Measures{}, err
	}

	if m.QueryFailureCount, err = f.NewCounterVec(prometheus.CounterOpts{
		Name: QueryFailureCounter,
		Help: "The total number of failed backend queries",
	}, store.TypeLabel); err != nil {
		return Measures{}, err
	}

	if m.QueryDuration, err = f.NewHistogramVec(prometheus.HistogramOpts{
		Name:    QueryDurationSeconds,
		Help:    "A histogram of latencies for backend queries.",
		Buckets: []float64{0.0625, 0.125, .25, .5, 1, 5, 10, 20, 40, 80, 160},
	}, store.TypeLabel); err != nil {
		return Measures{}, err
	}

	if m.QueryRetryCount, err = f.NewCounterVec(prometheus.CounterOpts{
		Name: QueryRetryCounter,
		Help: "The total number of retried sequence slot claims",
	}, store.TypeLabel); err != nil {
		return Measures{}, err
	}

	if m.ConsumedReadCapacityCount, err = f.NewCounterVec(prometheus.CounterOpts{
		Name: ReadCapacityCounter,
		Help: "The number of read capacity units consumed by the operation.",
	}, store.TypeLabel); err != nil {
		return Measures{}, err
	}

	if m.ConsumedWriteCapacityCount, err = f.NewCounterVec(prometheus.CounterOpts{
		Name: WriteCapacityCounter,
		Help: "The number of write capacity units consumed by the operation.",
	}, store.TypeLabel); err != nil {
		return Measures{}, err
	}

	return m, nil
}

// ProvideMetrics makes the Measures available to the container.
func ProvideMetrics() fx.Option {
	return fx.Provide(NewMeasures)
}
