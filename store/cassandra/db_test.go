// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package cassandra

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/xmidt-org/arethusa/model"
	"github.com/xmidt-org/arethusa/store"
	"github.com/xmidt-org/arethusa/store/db/metric"
	"go.uber.org/zap/zaptest"
)

func testMeasures() metric.Measures {
	return metric.Measures{
		QuerySuccessCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metric.QuerySuccessCounter,
		}, []string{store.TypeLabel}),
		QueryFailureCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metric.QueryFailureCounter,
		}, []string{store.TypeLabel}),
	}
}

func TestClientMetrics(t *testing.T) {
	assert := assert.New(t)
	m := new(mockDB)
	m.On("Put", mock.AnythingOfType("model.Faucet")).Return(nil).Once()
	m.On("Get", "missing").Return(model.Faucet{}, store.ErrFaucetNotFound).Once()
	m.On("Append", mock.AnythingOfType("model.ScanEvent")).Return(store.ErrSequenceConflict).Once()
	m.On("Ping").Return(nil).Once()
	m.On("Ping").Return(errors.New("gone")).Once()

	measures := testMeasures()
	s := &CassandraClient{
		client:   m,
		config:   Config{},
		logger:   zaptest.NewLogger(t),
		measures: measures,
	}

	ctx := context.Background()
	assert.NoError(s.Put(ctx, model.Faucet{ID: "a"}))
	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(err, store.ErrFaucetNotFound)
	assert.ErrorIs(s.Append(ctx, model.ScanEvent{}), store.ErrSequenceConflict)
	assert.NoError(s.Ping())
	assert.Error(s.Ping())

	success := func(label string) float64 {
		return testutil.ToFloat64(measures.QuerySuccessCount.With(prometheus.Labels{store.TypeLabel: label}))
	}
	failure := func(label string) float64 {
		return testutil.ToFloat64(measures.QueryFailureCount.With(prometheus.Labels{store.TypeLabel: label}))
	}
	assert.Equal(1.0, success(store.InsertType))
	assert.Equal(1.0, failure(store.ReadType))
	assert.Equal(1.0, failure(store.AppendType))
	assert.Equal(1.0, success(store.PingType))
	assert.Equal(1.0, failure(store.PingType))
	m.AssertExpectations(t)
}

func TestClientPassesThrough(t *testing.T) {
	assert := assert.New(t)
	now := time.Now().UTC()
	ev := model.ScanEvent{ScanID: "s1", FaucetID: "f1", SequenceNo: 4, Device: "d", Outcome: model.OutcomeResolved, ObservedAt: now}

	m := new(mockDB)
	m.On("MarkConsumed", "f1", now).Return(nil).Once()
	m.On("Revoke", "f1", now).Return(nil).Once()
	m.On("LastForFaucet", "f1").Return(ev, nil).Once()
	m.On("LastForDevice", "f1", "d").Return(ev, nil).Once()
	m.On("GetScan", "s1").Return(ev, nil).Once()
	m.On("Close").Once()

	s := &CassandraClient{
		client:   m,
		logger:   zaptest.NewLogger(t),
		measures: testMeasures(),
	}

	ctx := context.Background()
	assert.NoError(s.MarkConsumed(ctx, "f1", now))
	assert.NoError(s.Revoke(ctx, "f1", now))

	got, err := s.LastForFaucet(ctx, "f1")
	assert.NoError(err)
	assert.Equal(ev, got)

	got, err = s.LastForDevice(ctx, "f1", "d")
	assert.NoError(err)
	assert.Equal(ev, got)

	got, err = s.GetScan(ctx, "s1")
	assert.NoError(err)
	assert.Equal(ev, got)

	s.Close()
	m.AssertExpectations(t)
}

func TestCreateCassandraClientRequiresHosts(t *testing.T) {
	assert := assert.New(t)
	_, err := CreateCassandraClient(Config{}, testMeasures(), zaptest.NewLogger(t))
	assert.Error(err)
}

func TestValidateConfig(t *testing.T) {
	assert := assert.New(t)
	config := Config{}
	validateConfig(&config)
	assert.Equal(defaultOpTimeout, config.OpTimeout)
	assert.Equal(defaultDatabase, config.Database)
	assert.Equal(time.Duration(defaultWaitTimeMult), config.WaitTimeMult)
	assert.Equal(defaultMaxNumberConnsPerHost, config.MaxConnsPerHost)
}
