// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package dynamodb

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/xmidt-org/arethusa/model"
	"github.com/xmidt-org/arethusa/store"
	"github.com/xmidt-org/arethusa/store/db/metric"
)

const (
	defaultTable      = "arethusa"
	defaultMaxRetries = 3
)

type Config struct {
	Table      string
	Endpoint   string
	Region     string
	MaxRetries int
	AccessKey  string
	SecretKey  string
}

// DynamoClient implements the DAO on top of the dynamodb service layer and
// folds every call outcome into the query metrics.
type DynamoClient struct {
	svc      service
	config   Config
	measures metric.Measures
}

func NewDynamoDB(config Config, measures metric.Measures) (store.S, error) {
	validateConfig(&config)
	svc, err := newService(config)
	if err != nil {
		return nil, err
	}
	return &DynamoClient{
		svc:      svc,
		config:   config,
		measures: measures,
	}, nil
}

func (s *DynamoClient) observe(queryType string, start time.Time, consumedCapacity *types.ConsumedCapacity, err error) {
	labels := prometheus.Labels{store.TypeLabel: queryType}
	s.measures.QueryDuration.With(labels).Observe(time.Since(start).Seconds())
	if consumedCapacity != nil {
		if consumedCapacity.ReadCapacityUnits != nil {
			s.measures.ConsumedReadCapacityCount.With(labels).Add(*consumedCapacity.ReadCapacityUnits)
		}
		if consumedCapacity.WriteCapacityUnits != nil {
			s.measures.ConsumedWriteCapacityCount.With(labels).Add(*consumedCapacity.WriteCapacityUnits)
		}
	}
	if err != nil {
		s.measures.QueryFailureCount.With(labels).Add(1.0)
		return
	}
	s.measures.QuerySuccessCount.With(labels).Add(1.0)
}

func (s *DynamoClient) Put(ctx context.Context, f model.Faucet) error {
	start := time.Now()
	consumedCapacity, err := s.svc.Put(ctx, f)
	s.observe(store.InsertType, start, consumedCapacity, err)
	return err
}

func (s *DynamoClient) Get(ctx context.Context, id string) (model.Faucet, error) {
	start := time.Now()
	f, consumedCapacity, err := s.svc.Get(ctx, id)
	s.observe(store.ReadType, start, consumedCapacity, err)
	return f, err
}

func (s *DynamoClient) MarkConsumed(ctx context.Context, id string, at time.Time) error {
	start := time.Now()
	consumedCapacity, err := s.svc.MarkConsumed(ctx, id, at)
	s.observe(store.UpdateType, start, consumedCapacity, err)
	return err
}

func (s *DynamoClient) Revoke(ctx context.Context, id string, at time.Time) error {
	start := time.Now()
	consumedCapacity, err := s.svc.Revoke(ctx, id, at)
	s.observe(store.UpdateType, start, consumedCapacity, err)
	return err
}

func (s *DynamoClient) LastForFaucet(ctx context.Context, faucetID string) (model.ScanEvent, error) {
	start := time.Now()
	ev, consumedCapacity, err := s.svc.LastForFaucet(ctx, faucetID)
	s.observe(store.ReadType, start, consumedCapacity, err)
	return ev, err
}

func (s *DynamoClient) LastForDevice(ctx context.Context, faucetID, device string) (model.ScanEvent, error) {
	start := time.Now()
	ev, consumedCapacity, err := s.svc.LastForDevice(ctx, faucetID, device)
	s.observe(store.ReadType, start, consumedCapacity, err)
	return ev, err
}

func (s *DynamoClient) Append(ctx context.Context, ev model.ScanEvent) error {
	start := time.Now()
	consumedCapacity, err := s.svc.Append(ctx, ev)
	s.observe(store.AppendType, start, consumedCapacity, err)
	return err
}

func (s *DynamoClient) GetScan(ctx context.Context, scanID string) (model.ScanEvent, error) {
	start := time.Now()
	ev, consumedCapacity, err := s.svc.GetScan(ctx, scanID)
	s.observe(store.ReadType, start, consumedCapacity, err)
	return ev, err
}

func validateConfig(config *Config) {
	if config.Table == "" {
		config.Table = defaultTable
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = defaultMaxRetries
	}
}
