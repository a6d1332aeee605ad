// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package dynamodb

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/mock"
	"github.com/xmidt-org/arethusa/model"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Put(_ context.Context, f model.Faucet) (*types.ConsumedCapacity, error) {
	args := m.Called(f)
	return args.Get(0).(*types.ConsumedCapacity), args.Error(1)
}

func (m *MockService) Get(_ context.Context, id string) (model.Faucet, *types.ConsumedCapacity, error) {
	args := m.Called(id)
	return args.Get(0).(model.Faucet), args.Get(1).(*types.ConsumedCapacity), args.Error(2)
}

func (m *MockService) MarkConsumed(_ context.Context, id string, at time.Time) (*types.ConsumedCapacity, error) {
	args := m.Called(id, at)
	return args.Get(0).(*types.ConsumedCapacity), args.Error(1)
}

func (m *MockService) Revoke(_ context.Context, id string, at time.Time) (*types.ConsumedCapacity, error) {
	args := m.Called(id, at)
	return args.Get(0).(*types.ConsumedCapacity), args.Error(1)
}

func (m *MockService) LastForFaucet(_ context.Context, faucetID string) (model.ScanEvent, *types.ConsumedCapacity, error) {
	args := m.Called(faucetID)
	return args.Get(0).(model.ScanEvent), args.Get(1).(*types.ConsumedCapacity), args.Error(2)
}

func (m *MockService) LastForDevice(_ context.Context, faucetID, device string) (model.ScanEvent, *types.ConsumedCapacity, error) {
	args := m.Called(faucetID, device)
	return args.Get(0).(model.ScanEvent), args.Get(1).(*types.ConsumedCapacity), args.Error(2)
}

func (m *MockService) Append(_ context.Context, ev model.ScanEvent) (*types.ConsumedCapacity, error) {
	args := m.Called(ev)
	return args.Get(0).(*types.ConsumedCapacity), args.Error(1)
}

func (m *MockService) GetScan(_ context.Context, scanID string) (model.ScanEvent, *types.ConsumedCapacity, error) {
	args := m.Called(scanID)
	return args.Get(0).(model.ScanEvent), args.Get(1).(*types.ConsumedCapacity), args.Error(2)
}
