// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package faucet

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/xmidt-org/arethusa/model"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Create(_ context.Context, req CreateRequest) (CreateResult, error) {
	args := m.Called(req)
	return args.Get(0).(CreateResult), args.Error(1)
}

func (m *MockService) Resolve(_ context.Context, code, device string) (ResolveResult, error) {
	args := m.Called(code, device)
	return args.Get(0).(ResolveResult), args.Error(1)
}

func (m *MockService) Revoke(_ context.Context, id string) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *MockService) Lineage(_ context.Context, scanID string) ([]model.ScanEvent, error) {
	args := m.Called(scanID)
	return args.Get(0).([]model.ScanEvent), args.Error(1)
}
