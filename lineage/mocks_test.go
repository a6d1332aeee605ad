// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package lineage

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/xmidt-org/arethusa/model"
)

type mockScanDAO struct {
	mock.Mock
}

func (m *mockScanDAO) LastForFaucet(_ context.Context, faucetID string) (model.ScanEvent, error) {
	args := m.Called(faucetID)
	return args.Get(0).(model.ScanEvent), args.Error(1)
}

func (m *mockScanDAO) LastForDevice(_ context.Context, faucetID, device string) (model.ScanEvent, error) {
	args := m.Called(faucetID, device)
	return args.Get(0).(model.ScanEvent), args.Error(1)
}

func (m *mockScanDAO) Append(_ context.Context, ev model.ScanEvent) error {
	args := m.Called(ev)
	return args.Error(0)
}

func (m *mockScanDAO) GetScan(_ context.Context, scanID string) (model.ScanEvent, error) {
	args := m.Called(scanID)
	return args.Get(0).(model.ScanEvent), args.Error(1)
}
