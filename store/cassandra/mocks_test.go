// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package cassandra

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/xmidt-org/arethusa/model"
)

type mockDB struct {
	mock.Mock
}

func (s *mockDB) Put(_ context.Context, f model.Faucet) error {
	args := s.Called(f)
	return args.Error(0)
}

func (s *mockDB) Get(_ context.Context, id string) (model.Faucet, error) {
	args := s.Called(id)
	return args.Get(0).(model.Faucet), args.Error(1)
}

func (s *mockDB) MarkConsumed(_ context.Context, id string, at time.Time) error {
	args := s.Called(id, at)
	return args.Error(0)
}

func (s *mockDB) Revoke(_ context.Context, id string, at time.Time) error {
	args := s.Called(id, at)
	return args.Error(0)
}

func (s *mockDB) LastForFaucet(_ context.Context, faucetID string) (model.ScanEvent, error) {
	args := s.Called(faucetID)
	return args.Get(0).(model.ScanEvent), args.Error(1)
}

func (s *mockDB) LastForDevice(_ context.Context, faucetID, device string) (model.ScanEvent, error) {
	args := s.Called(faucetID, device)
	return args.Get(0).(model.ScanEvent), args.Error(1)
}

func (s *mockDB) Append(_ context.Context, ev model.ScanEvent) error {
	args := s.Called(ev)
	return args.Error(0)
}

func (s *mockDB) GetScan(_ context.Context, scanID string) (model.ScanEvent, error) {
	args := s.Called(scanID)
	return args.Get(0).(model.ScanEvent), args.Error(1)
}

func (s *mockDB) Close() {
	s.Called()
}

func (s *mockDB) Ping() error {
	args := s.Called()
	return args.Error(0)
}
