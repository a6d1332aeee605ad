// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"time"

	"github.com/xmidt-org/arethusa/model"
)

const (
	// TypeLabel is for labeling metrics; if there is a single metric for
	// successful queries, the TypeLabel and corresponding type can be used
	// when incrementing the metric.
	TypeLabel    = "type"
	InsertType   = "insert"
	ReadType     = "read"
	UpdateType   = "update"
	AppendType   = "append"
	PingType     = "ping"
	OutcomeLabel = "outcome"
)

// FaucetDAO persists faucet definitions. Put is create-only; MarkConsumed
// is the single mutation allowed on a live faucet and must be an atomic
// compare-and-set: among concurrent resolves of a one-time faucet exactly
// one call succeeds and the rest observe ErrAlreadyConsumed.
type FaucetDAO interface {
	Put(ctx context.Context, f model.Faucet) error
	Get(ctx context.Context, id string) (model.Faucet, error)
	MarkConsumed(ctx context.Context, id string, at time.Time) error

	// Revoke stamps an administrative kill time. It is idempotent: revoking
	// an already revoked faucet is not an error.
	Revoke(ctx context.Context, id string, at time.Time) error
}

// ScanDAO is the append-only scan event log. Append is conditional on the
// (faucet id, sequence no) slot being free and fails with
// ErrSequenceConflict otherwise; that condition is the serialization point
// for concurrent resolves of the same faucet. Events, once written, are
// never updated or deleted.
type ScanDAO interface {
	// LastForFaucet returns the scan event with the highest sequence number
	// for the faucet, or ErrScanNotFound when the faucet has no events.
	LastForFaucet(ctx context.Context, faucetID string) (model.ScanEvent, error)

	// LastForDevice returns the most recent scan event for the given device
	// fingerprint on the faucet, or ErrScanNotFound.
	LastForDevice(ctx context.Context, faucetID, device string) (model.ScanEvent, error)

	Append(ctx context.Context, ev model.ScanEvent) error

	GetScan(ctx context.Context, scanID string) (model.ScanEvent, error)
}

// S is the complete DAO surface a backend must provide.
type S interface {
	FaucetDAO
	ScanDAO
}
