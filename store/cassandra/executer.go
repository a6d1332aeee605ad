// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package cassandra

import (
	"context"
	"errors"
	"time"

	"github.com/gocql/gocql"
	"github.com/hailocab/go-hostpool"
	"github.com/xmidt-org/arethusa/codec"
	"github.com/xmidt-org/arethusa/model"
	"github.com/xmidt-org/arethusa/store"
	"go.uber.org/zap"
)

type dbStore interface {
	store.S
	Close()
	Ping() error
}

var serverClosed = errors.New("server is closed")

// cassandraExecutor issues the CQL. Timestamps are stored as unix nanos;
// a zero bigint reads back as the unset time.
type cassandraExecutor struct {
	session *gocql.Session
	logger  *zap.Logger
}

func connect(clusterConfig *gocql.ClusterConfig, logger *zap.Logger) (dbStore, error) {
	clusterConfig.PoolConfig.HostSelectionPolicy = gocql.HostPoolHostPolicy(hostpool.New(nil))
	session, err := clusterConfig.CreateSession()
	if err != nil {
		return nil, err
	}

	return &cassandraExecutor{session: session, logger: logger}, nil
}

func (s *cassandraExecutor) Put(ctx context.Context, f model.Faucet) error {
	var expires int64
	if f.ExpiresAt != nil {
		expires = f.ExpiresAt.UnixNano()
	}
	applied, err := s.session.Query(
		"INSERT INTO faucets (id, sealed, signature, created_at, expires_at, one_time, consumed_at, revoked_at) VALUES (?,?,?,?,?,?,0,0) IF NOT EXISTS",
		f.ID, f.Sealed, f.Signature, f.CreatedAt.UnixNano(), expires, f.OneTime,
	).WithContext(ctx).ScanCAS()
	if err != nil {
		return store.InternalError{Reason: err}
	}
	if !applied {
		return store.ErrFaucetExists
	}
	return nil
}

func (s *cassandraExecutor) Get(ctx context.Context, id string) (model.Faucet, error) {
	var (
		sealed    []byte
		signature []byte
		created   int64
		expires   int64
		oneTime   bool
		consumed  int64
		revoked   int64
	)
	err := s.session.Query(
		"SELECT sealed, signature, created_at, expires_at, one_time, consumed_at, revoked_at FROM faucets WHERE id = ?",
		id,
	).WithContext(ctx).Scan(&sealed, &signature, &created, &expires, &oneTime, &consumed, &revoked)
	if err == gocql.ErrNotFound {
		return model.Faucet{}, store.ErrFaucetNotFound
	}
	if err != nil {
		return model.Faucet{}, store.InternalError{Reason: err}
	}

	env, err := codec.Decode(sealed)
	if err != nil {
		return model.Faucet{}, store.InternalError{Reason: err}
	}
	f := model.Faucet{
		ID:        id,
		Payload:   env.Payload,
		CreatedAt: time.Unix(0, created).UTC(),
		OneTime:   oneTime,
		Sealed:    sealed,
		Signature: signature,
	}
	if expires != 0 {
		exp := time.Unix(0, expires).UTC()
		f.ExpiresAt = &exp
	}
	if consumed != 0 {
		c := time.Unix(0, consumed).UTC()
		f.ConsumedAt = &c
	}
	if revoked != 0 {
		r := time.Unix(0, revoked).UTC()
		f.RevokedAt = &r
	}
	return f, nil
}

func (s *cassandraExecutor) MarkConsumed(ctx context.Context, id string, at time.Time) error {
	// the lightweight transaction is the compare and set: only one of the
	// concurrent consumers observes applied = true
	applied, err := s.session.Query(
		"UPDATE faucets SET consumed_at = ? WHERE id = ? IF consumed_at = 0",
		at.UnixNano(), id,
	).WithContext(ctx).ScanCAS()
	if err != nil {
		return store.InternalError{Reason: err}
	}
	if applied {
		return nil
	}
	if _, getErr := s.Get(ctx, id); errors.Is(getErr, store.ErrFaucetNotFound) {
		return store.ErrFaucetNotFound
	}
	return store.ErrAlreadyConsumed
}

func (s *cassandraExecutor) Revoke(ctx context.Context, id string, at time.Time) error {
	applied, err := s.session.Query(
		"UPDATE faucets SET revoked_at = ? WHERE id = ? IF revoked_at = 0",
		at.UnixNano(), id,
	).WithContext(ctx).ScanCAS()
	if err != nil {
		return store.InternalError{Reason: err}
	}
	if applied {
		return nil
	}
	if _, getErr := s.Get(ctx, id); errors.Is(getErr, store.ErrFaucetNotFound) {
		return store.ErrFaucetNotFound
	}
	// already revoked, nothing to do
	return nil
}

const scanColumns = "scan_id, faucet_id, sequence_no, device, previous_scan_id, outcome, observed_at"

func scanRow(q *gocql.Query) (model.ScanEvent, error) {
	var (
		ev       model.ScanEvent
		seq      int64
		observed int64
	)
	err := q.Scan(&ev.ScanID, &ev.FaucetID, &seq, &ev.Device, &ev.PreviousScanID, &ev.Outcome, &observed)
	if err == gocql.ErrNotFound {
		return model.ScanEvent{}, store.ErrScanNotFound
	}
	if err != nil {
		return model.ScanEvent{}, store.InternalError{Reason: err}
	}
	ev.SequenceNo = uint64(seq)
	ev.ObservedAt = time.Unix(0, observed).UTC()
	return ev, nil
}

func (s *cassandraExecutor) LastForFaucet(ctx context.Context, faucetID string) (model.ScanEvent, error) {
	return scanRow(s.session.Query(
		"SELECT "+scanColumns+" FROM scans WHERE faucet_id = ? ORDER BY sequence_no DESC LIMIT 1",
		faucetID,
	).WithContext(ctx))
}

func (s *cassandraExecutor) LastForDevice(ctx context.Context, faucetID, device string) (model.ScanEvent, error) {
	return scanRow(s.session.Query(
		"SELECT "+scanColumns+" FROM scans WHERE faucet_id = ? AND device = ? ORDER BY sequence_no DESC LIMIT 1 ALLOW FILTERING",
		faucetID, device,
	).WithContext(ctx))
}

func (s *cassandraExecutor) Append(ctx context.Context, ev model.ScanEvent) error {
	// the conditional insert on the (faucet_id, sequence_no) slot is the
	// serialization point for concurrent resolves
	applied, err := s.session.Query(
		"INSERT INTO scans (faucet_id, sequence_no, scan_id, device, previous_scan_id, outcome, observed_at) VALUES (?,?,?,?,?,?,?) IF NOT EXISTS",
		ev.FaucetID, int64(ev.SequenceNo), ev.ScanID, ev.Device, ev.PreviousScanID, string(ev.Outcome), ev.ObservedAt.UnixNano(),
	).WithContext(ctx).ScanCAS()
	if err != nil {
		return store.InternalError{Reason: err}
	}
	if !applied {
		return store.ErrSequenceConflict
	}

	// lookup row for lineage queries by scan id. LWTs cannot span tables,
	// so this write lands after the slot is won; a crash in between leaves
	// an event without its ref, which GetScan reports as not found.
	err = s.session.Query(
		"INSERT INTO scans_by_id (scan_id, faucet_id, sequence_no, device, previous_scan_id, outcome, observed_at) VALUES (?,?,?,?,?,?,?)",
		ev.ScanID, ev.FaucetID, int64(ev.SequenceNo), ev.Device, ev.PreviousScanID, string(ev.Outcome), ev.ObservedAt.UnixNano(),
	).WithContext(ctx).Exec()
	if err != nil {
		return store.InternalError{Reason: err}
	}
	return nil
}

func (s *cassandraExecutor) GetScan(ctx context.Context, scanID string) (model.ScanEvent, error) {
	return scanRow(s.session.Query(
		"SELECT "+scanColumns+" FROM scans_by_id WHERE scan_id = ?",
		scanID,
	).WithContext(ctx))
}

func (s *cassandraExecutor) Close() {
	s.session.Close()
}

func (s *cassandraExecutor) Ping() error {
	if s.session.Closed() {
		return serverClosed
	}
	return nil
}
