// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package lineage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/xmidt-org/arethusa/model"
	"github.com/xmidt-org/arethusa/store"
	"github.com/xmidt-org/arethusa/store/db/metric"
	"go.uber.org/zap"
)

const maxAppendAttempts = 5

// ErrTooMuchContention is returned when every attempt to claim a sequence
// slot lost to a concurrent writer. Callers may retry the whole scan.
var ErrTooMuchContention = errors.New("could not claim a scan sequence slot")

// Recorder appends scan events with chain threading. Each event claims the
// next sequence slot of its faucet with a conditional write; losing the
// claim means another scan of the same faucet committed first, so the
// recorder re-reads the log and tries the next slot. The winner's event is
// exactly what a serial execution would have produced.
type Recorder struct {
	scans    store.ScanDAO
	measures metric.Measures
	logger   *zap.Logger

	// now is swapped out in tests
	now func() time.Time
}

func NewRecorder(scans store.ScanDAO, measures metric.Measures, logger *zap.Logger) *Recorder {
	return &Recorder{
		scans:    scans,
		measures: measures,
		logger:   logger,
		now:      time.Now,
	}
}

// Record writes one scan event for the faucet and returns it. The parent is
// the device's own previous scan of this faucet when one exists, otherwise
// the faucet's latest scan, otherwise the event is a root.
func (r *Recorder) Record(ctx context.Context, faucetID, device string, outcome model.Outcome) (model.ScanEvent, error) {
	for attempt := 0; attempt < maxAppendAttempts; attempt++ {
		ev, err := r.build(ctx, faucetID, device, outcome)
		if err != nil {
			return model.ScanEvent{}, err
		}

		err = r.scans.Append(ctx, ev)
		if err == nil {
			return ev, nil
		}
		if !errors.Is(err, store.ErrSequenceConflict) {
			return model.ScanEvent{}, err
		}
		r.measures.QueryRetryCount.With(prometheus.Labels{store.TypeLabel: store.AppendType}).Add(1.0)
		r.logger.Debug("sequence slot lost, retrying",
			zap.String("faucetID", faucetID),
			zap.Uint64("sequenceNo", ev.SequenceNo))
	}
	return model.ScanEvent{}, ErrTooMuchContention
}

func (r *Recorder) build(ctx context.Context, faucetID, device string, outcome model.Outcome) (model.ScanEvent, error) {
	var (
		parent    *model.ScanEvent
		nextSeq   uint64 = 1
		tail, err        = r.scans.LastForFaucet(ctx, faucetID)
	)
	switch {
	case err == nil:
		nextSeq = tail.SequenceNo + 1
		parent = &tail
	case !errors.Is(err, store.ErrScanNotFound):
		return model.ScanEvent{}, err
	}

	if parent != nil {
		// a device rescanning its own code chains to its own history
		mine, err := r.scans.LastForDevice(ctx, faucetID, device)
		if err == nil {
			parent = &mine
		} else if !errors.Is(err, store.ErrScanNotFound) {
			return model.ScanEvent{}, err
		}
	}

	observed := r.now().UTC()
	previous := ""
	if parent != nil {
		previous = parent.ScanID
		// the parent must be strictly earlier even when the wall clock
		// stalls or steps backwards
		if !observed.After(parent.ObservedAt) {
			observed = parent.ObservedAt.Add(time.Microsecond)
		}
	}

	return model.ScanEvent{
		ScanID:         uuid.NewString(),
		FaucetID:       faucetID,
		SequenceNo:     nextSeq,
		Device:         device,
		PreviousScanID: previous,
		Outcome:        outcome,
		ObservedAt:     observed,
	}, nil
}
