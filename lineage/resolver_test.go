// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package lineage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xmidt-org/arethusa/model"
	"github.com/xmidt-org/arethusa/store"
	"github.com/xmidt-org/arethusa/store/inmem"
)

func TestChain(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	s := inmem.NewInMem()
	r := newTestRecorder(t, s)
	ctx := context.Background()

	first, err := r.Record(ctx, testFaucetID, "dev-a", model.OutcomeResolved)
	require.NoError(err)
	second, err := r.Record(ctx, testFaucetID, "dev-a", model.OutcomeAlreadyConsumed)
	require.NoError(err)
	third, err := r.Record(ctx, testFaucetID, "dev-b", model.OutcomeAlreadyConsumed)
	require.NoError(err)

	chain, err := NewResolver(s).Chain(ctx, third.ScanID)
	require.NoError(err)
	require.Len(chain, 3)
	assert.Equal(first.ScanID, chain[0].ScanID)
	assert.Equal(second.ScanID, chain[1].ScanID)
	assert.Equal(third.ScanID, chain[2].ScanID)

	// a root scan resolves to a single element chain
	chain, err = NewResolver(s).Chain(ctx, first.ScanID)
	require.NoError(err)
	require.Len(chain, 1)
	assert.Equal(first.ScanID, chain[0].ScanID)
}

func TestChainNotFound(t *testing.T) {
	assert := assert.New(t)
	s := inmem.NewInMem()
	_, err := NewResolver(s).Chain(context.Background(), uuid.NewString())
	assert.ErrorIs(err, store.ErrScanNotFound)
}

func TestChainCorrupt(t *testing.T) {
	now := time.Now().UTC()
	mkEvent := func(seq uint64, scanID, previous string, observed time.Time) model.ScanEvent {
		return model.ScanEvent{
			ScanID:         scanID,
			FaucetID:       testFaucetID,
			SequenceNo:     seq,
			Device:         "dev-a",
			PreviousScanID: previous,
			Outcome:        model.OutcomeResolved,
			ObservedAt:     observed,
		}
	}

	tcs := []struct {
		Name   string
		Events []model.ScanEvent
		Start  string
	}{
		{
			Name: "MissingParent",
			Events: []model.ScanEvent{
				mkEvent(1, "child", "ghost", now),
			},
			Start: "child",
		},
		{
			Name: "Cycle",
			Events: []model.ScanEvent{
				mkEvent(1, "a", "b", now),
				mkEvent(2, "b", "a", now.Add(time.Second)),
			},
			Start: "b",
		},
		{
			Name: "TimeOrderViolation",
			Events: []model.ScanEvent{
				mkEvent(1, "early", "", now),
				mkEvent(2, "late", "early", now.Add(-time.Second)),
			},
			Start: "late",
		},
	}
	for _, tc := range tcs {
		t.Run(tc.Name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)
			s := inmem.NewInMem()
			for _, ev := range tc.Events {
				require.NoError(s.Append(context.Background(), ev))
			}

			_, err := NewResolver(s).Chain(context.Background(), tc.Start)
			assert.ErrorIs(err, ErrCorruptChain)
		})
	}
}
