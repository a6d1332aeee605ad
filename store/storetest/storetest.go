// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// Package storetest holds the conformance suite shared by every store
// backend that can be exercised in-process.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xmidt-org/arethusa/codec"
	"github.com/xmidt-org/arethusa/model"
	"github.com/xmidt-org/arethusa/store"
)

const (
	GenericFaucetID = "a1f842a5-0b4c-4b34-9df9-17ef74e9f2a3"
	GenericDevice   = "device-bucket-a"
)

// GenericFaucet builds a valid reusable faucet fixture whose sealed bytes
// are the real canonical encoding, so backends that rebuild the payload
// from those bytes round-trip correctly.
func GenericFaucet(t *testing.T) model.Faucet {
	payload := model.TrackingLink{
		URL:      "https://example.com/landing",
		Campaign: "wonderful-world",
	}
	sealed, err := codec.Encode(codec.Envelope{
		FaucetID: GenericFaucetID,
		Payload:  payload,
	})
	require.NoError(t, err)

	return model.Faucet{
		ID:        GenericFaucetID,
		Payload:   payload,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
		Sealed:    sealed,
		Signature: []byte("not-a-real-tag-but-32-bytes-long"),
	}
}

// StoreTest runs every backend-visible behavior of the DAO contract
// against a live store.
func StoreTest(s store.S, t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	faucet := GenericFaucet(t)

	t.Log("faucet lifecycle")
	require.NoError(s.Put(ctx, faucet))
	assert.ErrorIs(s.Put(ctx, faucet), store.ErrFaucetExists)

	got, err := s.Get(ctx, faucet.ID)
	require.NoError(err)
	assert.Equal(faucet.ID, got.ID)
	assert.Equal(faucet.Payload, got.Payload)
	assert.Equal(faucet.Signature, got.Signature)
	assert.Nil(got.ConsumedAt)
	assert.Nil(got.RevokedAt)

	_, err = s.Get(ctx, "5d3a7a1c-93bb-4de3-9a5f-624e9c4cd7ee")
	assert.ErrorIs(err, store.ErrFaucetNotFound)

	t.Log("scan log")
	_, err = s.LastForFaucet(ctx, faucet.ID)
	assert.ErrorIs(err, store.ErrScanNotFound)

	base := time.Now().UTC().Truncate(time.Microsecond)
	first := model.ScanEvent{
		ScanID:     "0b02e275-224c-47be-b601-e2b571e4f08b",
		FaucetID:   faucet.ID,
		SequenceNo: 1,
		Device:     GenericDevice,
		Outcome:    model.OutcomeResolved,
		ObservedAt: base,
	}
	second := model.ScanEvent{
		ScanID:         "d3a3bbc5-4a93-464c-bd79-0c4760cfcbfd",
		FaucetID:       faucet.ID,
		SequenceNo:     2,
		Device:         "device-bucket-b",
		PreviousScanID: first.ScanID,
		Outcome:        model.OutcomeResolved,
		ObservedAt:     base.Add(time.Millisecond),
	}
	require.NoError(s.Append(ctx, first))
	require.NoError(s.Append(ctx, second))

	taken := second
	taken.ScanID = "9c1b0a37-6e4f-4256-97b4-3a2f0a9621d4"
	assert.ErrorIs(s.Append(ctx, taken), store.ErrSequenceConflict)

	last, err := s.LastForFaucet(ctx, faucet.ID)
	require.NoError(err)
	assert.Equal(second.ScanID, last.ScanID)

	byDevice, err := s.LastForDevice(ctx, faucet.ID, GenericDevice)
	require.NoError(err)
	assert.Equal(first.ScanID, byDevice.ScanID)

	_, err = s.LastForDevice(ctx, faucet.ID, "device-bucket-z")
	assert.ErrorIs(err, store.ErrScanNotFound)

	byID, err := s.GetScan(ctx, second.ScanID)
	require.NoError(err)
	assert.Equal(second.SequenceNo, byID.SequenceNo)
	assert.Equal(first.ScanID, byID.PreviousScanID)

	_, err = s.GetScan(ctx, "2e9f8f6b-9b54-4b48-bf40-13af21af0b55")
	assert.ErrorIs(err, store.ErrScanNotFound)

	t.Log("consumption and revocation")
	consumedAt := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(s.MarkConsumed(ctx, faucet.ID, consumedAt))
	assert.ErrorIs(s.MarkConsumed(ctx, faucet.ID, consumedAt), store.ErrAlreadyConsumed)
	assert.ErrorIs(
		s.MarkConsumed(ctx, "5d3a7a1c-93bb-4de3-9a5f-624e9c4cd7ee", consumedAt),
		store.ErrFaucetNotFound,
	)

	require.NoError(s.Revoke(ctx, faucet.ID, consumedAt.Add(time.Second)))
	require.NoError(s.Revoke(ctx, faucet.ID, consumedAt.Add(2*time.Second)))

	got, err = s.Get(ctx, faucet.ID)
	require.NoError(err)
	require.NotNil(got.ConsumedAt)
	require.NotNil(got.RevokedAt)
	assert.True(got.ConsumedAt.Equal(consumedAt))
	assert.False(got.Active(time.Now()))
}
