// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package inmem

import (
	"context"
	"sync"
	"time"

	"github.com/xmidt-org/arethusa/model"
	"github.com/xmidt-org/arethusa/store"
)

// bucket holds one faucet and its scan events. Each bucket has its own
// lock so resolves of different faucets never contend.
type bucket struct {
	lock   sync.Mutex
	faucet *model.Faucet
	scans  []model.ScanEvent
	// lastByDevice indexes into scans by device fingerprint.
	lastByDevice map[string]int
}

type scanRef struct {
	faucetID string
	index    int
}

type InMem struct {
	lock     sync.RWMutex
	buckets  map[string]*bucket
	byScanID map[string]scanRef
}

func NewInMem() store.S {
	return &InMem{
		buckets:  map[string]*bucket{},
		byScanID: map[string]scanRef{},
	}
}

// bucketFor returns the bucket for the faucet id, creating it when asked.
// Scan buckets may exist without a faucet record: the synthetic malformed
// bucket never has one.
func (i *InMem) bucketFor(id string, create bool) *bucket {
	i.lock.RLock()
	b := i.buckets[id]
	i.lock.RUnlock()
	if b != nil || !create {
		return b
	}
	i.lock.Lock()
	defer i.lock.Unlock()
	if b = i.buckets[id]; b == nil {
		b = &bucket{lastByDevice: map[string]int{}}
		i.buckets[id] = b
	}
	return b
}

func (i *InMem) Put(_ context.Context, f model.Faucet) error {
	b := i.bucketFor(f.ID, true)
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.faucet != nil {
		return store.ErrFaucetExists
	}
	stored := f
	b.faucet = &stored
	return nil
}

func (i *InMem) Get(_ context.Context, id string) (model.Faucet, error) {
	b := i.bucketFor(id, false)
	if b == nil {
		return model.Faucet{}, store.ErrFaucetNotFound
	}
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.faucet == nil {
		return model.Faucet{}, store.ErrFaucetNotFound
	}
	return *b.faucet, nil
}

func (i *InMem) MarkConsumed(_ context.Context, id string, at time.Time) error {
	b := i.bucketFor(id, false)
	if b == nil {
		return store.ErrFaucetNotFound
	}
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.faucet == nil {
		return store.ErrFaucetNotFound
	}
	if b.faucet.ConsumedAt != nil {
		return store.ErrAlreadyConsumed
	}
	consumed := at
	b.faucet.ConsumedAt = &consumed
	return nil
}

func (i *InMem) Revoke(_ context.Context, id string, at time.Time) error {
	b := i.bucketFor(id, false)
	if b == nil {
		return store.ErrFaucetNotFound
	}
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.faucet == nil {
		return store.ErrFaucetNotFound
	}
	if b.faucet.RevokedAt != nil {
		return nil
	}
	revoked := at
	b.faucet.RevokedAt = &revoked
	return nil
}

func (i *InMem) LastForFaucet(_ context.Context, faucetID string) (model.ScanEvent, error) {
	b := i.bucketFor(faucetID, false)
	if b == nil {
		return model.ScanEvent{}, store.ErrScanNotFound
	}
	b.lock.Lock()
	defer b.lock.Unlock()
	if len(b.scans) == 0 {
		return model.ScanEvent{}, store.ErrScanNotFound
	}
	return b.scans[len(b.scans)-1], nil
}

func (i *InMem) LastForDevice(_ context.Context, faucetID, device string) (model.ScanEvent, error) {
	b := i.bucketFor(faucetID, false)
	if b == nil {
		return model.ScanEvent{}, store.ErrScanNotFound
	}
	b.lock.Lock()
	defer b.lock.Unlock()
	idx, ok := b.lastByDevice[device]
	if !ok {
		return model.ScanEvent{}, store.ErrScanNotFound
	}
	return b.scans[idx], nil
}

func (i *InMem) Append(_ context.Context, ev model.ScanEvent) error {
	b := i.bucketFor(ev.FaucetID, true)
	b.lock.Lock()
	defer b.lock.Unlock()

	// events arrive in sequence order, so only the tail can conflict
	if n := len(b.scans); n > 0 && b.scans[n-1].SequenceNo >= ev.SequenceNo {
		return store.ErrSequenceConflict
	}
	b.scans = append(b.scans, ev)
	b.lastByDevice[ev.Device] = len(b.scans) - 1

	i.lock.Lock()
	i.byScanID[ev.ScanID] = scanRef{faucetID: ev.FaucetID, index: len(b.scans) - 1}
	i.lock.Unlock()
	return nil
}

func (i *InMem) GetScan(_ context.Context, scanID string) (model.ScanEvent, error) {
	i.lock.RLock()
	ref, ok := i.byScanID[scanID]
	i.lock.RUnlock()
	if !ok {
		return model.ScanEvent{}, store.ErrScanNotFound
	}
	b := i.bucketFor(ref.faucetID, false)
	if b == nil {
		return model.ScanEvent{}, store.ErrScanNotFound
	}
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.scans[ref.index], nil
}
