// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package lineage

import (
	"context"
	"errors"
	"fmt"

	"github.com/xmidt-org/arethusa/model"
	"github.com/xmidt-org/arethusa/store"
)

// ErrCorruptChain reports a lineage that cannot be walked to a root:
// a dangling parent reference, a cycle, or timestamps out of order.
var ErrCorruptChain = errors.New("scan lineage is corrupt")

// Resolver walks parent links back to the root scan.
type Resolver struct {
	scans store.ScanDAO
}

func NewResolver(scans store.ScanDAO) *Resolver {
	return &Resolver{scans: scans}
}

// Chain returns the full ancestry of the scan in chronological order: the
// root first, the requested scan last. ErrScanNotFound passes through when
// the starting scan does not exist.
func (r *Resolver) Chain(ctx context.Context, scanID string) ([]model.ScanEvent, error) {
	ev, err := r.scans.GetScan(ctx, scanID)
	if err != nil {
		return nil, err
	}

	chain := []model.ScanEvent{ev}
	seen := map[string]bool{ev.ScanID: true}
	for ev.PreviousScanID != "" {
		parent, err := r.scans.GetScan(ctx, ev.PreviousScanID)
		if errors.Is(err, store.ErrScanNotFound) {
			return nil, fmt.Errorf("%w: scan %s references missing parent %s",
				ErrCorruptChain, ev.ScanID, ev.PreviousScanID)
		}
		if err != nil {
			return nil, err
		}
		if seen[parent.ScanID] {
			return nil, fmt.Errorf("%w: cycle through scan %s", ErrCorruptChain, parent.ScanID)
		}
		if parent.FaucetID != ev.FaucetID {
			return nil, fmt.Errorf("%w: scan %s crosses faucets", ErrCorruptChain, ev.ScanID)
		}
		if !parent.ObservedAt.Before(ev.ObservedAt) {
			return nil, fmt.Errorf("%w: scan %s not after its parent", ErrCorruptChain, ev.ScanID)
		}
		seen[parent.ScanID] = true
		chain = append(chain, parent)
		ev = parent
	}

	// reverse into root first order
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}
