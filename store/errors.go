// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrFaucetNotFound marks an unknown faucet id. Transports mask it as
	// an expired code toward untrusted callers; the distinction survives
	// only in logs and metrics.
	ErrFaucetNotFound = errors.New("faucet not found")

	// ErrFaucetExists rejects a create for an id already in the store.
	ErrFaucetExists = errors.New("faucet already exists")

	// ErrAlreadyConsumed is the losing side of the one-time
	// compare-and-set.
	ErrAlreadyConsumed = errors.New("faucet already consumed")

	// ErrScanNotFound marks an unknown scan id or an empty event log.
	ErrScanNotFound = errors.New("scan event not found")

	// ErrSequenceConflict reports that another writer claimed the sequence
	// slot first. It is transient: re-reading the log and retrying with the
	// next slot is the expected reaction.
	ErrSequenceConflict = errors.New("scan sequence slot already claimed")
)

type BadRequestErr struct {
	Message string
}

func (bre BadRequestErr) Error() string {
	return bre.Message
}

func (bre BadRequestErr) StatusCode() int {
	return http.StatusBadRequest
}

// InternalError wraps backend failures that are not part of the domain
// taxonomy. Retryable marks transient conditions such as throughput
// throttling.
type InternalError struct {
	Reason    error
	Retryable bool
}

func (ie InternalError) Error() string {
	return fmt.Sprintf("store operation failed: %v", ie.Reason)
}

func (ie InternalError) Unwrap() error {
	return ie.Reason
}

func (ie InternalError) StatusCode() int {
	return http.StatusInternalServerError
}
