// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package faucet

import "net/http"

// GoneErr is what every non-resolved scan looks like from the outside.
// Expired, revoked, consumed, forged and unknown codes are deliberately
// indistinguishable to the caller; the real outcome lives in the scan log.
type GoneErr struct{}

func (GoneErr) Error() string {
	return "code no longer valid"
}

func (GoneErr) StatusCode() int {
	return http.StatusGone
}

type ForbiddenErr struct {
	Message string
}

func (fe ForbiddenErr) Error() string {
	return fe.Message
}

func (fe ForbiddenErr) StatusCode() int {
	return http.StatusForbidden
}
