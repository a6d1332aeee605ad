// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"time"
)

// PayloadKind identifies the variant of data a faucet dispenses. It doubles
// as the leading type tag of the wire encoding, so values are stable and
// must never be renumbered.
type PayloadKind uint8

const (
	KindAuthToken        PayloadKind = 0x01
	KindContentReference PayloadKind = 0x02
	KindTrackingLink     PayloadKind = 0x03
	KindURLShortcut      PayloadKind = 0x04
)

func (k PayloadKind) String() string {
	switch k {
	case KindAuthToken:
		return "auth_token"
	case KindContentReference:
		return "content_reference"
	case KindTrackingLink:
		return "tracking_link"
	case KindURLShortcut:
		return "url_shortcut"
	}
	return "unknown"
}

// ParsePayloadKind maps the external kind name back to its tag.
func ParsePayloadKind(s string) (PayloadKind, bool) {
	switch s {
	case "auth_token":
		return KindAuthToken, true
	case "content_reference":
		return KindContentReference, true
	case "tracking_link":
		return KindTrackingLink, true
	case "url_shortcut":
		return KindURLShortcut, true
	}
	return 0, false
}

// Payload is the variant-specific data carried by a faucet. Every consumer
// switches exhaustively on the concrete type; adding a kind is a
// compile-surfaced change, not a runtime map lookup.
type Payload interface {
	Kind() PayloadKind
}

// AuthToken dispenses a short-lived access token for Subject when resolved.
type AuthToken struct {
	Subject string `json:"subject"`
	Scope   string `json:"scope"`
}

func (AuthToken) Kind() PayloadKind { return KindAuthToken }

// ContentReference points at a specific revision of a piece of content.
type ContentReference struct {
	ContentID string `json:"content_id"`
	Revision  uint32 `json:"revision"`
}

func (ContentReference) Kind() PayloadKind { return KindContentReference }

// TrackingLink is a URL redirect whose scans are attributed to a campaign.
type TrackingLink struct {
	URL      string `json:"url"`
	Campaign string `json:"campaign"`
}

func (TrackingLink) Kind() PayloadKind { return KindTrackingLink }

// URLShortcut is a plain URL redirect with no attribution.
type URLShortcut struct {
	URL string `json:"url"`
}

func (URLShortcut) Kind() PayloadKind { return KindURLShortcut }

// Faucet is a signed, typed, expiring capability. The Sealed bytes are the
// canonical encoding produced at creation; Signature is the authentication
// tag over those bytes. Neither is ever regenerated. Mutable state
// (ConsumedAt, RevokedAt) lives outside the sealed bytes so revocation and
// consumption never invalidate the signature.
type Faucet struct {
	// ID is the unique faucet identifier, a UUID generated at creation and
	// never reused.
	ID string `json:"id"`

	Payload Payload `json:"-"`

	CreatedAt time.Time `json:"created_at"`

	// ExpiresAt is nil for faucets that never expire. AuthToken faucets
	// always carry an expiry.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	// OneTime faucets are irreversibly consumed on first successful resolve.
	OneTime bool `json:"one_time"`

	ConsumedAt *time.Time `json:"consumed_at,omitempty"`

	// RevokedAt is an administrative kill switch; it overrides ExpiresAt.
	RevokedAt *time.Time `json:"revoked_at,omitempty"`

	Sealed    []byte `json:"sealed"`
	Signature []byte `json:"signature"`
}

// Kind returns the payload kind, or 0 when the payload is absent.
func (f Faucet) Kind() PayloadKind {
	if f.Payload == nil {
		return 0
	}
	return f.Payload.Kind()
}

// Active reports whether the faucet can still be resolved at the given
// instant. All three terminal states (consumed, revoked, expired) are final.
func (f Faucet) Active(now time.Time) bool {
	if f.ConsumedAt != nil || f.RevokedAt != nil {
		return false
	}
	if f.ExpiresAt != nil && !now.Before(*f.ExpiresAt) {
		return false
	}
	return true
}

// Outcome classifies one resolution attempt.
type Outcome string

const (
	OutcomeResolved         Outcome = "resolved"
	OutcomeExpired          Outcome = "expired"
	OutcomeAlreadyConsumed  Outcome = "already_consumed"
	OutcomeSignatureInvalid Outcome = "signature_invalid"
	OutcomeMalformed        Outcome = "malformed"
)

// MalformedBucket is the synthetic faucet id under which scans that never
// decoded to a faucet are recorded for anomaly monitoring. Real faucet ids
// are UUIDs, so no collision is possible.
const MalformedBucket = "unscannable"

// ScanEvent is an immutable record of one resolution attempt. Events are
// never updated or deleted.
type ScanEvent struct {
	// ScanID is globally unique; SequenceNo is unique only within the
	// event's faucet and forms a contiguous run starting at 1.
	ScanID     string `json:"scan_id"`
	FaucetID   string `json:"faucet_id"`
	SequenceNo uint64 `json:"sequence_no"`

	// Device is a coarse fingerprint bucket, not an identity. Distinct
	// people behind the same network and client family share a bucket.
	Device string `json:"device"`

	// PreviousScanID is empty for root scans. When set, it references an
	// event of the same faucet with a strictly earlier ObservedAt.
	PreviousScanID string `json:"previous_scan_id,omitempty"`

	Outcome Outcome `json:"outcome"`

	// ObservedAt is server-assigned, never client-supplied.
	ObservedAt time.Time `json:"observed_at"`
}
