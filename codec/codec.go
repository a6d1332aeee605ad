// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/xmidt-org/arethusa/model"
)

// ErrMalformed is returned whenever bytes do not parse as a canonical
// envelope. Decode never reports where parsing failed beyond this sentinel;
// the surrounding messages exist for internal logs only.
var ErrMalformed = errors.New("malformed envelope")

// Field ids. The 0x0X range is common to every kind; 0x1X and up are
// kind-specific. Ids are emitted in strictly ascending order and decoded
// under the same rule, which makes the encoding canonical: a given envelope
// has exactly one byte representation.
const (
	fieldFaucetID uint8 = 0x01
	fieldExpires  uint8 = 0x02
	fieldOneTime  uint8 = 0x03

	fieldSubject  uint8 = 0x10
	fieldScope    uint8 = 0x11
	fieldContent  uint8 = 0x10
	fieldRevision uint8 = 0x11
	fieldURL      uint8 = 0x10
	fieldCampaign uint8 = 0x11
)

const (
	faucetIDLen = 16
	maxFieldLen = 1<<16 - 1
)

// Envelope is the unit this codec serializes: the identity and the
// creation-time attributes of a faucet. The encoded bytes travel through a
// size-constrained channel with no schema side-channel, so decoding depends
// on nothing but the bytes themselves.
type Envelope struct {
	FaucetID  string
	ExpiresAt *time.Time
	OneTime   bool
	Payload   model.Payload
}

// Encode serializes the envelope to its canonical byte form: a one-byte
// kind tag followed by (field-id, big-endian uint16 length, value) triples.
// Numeric values use fixed-width big-endian encoding. The expiry field is
// omitted if and only if ExpiresAt is nil; every other field is always
// present. Two distinct envelopes never encode to the same bytes.
func Encode(e Envelope) ([]byte, error) {
	if e.Payload == nil {
		return nil, fmt.Errorf("%w: missing payload", ErrMalformed)
	}
	id, err := uuid.Parse(e.FaucetID)
	if err != nil {
		return nil, fmt.Errorf("%w: faucet id is not a UUID", ErrMalformed)
	}

	w := encoder{buf: []byte{byte(e.Payload.Kind())}}
	w.field(fieldFaucetID, id[:])
	if e.ExpiresAt != nil {
		var ts [8]byte
		binary.BigEndian.PutUint64(ts[:], uint64(e.ExpiresAt.Unix()))
		w.field(fieldExpires, ts[:])
	}
	if e.OneTime {
		w.field(fieldOneTime, []byte{1})
	} else {
		w.field(fieldOneTime, []byte{0})
	}

	switch p := e.Payload.(type) {
	case model.AuthToken:
		w.field(fieldSubject, []byte(p.Subject))
		w.field(fieldScope, []byte(p.Scope))
	case model.ContentReference:
		w.field(fieldContent, []byte(p.ContentID))
		var rev [4]byte
		binary.BigEndian.PutUint32(rev[:], p.Revision)
		w.field(fieldRevision, rev[:])
	case model.TrackingLink:
		w.field(fieldURL, []byte(p.URL))
		w.field(fieldCampaign, []byte(p.Campaign))
	case model.URLShortcut:
		w.field(fieldURL, []byte(p.URL))
	default:
		return nil, fmt.Errorf("%w: unknown payload kind %d", ErrMalformed, e.Payload.Kind())
	}

	if w.err != nil {
		return nil, w.err
	}
	return w.buf, nil
}

// Decode parses canonical envelope bytes. Unknown kind tags, field ids out
// of order, length prefixes running past the buffer, missing required
// fields and trailing bytes are all rejected as ErrMalformed; truncation is
// surfaced rather than silently accepted.
func Decode(data []byte) (Envelope, error) {
	if len(data) < 1 {
		return Envelope{}, fmt.Errorf("%w: empty input", ErrMalformed)
	}
	kind := model.PayloadKind(data[0])
	fields, err := parseFields(data[1:])
	if err != nil {
		return Envelope{}, err
	}

	var e Envelope
	rawID, err := fields.take(fieldFaucetID)
	if err != nil {
		return Envelope{}, err
	}
	if len(rawID) != faucetIDLen {
		return Envelope{}, fmt.Errorf("%w: bad faucet id length", ErrMalformed)
	}
	var id uuid.UUID
	copy(id[:], rawID)
	e.FaucetID = id.String()

	if raw, ok := fields.peek(fieldExpires); ok {
		if len(raw) != 8 {
			return Envelope{}, fmt.Errorf("%w: bad expiry length", ErrMalformed)
		}
		t := time.Unix(int64(binary.BigEndian.Uint64(raw)), 0).UTC()
		e.ExpiresAt = &t
		fields.drop(fieldExpires)
	}

	rawOneTime, err := fields.take(fieldOneTime)
	if err != nil {
		return Envelope{}, err
	}
	if len(rawOneTime) != 1 || rawOneTime[0] > 1 {
		return Envelope{}, fmt.Errorf("%w: bad one-time flag", ErrMalformed)
	}
	e.OneTime = rawOneTime[0] == 1

	switch kind {
	case model.KindAuthToken:
		var p model.AuthToken
		if p.Subject, err = fields.takeString(fieldSubject); err != nil {
			return Envelope{}, err
		}
		if p.Scope, err = fields.takeString(fieldScope); err != nil {
			return Envelope{}, err
		}
		e.Payload = p
	case model.KindContentReference:
		var p model.ContentReference
		if p.ContentID, err = fields.takeString(fieldContent); err != nil {
			return Envelope{}, err
		}
		raw, err := fields.take(fieldRevision)
		if err != nil {
			return Envelope{}, err
		}
		if len(raw) != 4 {
			return Envelope{}, fmt.Errorf("%w: bad revision length", ErrMalformed)
		}
		p.Revision = binary.BigEndian.Uint32(raw)
		e.Payload = p
	case model.KindTrackingLink:
		var p model.TrackingLink
		if p.URL, err = fields.takeString(fieldURL); err != nil {
			return Envelope{}, err
		}
		if p.Campaign, err = fields.takeString(fieldCampaign); err != nil {
			return Envelope{}, err
		}
		e.Payload = p
	case model.KindURLShortcut:
		var p model.URLShortcut
		if p.URL, err = fields.takeString(fieldURL); err != nil {
			return Envelope{}, err
		}
		e.Payload = p
	default:
		return Envelope{}, fmt.Errorf("%w: unknown kind tag %#x", ErrMalformed, data[0])
	}

	if len(fields.rest) != 0 {
		return Envelope{}, fmt.Errorf("%w: unexpected field %#x", ErrMalformed, fields.rest[0].id)
	}
	return e, nil
}

type encoder struct {
	buf []byte
	err error
}

func (w *encoder) field(id uint8, value []byte) {
	if w.err != nil {
		return
	}
	if len(value) > maxFieldLen {
		w.err = fmt.Errorf("%w: field %#x exceeds %d bytes", ErrMalformed, id, maxFieldLen)
		return
	}
	var l [2]byte
	binary.BigEndian.PutUint16(l[:], uint16(len(value)))
	w.buf = append(w.buf, id)
	w.buf = append(w.buf, l[:]...)
	w.buf = append(w.buf, value...)
}

type field struct {
	id    uint8
	value []byte
}

type fieldList struct {
	rest []field
}

// parseFields splits the body into fields, enforcing strictly ascending ids
// so every envelope has a single valid serialization.
func parseFields(body []byte) (*fieldList, error) {
	var fields []field
	lastID := -1
	for len(body) > 0 {
		if len(body) < 3 {
			return nil, fmt.Errorf("%w: truncated field header", ErrMalformed)
		}
		id := body[0]
		n := int(binary.BigEndian.Uint16(body[1:3]))
		body = body[3:]
		if n > len(body) {
			return nil, fmt.Errorf("%w: field %#x length %d exceeds remaining %d bytes", ErrMalformed, id, n, len(body))
		}
		if int(id) <= lastID {
			return nil, fmt.Errorf("%w: field %#x out of order", ErrMalformed, id)
		}
		lastID = int(id)
		fields = append(fields, field{id: id, value: body[:n]})
		body = body[n:]
	}
	return &fieldList{rest: fields}, nil
}

// take consumes the next field, which must have the given id.
func (l *fieldList) take(id uint8) ([]byte, error) {
	if len(l.rest) == 0 || l.rest[0].id != id {
		return nil, fmt.Errorf("%w: missing field %#x", ErrMalformed, id)
	}
	v := l.rest[0].value
	l.rest = l.rest[1:]
	return v, nil
}

func (l *fieldList) takeString(id uint8) (string, error) {
	v, err := l.take(id)
	return string(v), err
}

// peek reports the next field's value when it carries the given id.
func (l *fieldList) peek(id uint8) ([]byte, bool) {
	if len(l.rest) == 0 || l.rest[0].id != id {
		return nil, false
	}
	return l.rest[0].value, true
}

func (l *fieldList) drop(id uint8) {
	if len(l.rest) > 0 && l.rest[0].id == id {
		l.rest = l.rest[1:]
	}
}
