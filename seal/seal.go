// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package seal

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"
)

// TagSize is the length in bytes of the authentication tag appended to
// every sealed payload.
const TagSize = sha256.Size

const minSecretLen = 16

var (
	// ErrInvalidSignature is the single undifferentiated verification
	// failure. Callers never learn which byte differed or how close a tag
	// was to correct.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrShortInput is returned when sealed bytes cannot even contain a
	// tag; it classifies as malformed input, not as a signature failure.
	ErrShortInput = errors.New("sealed input shorter than tag")

	errWeakSecret = errors.New("sealing secret must be at least 16 bytes")
)

// Sealer computes and checks keyed authentication tags over canonical
// payload bytes. The same server-held secret is used for the life of a
// faucet; tags are never regenerated.
type Sealer struct {
	secret []byte
}

func New(secret []byte) (*Sealer, error) {
	if len(secret) < minSecretLen {
		return nil, errWeakSecret
	}
	s := &Sealer{secret: make([]byte, len(secret))}
	copy(s.secret, secret)
	return s, nil
}

// Tag returns the HMAC-SHA256 tag over the given bytes.
func (s *Sealer) Tag(encoded []byte) []byte {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(encoded)
	return mac.Sum(nil)
}

// Seal appends the tag to the encoded bytes, producing the opaque form
// handed to the renderer.
func (s *Sealer) Seal(encoded []byte) []byte {
	return append(append([]byte{}, encoded...), s.Tag(encoded)...)
}

// Open splits sealed bytes into payload and tag and verifies the tag using
// a constant-time comparison. On any mismatch it returns
// ErrInvalidSignature and nothing else.
func (s *Sealer) Open(sealed []byte) (encoded, tag []byte, err error) {
	if len(sealed) < TagSize {
		return nil, nil, ErrShortInput
	}
	encoded = sealed[:len(sealed)-TagSize]
	tag = sealed[len(sealed)-TagSize:]
	if !hmac.Equal(tag, s.Tag(encoded)) {
		return nil, nil, ErrInvalidSignature
	}
	return encoded, tag, nil
}

// Matches reports whether two tags are equal, in constant time. It is used
// to bind a presented tag to the signature persisted at creation.
func Matches(a, b []byte) bool {
	return hmac.Equal(a, b)
}
