// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package faucet

import (
	"context"
	"encoding/base64"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xmidt-org/arethusa/codec"
	"github.com/xmidt-org/arethusa/lineage"
	"github.com/xmidt-org/arethusa/model"
	"github.com/xmidt-org/arethusa/store"
	"github.com/xmidt-org/arethusa/store/db/metric"
	"github.com/xmidt-org/arethusa/store/inmem"
	"go.uber.org/zap/zaptest"
)

const (
	testSecret   = "correct-horse-battery-staple-123"
	testTokenKey = "0123456789abcdef0123456789abcdef"
)

type fixture struct {
	svc      *service
	store    store.S
	measures Measures
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithStore(t, inmem.NewInMem())
}

func newFixtureWithStore(t *testing.T, s store.S) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	storeMeasures := metric.Measures{
		QueryRetryCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metric.QueryRetryCounter,
		}, []string{store.TypeLabel}),
	}
	measures := Measures{
		Resolves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: ResolveCounter,
		}, []string{store.OutcomeLabel}),
		Creates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: CreateCounter,
		}, []string{KindLabel}),
	}

	svc, err := NewService(
		Config{
			Secret: testSecret,
			Token:  TokenConfig{Key: testTokenKey},
		},
		s,
		lineage.NewRecorder(s, storeMeasures, logger),
		lineage.NewResolver(s),
		measures,
		logger,
	)
	require.NoError(t, err)
	return &fixture{svc: svc.(*service), store: s, measures: measures}
}

func (f *fixture) resolves(outcome model.Outcome) float64 {
	return testutil.ToFloat64(f.measures.Resolves.With(prometheus.Labels{store.OutcomeLabel: string(outcome)}))
}

func TestCreateValidation(t *testing.T) {
	tcs := []struct {
		Name string
		Req  CreateRequest
	}{
		{Name: "MissingKind", Req: CreateRequest{}},
		{Name: "UnknownKind", Req: CreateRequest{Kind: "teleporter"}},
		{Name: "AuthTokenWithoutTTL", Req: CreateRequest{Kind: "auth_token", Subject: "user-1"}},
		{Name: "AuthTokenWithoutSubject", Req: CreateRequest{Kind: "auth_token", TTL: time.Hour}},
		{Name: "ShortcutWithoutURL", Req: CreateRequest{Kind: "url_shortcut"}},
		{Name: "ShortcutWithBadURL", Req: CreateRequest{Kind: "url_shortcut", URL: "not a url"}},
		{Name: "TrackingLinkWithoutURL", Req: CreateRequest{Kind: "tracking_link", Campaign: "spring"}},
		{Name: "ContentWithoutID", Req: CreateRequest{Kind: "content_reference", Revision: 2}},
		{Name: "NegativeTTL", Req: CreateRequest{Kind: "url_shortcut", URL: "https://example.com", TTL: -time.Hour}},
		{Name: "ExcessiveTTL", Req: CreateRequest{Kind: "url_shortcut", URL: "https://example.com", TTL: 100 * 365 * 24 * time.Hour}},
	}
	for _, tc := range tcs {
		t.Run(tc.Name, func(t *testing.T) {
			assert := assert.New(t)
			f := newFixture(t)
			_, err := f.svc.Create(context.Background(), tc.Req)
			var bad store.BadRequestErr
			assert.ErrorAs(err, &bad)
		})
	}
}

func TestCreateAndResolveShortcut(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, CreateRequest{
		Kind: "url_shortcut",
		URL:  "https://example.com/docs",
	})
	require.NoError(err)
	assert.NotEmpty(created.ID)
	assert.NotEmpty(created.Code)
	assert.Nil(created.ExpiresAt)

	// the code is url safe, no padding
	assert.NotContains(created.Code, "=")
	_, err = base64.RawURLEncoding.DecodeString(created.Code)
	assert.NoError(err)

	result, err := f.svc.Resolve(ctx, created.Code, "dev-a")
	require.NoError(err)
	assert.NotEmpty(result.ScanID)
	assert.Equal("redirect", result.Action.Type)
	assert.Equal("https://example.com/docs", result.Action.URL)
	assert.Equal(1.0, f.resolves(model.OutcomeResolved))

	// reusable faucet: a second scan also resolves
	again, err := f.svc.Resolve(ctx, created.Code, "dev-b")
	require.NoError(err)
	assert.NotEqual(result.ScanID, again.ScanID)
	assert.Equal(2.0, f.resolves(model.OutcomeResolved))
}

func TestResolveAuthTokenMintsJWT(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, CreateRequest{
		Kind:    "auth_token",
		Subject: "user-42",
		Scope:   "read:content",
		TTL:     time.Hour,
	})
	require.NoError(err)
	require.NotNil(created.ExpiresAt)

	result, err := f.svc.Resolve(ctx, created.Code, "dev-a")
	require.NoError(err)
	assert.Equal("token", result.Action.Type)

	parsed, err := jwt.Parse(result.Action.Token, func(token *jwt.Token) (interface{}, error) {
		return []byte(testTokenKey), nil
	})
	require.NoError(err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal("user-42", claims["sub"])
	assert.Equal("read:content", claims["scope"])
	assert.Equal(float64(created.ExpiresAt.Unix()), claims["exp"])
}

func TestResolveContentReference(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, CreateRequest{
		Kind:      "content_reference",
		ContentID: "doc-9",
		Revision:  4,
	})
	require.NoError(err)

	result, err := f.svc.Resolve(ctx, created.Code, "dev-a")
	require.NoError(err)
	assert.Equal("content", result.Action.Type)
	assert.Equal("doc-9", result.Action.ContentID)
	assert.Equal(uint32(4), result.Action.Revision)
}

func TestResolveOneTime(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, CreateRequest{
		Kind:    "url_shortcut",
		URL:     "https://example.com/once",
		OneTime: true,
	})
	require.NoError(err)

	_, err = f.svc.Resolve(ctx, created.Code, "dev-a")
	require.NoError(err)

	_, err = f.svc.Resolve(ctx, created.Code, "dev-b")
	assert.ErrorAs(err, &GoneErr{})
	assert.Equal(1.0, f.resolves(model.OutcomeAlreadyConsumed))
}

func TestResolveOneTimeConcurrentSingleWinner(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, CreateRequest{
		Kind:    "url_shortcut",
		URL:     "https://example.com/prize",
		OneTime: true,
	})
	require.NoError(err)

	const racers = 16
	var (
		wins int64
		lock sync.Mutex
		wg   sync.WaitGroup
	)
	wg.Add(racers)
	for i := 0; i < racers; i++ {
		go func() {
			defer wg.Done()
			_, err := f.svc.Resolve(ctx, created.Code, "dev-racer")
			if err == nil {
				lock.Lock()
				wins++
				lock.Unlock()
			} else {
				assert.ErrorAs(err, &GoneErr{})
			}
		}()
	}
	wg.Wait()
	assert.Equal(int64(1), wins)
	assert.Equal(1.0, f.resolves(model.OutcomeResolved))
	assert.Equal(float64(racers-1), f.resolves(model.OutcomeAlreadyConsumed))
}

// ctxStore refuses mutations once the caller's context is done, the way
// the network-backed stores do.
type ctxStore struct {
	store.S
}

func (c ctxStore) MarkConsumed(ctx context.Context, id string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.S.MarkConsumed(ctx, id, at)
}

func (c ctxStore) Append(ctx context.Context, ev model.ScanEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.S.Append(ctx, ev)
}

func TestResolveDisconnectedCallerStillRecords(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	f := newFixtureWithStore(t, ctxStore{S: inmem.NewInMem()})

	created, err := f.svc.Create(context.Background(), CreateRequest{
		Kind:    "url_shortcut",
		URL:     "https://example.com/once",
		OneTime: true,
	})
	require.NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := f.svc.Resolve(ctx, created.Code, "dev-a")
	require.NoError(err)
	require.NotEmpty(result.ScanID)

	got, err := f.store.Get(context.Background(), created.ID)
	require.NoError(err)
	assert.NotNil(got.ConsumedAt)

	last, err := f.store.LastForFaucet(context.Background(), created.ID)
	require.NoError(err)
	assert.Equal(result.ScanID, last.ScanID)
	assert.Equal(model.OutcomeResolved, last.Outcome)
}

func TestResolveActionFailureLeavesFaucetUnconsumed(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	// a stored faucet with a valid seal but no payload cannot produce an
	// action
	id := uuid.NewString()
	sealed, err := codec.Encode(codec.Envelope{
		FaucetID: id,
		OneTime:  true,
		Payload:  model.AuthToken{Subject: "user-1"},
	})
	require.NoError(err)
	signature := f.svc.sealer.Tag(sealed)
	require.NoError(f.store.Put(ctx, model.Faucet{
		ID:        id,
		CreatedAt: time.Now().UTC(),
		OneTime:   true,
		Sealed:    sealed,
		Signature: signature,
	}))
	code := codeEncoding.EncodeToString(append(sealed, signature...))

	_, err = f.svc.Resolve(ctx, code, "dev-a")
	require.Error(err)
	assert.NotErrorAs(err, &GoneErr{})

	got, err := f.store.Get(ctx, id)
	require.NoError(err)
	assert.Nil(got.ConsumedAt)
}

func TestResolveExpired(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, CreateRequest{
		Kind: "url_shortcut",
		URL:  "https://example.com/brief",
		TTL:  time.Minute,
	})
	require.NoError(err)

	// advance past the expiry
	f.svc.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	_, err = f.svc.Resolve(ctx, created.Code, "dev-a")
	assert.ErrorAs(err, &GoneErr{})
	assert.Equal(1.0, f.resolves(model.OutcomeExpired))
}

func TestResolveRevoked(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, CreateRequest{
		Kind: "url_shortcut",
		URL:  "https://example.com/pulled",
	})
	require.NoError(err)
	require.NoError(f.svc.Revoke(ctx, created.ID))

	// revoke is idempotent
	require.NoError(f.svc.Revoke(ctx, created.ID))

	_, err = f.svc.Resolve(ctx, created.Code, "dev-a")
	assert.ErrorAs(err, &GoneErr{})
	assert.Equal(1.0, f.resolves(model.OutcomeExpired))
}

func TestResolveUnknownFaucetMaskedAsExpired(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	f := newFixture(t)
	g := newFixture(t)
	ctx := context.Background()

	// a valid code from a different deployment sharing the secret: the
	// signature checks out but the faucet does not exist here
	created, err := g.svc.Create(ctx, CreateRequest{
		Kind: "url_shortcut",
		URL:  "https://example.com/elsewhere",
	})
	require.NoError(err)

	_, err = f.svc.Resolve(ctx, created.Code, "dev-a")
	assert.ErrorAs(err, &GoneErr{})
	assert.Equal(1.0, f.resolves(model.OutcomeExpired))
}

func TestResolveTampered(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, CreateRequest{
		Kind: "url_shortcut",
		URL:  "https://example.com/x",
	})
	require.NoError(err)

	raw, err := base64.RawURLEncoding.DecodeString(created.Code)
	require.NoError(err)
	raw[len(raw)-1] ^= 0x01
	tampered := base64.RawURLEncoding.EncodeToString(raw)

	_, err = f.svc.Resolve(ctx, tampered, "dev-a")
	assert.ErrorAs(err, &GoneErr{})
	assert.Equal(1.0, f.resolves(model.OutcomeSignatureInvalid))

	// the forgery is attributed to the real faucet in the scan log
	last, err := f.store.LastForFaucet(ctx, created.ID)
	require.NoError(err)
	assert.Equal(model.OutcomeSignatureInvalid, last.Outcome)
}

func TestResolveMalformed(t *testing.T) {
	tcs := []struct {
		Name string
		Code string
	}{
		{Name: "NotBase64", Code: "!!! definitely not base64 !!!"},
		{Name: "TooShort", Code: base64.RawURLEncoding.EncodeToString([]byte("tiny"))},
		{Name: "Garbage", Code: base64.RawURLEncoding.EncodeToString([]byte(strings.Repeat("x", 64)))},
	}
	for _, tc := range tcs {
		t.Run(tc.Name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)
			f := newFixture(t)
			ctx := context.Background()

			_, err := f.svc.Resolve(ctx, tc.Code, "dev-a")
			assert.ErrorAs(err, &GoneErr{})
			assert.Equal(1.0, f.resolves(model.OutcomeMalformed))

			// recorded under the synthetic bucket for anomaly monitoring
			last, err := f.store.LastForFaucet(ctx, model.MalformedBucket)
			require.NoError(err)
			assert.Equal(model.OutcomeMalformed, last.Outcome)
		})
	}
}

func TestRevokeUnknown(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t)
	assert.ErrorIs(f.svc.Revoke(context.Background(), "nope"), store.ErrFaucetNotFound)
}

func TestLineageAcrossOutcomes(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, CreateRequest{
		Kind:    "url_shortcut",
		URL:     "https://example.com/viral",
		OneTime: true,
	})
	require.NoError(err)

	winner, err := f.svc.Resolve(ctx, created.Code, "dev-a")
	require.NoError(err)

	// two more scans lose and chain onto the history
	_, err = f.svc.Resolve(ctx, created.Code, "dev-a")
	assert.Error(err)
	_, err = f.svc.Resolve(ctx, created.Code, "dev-b")
	assert.Error(err)

	last, err := f.store.LastForFaucet(ctx, created.ID)
	require.NoError(err)
	chain, err := f.svc.Lineage(ctx, last.ScanID)
	require.NoError(err)
	require.Len(chain, 3)
	assert.Equal(winner.ScanID, chain[0].ScanID)
	assert.Equal(model.OutcomeResolved, chain[0].Outcome)
	assert.Equal(model.OutcomeAlreadyConsumed, chain[1].Outcome)
	assert.Equal(model.OutcomeAlreadyConsumed, chain[2].Outcome)
}
