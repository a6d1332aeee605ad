// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package faucet

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/xmidt-org/arethusa/codec"
	"github.com/xmidt-org/arethusa/lineage"
	"github.com/xmidt-org/arethusa/model"
	"github.com/xmidt-org/arethusa/seal"
	"github.com/xmidt-org/arethusa/store"
	"go.uber.org/zap"
)

// CreateRequest carries the caller-supplied faucet definition. Kind selects
// which of the payload field groups is consulted.
type CreateRequest struct {
	Kind    string        `json:"kind" validate:"required"`
	TTL     time.Duration `json:"ttl,omitempty"`
	OneTime bool          `json:"one_time,omitempty"`

	Subject   string `json:"subject,omitempty"`
	Scope     string `json:"scope,omitempty"`
	ContentID string `json:"content_id,omitempty"`
	Revision  uint32 `json:"revision,omitempty"`
	URL       string `json:"url,omitempty" validate:"omitempty,url"`
	Campaign  string `json:"campaign,omitempty"`
}

type CreateResult struct {
	ID        string     `json:"id"`
	Code      string     `json:"code"`
	Kind      string     `json:"kind"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	OneTime   bool       `json:"one_time"`
}

// Action is the target of a successful resolve: exactly one field group is
// populated depending on the faucet kind.
type Action struct {
	Type      string `json:"type"`
	Token     string `json:"token,omitempty"`
	URL       string `json:"url,omitempty"`
	Campaign  string `json:"campaign,omitempty"`
	ContentID string `json:"content_id,omitempty"`
	Revision  uint32 `json:"revision,omitempty"`
}

type ResolveResult struct {
	ScanID string `json:"scan_id"`
	Action Action `json:"action"`
}

// Service is the faucet orchestrator.
type Service interface {
	Create(ctx context.Context, req CreateRequest) (CreateResult, error)
	Resolve(ctx context.Context, code, device string) (ResolveResult, error)
	Revoke(ctx context.Context, id string) error
	Lineage(ctx context.Context, scanID string) ([]model.ScanEvent, error)
}

type Config struct {
	// Secret seals faucet payloads. Rotating it invalidates every
	// outstanding code.
	Secret string

	// MaxTTL caps caller-supplied expiries.
	MaxTTL time.Duration

	Token TokenConfig
}

const defaultMaxTTL = 365 * 24 * time.Hour

// codeEncoding is the url-safe, unpadded alphabet QR codes are rendered
// with.
var codeEncoding = base64.RawURLEncoding

type service struct {
	faucets  store.FaucetDAO
	recorder *lineage.Recorder
	resolver *lineage.Resolver
	sealer   *seal.Sealer
	minter   *minter
	validate *validator.Validate
	measures Measures
	logger   *zap.Logger
	maxTTL   time.Duration

	now func() time.Time
}

func NewService(config Config, s store.S, recorder *lineage.Recorder, resolver *lineage.Resolver, measures Measures, logger *zap.Logger) (Service, error) {
	sealer, err := seal.New([]byte(config.Secret))
	if err != nil {
		return nil, err
	}
	m, err := newMinter(config.Token)
	if err != nil {
		return nil, err
	}
	if config.MaxTTL <= 0 {
		config.MaxTTL = defaultMaxTTL
	}
	return &service{
		faucets:  s,
		recorder: recorder,
		resolver: resolver,
		sealer:   sealer,
		minter:   m,
		validate: validator.New(),
		measures: measures,
		logger:   logger,
		maxTTL:   config.MaxTTL,
		now:      time.Now,
	}, nil
}

func (s *service) Create(ctx context.Context, req CreateRequest) (CreateResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return CreateResult{}, store.BadRequestErr{Message: err.Error()}
	}
	kind, ok := model.ParsePayloadKind(req.Kind)
	if !ok {
		return CreateResult{}, store.BadRequestErr{Message: fmt.Sprintf("unknown kind %q", req.Kind)}
	}
	payload, err := buildPayload(kind, req)
	if err != nil {
		return CreateResult{}, err
	}
	if req.TTL < 0 || req.TTL > s.maxTTL {
		return CreateResult{}, store.BadRequestErr{Message: fmt.Sprintf("ttl must be between 0 and %s", s.maxTTL)}
	}
	if kind == model.KindAuthToken && req.TTL == 0 {
		return CreateResult{}, store.BadRequestErr{Message: "auth_token faucets must expire"}
	}

	now := s.now().UTC()
	var expires *time.Time
	if req.TTL > 0 {
		e := now.Add(req.TTL)
		expires = &e
	}

	id := uuid.NewString()
	sealed, err := codec.Encode(codec.Envelope{
		FaucetID:  id,
		ExpiresAt: expires,
		OneTime:   req.OneTime,
		Payload:   payload,
	})
	if err != nil {
		return CreateResult{}, store.BadRequestErr{Message: err.Error()}
	}
	signature := s.sealer.Tag(sealed)

	err = s.faucets.Put(ctx, model.Faucet{
		ID:        id,
		Payload:   payload,
		CreatedAt: now,
		ExpiresAt: expires,
		OneTime:   req.OneTime,
		Sealed:    sealed,
		Signature: signature,
	})
	if err != nil {
		return CreateResult{}, err
	}

	s.measures.Creates.With(prometheus.Labels{KindLabel: kind.String()}).Add(1.0)
	s.logger.Info("faucet created",
		zap.String("faucetID", id),
		zap.String("kind", kind.String()),
		zap.Bool("oneTime", req.OneTime))

	return CreateResult{
		ID:        id,
		Code:      codeEncoding.EncodeToString(append(sealed, signature...)),
		Kind:      kind.String(),
		ExpiresAt: expires,
		OneTime:   req.OneTime,
	}, nil
}

func buildPayload(kind model.PayloadKind, req CreateRequest) (model.Payload, error) {
	switch kind {
	case model.KindAuthToken:
		if req.Subject == "" {
			return nil, store.BadRequestErr{Message: "subject is required for auth_token faucets"}
		}
		return model.AuthToken{Subject: req.Subject, Scope: req.Scope}, nil
	case model.KindContentReference:
		if req.ContentID == "" {
			return nil, store.BadRequestErr{Message: "content_id is required for content_reference faucets"}
		}
		return model.ContentReference{ContentID: req.ContentID, Revision: req.Revision}, nil
	case model.KindTrackingLink:
		if req.URL == "" {
			return nil, store.BadRequestErr{Message: "url is required for tracking_link faucets"}
		}
		return model.TrackingLink{URL: req.URL, Campaign: req.Campaign}, nil
	case model.KindURLShortcut:
		if req.URL == "" {
			return nil, store.BadRequestErr{Message: "url is required for url_shortcut faucets"}
		}
		return model.URLShortcut{URL: req.URL}, nil
	}
	return nil, store.BadRequestErr{Message: "unknown kind"}
}

// Resolve is the scan path. Every attempt, valid or not, lands in the scan
// log; only a resolved outcome reveals anything to the caller.
func (s *service) Resolve(ctx context.Context, code, device string) (ResolveResult, error) {
	// a resolve that starts runs to completion: the consumption CAS and
	// its scan record must land even if the scanner disconnects mid-flight
	ctx = context.WithoutCancel(ctx)

	raw, err := codeEncoding.DecodeString(code)
	if err != nil {
		return s.reject(ctx, model.MalformedBucket, device, model.OutcomeMalformed)
	}

	sealed, tag, err := s.sealer.Open(raw)
	if err != nil {
		// a bad tag with a decodable body is a forgery against a real
		// faucet; anything less coherent goes to the malformed bucket
		if errors.Is(err, seal.ErrInvalidSignature) {
			if env, decErr := codec.Decode(raw[:len(raw)-seal.TagSize]); decErr == nil {
				return s.reject(ctx, env.FaucetID, device, model.OutcomeSignatureInvalid)
			}
		}
		return s.reject(ctx, model.MalformedBucket, device, model.OutcomeMalformed)
	}

	env, err := codec.Decode(sealed)
	if err != nil {
		return s.reject(ctx, model.MalformedBucket, device, model.OutcomeMalformed)
	}

	f, err := s.faucets.Get(ctx, env.FaucetID)
	if errors.Is(err, store.ErrFaucetNotFound) {
		// unknown ids are masked as expired so valid ids cannot be probed
		return s.reject(ctx, env.FaucetID, device, model.OutcomeExpired)
	}
	if err != nil {
		return ResolveResult{}, err
	}

	// the presented tag must match the signature persisted at creation
	if !seal.Matches(tag, f.Signature) {
		return s.reject(ctx, f.ID, device, model.OutcomeSignatureInvalid)
	}

	now := s.now().UTC()
	if !f.Active(now) {
		outcome := model.OutcomeExpired
		if f.ConsumedAt != nil {
			outcome = model.OutcomeAlreadyConsumed
		}
		return s.reject(ctx, f.ID, device, outcome)
	}

	// build the action before the consumption CAS so a minting failure
	// cannot burn a one-time faucet
	action, err := s.buildAction(f, now)
	if err != nil {
		return ResolveResult{}, err
	}

	if f.OneTime {
		err = s.faucets.MarkConsumed(ctx, f.ID, now)
		if errors.Is(err, store.ErrAlreadyConsumed) {
			return s.reject(ctx, f.ID, device, model.OutcomeAlreadyConsumed)
		}
		if err != nil {
			return ResolveResult{}, err
		}
	}

	ev, err := s.record(ctx, f.ID, device, model.OutcomeResolved)
	if err != nil {
		return ResolveResult{}, err
	}

	return ResolveResult{ScanID: ev.ScanID, Action: action}, nil
}

func (s *service) buildAction(f model.Faucet, now time.Time) (Action, error) {
	switch payload := f.Payload.(type) {
	case model.AuthToken:
		token, err := s.minter.Mint(payload.Subject, payload.Scope, now, f.ExpiresAt)
		if err != nil {
			return Action{}, err
		}
		return Action{Type: "token", Token: token}, nil
	case model.ContentReference:
		return Action{Type: "content", ContentID: payload.ContentID, Revision: payload.Revision}, nil
	case model.TrackingLink:
		return Action{Type: "redirect", URL: payload.URL, Campaign: payload.Campaign}, nil
	case model.URLShortcut:
		return Action{Type: "redirect", URL: payload.URL}, nil
	}
	return Action{}, fmt.Errorf("faucet %s has no payload", f.ID)
}

// reject records the failed attempt and collapses the outcome to the
// uniform gone error.
func (s *service) reject(ctx context.Context, faucetID, device string, outcome model.Outcome) (ResolveResult, error) {
	if _, err := s.record(ctx, faucetID, device, outcome); err != nil {
		// the caller still gets the uniform answer; losing a reject event
		// costs only anomaly visibility
		s.logger.Error("failed to record scan",
			zap.String("faucetID", faucetID),
			zap.String("outcome", string(outcome)),
			zap.Error(err))
	}
	return ResolveResult{}, GoneErr{}
}

func (s *service) record(ctx context.Context, faucetID, device string, outcome model.Outcome) (model.ScanEvent, error) {
	ev, err := s.recorder.Record(ctx, faucetID, device, outcome)
	if err != nil {
		return model.ScanEvent{}, err
	}
	s.measures.Resolves.With(prometheus.Labels{store.OutcomeLabel: string(outcome)}).Add(1.0)
	return ev, nil
}

func (s *service) Revoke(ctx context.Context, id string) error {
	err := s.faucets.Revoke(ctx, id, s.now().UTC())
	if err == nil {
		s.logger.Info("faucet revoked", zap.String("faucetID", id))
	}
	return err
}

func (s *service) Lineage(ctx context.Context, scanID string) ([]model.ScanEvent, error) {
	return s.resolver.Chain(ctx, scanID)
}
