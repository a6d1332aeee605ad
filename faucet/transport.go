// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package faucet

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/gorilla/mux"
	"github.com/xmidt-org/arethusa/lineage"
	"github.com/xmidt-org/arethusa/store"
)

const (
	codeVarKey = "code"
	idVarKey   = "id"
)

const (
	codeVarMissingMsg = "{code} URL path parameter missing"
	idVarMissingMsg   = "{id} URL path parameter missing"
)

// Request and Response Headers
const (
	AdminTokenHeaderKey = "X-Arethusa-Admin-Token"
	ErrorHeaderKey      = "X-Arethusa-Error"
)

// ErrCasting indicates there was a middleware wiring mistake with the go-kit style
// encoders.
var ErrCasting = errors.New("casting error due to middleware wiring mistake")

const maxCreateBodyBytes = 1 << 16

type transportConfig struct {
	AdminToken string
}

type createFaucetRequest struct {
	body CreateRequest
}

type resolveRequest struct {
	code   string
	device string
}

type revokeFaucetRequest struct {
	id string
}

type revokeFaucetResponse struct{}

type lineageRequest struct {
	scanID string
}

func requireAdmin(config *transportConfig, r *http.Request) error {
	if config.AdminToken == "" || config.AdminToken != r.Header.Get(AdminTokenHeaderKey) {
		return ForbiddenErr{Message: "admin token required"}
	}
	return nil
}

func createFaucetRequestDecoder(config *transportConfig) kithttp.DecodeRequestFunc {
	return func(ctx context.Context, r *http.Request) (interface{}, error) {
		if err := requireAdmin(config, r); err != nil {
			return nil, err
		}
		data, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxCreateBodyBytes))
		if err != nil {
			return nil, store.BadRequestErr{Message: "failed to read body"}
		}
		var body CreateRequest
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, store.BadRequestErr{Message: "failed to unmarshal json"}
		}
		return &createFaucetRequest{body: body}, nil
	}
}

func resolveRequestDecoder(ctx context.Context, r *http.Request) (interface{}, error) {
	vars := mux.Vars(r)
	code, ok := vars[codeVarKey]
	if !ok {
		return nil, store.BadRequestErr{Message: codeVarMissingMsg}
	}
	return &resolveRequest{
		code:   code,
		device: Fingerprint(r),
	}, nil
}

func revokeFaucetRequestDecoder(config *transportConfig) kithttp.DecodeRequestFunc {
	return func(ctx context.Context, r *http.Request) (interface{}, error) {
		if err := requireAdmin(config, r); err != nil {
			return nil, err
		}
		vars := mux.Vars(r)
		id, ok := vars[idVarKey]
		if !ok {
			return nil, store.BadRequestErr{Message: idVarMissingMsg}
		}
		return &revokeFaucetRequest{id: id}, nil
	}
}

func lineageRequestDecoder(config *transportConfig) kithttp.DecodeRequestFunc {
	return func(ctx context.Context, r *http.Request) (interface{}, error) {
		if err := requireAdmin(config, r); err != nil {
			return nil, err
		}
		vars := mux.Vars(r)
		id, ok := vars[idVarKey]
		if !ok {
			return nil, store.BadRequestErr{Message: idVarMissingMsg}
		}
		return &lineageRequest{scanID: id}, nil
	}
}

func encodeCreateFaucetResponse(ctx context.Context, rw http.ResponseWriter, response interface{}) error {
	result, ok := response.(*CreateResult)
	if !ok {
		return ErrCasting
	}
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	rw.Header().Add("Content-Type", "application/json")
	rw.WriteHeader(http.StatusCreated)
	rw.Write(data)
	return nil
}

func encodeJSONResponse(ctx context.Context, rw http.ResponseWriter, response interface{}) error {
	data, err := json.Marshal(response)
	if err != nil {
		return err
	}
	rw.Header().Add("Content-Type", "application/json")
	rw.Write(data)
	return nil
}

func encodeRevokeFaucetResponse(ctx context.Context, rw http.ResponseWriter, response interface{}) error {
	if _, ok := response.(*revokeFaucetResponse); !ok {
		return ErrCasting
	}
	rw.WriteHeader(http.StatusNoContent)
	return nil
}

func encodeError(ctx context.Context, err error, w http.ResponseWriter) {
	w.Header().Set(ErrorHeaderKey, err.Error())
	if headerer, ok := err.(kithttp.Headerer); ok {
		for k, values := range headerer.Headers() {
			for _, v := range values {
				w.Header().Add(k, v)
			}
		}
	}
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrFaucetNotFound), errors.Is(err, store.ErrScanNotFound):
		code = http.StatusNotFound
	case errors.Is(err, lineage.ErrCorruptChain):
		code = http.StatusConflict
	}
	if sc, ok := err.(kithttp.StatusCoder); ok {
		code = sc.StatusCode()
	}
	w.WriteHeader(code)
}
