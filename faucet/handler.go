// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package faucet

import (
	"net/http"

	kithttp "github.com/go-kit/kit/transport/http"
)

type Handler http.Handler

func newCreateFaucetHandler(s Service, config *transportConfig) Handler {
	return kithttp.NewServer(
		newCreateEndpoint(s),
		createFaucetRequestDecoder(config),
		encodeCreateFaucetResponse,
		kithttp.ServerErrorEncoder(encodeError),
	)
}

func newResolveHandler(s Service) Handler {
	return kithttp.NewServer(
		newResolveEndpoint(s),
		resolveRequestDecoder,
		encodeJSONResponse,
		kithttp.ServerErrorEncoder(encodeError),
	)
}

func newRevokeFaucetHandler(s Service, config *transportConfig) Handler {
	return kithttp.NewServer(
		newRevokeEndpoint(s),
		revokeFaucetRequestDecoder(config),
		encodeRevokeFaucetResponse,
		kithttp.ServerErrorEncoder(encodeError),
	)
}

func newLineageHandler(s Service, config *transportConfig) Handler {
	return kithttp.NewServer(
		newLineageEndpoint(s),
		lineageRequestDecoder(config),
		encodeJSONResponse,
		kithttp.ServerErrorEncoder(encodeError),
	)
}
