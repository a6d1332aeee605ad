// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package faucet

import (
	"context"

	"github.com/go-kit/kit/endpoint"
)

func newCreateEndpoint(s Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		createRequest := request.(*createFaucetRequest)
		result, err := s.Create(ctx, createRequest.body)
		if err != nil {
			return nil, err
		}
		return &result, nil
	}
}

func newResolveEndpoint(s Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		resolveRequest := request.(*resolveRequest)
		result, err := s.Resolve(ctx, resolveRequest.code, resolveRequest.device)
		if err != nil {
			return nil, err
		}
		return &result, nil
	}
}

func newRevokeEndpoint(s Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		revokeRequest := request.(*revokeFaucetRequest)
		err := s.Revoke(ctx, revokeRequest.id)
		if err != nil {
			return nil, err
		}
		return &revokeFaucetResponse{}, nil
	}
}

func newLineageEndpoint(s Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		lineageRequest := request.(*lineageRequest)
		chain, err := s.Lineage(ctx, lineageRequest.scanID)
		if err != nil {
			return nil, err
		}
		return chain, nil
	}
}
