// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package panelapi

import (
	"context"
	"io"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// HTTPClient abstracts the HTTP calls made by Client so tests can replace
// the network.
//
// The default implementation injects the trace context of ctx into every
// request using the global propagator.
type HTTPClient interface {
	Get(ctx context.Context, url string) (*http.Response, error)
	PostWithHeaders(ctx context.Context, url, contentType string, body io.Reader, headers map[string]string) (*http.Response, error)
}

type defaultHTTPClient struct {
	client *http.Client
}

// NewHTTPClient wraps an *http.Client.
func NewHTTPClient(client *http.Client) HTTPClient {
	return &defaultHTTPClient{client: client}
}

func (c *defaultHTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	injectTraceContext(ctx, req)
	return c.client.Do(req)
}

func (c *defaultHTTPClient) PostWithHeaders(ctx context.Context, url, contentType string, body io.Reader, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	injectTraceContext(ctx, req)
	return c.client.Do(req)
}

func injectTraceContext(ctx context.Context, req *http.Request) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
}

var _ HTTPClient = (*defaultHTTPClient)(nil)
