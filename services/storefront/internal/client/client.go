// Package client talks to the catalog and coupon APIs that the storefront
// depends on.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/utafrali/storefront/pkg/httpclient"
)

// envelope is the {"data": ...} wrapper every downstream API responds with.
type envelope[T any] struct {
	Data T `json:"data"`
}

type base struct {
	doer    httpclient.Doer
	baseURL string
	service string
}

func newBase(doer httpclient.Doer, baseURL, service string) base {
	return base{doer: doer, baseURL: strings.TrimRight(baseURL, "/"), service: service}
}

// do sends a JSON request and decodes the enveloped response into out when
// out is non-nil. Non-2xx responses become AppErrors.
func (b base) do(ctx context.Context, method, path string, in, out any, headers map[string]string) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", b.service, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", b.service, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := b.doer.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", b.service, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return httpclient.ParseResponseError(resp, b.service)
	}
	defer func() { _ = resp.Body.Close() }()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", b.service, err)
	}
	return nil
}
