package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// envelope mirrors the error half of the httputil response envelope.
type envelope struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ParseResponseError consumes and closes the body of a non-2xx response and
// maps it to an AppError carrying the downstream code and message.
func ParseResponseError(resp *http.Response, service string) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s returned status %d (read body: %w)", service, resp.StatusCode, err)
	}

	code, message := "", string(body)
	var env envelope
	if json.Unmarshal(body, &env) == nil && env.Error != nil {
		code, message = env.Error.Code, env.Error.Message
	}
	return mapStatus(resp.StatusCode, code, fmt.Sprintf("%s: %s", service, message))
}

func mapStatus(status int, code, message string) error {
	var base *apperrors.AppError
	switch {
	case status == http.StatusNotFound:
		base = &apperrors.AppError{Code: "NOT_FOUND", Status: status, Err: apperrors.ErrNotFound}
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		base = apperrors.InvalidInput("")
	case status == http.StatusUnauthorized:
		base = apperrors.Unauthorized("")
	case status == http.StatusForbidden:
		base = apperrors.Forbidden("")
	case status == http.StatusConflict:
		base = apperrors.Conflict("")
	case status == http.StatusGone:
		base = apperrors.Gone("")
	case status == http.StatusTooManyRequests:
		base = apperrors.RateLimited("")
	case status >= 500:
		base = apperrors.ServiceUnavailable("")
	default:
		base = &apperrors.AppError{Code: "UPSTREAM_ERROR", Status: http.StatusBadGateway, Err: apperrors.ErrServiceUnavail}
	}
	if code != "" {
		base.Code = code
	}
	base.Message = message
	return base
}
