package http

import (
	"context"
	"net/http"
	"strings"

	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/middleware"
	"github.com/utafrali/storefront/pkg/validator"
)

type contextKey string

const (
	sessionIDKey contextKey = "session_id"
	customerKey  contextKey = "customer_id"
)

// RequireSession reads the X-Session-ID header that identifies the caller's
// cart and stores it in the request context. Requests without a well-formed
// session id are rejected.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sid := r.Header.Get(middleware.HeaderSessionID)
		if sid == "" {
			httputil.WriteError(w, r, apperrors.InvalidInput("X-Session-ID header is required"), nil)
			return
		}
		if err := validator.Var(sid, "opaque_id"); err != nil {
			httputil.WriteError(w, r, apperrors.InvalidInput("X-Session-ID header is malformed"), nil)
			return
		}
		ctx := context.WithValue(r.Context(), sessionIDKey, sid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IdentifyCustomer stores the caller's account id, if any, in the request
// context. The id comes from verified token claims. The X-User-ID header is
// only honoured when trustGatewayHeaders is set, i.e. when the service sits
// behind a gateway that authenticates callers and overwrites the header.
func IdentifyCustomer(trustGatewayHeaders bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			uid := middleware.UserIDFromContext(r.Context())
			if uid == "" && trustGatewayHeaders {
				uid = r.Header.Get(middleware.HeaderUserID)
			}
			if uid == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := context.WithValue(r.Context(), customerKey, uid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireCustomer rejects requests that IdentifyCustomer could not attach an
// account to. Mount it after IdentifyCustomer.
func RequireCustomer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if customerIDFromContext(r.Context()) == "" {
			httputil.WriteError(w, r, apperrors.Unauthorized("authentication required"), nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func sessionIDFromContext(ctx context.Context) string {
	sid, _ := ctx.Value(sessionIDKey).(string)
	return sid
}

func customerIDFromContext(ctx context.Context) string {
	uid, _ := ctx.Value(customerKey).(string)
	return uid
}

// ContentTypeJSON enforces that requests with a body have Content-Type: application/json.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 || r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/json") {
				httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.Response{
					Error: &httputil.ErrorResponse{Code: "UNSUPPORTED_MEDIA_TYPE", Message: "Content-Type must be application/json"},
				})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
