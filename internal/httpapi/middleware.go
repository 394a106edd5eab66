package httpapi

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/obyte-wallet/walletd/internal/session"
	"github.com/obyte-wallet/walletd/internal/walleterr"
)

type ctxKey int

const identityCtxKey ctxKey = iota

// identityFromContext returns the caller authenticated by requireAuth.
func identityFromContext(r *http.Request) *session.Identity {
	id, _ := r.Context().Value(identityCtxKey).(*session.Identity)
	return id
}

// clientVersionMiddleware enforces spec.md §3's minimum supported
// client-version floor from the x-client-version header.
func (s *Server) clientVersionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.sessions.CheckClientVersion(r.Header.Get("x-client-version")); err != nil {
			writeError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAuth resolves the caller from x-identity/x-signature or
// x-session, verifying the signature against "method|url|body" per
// spec.md §4.1, and binds the resulting Identity into the request
// context. x-wallet-id lets support staff operate on an explicit wallet.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		overrideWallet := r.Header.Get("x-wallet-id")

		var identity *session.Identity
		var err error
		if tok := r.Header.Get("x-session"); tok != "" {
			identity, err = s.sessions.AuthBySession(tok, overrideWallet)
		} else {
			copayerID := r.Header.Get("x-identity")
			sig := r.Header.Get("x-signature")
			if copayerID == "" || sig == "" {
				writeError(w, walleterr.NotAuthorizedf("missing credentials"))
				return
			}
			body, readErr := io.ReadAll(r.Body)
			if readErr != nil {
				writeError(w, walleterr.New(walleterr.NotAuthorized, "could not read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			msg := session.CanonicalMessage(r.Method, r.URL.RequestURI(), body)
			identity, err = s.sessions.AuthBySignature(copayerID, string(msg), sig, overrideWallet)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		ctx := context.WithValue(r.Context(), identityCtxKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
