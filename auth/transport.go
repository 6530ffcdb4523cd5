package auth

// Outbound request interceptor that attaches bearer tokens

import (
	"context"
	"net/http"

	"github.com/FBakkensen/azure-status-web/logging"
	"github.com/FBakkensen/azure-status-web/metrics"
)

// TokenSource is what the interceptor needs from a Provider.
type TokenSource interface {
	IsAuthenticated() bool
	AccessToken(ctx context.Context) (Token, error)
}

// Transport is an http.RoundTripper that sets "Authorization: Bearer <token>"
// on outgoing requests.
//
// It fails open: when the token cannot be acquired the failure is logged and
// the request goes out without a token, so the downstream API answers 401
// instead of the call being cut short here. Unauthenticated sources are
// passed through untouched.
type Transport struct {
	// Base is the underlying transport. If nil, http.DefaultTransport is used.
	Base http.RoundTripper

	// Source provides access tokens.
	Source TokenSource

	// Metrics is optional.
	Metrics *metrics.Recorder
}

// NewTransport wraps base with bearer token injection.
func NewTransport(src TokenSource, base http.RoundTripper, rec *metrics.Recorder) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{Base: base, Source: src, Metrics: rec}
}

// Decorate returns the interceptor as a transport middleware.
func Decorate(src TokenSource, rec *metrics.Recorder) func(http.RoundTripper) http.RoundTripper {
	return func(next http.RoundTripper) http.RoundTripper {
		return NewTransport(src, next, rec)
	}
}

// RoundTrip implements http.RoundTripper. The caller's request is never
// modified; the header goes on a clone.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	if t.Source == nil || !t.Source.IsAuthenticated() {
		return base.RoundTrip(req)
	}

	tok, err := t.Source.AccessToken(req.Context())
	if err != nil {
		logging.Error("Failed to add Azure authentication token to HTTP request", "host", req.URL.Host, "path", req.URL.Path, "error", err.Error())
		t.Metrics.InterceptorFailOpen()
		return base.RoundTrip(req)
	}

	out := req.Clone(req.Context())
	out.Header.Set("Authorization", "Bearer "+tok.Value)
	return base.RoundTrip(out)
}
