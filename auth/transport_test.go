package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/FBakkensen/azure-status-web/logging"
	"github.com/FBakkensen/azure-status-web/metrics"
)

// stubSource is a TokenSource with fixed answers
type stubSource struct {
	authenticated bool
	token         Token
	err           error
	calls         atomic.Int32
}

func (s *stubSource) IsAuthenticated() bool { return s.authenticated }

func (s *stubSource) AccessToken(context.Context) (Token, error) {
	s.calls.Add(1)
	return s.token, s.err
}

// headerEcho records the Authorization header of every request it sees
func headerEcho(t *testing.T) (*httptest.Server, *atomic.Value, *atomic.Int32) {
	t.Helper()
	var seen atomic.Value
	var hits atomic.Int32
	seen.Store("")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		seen.Store(r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv, &seen, &hits
}

func TestTransport_AttachesBearerToken(t *testing.T) {
	srv, seen, _ := headerEcho(t)
	src := &stubSource{authenticated: true, token: Token{Value: "abc", ExpiresAt: time.Now().Add(time.Hour)}}
	client := &http.Client{Transport: NewTransport(src, srv.Client().Transport, nil)}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/subscriptions", nil)
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if got := seen.Load().(string); got != "Bearer abc" {
		t.Errorf("expected Authorization %q, got %q", "Bearer abc", got)
	}
	if req.Header.Get("Authorization") != "" {
		t.Error("caller's request must not be modified")
	}
	if req.Header.Get("Accept") != "application/json" {
		t.Error("other headers must be left alone")
	}
}

func TestTransport_FailOpenForwardsWithoutToken(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logging.UseCore(core, logging.LevelDebug)
	defer logging.UseCore(zapcore.NewNopCore(), logging.LevelInfo)

	srv, seen, hits := headerEcho(t)
	rec := metrics.New()
	src := &stubSource{authenticated: true, err: errors.New("token exchange failed: network unreachable")}
	client := &http.Client{Transport: NewTransport(src, srv.Client().Transport, rec)}

	resp, err := client.Get(srv.URL + "/subscriptions/x/resourcegroups")
	if err != nil {
		t.Fatalf("request should still be forwarded, got %v", err)
	}
	resp.Body.Close()

	if hits.Load() != 1 {
		t.Fatalf("expected the request to reach the server once, got %d", hits.Load())
	}
	if got := seen.Load().(string); got != "" {
		t.Errorf("expected no Authorization header, got %q", got)
	}
	if logs.FilterMessage("Failed to add Azure authentication token to HTTP request").Len() != 1 {
		t.Errorf("expected the failure to be logged, got %v", logs.All())
	}
	if n, _ := testutil.GatherAndCount(rec.Registry(), "azure_status_web_interceptor_fail_open_total"); n != 1 {
		t.Errorf("expected fail-open counter to be exported")
	}
}

func TestTransport_FailOpenKeepsCallerHeader(t *testing.T) {
	srv, seen, _ := headerEcho(t)
	src := &stubSource{authenticated: true, err: ErrExchangeFailed}
	client := &http.Client{Transport: NewTransport(src, srv.Client().Transport, nil)}

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	req.Header.Set("Authorization", "Bearer caller-supplied")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if got := seen.Load().(string); got != "Bearer caller-supplied" {
		t.Errorf("expected request forwarded unchanged, got %q", got)
	}
}

func TestTransport_UnauthenticatedPassesThrough(t *testing.T) {
	srv, seen, hits := headerEcho(t)
	src := &stubSource{authenticated: false}
	client := &http.Client{Transport: NewTransport(src, srv.Client().Transport, nil)}

	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if hits.Load() != 1 {
		t.Errorf("expected request to be forwarded")
	}
	if seen.Load().(string) != "" {
		t.Errorf("expected no Authorization header")
	}
	if src.calls.Load() != 0 {
		t.Errorf("AccessToken must not be called for an unauthenticated source")
	}
}

func TestTransport_NilBaseUsesDefault(t *testing.T) {
	tr := &Transport{Source: &stubSource{}}
	srv, _, hits := headerEcho(t)

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := tr.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip failed: %v", err)
	}
	resp.Body.Close()
	if hits.Load() != 1 {
		t.Errorf("expected request through http.DefaultTransport")
	}
}

func TestDecorate_ComposesWithProvider(t *testing.T) {
	srv, seen, _ := headerEcho(t)
	ex := ExchangerFunc(func(context.Context, string) (Token, error) {
		return Token{Value: "from-provider", ExpiresAt: time.Now().Add(time.Hour)}, nil
	})
	p := NewProvider(validCreds, WithExchanger(ex))

	client := &http.Client{Transport: Decorate(p, nil)(srv.Client().Transport)}
	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if got := seen.Load().(string); got != "Bearer from-provider" {
		t.Errorf("expected provider token, got %q", got)
	}
}
