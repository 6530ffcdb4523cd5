package auth

// Access token acquisition with a single-slot, expiry-aware cache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/FBakkensen/azure-status-web/logging"
	"github.com/FBakkensen/azure-status-web/metrics"
)

const (
	// ManagementScope is the default scope of the Azure Resource Manager API.
	ManagementScope = "https://management.azure.com/.default"

	// DefaultSafetyMargin is how long before expiry a cached token stops being served.
	DefaultSafetyMargin = 5 * time.Minute

	flightKey = "token"
)

// slotState tags the cache slot
type slotState int

const (
	slotEmpty slotState = iota
	slotPresent
)

// tokenSlot holds at most one token. It is replaced wholesale, never edited.
type tokenSlot struct {
	state slotState
	token Token
}

// fresh reports whether the slot holds a token that outlives now+margin.
func (s tokenSlot) fresh(now time.Time, margin time.Duration) bool {
	return s.state == slotPresent && s.token.ExpiresAt.After(now.Add(margin))
}

type providerOptions struct {
	exchanger     Exchanger
	scope         string
	margin        time.Duration
	now           func() time.Time
	metrics       *metrics.Recorder
	backend       string
	authorityHost string
	tokenEndpoint string
	httpClient    *http.Client
}

// Option configures a Provider.
type Option func(*providerOptions)

// WithExchanger replaces the exchanger built from the credentials.
func WithExchanger(ex Exchanger) Option {
	return func(o *providerOptions) { o.exchanger = ex }
}

// withScope overrides ManagementScope.
func withScope(scope string) Option {
	return func(o *providerOptions) { o.scope = scope }
}

// withSafetyMargin overrides DefaultSafetyMargin.
func withSafetyMargin(d time.Duration) Option {
	return func(o *providerOptions) { o.margin = d }
}

// WithClock sets the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(o *providerOptions) { o.now = now }
}

// WithMetrics records cache hits and exchange outcomes.
func WithMetrics(r *metrics.Recorder) Option {
	return func(o *providerOptions) { o.metrics = r }
}

// WithBackend selects BackendAzureIdentity (default) or BackendOAuth2.
func WithBackend(name string) Option {
	return func(o *providerOptions) { o.backend = name }
}

// WithAuthorityHost points the exchange at a sovereign or private cloud login host.
func WithAuthorityHost(host string) Option {
	return func(o *providerOptions) { o.authorityHost = host }
}

// WithTokenEndpoint sets an explicit token URL; it implies BackendOAuth2.
func WithTokenEndpoint(url string) Option {
	return func(o *providerOptions) { o.tokenEndpoint = url }
}

// WithHTTPClient sets the client used by BackendOAuth2.
func WithHTTPClient(c *http.Client) Option {
	return func(o *providerOptions) { o.httpClient = c }
}

// Provider owns the credentials and the cached token. It is safe for
// concurrent use; concurrent cache misses share a single exchange.
type Provider struct {
	creds         Credentials
	authenticated bool
	backend       string
	exchanger     Exchanger
	scope         string
	margin        time.Duration
	now           func() time.Time
	metrics       *metrics.Recorder

	mu     sync.RWMutex
	slot   tokenSlot
	flight singleflight.Group
}

// NewProvider validates the credentials once. Invalid credentials, or an
// exchanger that cannot be built from them, leave the Provider permanently
// unauthenticated.
func NewProvider(creds Credentials, opts ...Option) *Provider {
	o := providerOptions{
		scope:   ManagementScope,
		margin:  DefaultSafetyMargin,
		now:     time.Now,
		backend: BackendAzureIdentity,
	}
	for _, opt := range opts {
		opt(&o)
	}

	p := &Provider{
		creds:   creds,
		scope:   o.scope,
		margin:  o.margin,
		now:     o.now,
		metrics: o.metrics,
	}

	if !creds.Valid() {
		logging.Warn("Azure credentials are not properly configured. Check environment variables or configuration.")
		return p
	}

	ex, backend := o.exchanger, "custom"
	if ex == nil {
		var err error
		ex, backend, err = newExchanger(creds, o)
		if err != nil {
			logging.Error("Failed to initialize Azure authentication", "backend", backend, "error", err.Error())
			return p
		}
	}

	p.exchanger = ex
	p.backend = backend
	p.authenticated = true
	logging.Info("Azure authentication initialized", "tenant", creds.TenantID, "client", creds.ClientID, "backend", backend, "scope", p.scope)
	return p
}

// IsAuthenticated reports whether credentials were usable at construction.
func (p *Provider) IsAuthenticated() bool {
	return p.authenticated
}

// TenantID is exposed for diagnostics; the secret never leaves the Provider.
func (p *Provider) TenantID() string {
	return p.creds.TenantID
}

// Scope returns the scope tokens are requested for.
func (p *Provider) Scope() string {
	return p.scope
}

// Backend names the exchanger in use ("" when unauthenticated).
func (p *Provider) Backend() string {
	return p.backend
}

// AccessToken returns the cached token while it outlives the safety margin,
// otherwise exchanges for a new one. A failed exchange returns an error
// wrapping ErrExchangeFailed and leaves the previous token in place; the
// stale token is not served.
func (p *Provider) AccessToken(ctx context.Context) (Token, error) {
	if !p.authenticated {
		return Token{}, ErrAuthNotConfigured
	}

	if tok, ok := p.cached(); ok {
		p.metrics.TokenCacheHit()
		return tok, nil
	}

	// The exchange ignores caller cancellation; each caller stops waiting on its own ctx
	flightCtx := context.WithoutCancel(ctx)
	ch := p.flight.DoChan(flightKey, func() (any, error) {
		// Another flight may have filled the slot while we queued
		if tok, ok := p.cached(); ok {
			return tok, nil
		}
		return p.exchange(flightCtx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return Token{}, res.Err
		}
		if res.Shared {
			logging.Debug("Shared in-flight token exchange")
		}
		return res.Val.(Token), nil
	case <-ctx.Done():
		return Token{}, fmt.Errorf("%w: %w", ErrExchangeFailed, ctx.Err())
	}
}

func (p *Provider) cached() (Token, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.slot.fresh(p.now(), p.margin) {
		return p.slot.token, true
	}
	return Token{}, false
}

func (p *Provider) exchange(ctx context.Context) (Token, error) {
	logging.Debug("Requesting access token", "scope", p.scope, "backend", p.backend)
	tok, err := p.exchanger.Exchange(ctx, p.scope)
	if err == nil && tok.Value == "" {
		err = errors.New("identity provider returned an empty access token")
	}
	if err != nil {
		p.metrics.TokenExchange(metrics.ResultFailure)
		logging.Error("Failed to obtain Azure access token", "scope", p.scope, "error", err.Error())
		return Token{}, fmt.Errorf("%w: %w", ErrExchangeFailed, err)
	}

	p.mu.Lock()
	p.slot = tokenSlot{state: slotPresent, token: tok}
	p.mu.Unlock()

	p.metrics.TokenExchange(metrics.ResultSuccess)
	logging.Debug("Successfully obtained Azure access token", "expires", tok.ExpiresAt.Format(time.RFC3339))
	return tok, nil
}
