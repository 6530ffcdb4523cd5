package management

// Azure Resource Manager client for subscriptions and resource groups

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/cloud"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"

	"github.com/FBakkensen/azure-status-web/auth"
	"github.com/FBakkensen/azure-status-web/debugdump"
	"github.com/FBakkensen/azure-status-web/metrics"
)

// DefaultEndpoint is the public cloud Resource Manager endpoint
const DefaultEndpoint = "https://management.azure.com/"

// Metric operation labels
const (
	OpListSubscriptions  = "list_subscriptions"
	OpListResourceGroups = "list_resource_groups"
)

type clientOptions struct {
	endpoint string
	base     http.RoundTripper
	capture  debugdump.Options
	metrics  *metrics.Recorder
}

// Option configures a Client
type Option func(*clientOptions)

// WithEndpoint points the client at another Resource Manager endpoint
func WithEndpoint(endpoint string) Option {
	return func(o *clientOptions) { o.endpoint = endpoint }
}

// WithBaseTransport sets the transport under the auth and capture layers
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(o *clientOptions) { o.base = rt }
}

// WithRawCapture turns on YAML capture of every management exchange
func WithRawCapture(opts debugdump.Options) Option {
	return func(o *clientOptions) { o.capture = opts }
}

// WithMetrics records management call outcomes
func WithMetrics(rec *metrics.Recorder) Option {
	return func(o *clientOptions) { o.metrics = rec }
}

// Client lists subscriptions through the ARM SDK and resource groups through
// plain REST. Both paths draw tokens from the same TokenSource.
type Client struct {
	src      auth.TokenSource
	endpoint *url.URL
	rest     *http.Client
	arm      *arm.ClientOptions
	cred     azcore.TokenCredential
	metrics  *metrics.Recorder
}

// NewClient wires the REST chain Accept-JSON → auth interceptor → raw capture → base
// and the SDK options sharing the same base transport.
func NewClient(src auth.TokenSource, opts ...Option) (*Client, error) {
	if src == nil {
		return nil, fmt.Errorf("token source is nil")
	}
	o := clientOptions{endpoint: DefaultEndpoint}
	for _, opt := range opts {
		opt(&o)
	}

	endpoint, err := parseEndpoint(o.endpoint)
	if err != nil {
		return nil, err
	}

	base := o.base
	if base == nil {
		base = http.DefaultTransport
	}
	captured := debugdump.NewTransport(base, o.capture)

	withToken := auth.Decorate(src, o.metrics)
	rest := &http.Client{
		Transport: acceptJSON{next: withToken(captured)},
	}

	armOpts := &arm.ClientOptions{
		ClientOptions: policy.ClientOptions{
			Cloud: cloud.Configuration{
				ActiveDirectoryAuthorityHost: cloud.AzurePublic.ActiveDirectoryAuthorityHost,
				Services: map[cloud.ServiceName]cloud.ServiceConfiguration{
					cloud.ResourceManager: {
						Endpoint: strings.TrimSuffix(endpoint.String(), "/"),
						Audience: "https://management.azure.com",
					},
				},
			},
			Transport: &http.Client{Transport: captured},
			// Downstream errors are surfaced, not retried
			Retry: policy.RetryOptions{MaxRetries: -1},
		},
		DisableRPRegistration: true,
	}

	return &Client{
		src:      src,
		endpoint: endpoint,
		rest:     rest,
		arm:      armOpts,
		cred:     &providerCredential{src: src},
		metrics:  o.metrics,
	}, nil
}

// Endpoint returns the Resource Manager base URL
func (c *Client) Endpoint() string {
	return c.endpoint.String()
}

// IsAuthenticated reports whether the token source can issue tokens
func (c *Client) IsAuthenticated() bool {
	return c.src.IsAuthenticated()
}

func parseEndpoint(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = DefaultEndpoint
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid management endpoint %q", raw)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u, nil
}

// acceptJSON sets Accept: application/json on requests that carry none
type acceptJSON struct {
	next http.RoundTripper
}

func (a acceptJSON) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept") != "" {
		return a.next.RoundTrip(req)
	}
	out := req.Clone(req.Context())
	out.Header.Set("Accept", "application/json")
	return a.next.RoundTrip(out)
}
