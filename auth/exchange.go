package auth

// Token endpoint exchanges for the client-credential grant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/cloud"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/oauth2/microsoft"
)

// Token backends selectable through configuration
const (
	BackendAzureIdentity = "azidentity"
	BackendOAuth2        = "oauth2"
)

// Exchanger performs one token exchange for a single scope. Implementations
// must not cache; caching belongs to the Provider.
type Exchanger interface {
	Exchange(ctx context.Context, scope string) (Token, error)
}

// ExchangerFunc adapts a function to Exchanger.
type ExchangerFunc func(ctx context.Context, scope string) (Token, error)

// Exchange implements Exchanger.
func (f ExchangerFunc) Exchange(ctx context.Context, scope string) (Token, error) {
	return f(ctx, scope)
}

// credentialExchanger exchanges through any azcore.TokenCredential.
type credentialExchanger struct {
	cred azcore.TokenCredential
}

// NewCredentialExchanger wraps an azcore.TokenCredential.
func NewCredentialExchanger(cred azcore.TokenCredential) Exchanger {
	return &credentialExchanger{cred: cred}
}

// NewAzureIdentityExchanger builds an exchanger backed by azidentity's
// ClientSecretCredential. authorityHost overrides the public cloud login host.
func NewAzureIdentityExchanger(creds Credentials, authorityHost string) (Exchanger, error) {
	opts := &azidentity.ClientSecretCredentialOptions{}
	if host := strings.TrimSpace(authorityHost); host != "" {
		cfg := cloud.AzurePublic
		cfg.ActiveDirectoryAuthorityHost = host
		opts.ClientOptions.Cloud = cfg
	}
	cred, err := azidentity.NewClientSecretCredential(creds.TenantID, creds.ClientID, creds.ClientSecret, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create client secret credential: %w", err)
	}
	return NewCredentialExchanger(cred), nil
}

// Exchange implements Exchanger.
func (e *credentialExchanger) Exchange(ctx context.Context, scope string) (Token, error) {
	at, err := e.cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{scope}})
	if err != nil {
		return Token{}, err
	}
	return Token{Value: at.Token, ExpiresAt: at.ExpiresOn}, nil
}

// clientCredentialsExchanger posts the grant directly with golang.org/x/oauth2.
type clientCredentialsExchanger struct {
	clientID     string
	clientSecret string
	tokenURL     string
	httpClient   *http.Client
}

// NewClientCredentialsExchanger builds an exchanger against a v2 token endpoint.
// An empty tokenURL resolves to the tenant's endpoint on login.microsoftonline.com.
// httpClient may be nil.
func NewClientCredentialsExchanger(creds Credentials, tokenURL string, httpClient *http.Client) Exchanger {
	if strings.TrimSpace(tokenURL) == "" {
		tokenURL = microsoft.AzureADEndpoint(creds.TenantID).TokenURL
	}
	return &clientCredentialsExchanger{
		clientID:     creds.ClientID,
		clientSecret: creds.ClientSecret,
		tokenURL:     tokenURL,
		httpClient:   httpClient,
	}
}

// Exchange implements Exchanger.
func (e *clientCredentialsExchanger) Exchange(ctx context.Context, scope string) (Token, error) {
	cfg := clientcredentials.Config{
		ClientID:     e.clientID,
		ClientSecret: e.clientSecret,
		TokenURL:     e.tokenURL,
		Scopes:       []string{scope},
		// Entra ID expects client_id/client_secret in the form body
		AuthStyle: oauth2.AuthStyleInParams,
	}
	if e.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, e.httpClient)
	}
	tok, err := cfg.Token(ctx)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.ErrorCode != "" {
			return Token{}, fmt.Errorf("token endpoint rejected request: %s: %s", re.ErrorCode, re.ErrorDescription)
		}
		return Token{}, err
	}
	return Token{Value: tok.AccessToken, ExpiresAt: tok.Expiry}, nil
}

// tokenURLForAuthority builds the v2 token endpoint under a custom authority host.
func tokenURLForAuthority(authorityHost, tenantID string) string {
	return strings.TrimRight(authorityHost, "/") + "/" + tenantID + "/oauth2/v2.0/token"
}

// newExchanger picks the backend named in the options.
func newExchanger(creds Credentials, o providerOptions) (Exchanger, string, error) {
	backend := strings.ToLower(strings.TrimSpace(o.backend))
	if strings.TrimSpace(o.tokenEndpoint) != "" {
		backend = BackendOAuth2
	}
	switch backend {
	case BackendOAuth2:
		tokenURL := o.tokenEndpoint
		if tokenURL == "" && strings.TrimSpace(o.authorityHost) != "" {
			tokenURL = tokenURLForAuthority(o.authorityHost, creds.TenantID)
		}
		return NewClientCredentialsExchanger(creds, tokenURL, o.httpClient), BackendOAuth2, nil
	case "", BackendAzureIdentity:
		ex, err := NewAzureIdentityExchanger(creds, o.authorityHost)
		return ex, BackendAzureIdentity, err
	default:
		return nil, backend, fmt.Errorf("unknown token backend %q (expected %q or %q)", o.backend, BackendAzureIdentity, BackendOAuth2)
	}
}
