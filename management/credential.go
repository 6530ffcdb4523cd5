package management

import (
	"context"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"

	"github.com/FBakkensen/azure-status-web/auth"
	"github.com/FBakkensen/azure-status-web/logging"
)

// providerCredential lets the ARM SDK draw tokens from the shared Provider,
// so SDK calls and REST calls use one cache slot.
type providerCredential struct {
	src auth.TokenSource
}

// GetToken implements azcore.TokenCredential. The provider holds a single
// management-scoped token, so other scopes are logged and served the same token.
func (c *providerCredential) GetToken(ctx context.Context, tro policy.TokenRequestOptions) (azcore.AccessToken, error) {
	for _, s := range normalizeScopes(tro.Scopes) {
		if s != auth.ManagementScope {
			logging.Debug("ARM credential asked for a non-management scope", "scope", s)
		}
	}
	tok, err := c.src.AccessToken(ctx)
	if err != nil {
		logging.Error("Failed to get ARM-scoped token", "error", err.Error())
		return azcore.AccessToken{}, err
	}
	return azcore.AccessToken{Token: tok.Value, ExpiresOn: tok.ExpiresAt}, nil
}

// normalizeScopes maps the legacy management audience onto management.azure.com
// and collapses accidental double slashes.
func normalizeScopes(scopes []string) []string {
	if len(scopes) == 0 {
		return []string{auth.ManagementScope}
	}
	out := make([]string, 0, len(scopes))
	for _, s := range scopes {
		s = strings.ReplaceAll(s, "https://management.core.windows.net", "https://management.azure.com")
		s = strings.ReplaceAll(s, "//.default", "/.default")
		out = append(out, s)
	}
	return out
}
