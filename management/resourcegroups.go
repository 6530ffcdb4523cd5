package management

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/FBakkensen/azure-status-web/auth"
	"github.com/FBakkensen/azure-status-web/internal/util"
	"github.com/FBakkensen/azure-status-web/logging"
)

// maxErrorBody bounds how much of an error body is logged
const maxErrorBody = 2048

// resourceGroupsResponse is the list payload; encoding/json matches keys case-insensitively
type resourceGroupsResponse struct {
	Value []struct {
		ID       *string `json:"id"`
		Name     *string `json:"name"`
		Location *string `json:"location"`
	} `json:"value"`
}

// ListResourceGroups returns the resource groups of one subscription. A blank
// id or an unauthenticated source fails before any network call.
func (c *Client) ListResourceGroups(ctx context.Context, subscriptionID string) ([]ResourceGroup, error) {
	subscriptionID = strings.TrimSpace(subscriptionID)
	if subscriptionID == "" {
		return nil, ErrSubscriptionRequired
	}
	if !c.src.IsAuthenticated() {
		return nil, auth.ErrAuthNotConfigured
	}

	u := c.resourceGroupsURL(subscriptionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	logging.Debug("Listing resource groups", "subscriptionId", subscriptionID, "url", u)
	start := time.Now()
	resp, err := c.rest.Do(req)
	if err != nil {
		c.metrics.ManagementCall(OpListResourceGroups, 0)
		logging.Error("Resource groups request failed", "subscriptionId", subscriptionID, "error", err.Error())
		return nil, fmt.Errorf("resource groups request failed: %w", err)
	}
	defer resp.Body.Close()

	rid := resp.Header.Get("x-ms-request-id")
	c.metrics.ManagementCall(OpListResourceGroups, resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &APIError{StatusCode: resp.StatusCode, Reason: reasonPhrase(resp), RequestID: rid}
		logging.Error("Resource groups API error",
			"subscriptionId", subscriptionID,
			"status", strconv.Itoa(resp.StatusCode),
			"x-ms-request-id", rid,
			"body", string(body),
		)
		return nil, apiErr
	}

	var payload resourceGroupsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		logging.Error("Resource groups response parse failed", "subscriptionId", subscriptionID, "error", err.Error())
		return nil, fmt.Errorf("failed to parse resource groups response: %w", err)
	}

	groups := make([]ResourceGroup, 0, len(payload.Value))
	for _, v := range payload.Value {
		groups = append(groups, ResourceGroup{
			Name:     util.ValueOr(v.Name, Unknown),
			Location: util.ValueOr(v.Location, Unknown),
			ID:       util.ValueOr(v.ID, Unknown),
		})
	}

	logging.Info("Resource groups request success",
		"subscriptionId", subscriptionID,
		"count", strconv.Itoa(len(groups)),
		"duration_ms", strconv.FormatInt(time.Since(start).Milliseconds(), 10),
		"x-ms-request-id", rid,
	)
	return groups, nil
}

func (c *Client) resourceGroupsURL(subscriptionID string) string {
	base := strings.TrimSuffix(c.endpoint.String(), "/")
	return base + "/subscriptions/" + url.PathEscape(subscriptionID) + "/resourcegroups?" +
		url.Values{"api-version": {ResourceGroupsAPIVersion}}.Encode()
}

// reasonPhrase takes the reason from the status line, falling back to the
// standard text for the code
func reasonPhrase(resp *http.Response) string {
	reason := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if reason == "" {
		reason = http.StatusText(resp.StatusCode)
	}
	return reason
}
