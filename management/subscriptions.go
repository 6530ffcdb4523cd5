package management

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armsubscriptions"

	"github.com/FBakkensen/azure-status-web/auth"
	"github.com/FBakkensen/azure-status-web/internal/util"
	"github.com/FBakkensen/azure-status-web/logging"
)

// ListSubscriptions returns at most MaxSubscriptions subscriptions visible to
// the service principal. Paging stops as soon as the cap is reached.
func (c *Client) ListSubscriptions(ctx context.Context) ([]Subscription, error) {
	if !c.src.IsAuthenticated() {
		return nil, auth.ErrAuthNotConfigured
	}
	logging.Debug("ListSubscriptions called")

	client, err := armsubscriptions.NewClient(c.cred, c.arm)
	if err != nil {
		logging.Error("Failed to create subscriptions client", "error", err.Error())
		return nil, fmt.Errorf("failed to create subscriptions client: %w", err)
	}

	subs := make([]Subscription, 0, MaxSubscriptions)
	pager := client.NewListPager(nil)
	pageCount := 0
	for pager.More() && len(subs) < MaxSubscriptions {
		pageCount++
		page, err := pager.NextPage(ctx)
		if err != nil {
			c.metrics.ManagementCall(OpListSubscriptions, statusOf(err))
			logging.Error("Failed to get subscriptions page", "pageNumber", fmt.Sprintf("%d", pageCount), "error", err.Error())
			return nil, fmt.Errorf("failed to get subscriptions page: %w", err)
		}
		logging.Debug("Received subscription page", "pageNumber", fmt.Sprintf("%d", pageCount), "subscriptionsInPage", fmt.Sprintf("%d", len(page.Value)))

		for _, s := range page.Value {
			if s == nil {
				continue
			}
			subs = append(subs, toSubscription(s))
			if len(subs) >= MaxSubscriptions {
				break
			}
		}
	}
	c.metrics.ManagementCall(OpListSubscriptions, http.StatusOK)

	logging.Info("Completed subscription listing", "total", fmt.Sprintf("%d", len(subs)), "pages", fmt.Sprintf("%d", pageCount))
	return subs, nil
}

func toSubscription(s *armsubscriptions.Subscription) Subscription {
	return Subscription{
		ID:          util.ValueOr(s.SubscriptionID, Unknown),
		DisplayName: util.ValueOr(s.DisplayName, Unknown),
		State:       util.ValueOr(s.State, Unknown),
		TenantID:    util.ValueOr(s.TenantID, ""),
	}
}

// statusOf extracts the HTTP status from an SDK error; 0 means no response
func statusOf(err error) int {
	var re *azcore.ResponseError
	if errors.As(err, &re) {
		return re.StatusCode
	}
	return 0
}
