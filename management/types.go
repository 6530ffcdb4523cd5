package management

import (
	"errors"
	"fmt"
)

// MaxSubscriptions caps ListSubscriptions
const MaxSubscriptions = 10

// ResourceGroupsAPIVersion is the ARM api-version used for resource group listing
const ResourceGroupsAPIVersion = "2021-04-01"

// Unknown stands in for fields the API did not return
const Unknown = "Unknown"

var (
	// ErrPrecondition marks a request rejected before any network call
	ErrPrecondition = errors.New("precondition failed")

	// ErrDownstreamAPI marks a non-success status from the management API
	ErrDownstreamAPI = errors.New("management API error")

	// ErrSubscriptionRequired is returned for a blank subscription id
	ErrSubscriptionRequired = fmt.Errorf("%w: Subscription ID is required", ErrPrecondition)
)

// Subscription is one row of the status page
type Subscription struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	State       string `json:"state"`
	TenantID    string `json:"tenantId,omitempty"`
}

// ResourceGroup is one row of the resource groups page
type ResourceGroup struct {
	Name     string `json:"name"`
	Location string `json:"location"`
	ID       string `json:"id"`
}

// APIError is a non-2xx answer from the management API. It is not retried.
type APIError struct {
	StatusCode int
	Reason     string
	// RequestID is the x-ms-request-id header, if any
	RequestID string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d - %s", e.StatusCode, e.Reason)
}

// Is makes errors.Is(err, ErrDownstreamAPI) hold for every *APIError
func (e *APIError) Is(target error) bool {
	return target == ErrDownstreamAPI
}
