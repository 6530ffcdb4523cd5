package web

import (
	"embed"
	"errors"
	"html/template"
	"io"

	"github.com/FBakkensen/azure-status-web/auth"
	"github.com/FBakkensen/azure-status-web/management"
)

// User-facing messages
const (
	MsgSubscriptionRequired = "Subscription ID is required"
	MsgAuthNotConfigured    = "Azure authentication is not configured"
)

//go:embed templates/*.html
var templateFS embed.FS

// StatusViewModel backs the status page
type StatusViewModel struct {
	IsAuthenticated bool                      `json:"isAuthenticated"`
	Subscriptions   []management.Subscription `json:"subscriptions"`
	ErrorMessage    string                    `json:"errorMessage,omitempty"`
}

// ResourceGroupsViewModel backs the resource groups page
type ResourceGroupsViewModel struct {
	SubscriptionID string                     `json:"subscriptionId"`
	ResourceGroups []management.ResourceGroup `json:"resourceGroups"`
	ErrorMessage   string                     `json:"errorMessage,omitempty"`
}

// views holds the parsed page templates
type views struct {
	t *template.Template
}

func loadViews() (*views, error) {
	t, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &views{t: t}, nil
}

func (v *views) status(w io.Writer, m StatusViewModel) error {
	return v.t.ExecuteTemplate(w, "status.html", m)
}

func (v *views) resourceGroups(w io.Writer, m ResourceGroupsViewModel) error {
	return v.t.ExecuteTemplate(w, "resourcegroups.html", m)
}

// subscriptionsError renders a listing failure as one line
func subscriptionsError(err error) string {
	if errors.Is(err, auth.ErrAuthNotConfigured) {
		return MsgAuthNotConfigured
	}
	return "Error retrieving subscriptions: " + err.Error()
}

// resourceGroupsError renders a listing failure as one line
func resourceGroupsError(err error) string {
	var apiErr *management.APIError
	switch {
	case errors.Is(err, management.ErrPrecondition):
		return MsgSubscriptionRequired
	case errors.Is(err, auth.ErrAuthNotConfigured):
		return MsgAuthNotConfigured
	case errors.As(err, &apiErr):
		return "Failed to retrieve resource groups: " + apiErr.Error()
	default:
		return "Error retrieving resource groups: " + err.Error()
	}
}
