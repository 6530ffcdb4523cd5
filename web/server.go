package web

// HTTP front-end: status page and resource groups per subscription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/FBakkensen/azure-status-web/logging"
	"github.com/FBakkensen/azure-status-web/management"
	"github.com/FBakkensen/azure-status-web/metrics"
)

const (
	readHeaderTimeout = 10 * time.Second
	// ShutdownTimeout bounds the drain of in-flight requests
	ShutdownTimeout   = 10 * time.Second
)

// Lister is what the pages need from the management client
type Lister interface {
	IsAuthenticated() bool
	ListSubscriptions(ctx context.Context) ([]management.Subscription, error)
	ListResourceGroups(ctx context.Context, subscriptionID string) ([]management.ResourceGroup, error)
}

type routes struct {
	lister Lister
	views  *views
}

// NewRouter builds the application router. rec may be nil, in which case
// /metrics answers 404.
func NewRouter(lister Lister, rec *metrics.Recorder) (http.Handler, error) {
	v, err := loadViews()
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	rt := &routes{lister: lister, views: v}

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		requestLogger,
		middleware.Recoverer,
	)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/azure", http.StatusFound)
	})
	r.Get("/healthz", rt.healthz)
	r.Method(http.MethodGet, "/metrics", rec.Handler())

	r.Route("/azure", func(r chi.Router) {
		r.Get("/", rt.status)
		r.Get("/resourcegroups", rt.resourceGroups)
		r.Get("/subscriptions/{subscriptionID}/resourcegroups", rt.resourceGroups)
	})
	// Controller/action style paths
	r.Get("/Azure", rt.status)
	r.Get("/Azure/Index", rt.status)
	r.Get("/Azure/ResourceGroups", rt.resourceGroups)

	return r, nil
}

func (rt *routes) status(w http.ResponseWriter, r *http.Request) {
	model := StatusViewModel{
		IsAuthenticated: rt.lister.IsAuthenticated(),
		Subscriptions:   []management.Subscription{},
	}
	if model.IsAuthenticated {
		subs, err := rt.lister.ListSubscriptions(r.Context())
		if err != nil {
			logging.Error("Error retrieving Azure subscriptions", "error", err.Error())
			model.ErrorMessage = subscriptionsError(err)
		} else {
			model.Subscriptions = subs
		}
	}

	if wantsJSON(r) {
		writeJSON(w, model)
		return
	}
	rt.render(w, func(buf *bytes.Buffer) error { return rt.views.status(buf, model) })
}

func (rt *routes) resourceGroups(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "subscriptionID"))
	if id == "" {
		id = queryValueFold(r, "subscriptionId")
	}
	model := ResourceGroupsViewModel{
		SubscriptionID: id,
		ResourceGroups: []management.ResourceGroup{},
	}

	switch {
	case id == "":
		model.ErrorMessage = MsgSubscriptionRequired
	case !rt.lister.IsAuthenticated():
		model.ErrorMessage = MsgAuthNotConfigured
	default:
		groups, err := rt.lister.ListResourceGroups(r.Context(), id)
		if err != nil {
			logging.Error("Error retrieving resource groups", "subscriptionId", id, "error", err.Error())
			model.ErrorMessage = resourceGroupsError(err)
		} else {
			model.ResourceGroups = groups
		}
	}

	if wantsJSON(r) {
		writeJSON(w, model)
		return
	}
	rt.render(w, func(buf *bytes.Buffer) error { return rt.views.resourceGroups(buf, model) })
}

func (rt *routes) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{
		"status":        "ok",
		"authenticated": rt.lister.IsAuthenticated(),
	})
}

// render buffers the page so a template error can still become a 500
func (rt *routes) render(w http.ResponseWriter, exec func(*bytes.Buffer) error) {
	var buf bytes.Buffer
	if err := exec(&buf); err != nil {
		logging.Error("Failed to render page", "error", err.Error())
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("Failed to encode JSON response", "error", err.Error())
	}
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(strings.ToLower(r.Header.Get("Accept")), "application/json")
}

// queryValueFold looks a query parameter up ignoring key case
func queryValueFold(r *http.Request, key string) string {
	q := r.URL.Query()
	if v := strings.TrimSpace(q.Get(key)); v != "" {
		return v
	}
	for k, vs := range q {
		if strings.EqualFold(k, key) && len(vs) > 0 {
			return strings.TrimSpace(vs[0])
		}
	}
	return ""
}

// requestLogger logs one line per request through the app logger
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			logging.Info("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(ww.Status()),
				"bytes", strconv.Itoa(ww.BytesWritten()),
				"duration_ms", strconv.FormatInt(time.Since(start).Milliseconds(), 10),
				"request_id", middleware.GetReqID(r.Context()),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}

// Serve runs handler on address until ctx is cancelled, then drains for up
// to ShutdownTimeout.
func Serve(ctx context.Context, address string, handler http.Handler) error {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	return serveListener(ctx, ln, handler)
}

func serveListener(ctx context.Context, ln net.Listener, handler http.Handler) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("Starting HTTP server", "address", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server stopped with error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logging.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}
