package debugdump

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/FBakkensen/azure-status-web/logging"
)

// Options controls raw capture
type Options struct {
	Enabled  bool
	Path     string
	MaxBytes int
	// Keep is the number of rotated captures to retain
	Keep int
}

// Transport records every exchange that passes through it. Put it below the
// auth interceptor so the bearer header is seen, and redacted, in captures.
// Capture failures are logged and never affect the request.
type Transport struct {
	Base http.RoundTripper
	opts Options
	path string
}

// NewTransport wraps base. When capture is disabled base is returned as is.
func NewTransport(base http.RoundTripper, opts Options) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	if !opts.Enabled {
		return base
	}
	path, err := ResolvePath(opts.Path)
	if err != nil {
		logging.Warn("ARM raw capture disabled: bad path", "path", opts.Path, "error", err.Error())
		return base
	}
	logging.Info("ARM raw capture enabled", "path", path, "maxBytes", strconv.Itoa(opts.MaxBytes))
	return &Transport{Base: base, opts: opts, path: path}
}

// RoundTrip implements http.RoundTripper
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	doc := ARMRawCapture{
		Version:    CaptureVersion,
		CapturedAt: Now(),
		Request: ARMRawRequest{
			StartedAt: start.UTC().Format(time.RFC3339Nano),
			Method:    req.Method,
			URL:       req.URL.String(),
			Headers:   RedactHeaders(req.Header),
		},
	}
	if req.GetBody != nil {
		if rc, err := req.GetBody(); err == nil {
			b, _ := io.ReadAll(rc)
			_ = rc.Close()
			doc.Request.Body, doc.Request.BodyBytes, doc.Request.Truncated = TruncateBody(b, t.opts.MaxBytes)
		}
	}

	resp, err := t.Base.RoundTrip(req)
	if err != nil {
		doc.Error = &ARMRawError{Message: err.Error()}
		t.write(doc)
		return resp, err
	}

	body, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(body))

	done := time.Now()
	r := &ARMRawResponse{
		CompletedAt: done.UTC().Format(time.RFC3339Nano),
		Status:      resp.StatusCode,
		DurationMs:  done.Sub(start).Milliseconds(),
		RequestID:   resp.Header.Get("x-ms-request-id"),
		Headers:     RedactHeaders(resp.Header),
	}
	r.Body, r.BodyBytes, r.Truncated = FormatBodyPrettyJSON(body, t.opts.MaxBytes)
	doc.Response = r
	if readErr != nil {
		// the caller sees the partial body; the capture notes why
		doc.Error = &ARMRawError{Message: readErr.Error()}
	}
	t.write(doc)
	return resp, nil
}

func (t *Transport) write(doc ARMRawCapture) {
	if err := WriteCapture(t.path, doc); err != nil {
		logging.Warn("Failed to write ARM raw capture", "path", t.path, "error", err.Error())
		return
	}
	if err := WriteCaptureRotating(t.path, t.opts.Keep, doc); err != nil {
		logging.Warn("Failed to write rotated ARM raw capture", "path", t.path, "error", err.Error())
	}
}
