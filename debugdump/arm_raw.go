package debugdump

// Raw request/response captures of Azure Resource Manager calls, for debugging

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

// CaptureVersion is the document schema version
const CaptureVersion = 1

// DefaultKeep is how many rotated captures survive pruning
const DefaultKeep = 10

// ARMRawHeaders holds headers with secrets redacted
type ARMRawHeaders map[string]string

// ARMRawRequest captures request details
type ARMRawRequest struct {
	StartedAt string        `yaml:"startedAt"`
	Method    string        `yaml:"method"`
	URL       string        `yaml:"url"`
	Headers   ARMRawHeaders `yaml:"headers"`
	Body      string        `yaml:"body,omitempty"`
	BodyBytes int           `yaml:"bodyBytes"`
	Truncated bool          `yaml:"truncated"`
}

// ARMRawResponse captures response details
type ARMRawResponse struct {
	CompletedAt string        `yaml:"completedAt"`
	Status      int           `yaml:"status"`
	DurationMs  int64         `yaml:"durationMs"`
	RequestID   string        `yaml:"requestId,omitempty"`
	Headers     ARMRawHeaders `yaml:"headers"`
	Body        string        `yaml:"body"`
	BodyBytes   int           `yaml:"bodyBytes"`
	Truncated   bool          `yaml:"truncated"`
}

// ARMRawError is a transport failure
type ARMRawError struct {
	Message string `yaml:"message"`
}

// ARMRawCapture is the root document of one exchange
type ARMRawCapture struct {
	Version    int             `yaml:"version"`
	CapturedAt string          `yaml:"capturedAt"`
	Request    ARMRawRequest   `yaml:"request"`
	Response   *ARMRawResponse `yaml:"response,omitempty"`
	Error      *ARMRawError    `yaml:"error,omitempty"`
}

// RedactHeaders flattens h (first value per key) with secrets redacted
func RedactHeaders(h http.Header) ARMRawHeaders {
	out := make(ARMRawHeaders, len(h))
	for k, vs := range h {
		v := ""
		if len(vs) > 0 {
			v = vs[0]
		}
		switch strings.ToLower(strings.TrimSpace(k)) {
		case "authorization":
			out[k] = "Bearer <redacted>"
		case "cookie", "set-cookie", "x-api-key", "api-key", "ocp-apim-subscription-key":
			out[k] = "<redacted>"
		default:
			out[k] = v
		}
	}
	return out
}

// TruncateBody returns the body to write, its original size, and whether it
// was cut. maxBytes <= 0 means unlimited.
func TruncateBody(b []byte, maxBytes int) (string, int, bool) {
	if b == nil {
		return "", 0, false
	}
	orig := len(b)
	if maxBytes <= 0 || orig <= maxBytes {
		return string(b), orig, false
	}
	return string(b[:maxBytes]), orig, true
}

// FormatBodyPrettyJSON indents JSON bodies and falls back to the raw text.
// The reported size is always the original payload size.
func FormatBodyPrettyJSON(b []byte, maxBytes int) (string, int, bool) {
	if b == nil {
		return "", 0, false
	}
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return TruncateBody(b, maxBytes)
	}
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return TruncateBody(b, maxBytes)
	}
	s, _, cut := TruncateBody(pretty, maxBytes)
	return s, len(b), cut
}

// ResolvePath defaults to logs/arm-raw.yaml and keeps bare file names under logs/
func ResolvePath(in string) (string, error) {
	p := strings.TrimSpace(in)
	if p == "" {
		p = filepath.Join("logs", "arm-raw.yaml")
	}
	if !filepath.IsAbs(p) && filepath.Dir(p) == "." {
		p = filepath.Join("logs", p)
	}
	if filepath.Ext(p) == "" {
		p += ".yaml"
	}
	return filepath.Clean(filepath.FromSlash(p)), nil
}

// WriteCapture writes one capture to path, replacing any previous file
func WriteCapture(path string, doc ARMRawCapture) error {
	return writeYAMLAtomic(path, doc)
}

var rotateSeq atomic.Uint64

// WriteCaptureRotating writes doc next to base as <name>-<stamp>-<seq><ext> and
// prunes older rotated files so at most keep remain.
func WriteCaptureRotating(base string, keep int, doc ARMRawCapture) error {
	if keep <= 0 {
		keep = DefaultKeep
	}
	dir, prefix, ext := splitBase(base)
	name := fmt.Sprintf("%s-%s-%06d%s", prefix, time.Now().UTC().Format("20060102T150405.000000000"), rotateSeq.Add(1), ext)
	if err := writeYAMLAtomic(filepath.Join(dir, name), doc); err != nil {
		return err
	}
	return prune(dir, prefix, ext, keep)
}

func splitBase(base string) (dir, prefix, ext string) {
	dir = filepath.Dir(base)
	file := filepath.Base(base)
	ext = filepath.Ext(file)
	if ext == "" {
		ext = ".yaml"
	}
	return dir, strings.TrimSuffix(file, filepath.Ext(file)), ext
}

// prune keeps the newest rotated files; names sort chronologically
func prune(dir, prefix, ext string, keep int) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to list capture dir: %w", err)
	}
	var rotated []string
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() || !strings.HasPrefix(n, prefix+"-") || filepath.Ext(n) != ext {
			continue
		}
		rotated = append(rotated, n)
	}
	if len(rotated) <= keep {
		return nil
	}
	sort.Strings(rotated)
	for _, n := range rotated[:len(rotated)-keep] {
		if err := os.Remove(filepath.Join(dir, n)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to prune %s: %w", n, err)
		}
	}
	return nil
}

func writeYAMLAtomic(path string, doc any) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("empty path for ARM raw capture")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create capture dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "arm-raw-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	enc := yaml.NewEncoder(tmp)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to close yaml encoder: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to move temp into place: %w", err)
	}
	return nil
}

// Now returns the current UTC time in RFC3339Nano
func Now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
