package translate

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/GriffinCanCode/polyglot/internal/errors"
)

// Option configures an HTTP backend.
type Option func(*httpBackend)

// WithBaseURL points the backend at a different endpoint.
func WithBaseURL(u string) Option {
	return func(b *httpBackend) { b.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(b *httpBackend) { b.client = c }
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(b *httpBackend) { b.timeout = d }
}

// httpBackend holds what every HTTP backend shares.
type httpBackend struct {
	name    string
	baseURL string
	client  *http.Client
	timeout time.Duration
	table   codeTable
}

func newHTTPBackend(name, baseURL string, timeout time.Duration, table codeTable, opts []Option) httpBackend {
	b := httpBackend{
		name:    name,
		baseURL: baseURL,
		client:  http.DefaultClient,
		timeout: timeout,
		table:   table,
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

func (b *httpBackend) Name() string           { return b.name }
func (b *httpBackend) Timeout() time.Duration { return b.timeout }

func (b *httpBackend) Supports(target string) bool {
	_, ok := b.table.lookup(target)
	return ok
}

// wireCode maps a normalised code to the backend's code. ok is false when unsupported.
func (b *httpBackend) wireCode(code string) (string, bool) {
	return b.table.lookup(code)
}

// do sends req and decodes a 200 JSON body into out; other statuses become AppErrors.
func (b *httpBackend) do(req *http.Request, out any) error {
	resp, err := b.client.Do(req)
	if err != nil {
		return b.transportError(req.Context(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return b.statusError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.Wrap(err, apperrors.BackendError, "decode response").WithMetadata("backend", b.name)
	}
	return nil
}

func (b *httpBackend) transportError(ctx context.Context, err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()):
		return apperrors.Wrap(err, apperrors.Timeout, "request timed out").WithMetadata("backend", b.name)
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		return apperrors.Wrap(err, apperrors.Cancelled, "request cancelled").WithMetadata("backend", b.name)
	default:
		return apperrors.Wrap(err, apperrors.Unavailable, "network error").WithMetadata("backend", b.name)
	}
}

// statusError maps a non-200 response: 401/403 credentials, 429/456 quota,
// 5xx unavailable, anything else a generic backend error.
func (b *httpBackend) statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBytes))
	msg := errorMessage(body)
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	var e *apperrors.AppError
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		e = apperrors.New(apperrors.Unauthorized, msg)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == 456:
		e = apperrors.New(apperrors.QuotaExceeded, msg)
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			e = e.WithRetryAfter(time.Duration(secs) * time.Second)
		}
	case resp.StatusCode >= http.StatusInternalServerError:
		e = apperrors.New(apperrors.Unavailable, msg)
	default:
		e = apperrors.New(apperrors.BackendError, msg)
	}
	return e.WithMetadata("backend", b.name).WithMetadata("status", strconv.Itoa(resp.StatusCode))
}

// errorMessage digs a human message out of the error bodies the backends return:
// {"error":{"message":...}}, {"error":"..."} or {"message":"..."}.
func errorMessage(body []byte) string {
	var doc struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if json.Unmarshal(body, &doc) != nil {
		return strings.TrimSpace(string(body))
	}
	if doc.Message != "" {
		return doc.Message
	}
	var nested struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(doc.Error, &nested) == nil && nested.Message != "" {
		return nested.Message
	}
	var flat string
	if json.Unmarshal(doc.Error, &flat) == nil {
		return flat
	}
	return ""
}
