package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// Request describes one backend call. Zero values fall back to the
// transport configuration.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any

	// Timeout overrides the default per-attempt timeout.
	Timeout time.Duration
	// Retries overrides the default retry budget for timeouts.
	Retries *int
	// NoAuth skips the bearer header, for the unauthenticated endpoints.
	NoAuth bool
}

// Response is the decoded-enough result of a successful call.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Decode unmarshals the response body into out.
func (r *Response) Decode(out any) error {
	if err := json.Unmarshal(r.Body, out); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "unexpected response body")
	}
	return nil
}

// Transport wraps the HTTP client with the interceptors every call
// shares: bearer and CSRF headers on the way out, timeout retry and
// one-shot token refresh on the way back. Retry and refresh state is
// tracked in per-call locals, never on the request itself.
type Transport struct {
	client    *http.Client
	store     CredentialStore
	cfg       Config
	logger    Logger
	refresher TokenRefresher
	base      *url.URL
}

// NewTransport builds a transport for the configured base URL.
func NewTransport(cfg Config, store CredentialStore) (*Transport, error) {
	base, err := url.Parse(cfg.GetBaseURL())
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid base URL")
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, goerrors.New("base URL requires scheme and host", goerrors.CategoryBadInput)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "cookie jar init failed")
	}

	maxRedirects := cfg.GetMaxRedirects()
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}

	return &Transport{
		client: client,
		store:  store,
		cfg:    cfg,
		logger: defLogger{},
		base:   base,
	}, nil
}

// WithHTTPClient replaces the underlying HTTP client. The caller owns
// redirect policy and cookie jar wiring on the replacement.
func (t *Transport) WithHTTPClient(client *http.Client) *Transport {
	if client != nil {
		t.client = client
	}
	return t
}

func (t *Transport) WithLogger(logger Logger) *Transport {
	if logger != nil {
		t.logger = logger
	}
	return t
}

// WithRefresher wires the token refresher consulted on a 401 response.
func (t *Transport) WithRefresher(refresher TokenRefresher) *Transport {
	t.refresher = refresher
	return t
}

// BaseURL returns a copy of the configured base URL.
func (t *Transport) BaseURL() url.URL {
	return *t.base
}

// Do executes the request with the shared interceptor behavior. The
// recovery paths are each idempotent per original request: timeouts are
// retried up to the budget, and a 401 triggers at most one refresh
// before the call is replayed with the new token.
func (t *Transport) Do(ctx context.Context, req Request) (*Response, error) {
	target := t.resolve(req)

	var body []byte
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "request body encode failed")
		}
		body = encoded
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = t.cfg.GetRequestTimeout()
	}
	retries := t.cfg.GetMaxRetries()
	if req.Retries != nil {
		retries = *req.Retries
	}

	requestID := uuid.NewString()
	attempt := 0
	refreshed := t.refreshExpired(ctx, req)

	for {
		resp, err := t.attempt(ctx, req, target, body, timeout, requestID)
		if err != nil {
			if isTimeoutError(err) && attempt < retries {
				attempt++
				t.logger.Debug("retrying after timeout", "attempt", attempt, "path", req.Path)
				if sleepErr := sleepContext(ctx, t.cfg.GetRetryDelay()); sleepErr != nil {
					return nil, NewTransientError(err, "request timed out")
				}
				continue
			}
			if isTimeoutError(err) {
				return nil, NewTransientError(err, "request timed out")
			}
			if ctx.Err() != nil {
				return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "request cancelled")
			}
			return nil, NewTransientError(err, "network failure")
		}

		switch {
		case resp.Status >= 200 && resp.Status < 300:
			return resp, nil

		case resp.Status == http.StatusUnauthorized:
			original := t.serverError(resp)
			if refreshed || t.refresher == nil || req.NoAuth {
				return nil, original
			}
			refreshed = true
			if _, refreshErr := t.refresher.RefreshToken(ctx); refreshErr != nil {
				t.logger.Error("token refresh failed", "error", refreshErr)
				if clearErr := t.store.Clear(ctx); clearErr != nil {
					t.logger.Error("credential clear failed", "error", clearErr)
				}
				return nil, original
			}
			t.logger.Debug("token refreshed, replaying request", "path", req.Path)
			continue

		case resp.Status == http.StatusForbidden:
			if clearErr := t.store.Clear(ctx); clearErr != nil {
				t.logger.Error("credential clear failed", "error", clearErr)
			}
			return nil, t.serverError(resp)

		default:
			return nil, t.serverError(resp)
		}
	}
}

// refreshExpired rotates the stored token up front when its exp claim
// has already passed, instead of burning a round trip on a guaranteed
// 401. Returns whether the per-request refresh budget was consumed.
func (t *Transport) refreshExpired(ctx context.Context, req Request) bool {
	if req.NoAuth || t.refresher == nil {
		return false
	}
	cred, err := t.store.Credential(ctx)
	if err != nil || cred == nil || cred.AccessToken == "" {
		return false
	}
	claims, err := ParseTokenClaims(cred.AccessToken)
	if err != nil || !claims.Expired(time.Now()) {
		return false
	}

	t.logger.Debug("access token expired, refreshing before request", "path", req.Path)
	if _, refreshErr := t.refresher.RefreshToken(ctx); refreshErr != nil {
		t.logger.Info("expired token refresh failed", "error", refreshErr)
	}
	return true
}

// JSON executes the request and decodes a 2xx body into out when out is
// non-nil.
func (t *Transport) JSON(ctx context.Context, req Request, out any) error {
	resp, err := t.Do(ctx, req)
	if err != nil {
		return err
	}
	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	return resp.Decode(out)
}

func (t *Transport) attempt(ctx context.Context, req Request, target string, body []byte, timeout time.Duration, requestID string) (*Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, req.Method, target, reader)
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", requestID)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	if !req.NoAuth {
		if cred, credErr := t.store.Credential(ctx); credErr == nil && cred != nil && cred.AccessToken != "" {
			httpReq.Header.Set("Authorization", "Bearer "+cred.AccessToken)
		}
	}

	if req.Method != http.MethodGet {
		if token := t.csrfToken(); token != "" {
			httpReq.Header.Set(t.cfg.GetCSRFHeaderName(), token)
		}
	}

	httpResp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	limited := io.LimitReader(httpResp.Body, t.cfg.GetMaxContentLength())
	respBody, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}

	return &Response{
		Status: httpResp.StatusCode,
		Header: httpResp.Header,
		Body:   respBody,
	}, nil
}

func (t *Transport) resolve(req Request) string {
	ref := &url.URL{Path: strings.TrimPrefix(req.Path, "/")}
	target := t.base.ResolveReference(ref)
	if len(req.Query) > 0 {
		target.RawQuery = req.Query.Encode()
	}
	return target.String()
}

// csrfToken reads the anti-forgery token from the same-site cookie the
// backend sets.
func (t *Transport) csrfToken() string {
	if t.client.Jar == nil {
		return ""
	}
	for _, cookie := range t.client.Jar.Cookies(t.base) {
		if cookie.Name == t.cfg.GetCSRFCookieName() {
			return cookie.Value
		}
	}
	return ""
}

func (t *Transport) serverError(resp *Response) *goerrors.Error {
	message, fields := parseErrorBody(resp.Body)
	return NewServerError(resp.Status, message, fields, nil)
}

// parseErrorBody extracts a display message and a field error map from
// the backend's error bodies. The backend answers either with
// {"detail": "..."} or with {"field": ["msg", ...]} maps.
func parseErrorBody(body []byte) (string, map[string]string) {
	if len(body) == 0 {
		return "", nil
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", nil
	}

	if detail, ok := raw["detail"].(string); ok {
		return detail, nil
	}
	if message, ok := raw["message"].(string); ok {
		return message, nil
	}

	fields := map[string]string{}
	for field, value := range raw {
		switch v := value.(type) {
		case string:
			fields[field] = v
		case []any:
			if len(v) > 0 {
				if msg, ok := v[0].(string); ok {
					fields[field] = msg
				}
			}
		}
	}
	if len(fields) == 0 {
		return "", nil
	}
	return "", fields
}

func isTimeoutError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
