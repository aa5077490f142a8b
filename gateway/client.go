// Package gateway is the authenticated API access layer of the storefront. It
// attaches the realm's bearer token, refreshes it at most once per logical
// request, classifies failures and serves offline content for reads when the
// backend cannot be reached. It never touches UI session state.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-storefront-gateway/credentials"
	"github.com/jrsteele09/go-storefront-gateway/fallback"
	apperrors "github.com/jrsteele09/go-storefront-gateway/internal/errors"
	"github.com/jrsteele09/go-storefront-gateway/internal/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 15 * time.Second

// maxResponseSize limits response body reads to prevent memory exhaustion.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// maxErrorText caps the runes of raw text used as an error message
const maxErrorText = 512

// RequestIDHeader carries the id shared by a request and its retry
const RequestIDHeader = "X-Request-ID"

// Client issues requests against the backend REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	store      credentials.Store
	fallback   fallback.Provider
	metrics    *Metrics
	refreshes  singleflight.Group

	// refreshTimeout bounds a shared refresh, which runs detached from its callers
	refreshTimeout time.Duration
}

type Option func(*clientOptions)

type clientOptions struct {
	httpClient *http.Client
	timeout    time.Duration
	fallback   fallback.Provider
	registerer prometheus.Registerer
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *clientOptions) {
		o.httpClient = hc
	}
}

// WithTimeout sets the per-attempt timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		o.timeout = d
	}
}

// WithFallback sets the offline content provider. Use fallback.Disabled{} to turn
// the fallback off.
func WithFallback(p fallback.Provider) Option {
	return func(o *clientOptions) {
		o.fallback = p
	}
}

// WithMetrics registers the gateway's collectors on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *clientOptions) {
		o.registerer = reg
	}
}

// New creates a client for baseURL. A nil store behaves like credentials.Null.
// The bundled static catalog is the default offline provider.
func New(baseURL string, store credentials.Store, opts ...Option) *Client {
	o := clientOptions{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: o.timeout}
	}
	if o.fallback == nil {
		o.fallback = fallback.NewStatic()
	}
	if store == nil {
		store = credentials.Null{}
	}
	refreshTimeout := o.timeout
	if refreshTimeout <= 0 {
		refreshTimeout = DefaultTimeout
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: o.httpClient,
		store:      store,
		fallback:   o.fallback,
		metrics:    newMetrics(o.registerer),

		refreshTimeout: refreshTimeout,
	}
}

// Metrics exposes the client's collectors.
func (c *Client) Metrics() *Metrics {
	return c.metrics
}

// Store returns the credential store the client reads tokens from.
func (c *Client) Store() credentials.Store {
	return c.store
}

// Do executes req. Failures are returned as *Error except for request encoding
// problems, which are caller bugs.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	req = req.normalised()

	resp, err := c.do(ctx, req)
	if err == nil {
		c.metrics.request(req, "ok")
		return resp, nil
	}

	if fb, ok := c.tryFallback(ctx, req, err); ok {
		c.metrics.request(req, "fallback")
		return fb, nil
	}
	c.metrics.request(req, outcomeOf(err))
	return nil, err
}

// DoJSON executes req and unmarshals a non-empty body into out.
func (c *Client) DoJSON(ctx context.Context, req Request, out any) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := resp.Decode(out); err != nil {
		return fmt.Errorf("[gateway DoJSON] decoding %s %s: %w", req.Method, req.Path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, req Request) (*Response, error) {
	realm := req.Realm()
	requestID := uuid.NewString()

	pair, hasToken := credentials.GetPair(c.store, realm)
	if req.RequiresAuth && !hasToken {
		return nil, newError(KindAuthRequired, req, 0, fmt.Sprintf("no %s access token stored", realm), nil)
	}

	refreshed := false
	if req.RequiresAuth && pair.CanRefresh() && accessExpired(pair.Access) {
		log.Debug().Str("realm", string(realm)).Str("path", req.Path).Msg("Access token expired, refreshing before request")
		next, err := c.refresh(ctx, realm, pair)
		if err != nil {
			return nil, c.refreshFailed(ctx, req, 0, err)
		}
		pair, refreshed = next, true
	}

	resp, err := c.send(ctx, req, pair.Access, requestID)
	if err != nil {
		return nil, err
	}

	if req.RequiresAuth && isAuthStatus(resp.StatusCode) {
		if refreshed {
			return nil, c.expire(req, resp.StatusCode, statusError(req, resp))
		}
		current, _ := credentials.GetPair(c.store, realm)
		if current.Access != "" && current.Access != pair.Access {
			log.Debug().Str("realm", string(realm)).Msg("Token renewed by a concurrent request, retrying")
		} else {
			if !current.CanRefresh() {
				return nil, c.expire(req, resp.StatusCode, apperrors.ErrNoRefreshToken)
			}
			current, err = c.refresh(ctx, realm, current)
			if err != nil {
				return nil, c.refreshFailed(ctx, req, resp.StatusCode, err)
			}
		}

		// Exactly one retry with the new token; its outcome is final.
		resp, err = c.send(ctx, req, current.Access, requestID)
		if err != nil {
			return nil, err
		}
		if isAuthStatus(resp.StatusCode) {
			return nil, c.expire(req, resp.StatusCode, statusError(req, resp))
		}
	}

	if !resp.ok() {
		return nil, statusError(req, resp)
	}
	return resp, nil
}

// send performs a single HTTP exchange and reads the body once.
func (c *Client) send(ctx context.Context, req Request, token, requestID string) (*Response, error) {
	body, err := req.encodeBody()
	if err != nil {
		return nil, fmt.Errorf("[gateway send] encoding %s %s body: %w", req.Method, req.Path, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.baseURL+req.Path, body)
	if err != nil {
		return nil, fmt.Errorf("[gateway send] creating request: %w", err)
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set(RequestIDHeader, requestID)
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, newError(KindNetworkUnavailable, req, 0, "", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize+1))
	if err != nil {
		return nil, newError(KindRequestFailed, req, httpResp.StatusCode, "reading response body", err)
	}
	if len(data) > maxResponseSize {
		return nil, newError(KindRequestFailed, req, httpResp.StatusCode, fmt.Sprintf("response exceeds maximum size of %d bytes", maxResponseSize), nil)
	}

	log.Debug().
		Str("request_id", requestID).
		Str("method", req.Method).
		Str("path", req.Path).
		Int("status", httpResp.StatusCode).
		Msg("Gateway response")

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       data,
		IsJSON:     isJSONContentType(httpResp.Header.Get("Content-Type")),
	}, nil
}

// refresh exchanges pair's refresh token for new tokens and stores them.
// Concurrent refreshes of the same token share one backend call. The call is
// not bound to any one caller's ctx; a caller whose ctx ends stops waiting
// while the exchange completes for the others.
func (c *Client) refresh(ctx context.Context, realm credentials.Realm, pair credentials.Pair) (credentials.Pair, error) {
	results := c.refreshes.DoChan(string(realm)+"\x00"+pair.Refresh, func() (interface{}, error) {
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTimeout)
		defer cancel()
		return c.refreshOnce(refreshCtx, realm, pair)
	})

	select {
	case <-ctx.Done():
		return credentials.Pair{}, fmt.Errorf("[gateway refresh] %s: %w", realm, ctx.Err())
	case res := <-results:
		if res.Err != nil {
			return credentials.Pair{}, res.Err
		}
		if res.Shared {
			log.Debug().Str("realm", string(realm)).Msg("Joined in-flight token refresh")
		}
		return res.Val.(credentials.Pair), nil
	}
}

func (c *Client) refreshOnce(ctx context.Context, realm credentials.Realm, pair credentials.Pair) (credentials.Pair, error) {
	req := Request{
		Path:   RefreshRoute(realm),
		Method: http.MethodPost,
		Body:   map[string]string{"refreshToken": pair.Refresh},
	}
	resp, err := c.send(ctx, req, "", uuid.NewString())
	if err == nil && !resp.ok() {
		err = statusError(req, resp)
	}
	if err != nil {
		c.metrics.Refreshes.WithLabelValues(string(realm), "failure").Inc()
		log.Warn().Err(err).Str("realm", string(realm)).Msg("Token refresh failed")
		return credentials.Pair{}, fmt.Errorf("[gateway refresh] %s: %w", realm, err)
	}

	tokens := ParseTokenResponse(resp.Body)
	if tokens.AccessToken == nil {
		c.metrics.Refreshes.WithLabelValues(string(realm), "failure").Inc()
		return credentials.Pair{}, fmt.Errorf("[gateway refresh] %s: %w", realm, apperrors.ErrInvalidRefreshReply)
	}

	next := credentials.Pair{
		Access:  utils.Value(tokens.AccessToken),
		Refresh: pair.Refresh,
	}
	if tokens.RefreshToken != nil {
		next.Refresh = *tokens.RefreshToken
	}
	if err := c.store.SetPair(realm, next); err != nil {
		log.Err(err).Str("realm", string(realm)).Msg("Failed to store refreshed tokens")
	}

	c.metrics.Refreshes.WithLabelValues(string(realm), "success").Inc()
	log.Info().Str("realm", string(realm)).Msg("Token refreshed")
	return next, nil
}

// expire clears the realm's credentials and classifies the failure as a session expiry.
func (c *Client) expire(req Request, status int, cause error) *Error {
	realm := req.Realm()
	if err := c.store.ClearRealm(realm); err != nil {
		log.Err(err).Str("realm", string(realm)).Msg("Failed to clear expired credentials")
	}
	log.Info().Str("realm", string(realm)).Str("path", req.Path).Int("status", status).Msg("Session expired")
	return newError(KindSessionExpired, req, status, "", cause)
}

// refreshFailed expires the session unless the refresh was abandoned because a
// context ended (the caller's or the shared exchange's), in which case the
// stored tokens are left for the next request.
func (c *Client) refreshFailed(ctx context.Context, req Request, status int, err error) *Error {
	if ctx.Err() != nil || apperrors.Is(err, context.Canceled) || apperrors.Is(err, context.DeadlineExceeded) {
		return newError(KindNetworkUnavailable, req, 0, "token refresh abandoned", err)
	}
	return c.expire(req, status, err)
}

// tryFallback substitutes offline content for a GET that never reached the backend.
// Errors carrying a status, non-GET calls and auth endpoints always propagate.
func (c *Client) tryFallback(ctx context.Context, req Request, err error) (*Response, bool) {
	if req.Method != http.MethodGet || IsAuthEndpoint(req.Path) || ctx.Err() != nil {
		return nil, false
	}
	var gwErr *Error
	if !apperrors.As(err, &gwErr) || gwErr.Kind != KindNetworkUnavailable || gwErr.Status != 0 {
		return nil, false
	}

	body, ok := c.fallback.Lookup(ctx, req.Path)
	if !ok {
		return nil, false
	}

	c.metrics.Fallbacks.WithLabelValues(string(req.Realm())).Inc()
	log.Warn().Err(err).Str("path", req.Path).Msg("Backend unreachable, serving offline content")
	return &Response{
		StatusCode:   http.StatusOK,
		Header:       http.Header{"Content-Type": []string{"application/json"}},
		Body:         body,
		IsJSON:       json.Valid(body),
		FromFallback: true,
	}, true
}

// statusError builds the classified error for a non-OK reply, preferring the
// backend's {error} or {message} over raw text.
func statusError(req Request, resp *Response) *Error {
	return newError(KindRequestFailed, req, resp.StatusCode, errorMessage(resp), nil)
}

func errorMessage(resp *Response) string {
	if gjson.ValidBytes(resp.Body) {
		root := gjson.ParseBytes(resp.Body)
		for _, path := range []string{"error", "error.message", "message"} {
			if v := root.Get(path); v.Type == gjson.String && v.String() != "" {
				return v.String()
			}
		}
	}
	if text := strings.TrimSpace(string(resp.Body)); text != "" {
		if runes := []rune(text); len(runes) > maxErrorText {
			text = string(runes[:maxErrorText])
		}
		return text
	}
	return fmt.Sprintf("HTTP %d", resp.StatusCode)
}
