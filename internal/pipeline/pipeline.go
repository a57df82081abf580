// Package pipeline issues authenticated requests against the ledger backend.
// It attaches bearer credentials, classifies every outcome, funnels 401s
// through the single-flight refresh coordinator, and applies the declarative
// retry policy for transient failures.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"go-ledger-client/internal/model"
	"go-ledger-client/internal/tokenstore"
	"go-ledger-client/pkg/apierror"
)

const (
	refreshPath = "/api/auth/refresh"

	// Responses larger than this are truncated; the client never streams.
	maxBodyBytes = 4 << 20
)

// Request describes one logical call. Idempotent must be set by the caller
// for the retry policy to apply; replay-after-refresh does not depend on it.
type Request struct {
	Method     string
	Path       string
	Query      url.Values
	Body       any
	Idempotent bool
}

type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Tokens     *tokenstore.Store
	Policy     RetryPolicy
	UserAgent  string
	Logger     *slog.Logger

	// OnForcedLogout fires exactly once per failed refresh exchange.
	OnForcedLogout func(err error)

	// OnSurfacedError fires exactly once per error returned to a caller,
	// after retries and the refresh path are exhausted. Context
	// cancellations do not count as surfaced errors.
	OnSurfacedError func(req Request, apiErr *apierror.APIError)
}

type Pipeline struct {
	baseURL   string
	client    *http.Client
	tokens    *tokenstore.Store
	policy    RetryPolicy
	userAgent string
	log       *slog.Logger
	onSurface func(req Request, apiErr *apierror.APIError)

	coordinator *Coordinator

	// sleep is swappable so retry/backoff tests run without real delays.
	sleep func(ctx context.Context, d time.Duration) error
}

func New(cfg Config) *Pipeline {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Policy.MaxAttempts == 0 {
		cfg.Policy = DefaultRetryPolicy()
	}

	p := &Pipeline{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		client:    cfg.HTTPClient,
		tokens:    cfg.Tokens,
		policy:    cfg.Policy,
		userAgent: cfg.UserAgent,
		log:       cfg.Logger,
		onSurface: cfg.OnSurfacedError,
		sleep:     sleepCtx,
	}
	p.coordinator = NewCoordinator(p.refreshExchange, cfg.Tokens.AccessToken, cfg.OnForcedLogout, cfg.Logger)

	return p
}

// Coordinator exposes the refresh coordinator, mainly for tests.
func (p *Pipeline) Coordinator() *Coordinator {
	return p.coordinator
}

// Do executes the request and returns either a non-error response or a typed
// *apierror.APIError. An authenticated request that hits 401 waits for the
// shared refresh and is replayed exactly once; a second 401 after the replay
// is terminal.
func (p *Pipeline) Do(ctx context.Context, req Request) (*Response, error) {
	attempt := 0
	replayed := false

	for {
		resp, usedToken, transportErr := p.execute(ctx, req)

		var status int
		var body []byte
		if resp != nil {
			status = resp.Status
			body = resp.Body
		}

		apiErr := apierror.Classify(status, body, transportErr)
		if apiErr == nil {
			requestsTotal.WithLabelValues(req.Method, "success").Inc()
			return resp, nil
		}

		// Authenticated 401s go through the single-flight refresh. Requests
		// that never carried a token (login, refresh itself) surface the
		// 401 directly.
		if apiErr.Type == apierror.TypeAuthentication && usedToken != "" {
			if replayed {
				requestsTotal.WithLabelValues(req.Method, "auth_failed").Inc()
				p.log.Warn("request failed again after token refresh", "method", req.Method, "path", req.Path)
				return nil, p.surface(req, apiErr)
			}
			replayed = true

			if refreshErr := p.coordinator.Await(ctx, usedToken); refreshErr != nil {
				requestsTotal.WithLabelValues(req.Method, "auth_failed").Inc()
				return nil, p.surface(req, refreshFailure(refreshErr))
			}
			continue
		}

		if p.policy.ShouldRetry(apiErr.Type, req.Idempotent, attempt) {
			delay := p.policy.Delay(attempt)
			attempt++
			retriesTotal.Inc()
			p.log.Debug("retrying request", "method", req.Method, "path", req.Path, "attempt", attempt, "delay", delay)

			if sleepErr := p.sleep(ctx, delay); sleepErr != nil {
				requestsTotal.WithLabelValues(req.Method, "canceled").Inc()
				return nil, sleepErr
			}
			continue
		}

		requestsTotal.WithLabelValues(req.Method, strings.ToLower(string(apiErr.Type))).Inc()
		return nil, p.surface(req, apiErr)
	}
}

// surface runs the exactly-once surfaced-error hook and returns the error.
func (p *Pipeline) surface(req Request, err error) error {
	if p.onSurface != nil {
		var apiErr *apierror.APIError
		if errors.As(err, &apiErr) {
			p.onSurface(req, apiErr)
		}
	}

	return err
}

// DoJSON executes the request and decodes a successful response body into
// dest. Pass nil to discard the body.
func (p *Pipeline) DoJSON(ctx context.Context, req Request, dest any) error {
	resp, err := p.Do(ctx, req)
	if err != nil {
		return err
	}
	if dest == nil || len(resp.Body) == 0 {
		return nil
	}

	if err := json.Unmarshal(resp.Body, dest); err != nil {
		return fmt.Errorf("decode %s %s response: %w", req.Method, req.Path, err)
	}
	return nil
}

// execute performs one transport attempt. The second return is the bearer
// token the request carried, empty for unauthenticated calls; it gates the
// refresh path and identifies stale tokens.
func (p *Pipeline) execute(ctx context.Context, req Request) (*Response, string, error) {
	target := p.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var bodyReader io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, "", err
		}
		bodyReader = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, bodyReader)
	if err != nil {
		return nil, "", err
	}

	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("X-Request-ID", uuid.NewString())
	if p.userAgent != "" {
		httpReq.Header.Set("User-Agent", p.userAgent)
	}

	usedToken := ""
	if token, ok := p.tokens.AccessToken(); ok {
		httpReq.Header.Set("Authorization", "Bearer "+token)
		usedToken = token
	}

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, usedToken, err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes))
	if err != nil {
		return nil, usedToken, err
	}

	return &Response{Status: httpResp.StatusCode, Header: httpResp.Header, Body: body}, usedToken, nil
}

// refreshExchange trades the stored refresh token for a new access token. It
// runs under the coordinator's single-flight guarantee and deliberately
// bypasses Do to keep the refresh endpoint out of the refresh path. Any
// failure clears the session.
func (p *Pipeline) refreshExchange(ctx context.Context) error {
	session, ok := p.tokens.Get()
	if !ok || session.RefreshToken == "" {
		p.tokens.Clear()
		refreshTotal.WithLabelValues("failure").Inc()
		return &apierror.APIError{
			Type:     apierror.TypeAuthentication,
			Severity: apierror.SeverityHigh,
			Message:  "Session can no longer be renewed",
			Err:      model.ErrNoRefreshToken,
		}
	}

	payload, err := json.Marshal(model.RefreshRequest{RefreshToken: session.RefreshToken})
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+refreshPath, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.userAgent != "" {
		httpReq.Header.Set("User-Agent", p.userAgent)
	}

	httpResp, err := p.client.Do(httpReq)

	var status int
	var body []byte
	if err == nil {
		defer httpResp.Body.Close()
		status = httpResp.StatusCode
		body, _ = io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes))
	}

	if apiErr := apierror.Classify(status, body, err); apiErr != nil {
		p.tokens.Clear()
		refreshTotal.WithLabelValues("failure").Inc()
		return apiErr
	}

	var refreshed model.RefreshResponse
	if err := json.Unmarshal(body, &refreshed); err != nil || refreshed.AccessToken == "" {
		p.tokens.Clear()
		refreshTotal.WithLabelValues("failure").Inc()
		return &apierror.APIError{
			Type:     apierror.TypeAuthentication,
			Severity: apierror.SeverityHigh,
			Message:  "Refresh produced no usable token",
			Err:      err,
		}
	}

	if err := p.tokens.SetAccessToken(refreshed.AccessToken); err != nil {
		refreshTotal.WithLabelValues("failure").Inc()
		return &apierror.APIError{
			Type:     apierror.TypeAuthentication,
			Severity: apierror.SeverityHigh,
			Message:  "Refreshed token could not be stored",
			Err:      err,
		}
	}

	refreshTotal.WithLabelValues("success").Inc()
	return nil
}

// refreshFailure shapes the coordinator's outcome into the AUTHENTICATION
// error surfaced to callers whose replay never happened.
func refreshFailure(err error) error {
	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) && apiErr.Type == apierror.TypeAuthentication {
		return apiErr
	}

	return &apierror.APIError{
		Type:     apierror.TypeAuthentication,
		Severity: apierror.SeverityHigh,
		Message:  "Session could not be renewed",
		Err:      err,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
