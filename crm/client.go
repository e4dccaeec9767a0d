// Package crm implements the domain tool layer: typed, retried, and
// dedupe-guarded HTTP call-outs to the external CRM API that every domain
// subgraph builds on.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nexacrm/coordinator/credential"
	"github.com/nexacrm/coordinator/telemetry"
)

// ErrDuplicateMutation is returned when Mutate observes a fingerprint it
// already processed within the dedupe window. The caller should treat this
// as success: the effect the caller wanted already happened (or is already
// in flight) under the earlier call.
var ErrDuplicateMutation = errors.New("crm: duplicate mutation suppressed")

const defaultCallTimeout = 10 * time.Second

// Client issues call-outs against the CRM's JSON API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     telemetry.Logger
	metrics    telemetry.Metrics
	tracer     telemetry.Tracer
	dedupe     *dedupeTable
	retry      retryConfig
	refresher  *credential.Refresher
}

// Options configures a Client.
type Options struct {
	BaseURL string
	// HTTPClient overrides the default client (tuned MaxIdleConnsPerHost,
	// 10s per-call deadline). Tests substitute one pointed at an httptest
	// server.
	HTTPClient *http.Client
	Logger     telemetry.Logger
	Metrics    telemetry.Metrics
	Tracer     telemetry.Tracer
	// Refresher, when set, lets call react to a 401 by force-refreshing the
	// calling session's credential and replaying the call once, rather than
	// only refreshing proactively ahead of expiry. Nil disables reactive
	// refresh; call-sites that never stamp a session id onto ctx
	// (crm.WithSessionID) get the same behavior regardless.
	Refresher *credential.Refresher
}

// New builds a Client.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("crm: base url is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 32,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = telemetry.NewNoopTracer()
	}
	return &Client{
		baseURL:    opts.BaseURL,
		httpClient: httpClient,
		logger:     logger,
		metrics:    metrics,
		tracer:     tracer,
		dedupe:     newDedupeTable(),
		retry:      defaultRetryConfig(),
		refresher:  opts.Refresher,
	}, nil
}

// Read issues an idempotent GET/query-style call against path. It retries
// transient failures with exponential backoff.
func (c *Client) Read(ctx context.Context, path string, env Envelope, payload any) (Response, error) {
	ctx, span := c.tracer.Start(ctx, "[CRM:read] "+path)
	defer span.End()

	var resp Response
	err := withRetry(ctx, c.retry, func(ctx context.Context) error {
		r, err := c.call(ctx, path, env, payload)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		span.SetError(err)
	}
	c.recordOutcome("read", path, err)
	return resp, err
}

// Mutate issues a non-idempotent create/update/delete call against path.
// Mutations are never retried automatically; instead, a call whose
// (organizationID, path, payload) fingerprint was already seen within the
// dedupe window is suppressed and ErrDuplicateMutation is returned without
// contacting the CRM, since a blind retry of a mutation can double-apply.
func (c *Client) Mutate(ctx context.Context, path string, env Envelope, payload any) (Response, error) {
	ctx, span := c.tracer.Start(ctx, "[CRM:mutate] "+path)
	defer span.End()

	fp, err := Fingerprint(env.OrganizationID, path, payload)
	if err != nil {
		span.SetError(err)
		return Response{}, err
	}
	if c.dedupe.SeenRecently(fp) {
		c.logger.Warn(ctx, "[CRM:mutate] duplicate suppressed", "path", path, "fingerprint", fp)
		c.metrics.IncCounter("crm.mutation.deduped", 1, "path", path)
		return Response{}, ErrDuplicateMutation
	}

	resp, err := c.call(ctx, path, env, payload)
	if err != nil {
		span.SetError(err)
	}
	c.recordOutcome("mutate", path, err)
	return resp, err
}

// call issues one CRM request, reactively refreshing and replaying exactly
// once if the CRM rejects the token with a 401. A mutation that reaches this
// retry never double-applies: the original attempt that got the 401 never
// touched CRM state, and Mutate's dedupe fingerprint was already recorded
// before the first attempt, so the replay reuses the same fingerprint entry
// rather than being treated as a second, independent mutation.
func (c *Client) call(ctx context.Context, path string, env Envelope, payload any) (Response, error) {
	resp, err := c.doCall(ctx, path, env, payload)
	if err == nil || ClassOf(err) != ClassAuthentication || c.refresher == nil {
		return resp, err
	}
	sessionID := sessionIDFrom(ctx)
	if sessionID == "" {
		return resp, err
	}
	cred, rerr := c.refresher.ForceRefresh(ctx, sessionID)
	if rerr != nil {
		c.logger.Warn(ctx, "[CRM:call] reactive refresh failed", "path", path, "session_id", sessionID, "error", rerr.Error())
		return resp, err
	}
	env.Token = cred.Token
	return c.doCall(ctx, path, env, payload)
}

func (c *Client) doCall(ctx context.Context, path string, env Envelope, payload any) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultCallTimeout)
	defer cancel()

	body, err := mergeEnvelope(env, payload)
	if err != nil {
		return Response{}, fmt.Errorf("crm: encode request: %w", err)
	}

	requestID := uuid.NewString()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return Response{}, &Error{Class: ClassUnknown, Message: "build request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", requestID)

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		class := ClassNetwork
		if ctx.Err() == context.DeadlineExceeded {
			class = ClassTimeout
		}
		return Response{}, &Error{Class: class, Message: "call failed", Cause: err}
	}
	defer func() { _ = httpResp.Body.Close() }()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return Response{}, &Error{Class: ClassNetwork, Message: "read response", Cause: err}
	}

	if httpResp.StatusCode >= 400 {
		return Response{}, &Error{
			Class:      classify(httpResp.StatusCode, nil),
			StatusCode: httpResp.StatusCode,
			Message:    fmt.Sprintf("%s returned status %d", path, httpResp.StatusCode),
		}
	}

	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Response{}, &Error{Class: ClassUnknown, Message: "decode response", Cause: err}
	}
	if !resp.Valid && resp.Error != nil {
		return resp, &Error{
			Class:      ClassUnknown,
			StatusCode: httpResp.StatusCode,
			Message:    resp.Error.Message,
		}
	}
	return resp, nil
}

func (c *Client) recordOutcome(kind, path string, err error) {
	tags := []string{"kind", kind, "path", path}
	if err != nil {
		tags = append(tags, "class", string(ClassOf(err)))
		c.metrics.IncCounter("crm.call.error", 1, tags...)
		return
	}
	c.metrics.IncCounter("crm.call.success", 1, tags...)
}

// mergeEnvelope flattens env's fields alongside payload's into one JSON
// object, matching the CRM's flat {Token, OrganizationId, ...} request
// shape.
func mergeEnvelope(env Envelope, payload any) ([]byte, error) {
	envBytes, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	var merged map[string]any
	if err := json.Unmarshal(envBytes, &merged); err != nil {
		return nil, err
	}
	if payload != nil {
		payloadBytes, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		var payloadMap map[string]any
		if err := json.Unmarshal(payloadBytes, &payloadMap); err != nil {
			return nil, err
		}
		for k, v := range payloadMap {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}
