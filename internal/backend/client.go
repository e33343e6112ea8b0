// Package backend is the HTTP client for the league's REST API.
//
// Every call is fire-once: no retries and no client-side deadline. Cancellation
// flows only through the caller's context. A shared circuit breaker fails fast
// while the backend is unreachable.
package backend

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
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"brpl/internal/platform/metrics"
	"brpl/pkg/platform/circuit"
	"brpl/pkg/requestcontext"
)

const (
	tracerName   = "brpl/internal/backend"
	maxBodyBytes = 1 << 20
)

// Endpoint names used for spans, metrics and error reporting.
const (
	EndpointSendOTP       = "send_otp"
	EndpointVerifyOTP     = "verify_otp"
	EndpointCreateOrder   = "create_order"
	EndpointVerifyPayment = "verify_payment"
	EndpointRegister      = "register"
	EndpointTrackVisit    = "track_visit"
	EndpointPartnerLogin  = "partner_login"
	EndpointAdminLogin    = "admin_login"
	EndpointAdminStats    = "admin_stats"
	EndpointAdminRecords  = "admin_records"

	EndpointPartnerProfile = "partner_profile"
	EndpointPartnerPlayers = "partner_players"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *circuit.Breaker
	tracer     trace.Tracer
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(cl *Client) {
		cl.breaker = b
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(cl *Client) {
		cl.metrics = m
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) {
		cl.logger = l
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(cl *Client) {
		cl.tracer = tp.Tracer(tracerName)
	}
}

// New builds a client for baseURL (no trailing slash).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{},
		breaker:    circuit.New("backend"),
		tracer:     otel.Tracer(tracerName),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SendOTP asks the backend to text a one-time code to mobile.
func (c *Client) SendOTP(ctx context.Context, mobile string) error {
	return c.do(ctx, call{
		endpoint: EndpointSendOTP,
		method:   http.MethodPost,
		path:     "/auth/send-otp",
		body:     sendOTPRequest{Mobile: mobile},
	})
}

// VerifyOTP checks code for mobile. A 2xx with success=false is returned as
// a result, not an error; callers decide.
func (c *Client) VerifyOTP(ctx context.Context, mobile, code string) (VerifyOTPResult, error) {
	var out VerifyOTPResult
	err := c.do(ctx, call{
		endpoint: EndpointVerifyOTP,
		method:   http.MethodPost,
		path:     "/auth/verify-otp",
		body:     verifyOTPRequest{Mobile: mobile, OTP: code},
		out:      &out,
	})
	return out, err
}

// CreateOrder creates a payment order. amount is advisory.
func (c *Client) CreateOrder(ctx context.Context, amount int64) (Order, error) {
	var out Order
	err := c.do(ctx, call{
		endpoint: EndpointCreateOrder,
		method:   http.MethodPost,
		path:     "/api/payment/order-landing",
		body:     createOrderRequest{Amount: amount},
		out:      &out,
	})
	if err != nil {
		return Order{}, err
	}
	if out.ID == "" {
		return Order{}, &Error{Category: ErrorBadData, Endpoint: EndpointCreateOrder, Status: http.StatusOK, Message: "order response missing id"}
	}
	return out, nil
}

// VerifyPayment forwards the checkout's signed reference for verification.
func (c *Client) VerifyPayment(ctx context.Context, ref PaymentReference) (VerifyPaymentResult, error) {
	var out VerifyPaymentResult
	err := c.do(ctx, call{
		endpoint: EndpointVerifyPayment,
		method:   http.MethodPost,
		path:     "/api/payment/verify-landing",
		body:     ref,
		out:      &out,
	})
	return out, err
}

// Register creates the player account.
func (c *Client) Register(ctx context.Context, reg Registration) error {
	return c.do(ctx, call{
		endpoint: EndpointRegister,
		method:   http.MethodPost,
		path:     "/auth/register",
		body:     reg,
	})
}

// TrackVisit records a landing page visit.
func (c *Client) TrackVisit(ctx context.Context, v Visit) error {
	return c.do(ctx, call{
		endpoint: EndpointTrackVisit,
		method:   http.MethodPost,
		path:     "/auth/track-visit",
		body:     v,
	})
}

// PartnerLogin authenticates a coach or influencer.
func (c *Client) PartnerLogin(ctx context.Context, email, password string) (PartnerSession, error) {
	var out PartnerSession
	err := c.do(ctx, call{
		endpoint: EndpointPartnerLogin,
		method:   http.MethodPost,
		path:     "/auth/login-coach",
		body:     credentials{Email: email, Password: password},
		out:      &out,
	})
	if err != nil {
		return PartnerSession{}, err
	}
	if out.Token == "" {
		return PartnerSession{}, &Error{Category: ErrorBadData, Endpoint: EndpointPartnerLogin, Status: http.StatusOK, Message: "login response missing token"}
	}
	return out, nil
}

// AdminLogin authenticates an administrator and returns the backend token.
func (c *Client) AdminLogin(ctx context.Context, email, password string) (string, error) {
	var out adminLoginResponse
	err := c.do(ctx, call{
		endpoint: EndpointAdminLogin,
		method:   http.MethodPost,
		path:     "/admin/landing/login",
		body:     credentials{Email: email, Password: password},
		out:      &out,
	})
	if err != nil {
		return "", err
	}
	if out.Data.Token == "" {
		return "", &Error{Category: ErrorBadData, Endpoint: EndpointAdminLogin, Status: http.StatusOK, Message: "login response missing token"}
	}
	return out.Data.Token, nil
}

// AdminStats fetches dashboard counters. Missing stats read as zeros.
func (c *Client) AdminStats(ctx context.Context, token string) (Stats, error) {
	var out statsResponse
	err := c.do(ctx, call{
		endpoint: EndpointAdminStats,
		method:   http.MethodGet,
		path:     "/admin/stats",
		token:    token,
		out:      &out,
	})
	if err != nil {
		return Stats{}, err
	}
	if out.Data.Stats == nil {
		return Stats{}, nil
	}
	return *out.Data.Stats, nil
}

// AdminRecords fetches one page of records.
func (c *Client) AdminRecords(ctx context.Context, token string, q RecordsQuery) (Records, error) {
	params := url.Values{}
	params.Set("type", q.Type)
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("limit", strconv.Itoa(q.Limit))
	params.Set("search", q.Search)

	var out recordsResponse
	err := c.do(ctx, call{
		endpoint: EndpointAdminRecords,
		method:   http.MethodGet,
		path:     "/admin/records?" + params.Encode(),
		token:    token,
		out:      &out,
	})
	if err != nil {
		return Records{}, err
	}
	if out.Data.Items == nil {
		out.Data.Items = []json.RawMessage{}
	}
	return out.Data, nil
}

// PartnerProfile fetches the logged-in coach or influencer.
func (c *Client) PartnerProfile(ctx context.Context, token string) (PartnerProfile, error) {
	var out partnerProfileResponse
	err := c.do(ctx, call{
		endpoint: EndpointPartnerProfile,
		method:   http.MethodGet,
		path:     "/auth/partner/profile",
		token:    token,
		out:      &out,
	})
	if err != nil {
		return PartnerProfile{}, err
	}
	if out.Data == nil {
		return PartnerProfile{}, &Error{Category: ErrorBadData, Endpoint: EndpointPartnerProfile, Status: http.StatusOK, Message: "profile response missing data"}
	}
	return *out.Data, nil
}

// PartnerPlayers fetches one page of the players a partner brought in:
// a coach's roster or an influencer's referrals.
func (c *Client) PartnerPlayers(ctx context.Context, token string, q PlayersQuery) (Records, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("limit", strconv.Itoa(q.Limit))
	params.Set("search", q.Search)

	var out recordsResponse
	err := c.do(ctx, call{
		endpoint: EndpointPartnerPlayers,
		method:   http.MethodGet,
		path:     "/auth/coach/my-players?" + params.Encode(),
		token:    token,
		out:      &out,
	})
	if err != nil {
		return Records{}, err
	}
	if out.Data.Items == nil {
		out.Data.Items = []json.RawMessage{}
	}
	return out.Data, nil
}

type call struct {
	endpoint string
	method   string
	path     string
	token    string
	body     any
	out      any
}

func (c *Client) do(ctx context.Context, cl call) (err error) {
	start := time.Now()
	ctx, span := c.tracer.Start(ctx, "backend."+cl.endpoint,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("backend.endpoint", cl.endpoint),
			attribute.String("http.request.method", cl.method),
		),
	)
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = string(GetCategory(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		span.End()
		c.metrics.ObserveBackendLatency(cl.endpoint, outcome, start)
	}()

	if !c.breaker.Allow() {
		return &Error{Category: ErrorTransport, Endpoint: cl.endpoint, Message: "backend unavailable", Underlying: ErrCircuitOpen}
	}

	req, err := c.newRequest(ctx, cl)
	if err != nil {
		return &Error{Category: ErrorTransport, Endpoint: cl.endpoint, Message: "build request", Underlying: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recordFailure(ctx)
		return &Error{Category: ErrorTransport, Endpoint: cl.endpoint, Message: "request failed", Underlying: err}
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		c.recordFailure(ctx)
		return &Error{Category: ErrorTransport, Endpoint: cl.endpoint, Status: resp.StatusCode, Message: "read response", Underlying: err}
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		c.recordFailure(ctx)
	} else {
		c.recordSuccess(ctx)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		_ = json.Unmarshal(raw, &eb)
		category := ErrorRejected
		if cl.token != "" && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			category = ErrorUnauthorized
		}
		return &Error{Category: category, Endpoint: cl.endpoint, Status: resp.StatusCode, Message: eb.message()}
	}

	if cl.out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, cl.out); err != nil {
		return &Error{Category: ErrorBadData, Endpoint: cl.endpoint, Status: resp.StatusCode, Message: "decode response", Underlying: err}
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, cl call) (*http.Request, error) {
	var body io.Reader
	if cl.body != nil {
		payload, err := json.Marshal(cl.body)
		if err != nil {
			return nil, fmt.Errorf("marshal %s body: %w", cl.endpoint, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, c.baseURL+cl.path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if cl.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cl.token != "" {
		req.Header.Set("Authorization", "Bearer "+cl.token)
	}
	if rid := requestcontext.RequestID(ctx); rid != "" {
		req.Header.Set("X-Request-ID", rid)
	}
	return req, nil
}

func (c *Client) recordFailure(ctx context.Context) {
	if ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled) {
		// caller went away; says nothing about backend health
		return
	}
	_, change := c.breaker.RecordFailure()
	if change.Opened {
		c.logger.WarnContext(ctx, "backend circuit opened", "breaker", c.breaker.Name())
		c.metrics.SetBreakerOpen(c.breaker.Name(), true)
	}
}

func (c *Client) recordSuccess(ctx context.Context) {
	_, change := c.breaker.RecordSuccess()
	if change.Closed {
		c.logger.InfoContext(ctx, "backend circuit closed", "breaker", c.breaker.Name())
		c.metrics.SetBreakerOpen(c.breaker.Name(), false)
	}
}
