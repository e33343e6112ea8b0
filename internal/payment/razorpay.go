// Package payment brokers the hosted checkout: it makes sure the gateway's
// browser SDK is reachable and hands out single-shot Checkout handles.
package payment

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"brpl/pkg/domain"
)

// Order is the server-created order a checkout is opened for.
type Order struct {
	ID       string
	Amount   int64
	Currency string
}

type Config struct {
	KeyID        string
	ScriptURL    string
	MerchantName string
	Description  string
	ThemeColor   string
}

// Razorpay is the hosted checkout gateway.
type Razorpay struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger

	loaded atomic.Bool
	group  singleflight.Group
}

type Option func(*Razorpay)

func WithHTTPClient(c *http.Client) Option {
	return func(r *Razorpay) {
		r.httpClient = c
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Razorpay) {
		r.logger = l
	}
}

func NewRazorpay(cfg Config, opts ...Option) *Razorpay {
	r := &Razorpay{
		cfg:        cfg,
		httpClient: &http.Client{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// sdkLoadTimeout bounds the shared fetch, which outlives any one caller.
const sdkLoadTimeout = 15 * time.Second

// Load confirms the checkout SDK is reachable. Concurrent callers share one
// fetch; once it succeeds later calls return immediately. A failure is not
// cached, so the next payment attempt fetches again. A caller whose ctx ends
// stops waiting without cancelling the fetch for the others.
func (r *Razorpay) Load(ctx context.Context) error {
	if r.loaded.Load() {
		return nil
	}
	ch := r.group.DoChan("sdk", func() (any, error) {
		if r.loaded.Load() {
			return nil, nil
		}
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sdkLoadTimeout)
		defer cancel()
		if err := r.fetchScript(fetchCtx); err != nil {
			return nil, err
		}
		r.loaded.Store(true)
		r.logger.InfoContext(fetchCtx, "payment sdk loaded", "script_url", r.cfg.ScriptURL)
		return nil, nil
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Razorpay) Loaded() bool {
	return r.loaded.Load()
}

func (r *Razorpay) fetchScript(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.cfg.ScriptURL, nil)
	if err != nil {
		return fmt.Errorf("build sdk request: %w", err)
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch sdk: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("fetch sdk: status %d", resp.StatusCode)
	}
	return nil
}

// Open prepares a checkout for order.
func (r *Razorpay) Open(order Order, prefill Prefill) *Checkout {
	return newCheckout(domain.NewCheckoutID(), Options{
		Key:         r.cfg.KeyID,
		Amount:      order.Amount,
		Currency:    order.Currency,
		Name:        r.cfg.MerchantName,
		Description: r.cfg.Description,
		OrderID:     order.ID,
		Prefill:     prefill,
		ThemeColor:  r.cfg.ThemeColor,
	})
}
