package payment

import (
	"errors"
	"sync"

	"brpl/pkg/domain"
)

// ErrAlreadyResolved is returned by every resolution after the first.
var ErrAlreadyResolved = errors.New("checkout already resolved")

type OutcomeKind string

const (
	OutcomeCompleted OutcomeKind = "completed"
	OutcomeDismissed OutcomeKind = "dismissed"
)

// Reference is the signed triple the hosted checkout hands back on success.
type Reference struct {
	OrderID   string
	PaymentID string
	Signature string
}

type Outcome struct {
	Kind      OutcomeKind
	Reference Reference
}

// Prefill seeds the hosted checkout form.
type Prefill struct {
	Name    string `json:"name,omitempty"`
	Contact string `json:"contact,omitempty"`
	Email   string `json:"email,omitempty"`
}

// Options is everything the browser needs to open the hosted checkout.
type Options struct {
	Key         string  `json:"key"`
	Amount      int64   `json:"amount"`
	Currency    string  `json:"currency"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	OrderID     string  `json:"order_id"`
	Prefill     Prefill `json:"prefill"`
	ThemeColor  string  `json:"theme_color,omitempty"`
}

// Checkout is one opened hosted checkout. Exactly one of Complete or Dismiss
// wins; Done closes once the owner has applied that outcome via Settle.
type Checkout struct {
	id      domain.CheckoutID
	options Options

	mu      sync.Mutex
	outcome *Outcome
	err     error
	settled bool
	done    chan struct{}
}

func newCheckout(id domain.CheckoutID, opts Options) *Checkout {
	return &Checkout{id: id, options: opts, done: make(chan struct{})}
}

func (c *Checkout) ID() domain.CheckoutID {
	return c.id
}

func (c *Checkout) Options() Options {
	return c.options
}

func (c *Checkout) OrderID() string {
	return c.options.OrderID
}

// Complete claims the checkout as paid.
func (c *Checkout) Complete(ref Reference) error {
	return c.resolve(Outcome{Kind: OutcomeCompleted, Reference: ref})
}

// Dismiss claims the checkout as closed without payment.
func (c *Checkout) Dismiss() error {
	return c.resolve(Outcome{Kind: OutcomeDismissed})
}

func (c *Checkout) resolve(o Outcome) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.outcome != nil {
		return ErrAlreadyResolved
	}
	c.outcome = &o
	return nil
}

// Outcome reports the winning resolution, if any.
func (c *Checkout) Outcome() (Outcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.outcome == nil {
		return Outcome{}, false
	}
	return *c.outcome, true
}

// Resolved reports whether Complete or Dismiss has been claimed.
func (c *Checkout) Resolved() bool {
	_, ok := c.Outcome()
	return ok
}

// Settle records the result of applying the outcome and releases waiters.
// Only the first call has any effect.
func (c *Checkout) Settle(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.settled {
		return
	}
	c.settled = true
	c.err = err
	close(c.done)
}

// Done is closed after Settle.
func (c *Checkout) Done() <-chan struct{} {
	return c.done
}

// Err is the settle result; nil before Done or on success.
func (c *Checkout) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}
