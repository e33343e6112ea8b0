package service

import (
	"context"
	"sync"

	"brpl/internal/backend"
	"brpl/internal/notify"
	"brpl/internal/payment"
	"brpl/internal/wizard/models"
	id "brpl/pkg/domain"
	dErrors "brpl/pkg/domain-errors"
	audit "brpl/pkg/platform/audit"
	"brpl/pkg/privacy"
	"brpl/pkg/requestcontext"
)

// Wizard is one live registration session.
//
// mu guards reg and the checkout fields and is never held across a backend
// or gateway call. Each operation checks and sets its busy flag under the
// lock, releases it for I/O, then re-locks to apply the result. Busy flags
// are cleared in defers so a panic cannot leave a session stuck.
type Wizard struct {
	id   id.SessionID
	deps *deps
	feed *notify.Feed

	mu  sync.Mutex
	reg *models.Registration
	// checkout is the open hosted checkout, nil when none is open.
	checkout *payment.Checkout
	// lastCheckout is the most recently settled checkout, kept so a late
	// waiter still sees its result.
	lastCheckout *payment.Checkout
}

func newWizard(sessionID id.SessionID, reg *models.Registration, d *deps) *Wizard {
	return &Wizard{
		id:   sessionID,
		deps: d,
		feed: notify.NewFeed(d.noticeCapacity),
		reg:  reg,
	}
}

func (w *Wizard) ID() id.SessionID {
	return w.id
}

// Snapshot is the read-only view of the session.
func (w *Wizard) Snapshot() models.Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	snap := w.reg.Snapshot(w.id.String())
	if w.checkout != nil {
		snap.Checkout = &models.CheckoutView{
			ID:      w.checkout.ID().String(),
			Options: w.checkout.Options(),
		}
	}
	return snap
}

// Notices drains the notices posted since the last call.
func (w *Wizard) Notices() []notify.Notice {
	return w.feed.Drain()
}

// fail posts err as a destructive notice and returns it.
func (w *Wizard) fail(err error, fallbackTitle string) error {
	w.feed.Post(notify.Error(
		models.Title(err, fallbackTitle),
		models.Description(err, descSomethingWrong),
	))
	return err
}

func (w *Wizard) record(ctx context.Context, operation string, err error) {
	w.deps.metrics.IncrementOperation(operation, outcomeLabel(err))
	if err != nil {
		w.deps.logger.InfoContext(ctx, "wizard operation failed",
			"operation", operation,
			"session_id", w.id.String(),
			"code", string(dErrors.CodeOf(err)),
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}

// -----------------------------------------------------------------------------
// Step 1
// -----------------------------------------------------------------------------

// UpdateDetails replaces the step-1 form fields.
func (w *Wizard) UpdateDetails(ctx context.Context, in models.DetailsInput) (err error) {
	defer func() { w.record(ctx, "update_details", err) }()
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.reg.ApplyDetails(in, requestcontext.Now(ctx)); err != nil {
		return w.fail(err, "Invalid Details")
	}
	return nil
}

// RequestOTP sends a code to the draft's phone. It does nothing when a code
// is already out or the phone is verified.
func (w *Wizard) RequestOTP(ctx context.Context) (err error) {
	defer func() { w.record(ctx, "request_otp", err) }()

	w.mu.Lock()
	needed, err := w.reg.CanRequestOTP()
	if err != nil || !needed {
		w.mu.Unlock()
		if err != nil {
			return w.fail(err, "Failed to Send OTP")
		}
		return nil
	}
	w.reg.BeginOTPSend()
	phone := w.reg.Draft.Phone
	w.mu.Unlock()

	sent := false
	defer func() {
		w.mu.Lock()
		w.reg.EndOTPSend(sent, requestcontext.Now(ctx))
		w.mu.Unlock()
	}()

	if err := w.deps.backend.SendOTP(ctx, phone); err != nil {
		return w.fail(sendOTPFailure.translate(err), sendOTPFailure.rejectedTitle)
	}
	sent = true
	w.feed.Post(notify.Info("OTP Sent", "Please check your mobile for the OTP."))
	w.deps.emit(ctx, w.id, audit.EventOTPRequested, "ok", "")
	w.deps.logger.InfoContext(ctx, "otp sent",
		"session_id", w.id.String(),
		"phone", privacy.MaskPhone(phone),
		"request_id", requestcontext.RequestID(ctx),
	)
	return nil
}

// VerifyOTP checks code against the draft's phone. Success latches the
// verified flag; any failure allows a fresh code to be requested.
func (w *Wizard) VerifyOTP(ctx context.Context, code string) (err error) {
	defer func() { w.record(ctx, "verify_otp", err) }()

	w.mu.Lock()
	needed, err := w.reg.CanVerifyOTP(code)
	if err != nil || !needed {
		w.mu.Unlock()
		if err != nil {
			return w.fail(err, "Invalid OTP")
		}
		return nil
	}
	w.reg.BeginOTPVerify()
	phone := w.reg.Draft.Phone
	w.mu.Unlock()

	verified := false
	defer func() {
		w.mu.Lock()
		w.reg.EndOTPVerify(verified, requestcontext.Now(ctx))
		w.mu.Unlock()
	}()

	res, err := w.deps.backend.VerifyOTP(ctx, phone, code)
	if err != nil {
		return w.fail(verifyOTPFailure.translate(err), verifyOTPFailure.rejectedTitle)
	}
	if !res.Success {
		w.deps.emit(ctx, w.id, audit.EventOTPRejected, "rejected", res.Message)
		return w.fail(verifyOTPFailure.rejected(res.Message), verifyOTPFailure.rejectedTitle)
	}
	verified = true
	w.feed.Post(notify.Info("OTP Verified", "Mobile number verified successfully."))
	w.deps.emit(ctx, w.id, audit.EventOTPVerified, "ok", "")
	return nil
}

// -----------------------------------------------------------------------------
// Navigation
// -----------------------------------------------------------------------------

// Advance moves to the next step when the current step's gate passes.
func (w *Wizard) Advance(ctx context.Context) (err error) {
	defer func() { w.record(ctx, "advance", err) }()
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.reg.CanAdvance(); err != nil {
		return w.fail(err, "Cannot Continue")
	}
	w.reg.ApplyAdvance(requestcontext.Now(ctx))
	return nil
}

// Back returns to the previous step, keeping everything collected so far.
func (w *Wizard) Back(ctx context.Context) (err error) {
	defer func() { w.record(ctx, "back", err) }()
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.reg.CanBack(); err != nil {
		return w.fail(err, "Cannot Go Back")
	}
	w.reg.ApplyBack(requestcontext.Now(ctx))
	return nil
}

// -----------------------------------------------------------------------------
// Step 2
// -----------------------------------------------------------------------------

// InitiatePayment loads the checkout SDK, creates an order and opens a
// hosted checkout for it. The processing flag stays set until the checkout
// is completed or dismissed.
func (w *Wizard) InitiatePayment(ctx context.Context) (err error) {
	defer func() { w.record(ctx, "initiate_payment", err) }()

	w.mu.Lock()
	if err := w.reg.CanInitiatePayment(); err != nil {
		w.mu.Unlock()
		return w.fail(err, "Payment Error")
	}
	w.reg.BeginPayment()
	prefill := payment.Prefill{
		Name:    w.reg.Draft.Name,
		Contact: w.reg.Draft.Phone,
		Email:   w.reg.Draft.Email,
	}
	w.mu.Unlock()

	opened := false
	defer func() {
		if opened {
			return
		}
		w.mu.Lock()
		w.reg.EndPayment(requestcontext.Now(ctx))
		w.mu.Unlock()
	}()

	if err := w.deps.gateway.Load(ctx); err != nil {
		w.deps.metrics.IncrementPaymentOutcome("sdk_failed")
		return w.fail(models.TitledWrap(err, "Razorpay SDK Failed", dErrors.CodeUnavailable,
			"Failed to load Razorpay SDK. Check your internet connection."), "Razorpay SDK Failed")
	}

	order, err := w.deps.backend.CreateOrder(ctx, w.deps.requestedAmount)
	if err != nil {
		w.deps.metrics.IncrementPaymentOutcome("order_failed")
		w.deps.emit(ctx, w.id, audit.EventPaymentFailed, "order_failed", "")
		return w.fail(createOrderFailure.translate(err), createOrderFailure.rejectedTitle)
	}

	checkout := w.deps.gateway.Open(payment.Order{
		ID:       order.ID,
		Amount:   order.Amount,
		Currency: order.Currency,
	}, prefill)

	w.mu.Lock()
	w.checkout = checkout
	opened = true
	w.mu.Unlock()

	w.deps.emit(ctx, w.id, audit.EventPaymentInitiated, "ok", "")
	w.deps.logger.InfoContext(ctx, "checkout opened",
		"session_id", w.id.String(),
		"checkout_id", checkout.ID().String(),
		"order_id", order.ID,
		"amount", order.Amount,
		"request_id", requestcontext.RequestID(ctx),
	)
	return nil
}

// openCheckout returns the open checkout if its ID is checkoutID.
func (w *Wizard) openCheckout(checkoutID string) (*payment.Checkout, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.checkout == nil || w.checkout.ID().String() != checkoutID {
		if w.lastCheckout != nil && w.lastCheckout.ID().String() == checkoutID {
			return nil, models.Titled("Payment Already Resolved", dErrors.CodeConflict, "This payment window is already closed.")
		}
		return nil, dErrors.New(dErrors.CodeNotFound, "checkout not found")
	}
	return w.checkout, nil
}

// closeCheckout clears the processing flag and retires c.
func (w *Wizard) closeCheckout(ctx context.Context, c *payment.Checkout) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.reg.EndPayment(requestcontext.Now(ctx))
	if w.checkout == c {
		w.checkout = nil
	}
	w.lastCheckout = c
}

// CompletePayment handles the checkout's success callback. Only a verified
// payment with a positive server amount moves the wizard to step 3; any
// other result leaves it on step 2 needing a fresh attempt.
func (w *Wizard) CompletePayment(ctx context.Context, checkoutID string, ref payment.Reference) (err error) {
	defer func() { w.record(ctx, "complete_payment", err) }()

	c, err := w.openCheckout(checkoutID)
	if err != nil {
		return w.fail(err, "Payment Error")
	}
	if ref.OrderID == "" {
		ref.OrderID = c.OrderID()
	}
	if ref.OrderID != c.OrderID() || ref.PaymentID == "" || ref.Signature == "" {
		return w.fail(models.Titled("Payment Verification Failed", dErrors.CodeValidation, descContactSupport), "Payment Error")
	}
	if err := c.Complete(ref); err != nil {
		return w.fail(models.Titled("Payment Already Resolved", dErrors.CodeConflict, "This payment window is already closed."), "Payment Error")
	}

	defer func() {
		w.closeCheckout(ctx, c)
		c.Settle(err)
	}()

	res, err := w.deps.backend.VerifyPayment(ctx, backend.PaymentReference{
		OrderID:   ref.OrderID,
		PaymentID: ref.PaymentID,
		Signature: ref.Signature,
	})
	if err != nil {
		w.deps.metrics.IncrementPaymentOutcome("verify_failed")
		w.deps.emit(ctx, w.id, audit.EventPaymentFailed, "verify_failed", "")
		return w.fail(verifyPaymentFailure.translate(err), verifyPaymentFailure.rejectedTitle)
	}
	if !res.Success {
		w.deps.metrics.IncrementPaymentOutcome("rejected")
		w.deps.emit(ctx, w.id, audit.EventPaymentFailed, "rejected", res.Message)
		return w.fail(verifyPaymentFailure.rejected(res.Message), verifyPaymentFailure.rejectedTitle)
	}

	w.mu.Lock()
	err = w.reg.ApplyPaymentVerified(ref.PaymentID, res.Amount, requestcontext.Now(ctx))
	w.mu.Unlock()
	if err != nil {
		w.deps.metrics.IncrementPaymentOutcome("rejected")
		w.deps.emit(ctx, w.id, audit.EventPaymentFailed, "rejected", "missing or invalid amount")
		return w.fail(err, verifyPaymentFailure.rejectedTitle)
	}

	w.deps.metrics.IncrementPaymentOutcome("verified")
	w.deps.emit(ctx, w.id, audit.EventPaymentVerified, "ok", "")
	w.feed.Post(notify.Info("Payment Successful", "Proceeding to next step."))
	w.deps.logger.InfoContext(ctx, "payment verified",
		"session_id", w.id.String(),
		"payment_id", ref.PaymentID,
		"amount", res.Amount.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return nil
}

// DismissPayment handles the checkout being closed without paying. It posts
// no notice.
func (w *Wizard) DismissPayment(ctx context.Context, checkoutID string) (err error) {
	defer func() { w.record(ctx, "dismiss_payment", err) }()

	c, err := w.openCheckout(checkoutID)
	if err != nil {
		return err
	}
	if err := c.Dismiss(); err != nil {
		return models.Titled("Payment Already Resolved", dErrors.CodeConflict, "This payment window is already closed.")
	}
	w.closeCheckout(ctx, c)
	c.Settle(nil)
	w.deps.metrics.IncrementPaymentOutcome("dismissed")
	w.deps.emit(ctx, w.id, audit.EventPaymentDismissed, "dismissed", "")
	return nil
}

// AwaitPayment blocks until the checkout settles or ctx is done, and
// returns the checkout's outcome.
func (w *Wizard) AwaitPayment(ctx context.Context, checkoutID string) (payment.OutcomeKind, error) {
	w.mu.Lock()
	var c *payment.Checkout
	switch {
	case w.checkout != nil && w.checkout.ID().String() == checkoutID:
		c = w.checkout
	case w.lastCheckout != nil && w.lastCheckout.ID().String() == checkoutID:
		c = w.lastCheckout
	}
	w.mu.Unlock()
	if c == nil {
		return "", dErrors.New(dErrors.CodeNotFound, "checkout not found")
	}

	select {
	case <-c.Done():
	case <-ctx.Done():
		return "", dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "payment still pending")
	}
	outcome, _ := c.Outcome()
	return outcome.Kind, c.Err()
}

// -----------------------------------------------------------------------------
// Step 3
// -----------------------------------------------------------------------------

// UpdateAccount sets the step-3 credentials and referral code.
func (w *Wizard) UpdateAccount(ctx context.Context, in models.AccountInput) (err error) {
	defer func() { w.record(ctx, "update_account", err) }()
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.reg.ApplyAccount(in, requestcontext.Now(ctx)); err != nil {
		return w.fail(err, "Invalid Account Details")
	}
	return nil
}

// Submit creates the account. A failure keeps every field and allows
// another attempt; success is terminal.
func (w *Wizard) Submit(ctx context.Context) (err error) {
	defer func() { w.record(ctx, "submit", err) }()

	w.mu.Lock()
	if err := w.reg.CanSubmit(); err != nil {
		w.mu.Unlock()
		return w.fail(err, "Registration Failed")
	}
	w.reg.BeginSubmit()
	payload := registrationPayload(w.reg.Draft)
	w.mu.Unlock()

	submitted := false
	defer func() {
		if submitted {
			return
		}
		w.mu.Lock()
		w.reg.ApplySubmitFailed(requestcontext.Now(ctx))
		w.mu.Unlock()
	}()

	if err := w.deps.backend.Register(ctx, payload); err != nil {
		w.deps.emit(ctx, w.id, audit.EventRegistrationFailed, string(backend.GetCategory(err)), backend.ServerMessage(err))
		return w.fail(registerFailure.translate(err), registerFailure.rejectedTitle)
	}

	w.mu.Lock()
	firstTime := w.reg.ApplySubmitted(requestcontext.Now(ctx))
	submitted = true
	w.mu.Unlock()

	if firstTime {
		w.feed.Post(notify.Info("Registration Complete! 🏏", "Welcome to the BRPL Please login to continue."))
	}
	w.deps.metrics.IncrementRegistrations()
	w.deps.emit(ctx, w.id, audit.EventRegistrationSubmitted, "ok", "")
	w.deps.logger.InfoContext(ctx, "registration submitted",
		"session_id", w.id.String(),
		"email", privacy.MaskEmail(payload.Email),
		"referred", payload.ReferralCodeUsed != "",
		"request_id", requestcontext.RequestID(ctx),
	)
	return nil
}

func registrationPayload(d models.Draft) backend.Registration {
	return backend.Registration{
		FirstName:         d.Name,
		Mobile:            d.Phone,
		State:             d.State,
		City:              d.City,
		PlayerRole:        d.Role.String(),
		Email:             d.Email,
		Password:          d.Password,
		IsFromLandingPage: d.IsFromLandingPage,
		PaymentAmount:     d.PaymentAmount,
		PaymentID:         d.PaymentID,
		ReferralCodeUsed:  d.ReferralCodeUsed,
	}
}
