package models

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	dErrors "brpl/pkg/domain-errors"
)

var phonePattern = regexp.MustCompile(`^[0-9]{10}$`)

// Draft is the data collected across the three steps.
type Draft struct {
	Role              PlayerRole
	Name              string
	Phone             string
	State             string
	City              string
	TermsAccepted     bool
	ReferralCodeUsed  string
	Email             string
	Password          string
	PaymentAmount     json.Number
	PaymentID         string
	IsFromLandingPage bool
}

// Phase is the process-local progress of one wizard. The in-flight flags
// are the busy markers that stop duplicate network calls.
type Phase struct {
	Step              Step
	OTPSent           bool
	OTPVerified       bool
	Submission        SubmissionState
	SendingOTP        bool
	VerifyingOTP      bool
	ProcessingPayment bool
	SuccessModalShown bool
}

// Registration is the aggregate behind one wizard session.
//
// Invariants:
//   - Step 2 requires every step-1 field, accepted terms and a verified phone
//   - Step 3 requires PaymentID and PaymentAmount, which are set once
//   - Phone is immutable once OTPVerified, and OTPVerified never reverts
//   - Submitted is terminal
//
// Registration performs no I/O and no locking; the service serializes access.
type Registration struct {
	Draft     Draft
	Phase     Phase
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewRegistration starts an empty wizard, optionally pre-filling the
// referral code captured by visit tracking.
func NewRegistration(referralCode string, now time.Time) *Registration {
	return &Registration{
		Draft: Draft{
			ReferralCodeUsed:  strings.TrimSpace(referralCode),
			IsFromLandingPage: true,
		},
		Phase: Phase{
			Step:       StepDetails,
			Submission: SubmissionIdle,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// PaymentCompleted is derived: a verified payment always carries an ID.
func (r *Registration) PaymentCompleted() bool {
	return r.Draft.PaymentID != ""
}

func (r *Registration) touch(now time.Time) {
	r.UpdatedAt = now
}

// ValidatePhone enforces the 10-digit mobile format.
func ValidatePhone(phone string) error {
	if !phonePattern.MatchString(phone) {
		return Titled("Invalid Mobile Number", dErrors.CodeValidation, "Please enter a valid 10-digit mobile number.")
	}
	return nil
}

// -----------------------------------------------------------------------------
// Step 1: details and OTP
// -----------------------------------------------------------------------------

type DetailsInput struct {
	Role          string
	Name          string
	Phone         string
	State         string
	City          string
	TermsAccepted bool
}

// ApplyDetails replaces the step-1 fields. Changing the phone before it is
// verified clears OTPSent so a code can be requested for the new number.
func (r *Registration) ApplyDetails(in DetailsInput, now time.Time) error {
	if r.Phase.Step != StepDetails {
		return Titled("Details Locked", dErrors.CodeInvalidState, "Details can only be changed on step 1.")
	}
	role, err := ParsePlayerRole(strings.TrimSpace(in.Role))
	if err != nil {
		return Titled("Invalid Role", dErrors.CodeValidation, "Please choose Batsman, Bowler, Wicket Keeper or All-Rounder.")
	}
	phone := strings.TrimSpace(in.Phone)
	if phone != r.Draft.Phone {
		if r.Phase.OTPVerified {
			return Titled("Mobile Number Verified", dErrors.CodeInvalidState, "A verified mobile number cannot be changed.")
		}
		if r.Phase.SendingOTP || r.Phase.VerifyingOTP {
			return Titled("Please Wait", dErrors.CodeConflict, "OTP verification is in progress.")
		}
		r.Phase.OTPSent = false
	}

	r.Draft.Role = role
	r.Draft.Name = strings.TrimSpace(in.Name)
	r.Draft.Phone = phone
	r.Draft.State = strings.TrimSpace(in.State)
	r.Draft.City = strings.TrimSpace(in.City)
	r.Draft.TermsAccepted = in.TermsAccepted
	r.touch(now)
	return nil
}

// CanRequestOTP validates a send. needed is false when a code is already out
// or the phone is verified, in which case the caller does nothing.
func (r *Registration) CanRequestOTP() (needed bool, err error) {
	if r.Phase.Step != StepDetails {
		return false, Titled("Invalid Step", dErrors.CodeInvalidState, "Mobile verification happens on step 1.")
	}
	if err := ValidatePhone(r.Draft.Phone); err != nil {
		return false, err
	}
	if r.Phase.SendingOTP {
		return false, Titled("Please Wait", dErrors.CodeConflict, "An OTP request is already in progress.")
	}
	if r.Phase.OTPVerified || r.Phase.OTPSent {
		return false, nil
	}
	return true, nil
}

func (r *Registration) BeginOTPSend() {
	r.Phase.SendingOTP = true
}

// EndOTPSend clears the busy flag; sent reports backend acceptance.
func (r *Registration) EndOTPSend(sent bool, now time.Time) {
	r.Phase.SendingOTP = false
	if sent {
		r.Phase.OTPSent = true
	}
	r.touch(now)
}

// CanVerifyOTP validates a verification. needed is false once verified.
func (r *Registration) CanVerifyOTP(code string) (needed bool, err error) {
	if r.Phase.Step != StepDetails {
		return false, Titled("Invalid Step", dErrors.CodeInvalidState, "Mobile verification happens on step 1.")
	}
	if r.Phase.OTPVerified {
		return false, nil
	}
	if strings.TrimSpace(code) == "" {
		return false, Titled("OTP Required", dErrors.CodeValidation, "Please enter the OTP sent to your mobile.")
	}
	if err := ValidatePhone(r.Draft.Phone); err != nil {
		return false, err
	}
	if r.Phase.VerifyingOTP {
		return false, Titled("Please Wait", dErrors.CodeConflict, "OTP verification is already in progress.")
	}
	return true, nil
}

func (r *Registration) BeginOTPVerify() {
	r.Phase.VerifyingOTP = true
}

// EndOTPVerify latches OTPVerified on success. A failure clears OTPSent so
// a fresh code can be requested.
func (r *Registration) EndOTPVerify(verified bool, now time.Time) {
	r.Phase.VerifyingOTP = false
	if verified {
		r.Phase.OTPVerified = true
	} else {
		r.Phase.OTPSent = false
	}
	r.touch(now)
}

// -----------------------------------------------------------------------------
// Navigation
// -----------------------------------------------------------------------------

// CanAdvance checks the gate out of the current step. On step 1 the first
// violation wins: missing fields, then terms, then OTP.
func (r *Registration) CanAdvance() error {
	switch r.Phase.Step {
	case StepDetails:
		d := r.Draft
		if d.Role == "" || d.Name == "" || d.Phone == "" || d.State == "" || d.City == "" {
			return Titled("Missing Information", dErrors.CodeValidation, "Please fill in all fields to proceed.")
		}
		if !d.TermsAccepted {
			return Titled("Terms Required", dErrors.CodeValidation, "Please agree to the terms and conditions.")
		}
		if !r.Phase.OTPVerified {
			return Titled("OTP Verification Required", dErrors.CodeValidation, "Please verify your mobile number with OTP.")
		}
		return nil
	case StepPayment:
		if !r.PaymentCompleted() {
			return Titled("Payment Required", dErrors.CodeInvalidState, "Please complete the payment to continue.")
		}
		return nil
	default:
		return Titled("Invalid Step", dErrors.CodeInvalidState, "There is no next step.")
	}
}

func (r *Registration) ApplyAdvance(now time.Time) {
	r.Phase.Step++
	r.touch(now)
}

// CanBack allows 2→1 and 3→2 while nothing is in flight on the current step.
func (r *Registration) CanBack() error {
	switch r.Phase.Step {
	case StepPayment:
		if r.Phase.ProcessingPayment {
			return Titled("Payment In Progress", dErrors.CodeConflict, "Please finish or close the payment window first.")
		}
		return nil
	case StepAccount:
		if r.Phase.Submission == SubmissionSubmitting {
			return Titled("Please Wait", dErrors.CodeConflict, "Registration is being submitted.")
		}
		return nil
	case StepSubmitted:
		return Titled("Registration Complete", dErrors.CodeInvalidState, "Registration is already complete.")
	default:
		return Titled("Invalid Step", dErrors.CodeInvalidState, "Already at the first step.")
	}
}

func (r *Registration) ApplyBack(now time.Time) {
	r.Phase.Step--
	r.touch(now)
}

// -----------------------------------------------------------------------------
// Step 2: payment
// -----------------------------------------------------------------------------

func (r *Registration) CanInitiatePayment() error {
	if r.Phase.Step != StepPayment {
		return Titled("Invalid Step", dErrors.CodeInvalidState, "Payment happens on step 2.")
	}
	if r.PaymentCompleted() {
		return Titled("Already Paid", dErrors.CodeInvalidState, "Payment has already been completed.")
	}
	if r.Phase.ProcessingPayment {
		return Titled("Payment In Progress", dErrors.CodeConflict, "A payment is already in progress.")
	}
	return nil
}

func (r *Registration) BeginPayment() {
	r.Phase.ProcessingPayment = true
}

func (r *Registration) EndPayment(now time.Time) {
	r.Phase.ProcessingPayment = false
	r.touch(now)
}

// ApplyPaymentVerified records a verified payment and moves to step 3. The
// amount must be the positive amount reported by verification; there is no
// client-side default.
func (r *Registration) ApplyPaymentVerified(paymentID string, amount json.Number, now time.Time) error {
	if r.PaymentCompleted() {
		return dErrors.New(dErrors.CodeInvariantViolation, "payment already recorded")
	}
	if r.Phase.Step != StepPayment {
		return dErrors.New(dErrors.CodeInvalidState, "payment can only be recorded on step 2")
	}
	if strings.TrimSpace(paymentID) == "" {
		return Titled("Payment Verification Failed", dErrors.CodeRejected, "Please contact support.")
	}
	if v, err := strconv.ParseFloat(amount.String(), 64); err != nil || v <= 0 {
		return Titled("Payment Verification Failed", dErrors.CodeRejected, "Please contact support.")
	}
	r.Draft.PaymentID = paymentID
	r.Draft.PaymentAmount = amount
	r.Phase.Step = StepAccount
	r.touch(now)
	return nil
}

// -----------------------------------------------------------------------------
// Step 3: account and submission
// -----------------------------------------------------------------------------

type AccountInput struct {
	Email            string
	Password         string
	ReferralCodeUsed string
}

func (r *Registration) ApplyAccount(in AccountInput, now time.Time) error {
	if r.Phase.Step == StepSubmitted {
		return Titled("Registration Complete", dErrors.CodeInvalidState, "Registration is already complete.")
	}
	if r.Phase.Step != StepAccount {
		return Titled("Invalid Step", dErrors.CodeInvalidState, "Account details are entered on step 3.")
	}
	if r.Phase.Submission == SubmissionSubmitting {
		return Titled("Please Wait", dErrors.CodeConflict, "Registration is being submitted.")
	}
	r.Draft.Email = strings.TrimSpace(in.Email)
	r.Draft.Password = in.Password
	r.Draft.ReferralCodeUsed = strings.TrimSpace(in.ReferralCodeUsed)
	r.touch(now)
	return nil
}

// CanSubmit allows a submission from idle or failed with credentials present.
func (r *Registration) CanSubmit() error {
	if r.Phase.Step == StepSubmitted || r.Phase.Submission == SubmissionSubmitted {
		return Titled("Registration Complete", dErrors.CodeInvalidState, "Registration is already complete.")
	}
	if r.Phase.Step != StepAccount {
		return Titled("Invalid Step", dErrors.CodeInvalidState, "Registration is submitted from step 3.")
	}
	if !r.Phase.Submission.CanSubmit() {
		return Titled("Please Wait", dErrors.CodeConflict, "Registration is already being submitted.")
	}
	if r.Draft.Email == "" || r.Draft.Password == "" {
		return Titled("Missing Credentials", dErrors.CodeValidation, "Please enter email and password.")
	}
	return nil
}

func (r *Registration) BeginSubmit() {
	r.Phase.Submission = SubmissionSubmitting
}

// ApplySubmitted finishes the wizard. It reports true the first time only,
// which is when the success modal opens.
func (r *Registration) ApplySubmitted(now time.Time) (firstTime bool) {
	r.Phase.Submission = SubmissionSubmitted
	r.Phase.Step = StepSubmitted
	firstTime = !r.Phase.SuccessModalShown
	r.Phase.SuccessModalShown = true
	r.touch(now)
	return firstTime
}

// ApplySubmitFailed returns submission to idle with every field intact, so
// the user can resubmit.
func (r *Registration) ApplySubmitFailed(now time.Time) {
	r.Phase.Submission = SubmissionIdle
	r.touch(now)
}
