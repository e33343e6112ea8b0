package models

import (
	"encoding/json"
	"time"

	"brpl/internal/payment"
)

// Snapshot is the read-only view returned to the browser. It never carries
// the password or the OTP.
type Snapshot struct {
	SessionID         string          `json:"session_id"`
	CurrentStep       int             `json:"current_step"`
	Phase             string          `json:"phase"`
	Details           DetailsView     `json:"details"`
	Account           AccountView     `json:"account"`
	OTPSent           bool            `json:"otp_sent"`
	OTPVerified       bool            `json:"otp_verified"`
	PaymentCompleted  bool            `json:"payment_completed"`
	PaymentAmount     json.Number     `json:"payment_amount,omitempty"`
	PaymentID         string          `json:"payment_id,omitempty"`
	SubmissionState   SubmissionState `json:"submission_state"`
	Busy              BusyView        `json:"busy"`
	Checkout          *CheckoutView   `json:"checkout,omitempty"`
	SuccessModal      bool            `json:"success_modal"`
	IsFromLandingPage bool            `json:"is_from_landing_page"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

type DetailsView struct {
	Role          PlayerRole `json:"role"`
	Name          string     `json:"name"`
	Phone         string     `json:"phone"`
	State         string     `json:"state"`
	City          string     `json:"city"`
	TermsAccepted bool       `json:"terms_accepted"`
}

type AccountView struct {
	Email            string `json:"email"`
	PasswordSet      bool   `json:"password_set"`
	ReferralCodeUsed string `json:"referral_code_used"`
}

type BusyView struct {
	SendingOTP        bool `json:"sending_otp"`
	VerifyingOTP      bool `json:"verifying_otp"`
	ProcessingPayment bool `json:"processing_payment"`
	Submitting        bool `json:"submitting"`
}

// CheckoutView is the open hosted checkout the browser should display.
type CheckoutView struct {
	ID      string          `json:"id"`
	Options payment.Options `json:"options"`
}

func (r *Registration) Snapshot(sessionID string) Snapshot {
	d, p := r.Draft, r.Phase
	return Snapshot{
		SessionID:   sessionID,
		CurrentStep: p.Step.Number(),
		Phase:       p.Step.String(),
		Details: DetailsView{
			Role:          d.Role,
			Name:          d.Name,
			Phone:         d.Phone,
			State:         d.State,
			City:          d.City,
			TermsAccepted: d.TermsAccepted,
		},
		Account: AccountView{
			Email:            d.Email,
			PasswordSet:      d.Password != "",
			ReferralCodeUsed: d.ReferralCodeUsed,
		},
		OTPSent:          p.OTPSent,
		OTPVerified:      p.OTPVerified,
		PaymentCompleted: r.PaymentCompleted(),
		PaymentAmount:    d.PaymentAmount,
		PaymentID:        d.PaymentID,
		SubmissionState:  p.Submission,
		Busy: BusyView{
			SendingOTP:        p.SendingOTP,
			VerifyingOTP:      p.VerifyingOTP,
			ProcessingPayment: p.ProcessingPayment,
			Submitting:        p.Submission == SubmissionSubmitting,
		},
		SuccessModal:      p.SuccessModalShown,
		IsFromLandingPage: d.IsFromLandingPage,
		UpdatedAt:         r.UpdatedAt,
	}
}
