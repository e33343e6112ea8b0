package handler

import (
	"strings"

	"brpl/internal/payment"
	"brpl/internal/wizard/models"
)

// The wizard owns validation so failures surface as notices; these DTOs
// only normalize.

type detailsRequest struct {
	Role          string `json:"role"`
	Name          string `json:"name"`
	Phone         string `json:"phone"`
	State         string `json:"state"`
	City          string `json:"city"`
	TermsAccepted bool   `json:"terms_accepted"`
}

func (r *detailsRequest) Validate() error {
	r.Role = strings.TrimSpace(r.Role)
	r.Name = strings.TrimSpace(r.Name)
	r.Phone = strings.TrimSpace(r.Phone)
	r.State = strings.TrimSpace(r.State)
	r.City = strings.TrimSpace(r.City)
	return nil
}

func (r *detailsRequest) toInput() models.DetailsInput {
	return models.DetailsInput{
		Role:          r.Role,
		Name:          r.Name,
		Phone:         r.Phone,
		State:         r.State,
		City:          r.City,
		TermsAccepted: r.TermsAccepted,
	}
}

type verifyOTPRequest struct {
	OTP string `json:"otp"`
}

func (r *verifyOTPRequest) Validate() error {
	r.OTP = strings.TrimSpace(r.OTP)
	return nil
}

// completePaymentRequest mirrors the checkout's success payload.
type completePaymentRequest struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

func (r *completePaymentRequest) Validate() error {
	r.OrderID = strings.TrimSpace(r.OrderID)
	r.PaymentID = strings.TrimSpace(r.PaymentID)
	r.Signature = strings.TrimSpace(r.Signature)
	return nil
}

func (r *completePaymentRequest) toReference() payment.Reference {
	return payment.Reference{OrderID: r.OrderID, PaymentID: r.PaymentID, Signature: r.Signature}
}

type accountRequest struct {
	Email            string `json:"email"`
	Password         string `json:"password"`
	ReferralCodeUsed string `json:"referral_code_used"`
}

func (r *accountRequest) Validate() error {
	r.Email = strings.TrimSpace(r.Email)
	r.ReferralCodeUsed = strings.TrimSpace(r.ReferralCodeUsed)
	return nil
}

func (r *accountRequest) toInput() models.AccountInput {
	return models.AccountInput{
		Email:            r.Email,
		Password:         r.Password,
		ReferralCodeUsed: r.ReferralCodeUsed,
	}
}
