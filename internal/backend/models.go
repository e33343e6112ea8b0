package backend

import (
	"encoding/json"
	"strconv"
	"strings"
)

type sendOTPRequest struct {
	Mobile string `json:"mobile"`
}

type verifyOTPRequest struct {
	Mobile string `json:"mobile"`
	OTP    string `json:"otp"`
}

// VerifyOTPResult is the verify-otp body. Only Success=true counts.
type VerifyOTPResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type createOrderRequest struct {
	Amount int64 `json:"amount"`
}

// Order is a payment order created by the backend. Amount is in the
// currency's minor unit and is authoritative over the requested amount.
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// PaymentReference is the signed triple the hosted checkout hands back.
type PaymentReference struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

// VerifyPaymentResult is the verify-landing body. Amount is absent on some
// backend versions.
type VerifyPaymentResult struct {
	Success bool        `json:"success"`
	Amount  json.Number `json:"amount,omitempty"`
	Message string      `json:"message,omitempty"`
}

// Registration is the final account-creation payload.
type Registration struct {
	FirstName         string      `json:"fname"`
	Mobile            string      `json:"mobile"`
	State             string      `json:"state"`
	City              string      `json:"city"`
	PlayerRole        string      `json:"playerRole"`
	Email             string      `json:"email"`
	Password          string      `json:"password"`
	IsFromLandingPage bool        `json:"isFromLandingPage"`
	PaymentAmount     json.Number `json:"paymentAmount"`
	PaymentID         string      `json:"paymentId"`
	ReferralCodeUsed  string      `json:"referralCodeUsed"`
}

// Visit is a landing page visit for attribution.
type Visit struct {
	TrackingID   string `json:"trackingId"`
	ReferralCode string `json:"referralCode,omitempty"`
	FBCLID       string `json:"fbclid,omitempty"`
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// PartnerUser is the coach or influencer behind a partner login.
type PartnerUser struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

type PartnerSession struct {
	Token string      `json:"token"`
	User  PartnerUser `json:"user"`
}

type adminLoginResponse struct {
	Data struct {
		Token string `json:"token"`
	} `json:"data"`
}

// Stats are the admin dashboard headline counters.
type Stats struct {
	TotalUsers       int64 `json:"totalUsers"`
	TotalCoaches     int64 `json:"totalCoaches"`
	TotalInfluencers int64 `json:"totalInfluencers"`
}

type statsResponse struct {
	Data struct {
		Stats *Stats `json:"stats"`
	} `json:"data"`
}

// RecordsQuery selects one page of admin records.
type RecordsQuery struct {
	Type   string
	Page   int
	Limit  int
	Search string
}

type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// Records is a page of users, coaches or influencers. Items are passed
// through untouched.
type Records struct {
	Items      []json.RawMessage `json:"items"`
	Pagination *Pagination       `json:"pagination"`
}

type recordsResponse struct {
	Data Records `json:"data"`
}

// PlayersQuery selects one page of a partner's players.
type PlayersQuery struct {
	Page   int
	Limit  int
	Search string
}

// PartnerProfile is a coach or influencer account. Coaches carry a player
// count, influencers a referral code.
type PartnerProfile struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	NumberOfPlayers Count  `json:"numberOfPlayers"`
	ReferralCode    string `json:"referralCode,omitempty"`
	IsVerified      bool   `json:"isVerified"`
}

type partnerProfileResponse struct {
	Data *PartnerProfile `json:"data"`
}

// Count decodes a JSON number or numeric string. Empty and non-numeric
// values read as zero.
type Count int64

func (c *Count) UnmarshalJSON(b []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(b)), `"`)
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		*c = 0
		return nil
	}
	*c = Count(n)
	return nil
}

// errorBody covers both rejection shapes the backend uses.
type errorBody struct {
	Message string `json:"message"`
	Data    *struct {
		Message string `json:"message"`
	} `json:"data"`
}

func (b errorBody) message() string {
	if b.Message != "" {
		return b.Message
	}
	if b.Data != nil {
		return b.Data.Message
	}
	return ""
}
