package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	dErrors "brpl/pkg/domain-errors"
)

type RegistrationSuite struct {
	suite.Suite
	now time.Time
}

func TestRegistrationSuite(t *testing.T) {
	suite.Run(t, new(RegistrationSuite))
}

func (s *RegistrationSuite) SetupTest() {
	s.now = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
}

func validDetails() DetailsInput {
	return DetailsInput{
		Role:          "Bowler",
		Name:          "Ravi Kumar",
		Phone:         "9876543210",
		State:         "Karnataka",
		City:          "Bengaluru",
		TermsAccepted: true,
	}
}

func (s *RegistrationSuite) verified() *Registration {
	r := NewRegistration("", s.now)
	s.Require().NoError(r.ApplyDetails(validDetails(), s.now))
	r.BeginOTPVerify()
	r.EndOTPVerify(true, s.now)
	return r
}

func (s *RegistrationSuite) paid() *Registration {
	r := s.verified()
	s.Require().NoError(r.CanAdvance())
	r.ApplyAdvance(s.now)
	s.Require().NoError(r.ApplyPaymentVerified("pay_1", json.Number("2"), s.now))
	return r
}

func (s *RegistrationSuite) assertTitled(err error, code dErrors.Code, title string) {
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, code), "want %s got %s", code, dErrors.CodeOf(err))
	s.Equal(title, Title(err, ""))
}

func (s *RegistrationSuite) TestNewRegistration() {
	r := NewRegistration("  REF42 ", s.now)

	s.Equal(StepDetails, r.Phase.Step)
	s.Equal(SubmissionIdle, r.Phase.Submission)
	s.True(r.Draft.IsFromLandingPage)
	s.Equal("REF42", r.Draft.ReferralCodeUsed)
	s.False(r.PaymentCompleted())
}

func (s *RegistrationSuite) TestApplyDetails() {
	s.Run("rejects unknown role", func() {
		r := NewRegistration("", s.now)
		in := validDetails()
		in.Role = "Umpire"
		s.assertTitled(r.ApplyDetails(in, s.now), dErrors.CodeValidation, "Invalid Role")
	})

	s.Run("phone change before verification resets otpSent", func() {
		r := NewRegistration("", s.now)
		s.Require().NoError(r.ApplyDetails(validDetails(), s.now))
		r.BeginOTPSend()
		r.EndOTPSend(true, s.now)
		s.True(r.Phase.OTPSent)

		in := validDetails()
		in.Phone = "9123456789"
		s.Require().NoError(r.ApplyDetails(in, s.now))
		s.False(r.Phase.OTPSent)
	})

	s.Run("same phone keeps otpSent", func() {
		r := NewRegistration("", s.now)
		s.Require().NoError(r.ApplyDetails(validDetails(), s.now))
		r.EndOTPSend(true, s.now)
		in := validDetails()
		in.City = "Mysuru"
		s.Require().NoError(r.ApplyDetails(in, s.now))
		s.True(r.Phase.OTPSent)
	})

	s.Run("phone is immutable after verification", func() {
		r := s.verified()
		in := validDetails()
		in.Phone = "9123456789"
		s.assertTitled(r.ApplyDetails(in, s.now), dErrors.CodeInvalidState, "Mobile Number Verified")
		s.Equal("9876543210", r.Draft.Phone)
	})

	s.Run("phone change rejected while otp call in flight", func() {
		r := NewRegistration("", s.now)
		s.Require().NoError(r.ApplyDetails(validDetails(), s.now))
		r.BeginOTPSend()
		in := validDetails()
		in.Phone = "9123456789"
		s.assertTitled(r.ApplyDetails(in, s.now), dErrors.CodeConflict, "Please Wait")
	})

	s.Run("locked after step 1", func() {
		r := s.verified()
		r.ApplyAdvance(s.now)
		s.assertTitled(r.ApplyDetails(validDetails(), s.now), dErrors.CodeInvalidState, "Details Locked")
	})
}

func (s *RegistrationSuite) TestCanRequestOTP() {
	for _, phone := range []string{"", "12345", "98765432100", "98765abcde", "+919876543"} {
		r := NewRegistration("", s.now)
		in := validDetails()
		in.Phone = phone
		s.Require().NoError(r.ApplyDetails(in, s.now))
		_, err := r.CanRequestOTP()
		s.assertTitled(err, dErrors.CodeValidation, "Invalid Mobile Number")
	}

	r := NewRegistration("", s.now)
	s.Require().NoError(r.ApplyDetails(validDetails(), s.now))
	needed, err := r.CanRequestOTP()
	s.Require().NoError(err)
	s.True(needed)

	r.BeginOTPSend()
	_, err = r.CanRequestOTP()
	s.assertTitled(err, dErrors.CodeConflict, "Please Wait")

	r.EndOTPSend(true, s.now)
	needed, err = r.CanRequestOTP()
	s.Require().NoError(err)
	s.False(needed, "already sent")

	needed, err = s.verified().CanRequestOTP()
	s.Require().NoError(err)
	s.False(needed, "already verified")
}

func (s *RegistrationSuite) TestOTPVerification() {
	s.Run("empty code", func() {
		r := NewRegistration("", s.now)
		s.Require().NoError(r.ApplyDetails(validDetails(), s.now))
		_, err := r.CanVerifyOTP("  ")
		s.assertTitled(err, dErrors.CodeValidation, "OTP Required")
	})

	s.Run("failure re-enables request", func() {
		r := NewRegistration("", s.now)
		s.Require().NoError(r.ApplyDetails(validDetails(), s.now))
		r.EndOTPSend(true, s.now)
		r.BeginOTPVerify()
		r.EndOTPVerify(false, s.now)

		s.False(r.Phase.OTPVerified)
		needed, err := r.CanRequestOTP()
		s.Require().NoError(err)
		s.True(needed)
	})

	s.Run("verified is a latch", func() {
		r := s.verified()
		needed, err := r.CanVerifyOTP("0000")
		s.Require().NoError(err)
		s.False(needed)
		r.EndOTPVerify(false, s.now)
		s.True(r.Phase.OTPVerified)
	})
}

func (s *RegistrationSuite) TestAdvanceFromDetailsFirstViolationWins() {
	r := NewRegistration("", s.now)
	in := validDetails()
	in.City = ""
	in.TermsAccepted = false
	s.Require().NoError(r.ApplyDetails(in, s.now))
	s.assertTitled(r.CanAdvance(), dErrors.CodeValidation, "Missing Information")

	in.City = "Bengaluru"
	s.Require().NoError(r.ApplyDetails(in, s.now))
	s.assertTitled(r.CanAdvance(), dErrors.CodeValidation, "Terms Required")

	in.TermsAccepted = true
	s.Require().NoError(r.ApplyDetails(in, s.now))
	s.assertTitled(r.CanAdvance(), dErrors.CodeValidation, "OTP Verification Required")
	s.Equal(StepDetails, r.Phase.Step)

	r.EndOTPVerify(true, s.now)
	s.Require().NoError(r.CanAdvance())
}

func (s *RegistrationSuite) TestAdvanceFromPaymentRequiresPayment() {
	r := s.verified()
	r.ApplyAdvance(s.now)
	s.assertTitled(r.CanAdvance(), dErrors.CodeInvalidState, "Payment Required")
}

func (s *RegistrationSuite) TestAdvanceFromAccountIsInvalid() {
	r := s.paid()
	s.assertTitled(r.CanAdvance(), dErrors.CodeInvalidState, "Invalid Step")
}

func (s *RegistrationSuite) TestBackPreservesData() {
	r := s.paid()
	s.Require().NoError(r.CanBack())
	r.ApplyBack(s.now)
	s.Equal(StepPayment, r.Phase.Step)
	s.Require().NoError(r.CanBack())
	r.ApplyBack(s.now)
	s.Equal(StepDetails, r.Phase.Step)

	s.True(r.Phase.OTPVerified)
	s.Equal("pay_1", r.Draft.PaymentID)
	s.Equal("Ravi Kumar", r.Draft.Name)
	s.assertTitled(r.CanBack(), dErrors.CodeInvalidState, "Invalid Step")

	// forward again without paying twice
	r.ApplyAdvance(s.now)
	s.Require().NoError(r.CanAdvance())
	s.assertTitled(r.CanInitiatePayment(), dErrors.CodeInvalidState, "Already Paid")
}

func (s *RegistrationSuite) TestBackRejectedWhilePaymentOpen() {
	r := s.verified()
	r.ApplyAdvance(s.now)
	r.BeginPayment()
	s.assertTitled(r.CanBack(), dErrors.CodeConflict, "Payment In Progress")
	s.assertTitled(r.CanInitiatePayment(), dErrors.CodeConflict, "Payment In Progress")
	r.EndPayment(s.now)
	s.Require().NoError(r.CanBack())
}

func (s *RegistrationSuite) TestApplyPaymentVerified() {
	s.Run("missing amount fails and stays on step 2", func() {
		r := s.verified()
		r.ApplyAdvance(s.now)
		for _, amount := range []json.Number{"", "0", "-1", "abc"} {
			err := r.ApplyPaymentVerified("pay_1", amount, s.now)
			s.assertTitled(err, dErrors.CodeRejected, "Payment Verification Failed")
		}
		s.Equal(StepPayment, r.Phase.Step)
		s.False(r.PaymentCompleted())
	})

	s.Run("payment is immutable once set", func() {
		r := s.paid()
		r.ApplyBack(s.now)
		err := r.ApplyPaymentVerified("pay_2", json.Number("5"), s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
		s.Equal("pay_1", r.Draft.PaymentID)
		s.Equal(json.Number("2"), r.Draft.PaymentAmount)
	})

	s.Run("only on step 2", func() {
		r := s.verified()
		err := r.ApplyPaymentVerified("pay_1", json.Number("2"), s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})
}

func (s *RegistrationSuite) TestSubmit() {
	s.Run("requires credentials", func() {
		r := s.paid()
		s.assertTitled(r.CanSubmit(), dErrors.CodeValidation, "Missing Credentials")
		s.Require().NoError(r.ApplyAccount(AccountInput{Email: "ravi@example.com"}, s.now))
		s.assertTitled(r.CanSubmit(), dErrors.CodeValidation, "Missing Credentials")
	})

	s.Run("failure returns to idle and is resubmittable", func() {
		r := s.paid()
		s.Require().NoError(r.ApplyAccount(AccountInput{Email: "ravi@example.com", Password: "pw"}, s.now))
		s.Require().NoError(r.CanSubmit())
		r.BeginSubmit()
		s.assertTitled(r.CanSubmit(), dErrors.CodeConflict, "Please Wait")
		s.assertTitled(r.CanBack(), dErrors.CodeConflict, "Please Wait")
		r.ApplySubmitFailed(s.now)
		s.Equal(SubmissionIdle, r.Phase.Submission)
		s.Equal(StepAccount, r.Phase.Step)
		s.Require().NoError(r.CanSubmit())
		s.Equal("ravi@example.com", r.Draft.Email)
	})

	s.Run("submitted is terminal and modal opens once", func() {
		r := s.paid()
		s.Require().NoError(r.ApplyAccount(AccountInput{Email: "ravi@example.com", Password: "pw"}, s.now))
		r.BeginSubmit()
		s.True(r.ApplySubmitted(s.now))
		s.False(r.ApplySubmitted(s.now))
		s.Equal(StepSubmitted, r.Phase.Step)
		s.Equal(3, r.Phase.Step.Number())

		s.assertTitled(r.CanSubmit(), dErrors.CodeInvalidState, "Registration Complete")
		s.assertTitled(r.CanBack(), dErrors.CodeInvalidState, "Registration Complete")
		s.assertTitled(r.CanAdvance(), dErrors.CodeInvalidState, "Invalid Step")
		s.assertTitled(r.ApplyAccount(AccountInput{}, s.now), dErrors.CodeInvalidState, "Registration Complete")
	})
}

func (s *RegistrationSuite) TestSnapshotHidesSecrets() {
	r := s.paid()
	s.Require().NoError(r.ApplyAccount(AccountInput{Email: "ravi@example.com", Password: "hunter2"}, s.now))

	raw, err := json.Marshal(r.Snapshot("sid"))
	s.Require().NoError(err)
	s.NotContains(string(raw), "hunter2")
	s.Contains(string(raw), `"password_set":true`)
	s.Contains(string(raw), `"payment_amount":2`)
	s.Contains(string(raw), `"current_step":3`)
}
