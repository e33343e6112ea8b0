package backend

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.opentelemetry.io/otel/trace/noop"

	"brpl/pkg/platform/circuit"
	"brpl/pkg/requestcontext"
)

type ClientSuite struct {
	suite.Suite
	mux    *http.ServeMux
	server *httptest.Server
	client *Client
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func (s *ClientSuite) SetupTest() {
	s.mux = http.NewServeMux()
	s.server = httptest.NewServer(s.mux)
	s.client = New(s.server.URL,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithTracerProvider(noop.NewTracerProvider()),
	)
}

func (s *ClientSuite) TearDownTest() {
	s.server.Close()
}

func (s *ClientSuite) handle(pattern string, status int, body string, capture *map[string]any) {
	s.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		if capture != nil {
			_ = json.NewDecoder(r.Body).Decode(capture)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})
}

func (s *ClientSuite) TestSendOTP() {
	s.Run("sends mobile and accepts 2xx", func() {
		var got map[string]any
		s.handle("POST /auth/send-otp", http.StatusOK, `{"message":"sent"}`, &got)

		s.Require().NoError(s.client.SendOTP(context.Background(), "9876543210"))
		s.Equal("9876543210", got["mobile"])
	})
}

func (s *ClientSuite) TestSendOTPRejected() {
	s.handle("POST /auth/send-otp", http.StatusTooManyRequests, `{"message":"Too many attempts"}`, nil)

	err := s.client.SendOTP(context.Background(), "9876543210")
	s.Require().Error(err)
	s.Equal(ErrorRejected, GetCategory(err))
	s.Equal("Too many attempts", ServerMessage(err))
}

func (s *ClientSuite) TestRejectionWithNestedMessage() {
	s.handle("POST /auth/register", http.StatusConflict, `{"data":{"message":"Email already registered"}}`, nil)

	err := s.client.Register(context.Background(), Registration{Email: "a@b.c"})
	s.Equal(ErrorRejected, GetCategory(err))
	s.Equal("Email already registered", ServerMessage(err))
}

func (s *ClientSuite) TestRejectionWithoutBody() {
	s.handle("POST /auth/register", http.StatusBadRequest, `not json`, nil)

	err := s.client.Register(context.Background(), Registration{})
	s.Equal(ErrorRejected, GetCategory(err))
	s.Empty(ServerMessage(err))
}

func (s *ClientSuite) TestVerifyOTP() {
	var got map[string]any
	s.handle("POST /auth/verify-otp", http.StatusOK, `{"success":false,"message":"Invalid OTP"}`, &got)

	res, err := s.client.VerifyOTP(context.Background(), "9876543210", "1234")
	s.Require().NoError(err)
	s.False(res.Success)
	s.Equal("Invalid OTP", res.Message)
	s.Equal("1234", got["otp"])
}

func (s *ClientSuite) TestCreateOrder() {
	s.Run("server amount is returned", func() {
		var got map[string]any
		s.handle("POST /api/payment/order-landing", http.StatusOK, `{"id":"order_1","amount":200,"currency":"INR"}`, &got)

		order, err := s.client.CreateOrder(context.Background(), 2)
		s.Require().NoError(err)
		s.Equal(Order{ID: "order_1", Amount: 200, Currency: "INR"}, order)
		s.EqualValues(2, got["amount"])
	})
}

func (s *ClientSuite) TestCreateOrderMissingID() {
	s.handle("POST /api/payment/order-landing", http.StatusOK, `{"amount":200}`, nil)

	_, err := s.client.CreateOrder(context.Background(), 2)
	s.Equal(ErrorBadData, GetCategory(err))
}

func (s *ClientSuite) TestVerifyPayment() {
	var got map[string]any
	s.handle("POST /api/payment/verify-landing", http.StatusOK, `{"success":true,"amount":2}`, &got)

	res, err := s.client.VerifyPayment(context.Background(), PaymentReference{OrderID: "o", PaymentID: "p", Signature: "sig"})
	s.Require().NoError(err)
	s.True(res.Success)
	s.Equal(json.Number("2"), res.Amount)
	s.Equal("o", got["razorpay_order_id"])
	s.Equal("p", got["razorpay_payment_id"])
	s.Equal("sig", got["razorpay_signature"])
}

func (s *ClientSuite) TestRegisterPayload() {
	var got map[string]any
	s.handle("POST /auth/register", http.StatusCreated, ``, &got)

	err := s.client.Register(context.Background(), Registration{
		FirstName:         "Ravi",
		Mobile:            "9876543210",
		PlayerRole:        "Bowler",
		IsFromLandingPage: true,
		PaymentAmount:     json.Number("2"),
		PaymentID:         "pay_1",
	})
	s.Require().NoError(err)
	s.Equal("Ravi", got["fname"])
	s.Equal("Bowler", got["playerRole"])
	s.Equal(true, got["isFromLandingPage"])
	s.EqualValues(2, got["paymentAmount"])
	s.Equal("pay_1", got["paymentId"])
	s.Contains(got, "referralCodeUsed")
}

func (s *ClientSuite) TestTransportFailure() {
	s.server.Close()

	err := s.client.SendOTP(context.Background(), "9876543210")
	s.Equal(ErrorTransport, GetCategory(err))
}

func (s *ClientSuite) TestBadData() {
	s.handle("POST /auth/verify-otp", http.StatusOK, `{"success":`, nil)

	_, err := s.client.VerifyOTP(context.Background(), "9876543210", "1")
	s.Equal(ErrorBadData, GetCategory(err))
}

func (s *ClientSuite) TestPartnerLogin() {
	s.handle("POST /auth/login-coach", http.StatusOK, `{"token":"up-tok","user":{"id":"c1","name":"Ravi","role":"coach"}}`, nil)

	sess, err := s.client.PartnerLogin(context.Background(), "c@x.in", "pw")
	s.Require().NoError(err)
	s.Equal("up-tok", sess.Token)
	s.Equal(PartnerUser{ID: "c1", Name: "Ravi", Role: "coach"}, sess.User)
}

func (s *ClientSuite) TestAdminLogin() {
	s.handle("POST /admin/landing/login", http.StatusOK, `{"data":{"token":"adm"}}`, nil)

	tok, err := s.client.AdminLogin(context.Background(), "a@x.in", "pw")
	s.Require().NoError(err)
	s.Equal("adm", tok)
}

func (s *ClientSuite) TestAdminStats() {
	s.mux.HandleFunc("GET /admin/stats", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer adm" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"data":{"stats":{"totalUsers":10,"totalCoaches":2,"totalInfluencers":1}}}`))
	})

	stats, err := s.client.AdminStats(context.Background(), "adm")
	s.Require().NoError(err)
	s.Equal(Stats{TotalUsers: 10, TotalCoaches: 2, TotalInfluencers: 1}, stats)

	_, err = s.client.AdminStats(context.Background(), "stale")
	s.Equal(ErrorUnauthorized, GetCategory(err))
}

func (s *ClientSuite) TestAdminStatsMissingDefaultsToZero() {
	s.handle("GET /admin/stats", http.StatusOK, `{"data":{}}`, nil)

	stats, err := s.client.AdminStats(context.Background(), "adm")
	s.Require().NoError(err)
	s.Equal(Stats{}, stats)
}

func (s *ClientSuite) TestAdminRecordsQuery() {
	s.mux.HandleFunc("GET /admin/records", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		s.Equal("coaches", q.Get("type"))
		s.Equal("2", q.Get("page"))
		s.Equal("10", q.Get("limit"))
		s.Equal("ravi", q.Get("search"))
		_, _ = w.Write([]byte(`{"data":{"items":[{"name":"Ravi"}],"pagination":{"page":2,"limit":10,"total":11,"pages":2}}}`))
	})

	recs, err := s.client.AdminRecords(context.Background(), "adm", RecordsQuery{Type: "coaches", Page: 2, Limit: 10, Search: "ravi"})
	s.Require().NoError(err)
	s.Len(recs.Items, 1)
	s.JSONEq(`{"name":"Ravi"}`, string(recs.Items[0]))
	s.Equal(&Pagination{Page: 2, Limit: 10, Total: 11, Pages: 2}, recs.Pagination)
}

func (s *ClientSuite) TestPartnerProfile() {
	s.mux.HandleFunc("GET /auth/partner/profile", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer coach-up" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"data":{"name":"Ravi","email":"ravi@example.com","numberOfPlayers":"12"}}`))
	})

	profile, err := s.client.PartnerProfile(context.Background(), "coach-up")
	s.Require().NoError(err)
	s.Equal(PartnerProfile{Name: "Ravi", Email: "ravi@example.com", NumberOfPlayers: 12}, profile)

	_, err = s.client.PartnerProfile(context.Background(), "stale")
	s.Equal(ErrorUnauthorized, GetCategory(err))
}

func (s *ClientSuite) TestPartnerProfileMissingData() {
	s.handle("GET /auth/partner/profile", http.StatusOK, `{}`, nil)

	_, err := s.client.PartnerProfile(context.Background(), "coach-up")
	s.Equal(ErrorBadData, GetCategory(err))
}

func (s *ClientSuite) TestPartnerPlayersQuery() {
	s.mux.HandleFunc("GET /auth/coach/my-players", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		s.Equal("3", q.Get("page"))
		s.Equal("10", q.Get("limit"))
		s.Equal("arjun", q.Get("search"))
		_, _ = w.Write([]byte(`{"data":{"pagination":{"page":3,"limit":10,"total":21,"pages":3}}}`))
	})

	players, err := s.client.PartnerPlayers(context.Background(), "coach-up", PlayersQuery{Page: 3, Limit: 10, Search: "arjun"})
	s.Require().NoError(err)
	s.Empty(players.Items)
	s.NotNil(players.Items)
	s.Equal(21, players.Pagination.Total)
}

func TestCountDecoding(t *testing.T) {
	for raw, want := range map[string]Count{`7`: 7, `"12"`: 12, `""`: 0, `null`: 0, `"many"`: 0} {
		var c Count
		require.NoError(t, json.Unmarshal([]byte(raw), &c), raw)
		assert.Equal(t, want, c, raw)
	}
}

func (s *ClientSuite) TestRequestIDForwarded() {
	var got string
	s.mux.HandleFunc("POST /auth/track-visit", func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Request-ID")
		w.WriteHeader(http.StatusNoContent)
	})

	ctx := requestcontext.WithRequestID(context.Background(), "req-9")
	s.Require().NoError(s.client.TrackVisit(ctx, Visit{TrackingID: "t"}))
	s.Equal("req-9", got)
}

func (s *ClientSuite) TestBreakerFailsFastWithoutCalling() {
	var hits atomic.Int32
	s.mux.HandleFunc("POST /auth/send-otp", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})
	now := time.Now()
	breaker := circuit.New("backend",
		circuit.WithFailureThreshold(2),
		circuit.WithCooldown(time.Minute),
		circuit.WithClock(func() time.Time { return now }),
	)
	client := New(s.server.URL, WithBreaker(breaker), WithTracerProvider(noop.NewTracerProvider()),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	for range 2 {
		err := client.SendOTP(context.Background(), "9876543210")
		s.Equal(ErrorRejected, GetCategory(err))
	}
	s.True(breaker.IsOpen())

	err := client.SendOTP(context.Background(), "9876543210")
	s.Equal(ErrorTransport, GetCategory(err))
	s.ErrorIs(err, ErrCircuitOpen)
	s.Equal(int32(2), hits.Load())
}
