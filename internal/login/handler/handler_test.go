package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"brpl/internal/backend"
	jwttoken "brpl/internal/jwt_token"
	"brpl/internal/login/service"
	"brpl/internal/login/service/mocks"
	"brpl/internal/login/store"
	"brpl/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	backend *mocks.MockBackend
	router  *chi.Mux
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.backend = mocks.NewMockBackend(s.ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	jwt := jwttoken.NewJWTService("test-key", "brpl-gateway", "brpl")

	svc, err := service.New(s.backend, jwt, store.NewInMemory(),
		service.WithLogger(logger), service.WithSessionTTL(time.Hour))
	s.Require().NoError(err)

	s.router = chi.NewRouter()
	New(svc, jwttoken.NewJWTServiceAdapter(jwt), logger).Register(s.router)
}

func (s *HandlerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *HandlerSuite) do(method, path, token string, body any) *httptest.ResponseRecorder {
	req := testutil.WithBearer(testutil.NewJSONRequest(s.T(), method, path, body), token)
	return testutil.DoRequest(s.router, req)
}

func (s *HandlerSuite) TestPartnerLoginThenLogout() {
	s.backend.EXPECT().PartnerLogin(gomock.Any(), "inf@example.com", "pw").
		Return(backend.PartnerSession{Token: "up", User: backend.PartnerUser{ID: "u-1", Name: "Asha", Role: "influencer"}}, nil)

	rr := s.do(http.MethodPost, "/api/auth/partner/login", "", map[string]string{"email": " inf@example.com ", "password": "pw"})
	s.Require().Equal(http.StatusOK, rr.Code)
	res := testutil.UnmarshalResponse[service.Result](s.T(), rr)
	s.Equal("/influencer/dashboard", res.Redirect)
	s.Equal("influencer", res.Role)
	s.NotContains(rr.Body.String(), "\"up\"")

	rr = s.do(http.MethodGet, "/api/auth/session", res.Token, nil)
	s.Require().Equal(http.StatusOK, rr.Code)
	s.Contains(rr.Body.String(), "\"portal\":\"partner\"")

	rr = s.do(http.MethodPost, "/api/auth/logout", res.Token, nil)
	s.Equal(http.StatusNoContent, rr.Code)

	rr = s.do(http.MethodGet, "/api/auth/session", res.Token, nil)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")
}

func (s *HandlerSuite) TestAdminLoginDenied() {
	s.backend.EXPECT().AdminLogin(gomock.Any(), gomock.Any(), gomock.Any()).
		Return("", &backend.Error{Category: backend.ErrorRejected, Status: http.StatusUnauthorized})

	rr := s.do(http.MethodPost, "/api/auth/admin/login", "", map[string]string{"email": "a@b.c", "password": "x"})

	s.Equal(http.StatusUnauthorized, rr.Code)
	var resp failureResponse
	s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &resp))
	s.Equal("unauthorized", resp.Error)
	s.Require().Len(resp.Notices, 1)
	s.Equal("Access Denied", resp.Notices[0].Title)
}

func (s *HandlerSuite) TestConnectionError() {
	s.backend.EXPECT().PartnerLogin(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(backend.PartnerSession{}, &backend.Error{Category: backend.ErrorTransport})

	rr := s.do(http.MethodPost, "/api/auth/partner/login", "", map[string]string{"email": "a@b.c", "password": "x"})

	s.Equal(http.StatusBadGateway, rr.Code)
	s.Contains(rr.Body.String(), "Connection Error")
}

func (s *HandlerSuite) TestSessionRequiresToken() {
	rr := s.do(http.MethodGet, "/api/auth/session", "", nil)
	s.Equal(http.StatusUnauthorized, rr.Code)
}
