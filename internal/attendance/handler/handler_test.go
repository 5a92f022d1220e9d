package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"rollcall/internal/attendance/decision"
	"rollcall/internal/attendance/handler/mocks"
	"rollcall/internal/attendance/models"
	id "rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/platform/httputil"
	"rollcall/pkg/requestcontext"
	"rollcall/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

type AttendanceHandlerSuite struct {
	suite.Suite
	mockService *mocks.MockService
	router      chi.Router
	actorID     uuid.UUID
	now         time.Time
}

func TestAttendanceHandlerSuite(t *testing.T) {
	suite.Run(t, new(AttendanceHandlerSuite))
}

func (s *AttendanceHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.T().Cleanup(ctrl.Finish)
	s.mockService = mocks.NewMockService(ctrl)
	s.actorID = uuid.New()
	s.now = time.Date(2026, 3, 2, 9, 1, 0, 0, time.UTC)

	h := New(s.mockService, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.router = chi.NewRouter()
	h.Register(s.router)
	h.RegisterIssuer(s.router)
}

func (s *AttendanceHandlerSuite) do(method, path string, body any, role requestcontext.Role) *httptest.ResponseRecorder {
	var reader io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	ctx := requestcontext.WithTime(req.Context(), s.now)
	if role != "" {
		ctx = requestcontext.WithActor(ctx, s.actorID, role)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req.WithContext(ctx))
	return w
}

func (s *AttendanceHandlerSuite) assertError(w *httptest.ResponseRecorder, status int, code dErrors.Code) httputil.ErrorResponse {
	s.Equal(status, w.Code)
	var resp httputil.ErrorResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Equal(string(code), resp.Code)
	return resp
}

func (s *AttendanceHandlerSuite) claimBody() map[string]any {
	return map[string]any{
		"code":               " 482913 ",
		"claimant_latitude":  12.9716,
		"claimant_longitude": 77.5946,
		"reported_accuracy":  5,
		"classification":     map[string]string{"Cohort": "CS101"},
	}
}

func (s *AttendanceHandlerSuite) TestClaim() {
	s.Run("created without effective threshold", func() {
		session := testutil.NewSessionBuilder().WithCode("482913").Build()
		record := testutil.NewRecordBuilder(session).WithClaimantID(id.ClaimantID(s.actorID)).Build()
		s.mockService.EXPECT().Claim(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, cmd models.ClaimCommand) (*models.Record, error) {
				s.Equal(id.ClaimantID(s.actorID), cmd.ClaimantID)
				s.Equal("482913", cmd.Code)
				s.Equal(12.9716, cmd.Point.Latitude)
				s.Equal(5.0, cmd.ReportedAccuracy)
				s.Equal("CS101", cmd.Classification["cohort"])
				return record, nil
			})

		w := s.do(http.MethodPost, "/v1/attendance/claims", s.claimBody(), requestcontext.RoleClaimant)
		s.Equal(http.StatusCreated, w.Code)

		var raw map[string]any
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &raw))
		s.NotContains(raw, "effective_threshold")
		s.Equal("PRESENT", raw["status"])
		s.Equal("482913", raw["session_code"])
		s.Equal(record.ID.String(), raw["id"])
	})

	s.Run("absent is still created", func() {
		session := testutil.NewSessionBuilder().Build()
		record := testutil.NewRecordBuilder(session).WithStatus(decision.StatusAbsent).WithDistance(144.553).Build()
		s.mockService.EXPECT().Claim(gomock.Any(), gomock.Any()).Return(record, nil)

		w := s.do(http.MethodPost, "/v1/attendance/claims", s.claimBody(), requestcontext.RoleClaimant)
		s.Equal(http.StatusCreated, w.Code)
		var resp ClaimResponse
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
		s.Equal("ABSENT", resp.Status)
		s.Equal(144.553, resp.DistanceMeters)
	})

	s.Run("missing accuracy is zero", func() {
		body := s.claimBody()
		delete(body, "reported_accuracy")
		s.mockService.EXPECT().Claim(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, cmd models.ClaimCommand) (*models.Record, error) {
				s.Zero(cmd.ReportedAccuracy)
				return testutil.NewRecordBuilder(testutil.NewSessionBuilder().Build()).Build(), nil
			})
		w := s.do(http.MethodPost, "/v1/attendance/claims", body, requestcontext.RoleClaimant)
		s.Equal(http.StatusCreated, w.Code)
	})

	s.Run("validation", func() {
		cases := []struct {
			name    string
			mutate  func(map[string]any)
			message string
		}{
			{"blank code", func(b map[string]any) { b["code"] = "  " }, "code is required"},
			{"missing latitude", func(b map[string]any) { delete(b, "claimant_latitude") }, "claimant_latitude is required"},
			{"missing longitude", func(b map[string]any) { delete(b, "claimant_longitude") }, "claimant_longitude is required"},
			{"negative accuracy", func(b map[string]any) { b["reported_accuracy"] = -1 }, "reported_accuracy must not be negative"},
		}
		for _, tc := range cases {
			body := s.claimBody()
			tc.mutate(body)
			w := s.do(http.MethodPost, "/v1/attendance/claims", body, requestcontext.RoleClaimant)
			resp := s.assertError(w, http.StatusBadRequest, dErrors.CodeValidation)
			s.Equal(tc.message, resp.Error, tc.name)
		}
	})

	s.Run("service errors map to status", func() {
		cases := []struct {
			err    error
			status int
		}{
			{dErrors.New(dErrors.CodeNotFound, "Invalid OTP code"), http.StatusNotFound},
			{dErrors.New(dErrors.CodeExpired, "OTP has expired"), http.StatusGone},
			{dErrors.New(dErrors.CodeMismatch, "This code is for cohort=CS101, but you submitted cohort=EE201"), http.StatusForbidden},
			{dErrors.New(dErrors.CodeConflict, "Attendance already marked for this session"), http.StatusConflict},
			{dErrors.New(dErrors.CodeInvalidCoordinate, "latitude must be between -90 and 90, got 91"), http.StatusBadRequest},
		}
		for _, tc := range cases {
			s.mockService.EXPECT().Claim(gomock.Any(), gomock.Any()).Return(nil, tc.err)
			w := s.do(http.MethodPost, "/v1/attendance/claims", s.claimBody(), requestcontext.RoleClaimant)
			var de *dErrors.Error
			s.Require().ErrorAs(tc.err, &de)
			resp := s.assertError(w, tc.status, de.Code)
			s.Equal(tc.err.Error(), resp.Error)
		}
	})

	s.Run("internal details are hidden", func() {
		s.mockService.EXPECT().Claim(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeInternal, "failed to save attendance"))
		w := s.do(http.MethodPost, "/v1/attendance/claims", s.claimBody(), requestcontext.RoleClaimant)
		resp := s.assertError(w, http.StatusInternalServerError, dErrors.CodeInternal)
		s.Equal("internal server error", resp.Error)
	})
}

func (s *AttendanceHandlerSuite) TestListMine() {
	session := testutil.NewSessionBuilder().Build()
	records := []*models.Record{
		testutil.NewRecordBuilder(session).WithClaimantID(id.ClaimantID(s.actorID)).Build(),
	}
	s.mockService.EXPECT().ListByClaimant(gomock.Any(), id.ClaimantID(s.actorID)).Return(records, nil)

	w := s.do(http.MethodGet, "/v1/attendance/me", nil, requestcontext.RoleClaimant)
	s.Equal(http.StatusOK, w.Code)
	var resp ClaimListResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Equal(1, resp.Total)
	s.Equal(records[0].ID.String(), resp.Records[0].ID)
}

func (s *AttendanceHandlerSuite) TestRoster() {
	s.Run("counts present and absent", func() {
		session := testutil.NewSessionBuilder().WithCode("482913").Build()
		records := []*models.Record{
			testutil.NewRecordBuilder(session).Build(),
			testutil.NewRecordBuilder(session).WithClaimantID(testutil.TestIDs.ClaimantID2).WithStatus(decision.StatusAbsent).Build(),
		}
		s.mockService.EXPECT().ListBySession(gomock.Any(), id.IssuerID(s.actorID), "482913").Return(records, nil)

		w := s.do(http.MethodGet, "/v1/otp/sessions/482913/records", nil, requestcontext.RoleIssuer)
		s.Equal(http.StatusOK, w.Code)
		var resp RosterResponse
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
		s.Equal(1, resp.Present)
		s.Equal(1, resp.Absent)
		s.Len(resp.Records, 2)
		s.Equal(15.0, resp.Records[0].EffectiveThreshold)
	})

	s.Run("other issuer's session is not found", func() {
		s.mockService.EXPECT().ListBySession(gomock.Any(), gomock.Any(), "111111").
			Return(nil, dErrors.New(dErrors.CodeNotFound, "session not found"))
		w := s.do(http.MethodGet, "/v1/otp/sessions/111111/records", nil, requestcontext.RoleIssuer)
		s.assertError(w, http.StatusNotFound, dErrors.CodeNotFound)
	})

	s.Run("by session id", func() {
		session := testutil.NewSessionBuilder().WithCode("482913").Build()
		roster := &models.Roster{
			SessionID:   session.ID,
			SessionCode: session.Code,
			Records:     []*models.Record{testutil.NewRecordBuilder(session).Build()},
		}
		s.mockService.EXPECT().ListBySessionID(gomock.Any(), id.IssuerID(s.actorID), session.ID).Return(roster, nil)

		w := s.do(http.MethodGet, "/v1/attendance/sessions/"+session.ID.String()+"/records", nil, requestcontext.RoleIssuer)
		s.Equal(http.StatusOK, w.Code)
		var resp RosterResponse
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
		s.Equal(session.ID.String(), resp.SessionID)
		s.Equal("482913", resp.SessionCode)
		s.Equal(1, resp.Present)
	})

	s.Run("malformed session id", func() {
		w := s.do(http.MethodGet, "/v1/attendance/sessions/not-a-uuid/records", nil, requestcontext.RoleIssuer)
		s.Equal(http.StatusBadRequest, w.Code)
	})
}
