package consultation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"medical-intake-agent/internal/intake"
)

type mockService struct {
	mock.Mock
}

func (m *mockService) CreateConsultation(ctx context.Context, patientID uuid.UUID, mode intake.Mode) (*Consultation, error) {
	args := m.Called(ctx, patientID, mode)
	c, _ := args.Get(0).(*Consultation)
	return c, args.Error(1)
}

func (m *mockService) GetConsultation(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	args := m.Called(ctx, id)
	c, _ := args.Get(0).(*Consultation)
	return c, args.Error(1)
}

func (m *mockService) ProcessMessage(ctx context.Context, id uuid.UUID, in Inbound) (*TurnOutcome, error) {
	args := m.Called(ctx, id, in)
	out, _ := args.Get(0).(*TurnOutcome)
	return out, args.Error(1)
}

func (m *mockService) ResetConsultation(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	args := m.Called(ctx, id)
	c, _ := args.Get(0).(*Consultation)
	return c, args.Error(1)
}

func newTestRouter(svc Service) http.Handler {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		RegisterRoutes(r, NewHandler(svc, zerolog.Nop()))
	})
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandler_CreateConsultation(t *testing.T) {
	svc := &mockService{}
	patientID := uuid.New()
	c := newConsultation(patientID, intake.ModeIntake, time.Now())
	svc.On("CreateConsultation", mock.Anything, patientID, intake.ModeIntake).Return(c, nil).Once()

	rec := do(t, newTestRouter(svc), http.MethodPost, "/api/consultations",
		`{"patient_id":"`+patientID.String()+`","mode":"intake"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp ConsultationResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, c.ID.String(), resp.ID)
	assert.Equal(t, "vitals", resp.Stage)
	assert.Len(t, resp.Messages, 1)
	svc.AssertExpectations(t)
}

func TestHandler_CreateConsultationRejectsUnknownMode(t *testing.T) {
	rec := do(t, newTestRouter(&mockService{}), http.MethodPost, "/api/consultations", `{"mode":"triage-bot"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_SendMessage(t *testing.T) {
	svc := &mockService{}
	id := uuid.New()
	override := intake.StageHistoryCheck
	svc.On("ProcessMessage", mock.Anything, id, Inbound{
		Text:          "skip",
		Role:          intake.RoleClinician,
		StageOverride: &override,
	}).Return(&TurnOutcome{
		Reply:             "Okay, let's move on.",
		Stage:             intake.StageHandover,
		Completeness:      45,
		ReadyForHandoff:   true,
		TerminationReason: intake.ReasonSkipCommand,
	}, nil).Once()

	rec := do(t, newTestRouter(svc), http.MethodPost, "/api/consultations/"+id.String()+"/messages",
		`{"text":"skip","role":"clinician","stage_override":"history_check"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp MessageResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "handover", resp.Stage)
	assert.Equal(t, "skip_command", resp.TerminationReason)
	assert.True(t, resp.ReadyForHandoff)
	assert.Equal(t, 45, resp.Completeness)
	svc.AssertExpectations(t)
}

func TestHandler_ErrorMapping(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{"not found", ErrNotFound, http.StatusNotFound, "Consultation not found"},
		{"duplicate", ErrDuplicateSubmission, http.StatusTooManyRequests, duplicateMessage},
		{"invalid", ErrInvalidMessage, http.StatusBadRequest, "invalid message"},
		{"internal", errors.New("connection refused"), http.StatusInternalServerError, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockService{}
			svc.On("ProcessMessage", mock.Anything, id, mock.Anything).Return(nil, tt.err).Once()

			rec := do(t, newTestRouter(svc), http.MethodPost, "/api/consultations/"+id.String()+"/messages", `{"text":"hello"}`)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}
}

func TestHandler_BadRequests(t *testing.T) {
	h := newTestRouter(&mockService{})
	id := uuid.New().String()

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/consultations/not-a-uuid", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/consultations/"+id+"/messages", `{"text":`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/consultations/"+id+"/messages", `{"text":"hi","role":"admin"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/consultations/"+id+"/messages", `{"text":"hi","stage_override":"billing"}`).Code)
}

func TestHandler_GetAndReset(t *testing.T) {
	svc := &mockService{}
	c := newConsultation(uuid.New(), intake.ModeIntake, time.Now())
	svc.On("GetConsultation", mock.Anything, c.ID).Return(c, nil).Once()
	svc.On("ResetConsultation", mock.Anything, c.ID).Return(c, nil).Once()
	h := newTestRouter(svc)

	rec := do(t, h, http.MethodGet, "/api/consultations/"+c.ID.String(), "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/consultations/"+c.ID.String()+"/reset", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}
