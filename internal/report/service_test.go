package report

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"medical-intake-agent/internal/consultation"
	"medical-intake-agent/internal/intake"
)

type mockTelegram struct {
	mock.Mock
}

func (m *mockTelegram) SendMessage(ctx context.Context, chatID int64, text string) error {
	return m.Called(ctx, chatID, text).Error(0)
}

func (m *mockTelegram) SendDocument(ctx context.Context, chatID int64, fileData []byte, fileName, caption string) error {
	return m.Called(ctx, chatID, fileData, fileName, caption).Error(0)
}

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

func sampleConsultation() consultation.Consultation {
	r := intake.NewRecord()
	r.ChiefComplaint = strPtr("persistent cough")
	r.HPI = strPtr("Dry cough for three weeks, worse at night, no fever, mild shortness of breath on stairs.")
	r.Medications = []string{"salbutamol"}
	r.Vitals.Name = strPtr("Sam")
	r.Vitals.Age = intPtr(41)
	r.ActiveStage = intake.StageHandover
	r.BookingStatus = intake.BookingReady
	return consultation.Consultation{ID: uuid.New(), PatientID: uuid.New(), Mode: intake.ModeIntake, Record: r}
}

func TestSummary(t *testing.T) {
	s := Summary(sampleConsultation())

	assert.Contains(t, s, "SITUATION\nPatient presents with persistent cough. 41 years old.")
	assert.Contains(t, s, "Name: Sam")
	assert.Contains(t, s, "Medications: salbutamol")
	assert.Contains(t, s, "Allergies: none reported")
	assert.Contains(t, s, "RECOMMENDATION")
}

func TestSummary_UsesGeneratedHandover(t *testing.T) {
	c := sampleConsultation()
	c.Record.Handover = &intake.Handover{
		Situation:      "Cough x3 weeks",
		Background:     "Asthma",
		Assessment:     "Likely reactive airway",
		Recommendation: "Spirometry",
	}
	s := Summary(c)
	assert.Contains(t, s, "Likely reactive airway")
	assert.Contains(t, s, "Spirometry")
}

func TestNotifyHandover_FallsBackToText(t *testing.T) {
	tg := &mockTelegram{}
	c := sampleConsultation()
	tg.On("SendMessage", mock.Anything, int64(99), Summary(c)).Return(nil).Once()

	svc := NewService(tg, 99, zerolog.Nop())
	svc.fontPaths = []string{"/nonexistent/font.ttf"}

	require.NoError(t, svc.NotifyHandover(context.Background(), c))
	tg.AssertExpectations(t)
}

func TestNotifyHandover_RequiresChat(t *testing.T) {
	svc := NewService(&mockTelegram{}, 0, zerolog.Nop())
	assert.Error(t, svc.NotifyHandover(context.Background(), sampleConsultation()))
}

func TestNotifyHandover_SendsPDF(t *testing.T) {
	font := ""
	for _, p := range defaultFontPaths {
		if _, err := os.Stat(p); err == nil {
			font = p
			break
		}
	}
	if font == "" {
		t.Skip("DejaVuSans.ttf not installed")
	}

	tg := &mockTelegram{}
	c := sampleConsultation()
	tg.On("SendDocument", mock.Anything, int64(7),
		mock.MatchedBy(func(b []byte) bool { return len(b) > 4 && string(b[:4]) == "%PDF" }),
		"handover_"+c.ID.String()+".pdf", mock.Anything,
	).Return(errors.New("telegram down")).Once()

	svc := NewService(tg, 7, zerolog.Nop())
	err := svc.NotifyHandover(context.Background(), c)
	assert.ErrorContains(t, err, "telegram down")
	tg.AssertExpectations(t)
}
