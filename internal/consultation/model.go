package consultation

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"medical-intake-agent/internal/intake"
)

var (
	ErrNotFound            = errors.New("consultation not found")
	ErrDuplicateSubmission = errors.New("duplicate submission")
	ErrInvalidMessage      = errors.New("invalid message")
)

// Consultation is the aggregate root: one patient's intake conversation together with
// the clinical record and orchestrator bookkeeping it has produced so far.
type Consultation struct {
	ID        uuid.UUID   `json:"id" db:"id"`
	PatientID uuid.UUID   `json:"patient_id" db:"patient_id"`
	Mode      intake.Mode `json:"mode" db:"mode"`

	Messages []intake.Message      `json:"messages" db:"messages"`
	Record   intake.ClinicalRecord `json:"record" db:"record"`
	Workflow intake.WorkflowState  `json:"workflow" db:"workflow"`

	// HandoverNotified is set once the doctor has received the handover report.
	HandoverNotified bool      `json:"handover_notified" db:"handover_notified"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

func newConsultation(patientID uuid.UUID, mode intake.Mode, now time.Time) *Consultation {
	c := &Consultation{
		ID:        uuid.New(),
		PatientID: patientID,
		Mode:      mode,
		CreatedAt: now,
		UpdatedAt: now,
	}
	c.restart(now)
	return c
}

// restart clears the conversation and starts a fresh record. Intake sessions open with
// the first stage's question.
func (c *Consultation) restart(now time.Time) {
	c.Record = intake.NewRecord()
	c.Workflow = intake.NewWorkflowState()
	c.HandoverNotified = false
	c.Messages = []intake.Message{}
	if c.Mode == intake.ModeIntake {
		c.Messages = append(c.Messages, intake.Message{
			ID:        uuid.NewString(),
			Role:      intake.RoleAssistant,
			Text:      intake.StageOpening(intake.StageVitals),
			Timestamp: now,
		})
	}
}

func (c *Consultation) Stage() intake.Stage {
	return c.Record.ActiveStage
}

func (c *Consultation) Completeness() int {
	return intake.Score(c.Record)
}

func (c *Consultation) ReadyForHandoff() bool {
	return c.Record.ActiveStage == intake.StageHandover && c.Record.BookingStatus != intake.BookingCollecting
}
