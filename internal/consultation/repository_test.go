package consultation

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medical-intake-agent/internal/intake"
)

var selectColumns = []string{
	"id", "patient_id", "mode", "messages", "record", "workflow", "handover_notified", "created_at", "updated_at",
}

func newMockRepo(t *testing.T) (Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(db), mock
}

func TestRepository_GetByID(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()
	patientID := uuid.New()
	created := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(selectColumns).AddRow(
		id.String(),
		patientID.String(),
		"intake",
		[]byte(`[{"id":"m1","role":"assistant","text":"Hello","timestamp":"2026-10-01T09:00:00Z"}]`),
		[]byte(`{"chiefComplaint":"cough","medications":["salbutamol"],"vitals":{"collected":true,"stageCompleted":true},"activeStage":"investigation","bookingStatus":"collecting"}`),
		[]byte(`{"followUpCounts":{"investigation":1},"answeredTopics":["cough"],"assistantTurns":4,"consecutiveErrors":0,"lastStage":"investigation","conclusionOffered":false}`),
		false,
		created,
		created,
	)
	mock.ExpectQuery(regexp.QuoteMeta("FROM consultations WHERE id = $1")).
		WithArgs(id).
		WillReturnRows(rows)

	c, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, id, c.ID)
	assert.Equal(t, patientID, c.PatientID)
	assert.Equal(t, intake.ModeIntake, c.Mode)
	require.Len(t, c.Messages, 1)
	assert.Equal(t, intake.RoleAssistant, c.Messages[0].Role)
	assert.Equal(t, "cough", *c.Record.ChiefComplaint)
	assert.Equal(t, intake.StageInvestigation, c.Stage())
	assert.Equal(t, 1, c.Workflow.FollowUpCounts[intake.StageInvestigation])
	assert.Equal(t, 4, c.Workflow.AssistantTurns)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_GetByIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("FROM consultations WHERE id = $1")).
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Save(t *testing.T) {
	repo, mock := newMockRepo(t)
	c := newConsultation(uuid.New(), intake.ModeIntake, time.Now())

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO consultations")).
		WithArgs(c.ID, c.PatientID, "intake", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Save(context.Background(), c))
	assert.False(t, c.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ArchiveIsTransactional(t *testing.T) {
	repo, mock := newMockRepo(t)
	prev := newConsultation(uuid.New(), intake.ModeIntake, time.Now())
	next := *prev
	next.restart(time.Now())

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO consultation_archives")).
		WithArgs(sqlmock.AnyArg(), prev.ID, prev.PatientID, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO consultations")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Archive(context.Background(), prev, &next))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ArchiveRollsBackOnFailure(t *testing.T) {
	repo, mock := newMockRepo(t)
	prev := newConsultation(uuid.New(), intake.ModeIntake, time.Now())
	next := *prev

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO consultation_archives")).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := repo.Archive(context.Background(), prev, &next)
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.NoError(t, mock.ExpectationsWereMet())
}
