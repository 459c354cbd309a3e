package consultation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Consultation, error)
	Save(ctx context.Context, c *Consultation) error
	// Archive copies the current record of previous into consultation_archives and saves
	// next in the same transaction.
	Archive(ctx context.Context, previous, next *Consultation) error
}

type postgresRepo struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &postgresRepo{db: db}
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const upsertQuery = `
	INSERT INTO consultations (id, patient_id, mode, messages, record, workflow, handover_notified, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (id) DO UPDATE SET
		mode = $3,
		messages = $4,
		record = $5,
		workflow = $6,
		handover_notified = $7,
		updated_at = $9
`

const archiveQuery = `
	INSERT INTO consultation_archives (id, consultation_id, patient_id, messages, record, workflow, archived_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
`

func (r *postgresRepo) GetByID(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	query := `SELECT id, patient_id, mode, messages, record, workflow, handover_notified, created_at, updated_at FROM consultations WHERE id = $1`

	row := r.db.QueryRowContext(ctx, query, id)

	var c Consultation
	var messagesJSON, recordJSON, workflowJSON []byte

	err := row.Scan(
		&c.ID,
		&c.PatientID,
		&c.Mode,
		&messagesJSON,
		&recordJSON,
		&workflowJSON,
		&c.HandoverNotified,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load consultation %s: %w", id, err)
	}

	if len(messagesJSON) > 0 {
		if err := json.Unmarshal(messagesJSON, &c.Messages); err != nil {
			return nil, fmt.Errorf("failed to unmarshal messages: %w", err)
		}
	}
	if len(recordJSON) > 0 {
		if err := json.Unmarshal(recordJSON, &c.Record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal record: %w", err)
		}
	}
	if len(workflowJSON) > 0 {
		if err := json.Unmarshal(workflowJSON, &c.Workflow); err != nil {
			return nil, fmt.Errorf("failed to unmarshal workflow: %w", err)
		}
	}

	return &c, nil
}

func (r *postgresRepo) Save(ctx context.Context, c *Consultation) error {
	return save(ctx, r.db, c)
}

func (r *postgresRepo) Archive(ctx context.Context, previous, next *Consultation) error {
	messagesJSON, err := json.Marshal(previous.Messages)
	if err != nil {
		return err
	}
	recordJSON, err := json.Marshal(previous.Record)
	if err != nil {
		return err
	}
	workflowJSON, err := json.Marshal(previous.Workflow)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin archive transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, archiveQuery,
		uuid.New(), previous.ID, previous.PatientID, messagesJSON, recordJSON, workflowJSON, time.Now()); err != nil {
		return fmt.Errorf("failed to archive consultation %s: %w", previous.ID, err)
	}
	if err := save(ctx, tx, next); err != nil {
		return err
	}
	return tx.Commit()
}

func save(ctx context.Context, db execer, c *Consultation) error {
	messagesJSON, err := json.Marshal(c.Messages)
	if err != nil {
		return err
	}
	recordJSON, err := json.Marshal(c.Record)
	if err != nil {
		return err
	}
	workflowJSON, err := json.Marshal(c.Workflow)
	if err != nil {
		return err
	}

	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	c.UpdatedAt = time.Now()

	_, err = db.ExecContext(ctx, upsertQuery,
		c.ID, c.PatientID, c.Mode, messagesJSON, recordJSON, workflowJSON, c.HandoverNotified, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save consultation %s: %w", c.ID, err)
	}
	return nil
}
