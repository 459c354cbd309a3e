package consultation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"medical-intake-agent/internal/intake"
)

// DuplicateGuard rejects a message already submitted for the same session within the
// guard's window. Release gives a claim back when the turn it guarded failed.
type DuplicateGuard interface {
	Claim(ctx context.Context, sessionID, content string) (bool, error)
	Release(ctx context.Context, sessionID, content string) error
}

const notifyTimeout = 30 * time.Second

// HandoverNotifier delivers the handover summary to the consulting doctor.
type HandoverNotifier interface {
	NotifyHandover(ctx context.Context, c Consultation) error
}

// Inbound is one message submitted to a consultation.
type Inbound struct {
	Text      string
	ImageURLs []string
	Role      intake.Role
	// StageOverride forces the stage for this turn only.
	StageOverride *intake.Stage
}

// TurnOutcome is what the caller sees after one message has been processed.
type TurnOutcome struct {
	Consultation      *Consultation
	Reply             string
	Stage             intake.Stage
	Completeness      int
	ReadyForHandoff   bool
	TerminationReason intake.TerminationReason
	Fallback          bool
}

type Service interface {
	CreateConsultation(ctx context.Context, patientID uuid.UUID, mode intake.Mode) (*Consultation, error)
	GetConsultation(ctx context.Context, id uuid.UUID) (*Consultation, error)
	ProcessMessage(ctx context.Context, id uuid.UUID, in Inbound) (*TurnOutcome, error)
	ResetConsultation(ctx context.Context, id uuid.UUID) (*Consultation, error)
}

type service struct {
	repo     Repository
	orch     *intake.Orchestrator
	guard    DuplicateGuard
	notifier HandoverNotifier
	locks    *keyedMutex
	pending  sync.WaitGroup
	logger   zerolog.Logger
	now      func() time.Time
}

// NewService wires the consultation lifecycle. guard and notifier may be nil.
func NewService(repo Repository, orch *intake.Orchestrator, guard DuplicateGuard, notifier HandoverNotifier, logger zerolog.Logger) Service {
	return &service{
		repo:     repo,
		orch:     orch,
		guard:    guard,
		notifier: notifier,
		locks:    newKeyedMutex(),
		logger:   logger.With().Str("component", "consultation").Logger(),
		now:      time.Now,
	}
}

func (s *service) CreateConsultation(ctx context.Context, patientID uuid.UUID, mode intake.Mode) (*Consultation, error) {
	if mode == "" {
		mode = intake.ModeIntake
	}
	c := newConsultation(patientID, mode, s.now())
	if err := s.repo.Save(ctx, c); err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("consultation_id", c.ID.String()).
		Str("mode", string(mode)).
		Msg("consultation created")
	return c, nil
}

func (s *service) GetConsultation(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	return s.repo.GetByID(ctx, id)
}

// ProcessMessage runs one orchestrator turn. Turns for the same consultation are
// serialized; a resubmission of the same content inside the guard window is rejected
// before any state is read. A turn that fails gives its claim back so the patient can
// resend the message.
func (s *service) ProcessMessage(ctx context.Context, id uuid.UUID, in Inbound) (*TurnOutcome, error) {
	if strings.TrimSpace(in.Text) == "" && len(in.ImageURLs) == 0 {
		return nil, fmt.Errorf("%w: text or images required", ErrInvalidMessage)
	}
	if in.StageOverride != nil && !in.StageOverride.Valid() {
		return nil, fmt.Errorf("%w: unknown stage", ErrInvalidMessage)
	}

	claimed := false
	if s.guard != nil {
		ok, err := s.guard.Claim(ctx, id.String(), fingerprintContent(in))
		switch {
		case err != nil:
			s.logger.Warn().Err(err).Str("consultation_id", id.String()).Msg("duplicate guard unavailable, accepting message")
		case !ok:
			return nil, ErrDuplicateSubmission
		default:
			claimed = true
		}
	}

	out, err := s.processTurn(ctx, id, in)
	if err != nil && claimed {
		if rerr := s.guard.Release(context.WithoutCancel(ctx), id.String(), fingerprintContent(in)); rerr != nil {
			s.logger.Warn().Err(rerr).Str("consultation_id", id.String()).Msg("failed to release duplicate claim")
		}
	}
	return out, err
}

func (s *service) processTurn(ctx context.Context, id uuid.UUID, in Inbound) (*TurnOutcome, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	role := in.Role
	if role == "" {
		role = intake.RolePatient
		if c.Mode == intake.ModeConsult {
			role = intake.RoleClinician
		}
	}
	now := s.now()
	msg := intake.Message{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      in.Text,
		ImageURLs: in.ImageURLs,
		Timestamp: now,
	}

	res, err := s.orch.Process(ctx, intake.SessionTurnContext{
		SessionID:     c.ID.String(),
		Mode:          c.Mode,
		History:       c.Messages,
		Inbound:       msg,
		Record:        c.Record,
		Workflow:      c.Workflow,
		StageOverride: in.StageOverride,
	})
	if err != nil {
		if errors.Is(err, intake.ErrEmptyMessage) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
		}
		return nil, err
	}

	c.Messages = append(c.Messages, msg, intake.Message{
		ID:        uuid.NewString(),
		Role:      intake.RoleAssistant,
		Text:      res.Reply,
		Timestamp: s.now(),
	})
	c.Record = res.Record
	c.Workflow = res.Workflow

	// The flag is persisted with the turn so a concurrent or later turn does not send a
	// second handover; a failed delivery clears it again.
	notify := res.ReadyForHandoff && !c.HandoverNotified && s.notifier != nil
	if notify {
		c.HandoverNotified = true
	}

	if err := s.repo.Save(ctx, c); err != nil {
		return nil, err
	}

	if notify {
		s.dispatchHandover(ctx, *c)
	}

	s.logger.Info().
		Str("consultation_id", c.ID.String()).
		Str("stage", res.Stage.String()).
		Str("reason", string(res.Termination.Reason)).
		Bool("fallback", res.Fallback).
		Int("completeness", res.Completeness).
		Msg("turn processed")

	return &TurnOutcome{
		Consultation:      c,
		Reply:             res.Reply,
		Stage:             res.Stage,
		Completeness:      res.Completeness,
		ReadyForHandoff:   res.ReadyForHandoff,
		TerminationReason: res.Termination.Reason,
		Fallback:          res.Fallback,
	}, nil
}

// dispatchHandover sends the summary off the request path. The patient's reply never
// waits on the doctor's messenger.
func (s *service) dispatchHandover(ctx context.Context, c Consultation) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()

		if err := s.notifier.NotifyHandover(ctx, c); err != nil {
			s.logger.Error().Err(err).Str("consultation_id", c.ID.String()).Msg("failed to notify doctor")
			s.clearHandoverFlag(ctx, c.ID)
			return
		}
		s.logger.Info().Str("consultation_id", c.ID.String()).Msg("handover sent to doctor")
	}()
}

// clearHandoverFlag re-arms the notification so the next turn retries it.
func (s *service) clearHandoverFlag(ctx context.Context, id uuid.UUID) {
	unlock := s.locks.Lock(id)
	defer unlock()

	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("consultation_id", id.String()).Msg("failed to load consultation after notification failure")
		return
	}
	if !c.HandoverNotified {
		return
	}
	c.HandoverNotified = false
	if err := s.repo.Save(ctx, c); err != nil {
		s.logger.Error().Err(err).Str("consultation_id", id.String()).Msg("failed to re-arm handover notification")
	}
}

// wait blocks until every dispatched notification has finished.
func (s *service) wait() {
	s.pending.Wait()
}

func (s *service) ResetConsultation(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	prev, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	next := *prev
	next.restart(s.now())

	if err := s.repo.Archive(ctx, prev, &next); err != nil {
		return nil, err
	}
	s.logger.Info().Str("consultation_id", id.String()).Msg("consultation reset, previous record archived")
	return &next, nil
}

func fingerprintContent(in Inbound) string {
	if len(in.ImageURLs) == 0 {
		return in.Text
	}
	return in.Text + "\n" + strings.Join(in.ImageURLs, "\n")
}

// keyedMutex hands out one mutex per consultation and forgets it when no turn holds or
// waits for it.
type keyedMutex struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{entries: make(map[uuid.UUID]*keyedEntry)}
}

func (k *keyedMutex) Lock(id uuid.UUID) func() {
	k.mu.Lock()
	e, ok := k.entries[id]
	if !ok {
		e = &keyedEntry{}
		k.entries[id] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.entries, id)
		}
		k.mu.Unlock()
	}
}
