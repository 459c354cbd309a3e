package intake

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Role is who authored a message.
type Role string

const (
	RolePatient   Role = "patient"
	RoleAssistant Role = "assistant"
	RoleClinician Role = "clinician"
)

// Mode selects patient intake or clinician consult handling.
type Mode string

const (
	ModeIntake  Mode = "intake"
	ModeConsult Mode = "consult"
)

var ErrEmptyMessage = errors.New("inbound message has no text or images")

type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	ImageURLs []string  `json:"imageUrls,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionTurnContext carries everything one turn needs. Nothing else is shared between
// turns; the orchestrator returns the next record and workflow state instead of mutating.
type SessionTurnContext struct {
	SessionID string
	Mode      Mode
	History   []Message
	Inbound   Message
	Record    ClinicalRecord
	Workflow  WorkflowState
	// StageOverride, when set, replaces the routed stage for this turn only.
	StageOverride *Stage
}

// GenerationRequest is what the reply generator receives.
type GenerationRequest struct {
	SessionID    string
	Mode         Mode
	Stage        Stage
	SystemPrompt string
	History      []Message
	Inbound      Message
	Tracking     TrackingState
}

// Generator produces the raw text of the assistant's next reply.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

// TurnResult is the next state of the session after one inbound message.
type TurnResult struct {
	Reply           string
	Reasoning       json.RawMessage
	Record          ClinicalRecord
	Workflow        WorkflowState
	Stage           Stage
	Completeness    int
	Termination     Termination
	Fallback        bool
	GeneratorCalled bool
	ReadyForHandoff bool
}

type Orchestrator struct {
	gen      Generator
	vocab    *Vocabulary
	detector *Detector
	limits   Limits
	timeout  time.Duration
	logger   zerolog.Logger
}

type Option func(*Orchestrator)

func WithLimits(l Limits) Option {
	return func(o *Orchestrator) { o.limits = l.withDefaults() }
}

func WithVocabulary(v *Vocabulary) Option {
	return func(o *Orchestrator) { o.vocab = v }
}

// WithTimeout bounds each generator call. A timeout is handled like any generation failure.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = d }
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

func NewOrchestrator(gen Generator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		gen:     gen,
		vocab:   DefaultVocabulary(),
		limits:  DefaultLimits(),
		timeout: 30 * time.Second,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.detector = NewDetector(o.vocab, o.limits)
	return o
}

func (o *Orchestrator) Detector() *Detector {
	return o.detector
}

// Process runs one turn. Generation failures never surface as errors; they produce a
// fallback reply instead.
func (o *Orchestrator) Process(ctx context.Context, tc SessionTurnContext) (TurnResult, error) {
	if strings.TrimSpace(tc.Inbound.Text) == "" && len(tc.Inbound.ImageURLs) == 0 {
		return TurnResult{}, ErrEmptyMessage
	}
	wf := cloneWorkflow(tc.Workflow)
	if tc.Mode == ModeConsult {
		return o.consult(ctx, tc, wf), nil
	}

	record := tc.Record
	text := tc.Inbound.Text
	stage := o.resolveStage(record, wf, tc.StageOverride)
	completeness := Score(record)

	// Once handed over and marked ready the stage no longer moves.
	if stage == StageHandover && record.BookingStatus != BookingCollecting && record.BookingStatus != "" {
		tracking := wf.Tracking(stage, completeness)
		return o.generateTurn(ctx, tc, record, wf, stage, tracking, Termination{TargetStage: stage}), nil
	}

	term := o.detector.Detect(TerminationInput{
		Text:              text,
		ActiveStage:       stage,
		TurnCount:         wf.AssistantTurns,
		Completeness:      completeness,
		HasChiefComplaint: record.HasChiefComplaint(),
		HasHPI:            record.HasHPI(),
	})

	if term.Immediate {
		wf.FollowUpCounts = Clear(wf.FollowUpCounts, stage)
		wf.TerminationReason = term.Reason
		wf.PhraseVersion = o.vocab.Version()
		reply := term.Acknowledgment
		if term.TargetStage != StageHandover {
			reply += " " + StageOpening(term.TargetStage)
		}
		o.logger.Info().
			Str("session_id", tc.SessionID).
			Str("from", stage.String()).
			Str("to", term.TargetStage.String()).
			Str("reason", string(term.Reason)).
			Msg("stage short-circuited by patient command")
		res := o.finish(record, wf, term.TargetStage, tc.StageOverride != nil)
		res.Reply = reply
		res.Termination = term
		return res, nil
	}

	if stage == StageRecordsCheck || stage == StageHistoryCheck {
		if o.detector.IsNegativeResponse(text) || o.detector.IsUncertainResponse(text) {
			record = completeMilestone(record, stage)
			if next := Later(DetermineStage(record, o.limits), stage); next != stage && tc.StageOverride == nil {
				wf.FollowUpCounts = Clear(wf.FollowUpCounts, stage)
				stage = next
			}
		}
	}

	newInfo := o.vocab.NewInformationFor(stage, text, wf.AnsweredTopics)
	wf.AnsweredTopics = MarkAnswered(wf.AnsweredTopics, o.vocab.ExtractTopics(text))
	if newInfo {
		wf.FollowUpCounts = Clear(wf.FollowUpCounts, stage)
	}

	forced := ReasonNone
	switch {
	case term.ShouldTerminate:
		wf.FollowUpCounts = Clear(wf.FollowUpCounts, stage)
		wf.TerminationReason = term.Reason
		wf.PhraseVersion = o.vocab.Version()
		stage = term.TargetStage
		if term.Acknowledgment == "" {
			forced = term.Reason
		}
	case !newInfo && stage != StageHandover && IsLimitReached(wf.FollowUpCounts, stage, o.limits):
		wf.FollowUpCounts = Clear(wf.FollowUpCounts, stage)
		stage = NextStageOnLimit(stage)
		forced = ReasonFollowUpLimit
		term = Termination{Reason: ReasonFollowUpLimit, TargetStage: stage}
	}
	if forced != ReasonNone || term.ShouldTerminate {
		o.logger.Info().
			Str("session_id", tc.SessionID).
			Str("to", stage.String()).
			Str("reason", string(term.Reason)).
			Msg("stage advance forced")
	}

	tracking := wf.Tracking(stage, completeness)
	tracking.Forced = forced
	if stage != StageHandover && !wf.ConclusionOffered && o.detector.ShouldOfferConclusion(wf.AssistantTurns) {
		tracking.OfferConclusion = true
	}
	return o.generateTurn(ctx, tc, record, wf, stage, tracking, term), nil
}

func (o *Orchestrator) generateTurn(
	ctx context.Context,
	tc SessionTurnContext,
	record ClinicalRecord,
	wf WorkflowState,
	stage Stage,
	tracking TrackingState,
	term Termination,
) TurnResult {
	gen, err := o.generate(ctx, tc, stage, tracking, record)
	if err != nil {
		wf.ConsecutiveErrors++
		reply := FallbackReply(stage, wf.ConsecutiveErrors, o.limits)
		if term.Acknowledgment != "" && wf.ConsecutiveErrors < o.limits.MaxConsecutiveErrors {
			reply = term.Acknowledgment + " " + reply
		}
		o.logger.Warn().Err(err).
			Str("session_id", tc.SessionID).
			Str("stage", stage.String()).
			Int("consecutive_errors", wf.ConsecutiveErrors).
			Msg("generation failed, using fallback reply")
		res := o.finish(record, wf, stage, tc.StageOverride != nil)
		res.Reply = reply
		res.Termination = term
		res.Fallback = true
		res.GeneratorCalled = true
		return res
	}

	wf.ConsecutiveErrors = 0
	if gen.UpdateErr != nil {
		o.logger.Warn().Err(gen.UpdateErr).Str("session_id", tc.SessionID).Msg("ignoring malformed record update")
	}
	if gen.Update != nil {
		record = Merge(record, *gen.Update)
	}
	if tracking.OfferConclusion {
		wf.ConclusionOffered = true
	}
	wf.FollowUpCounts = Increment(wf.FollowUpCounts, stage)

	if tc.StageOverride == nil && stage != StageHandover {
		if next := Later(DetermineStage(record, o.limits), stage); next != stage {
			wf.FollowUpCounts = Clear(wf.FollowUpCounts, stage)
			stage = next
		}
	}

	reply := gen.Reply
	if term.ShouldTerminate && term.Acknowledgment != "" {
		reply = term.Acknowledgment + "\n\n" + reply
	}
	res := o.finish(record, wf, stage, tc.StageOverride != nil)
	res.Reply = reply
	res.Reasoning = gen.Reasoning
	res.Termination = term
	res.GeneratorCalled = true
	return res
}

// generate calls the generator under the turn timeout. A generator that ignores its
// context is abandoned when the deadline passes.
func (o *Orchestrator) generate(ctx context.Context, tc SessionTurnContext, stage Stage, tracking TrackingState, record ClinicalRecord) (Generation, error) {
	if o.gen == nil {
		return Generation{}, errors.New("no generator configured")
	}
	recordJSON, err := json.Marshal(record)
	if err != nil {
		return Generation{}, err
	}
	prompt := BuildPrompt(tracking, recordJSON)
	if tc.Mode == ModeConsult {
		prompt = BuildConsultPrompt(recordJSON)
	}
	req := GenerationRequest{
		SessionID:    tc.SessionID,
		Mode:         tc.Mode,
		Stage:        stage,
		SystemPrompt: prompt,
		History:      tc.History,
		Inbound:      tc.Inbound,
		Tracking:     tracking,
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	type outcome struct {
		raw string
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		raw, err := o.gen.Generate(ctx, req)
		done <- outcome{raw: raw, err: err}
	}()

	select {
	case <-ctx.Done():
		return Generation{}, ctx.Err()
	case out := <-done:
		if out.err != nil {
			return Generation{}, out.err
		}
		return ParseGeneration(out.raw)
	}
}

func (o *Orchestrator) consult(ctx context.Context, tc SessionTurnContext, wf WorkflowState) TurnResult {
	record := tc.Record
	stage := wf.LastStage
	res := TurnResult{Record: record, Workflow: wf, Stage: stage, GeneratorCalled: true}

	gen, err := o.generate(ctx, tc, stage, wf.Tracking(stage, Score(record)), record)
	if err != nil {
		o.logger.Warn().Err(err).Str("session_id", tc.SessionID).Msg("consult generation failed")
		res.Reply = "I couldn't prepare an answer just now. Please try again in a moment."
		res.Fallback = true
	} else {
		if gen.Update != nil {
			res.Record = Merge(record, *gen.Update)
		}
		res.Reply = gen.Reply
		res.Reasoning = gen.Reasoning
	}
	res.Completeness = Score(res.Record)
	res.ReadyForHandoff = res.Record.BookingStatus == BookingReady || res.Record.BookingStatus == BookingBooked
	return res
}

// finish stamps the resolved stage on the record and workflow state.
func (o *Orchestrator) finish(record ClinicalRecord, wf WorkflowState, stage Stage, overridden bool) TurnResult {
	if stage == StageHandover {
		if record.Handover == nil {
			record.Handover = BuildHandover(record)
		}
		if record.BookingStatus == BookingCollecting || record.BookingStatus == "" {
			record.BookingStatus = BookingReady
		}
	}
	record.ActiveStage = stage
	if overridden {
		wf.LastStage = Later(wf.LastStage, DetermineStage(record, o.limits))
	} else {
		wf.LastStage = stage
	}
	wf.AssistantTurns++

	return TurnResult{
		Record:          record,
		Workflow:        wf,
		Stage:           stage,
		Completeness:    Score(record),
		ReadyForHandoff: stage == StageHandover && record.BookingStatus != BookingCollecting,
	}
}

func (o *Orchestrator) resolveStage(record ClinicalRecord, wf WorkflowState, override *Stage) Stage {
	if override != nil && override.Valid() {
		return *override
	}
	return Later(DetermineStage(record, o.limits), wf.LastStage)
}

func completeMilestone(r ClinicalRecord, stage Stage) ClinicalRecord {
	switch stage {
	case StageRecordsCheck:
		r.RecordsCheckCompleted = true
	case StageHistoryCheck:
		r.HistoryCheckCompleted = true
	}
	return r
}

func cloneWorkflow(w WorkflowState) WorkflowState {
	out := w
	out.FollowUpCounts = w.FollowUpCounts.Clone()
	out.AnsweredTopics = append([]string{}, w.AnsweredTopics...)
	return out
}
