package intake

// TerminationReason tags why a turn short-circuited the current stage.
type TerminationReason string

const (
	ReasonNone                  TerminationReason = ""
	ReasonDoneCommand           TerminationReason = "done_command"
	ReasonSkipCommand           TerminationReason = "skip_command"
	ReasonExplicitFinish        TerminationReason = "explicit_finish"
	ReasonCompletionPhrase      TerminationReason = "completion_phrase"
	ReasonMessageLimit          TerminationReason = "message_limit"
	ReasonCompletenessThreshold TerminationReason = "completeness_threshold"
	ReasonFollowUpLimit         TerminationReason = "follow_up_limit"
)

const (
	ackDone   = "Understood, we'll stop here. I'm preparing a summary of what you've shared for the doctor."
	ackSkip   = "No problem, let's move on."
	ackFinish = "Of course. Let's wrap up so you can book your consultation."
	ackEnough = "Thank you, I have enough information for the doctor now."
	ackLimit  = "Thank you for your patience. We've covered a lot, so I'll hand your information over to the doctor now."
)

// Termination is the outcome of Detect.
type Termination struct {
	ShouldTerminate bool
	Reason          TerminationReason
	TargetStage     Stage
	Acknowledgment  string
	// Immediate terminations are answered locally without calling the generator.
	Immediate bool
}

// TerminationInput is what the detector looks at for one inbound message.
type TerminationInput struct {
	Text              string
	ActiveStage       Stage
	TurnCount         int
	Completeness      int
	HasChiefComplaint bool
	HasHPI            bool
}

// Detector decides whether a patient message ends or skips the current stage.
type Detector struct {
	vocab  *Vocabulary
	limits Limits
}

func NewDetector(vocab *Vocabulary, limits Limits) *Detector {
	if vocab == nil {
		vocab = DefaultVocabulary()
	}
	return &Detector{vocab: vocab, limits: limits.withDefaults()}
}

// Detect applies the termination rules in priority order; the first match wins.
func (d *Detector) Detect(in TerminationInput) Termination {
	switch {
	case isCommand(d.vocab.done, in.Text):
		return Termination{
			ShouldTerminate: true,
			Reason:          ReasonDoneCommand,
			TargetStage:     StageHandover,
			Acknowledgment:  ackDone,
			Immediate:       true,
		}
	case isCommand(d.vocab.skip, in.Text):
		return Termination{
			ShouldTerminate: true,
			Reason:          ReasonSkipCommand,
			TargetStage:     in.ActiveStage.Next(),
			Acknowledgment:  ackSkip,
			Immediate:       true,
		}
	case containsPhrase(d.vocab.finish, in.Text):
		return Termination{
			ShouldTerminate: true,
			Reason:          ReasonExplicitFinish,
			TargetStage:     StageHandover,
			Acknowledgment:  ackFinish,
		}
	case containsPhrase(d.vocab.completion, in.Text) && d.completionHonoured(in):
		return Termination{
			ShouldTerminate: true,
			Reason:          ReasonCompletionPhrase,
			TargetStage:     StageHandover,
			Acknowledgment:  ackEnough,
		}
	}

	if in.ActiveStage == StageHandover {
		return Termination{TargetStage: in.ActiveStage}
	}
	if in.TurnCount >= d.limits.MaxTurns {
		return Termination{
			ShouldTerminate: true,
			Reason:          ReasonMessageLimit,
			TargetStage:     StageHandover,
			Acknowledgment:  ackLimit,
		}
	}
	if in.Completeness >= d.limits.CompletenessCap {
		return Termination{
			ShouldTerminate: true,
			Reason:          ReasonCompletenessThreshold,
			TargetStage:     StageHandover,
		}
	}
	return Termination{TargetStage: in.ActiveStage}
}

// A completion phrase from a patient with little recorded data is not taken as a request
// to finish.
func (d *Detector) completionHonoured(in TerminationInput) bool {
	return in.Completeness >= d.limits.CompletionMinScore || (in.HasChiefComplaint && in.HasHPI)
}

// ShouldOfferConclusion reports whether the assistant should offer to wrap up.
func (d *Detector) ShouldOfferConclusion(turnCount int) bool {
	return turnCount >= d.limits.ConclusionOfferTurn && turnCount < d.limits.MaxTurns
}

// IsNegativeResponse reports whether the message is a plain "no"/"none" style answer.
func (d *Detector) IsNegativeResponse(text string) bool {
	return matchesAny(d.vocab.negative, text)
}

// IsUncertainResponse reports whether the patient says they do not know or remember.
func (d *Detector) IsUncertainResponse(text string) bool {
	return matchesAny(d.vocab.uncertain, text)
}
