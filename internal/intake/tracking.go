package intake

// WorkflowState is the orchestrator bookkeeping persisted alongside the record.
// It must round-trip through JSON unchanged.
type WorkflowState struct {
	FollowUpCounts    FollowUpCounts    `json:"followUpCounts"`
	AnsweredTopics    []string          `json:"answeredTopics"`
	AssistantTurns    int               `json:"assistantTurns"`
	ConsecutiveErrors int               `json:"consecutiveErrors"`
	LastStage         Stage             `json:"lastStage"`
	ConclusionOffered bool              `json:"conclusionOffered"`
	TerminationReason TerminationReason `json:"terminationReason,omitempty"`
	// PhraseVersion is the phrase table that produced TerminationReason.
	PhraseVersion string `json:"phraseVersion,omitempty"`
}

func NewWorkflowState() WorkflowState {
	return WorkflowState{
		FollowUpCounts: FollowUpCounts{},
		AnsweredTopics: []string{},
		LastStage:      StageVitals,
	}
}

// TrackingState is the per-turn view handed to the generator. It is derived from the
// persisted workflow state and record on every turn and never stored itself.
type TrackingState struct {
	ActiveStage     Stage
	FollowUpCounts  FollowUpCounts
	AnsweredTopics  []string
	TurnCount       int
	Completeness    int
	OfferConclusion bool
	Forced          TerminationReason
}

// Tracking derives the generator view for the given stage.
func (w WorkflowState) Tracking(stage Stage, completeness int) TrackingState {
	return TrackingState{
		ActiveStage:    stage,
		FollowUpCounts: w.FollowUpCounts.Clone(),
		AnsweredTopics: append([]string(nil), w.AnsweredTopics...),
		TurnCount:      w.AssistantTurns,
		Completeness:   completeness,
	}
}
