package intake

// Limits holds the tunable thresholds of the orchestrator. The defaults are the values the
// intake flow has always shipped with; none of them is known to be optimal.
type Limits struct {
	MaxFollowUps         int // follow-up questions per stage before a forced advance
	MaxTurns             int // assistant turns before handover is forced
	ConclusionOfferTurn  int // first turn at which wrapping up is offered
	CompletenessCap      int // score at which handover is proposed
	CompletionMinScore   int // score a completion phrase needs to be honoured
	MaxConsecutiveErrors int // generation failures before asking the patient to rephrase
	HPIMinLength         int // characters an HPI narrative needs to leave investigation
}

func DefaultLimits() Limits {
	return Limits{
		MaxFollowUps:         2,
		MaxTurns:             20,
		ConclusionOfferTurn:  15,
		CompletenessCap:      80,
		CompletionMinScore:   60,
		MaxConsecutiveErrors: 3,
		HPIMinLength:         50,
	}
}

// withDefaults fills zero fields so a partially populated Limits still behaves.
func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.MaxFollowUps <= 0 {
		l.MaxFollowUps = d.MaxFollowUps
	}
	if l.MaxTurns <= 0 {
		l.MaxTurns = d.MaxTurns
	}
	if l.ConclusionOfferTurn <= 0 {
		l.ConclusionOfferTurn = d.ConclusionOfferTurn
	}
	if l.CompletenessCap <= 0 {
		l.CompletenessCap = d.CompletenessCap
	}
	if l.CompletionMinScore <= 0 {
		l.CompletionMinScore = d.CompletionMinScore
	}
	if l.MaxConsecutiveErrors <= 0 {
		l.MaxConsecutiveErrors = d.MaxConsecutiveErrors
	}
	if l.HPIMinLength <= 0 {
		l.HPIMinLength = d.HPIMinLength
	}
	return l
}
