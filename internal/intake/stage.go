package intake

import (
	"fmt"
	"strings"
)

// Stage is one step of the intake conversation. Stages are strictly ordered.
type Stage int

const (
	StageVitals Stage = iota
	StageTriage
	StageInvestigation
	StageRecordsCheck
	StageHistoryCheck
	StageHandover
)

// Stages lists every stage in conversation order.
var Stages = []Stage{
	StageVitals,
	StageTriage,
	StageInvestigation,
	StageRecordsCheck,
	StageHistoryCheck,
	StageHandover,
}

func (s Stage) String() string {
	switch s {
	case StageVitals:
		return "vitals"
	case StageTriage:
		return "triage"
	case StageInvestigation:
		return "investigation"
	case StageRecordsCheck:
		return "records_check"
	case StageHistoryCheck:
		return "history_check"
	case StageHandover:
		return "handover"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Valid reports whether s is one of the defined stages.
func (s Stage) Valid() bool {
	return s >= StageVitals && s <= StageHandover
}

// Next returns the following stage. Handover is terminal and returns itself.
func (s Stage) Next() Stage {
	if s >= StageHandover {
		return StageHandover
	}
	if s < StageVitals {
		return StageVitals
	}
	return s + 1
}

// ParseStage converts the persisted identifier back into a Stage.
func ParseStage(v string) (Stage, error) {
	for _, s := range Stages {
		if strings.EqualFold(v, s.String()) {
			return s, nil
		}
	}
	return StageVitals, fmt.Errorf("unknown stage %q", v)
}

func (s Stage) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid stage %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Stage) UnmarshalText(b []byte) error {
	parsed, err := ParseStage(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Later returns whichever of a and b comes later in the conversation.
func Later(a, b Stage) Stage {
	if a > b {
		return a
	}
	return b
}

// DetermineStage picks the active stage from the record. The first unmet rule wins.
func DetermineStage(r ClinicalRecord, limits Limits) Stage {
	limits = limits.withDefaults()
	switch {
	case !r.Vitals.StageCompleted:
		return StageVitals
	case isBlank(r.ChiefComplaint):
		return StageTriage
	case runeLen(r.HPI) < limits.HPIMinLength:
		return StageInvestigation
	case !r.RecordsCheckCompleted:
		return StageRecordsCheck
	case !r.HistoryCheckCompleted &&
		len(r.Medications) == 0 && len(r.Allergies) == 0 && len(r.PastMedicalHistory) == 0:
		return StageHistoryCheck
	default:
		return StageHandover
	}
}

func isBlank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

func runeLen(s *string) int {
	if s == nil {
		return 0
	}
	return len([]rune(*s))
}
