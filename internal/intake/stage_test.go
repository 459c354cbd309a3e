package intake

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func vitalsDone() ClinicalRecord {
	r := NewRecord()
	r.Vitals.Collected = true
	r.Vitals.StageCompleted = true
	return r
}

func TestDetermineStage(t *testing.T) {
	limits := DefaultLimits()
	longHPI := strings.Repeat("x", 50)

	tests := []struct {
		name   string
		record func() ClinicalRecord
		want   Stage
	}{
		{
			name:   "fresh record starts at vitals",
			record: NewRecord,
			want:   StageVitals,
		},
		{
			name: "vitals pending wins over everything else",
			record: func() ClinicalRecord {
				r := NewRecord()
				r.ChiefComplaint = strPtr("cough")
				r.HPI = strPtr(longHPI)
				r.RecordsCheckCompleted = true
				r.HistoryCheckCompleted = true
				return r
			},
			want: StageVitals,
		},
		{
			name:   "missing chief complaint routes to triage",
			record: vitalsDone,
			want:   StageTriage,
		},
		{
			name: "blank chief complaint routes to triage",
			record: func() ClinicalRecord {
				r := vitalsDone()
				r.ChiefComplaint = strPtr("   ")
				return r
			},
			want: StageTriage,
		},
		{
			name: "short hpi routes to investigation",
			record: func() ClinicalRecord {
				r := vitalsDone()
				r.ChiefComplaint = strPtr("headache")
				r.HPI = strPtr(strings.Repeat("x", 49))
				return r
			},
			want: StageInvestigation,
		},
		{
			name: "records check pending",
			record: func() ClinicalRecord {
				r := vitalsDone()
				r.ChiefComplaint = strPtr("headache")
				r.HPI = strPtr(longHPI)
				return r
			},
			want: StageRecordsCheck,
		},
		{
			name: "history check pending with empty history lists",
			record: func() ClinicalRecord {
				r := vitalsDone()
				r.ChiefComplaint = strPtr("headache")
				r.HPI = strPtr(longHPI)
				r.RecordsCheckCompleted = true
				return r
			},
			want: StageHistoryCheck,
		},
		{
			name: "any history item skips history check",
			record: func() ClinicalRecord {
				r := vitalsDone()
				r.ChiefComplaint = strPtr("headache")
				r.HPI = strPtr(longHPI)
				r.RecordsCheckCompleted = true
				r.Allergies = []string{"penicillin"}
				return r
			},
			want: StageHandover,
		},
		{
			name: "everything collected",
			record: func() ClinicalRecord {
				r := vitalsDone()
				r.ChiefComplaint = strPtr("headache")
				r.HPI = strPtr(longHPI)
				r.RecordsCheckCompleted = true
				r.HistoryCheckCompleted = true
				return r
			},
			want: StageHandover,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.record()
			got := DetermineStage(r, limits)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, DetermineStage(r, limits), "router must be deterministic")
		})
	}
}

func TestDetermineStage_ZeroLimitsUseDefaults(t *testing.T) {
	r := vitalsDone()
	r.ChiefComplaint = strPtr("headache")
	r.HPI = strPtr("since Monday")

	assert.Equal(t, StageInvestigation, DetermineStage(r, Limits{}))

	partial := Limits{MaxTurns: 5}
	assert.Equal(t, StageInvestigation, DetermineStage(r, partial))
}

func TestStageNext(t *testing.T) {
	assert.Equal(t, StageTriage, StageVitals.Next())
	assert.Equal(t, StageRecordsCheck, StageInvestigation.Next())
	assert.Equal(t, StageHandover, StageHistoryCheck.Next())
	assert.Equal(t, StageHandover, StageHandover.Next())
}

func TestStageText(t *testing.T) {
	for _, s := range Stages {
		b, err := s.MarshalText()
		require.NoError(t, err)
		var back Stage
		require.NoError(t, back.UnmarshalText(b))
		assert.Equal(t, s, back)
	}

	_, err := ParseStage("diagnosis")
	assert.Error(t, err)
}

func TestFollowUpCountsSerialiseWithStringKeys(t *testing.T) {
	counts := FollowUpCounts{StageInvestigation: 2, StageTriage: 1}

	b, err := json.Marshal(counts)
	require.NoError(t, err)
	assert.JSONEq(t, `{"investigation":2,"triage":1}`, string(b))

	var back FollowUpCounts
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, counts, back)
}

func TestEveryStageHasInstructionAndOpening(t *testing.T) {
	for _, s := range Stages {
		assert.NotPanics(t, func() { stageInstruction(s) }, s.String())
		assert.Equal(t, 1, strings.Count(stageInstruction(s), "%s"), s.String())
		assert.Equal(t, 1, strings.Count(stageInstruction(s), "%d"), s.String())
		assert.NotEqual(t, "Could you tell me a little more?", StageOpening(s), s.String())
	}
}
