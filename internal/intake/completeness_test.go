package intake

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func fullRecord() ClinicalRecord {
	r := vitalsDone()
	r.ChiefComplaint = strPtr("chest tightness")
	r.HPI = strPtr("Intermittent chest tightness on exertion for two weeks, relieved by rest.")
	r.RecordsCheckCompleted = true
	r.HistoryCheckCompleted = true
	r.Medications = []string{"atorvastatin"}
	r.Allergies = []string{"none known"}
	r.PastMedicalHistory = []string{"hyperlipidaemia"}
	r.FamilyHistory = strPtr("father had MI at 55")
	r.SocialHistory = strPtr("ex-smoker")
	r.Handover = &Handover{Situation: "chest tightness"}
	return r
}

func TestScore(t *testing.T) {
	tests := []struct {
		name   string
		record func() ClinicalRecord
		want   int
	}{
		{name: "empty record", record: NewRecord, want: 0},
		{name: "all criteria met caps at 100", record: fullRecord, want: 100},
		{
			name: "chief complaint and hpi",
			record: func() ClinicalRecord {
				r := NewRecord()
				r.ChiefComplaint = strPtr("cough")
				r.HPI = strPtr("dry cough")
				return r
			},
			want: 40,
		},
		{
			name: "records check also credits the history lists",
			record: func() ClinicalRecord {
				r := NewRecord()
				r.RecordsCheckCompleted = true
				return r
			},
			want: 40,
		},
		{
			name: "history check credits the lists but not records",
			record: func() ClinicalRecord {
				r := NewRecord()
				r.HistoryCheckCompleted = true
				return r
			},
			want: 30,
		},
		{
			name: "individual lists",
			record: func() ClinicalRecord {
				r := NewRecord()
				r.Medications = []string{"metformin"}
				r.Allergies = []string{"latex"}
				return r
			},
			want: 20,
		},
		{
			name: "blank scalars do not count",
			record: func() ClinicalRecord {
				r := NewRecord()
				r.ChiefComplaint = strPtr(" ")
				r.FamilyHistory = strPtr("")
				r.SocialHistory = strPtr("smoker")
				return r
			},
			want: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Score(tt.record()))
		})
	}
}

func TestScoreMonotonicUnderAdditiveUpdates(t *testing.T) {
	r := NewRecord()
	steps := []RecordUpdate{
		{ChiefComplaint: strPtr("sore throat")},
		{HPI: strPtr("three days of sore throat, worse when swallowing")},
		{Medications: []string{"paracetamol"}},
		{RecordsCheckCompleted: boolPtr(true)},
		{SocialHistory: strPtr("nurse, non-smoker")},
		{Handover: &Handover{Situation: "sore throat"}},
	}
	prev := Score(r)
	for _, u := range steps {
		r = Merge(r, u)
		got := Score(r)
		assert.GreaterOrEqual(t, got, prev)
		prev = got
	}
	assert.Equal(t, 95, prev)
}
