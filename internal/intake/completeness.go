package intake

// Completeness weights. A criterion is either met or not; there is no partial credit.
const (
	weightChiefComplaint = 20
	weightHPI            = 20
	weightRecordsCheck   = 10
	weightMedications    = 10
	weightAllergies      = 10
	weightPMH            = 10
	weightFamilyHistory  = 5
	weightSocialHistory  = 5
	weightHandover       = 10
)

// Score returns the weighted completeness of the record as a percentage in [0, 100].
func Score(r ClinicalRecord) int {
	reviewed := r.RecordsCheckCompleted || r.HistoryCheckCompleted

	score := 0
	if r.HasChiefComplaint() {
		score += weightChiefComplaint
	}
	if r.HasHPI() {
		score += weightHPI
	}
	if r.RecordsCheckCompleted {
		score += weightRecordsCheck
	}
	if len(r.Medications) > 0 || reviewed {
		score += weightMedications
	}
	if len(r.Allergies) > 0 || reviewed {
		score += weightAllergies
	}
	if len(r.PastMedicalHistory) > 0 || reviewed {
		score += weightPMH
	}
	if !isBlank(r.FamilyHistory) {
		score += weightFamilyHistory
	}
	if !isBlank(r.SocialHistory) {
		score += weightSocialHistory
	}
	if r.Handover != nil {
		score += weightHandover
	}
	if score > 100 {
		score = 100
	}
	return score
}
