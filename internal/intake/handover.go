package intake

import (
	"fmt"
	"strings"
)

// BuildHandover assembles an SBAR summary from whatever the record holds. It is used when
// the intake reaches handover without the generator having written one.
func BuildHandover(r ClinicalRecord) *Handover {
	h := &Handover{}

	if r.HasChiefComplaint() {
		h.Situation = "Patient presents with " + strings.TrimSpace(*r.ChiefComplaint) + "."
	} else {
		h.Situation = "Chief complaint not recorded during intake."
	}
	if r.Vitals.Age != nil || r.Vitals.Gender != nil {
		var who []string
		if r.Vitals.Age != nil {
			who = append(who, fmt.Sprintf("%d years old", *r.Vitals.Age))
		}
		if r.Vitals.Gender != nil && *r.Vitals.Gender != "" {
			who = append(who, *r.Vitals.Gender)
		}
		h.Situation += " " + strings.Join(who, ", ") + "."
	}

	var bg []string
	bg = appendList(bg, "Past medical history", r.PastMedicalHistory)
	bg = appendList(bg, "Medications", r.Medications)
	bg = appendList(bg, "Allergies", r.Allergies)
	bg = appendList(bg, "Records", r.MedicalRecords)
	if !isBlank(r.FamilyHistory) {
		bg = append(bg, "Family history: "+*r.FamilyHistory)
	}
	if !isBlank(r.SocialHistory) {
		bg = append(bg, "Social history: "+*r.SocialHistory)
	}
	if len(bg) == 0 {
		h.Background = "No background history collected."
	} else {
		h.Background = strings.Join(bg, ". ") + "."
	}

	var as []string
	if r.HasHPI() {
		as = append(as, strings.TrimSpace(*r.HPI))
	}
	as = appendList(as, "Review of systems", r.ReviewOfSystems)
	if t := r.Vitals.Triage; t != nil && t.Decision != nil {
		line := "Triage: " + *t.Decision
		if t.Reason != nil && *t.Reason != "" {
			line += " (" + *t.Reason + ")"
		}
		as = append(as, line)
	}
	if len(as) == 0 {
		h.Assessment = "Insufficient detail gathered for an assessment."
	} else {
		h.Assessment = strings.Join(as, ". ")
	}

	if !isBlank(r.GuidelineRecommendations) {
		h.Recommendation = *r.GuidelineRecommendations
	} else {
		h.Recommendation = "Doctor to review intake and confirm history during the consultation."
	}
	return h
}

func appendList(dst []string, label string, items []string) []string {
	if len(items) == 0 {
		return dst
	}
	return append(dst, label+": "+strings.Join(items, ", "))
}
