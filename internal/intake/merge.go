package intake

// Merge folds a partial update into the existing record and returns a new record.
// Neither argument is modified. Merging the same update twice is a no-op the second time:
// set-like fields take the de-duplicated union, milestones are OR-ed, and scalars only
// change when the update supplies a value.
func Merge(existing ClinicalRecord, update RecordUpdate) ClinicalRecord {
	out := existing

	out.ChiefComplaint = pickString(existing.ChiefComplaint, update.ChiefComplaint)
	out.HPI = pickString(existing.HPI, update.HPI)
	out.FamilyHistory = pickString(existing.FamilyHistory, update.FamilyHistory)
	out.SocialHistory = pickString(existing.SocialHistory, update.SocialHistory)
	out.GuidelineRecommendations = pickString(existing.GuidelineRecommendations, update.GuidelineRecommendations)

	out.MedicalRecords = unionStrings(existing.MedicalRecords, update.MedicalRecords)
	out.Medications = unionStrings(existing.Medications, update.Medications)
	out.Allergies = unionStrings(existing.Allergies, update.Allergies)
	out.PastMedicalHistory = unionStrings(existing.PastMedicalHistory, update.PastMedicalHistory)
	out.ReviewOfSystems = unionStrings(existing.ReviewOfSystems, update.ReviewOfSystems)

	out.RecordsCheckCompleted = existing.RecordsCheckCompleted || boolValue(update.RecordsCheckCompleted)
	out.HistoryCheckCompleted = existing.HistoryCheckCompleted || boolValue(update.HistoryCheckCompleted)

	out.Vitals = mergeVitals(existing.Vitals, update.Vitals)

	if update.ActiveStage != nil && update.ActiveStage.Valid() {
		out.ActiveStage = *update.ActiveStage
	}
	if update.BookingStatus != nil && *update.BookingStatus != "" {
		out.BookingStatus = *update.BookingStatus
	}
	if update.Handover != nil {
		h := *update.Handover
		out.Handover = &h
	} else if existing.Handover != nil {
		h := *existing.Handover
		out.Handover = &h
	}
	out.AppointmentDate = pickString(existing.AppointmentDate, update.AppointmentDate)

	return out
}

func mergeVitals(existing Vitals, update *VitalsUpdate) Vitals {
	out := existing
	out.Temperature = cloneTemperature(existing.Temperature)
	out.Weight = cloneWeight(existing.Weight)
	out.BloodPressure = cloneBloodPressure(existing.BloodPressure)
	out.Triage = cloneTriage(existing.Triage)
	if update == nil {
		return out
	}

	out.Name = pickString(existing.Name, update.Name)
	out.Gender = pickString(existing.Gender, update.Gender)
	out.Status = pickString(existing.Status, update.Status)
	if update.Age != nil {
		v := *update.Age
		out.Age = &v
	}
	if update.Collected != nil {
		out.Collected = *update.Collected
	}
	if update.StageCompleted != nil {
		out.StageCompleted = *update.StageCompleted
	}

	if t := update.Temperature; t != nil {
		if out.Temperature == nil {
			out.Temperature = &Temperature{}
		}
		out.Temperature.Value = pickFloat(out.Temperature.Value, t.Value)
		out.Temperature.Unit = pickString(out.Temperature.Unit, t.Unit)
	}
	if w := update.Weight; w != nil {
		if out.Weight == nil {
			out.Weight = &Weight{}
		}
		out.Weight.Value = pickFloat(out.Weight.Value, w.Value)
		out.Weight.Unit = pickString(out.Weight.Unit, w.Unit)
	}
	if bp := update.BloodPressure; bp != nil {
		if out.BloodPressure == nil {
			out.BloodPressure = &BloodPressure{}
		}
		out.BloodPressure.Systolic = pickInt(out.BloodPressure.Systolic, bp.Systolic)
		out.BloodPressure.Diastolic = pickInt(out.BloodPressure.Diastolic, bp.Diastolic)
	}
	if tr := update.Triage; tr != nil {
		if out.Triage == nil {
			out.Triage = &TriageDecision{}
		}
		out.Triage.Decision = pickString(out.Triage.Decision, tr.Decision)
		out.Triage.Reason = pickString(out.Triage.Reason, tr.Reason)
		if tr.Factors != nil {
			out.Triage.Factors = unionStrings(out.Triage.Factors, tr.Factors)
		}
	}
	return out
}

// unionStrings keeps existing items in order, then appends unseen update items.
// A nil update means the field was omitted and existing is kept as is.
func unionStrings(existing, update []string) []string {
	out := make([]string, 0, len(existing)+len(update))
	seen := make(map[string]struct{}, len(existing)+len(update))
	add := func(items []string) {
		for _, item := range items {
			if _, ok := seen[item]; ok {
				continue
			}
			seen[item] = struct{}{}
			out = append(out, item)
		}
	}
	add(existing)
	add(update)
	return out
}

func pickString(existing, update *string) *string {
	if update != nil {
		v := *update
		return &v
	}
	if existing != nil {
		v := *existing
		return &v
	}
	return nil
}

func pickFloat(existing, update *float64) *float64 {
	if update != nil {
		v := *update
		return &v
	}
	return existing
}

func pickInt(existing, update *int) *int {
	if update != nil {
		v := *update
		return &v
	}
	return existing
}

func boolValue(b *bool) bool {
	return b != nil && *b
}

func cloneTemperature(t *Temperature) *Temperature {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func cloneWeight(w *Weight) *Weight {
	if w == nil {
		return nil
	}
	c := *w
	return &c
}

func cloneBloodPressure(bp *BloodPressure) *BloodPressure {
	if bp == nil {
		return nil
	}
	c := *bp
	return &c
}

func cloneTriage(t *TriageDecision) *TriageDecision {
	if t == nil {
		return nil
	}
	c := *t
	c.Factors = append([]string(nil), t.Factors...)
	return &c
}
