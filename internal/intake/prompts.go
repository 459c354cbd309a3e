package intake

import (
	"fmt"
	"strings"
)

const systemPreamble = `You are a warm, professional medical intake assistant talking to a patient before a
telemedicine consultation. You never diagnose or prescribe. Ask one short question at a time.

Respond ONLY with a JSON object of the form:
{"reasoning": {"differential": [...], "strategy": "..."}, "reply": "text shown to the patient", "updatedData": {partial clinical record}}
updatedData may only contain fields that changed this turn; use the same field names as the record below.`

const consultPreamble = `You are assisting a doctor who is reviewing a patient's intake record. Answer the doctor's
question concisely using the record. Do not invent findings.

Respond ONLY with a JSON object of the form:
{"reasoning": {...}, "reply": "answer for the doctor", "updatedData": {partial clinical record or {}}}`

// stageInstruction returns the template for a stage. Each template has two substitution
// points: the already answered topics and the follow-up count for the stage.
func stageInstruction(stage Stage) string {
	switch stage {
	case StageVitals:
		return `STAGE: VITALS
Collect the patient's name, age, gender, temperature, weight and blood pressure if they know them.
Already answered topics: %s. Follow-up questions asked in this stage: %d.
When the basics are collected set vitals.collected and vitals.stageCompleted to true and make a triage
decision (vitals.triage.decision = "routine" | "urgent" | "emergency" with reason and factors).`
	case StageTriage:
		return `STAGE: TRIAGE
Find out the main reason the patient is seeking care today and record it as chiefComplaint.
Already answered topics: %s. Follow-up questions asked in this stage: %d.
Do not repeat questions about answered topics.`
	case StageInvestigation:
		return `STAGE: INVESTIGATION
Build the history of present illness: onset, duration, severity, character, aggravating and relieving
factors, associated symptoms. Keep hpi as a running narrative and add reviewOfSystems items.
Already answered topics: %s. Follow-up questions asked in this stage: %d.
Do not ask about topics that were already answered.`
	case StageRecordsCheck:
		return `STAGE: RECORDS CHECK
Ask whether the patient has recent medical records, lab results or imaging to share and note them in
medicalRecords. Set recordsCheckCompleted to true once they have answered.
Already answered topics: %s. Follow-up questions asked in this stage: %d.`
	case StageHistoryCheck:
		return `STAGE: HISTORY CHECK
Ask about current medications, allergies, past medical history, family history and social history
(smoking, alcohol, occupation). Set historyCheckCompleted to true once covered.
Already answered topics: %s. Follow-up questions asked in this stage: %d.`
	case StageHandover:
		return `STAGE: HANDOVER
Thank the patient and summarise for the doctor. Provide handover as an SBAR object
(situation, background, assessment, recommendation) and set bookingStatus to "ready".
Already answered topics: %s. Follow-up questions asked in this stage: %d.`
	}
	panic(fmt.Sprintf("intake: no instruction for %s", stage))
}

// BuildPrompt renders the system instruction for a turn.
func BuildPrompt(tracking TrackingState, recordJSON []byte) string {
	var b strings.Builder
	b.WriteString(systemPreamble)
	b.WriteString("\n\n")

	answered := "none"
	if len(tracking.AnsweredTopics) > 0 {
		answered = strings.Join(tracking.AnsweredTopics, ", ")
	}
	fmt.Fprintf(&b, stageInstruction(tracking.ActiveStage), answered, tracking.FollowUpCounts[tracking.ActiveStage])
	b.WriteString("\n")

	if tracking.Forced != ReasonNone {
		fmt.Fprintf(&b, "\nThe conversation has just moved to this stage (%s). Briefly acknowledge the transition.\n", tracking.Forced)
	}
	if tracking.OfferConclusion {
		b.WriteString("\nThe intake is getting long. Offer the patient the option to finish now and book the consultation.\n")
	}
	fmt.Fprintf(&b, "\nAssistant turns so far: %d. Completeness: %d%%.\n", tracking.TurnCount, tracking.Completeness)

	b.WriteString("\nCURRENT CLINICAL RECORD:\n")
	b.Write(recordJSON)
	b.WriteString("\n")
	return b.String()
}

// BuildConsultPrompt renders the system instruction for clinician consult mode.
func BuildConsultPrompt(recordJSON []byte) string {
	return consultPreamble + "\n\nPATIENT RECORD:\n" + string(recordJSON) + "\n"
}
