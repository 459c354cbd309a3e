package intake

const rephraseReply = "I'm sorry, I'm having trouble following. Could you rephrase that in a few simple words?"

// FallbackReply is the canned message used when the generator fails. After too many
// consecutive failures the patient is asked to rephrase instead.
func FallbackReply(stage Stage, consecutiveErrors int, limits Limits) string {
	if consecutiveErrors >= limits.withDefaults().MaxConsecutiveErrors {
		return rephraseReply
	}
	return StageOpening(stage)
}

// StageOpening is the locally known question that opens a stage.
func StageOpening(stage Stage) string {
	switch stage {
	case StageVitals:
		return "To get started, could you tell me your name, age, and, if you know them, your temperature, weight and blood pressure?"
	case StageTriage:
		return "What is the main reason you're seeking care today?"
	case StageInvestigation:
		return "Can you tell me more about it: when it started, how severe it is, and whether anything makes it better or worse?"
	case StageRecordsCheck:
		return "Do you have any recent medical records, lab results or scans you'd like the doctor to see?"
	case StageHistoryCheck:
		return "Are you taking any medications, do you have any allergies, or any past medical conditions I should note?"
	case StageHandover:
		return "Thank you. I've prepared a summary for the doctor and you can now book your consultation."
	}
	return "Could you tell me a little more?"
}
