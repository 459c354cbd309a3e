package intake

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTopics(t *testing.T) {
	v := DefaultVocabulary()

	assert.Equal(t, []string{"fever"}, v.ExtractTopics("I have a fever"))
	assert.Equal(t, []string{"fever"}, v.ExtractTopics("No fever."), "negated symptoms are still answered")

	got := v.ExtractTopics("Coughing and feeling dizzy since yesterday, about 3 days")
	assert.Contains(t, got, "cough")
	assert.Contains(t, got, "dizziness")
	assert.Contains(t, got, "onset")
	assert.Contains(t, got, "duration")

	got = v.ExtractTopics("I'm allergic to penicillin and take metformin for diabetes")
	assert.Contains(t, got, "allergies")
	assert.Contains(t, got, "medications")
	assert.Contains(t, got, "past_medical_history")

	assert.Empty(t, v.ExtractTopics("okay"))
	assert.Empty(t, v.ExtractTopics("   "))
}

func TestMarkAnsweredIsIdempotentUnion(t *testing.T) {
	got := MarkAnswered([]string{"fever"}, []string{"cough", "fever"})
	assert.Equal(t, []string{"fever", "cough"}, got)
	assert.Equal(t, got, MarkAnswered(got, []string{"cough", "fever"}))
}

func TestContainsNewInformation(t *testing.T) {
	v := DefaultVocabulary()

	assert.True(t, v.ContainsNewInformation("I have a headache", nil))
	assert.False(t, v.ContainsNewInformation("the headache again", []string{"headache"}))
	assert.True(t, v.ContainsNewInformation("headache and now nausea", []string{"headache"}))
	assert.False(t, v.ContainsNewInformation("hmm okay", nil))
}

func TestNewInformationForStage(t *testing.T) {
	v := DefaultVocabulary()

	assert.True(t, v.NewInformationFor(StageInvestigation, "it started 3 days ago", nil))
	assert.False(t, v.NewInformationFor(StageHistoryCheck, "I have a fever", nil))
	assert.True(t, v.NewInformationFor(StageHistoryCheck, "I smoke on weekends", nil))
	assert.False(t, v.NewInformationFor(StageHistoryCheck, "I smoke on weekends", []string{"smoking"}))
}

func TestNewVocabularyRejectsBadPatterns(t *testing.T) {
	table := DefaultPhrases
	table.Topics = []TopicRule{{ID: "broken", Patterns: []string{"(unclosed"}}}
	_, err := NewVocabulary(table)
	require.Error(t, err)

	table.Topics = []TopicRule{{ID: "empty"}}
	_, err = NewVocabulary(table)
	require.Error(t, err)
}
