package intake

// ExtractTopics returns the ids of every topic the message addresses, in table order.
// Negated mentions count: "no fever" still marks fever as answered.
func (v *Vocabulary) ExtractTopics(text string) []string {
	msg := normalizeMessage(text)
	if msg == "" {
		return nil
	}
	var out []string
	for _, t := range v.topics {
		if t.re.MatchString(msg) {
			out = append(out, t.id)
		}
	}
	return out
}

// MarkAnswered returns existing extended with the unseen topics. It never drops an entry
// and applying the same topics twice changes nothing.
func MarkAnswered(existing, topics []string) []string {
	return unionStrings(existing, topics)
}

// ContainsNewInformation reports whether the message addresses a topic not yet answered.
func (v *Vocabulary) ContainsNewInformation(text string, answered []string) bool {
	return len(newTopics(v.ExtractTopics(text), answered)) > 0
}

// NewInformationFor reports whether any previously unanswered topic in the message is
// relevant to the stage.
func (v *Vocabulary) NewInformationFor(stage Stage, text string, answered []string) bool {
	for _, id := range newTopics(v.ExtractTopics(text), answered) {
		for _, s := range v.topicStages[id] {
			if s == stage {
				return true
			}
		}
	}
	return false
}

func newTopics(topics, answered []string) []string {
	seen := make(map[string]struct{}, len(answered))
	for _, a := range answered {
		seen[a] = struct{}{}
	}
	var out []string
	for _, t := range topics {
		if _, ok := seen[t]; !ok {
			out = append(out, t)
		}
	}
	return out
}
