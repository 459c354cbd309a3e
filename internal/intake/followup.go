package intake

// FollowUpCounts maps a stage to the number of questions asked in it since it last
// advanced. It serialises as a string-keyed object.
type FollowUpCounts map[Stage]int

// Clone returns an independent copy. A nil receiver yields an empty map.
func (c FollowUpCounts) Clone() FollowUpCounts {
	out := make(FollowUpCounts, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Increment returns a copy with the stage's count raised by one.
func Increment(counts FollowUpCounts, stage Stage) FollowUpCounts {
	out := counts.Clone()
	out[stage]++
	return out
}

// Clear returns a copy without the stage's counter.
func Clear(counts FollowUpCounts, stage Stage) FollowUpCounts {
	out := counts.Clone()
	delete(out, stage)
	return out
}

// IsLimitReached reports whether the stage has used up its follow-up budget.
func IsLimitReached(counts FollowUpCounts, stage Stage, limits Limits) bool {
	return counts[stage] >= limits.withDefaults().MaxFollowUps
}

// NextStageOnLimit is the stage a forced advance moves to.
func NextStageOnLimit(stage Stage) Stage {
	return stage.Next()
}
