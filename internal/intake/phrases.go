package intake

import (
	"fmt"
	"regexp"
	"strings"
)

// PhraseTableVersion identifies the matching behaviour shipped in DefaultPhrases. It is
// stored in WorkflowState next to every termination reason; bump it whenever a list below
// or the way it is matched changes.
const PhraseTableVersion = "2026.10.2"

// TopicRule maps a topic id to the regular expression fragments that mark it as addressed
// and to the stages for which it counts as new information.
type TopicRule struct {
	ID       string
	Patterns []string
	Stages   []Stage
}

// PhraseTable is the data driving termination detection and topic extraction.
// Commands match the whole message (or its first clause); phrases match anywhere.
// Patterns are case-insensitive regular expression fragments bounded by word breaks.
type PhraseTable struct {
	Version           string
	DoneCommands      []string
	SkipCommands      []string
	FinishPhrases     []string
	CompletionPhrases []string
	NegativePatterns  []string
	UncertainPatterns []string
	Topics            []TopicRule
}

var symptomStages = []Stage{StageTriage, StageInvestigation}

// DefaultPhrases is the English phrase table.
var DefaultPhrases = PhraseTable{
	Version: PhraseTableVersion,
	DoneCommands: []string{
		"done", "finish", "finished", "end", "complete", "stop", "enough",
		"i'm done", "im done", "i am done", "we're done",
	},
	SkipCommands: []string{
		"skip", "next", "move on", "skip this", "skip it", "next question",
		"next section", "let's move on", "lets move on", "pass",
	},
	FinishPhrases: []string{
		"book an appointment", "book appointment", "book a consultation",
		"schedule an appointment", "make an appointment",
		"see a doctor now", "speak to a doctor", "talk to a doctor", "see the doctor",
		"finish the consultation", "end the consultation", "finish the intake",
		"let's finish", "lets finish", "wrap this up", "ready to book",
	},
	CompletionPhrases: []string{
		"that's all", "thats all", "that is all", "that's it", "thats it",
		"nothing else", "nothing more", "no other symptoms", "no more symptoms",
		"that's everything", "thats everything", "i have nothing to add",
		"i'm healthy", "im healthy", "i am healthy", "i feel fine now",
	},
	NegativePatterns: []string{
		`^(?:no|nope|nah|none|nothing|negative|n/?a)$`,
		`^(?:no|nope|nah)[ ,]+(?:i |there )?(?:don'?t|do not|haven'?t|have not|aren'?t|isn'?t|am not)\b`,
		`\b(?:i )?(?:don'?t|do not) have any\b`,
		`\bno (?:records|documents|reports|medications|meds|allergies|history|other conditions)\b`,
		`\b(?:none|nothing) (?:at all|to report|that i know of)\b`,
		`\bnot that i know of\b`,
	},
	UncertainPatterns: []string{
		`\bnot sure\b`, `\bunsure\b`, `\bno idea\b`,
		`\b(?:i )?(?:don'?t|do not|dont) (?:know|remember|recall)\b`,
		`\b(?:can'?t|cannot) (?:remember|recall)\b`,
		`\bi forget\b`, `\bnot certain\b`, `^maybe$`,
	},
	Topics: []TopicRule{
		{ID: "fever", Patterns: []string{`fevers?`, `feverish`, `febrile`, `chills`}, Stages: symptomStages},
		{ID: "cough", Patterns: []string{`cough(?:s|ing|ed)?`, `phlegm`, `sputum`}, Stages: symptomStages},
		{ID: "headache", Patterns: []string{`headaches?`, `migraines?`}, Stages: symptomStages},
		{ID: "pain", Patterns: []string{`pains?`, `painful`, `aches?`, `aching`, `hurts?`, `hurting`, `sore`}, Stages: symptomStages},
		{ID: "chest_pain", Patterns: []string{`chest (?:pain|tightness|pressure)`}, Stages: symptomStages},
		{ID: "shortness_of_breath", Patterns: []string{`short(?:ness)? of breath`, `breathless(?:ness)?`, `wheez(?:e|ing)`, `can'?t breathe`}, Stages: symptomStages},
		{ID: "nausea", Patterns: []string{`nause(?:a|ous|ated)`}, Stages: symptomStages},
		{ID: "vomiting", Patterns: []string{`vomit(?:s|ing|ed)?`, `throwing up`, `threw up`}, Stages: symptomStages},
		{ID: "diarrhea", Patterns: []string{`diarrh(?:ea|oea)`, `loose stools?`}, Stages: symptomStages},
		{ID: "fatigue", Patterns: []string{`fatigue[d]?`, `tired(?:ness)?`, `exhausted`, `weak(?:ness)?`}, Stages: symptomStages},
		{ID: "dizziness", Patterns: []string{`dizz(?:y|iness)`, `light-?headed`, `vertigo`}, Stages: symptomStages},
		{ID: "rash", Patterns: []string{`rash(?:es)?`, `itch(?:y|ing)?`, `hives`}, Stages: symptomStages},
		{ID: "sore_throat", Patterns: []string{`sore throat`}, Stages: symptomStages},
		{ID: "onset", Patterns: []string{`started`, `began`, `since`, `onset`, `\w+ ago`, `yesterday`, `last (?:night|week|month)`}, Stages: []Stage{StageInvestigation}},
		{ID: "duration", Patterns: []string{`(?:\d+|a|one|two|three|four|five|a few|several) (?:hours?|days?|weeks?|months?|years?)`}, Stages: []Stage{StageInvestigation}},
		{ID: "severity", Patterns: []string{`severe`, `mild`, `moderate`, `worst`, `unbearable`, `\d{1,2} ?(?:/|out of) ?10`}, Stages: []Stage{StageInvestigation}},
		{ID: "medical_records", Patterns: []string{`records?`, `lab(?:oratory)? results?`, `blood (?:test|work)s?`, `x-?rays?`, `scans?`, `mri`, `ct`, `ultrasound`, `reports?`}, Stages: []Stage{StageRecordsCheck}},
		{ID: "medications", Patterns: []string{`medications?`, `medicines?`, `meds`, `pills?`, `tablets?`, `prescri(?:bed|ption)`, `ibuprofen`, `paracetamol`, `acetaminophen`, `aspirin`, `insulin`, `metformin`, `statins?`, `inhalers?`}, Stages: []Stage{StageHistoryCheck}},
		{ID: "allergies", Patterns: []string{`allerg(?:y|ies|ic)`, `nkda`}, Stages: []Stage{StageHistoryCheck}},
		{ID: "past_medical_history", Patterns: []string{`diabet(?:es|ic)`, `asthma(?:tic)?`, `hypertension`, `high blood pressure`, `surger(?:y|ies)`, `operations?`, `hospitali[sz](?:ed|ation)`, `diagnosed with`, `chronic`}, Stages: []Stage{StageHistoryCheck}},
		{ID: "family_history", Patterns: []string{`family`, `mother`, `father`, `mom`, `dad`, `parents?`, `siblings?`, `brother`, `sister`, `runs in`}, Stages: []Stage{StageHistoryCheck}},
		{ID: "smoking", Patterns: []string{`smok(?:e|es|ed|er|ers|ing)`, `non-?smoker`, `cigarettes?`, `vap(?:e|ing)`, `tobacco`}, Stages: []Stage{StageHistoryCheck}},
		{ID: "alcohol", Patterns: []string{`alcohol`, `drink(?:s|ing|er)?`, `beers?`, `wine`}, Stages: []Stage{StageHistoryCheck}},
		{ID: "occupation", Patterns: []string{`work(?:s|ing)? as`, `jobs?`, `occupation`, `employed`}, Stages: []Stage{StageHistoryCheck}},
		{ID: "exercise", Patterns: []string{`exercis(?:e|es|ing)`, `gym`, `workouts?`, `running`, `sedentary`}, Stages: []Stage{StageHistoryCheck}},
		{ID: "age", Patterns: []string{`\d{1,3} ?(?:years?|yrs?|y/?o)(?: old)?`, `aged? \d{1,3}`}, Stages: []Stage{StageVitals}},
		{ID: "weight", Patterns: []string{`\d{1,3}(?:\.\d)? ?(?:kg|kgs|kilos?|kilograms?|lbs?|pounds)`, `weigh(?:s|t)?`}, Stages: []Stage{StageVitals}},
		{ID: "temperature", Patterns: []string{`\d{2,3}(?:\.\d)? ?(?:°|degrees?)? ?(?:c|f|celsius|fahrenheit)`, `temperature`}, Stages: []Stage{StageVitals}},
		{ID: "blood_pressure", Patterns: []string{`\d{2,3} ?/ ?\d{2,3}`, `blood pressure`, `bp`}, Stages: []Stage{StageVitals}},
	},
}

type compiledTopic struct {
	id     string
	re     *regexp.Regexp
	stages []Stage
}

// Vocabulary is a compiled PhraseTable. It is safe for concurrent use.
type Vocabulary struct {
	version     string
	done        map[string]struct{}
	skip        map[string]struct{}
	finish      *regexp.Regexp
	completion  *regexp.Regexp
	negative    []*regexp.Regexp
	uncertain   []*regexp.Regexp
	topics      []compiledTopic
	topicStages map[string][]Stage
}

// NewVocabulary compiles the table. Every pattern is matched case-insensitively.
func NewVocabulary(t PhraseTable) (*Vocabulary, error) {
	v := &Vocabulary{
		version:     t.Version,
		done:        toSet(t.DoneCommands),
		skip:        toSet(t.SkipCommands),
		topicStages: make(map[string][]Stage, len(t.Topics)),
	}

	var err error
	if v.finish, err = compilePhrases(t.FinishPhrases); err != nil {
		return nil, fmt.Errorf("finish phrases: %w", err)
	}
	if v.completion, err = compilePhrases(t.CompletionPhrases); err != nil {
		return nil, fmt.Errorf("completion phrases: %w", err)
	}
	if v.negative, err = compileAll(t.NegativePatterns); err != nil {
		return nil, fmt.Errorf("negative patterns: %w", err)
	}
	if v.uncertain, err = compileAll(t.UncertainPatterns); err != nil {
		return nil, fmt.Errorf("uncertain patterns: %w", err)
	}

	for _, rule := range t.Topics {
		if rule.ID == "" || len(rule.Patterns) == 0 {
			return nil, fmt.Errorf("topic rule %q has no patterns", rule.ID)
		}
		re, err := regexp.Compile(`(?i)\b(?:` + strings.Join(rule.Patterns, "|") + `)\b`)
		if err != nil {
			return nil, fmt.Errorf("topic %s: %w", rule.ID, err)
		}
		v.topics = append(v.topics, compiledTopic{id: rule.ID, re: re, stages: rule.Stages})
		v.topicStages[rule.ID] = rule.Stages
	}
	return v, nil
}

// MustVocabulary is NewVocabulary for tables known to be valid.
func MustVocabulary(t PhraseTable) *Vocabulary {
	v, err := NewVocabulary(t)
	if err != nil {
		panic(err)
	}
	return v
}

var defaultVocabulary = MustVocabulary(DefaultPhrases)

// DefaultVocabulary returns the compiled DefaultPhrases.
func DefaultVocabulary() *Vocabulary {
	return defaultVocabulary
}

// Version is the PhraseTable.Version the vocabulary was compiled from.
func (v *Vocabulary) Version() string {
	return v.version
}

// isCommand reports whether the message, or its first clause, is exactly one of the commands.
func isCommand(commands map[string]struct{}, text string) bool {
	msg := normalizeMessage(text)
	if msg == "" {
		return false
	}
	if _, ok := commands[msg]; ok {
		return true
	}
	clauses := strings.FieldsFunc(msg, isClauseBreak)
	if len(clauses) == 0 {
		return false
	}
	_, ok := commands[strings.TrimSpace(clauses[0])]
	return ok
}

// containsPhrase matches whole words only, so "that's it" does not fire on "that's itchy".
func containsPhrase(re *regexp.Regexp, text string) bool {
	return re != nil && re.MatchString(normalizeMessage(text))
}

func matchesAny(res []*regexp.Regexp, text string) bool {
	msg := normalizeMessage(text)
	for _, re := range res {
		if re.MatchString(msg) {
			return true
		}
	}
	return false
}

// normalizeMessage lower-cases, straightens apostrophes, collapses whitespace and drops
// trailing punctuation.
func normalizeMessage(text string) string {
	msg := strings.ToLower(strings.TrimSpace(text))
	msg = strings.NewReplacer("’", "'", "‘", "'").Replace(msg)
	msg = strings.Join(strings.Fields(msg), " ")
	return strings.TrimRight(msg, ".!?,;: ")
}

func isClauseBreak(r rune) bool {
	switch r {
	case ',', '.', '!', '?', ';', ':':
		return true
	}
	return false
}

func toSet(items []string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, item := range items {
		out[normalizeMessage(item)] = struct{}{}
	}
	return out
}

// compilePhrases builds one word-bounded alternation of the literal phrases.
func compilePhrases(phrases []string) (*regexp.Regexp, error) {
	quoted := make([]string, 0, len(phrases))
	for _, p := range phrases {
		if p = normalizeMessage(p); p != "" {
			quoted = append(quoted, regexp.QuoteMeta(p))
		}
	}
	if len(quoted) == 0 {
		return nil, nil
	}
	return regexp.Compile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(`(?i)` + p)
		if err != nil {
			return nil, fmt.Errorf("compile %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}
