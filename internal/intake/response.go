package intake

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrUnparsableResponse = errors.New("generator response is not a JSON object")
	ErrEmptyReply         = errors.New("generator response has a blank reply")
)

var fencedBlock = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)```")

// Generation is a parsed generator response.
type Generation struct {
	Reasoning json.RawMessage
	Reply     string
	// Update is nil when the response carried no usable updatedData.
	Update *RecordUpdate
	// UpdateErr is set when updatedData was present but malformed.
	UpdateErr error
}

type generationEnvelope struct {
	Reasoning   json.RawMessage `json:"reasoning"`
	Reply       string          `json:"reply"`
	UpdatedData json.RawMessage `json:"updatedData"`
}

// ParseGeneration extracts the JSON object from raw model output. The object may be
// wrapped in a fenced code block or surrounded by prose.
func ParseGeneration(raw string) (Generation, error) {
	body := extractObject(raw)
	if body == "" {
		return Generation{}, ErrUnparsableResponse
	}

	var env generationEnvelope
	if err := json.Unmarshal([]byte(body), &env); err != nil {
		return Generation{}, fmt.Errorf("%w: %v", ErrUnparsableResponse, err)
	}
	if strings.TrimSpace(env.Reply) == "" {
		return Generation{}, ErrEmptyReply
	}

	gen := Generation{
		Reasoning: env.Reasoning,
		Reply:     strings.TrimSpace(env.Reply),
	}
	data := bytes.TrimSpace(env.UpdatedData)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return gen, nil
	}
	var update RecordUpdate
	if err := json.Unmarshal(data, &update); err != nil {
		gen.UpdateErr = fmt.Errorf("malformed updatedData: %w", err)
		return gen, nil
	}
	gen.Update = &update
	return gen, nil
}

func extractObject(raw string) string {
	text := strings.TrimSpace(raw)
	if m := fencedBlock.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}
