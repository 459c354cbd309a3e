package agent

import (
	"context"
	"encoding/json"

	"medical-intake-agent/internal/intake"
)

// OfflineClient answers with the canned opening question of the current stage. It keeps
// the intake usable in development when no model API key is configured.
type OfflineClient struct{}

func NewOfflineClient() *OfflineClient {
	return &OfflineClient{}
}

func (c *OfflineClient) Generate(ctx context.Context, req intake.GenerationRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	reply := intake.StageOpening(req.Stage)
	if req.Mode == intake.ModeConsult {
		reply = "The assistant is running offline; please review the record directly."
	}
	out, err := json.Marshal(map[string]any{
		"reasoning":   map[string]string{"strategy": "offline"},
		"reply":       reply,
		"updatedData": map[string]any{},
	})
	if err != nil {
		return "", err
	}
	return string(out), nil
}
