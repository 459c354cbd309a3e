package agent

import (
	"context"
	"fmt"
	"mime"
	"path"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"medical-intake-agent/internal/intake"
)

const defaultModel = "gemini-2.5-flash"

// contentGenerator is the part of *genai.Models the client needs.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiClient generates intake replies with Google Gemini. It handles both the
// conversation text and any images the patient attaches.
type GeminiClient struct {
	models      contentGenerator
	model       string
	temperature float32
	logger      zerolog.Logger
}

func NewGeminiClient(ctx context.Context, apiKey, model string, logger zerolog.Logger) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return newGeminiClient(client.Models, model, logger), nil
}

func newGeminiClient(models contentGenerator, model string, logger zerolog.Logger) *GeminiClient {
	if model == "" {
		model = defaultModel
	}
	return &GeminiClient{
		models:      models,
		model:       model,
		temperature: 0.3,
		logger:      logger.With().Str("component", "gemini").Logger(),
	}
}

// Generate implements intake.Generator.
func (c *GeminiClient) Generate(ctx context.Context, req intake.GenerationRequest) (string, error) {
	contents := buildContents(req.History, req.Inbound)

	resp, err := c.models.GenerateContent(ctx, c.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.SystemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr(c.temperature),
		ResponseMIMEType:  "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("gemini returned no text")
	}
	c.logger.Debug().
		Str("session_id", req.SessionID).
		Str("stage", req.Stage.String()).
		Int("chars", len(text)).
		Msg("reply generated")
	return text, nil
}

// buildContents maps the conversation onto Gemini roles. Patient and clinician messages
// are user turns; assistant messages are model turns.
func buildContents(history []intake.Message, inbound intake.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, m := range append(append([]intake.Message{}, history...), inbound) {
		parts := make([]*genai.Part, 0, 1+len(m.ImageURLs))
		if strings.TrimSpace(m.Text) != "" {
			parts = append(parts, genai.NewPartFromText(m.Text))
		}
		for _, u := range m.ImageURLs {
			parts = append(parts, genai.NewPartFromURI(u, imageMIMEType(u)))
		}
		if len(parts) == 0 {
			continue
		}
		role := genai.Role(genai.RoleUser)
		if m.Role == intake.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromParts(parts, role))
	}
	return contents
}

func imageMIMEType(uri string) string {
	ext := path.Ext(strings.SplitN(uri, "?", 2)[0])
	if t := mime.TypeByExtension(strings.ToLower(ext)); strings.HasPrefix(t, "image/") {
		return t
	}
	return "image/jpeg"
}
