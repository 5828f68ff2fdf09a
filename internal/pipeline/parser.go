package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/dvloznov/trade-ledger/internal/domain"
)

// GeminiAIParser implements AIParser with Gemini.
type GeminiAIParser struct {
	model    string
	project  string
	location string
}

// NewGeminiAIParser creates a parser for model. With an empty project the
// client falls back to the GOOGLE_* environment variables.
func NewGeminiAIParser(model, project, location string) *GeminiAIParser {
	if model == "" {
		model = DefaultModelName
	}
	return &GeminiAIParser{model: model, project: project, location: location}
}

// ParseSlip sends the slip to Gemini and returns {"records": [...]}.
func (p *GeminiAIParser) ParseSlip(ctx context.Context, slip []byte, mimeType string, contacts []*domain.Contact) (map[string]interface{}, error) {
	cfg := &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	}
	if p.project != "" {
		cfg.Backend = genai.BackendVertexAI
		cfg.Project = p.project
		cfg.Location = p.location
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ParseSlip: create genai client: %w", err)
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: buildSlipPrompt(contacts)},
				{
					InlineData: &genai.Blob{
						MIMEType: mimeType,
						Data:     slip,
					},
				},
			},
		},
	}

	resp, err := client.Models.GenerateContent(ctx, p.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("ParseSlip: generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return nil, fmt.Errorf("ParseSlip: empty response from model")
	}
	return decodeModelOutput(rawText)
}

// decodeModelOutput cleans the model text and wraps the array under
// "records". Numbers stay json.Number so decimals keep every digit.
func decodeModelOutput(rawText string) (map[string]interface{}, error) {
	dec := json.NewDecoder(strings.NewReader(cleanModelJSON(rawText)))
	dec.UseNumber()

	var parsed interface{}
	if err := dec.Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decodeModelOutput: unmarshal JSON: %w\nraw response: %s", err, rawText)
	}
	return map[string]interface{}{
		"records": parsed,
	}, nil
}

// cleanModelJSON strips Markdown fences and any text around the JSON array.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		idx := strings.Index(s, "\n")
		if idx == -1 {
			return s
		}
		s = strings.TrimSpace(s[idx+1:])
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "["); start != -1 {
		if end := strings.LastIndex(s, "]"); end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}

// detectMimeType sniffs the slip format from its leading bytes.
func detectMimeType(data []byte) string {
	switch {
	case bytes.HasPrefix(data, []byte("%PDF")):
		return "application/pdf"
	case bytes.HasPrefix(data, []byte{0x89, 'P', 'N', 'G'}):
		return "image/png"
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		return "image/jpeg"
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP":
		return "image/webp"
	default:
		return DefaultMimeType
	}
}
