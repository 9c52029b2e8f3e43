package entity

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

type geminiConfig struct {
	APIKey string `json:"api_key"`
	Model  string `json:"model"`
}

// geminiExtractor asks a Gemini model for entity mentions. Same contract as
// the keyword matcher, so the two are interchangeable via config.
type geminiExtractor struct {
	apiKey string
	model  string
}

func init() {
	Register("gemini", createGeminiExtractor)
}

func createGeminiExtractor(args interface{}) (Extractor, error) {
	cfg := &geminiConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("gemini extractor api_key is required")
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &geminiExtractor{apiKey: strings.TrimSpace(cfg.APIKey), model: model}, nil
}

func (e *geminiExtractor) Name() string {
	return "gemini"
}

const extractPrompt = `Extract the named entities from the text below.
Respond with a JSON array only, each element {"label": string, "type": string}.
Use short canonical labels and one of: Person, Organization, Place, Topic.

TEXT:
%s`

func (e *geminiExtractor) Extract(ctx context.Context, text string) ([]Mention, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  e.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	resp, err := client.Models.GenerateContent(
		ctx,
		e.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: fmt.Sprintf(extractPrompt, text)}}}},
		nil,
	)
	if err != nil {
		return nil, err
	}
	return parseMentions(resp.Text())
}

func parseMentions(raw string) ([]Mention, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return nil, nil
	}
	var mentions []Mention
	if err := json.Unmarshal([]byte(cleaned), &mentions); err != nil {
		return nil, fmt.Errorf("parse extractor response: %w", err)
	}
	out := make([]Mention, 0, len(mentions))
	seen := map[string]bool{}
	for _, m := range mentions {
		label := strings.TrimSpace(m.Label)
		if label == "" || seen[strings.ToLower(label)] {
			continue
		}
		seen[strings.ToLower(label)] = true
		if m.Type == "" {
			m.Type = "Entity"
		}
		out = append(out, Mention{Label: label, Type: m.Type})
	}
	return out, nil
}
