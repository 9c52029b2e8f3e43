package entity

import (
	"context"
	"strings"
)

type keywordConfig struct {
	Vocabulary []string `json:"vocabulary"`
}

// keywordExtractor matches a configured vocabulary by case-insensitive
// substring search. Intentionally simple.
type keywordExtractor struct {
	vocabulary []string
}

func init() {
	Register("keyword", createKeywordExtractor)
}

func createKeywordExtractor(args interface{}) (Extractor, error) {
	cfg := &keywordConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	vocabulary := make([]string, 0, len(cfg.Vocabulary))
	seen := map[string]bool{}
	for _, term := range cfg.Vocabulary {
		term = strings.TrimSpace(term)
		if term == "" || seen[strings.ToLower(term)] {
			continue
		}
		seen[strings.ToLower(term)] = true
		vocabulary = append(vocabulary, term)
	}
	return &keywordExtractor{vocabulary: vocabulary}, nil
}

func (e *keywordExtractor) Name() string {
	return "keyword"
}

func (e *keywordExtractor) Extract(ctx context.Context, text string) ([]Mention, error) {
	_ = ctx
	if text == "" || len(e.vocabulary) == 0 {
		return nil, nil
	}
	lowered := strings.ToLower(text)
	var mentions []Mention
	for _, term := range e.vocabulary {
		if strings.Contains(lowered, strings.ToLower(term)) {
			mentions = append(mentions, Mention{Label: term, Type: "Entity"})
		}
	}
	return mentions, nil
}
