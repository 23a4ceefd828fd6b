package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/agenthands/clinigraph/internal/config"
	"github.com/agenthands/clinigraph/internal/core/common"
	"github.com/agenthands/clinigraph/internal/core/model"
	"github.com/agenthands/clinigraph/internal/llm"
	"github.com/agenthands/clinigraph/internal/logger"
	"github.com/agenthands/clinigraph/internal/metrics"
)

// Profiles are the extractor profiles a config is expected to define.
var Profiles = []string{"meds", "trauma", "general"}

const promptTemplate = `%s

Use exact text from the note for extraction_text. Do not paraphrase and do not
overlap extractions. Give attributes as short strings or lists of strings.
Relationships between two extracted entities use extraction_class "relationship"
with the attributes "entity_1" and "entity_2" naming both sides.

Answer with a single JSON object of the form
{"extractions": [{"extraction_class": "...", "extraction_text": "...", "attributes": {}}]}

%s
Note:
%s
`

type Extractor struct {
	LLM     llm.LLMClient
	Profile string
	Config  config.ProfileConfig
}

func NewExtractor(llmClient llm.LLMClient, profile string, cfg config.ProfileConfig) *Extractor {
	return &Extractor{
		LLM:     llmClient,
		Profile: profile,
		Config:  cfg,
	}
}

// ProfileFromConfig looks up a named profile.
func ProfileFromConfig(cfg *config.Config, name string) (config.ProfileConfig, error) {
	p, ok := cfg.Profiles[name]
	if !ok || strings.TrimSpace(p.Prompt) == "" {
		known := make([]string, 0, len(cfg.Profiles))
		for k := range cfg.Profiles {
			known = append(known, k)
		}
		sort.Strings(known)
		return config.ProfileConfig{}, fmt.Errorf("extractor profile %q is not configured (have %s)", name, strings.Join(known, ", "))
	}
	return p, nil
}

// BuildPrompt renders the profile's instructions, its few-shot examples and
// the note.
func (e *Extractor) BuildPrompt(text string) (string, error) {
	var examples strings.Builder
	for i, ex := range e.Config.Examples {
		spans := model.ExtractedSpans{Extractions: make([]model.ExtractedSpan, 0, len(ex.Extractions))}
		for _, x := range ex.Extractions {
			attrs, err := exampleAttributes(x.Attributes)
			if err != nil {
				return "", fmt.Errorf("example %d: %w", i, err)
			}
			spans.Extractions = append(spans.Extractions, model.ExtractedSpan{
				ExtractionClass: x.Class,
				ExtractionText:  x.Text,
				Attributes:      attrs,
			})
		}
		answer, err := json.Marshal(spans)
		if err != nil {
			return "", fmt.Errorf("example %d: %w", i, err)
		}
		fmt.Fprintf(&examples, "Example %d:\n%s\nAnswer:\n%s\n\n", i+1, strings.TrimSpace(ex.Text), answer)
	}

	return fmt.Sprintf(promptTemplate, strings.TrimSpace(e.Config.Prompt), examples.String(), text), nil
}

// Extract runs the model over one note and returns the aligned record.
func (e *Extractor) Extract(ctx context.Context, documentID, text string) (*model.ExtractionRecord, error) {
	prompt, err := e.BuildPrompt(text)
	if err != nil {
		return nil, err
	}

	response, err := e.LLM.Generate(ctx, prompt)
	if err != nil {
		metrics.LLMRequests.WithLabelValues(e.Profile, "error").Inc()
		return nil, fmt.Errorf("failed to generate extractions: %w", err)
	}

	result, err := common.ParseJSON[model.ExtractedSpans](response)
	if err != nil {
		metrics.LLMRequests.WithLabelValues(e.Profile, "invalid").Inc()
		return nil, fmt.Errorf("failed to parse extractions: %w", err)
	}
	metrics.LLMRequests.WithLabelValues(e.Profile, "ok").Inc()

	rec := &model.ExtractionRecord{
		DocumentID:  documentID,
		Text:        text,
		Extractions: make([]model.Extraction, 0, len(result.Extractions)),
	}
	for _, span := range result.Extractions {
		class := strings.TrimSpace(span.ExtractionClass)
		if class == "" {
			logger.Warn("Dropping extraction without class", "document_id", documentID, "text", span.ExtractionText)
			continue
		}
		if strings.TrimSpace(span.ExtractionText) == "" {
			logger.Warn("Dropping extraction without text", "document_id", documentID, "class", class)
			continue
		}
		interval, status := Align(text, span.ExtractionText)
		rec.Extractions = append(rec.Extractions, model.Extraction{
			ExtractionClass: class,
			ExtractionText:  span.ExtractionText,
			Attributes:      span.Attributes,
			CharInterval:    interval,
			AlignmentStatus: status,
		})
	}

	logger.Info("Extraction finished", "document_id", documentID, "profile", e.Profile, "extractions", len(rec.Extractions))
	return rec, nil
}

// exampleAttributes converts TOML attribute values through their JSON form,
// which AttributeValue already knows how to read.
func exampleAttributes(in map[string]any) (map[string]model.AttributeValue, error) {
	if len(in) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	var out map[string]model.AttributeValue
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
