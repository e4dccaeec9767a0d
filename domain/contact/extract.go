package contact

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
)

// maxNameWords rejects anything that looks like a sentence rather than a
// name: a resolved "name" with more than this many words is almost always
// the extractor echoing back a clause instead of a person's name.
const maxNameWords = 4

// Extracted is a name candidate along with the surrounding text it was
// pulled from, used later for recency scoring against memory.
type Extracted struct {
	Name    string
	Context string
}

// Extractor resolves a person name from free-form query text.
type Extractor interface {
	Extract(ctx context.Context, query string) (Extracted, bool, error)
}

var fallbackPattern = regexp.MustCompile(`(?:with|meet|call|email|contact)\s+((?:[A-Z][a-z]+\s*){1,3})`)

// regexExtractor is the deterministic fallback used when the LLM extractor
// is unavailable or returns an unusable result.
type regexExtractor struct{}

// NewRegexExtractor returns an Extractor that never calls out to an LLM.
func NewRegexExtractor() Extractor { return regexExtractor{} }

func (regexExtractor) Extract(_ context.Context, query string) (Extracted, bool, error) {
	m := fallbackPattern.FindStringSubmatch(query)
	if len(m) < 2 {
		return Extracted{}, false, nil
	}
	name := strings.TrimSpace(m[1])
	if !validName(name) {
		return Extracted{}, false, nil
	}
	return Extracted{Name: name, Context: query}, true, nil
}

func validName(name string) bool {
	if name == "" {
		return false
	}
	return len(strings.Fields(name)) <= maxNameWords
}

// anthropicExtractResponse is the JSON shape the LLM extractor is
// constrained to produce.
type anthropicExtractResponse struct {
	Name    string `json:"name"`
	Context string `json:"context"`
}

// MessagesClient is the subset of the Anthropic SDK client this package
// calls, letting tests substitute a fake.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams) (*sdk.Message, error)
}

type llmExtractor struct {
	client  MessagesClient
	model   string
	fallback Extractor
}

// NewLLMExtractor returns an Extractor that asks model to return
// {"name","context"} JSON, falling back to regexExtractor on any failure or
// unusable output (name too long, not found).
func NewLLMExtractor(client MessagesClient, model string) Extractor {
	return &llmExtractor{client: client, model: model, fallback: NewRegexExtractor()}
}

const extractPrompt = `Identify the single person's name this message is about, if any. Respond with only JSON of the form {"name": "...", "context": "..."}. If no person is named, respond with {"name": "", "context": ""}. Do not include any other text.`

func (e *llmExtractor) Extract(ctx context.Context, query string) (Extracted, bool, error) {
	out, found, err := e.extractViaLLM(ctx, query)
	if err == nil && found && validName(out.Name) {
		return out, true, nil
	}
	return e.fallback.Extract(ctx, query)
}

func (e *llmExtractor) extractViaLLM(ctx context.Context, query string) (Extracted, bool, error) {
	if e.client == nil {
		return Extracted{}, false, errors.New("contact: llm client is not configured")
	}
	resp, err := e.client.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(e.model),
		MaxTokens: 256,
		System: []sdk.TextBlockParam{
			{Text: extractPrompt},
		},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(query)),
		},
	})
	if err != nil {
		return Extracted{}, false, err
	}
	text := concatText(resp)
	var parsed anthropicExtractResponse
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return Extracted{}, false, err
	}
	if parsed.Name == "" {
		return Extracted{}, false, nil
	}
	return Extracted{Name: parsed.Name, Context: parsed.Context}, true, nil
}

func concatText(msg *sdk.Message) string {
	var sb strings.Builder
	for _, block := range msg.Content {
		if text := block.AsText(); text.Text != "" {
			sb.WriteString(text.Text)
		}
	}
	return strings.TrimSpace(sb.String())
}
