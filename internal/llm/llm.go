package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-sonnet-4-5"

// Severity grades how strongly an objection blocks the proposed names.
type Severity string

const (
	SeverityBlocking Severity = "blocking"
	SeverityConcern  Severity = "concern"
	SeverityQuestion Severity = "question"
)

// Digest is a short machine summary of one reviewer objection.
type Digest struct {
	Summary  string   `json:"summary"`
	Severity Severity `json:"severity"`
}

// Client wraps the Anthropic API for objection digests.
type Client struct {
	api   *anthropic.Client
	model anthropic.Model
}

// NewClient creates an LLM client with the given API key and model.
func NewClient(apiKey, model string) *Client {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if model == "" {
		model = DefaultModel
	}
	client := anthropic.NewClient(opts...)
	return &Client{
		api:   &client,
		model: anthropic.Model(model),
	}
}

// buildDigestPrompt constructs the system and user prompts for an objection digest.
func buildDigestPrompt(canonicalName, from, objection string) (system string, user string) {
	system = `You help run an API naming review for Azure management-plane SDKs. An architect replied to a review email with an objection or question about a proposed resource provider name. Return a JSON object with exactly two fields:

- "summary": one sentence (at most 30 words) stating what the reviewer objects to and what they propose instead, if anything
- "severity": one of "blocking", "concern", "question"

Rules:
- "blocking" means the reviewer asks for the name to change before release
- "concern" means the reviewer disagrees but does not demand a change
- "question" means the reviewer only asks for clarification
- Ignore signatures, greetings, and quoted earlier messages
- Return valid JSON only, no markdown fencing or explanation`

	var sb strings.Builder
	if canonicalName != "" {
		sb.WriteString("Proposed name: ")
		sb.WriteString(canonicalName)
		sb.WriteString("\n")
	}
	if from != "" {
		sb.WriteString("Reviewer: ")
		sb.WriteString(from)
		sb.WriteString("\n")
	}
	sb.WriteString("\nObjection:\n")
	sb.WriteString(objection)
	user = sb.String()
	return
}

// stripFences removes a surrounding markdown code fence, if present.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		lines := strings.SplitN(text, "\n", 2)
		if len(lines) > 1 {
			text = lines[1]
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}
	return text
}

// parseDigest decodes the model's reply, normalizing unknown severities to
// "concern".
func parseDigest(text string) (*Digest, error) {
	text = stripFences(text)
	var d Digest
	if err := json.Unmarshal([]byte(text), &d); err != nil {
		return nil, fmt.Errorf("parse LLM response as JSON: %w\nraw response: %s", err, text)
	}
	d.Summary = strings.TrimSpace(d.Summary)
	if d.Summary == "" {
		return nil, fmt.Errorf("LLM response has empty summary")
	}
	switch d.Severity {
	case SeverityBlocking, SeverityConcern, SeverityQuestion:
	default:
		d.Severity = SeverityConcern
	}
	return &d, nil
}

// Summarize returns a one-sentence digest of an objection raised against
// canonicalName.
func (c *Client) Summarize(ctx context.Context, canonicalName, from, objection string) (*Digest, error) {
	systemPrompt, userPrompt := buildDigestPrompt(canonicalName, from, objection)

	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 512,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic API call: %w", err)
	}

	// Extract text from response
	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}

	if text == "" {
		return nil, fmt.Errorf("no text content in API response")
	}

	return parseDigest(text)
}
