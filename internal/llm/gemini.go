package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/mfairbanks/jobsignal/internal/common"
)

const defaultGeminiModel = "gemini-2.5-flash"

const geminiPromptSuffix = "\n\nRespond with ONLY a valid JSON object. No markdown fences, no commentary."

// geminiClient implements the Client interface against the Gemini API.
type geminiClient struct {
	client      *genai.Client
	model       string
	temperature float64
}

// newGeminiClient creates a Gemini-backed client.
func newGeminiClient(ctx context.Context, cfg Config) (Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: api key is required", common.ErrMissingConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultGeminiModel
	}

	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.1
	}

	return &geminiClient{
		client:      client,
		model:       model,
		temperature: temperature,
	}, nil
}

// SelectCandidate sends a disambiguation request.
func (c *geminiClient) SelectCandidate(ctx context.Context, prompt string) (SelectionResponse, error) {
	temperature := float32(c.temperature)
	config := &genai.GenerateContentConfig{
		Temperature:      &temperature,
		ResponseMIMEType: "application/json",
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt+geminiPromptSuffix), config)
	if err != nil {
		if strings.Contains(err.Error(), "429") || strings.Contains(err.Error(), "RESOURCE_EXHAUSTED") {
			return SelectionResponse{}, fmt.Errorf("%w: %v", common.ErrRateLimited, err)
		}
		return SelectionResponse{}, fmt.Errorf("generate content: %w", err)
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return SelectionResponse{}, fmt.Errorf("%w: empty response from gemini", common.ErrMalformedResponse)
	}

	return parseSelection(output)
}
