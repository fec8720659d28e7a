package extract

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiGenerator is the production Generator backed by the Gemini API, with
// the response constrained to the record array schema.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGeminiGenerator creates the client. A missing API key is a
// configuration error surfaced here, not a per-call failure.
func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiGenerator{client: client, model: model}, nil
}

// Generate sends one prompt and returns the raw response text.
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{
		{
			Parts: []*genai.Part{{Text: prompt}},
			Role:  "user",
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   responseSchema(),
	})
	if err != nil {
		return "", fmt.Errorf("gemini API call failed: %w", err)
	}
	return resp.Text(), nil
}

func responseSchema() *genai.Schema {
	mentionSchema := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"metric":            {Type: genai.TypeString, Description: "Name of the financial metric."},
			"growth_value":      {Type: genai.TypeNumber, Description: "Signed growth percentage."},
			"context":           {Type: genai.TypeString, Description: "Supporting quote from the transcript."},
			"timestamp_seconds": {Type: genai.TypeNumber, Nullable: genai.Ptr(true), Description: "Approximate offset into the call, or null."},
			"type":              {Type: genai.TypeString, Description: "Growth basis, e.g. YoY or QoQ."},
			"reliability":       {Type: genai.TypeString, Description: "High, Medium or Low."},
		},
		Required: []string{"metric", "growth_value", "context", "type", "reliability"},
	}

	recordSchema := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"company_name":    {Type: genai.TypeString, Description: "Full official company name as mentioned."},
			"speaker":         {Type: genai.TypeString, Description: "Name / Designation of the speaker, or empty."},
			"note":            {Type: genai.TypeString, Description: "Forward-looking comment, max 25 words, or empty."},
			"growth_mentions": {Type: genai.TypeArray, Items: mentionSchema},
		},
		Required: []string{"company_name", "speaker", "note"},
	}

	return &genai.Schema{
		Type:  genai.TypeArray,
		Items: recordSchema,
	}
}
