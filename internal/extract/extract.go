/*
Package extract turns transcript text into validated structured records via
the Gemini API.
*/
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"growthwatch/internal/retry"
	"growthwatch/internal/types"
)

const prompt = `You are an expert financial analyst. Given the following transcript of a finance video, identify every company mentioned and for each company return a JSON object with the keys "company_name", "speaker", "note" and "growth_mentions".

Requirements:
- "company_name": full official company name as mentioned in the transcript.
- "speaker": short "Name / Designation" of the person speaking about the company; empty string if unknown.
- "note": one short sentence (max 25 words) summarizing the speaker's forward-looking comment on the company's outlook or industry growth; empty string if none.
- "growth_mentions": detect all mentions of >30%% growth in any key metric (revenue, profit, EBITDA, margins, etc.). For each, return "metric", "growth_value" (signed percentage number), "context" (supporting quote), "timestamp_seconds" (approximate offset into the call based on textual cues, or null if not inferable), "type" (e.g. "YoY") and "reliability" ("High", "Medium" or "Low").

Return ONLY a JSON array of such objects, with no explanatory text or markdown.

Transcript:
"""
%s
"""`

// ExtractionError reports that the model call or shape validation failed
// after all retries; Cause is the last underlying error.
type ExtractionError struct {
	Cause error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("structured extraction failed: %v", e.Cause)
}

func (e *ExtractionError) Unwrap() error {
	return e.Cause
}

// Generator is the text-generation surface the extractor depends on. The
// production implementation wraps the Gemini client.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Extractor wraps the model call with bounded retry and shape validation.
type Extractor struct {
	gen       Generator
	retryConf retry.Config
}

// New builds an extractor over a generator. maxRetries bounds the network
// attempts; backoff is the base delay between them.
func New(gen Generator, maxRetries int, backoff time.Duration) *Extractor {
	if maxRetries < 1 {
		maxRetries = 1
	}
	if backoff <= 0 {
		backoff = 5 * time.Second
	}
	return &Extractor{
		gen: gen,
		retryConf: retry.Config{
			MaxAttempts: maxRetries,
			InitialWait: backoff,
			MaxWait:     4 * backoff,
			Multiplier:  2.0,
		},
	}
}

// Extract calls the model with the transcript embedded in the fixed
// instruction prompt and parses the response as a JSON array of records.
// The network call is retried up to the configured bound; a response that
// arrives but fails to parse or violates the expected shape is not retried
// internally and yields an *ExtractionError.
func (e *Extractor) Extract(ctx context.Context, transcript string) ([]types.ExtractedRecord, error) {
	fullPrompt := fmt.Sprintf(prompt, transcript)

	raw, err := retry.Do(ctx, e.retryConf, func() (string, error) {
		return e.gen.Generate(ctx, fullPrompt)
	})
	if err != nil {
		return nil, &ExtractionError{Cause: err}
	}

	records, err := parseRecords(raw)
	if err != nil {
		return nil, &ExtractionError{Cause: err}
	}
	return records, nil
}

// parseRecords validates the response shape: a JSON array of objects each
// carrying the required keys. Violations are errors, never coerced.
func parseRecords(raw string) ([]types.ExtractedRecord, error) {
	raw = strings.TrimSpace(raw)
	// Models occasionally wrap JSON in a markdown fence despite instructions.
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var elements []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &elements); err != nil {
		return nil, fmt.Errorf("response is not a JSON array: %w", err)
	}

	records := make([]types.ExtractedRecord, 0, len(elements))
	for i, element := range elements {
		var keys map[string]json.RawMessage
		if err := json.Unmarshal(element, &keys); err != nil {
			return nil, fmt.Errorf("element %d is not an object: %w", i, err)
		}
		for _, required := range []string{"company_name", "speaker", "note"} {
			if _, ok := keys[required]; !ok {
				return nil, fmt.Errorf("element %d missing required key %q", i, required)
			}
		}
		var rec types.ExtractedRecord
		if err := json.Unmarshal(element, &rec); err != nil {
			return nil, fmt.Errorf("element %d does not match schema: %w", i, err)
		}
		if strings.TrimSpace(rec.CompanyName) == "" {
			return nil, fmt.Errorf("element %d has empty company_name", i)
		}
		records = append(records, rec)
	}
	return records, nil
}
