// Package llm asks Gemini to judge a document against matched DPDP Act
// sections and turns its free-text answer into a structured verdict.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/sethvargo/go-retry"
	"google.golang.org/api/option"

	"github.com/dataguard/compliguard/internal/errs"
	"github.com/dataguard/compliguard/internal/logger"
)

const (
	maxPromptChars = 15000
	ellipsis       = "..."

	maxAttempts = 3
	backoffBase = 4 * time.Second
	backoffCap  = 30 * time.Second

	analysisTemperature = 0.2

	promptTemplate = `You are a compliance auditor specializing in India's DPDP Act. Analyze the company privacy policy against the provided DPDP Act sections.
Identify specific compliance gaps and provide actionable recommendations.
If fully compliant, state so clearly. Respond in this exact format with bullet points:

- Compliance Status: True or False
- Gaps: List specific issues or "None"
- Suggestions: List actionable steps or "None"

Document Text:
%s

DPDP Act Sections:
%s
`
)

// Verdict is the structured compliance outcome of one analysis call.
type Verdict struct {
	ComplianceStatus bool   `json:"compliance_status"`
	Gaps             string `json:"gaps"`
	Suggestions      string `json:"suggestions"`
}

type Analyzer struct {
	log    *logger.Logger
	client *genai.Client
	model  string

	// Act sections in this numeric range are kept when regulation text
	// must be cut down to fit the prompt budget.
	priorityMin int
	priorityMax int
}

func NewAnalyzer(ctx context.Context, log *logger.Logger, apiKey, model string, priorityMin, priorityMax int) (*Analyzer, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &Analyzer{
		log:         log.With("service", "LLMAnalyzer"),
		client:      client,
		model:       model,
		priorityMin: priorityMin,
		priorityMax: priorityMax,
	}, nil
}

func (a *Analyzer) Close() {
	if a.client != nil {
		if err := a.client.Close(); err != nil {
			a.log.Warn("Error closing GenAI client", "error", err)
		}
	}
}

// Analyze judges documentText against regulationText. Oversized inputs are
// truncated first. The only error it returns is a provider failure that
// survived all retries; malformed model text always degrades to a
// best-effort verdict instead.
func (a *Analyzer) Analyze(ctx context.Context, documentText, regulationText string) (Verdict, error) {
	if len(documentText) > maxPromptChars {
		documentText = documentText[:maxPromptChars] + ellipsis
		a.log.Warn("Document text truncated", "max_chars", maxPromptChars)
	}
	if len(regulationText) > maxPromptChars {
		regulationText = prioritizeSections(regulationText, a.priorityMin, a.priorityMax, maxPromptChars)
		a.log.Warn("Regulation text truncated to priority sections",
			"min_section", a.priorityMin, "max_section", a.priorityMax)
	}

	prompt := fmt.Sprintf(promptTemplate, documentText, regulationText)

	backoff := retry.WithMaxRetries(maxAttempts-1,
		retry.WithCappedDuration(backoffCap, retry.NewExponential(backoffBase)))

	var raw string
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		out, err := a.generate(ctx, prompt)
		if err != nil {
			a.log.Warn("LLM call failed, may retry", "error", err)
			return retry.RetryableError(err)
		}
		raw = out
		return nil
	})
	if err != nil {
		return Verdict{}, fmt.Errorf("compliance analysis failed after %d attempts: %v: %w", maxAttempts, err, errs.ErrProvider)
	}

	verdict := parseVerdict(raw, a.log)
	return verdict, nil
}

func (a *Analyzer) generate(ctx context.Context, prompt string) (string, error) {
	model := a.client.GenerativeModel(a.model)
	temp := float32(analysisTemperature)
	model.GenerationConfig = genai.GenerationConfig{Temperature: &temp}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate failed: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini response had no candidates")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			text.WriteString(string(txt))
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("gemini response contained no text parts")
	}
	return strings.TrimSpace(text.String()), nil
}

// prioritizeSections keeps only the lines naming a section in [min, max]
// before truncating to the budget. The range is configuration, not intent:
// it encodes which Act sections usually matter for compliance review.
func prioritizeSections(regulationText string, min, max, budget int) string {
	lines := strings.Split(regulationText, "\n")
	var kept []string
	for _, line := range lines {
		for n := min; n <= max; n++ {
			if strings.Contains(line, fmt.Sprintf("Section %d", n)) {
				kept = append(kept, line)
				break
			}
		}
	}
	out := strings.Join(kept, "\n")
	if len(out) > budget {
		out = out[:budget]
	}
	return out + ellipsis
}
