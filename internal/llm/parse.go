package llm

import (
	"regexp"
	"strings"

	"github.com/dataguard/compliguard/internal/logger"
)

const (
	fallbackGaps        = "Unable to identify gaps"
	fallbackSuggestions = "Manual review required"

	correctedGaps        = "Compliance issues detected"
	correctedSuggestions = "Review Sections 4–9 manually"
)

var (
	statusPattern      = regexp.MustCompile(`(?i)- Compliance Status:\s*(True|False)`)
	gapsPattern        = regexp.MustCompile(`(?is)- Gaps:(.*?)(?:- Suggestions:|$)`)
	suggestionsPattern = regexp.MustCompile(`(?is)- Suggestions:(.*)$`)
)

// parseVerdict extracts the verdict from raw model output. Primary parsing
// anchors on the requested bullet markers; if any field is missing, a
// heuristic line scan takes over, and literal defaults fill whatever even
// that cannot find. Parsing never fails.
func parseVerdict(raw string, log *logger.Logger) Verdict {
	raw = strings.TrimSpace(raw)

	statusMatch := statusPattern.FindStringSubmatch(raw)
	gapsMatch := gapsPattern.FindStringSubmatch(raw)
	suggestionsMatch := suggestionsPattern.FindStringSubmatch(raw)

	var status bool
	var gaps, suggestions string

	if statusMatch != nil && gapsMatch != nil && suggestionsMatch != nil {
		status = strings.EqualFold(statusMatch[1], "true")
		gaps = strings.TrimSpace(gapsMatch[1])
		suggestions = strings.TrimSpace(suggestionsMatch[1])
		if gaps == "" {
			gaps = "None"
		}
		if suggestions == "" {
			suggestions = "None"
		}
	} else {
		log.Warn("Falling back to heuristic parsing of model response")
		lower := strings.ToLower(raw)
		status = strings.Contains(lower, "false")
		gaps = scanLines(raw, "gap", "issue")
		if gaps == "" {
			gaps = fallbackGaps
		}
		suggestions = scanLines(raw, "suggestion", "recommend")
		if suggestions == "" {
			suggestions = fallbackSuggestions
		}
	}

	// A non-compliant verdict with no stated reason is an under-specified
	// model answer; substitute safe defaults instead of persisting "None".
	if !status && gaps == "None" && suggestions == "None" {
		gaps = correctedGaps
		suggestions = correctedSuggestions
	}

	return Verdict{
		ComplianceStatus: status,
		Gaps:             gaps,
		Suggestions:      suggestions,
	}
}

// scanLines collects the lines containing any of the markers.
func scanLines(raw string, markers ...string) string {
	var kept []string
	for _, line := range strings.Split(raw, "\n") {
		lower := strings.ToLower(line)
		for _, marker := range markers {
			if strings.Contains(lower, marker) {
				kept = append(kept, strings.TrimSpace(line))
				break
			}
		}
	}
	return strings.Join(kept, "\n")
}
