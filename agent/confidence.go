package agent

import (
	"strings"

	"github.com/mohitkumar/forge/model"
)

// Scorer estimates how confident a response reads, in [0, 1]. The runtime
// re-prompts while the score falls below the agent's threshold.
type Scorer interface {
	Score(text string, format model.OutputFormat) float64
}

var _ Scorer = new(HeuristicScorer)

var hedgePhrases = []string{
	"i'm not sure",
	"i am not sure",
	"i don't know",
	"i do not know",
	"it's unclear",
	"it is unclear",
	"i cannot",
	"i can't",
	"as an ai",
	"unfortunately",
	"might be",
	"possibly",
	"it depends",
}

// HeuristicScorer starts at a neutral base and adjusts for hedging language,
// answer length and presence of the markers the requested format calls for.
type HeuristicScorer struct{}

func (s *HeuristicScorer) Score(text string, format model.OutputFormat) float64 {
	score := 0.7
	lower := strings.ToLower(text)
	for _, phrase := range hedgePhrases {
		if strings.Contains(lower, phrase) {
			score -= 0.1
		}
	}
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < 40 {
		score -= 0.1
	} else if len(trimmed) > 200 {
		score += 0.1
	}
	if hasFormatMarkers(trimmed, format) {
		score += 0.1
	}
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func hasFormatMarkers(trimmed string, format model.OutputFormat) bool {
	switch format {
	case model.OUTPUT_FORMAT_JSON:
		if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
			return true
		}
		if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
			return true
		}
		return strings.Contains(trimmed, "```json")
	case model.OUTPUT_FORMAT_MARKDOWN:
		return strings.Contains(trimmed, "```") ||
			strings.HasPrefix(trimmed, "#") ||
			strings.Contains(trimmed, "\n#") ||
			strings.Contains(trimmed, "\n- ") ||
			strings.Contains(trimmed, "\n1.")
	}
	// plain text: any visible structure reads as a worked answer
	return strings.Contains(trimmed, "```") || strings.Contains(trimmed, "\n- ") || strings.Contains(trimmed, "\n1.")
}
