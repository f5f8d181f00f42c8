package analysis

import "strings"

type AgentScore struct {
	Overall     float64 `json:"overall_score"`
	Politeness  float64 `json:"politeness"`
	Helpfulness float64 `json:"helpfulness"`
	Clarity     float64 `json:"clarity"`
	Empathy     float64 `json:"empathy"`
	Reasoning   string  `json:"reasoning"`
}

var (
	politeWords = []string{
		"please", "thank", "appreciate", "welcome", "happy to help",
		"certainly", "of course", "glad", "sorry",
	}
	helpfulPhrases = []string{
		"i can help", "let me", "i will", "solution", "resolve",
		"assist", "fix", "handle", "take care",
	}
	empathyWords = []string{
		"understand", "apologize", "sorry", "appreciate your patience",
		"i see", "frustrating", "difficult",
	}
	agentPrefixes = []string{"agent:", "representative:", "rep:", "staff:", "support:"}
)

// ScoreAgent rates the service agent's handling of the call on a 0-100
// scale. The overall score starts at a fixed baseline, adjusted down for
// negative customer sentiment and up when the agent uses apology language,
// clamped at 100. Sub-scores are keyword-count heuristics.
func ScoreAgent(text, sentiment string) AgentScore {
	lower := strings.ToLower(text)

	overall := 75.0
	if sentiment == SentimentNegative {
		overall -= 5.0
	}
	if strings.Contains(lower, "apologize") || strings.Contains(lower, "sorry") {
		overall += 10.0
	}
	if overall > 100.0 {
		overall = 100.0
	}

	return AgentScore{
		Overall:     overall,
		Politeness:  scorePoliteness(lower),
		Helpfulness: scoreHelpfulness(lower),
		Clarity:     scoreClarity(text),
		Empathy:     scoreEmpathy(lower, sentiment),
		Reasoning:   "Rule-based scoring based on keywords and sentiment",
	}
}

// ExtractAgentLines pulls out the sentences spoken by the agent, keyed on
// common speaker prefixes. Falls back to the full transcript when no
// prefixed lines are found.
func ExtractAgentLines(transcript string) string {
	var agentParts []string
	for _, line := range strings.Split(transcript, "\n") {
		trimmed := strings.ToLower(strings.TrimSpace(line))
		for _, prefix := range agentPrefixes {
			if strings.HasPrefix(trimmed, prefix) {
				agentParts = append(agentParts, strings.TrimSpace(line))
				break
			}
		}
	}
	if len(agentParts) == 0 {
		return transcript
	}
	return strings.Join(agentParts, " ")
}

func scorePoliteness(lower string) float64 {
	count := countMatches(lower, politeWords)
	return capRatio(float64(count)/5.0) * 100.0
}

func scoreHelpfulness(lower string) float64 {
	count := countMatches(lower, helpfulPhrases)
	return capRatio(float64(count)/4.0) * 100.0
}

func scoreClarity(text string) float64 {
	var lengths []int
	for _, s := range strings.Split(text, ".") {
		if strings.TrimSpace(s) == "" {
			continue
		}
		lengths = append(lengths, len(strings.Fields(s)))
	}
	if len(lengths) == 0 {
		return 50.0
	}
	total := 0
	for _, l := range lengths {
		total += l
	}
	avg := float64(total) / float64(len(lengths))
	switch {
	case avg >= 10 && avg <= 20:
		return 100.0
	case avg < 10:
		return 80.0
	default:
		score := 1.0 - (avg-20.0)/100.0
		if score < 0.5 {
			score = 0.5
		}
		return score * 100.0
	}
}

func scoreEmpathy(lower, sentiment string) float64 {
	count := countMatches(lower, empathyWords)
	ratio := float64(count) / 3.0
	// An agent acknowledging an unhappy customer earns extra credit.
	if sentiment == SentimentNegative && count > 0 {
		ratio *= 1.2
	}
	return capRatio(ratio) * 100.0
}

func countMatches(lower string, words []string) int {
	count := 0
	for _, w := range words {
		if strings.Contains(lower, w) {
			count++
		}
	}
	return count
}

func capRatio(r float64) float64 {
	if r > 1.0 {
		return 1.0
	}
	return r
}
