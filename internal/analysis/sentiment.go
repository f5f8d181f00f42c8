package analysis

import "strings"

const (
	SentimentPositive = "POSITIVE"
	SentimentNegative = "NEGATIVE"
	SentimentNeutral  = "NEUTRAL"
)

type Sentiment struct {
	Sentiment string  `json:"sentiment"`
	Score     float64 `json:"score"`
	Emotion   string  `json:"emotion"`
}

var (
	negativeWords = []string{"angry", "upset", "frustrated", "bad"}
	positiveWords = []string{"thank", "great", "happy"}
)

// AnalyzeSentiment detects customer sentiment and the dominant emotion.
// Negative keywords take priority over positive ones; neutral is the
// default when neither family matches.
func AnalyzeSentiment(text string) Sentiment {
	lower := strings.ToLower(text)
	if containsAny(lower, negativeWords) {
		return Sentiment{Sentiment: SentimentNegative, Score: 0.8, Emotion: "frustration"}
	}
	if containsAny(lower, positiveWords) {
		return Sentiment{Sentiment: SentimentPositive, Score: 0.8, Emotion: "contentment"}
	}
	return Sentiment{Sentiment: SentimentNeutral, Score: 0.5, Emotion: "neutral"}
}

func containsAny(lower string, words []string) bool {
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
