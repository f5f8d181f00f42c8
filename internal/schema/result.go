// Package schema defines the canonical analysis output contract and the
// coercion logic that accepts or rejects a model-produced record.
package schema

// AnalysisResult is the one acceptable shape of a finished call analysis.
// FollowUpTasks entries may be plain strings or structured task objects;
// their order is preserved as produced.
type AnalysisResult struct {
	PrimaryIntent      string `json:"primary_intent"`
	Sentiment          string `json:"sentiment"`
	Tone               string `json:"tone"`
	ConversationRating int    `json:"conversation_rating"`
	NeedCallback       bool   `json:"need_callback"`
	EscalationRequired bool   `json:"escalation_required"`
	FraudRisk          bool   `json:"fraud_risk"`
	FollowUpTasks      []any  `json:"follow_up_tasks"`
	Summary            string `json:"summary"`
}

const (
	SentimentPositive = "Positive"
	SentimentNegative = "Negative"
	SentimentNeutral  = "Neutral"
)
