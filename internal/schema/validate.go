package schema

import (
	"fmt"
	"math"
	"strings"
)

// ValidationError reports why an untyped record does not satisfy the
// AnalysisResult contract.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("field %q: %s", e.Field, e.Reason)
}

// Validate coerces an untyped record into an AnalysisResult. All nine
// fields must be present and of the right kind; conversation_rating must
// be in [1,10]; sentiment is matched case-insensitively and normalized.
func Validate(record map[string]any) (AnalysisResult, error) {
	var result AnalysisResult

	intent, err := stringField(record, "primary_intent")
	if err != nil {
		return result, err
	}
	if strings.TrimSpace(intent) == "" {
		return result, &ValidationError{Field: "primary_intent", Reason: "must be non-empty"}
	}

	sentiment, err := stringField(record, "sentiment")
	if err != nil {
		return result, err
	}
	normalized, ok := normalizeSentiment(sentiment)
	if !ok {
		return result, &ValidationError{Field: "sentiment", Reason: fmt.Sprintf("unknown sentiment %q", sentiment)}
	}

	tone, err := stringField(record, "tone")
	if err != nil {
		return result, err
	}

	rating, err := intField(record, "conversation_rating")
	if err != nil {
		return result, err
	}
	if rating < 1 || rating > 10 {
		return result, &ValidationError{Field: "conversation_rating", Reason: fmt.Sprintf("%d outside range 1-10", rating)}
	}

	needCallback, err := boolField(record, "need_callback")
	if err != nil {
		return result, err
	}
	escalation, err := boolField(record, "escalation_required")
	if err != nil {
		return result, err
	}
	fraudRisk, err := boolField(record, "fraud_risk")
	if err != nil {
		return result, err
	}

	tasks, err := tasksField(record, "follow_up_tasks")
	if err != nil {
		return result, err
	}

	summary, err := stringField(record, "summary")
	if err != nil {
		return result, err
	}

	result = AnalysisResult{
		PrimaryIntent:      intent,
		Sentiment:          normalized,
		Tone:               tone,
		ConversationRating: rating,
		NeedCallback:       needCallback,
		EscalationRequired: escalation,
		FraudRisk:          fraudRisk,
		FollowUpTasks:      tasks,
		Summary:            summary,
	}
	return result, nil
}

// NormalizeSentiment maps any casing of the three sentiment labels to the
// canonical output form. The second return is false for anything else.
func NormalizeSentiment(s string) (string, bool) {
	return normalizeSentiment(s)
}

func normalizeSentiment(s string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "positive":
		return SentimentPositive, true
	case "negative":
		return SentimentNegative, true
	case "neutral":
		return SentimentNeutral, true
	}
	return "", false
}

func stringField(record map[string]any, field string) (string, error) {
	v, ok := record[field]
	if !ok {
		return "", &ValidationError{Field: field, Reason: "missing"}
	}
	s, ok := v.(string)
	if !ok {
		return "", &ValidationError{Field: field, Reason: fmt.Sprintf("expected string, got %T", v)}
	}
	return s, nil
}

func boolField(record map[string]any, field string) (bool, error) {
	v, ok := record[field]
	if !ok {
		return false, &ValidationError{Field: field, Reason: "missing"}
	}
	b, ok := v.(bool)
	if !ok {
		return false, &ValidationError{Field: field, Reason: fmt.Sprintf("expected bool, got %T", v)}
	}
	return b, nil
}

func intField(record map[string]any, field string) (int, error) {
	v, ok := record[field]
	if !ok {
		return 0, &ValidationError{Field: field, Reason: "missing"}
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case float64:
		// JSON numbers decode as float64; accept only whole values.
		if n != math.Trunc(n) {
			return 0, &ValidationError{Field: field, Reason: fmt.Sprintf("expected integer, got %v", n)}
		}
		return int(n), nil
	}
	return 0, &ValidationError{Field: field, Reason: fmt.Sprintf("expected integer, got %T", v)}
}

func tasksField(record map[string]any, field string) ([]any, error) {
	v, ok := record[field]
	if !ok {
		return nil, &ValidationError{Field: field, Reason: "missing"}
	}
	tasks, ok := v.([]any)
	if !ok {
		return nil, &ValidationError{Field: field, Reason: fmt.Sprintf("expected list, got %T", v)}
	}
	return tasks, nil
}
