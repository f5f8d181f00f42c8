package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/callsense/callsense/apimodels"
	"github.com/callsense/callsense/internal/analysis"
	"github.com/callsense/callsense/internal/llm"
	"github.com/callsense/callsense/internal/schema"
	"github.com/callsense/callsense/internal/store"
)

const fallbackSummary = "Rule-based analysis performed because the reasoning backend was unavailable."

// runFallback produces a guaranteed schema-valid result without any model
// involvement: the capability heuristics are called directly in fixed
// order and their outputs assembled into an AnalysisResult. This is the
// availability floor of the system.
func (o *Orchestrator) runFallback(ctx context.Context, req apimodels.AnalyzeRequest, sessionID string, state *sessionState, startTime time.Time) (*apimodels.AnalysisEnvelope, error) {
	slog.Warn("Running deterministic fallback pipeline", "session_id", sessionID)

	text := req.Transcript
	var duration float64
	if text == "" {
		var err error
		text, duration, err = o.transcriber.Transcribe(ctx, req.AudioFile)
		if err != nil {
			// With no text there is nothing left to analyze.
			slog.Error("Fallback transcription failed", "session_id", sessionID, "error", err)
			return &apimodels.AnalysisEnvelope{
				Status:    StatusError,
				SessionID: sessionID,
				Analysis:  map[string]any{},
				Error:     fmt.Sprintf("transcription failed: %v", err),
				Metadata:  o.metadata(startTime, state, llm.Usage{}, "fallback"),
			}, nil
		}
	}

	intent := analysis.ClassifyIntent(text)
	requirements := analysis.DetectRequirements(text)
	sentiment := analysis.AnalyzeSentiment(text)
	score := analysis.ScoreAgent(text, sentiment.Sentiment)

	normalized, _ := schema.NormalizeSentiment(sentiment.Sentiment)

	tasks := make([]any, 0, len(requirements))
	for _, req := range requirements {
		tasks = append(tasks, req.Description)
	}

	result := schema.AnalysisResult{
		PrimaryIntent:      intent.Intent,
		Sentiment:          normalized,
		Tone:               "Professional",
		ConversationRating: ratingFromScore(score.Overall),
		NeedCallback:       hasRequirement(requirements, analysis.ReqCallbackRequest),
		EscalationRequired: hasRequirement(requirements, analysis.ReqEscalation),
		FraudRisk:          intent.Intent == analysis.IntentFraudReport,
		FollowUpTasks:      tasks,
		Summary:            fallbackSummary,
	}

	// Best-effort persistence; failure is logged, never propagated.
	if !state.persisted {
		_, err := o.saver.SaveCall(ctx, store.CallRecord{
			SessionID:        sessionID,
			AudioFile:        req.AudioFile,
			Transcript:       text,
			Intent:           intent.Intent,
			IntentConfidence: intent.Confidence,
			Sentiment:        sentiment.Sentiment,
			SentimentScore:   sentiment.Score,
			Emotion:          sentiment.Emotion,
			AgentScore:       score.Overall,
			Duration:         duration,
			Requirements:     requirements,
			AgentText:        analysis.ExtractAgentLines(text),
			Politeness:       score.Politeness,
			Helpfulness:      score.Helpfulness,
			Clarity:          score.Clarity,
		})
		if err != nil {
			slog.Error("Fallback persistence failed", "session_id", sessionID, "error", err)
		} else {
			state.persisted = true
		}
	}

	return &apimodels.AnalysisEnvelope{
		Status:    StatusSuccess,
		SessionID: sessionID,
		Analysis:  result,
		Metadata:  o.metadata(startTime, state, llm.Usage{}, "fallback"),
	}, nil
}

// ratingFromScore maps a 0-100 agent score onto the 1-10 conversation
// rating scale.
func ratingFromScore(overall float64) int {
	rating := int(overall / 10)
	if rating < 1 {
		rating = 1
	}
	if rating > 10 {
		rating = 10
	}
	return rating
}

func hasRequirement(requirements []analysis.Requirement, reqType string) bool {
	for _, r := range requirements {
		if r.Type == reqType {
			return true
		}
	}
	return false
}
