package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/callsense/callsense/internal/analysis"
	"github.com/callsense/callsense/internal/store"
	"github.com/callsense/callsense/internal/transcribe"
)

const maxToolOutput = 5000

// CallSaver is the slice of the persistence collaborator the registry needs.
type CallSaver interface {
	SaveCall(ctx context.Context, rec store.CallRecord) (int64, error)
}

// Registry dispatches tool invocations requested by the reasoning loop to
// the capability implementations. Analysis tools are pure; transcription
// and persistence delegate to the injected collaborators.
type Registry struct {
	transcriber transcribe.Transcriber
	saver       CallSaver
}

func NewRegistry(transcriber transcribe.Transcriber, saver CallSaver) *Registry {
	return &Registry{transcriber: transcriber, saver: saver}
}

type transcribeInput struct {
	AudioFilePath string `json:"audio_file_path"`
}

type transcriptInput struct {
	Transcript string `json:"transcript"`
}

type scoreAgentInput struct {
	Transcript string `json:"transcript"`
	Sentiment  string `json:"sentiment"`
}

type saveInput struct {
	Transcript   string                 `json:"transcript"`
	Intent       string                 `json:"intent"`
	Requirements []analysis.Requirement `json:"requirements"`
	Sentiment    string                 `json:"sentiment"`
	AgentScore   float64                `json:"agent_score"`
	SessionID    string                 `json:"session_id"`
}

// Invoke runs the named tool with raw JSON arguments from the model and
// returns the result serialized for the next reasoning turn. An error means
// the tool itself failed; a persistence failure is reported in-band as an
// "ERROR: ..." string instead, since it must not abort the run.
func (r *Registry) Invoke(ctx context.Context, name string, args json.RawMessage) (string, error) {
	slog.Info("Invoking tool", "tool", name)

	switch name {
	case ToolTranscribeAudio:
		var in transcribeInput
		if err := json.Unmarshal(args, &in); err != nil {
			return "", fmt.Errorf("invalid arguments for %s: %w", name, err)
		}
		text, _, err := r.transcriber.Transcribe(ctx, in.AudioFilePath)
		if err != nil {
			return "", err
		}
		return text, nil

	case ToolClassifyIntent:
		var in transcriptInput
		if err := json.Unmarshal(args, &in); err != nil {
			return "", fmt.Errorf("invalid arguments for %s: %w", name, err)
		}
		return marshalResult(analysis.ClassifyIntent(in.Transcript))

	case ToolDetectFollowUps:
		var in transcriptInput
		if err := json.Unmarshal(args, &in); err != nil {
			return "", fmt.Errorf("invalid arguments for %s: %w", name, err)
		}
		return marshalResult(analysis.DetectRequirements(in.Transcript))

	case ToolAnalyzeSentiment:
		var in transcriptInput
		if err := json.Unmarshal(args, &in); err != nil {
			return "", fmt.Errorf("invalid arguments for %s: %w", name, err)
		}
		return marshalResult(analysis.AnalyzeSentiment(in.Transcript))

	case ToolScoreAgent:
		var in scoreAgentInput
		if err := json.Unmarshal(args, &in); err != nil {
			return "", fmt.Errorf("invalid arguments for %s: %w", name, err)
		}
		if in.Sentiment == "" {
			in.Sentiment = analysis.SentimentNeutral
		}
		return marshalResult(analysis.ScoreAgent(in.Transcript, in.Sentiment))

	case ToolSaveToDatabase:
		var in saveInput
		if err := json.Unmarshal(args, &in); err != nil {
			return "", fmt.Errorf("invalid arguments for %s: %w", name, err)
		}
		return r.save(ctx, in), nil
	}

	return "", fmt.Errorf("unknown tool %q", name)
}

func (r *Registry) save(ctx context.Context, in saveInput) string {
	agentText := analysis.ExtractAgentLines(in.Transcript)
	score := analysis.ScoreAgent(in.Transcript, in.Sentiment)

	callID, err := r.saver.SaveCall(ctx, store.CallRecord{
		SessionID:    in.SessionID,
		Transcript:   in.Transcript,
		Intent:       in.Intent,
		Sentiment:    in.Sentiment,
		AgentScore:   in.AgentScore,
		Requirements: in.Requirements,
		AgentText:    agentText,
		Politeness:   score.Politeness,
		Helpfulness:  score.Helpfulness,
		Clarity:      score.Clarity,
	})
	if err != nil {
		slog.Error("save_to_database failed", "session_id", in.SessionID, "error", err)
		return fmt.Sprintf("ERROR: Failed to save to database: %v", err)
	}
	return fmt.Sprintf("SUCCESS: Call analysis saved with ID %d", callID)
}

func marshalResult(v any) (string, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		slog.Error("Failed to marshal tool result", "error", err)
		return "error: failed to serialize tool output", nil
	}
	out := string(jsonBytes)
	if len(out) > maxToolOutput {
		out = out[:maxToolOutput] + "\n[truncated]"
	}
	return out, nil
}
