// Package orchestrator drives the agentic analysis of one call: a
// tool-calling reasoning loop whose free-text answer is extracted and
// validated into the canonical result, with a deterministic fallback
// pipeline guaranteeing a valid result when the model path fails.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/callsense/callsense/apimodels"
	"github.com/callsense/callsense/internal/config"
	"github.com/callsense/callsense/internal/extract"
	"github.com/callsense/callsense/internal/llm"
	"github.com/callsense/callsense/internal/schema"
	"github.com/callsense/callsense/internal/tools"
	"github.com/callsense/callsense/internal/transcribe"
)

// ErrNoInput is returned when neither a transcript nor an audio reference
// is supplied. It is the only failure, along with a missing audio file,
// that surfaces to the caller instead of degrading.
var ErrNoInput = errors.New("either a transcript or an audio file must be provided")

// errReasoningBackend wraps every failure inside the reasoning loop: model
// unreachable, malformed protocol response, tool exceptions, deadline
// expiry. All of them route to the fallback pipeline.
var errReasoningBackend = errors.New("reasoning backend failure")

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

var systemPrompt = `You are an expert banking call analysis orchestrator.
Your goal is to perform a complete end-to-end analysis of a customer service interaction.

REQUIRED WORKFLOW:
1. TRANSCRIPTION: If an audio file path is provided, use 'transcribe_audio' to get the text.
2. INTENT: Use 'classify_intent' to identify why the customer is calling.
3. REQUIREMENTS: Use 'detect_requirements' to find follow-up actions.
4. SENTIMENT: Use 'analyze_sentiment' to evaluate the customer's mood.
5. AGENT SCORING: Use 'score_agent_performance' to rate the representative.
6. PERSISTENCE: Use 'save_to_database' to store all results. This is your FINAL task.

The session id provided in the task must be passed to the 'save_to_database' tool.
If a transcript is provided directly, SKIP the transcription step.
Do not repeat tool calls with the same arguments; the results are already known.

OUTPUT FORMAT:
Your final response MUST be a SINGLE JSON object representing the analysis results.
Do NOT include any introduction, conclusion, or formatting outside the JSON block.
The JSON must strictly follow this structure:
{
    "primary_intent": "string",
    "sentiment": "Positive" | "Negative" | "Neutral",
    "tone": "string",
    "conversation_rating": 1-10,
    "need_callback": true | false,
    "escalation_required": true | false,
    "fraud_risk": true | false,
    "follow_up_tasks": ["string (simple task descriptions)"],
    "summary": "string"
}`

// ToolRegistry is the slice of the capability registry the loop needs.
type ToolRegistry interface {
	Invoke(ctx context.Context, name string, args json.RawMessage) (string, error)
}

type Orchestrator struct {
	provider    llm.Provider
	registry    ToolRegistry
	transcriber transcribe.Transcriber
	saver       tools.CallSaver
	modelName   string
	cfg         config.OrchestratorConfig

	// sessions keyed by session id: a repeated call with the same id
	// resumes its reasoning context; different ids never share state.
	mu       sync.Mutex
	sessions map[string]*sessionState
}

type sessionState struct {
	// mu serializes whole runs that share a session id; concurrent
	// requests with distinct ids never contend.
	mu        sync.Mutex
	lastUsed  time.Time
	steps     int
	gathered  []stepData
	persisted bool
}

type stepData struct {
	stepNumber int
	toolName   string
	arguments  json.RawMessage
	result     string
}

func New(provider llm.Provider, registry ToolRegistry, transcriber transcribe.Transcriber, saver tools.CallSaver, modelName string, cfg config.OrchestratorConfig) *Orchestrator {
	return &Orchestrator{
		provider:    provider,
		registry:    registry,
		transcriber: transcriber,
		saver:       saver,
		modelName:   modelName,
		cfg:         cfg,
		sessions:    make(map[string]*sessionState),
	}
}

// Analyze runs one end-to-end analysis. The returned envelope always has
// status "success" unless the input itself was unusable; reasoning-loop
// failures degrade to the fallback pipeline, and schema-validation misses
// degrade to a best-effort record with validation_error set.
func (o *Orchestrator) Analyze(ctx context.Context, req apimodels.AnalyzeRequest) (*apimodels.AnalysisEnvelope, error) {
	startTime := time.Now()

	if strings.TrimSpace(req.Transcript) == "" && strings.TrimSpace(req.AudioFile) == "" {
		return nil, ErrNoInput
	}
	if req.AudioFile != "" {
		if err := o.transcriber.Resolve(req.AudioFile); err != nil {
			return nil, err
		}
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	slog.Info("Starting call analysis", "session_id", sessionID)

	state := o.session(sessionID)
	state.mu.Lock()
	defer state.mu.Unlock()

	content, usage, err := o.runReasoning(ctx, req, sessionID, state)
	if err != nil {
		slog.Warn("Reasoning loop failed, falling back", "session_id", sessionID, "error", err)
		return o.runFallback(ctx, req, sessionID, state, startTime)
	}

	record, found := extract.Extract(content)
	if !found {
		slog.Warn("No structured record in final answer", "session_id", sessionID)
	}

	result, verr := schema.Validate(record)
	if verr != nil {
		if o.cfg.FallbackOnValidationMiss {
			slog.Warn("Schema validation failed, falling back", "session_id", sessionID, "error", verr)
			return o.runFallback(ctx, req, sessionID, state, startTime)
		}
		slog.Error("Schema validation failed", "session_id", sessionID, "error", verr)
		return &apimodels.AnalysisEnvelope{
			Status:          StatusSuccess,
			SessionID:       sessionID,
			Analysis:        record,
			ValidationError: verr.Error(),
			Metadata:        o.metadata(startTime, state, usage, o.modelName),
		}, nil
	}

	slog.Info("Analysis completed", "session_id", sessionID, "steps", state.steps)
	return &apimodels.AnalysisEnvelope{
		Status:    StatusSuccess,
		SessionID: sessionID,
		Analysis:  result,
		Metadata:  o.metadata(startTime, state, usage, o.modelName),
	}, nil
}

func (o *Orchestrator) session(sessionID string) *sessionState {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := time.Now()
	for id, s := range o.sessions {
		if id != sessionID && now.Sub(s.lastUsed) > o.cfg.SessionTTL {
			delete(o.sessions, id)
		}
	}
	state, ok := o.sessions[sessionID]
	if !ok {
		state = &sessionState{}
		o.sessions[sessionID] = state
	}
	state.lastUsed = now
	return state
}

// runReasoning drives the tool-calling loop under a single deadline
// covering every model turn and tool invocation.
func (o *Orchestrator) runReasoning(ctx context.Context, req apimodels.AnalyzeRequest, sessionID string, state *sessionState) (string, llm.Usage, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.ReasoningTimeout)
	defer cancel()

	userContent := fmt.Sprintf("Analyze this interaction. Session ID: %s. ", sessionID)
	if req.Transcript != "" {
		userContent += "Transcript: " + req.Transcript
	} else {
		userContent += "Audio file: " + req.AudioFile
	}

	var usage llm.Usage
	for state.steps < o.cfg.MaxSteps {
		if err := ctx.Err(); err != nil {
			return "", usage, fmt.Errorf("%w: %v", errReasoningBackend, err)
		}

		systemContent := fmt.Sprintf(
			"%s\n\nCurrent step: %d/%d\nPrevious findings:\n%s\n\n%s",
			systemPrompt, state.steps+1, o.cfg.MaxSteps, summarizeFindings(state.gathered), historyReminder(state.gathered),
		)

		resp, err := o.provider.Analyze(ctx, []string{systemContent}, []string{userContent},
			llm.Option(func(opts *llm.Options) {
				opts.Tools = tools.Definitions
			}),
		)
		if err != nil {
			return "", usage, fmt.Errorf("%w: %v", errReasoningBackend, err)
		}
		accumulate(&usage, resp.Usage)

		if resp.FunctionCall == nil {
			slog.Debug("LLM provided final answer", "session_id", sessionID, "steps", state.steps)
			return resp.Content, usage, nil
		}

		if err := o.handleToolCall(ctx, state, resp.FunctionCall); err != nil {
			return "", usage, err
		}
	}

	// Step budget exhausted without a final answer: ask once more,
	// without tools, for the structured result.
	systemContent := fmt.Sprintf(
		"%s\n\nYou have reached the maximum number of steps (%d). Produce the final JSON object now using the findings below.\nPrevious findings:\n%s",
		systemPrompt, o.cfg.MaxSteps, summarizeFindings(state.gathered),
	)
	resp, err := o.provider.Analyze(ctx, []string{systemContent}, []string{userContent})
	if err != nil {
		return "", usage, fmt.Errorf("%w: %v", errReasoningBackend, err)
	}
	accumulate(&usage, resp.Usage)
	return resp.Content, usage, nil
}

func (o *Orchestrator) handleToolCall(ctx context.Context, state *sessionState, call *llm.FunctionResponse) error {
	args := json.RawMessage(call.Arguments)

	// Replay an identical earlier call instead of re-running it.
	for _, sd := range state.gathered {
		if sd.toolName == call.Name && jsonEqual(sd.arguments, args) {
			slog.Info("Reusing earlier tool result", "tool", call.Name, "from_step", sd.stepNumber)
			state.record(call.Name, args, sd.result)
			return nil
		}
	}

	// A resumed session must not write twice through the save tool.
	if call.Name == tools.ToolSaveToDatabase && state.persisted {
		state.record(call.Name, args, "SUCCESS: analysis already persisted for this session")
		return nil
	}

	result, err := o.registry.Invoke(ctx, call.Name, args)
	if err != nil {
		return fmt.Errorf("%w: tool %s: %v", errReasoningBackend, call.Name, err)
	}
	if call.Name == tools.ToolSaveToDatabase && strings.HasPrefix(result, "SUCCESS") {
		state.persisted = true
	}

	state.record(call.Name, args, result)
	slog.Info("Tool call completed", "tool", call.Name, "step", state.steps)
	return nil
}

func (s *sessionState) record(toolName string, args json.RawMessage, result string) {
	s.gathered = append(s.gathered, stepData{
		stepNumber: s.steps + 1,
		toolName:   toolName,
		arguments:  args,
		result:     result,
	})
	s.steps++
}

func (o *Orchestrator) metadata(startTime time.Time, state *sessionState, usage llm.Usage, model string) apimodels.AnalysisMetadata {
	return apimodels.AnalysisMetadata{
		Duration:   time.Since(startTime).String(),
		Model:      model,
		TokensUsed: usage.TotalTokens,
		Steps:      state.steps,
	}
}

func summarizeFindings(data []stepData) string {
	if len(data) == 0 {
		return "No previous findings."
	}
	var summary strings.Builder
	for _, step := range data {
		fmt.Fprintf(&summary, "Step %d:\n  Tool: %s\n  Arguments: %s\n  Result: %s\n\n",
			step.stepNumber, step.toolName, string(step.arguments), step.result)
	}
	return summary.String()
}

func historyReminder(data []stepData) string {
	if len(data) == 0 {
		return "No previous tool calls have been made."
	}
	var reminder strings.Builder
	reminder.WriteString("Previously called tools (do not repeat these exact calls):\n")
	seen := make(map[string]bool)
	for _, sd := range data {
		key := sd.toolName + string(sd.arguments)
		if !seen[key] {
			fmt.Fprintf(&reminder, "- Tool: %s Arguments: %s\n", sd.toolName, string(sd.arguments))
			seen[key] = true
		}
	}
	return reminder.String()
}

func accumulate(total *llm.Usage, u llm.Usage) {
	total.PromptTokens += u.PromptTokens
	total.CompletionTokens += u.CompletionTokens
	total.TotalTokens += u.TotalTokens
}

func jsonEqual(a, b json.RawMessage) bool {
	var ja, jb interface{}
	_ = json.Unmarshal(a, &ja)
	_ = json.Unmarshal(b, &jb)
	return fmt.Sprintf("%v", ja) == fmt.Sprintf("%v", jb)
}
