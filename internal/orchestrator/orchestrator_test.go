package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callsense/callsense/apimodels"
	"github.com/callsense/callsense/internal/analysis"
	"github.com/callsense/callsense/internal/config"
	"github.com/callsense/callsense/internal/llm"
	"github.com/callsense/callsense/internal/schema"
	"github.com/callsense/callsense/internal/store"
	"github.com/callsense/callsense/internal/tools"
	"github.com/callsense/callsense/internal/transcribe"
)

type scriptProvider struct {
	steps []func(ctx context.Context) (*llm.Response, error)
	calls int
}

func (p *scriptProvider) Analyze(ctx context.Context, system, user []string, opts ...llm.Option) (*llm.Response, error) {
	i := p.calls
	p.calls++
	if i >= len(p.steps) {
		return nil, errors.New("script exhausted")
	}
	return p.steps[i](ctx)
}

func failingProvider() *scriptProvider {
	return &scriptProvider{steps: []func(ctx context.Context) (*llm.Response, error){
		func(ctx context.Context) (*llm.Response, error) { return nil, errors.New("backend unreachable") },
	}}
}

func respond(content string) func(ctx context.Context) (*llm.Response, error) {
	return func(ctx context.Context) (*llm.Response, error) {
		return &llm.Response{Content: content}, nil
	}
}

func callTool(name, args string) func(ctx context.Context) (*llm.Response, error) {
	return func(ctx context.Context) (*llm.Response, error) {
		return &llm.Response{FunctionCall: &llm.FunctionResponse{Name: name, Arguments: args}}, nil
	}
}

type fakeRegistry struct {
	invocations []string
	results     map[string]string
	err         error
}

func (r *fakeRegistry) Invoke(ctx context.Context, name string, args json.RawMessage) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	r.invocations = append(r.invocations, name)
	if res, ok := r.results[name]; ok {
		return res, nil
	}
	return "{}", nil
}

type fakeTranscriber struct {
	text       string
	resolveErr error
}

func (f *fakeTranscriber) Resolve(ref string) error { return f.resolveErr }

func (f *fakeTranscriber) Transcribe(ctx context.Context, ref string) (string, float64, error) {
	if f.resolveErr != nil {
		return "", 0, f.resolveErr
	}
	return f.text, 30, nil
}

type fakeSaver struct {
	records []store.CallRecord
	err     error
}

func (f *fakeSaver) SaveCall(ctx context.Context, rec store.CallRecord) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.records = append(f.records, rec)
	return int64(len(f.records)), nil
}

func testConfig() config.OrchestratorConfig {
	return config.OrchestratorConfig{
		MaxSteps:         8,
		ReasoningTimeout: 5 * time.Second,
		SessionTTL:       time.Hour,
	}
}

func newTestOrchestrator(p llm.Provider, reg ToolRegistry, cfg config.OrchestratorConfig) (*Orchestrator, *fakeSaver) {
	saver := &fakeSaver{}
	o := New(p, reg, &fakeTranscriber{text: "Customer: hello"}, saver, "test-model", cfg)
	return o, saver
}

const finalAnswer = `Here is the analysis:
{
	"primary_intent": "loan_repayment_query",
	"sentiment": "negative",
	"tone": "Frustrated",
	"conversation_rating": 6,
	"need_callback": true,
	"escalation_required": false,
	"fraud_risk": false,
	"follow_up_tasks": ["Set up a payment plan"],
	"summary": "Customer cannot make this month's loan payment."
}`

func TestAnalyzeRejectsEmptyInput(t *testing.T) {
	reg := &fakeRegistry{}
	o, _ := newTestOrchestrator(failingProvider(), reg, testConfig())

	_, err := o.Analyze(context.Background(), apimodels.AnalyzeRequest{})
	assert.ErrorIs(t, err, ErrNoInput)
	assert.Empty(t, reg.invocations, "no tool may run before input validation")

	_, err = o.Analyze(context.Background(), apimodels.AnalyzeRequest{Transcript: "   "})
	assert.ErrorIs(t, err, ErrNoInput)
}

func TestAnalyzeRejectsMissingAudio(t *testing.T) {
	saver := &fakeSaver{}
	o := New(failingProvider(), &fakeRegistry{}, &fakeTranscriber{resolveErr: transcribe.ErrAudioNotFound}, saver, "test-model", testConfig())

	_, err := o.Analyze(context.Background(), apimodels.AnalyzeRequest{AudioFile: "missing.wav"})
	assert.ErrorIs(t, err, transcribe.ErrAudioNotFound)
}

func TestFallbackOnBackendError(t *testing.T) {
	o, saver := newTestOrchestrator(failingProvider(), &fakeRegistry{}, testConfig())

	env, err := o.Analyze(context.Background(), apimodels.AnalyzeRequest{
		Transcript: "This fraud charge made me upset. Let me talk to a manager and call back tomorrow.",
		SessionID:  "sess-fallback",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, env.Status)
	assert.Equal(t, "sess-fallback", env.SessionID)
	assert.Empty(t, env.ValidationError)

	result, ok := env.Analysis.(schema.AnalysisResult)
	require.True(t, ok, "fallback must produce a typed result")
	assert.Equal(t, analysis.IntentFraudReport, result.PrimaryIntent)
	assert.True(t, result.FraudRisk)
	assert.True(t, result.NeedCallback)
	assert.True(t, result.EscalationRequired)
	assert.Equal(t, schema.SentimentNegative, result.Sentiment)
	assert.GreaterOrEqual(t, result.ConversationRating, 1)
	assert.LessOrEqual(t, result.ConversationRating, 10)
	assert.NotNil(t, result.FollowUpTasks)

	require.Len(t, saver.records, 1)
	assert.Equal(t, "sess-fallback", saver.records[0].SessionID)
}

func TestFallbackIsDeterministic(t *testing.T) {
	transcript := "I lost my job and cannot pay my loan. Please call back."

	run := func(session string) schema.AnalysisResult {
		o, _ := newTestOrchestrator(failingProvider(), &fakeRegistry{}, testConfig())
		env, err := o.Analyze(context.Background(), apimodels.AnalyzeRequest{Transcript: transcript, SessionID: session})
		require.NoError(t, err)
		result, ok := env.Analysis.(schema.AnalysisResult)
		require.True(t, ok)
		return result
	}

	first := run("sess-a")
	second := run("sess-b")
	assert.Equal(t, first.PrimaryIntent, second.PrimaryIntent)
	assert.Equal(t, first.Sentiment, second.Sentiment)
	assert.Equal(t, first.NeedCallback, second.NeedCallback)
	assert.Equal(t, first.EscalationRequired, second.EscalationRequired)
	assert.Equal(t, first.FraudRisk, second.FraudRisk)
}

func TestReasoningLoopToFinalAnswer(t *testing.T) {
	provider := &scriptProvider{steps: []func(ctx context.Context) (*llm.Response, error){
		callTool(tools.ToolClassifyIntent, `{"transcript": "loan help"}`),
		callTool(tools.ToolAnalyzeSentiment, `{"transcript": "loan help"}`),
		respond(finalAnswer),
	}}
	reg := &fakeRegistry{}
	o, _ := newTestOrchestrator(provider, reg, testConfig())

	env, err := o.Analyze(context.Background(), apimodels.AnalyzeRequest{Transcript: "loan help", SessionID: "sess-loop"})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, env.Status)
	assert.Empty(t, env.ValidationError)

	result, ok := env.Analysis.(schema.AnalysisResult)
	require.True(t, ok)
	assert.Equal(t, "loan_repayment_query", result.PrimaryIntent)
	assert.Equal(t, schema.SentimentNegative, result.Sentiment, "sentiment casing must be normalized")
	assert.Equal(t, 6, result.ConversationRating)

	assert.Equal(t, []string{tools.ToolClassifyIntent, tools.ToolAnalyzeSentiment}, reg.invocations)
	assert.Equal(t, 2, env.Metadata.Steps)
	assert.Equal(t, "test-model", env.Metadata.Model)
}

func TestDegradedSuccessOnValidationMiss(t *testing.T) {
	provider := &scriptProvider{steps: []func(ctx context.Context) (*llm.Response, error){
		respond("I was unable to produce a structured answer."),
	}}
	o, _ := newTestOrchestrator(provider, &fakeRegistry{}, testConfig())

	env, err := o.Analyze(context.Background(), apimodels.AnalyzeRequest{Transcript: "hello", SessionID: "sess-miss"})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, env.Status)
	assert.NotEmpty(t, env.ValidationError)

	record, ok := env.Analysis.(map[string]any)
	require.True(t, ok, "a validation miss surfaces the best-effort record")
	assert.Empty(t, record)
}

func TestValidationMissFallsBackWhenConfigured(t *testing.T) {
	provider := &scriptProvider{steps: []func(ctx context.Context) (*llm.Response, error){
		respond("no structure here either"),
	}}
	cfg := testConfig()
	cfg.FallbackOnValidationMiss = true
	o, _ := newTestOrchestrator(provider, &fakeRegistry{}, cfg)

	env, err := o.Analyze(context.Background(), apimodels.AnalyzeRequest{Transcript: "thank you for the help", SessionID: "sess-strict"})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, env.Status)
	assert.Empty(t, env.ValidationError)

	result, ok := env.Analysis.(schema.AnalysisResult)
	require.True(t, ok)
	assert.Equal(t, schema.SentimentPositive, result.Sentiment)
}

func TestReasoningTimeoutFallsBack(t *testing.T) {
	provider := &scriptProvider{steps: []func(ctx context.Context) (*llm.Response, error){
		func(ctx context.Context) (*llm.Response, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}}
	cfg := testConfig()
	cfg.ReasoningTimeout = 10 * time.Millisecond
	o, _ := newTestOrchestrator(provider, &fakeRegistry{}, cfg)

	env, err := o.Analyze(context.Background(), apimodels.AnalyzeRequest{Transcript: "hello", SessionID: "sess-timeout"})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, env.Status)
	_, ok := env.Analysis.(schema.AnalysisResult)
	assert.True(t, ok)
}

func TestToolFailureFallsBack(t *testing.T) {
	provider := &scriptProvider{steps: []func(ctx context.Context) (*llm.Response, error){
		callTool(tools.ToolClassifyIntent, `{"transcript": "x"}`),
	}}
	reg := &fakeRegistry{err: errors.New("tool exploded")}
	o, _ := newTestOrchestrator(provider, reg, testConfig())

	env, err := o.Analyze(context.Background(), apimodels.AnalyzeRequest{Transcript: "hello", SessionID: "sess-toolerr"})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, env.Status)
	_, ok := env.Analysis.(schema.AnalysisResult)
	assert.True(t, ok)
}

func TestGeneratesSessionID(t *testing.T) {
	o, _ := newTestOrchestrator(failingProvider(), &fakeRegistry{}, testConfig())

	env, err := o.Analyze(context.Background(), apimodels.AnalyzeRequest{Transcript: "hello"})
	require.NoError(t, err)
	assert.NotEmpty(t, env.SessionID)
}

func TestSessionsAreIsolated(t *testing.T) {
	steps := func() []func(ctx context.Context) (*llm.Response, error) {
		return []func(ctx context.Context) (*llm.Response, error){
			callTool(tools.ToolClassifyIntent, `{"transcript": "a"}`),
			respond(finalAnswer),
		}
	}
	provider := &scriptProvider{steps: append(steps(), steps()...)}
	o, _ := newTestOrchestrator(provider, &fakeRegistry{}, testConfig())

	first, err := o.Analyze(context.Background(), apimodels.AnalyzeRequest{Transcript: "a", SessionID: "sess-one"})
	require.NoError(t, err)
	second, err := o.Analyze(context.Background(), apimodels.AnalyzeRequest{Transcript: "a", SessionID: "sess-two"})
	require.NoError(t, err)

	// A fresh session starts from step zero; nothing leaks across ids.
	assert.Equal(t, 1, first.Metadata.Steps)
	assert.Equal(t, 1, second.Metadata.Steps)
}

func TestConcurrentRunsOnOneSession(t *testing.T) {
	o, saver := newTestOrchestrator(failingProvider(), &fakeRegistry{}, testConfig())

	const runs = 4
	envs := make([]*apimodels.AnalysisEnvelope, runs)
	errs := make([]error, runs)
	var wg sync.WaitGroup
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			envs[i], errs[i] = o.Analyze(context.Background(), apimodels.AnalyzeRequest{
				Transcript: "please call back about my loan",
				SessionID:  "sess-shared",
			})
		}(i)
	}
	wg.Wait()

	for i := 0; i < runs; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, StatusSuccess, envs[i].Status)
	}
	// Runs sharing an id serialize on the session state, so only the
	// first one persists.
	assert.Len(t, saver.records, 1)
}

func TestExpiredSessionsAreEvicted(t *testing.T) {
	cfg := testConfig()
	cfg.SessionTTL = time.Millisecond
	provider := &scriptProvider{steps: []func(ctx context.Context) (*llm.Response, error){
		callTool(tools.ToolClassifyIntent, `{"transcript": "a"}`),
		respond(finalAnswer),
		callTool(tools.ToolClassifyIntent, `{"transcript": "a"}`),
		respond(finalAnswer),
		callTool(tools.ToolClassifyIntent, `{"transcript": "a"}`),
		respond(finalAnswer),
	}}
	reg := &fakeRegistry{}
	o, _ := newTestOrchestrator(provider, reg, cfg)

	_, err := o.Analyze(context.Background(), apimodels.AnalyzeRequest{Transcript: "a", SessionID: "sess-old"})
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	// Touching any other session sweeps the expired one.
	_, err = o.Analyze(context.Background(), apimodels.AnalyzeRequest{Transcript: "a", SessionID: "sess-new"})
	require.NoError(t, err)
	o.mu.Lock()
	_, resident := o.sessions["sess-old"]
	o.mu.Unlock()
	assert.False(t, resident, "expired session state must be dropped")

	// Coming back after expiry starts fresh: the tool call re-runs
	// instead of being replayed.
	env, err := o.Analyze(context.Background(), apimodels.AnalyzeRequest{Transcript: "a", SessionID: "sess-old"})
	require.NoError(t, err)
	assert.Len(t, reg.invocations, 3)
	assert.Equal(t, 1, env.Metadata.Steps)
}

func TestResumedSessionReplaysIdenticalCalls(t *testing.T) {
	provider := &scriptProvider{steps: []func(ctx context.Context) (*llm.Response, error){
		callTool(tools.ToolClassifyIntent, `{"transcript": "a"}`),
		respond(finalAnswer),
		callTool(tools.ToolClassifyIntent, `{"transcript": "a"}`),
		respond(finalAnswer),
	}}
	reg := &fakeRegistry{}
	o, _ := newTestOrchestrator(provider, reg, testConfig())

	_, err := o.Analyze(context.Background(), apimodels.AnalyzeRequest{Transcript: "a", SessionID: "sess-resume"})
	require.NoError(t, err)
	_, err = o.Analyze(context.Background(), apimodels.AnalyzeRequest{Transcript: "a", SessionID: "sess-resume"})
	require.NoError(t, err)

	assert.Equal(t, []string{tools.ToolClassifyIntent}, reg.invocations,
		"the identical call in the resumed session must be replayed, not re-run")
}

func TestResumedSessionSkipsSecondSave(t *testing.T) {
	saveArgs := `{"transcript": "a", "intent": "general_inquiry", "sentiment": "NEUTRAL", "agent_score": 75, "session_id": "sess-save"}`
	provider := &scriptProvider{steps: []func(ctx context.Context) (*llm.Response, error){
		callTool(tools.ToolSaveToDatabase, saveArgs),
		respond(finalAnswer),
		callTool(tools.ToolSaveToDatabase, `{"transcript": "b", "intent": "general_inquiry", "sentiment": "NEUTRAL", "agent_score": 70, "session_id": "sess-save"}`),
		respond(finalAnswer),
	}}
	reg := &fakeRegistry{results: map[string]string{tools.ToolSaveToDatabase: "SUCCESS: Call analysis saved with ID 1"}}
	o, _ := newTestOrchestrator(provider, reg, testConfig())

	_, err := o.Analyze(context.Background(), apimodels.AnalyzeRequest{Transcript: "a", SessionID: "sess-save"})
	require.NoError(t, err)
	_, err = o.Analyze(context.Background(), apimodels.AnalyzeRequest{Transcript: "a", SessionID: "sess-save"})
	require.NoError(t, err)

	assert.Equal(t, []string{tools.ToolSaveToDatabase}, reg.invocations,
		"an already-persisted session must not write a second time")
}

func TestMaxStepsForcesFinalAnswer(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSteps = 2
	provider := &scriptProvider{steps: []func(ctx context.Context) (*llm.Response, error){
		callTool(tools.ToolClassifyIntent, `{"transcript": "a"}`),
		callTool(tools.ToolAnalyzeSentiment, `{"transcript": "a"}`),
		respond(finalAnswer), // the no-tools closing turn
	}}
	o, _ := newTestOrchestrator(provider, &fakeRegistry{}, cfg)

	env, err := o.Analyze(context.Background(), apimodels.AnalyzeRequest{Transcript: "a", SessionID: "sess-max"})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, env.Status)
	assert.Empty(t, env.ValidationError)
	assert.Equal(t, 3, provider.calls)
}
