package apimodels

// AnalysisEnvelope is the terminal output of one analysis run.
//
// Status is "success" whenever a result was produced, including the
// degraded case where the model's answer failed schema validation; in that
// case Analysis carries the best-effort record and ValidationError explains
// the miss. Status is "error" only for boundary failures (no input, missing
// audio).
type AnalysisEnvelope struct {
	Status    string `json:"status"`
	SessionID string `json:"session_id"`

	// Analysis is a schema.AnalysisResult when validation passed, or the
	// raw extracted record when it did not.
	Analysis any `json:"analysis"`

	ValidationError string `json:"validation_error,omitempty"`
	Error           string `json:"error,omitempty"`

	Metadata AnalysisMetadata `json:"metadata"`
}

type AnalysisMetadata struct {
	// Time taken for analysis
	Duration string `json:"duration"`

	// Model used for analysis; "fallback" when the deterministic
	// pipeline produced the result
	Model string `json:"model"`

	// Tokens used in analysis
	TokensUsed int64 `json:"tokensUsed"`

	// Tracks agent steps
	Steps int `json:"steps"`
}
