package apimodels

// AnalyzeRequest is one end-to-end analysis request. Exactly one of
// Transcript or AudioFile must be supplied; SessionID is generated when
// absent. Reusing a session id resumes that session's reasoning context and
// replaces its persisted record.
type AnalyzeRequest struct {
	Transcript string `json:"transcript,omitempty"`
	AudioFile  string `json:"audio_file,omitempty"`
	SessionID  string `json:"session_id,omitempty"`
}

// TextAnalysisRequest is the body of POST /api/v1/analyze/text.
type TextAnalysisRequest struct {
	Text      string `json:"text"`
	SessionID string `json:"session_id,omitempty"`
}
