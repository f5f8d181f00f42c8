package tools

import (
	"github.com/openai/openai-go"
)

// Tool names referenced by the orchestrator's workflow instruction.
const (
	ToolTranscribeAudio  = "transcribe_audio"
	ToolClassifyIntent   = "classify_intent"
	ToolDetectFollowUps  = "detect_requirements"
	ToolAnalyzeSentiment = "analyze_sentiment"
	ToolScoreAgent       = "score_agent_performance"
	ToolSaveToDatabase   = "save_to_database"
)

// Definitions lists the analysis capabilities exposed to the model. The
// descriptions double as the model's tool-selection guidance, so keep them
// aligned with the system prompt's workflow.
var Definitions = []openai.ChatCompletionToolParam{
	{
		Type: openai.F(openai.ChatCompletionToolTypeFunction),
		Function: openai.F(openai.FunctionDefinitionParam{
			Name:        openai.String(ToolTranscribeAudio),
			Description: openai.String("Transcribe an audio file to text. Use this first if an audio file path is provided instead of a transcript."),
			Parameters: openai.F(openai.FunctionParameters{
				"type": "object",
				"properties": map[string]interface{}{
					"audio_file_path": map[string]string{
						"type":        "string",
						"description": "Path to the audio file to transcribe",
					},
				},
				"required": []string{"audio_file_path"},
			}),
		}),
	},
	{
		Type: openai.F(openai.ChatCompletionToolTypeFunction),
		Function: openai.F(openai.FunctionDefinitionParam{
			Name:        openai.String(ToolClassifyIntent),
			Description: openai.String("Classify the primary intent of a banking call transcript. Categories include loan_repayment_query, fraud_report, account_balance_inquiry, credit_card_request, technical_support, general_inquiry."),
			Parameters: openai.F(openai.FunctionParameters{
				"type": "object",
				"properties": map[string]interface{}{
					"transcript": map[string]string{
						"type":        "string",
						"description": "The call transcript to classify",
					},
				},
				"required": []string{"transcript"},
			}),
		}),
	},
	{
		Type: openai.F(openai.ChatCompletionToolTypeFunction),
		Function: openai.F(openai.FunctionDefinitionParam{
			Name:        openai.String(ToolDetectFollowUps),
			Description: openai.String("Identify follow-up actions (requirements) from the transcript, e.g. document_upload, callback_request, escalation, payment_plan."),
			Parameters: openai.F(openai.FunctionParameters{
				"type": "object",
				"properties": map[string]interface{}{
					"transcript": map[string]string{
						"type":        "string",
						"description": "The call transcript to scan for follow-up actions",
					},
				},
				"required": []string{"transcript"},
			}),
		}),
	},
	{
		Type: openai.F(openai.ChatCompletionToolTypeFunction),
		Function: openai.F(openai.FunctionDefinitionParam{
			Name:        openai.String(ToolAnalyzeSentiment),
			Description: openai.String("Analyze customer sentiment and primary emotion from the transcript. Sentiments: POSITIVE, NEGATIVE, NEUTRAL."),
			Parameters: openai.F(openai.FunctionParameters{
				"type": "object",
				"properties": map[string]interface{}{
					"transcript": map[string]string{
						"type":        "string",
						"description": "The call transcript to analyze",
					},
				},
				"required": []string{"transcript"},
			}),
		}),
	},
	{
		Type: openai.F(openai.ChatCompletionToolTypeFunction),
		Function: openai.F(openai.FunctionDefinitionParam{
			Name:        openai.String(ToolScoreAgent),
			Description: openai.String("Score the customer service agent's performance on a 0-100 scale, evaluating politeness, helpfulness, clarity, and empathy."),
			Parameters: openai.F(openai.FunctionParameters{
				"type": "object",
				"properties": map[string]interface{}{
					"transcript": map[string]string{
						"type":        "string",
						"description": "The call transcript",
					},
					"sentiment": map[string]string{
						"type":        "string",
						"description": "Customer sentiment from analyze_sentiment (POSITIVE, NEGATIVE, or NEUTRAL)",
					},
				},
				"required": []string{"transcript"},
			}),
		}),
	},
	{
		Type: openai.F(openai.ChatCompletionToolTypeFunction),
		Function: openai.F(openai.FunctionDefinitionParam{
			Name:        openai.String(ToolSaveToDatabase),
			Description: openai.String("Save all analysis results to the database. This should be the FINAL step in the analysis pipeline."),
			Parameters: openai.F(openai.FunctionParameters{
				"type": "object",
				"properties": map[string]interface{}{
					"transcript": map[string]string{
						"type":        "string",
						"description": "The full call transcript",
					},
					"intent": map[string]string{
						"type":        "string",
						"description": "Classified primary intent",
					},
					"requirements": map[string]interface{}{
						"type":        "array",
						"description": "Detected follow-up requirements",
						"items": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"type":        map[string]string{"type": "string"},
								"priority":    map[string]string{"type": "string"},
								"description": map[string]string{"type": "string"},
							},
						},
					},
					"sentiment": map[string]string{
						"type":        "string",
						"description": "Customer sentiment label",
					},
					"agent_score": map[string]string{
						"type":        "number",
						"description": "Overall agent performance score (0-100)",
					},
					"session_id": map[string]string{
						"type":        "string",
						"description": "Session id provided in the task",
					},
				},
				"required": []string{"transcript", "intent", "sentiment", "agent_score", "session_id"},
			}),
		}),
	},
}
