package analysis

import "strings"

const (
	PriorityHigh   = "HIGH"
	PriorityMedium = "MEDIUM"
	PriorityLow    = "LOW"
)

// Requirement types produced by DetectRequirements.
const (
	ReqDocumentUpload  = "document_upload"
	ReqCallbackRequest = "callback_request"
	ReqEscalation      = "escalation"
	ReqPaymentPlan     = "payment_plan"
	ReqAccountUpdate   = "account_update"
	ReqTechnicalIssue  = "technical_issue"
)

type Requirement struct {
	Type        string `json:"type"`
	Priority    string `json:"priority"`
	Description string `json:"description"`
}

type requirementCheck struct {
	reqType     string
	priority    string
	description string
	keywords    []string
}

// Each check contributes at most one requirement. Output order follows
// this fixed check order, not the order keywords appear in the input.
var requirementChecks = []requirementCheck{
	{
		reqType:     ReqDocumentUpload,
		priority:    PriorityMedium,
		description: "Needs to submit verification documents",
		keywords:    []string{"document", "upload", "submit", "send papers", "proof"},
	},
	{
		reqType:     ReqCallbackRequest,
		priority:    PriorityMedium,
		description: "Customer requested a call back",
		keywords:    []string{"call back", "callback", "call me", "reach out"},
	},
	{
		reqType:     ReqEscalation,
		priority:    PriorityHigh,
		description: "Requested supervisor attention",
		keywords:    []string{"manager", "supervisor", "escalate", "speak to someone else"},
	},
	{
		reqType:     ReqPaymentPlan,
		priority:    PriorityMedium,
		description: "Customer asked about a payment plan",
		keywords:    []string{"payment plan", "installment", "split payment", "afford"},
	},
	{
		reqType:     ReqAccountUpdate,
		priority:    PriorityLow,
		description: "Customer wants account details updated",
		keywords:    []string{"update address", "change number", "update details"},
	},
	{
		reqType:     ReqTechnicalIssue,
		priority:    PriorityHigh,
		description: "Customer reported a technical problem",
		keywords:    []string{"app not working", "website down", "login issue"},
	},
}

// DetectRequirements finds follow-up actions mentioned in the transcript.
// Returns an empty slice when nothing matches.
func DetectRequirements(text string) []Requirement {
	lower := strings.ToLower(text)
	requirements := []Requirement{}
	for _, check := range requirementChecks {
		for _, kw := range check.keywords {
			if strings.Contains(lower, kw) {
				requirements = append(requirements, Requirement{
					Type:        check.reqType,
					Priority:    check.priority,
					Description: check.description,
				})
				break
			}
		}
	}
	return requirements
}
