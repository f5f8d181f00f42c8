package analysis

import "strings"

// Intent categories the classifier can produce.
const (
	IntentLoanRepayment  = "loan_repayment_query"
	IntentFraudReport    = "fraud_report"
	IntentBalanceInquiry = "account_balance_inquiry"
	IntentCreditCard     = "credit_card_request"
	IntentTechSupport    = "technical_support"
	IntentGeneralInquiry = "general_inquiry"
)

type Intent struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

type intentRule struct {
	intent     string
	confidence float64
	reasoning  string
	keywords   []string
}

// Rules are evaluated in order; the first match wins. Keep this list
// ordered by category priority, not alphabetically.
var intentRules = []intentRule{
	{
		intent:     IntentLoanRepayment,
		confidence: 0.9,
		reasoning:  "Keywords related to loans detected",
		keywords:   []string{"loan"},
	},
	{
		intent:     IntentFraudReport,
		confidence: 0.9,
		reasoning:  "Fraud keywords detected",
		keywords:   []string{"fraud", "unauthorized"},
	},
	{
		intent:     IntentBalanceInquiry,
		confidence: 0.8,
		reasoning:  "Balance inquiry keywords detected",
		keywords:   []string{"balance", "statement"},
	},
	{
		intent:     IntentCreditCard,
		confidence: 0.8,
		reasoning:  "Credit card keywords detected",
		keywords:   []string{"credit card", "debit card"},
	},
	{
		intent:     IntentTechSupport,
		confidence: 0.8,
		reasoning:  "Technical issue keywords detected",
		keywords:   []string{"app not working", "website down", "login issue"},
	},
}

// ClassifyIntent classifies the primary intent of a call transcript using
// fixed-priority keyword rules. Anything that matches no rule is a general
// inquiry at half confidence.
func ClassifyIntent(text string) Intent {
	lower := strings.ToLower(text)
	for _, rule := range intentRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return Intent{Intent: rule.intent, Confidence: rule.confidence, Reasoning: rule.reasoning}
			}
		}
	}
	return Intent{Intent: IntentGeneralInquiry, Confidence: 0.5, Reasoning: "Default classification"}
}
