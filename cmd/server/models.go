package main

import (
	"github.com/liamcoop/triage/planner"
	"github.com/liamcoop/triage/rules"
)

// API request and response models.

// EvaluateRequest carries one classified message for evaluation. When
// MessageID is set the resulting recommendation is persisted for review;
// without it the evaluation is ad hoc and nothing is stored.
type EvaluateRequest struct {
	AccountID string        `json:"account_id"`
	MessageID string        `json:"message_id,omitempty"`
	Message   rules.Message `json:"message"`
}

// EvaluateResponse returns the evaluation result and, when the
// recommendation was persisted, its ID.
type EvaluateResponse struct {
	RecommendationID string                      `json:"recommendation_id,omitempty"`
	Result           *rules.RecommendationResult `json:"result"`
	EvaluationTime   string                      `json:"evaluation_time"`
}

// ReviewRequest moves a recommendation to accepted or rejected.
type ReviewRequest struct {
	Status rules.RecommendationStatus `json:"status"`
}

// CreatePlanRequest plans a recommendation's actions. Simulate produces a
// dry-run plan whose steps are guaranteed to have no external effect.
type CreatePlanRequest struct {
	Simulate bool `json:"simulate,omitempty"`
}

// TestRuleRequest evaluates a candidate rule against a sample message
// without persisting anything.
type TestRuleRequest struct {
	Rule    rules.Rule    `json:"rule"`
	Message rules.Message `json:"message"`
}

// TestRuleResponse reports whether the candidate rule matched.
type TestRuleResponse struct {
	Matched bool                        `json:"matched"`
	Result  *rules.RecommendationResult `json:"result"`
}

// RulesListResponse wraps a rule listing.
type RulesListResponse struct {
	Rules []*rules.Rule `json:"rules"`
}

// RecommendationsListResponse wraps a recommendation listing.
type RecommendationsListResponse struct {
	Recommendations []*rules.Recommendation `json:"recommendations"`
}

// PlansListResponse wraps a plan listing.
type PlansListResponse struct {
	Plans []*planner.ExecutionPlan `json:"plans"`
}

// HealthResponse is the health check payload, including the counters the
// logger tracks across requests.
type HealthResponse struct {
	Status         string `json:"status"`
	AccountsLoaded int    `json:"accounts_loaded"`
	Evaluations    int64  `json:"evaluations"`
	PlansCreated   int64  `json:"plans_created"`
	Errors         int64  `json:"errors"`
	Warnings       int64  `json:"warnings"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
