package rules

import "github.com/liamcoop/triage/action"

// DefaultRules returns the stock rule set for accounts that have not
// configured their own. There is no implicit fallback to these rules:
// callers that want them must pass them explicitly, e.g.
// NewEngine(NewRuleSet(DefaultRules())).
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:        "Flag important messages",
			Description: "Flag messages classified as important",
			Priority:    9,
			Active:      true,
			Conditions: Conditions{
				Categories:    []string{"important"},
				MinConfidence: floatPtr(0.7),
			},
			Actions: []action.Descriptor{
				{Type: action.TypeFlag, Priority: 9, Reason: "High-priority message flagged for immediate attention"},
			},
		},
		{
			Name:        "Archive promotional messages",
			Description: "Automatically archive promotional content",
			Priority:    5,
			Active:      true,
			Conditions: Conditions{
				Categories:    []string{"promotional"},
				MinConfidence: floatPtr(0.8),
			},
			Actions: []action.Descriptor{
				{Type: action.TypeArchive, Priority: 8, Reason: "Promotional content archived"},
				{Type: action.TypeLabel, Priority: 7, Reason: "Tagged for organization", Params: action.LabelParams{Label: "Promotions"}},
			},
		},
		{
			Name:        "Mark spam as read",
			Description: "Mark detected spam as read to declutter the inbox",
			Priority:    7,
			Active:      true,
			Conditions: Conditions{
				Categories:    []string{"spam"},
				MinConfidence: floatPtr(0.85),
			},
			Actions: []action.Descriptor{
				{Type: action.TypeMarkRead, Priority: 9, Reason: "Spam marked as read to reduce clutter"},
				{Type: action.TypeReportSpam, Priority: 8, Reason: "Report to spam service"},
			},
		},
		{
			Name:        "Flag follow-up messages",
			Description: "Flag messages needing follow-up",
			Priority:    8,
			Active:      true,
			Conditions: Conditions{
				Categories:    []string{"followup"},
				MinConfidence: floatPtr(0.6),
			},
			Actions: []action.Descriptor{
				{Type: action.TypeFlag, Priority: 9, Reason: "Follow-up needed"},
				{Type: action.TypeSnooze, Priority: 8, Reason: "Snooze for tomorrow", Params: action.SnoozeParams{Hours: 24}},
			},
		},
		{
			Name:        "Draft replies for actionable messages",
			Description: "Suggest a reply for actionable items",
			Priority:    6,
			Active:      true,
			Conditions: Conditions{
				Categories:    []string{"actionable"},
				MinConfidence: floatPtr(0.75),
			},
			Actions: []action.Descriptor{
				{
					Type:     action.TypeDraftReply,
					Priority: 7,
					Reason:   "Standard acknowledgment template",
					Params:   action.DraftReplyParams{Template: "Thank you for your message. I will review and respond shortly."},
				},
			},
		},
	}
}

func floatPtr(f float64) *float64 { return &f }
