// Package action defines the closed set of triage actions that rules may
// recommend and planners may gate. Action descriptors are data only: nothing
// in this package performs the action it describes.
package action

import "fmt"

// Type identifies one of the supported triage actions.
type Type string

const (
	TypeFlag        Type = "flag"
	TypeArchive     Type = "archive"
	TypeLabel       Type = "label"
	TypeMarkRead    Type = "mark_read"
	TypeReportSpam  Type = "report_spam"
	TypeSnooze      Type = "snooze"
	TypeNotify      Type = "notify"
	TypeDraftReply  Type = "draft_reply"
	TypeSetPriority Type = "set_priority"
	TypeDelegate    Type = "delegate"
)

// Types lists every supported action type in a stable order.
func Types() []Type {
	return []Type{
		TypeFlag, TypeArchive, TypeLabel, TypeMarkRead, TypeReportSpam,
		TypeSnooze, TypeNotify, TypeDraftReply, TypeSetPriority, TypeDelegate,
	}
}

// Known reports whether t is a member of the closed action enumeration.
func Known(t Type) bool {
	switch t {
	case TypeFlag, TypeArchive, TypeLabel, TypeMarkRead, TypeReportSpam,
		TypeSnooze, TypeNotify, TypeDraftReply, TypeSetPriority, TypeDelegate:
		return true
	}
	return false
}

// Description returns the human-readable description of an action type.
func Description(t Type) string {
	switch t {
	case TypeFlag:
		return "Flag message for follow-up"
	case TypeArchive:
		return "Archive message"
	case TypeLabel:
		return "Apply label/tag to message"
	case TypeMarkRead:
		return "Mark message as read"
	case TypeReportSpam:
		return "Report message as spam"
	case TypeSnooze:
		return "Snooze message for later"
	case TypeNotify:
		return "Send notification to user"
	case TypeDraftReply:
		return "Draft a reply"
	case TypeSetPriority:
		return "Set priority level"
	case TypeDelegate:
		return "Suggest delegation"
	default:
		return "Unknown action"
	}
}

// PriorityLevel is the target level for a set_priority action.
type PriorityLevel string

const (
	PriorityLow    PriorityLevel = "low"
	PriorityNormal PriorityLevel = "normal"
	PriorityHigh   PriorityLevel = "high"
	PriorityUrgent PriorityLevel = "urgent"
)

// Params carries the type-specific parameters of an action descriptor.
// The interface is sealed: only the parameter structs in this package
// implement it, so every action kind is handled at a single point.
type Params interface {
	isParams()
}

// LabelParams parameterizes a label action.
type LabelParams struct {
	Label string
}

// SnoozeParams parameterizes a snooze action.
type SnoozeParams struct {
	Hours int
}

// DraftReplyParams parameterizes a draft_reply action.
type DraftReplyParams struct {
	Template string
}

// SetPriorityParams parameterizes a set_priority action.
type SetPriorityParams struct {
	Level PriorityLevel
}

// DelegateParams parameterizes a delegate action.
type DelegateParams struct {
	Recipient string
}

// NotifyParams parameterizes a notify action. Channel is optional and
// defaults to the caller's notification setup when empty.
type NotifyParams struct {
	Channel string
}

func (LabelParams) isParams()       {}
func (SnoozeParams) isParams()      {}
func (DraftReplyParams) isParams()  {}
func (SetPriorityParams) isParams() {}
func (DelegateParams) isParams()    {}
func (NotifyParams) isParams()      {}

// Descriptor is a single recommended action: what to do, how important it
// is relative to other recommendations, and why it was recommended.
type Descriptor struct {
	Type     Type
	Priority int
	Reason   string
	Params   Params
}

// Validate checks that the descriptor's type is known and that the
// parameters required for that type are present and well-formed. The
// returned error names the offending field.
func (d Descriptor) Validate() error {
	if d.Type == "" {
		return fmt.Errorf("action is missing required field 'type'")
	}
	if !Known(d.Type) {
		return fmt.Errorf("unknown action type %q", d.Type)
	}

	switch d.Type {
	case TypeLabel:
		p, ok := d.Params.(LabelParams)
		if !ok || p.Label == "" {
			return fmt.Errorf("label action requires a non-empty 'label' field")
		}
	case TypeSnooze:
		p, ok := d.Params.(SnoozeParams)
		if !ok {
			return fmt.Errorf("snooze action requires a positive integer 'hours' field")
		}
		if p.Hours <= 0 {
			return fmt.Errorf("snooze action field 'hours' must be positive, got %d", p.Hours)
		}
	case TypeSetPriority:
		p, ok := d.Params.(SetPriorityParams)
		if !ok {
			return fmt.Errorf("set_priority action requires a 'level' field")
		}
		switch p.Level {
		case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		default:
			return fmt.Errorf("set_priority action field 'level' must be one of low, normal, high, urgent; got %q", p.Level)
		}
	case TypeDelegate:
		p, ok := d.Params.(DelegateParams)
		if !ok || p.Recipient == "" {
			return fmt.Errorf("delegate action requires a non-empty 'recipient' field")
		}
	case TypeDraftReply:
		if d.Params != nil {
			if _, ok := d.Params.(DraftReplyParams); !ok {
				return fmt.Errorf("draft_reply action has parameters of the wrong shape")
			}
		}
	case TypeNotify:
		if d.Params != nil {
			if _, ok := d.Params.(NotifyParams); !ok {
				return fmt.Errorf("notify action has parameters of the wrong shape")
			}
		}
	default:
		// flag, archive, mark_read, report_spam carry no parameters.
		if d.Params != nil {
			return fmt.Errorf("%s action does not take parameters", d.Type)
		}
	}

	return nil
}
