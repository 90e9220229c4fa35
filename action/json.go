package action

import (
	"encoding/json"
	"fmt"
)

// wireDescriptor is the flat JSON shape used by rule configuration and
// persisted recommendations. Parameter fields are flattened next to the
// common fields, matching the configuration format the rule loader accepts.
type wireDescriptor struct {
	Type      Type          `json:"type"`
	Priority  int           `json:"priority,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	Label     string        `json:"label,omitempty"`
	Hours     int           `json:"hours,omitempty"`
	Template  string        `json:"template,omitempty"`
	Level     PriorityLevel `json:"level,omitempty"`
	Recipient string        `json:"recipient,omitempty"`
	Channel   string        `json:"channel,omitempty"`
}

// MarshalJSON flattens the typed parameters back into the wire shape.
func (d Descriptor) MarshalJSON() ([]byte, error) {
	w := wireDescriptor{
		Type:     d.Type,
		Priority: d.Priority,
		Reason:   d.Reason,
	}

	switch p := d.Params.(type) {
	case nil:
	case LabelParams:
		w.Label = p.Label
	case SnoozeParams:
		w.Hours = p.Hours
	case DraftReplyParams:
		w.Template = p.Template
	case SetPriorityParams:
		w.Level = p.Level
	case DelegateParams:
		w.Recipient = p.Recipient
	case NotifyParams:
		w.Channel = p.Channel
	default:
		return nil, fmt.Errorf("unsupported action params type %T", d.Params)
	}

	return json.Marshal(w)
}

// UnmarshalJSON converts the flat wire shape into a typed descriptor.
// Unknown types are preserved as-is so that validation (not parsing)
// rejects them with a useful message.
func (d *Descriptor) UnmarshalJSON(data []byte) error {
	var w wireDescriptor
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	d.Type = w.Type
	d.Priority = w.Priority
	d.Reason = w.Reason
	d.Params = nil

	switch w.Type {
	case TypeLabel:
		d.Params = LabelParams{Label: w.Label}
	case TypeSnooze:
		d.Params = SnoozeParams{Hours: w.Hours}
	case TypeDraftReply:
		if w.Template != "" {
			d.Params = DraftReplyParams{Template: w.Template}
		}
	case TypeSetPriority:
		level := w.Level
		if level == "" {
			level = PriorityNormal
		}
		d.Params = SetPriorityParams{Level: level}
	case TypeDelegate:
		d.Params = DelegateParams{Recipient: w.Recipient}
	case TypeNotify:
		if w.Channel != "" {
			d.Params = NotifyParams{Channel: w.Channel}
		}
	}

	return nil
}
