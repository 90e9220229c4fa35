package action

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestKnown(t *testing.T) {
	for _, typ := range Types() {
		if !Known(typ) {
			t.Errorf("expected %s to be known", typ)
		}
	}
	if Known(Type("teleport")) {
		t.Error("expected unknown type to be rejected")
	}
	if Known(Type("")) {
		t.Error("expected empty type to be rejected")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		descriptor Descriptor
		wantErr    string // empty means valid
	}{
		{"flag without params", Descriptor{Type: TypeFlag}, ""},
		{"archive without params", Descriptor{Type: TypeArchive}, ""},
		{"missing type", Descriptor{}, "type"},
		{"unknown type", Descriptor{Type: "shred"}, "unknown action type"},
		{"flag with stray params", Descriptor{Type: TypeFlag, Params: LabelParams{Label: "x"}}, "does not take parameters"},
		{"label with value", Descriptor{Type: TypeLabel, Params: LabelParams{Label: "Promotions"}}, ""},
		{"label missing params", Descriptor{Type: TypeLabel}, "label"},
		{"label empty value", Descriptor{Type: TypeLabel, Params: LabelParams{}}, "label"},
		{"snooze positive hours", Descriptor{Type: TypeSnooze, Params: SnoozeParams{Hours: 24}}, ""},
		{"snooze zero hours", Descriptor{Type: TypeSnooze, Params: SnoozeParams{}}, "hours"},
		{"snooze negative hours", Descriptor{Type: TypeSnooze, Params: SnoozeParams{Hours: -1}}, "hours"},
		{"set_priority valid level", Descriptor{Type: TypeSetPriority, Params: SetPriorityParams{Level: PriorityHigh}}, ""},
		{"set_priority bad level", Descriptor{Type: TypeSetPriority, Params: SetPriorityParams{Level: "extreme"}}, "level"},
		{"delegate with recipient", Descriptor{Type: TypeDelegate, Params: DelegateParams{Recipient: "ops@example.com"}}, ""},
		{"delegate missing recipient", Descriptor{Type: TypeDelegate, Params: DelegateParams{}}, "recipient"},
		{"draft_reply without template", Descriptor{Type: TypeDraftReply}, ""},
		{"draft_reply with template", Descriptor{Type: TypeDraftReply, Params: DraftReplyParams{Template: "thanks"}}, ""},
		{"notify without channel", Descriptor{Type: TypeNotify}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.descriptor.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("expected valid, got: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error mentioning %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error mentioning %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestDescriptorJSONRoundTrip(t *testing.T) {
	tests := []struct {
		name       string
		descriptor Descriptor
	}{
		{"flag", Descriptor{Type: TypeFlag, Priority: 9, Reason: "important"}},
		{"label", Descriptor{Type: TypeLabel, Priority: 7, Params: LabelParams{Label: "Promotions"}}},
		{"snooze", Descriptor{Type: TypeSnooze, Priority: 4, Params: SnoozeParams{Hours: 24}}},
		{"delegate", Descriptor{Type: TypeDelegate, Priority: 3, Params: DelegateParams{Recipient: "ops@example.com"}}},
		{"set_priority", Descriptor{Type: TypeSetPriority, Priority: 2, Params: SetPriorityParams{Level: PriorityUrgent}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.descriptor)
			if err != nil {
				t.Fatalf("unexpected marshal error: %v", err)
			}
			var got Descriptor
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("unexpected unmarshal error: %v", err)
			}
			if got != tt.descriptor {
				t.Errorf("round trip changed descriptor:\nbefore: %+v\nafter:  %+v", tt.descriptor, got)
			}
		})
	}
}

func TestDescriptorUnmarshalFlatShape(t *testing.T) {
	raw := `{"type":"label","priority":7,"reason":"tagged","label":"Promotions"}`

	var d Descriptor
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p, ok := d.Params.(LabelParams)
	if !ok {
		t.Fatalf("expected LabelParams, got %T", d.Params)
	}
	if p.Label != "Promotions" {
		t.Errorf("expected label Promotions, got %q", p.Label)
	}
}

func TestDescriptorUnmarshalUnknownTypeSurvivesForValidation(t *testing.T) {
	raw := `{"type":"shred","priority":1}`

	var d Descriptor
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		t.Fatalf("expected parse to succeed so validation can reject, got: %v", err)
	}
	if err := d.Validate(); err == nil {
		t.Error("expected validation to reject the unknown type")
	}
}

func TestSetPriorityDefaultsToNormal(t *testing.T) {
	raw := `{"type":"set_priority"}`

	var d Descriptor
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p, ok := d.Params.(SetPriorityParams)
	if !ok {
		t.Fatalf("expected SetPriorityParams, got %T", d.Params)
	}
	if p.Level != PriorityNormal {
		t.Errorf("expected level to default to normal, got %q", p.Level)
	}
}
