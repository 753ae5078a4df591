package backend

import (
	"encoding/json"
	"testing"
)

func TestClassifyOutcomeDetectsConfirmation(t *testing.T) {
	raw := json.RawMessage(`{
		"confirmation_required": true,
		"autonomy_level": "supervised",
		"capability": "delete_song",
		"token": "tok-123",
		"expires_in": 300,
		"message": "This will permanently delete the song."
	}`)

	out := ClassifyOutcome(raw)
	if out.Confirmed() {
		t.Fatal("expected a confirmation demand")
	}
	c := out.Confirmation
	if c.Capability != "delete_song" || c.Token != "tok-123" || c.ExpiresIn != 300 {
		t.Fatalf("envelope fields lost: %+v", c)
	}
	if c.AutonomyLevel != "supervised" {
		t.Fatalf("autonomy level = %q", c.AutonomyLevel)
	}
}

func TestClassifyOutcomeStrictBooleanCheck(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "false flag", raw: `{"confirmation_required": false, "token": "t"}`},
		{name: "string true", raw: `{"confirmation_required": "true", "token": "t"}`},
		{name: "absent flag", raw: `{"id": "s1", "status": "complete"}`},
		{name: "numeric flag", raw: `{"confirmation_required": 1}`},
		{name: "array body", raw: `[{"confirmation_required": true}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := ClassifyOutcome(json.RawMessage(tt.raw))
			if !out.Confirmed() {
				t.Fatalf("%s must classify as a normal payload", tt.raw)
			}
			if string(out.Payload) != tt.raw {
				t.Fatal("payload must pass through unchanged")
			}
		})
	}
}

func TestClassifyOutcomeEmptyPayload(t *testing.T) {
	out := ClassifyOutcome(nil)
	if !out.Confirmed() {
		t.Fatal("empty body is a normal (empty) payload")
	}
}
