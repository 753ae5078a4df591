package backend

import (
	"encoding/json"
)

// Confirmation is the backend's answer to a mutating call made without a
// valid confirmation token: the mutation did not run, and the agent must call
// again with the token to commit it. The token is opaque; binding it to the
// original payload, expiry, and redemption rules are entirely the backend's
// business.
type Confirmation struct {
	AutonomyLevel string `json:"autonomy_level"`
	Capability    string `json:"capability"`
	Token         string `json:"token"`
	ExpiresIn     int    `json:"expires_in"`
	Message       string `json:"message"`
}

// Outcome is the tagged result of a mutating call: either the mutation's
// payload or a confirmation demand, never both.
type Outcome struct {
	Confirmation *Confirmation
	Payload      json.RawMessage
}

func (o Outcome) Confirmed() bool {
	return o.Confirmation == nil
}

type confirmationProbe struct {
	ConfirmationRequired any    `json:"confirmation_required"`
	AutonomyLevel        string `json:"autonomy_level"`
	Capability           string `json:"capability"`
	Token                string `json:"token"`
	ExpiresIn            int    `json:"expires_in"`
	Message              string `json:"message"`
}

// ClassifyOutcome performs the structural confirmation check once, right
// after deserialization, so handlers only ever see the tagged form. The
// envelope is recognized solely by confirmation_required being boolean true;
// false, the string "true", or an absent field all mean a normal payload.
func ClassifyOutcome(raw json.RawMessage) Outcome {
	if len(raw) == 0 {
		return Outcome{Payload: raw}
	}

	var probe confirmationProbe
	if err := json.Unmarshal(raw, &probe); err != nil {
		return Outcome{Payload: raw}
	}
	flag, ok := probe.ConfirmationRequired.(bool)
	if !ok || !flag {
		return Outcome{Payload: raw}
	}

	return Outcome{Confirmation: &Confirmation{
		AutonomyLevel: probe.AutonomyLevel,
		Capability:    probe.Capability,
		Token:         probe.Token,
		ExpiresIn:     probe.ExpiresIn,
		Message:       probe.Message,
	}}
}
