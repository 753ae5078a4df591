package tools

import (
	"context"
	"encoding/json"
	"strings"
)

// registerAccount adds the always-on baseline tools.
func registerAccount(r *Registry, deps Deps) {
	r.Register(Definition{
		Name:        "get_account",
		Title:       "Get account info",
		Description: "Fetch the caller's account tier, generation quota, and current usage.",
		Group:       "baseline",
		InputSchema: objectSchema(map[string]any{}),
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			raw, err := deps.Client.RPC(ctx, "getAccountInfo", nil)
			if err != nil {
				return nil, err
			}
			return decodePayload(raw)
		},
	})
}

func registerHelpCommand(r *Registry) {
	r.RegisterCommand(Command{
		Name:        "musehub-help",
		Description: "Overview of the available tool groups and the confirmation flow.",
		Run: func() string {
			var b strings.Builder
			b.WriteString("musehub exposes music generation and library tools.\n\n")
			b.WriteString("Groups: generation (create and enqueue songs, check status), ")
			b.WriteString("library (browse and edit songs), styles (browse styles), ")
			b.WriteString("projects (organize songs into projects).\n\n")
			b.WriteString("Destructive and write operations may answer with ")
			b.WriteString("confirmation_required=true and a token. Relay the message to the ")
			b.WriteString("user, and once they approve, call the same tool again with ")
			b.WriteString("confirmation_token set to that token before it expires.\n")
			return b.String()
		},
	})
}
