package backend

import (
	"context"
	"os"
)

type ctxKey string

const ctxKeyAgentID ctxKey = "agent_id"

// WithAgentID scopes an agent identity to a context. Concurrent logical
// sub-agents sharing one process use this to override the identity carried
// on their own calls without touching any process-wide state.
func WithAgentID(ctx context.Context, agentID string) context.Context {
	return context.WithValue(ctx, ctxKeyAgentID, agentID)
}

// IdentitySource yields a candidate agent identity, or "" when it has none.
type IdentitySource func(ctx context.Context) string

// ContextSource reads the identity scoped via WithAgentID.
func ContextSource() IdentitySource {
	return func(ctx context.Context) string {
		v, _ := ctx.Value(ctxKeyAgentID).(string)
		return v
	}
}

// EnvSource reads the identity from a process environment variable.
func EnvSource(key string) IdentitySource {
	return func(context.Context) string {
		return os.Getenv(key)
	}
}

// StaticSource always yields the given identity.
func StaticSource(agentID string) IdentitySource {
	return func(context.Context) string {
		return agentID
	}
}

// resolveIdentity returns the explicit override when set, otherwise the first
// source with a value. Resolution happens at call time, never at client
// construction, so a per-call override always wins over ambient state.
func resolveIdentity(ctx context.Context, explicit string, sources []IdentitySource) string {
	if explicit != "" {
		return explicit
	}
	for _, src := range sources {
		if v := src(ctx); v != "" {
			return v
		}
	}
	return ""
}
