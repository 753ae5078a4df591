// Package tools holds the callable operation catalog exposed to the agent and
// the registry that gates it by functional group. Every handler sanitizes its
// arguments against its own declared allow-list before anything is forwarded
// to the backend.
package tools

// Sanitize returns a new map containing only the allowed keys that are
// present in input. Keys outside the allow-list are never inspected or
// copied, whatever the caller put in them, so an agent cannot smuggle
// structural fields (ownership scoping columns, pollution-shaped keys) into a
// forwarded payload. An explicit null value is a real value and survives;
// only absence is absence. The input map is never mutated.
func Sanitize(input map[string]any, allowed []string) map[string]any {
	out := make(map[string]any, len(allowed))
	for _, key := range allowed {
		if value, ok := input[key]; ok {
			out[key] = value
		}
	}
	return out
}
