package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/musehub/musehub/internal/backend"
	"github.com/musehub/musehub/internal/telemetry"
)

// Functional groups. The baseline tools are always registered; the rest are
// gated by configuration.
const (
	GroupGeneration = "generation"
	GroupLibrary    = "library"
	GroupStyles     = "styles"
	GroupProjects   = "projects"
)

// AllGroups lists every gated group in registration order.
var AllGroups = []string{GroupGeneration, GroupLibrary, GroupStyles, GroupProjects}

// Handler executes one tool call. Arguments arrive as the raw JSON object the
// agent supplied; the handler owns decoding, sanitizing, and forwarding.
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

// Definition describes one callable operation registered with the host
// transport: name, human label, JSON-Schema parameter declaration (unknown
// fields rejected), and the async handler.
type Definition struct {
	Name        string
	Title       string
	Description string
	Group       string
	InputSchema map[string]any
	Handler     Handler
}

// Command is a simple textual command, distinct from a schema'd tool.
type Command struct {
	Name        string
	Description string
	Run         func() string
}

// Registry is the set of operations exposed to the host transport. Duplicate
// names are a programming error and are not handled defensively.
type Registry struct {
	logger   *slog.Logger
	defs     map[string]Definition
	order    []string
	commands map[string]Command
	cmdOrder []string
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:   logger,
		defs:     make(map[string]Definition),
		commands: make(map[string]Command),
	}
}

func (r *Registry) Register(def Definition) {
	r.defs[def.Name] = def
	r.order = append(r.order, def.Name)
}

func (r *Registry) RegisterCommand(cmd Command) {
	r.commands[cmd.Name] = cmd
	r.cmdOrder = append(r.cmdOrder, cmd.Name)
}

// Definitions returns the tool declarations in registration order, shaped for
// a tools/list response.
func (r *Registry) Definitions() []map[string]any {
	out := make([]map[string]any, 0, len(r.order))
	for _, name := range r.order {
		def := r.defs[name]
		out = append(out, map[string]any{
			"name":        def.Name,
			"title":       def.Title,
			"description": def.Description,
			"inputSchema": def.InputSchema,
		})
	}
	return out
}

func (r *Registry) Commands() []Command {
	out := make([]Command, 0, len(r.cmdOrder))
	for _, name := range r.cmdOrder {
		out = append(out, r.commands[name])
	}
	return out
}

func (r *Registry) RunCommand(name string) (string, bool) {
	cmd, ok := r.commands[name]
	if !ok {
		return "", false
	}
	return cmd.Run(), true
}

func (r *Registry) Has(name string) bool {
	_, ok := r.defs[name]
	return ok
}

// Call dispatches one tool invocation, recording duration and outcome
// metrics. Failures come back as *backend.Error so transports can rely on
// classification and display messages.
func (r *Registry) Call(ctx context.Context, name string, args json.RawMessage) (any, error) {
	def, ok := r.defs[name]
	if !ok {
		return nil, &backend.Error{
			Message: fmt.Sprintf("unknown tool: %s", name),
			Status:  404,
			Code:    "UNKNOWN_TOOL",
		}
	}

	start := time.Now()
	result, err := def.Handler(ctx, args)
	telemetry.ObserveToolDuration(name, time.Since(start))

	if err != nil {
		telemetry.IncToolCall(name, "error")
		return nil, backend.Wrap(err)
	}
	telemetry.IncToolCall(name, "ok")
	return result, nil
}

// Deps carries what tool handlers need.
type Deps struct {
	Client *backend.Client
	Logger *slog.Logger
}

// Build composes the full catalog: the always-on baseline plus each enabled
// group's tools. Group names are matched case-insensitively; unknown names
// are logged and skipped.
func Build(deps Deps, groups []string) *Registry {
	r := NewRegistry(deps.Logger)

	registerAccount(r, deps)
	registerHelpCommand(r)

	enabled := make(map[string]bool, len(groups))
	for _, g := range groups {
		g = strings.ToLower(strings.TrimSpace(g))
		if g == "" {
			continue
		}
		switch g {
		case GroupGeneration, GroupLibrary, GroupStyles, GroupProjects:
			enabled[g] = true
		default:
			deps.Logger.Warn("unknown tool group ignored", "group", g)
		}
	}

	if enabled[GroupGeneration] {
		registerGeneration(r, deps)
	}
	if enabled[GroupLibrary] {
		registerLibrary(r, deps)
	}
	if enabled[GroupStyles] {
		registerStyles(r, deps)
	}
	if enabled[GroupProjects] {
		registerProjects(r, deps)
	}

	deps.Logger.Info("tool catalog built", "tools", len(r.order), "commands", len(r.cmdOrder))
	return r
}

// decodeArgs parses the raw argument object into a generic record for
// sanitizing. A missing or empty argument object is an empty record.
func decodeArgs(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, &backend.Error{
			Message: "invalid tool arguments: " + err.Error(),
			Status:  400,
			Code:    "INVALID_ARGUMENTS",
		}
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

func argString(m map[string]any, key string) string {
	v, _ := m[key].(string)
	return v
}

func argStringSlice(m map[string]any, key string) []string {
	raw, ok := m[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func argInt(m map[string]any, key string) int {
	if f, ok := m[key].(float64); ok {
		return int(f)
	}
	return 0
}

// relayConfirmation turns a backend confirmation demand into the payload the
// agent sees: the envelope plus an instruction naming the field to resupply.
// This layer never decides whether the second call is approved.
func relayConfirmation(c *backend.Confirmation) map[string]any {
	telemetry.IncConfirmationRelayed(c.Capability)
	return map[string]any{
		"confirmation_required": true,
		"autonomy_level":        c.AutonomyLevel,
		"capability":            c.Capability,
		"token":                 c.Token,
		"expires_in":            c.ExpiresIn,
		"message":               c.Message,
		"instruction":           "Ask the user to approve this action, then call the same tool again with confirmation_token set to the token above.",
	}
}

// decodePayload renders a backend payload for the agent. Empty payloads
// become an empty object so callers always receive structured JSON.
func decodePayload(raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, backend.Wrap(fmt.Errorf("decode backend payload: %w", err))
	}
	return v, nil
}

// objectSchema builds the JSON-Schema parameter declaration for a tool.
// Unknown fields are always rejected so the schema mirrors the handler's
// allow-list exactly.
func objectSchema(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
