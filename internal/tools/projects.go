package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/musehub/musehub/internal/backend"
)

var (
	createProjectParams  = []string{"name", "description", "confirmation_token"}
	updateProjectParams  = []string{"name", "description"}
	projectSongParams    = []string{"project_id", "song_id", "confirmation_token"}
	projectSelectColumns = "id,name,description,song_count,created_at"
)

func registerProjects(r *Registry, deps Deps) {
	r.Register(Definition{
		Name:        "create_project",
		Title:       "Create a project",
		Description: "Create a project to organize songs.",
		Group:       GroupProjects,
		InputSchema: objectSchema(map[string]any{
			"name":               map[string]any{"type": "string"},
			"description":        map[string]any{"type": "string"},
			"confirmation_token": map[string]any{"type": "string"},
		}, "name"),
		Handler: rpcMutationHandler(deps, "createProject", createProjectParams),
	})

	r.Register(Definition{
		Name:        "list_projects",
		Title:       "List projects",
		Description: "List the caller's projects.",
		Group:       GroupProjects,
		InputSchema: objectSchema(map[string]any{
			"limit": map[string]any{"type": "integer"},
		}),
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			m, err := decodeArgs(args)
			if err != nil {
				return nil, err
			}
			rows, err := deps.Client.Query(ctx, "projects", map[string]string{
				"select": projectSelectColumns,
				"order":  "created_at.desc",
				"limit":  strconv.Itoa(limitOrDefault(m, 20)),
			}, backend.QueryOptions{})
			if err != nil {
				return nil, err
			}
			return map[string]any{"projects": rows, "count": len(rows)}, nil
		},
	})

	r.Register(Definition{
		Name:        "get_project",
		Title:       "Get a project",
		Description: "Fetch one project and its song list.",
		Group:       GroupProjects,
		InputSchema: objectSchema(map[string]any{
			"project_id": map[string]any{"type": "string"},
		}, "project_id"),
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			m, err := decodeArgs(args)
			if err != nil {
				return nil, err
			}
			projectID := argString(m, "project_id")

			rows, err := deps.Client.Query(ctx, "projects", map[string]string{
				"id":     "eq." + projectID,
				"select": "*,songs(" + songSelect + ")",
			}, backend.QueryOptions{})
			if err != nil {
				return nil, err
			}
			if len(rows) == 0 {
				return nil, &backend.Error{
					Message: fmt.Sprintf("project %s not found", projectID),
					Status:  404,
					Code:    "NOT_FOUND",
				}
			}
			return rows[0], nil
		},
	})

	r.Register(Definition{
		Name:        "update_project",
		Title:       "Update a project",
		Description: "Rename a project or edit its description. May require user confirmation.",
		Group:       GroupProjects,
		InputSchema: objectSchema(map[string]any{
			"project_id":         map[string]any{"type": "string"},
			"name":               map[string]any{"type": "string"},
			"description":        map[string]any{"type": "string"},
			"confirmation_token": map[string]any{"type": "string"},
		}, "project_id"),
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			m, err := decodeArgs(args)
			if err != nil {
				return nil, err
			}
			result, err := deps.Client.Mutate(ctx, "projects", http.MethodPatch,
				map[string]string{"id": "eq." + argString(m, "project_id")},
				Sanitize(m, updateProjectParams),
				argString(m, "confirmation_token"))
			if err != nil {
				return nil, err
			}
			if result.Confirmation != nil {
				return relayConfirmation(result.Confirmation), nil
			}
			return map[string]any{"updated": result.Rows, "count": len(result.Rows)}, nil
		},
	})

	r.Register(Definition{
		Name:        "delete_project",
		Title:       "Delete a project",
		Description: "Delete a project. Songs in it are kept. Requires user confirmation.",
		Group:       GroupProjects,
		InputSchema: objectSchema(map[string]any{
			"project_id":         map[string]any{"type": "string"},
			"confirmation_token": map[string]any{"type": "string"},
		}, "project_id"),
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			m, err := decodeArgs(args)
			if err != nil {
				return nil, err
			}
			projectID := argString(m, "project_id")

			result, err := deps.Client.Mutate(ctx, "projects", http.MethodDelete,
				map[string]string{"id": "eq." + projectID},
				nil,
				argString(m, "confirmation_token"))
			if err != nil {
				return nil, err
			}
			if result.Confirmation != nil {
				return relayConfirmation(result.Confirmation), nil
			}
			return map[string]any{"deleted": true, "project_id": projectID}, nil
		},
	})

	r.Register(Definition{
		Name:        "add_song_to_project",
		Title:       "Add song to project",
		Description: "Add an existing song to a project. May require user confirmation.",
		Group:       GroupProjects,
		InputSchema: objectSchema(map[string]any{
			"project_id":         map[string]any{"type": "string"},
			"song_id":            map[string]any{"type": "string"},
			"confirmation_token": map[string]any{"type": "string"},
		}, "project_id", "song_id"),
		Handler: rpcMutationHandler(deps, "addSongToProject", projectSongParams),
	})

	r.Register(Definition{
		Name:        "remove_song_from_project",
		Title:       "Remove song from project",
		Description: "Remove a song from a project without deleting it. May require user confirmation.",
		Group:       GroupProjects,
		InputSchema: objectSchema(map[string]any{
			"project_id":         map[string]any{"type": "string"},
			"song_id":            map[string]any{"type": "string"},
			"confirmation_token": map[string]any{"type": "string"},
		}, "project_id", "song_id"),
		Handler: rpcMutationHandler(deps, "removeSongFromProject", projectSongParams),
	})
}

// rpcMutationHandler builds the standard handler for a confirmation-gated RPC
// mutation: sanitize, forward, classify, relay or decode.
func rpcMutationHandler(deps Deps, method string, allowed []string) Handler {
	return func(ctx context.Context, args json.RawMessage) (any, error) {
		m, err := decodeArgs(args)
		if err != nil {
			return nil, err
		}
		raw, err := deps.Client.RPC(ctx, method, Sanitize(m, allowed))
		if err != nil {
			return nil, err
		}
		out := backend.ClassifyOutcome(raw)
		if !out.Confirmed() {
			return relayConfirmation(out.Confirmation), nil
		}
		return decodePayload(out.Payload)
	}
}
