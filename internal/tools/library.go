package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/musehub/musehub/internal/backend"
)

const songSelect = "id,title,style,status,duration_seconds,project_id,created_at"

var updateSongParams = []string{"title", "style", "lyrics", "tags"}

func registerLibrary(r *Registry, deps Deps) {
	r.Register(Definition{
		Name:        "list_songs",
		Title:       "List songs",
		Description: "List the caller's songs, optionally filtered by status or style.",
		Group:       GroupLibrary,
		InputSchema: objectSchema(map[string]any{
			"status": map[string]any{"type": "string", "enum": []string{"pending", "generating", "complete", "failed"}},
			"style":  map[string]any{"type": "string"},
			"limit":  map[string]any{"type": "integer"},
		}),
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			m, err := decodeArgs(args)
			if err != nil {
				return nil, err
			}

			filters := map[string]string{
				"select": songSelect,
				"order":  "created_at.desc",
				"limit":  strconv.Itoa(limitOrDefault(m, 20)),
			}
			if status := argString(m, "status"); status != "" {
				filters["status"] = "eq." + status
			}
			if style := argString(m, "style"); style != "" {
				filters["style"] = "eq." + style
			}

			rows, err := deps.Client.Query(ctx, "songs", filters, backend.QueryOptions{})
			if err != nil {
				return nil, err
			}
			return map[string]any{"songs": rows, "count": len(rows)}, nil
		},
	})

	r.Register(Definition{
		Name:        "get_song",
		Title:       "Get a song",
		Description: "Fetch one song with full detail.",
		Group:       GroupLibrary,
		InputSchema: objectSchema(map[string]any{
			"song_id": map[string]any{"type": "string"},
		}, "song_id"),
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			m, err := decodeArgs(args)
			if err != nil {
				return nil, err
			}
			songID := argString(m, "song_id")

			rows, err := deps.Client.Query(ctx, "songs", map[string]string{
				"id":     "eq." + songID,
				"select": "*",
			}, backend.QueryOptions{})
			if err != nil {
				return nil, err
			}
			if len(rows) == 0 {
				return nil, &backend.Error{
					Message: fmt.Sprintf("song %s not found", songID),
					Status:  404,
					Code:    "NOT_FOUND",
				}
			}
			return rows[0], nil
		},
	})

	r.Register(Definition{
		Name:        "search_songs",
		Title:       "Search songs",
		Description: "Search songs by title.",
		Group:       GroupLibrary,
		InputSchema: objectSchema(map[string]any{
			"query": map[string]any{"type": "string"},
			"limit": map[string]any{"type": "integer"},
		}, "query"),
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			m, err := decodeArgs(args)
			if err != nil {
				return nil, err
			}

			rows, err := deps.Client.Query(ctx, "songs", map[string]string{
				"title":  "ilike.*" + argString(m, "query") + "*",
				"select": songSelect,
				"order":  "created_at.desc",
				"limit":  strconv.Itoa(limitOrDefault(m, 20)),
			}, backend.QueryOptions{})
			if err != nil {
				return nil, err
			}
			return map[string]any{"songs": rows, "count": len(rows)}, nil
		},
	})

	r.Register(Definition{
		Name:        "update_song",
		Title:       "Update a song",
		Description: "Update a song's metadata. May require user confirmation.",
		Group:       GroupLibrary,
		InputSchema: objectSchema(map[string]any{
			"song_id":            map[string]any{"type": "string"},
			"title":              map[string]any{"type": "string"},
			"style":              map[string]any{"type": "string"},
			"lyrics":             map[string]any{"type": "string"},
			"tags":               map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"confirmation_token": map[string]any{"type": "string"},
		}, "song_id"),
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			m, err := decodeArgs(args)
			if err != nil {
				return nil, err
			}

			result, err := deps.Client.Mutate(ctx, "songs", http.MethodPatch,
				map[string]string{"id": "eq." + argString(m, "song_id")},
				Sanitize(m, updateSongParams),
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
		Name:        "delete_song",
		Title:       "Delete a song",
		Description: "Permanently delete a song. Requires user confirmation.",
		Group:       GroupLibrary,
		InputSchema: objectSchema(map[string]any{
			"song_id":            map[string]any{"type": "string"},
			"confirmation_token": map[string]any{"type": "string"},
		}, "song_id"),
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			m, err := decodeArgs(args)
			if err != nil {
				return nil, err
			}
			songID := argString(m, "song_id")

			result, err := deps.Client.Mutate(ctx, "songs", http.MethodDelete,
				map[string]string{"id": "eq." + songID},
				nil,
				argString(m, "confirmation_token"))
			if err != nil {
				return nil, err
			}
			if result.Confirmation != nil {
				return relayConfirmation(result.Confirmation), nil
			}
			return map[string]any{"deleted": true, "song_id": songID}, nil
		},
	})
}

func limitOrDefault(m map[string]any, fallback int) int {
	if v := argInt(m, "limit"); v > 0 {
		return v
	}
	return fallback
}
