package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/musehub/musehub/internal/backend"
)

// Generation enqueue endpoints, one per provider.
const (
	enqueueStandardTarget = "/functions/v1/enqueue-standard"
	enqueueProTarget      = "/functions/v1/enqueue-pro"
)

// EnqueueResult is the backend's answer to a generation enqueue request.
type EnqueueResult struct {
	Success  bool   `json:"success"`
	Enqueued int    `json:"enqueued"`
	Skipped  int    `json:"skipped"`
	Total    int    `json:"total"`
	Tier     string `json:"tier"`
}

var (
	generateSongParams    = []string{"title", "style", "lyrics", "instrumental", "duration_seconds", "temperature", "confirmation_token"}
	enqueueStandardParams = []string{"song_ids", "temperature", "duration_seconds"}
	enqueueProParams      = []string{"song_ids", "quality", "stem_count"}
	extendSongParams      = []string{"song_id", "duration_seconds", "prompt", "confirmation_token"}
)

func registerGeneration(r *Registry, deps Deps) {
	r.Register(Definition{
		Name:        "generate_song",
		Title:       "Generate a song",
		Description: "Create a song from a style and optional lyrics, then enqueue it for generation on the standard provider.",
		Group:       GroupGeneration,
		InputSchema: objectSchema(map[string]any{
			"title":              map[string]any{"type": "string", "description": "Song title"},
			"style":              map[string]any{"type": "string", "description": "Style or genre prompt"},
			"lyrics":             map[string]any{"type": "string", "description": "Full lyrics; omit for generated lyrics"},
			"instrumental":       map[string]any{"type": "boolean"},
			"duration_seconds":   map[string]any{"type": "integer"},
			"temperature":        map[string]any{"type": "number"},
			"confirmation_token": map[string]any{"type": "string"},
		}, "style"),
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			m, err := decodeArgs(args)
			if err != nil {
				return nil, err
			}
			params := Sanitize(m, generateSongParams)

			raw, err := deps.Client.RPC(ctx, "createSong", params)
			if err != nil {
				return nil, err
			}
			out := backend.ClassifyOutcome(raw)
			if !out.Confirmed() {
				return relayConfirmation(out.Confirmation), nil
			}

			var created struct {
				ID string `json:"id"`
			}
			if err := json.Unmarshal(out.Payload, &created); err != nil || created.ID == "" {
				return nil, backend.Wrap(fmt.Errorf("createSong returned no song id"))
			}

			enqueueBody := Sanitize(m, []string{"temperature", "duration_seconds"})
			enqueueBody["song_ids"] = []string{created.ID}
			queue, enqueueErr := enqueue(ctx, deps, enqueueStandardTarget, enqueueBody)
			if enqueueErr != nil {
				// The song exists even though enqueueing failed; the agent
				// must learn the id so the song is never orphaned.
				be := backend.Wrap(enqueueErr)
				deps.Logger.Warn("song created but enqueue failed",
					"song_id", created.ID,
					"status", be.Status,
					"code", be.Code,
				)
				return map[string]any{
					"song_id":    created.ID,
					"enqueued":   false,
					"error":      be.DisplayMessage(),
					"error_code": be.Code,
				}, nil
			}

			return map[string]any{
				"song_id":  created.ID,
				"enqueued": true,
				"queue":    queue,
			}, nil
		},
	})

	r.Register(Definition{
		Name:        "enqueue_songs",
		Title:       "Enqueue songs (standard)",
		Description: "Enqueue existing songs for generation on the standard provider.",
		Group:       GroupGeneration,
		InputSchema: objectSchema(map[string]any{
			"song_ids":         map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"temperature":      map[string]any{"type": "number"},
			"duration_seconds": map[string]any{"type": "integer"},
		}, "song_ids"),
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			m, err := decodeArgs(args)
			if err != nil {
				return nil, err
			}
			return enqueue(ctx, deps, enqueueStandardTarget, Sanitize(m, enqueueStandardParams))
		},
	})

	r.Register(Definition{
		Name:        "enqueue_songs_pro",
		Title:       "Enqueue songs (pro)",
		Description: "Enqueue existing songs for generation on the pro provider with quality and stem controls.",
		Group:       GroupGeneration,
		InputSchema: objectSchema(map[string]any{
			"song_ids":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"quality":    map[string]any{"type": "string", "enum": []string{"draft", "high", "master"}},
			"stem_count": map[string]any{"type": "integer"},
		}, "song_ids"),
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			m, err := decodeArgs(args)
			if err != nil {
				return nil, err
			}
			return enqueue(ctx, deps, enqueueProTarget, Sanitize(m, enqueueProParams))
		},
	})

	r.Register(Definition{
		Name:        "check_song_status",
		Title:       "Check song status",
		Description: "Check the generation status of a single song.",
		Group:       GroupGeneration,
		InputSchema: objectSchema(map[string]any{
			"song_id": map[string]any{"type": "string"},
		}, "song_id"),
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			m, err := decodeArgs(args)
			if err != nil {
				return nil, err
			}
			songID := argString(m, "song_id")

			raw, err := deps.Client.RPC(ctx, "getSongStatus", Sanitize(m, []string{"song_id"}))
			if err != nil {
				be := backend.Wrap(err)
				if be.Status == 404 {
					// A missing song is an answer, not a failure: polling an
					// id that was never created (or was deleted) reports
					// not_found so the agent can stop polling.
					return map[string]any{"song_id": songID, "status": "not_found"}, nil
				}
				return nil, be
			}
			return decodePayload(raw)
		},
	})

	r.Register(Definition{
		Name:        "check_song_status_bulk",
		Title:       "Check song statuses",
		Description: "Check generation status for several songs at once and summarize progress.",
		Group:       GroupGeneration,
		InputSchema: objectSchema(map[string]any{
			"song_ids": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		}, "song_ids"),
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			m, err := decodeArgs(args)
			if err != nil {
				return nil, err
			}
			ids := argStringSlice(m, "song_ids")
			if len(ids) == 0 {
				return nil, &backend.Error{Message: "song_ids must not be empty", Status: 400, Code: "INVALID_ARGUMENTS"}
			}

			rows, err := deps.Client.Query(ctx, "songs", map[string]string{
				"id":     "in.(" + strings.Join(ids, ",") + ")",
				"select": "id,status",
			}, backend.QueryOptions{})
			if err != nil {
				return nil, err
			}

			statusByID := make(map[string]string, len(rows))
			for _, row := range rows {
				id, _ := row["id"].(string)
				status, _ := row["status"].(string)
				statusByID[id] = status
			}

			completed := 0
			pending := make([]string, 0, len(ids))
			songs := make([]map[string]any, 0, len(ids))
			for _, id := range ids {
				status, ok := statusByID[id]
				if !ok {
					status = "not_found"
				}
				songs = append(songs, map[string]any{"song_id": id, "status": status})
				if status == "complete" {
					completed++
				} else {
					pending = append(pending, id)
				}
			}

			return map[string]any{
				"total":     len(ids),
				"completed": completed,
				"all_done":  completed == len(ids),
				"pending":   pending,
				"songs":     songs,
			}, nil
		},
	})

	r.Register(Definition{
		Name:        "extend_song",
		Title:       "Extend a song",
		Description: "Extend a completed song by a number of seconds. May require user confirmation.",
		Group:       GroupGeneration,
		InputSchema: objectSchema(map[string]any{
			"song_id":            map[string]any{"type": "string"},
			"duration_seconds":   map[string]any{"type": "integer"},
			"prompt":             map[string]any{"type": "string"},
			"confirmation_token": map[string]any{"type": "string"},
		}, "song_id"),
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			m, err := decodeArgs(args)
			if err != nil {
				return nil, err
			}
			raw, err := deps.Client.RPC(ctx, "extendSong", Sanitize(m, extendSongParams))
			if err != nil {
				return nil, err
			}
			out := backend.ClassifyOutcome(raw)
			if !out.Confirmed() {
				return relayConfirmation(out.Confirmation), nil
			}
			return decodePayload(out.Payload)
		},
	})
}

func enqueue(ctx context.Context, deps Deps, target string, body map[string]any) (*EnqueueResult, error) {
	raw, err := deps.Client.Call(ctx, target, body, backend.CallOptions{})
	if err != nil {
		return nil, err
	}
	var result EnqueueResult
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &result); err != nil {
			return nil, backend.Wrap(fmt.Errorf("decode enqueue response: %w", err))
		}
	}
	return &result, nil
}
