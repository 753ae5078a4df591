package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/musehub/musehub/internal/backend"
)

var suggestStylesParams = []string{"description", "count"}

func registerStyles(r *Registry, deps Deps) {
	r.Register(Definition{
		Name:        "list_styles",
		Title:       "List styles",
		Description: "Browse the style catalog, optionally filtered by genre family.",
		Group:       GroupStyles,
		InputSchema: objectSchema(map[string]any{
			"genre": map[string]any{"type": "string"},
			"limit": map[string]any{"type": "integer"},
		}),
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			m, err := decodeArgs(args)
			if err != nil {
				return nil, err
			}

			filters := map[string]string{
				"select": "id,name,genre,description",
				"order":  "name.asc",
				"limit":  strconv.Itoa(limitOrDefault(m, 50)),
			}
			if genre := argString(m, "genre"); genre != "" {
				filters["genre"] = "eq." + genre
			}

			rows, err := deps.Client.Query(ctx, "styles", filters, backend.QueryOptions{})
			if err != nil {
				return nil, err
			}
			return map[string]any{"styles": rows, "count": len(rows)}, nil
		},
	})

	r.Register(Definition{
		Name:        "get_style",
		Title:       "Get a style",
		Description: "Fetch one style with its full prompt description.",
		Group:       GroupStyles,
		InputSchema: objectSchema(map[string]any{
			"style_id": map[string]any{"type": "string"},
		}, "style_id"),
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			m, err := decodeArgs(args)
			if err != nil {
				return nil, err
			}
			styleID := argString(m, "style_id")

			rows, err := deps.Client.Query(ctx, "styles", map[string]string{
				"id":     "eq." + styleID,
				"select": "*",
			}, backend.QueryOptions{})
			if err != nil {
				return nil, err
			}
			if len(rows) == 0 {
				return nil, &backend.Error{
					Message: fmt.Sprintf("style %s not found", styleID),
					Status:  404,
					Code:    "NOT_FOUND",
				}
			}
			return rows[0], nil
		},
	})

	r.Register(Definition{
		Name:        "suggest_styles",
		Title:       "Suggest styles",
		Description: "Ask the backend to suggest styles matching a mood or description.",
		Group:       GroupStyles,
		InputSchema: objectSchema(map[string]any{
			"description": map[string]any{"type": "string"},
			"count":       map[string]any{"type": "integer"},
		}, "description"),
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			m, err := decodeArgs(args)
			if err != nil {
				return nil, err
			}
			raw, err := deps.Client.RPC(ctx, "suggestStyles", Sanitize(m, suggestStylesParams))
			if err != nil {
				return nil, err
			}
			return decodePayload(raw)
		},
	})
}
