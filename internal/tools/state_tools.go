package tools

import (
	"context"
	"fmt"
	"time"
)

const listEntitiesCap = 25

func (r *Registry) registerStateTools() {
	r.Register(&Tool{
		Name:        "get_state",
		Description: "Get the current state of a device or sensor. Accepts an entity ID, a learned alias, or a description like 'kitchen light'.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"entity": map[string]any{
					"type":        "string",
					"description": "Entity ID, alias, or description (e.g., light.kitchen, 'the big lamp', 'front door lock')",
				},
			},
			"required": []string{"entity"},
		},
		Handler: r.handleGetState,
	})

	r.Register(&Tool{
		Name:        "list_entities",
		Description: "List entities, optionally filtered by domain (light, switch, lock, climate, sensor, ...). Use this to discover what's available.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"domain": map[string]any{
					"type":        "string",
					"description": "Domain to filter by; omit for all domains",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": fmt.Sprintf("Maximum entities to return (default and cap: %d)", listEntitiesCap),
				},
			},
		},
		Handler: r.handleListEntities,
	})

	r.Register(&Tool{
		Name:        "get_history",
		Description: "Get recent state history for one entity. Useful for questions like 'when did the front door last open'.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"entity": map[string]any{
					"type":        "string",
					"description": "Entity ID, alias, or description",
				},
				"hours": map[string]any{
					"type":        "integer",
					"description": "How many hours back to look (1-168, default 24)",
				},
			},
			"required": []string{"entity"},
		},
		Handler: r.handleGetHistory,
	})
}

func (r *Registry) handleGetState(ctx context.Context, args map[string]any) (string, error) {
	query := stringArg(args, "entity")
	if query == "" {
		return validationResult("entity is required"), nil
	}

	entity, errJSON := r.resolveEntity(ctx, query, "")
	if errJSON != "" {
		return errJSON, nil
	}

	// Read live from the hub; the snapshot may be hours old.
	state, err := r.hub.GetState(ctx, entity.ID)
	if err != nil {
		return hubErrorResult(err), nil
	}

	return okResult(map[string]any{
		"entity_id":    state.EntityID,
		"name":         entity.Name,
		"state":        state.State,
		"attributes":   state.Attributes,
		"last_changed": state.LastChanged,
	}), nil
}

func (r *Registry) handleListEntities(ctx context.Context, args map[string]any) (string, error) {
	domain := stringArg(args, "domain")
	limit := intArg(args, "limit", listEntitiesCap)
	if limit <= 0 || limit > listEntitiesCap {
		limit = listEntitiesCap
	}

	snap, errJSON := r.snapshot(ctx)
	if errJSON != "" {
		return errJSON, nil
	}

	type entry struct {
		EntityID string `json:"entity_id"`
		Name     string `json:"name"`
		State    string `json:"state"`
	}

	var out []entry
	total := 0
	for _, e := range snap.Entities {
		if domain != "" && e.Domain != domain {
			continue
		}
		total++
		if len(out) < limit {
			out = append(out, entry{EntityID: e.ID, Name: e.Name, State: e.State})
		}
	}

	return okResult(map[string]any{
		"entities":  out,
		"total":     total,
		"truncated": total > len(out),
	}), nil
}

func (r *Registry) handleGetHistory(ctx context.Context, args map[string]any) (string, error) {
	query := stringArg(args, "entity")
	if query == "" {
		return validationResult("entity is required"), nil
	}
	hours := intArg(args, "hours", 24)
	if hours < 1 || hours > 168 {
		return validationResult("hours must be between 1 and 168"), nil
	}

	entity, errJSON := r.resolveEntity(ctx, query, "")
	if errJSON != "" {
		return errJSON, nil
	}

	start := time.Now().Add(-time.Duration(hours) * time.Hour)
	history, err := r.hub.GetHistory(ctx, entity.ID, start)
	if err != nil {
		return hubErrorResult(err), nil
	}

	type change struct {
		State string    `json:"state"`
		At    time.Time `json:"at"`
	}
	changes := make([]change, 0, len(history))
	for _, s := range history {
		changes = append(changes, change{State: s.State, At: s.LastChanged})
	}

	return okResult(map[string]any{
		"entity_id": entity.ID,
		"hours":     hours,
		"changes":   changes,
	}), nil
}
