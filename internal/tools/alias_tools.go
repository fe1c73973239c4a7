package tools

import (
	"context"
	"fmt"

	"github.com/hearthd/hearth/internal/aliases"
)

func (r *Registry) registerAliasTools() {
	r.Register(&Tool{
		Name:        "remember_alias",
		Description: "Remember a name the user uses for a device, so it resolves directly next time. Use when the user says things like 'that's what I call the big lamp'.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name": map[string]any{
					"type":        "string",
					"description": "The name the user uses (e.g., 'the big lamp')",
				},
				"entity": map[string]any{
					"type":        "string",
					"description": "The entity it refers to: entity ID or a description that resolves unambiguously",
				},
			},
			"required": []string{"name", "entity"},
		},
		Handler: r.handleRememberAlias,
	})

	r.Register(&Tool{
		Name:        "forget_alias",
		Description: "Forget a previously learned device name.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name": map[string]any{
					"type":        "string",
					"description": "The alias to forget",
				},
			},
			"required": []string{"name"},
		},
		Handler: r.handleForgetAlias,
	})

	r.Register(&Tool{
		Name:        "list_aliases",
		Description: "List all learned device names and the entities they point to.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		Handler: r.handleListAliases,
	})
}

func (r *Registry) handleRememberAlias(ctx context.Context, args map[string]any) (string, error) {
	name := stringArg(args, "name")
	target := stringArg(args, "entity")
	if name == "" || target == "" {
		return validationResult("name and entity are required"), nil
	}

	// The target must resolve to an entity the hub actually has;
	// aliases to nowhere would poison future resolution.
	entity, errJSON := r.resolveEntity(ctx, target, "")
	if errJSON != "" {
		return errJSON, nil
	}

	if err := r.aliases.Remember(name, entity.ID); err != nil {
		return errorResult("persist_failed", err.Error(), nil), nil
	}

	r.logger.Info("alias learned", "alias", aliases.Normalize(name), "entity", entity.ID)
	return okResult(map[string]any{
		"alias":     aliases.Normalize(name),
		"entity_id": entity.ID,
		"name":      entity.Name,
	}), nil
}

func (r *Registry) handleForgetAlias(ctx context.Context, args map[string]any) (string, error) {
	name := stringArg(args, "name")
	if name == "" {
		return validationResult("name is required"), nil
	}

	deleted, err := r.aliases.Forget(name)
	if err != nil {
		return errorResult("persist_failed", err.Error(), nil), nil
	}
	if !deleted {
		return errorResult("not_found", fmt.Sprintf("no alias named %q", aliases.Normalize(name)), nil), nil
	}

	return okResult(map[string]any{"alias": aliases.Normalize(name)}), nil
}

func (r *Registry) handleListAliases(ctx context.Context, args map[string]any) (string, error) {
	all, err := r.aliases.All()
	if err != nil {
		return errorResult("persist_failed", err.Error(), nil), nil
	}

	type entry struct {
		Alias    string `json:"alias"`
		EntityID string `json:"entity_id"`
	}
	out := make([]entry, 0, len(all))
	for _, a := range all {
		out = append(out, entry{Alias: a.Name, EntityID: a.EntityID})
	}

	return okResult(map[string]any{"aliases": out}), nil
}
