package tools

import (
	"context"
	"fmt"
	"strings"
)

// validHVACModes are the hvac_mode values set_climate accepts.
var validHVACModes = map[string]bool{
	"off":       true,
	"heat":      true,
	"cool":      true,
	"heat_cool": true,
	"auto":      true,
	"dry":       true,
	"fan_only":  true,
}

func (r *Registry) registerControlTools() {
	entityParam := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"entity": map[string]any{
				"type":        "string",
				"description": "Entity ID, alias, or description",
			},
		},
		"required": []string{"entity"},
	}

	r.Register(&Tool{
		Name:        "turn_on",
		Description: "Turn on a device (light, switch, fan, ...).",
		Parameters:  entityParam,
		Handler:     r.switchHandler("turn_on"),
	})
	r.Register(&Tool{
		Name:        "turn_off",
		Description: "Turn off a device.",
		Parameters:  entityParam,
		Handler:     r.switchHandler("turn_off"),
	})
	r.Register(&Tool{
		Name:        "toggle",
		Description: "Toggle a device on or off.",
		Parameters:  entityParam,
		Handler:     r.switchHandler("toggle"),
	})

	r.Register(&Tool{
		Name:        "lock_door",
		Description: "Lock a door lock.",
		Parameters:  entityParam,
		Handler:     r.lockHandler("lock"),
	})
	r.Register(&Tool{
		Name:        "unlock_door",
		Description: "Unlock a door lock. Only use when the user explicitly asks to unlock.",
		Parameters:  entityParam,
		Handler:     r.lockHandler("unlock"),
	})

	r.Register(&Tool{
		Name:        "set_climate",
		Description: "Set a thermostat's target temperature and/or HVAC mode.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"entity": map[string]any{
					"type":        "string",
					"description": "Thermostat entity ID, alias, or description",
				},
				"temperature": map[string]any{
					"type":        "number",
					"description": "Target temperature in the hub's configured unit",
				},
				"hvac_mode": map[string]any{
					"type":        "string",
					"description": "One of: off, heat, cool, heat_cool, auto, dry, fan_only",
				},
			},
			"required": []string{"entity"},
		},
		Handler: r.handleSetClimate,
	})

	r.Register(&Tool{
		Name:        "trigger_automation",
		Description: "Trigger a Home Assistant automation by name or entity ID.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"automation": map[string]any{
					"type":        "string",
					"description": "Automation entity ID, alias, or name",
				},
			},
			"required": []string{"automation"},
		},
		Handler: r.handleTriggerAutomation,
	})

	r.Register(&Tool{
		Name:        "call_service",
		Description: "Call an arbitrary Home Assistant service. Use the specific tools above when they fit; this is the escape hatch for everything else.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"domain": map[string]any{
					"type":        "string",
					"description": "Service domain (e.g., light, media_player, script)",
				},
				"service": map[string]any{
					"type":        "string",
					"description": "Service name (e.g., turn_on, media_pause)",
				},
				"entity": map[string]any{
					"type":        "string",
					"description": "Target entity ID, alias, or description",
				},
				"data": map[string]any{
					"type":        "object",
					"description": "Additional service data (e.g., brightness, color_temp)",
				},
			},
			"required": []string{"domain", "service"},
		},
		Handler: r.handleCallService,
	})
}

// switchHandler builds a handler for turn_on/turn_off/toggle. The
// homeassistant domain accepts these services for any switchable entity.
func (r *Registry) switchHandler(service string) func(context.Context, map[string]any) (string, error) {
	return func(ctx context.Context, args map[string]any) (string, error) {
		query := stringArg(args, "entity")
		if query == "" {
			return validationResult("entity is required"), nil
		}

		entity, errJSON := r.resolveEntity(ctx, query, "")
		if errJSON != "" {
			return errJSON, nil
		}

		changed, err := r.hub.CallService(ctx, "homeassistant", service,
			map[string]any{"entity_id": entity.ID})
		if err != nil {
			return hubErrorResult(err), nil
		}

		return okResult(map[string]any{
			"entity_id": entity.ID,
			"name":      entity.Name,
			"service":   service,
			"changed":   len(changed),
		}), nil
	}
}

func (r *Registry) lockHandler(service string) func(context.Context, map[string]any) (string, error) {
	return func(ctx context.Context, args map[string]any) (string, error) {
		query := stringArg(args, "entity")
		if query == "" {
			return validationResult("entity is required"), nil
		}

		entity, errJSON := r.resolveEntity(ctx, query, "lock")
		if errJSON != "" {
			return errJSON, nil
		}
		if entity.Domain != "lock" {
			return validationResult(fmt.Sprintf("%s is a %s, not a lock", entity.ID, entity.Domain)), nil
		}

		if _, err := r.hub.CallService(ctx, "lock", service,
			map[string]any{"entity_id": entity.ID}); err != nil {
			return hubErrorResult(err), nil
		}

		return okResult(map[string]any{
			"entity_id": entity.ID,
			"name":      entity.Name,
			"service":   service,
		}), nil
	}
}

func (r *Registry) handleSetClimate(ctx context.Context, args map[string]any) (string, error) {
	query := stringArg(args, "entity")
	if query == "" {
		return validationResult("entity is required"), nil
	}

	temperature, hasTemp := floatArg(args, "temperature")
	hvacMode := stringArg(args, "hvac_mode")

	if !hasTemp && hvacMode == "" {
		return validationResult("provide temperature, hvac_mode, or both"), nil
	}
	if hvacMode != "" && !validHVACModes[hvacMode] {
		return validationResult(fmt.Sprintf("invalid hvac_mode %q", hvacMode)), nil
	}

	entity, errJSON := r.resolveEntity(ctx, query, "climate")
	if errJSON != "" {
		return errJSON, nil
	}
	if entity.Domain != "climate" {
		return validationResult(fmt.Sprintf("%s is a %s, not a thermostat", entity.ID, entity.Domain)), nil
	}

	if hvacMode != "" {
		if _, err := r.hub.CallService(ctx, "climate", "set_hvac_mode",
			map[string]any{"entity_id": entity.ID, "hvac_mode": hvacMode}); err != nil {
			return hubErrorResult(err), nil
		}
	}
	if hasTemp {
		if _, err := r.hub.CallService(ctx, "climate", "set_temperature",
			map[string]any{"entity_id": entity.ID, "temperature": temperature}); err != nil {
			return hubErrorResult(err), nil
		}
	}

	result := map[string]any{"entity_id": entity.ID, "name": entity.Name}
	if hasTemp {
		result["temperature"] = temperature
	}
	if hvacMode != "" {
		result["hvac_mode"] = hvacMode
	}
	return okResult(result), nil
}

func (r *Registry) handleTriggerAutomation(ctx context.Context, args map[string]any) (string, error) {
	query := stringArg(args, "automation")
	if query == "" {
		return validationResult("automation is required"), nil
	}

	entity, errJSON := r.resolveEntity(ctx, query, "automation")
	if errJSON != "" {
		return errJSON, nil
	}

	if _, err := r.hub.CallService(ctx, "automation", "trigger",
		map[string]any{"entity_id": entity.ID}); err != nil {
		return hubErrorResult(err), nil
	}

	return okResult(map[string]any{
		"entity_id": entity.ID,
		"name":      entity.Name,
	}), nil
}

func (r *Registry) handleCallService(ctx context.Context, args map[string]any) (string, error) {
	domain := stringArg(args, "domain")
	service := stringArg(args, "service")
	if !validServiceName(domain) || !validServiceName(service) {
		return validationResult("domain and service must be non-empty lowercase identifiers"), nil
	}

	data := map[string]any{}
	if extra, ok := args["data"].(map[string]any); ok {
		for k, v := range extra {
			data[k] = v
		}
	}

	if query := stringArg(args, "entity"); query != "" {
		entity, errJSON := r.resolveEntity(ctx, query, "")
		if errJSON != "" {
			return errJSON, nil
		}
		data["entity_id"] = entity.ID
	}

	changed, err := r.hub.CallService(ctx, domain, service, data)
	if err != nil {
		return hubErrorResult(err), nil
	}

	return okResult(map[string]any{
		"domain":  domain,
		"service": service,
		"changed": len(changed),
	}), nil
}

// validServiceName accepts lowercase identifiers like "turn_on".
func validServiceName(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '_' {
			return false
		}
	}
	return !strings.HasPrefix(s, "_") && !strings.HasSuffix(s, "_")
}
