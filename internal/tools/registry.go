// Package tools defines the tools the agent can call against the hub.
// Every tool returns a JSON result with a "status" field so the model
// always sees a structured outcome, including failures it can react to
// (ambiguous references, stale aliases, unreachable hub).
package tools

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/hearthd/hearth/internal/aliases"
	"github.com/hearthd/hearth/internal/entities"
	"github.com/hearthd/hearth/internal/homeassistant"
	"github.com/hearthd/hearth/internal/llm"
	"github.com/hearthd/hearth/internal/resolve"
)

// Hub is the subset of the Home Assistant client the tools need.
type Hub interface {
	GetState(ctx context.Context, entityID string) (*homeassistant.State, error)
	CallService(ctx context.Context, domain, service string, data map[string]any) ([]homeassistant.State, error)
	GetHistory(ctx context.Context, entityID string, start time.Time) ([]homeassistant.State, error)
}

// AliasStore is the subset of the alias store the tools need.
type AliasStore interface {
	Remember(name, entityID string) error
	Forget(name string) (bool, error)
	All() ([]aliases.Alias, error)
}

// Tool represents a callable tool.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
	Handler     func(ctx context.Context, args map[string]any) (string, error)
}

// Deps carries the collaborators the tool handlers use.
type Deps struct {
	Hub      Hub
	Cache    *entities.Cache
	Resolver *resolve.Resolver
	Aliases  AliasStore
	Logger   *slog.Logger
}

// Registry holds available tools in registration order.
type Registry struct {
	tools map[string]*Tool
	order []string

	hub      Hub
	cache    *entities.Cache
	resolver *resolve.Resolver
	aliases  AliasStore
	logger   *slog.Logger
}

// NewRegistry creates a registry with all built-in tools registered.
func NewRegistry(deps Deps) *Registry {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	r := &Registry{
		tools:    make(map[string]*Tool),
		hub:      deps.Hub,
		cache:    deps.Cache,
		resolver: deps.Resolver,
		aliases:  deps.Aliases,
		logger:   logger,
	}
	r.registerStateTools()
	r.registerControlTools()
	r.registerAliasTools()
	return r
}

// Register adds a tool. Re-registering a name replaces it in place.
func (r *Registry) Register(t *Tool) {
	if _, exists := r.tools[t.Name]; !exists {
		r.order = append(r.order, t.Name)
	}
	r.tools[t.Name] = t
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (*Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Defs returns the tool definitions to offer the model.
func (r *Registry) Defs() []llm.ToolDef {
	defs := make([]llm.ToolDef, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		defs = append(defs, llm.ToolDef{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.Parameters,
		})
	}
	return defs
}

// Execute runs one tool. The returned string is always a JSON outcome;
// a non-nil error means the tool itself is unknown or broke internally,
// not that the operation failed in a way the model should handle.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (string, error) {
	t, ok := r.tools[name]
	if !ok {
		return "", fmt.Errorf("unknown tool %q", name)
	}

	started := time.Now()
	result, err := t.Handler(ctx, args)
	r.logger.Debug("tool executed",
		"tool", name,
		"duration", time.Since(started).Round(time.Millisecond),
		"error", err,
	)
	return result, err
}

// snapshot returns a usable entity snapshot, refreshing if needed.
func (r *Registry) snapshot(ctx context.Context) (*entities.Snapshot, string) {
	if err := r.cache.EnsureFresh(ctx); err != nil && r.cache.Snapshot() == nil {
		return nil, hubErrorResult(err)
	}
	snap := r.cache.Snapshot()
	if snap == nil {
		return nil, errorResult("hub_unreachable", "no entity data available yet", nil)
	}
	return snap, ""
}

// resolveEntity resolves a user-facing entity reference, returning
// either the entity or a ready-to-return error outcome.
func (r *Registry) resolveEntity(ctx context.Context, query, domain string) (entities.Entity, string) {
	snap, errJSON := r.snapshot(ctx)
	if errJSON != "" {
		return entities.Entity{}, errJSON
	}

	res, err := r.resolver.ResolveIn(query, domain, snap)
	if err != nil {
		return entities.Entity{}, errorResult("resolution_failed", err.Error(), nil)
	}

	switch res.Kind {
	case resolve.KindExact, resolve.KindAliased, resolve.KindMatched:
		return res.Entity, ""
	case resolve.KindAmbiguous:
		return entities.Entity{}, errorResult("ambiguous",
			fmt.Sprintf("%q matches several entities; ask the user which one they mean", query),
			map[string]any{"candidates": res.Candidates})
	case resolve.KindStale:
		return entities.Entity{}, errorResult("stale_alias",
			fmt.Sprintf("alias %q points to %s, which no longer exists on the hub", res.Alias, res.StaleEntityID),
			map[string]any{"alias": res.Alias, "entity_id": res.StaleEntityID})
	default:
		return entities.Entity{}, errorResult("not_found",
			fmt.Sprintf("no entity matches %q", query), nil)
	}
}
