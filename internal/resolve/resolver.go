// Package resolve turns free-form device references ("the big lamp",
// "kitchen light", "light.kitchen") into canonical entity ids using the
// alias store and the entity cache.
//
// Resolution order: exact entity id, then learned alias, then exact
// display-name match, then fuzzy token matching. Aliases always beat
// fuzzy matching, and a tie between fuzzy candidates is reported as
// ambiguous rather than silently picking one.
package resolve

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hearthd/hearth/internal/entities"
	"github.com/hearthd/hearth/internal/homeassistant"
)

// Kind classifies how (or whether) a query resolved.
type Kind int

const (
	// KindExact means the query was itself a known entity id.
	KindExact Kind = iota
	// KindAliased means a learned alias mapped the query to an entity.
	KindAliased
	// KindMatched means fuzzy matching found a single clear winner.
	KindMatched
	// KindAmbiguous means several entities matched about equally well.
	KindAmbiguous
	// KindStale means an alias points at an entity the current snapshot
	// no longer contains.
	KindStale
	// KindNotFound means nothing matched above the threshold.
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindExact:
		return "exact"
	case KindAliased:
		return "aliased"
	case KindMatched:
		return "matched"
	case KindAmbiguous:
		return "ambiguous"
	case KindStale:
		return "stale"
	case KindNotFound:
		return "not_found"
	}
	return "unknown"
}

// Candidate is one scored match, surfaced when resolution is ambiguous.
type Candidate struct {
	EntityID string  `json:"entity_id"`
	Name     string  `json:"name"`
	Score    float64 `json:"score"`
}

// Result describes the outcome of resolving one query.
type Result struct {
	Kind   Kind
	Query  string
	Entity entities.Entity // set for Exact, Aliased, Matched
	Alias  string          // normalized alias name, set for Aliased and Stale
	Score  float64         // set for Matched
	// Candidates holds the competing matches for Ambiguous results,
	// best first, capped at the configured maximum.
	Candidates []Candidate
	// StaleEntityID is the id a stale alias points at.
	StaleEntityID string
}

// AliasLookup is the read side of the alias store.
type AliasLookup interface {
	Lookup(name string) (string, bool, error)
}

// Resolver resolves queries against a snapshot.
type Resolver struct {
	aliases       AliasLookup
	threshold     float64
	maxCandidates int
}

// New creates a resolver. threshold is the minimum fuzzy score in
// (0, 1]; maxCandidates caps ambiguity lists.
func New(aliases AliasLookup, threshold float64, maxCandidates int) *Resolver {
	if maxCandidates <= 0 {
		maxCandidates = 5
	}
	return &Resolver{
		aliases:       aliases,
		threshold:     threshold,
		maxCandidates: maxCandidates,
	}
}

// Resolve resolves query against snap across all domains.
func (r *Resolver) Resolve(query string, snap *entities.Snapshot) (Result, error) {
	return r.ResolveIn(query, "", snap)
}

// ResolveIn resolves query against snap, restricted to one domain when
// domain is non-empty. The domain restriction applies to fuzzy matching
// only; an explicit entity id or alias is trusted as given.
func (r *Resolver) ResolveIn(query, domain string, snap *entities.Snapshot) (Result, error) {
	if snap == nil {
		return Result{}, fmt.Errorf("resolve %q: no entity snapshot available", query)
	}

	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return Result{Kind: KindNotFound, Query: query}, nil
	}

	// 1. Exact entity id.
	if _, _, ok := homeassistant.SplitEntityID(trimmed); ok {
		if e, found := snap.Get(trimmed); found {
			return Result{Kind: KindExact, Query: query, Entity: e}, nil
		}
		// Looks like an entity id but the hub doesn't have it.
		return Result{Kind: KindNotFound, Query: query}, nil
	}

	// 2. Learned alias.
	if r.aliases != nil {
		entityID, found, err := r.aliases.Lookup(trimmed)
		if err != nil {
			return Result{}, fmt.Errorf("resolve %q: %w", query, err)
		}
		if found {
			normalized := strings.ToLower(trimmed)
			if e, ok := snap.Get(entityID); ok {
				return Result{Kind: KindAliased, Query: query, Entity: e, Alias: normalized}, nil
			}
			return Result{
				Kind:          KindStale,
				Query:         query,
				Alias:         normalized,
				StaleEntityID: entityID,
			}, nil
		}
	}

	// 3. Exact display-name match, then fuzzy.
	return r.match(query, trimmed, domain, snap), nil
}

func (r *Resolver) match(query, trimmed, domain string, snap *entities.Snapshot) Result {
	queryLower := strings.ToLower(trimmed)
	queryTokens := tokenize(queryLower)

	var exact []Candidate
	var scored []Candidate

	for _, e := range snap.Entities {
		if domain != "" && e.Domain != domain {
			continue
		}

		if strings.ToLower(e.Name) == queryLower {
			exact = append(exact, Candidate{EntityID: e.ID, Name: e.Name, Score: 1.0})
			continue
		}

		idScore := tokenMatchScore(queryTokens, tokenize(strings.ToLower(e.ID)))
		nameScore := tokenMatchScore(queryTokens, tokenize(strings.ToLower(e.Name)))
		score := max(idScore, nameScore)
		if score >= r.threshold {
			scored = append(scored, Candidate{EntityID: e.ID, Name: e.Name, Score: score})
		}
	}

	// A unique exact display-name match wins outright. Several entities
	// sharing the name is ambiguity the user has to settle.
	if len(exact) == 1 {
		e, _ := snap.Get(exact[0].EntityID)
		return Result{Kind: KindMatched, Query: query, Entity: e, Score: 1.0}
	}
	if len(exact) > 1 {
		return Result{Kind: KindAmbiguous, Query: query, Candidates: r.cap(exact)}
	}

	if len(scored) == 0 {
		return Result{Kind: KindNotFound, Query: query}
	}

	sortCandidates(scored)

	// A runner-up within 0.1 of the best is too close to call.
	if len(scored) > 1 && scored[0].Score-scored[1].Score < 0.1 {
		return Result{Kind: KindAmbiguous, Query: query, Candidates: r.cap(scored)}
	}

	e, _ := snap.Get(scored[0].EntityID)
	return Result{Kind: KindMatched, Query: query, Entity: e, Score: scored[0].Score}
}

func (r *Resolver) cap(candidates []Candidate) []Candidate {
	sortCandidates(candidates)
	if len(candidates) > r.maxCandidates {
		candidates = candidates[:r.maxCandidates]
	}
	return candidates
}

// sortCandidates orders by score descending, entity id ascending for
// equal scores so ambiguity lists are deterministic.
func sortCandidates(c []Candidate) {
	sort.Slice(c, func(i, j int) bool {
		if c[i].Score != c[j].Score {
			return c[i].Score > c[j].Score
		}
		return c[i].EntityID < c[j].EntityID
	})
}

// tokenize splits a string into lowercase tokens on common separators.
func tokenize(s string) []string {
	s = strings.ReplaceAll(s, "_", " ")
	s = strings.ReplaceAll(s, ".", " ")
	s = strings.ReplaceAll(s, "-", " ")

	tokens := strings.Fields(s)
	result := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if len(t) > 1 {
			result = append(result, t)
		}
	}
	return result
}

// tokenMatchScore calculates overlap between token sets: 1.0 for an
// exact token, 0.8 for a substring token, averaged over query tokens.
func tokenMatchScore(query, target []string) float64 {
	if len(query) == 0 || len(target) == 0 {
		return 0
	}

	matches := 0.0
	for _, q := range query {
		best := 0.0
		for _, t := range target {
			score := 0.0
			if t == q {
				score = 1.0
			} else if strings.Contains(t, q) || strings.Contains(q, t) {
				score = 0.8
			}
			if score > best {
				best = score
			}
		}
		matches += best
	}

	return matches / float64(len(query))
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
