// Package homeassistant provides a client for the Home Assistant API.
package homeassistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/hearthd/hearth/internal/httpkit"
)

// Client is a Home Assistant REST API client. All failures are returned
// as *Error so callers can branch on the kind without string matching.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	logger     *slog.Logger
}

// NewClient creates a new Home Assistant client.
//
// Requests pass through a rate limiter and a circuit breaker. The
// breaker opens after five consecutive unreachable/5xx failures and
// probes again after 30 seconds, so a down hub fails fast instead of
// stacking up timeouts inside agent runs.
func NewClient(baseURL, token string, logger *slog.Logger) *Client {
	c := &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: httpkit.NewClient(
			httpkit.WithTimeout(30*time.Second),
			httpkit.WithRetry(3, 2*time.Second),
			httpkit.WithLogger(logger),
		),
		limiter: rate.NewLimiter(rate.Limit(10), 20),
		logger:  logger,
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "homeassistant",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// Auth and request errors mean the hub is healthy but unhappy
		// with us; only connectivity and 5xx failures trip the breaker.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			if hubErr, ok := err.(*Error); ok {
				return hubErr.Kind == KindUnauthorized || hubErr.Kind == KindBadRequest
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if logger != nil {
				logger.Warn("hub circuit breaker state change",
					"from", from.String(),
					"to", to.String(),
				)
			}
		},
	})

	return c
}

// State represents an entity state from Home Assistant.
type State struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes"`
	LastChanged time.Time      `json:"last_changed"`
	LastUpdated time.Time      `json:"last_updated"`
}

// FriendlyName returns the friendly_name attribute, or "" if unset.
func (s State) FriendlyName() string {
	if fn, ok := s.Attributes["friendly_name"].(string); ok {
		return fn
	}
	return ""
}

// APIStatus represents the HA API status response.
type APIStatus struct {
	Message string `json:"message"`
}

// Ping checks if the API is reachable and the token is accepted.
func (c *Client) Ping(ctx context.Context) error {
	var status APIStatus
	if err := c.get(ctx, "/api/", &status); err != nil {
		return err
	}
	if status.Message != "API running." {
		return &Error{Kind: KindServerError, Message: fmt.Sprintf("unexpected API status: %s", status.Message)}
	}
	return nil
}

// GetStates retrieves all entity states.
func (c *Client) GetStates(ctx context.Context) ([]State, error) {
	var states []State
	if err := c.get(ctx, "/api/states", &states); err != nil {
		return nil, err
	}
	return states, nil
}

// GetState retrieves a single entity state. An unknown entity comes
// back as a KindBadRequest error (the hub answers 404).
func (c *Client) GetState(ctx context.Context, entityID string) (*State, error) {
	var state State
	if err := c.get(ctx, "/api/states/"+entityID, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// CallService calls a Home Assistant service and returns the states the
// hub reports as changed by the call.
func (c *Client) CallService(ctx context.Context, domain, service string, data map[string]any) ([]State, error) {
	path := fmt.Sprintf("/api/services/%s/%s", domain, service)
	var changed []State
	if err := c.post(ctx, path, data, &changed); err != nil {
		return nil, err
	}
	return changed, nil
}

// GetHistory retrieves state history for one entity since start.
func (c *Client) GetHistory(ctx context.Context, entityID string, start time.Time) ([]State, error) {
	path := fmt.Sprintf("/api/history/period/%s?filter_entity_id=%s",
		start.UTC().Format(time.RFC3339), url.QueryEscape(entityID))

	// The hub groups history by entity; with a single-entity filter the
	// response is a one-element outer list.
	var groups [][]State
	if err := c.get(ctx, path, &groups); err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return nil, nil
	}
	return groups[0], nil
}

// SplitEntityID splits "light.kitchen" into its domain and object id.
func SplitEntityID(entityID string) (domain, object string, ok bool) {
	for i, r := range entityID {
		if r == '.' {
			return entityID[:i], entityID[i+1:], i > 0 && i < len(entityID)-1
		}
	}
	return "", "", false
}

// get performs a GET request to the HA API.
func (c *Client) get(ctx context.Context, path string, result any) error {
	return c.do(ctx, http.MethodGet, path, nil, result)
}

// post performs a POST request to the HA API.
func (c *Client) post(ctx context.Context, path string, data any, result any) error {
	var body []byte
	if data != nil {
		var err error
		body, err = json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal data: %w", err)
		}
	}
	return c.do(ctx, http.MethodPost, path, body, result)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &Error{Kind: KindUnreachable, Message: err.Error()}
	}

	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.roundTrip(ctx, method, path, body, result)
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return &Error{Kind: KindUnreachable, Message: "hub circuit open: " + err.Error()}
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body []byte, result any) error {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &Error{Kind: KindBadRequest, Message: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Kind: KindUnreachable, Message: err.Error()}
	}
	// Drain and close to ensure connection reuse even when result is nil.
	defer httpkit.DrainAndClose(resp.Body, 4096)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return classifyStatus(resp.StatusCode, httpkit.ReadErrorBody(resp.Body, 512))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return &Error{Kind: KindServerError, Message: fmt.Sprintf("decode response: %v", err)}
		}
	}

	return nil
}
