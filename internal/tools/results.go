package tools

import (
	"encoding/json"
	"errors"

	"github.com/hearthd/hearth/internal/homeassistant"
)

// okResult encodes a successful tool outcome.
func okResult(payload map[string]any) string {
	out := map[string]any{"status": "ok"}
	for k, v := range payload {
		out[k] = v
	}
	return toJSON(out)
}

// errorResult encodes a failed tool outcome the model can act on.
func errorResult(kind, message string, extra map[string]any) string {
	out := map[string]any{
		"status":  "error",
		"error":   kind,
		"message": message,
	}
	for k, v := range extra {
		out[k] = v
	}
	return toJSON(out)
}

// validationResult encodes a bad-arguments outcome.
func validationResult(message string) string {
	return errorResult("invalid_arguments", message, nil)
}

// hubErrorResult maps a hub client error to a tool outcome.
func hubErrorResult(err error) string {
	var hubErr *homeassistant.Error
	if errors.As(err, &hubErr) {
		return errorResult("hub_"+hubErr.Kind.String(), hubErr.Message, nil)
	}
	return errorResult("hub_unreachable", err.Error(), nil)
}

func toJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `{"status":"error","error":"internal","message":"json encoding failed"}`
	}
	return string(b)
}

// stringArg extracts a string argument, trimmed of nothing; absent or
// non-string values come back as "".
func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

// intArg extracts an integer argument. JSON numbers decode as float64.
func intArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}

// floatArg extracts a numeric argument.
func floatArg(args map[string]any, key string) (float64, bool) {
	switch v := args[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}
