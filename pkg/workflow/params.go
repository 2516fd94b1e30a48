package workflow

import (
	"fmt"
	"strings"
	"time"
)

const inputsPrefix = "inputs."

// resolveString pulls a string parameter, resolving "inputs.<name>"
// references against the job's submitted inputs.
func resolveString(params map[string]any, key string, inputs map[string]any, def string) string {
	raw, ok := params[key]
	if !ok {
		return def
	}

	s, ok := raw.(string)
	if !ok {
		return def
	}

	if strings.HasPrefix(s, inputsPrefix) {
		name := strings.TrimPrefix(s, inputsPrefix)
		if v, ok := inputs[name]; ok {
			return fmt.Sprintf("%v", v)
		}
	}

	return s
}

func floatParam(params map[string]any, key string, def float64) float64 {
	raw, ok := params[key]
	if !ok {
		return def
	}

	switch v := raw.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return def
	}
}

// secondsParam reads a duration expressed in seconds.
func secondsParam(params map[string]any, key string, def time.Duration) time.Duration {
	raw, ok := params[key]
	if !ok {
		return def
	}

	switch v := raw.(type) {
	case float64:
		return time.Duration(v * float64(time.Second))
	case int:
		return time.Duration(v) * time.Second
	case int64:
		return time.Duration(v) * time.Second
	default:
		return def
	}
}

// coordinatesParam reads a [x, y] pair. Returns ok=false when absent or
// malformed.
func coordinatesParam(params map[string]any, key string) (int, int, bool) {
	raw, ok := params[key]
	if !ok {
		return 0, 0, false
	}

	pair, ok := raw.([]any)
	if !ok || len(pair) != 2 {
		return 0, 0, false
	}

	x, okX := toInt(pair[0])
	y, okY := toInt(pair[1])

	if !okX || !okY {
		return 0, 0, false
	}

	return x, y, true
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	default:
		return 0, false
	}
}
