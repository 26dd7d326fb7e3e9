// Package adapter translates OpenAI-style request bodies into the payloads
// each backend expects. Everything here is pure: no I/O, no shared state.
//
// A payload is built once by its Adapt function and is not modified after
// that; facades only read it.
package adapter

import (
	"encoding/json"
	"strconv"

	"sidecar-api/internal/shared"
)

// Request is an inbound JSON object as decoded from the body.
type Request = map[string]any

// Decode parses a request body into a Request. Anything that is not a JSON
// object is a validation error.
func Decode(body []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(body, &req); err != nil || req == nil {
		return nil, shared.NewValidationError("request body must be a JSON object")
	}
	return req, nil
}

// rest returns a copy of req without the named keys.
func rest(req Request, drop ...string) map[string]any {
	out := make(map[string]any, len(req))
	for k, v := range req {
		out[k] = v
	}
	for _, k := range drop {
		delete(out, k)
	}
	return out
}

// positiveInt reads an optional integer field, falling back to def when the
// field is absent.
func positiveInt(req Request, key string, def int) (int, error) {
	v, ok := req[key]
	if !ok || v == nil {
		return def, nil
	}
	f, ok := v.(float64)
	if !ok || f <= 0 || f != float64(int(f)) {
		return 0, shared.NewValidationError("%s must be a positive integer", key)
	}
	return int(f), nil
}

// optionalNumber reads a numeric field that may also arrive as a numeric
// string. ok is false when the field is absent.
func optionalNumber(req Request, key string) (n float64, ok bool, err error) {
	v, present := req[key]
	if !present || v == nil {
		return 0, false, nil
	}
	switch t := v.(type) {
	case float64:
		return t, true, nil
	case string:
		f, perr := strconv.ParseFloat(t, 64)
		if perr != nil {
			return 0, false, shared.NewValidationError("%s must be a number", key)
		}
		return f, true, nil
	default:
		return 0, false, shared.NewValidationError("%s must be a number", key)
	}
}
