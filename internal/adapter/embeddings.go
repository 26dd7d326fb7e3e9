package adapter

import (
	"encoding/json"

	"sidecar-api/internal/shared"
)

// EmbedPayload is an Ollama /api/embed request. Truncate and KeepAlive are
// only sent when the caller set them, so an explicit false or 0 survives.
type EmbedPayload struct {
	Model     string
	Input     any
	Truncate  *bool
	KeepAlive any
	Options   map[string]any
}

func (p *EmbedPayload) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"model":   p.Model,
		"input":   p.Input,
		"options": p.Options,
	}
	if p.Truncate != nil {
		out["truncate"] = *p.Truncate
	}
	if p.KeepAlive != nil {
		out["keep_alive"] = p.KeepAlive
	}
	return json.Marshal(out)
}

func AdaptEmbeddings(req Request) (*EmbedPayload, error) {
	model := shared.GetString(req, "model")
	if model == "" || !shared.Truthy(req["input"]) {
		return nil, shared.NewValidationError("Missing required parameters: model, input")
	}
	if err := validateEmbedInput(req["input"]); err != nil {
		return nil, err
	}

	p := &EmbedPayload{
		Model:   model,
		Input:   req["input"],
		Options: rest(req, "model", "input", "truncate", "keep_alive"),
	}
	// null is the same as leaving the field out
	if v := req["truncate"]; v != nil {
		b, isBool := v.(bool)
		if !isBool {
			return nil, shared.NewValidationError("truncate must be a boolean")
		}
		p.Truncate = &b
	}
	if v := req["keep_alive"]; v != nil {
		switch v.(type) {
		case string, float64:
			p.KeepAlive = v
		default:
			return nil, shared.NewValidationError("keep_alive must be a string or number")
		}
	}
	return p, nil
}

func validateEmbedInput(input any) error {
	switch v := input.(type) {
	case string:
		return nil
	case []any:
		if len(v) == 0 {
			return shared.NewValidationError("input array cannot be empty")
		}
		for _, item := range v {
			if _, ok := item.(string); !ok {
				return shared.NewValidationError("input must be string or array of strings")
			}
		}
		return nil
	default:
		return shared.NewValidationError("input must be string or array of strings")
	}
}
