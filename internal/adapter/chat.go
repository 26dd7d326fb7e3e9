package adapter

import (
	"encoding/json"
	"maps"

	"sidecar-api/internal/shared"
)

// ChatPayload is an Ollama /api/chat request. Options are spread at the top
// level when marshalled, next to the named fields.
type ChatPayload struct {
	Model    string
	Messages []any
	Stream   bool
	// Format is nil when the caller sent no response_format.
	Format *string
	// Tools holds the caller's functions list as-is.
	Tools   any
	Options map[string]any
}

func (p *ChatPayload) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Options)+5)
	maps.Copy(out, p.Options)
	out["model"] = p.Model
	out["messages"] = p.Messages
	out["stream"] = p.Stream
	if p.Format != nil {
		out["format"] = *p.Format
	}
	if p.Tools != nil {
		out["tools"] = p.Tools
	}
	return json.Marshal(out)
}

// AdaptChat maps a chat/completions body onto an Ollama chat payload.
//
// response_format becomes format: strings verbatim, objects as their JSON
// text. functions becomes tools untouched. Every other field is an option.
func AdaptChat(req Request) (*ChatPayload, error) {
	model := shared.GetString(req, "model")
	if model == "" || !shared.Truthy(req["messages"]) {
		return nil, shared.NewValidationError("Missing required parameter: model or messages")
	}
	messages, ok := req["messages"].([]any)
	if !ok {
		return nil, shared.NewValidationError("messages must be an array")
	}

	p := &ChatPayload{
		Model:    model,
		Messages: messages,
		Stream:   shared.Truthy(req["stream"]),
		Options:  rest(req, "model", "messages", "stream", "response_format", "functions"),
	}

	switch rf := req["response_format"].(type) {
	case string:
		if rf != "" {
			p.Format = &rf
		}
	case map[string]any, []any:
		raw, err := json.Marshal(rf)
		if err != nil {
			return nil, shared.NewValidationError("response_format is not serializable")
		}
		format := string(raw)
		p.Format = &format
	}

	if functions := req["functions"]; shared.Truthy(functions) {
		p.Tools = functions
	}
	return p, nil
}
