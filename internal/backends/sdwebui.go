package backends

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"strings"

	"sidecar-api/internal/adapter"
)

// sdWebUI drives a Stable Diffusion web API server.
type sdWebUI struct {
	base   string
	client *http.Client
}

// LoadSDWebUI returns a loader that selects model on the server (when set)
// and hands back a ready pipeline.
func LoadSDWebUI(endpoint, model string, client *http.Client) func(ctx context.Context) (ImagePipeline, error) {
	return func(ctx context.Context) (ImagePipeline, error) {
		p := &sdWebUI{base: strings.TrimRight(endpoint, "/"), client: client}
		if model == "" {
			return p, nil
		}
		res, err := postJSON(ctx, client, p.base+"/sdapi/v1/options", map[string]any{
			"sd_model_checkpoint": model,
		})
		if err != nil {
			return nil, backendError(imageBackend, err)
		}
		defer res.Body.Close()
		if res.StatusCode != http.StatusOK {
			return nil, statusError(imageBackend, res)
		}
		return p, nil
	}
}

type txt2imgResponse struct {
	Images []string `json:"images"`
}

func (s *sdWebUI) Run(ctx context.Context, p *adapter.ImagePayload) (image.Image, error) {
	res, err := postJSON(ctx, s.client, s.base+"/sdapi/v1/txt2img", map[string]any{
		"prompt":     p.Prompt,
		"steps":      p.NumInferenceSteps,
		"width":      p.Width,
		"height":     p.Height,
		"batch_size": 1,
	})
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, statusError(imageBackend, res)
	}

	var out txt2imgResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode txt2img response: %w", err)
	}
	if len(out.Images) == 0 {
		return nil, errors.New("pipeline returned no images")
	}
	raw, err := base64.StdEncoding.DecodeString(out.Images[0])
	if err != nil {
		return nil, fmt.Errorf("failed to decode image data: %w", err)
	}
	return png.Decode(bytes.NewReader(raw))
}
