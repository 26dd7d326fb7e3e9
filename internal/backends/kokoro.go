package backends

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net/http"
	"strings"

	"sidecar-api/internal/adapter"
	"sidecar-api/internal/shared"
)

// kokoro drives a Kokoro speech server through its OpenAI-style
// /v1/audio/speech route, asking for raw PCM.
type kokoro struct {
	base   string
	model  string
	client *http.Client
}

// LoadKokoro returns a loader that checks the server has voices available
// before handing back the pipeline.
func LoadKokoro(endpoint, model string, client *http.Client) func(ctx context.Context) (SpeechPipeline, error) {
	return func(ctx context.Context) (SpeechPipeline, error) {
		k := &kokoro{base: strings.TrimRight(endpoint, "/"), model: model, client: client}
		r, err := http.NewRequestWithContext(ctx, http.MethodGet, k.base+"/v1/audio/voices", nil)
		if err != nil {
			return nil, err
		}
		res, err := client.Do(r)
		if err != nil {
			return nil, backendError(ttsBackend, err)
		}
		defer res.Body.Close()
		if res.StatusCode != http.StatusOK {
			return nil, statusError(ttsBackend, res)
		}
		return k, nil
	}
}

func (k *kokoro) Generate(ctx context.Context, p *adapter.SpeechPayload) (*Audio, error) {
	res, err := postJSON(ctx, k.client, k.base+"/v1/audio/speech", map[string]any{
		"model":           k.model,
		"input":           p.Text,
		"voice":           p.Voice,
		"response_format": "pcm",
		"stream":          false,
	})
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, statusError(ttsBackend, res)
	}

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}
	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(raw[2*i:]))
	}
	return &Audio{Samples: samples, SampleRate: shared.DefaultTTSSampleRate}, nil
}
