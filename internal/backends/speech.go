package backends

import (
	"context"

	"sidecar-api/internal/adapter"
)

const ttsBackend = "tts"

// Audio is mono 16-bit PCM.
type Audio struct {
	Samples    []int16
	SampleRate int
}

// SpeechPipeline is a loaded speech synthesis pipeline.
type SpeechPipeline interface {
	Generate(ctx context.Context, p *adapter.SpeechPayload) (*Audio, error)
}

// SpeechFacade shares one lazily loaded pipeline and returns WAV bytes.
type SpeechFacade struct {
	pipe *Lazy[SpeechPipeline]
}

func NewSpeechFacade(load func(ctx context.Context) (SpeechPipeline, error)) *SpeechFacade {
	return &SpeechFacade{pipe: NewLazy(countLoads(ttsBackend, load))}
}

func (f *SpeechFacade) Warmup(ctx context.Context) error {
	_, err := f.pipe.Get(ctx)
	return backendError(ttsBackend, err)
}

func (f *SpeechFacade) Ready() bool {
	return f.pipe.Ready()
}

func (f *SpeechFacade) Synthesize(ctx context.Context, p *adapter.SpeechPayload) ([]byte, error) {
	pipe, err := f.pipe.Get(ctx)
	if err != nil {
		return nil, backendError(ttsBackend, err)
	}
	audio, err := pipe.Generate(ctx, p)
	if err != nil {
		return nil, backendError(ttsBackend, err)
	}
	return EncodeWAV(audio), nil
}
