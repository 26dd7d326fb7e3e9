// Package generate handles the media services: image, speech and video.
package generate

import (
	"context"
	"os"
	"time"

	"sidecar-api/internal/adapter"
	"sidecar-api/internal/jobs"
	"sidecar-api/internal/metrics"
	"sidecar-api/internal/shared"

	"go.uber.org/zap"
)

type ImageGenerator interface {
	Generate(ctx context.Context, p *adapter.ImagePayload) ([]byte, error)
}

type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, p *adapter.SpeechPayload) ([]byte, error)
}

type MediaHandler struct {
	Image         ImageGenerator
	Speech        SpeechSynthesizer
	Jobs          *jobs.Runner
	VideoDefaults adapter.VideoDefaults
	Log           *zap.SugaredLogger
}

// GenerateImage returns PNG bytes.
func (h *MediaHandler) GenerateImage(ctx context.Context, body []byte) ([]byte, error) {
	req, err := adapter.Decode(body)
	if err != nil {
		return nil, err
	}
	payload, err := adapter.AdaptImage(req)
	if err != nil {
		return nil, err
	}
	defer observe(shared.SERVICES.IMAGE, time.Now())
	return h.Image.Generate(ctx, payload)
}

// SynthesizeSpeech returns a WAV file.
func (h *MediaHandler) SynthesizeSpeech(ctx context.Context, body []byte) ([]byte, error) {
	req, err := adapter.Decode(body)
	if err != nil {
		return nil, err
	}
	payload, err := adapter.AdaptSpeech(req)
	if err != nil {
		return nil, err
	}
	defer observe(shared.SERVICES.TTS, time.Now())
	return h.Speech.Synthesize(ctx, payload)
}

// VideoOutput is a finished video. Close releases the file and removes it.
type VideoOutput struct {
	File  *os.File
	JobID string
	job   *jobs.Job
}

func (v *VideoOutput) Close() {
	_ = v.File.Close()
	v.job.Cleanup()
}

// GenerateVideo runs one generation process to completion. Canceling ctx kills the
// process. On any error the output file has already been removed.
func (h *MediaHandler) GenerateVideo(ctx context.Context, body []byte) (*VideoOutput, error) {
	req, err := adapter.Decode(body)
	if err != nil {
		return nil, err
	}
	payload, err := adapter.AdaptVideo(req, h.VideoDefaults)
	if err != nil {
		return nil, err
	}

	job := h.Jobs.NewJob(payload)
	start := time.Now()
	err = job.Run(ctx)
	metrics.BackendDuration.WithLabelValues(shared.SERVICES.VIDEO).Observe(time.Since(start).Seconds())
	if err != nil {
		job.Cleanup()
		return nil, err
	}
	f, err := job.Open()
	if err != nil {
		h.Log.Errorw("Video output unreadable", "job_id", job.ID, "path", job.OutputPath, "error", err)
		job.Cleanup()
		return nil, err
	}
	return &VideoOutput{File: f, JobID: job.ID, job: job}, nil
}

func observe(service string, start time.Time) {
	metrics.BackendDuration.WithLabelValues(service).Observe(time.Since(start).Seconds())
}
