package backends

import (
	"bytes"
	"context"
	"image"
	"image/png"

	"sidecar-api/internal/adapter"
)

const imageBackend = "image"

// ImagePipeline is a loaded diffusion pipeline.
type ImagePipeline interface {
	Run(ctx context.Context, p *adapter.ImagePayload) (image.Image, error)
}

// ImageFacade shares one lazily loaded pipeline across all requests and
// returns PNG bytes.
type ImageFacade struct {
	pipe *Lazy[ImagePipeline]
}

func NewImageFacade(load func(ctx context.Context) (ImagePipeline, error)) *ImageFacade {
	return &ImageFacade{pipe: NewLazy(countLoads(imageBackend, load))}
}

// Warmup loads the pipeline ahead of the first request.
func (f *ImageFacade) Warmup(ctx context.Context) error {
	_, err := f.pipe.Get(ctx)
	return backendError(imageBackend, err)
}

func (f *ImageFacade) Ready() bool {
	return f.pipe.Ready()
}

func (f *ImageFacade) Generate(ctx context.Context, p *adapter.ImagePayload) ([]byte, error) {
	pipe, err := f.pipe.Get(ctx)
	if err != nil {
		return nil, backendError(imageBackend, err)
	}
	img, err := pipe.Run(ctx, p)
	if err != nil {
		return nil, backendError(imageBackend, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, backendError(imageBackend, err)
	}
	return buf.Bytes(), nil
}
