package routers

import (
	"strings"

	"sidecar-api/internal/handlers/generate"
	"sidecar-api/internal/handlers/inference"
	"sidecar-api/internal/shared"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type Services struct {
	Inference *inference.InferenceHandler
	Media     *generate.MediaHandler
}

// RegisterServices mounts the route group of every known name in names and
// returns the names actually mounted, in order. Unknown or unconfigured
// names are logged and skipped; a partial set is a valid deployment.
func RegisterServices(e *echo.Group, names []string, deps Services, log *zap.SugaredLogger) []string {
	ir := &InferenceRouter{ih: deps.Inference}
	mr := &MediaRouter{mh: deps.Media}

	mounts := map[string]struct {
		ready bool
		mount func()
	}{
		shared.SERVICES.CHAT: {deps.Inference != nil, func() {
			e.POST("/chat/completions", ir.ChatRequest)
		}},
		shared.SERVICES.EMBEDDINGS: {deps.Inference != nil, func() {
			e.POST("/embeddings", ir.EmbeddingRequest)
		}},
		shared.SERVICES.IMAGE: {deps.Media != nil && deps.Media.Image != nil, func() {
			e.POST("/image", mr.ImageRequest)
		}},
		shared.SERVICES.TTS: {deps.Media != nil && deps.Media.Speech != nil, func() {
			e.POST("/tts", mr.SpeechRequest)
		}},
		shared.SERVICES.VIDEO: {deps.Media != nil && deps.Media.Jobs != nil, func() {
			e.POST("/video", mr.VideoRequest)
		}},
	}

	mounted := []string{}
	seen := map[string]bool{}
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		m, ok := mounts[name]
		switch {
		case !ok:
			log.Warnw("Unknown service, skipping", "service", raw)
			continue
		case seen[name]:
			continue
		case !m.ready:
			log.Warnw("Service has no backend configured, skipping", "service", name)
			continue
		}
		seen[name] = true
		m.mount()
		mounted = append(mounted, name)
	}
	log.Infow("Services registered", "services", mounted)
	return mounted
}
