package shared

import "time"

// Service names accepted by the registry
var SERVICES = struct {
	CHAT       string
	EMBEDDINGS string
	IMAGE      string
	TTS        string
	VIDEO      string
}{
	CHAT:       "chat",
	EMBEDDINGS: "embeddings",
	IMAGE:      "image",
	TTS:        "tts",
	VIDEO:      "video",
}

// HTTP Configuration
const (
	APIPrefix              = "/api/v1"
	DefaultPort            = 5000
	DefaultBackendTimeout  = 10 * time.Minute
	DefaultDialTimeout     = 2 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultBodyLimit       = "10M"
)

// Backend defaults
const (
	DefaultOllamaHost        = "http://127.0.0.1:11434"
	DefaultImageEndpoint     = "http://127.0.0.1:7860"
	DefaultImageModel        = "stable-diffusion-2-1-base"
	DefaultTTSEndpoint       = "http://127.0.0.1:8880"
	DefaultTTSModel          = "kokoro"
	DefaultInferenceSteps    = 30
	DefaultImageSize         = 512
	DefaultVoice             = "af_bella"
	DefaultTTSSampleRate     = 24000
	DefaultEmbeddingCacheTTL = 24 * time.Hour
)

// Video Configuration
const (
	DefaultPython            = "python"
	DefaultVideoTask         = "t2v-1.3B"
	VideoOutputPrefix        = "wan_output_"
	VideoOutputExt           = ".mp4"
	DefaultVideoSweepSpec    = "@every 10m"
	DefaultVideoSweepMaxAge  = 1 * time.Hour
	DefaultLifecyclePollWait = 5 * time.Second
)
