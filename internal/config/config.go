// Package config binds the sidecar settings to command line flags. Flags can
// also come from the environment (see eflag) or from a YAML file whose keys
// are the flag names.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"sidecar-api/internal/shared"
)

type Config struct {
	ConfigFile string
	Port       int
	Services   string
	Debug      bool

	OllamaHost    string
	ImageEndpoint string
	ImageModel    string
	TTSEndpoint   string
	TTSModel      string
	Warmup        bool

	Python             string
	VideoScript        string
	VideoCkptDir       string
	VideoTask          string
	VideoOutputDir     string
	VideoMaxJobs       int
	VideoSweepSchedule string
	VideoSweepMaxAge   time.Duration

	RedisAddr     string
	EmbedCacheTTL time.Duration

	TunnelCommand string
	ControlKey    string
}

var allServices = []string{
	shared.SERVICES.CHAT,
	shared.SERVICES.EMBEDDINGS,
	shared.SERVICES.IMAGE,
	shared.SERVICES.TTS,
	shared.SERVICES.VIDEO,
}

// Register defines every setting on fs and returns the struct the parsed
// values land in.
func Register(fs *flag.FlagSet) *Config {
	c := &Config{}
	fs.StringVar(&c.ConfigFile, "config", "", "Optional YAML config file")
	fs.IntVar(&c.Port, "port", shared.DefaultPort, "Listen port")
	fs.StringVar(&c.Services, "services", strings.Join(allServices, ","), "Comma separated services to mount")
	fs.BoolVar(&c.Debug, "debug", false, "Debug enabled")

	fs.StringVar(&c.OllamaHost, "ollama-host", shared.DefaultOllamaHost, "Chat and embeddings runtime base url")
	fs.StringVar(&c.ImageEndpoint, "image-endpoint", shared.DefaultImageEndpoint, "Diffusion web api base url")
	fs.StringVar(&c.ImageModel, "image-model", shared.DefaultImageModel, "Diffusion checkpoint to select on load")
	fs.StringVar(&c.TTSEndpoint, "tts-endpoint", shared.DefaultTTSEndpoint, "Speech synthesis base url")
	fs.StringVar(&c.TTSModel, "tts-model", shared.DefaultTTSModel, "Speech synthesis model")
	fs.BoolVar(&c.Warmup, "warmup", false, "Load image and tts pipelines at startup")

	fs.StringVar(&c.Python, "python", shared.DefaultPython, "Interpreter used to run the video script")
	fs.StringVar(&c.VideoScript, "video-script", "generate.py", "Video generation script")
	fs.StringVar(&c.VideoCkptDir, "video-ckpt-dir", "", "Default checkpoint directory for video requests")
	fs.StringVar(&c.VideoTask, "video-task", shared.DefaultVideoTask, "Video generation task")
	fs.StringVar(&c.VideoOutputDir, "video-output-dir", "", "Directory for generated videos (default temp dir)")
	fs.IntVar(&c.VideoMaxJobs, "video-max-jobs", 0, "Max concurrent video processes, 0 for unlimited")
	fs.StringVar(&c.VideoSweepSchedule, "video-sweep-schedule", shared.DefaultVideoSweepSpec, "Cron spec for sweeping stale outputs, empty to disable")
	fs.DurationVar(&c.VideoSweepMaxAge, "video-sweep-max-age", shared.DefaultVideoSweepMaxAge, "Age after which an unclaimed output is swept")

	fs.StringVar(&c.RedisAddr, "redis-addr", "", "Redis host:port for the embeddings cache, or \"memory\"")
	fs.DurationVar(&c.EmbedCacheTTL, "embed-cache-ttl", shared.DefaultEmbeddingCacheTTL, "Embeddings cache ttl")

	fs.StringVar(&c.TunnelCommand, "tunnel-command", "", "Command printing a public url, {port} is substituted (e.g. \"tmole {port}\")")
	fs.StringVar(&c.ControlKey, "control-key", "", "Bearer token required by the lifecycle routes")
	return c
}

// LoadFile sets every flag named in the YAML file at path that was not
// already set on the command line or from the environment.
func LoadFile(fs *flag.FlagSet, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	values := map[string]any{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	var errs []error
	for name, v := range values {
		if fs.Lookup(name) == nil {
			errs = append(errs, fmt.Errorf("unknown config key %q", name))
			continue
		}
		if set[name] {
			continue
		}
		if err := fs.Set(name, yamlString(v)); err != nil {
			errs = append(errs, fmt.Errorf("config key %q: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func yamlString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case []any:
		parts := make([]string, 0, len(t))
		for _, p := range t {
			parts = append(parts, fmt.Sprint(p))
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(t)
	}
}

func (c *Config) ServiceList() []string {
	return shared.SplitList(c.Services)
}

var ErrTunnelWithoutKey = errors.New("tunnel-command requires control-key: tunneled requests reach the lifecycle routes from loopback")

// Validate rejects settings that cannot be served safely.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.TunnelCommand) != "" && c.ControlKey == "" {
		return ErrTunnelWithoutKey
	}
	return nil
}
