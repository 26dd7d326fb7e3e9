package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sidecar-api/internal/adapter"
	"sidecar-api/internal/backends"
	"sidecar-api/internal/cache"
	"sidecar-api/internal/config"
	"sidecar-api/internal/handlers/generate"
	"sidecar-api/internal/handlers/inference"
	"sidecar-api/internal/jobs"
	"sidecar-api/internal/lifecycle"
	"sidecar-api/internal/middleware"
	"sidecar-api/internal/routers"
	"sidecar-api/internal/shared"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	emw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/manifold-inc/manifold-sdk/lib/eflag"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	// Flags / ENV Variables
	cfg := config.Register(flag.CommandLine)
	err := eflag.SetFlagsFromEnvironment()
	if err != nil {
		panic(err)
	}
	flag.Parse()
	if cfg.ConfigFile != "" {
		if err := config.LoadFile(flag.CommandLine, cfg.ConfigFile); err != nil {
			fail(fmt.Sprintf("Invalid config: %s", err))
		}
	}
	if err := cfg.Validate(); err != nil {
		fail(fmt.Sprintf("Invalid config: %s", err))
	}

	command := flag.Arg(0)
	params, err := lifecycle.ParseParams(flag.Arg(1))
	if err != nil {
		fail(err.Error())
	}

	switch command {
	case lifecycle.CommandStart, "":
	case lifecycle.CommandStop, lifecycle.CommandStatus:
		port, err := lifecycle.PortFrom(params, cfg.Port)
		if err != nil {
			fail(err.Error())
		}
		client := lifecycle.NewClient(port, cfg.ControlKey)
		if command == lifecycle.CommandStop {
			printStatus(os.Stdout, client.Stop(context.Background(), params))
		} else {
			printStatus(os.Stdout, client.Status(context.Background()))
		}
		return
	default:
		fail(fmt.Sprintf("Unknown command: %s", command))
	}

	var logger *zap.Logger
	if !cfg.Debug {
		logger, err = zap.NewProduction()
		if err != nil {
			panic("Failed init logger")
		}
	}
	if cfg.Debug {
		logger, err = zap.NewDevelopment()
		if err != nil {
			panic("Failed init logger")
		}
	}
	log := logger.Sugar()

	code := run(cfg, params, log)
	_ = log.Sync()
	os.Exit(code)
}

func run(cfg *config.Config, params map[string]any, log *zap.SugaredLogger) int {
	httpClient := backends.NewHTTPClient(shared.DefaultBackendTimeout)

	// Embeddings cache
	var embedCache cache.EmbeddingCache
	switch cfg.RedisAddr {
	case "":
	case "memory":
		embedCache = cache.NewMemoryCache(cfg.EmbedCacheTTL)
	default:
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: "",
			DB:       0,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Errorw("Failed ping to redis, embeddings cache disabled", "addr", cfg.RedisAddr, "error", err)
			_ = redisClient.Close()
			break
		}
		defer func() {
			_ = redisClient.Close()
		}()
		embedCache = cache.NewRedisCache(redisClient, cfg.EmbedCacheTTL, log)
	}

	image := backends.NewImageFacade(backends.LoadSDWebUI(cfg.ImageEndpoint, cfg.ImageModel, httpClient))
	speech := backends.NewSpeechFacade(backends.LoadKokoro(cfg.TTSEndpoint, cfg.TTSModel, httpClient))
	runner := jobs.NewRunner(jobs.Config{
		Python:    cfg.Python,
		Script:    cfg.VideoScript,
		Task:      cfg.VideoTask,
		OutputDir: cfg.VideoOutputDir,
		MaxJobs:   cfg.VideoMaxJobs,
	}, log)

	deps := routers.Services{
		Inference: inference.NewInferenceHandler(backends.NewOllama(cfg.OllamaHost, httpClient, log), embedCache, log),
		Media: &generate.MediaHandler{
			Image:         image,
			Speech:        speech,
			Jobs:          runner,
			VideoDefaults: adapter.VideoDefaults{CkptDir: cfg.VideoCkptDir},
			Log:           log,
		},
	}

	if cfg.Warmup {
		go func() {
			if err := image.Warmup(context.Background()); err != nil {
				log.Warnw("Image pipeline warmup failed", "error", err)
			}
		}()
		go func() {
			if err := speech.Warmup(context.Background()); err != nil {
				log.Warnw("Speech pipeline warmup failed", "error", err)
			}
		}()
	}

	if cfg.VideoSweepSchedule != "" {
		stopSweeper, err := jobs.NewSweeper(runner, cfg.VideoSweepMaxAge, log).Start(cfg.VideoSweepSchedule)
		if err != nil {
			log.Errorw("Invalid video sweep schedule", "schedule", cfg.VideoSweepSchedule, "error", err)
			printStatus(os.Stdout, lifecycle.Status{Status: lifecycle.StatusError, Message: err.Error()})
			return 1
		}
		defer stopSweeper()
	}

	var tunnel lifecycle.Tunnel = lifecycle.LocalTunnel{}
	if cfg.TunnelCommand != "" {
		tunnel = lifecycle.NewCommandTunnel(cfg.TunnelCommand, log)
	}

	var ctrl *lifecycle.Controller
	ctrl = lifecycle.NewController(lifecycle.Config{
		Build: func(params map[string]any) (http.Handler, error) {
			return newServer(cfg, params, deps, ctrl, log), nil
		},
		Tunnel:          tunnel,
		Port:            cfg.Port,
		ShutdownTimeout: shared.DefaultShutdownTimeout,
		Log:             log,
	})

	startCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	st := ctrl.Start(startCtx, params)
	cancel()
	printStatus(os.Stdout, st)
	if st.Status == lifecycle.StatusError {
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The parent process may keep issuing commands on stdin. When stdin
	// closes the process keeps serving until a signal or a remote stop.
	controlDone := make(chan struct{})
	go func() {
		defer close(controlDone)
		if err := ctrl.ServeControl(ctx, os.Stdin, os.Stdout); err != nil {
			log.Warnw("Control channel closed", "error", err)
		}
	}()

	for running := true; running; {
		select {
		case <-ctx.Done():
			running = false
		case <-ctrl.Quit():
			running = false
		case <-controlDone:
			controlDone = nil
			running = ctrl.Status().Status != lifecycle.StatusStopped
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shared.DefaultShutdownTimeout)
	defer cancel()
	if st := ctrl.Stop(shutdownCtx, nil); st.Status == lifecycle.StatusStopped {
		printStatus(os.Stdout, st)
	}
	return 0
}

func newServer(cfg *config.Config, params map[string]any, deps routers.Services, lc routers.Lifecycle, log *zap.SugaredLogger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.NewErrorHandler(log)
	e.Use(emw.CORS())

	e.GET(("/ping"), func(c echo.Context) error {
		return c.String(200, "")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	base := e.Group("")
	base.Use(middleware.NewTrackMiddleware(log))
	base.Use(middleware.NewRecoverMiddleware(log))
	base.Use(emw.BodyLimit(shared.DefaultBodyLimit))

	api := base.Group(shared.APIPrefix)
	mounted := routers.RegisterServices(api, serviceNames(params, cfg.ServiceList()), deps, log)
	routers.RegisterInfoRoutes(base, api, mounted)
	routers.RegisterLifecycleRoutes(base, lc, cfg.ControlKey)
	return e
}

// serviceNames lets start params override the configured service list,
// either as an array or a comma separated string.
func serviceNames(params map[string]any, def []string) []string {
	switch v := params["services"].(type) {
	case string:
		return shared.SplitList(v)
	case []any:
		names := make([]string, 0, len(v))
		for _, n := range v {
			if s, ok := n.(string); ok {
				names = append(names, s)
			}
		}
		return names
	default:
		return def
	}
}

func printStatus(w io.Writer, st lifecycle.Status) {
	_ = json.NewEncoder(w).Encode(st)
}

func fail(message string) {
	printStatus(os.Stderr, lifecycle.Status{Status: lifecycle.StatusError, Message: message})
	os.Exit(1)
}
