// Package jobs runs the external video generator as a child process, one
// process per request, and owns the lifetime of the file it produces.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/aidarkhanov/nanoid"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"sidecar-api/internal/adapter"
	"sidecar-api/internal/metrics"
	"sidecar-api/internal/shared"
)

type State int

const (
	Created State = iota
	Running
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

type Config struct {
	Python    string
	Script    string
	Task      string
	OutputDir string
	// MaxJobs bounds concurrently running processes. Zero means unbounded.
	MaxJobs int
}

type Runner struct {
	cfg Config
	log *zap.SugaredLogger
	sem chan struct{}

	mu     sync.Mutex
	active map[string]*Job
}

func NewRunner(cfg Config, log *zap.SugaredLogger) *Runner {
	if cfg.Python == "" {
		cfg.Python = shared.DefaultPython
	}
	if cfg.Task == "" {
		cfg.Task = shared.DefaultVideoTask
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = os.TempDir()
	}
	if abs, err := filepath.Abs(cfg.OutputDir); err == nil {
		cfg.OutputDir = abs
	}
	r := &Runner{cfg: cfg, log: log, active: map[string]*Job{}}
	if cfg.MaxJobs > 0 {
		r.sem = make(chan struct{}, cfg.MaxJobs)
	}
	return r
}

func (r *Runner) OutputDir() string {
	return r.cfg.OutputDir
}

// Active reports whether path belongs to a job that has not been cleaned up.
func (r *Runner) Active(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[path]
	return ok
}

// NewJob prepares a job with a unique output path. Nothing is spawned until
// Run is called.
func (r *Runner) NewJob(p *adapter.VideoPayload) *Job {
	id := uuid.NewString()
	suffix, err := nanoid.Generate("0123456789abcdefghijklmnopqrstuvwxyz", 8)
	if err != nil {
		suffix = id[:8]
	}
	out := filepath.Join(r.cfg.OutputDir, fmt.Sprintf("%s%d_%s%s", shared.VideoOutputPrefix, time.Now().UnixMilli(), suffix, shared.VideoOutputExt))

	log := r.log.With("job_id", id)
	j := &Job{
		ID:         id,
		OutputPath: out,
		Args:       p.Args(r.cfg.Script, r.cfg.Task, out),
		runner:     r,
		log:        log,
		exitCode:   -1,
	}
	j.stdout = newCapture(func(line string) { log.Infow("video stdout", "line", line) })
	j.stderr = newCapture(func(line string) { log.Warnw("video stderr", "line", line) })

	r.mu.Lock()
	r.active[out] = j
	r.mu.Unlock()
	return j
}

func (r *Runner) acquire(ctx context.Context) error {
	if r.sem == nil {
		return nil
	}
	select {
	case r.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) release() {
	if r.sem != nil {
		<-r.sem
	}
}

type Job struct {
	ID         string
	OutputPath string
	Args       []string

	runner *Runner
	log    *zap.SugaredLogger
	stdout *capture
	stderr *capture

	mu       sync.Mutex
	state    State
	exitCode int
}

func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// ExitCode is -1 until the process has exited normally.
func (j *Job) ExitCode() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.exitCode
}

func (j *Job) Stdout() string { return j.stdout.String() }
func (j *Job) Stderr() string { return j.stderr.String() }

func (j *Job) setState(s State, code int) {
	j.mu.Lock()
	j.state = s
	j.exitCode = code
	j.mu.Unlock()
}

// Run spawns the generator and blocks until it exits. The process is killed
// when ctx is canceled. A spawn failure or non-zero exit is returned as a
// *shared.SubprocessError carrying everything written to stderr.
func (j *Job) Run(ctx context.Context) error {
	if j.State() != Created {
		return errors.New("job already started")
	}
	if err := j.runner.acquire(ctx); err != nil {
		j.setState(Failed, -1)
		metrics.VideoJobs.WithLabelValues(Failed.String()).Inc()
		return err
	}
	defer j.runner.release()

	cmd := exec.CommandContext(ctx, j.runner.cfg.Python, j.Args...)
	cmd.Stdout = j.stdout
	cmd.Stderr = j.stderr
	cmd.WaitDelay = 5 * time.Second

	j.log.Infow("Starting video generation", "command", j.runner.cfg.Python, "args", j.Args)
	start := time.Now()
	j.setState(Running, -1)
	metrics.InflightJobs.Inc()
	defer metrics.InflightJobs.Dec()

	err := cmd.Start()
	if err == nil {
		err = cmd.Wait()
	}
	j.stdout.flush()
	j.stderr.flush()
	metrics.VideoJobDuration.Observe(time.Since(start).Seconds())

	code := -1
	if cmd.ProcessState != nil {
		code = cmd.ProcessState.ExitCode()
	}
	if err != nil || code != 0 {
		j.setState(Failed, code)
		metrics.VideoJobs.WithLabelValues(Failed.String()).Inc()
		j.log.Errorw("Video generation failed", "exit_code", code, "error", err, "duration", time.Since(start).String())
		if err == nil {
			err = fmt.Errorf("exit status %d", code)
		}
		return &shared.SubprocessError{ExitCode: code, Stderr: j.stderr.String(), Cause: err}
	}

	j.setState(Succeeded, code)
	metrics.VideoJobs.WithLabelValues(Succeeded.String()).Inc()
	j.log.Infow("Video generation finished", "output", j.OutputPath, "duration", time.Since(start).String())
	return nil
}

// Open returns the produced file for streaming. The caller closes it.
func (j *Job) Open() (*os.File, error) {
	f, err := os.Open(j.OutputPath)
	if err != nil {
		return nil, &shared.IOError{Path: j.OutputPath, Cause: err}
	}
	st, err := f.Stat()
	if err != nil || st.IsDir() {
		f.Close()
		if err == nil {
			err = errors.New("output path is a directory")
		}
		return nil, &shared.IOError{Path: j.OutputPath, Cause: err}
	}
	return f, nil
}

// Cleanup removes the output file, whether or not the job succeeded. A
// failed removal is logged and never surfaced to the client.
func (j *Job) Cleanup() {
	if err := os.Remove(j.OutputPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		j.log.Warnw("Failed to remove video output", "path", j.OutputPath, "error", err)
	}
	j.runner.mu.Lock()
	delete(j.runner.active, j.OutputPath)
	j.runner.mu.Unlock()
}
