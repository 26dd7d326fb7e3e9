package jobs

import (
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"sidecar-api/internal/metrics"
	"sidecar-api/internal/shared"
)

// Sweeper removes generator outputs left behind by a crash or a kill between
// the process exiting and the request cleaning up.
type Sweeper struct {
	Dir    string
	MaxAge time.Duration
	Active func(path string) bool
	Log    *zap.SugaredLogger

	now func() time.Time
}

func NewSweeper(runner *Runner, maxAge time.Duration, log *zap.SugaredLogger) *Sweeper {
	return &Sweeper{
		Dir:    runner.OutputDir(),
		MaxAge: maxAge,
		Active: runner.Active,
		Log:    log,
		now:    time.Now,
	}
}

// Sweep deletes stale outputs and returns how many were removed.
func (s *Sweeper) Sweep() int {
	matches, err := filepath.Glob(filepath.Join(s.Dir, shared.VideoOutputPrefix+"*"+shared.VideoOutputExt))
	if err != nil {
		s.Log.Errorw("Failed to list video outputs", "dir", s.Dir, "error", err)
		return 0
	}
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	removed := 0
	for _, path := range matches {
		if s.Active != nil && s.Active(path) {
			continue
		}
		st, err := os.Stat(path)
		if err != nil || st.IsDir() || now().Sub(st.ModTime()) < s.MaxAge {
			continue
		}
		if err := os.Remove(path); err != nil {
			s.Log.Warnw("Failed to sweep video output", "path", path, "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		metrics.SweptOutputs.Add(float64(removed))
		s.Log.Infow("Swept stale video outputs", "count", removed)
	}
	return removed
}

// Start runs Sweep on a cron schedule. The returned func stops the schedule
// and waits for a running sweep to finish.
func (s *Sweeper) Start(spec string) (func(), error) {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() { s.Sweep() }); err != nil {
		return nil, err
	}
	c.Start()
	return func() { <-c.Stop().Done() }, nil
}
