package schedule

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job is a named periodic task. Jobs with a non-positive interval are disabled.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Ticker runs each job on its own interval until the context ends. A slow run delays
// the next tick of that job only; runs of one job never overlap.
type Ticker struct {
	Jobs   []Job
	Logger *slog.Logger
}

func (t *Ticker) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, job := range t.Jobs {
		if job.Interval <= 0 || job.Run == nil {
			t.log().Info("scheduled job disabled", "job", job.Name)
			continue
		}
		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			t.loop(ctx, job)
		}(job)
	}
	wg.Wait()
}

func (t *Ticker) loop(ctx context.Context, job Job) {
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := time.Now()
			if err := job.Run(ctx); err != nil && ctx.Err() == nil {
				t.log().Error("scheduled job failed", "job", job.Name, "error", err)
				continue
			}
			t.log().Debug("scheduled job done", "job", job.Name, "duration", time.Since(start))
		}
	}
}

func (t *Ticker) log() *slog.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return slog.Default()
}
