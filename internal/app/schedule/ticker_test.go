package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTickerRunsJobsUntilCancelled(t *testing.T) {
	var runs, failing atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	tk := &Ticker{Jobs: []Job{
		{Name: "count", Interval: 5 * time.Millisecond, Run: func(context.Context) error { runs.Add(1); return nil }},
		{Name: "fail", Interval: 5 * time.Millisecond, Run: func(context.Context) error { failing.Add(1); return errors.New("boom") }},
		{Name: "off", Interval: 0, Run: func(context.Context) error { t.Fatal("disabled job ran"); return nil }},
	}}

	done := make(chan struct{})
	go func() {
		tk.Run(ctx)
		close(done)
	}()
	assert.Eventually(t, func() bool { return runs.Load() >= 2 && failing.Load() >= 2 }, time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ticker did not stop")
	}
}
