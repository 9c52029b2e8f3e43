package job

import (
	"context"

	"github.com/opendiscourse/corpusd/internal/watcher"
)

// InboxSweepJob re-scans the drop folder on a schedule as a safety net for
// filesystem events missed while the process was busy or restarting.
type InboxSweepJob struct {
	watcher *watcher.Watcher
}

func NewInboxSweepJob(w *watcher.Watcher) *InboxSweepJob {
	return &InboxSweepJob{watcher: w}
}

func (j *InboxSweepJob) Name() string {
	return "inbox_sweep"
}

func (j *InboxSweepJob) Run(ctx context.Context) error {
	if j.watcher == nil {
		return nil
	}
	return j.watcher.Sweep(ctx)
}
