package schedule

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// Job is one unit of recurring background work (inbox sweep, catalog
// cleanup). Run must be safe to call again after an error.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler drives jobs on standard 5-field cron expressions. A tick that
// fires while the previous run of the same job is still going is dropped,
// not queued: a slow inbox sweep must never pile up behind itself.
type Scheduler struct {
	cron *cron.Cron
	ctx  context.Context
}

func New() *Scheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return &Scheduler{cron: cron.New(cron.WithParser(parser))}
}

func (s *Scheduler) Add(spec string, job Job) error {
	if _, err := s.cron.AddFunc(spec, s.guard(job, spec)); err != nil {
		return fmt.Errorf("schedule %s: %w", job.Name(), err)
	}
	logutil.GetLogger(context.Background()).Info("job scheduled",
		zap.String("job", job.Name()),
		zap.String("cron", spec),
	)
	return nil
}

func (s *Scheduler) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.ctx = ctx
	s.cron.Start()
}

// Stop waits for in-flight job runs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) guard(job Job, spec string) func() {
	var inFlight atomic.Bool
	return func() {
		if !inFlight.CompareAndSwap(false, true) {
			logutil.GetLogger(context.Background()).Warn("job still running, tick dropped",
				zap.String("job", job.Name()),
				zap.String("cron", spec),
			)
			return
		}
		defer inFlight.Store(false)

		ctx := s.ctx
		if ctx == nil {
			ctx = context.Background()
		}
		logger := logutil.GetLogger(ctx).With(zap.String("job", job.Name()))
		start := time.Now()
		if err := job.Run(ctx); err != nil {
			logger.Error("job failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
			return
		}
		logger.Info("job done", zap.Duration("elapsed", time.Since(start)))
	}
}
