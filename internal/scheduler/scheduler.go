package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/abbasKakoolvand/OKR-analyze/pkg/logger"
)

// Job is one scheduled scoring pass.
type Job func(ctx context.Context) error

// Scheduler fires a Job on a standard 5-field cron expression. A tick that
// arrives while the previous run is still going is skipped.
type Scheduler struct {
	cron    *cron.Cron
	job     Job
	running atomic.Bool
	log     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(spec string, job Job) (*Scheduler, error) {
	spec = strings.TrimSpace(spec)
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(spec); err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:   cron.New(cron.WithParser(parser)),
		job:    job,
		log:    logger.Named("scheduler"),
		ctx:    ctx,
		cancel: cancel,
	}
	if _, err := s.cron.AddFunc(spec, func() { s.Tick() }); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to schedule job: %w", err)
	}

	s.log.Info("Scoring scheduled", zap.String("cron", spec))
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	for _, e := range s.cron.Entries() {
		s.log.Info("Next scheduled scoring run", zap.Time("at", e.Next))
	}
}

// Tick runs the job once unless a run is already in flight. It reports
// whether the job was started.
func (s *Scheduler) Tick() bool {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Warn("Previous scoring run still in progress, skipping tick")
		return false
	}
	s.wg.Add(1)
	defer s.wg.Done()
	defer s.running.Store(false)

	start := time.Now()
	if err := s.job(s.ctx); err != nil {
		s.log.Error("Scheduled scoring run failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return true
	}
	s.log.Info("Scheduled scoring run finished", zap.Duration("elapsed", time.Since(start)))
	return true
}

// Stop halts the schedule, cancels a running job and waits for it until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	cronCtx := s.cron.Stop()
	s.cancel()

	done := make(chan struct{})
	go func() {
		<-cronCtx.Done()
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
