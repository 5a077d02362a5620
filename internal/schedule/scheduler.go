package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

var ErrJobRunning = errors.New("job is still running")

type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type Scheduler interface {
	AddJob(job Job, spec string) error
	RunNow(name string) error
	Start(ctx context.Context)
	Stop()
}

// guardedJob lets a cron tick and a manual trigger share one running flag,
// so a job never overlaps with itself.
type guardedJob struct {
	job     Job
	spec    string
	running atomic.Bool
}

type CronScheduler struct {
	mu   sync.RWMutex
	cron *cron.Cron
	jobs map[string]*guardedJob
	ctx  context.Context
}

func NewCronScheduler() *CronScheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &CronScheduler{
		cron: cron.New(cron.WithParser(parser)),
		jobs: make(map[string]*guardedJob),
		ctx:  context.Background(),
	}
}

func (c *CronScheduler) AddJob(job Job, spec string) error {
	name := job.Name()
	logger := logutil.GetLogger(context.Background()).With(zap.String("job", name), zap.String("spec", spec))
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.jobs[name]; exists {
		return fmt.Errorf("job %s already scheduled", name)
	}
	g := &guardedJob{job: job, spec: spec}
	if _, err := c.cron.AddFunc(spec, func() { _ = c.run(g) }); err != nil {
		logger.Error("schedule job failed", zap.Error(err))
		return err
	}
	c.jobs[name] = g
	logger.Info("job scheduled")
	return nil
}

// RunNow runs a scheduled job synchronously outside its cron slot.
func (c *CronScheduler) RunNow(name string) error {
	c.mu.RLock()
	g, ok := c.jobs[name]
	c.mu.RUnlock()
	if !ok {
		return fmt.Errorf("job %s not found", name)
	}
	return c.run(g)
}

func (c *CronScheduler) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	c.mu.Lock()
	c.ctx = ctx
	c.mu.Unlock()
	c.cron.Start()
}

func (c *CronScheduler) Stop() {
	ctx := c.cron.Stop()
	<-ctx.Done()
}

func (c *CronScheduler) run(g *guardedJob) error {
	c.mu.RLock()
	ctx := c.ctx
	c.mu.RUnlock()
	logger := logutil.GetLogger(ctx).With(
		zap.String("job", g.job.Name()),
		zap.String("spec", g.spec),
	)
	if !g.running.CompareAndSwap(false, true) {
		logger.Info("job skipped: still running")
		return ErrJobRunning
	}
	defer g.running.Store(false)

	start := time.Now()
	logger.Info("job started")
	err := g.job.Run(ctx)
	elapsed := time.Since(start)
	if err != nil {
		logger.Error("job finished", zap.Error(err), zap.Duration("duration", elapsed))
		return err
	}
	logger.Info("job finished", zap.Duration("duration", elapsed))
	return nil
}
