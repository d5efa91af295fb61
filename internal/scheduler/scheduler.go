// Package scheduler runs named jobs on cron schedules. Job bodies are plain
// functions so they can also be run on demand.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/robfig/cron/v3"
)

// Job is a unit of scheduled work.
type Job struct {
	Name string
	Spec string
	// Timeout bounds one run; zero means no limit.
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// Scheduler wraps a cron runner. A job's failure or panic is logged and
// reported, never propagated, and the job fires again at its next slot.
type Scheduler struct {
	cron   *cron.Cron
	locker Locker
	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	jobs map[string]entry
}

type entry struct {
	job Job
	id  cron.EntryID
}

func New(loc *time.Location, locker Locker) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if locker == nil {
		locker = NewLocalLocker()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(loc)),
		locker: locker,
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(map[string]entry),
	}
}

// Register adds job under its cron spec. An empty spec registers the job for
// on-demand runs only.
func (s *Scheduler) Register(job Job) error {
	if job.Name == "" || job.Run == nil {
		return fmt.Errorf("scheduler: job needs a name and a body")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.jobs[job.Name]; dup {
		return fmt.Errorf("scheduler: job %q already registered", job.Name)
	}
	e := entry{job: job}
	if job.Spec != "" {
		id, err := s.cron.AddFunc(job.Spec, func() { _ = s.execute(s.ctx, job) })
		if err != nil {
			return fmt.Errorf("scheduler: job %q spec %q: %w", job.Name, job.Spec, err)
		}
		e.id = id
	}
	s.jobs[job.Name] = e
	slog.Info("job registered", "job", job.Name, "spec", job.Spec)
	return nil
}

// RunNow executes a registered job synchronously under the same lock and
// recovery as a scheduled run, and returns its error. The run is cancelled
// when ctx ends or the scheduler is stopped.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	e, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("scheduler: unknown job %q", name)
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	unhook := context.AfterFunc(s.ctx, cancel)
	defer unhook()
	return s.execute(ctx, e.job)
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling, cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	stopped := s.cron.Stop()
	s.cancel()
	<-stopped.Done()
}

// Next reports the next firing time of each scheduled job. Times are zero
// until Start is called.
func (s *Scheduler) Next() map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]time.Time, len(s.jobs))
	for name, e := range s.jobs {
		if e.id != 0 {
			out[name] = s.cron.Entry(e.id).Next
		}
	}
	return out
}

var ErrJobRunning = errors.New("job already running")

func (s *Scheduler) execute(ctx context.Context, job Job) (err error) {
	release, ok, lockErr := s.locker.TryLock(ctx, job.Name)
	if lockErr != nil {
		slog.Error("job lock failed", "job", job.Name, "error", lockErr)
		return lockErr
	}
	if !ok {
		slog.Warn("job skipped, previous run still active", "job", job.Name)
		return ErrJobRunning
	}
	defer release()

	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name, r)
			sentry.CurrentHub().Recover(r)
			slog.Error("job panicked", "job", job.Name, "panic", fmt.Sprint(r), "duration_ms", time.Since(start).Milliseconds())
		}
	}()

	slog.Info("job started", "job", job.Name)
	if err = job.Run(ctx); err != nil {
		sentry.CaptureException(fmt.Errorf("job %s: %w", job.Name, err))
		slog.Error("job failed", "job", job.Name, "error", err, "duration_ms", time.Since(start).Milliseconds())
		return err
	}
	slog.Info("job finished", "job", job.Name, "duration_ms", time.Since(start).Milliseconds())
	return nil
}
