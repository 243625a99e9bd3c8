// Package schedule sends preconfigured messages over an EventSocket on cron
// schedules.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Parser accepts standard five-field specs, an optional leading seconds
// field, and descriptors such as "@every 30s" or "@hourly".
var Parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// DefaultSendTimeout bounds a single scheduled send.
const DefaultSendTimeout = 10 * time.Second

// Sender is the subset of *chatsocket.EventSocket the scheduler needs.
type Sender interface {
	Send(ctx context.Context, message string) error
}

// Job is a named message sent every time its schedule fires.
type Job struct {
	Name     string
	Schedule string
	Message  string
}

// Scheduler runs Jobs against a Sender.
type Scheduler struct {
	cron        *cron.Cron
	sender      Sender
	logger      *zap.Logger
	sendTimeout time.Duration
	jobs        int
}

// New creates a Scheduler in the given location. A nil logger is replaced by
// a no-op logger and a nil location means time.Local.
func New(sender Sender, logger *zap.Logger, location *time.Location) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if location == nil {
		location = time.Local
	}

	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(NewZapCronLogger(logger)),
			cron.WithParser(Parser),
			cron.WithLocation(location),
		),
		sender:      sender,
		logger:      logger,
		sendTimeout: DefaultSendTimeout,
	}
}

// WithSendTimeout overrides the per-send timeout.
func (s *Scheduler) WithSendTimeout(timeout time.Duration) *Scheduler {
	if timeout > 0 {
		s.sendTimeout = timeout
	}
	return s
}

// Add registers job. It fails if the schedule does not parse.
func (s *Scheduler) Add(job Job) error {
	if _, err := s.cron.AddJob(job.Schedule, &sendJob{scheduler: s, job: job}); err != nil {
		return fmt.Errorf("invalid schedule %q for %s: %w", job.Schedule, job.Name, err)
	}
	s.jobs++
	return nil
}

// Len returns the number of registered jobs.
func (s *Scheduler) Len() int {
	return s.jobs
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler. The returned context is done once running jobs
// have finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

type sendJob struct {
	scheduler *Scheduler
	job       Job
}

func (j *sendJob) Run() {
	s := j.scheduler

	ctx, cancel := context.WithTimeout(context.Background(), s.sendTimeout)
	defer cancel()

	if err := s.sender.Send(ctx, j.job.Message); err != nil {
		s.logger.Warn("Scheduled send failed", zap.String("announce", j.job.Name), zap.Error(err))
		return
	}

	s.logger.Debug("Scheduled send", zap.String("announce", j.job.Name))
}
