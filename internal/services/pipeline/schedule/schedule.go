// Package schedule runs the pipeline entry points on cron specs
package schedule

import (
	"context"
	"strings"
	"sync"
	"time"

	perr "contribot/internal/platform/errors"
	"contribot/internal/platform/logger"

	"github.com/robfig/cron/v3"
)

// Off disables a job when used as its spec
const Off = "off"

// parser takes standard 5-field expressions plus descriptors like @hourly
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// JobFunc is one scheduled unit of work
type JobFunc func(ctx context.Context) error

type job struct {
	name  string
	sched cron.Schedule
	fn    JobFunc
	mu    sync.Mutex
}

// Scheduler fires jobs on their specs. A job still running when its next tick
// arrives is skipped for that tick
type Scheduler struct {
	log  logger.Logger
	loc  *time.Location
	jobs []*job
}

// New builds an empty scheduler evaluating specs in UTC
func New(log logger.Logger) *Scheduler {
	return &Scheduler{log: logger.Component(log, "schedule"), loc: time.UTC}
}

// Add registers fn under name. An empty or "off" spec leaves the job out
func (s *Scheduler) Add(name, spec string, fn JobFunc) error {
	spec = strings.TrimSpace(spec)
	if spec == "" || strings.EqualFold(spec, Off) {
		s.log.Info().Str("job", name).Msg("job disabled")
		return nil
	}
	sched, err := parser.Parse(spec)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "schedule %s: bad spec %q", name, spec)
	}
	s.jobs = append(s.jobs, &job{name: name, sched: sched, fn: fn})
	return nil
}

// Len reports how many jobs are enabled
func (s *Scheduler) Len() int { return len(s.jobs) }

// Run fires jobs until ctx ends, then waits for running jobs to return
func (s *Scheduler) Run(ctx context.Context) error {
	if len(s.jobs) == 0 {
		return perr.InvalidArgf("schedule: no jobs enabled")
	}
	c := cron.New(cron.WithParser(parser), cron.WithLocation(s.loc))
	for _, j := range s.jobs {
		c.Schedule(j.sched, cron.FuncJob(func() { s.fire(ctx, j) }))
		s.log.Info().Str("job", j.name).Time("next", j.sched.Next(time.Now().In(s.loc))).Msg("job scheduled")
	}
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// fire runs j unless a previous tick of j is still going
func (s *Scheduler) fire(ctx context.Context, j *job) bool {
	log := s.log.With().Str("job", j.name).Logger()
	if !j.mu.TryLock() {
		log.Warn().Msg("previous run still going; tick skipped")
		return false
	}
	defer j.mu.Unlock()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("job panicked")
		}
	}()
	if err := j.fn(ctx); err != nil {
		log.Error().Err(err).Dur("took", time.Since(start)).Msg("job failed")
		return true
	}
	log.Info().Dur("took", time.Since(start)).Msg("job done")
	return true
}
