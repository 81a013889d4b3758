package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"guildbot/models"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
)

// DefaultRetryDelay is how long a failed one-shot job waits before it runs again
const DefaultRetryDelay = time.Minute

// Runner executes the announcement behind a fired job.
// An error from a one-shot job re-arms it after the retry delay; repeating jobs just wait for their next slot.
type Runner func(ctx context.Context, announcementID int64) error

// JobInfo describes a registered job
type JobInfo struct {
	AnnouncementID int64     `json:"announcement_id"`
	Repeats        bool      `json:"repeats"`
	Next           time.Time `json:"next"` // zero until the scheduler is started
}

type job struct {
	id         int64
	trigger    Trigger
	generation uint64
	timer      clockwork.Timer
	next       time.Time
	inFlight   bool // one-shot job whose runner has not returned yet
}

func (j *job) stop() {
	if j.timer != nil {
		j.timer.Stop()
		j.timer = nil
	}
}

// Scheduler keeps one timer per announcement.
// Every registration gets a fresh generation; a timer callback whose generation is stale does nothing.
type Scheduler struct {
	mu         sync.Mutex
	clock      clockwork.Clock
	loc        *time.Location
	retryDelay time.Duration
	jobs       map[int64]*job
	generation uint64

	running bool
	ctx     context.Context
	runner  Runner
	wg      sync.WaitGroup
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithClock replaces the wall clock
func WithClock(clock clockwork.Clock) Option {
	return func(s *Scheduler) {
		s.clock = clock
	}
}

// WithRetryDelay sets how long a failed one-shot job waits before it runs again
func WithRetryDelay(delay time.Duration) Option {
	return func(s *Scheduler) {
		if delay > 0 {
			s.retryDelay = delay
		}
	}
}

// New creates a scheduler that interprets schedules in loc
func New(loc *time.Location, opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:      clockwork.NewRealClock(),
		loc:        loc,
		retryDelay: DefaultRetryDelay,
		jobs:       make(map[int64]*job),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Location returns the civil zone schedules are computed in
func (s *Scheduler) Location() *time.Location {
	return s.loc
}

// Schedule registers or replaces the job for the announcement
func (s *Scheduler) Schedule(announcement *models.Announcement) error {
	trigger, err := TriggerFor(announcement, s.loc)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if previous, ok := s.jobs[announcement.ID]; ok {
		previous.stop()
	}

	s.generation++
	j := &job{
		id:         announcement.ID,
		trigger:    trigger,
		generation: s.generation,
	}
	s.jobs[announcement.ID] = j

	if s.running {
		s.arm(j, s.clock.Now())
	}

	log.WithFields(log.Fields{
		"announcement_id": announcement.ID,
		"kind":            announcement.Kind,
		"next":            j.next,
	}).Debug("Announcement scheduled")

	return nil
}

// Unschedule removes the job; unknown IDs are ignored
func (s *Scheduler) Unschedule(announcementID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if j, ok := s.jobs[announcementID]; ok {
		j.stop()
		delete(s.jobs, announcementID)
	}
}

// Start arms every registered job and returns a function that stops the scheduler
// and waits for running jobs to return
func (s *Scheduler) Start(ctx context.Context, runner Runner) (stop func()) {
	s.mu.Lock()
	s.ctx = ctx
	s.runner = runner
	s.running = true
	now := s.clock.Now()
	for _, j := range s.jobs {
		if !j.inFlight {
			s.arm(j, now)
		}
	}
	count := len(s.jobs)
	s.mu.Unlock()

	log.WithField("jobs", count).Info("Scheduler started")

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.running = false
			for _, j := range s.jobs {
				j.stop()
			}
			s.mu.Unlock()

			s.wg.Wait()
			log.Info("Scheduler stopped")
		})
	}
}

// Jobs lists registered jobs waiting to fire, ordered by announcement ID
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]JobInfo, 0, len(s.jobs))
	for _, j := range s.jobs {
		if j.inFlight {
			continue
		}
		infos = append(infos, JobInfo{
			AnnouncementID: j.id,
			Repeats:        j.trigger.Repeats(),
			Next:           j.next,
		})
	}
	sort.Slice(infos, func(a, b int) bool {
		return infos[a].AnnouncementID < infos[b].AnnouncementID
	})
	return infos
}

// arm sets the job's timer for its next fire time after from. Caller holds s.mu.
func (s *Scheduler) arm(j *job, from time.Time) {
	j.stop()

	next := j.trigger.Next(from)
	if next.IsZero() {
		log.WithField("announcement_id", j.id).Warn("Schedule has no further fire times, dropping job")
		delete(s.jobs, j.id)
		return
	}
	j.next = next

	delay := next.Sub(s.clock.Now())
	if delay < 0 {
		delay = 0
	}

	id, generation := j.id, j.generation
	j.timer = s.clock.AfterFunc(delay, func() {
		s.fire(id, generation, next)
	})
}

func (s *Scheduler) fire(id int64, generation uint64, scheduledAt time.Time) {
	s.mu.Lock()
	j, ok := s.jobs[id]
	if !ok || j.generation != generation || !s.running {
		s.mu.Unlock()
		return
	}

	if j.trigger.Repeats() {
		// A timer that fires early must not yield the same slot again
		from := s.clock.Now()
		if scheduledAt.After(from) {
			from = scheduledAt
		}
		s.arm(j, from)
	} else {
		j.timer = nil
		j.next = time.Time{}
		j.inFlight = true
	}

	ctx, runner, repeats := s.ctx, s.runner, j.trigger.Repeats()
	s.wg.Add(1)
	s.mu.Unlock()

	defer s.wg.Done()

	if ctx.Err() != nil {
		if !repeats {
			s.settle(id, generation, nil)
		}
		return
	}

	log.WithFields(log.Fields{
		"announcement_id": id,
		"scheduled_at":    scheduledAt.In(s.loc).Format(time.RFC3339),
	}).Info("Running announcement job")

	err := s.run(ctx, runner, id)
	if !repeats {
		s.settle(id, generation, err)
	}
}

func (s *Scheduler) run(ctx context.Context, runner Runner, id int64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{
				"announcement_id": id,
				"panic":           r,
			}).Error("Announcement job panicked")
			err = fmt.Errorf("announcement job panicked: %v", r)
		}
	}()
	return runner(ctx, id)
}

// settle drops a finished one-shot job, or re-arms it after the retry delay when its run failed.
// A job that was replaced or unscheduled while running is left alone.
func (s *Scheduler) settle(id int64, generation uint64, runErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok || j.generation != generation {
		return
	}
	if runErr == nil || !s.running {
		delete(s.jobs, id)
		return
	}

	retryAt := s.clock.Now().Add(s.retryDelay)
	j.inFlight = false
	j.next = retryAt
	j.timer = s.clock.AfterFunc(s.retryDelay, func() {
		s.fire(id, generation, retryAt)
	})

	log.WithFields(log.Fields{
		"announcement_id": id,
		"retry_at":        retryAt.In(s.loc).Format(time.RFC3339),
		"error":           runErr,
	}).Warn("One-shot announcement failed, retrying")
}
