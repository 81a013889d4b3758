package worker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultBacklog     = 256
	DefaultConcurrency = 4
	DefaultTaskTimeout = 30 * time.Second
)

// Task is a unit of background work
type Task func(ctx context.Context) error

// Config holds pool sizing
type Config struct {
	Backlog     int
	Concurrency int64
	TaskTimeout time.Duration
}

// Outcome describes a finished task
type Outcome struct {
	ID       string
	Name     string
	Duration time.Duration
	Err      error
	Panicked bool
}

type queuedTask struct {
	id   string
	name string
	task Task
}

// Pool runs side-channel work such as notifications and spreadsheet writes off the request path.
// Submissions never block: when the backlog is full the task is dropped.
type Pool struct {
	cfg      Config
	tasks    chan queuedTask
	sem      *semaphore.Weighted
	observer func(Outcome)

	mu      sync.Mutex
	closed  bool
	started bool

	running        sync.WaitGroup
	dispatcherDone chan struct{}
}

// NewPool creates a pool; zero config values take defaults
func NewPool(cfg Config) *Pool {
	if cfg.Backlog <= 0 {
		cfg.Backlog = DefaultBacklog
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = DefaultTaskTimeout
	}
	return &Pool{
		cfg:            cfg,
		tasks:          make(chan queuedTask, cfg.Backlog),
		sem:            semaphore.NewWeighted(cfg.Concurrency),
		dispatcherDone: make(chan struct{}),
	}
}

// SetObserver registers a callback invoked after every task; call before Start
func (p *Pool) SetObserver(observer func(Outcome)) {
	p.observer = observer
}

// Submit queues a task and reports whether it was accepted
func (p *Pool) Submit(name string, task Task) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		log.WithField("task", name).Warn("Worker pool is stopped, dropping task")
		return false
	}

	queued := queuedTask{id: uuid.NewString(), name: name, task: task}
	select {
	case p.tasks <- queued:
		return true
	default:
		log.WithFields(log.Fields{
			"task":    name,
			"task_id": queued.id,
			"backlog": p.cfg.Backlog,
		}).Warn("Worker pool backlog full, dropping task")
		return false
	}
}

// Start launches the dispatcher. Tasks run with ctx as their parent.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	log.WithFields(log.Fields{
		"backlog":     p.cfg.Backlog,
		"concurrency": p.cfg.Concurrency,
	}).Info("Starting worker pool")

	go p.dispatch(ctx)
}

// Stop refuses new tasks, runs what is queued and waits for running tasks to finish
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	started := p.started
	p.mu.Unlock()

	if started {
		<-p.dispatcherDone
	}
	p.running.Wait()
	log.Info("Worker pool stopped")
}

func (p *Pool) dispatch(ctx context.Context) {
	defer close(p.dispatcherDone)

	for queued := range p.tasks {
		if err := p.sem.Acquire(ctx, 1); err != nil {
			log.WithFields(log.Fields{
				"task":    queued.name,
				"task_id": queued.id,
			}).Warn("Worker pool shutting down, dropping queued task")
			continue
		}

		p.running.Add(1)
		go func(queued queuedTask) {
			defer p.running.Done()
			defer p.sem.Release(1)
			p.run(ctx, queued)
		}(queued)
	}
}

func (p *Pool) run(ctx context.Context, queued queuedTask) {
	taskCtx, cancel := context.WithTimeout(ctx, p.cfg.TaskTimeout)
	defer cancel()

	started := time.Now()
	outcome := Outcome{ID: queued.id, Name: queued.name}

	defer func() {
		if r := recover(); r != nil {
			outcome.Panicked = true
			log.WithFields(log.Fields{
				"task":    queued.name,
				"task_id": queued.id,
				"panic":   r,
			}).Error("Worker task panicked")
		}
		outcome.Duration = time.Since(started)
		if p.observer != nil {
			p.observer(outcome)
		}
	}()

	outcome.Err = queued.task(taskCtx)
	if outcome.Err != nil {
		log.WithFields(log.Fields{
			"task":    queued.name,
			"task_id": queued.id,
			"error":   outcome.Err,
		}).Warn("Worker task failed")
	}
}
