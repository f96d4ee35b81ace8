package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultWorkers is the worker pool size when none is configured.
const DefaultWorkers = 8

// Observer receives queue measurements.
type Observer interface {
	ObserveQueueWait(d time.Duration)
	SetQueueDepth(n int)
}

// Stats is a snapshot of the manager.
type Stats struct {
	Sessions    int `json:"sessions"`
	Queued      int `json:"queued"`
	Processing  int `json:"processing"`
	IdleWorkers int `json:"idle_workers"`
	Workers     int `json:"workers"`
}

// Manager runs jobs so that jobs of one session execute one at a time in
// submission order, while jobs of different sessions run in parallel on a
// fixed pool of workers. Sessions are served round-robin.
type Manager struct {
	workers      int
	limiter      *RateLimiter
	sweepEvery   time.Duration
	limiterIdle  time.Duration
	panicHandler PanicHandler
	observer     Observer
	logger       *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	incomingCh chan *Job
	requestCh  chan chan *Job
	completeCh chan *Job

	// Dispatcher state, mutated only by the dispatcher goroutine.
	mu                sync.Mutex
	queues            map[string]*ConversationQueue
	conversationOrder []string
	currentIndex      int
	waitingWorkers    []chan *Job

	wg       sync.WaitGroup
	started  bool
	stopped  chan struct{}
	stopOnce sync.Once
}

// Option configures a Manager.
type Option func(*Manager)

// WithWorkers sets the worker pool size.
func WithWorkers(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.workers = n
		}
	}
}

// WithRateLimiter limits turns per session.
func WithRateLimiter(rl *RateLimiter) Option {
	return func(m *Manager) {
		m.limiter = rl
	}
}

// WithLimiterSweep drops rate limiter entries idle for longer than idle,
// checking every interval. Non-positive values disable sweeping.
func WithLimiterSweep(interval, idle time.Duration) Option {
	return func(m *Manager) {
		if interval > 0 && idle > 0 {
			m.sweepEvery = interval
			m.limiterIdle = idle
		}
	}
}

// WithPanicHandler replaces the default logging panic handler.
func WithPanicHandler(h PanicHandler) Option {
	return func(m *Manager) {
		if h != nil {
			m.panicHandler = h
		}
	}
}

// WithObserver reports queue wait times and depth.
func WithObserver(o Observer) Option {
	return func(m *Manager) {
		m.observer = o
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a manager. Call Start before Do.
func NewManager(opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		workers:    DefaultWorkers,
		logger:     zap.NewNop(),
		ctx:        ctx,
		cancel:     cancel,
		incomingCh: make(chan *Job, 100),
		requestCh:  make(chan chan *Job),
		completeCh: make(chan *Job),
		queues:     make(map[string]*ConversationQueue),
		stopped:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.Named("queue")
	if m.panicHandler == nil {
		m.panicHandler = NewLogPanicHandler(m.logger)
	}
	return m
}

// Start launches the dispatcher and workers. They stop when ctx is done or
// Shutdown is called.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return fmt.Errorf("queue manager already started")
	}
	if m.ctx.Err() != nil {
		m.mu.Unlock()
		return ErrQueueStopped
	}
	m.started = true
	m.mu.Unlock()

	context.AfterFunc(ctx, m.cancel)

	m.wg.Add(1 + m.workers)
	go m.dispatch()
	for range m.workers {
		go m.work()
	}
	if m.limiter != nil && m.sweepEvery > 0 {
		m.wg.Add(1)
		go m.sweepLimiters()
	}
	go func() {
		m.wg.Wait()
		m.markStopped()
	}()

	m.logger.Info("queue manager started", zap.Int("workers", m.workers))
	return nil
}

// Do runs fn for sessionID after every earlier job of that session has
// finished, and returns fn's error. fn receives ctx. Do returns early with
// ctx's error if ctx ends first; fn may still be running then.
func (m *Manager) Do(ctx context.Context, sessionID string, fn func(ctx context.Context) error) error {
	if sessionID == "" {
		return ErrInvalidSession
	}
	if fn == nil {
		return fmt.Errorf("queue: nil job function")
	}
	m.mu.Lock()
	started := m.started
	m.mu.Unlock()
	if !started || m.ctx.Err() != nil {
		return ErrQueueStopped
	}
	if !m.limiter.Allow(sessionID) {
		return fmt.Errorf("session %s: %w", sessionID, ErrRateLimited)
	}

	job := newJob(ctx, sessionID, fn)
	select {
	case m.incomingCh <- job:
	case <-ctx.Done():
		return ctx.Err()
	case <-m.ctx.Done():
		return ErrQueueStopped
	}

	select {
	case err := <-job.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-m.stopped:
		select {
		case err := <-job.done:
			return err
		default:
			return ErrQueueStopped
		}
	}
}

// Shutdown stops accepting work, fails queued jobs with ErrQueueStopped and
// waits up to timeout for running jobs to finish.
func (m *Manager) Shutdown(timeout time.Duration) error {
	m.cancel()

	m.mu.Lock()
	started := m.started
	m.mu.Unlock()
	if !started {
		m.markStopped()
		return nil
	}

	select {
	case <-m.stopped:
		m.logger.Info("queue manager stopped")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("shutdown timeout after %v", timeout)
	}
}

// Stats returns current queue statistics.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Stats{
		Sessions:    len(m.queues),
		IdleWorkers: len(m.waitingWorkers),
		Workers:     m.workers,
	}
	for _, q := range m.queues {
		s.Queued += q.Size()
		if q.IsProcessing() {
			s.Processing++
		}
	}
	return s
}

func (m *Manager) markStopped() {
	m.stopOnce.Do(func() { close(m.stopped) })
}

func (m *Manager) sweepLimiters() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			if removed := m.limiter.Forget(m.limiterIdle); removed > 0 {
				m.logger.Debug("forgot idle rate limiters",
					zap.Int("removed", removed),
					zap.Int("remaining", m.limiter.Len()))
			}
		}
	}
}

// dispatch owns the per-session queues and hands jobs to idle workers.
func (m *Manager) dispatch() {
	defer m.wg.Done()
	defer m.drain()

	for {
		select {
		case <-m.ctx.Done():
			return

		case job := <-m.incomingCh:
			m.enqueue(job)
			m.assign()

		case workerCh := <-m.requestCh:
			m.mu.Lock()
			m.waitingWorkers = append(m.waitingWorkers, workerCh)
			m.mu.Unlock()
			m.assign()

		case job := <-m.completeCh:
			m.complete(job)
			m.assign()
		}
	}
}

func (m *Manager) enqueue(job *Job) {
	m.mu.Lock()
	defer m.mu.Unlock()

	queue, exists := m.queues[job.SessionID]
	if !exists {
		queue = NewConversationQueue(job.SessionID)
		m.queues[job.SessionID] = queue
		m.conversationOrder = append(m.conversationOrder, job.SessionID)
	}
	if err := queue.Enqueue(job); err != nil {
		job.finish(err)
		return
	}
	m.reportDepthLocked()
}

func (m *Manager) complete(job *Job) {
	m.mu.Lock()
	defer m.mu.Unlock()

	queue, exists := m.queues[job.SessionID]
	if !exists {
		return
	}
	queue.Complete()
	if queue.IsEmpty() {
		m.removeLocked(job.SessionID)
	}
}

// assign pairs idle workers with the next runnable jobs. Worker channels are
// buffered, so sends never block.
func (m *Manager) assign() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for len(m.waitingWorkers) > 0 {
		job := m.nextJobLocked()
		if job == nil {
			return
		}
		workerCh := m.waitingWorkers[0]
		m.waitingWorkers = m.waitingWorkers[1:]
		workerCh <- job
	}
	m.reportDepthLocked()
}

// nextJobLocked picks the next job round-robin across sessions, skipping
// sessions that already have a job in flight.
func (m *Manager) nextJobLocked() *Job {
	for attempts := len(m.conversationOrder); attempts > 0; attempts-- {
		if m.currentIndex >= len(m.conversationOrder) {
			m.currentIndex = 0
		}
		id := m.conversationOrder[m.currentIndex]
		m.currentIndex++

		queue := m.queues[id]
		if queue == nil || queue.IsProcessing() {
			continue
		}
		if job := queue.Dequeue(); job != nil {
			return job
		}
	}
	return nil
}

func (m *Manager) removeLocked(sessionID string) {
	delete(m.queues, sessionID)
	for i, id := range m.conversationOrder {
		if id == sessionID {
			m.conversationOrder = append(m.conversationOrder[:i], m.conversationOrder[i+1:]...)
			if m.currentIndex > i {
				m.currentIndex--
			}
			break
		}
	}
}

func (m *Manager) reportDepthLocked() {
	if m.observer == nil {
		return
	}
	depth := 0
	for _, q := range m.queues {
		depth += q.Size()
	}
	m.observer.SetQueueDepth(depth)
}

// drain fails every job that never reached a worker.
func (m *Manager) drain() {
	m.mu.Lock()
	defer m.mu.Unlock()

	failed := 0
	for id, q := range m.queues {
		for _, job := range q.drain() {
			job.finish(ErrQueueStopped)
			failed++
		}
		delete(m.queues, id)
	}
	m.conversationOrder = nil
	m.waitingWorkers = nil

	for {
		select {
		case job := <-m.incomingCh:
			job.finish(ErrQueueStopped)
			failed++
		default:
			if failed > 0 {
				m.logger.Warn("queued jobs dropped at shutdown", zap.Int("jobs", failed))
			}
			return
		}
	}
}
