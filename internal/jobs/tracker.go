// Package jobs tracks backend ML tasks from submission until they finish.
//
// A Tracker submits train, forecast and anomaly-scan jobs, remembers every
// job it submitted for the life of the process, and polls the status of the
// unfinished ones on a fixed interval. The interval is only scheduled while
// at least one job is unfinished. Each job has at most one poll in flight; a
// slow poll only delays its own job.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"gvsdash/internal/api"
	"gvsdash/internal/storage"
)

// Backend submits jobs and reads their status. *api.MLClient implements it.
type Backend interface {
	Train(ctx context.Context, req api.TrainRequest) (*api.TaskDescriptor, error)
	RunForecast(ctx context.Context, req api.ForecastRequest) (*api.TaskDescriptor, error)
	AnomalyScan(ctx context.Context, req api.AnomalyScanRequest) (*api.TaskDescriptor, error)
	TaskStatus(ctx context.Context, taskID string) (*api.TaskDescriptor, error)
}

// Invalidator drops cached reads. *api.Client implements it.
type Invalidator interface {
	Invalidate(tags ...api.Tag)
}

// Tracker owns the in-memory job list and the polling schedule.
type Tracker struct {
	backend     Backend
	store       storage.Storage
	invalidator Invalidator
	interval    time.Duration
	log         logrus.FieldLogger
	now         func() time.Time

	mu       sync.RWMutex
	jobs     []*Job // newest first
	index    map[string]*Job
	inflight map[string]struct{}
	polls    sync.WaitGroup

	// mirrorMu orders mirror writes so an older training job never
	// overwrites a newer one.
	mirrorMu sync.Mutex

	subsMu  sync.Mutex
	subs    map[int]func(Job)
	nextSub int

	cronMu  sync.Mutex
	cron    *cron.Cron
	entry   cron.EntryID
	armed   bool
	runCtx  context.Context
	cancel  context.CancelFunc
	started bool
}

// NewTracker creates a tracker. store holds the training mirror; invalidator
// may be nil.
func NewTracker(backend Backend, store storage.Storage, invalidator Invalidator, interval time.Duration, log logrus.FieldLogger) *Tracker {
	log = log.WithField("component", "jobs")
	return &Tracker{
		backend:     backend,
		store:       store,
		invalidator: invalidator,
		interval:    interval,
		log:         log,
		now:         time.Now,
		index:       make(map[string]*Job),
		inflight:    make(map[string]struct{}),
		subs:        make(map[int]func(Job)),
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cron.PrintfLogger(log)),
		)),
		runCtx: context.Background(),
	}
}

// Start restores the training mirror and begins polling. The context bounds
// every scheduled poll until Stop.
func (t *Tracker) Start(ctx context.Context) {
	t.restoreMirror(ctx)

	t.cronMu.Lock()
	if t.started {
		t.cronMu.Unlock()
		return
	}
	t.runCtx, t.cancel = context.WithCancel(ctx)
	t.started = true
	t.cron.Start()
	t.cronMu.Unlock()

	t.rearm()
	t.log.WithField("interval", t.interval).Info("Job tracker started")
}

// Stop halts the schedule, cancels scheduled polls and waits for them to
// return.
func (t *Tracker) Stop() {
	t.cronMu.Lock()
	if !t.started {
		t.cronMu.Unlock()
		return
	}
	t.started = false
	cancel := t.cancel
	t.cronMu.Unlock()

	<-t.cron.Stop().Done()
	cancel()
	t.polls.Wait()
	t.log.Info("Job tracker stopped")
}

// Submit starts a job of the given kind. payload must be the request type
// for the kind. A failed submission tracks nothing and is never retried.
func (t *Tracker) Submit(ctx context.Context, kind Kind, payload interface{}) (Job, error) {
	desc, err := t.dispatch(ctx, kind, payload)
	if err != nil {
		return Job{}, err
	}

	job := newJob(kind, desc, t.now())

	t.mu.Lock()
	t.jobs = append([]*Job{job}, t.jobs...)
	t.index[job.TaskID] = job
	snapshot := job.clone()
	t.mu.Unlock()

	t.log.WithFields(logrus.Fields{
		"task_id": snapshot.TaskID,
		"kind":    kind,
		"status":  snapshot.Status,
	}).Info("Job submitted")

	t.afterUpdate(ctx, snapshot, false)
	t.rearm()
	return snapshot, nil
}

func (t *Tracker) SubmitTraining(ctx context.Context, req api.TrainRequest) (Job, error) {
	return t.Submit(ctx, KindTrain, req)
}

func (t *Tracker) SubmitForecast(ctx context.Context, req api.ForecastRequest) (Job, error) {
	return t.Submit(ctx, KindForecast, req)
}

func (t *Tracker) SubmitAnomalyScan(ctx context.Context, req api.AnomalyScanRequest) (Job, error) {
	return t.Submit(ctx, KindAnomalyScan, req)
}

func (t *Tracker) dispatch(ctx context.Context, kind Kind, payload interface{}) (*api.TaskDescriptor, error) {
	switch kind {
	case KindTrain:
		req, ok := payload.(api.TrainRequest)
		if !ok {
			return nil, fmt.Errorf("%w: %s got %T", ErrPayloadMismatch, kind, payload)
		}
		return t.backend.Train(ctx, req)
	case KindForecast:
		req, ok := payload.(api.ForecastRequest)
		if !ok {
			return nil, fmt.Errorf("%w: %s got %T", ErrPayloadMismatch, kind, payload)
		}
		return t.backend.RunForecast(ctx, req)
	case KindAnomalyScan:
		req, ok := payload.(api.AnomalyScanRequest)
		if !ok {
			return nil, fmt.Errorf("%w: %s got %T", ErrPayloadMismatch, kind, payload)
		}
		return t.backend.AnomalyScan(ctx, req)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

// Tick polls every unfinished job once, concurrently, and waits for those
// polls. Jobs whose previous poll is still outstanding are skipped. Failed
// polls are dropped; the next tick tries again.
func (t *Tracker) Tick(ctx context.Context) {
	t.startPolls(ctx).Wait()
	t.rearm()
}

// startPolls launches a poll for every unfinished job without one in flight
// and returns without waiting. Each poll rearms the interval when it ends.
func (t *Tracker) startPolls(ctx context.Context) *sync.WaitGroup {
	var started sync.WaitGroup
	for _, taskID := range t.claimPollable() {
		started.Add(1)
		t.polls.Add(1)
		go func(taskID string) {
			defer t.polls.Done()
			defer started.Done()

			if err := t.poll(ctx, taskID); err != nil {
				t.log.WithError(err).WithField("task_id", taskID).Debug("Poll failed, retrying on next tick")
			}
			t.release(taskID)
			t.rearm()
		}(taskID)
	}
	return &started
}

// Refresh polls one job immediately, whatever its status, and reports the
// error to the caller.
func (t *Tracker) Refresh(ctx context.Context, taskID string) (Job, error) {
	t.mu.RLock()
	_, ok := t.index[taskID]
	t.mu.RUnlock()
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, taskID)
	}

	if err := t.poll(ctx, taskID); err != nil {
		return Job{}, err
	}
	t.rearm()

	job, _ := t.Job(taskID)
	return job, nil
}

// Wait blocks until the job reaches a terminal status or ctx ends. The
// status only moves while the tracker is started or someone calls Tick.
func (t *Tracker) Wait(ctx context.Context, taskID string) (Job, error) {
	finished := make(chan Job, 1)
	unsubscribe := t.Subscribe(func(job Job) {
		if job.TaskID != taskID || !job.Terminal() {
			return
		}
		select {
		case finished <- job:
		default:
		}
	})
	defer unsubscribe()

	job, ok := t.Job(taskID)
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, taskID)
	}
	if job.Terminal() {
		return job, nil
	}

	select {
	case job := <-finished:
		return job, nil
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
}

func (t *Tracker) poll(ctx context.Context, taskID string) error {
	desc, err := t.backend.TaskStatus(ctx, taskID)
	if err != nil {
		return err
	}

	t.mu.Lock()
	job, ok := t.index[taskID]
	if !ok {
		t.mu.Unlock()
		return nil
	}
	wasTerminal := job.Terminal()
	job.merge(desc, t.now())
	snapshot := job.clone()
	t.mu.Unlock()

	t.afterUpdate(ctx, snapshot, wasTerminal)
	return nil
}

// afterUpdate persists the training mirror, invalidates reads a finished job
// made stale and notifies subscribers.
func (t *Tracker) afterUpdate(ctx context.Context, job Job, wasTerminal bool) {
	if job.Kind == KindTrain {
		t.mirrorLatest(ctx, job.TaskID)
	}

	if job.Status == StatusSuccess && !wasTerminal {
		t.log.WithFields(logrus.Fields{"task_id": job.TaskID, "kind": job.Kind}).Info("Job succeeded")
		if t.invalidator != nil {
			t.invalidator.Invalidate(staleTags(job.Kind)...)
		}
	} else if job.Status == StatusFailure && !wasTerminal {
		t.log.WithFields(logrus.Fields{"task_id": job.TaskID, "kind": job.Kind}).Warn("Job failed")
	}

	t.notify(job)
}

func staleTags(kind Kind) []api.Tag {
	switch kind {
	case KindTrain:
		return []api.Tag{api.TagModels}
	case KindForecast:
		return []api.Tag{api.TagForecasts}
	case KindAnomalyScan:
		return []api.Tag{api.TagAnomalies}
	}
	return nil
}

// claimPollable marks every unfinished job without an outstanding poll as
// in flight and returns their ids.
func (t *Tracker) claimPollable() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids := make([]string, 0, len(t.jobs))
	for _, job := range t.jobs {
		if job.Terminal() {
			continue
		}
		if _, busy := t.inflight[job.TaskID]; busy {
			continue
		}
		t.inflight[job.TaskID] = struct{}{}
		ids = append(ids, job.TaskID)
	}
	return ids
}

func (t *Tracker) release(taskID string) {
	t.mu.Lock()
	delete(t.inflight, taskID)
	t.mu.Unlock()
}

func (t *Tracker) hasPollable() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, job := range t.jobs {
		if !job.Terminal() {
			return true
		}
	}
	return false
}

// rearm schedules the interval while something is left to poll and removes
// it otherwise.
func (t *Tracker) rearm() {
	needed := t.hasPollable()

	t.cronMu.Lock()
	defer t.cronMu.Unlock()

	switch {
	case needed && !t.armed:
		t.entry = t.cron.Schedule(cron.Every(t.interval), cron.FuncJob(func() {
			t.cronMu.Lock()
			ctx := t.runCtx
			t.cronMu.Unlock()
			t.startPolls(ctx)
			t.rearm()
		}))
		t.armed = true
		t.log.Debug("Polling armed")
	case !needed && t.armed:
		t.cron.Remove(t.entry)
		t.armed = false
		t.log.Debug("Polling disarmed")
	}
}

// Armed reports whether the polling interval is scheduled.
func (t *Tracker) Armed() bool {
	t.cronMu.Lock()
	defer t.cronMu.Unlock()
	return t.armed
}

// Jobs returns every tracked job, newest first.
func (t *Tracker) Jobs() []Job {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Job, len(t.jobs))
	for i, job := range t.jobs {
		out[i] = job.clone()
	}
	return out
}

func (t *Tracker) Job(taskID string) (Job, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	job, ok := t.index[taskID]
	if !ok {
		return Job{}, false
	}
	return job.clone(), true
}

// Latest returns the most recently submitted job of a kind.
func (t *Tracker) Latest(kind Kind) (Job, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, job := range t.jobs {
		if job.Kind == kind {
			return job.clone(), true
		}
	}
	return Job{}, false
}

// Subscribe registers fn for every job change and returns a function that
// removes it. fn runs on the goroutine that observed the change.
func (t *Tracker) Subscribe(fn func(Job)) func() {
	t.subsMu.Lock()
	id := t.nextSub
	t.nextSub++
	t.subs[id] = fn
	t.subsMu.Unlock()

	return func() {
		t.subsMu.Lock()
		delete(t.subs, id)
		t.subsMu.Unlock()
	}
}

func (t *Tracker) notify(job Job) {
	t.subsMu.Lock()
	fns := make([]func(Job), 0, len(t.subs))
	for _, fn := range t.subs {
		fns = append(fns, fn)
	}
	t.subsMu.Unlock()

	for _, fn := range fns {
		fn(job)
	}
}
