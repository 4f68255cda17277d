package jobs

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/sirupsen/logrus"

	"gvsdash/internal/storage"
)

// The newest training job is mirrored to storage so an unfinished run
// survives a restart. The slot is cleared when that job succeeds and kept
// when it fails, so the failure stays visible.

// mirrorLatest writes the current state of taskID to the mirror if it is
// still the newest training job. The check and the write happen under
// mirrorMu, so a submission in between always wins.
func (t *Tracker) mirrorLatest(ctx context.Context, taskID string) {
	t.mirrorMu.Lock()
	defer t.mirrorMu.Unlock()

	latest, ok := t.Latest(KindTrain)
	if !ok || latest.TaskID != taskID {
		return
	}
	t.saveMirror(ctx, latest)
}

func (t *Tracker) saveMirror(ctx context.Context, job Job) {
	log := t.log.WithField("task_id", job.TaskID)

	if job.Status == StatusSuccess {
		if err := t.store.Delete(ctx, storage.KeyTrainingTask); err != nil {
			log.WithError(err).Warn("Failed to clear training task mirror")
		}
		return
	}

	data, err := json.Marshal(job)
	if err != nil {
		log.WithError(err).Warn("Failed to encode training task mirror")
		return
	}
	if err := t.store.Set(ctx, storage.KeyTrainingTask, string(data)); err != nil {
		log.WithError(err).Warn("Failed to save training task mirror")
	}
}

// loadMirror returns the mirrored training job, or nil when the slot is
// empty or unreadable.
func (t *Tracker) loadMirror(ctx context.Context) *Job {
	raw, err := t.store.Get(ctx, storage.KeyTrainingTask)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			t.log.WithError(err).Debug("Training task mirror unreadable")
		}
		return nil
	}

	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		t.log.WithError(err).Debug("Training task mirror malformed, ignoring")
		return nil
	}
	if job.TaskID == "" {
		return nil
	}
	job.Kind = KindTrain
	return &job
}

func (t *Tracker) restoreMirror(ctx context.Context) {
	job := t.loadMirror(ctx)
	if job == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.index[job.TaskID]; exists {
		return
	}
	t.jobs = append(t.jobs, job)
	t.index[job.TaskID] = job

	t.log.WithFields(logrus.Fields{
		"task_id": job.TaskID,
		"status":  job.Status,
	}).Info("Restored training task")
}
