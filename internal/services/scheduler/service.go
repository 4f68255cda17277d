// Package scheduler submits ML jobs on cron schedules stored in the database.
// Fired jobs go through the job tracker, so they are polled and mirrored
// like jobs started by hand.
package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"gvsdash/internal/jobs"
	"gvsdash/internal/models"
)

// Submitter starts jobs. *jobs.Tracker implements it.
type Submitter interface {
	Submit(ctx context.Context, kind jobs.Kind, payload interface{}) (jobs.Job, error)
}

// Service handles scheduled job management and execution
type Service struct {
	db        *gorm.DB
	ctx       context.Context
	cron      *cron.Cron
	entries   map[string]cron.EntryID // jobID -> cron entry ID
	entriesMu sync.RWMutex
	submitter Submitter
	log       logrus.FieldLogger
	now       func() time.Time
}

// parser reads the 6-field expressions stored in the database.
var parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// NewService creates a new scheduler service
func NewService(ctx context.Context, db *gorm.DB, submitter Submitter, log logrus.FieldLogger) *Service {
	return &Service{
		db:        db,
		ctx:       ctx,
		cron:      cron.New(cron.WithSeconds()),
		entries:   make(map[string]cron.EntryID),
		submitter: submitter,
		log:       log.WithField("component", "scheduler"),
		now:       time.Now,
	}
}

// Start loads enabled jobs from the database and starts the cron loop
func (s *Service) Start() error {
	if err := s.db.AutoMigrate(&models.ScheduledJob{}); err != nil {
		return fmt.Errorf("failed to migrate scheduled_jobs table: %w", err)
	}

	var scheduled []models.ScheduledJob
	if err := s.db.Where("enabled = ?", true).Find(&scheduled).Error; err != nil {
		return fmt.Errorf("failed to load scheduled jobs: %w", err)
	}

	for i := range scheduled {
		job := &scheduled[i]
		log := s.log.WithFields(logrus.Fields{"job_id": job.ID, "name": job.Name})
		if err := s.scheduleJob(job); err != nil {
			log.WithError(err).Warn("Failed to schedule job")
		} else {
			log.WithField("cron", job.Cron).Debug("Scheduled job")
		}
	}

	s.cron.Start()
	s.log.WithField("jobs", len(scheduled)).Info("Scheduler started")
	return nil
}

// Stop gracefully stops the scheduler
func (s *Service) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
		s.log.Info("Scheduler stopped")
	}
}

// ListJobs retrieves all scheduled jobs, newest first
func (s *Service) ListJobs() ([]JobListResponse, error) {
	var scheduled []models.ScheduledJob
	if err := s.db.Order("created_at DESC").Find(&scheduled).Error; err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	responses := make([]JobListResponse, len(scheduled))
	for i := range scheduled {
		responses[i] = toJobListResponse(&scheduled[i])
	}
	return responses, nil
}

// UpsertJob creates or updates a scheduled job by name
func (s *Service) UpsertJob(req UpsertJobRequest) (string, error) {
	if req.Name == "" || req.Kind == "" || req.Cron == "" {
		return "", fmt.Errorf("name, kind, and cron are required")
	}

	kind, err := jobs.ParseKind(req.Kind)
	if err != nil {
		return "", err
	}

	normalizedCron, err := normalizeCron(req.Cron)
	if err != nil {
		return "", err
	}

	payload, err := encodePayload(req.Payload)
	if err != nil {
		return "", err
	}
	// Refuse payloads that could never be submitted.
	if _, err := jobs.DecodePayload(kind, []byte(payload)); err != nil {
		return "", err
	}

	var job models.ScheduledJob
	result := s.db.Where("name = ?", req.Name).First(&job)
	isNew := errors.Is(result.Error, gorm.ErrRecordNotFound)
	if result.Error != nil && !isNew {
		return "", fmt.Errorf("failed to query job: %w", result.Error)
	}
	if isNew {
		job = models.ScheduledJob{Name: req.Name}
	}

	job.Kind = string(kind)
	job.Cron = normalizedCron
	job.Payload = payload
	job.Enabled = req.Enabled

	schedule, err := parser.Parse(job.Cron)
	if err != nil {
		return "", fmt.Errorf("failed to parse cron for next run: %w", err)
	}
	nextRun := schedule.Next(s.now())
	job.NextRunAt = &nextRun

	if isNew {
		if err := s.db.Create(&job).Error; err != nil {
			return "", fmt.Errorf("failed to create job: %w", err)
		}
		// Create skips a false Enabled in favor of the column default.
		if !req.Enabled {
			if err := s.db.Model(&job).Update("enabled", false).Error; err != nil {
				return "", fmt.Errorf("failed to disable job: %w", err)
			}
		}
	} else if err := s.db.Save(&job).Error; err != nil {
		return "", fmt.Errorf("failed to update job: %w", err)
	}

	if err := s.rescheduleJob(job.ID); err != nil {
		return "", fmt.Errorf("failed to reschedule job: %w", err)
	}

	s.log.WithFields(logrus.Fields{"job_id": job.ID, "name": job.Name, "kind": kind}).Info("Scheduled job saved")
	return job.ID, nil
}

// DeleteJob removes a scheduled job
func (s *Service) DeleteJob(jobID string) error {
	s.unschedule(jobID)

	if err := s.db.Delete(&models.ScheduledJob{}, "id = ?", jobID).Error; err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return nil
}

// RunNow fires a scheduled job immediately and returns the submitted job.
func (s *Service) RunNow(jobID string) (jobs.Job, error) {
	return s.executeJob(jobID)
}

// scheduleJob adds a job to the cron scheduler
func (s *Service) scheduleJob(job *models.ScheduledJob) error {
	s.unschedule(job.ID)
	if !job.Enabled {
		return nil
	}

	jobID := job.ID
	entryID, err := s.cron.AddFunc(job.Cron, func() {
		if _, err := s.executeJob(jobID); err != nil {
			s.log.WithError(err).WithField("job_id", jobID).Warn("Scheduled job failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.entriesMu.Lock()
	s.entries[job.ID] = entryID
	s.entriesMu.Unlock()
	return nil
}

func (s *Service) unschedule(jobID string) {
	s.entriesMu.Lock()
	defer s.entriesMu.Unlock()
	if entryID, exists := s.entries[jobID]; exists {
		s.cron.Remove(entryID)
		delete(s.entries, jobID)
	}
}

// rescheduleJob reloads a job from database and reschedules it
func (s *Service) rescheduleJob(jobID string) error {
	var job models.ScheduledJob
	if err := s.db.First(&job, "id = ?", jobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.unschedule(jobID)
			return nil
		}
		return fmt.Errorf("failed to load job: %w", err)
	}
	return s.scheduleJob(&job)
}

// isScheduled reports whether the job has a live cron entry.
func (s *Service) isScheduled(jobID string) bool {
	s.entriesMu.RLock()
	defer s.entriesMu.RUnlock()
	_, ok := s.entries[jobID]
	return ok
}

// executeJob submits one scheduled job through the tracker and records the
// run on the row.
func (s *Service) executeJob(jobID string) (jobs.Job, error) {
	var job models.ScheduledJob
	if err := s.db.First(&job, "id = ?", jobID).Error; err != nil {
		return jobs.Job{}, fmt.Errorf("failed to load job %s: %w", jobID, err)
	}
	log := s.log.WithFields(logrus.Fields{"job_id": job.ID, "name": job.Name, "kind": job.Kind})

	now := s.now()
	job.LastRunAt = &now
	if schedule, err := parser.Parse(job.Cron); err != nil {
		log.WithError(err).Warn("Failed to parse cron for next run")
	} else {
		nextRun := schedule.Next(now)
		job.NextRunAt = &nextRun
	}

	submitted, err := s.submit(&job)
	if err == nil {
		job.LastTask = submitted.TaskID
	}

	if saveErr := s.db.Save(&job).Error; saveErr != nil {
		log.WithError(saveErr).Warn("Failed to update job run times")
	}

	if err != nil {
		return jobs.Job{}, err
	}
	log.WithField("task_id", submitted.TaskID).Info("Scheduled job submitted")
	return submitted, nil
}

func (s *Service) submit(job *models.ScheduledJob) (jobs.Job, error) {
	kind, err := jobs.ParseKind(job.Kind)
	if err != nil {
		return jobs.Job{}, err
	}
	payload, err := jobs.DecodePayload(kind, []byte(job.Payload))
	if err != nil {
		return jobs.Job{}, err
	}
	return s.submitter.Submit(s.ctx, kind, payload)
}

// encodePayload stores maps and structs as JSON and strings as given.
func encodePayload(payload interface{}) (string, error) {
	switch p := payload.(type) {
	case nil:
		return "", nil
	case string:
		return p, nil
	default:
		data, err := json.Marshal(p)
		if err != nil {
			return "", fmt.Errorf("failed to marshal payload: %w", err)
		}
		return string(data), nil
	}
}

// normalizeCron converts 5-field cron to 6-field format by prepending seconds
// 5-field: "minute hour day month dow" (standard cron)
// 6-field: "second minute hour day month dow" (robfig/cron with WithSeconds)
func normalizeCron(cronExpr string) (string, error) {
	cronExpr = strings.TrimSpace(cronExpr)

	fields := strings.Fields(cronExpr)
	switch len(fields) {
	case 6:
		if _, err := parser.Parse(cronExpr); err != nil {
			return "", fmt.Errorf("invalid 6-field cron expression: %w", err)
		}
		return cronExpr, nil
	case 5:
		if _, err := cron.ParseStandard(cronExpr); err != nil {
			return "", fmt.Errorf("invalid 5-field cron expression: %w", err)
		}
		// run at 0 seconds of the minute
		return "0 " + cronExpr, nil
	}

	return "", fmt.Errorf("invalid cron expression: expected 5 or 6 fields, got %d", len(fields))
}

func toJobListResponse(job *models.ScheduledJob) JobListResponse {
	resp := JobListResponse{
		ID:         job.ID,
		Name:       job.Name,
		Kind:       job.Kind,
		Cron:       job.Cron,
		Payload:    job.Payload,
		Enabled:    job.Enabled,
		LastTaskID: job.LastTask,
		CreatedAt:  job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  job.UpdatedAt.Format(time.RFC3339),
	}

	if job.LastRunAt != nil {
		lastRun := job.LastRunAt.Format(time.RFC3339)
		resp.LastRunAt = &lastRun
	}

	if job.NextRunAt != nil {
		nextRun := job.NextRunAt.Format(time.RFC3339)
		resp.NextRun = &nextRun
	}

	return resp
}
