package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wailsapp/wails/v2/pkg/runtime"

	"gvsdash/internal/api"
	"gvsdash/internal/bootstrap"
	"gvsdash/internal/config"
	"gvsdash/internal/i18n"
	"gvsdash/internal/jobs"
	"gvsdash/internal/logging"
	"gvsdash/internal/services/analytics"
	"gvsdash/internal/services/auth"
	"gvsdash/internal/services/datasets"
	"gvsdash/internal/services/scheduler"
	"gvsdash/internal/services/training"
)

// jobEvent is the Wails event carrying every tracked job change.
const jobEvent = "jobs:update"

// App struct - main application state
type App struct {
	ctx         context.Context
	console     *bootstrap.Console
	log         logrus.FieldLogger
	unsubscribe func()
	emit        func(ctx context.Context, name string, data ...interface{})
}

// NewApp creates a new App application struct
func NewApp() *App {
	return &App{emit: runtime.EventsEmit}
}

// startup is called when the app starts. The context is saved
// so we can call the runtime methods
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Invalid configuration")
	}
	log := logging.New(cfg.Log)
	a.log = log

	console, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize console")
	}
	a.attach(ctx, console)
	console.Start(ctx)

	log.WithFields(logrus.Fields{"api": cfg.API.BaseURL, "locale": console.Messages.Locale()}).Info("Startup complete")
}

// attach binds the console and forwards tracker updates to the frontend.
func (a *App) attach(ctx context.Context, console *bootstrap.Console) {
	a.ctx = ctx
	a.console = console
	a.log = console.Log
	a.unsubscribe = console.Tracker.Subscribe(func(job jobs.Job) {
		a.emit(a.ctx, jobEvent, a.present(job))
	})
}

// shutdown is called when the app is closing
func (a *App) shutdown(ctx context.Context) {
	if a.console == nil {
		return
	}
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	if err := a.console.Close(); err != nil {
		a.log.WithError(err).Warn("Error during shutdown")
	}
	a.log.Info("Shutdown complete")
}

// fail replaces backend detail with the fixed localized message.
func (a *App) fail(err error, fallback i18n.MessageID) error {
	return errors.New(a.console.Message(err, fallback))
}

// ====================================================================================
// WAILS-BOUND METHODS - Exposed to Frontend
// ====================================================================================

// Session Methods

// SessionInfo is what the shell shows about the signed-in operator.
type SessionInfo struct {
	Authenticated bool      `json:"authenticated"`
	User          *api.User `json:"user,omitempty"`
	ExpiresAt     *string   `json:"expires_at,omitempty"` // ISO 8601 format
}

// Login signs in with email and password
func (a *App) Login(email, password string) error {
	if err := a.console.Auth.Login(a.ctx, auth.LoginRequest{Email: email, Password: password}); err != nil {
		return a.fail(err, i18n.MsgAuthFailed)
	}
	return nil
}

// Register creates an account; the operator signs in afterwards
func (a *App) Register(req auth.RegisterRequest) (*api.User, error) {
	user, err := a.console.Auth.Register(a.ctx, req)
	if err != nil {
		return nil, a.fail(err, i18n.MsgRegisterFailed)
	}
	return user, nil
}

// Logout clears the session even when the backend is unreachable
func (a *App) Logout() error {
	if err := a.console.Auth.Logout(a.ctx); err != nil {
		return a.fail(err, i18n.MsgLoadFailed)
	}
	return nil
}

// GetSession reports the current session and, when signed in, the user
func (a *App) GetSession() (*SessionInfo, error) {
	info := &SessionInfo{Authenticated: a.console.Auth.IsAuthenticated(a.ctx)}
	if !info.Authenticated {
		return info, nil
	}

	if exp, ok := a.console.Sessions.ExpiresAt(a.ctx); ok {
		s := exp.Format(time.RFC3339)
		info.ExpiresAt = &s
	}

	user, err := a.console.Auth.Me(a.ctx)
	if err != nil {
		return nil, a.fail(err, i18n.MsgLoadFailed)
	}
	info.User = user
	return info, nil
}

// Job Methods

// JobView is a tracked job as the task cards show it.
type JobView struct {
	TaskID      string `json:"task_id"`
	Kind        string `json:"kind"`
	Status      string `json:"status"`
	StatusLabel string `json:"status_label"`
	ResultLink  string `json:"result_link,omitempty"`
	Result      string `json:"result,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func (a *App) present(job jobs.Job) JobView {
	status := job.Status.Presented()
	return JobView{
		TaskID:      job.TaskID,
		Kind:        string(job.Kind),
		Status:      status.String(),
		StatusLabel: a.console.Messages.T(status.Label()),
		ResultLink:  job.ResultLink(),
		Result:      string(job.Result),
		CreatedAt:   job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   job.UpdatedAt.Format(time.RFC3339),
	}
}

// ListJobs returns every job tracked this session, newest first
func (a *App) ListJobs() []JobView {
	tracked := a.console.Tracker.Jobs()
	views := make([]JobView, 0, len(tracked))
	for _, job := range tracked {
		views = append(views, a.present(job))
	}
	return views
}

// LatestJobs returns the newest job per kind for the task cards
func (a *App) LatestJobs() map[string]JobView {
	latest := make(map[string]JobView)
	for _, kind := range jobs.Kinds() {
		if job, ok := a.console.Tracker.Latest(kind); ok {
			latest[string(kind)] = a.present(job)
		}
	}
	return latest
}

// RefreshJob polls one job immediately
func (a *App) RefreshJob(taskID string) (*JobView, error) {
	job, err := a.console.Tracker.Refresh(a.ctx, taskID)
	if err != nil {
		return nil, a.fail(err, i18n.MsgRefreshFailed)
	}
	view := a.present(job)
	return &view, nil
}

// RunForecast starts a forecast; hours <= 0 selects the default horizon
func (a *App) RunForecast(hours int) (*JobView, error) {
	job, err := a.console.Tracker.SubmitForecast(a.ctx, api.ForecastRequest{HorizonHours: hours})
	if err != nil {
		return nil, a.fail(err, i18n.MsgForecastFailed)
	}
	view := a.present(job)
	return &view, nil
}

// RunAnomalyScan scans the given local datetime window; both ends are optional
func (a *App) RunAnomalyScan(from, to string) (*JobView, error) {
	req := api.AnomalyScanRequest{
		FromDT: analytics.NormalizeLocal(from),
		ToDT:   analytics.NormalizeLocal(to),
	}
	job, err := a.console.Tracker.SubmitAnomalyScan(a.ctx, req)
	if err != nil {
		return nil, a.fail(err, i18n.MsgScanFailed)
	}
	view := a.present(job)
	return &view, nil
}

// Training Methods

// PresetView is a training preset with its localized label.
type PresetView struct {
	ID     string          `json:"id"`
	Label  string          `json:"label"`
	Params training.Params `json:"params"`
}

// GetTrainingParams returns the persisted form values
func (a *App) GetTrainingParams() training.Params {
	return a.console.Training.Load(a.ctx)
}

// SaveTrainingParams clamps and persists the form values
func (a *App) SaveTrainingParams(params training.Params) (training.Params, error) {
	saved, err := a.console.Training.Save(a.ctx, params)
	if err != nil {
		return saved, a.fail(err, i18n.MsgTrainFailed)
	}
	return saved, nil
}

// ListTrainingPresets returns the presets in display order
func (a *App) ListTrainingPresets() []PresetView {
	presets := training.Presets()
	views := make([]PresetView, len(presets))
	for i, p := range presets {
		views[i] = PresetView{ID: p.ID, Label: a.console.Messages.T(p.Label), Params: p.Params}
	}
	return views
}

// ApplyTrainingPreset loads a preset into the form
func (a *App) ApplyTrainingPreset(id string) (training.Params, error) {
	params, err := a.console.Training.ApplyPreset(a.ctx, id)
	if err != nil {
		return params, a.fail(err, i18n.MsgTrainFailed)
	}
	return params, nil
}

// ResetTrainingParams restores the defaults
func (a *App) ResetTrainingParams() (training.Params, error) {
	params, err := a.console.Training.Reset(a.ctx)
	if err != nil {
		return params, a.fail(err, i18n.MsgTrainFailed)
	}
	return params, nil
}

// StartTraining submits a training job with the given parameters
func (a *App) StartTraining(params training.Params) (*JobView, error) {
	job, err := a.console.Training.Train(a.ctx, params)
	if err != nil {
		return nil, a.fail(err, i18n.MsgTrainFailed)
	}
	view := a.present(job)
	return &view, nil
}

// Data Methods

// ListProcessedData returns one page of processed records with the total
func (a *App) ListProcessedData(params api.ListParams) (map[string]interface{}, error) {
	items, err := a.console.Client.ProcessedData.List(a.ctx, params)
	if err != nil {
		return nil, a.fail(err, i18n.MsgLoadFailed)
	}
	total, err := a.console.Client.ProcessedData.Count(a.ctx, params)
	if err != nil {
		return nil, a.fail(err, i18n.MsgLoadFailed)
	}
	return map[string]interface{}{"items": items, "total": total}, nil
}

// ImportWorkbooks asks for Excel files and uploads them
func (a *App) ImportWorkbooks(dedupe bool) (api.ImportReport, error) {
	paths, err := runtime.OpenMultipleFilesDialog(a.ctx, runtime.OpenDialogOptions{
		Title: "Excel",
		Filters: []runtime.FileFilter{
			{DisplayName: "Excel (*.xlsx, *.xls)", Pattern: "*.xlsx;*.xls"},
		},
	})
	if err != nil {
		return nil, a.fail(err, i18n.MsgImportFailed)
	}
	if len(paths) == 0 {
		return nil, nil
	}
	return a.ImportFiles(paths, dedupe)
}

// ImportFiles uploads the given workbook paths
func (a *App) ImportFiles(paths []string, dedupe bool) (api.ImportReport, error) {
	report, err := a.console.Datasets.Import(a.ctx, paths, dedupe)
	if err != nil {
		return nil, a.fail(err, i18n.MsgImportFailed)
	}
	return report, nil
}

// ExportAnomalies runs the anomaly export into the user's Downloads folder
func (a *App) ExportAnomalies(req api.ExportRequest) (*datasets.ExportOutcome, error) {
	dir, err := downloadsDir()
	if err != nil {
		return nil, a.fail(err, i18n.MsgExportFailed)
	}
	outcome, err := a.console.Datasets.Export(a.ctx, req, dir)
	if err != nil {
		return nil, a.fail(err, i18n.MsgExportFailed)
	}
	return outcome, nil
}

func downloadsDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "Downloads"), nil
}

// Analytics Methods

// GetAnalytics loads anomalies and forecasts for a local datetime window
func (a *App) GetAnalytics(from, to string) (*analytics.Overview, error) {
	overview, err := a.console.Analytics.Overview(a.ctx, analytics.Range{From: from, To: to})
	if err != nil {
		return nil, a.fail(err, i18n.MsgLoadFailed)
	}
	return overview, nil
}

// ModelsView is the model registry with its metric matrix.
type ModelsView struct {
	Models  []api.Model            `json:"models"`
	Metrics analytics.MetricMatrix `json:"metrics"`
}

// GetModels lists the registered models
func (a *App) GetModels() (*ModelsView, error) {
	models, metrics, err := a.console.Analytics.Models(a.ctx)
	if err != nil {
		return nil, a.fail(err, i18n.MsgLoadFailed)
	}
	return &ModelsView{Models: models, Metrics: metrics}, nil
}

// Notification Methods

// GetNotifications reports whether notifications are on
func (a *App) GetNotifications() (bool, error) {
	status, err := a.console.Client.Notifications.Status(a.ctx)
	if err != nil {
		return false, a.fail(err, i18n.MsgLoadFailed)
	}
	return status.Enabled, nil
}

// SetNotifications switches notifications and returns the resulting state
func (a *App) SetNotifications(enabled bool) (bool, error) {
	status, err := a.console.Client.Notifications.Toggle(a.ctx, enabled)
	if err != nil {
		return false, a.fail(err, i18n.MsgNotifyFailed)
	}
	return status.Enabled, nil
}

// Schedule Methods

// ListSchedules returns the recurring job submissions
func (a *App) ListSchedules() ([]scheduler.JobListResponse, error) {
	list, err := a.console.Scheduler.ListJobs()
	if err != nil {
		return nil, a.fail(err, i18n.MsgLoadFailed)
	}
	return list, nil
}

// SaveSchedule creates or updates a schedule by name
func (a *App) SaveSchedule(req scheduler.UpsertJobRequest) (string, error) {
	id, err := a.console.Scheduler.UpsertJob(req)
	if err != nil {
		return "", a.fail(err, i18n.MsgScheduleFailed)
	}
	return id, nil
}

// DeleteSchedule removes a schedule
func (a *App) DeleteSchedule(id string) error {
	if err := a.console.Scheduler.DeleteJob(id); err != nil {
		return a.fail(err, i18n.MsgScheduleFailed)
	}
	return nil
}

// RunScheduleNow fires a schedule immediately
func (a *App) RunScheduleNow(id string) (*JobView, error) {
	job, err := a.console.Scheduler.RunNow(id)
	if err != nil {
		return nil, a.fail(err, i18n.MsgScheduleFailed)
	}
	view := a.present(job)
	return &view, nil
}
