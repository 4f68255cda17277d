// Package training keeps the training form parameters between runs and
// starts training jobs from them.
package training

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"gvsdash/internal/api"
	"gvsdash/internal/jobs"
	"gvsdash/internal/storage"
)

// Submitter starts training jobs. *jobs.Tracker implements it.
type Submitter interface {
	SubmitTraining(ctx context.Context, req api.TrainRequest) (jobs.Job, error)
}

type Service struct {
	store     storage.Storage
	submitter Submitter
	log       logrus.FieldLogger
}

func NewService(store storage.Storage, submitter Submitter, log logrus.FieldLogger) *Service {
	return &Service{
		store:     store,
		submitter: submitter,
		log:       log.WithField("component", "training"),
	}
}

// Load returns the saved parameters laid over the defaults. Anything
// unreadable yields the defaults.
func (s *Service) Load(ctx context.Context) Params {
	params := Defaults()

	raw, err := s.store.Get(ctx, storage.KeyTrainingParams)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.log.WithError(err).Debug("Training parameters unreadable, using defaults")
		}
		return params
	}

	// Unmarshal only overwrites the keys present in the stored JSON.
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		s.log.WithError(err).Debug("Training parameters malformed, using defaults")
		return Defaults()
	}
	return params
}

// Save clamps and persists the parameters, returning what was stored.
func (s *Service) Save(ctx context.Context, params Params) (Params, error) {
	safe := params.Clamp()
	data, err := json.Marshal(safe)
	if err != nil {
		return Params{}, fmt.Errorf("failed to marshal training parameters: %w", err)
	}
	if err := s.store.Set(ctx, storage.KeyTrainingParams, string(data)); err != nil {
		return Params{}, fmt.Errorf("failed to save training parameters: %w", err)
	}
	return safe, nil
}

// ApplyPreset stores the named preset and returns it.
func (s *Service) ApplyPreset(ctx context.Context, id string) (Params, error) {
	preset, ok := PresetByID(id)
	if !ok {
		return Params{}, fmt.Errorf("unknown preset %q", id)
	}
	return s.Save(ctx, preset.Params)
}

// Reset stores the defaults.
func (s *Service) Reset(ctx context.Context) (Params, error) {
	return s.Save(ctx, Defaults())
}

// Train saves the parameters and submits a training job with them.
func (s *Service) Train(ctx context.Context, params Params) (jobs.Job, error) {
	safe, err := s.Save(ctx, params)
	if err != nil {
		// the form is still usable; training goes ahead
		s.log.WithError(err).Warn("Failed to persist training parameters")
		safe = params.Clamp()
	}
	return s.submitter.SubmitTraining(ctx, safe.Request())
}
