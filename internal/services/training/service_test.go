package training

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gvsdash/internal/api"
	"gvsdash/internal/jobs"
	"gvsdash/internal/logging"
	"gvsdash/internal/storage"
)

type fakeSubmitter struct {
	requests []api.TrainRequest
}

func (f *fakeSubmitter) SubmitTraining(_ context.Context, req api.TrainRequest) (jobs.Job, error) {
	f.requests = append(f.requests, req)
	return jobs.Job{TaskID: "t-1", Kind: jobs.KindTrain, Status: jobs.StatusPending}, nil
}

func TestClamp(t *testing.T) {
	t.Run("Should pull values into range", func(t *testing.T) {
		p := Params{Window: 0, AEThresholdPercentile: 120, Epochs: 50000, LR: 5, BatchSize: -1, Seed: -3}.Clamp()

		assert.Equal(t, 1, p.Window)
		assert.Equal(t, 100, p.AEThresholdPercentile)
		assert.Equal(t, 10000, p.Epochs)
		assert.Equal(t, 1.0, p.LR)
		assert.Equal(t, 1, p.BatchSize)
		assert.Equal(t, 0, p.Seed)
	})

	t.Run("Should fall back to the default learning rate for NaN", func(t *testing.T) {
		p := Defaults()
		p.LR = math.NaN()
		assert.Equal(t, 0.001, p.Clamp().LR)
	})

	t.Run("Should leave defaults untouched", func(t *testing.T) {
		assert.Equal(t, Defaults(), Defaults().Clamp())
	})
}

func TestPresets(t *testing.T) {
	t.Run("Should derive presets from the defaults", func(t *testing.T) {
		draft, ok := PresetByID("draft")
		require.True(t, ok)
		assert.Equal(t, 3, draft.Params.Epochs)
		assert.Equal(t, 32, draft.Params.BatchSize)
		assert.Equal(t, 0.0015, draft.Params.LR)
		assert.Equal(t, 24, draft.Params.Window)

		baseline, _ := PresetByID("baseline")
		assert.Equal(t, Defaults(), baseline.Params)

		thorough, _ := PresetByID("thorough")
		assert.Equal(t, 25, thorough.Params.Epochs)
		assert.Equal(t, 128, thorough.Params.BatchSize)
		assert.Equal(t, 0.0007, thorough.Params.LR)
	})
}

func TestLoadSave(t *testing.T) {
	ctx := context.Background()

	t.Run("Should return defaults when nothing is stored", func(t *testing.T) {
		svc := NewService(storage.NewMemory(), &fakeSubmitter{}, logging.Discard())
		assert.Equal(t, Defaults(), svc.Load(ctx))
	})

	t.Run("Should merge stored values over defaults", func(t *testing.T) {
		store := storage.NewMemory()
		require.NoError(t, store.Set(ctx, storage.KeyTrainingParams, `{"epochs":7,"narx":false}`))
		svc := NewService(store, &fakeSubmitter{}, logging.Discard())

		p := svc.Load(ctx)
		assert.Equal(t, 7, p.Epochs)
		assert.False(t, p.NARX)
		assert.Equal(t, 64, p.BatchSize)
	})

	t.Run("Should ignore malformed content", func(t *testing.T) {
		store := storage.NewMemory()
		require.NoError(t, store.Set(ctx, storage.KeyTrainingParams, `{"epochs":`))
		svc := NewService(store, &fakeSubmitter{}, logging.Discard())

		assert.Equal(t, Defaults(), svc.Load(ctx))
	})

	t.Run("Should store clamped values", func(t *testing.T) {
		svc := NewService(storage.NewMemory(), &fakeSubmitter{}, logging.Discard())
		p := Defaults()
		p.Window = 99999

		saved, err := svc.Save(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, 10000, saved.Window)
		assert.Equal(t, 10000, svc.Load(ctx).Window)
	})
}

func TestTrain(t *testing.T) {
	t.Run("Should submit the clamped parameters with a seed", func(t *testing.T) {
		sub := &fakeSubmitter{}
		svc := NewService(storage.NewMemory(), sub, logging.Discard())
		p := Defaults()
		p.AEThresholdPercentile = 10

		job, err := svc.Train(context.Background(), p)
		require.NoError(t, err)
		assert.Equal(t, "t-1", job.TaskID)

		require.Len(t, sub.requests, 1)
		req := sub.requests[0]
		assert.Equal(t, 50, req.AEThresholdPercentile)
		require.NotNil(t, req.Seed)
		assert.Equal(t, 42, *req.Seed)
	})
}
