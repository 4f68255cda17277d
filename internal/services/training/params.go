package training

import (
	"math"

	"gvsdash/internal/api"
	"gvsdash/internal/i18n"
)

// Params are the training form values. They map one to one onto the
// training request.
type Params struct {
	NARX                  bool    `json:"narx"`
	AE                    bool    `json:"ae"`
	Window                int     `json:"window"`
	AEThresholdPercentile int     `json:"ae_threshold_percentile"`
	Epochs                int     `json:"epochs"`
	LR                    float64 `json:"lr"`
	BatchSize             int     `json:"batch_size"`
	Seed                  int     `json:"seed"`
}

// Defaults returns the baseline parameters.
func Defaults() Params {
	return Params{
		NARX:                  true,
		AE:                    true,
		Window:                24,
		AEThresholdPercentile: 99,
		Epochs:                10,
		LR:                    0.001,
		BatchSize:             64,
		Seed:                  42,
	}
}

// Preset is a named starting point for the form.
type Preset struct {
	ID     string         `json:"id"`
	Label  i18n.MessageID `json:"label"`
	Params Params         `json:"params"`
}

// Presets lists the presets in display order.
func Presets() []Preset {
	draft := Defaults()
	draft.Epochs = 3
	draft.BatchSize = 32
	draft.LR = 0.0015

	thorough := Defaults()
	thorough.Epochs = 25
	thorough.BatchSize = 128
	thorough.LR = 0.0007

	return []Preset{
		{ID: "draft", Label: i18n.MsgPresetDraft, Params: draft},
		{ID: "baseline", Label: i18n.MsgPresetBaseline, Params: Defaults()},
		{ID: "thorough", Label: i18n.MsgPresetThorough, Params: thorough},
	}
}

// PresetByID finds a preset, reporting false for unknown ids.
func PresetByID(id string) (Preset, bool) {
	for _, p := range Presets() {
		if p.ID == id {
			return p, true
		}
	}
	return Preset{}, false
}

const maxSeed = math.MaxInt32

// Clamp pulls every numeric field into its accepted range. A learning rate
// that is not a finite number falls back to the default.
func (p Params) Clamp() Params {
	d := Defaults()
	p.Window = clampInt(p.Window, 1, 10000)
	p.AEThresholdPercentile = clampInt(p.AEThresholdPercentile, 50, 100)
	p.Epochs = clampInt(p.Epochs, 1, 10000)
	p.LR = clampFloat(p.LR, 1e-6, 1, d.LR)
	p.BatchSize = clampInt(p.BatchSize, 1, 100000)
	p.Seed = clampInt(p.Seed, 0, maxSeed)
	return p
}

// Request converts the clamped parameters into a training request.
func (p Params) Request() api.TrainRequest {
	p = p.Clamp()
	seed := p.Seed
	return api.TrainRequest{
		NARX:                  p.NARX,
		AE:                    p.AE,
		Window:                p.Window,
		AEThresholdPercentile: p.AEThresholdPercentile,
		Epochs:                p.Epochs,
		LR:                    p.LR,
		BatchSize:             p.BatchSize,
		Seed:                  &seed,
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return math.Min(hi, math.Max(lo, v))
}
