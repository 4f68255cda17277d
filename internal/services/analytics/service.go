// Package analytics fetches anomalies, forecasts and models and projects them
// into the series the dashboard charts.
package analytics

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"gvsdash/internal/api"
)

// RangeLimit caps how many rows one chart range fetches.
const RangeLimit = 500

type Lister[T any] interface {
	List(ctx context.Context, params api.ListParams) ([]T, error)
	Count(ctx context.Context, params api.ListParams) (int64, error)
}

// Range is a local datetime window as typed by the user, e.g.
// "2025-04-03T00:00" or "2025-04-03T00:00:00".
type Range struct {
	From string
	To   string
}

// Params turns the range into list parameters: oldest first, capped at
// RangeLimit rows.
func (r Range) Params() api.ListParams {
	return api.ListParams{
		DtFrom:    NormalizeLocal(r.From),
		DtTo:      NormalizeLocal(r.To),
		Limit:     RangeLimit,
		OrderDesc: api.Bool(false),
	}
}

// NormalizeLocal completes a minute-precision local datetime with seconds.
func NormalizeLocal(s string) string {
	if len(s) == len("2006-01-02T15:04") {
		return s + ":00"
	}
	return s
}

// Overview is everything the analytics page shows for one range.
type Overview struct {
	Anomalies      []api.Anomaly   `json:"anomalies"`
	AnomalyCount   int64           `json:"anomaly_count"`
	AnomaliesByDay []DayCount      `json:"anomalies_by_day"`
	Forecasts      []api.Forecast  `json:"forecasts"`
	ForecastCount  int64           `json:"forecast_count"`
	ForecastSeries []ForecastPoint `json:"forecast_series"`
}

type Service struct {
	anomalies Lister[api.Anomaly]
	forecasts Lister[api.Forecast]
	models    Lister[api.Model]
	log       logrus.FieldLogger
}

func NewService(anomalies Lister[api.Anomaly], forecasts Lister[api.Forecast], models Lister[api.Model], log logrus.FieldLogger) *Service {
	return &Service{
		anomalies: anomalies,
		forecasts: forecasts,
		models:    models,
		log:       log.WithField("component", "analytics"),
	}
}

// Overview loads anomalies and forecasts for the range.
func (s *Service) Overview(ctx context.Context, r Range) (*Overview, error) {
	params := r.Params()

	anomalies, err := s.anomalies.List(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to list anomalies: %w", err)
	}
	anomalyCount, err := s.anomalies.Count(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to count anomalies: %w", err)
	}
	forecasts, err := s.forecasts.List(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to list forecasts: %w", err)
	}
	forecastCount, err := s.forecasts.Count(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to count forecasts: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"from":      params.DtFrom,
		"to":        params.DtTo,
		"anomalies": len(anomalies),
		"forecasts": len(forecasts),
	}).Debug("Analytics overview loaded")

	return &Overview{
		Anomalies:      anomalies,
		AnomalyCount:   anomalyCount,
		AnomaliesByDay: AnomaliesByDay(anomalies),
		Forecasts:      forecasts,
		ForecastCount:  forecastCount,
		ForecastSeries: ForecastSeries(forecasts),
	}, nil
}

// Models lists the registered models with their metric matrix.
func (s *Service) Models(ctx context.Context) ([]api.Model, MetricMatrix, error) {
	models, err := s.models.List(ctx, api.ListParams{})
	if err != nil {
		return nil, MetricMatrix{}, fmt.Errorf("failed to list models: %w", err)
	}
	return models, ModelMetricsMatrix(models), nil
}
