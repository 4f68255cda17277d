package analytics

import (
	"math"
	"sort"
	"time"

	"gvsdash/internal/api"
)

const dayLayout = "2006-01-02"

// DayCount is one bar of the anomalies-per-day chart.
type DayCount struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

// AnomaliesByDay counts anomalies per local calendar day, in order of first
// appearance. Rows with an unreadable datetime are skipped.
func AnomaliesByDay(anomalies []api.Anomaly) []DayCount {
	index := make(map[string]int)
	var out []DayCount
	for _, a := range anomalies {
		ts, err := api.ParseTimestamp(a.Datetime)
		if err != nil {
			continue
		}
		day := ts.Format(dayLayout)
		if i, ok := index[day]; ok {
			out[i].Count++
			continue
		}
		index[day] = len(out)
		out = append(out, DayCount{Day: day, Count: 1})
	}
	return out
}

// ForecastPoint is one point of the forecast line.
type ForecastPoint struct {
	Day        string    `json:"day"`
	Time       time.Time `json:"time"`
	Predicted  *float64  `json:"predicted"`
	Confidence *float64  `json:"confidence"`
}

// ForecastSeries projects forecasts onto chart points in backend order.
func ForecastSeries(forecasts []api.Forecast) []ForecastPoint {
	out := make([]ForecastPoint, 0, len(forecasts))
	for _, f := range forecasts {
		ts, err := api.ParseTimestamp(f.Datetime)
		if err != nil {
			continue
		}
		out = append(out, ForecastPoint{
			Day:        ts.Format(dayLayout),
			Time:       ts,
			Predicted:  numberPtr(f.PredictedConsumptionGVS),
			Confidence: numberPtr(f.ConfidenceScore),
		})
	}
	return out
}

func numberPtr(n *api.Number) *float64 {
	v, ok := n.Float()
	if !ok {
		return nil
	}
	return &v
}

// MetricRow holds one model's numeric metrics; a nil value means the model
// does not report that metric.
type MetricRow struct {
	ModelID      int64               `json:"model_id"`
	Name         string              `json:"name"`
	Version      string              `json:"version"`
	TrainingDate string              `json:"training_date,omitempty"`
	Values       map[string]*float64 `json:"values"`
}

// MetricMatrix lines up numeric metrics across models.
type MetricMatrix struct {
	Keys []string    `json:"keys"`
	Rows []MetricRow `json:"rows"`
}

// ModelMetricsMatrix collects every finite numeric metric key across the
// models and tabulates them, oldest training date first. Models without a
// training date sort before all dated ones.
func ModelMetricsMatrix(models []api.Model) MetricMatrix {
	keySet := make(map[string]struct{})
	for _, m := range models {
		for k, v := range m.Metrics {
			if _, ok := finite(v); ok {
				keySet[k] = struct{}{}
			}
		}
	}
	keys := make([]string, 0, len(keySet))
	for k := range keySet {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sorted := append([]api.Model(nil), models...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return trainedAt(sorted[i]).Before(trainedAt(sorted[j]))
	})

	rows := make([]MetricRow, 0, len(sorted))
	for _, m := range sorted {
		row := MetricRow{
			ModelID: m.ModelID,
			Name:    m.Name,
			Version: m.Version,
			Values:  make(map[string]*float64, len(keys)),
		}
		if m.TrainingDate != nil {
			row.TrainingDate = *m.TrainingDate
		}
		for _, k := range keys {
			if v, ok := finite(m.Metrics[k]); ok {
				row.Values[k] = &v
			} else {
				row.Values[k] = nil
			}
		}
		rows = append(rows, row)
	}
	return MetricMatrix{Keys: keys, Rows: rows}
}

func finite(v interface{}) (float64, bool) {
	f, ok := v.(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func trainedAt(m api.Model) time.Time {
	if m.TrainingDate == nil {
		return time.Time{}
	}
	ts, err := api.ParseTimestamp(*m.TrainingDate)
	if err != nil {
		return time.Time{}
	}
	return ts
}
