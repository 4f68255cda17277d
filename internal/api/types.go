package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"
)

// Number decodes backend decimals that arrive either as JSON numbers or as
// numeric strings ("12.50").
type Number float64

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid decimal %q: %w", s, err)
		}
		*n = Number(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*n = Number(f)
	return nil
}

// Float returns the value, or ok=false for a nil pointer.
func (n *Number) Float() (float64, bool) {
	if n == nil {
		return 0, false
	}
	return float64(*n), true
}

// Count decodes count endpoints, which answer either a bare number or an
// object with a count/total field.
type Count int64

func (c *Count) UnmarshalJSON(data []byte) error {
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		*c = Count(n)
		return nil
	}
	var obj struct {
		Count *int64 `json:"count"`
		Total *int64 `json:"total"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("unexpected count payload: %w", err)
	}
	switch {
	case obj.Count != nil:
		*c = Count(*obj.Count)
	case obj.Total != nil:
		*c = Count(*obj.Total)
	default:
		return fmt.Errorf("count payload has neither count nor total")
	}
	return nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

// ParseTimestamp parses the backend's datetimes. Naive values (no zone) are
// read in the local zone, as the backend stores local meter time.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// ID accepts identifiers sent as JSON strings or numbers.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// Token is the login response.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// User is the current account as returned by /me.
type User struct {
	ID          ID     `json:"id"`
	Email       string `json:"email"`
	IsActive    bool   `json:"is_active"`
	IsSuperuser bool   `json:"is_superuser"`
	IsVerified  bool   `json:"is_verified"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ProcessedRecord is one hourly row of processed meter data.
type ProcessedRecord struct {
	RecordID       int64   `json:"record_id"`
	Datetime       string  `json:"datetime"`
	Hour           int     `json:"hour"`
	DayOfWeek      int     `json:"day_of_week"`
	IsWeekend      bool    `json:"is_weekend"`
	ConsumptionGVS *Number `json:"consumption_gvs"`
	ConsumptionHVS *Number `json:"consumption_hvs"`
	DeltaGVSHVS    *Number `json:"delta_gvs_hvs"`
	TempGVSSupply  *Number `json:"temp_gvs_supply"`
	TempGVSReturn  *Number `json:"temp_gvs_return"`
	TempDelta      *Number `json:"temp_delta"`
}

type Anomaly struct {
	AnomalyID int64   `json:"anomaly_id"`
	Datetime  string  `json:"datetime"`
	MSEError  *Number `json:"mse_error"`
	// severity arrives as a label or a number depending on the detector
	SeverityLevel interface{} `json:"severity_level"`
	IsConfirmed   bool        `json:"is_confirmed"`
	ForecastID    *int64      `json:"forecast_id"`
}

type Forecast struct {
	ForecastID              int64   `json:"forecast_id"`
	Datetime                string  `json:"datetime"`
	PredictedConsumptionGVS *Number `json:"predicted_consumption_gvs"`
	ConfidenceScore         *Number `json:"confidence_score"`
	ModelID                 *int64  `json:"model_id"`
	ModelVersion            string  `json:"model_version"`
	ProcessedDataID         *int64  `json:"processed_data_id"`
}

// Model is a trained model registered by the backend.
type Model struct {
	ModelID       int64                  `json:"model_id"`
	Name          string                 `json:"name"`
	Version       string                 `json:"version"`
	TrainingDate  *string                `json:"training_date"`
	LastRetrained *string                `json:"last_retrained"`
	FilePath      string                 `json:"file_path"`
	Metrics       map[string]interface{} `json:"metrics"`
}

// TrainRequest carries the training hyperparameters.
type TrainRequest struct {
	NARX                  bool    `json:"narx"`
	AE                    bool    `json:"ae"`
	Window                int     `json:"window"`
	AEThresholdPercentile int     `json:"ae_threshold_percentile"`
	Epochs                int     `json:"epochs"`
	LR                    float64 `json:"lr"`
	BatchSize             int     `json:"batch_size"`
	Seed                  *int    `json:"seed,omitempty"`
}

// DefaultForecastHorizon is used when a forecast request leaves the horizon unset.
const DefaultForecastHorizon = 48

type ForecastRequest struct {
	HorizonHours int `json:"horizon_hours"`
}

type AnomalyScanRequest struct {
	FromDT string `json:"from_dt,omitempty"`
	ToDT   string `json:"to_dt,omitempty"`
}

// TaskDescriptor is the backend's view of a job, returned both on
// submission and by the status endpoint. Status and Result are nil when the
// response did not carry them, so callers can merge field by field.
type TaskDescriptor struct {
	TaskID string
	Status *string
	Result json.RawMessage
	// Extra holds any other fields the backend sent (progress, error, ...).
	Extra map[string]json.RawMessage
}

func (d *TaskDescriptor) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	*d = TaskDescriptor{}
	if raw, ok := fields["task_id"]; ok {
		if err := json.Unmarshal(raw, &d.TaskID); err != nil {
			return fmt.Errorf("task_id: %w", err)
		}
		delete(fields, "task_id")
	}
	if raw, ok := fields["status"]; ok {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			d.Status = &s
		}
		delete(fields, "status")
	}
	if raw, ok := fields["result"]; ok {
		d.Result = raw
		delete(fields, "result")
	}
	if len(fields) > 0 {
		d.Extra = fields
	}
	return nil
}

type NotificationStatus struct {
	Enabled bool `json:"enabled"`
}

// ImportFile is one spreadsheet to upload.
type ImportFile struct {
	Name        string
	ContentType string
	Reader      io.Reader
}

// ImportReport is the backend's free-form summary of an import.
type ImportReport map[string]interface{}

// ExportRequest selects the range and options of an anomaly export.
// Nil options take the backend defaults used by the dashboard.
type ExportRequest struct {
	DtFrom       string
	DtTo         string
	ThresholdPct *float64
	SaveToDB     *bool
	Filename     string
}

// ExportResult is either a file (Data) or a JSON status body (Status).
type ExportResult struct {
	ContentType string
	Filename    string
	Data        []byte
	Status      map[string]interface{}
}

// IsFile reports whether the export produced a downloadable file.
func (r *ExportResult) IsFile() bool {
	return r.Status == nil
}
