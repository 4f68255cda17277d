package scheduler

// JobListResponse represents a scheduled job in list responses
type JobListResponse struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Kind       string  `json:"kind"`
	Cron       string  `json:"cron"`
	Payload    string  `json:"payload"`
	Enabled    bool    `json:"enabled"`
	LastRunAt  *string `json:"last_run_at"` // ISO 8601 format
	LastTaskID string  `json:"last_task_id"`
	NextRun    *string `json:"next_run"` // ISO 8601 format
	CreatedAt  string  `json:"created_at"`
	UpdatedAt  string  `json:"updated_at"`
}

// UpsertJobRequest represents a request to create or update a scheduled job
type UpsertJobRequest struct {
	Name    string      `json:"name"`
	Kind    string      `json:"kind"` // "train", "forecast" or "anomaly_scan"
	Cron    string      `json:"cron"`
	Enabled bool        `json:"enabled"`
	Payload interface{} `json:"payload"` // Can be map or string
}
