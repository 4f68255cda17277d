package jobs

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gvsdash/internal/api"
)

// Kind labels what a job does. It is assigned locally at submission.
type Kind string

const (
	KindTrain       Kind = "train"
	KindForecast    Kind = "forecast"
	KindAnomalyScan Kind = "anomaly_scan"
)

var (
	ErrUnknownKind     = errors.New("unknown job kind")
	ErrPayloadMismatch = errors.New("payload does not match job kind")
	ErrJobNotFound     = errors.New("job not tracked")
)

// Kinds lists every kind in display order.
func Kinds() []Kind {
	return []Kind{KindTrain, KindForecast, KindAnomalyScan}
}

func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindTrain, KindForecast, KindAnomalyScan:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Job is the local record of a backend task.
type Job struct {
	TaskID    string                     `json:"task_id"`
	Kind      Kind                       `json:"kind"`
	Status    Status                     `json:"status"`
	RawStatus string                     `json:"raw_status,omitempty"`
	Result    json.RawMessage            `json:"result,omitempty"`
	Extra     map[string]json.RawMessage `json:"extra,omitempty"`
	CreatedAt time.Time                  `json:"created_at"`
	UpdatedAt time.Time                  `json:"updated_at"`
}

func newJob(kind Kind, desc *api.TaskDescriptor, now time.Time) *Job {
	job := &Job{
		TaskID:    desc.TaskID,
		Kind:      kind,
		CreatedAt: now,
	}
	job.merge(desc, now)
	return job
}

// merge overwrites only the fields present in desc. The task id, kind and
// creation time are local and never change.
func (j *Job) merge(desc *api.TaskDescriptor, now time.Time) {
	if desc.Status != nil {
		j.RawStatus = *desc.Status
		j.Status = ParseStatus(*desc.Status)
	}
	if desc.Result != nil {
		j.Result = append(json.RawMessage(nil), desc.Result...)
	}
	for k, v := range desc.Extra {
		if j.Extra == nil {
			j.Extra = make(map[string]json.RawMessage, len(desc.Extra))
		}
		j.Extra[k] = append(json.RawMessage(nil), v...)
	}
	j.UpdatedAt = now
}

func (j *Job) clone() Job {
	c := *j
	if j.Result != nil {
		c.Result = append(json.RawMessage(nil), j.Result...)
	}
	if j.Extra != nil {
		c.Extra = make(map[string]json.RawMessage, len(j.Extra))
		for k, v := range j.Extra {
			c.Extra[k] = v
		}
	}
	return c
}

// Terminal reports whether polling has stopped for this job.
func (j Job) Terminal() bool {
	return j.Status.Terminal()
}

var resultLinkKeys = []string{"url", "link", "download_url", "file_url"}

// ResultLink returns a downloadable reference from a successful result, or
// an empty string.
func (j Job) ResultLink() string {
	if j.Status != StatusSuccess || len(j.Result) == 0 {
		return ""
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(j.Result, &fields); err != nil {
		return ""
	}
	for _, key := range resultLinkKeys {
		if s, ok := fields[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
