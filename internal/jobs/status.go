package jobs

import (
	"encoding/json"
	"strings"

	"gvsdash/internal/i18n"
)

// Status is the closed set of job states. Anything the backend sends that is
// not one of the four known values becomes StatusUnknown, which callers
// present as waiting.
type Status int

const (
	StatusUnknown Status = iota
	StatusPending
	StatusRunning
	StatusSuccess
	StatusFailure
)

// ParseStatus maps a backend status string, ignoring case and surrounding
// space.
func ParseStatus(raw string) Status {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "PENDING":
		return StatusPending
	case "RUNNING":
		return StatusRunning
	case "SUCCESS":
		return StatusSuccess
	case "FAILURE":
		return StatusFailure
	default:
		return StatusUnknown
	}
}

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusRunning:
		return "RUNNING"
	case StatusSuccess:
		return "SUCCESS"
	case StatusFailure:
		return "FAILURE"
	case StatusUnknown:
		return "UNKNOWN"
	}
	return "UNKNOWN"
}

// Terminal reports whether the job has finished and must not be polled again.
func (s Status) Terminal() bool {
	switch s {
	case StatusSuccess, StatusFailure:
		return true
	case StatusUnknown, StatusPending, StatusRunning:
		return false
	}
	return false
}

// Presented is the status a view should show: unknown values read as pending.
func (s Status) Presented() Status {
	switch s {
	case StatusUnknown:
		return StatusPending
	case StatusPending, StatusRunning, StatusSuccess, StatusFailure:
		return s
	}
	return StatusPending
}

// Label is the message shown for the presented status.
func (s Status) Label() i18n.MessageID {
	switch s.Presented() {
	case StatusRunning:
		return i18n.MsgStatusRunning
	case StatusSuccess:
		return i18n.MsgStatusDone
	case StatusFailure:
		return i18n.MsgStatusFailed
	case StatusUnknown, StatusPending:
		return i18n.MsgStatusWaiting
	}
	return i18n.MsgStatusWaiting
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = ParseStatus(raw)
	return nil
}
