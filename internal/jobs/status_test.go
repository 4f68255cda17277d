package jobs

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gvsdash/internal/api"
	"gvsdash/internal/i18n"
)

func TestParseStatus(t *testing.T) {
	t.Run("Should recognise the four backend statuses in any case", func(t *testing.T) {
		assert.Equal(t, StatusPending, ParseStatus("PENDING"))
		assert.Equal(t, StatusRunning, ParseStatus("running"))
		assert.Equal(t, StatusSuccess, ParseStatus(" Success "))
		assert.Equal(t, StatusFailure, ParseStatus("FAILURE"))
	})

	t.Run("Should map anything else to unknown", func(t *testing.T) {
		for _, raw := range []string{"", "STARTED", "REVOKED", "done"} {
			s := ParseStatus(raw)
			assert.Equal(t, StatusUnknown, s, raw)
			assert.False(t, s.Terminal())
			assert.Equal(t, StatusPending, s.Presented())
		}
	})

	t.Run("Should only treat success and failure as terminal", func(t *testing.T) {
		assert.True(t, StatusSuccess.Terminal())
		assert.True(t, StatusFailure.Terminal())
		assert.False(t, StatusPending.Terminal())
		assert.False(t, StatusRunning.Terminal())
	})
}

func TestJobResultLink(t *testing.T) {
	t.Run("Should find a link under the known keys", func(t *testing.T) {
		job := Job{Status: StatusSuccess, Result: json.RawMessage(`{"rows":10,"download_url":"/x.xlsx"}`)}
		assert.Equal(t, "/x.xlsx", job.ResultLink())
	})

	t.Run("Should return nothing before success or for non-object results", func(t *testing.T) {
		running := Job{Status: StatusRunning, Result: json.RawMessage(`{"url":"/x"}`)}
		scalar := Job{Status: StatusSuccess, Result: json.RawMessage(`42`)}
		assert.Empty(t, running.ResultLink())
		assert.Empty(t, scalar.ResultLink())
	})
}

func TestMerge(t *testing.T) {
	t.Run("Should overwrite even a terminal status with the newest reply", func(t *testing.T) {
		now := time.Now()
		done := "SUCCESS"
		job := newJob(KindForecast, &api.TaskDescriptor{TaskID: "t", Status: &done}, now)

		again := "RUNNING"
		job.merge(&api.TaskDescriptor{TaskID: "t", Status: &again}, now)
		assert.Equal(t, StatusRunning, job.Status)
	})
}

func TestDecodePayload(t *testing.T) {
	t.Run("Should decode a training payload", func(t *testing.T) {
		p, err := DecodePayload(KindTrain, []byte(`{"narx":true,"epochs":5,"lr":0.01}`))
		require.NoError(t, err)
		req, ok := p.(api.TrainRequest)
		require.True(t, ok)
		assert.True(t, req.NARX)
		assert.Equal(t, 5, req.Epochs)
	})

	t.Run("Should reject fields that belong to another kind", func(t *testing.T) {
		_, err := DecodePayload(KindForecast, []byte(`{"epochs":5}`))
		assert.ErrorIs(t, err, ErrPayloadMismatch)
	})

	t.Run("Should reject unknown kinds", func(t *testing.T) {
		_, err := DecodePayload(Kind("export"), nil)
		assert.ErrorIs(t, err, ErrUnknownKind)
	})
}

func TestStatusLabel(t *testing.T) {
	t.Run("Should label unknown statuses as waiting", func(t *testing.T) {
		assert.Equal(t, i18n.MsgStatusWaiting, StatusUnknown.Label())
		assert.Equal(t, i18n.MsgStatusWaiting, StatusPending.Label())
		assert.Equal(t, i18n.MsgStatusRunning, StatusRunning.Label())
		assert.Equal(t, i18n.MsgStatusDone, StatusSuccess.Label())
		assert.Equal(t, i18n.MsgStatusFailed, StatusFailure.Label())
	})
}
