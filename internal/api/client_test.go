package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gvsdash/internal/config"
	"gvsdash/internal/logging"
)

type staticToken string

func (s staticToken) Token(context.Context) string { return string(s) }

// recorder counts hits per path and remembers the last request seen.
type recorder struct {
	mu   sync.Mutex
	hits map[string]int
	last *http.Request
	body []byte
}

func (r *recorder) record(req *http.Request) {
	body, _ := io.ReadAll(req.Body)
	req.Body = io.NopCloser(bytes.NewReader(body))
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hits == nil {
		r.hits = map[string]int{}
	}
	r.hits[req.URL.Path]++
	r.last = req
	r.body = body
}

func (r *recorder) count(path string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hits[path]
}

func newTestClient(t *testing.T, handler http.HandlerFunc, tokens TokenSource) (*Client, *recorder) {
	t.Helper()
	rec := &recorder{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	cfg := config.APIConfig{
		BaseURL:   server.URL,
		Timeout:   5 * time.Second,
		CacheTTL:  time.Minute,
		CacheSize: 32,
	}
	return NewClient(cfg, tokens, logging.Discard()), rec
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestAuthorizationHeader(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"id": 7, "email": "op@example.com"})
	}

	t.Run("Should attach the bearer token when one exists", func(t *testing.T) {
		client, rec := newTestClient(t, handler, staticToken("abc"))

		user, err := client.Auth.Me(context.Background())
		require.NoError(t, err)
		assert.Equal(t, ID("7"), user.ID)
		assert.Equal(t, "Bearer abc", rec.last.Header.Get("Authorization"))
		assert.NotEmpty(t, rec.last.Header.Get("X-Request-ID"))
	})

	t.Run("Should send no Authorization header without a token", func(t *testing.T) {
		client, rec := newTestClient(t, handler, staticToken(""))

		_, err := client.Auth.Me(context.Background())
		require.NoError(t, err)
		_, present := rec.last.Header["Authorization"]
		assert.False(t, present)
	})

	t.Run("Should tolerate a nil token source", func(t *testing.T) {
		client, rec := newTestClient(t, handler, nil)

		_, err := client.Auth.Me(context.Background())
		require.NoError(t, err)
		assert.Empty(t, rec.last.Header.Get("Authorization"))
	})
}

func TestLogin(t *testing.T) {
	t.Run("Should post form-encoded password grant", func(t *testing.T) {
		client, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"access_token": "tok", "token_type": "bearer"})
		}, nil)

		token, err := client.Auth.Login(context.Background(), "op@example.com", "secret-pass")
		require.NoError(t, err)
		assert.Equal(t, "tok", token.AccessToken)
		assert.Equal(t, "bearer", token.TokenType)

		assert.Equal(t, "/auth/jwt/login", rec.last.URL.Path)
		assert.Contains(t, rec.last.Header.Get("Content-Type"), "application/x-www-form-urlencoded")
		form := string(rec.body)
		assert.Contains(t, form, "grant_type=password")
		assert.Contains(t, form, "username=op%40example.com")
		assert.Contains(t, form, "password=secret-pass")
		assert.Contains(t, form, "scope=")
	})

	t.Run("Should map 401 to ErrUnauthorized", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "LOGIN_BAD_CREDENTIALS"})
		}, nil)

		_, err := client.Auth.Login(context.Background(), "op@example.com", "wrong")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnauthorized))

		var httpErr *HTTPError
		require.True(t, errors.As(err, &httpErr))
		assert.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)
		assert.Contains(t, httpErr.Body, "LOGIN_BAD_CREDENTIALS")
	})
}

func TestQueryCache(t *testing.T) {
	records := []map[string]interface{}{
		{"record_id": 1, "datetime": "2025-04-01T00:00:00", "consumption_gvs": "12.5"},
	}
	handler := func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/processed-data/":
			writeJSON(w, http.StatusOK, records)
		case "/processed-data/count":
			writeJSON(w, http.StatusOK, map[string]int{"count": 1})
		case "/anomalies/":
			writeJSON(w, http.StatusOK, []interface{}{})
		case "/processed-data/import-excel":
			writeJSON(w, http.StatusOK, map[string]interface{}{"inserted": 1})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
	ctx := context.Background()

	t.Run("Should serve identical reads from cache", func(t *testing.T) {
		client, rec := newTestClient(t, handler, nil)
		params := ListParams{DtFrom: "2025-04-01", Limit: 10}

		first, err := client.ProcessedData.List(ctx, params)
		require.NoError(t, err)
		second, err := client.ProcessedData.List(ctx, params)
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, 1, rec.count("/processed-data/"))
		v, ok := first[0].ConsumptionGVS.Float()
		assert.True(t, ok)
		assert.Equal(t, 12.5, v)
	})

	t.Run("Should refetch for different parameters", func(t *testing.T) {
		client, rec := newTestClient(t, handler, nil)

		_, err := client.ProcessedData.List(ctx, ListParams{Limit: 10})
		require.NoError(t, err)
		_, err = client.ProcessedData.List(ctx, ListParams{Limit: 20})
		require.NoError(t, err)

		assert.Equal(t, 2, rec.count("/processed-data/"))
	})

	t.Run("Should refetch list and count after an import but keep other resources", func(t *testing.T) {
		client, rec := newTestClient(t, handler, nil)

		_, err := client.ProcessedData.List(ctx, ListParams{})
		require.NoError(t, err)
		n, err := client.ProcessedData.Count(ctx, ListParams{})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		_, err = client.Anomalies.List(ctx, ListParams{})
		require.NoError(t, err)

		_, err = client.ProcessedData.ImportExcel(ctx, []ImportFile{
			{Name: "a.xlsx", Reader: strings.NewReader("PK")},
		}, true)
		require.NoError(t, err)

		_, err = client.ProcessedData.List(ctx, ListParams{})
		require.NoError(t, err)
		_, err = client.ProcessedData.Count(ctx, ListParams{})
		require.NoError(t, err)
		_, err = client.Anomalies.List(ctx, ListParams{})
		require.NoError(t, err)

		assert.Equal(t, 2, rec.count("/processed-data/"))
		assert.Equal(t, 2, rec.count("/processed-data/count"))
		assert.Equal(t, 1, rec.count("/anomalies/"))
	})

	t.Run("Should not cache failed reads", func(t *testing.T) {
		var calls int32
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) == 1 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			writeJSON(w, http.StatusOK, []interface{}{})
		}, nil)

		_, err := client.Models.List(ctx, ListParams{})
		require.Error(t, err)
		_, err = client.Models.List(ctx, ListParams{})
		require.NoError(t, err)
		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	})

	t.Run("Should drop cached reads on login", func(t *testing.T) {
		client, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/auth/jwt/login" {
				writeJSON(w, http.StatusOK, map[string]string{"access_token": "t", "token_type": "bearer"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"id": "u1"})
		}, nil)

		_, err := client.Auth.Me(ctx)
		require.NoError(t, err)
		_, err = client.Auth.Login(ctx, "a", "b")
		require.NoError(t, err)
		_, err = client.Auth.Me(ctx)
		require.NoError(t, err)

		assert.Equal(t, 2, rec.count("/me"))
	})
}

func TestImportExcel(t *testing.T) {
	t.Run("Should send every file as a files part with the dedupe flag", func(t *testing.T) {
		var names []string
		var dedupe string
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			dedupe = r.URL.Query().Get("dedupe")
			require.NoError(t, r.ParseMultipartForm(1<<20))
			for _, fh := range r.MultipartForm.File["files"] {
				names = append(names, fh.Filename)
			}
			writeJSON(w, http.StatusOK, map[string]interface{}{"files": len(names)})
		}, nil)

		report, err := client.ProcessedData.ImportExcel(context.Background(), []ImportFile{
			{Name: "jan.xlsx", Reader: strings.NewReader("one")},
			{Name: "feb.xlsx", Reader: strings.NewReader("two")},
		}, false)
		require.NoError(t, err)

		assert.Equal(t, []string{"jan.xlsx", "feb.xlsx"}, names)
		assert.Equal(t, "false", dedupe)
		assert.EqualValues(t, 2, report["files"])
	})

	t.Run("Should refuse an empty file list", func(t *testing.T) {
		client, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {}, nil)

		_, err := client.ProcessedData.ImportExcel(context.Background(), nil, true)
		require.Error(t, err)
		assert.Zero(t, rec.count("/processed-data/import-excel"))
	})
}

func TestExportXLSX(t *testing.T) {
	ctx := context.Background()

	t.Run("Should apply defaults and return a file payload", func(t *testing.T) {
		client, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
			w.Header().Set("Content-Disposition", `attachment; filename="april.xlsx"`)
			_, _ = w.Write([]byte("PK\x03\x04"))
		}, nil)

		result, err := client.ProcessedData.ExportXLSX(ctx, ExportRequest{DtFrom: "2025-04-01", DtTo: "2025-04-30"})
		require.NoError(t, err)

		q := rec.last.URL.Query()
		assert.Equal(t, "10", q.Get("threshold_pct"))
		assert.Equal(t, "true", q.Get("save_to_db"))
		assert.Equal(t, "processed_anomalies.xlsx", q.Get("filename"))
		assert.Equal(t, "2025-04-01", q.Get("dt_from"))

		assert.True(t, result.IsFile())
		assert.Equal(t, "april.xlsx", result.Filename)
		assert.Equal(t, []byte("PK\x03\x04"), result.Data)
	})

	t.Run("Should keep the requested name when the attachment name is unusable", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
			w.Header().Set("Content-Disposition", `attachment; filename=".."`)
			_, _ = w.Write([]byte("PK\x03\x04"))
		}, nil)

		result, err := client.ProcessedData.ExportXLSX(ctx, ExportRequest{Filename: "march.xlsx"})
		require.NoError(t, err)
		assert.Equal(t, "march.xlsx", result.Filename)
	})

	t.Run("Should return the JSON status body when the backend answers JSON", func(t *testing.T) {
		client, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]interface{}{"saved": 3})
		}, nil)

		req := ExportRequest{ThresholdPct: Float(2.5), SaveToDB: Bool(false), Filename: "x.xlsx"}
		result, err := client.ProcessedData.ExportXLSX(ctx, req)
		require.NoError(t, err)
		assert.False(t, result.IsFile())
		assert.EqualValues(t, 3, result.Status["saved"])

		q := rec.last.URL.Query()
		assert.Equal(t, "2.5", q.Get("threshold_pct"))
		assert.Equal(t, "false", q.Get("save_to_db"))
		assert.Equal(t, "x.xlsx", q.Get("filename"))
	})

	t.Run("Should never cache exports", func(t *testing.T) {
		client, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]interface{}{})
		}, nil)

		for i := 0; i < 2; i++ {
			_, err := client.ProcessedData.ExportXLSX(ctx, ExportRequest{})
			require.NoError(t, err)
		}
		assert.Equal(t, 2, rec.count("/processed-data/export-xlsx"))
	})
}

func TestMLClient(t *testing.T) {
	ctx := context.Background()

	t.Run("Should default the forecast horizon to 48 hours", func(t *testing.T) {
		client, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"task_id": "t-1"})
		}, nil)

		task, err := client.ML.RunForecast(ctx, ForecastRequest{})
		require.NoError(t, err)
		assert.Equal(t, "t-1", task.TaskID)
		assert.JSONEq(t, `{"horizon_hours":48}`, string(rec.body))
	})

	t.Run("Should reject a submission without task_id", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{})
		}, nil)

		_, err := client.ML.Train(ctx, TrainRequest{Epochs: 1})
		require.Error(t, err)
	})

	t.Run("Should never serve task status from cache", func(t *testing.T) {
		var calls int32
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			n := atomic.AddInt32(&calls, 1)
			status := "PENDING"
			if n > 1 {
				status = "SUCCESS"
			}
			writeJSON(w, http.StatusOK, map[string]interface{}{"task_id": "t-1", "status": status, "progress": n})
		}, nil)

		first, err := client.ML.TaskStatus(ctx, "t-1")
		require.NoError(t, err)
		second, err := client.ML.TaskStatus(ctx, "t-1")
		require.NoError(t, err)

		assert.Equal(t, "PENDING", *first.Status)
		assert.Equal(t, "SUCCESS", *second.Status)
		assert.Nil(t, second.Result)
		assert.Contains(t, second.Extra, "progress")
	})

	t.Run("Should not retry polls even when reads retry", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		client := NewClient(config.APIConfig{
			BaseURL: server.URL, Timeout: 5 * time.Second, RetryCount: 2,
			CacheTTL: time.Minute, CacheSize: 8,
		}, nil, logging.Discard())

		_, err := client.ML.TaskStatus(ctx, "t-1")
		require.Error(t, err)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

		_, err = client.Models.List(ctx, ListParams{})
		require.Error(t, err)
		assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
	})
}

func TestNotifications(t *testing.T) {
	t.Run("Should invalidate the cached status after a toggle", func(t *testing.T) {
		var enabled atomic.Bool
		client, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/notifications/toggle" {
				var body NotificationStatus
				_ = json.NewDecoder(r.Body).Decode(&body)
				enabled.Store(body.Enabled)
			}
			writeJSON(w, http.StatusOK, NotificationStatus{Enabled: enabled.Load()})
		}, nil)
		ctx := context.Background()

		status, err := client.Notifications.Status(ctx)
		require.NoError(t, err)
		assert.False(t, status.Enabled)

		toggled, err := client.Notifications.Toggle(ctx, true)
		require.NoError(t, err)
		assert.True(t, toggled.Enabled)

		status, err = client.Notifications.Status(ctx)
		require.NoError(t, err)
		assert.True(t, status.Enabled)
		assert.Equal(t, 2, rec.count("/notifications/status"))
	})
}

func TestListQuery(t *testing.T) {
	t.Run("Should send only the parameters that were set, verbatim", func(t *testing.T) {
		client, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, []interface{}{})
		}, nil)

		_, err := client.ProcessedData.List(context.Background(), ListParams{
			DtFrom:    "2025-04-03T00:00:00",
			DtTo:      "2025-05-03T00:00:00",
			Limit:     500,
			OrderDesc: Bool(false),
		})
		require.NoError(t, err)

		q := rec.last.URL.Query()
		assert.Len(t, q, 4)
		assert.Equal(t, "2025-04-03T00:00:00", q.Get("dt_from"))
		assert.Equal(t, "2025-05-03T00:00:00", q.Get("dt_to"))
		assert.Equal(t, "500", q.Get("limit"))
		assert.Equal(t, "false", q.Get("order_desc"))
		for _, absent := range []string{"hour", "day_of_week", "is_weekend", "offset"} {
			_, present := q[absent]
			assert.False(t, present, absent)
		}
	})
}

func TestAttachmentName(t *testing.T) {
	tests := []struct {
		name        string
		disposition string
		want        string
	}{
		{"Should read a quoted filename", `attachment; filename="april.xlsx"`, "april.xlsx"},
		{"Should strip directories", `attachment; filename="../../etc/out.xlsx"`, "out.xlsx"},
		{"Should strip Windows directories", `attachment; filename="..\\reports\\out.xlsx"`, "out.xlsx"},
		{"Should reject a parent directory", `attachment; filename=".."`, ""},
		{"Should reject a root path", `attachment; filename="/"`, ""},
		{"Should ignore a header without filename", `attachment`, ""},
		{"Should ignore a malformed header", `;;`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, attachmentName(tt.disposition))
		})
	}
}
