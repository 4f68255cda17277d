package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// MLClient submits background jobs and reads their status. None of these
// calls are cached or retried.
type MLClient struct {
	c *Client
}

func (m *MLClient) Train(ctx context.Context, req TrainRequest) (*TaskDescriptor, error) {
	return m.submit(ctx, "/ml/train", req)
}

// RunForecast defaults the horizon to DefaultForecastHorizon hours.
func (m *MLClient) RunForecast(ctx context.Context, req ForecastRequest) (*TaskDescriptor, error) {
	if req.HorizonHours <= 0 {
		req.HorizonHours = DefaultForecastHorizon
	}
	return m.submit(ctx, "/ml/forecast/run", req)
}

func (m *MLClient) AnomalyScan(ctx context.Context, req AnomalyScanRequest) (*TaskDescriptor, error) {
	return m.submit(ctx, "/ml/anomaly/scan", req)
}

// TaskStatus polls one job. The result is never served from cache.
func (m *MLClient) TaskStatus(ctx context.Context, taskID string) (*TaskDescriptor, error) {
	var task TaskDescriptor
	if err := m.c.fetch(ctx, "/ml/tasks/"+url.PathEscape(taskID), &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (m *MLClient) submit(ctx context.Context, path string, body interface{}) (*TaskDescriptor, error) {
	var task TaskDescriptor
	if err := m.c.mutate(ctx, http.MethodPost, path, body, &task); err != nil {
		return nil, err
	}
	if task.TaskID == "" {
		return nil, fmt.Errorf("%s: response carried no task_id", path)
	}
	return &task, nil
}
