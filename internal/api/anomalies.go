package api

import "context"

type AnomaliesClient struct {
	c *Client
}

func (a *AnomaliesClient) List(ctx context.Context, params ListParams) ([]Anomaly, error) {
	var anomalies []Anomaly
	if err := a.c.query(ctx, "/anomalies/", params.Values(), []Tag{TagAnomalies}, &anomalies); err != nil {
		return nil, err
	}
	return anomalies, nil
}

func (a *AnomaliesClient) Count(ctx context.Context, params ListParams) (int64, error) {
	var n Count
	if err := a.c.query(ctx, "/anomalies/count", params.filterValues(), []Tag{TagAnomalies}, &n); err != nil {
		return 0, err
	}
	return int64(n), nil
}
