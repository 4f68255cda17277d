package api

import "context"

type ForecastsClient struct {
	c *Client
}

func (f *ForecastsClient) List(ctx context.Context, params ListParams) ([]Forecast, error) {
	var forecasts []Forecast
	if err := f.c.query(ctx, "/forecasts/", params.Values(), []Tag{TagForecasts}, &forecasts); err != nil {
		return nil, err
	}
	return forecasts, nil
}

func (f *ForecastsClient) Count(ctx context.Context, params ListParams) (int64, error) {
	var n Count
	if err := f.c.query(ctx, "/forecasts/count", params.filterValues(), []Tag{TagForecasts}, &n); err != nil {
		return 0, err
	}
	return int64(n), nil
}
