package api

import (
	"context"
	"fmt"
	"strconv"
)

type ModelsClient struct {
	c *Client
}

func (m *ModelsClient) List(ctx context.Context, params ListParams) ([]Model, error) {
	var models []Model
	if err := m.c.query(ctx, "/models/", params.Values(), []Tag{TagModels}, &models); err != nil {
		return nil, err
	}
	return models, nil
}

func (m *ModelsClient) Count(ctx context.Context, params ListParams) (int64, error) {
	var n Count
	if err := m.c.query(ctx, "/models/count", params.filterValues(), []Tag{TagModels}, &n); err != nil {
		return 0, err
	}
	return int64(n), nil
}

func (m *ModelsClient) Get(ctx context.Context, id int64) (*Model, error) {
	var model Model
	tag := Tag{Type: TagModels.Type, ID: strconv.FormatInt(id, 10)}
	if err := m.c.query(ctx, fmt.Sprintf("/models/%d", id), nil, []Tag{tag}, &model); err != nil {
		return nil, err
	}
	return &model, nil
}
