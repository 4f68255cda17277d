package api

import (
	"context"
	"net/http"
)

type NotificationsClient struct {
	c *Client
}

func (n *NotificationsClient) Status(ctx context.Context) (*NotificationStatus, error) {
	var status NotificationStatus
	if err := n.c.query(ctx, "/notifications/status", nil, []Tag{TagNotifications}, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Toggle switches backend notifications on or off and returns the new state.
func (n *NotificationsClient) Toggle(ctx context.Context, enabled bool) (*NotificationStatus, error) {
	// an empty answer keeps the requested state
	out := NotificationStatus{Enabled: enabled}
	err := n.c.mutate(ctx, http.MethodPost, "/notifications/toggle", out, &out, TagNotifications)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
