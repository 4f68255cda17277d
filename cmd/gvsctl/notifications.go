package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"gvsdash/internal/api"
	"gvsdash/internal/i18n"
)

func (c *cli) notificationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "Show or switch backend notifications",
	}

	show := func(status *api.NotificationStatus) error {
		return c.print(status, func(w io.Writer) {
			state := "off"
			if status.Enabled {
				state = "on"
			}
			fmt.Fprintf(w, "Notifications are %s\n", state)
		})
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show whether notifications are on",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := c.console.Client.Notifications.Status(cmd.Context())
			if err != nil {
				return c.fail(err, i18n.MsgLoadFailed)
			}
			return show(status)
		},
	}

	toggle := func(use string, enabled bool) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: "Turn notifications " + use,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				status, err := c.console.Client.Notifications.Toggle(cmd.Context(), enabled)
				if err != nil {
					return c.fail(err, i18n.MsgNotifyFailed)
				}
				return show(status)
			},
		}
	}

	cmd.AddCommand(statusCmd, toggle("on", true), toggle("off", false))
	return cmd
}
