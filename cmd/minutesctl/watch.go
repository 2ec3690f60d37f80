package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/loqalabs/loqa-minutes/internal/bus"
	"github.com/loqalabs/loqa-minutes/internal/protocol"
)

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print recording lifecycle events from the bus until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.cfg.Bus.Enabled {
				return errors.New("bus is disabled; set bus.enabled to watch events")
			}
			busCfg := a.cfg.Bus
			if busCfg.Embedded {
				busCfg.Servers = []string{fmt.Sprintf("nats://127.0.0.1:%d", busCfg.Port)}
			}
			client, err := bus.Connect(cmd.Context(), busCfg, a.logger)
			if err != nil {
				return err
			}
			defer client.Close()

			out := cmd.OutOrStdout()
			sub, err := client.Subscribe(func(subject string, evt protocol.RecordingEvent) {
				line := fmt.Sprintf("%s %s %s", evt.Timestamp.Format(time.RFC3339), subject, evt.RecordingID)
				if evt.Error != "" {
					line += " error=" + evt.Error
				}
				if evt.Fallback {
					line += " summary=fallback"
				}
				fmt.Fprintln(out, line)
			})
			if err != nil {
				return err
			}
			defer sub.Unsubscribe()

			<-cmd.Context().Done()
			return nil
		},
	}
}
