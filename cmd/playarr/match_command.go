package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"playarr/internal/api"
)

func newMatchCommand(ctx *commandContext) *cobra.Command {
	var follow bool

	cmd := &cobra.Command{
		Use:   "match",
		Short: "Link analyzed files to Sonarr/Radarr entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				operationID, err := client.StartMatch(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Match run started (operation %s)\n", operationID)
				if !follow {
					return nil
				}
				return followOperation(cmd, client, operationID)
			})
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Poll progress until the run finishes")
	return cmd
}

func followOperation(cmd *cobra.Command, client *api.Client, operationID string) error {
	out := cmd.OutOrStdout()
	for {
		select {
		case <-cmd.Context().Done():
			return cmd.Context().Err()
		case <-time.After(time.Second):
		}
		view, err := client.OperationProgress(cmd.Context(), operationID)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s: %d/%d records (%d unmatched)\n",
			view.Status, view.Processed, view.Total, view.Secondary)
		if view.Status != "running" {
			if view.Message != "" {
				fmt.Fprintln(out, view.Message)
			}
			return nil
		}
	}
}
