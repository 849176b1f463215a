package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"playarr/internal/api"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				status, err := client.Status(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, status)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Running:   %s\n", yesNo(status.Running))
				fmt.Fprintf(out, "PID:       %d\n", status.PID)
				fmt.Fprintf(out, "Database:  %s\n", status.DatabasePath)
				fmt.Fprintf(out, "Lock:      %s\n", status.LockFilePath)
				fmt.Fprintf(out, "Libraries: %d\n", status.Libraries)
				if len(status.Operations) > 0 {
					fmt.Fprintln(out, "Operations:")
					for _, op := range status.Operations {
						fmt.Fprintf(out, "  %s %s %s %d/%d\n",
							op.OperationID, op.Kind, op.Status, op.Processed, op.Total)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
