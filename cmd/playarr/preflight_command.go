package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"playarr/internal/api"
	"playarr/internal/preflight"
	"playarr/internal/store"
)

// newPreflightCommand checks the local environment: data directory, ffprobe,
// library readability, and configured origin systems. Library paths come from
// the daemon when it is reachable, so checks run against the live set.
func newPreflightCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "preflight",
		Short: "Verify directories, ffprobe, and origin systems",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			var libraries []*store.LibraryPath
			daemonErr := ctx.withClient(func(client *api.Client) error {
				remote, err := client.Libraries(cmd.Context())
				if err != nil {
					return err
				}
				for _, lib := range remote {
					libraries = append(libraries, &store.LibraryPath{
						ID:   lib.ID,
						Path: lib.Path,
						Name: lib.Name,
					})
				}
				return nil
			})

			out := cmd.OutOrStdout()
			if daemonErr != nil {
				fmt.Fprintf(out, "Daemon unreachable, checking configuration only: %v\n", daemonErr)
			}

			results := preflight.RunAll(cmd.Context(), cfg, libraries)
			rows := make([][]string, 0, len(results))
			for _, result := range results {
				status := "OK"
				if !result.Passed {
					status = "FAIL"
				}
				rows = append(rows, []string{result.Name, status, result.Detail})
			}
			fmt.Fprintln(out, renderTable([]string{"Check", "Status", "Detail"}, rows))

			if !preflight.AllPassed(results) {
				return fmt.Errorf("one or more preflight checks failed")
			}
			return nil
		},
	}
}
