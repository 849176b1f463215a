package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"playarr/internal/api"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Run and inspect library scans",
	}

	scanCmd.AddCommand(newScanStartCommand(ctx))
	scanCmd.AddCommand(newScanListCommand(ctx))
	scanCmd.AddCommand(newScanStatusCommand(ctx))
	scanCmd.AddCommand(newScanCancelCommand(ctx))

	return scanCmd
}

func newScanStartCommand(ctx *commandContext) *cobra.Command {
	var follow bool

	cmd := &cobra.Command{
		Use:   "start <library-id>",
		Short: "Start a scan of one library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *api.Client) error {
				scan, err := client.StartScan(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Scan %d started (operation %s)\n", scan.ID, scan.OperationID)
				if !follow {
					return nil
				}
				return followScan(cmd, client, scan.ID)
			})
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Poll progress until the scan finishes")
	return cmd
}

func followScan(cmd *cobra.Command, client *api.Client, scanID int64) error {
	out := cmd.OutOrStdout()
	for {
		select {
		case <-cmd.Context().Done():
			return cmd.Context().Err()
		case <-time.After(time.Second):
		}
		view, err := client.ScanProgress(cmd.Context(), scanID)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s: %d/%d files (%d broken, %d failed) %.1f/s\n",
			view.Status, view.Processed, view.Total, view.Secondary, view.Errors, view.PerSecond)
		if view.Status != "running" {
			if view.Message != "" {
				fmt.Fprintln(out, view.Message)
			}
			return nil
		}
	}
}

func newScanListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent scans",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				scans, err := client.Scans(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, map[string]any{"scans": scans})
				}
				if len(scans) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No scans recorded")
					return nil
				}
				rows := make([][]string, 0, len(scans))
				for _, scan := range scans {
					rows = append(rows, []string{
						strconv.FormatInt(scan.ID, 10),
						strconv.FormatInt(scan.LibraryID, 10),
						scan.Status,
						fmt.Sprintf("%d/%d", scan.ProcessedFiles, scan.TotalFiles),
						strconv.Itoa(scan.BrokenFiles),
						strconv.Itoa(scan.FailedFiles),
						scan.StartedAt,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Library", "Status", "Files", "Broken", "Failed", "Started"},
					rows, "ID", "Library", "Broken", "Failed"))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum scans to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newScanStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status <scan-id>",
		Short: "Show live progress of one scan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *api.Client) error {
				view, err := client.ScanProgress(cmd.Context(), id)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, view)
				}
				printProgress(cmd, view)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func printProgress(cmd *cobra.Command, view api.OperationProgress) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Operation: %s (%s)\n", view.OperationID, view.Kind)
	fmt.Fprintf(out, "Status:    %s\n", view.Status)
	fmt.Fprintf(out, "Progress:  %d/%d\n", view.Processed, view.Total)
	if view.Secondary > 0 {
		fmt.Fprintf(out, "Broken/unmatched: %d\n", view.Secondary)
	}
	if view.Errors > 0 {
		fmt.Fprintf(out, "Errors:    %d\n", view.Errors)
	}
	if view.CurrentItem != "" {
		fmt.Fprintf(out, "Current:   %s\n", view.CurrentItem)
	}
	if view.PerSecond > 0 {
		fmt.Fprintf(out, "Rate:      %.1f/s (ETA %ds)\n", view.PerSecond, view.ETASeconds)
	}
	if view.Message != "" {
		fmt.Fprintf(out, "Message:   %s\n", view.Message)
	}
}

func newScanCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <scan-id>",
		Short: "Cancel a running scan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *api.Client) error {
				if err := client.CancelScan(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cancellation requested for scan %d\n", id)
				return nil
			})
		},
	}
}
