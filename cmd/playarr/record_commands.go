package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"playarr/internal/api"
)

func newRecordsCommand(ctx *commandContext) *cobra.Command {
	recordsCmd := &cobra.Command{
		Use:   "records",
		Short: "Inspect analyzed files",
	}

	recordsCmd.AddCommand(newRecordsListCommand(ctx))
	recordsCmd.AddCommand(newRecordsShowCommand(ctx))

	return recordsCmd
}

func newRecordsListCommand(ctx *commandContext) *cobra.Command {
	var libraryID int64
	var brokenOnly, unmatchedOnly, asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List analysis results",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				records, err := client.Records(cmd.Context(), api.RecordQuery{
					LibraryID: libraryID,
					Broken:    brokenOnly,
					Unmatched: unmatchedOnly,
				})
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, map[string]any{"records": records})
				}
				if len(records) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No records match")
					return nil
				}
				rows := make([][]string, 0, len(records))
				for _, rec := range records {
					rows = append(rows, []string{
						strconv.FormatInt(rec.ID, 10),
						rec.Path,
						recordState(rec),
						strconv.Itoa(rec.Score),
						fmt.Sprintf("%d/%d/%d", rec.DirectPlayClients, rec.RemuxClients, rec.TranscodeClients),
						matchedLabel(rec),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Path", "State", "Score", "DP/RX/TC", "Matched"},
					rows, "ID", "Score"))
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&libraryID, "library", 0, "Restrict to one library id")
	cmd.Flags().BoolVar(&brokenOnly, "broken", false, "Only broken files")
	cmd.Flags().BoolVar(&unmatchedOnly, "unmatched", false, "Only files without a Sonarr/Radarr match")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func recordState(rec api.Record) string {
	if rec.Broken {
		return "broken"
	}
	return strings.ToLower(rec.Category)
}

func newRecordsShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <record-id>",
		Short: "Show one analysis in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *api.Client) error {
				rec, err := client.GetRecord(cmd.Context(), id)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, rec)
				}
				printRecord(cmd, rec)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func printRecord(cmd *cobra.Command, rec api.Record) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Record %d: %s\n", rec.ID, rec.Path)
	if rec.Broken {
		fmt.Fprintf(out, "Broken: %s\n", rec.BrokenReason)
		return
	}
	fmt.Fprintf(out, "Score: %d (%s)\n", rec.Score, rec.Category)
	fmt.Fprintf(out, "Clients: %d direct play, %d remux, %d transcode\n",
		rec.DirectPlayClients, rec.RemuxClients, rec.TranscodeClients)

	if verdicts := decodeStringMap(rec.Verdicts); len(verdicts) > 0 {
		fmt.Fprintln(out, "Verdicts:")
		clients := make([]string, 0, len(verdicts))
		for client := range verdicts {
			clients = append(clients, client)
		}
		sort.Strings(clients)
		for _, client := range clients {
			fmt.Fprintf(out, "  %-20s %s\n", client, verdicts[client])
		}
	}
	if issues := decodeStringSlice(rec.Issues); len(issues) > 0 {
		fmt.Fprintln(out, "Issues:")
		for _, issue := range issues {
			fmt.Fprintf(out, "  - %s\n", issue)
		}
	}
	if recommendations := decodeStringSlice(rec.Recommendations); len(recommendations) > 0 {
		fmt.Fprintln(out, "Recommendations:")
		for _, advice := range recommendations {
			fmt.Fprintf(out, "  - %s\n", advice)
		}
	}
	if rec.MatchedTitle != "" {
		fmt.Fprintf(out, "Matched: %s (%s #%s)\n", matchedLabel(rec), rec.MatchedService, rec.MatchedExternalID)
	}
	if rec.AnalyzedAt != "" {
		fmt.Fprintf(out, "Analyzed: %s\n", rec.AnalyzedAt)
	}
}

// matchedLabel renders the matched title with its episode or year qualifier.
func matchedLabel(rec api.Record) string {
	switch {
	case rec.MatchedSeason > 0 || rec.MatchedEpisode > 0:
		return fmt.Sprintf("%s (S%02dE%02d)", rec.MatchedTitle, rec.MatchedSeason, rec.MatchedEpisode)
	case rec.MatchedYear > 0:
		return fmt.Sprintf("%s (%d)", rec.MatchedTitle, rec.MatchedYear)
	default:
		return rec.MatchedTitle
	}
}

func decodeStringMap(raw json.RawMessage) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	var out map[string]string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func decodeStringSlice(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func newRescanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rescan <record-id>",
		Short: "Re-extract and re-rate one file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *api.Client) error {
				rec, err := client.RescanFile(cmd.Context(), id)
				if err != nil {
					return err
				}
				printRecord(cmd, rec)
				return nil
			})
		},
	}
}

func newRecalculateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "recalculate <record-id>",
		Short: "Re-rate stored attributes without touching the file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *api.Client) error {
				rec, err := client.RecalculateRating(cmd.Context(), id)
				if err != nil {
					return err
				}
				printRecord(cmd, rec)
				return nil
			})
		},
	}
}
