package cli

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/headline-goat/funnel-goat/internal/funnel"
	"github.com/headline-goat/funnel-goat/internal/store"
)

var exportFormat string

var exportCmd = &cobra.Command{
	Use:   "export <session-id>",
	Short: "Export a session's funnel history",
	Long: `Export the funnel history of a session in CSV or JSON format.

Examples:
  fg export 8b2d44 --format csv > session.csv
  fg export 8b2d44 --format json > session.json`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "csv", "output format (csv or json)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	sid := args[0]

	if exportFormat != "csv" && exportFormat != "json" {
		return fmt.Errorf("invalid format: must be 'csv' or 'json'")
	}

	return withStore(func(s *store.SQLiteStore) error {
		ctx := context.Background()

		sess, err := s.GetSession(ctx, sid)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("session '%s' not found", sid)
			}
			return fmt.Errorf("failed to get session: %w", err)
		}

		history := inspect(s, sess.VisitorID, sess.ID).History(ctx)

		if exportFormat == "csv" {
			return exportCSV(cmd.OutOrStdout(), history)
		}
		return exportJSON(cmd.OutOrStdout(), sess, history)
	})
}

func exportCSV(out io.Writer, history []funnel.Entry) error {
	w := csv.NewWriter(out)

	// Write header
	if err := w.Write([]string{"timestamp", "stage", "path"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	// Write rows
	for _, e := range history {
		row := []string{
			strconv.FormatInt(e.Timestamp, 10),
			string(e.Stage),
			e.Path,
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	w.Flush()
	return w.Error()
}

type jsonExport struct {
	Session *store.Session `json:"session"`
	History []funnel.Entry `json:"history"`
}

func exportJSON(out io.Writer, sess *store.Session, history []funnel.Entry) error {
	if history == nil {
		history = []funnel.Entry{}
	}
	return printJSON(out, jsonExport{Session: sess, History: history})
}
