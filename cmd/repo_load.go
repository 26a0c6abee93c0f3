package cmd

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/inovacc/repoload/internal/core"
)

var repoLoadCmd = &cobra.Command{
	Use:   "load <file.csv>",
	Short: "Register repositories listed in a CSV file",
	Long: `Register every repository listed in a CSV file of url,group_id rows.

A header row is skipped when present. A failing row is reported with its
line number and the load continues with the next one.

Example file:
  url,group_id
  https://github.com/chaoss/augur,10
  https://github.com/chaoss/grimoirelab,12`,
	Args: cobra.ExactArgs(1),
	RunE: runRepoLoad,
}

func init() {
	repoCmd.AddCommand(repoLoadCmd)
	repoLoadCmd.Flags().Bool("reset-status", false, "Reset the collection status of existing repositories to New")
}

// csvRow is one parsed line of a load file. Err is set when the line cannot
// be registered as is.
type csvRow struct {
	Line    int
	URL     string
	GroupID int64
	Err     error
}

// readRepoCSV parses url,group_id rows.
func readRepoCSV(r io.Reader) ([]csvRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	var rows []csvRow

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return rows, fmt.Errorf("reading csv: %w", err)
		}

		line, _ := reader.FieldPos(0)

		if len(rows) == 0 && isHeader(record) {
			continue
		}

		row := csvRow{Line: line}

		if len(record) != 2 {
			row.Err = fmt.Errorf("expected 2 fields, got %d", len(record))
			rows = append(rows, row)

			continue
		}

		row.URL = strings.TrimSpace(record[0])

		row.GroupID, err = strconv.ParseInt(strings.TrimSpace(record[1]), 10, 64)
		if err != nil || row.GroupID <= 0 {
			row.Err = fmt.Errorf("invalid group id %q", record[1])
		}

		rows = append(rows, row)
	}

	return rows, nil
}

func isHeader(record []string) bool {
	return len(record) > 0 && strings.EqualFold(strings.TrimSpace(record[0]), "url")
}

func runRepoLoad(cmd *cobra.Command, args []string) error {
	reset, _ := cmd.Flags().GetBool("reset-status")

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}

	defer func() { _ = f.Close() }()

	rows, err := readRepoCSV(f)
	if err != nil {
		return err
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}

	defer func() { _ = a.Close() }()

	out := cmd.OutOrStdout()
	added, failed := 0, 0

	for _, row := range rows {
		if err := cmd.Context().Err(); err != nil {
			return err
		}

		if row.Err == nil {
			_, err := a.ctrl.AddCLIRepo(cmd.Context(), core.CLIRepo{
				URL:         row.URL,
				RepoGroupID: row.GroupID,
				ResetStatus: reset,
			})
			if core.KindOf(err) == core.KindStorage {
				return fmt.Errorf("line %d: %w", row.Line, err)
			}

			row.Err = err
		}

		if row.Err != nil {
			failed++

			_, _ = fmt.Fprintf(out, "%s line %d: %v\n", failStyle.Render("✗"), row.Line, row.Err)

			continue
		}

		added++
	}

	a.logger.Info("load finished",
		slog.String("file", args[0]),
		slog.Int("added", added),
		slog.Int("failed", failed),
	)

	_, _ = fmt.Fprintf(out, "%s %d added, %d failed\n", okStyle.Render("✓"), added, failed)

	if failed > 0 {
		return fmt.Errorf("%d of %d rows failed", failed, len(rows))
	}

	return nil
}
