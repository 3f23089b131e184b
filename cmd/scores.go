package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
)

var (
	scoresFormat string
	scoresOutput string
)

var scoresCmd = &cobra.Command{
	Use:   "scores",
	Short: "Compute account scores",
}

var scoresHealthCmd = &cobra.Command{
	Use:   "health",
	Short: "Compute health scores for all accounts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		scores, err := e.Scoring.HealthScores(ctx)
		if err != nil {
			return eris.Wrap(err, "health scores")
		}

		rows := make([][]string, 0, len(scores))
		for _, s := range scores {
			rows = append(rows, []string{
				s.AccountSlug, s.AccountName,
				strconv.Itoa(s.Score), string(s.Band),
				strconv.Itoa(s.Components.Engagement),
				strconv.Itoa(s.Components.Opportunity),
				strconv.Itoa(s.Components.Signal),
				strconv.Itoa(s.Components.Risk),
				strings.Join(s.Reasons, "; "),
			})
		}
		header := []string{"slug", "name", "score", "band", "engagement", "opportunity", "signal", "risk", "reasons"}
		return writeRows(header, rows)
	},
}

var scoresTargetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "Compute targeting priorities for all accounts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		scores, err := e.Scoring.TargetScores(ctx)
		if err != nil {
			return eris.Wrap(err, "target scores")
		}

		rows := make([][]string, 0, len(scores))
		for _, s := range scores {
			rows = append(rows, []string{
				s.AccountSlug, s.AccountName,
				strconv.Itoa(s.Score), string(s.Band),
				strings.Join(s.Reasons, "; "),
			})
		}
		header := []string{"slug", "name", "score", "band", "reasons"}
		return writeRows(header, rows)
	},
}

var scoresFocusCmd = &cobra.Command{
	Use:   "focus",
	Short: "Build the merged daily-focus feed",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		items, err := e.Scoring.Focus(ctx)
		if err != nil {
			return eris.Wrap(err, "focus feed")
		}

		rows := make([][]string, 0, len(items))
		for _, item := range items {
			when := ""
			if item.When != nil {
				when = item.When.Format("2006-01-02")
			}
			rows = append(rows, []string{
				string(item.Type), item.AccountSlug, item.Title,
				item.Description, when, string(item.HealthBand),
			})
		}
		header := []string{"type", "account", "title", "description", "when", "health"}
		return writeRows(header, rows)
	},
}

// writeRows renders to stdout or --output in the selected format.
func writeRows(header []string, rows [][]string) error {
	switch scoresFormat {
	case "table":
		return writeTable(header, rows)
	case "csv":
		return writeCSV(header, rows)
	case "xlsx":
		if scoresOutput == "" {
			return eris.New("--output is required for xlsx format")
		}
		return writeXLSX(header, rows)
	default:
		return eris.Errorf("unsupported format: %s", scoresFormat)
	}
}

func outputWriter() (*os.File, func(), error) {
	if scoresOutput == "" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(scoresOutput)
	if err != nil {
		return nil, nil, eris.Wrap(err, "create output file")
	}
	return f, func() { _ = f.Close() }, nil
}

func writeTable(header []string, rows [][]string) error {
	out, closeFn, err := outputWriter()
	if err != nil {
		return err
	}
	defer closeFn()

	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] && widths[i] < 48 {
				widths[i] = min(len(cell), 48)
			}
		}
	}

	printRow := func(cells []string) {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			if len(cell) > 48 {
				cell = cell[:45] + "..."
			}
			parts[i] = fmt.Sprintf("%-*s", widths[i], cell)
		}
		fmt.Fprintln(out, strings.Join(parts, "  "))
	}

	printRow(header)
	for _, row := range rows {
		printRow(row)
	}
	fmt.Fprintf(out, "%d row(s)\n", len(rows))
	return nil
}

func writeCSV(header []string, rows [][]string) error {
	out, closeFn, err := outputWriter()
	if err != nil {
		return err
	}
	defer closeFn()

	w := csv.NewWriter(out)
	if err := w.Write(header); err != nil {
		return eris.Wrap(err, "write csv header")
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return eris.Wrap(err, "write csv row")
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "flush csv")
}

func writeXLSX(header []string, rows [][]string) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("scores")
	if err != nil {
		return eris.Wrap(err, "add sheet")
	}

	addRow := func(cells []string) {
		row := sheet.AddRow()
		for _, cell := range cells {
			row.AddCell().SetString(cell)
		}
	}
	addRow(header)
	for _, row := range rows {
		addRow(row)
	}

	if err := f.Save(scoresOutput); err != nil {
		return eris.Wrap(err, "save xlsx")
	}
	return nil
}

func init() {
	scoresCmd.PersistentFlags().StringVar(&scoresFormat, "format", "table", "output format: table, csv, or xlsx")
	scoresCmd.PersistentFlags().StringVar(&scoresOutput, "output", "", "write to file instead of stdout")

	scoresCmd.AddCommand(scoresHealthCmd)
	scoresCmd.AddCommand(scoresTargetsCmd)
	scoresCmd.AddCommand(scoresFocusCmd)
	rootCmd.AddCommand(scoresCmd)
}
