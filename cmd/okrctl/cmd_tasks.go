package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abbasKakoolvand/OKR-analyze/internal/app"
)

var importSheet string

// importTasksCmd loads the task spreadsheet into the database
var importTasksCmd = &cobra.Command{
	Use:   "import-tasks [xlsx]",
	Short: "Import the team task spreadsheet",
	Long: `Read the task sheet (header "date, day, <person>...") and store one task per
person per day. Days already present in the database are skipped, so the
command is safe to re-run after new rows are appended. Without an argument the
configured ingestion.taskSheet is read.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runImportTasks,
}

var personsCmd = &cobra.Command{
	Use:   "persons",
	Short: "List persons that have imported tasks",
	RunE:  runPersons,
}

func init() {
	importTasksCmd.Flags().StringVar(&importSheet, "sheet", "", "Sheet name (default: first sheet)")
}

func runImportTasks(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		path := a.Config.Ingestion.TaskSheet
		if len(args) > 0 {
			path = args[0]
		}

		res, err := a.Importer.ImportFile(ctx, path, importSheet)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Imported %d tasks from %d days\n", res.Inserted, len(res.Days))
		if len(res.SkippedDays) > 0 {
			fmt.Fprintf(out, "Skipped %d known days: %s\n", len(res.SkippedDays), strings.Join(res.SkippedDays, ", "))
		}
		return nil
	})
}

func runPersons(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		persons, err := a.DB.ListPersons(ctx)
		if err != nil {
			return err
		}
		for _, p := range persons {
			fmt.Fprintln(cmd.OutOrStdout(), p)
		}
		return nil
	})
}
