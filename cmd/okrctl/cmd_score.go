package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/abbasKakoolvand/OKR-analyze/internal/app"
	"github.com/abbasKakoolvand/OKR-analyze/internal/scoring"
	"github.com/abbasKakoolvand/OKR-analyze/internal/storage/database"
)

var (
	scoreKRs     []string
	filterKR     string
	filterPerson string
)

// scoreCmd runs the scoring pipeline over every (KR, person) pair
var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score imported tasks against key results",
	Long: `Score every person's tasks against each key result from the OKR sheet.

Pairs that already have a stored scoring run are skipped without calling the
model. Use --kr to limit the run to specific key result codes.`,
	RunE: runScore,
}

var scoresCmd = &cobra.Command{
	Use:   "scores",
	Short: "Show stored scores",
	RunE:  runScores,
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List completed scoring runs",
	RunE:  runRuns,
}

func init() {
	scoreCmd.Flags().StringSliceVar(&scoreKRs, "kr", nil, "Key result codes to score (default: all)")
	scoresCmd.Flags().StringVar(&filterKR, "kr", "", "Filter by key result code")
	scoresCmd.Flags().StringVar(&filterPerson, "person", "", "Filter by person")
}

func runScore(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		out := cmd.OutOrStdout()

		report, err := a.ScoreAll(ctx, scoreKRs, func(res scoring.CellResult) {
			switch res.Outcome {
			case scoring.OutcomeFailed:
				fmt.Fprintf(out, "%-8s %-20s failed: %s\n", res.KRCode, res.Person, res.Error)
			case scoring.OutcomeScored:
				fmt.Fprintf(out, "%-8s %-20s scored %d tasks\n", res.KRCode, res.Person, res.Scored)
			default:
				fmt.Fprintf(out, "%-8s %-20s %s\n", res.KRCode, res.Person, res.Outcome)
			}
		})
		if report != nil {
			fmt.Fprintf(out, "\n%d scored, %d skipped, %d without tasks, %d claimed elsewhere, %d failed\n",
				report.Counts[scoring.OutcomeScored],
				report.Counts[scoring.OutcomeSkipped],
				report.Counts[scoring.OutcomeNoTasks],
				report.Counts[scoring.OutcomeClaimed],
				report.Counts[scoring.OutcomeFailed],
			)
		}
		if err != nil {
			return err
		}
		if failed := report.Failed(); len(failed) > 0 {
			return fmt.Errorf("%d cells failed", len(failed))
		}
		return nil
	})
}

func runScores(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		records, err := a.DB.ScoresFor(ctx, database.ScoreFilter{KRCode: filterKR, Person: filterPerson})
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "KR\tPERSON\tTASK\tSCORE")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", r.KRCode, r.Person, r.TaskID, r.Score)
		}
		return w.Flush()
	})
}

func runRuns(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		runs, err := a.DB.ListRuns(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RUN\tKR\tPERSON\tROUNDS\tTASKS\tCREATED")
		for _, r := range runs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
				r.RunID, r.KRCode, r.Person, r.Rounds, r.TaskCount, r.CreatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	})
}
