package main

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/abbasKakoolvand/OKR-analyze/internal/app"
	"github.com/abbasKakoolvand/OKR-analyze/internal/ingestion"
)

// classifyCmd labels each OKR from the OKR sheet with the taxonomy attributes
var classifyCmd = &cobra.Command{
	Use:   "classify [okr.xlsx]",
	Short: "Classify OKRs by type, scope, automation level and dependency",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runClassify,
}

func runClassify(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		sheets := a.Sheets
		if len(args) > 0 {
			sheets.OKRPath = args[0]
		}
		krs, err := sheets.KeyResults()
		if err != nil {
			return err
		}

		classified, err := a.LLM.ClassifyOKRs(ctx, ingestion.OKRTexts(krs))
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(classified)
	})
}
