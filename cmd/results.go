package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/openauditlabs/sentry/internal/export"
	"github.com/openauditlabs/sentry/internal/store"
)

// resultsCmd represents the results command
var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Manage archived audit results",
}

// resultsListCmd represents the results list command
var resultsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived results, most recent first",
	Run: func(cmd *cobra.Command, args []string) {
		s := openStore()
		defer func() { _ = s.Close() }()

		limit, _ := cmd.Flags().GetInt("limit")
		summaries, err := s.ListResults(limit)
		if err != nil {
			exitError("%v", err)
		}

		if jsonOutput {
			outputJSON(summaries)
			return
		}

		if len(summaries) == 0 {
			fmt.Println("No archived results.")
			return
		}
		for _, sum := range summaries {
			fmt.Printf("%s  %s  targets=%d findings=%d errors=%d (%.2fs)\n",
				sum.StartTime.Format(time.RFC3339), sum.RequestID,
				len(sum.Targets), sum.TotalFindings, sum.ToolErrors, sum.Duration)
		}
	},
}

// resultsShowCmd represents the results show command
var resultsShowCmd = &cobra.Command{
	Use:   "show <request-id>",
	Short: "Print one archived result",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s := openStore()
		defer func() { _ = s.Close() }()

		result, err := s.GetResult(args[0])
		if err != nil {
			exitError("%v", err)
		}

		format, _ := cmd.Flags().GetString("format")
		if jsonOutput {
			format = "json"
		}
		data, err := export.Result(result, format)
		if err != nil {
			exitError("%v", err)
		}
		fmt.Println(string(data))
	},
}

// resultsExportCmd represents the results export command
var resultsExportCmd = &cobra.Command{
	Use:   "export <request-id>",
	Short: "Export an archived result to a file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s := openStore()
		defer func() { _ = s.Close() }()

		result, err := s.GetResult(args[0])
		if err != nil {
			exitError("%v", err)
		}

		format, _ := cmd.Flags().GetString("format")
		exporter, err := export.GetExporter(format)
		if err != nil {
			exitError("%v", err)
		}
		data, err := exporter.Export(result)
		if err != nil {
			exitError("%v", err)
		}

		outPath, _ := cmd.Flags().GetString("output")
		if outPath == "" {
			outPath = args[0] + exporter.FileExtension()
		}
		if err := os.WriteFile(outPath, data, 0644); err != nil {
			exitError("failed to write %s: %v", outPath, err)
		}
		fmt.Printf("Exported %s to %s\n", args[0], outPath)
	},
}

// resultsDeleteCmd represents the results delete command
var resultsDeleteCmd = &cobra.Command{
	Use:   "delete <request-id>",
	Short: "Remove an archived result",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s := openStore()
		defer func() { _ = s.Close() }()

		if err := s.DeleteResult(args[0]); err != nil {
			exitError("%v", err)
		}
		fmt.Printf("Deleted %s\n", args[0])
	},
}

// openStore opens the configured result store
func openStore() *store.Store {
	cfg := loadConfig()
	s, err := store.Open(cfg.Store)
	if err != nil {
		exitError("failed to open result store: %v", err)
	}
	return s
}

func init() {
	rootCmd.AddCommand(resultsCmd)
	resultsCmd.AddCommand(resultsListCmd)
	resultsCmd.AddCommand(resultsShowCmd)
	resultsCmd.AddCommand(resultsExportCmd)
	resultsCmd.AddCommand(resultsDeleteCmd)

	resultsListCmd.Flags().Int("limit", 20, "Maximum results to list")
	resultsShowCmd.Flags().String("format", "markdown", "Report format (json, sarif, markdown)")
	resultsExportCmd.Flags().String("format", "sarif", "Export format (json, sarif, markdown)")
	resultsExportCmd.Flags().StringP("output", "o", "", "Output file (default <request-id>.<ext>)")
}
