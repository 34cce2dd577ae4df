package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search <query>...",
	Short: "Full-text search over archived findings",
	Long: `Search archived findings by description, file path, tool name or SWC
identifier. Matching is fuzzy; requires a store created with indexing
enabled.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s := openStore()
		defer func() { _ = s.Close() }()

		limit, _ := cmd.Flags().GetInt("limit")
		hits, err := s.Search(strings.Join(args, " "), limit)
		if err != nil {
			exitError("%v", err)
		}

		if jsonOutput {
			outputJSON(hits)
			return
		}

		if len(hits) == 0 {
			fmt.Println("No matches.")
			return
		}
		for _, hit := range hits {
			fmt.Printf("%.3f  [%s] %s (%s, request %s)\n",
				hit.Score, hit.Severity, hit.FindingID, hit.ToolName, hit.RequestID)
			if hit.Snippet != "" {
				fmt.Printf("       %s\n", hit.Snippet)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().Int("limit", 20, "Maximum hits to return")
}
