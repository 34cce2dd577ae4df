package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openauditlabs/sentry/internal/config"
	"github.com/openauditlabs/sentry/internal/engine"
	"github.com/openauditlabs/sentry/internal/export"
	"github.com/openauditlabs/sentry/internal/schema"
	"github.com/openauditlabs/sentry/internal/store"
	"github.com/openauditlabs/sentry/internal/target"
)

// auditCmd represents the audit command
var auditCmd = &cobra.Command{
	Use:   "audit <target>...",
	Short: "Run a full audit over one or more contracts",
	Long: `Run the configured analysis pipeline over the given contracts or
directories.

Directories are searched recursively for .sol files. Static and dynamic
phases run concurrently; either can be skipped with --static=false or
--dynamic=false. Results are printed as a report and, with --save, archived
in the result store for later listing and search.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()

		targets, err := collectTargets(args)
		if err != nil {
			exitError("%v", err)
		}

		req := schema.NewRequest(targets)
		req.IncludeStatic, _ = cmd.Flags().GetBool("static")
		req.IncludeDynamic, _ = cmd.Flags().GetBool("dynamic")
		req.IncludeScoring, _ = cmd.Flags().GetBool("scoring")
		req.EnableAgents, _ = cmd.Flags().GetBool("agents")
		req.CrossChain, _ = cmd.Flags().GetBool("cross-chain")
		if maxTime, _ := cmd.Flags().GetInt("max-time"); maxTime > 0 {
			req.MaxAnalysisTime = maxTime
		}
		if req.CrossChain {
			cfg.Dynamic.CrossChain = true
		}

		e := newEngine(cfg)
		result, err := e.Analyze(context.Background(), req)
		if err != nil {
			var verr *engine.ValidationError
			if errors.As(err, &verr) {
				exitError("%v", verr)
			}
			exitError("analysis failed: %v", err)
		}

		if save, _ := cmd.Flags().GetBool("save"); save {
			if err := saveResult(cfg, result); err != nil {
				exitError("%v", err)
			}
		}

		format, _ := cmd.Flags().GetString("format")
		if jsonOutput {
			format = "json"
		}
		data, err := export.Result(result, format)
		if err != nil {
			exitError("%v", err)
		}

		if outPath, _ := cmd.Flags().GetString("output"); outPath != "" {
			if err := os.WriteFile(outPath, data, 0644); err != nil {
				exitError("failed to write report: %v", err)
			}
			fmt.Printf("Report written to %s\n", outPath)
		} else {
			fmt.Println(string(data))
		}

		if fail, _ := cmd.Flags().GetBool("fail-on-findings"); fail && result.TotalFindings > 0 {
			os.Exit(2)
		}
	},
}

// collectTargets expands directories into contract batches
func collectTargets(args []string) ([]string, error) {
	var targets []string
	for _, arg := range args {
		found, err := target.Collect(arg)
		if err != nil {
			return nil, err
		}
		targets = append(targets, found...)
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("no supported contracts under %v", args)
	}
	return targets, nil
}

// saveResult archives one result in the configured store
func saveResult(cfg *config.Config, result *schema.AnalysisResult) error {
	s, err := store.Open(cfg.Store)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	if err := s.SaveResult(result); err != nil {
		return err
	}
	fmt.Printf("Result %s archived\n", result.RequestID)
	return nil
}

func init() {
	rootCmd.AddCommand(auditCmd)

	auditCmd.Flags().Bool("static", true, "Run the static analysis phase")
	auditCmd.Flags().Bool("dynamic", true, "Run the dynamic analysis phase")
	auditCmd.Flags().Bool("scoring", true, "Score findings by severity and confidence")
	auditCmd.Flags().Bool("agents", false, "Run the agent consensus post phase")
	auditCmd.Flags().Bool("cross-chain", false, "Annotate findings with cross-chain impact")
	auditCmd.Flags().Int("max-time", 0, "Overall analysis budget in seconds (0 = config default)")
	auditCmd.Flags().String("format", "markdown", "Report format (json, sarif, markdown)")
	auditCmd.Flags().StringP("output", "o", "", "Write the report to a file instead of stdout")
	auditCmd.Flags().Bool("save", false, "Archive the result in the result store")
	auditCmd.Flags().Bool("fail-on-findings", false, "Exit non-zero when findings were produced")
}
