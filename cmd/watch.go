package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/openauditlabs/sentry/internal/schema"
	"github.com/openauditlabs/sentry/internal/store"
	"github.com/openauditlabs/sentry/internal/watch"
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch [directory]",
	Short: "Re-audit contracts as they change",
	Long: `Watch a directory tree and re-run the audit pipeline whenever a
contract file is created or modified. Change bursts are debounced into one
run, and unchanged files are skipped. Results are archived with --save.
Runs until interrupted.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		root := "."
		if len(args) == 1 {
			root = args[0]
		}

		cfg := loadConfig()
		e := newEngine(cfg)

		var archive *store.Store
		if save, _ := cmd.Flags().GetBool("save"); save {
			var err error
			archive, err = store.Open(cfg.Store)
			if err != nil {
				exitError("failed to open result store: %v", err)
			}
			defer func() { _ = archive.Close() }()
		}

		onResult := func(path string, result *schema.AnalysisResult) {
			fmt.Printf("%s: %d findings, %d tool errors\n",
				path, result.TotalFindings, len(result.ToolErrors))
			if archive != nil {
				if err := archive.SaveResult(result); err != nil {
					fmt.Fprintf(os.Stderr, "Warning: failed to archive result: %v\n", err)
				}
			}
		}

		w, err := watch.New(root, e, onResult, newLogger(cfg))
		if err != nil {
			exitError("%v", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		if err := w.Start(ctx); err != nil {
			exitError("%v", err)
		}
		defer w.Stop()

		fmt.Printf("Watching %s (ctrl-c to stop)\n", root)
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().Bool("save", false, "Archive each result in the result store")
}
