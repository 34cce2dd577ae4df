package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openauditlabs/sentry/internal/adapter"
)

// adaptersCmd represents the adapters command
var adaptersCmd = &cobra.Command{
	Use:   "adapters",
	Short: "List registered analysis tool adapters",
	Long: `List the tool adapters the engine would run with the current
configuration, grouped by phase, with their kind and accuracy weight.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		registry := adapter.NewRegistry(cfg)

		if jsonOutput {
			outputJSON(map[string]interface{}{
				"static":  describeSet(registry.Static()),
				"dynamic": describeSet(registry.Dynamic()),
			})
			return
		}

		fmt.Println("Static phase:")
		printSet(registry.Static())
		fmt.Println("\nDynamic phase:")
		printSet(registry.Dynamic())
	},
}

func describeSet(regs []adapter.Registration) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(regs))
	for _, reg := range regs {
		out = append(out, map[string]interface{}{
			"name":     reg.Adapter.Name(),
			"version":  reg.Adapter.Version(),
			"kind":     string(reg.Kind),
			"accuracy": reg.Accuracy,
		})
	}
	return out
}

func printSet(regs []adapter.Registration) {
	if len(regs) == 0 {
		fmt.Println("  (none enabled)")
		return
	}
	for _, reg := range regs {
		fmt.Printf("  %-18s %-10s v%-8s accuracy %.2f\n",
			reg.Adapter.Name(), reg.Kind, reg.Adapter.Version(), reg.Accuracy)
	}
}

func init() {
	rootCmd.AddCommand(adaptersCmd)
}
