package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize <meeting-id>",
	Short: "Generate and store a summary and mindmap for a meeting",
	Long: `Summarize loads the persisted transcript, generates a summary, stores
it, then derives a Mermaid mindmap from the summary. The mindmap is best
effort; its failure leaves the summary in place.`,
	Args: cobra.ExactArgs(1),
	RunE: runSummarize,
}

func init() {
	rootCmd.AddCommand(summarizeCmd)
}

func runSummarize(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	if err := a.connectDB(ctx); err != nil {
		return err
	}

	orch, err := a.orchestrator()
	if err != nil {
		return err
	}

	result, err := orch.Summarize(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Println(result.Summary)
	for _, w := range result.Warnings {
		fmt.Printf("warning [%s/%s]: %s\n", w.Stage, w.Code, w.Error)
	}
	return nil
}
