package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Welshcorki/Genminute/pkg/db"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database maintenance",
}

var dbInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the meeting schema",
	Long: `Init creates the meetings, segments, summaries, mindmaps, and chunks
tables. Statements are idempotent; running init against an existing
schema is safe.`,
	RunE: runDBInit,
}

func init() {
	dbCmd.AddCommand(dbInitCmd)
	rootCmd.AddCommand(dbCmd)
}

func runDBInit(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	if err := a.connectDB(ctx); err != nil {
		return err
	}

	if err := db.InitSchema(ctx, a.pool); err != nil {
		return err
	}
	fmt.Println("Schema initialized.")
	return nil
}
