package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Welshcorki/Genminute/pkg/transcript"
	"github.com/Welshcorki/Genminute/pkg/workflow"
)

var (
	actionsUser string
	actionsDate string
)

var actionsCmd = &cobra.Command{
	Use:   "actions",
	Short: "Manage the action-extraction workflow",
}

var actionsRunCmd = &cobra.Command{
	Use:   "run <meeting-id>",
	Short: "Run or resume action extraction for a persisted meeting",
	Long: `Run extracts agreed follow-ups from a persisted transcript and
schedules them as the given user. The run is checkpointed under the
meeting id: re-running after a crash resumes where it stopped and never
schedules an already-settled item twice.`,
	Args: cobra.ExactArgs(1),
	RunE: runActions,
}

func init() {
	actionsRunCmd.Flags().StringVar(&actionsUser, "user", "", "user id to schedule events as (required)")
	actionsRunCmd.Flags().StringVar(&actionsDate, "date", "", "anchor date for relative dates, YYYY-MM-DD (defaults to the meeting date)")
	_ = actionsRunCmd.MarkFlagRequired("user")
	actionsCmd.AddCommand(actionsRunCmd)
	rootCmd.AddCommand(actionsCmd)
}

func runActions(cmd *cobra.Command, args []string) error {
	meetingID := args[0]

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	if err := a.connectDB(ctx); err != nil {
		return err
	}

	repo := transcript.NewRepository(a.pool, a.logger)
	segments, err := repo.GetSegmentsByMeetingID(ctx, meetingID)
	if err != nil {
		return err
	}

	currentDate := time.Now()
	if actionsDate != "" {
		parsed, err := time.ParseInLocation("2006-01-02", actionsDate, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --date %q (expected YYYY-MM-DD): %w", actionsDate, err)
		}
		currentDate = parsed
	} else if meeting, err := repo.GetMeeting(ctx, meetingID); err == nil {
		currentDate = meeting.Date
	}

	engine, err := a.workflowEngine()
	if err != nil {
		return err
	}

	result, err := engine.Process(ctx, workflow.Input{
		RunID:       meetingID,
		UserID:      actionsUser,
		Transcript:  transcript.FullText(segments),
		CurrentDate: currentDate,
	})
	if err != nil {
		return err
	}

	if result.Resumed {
		fmt.Println("Resumed from checkpoint.")
	}
	if len(result.Items) == 0 {
		if result.Response != "" {
			fmt.Println(result.Response)
		} else {
			fmt.Println("No follow-ups found.")
		}
		return nil
	}

	for _, item := range result.Items {
		if item.Status == workflow.StatusOK {
			fmt.Printf("ok    %s  %s\n", item.Tool, item.Detail)
		} else {
			fmt.Printf("error %s  [%s] %s\n", item.Tool, item.ErrorCode, item.Detail)
		}
	}
	return nil
}
