package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Welshcorki/Genminute/pkg/media"
	"github.com/Welshcorki/Genminute/pkg/pipeline"
	"github.com/Welshcorki/Genminute/pkg/transcript"
)

var (
	ingestTitle       string
	ingestDate        string
	ingestUser        string
	ingestSkipActions bool
	ingestJSON        bool
	ingestLive        bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <media-file> [media-file...]",
	Short: "Process recordings into transcripts and scheduled actions",
	Long: `Ingest processes one or more meeting recordings end to end:
normalize the media, transcribe it, persist and index the transcript,
and schedule the agreed follow-ups on the owner's calendar.

With multiple files the recordings are processed in order; a failing
recording does not stop the rest.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestTitle, "title", "", "meeting title (defaults to the file name)")
	ingestCmd.Flags().StringVar(&ingestDate, "date", "", "meeting date, YYYY-MM-DD (defaults to today)")
	ingestCmd.Flags().StringVar(&ingestUser, "user", "", "owner user id; actions are scheduled as this user")
	ingestCmd.Flags().BoolVar(&ingestSkipActions, "skip-actions", false, "skip the action-extraction workflow")
	ingestCmd.Flags().BoolVar(&ingestJSON, "output-json", false, "print results as JSON")
	ingestCmd.Flags().BoolVar(&ingestLive, "live-recording", false, "inputs are live WebM recordings; stage and re-encode them first")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestUser == "" && !ingestSkipActions {
		return fmt.Errorf("--user is required unless --skip-actions is set")
	}

	date := time.Now()
	if ingestDate != "" {
		parsed, err := time.ParseInLocation("2006-01-02", ingestDate, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --date %q (expected YYYY-MM-DD): %w", ingestDate, err)
		}
		date = parsed
	}

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

	paths := args
	if ingestLive {
		normalizer := media.NewNormalizer(a.cfg.Media.FFmpegPath, a.cfg.Media.StageTimeout, a.logger)
		staged := make([]string, 0, len(args))
		for _, path := range args {
			stagedPath, err := stageRecording(path, a.cfg.Media.WorkDir)
			if err != nil {
				return err
			}
			recompressed, err := normalizer.Recompress(ctx, stagedPath)
			if err != nil {
				return err
			}
			staged = append(staged, recompressed)
		}
		paths = staged
	}

	reqs := make([]pipeline.IngestRequest, 0, len(paths))
	for _, path := range paths {
		title := ingestTitle
		if title == "" {
			title = path
		}
		reqs = append(reqs, pipeline.IngestRequest{
			MediaPath: path,
			Meta: transcript.Meta{
				Title:   title,
				Date:    date,
				OwnerID: ingestUser,
			},
			SkipActions: ingestSkipActions,
		})
	}

	results, errs := orch.IngestBatch(ctx, reqs)

	if ingestJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			printIngestResult(r)
		}
	}

	for _, e := range errs {
		fmt.Fprintf(os.Stderr, "Failed: %v\n", e)
	}
	if len(errs) == len(paths) {
		return fmt.Errorf("all %d recordings failed", len(paths))
	}
	return nil
}

// stageRecording copies a live recording into the work directory under a
// unique name so concurrent uploads of same-named files cannot collide.
func stageRecording(path, workDir string) (string, error) {
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return "", fmt.Errorf("creating work directory: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading recording: %w", err)
	}

	name := uuid.New().String()[:8] + "_" + filepath.Base(path)
	staged := filepath.Join(workDir, name)
	if err := os.WriteFile(staged, data, 0o644); err != nil {
		return "", fmt.Errorf("staging recording: %w", err)
	}
	return staged, nil
}

func printIngestResult(r *pipeline.IngestResult) {
	fmt.Printf("Meeting %s: %d segments persisted\n", r.MeetingID, r.Segments)
	if r.Workflow != nil {
		for _, item := range r.Workflow.Items {
			if item.Status == "ok" {
				fmt.Printf("  scheduled: %s\n", item.Tool)
			} else {
				fmt.Printf("  action failed (%s): %s\n", item.ErrorCode, item.Detail)
			}
		}
		if r.Workflow.Response != "" {
			fmt.Printf("  %s\n", r.Workflow.Response)
		}
	}
	for _, w := range r.Warnings {
		fmt.Printf("  warning [%s/%s]: %s\n", w.Stage, w.Code, w.Error)
	}
}
