// Package cmd implements the genminute CLI commands.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/Welshcorki/Genminute/config"
	"github.com/Welshcorki/Genminute/credentials"
	"github.com/Welshcorki/Genminute/pkg/calendar"
	"github.com/Welshcorki/Genminute/pkg/db"
	"github.com/Welshcorki/Genminute/pkg/index"
	"github.com/Welshcorki/Genminute/pkg/logging"
	"github.com/Welshcorki/Genminute/pkg/media"
	"github.com/Welshcorki/Genminute/pkg/model"
	"github.com/Welshcorki/Genminute/pkg/pipeline"
	"github.com/Welshcorki/Genminute/pkg/transcribe"
	"github.com/Welshcorki/Genminute/pkg/transcript"
	"github.com/Welshcorki/Genminute/pkg/workflow"
)

// Global flags.
var (
	cfgFile  string
	logLevel string
	logJSON  bool
)

var rootCmd = &cobra.Command{
	Use:   "genminute",
	Short: "Meeting recordings to transcripts, summaries, and scheduled actions",
	Long: `genminute processes meeting recordings end to end: it normalizes the
media, transcribes it, persists and indexes the transcript, and extracts
agreed follow-ups onto the owner's calendar.

COMMON WORKFLOWS:
  Ingest a recording:   genminute ingest recording.mp4 --title "Weekly sync" --user alice
  Summarize a meeting:  genminute summarize <meeting-id>
  Re-run actions:       genminute actions run <meeting-id> --user alice
  Store authorization:  genminute auth set --user alice
  Check services:       genminute doctor`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.genminute/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "log in JSON format")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app holds the wired dependencies for one command invocation. Every
// command builds exactly the slice of the app it needs.
type app struct {
	cfg    *config.Config
	logger logging.Logger

	pool     *pgxpool.Pool
	provider model.Provider
}

// newApp loads config and builds the logger. Nothing external is dialed
// yet.
func newApp() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logJSON {
		cfg.LogJSON = true
	}

	logger := logging.NewLogger(&logging.Config{
		Level:      logging.Level(cfg.LogLevel),
		Component:  "genminute",
		JSONFormat: cfg.LogJSON,
	})
	return &app{cfg: cfg, logger: logger}, nil
}

// connectDB opens the PostgreSQL pool.
func (a *app) connectDB(ctx context.Context) error {
	dbCfg := db.FromAppConfig(a.cfg.Database)
	pool, err := db.Connect(ctx, dbCfg)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	a.pool = pool
	return nil
}

// close releases everything the app opened.
func (a *app) close() {
	if a.pool != nil {
		a.pool.Close()
	}
	if a.provider != nil {
		_ = a.provider.Close()
	}
}

func (a *app) modelProvider() model.Provider {
	if a.provider == nil {
		a.provider = model.NewOpenAIProvider(model.Config{
			BaseURL:        a.cfg.Model.Addr,
			APIKey:         a.cfg.Model.APIKey,
			Model:          a.cfg.Model.Model,
			EmbeddingModel: a.cfg.Model.EmbeddingModel,
			Timeout:        a.cfg.Model.Timeout,
		}, a.logger)
	}
	return a.provider
}

func (a *app) checkpointStore() workflow.CheckpointStore {
	if a.cfg.Redis.Addr == "" {
		return workflow.NewMemoryStore()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	return workflow.NewRedisStore(client, a.logger)
}

func (a *app) calendarClient() (calendar.Client, error) {
	if a.cfg.Calendar.Simulate {
		return calendar.NewSimulatedClient(a.logger), nil
	}
	return calendar.NewGoogleClient(a.cfg.Calendar.Addr, a.cfg.Calendar.Timeout, a.logger), nil
}

// workflowEngine wires the action-extraction workflow.
func (a *app) workflowEngine() (*workflow.Engine, error) {
	credStore, err := credentials.NewStore()
	if err != nil {
		return nil, fmt.Errorf("opening credential store: %w", err)
	}
	client, err := a.calendarClient()
	if err != nil {
		return nil, err
	}
	adapter := calendar.NewAdapter(client, credStore, a.logger)
	registry := workflow.NewRegistry(workflow.NewCalendarTool(adapter))
	return workflow.NewEngine(a.modelProvider(), registry, a.checkpointStore(), a.logger), nil
}

// orchestrator wires the full ingestion pipeline. Requires connectDB
// first.
func (a *app) orchestrator() (*pipeline.Orchestrator, error) {
	engine, err := a.workflowEngine()
	if err != nil {
		return nil, err
	}

	provider := a.modelProvider()
	return pipeline.NewOrchestrator(
		media.NewNormalizer(a.cfg.Media.FFmpegPath, a.cfg.Media.StageTimeout, a.logger),
		transcribe.NewHTTPTranscriber(transcribe.Config{
			Addr:     a.cfg.Transcriber.Addr,
			Language: a.cfg.Transcriber.Language,
			Timeout:  a.cfg.Transcriber.Timeout,
		}, a.logger),
		transcript.NewRepository(a.pool, a.logger),
		index.NewChunkIndexer(a.pool, provider, a.logger),
		provider,
		engine,
		pipeline.NewMetrics(nil),
		a.logger,
	), nil
}
