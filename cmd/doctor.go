package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/Welshcorki/Genminute/pkg/db"
	"github.com/Welshcorki/Genminute/pkg/media"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the services genminute depends on",
	Long: `Doctor checks ffmpeg, PostgreSQL, Redis (if configured), the
speech-to-text service, and the model service, and reports each one.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()

	failures := 0
	check := func(name string, err error) {
		if err != nil {
			failures++
			fmt.Printf("FAIL  %-14s %v\n", name, err)
			return
		}
		fmt.Printf("ok    %s\n", name)
	}

	normalizer := media.NewNormalizer(a.cfg.Media.FFmpegPath, a.cfg.Media.StageTimeout, a.logger)
	check("ffmpeg", normalizer.CheckFFmpeg())

	check("postgres", func() error {
		pool, err := db.Connect(ctx, db.FromAppConfig(a.cfg.Database))
		if err != nil {
			return err
		}
		pool.Close()
		return nil
	}())

	if a.cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		check("redis", client.Ping(ctx).Err())
		_ = client.Close()
	} else {
		fmt.Println("skip  redis (not configured; using in-memory checkpoints)")
	}

	provider := a.modelProvider()
	if provider.IsAvailable(ctx) {
		fmt.Printf("ok    model (%s)\n", provider.Name())
	} else {
		failures++
		fmt.Printf("FAIL  model          %s unreachable\n", a.cfg.Model.Addr)
	}

	if failures > 0 {
		return fmt.Errorf("%d check(s) failed", failures)
	}
	return nil
}
