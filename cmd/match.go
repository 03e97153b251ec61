package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/skill-gap/internal/logger"
	"github.com/spigell/skill-gap/internal/matching"
	"github.com/spigell/skill-gap/internal/stages"
)

var matchCmd = &cobra.Command{
	Use:   "match [resume files...]",
	Short: "Score one or more résumés against a job description",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		match(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().String("job", "", "plain text job description file")
	matchCmd.Flags().StringSliceP("skills", "s", nil, "target skills, comma separated")
	matchCmd.Flags().Int("concurrency", 0, "parallel matches (default from matching.concurrency)")

	matchCmd.MarkFlagRequired("job")

	viper.BindPFlag("matching.concurrency", matchCmd.Flags().Lookup("concurrency"))
}

type matchOutput struct {
	File string `json:"file"`
	*matching.Result
}

func match(cmd *cobra.Command, files []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger, err := logger.NewStderr(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	job, err := readText(cmd.Flag("job").Value.String())
	if err != nil {
		logger.Fatal("reading job description", zap.Error(err))
	}
	skills, _ := cmd.Flags().GetStringSlice("skills")

	client, err := newGeminiClient(ctx, config.AI)
	if err != nil {
		logger.Fatal("creating the gemini client", zap.Error(err))
	}
	engine, err := newEngine(client, config, logger)
	if err != nil {
		logger.Fatal("building matching engine", zap.Error(err))
	}

	results, err := matchFiles(ctx, engine, files, job, skills, config.Matching.Concurrency)
	if err != nil {
		fields := []zap.Field{zap.Error(err)}
		if errors.Is(err, matching.ErrMatchingUnavailable) {
			fields = append(fields, zap.String("hint", retryHint))
		}
		logger.Fatal("matching failed", fields...)
	}

	if err := printJSON(os.Stdout, results); err != nil {
		logger.Fatal("printing results", zap.Error(err))
	}
}

// matchFiles matches every résumé file against the job description in
// parallel. Results keep the order of files.
func matchFiles(ctx context.Context, m stages.Matcher, files []string, job string, skills []string, concurrency int) ([]matchOutput, error) {
	results := make([]matchOutput, len(files))

	g, gctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}

	for i, file := range files {
		g.Go(func() error {
			resume, err := readText(file)
			if err != nil {
				return err
			}

			res, err := m.Match(gctx, matching.Request{
				ResumeText:         resume,
				JobDescriptionText: job,
				TargetSkills:       skills,
			})
			if err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}

			results[i] = matchOutput{File: file, Result: res}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
