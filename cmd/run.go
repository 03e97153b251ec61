package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/skill-gap/internal/logger"
	"github.com/spigell/skill-gap/internal/matching"
	"github.com/spigell/skill-gap/internal/mcpserver"
	"github.com/spigell/skill-gap/internal/pipeline"
	"github.com/spigell/skill-gap/internal/stages"
)

const retryHint = "the embedding service could not be reached or returned an unusable result; retry later"

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a pipeline task over a résumé and a job description",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("resume", "r", "", "plain text résumé file ('-' for stdin)")
	runCmd.Flags().String("job", "", "plain text job description file")
	runCmd.Flags().StringSliceP("skills", "s", nil, "target skills, comma separated (extracted from the job description when empty)")
	runCmd.Flags().StringP("task", "t", "", "task to run; asked interactively when empty")
	runCmd.Flags().StringP("email", "e", "", "recipient of the generated documents (mail_sender)")
	runCmd.Flags().String("router", "task", "who picks the next stage: task (rule based) or llm")
	runCmd.Flags().Bool("sequence", false, "run the task plan as a fixed sequence instead of consulting the router")

	runCmd.MarkFlagRequired("resume")
	runCmd.MarkFlagRequired("job")

	viper.BindPFlag("pipeline.router", runCmd.Flags().Lookup("router"))
}

func run(cmd *cobra.Command) {
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

	logger.Info("starting the skill-gap pipeline", zap.String("version", version))

	resume, err := readText(cmd.Flag("resume").Value.String())
	if err != nil {
		logger.Fatal("reading resume", zap.Error(err))
	}
	job, err := readText(cmd.Flag("job").Value.String())
	if err != nil {
		logger.Fatal("reading job description", zap.Error(err))
	}

	tasks := pipeline.NewTaskRouter()
	task := pipeline.NormalizeTask(cmd.Flag("task").Value.String())
	if task == "" {
		task, err = chooseTask(tasks.Tasks())
		if err != nil {
			logger.Fatal("choosing a task", zap.Error(err))
		}
	}
	plan, ok := tasks.Plan(task)
	if !ok {
		logger.Fatal("unknown task", zap.String("task", task), zap.Strings("known", tasks.Tasks()))
	}

	comps, err := newComponents(ctx, config, logger)
	if err != nil {
		logger.Fatal("building the pipeline", zap.Error(err))
	}

	for _, status := range pipeline.Describe(comps.stages) {
		logger.Debug("stage status",
			zap.String("name", status.Name),
			zap.Bool("enabled", status.Enabled),
			zap.String("reason", status.Reason),
			zap.Any("details", status.Details),
		)
	}

	skills, _ := cmd.Flags().GetStringSlice("skills")
	initial := pipeline.NewState(resume, job, skills)
	initial[pipeline.KeyTask] = task
	if email := strings.TrimSpace(cmd.Flag("email").Value.String()); email != "" {
		initial[pipeline.KeyUserEmail] = email
	}

	var report *pipeline.Report
	if sequence, _ := cmd.Flags().GetBool("sequence"); sequence {
		report, err = comps.controller.RunSequence(ctx, stages.Select(comps.stages, plan), initial)
	} else {
		report, err = comps.controller.RunRouted(ctx, comps.router, comps.stages, initial)
	}
	if err != nil {
		fields := []zap.Field{zap.Error(err), zap.String("task", task)}
		if report != nil {
			fields = append(fields, zap.String("run_id", report.RunID))
		}
		if errors.Is(err, matching.ErrMatchingUnavailable) {
			fields = append(fields, zap.String("hint", retryHint))
		}
		logger.Fatal("pipeline failed", fields...)
	}

	if err := printJSON(os.Stdout, mcpserver.ReportOutput(report)); err != nil {
		logger.Fatal("printing the report", zap.Error(err))
	}
}

func chooseTask(tasks []string) (string, error) {
	prompt := promptui.Select{
		Label: "Choose a task",
		Items: tasks,
	}
	_, task, err := prompt.Run()
	if err != nil {
		return "", err
	}
	return task, nil
}

// readText reads a plain text file, or stdin for "-".
func readText(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", errors.New("path is required")
	}

	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
