// Package mcpserver exposes matching and pipeline runs as MCP tools.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/spigell/skill-gap/internal/logger"
	"github.com/spigell/skill-gap/internal/matching"
	"github.com/spigell/skill-gap/internal/pipeline"
	"github.com/spigell/skill-gap/internal/stages"
)

const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Deps are the collaborators behind the tools.
type Deps struct {
	Matcher    stages.Matcher
	Stages     []pipeline.Stage
	Router     pipeline.Router
	Controller *pipeline.Controller
	Logger     *zap.Logger
}

type MatchInput struct {
	ResumeText         string   `json:"resume_text" jsonschema:"Plain text of the résumé"`
	JobDescriptionText string   `json:"job_description_text" jsonschema:"Plain text of the job description"`
	TargetSkills       []string `json:"target_skills,omitempty" jsonschema:"Skills the job requires, reported back as missing or present"`
}

type RunPipelineInput struct {
	Task               string   `json:"task" jsonschema:"One of resume_score, learning_plan, cover_letter, qa_generator, mail_sender"`
	ResumeText         string   `json:"resume_text" jsonschema:"Plain text of the résumé"`
	JobDescriptionText string   `json:"job_description_text" jsonschema:"Plain text of the job description"`
	TargetSkills       []string `json:"target_skills,omitempty" jsonschema:"Skills to check; extracted from the job description when empty"`
	UserEmail          string   `json:"user_email,omitempty" jsonschema:"Recipient of the generated documents (mail_sender only)"`
}

type StepOutput struct {
	Stage      string   `json:"stage"`
	Written    []string `json:"written"`
	DurationMS int64    `json:"duration_ms"`
}

type RunPipelineOutput struct {
	RunID string         `json:"run_id"`
	Halt  string         `json:"halt"`
	Steps []StepOutput   `json:"steps"`
	State map[string]any `json:"state"`
}

// NewServer builds an MCP server with the match_resume and run_pipeline tools.
func NewServer(version string, d Deps) *mcp.Server {
	log := logger.WithFields(d.Logger, zap.String("component", "mcp"))
	if d.Controller == nil {
		d.Controller = pipeline.NewController(d.Logger)
	}
	if d.Router == nil {
		d.Router = pipeline.NewTaskRouter()
	}

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "skill-gap",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "match_resume",
		Description: "Score a résumé against a job description (0-100) and list the target skills the résumé does not evidence.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input MatchInput) (*mcp.CallToolResult, *matching.Result, error) {
		if d.Matcher == nil {
			return nil, nil, errors.New("matching is not configured")
		}
		result, err := d.Matcher.Match(ctx, matching.Request{
			ResumeText:         input.ResumeText,
			JobDescriptionText: input.JobDescriptionText,
			TargetSkills:       input.TargetSkills,
		})
		if err != nil {
			log.Warn("match_resume failed", zap.Error(err))
			return nil, nil, err
		}
		return nil, result, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "run_pipeline",
		Description: "Run a task over a résumé and job description: resume_score, learning_plan, cover_letter, qa_generator or mail_sender.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input RunPipelineInput) (*mcp.CallToolResult, RunPipelineOutput, error) {
		task := pipeline.NormalizeTask(input.Task)
		if task == "" {
			return nil, RunPipelineOutput{}, errors.New("task is required")
		}

		initial := pipeline.NewState(input.ResumeText, input.JobDescriptionText, input.TargetSkills)
		initial[pipeline.KeyTask] = task
		if email := strings.TrimSpace(input.UserEmail); email != "" {
			initial[pipeline.KeyUserEmail] = email
		}

		report, err := d.Controller.RunRouted(ctx, d.Router, d.Stages, initial)
		if err != nil {
			log.Warn("run_pipeline failed", zap.String("task", task), zap.Error(err))
			return nil, RunPipelineOutput{}, err
		}
		return nil, ReportOutput(report), nil
	})

	return server
}

// ReportOutput converts a pipeline report to its JSON shape.
func ReportOutput(report *pipeline.Report) RunPipelineOutput {
	out := RunPipelineOutput{
		RunID: report.RunID,
		Halt:  string(report.Halt),
		Steps: make([]StepOutput, 0, len(report.Steps)),
		State: map[string]any(report.State),
	}
	for _, step := range report.Steps {
		out.Steps = append(out.Steps, StepOutput{
			Stage:      step.Stage,
			Written:    step.Written,
			DurationMS: step.Duration.Milliseconds(),
		})
	}
	return out
}

// Run serves the tools over stdio or streamable HTTP until ctx is done.
func Run(ctx context.Context, server *mcp.Server, transport, addr string, log *zap.Logger) error {
	log = logger.WithFields(log)

	switch transport {
	case "", TransportStdio:
		log.Info("serving mcp", zap.String("transport", TransportStdio))
		return server.Run(ctx, &mcp.StdioTransport{})
	case TransportHTTP:
	default:
		return fmt.Errorf("unsupported transport %q", transport)
	}

	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return server }, nil)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("serving mcp", zap.String("transport", TransportHTTP), zap.String("addr", addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown mcp http server: %w", err)
		}
		return nil
	}
}
