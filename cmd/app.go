package cmd

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/skill-gap/internal/ai"
	"github.com/spigell/skill-gap/internal/ai/gemini"
	"github.com/spigell/skill-gap/internal/matching"
	"github.com/spigell/skill-gap/internal/notify"
	"github.com/spigell/skill-gap/internal/pipeline"
	"github.com/spigell/skill-gap/internal/secrets"
	"github.com/spigell/skill-gap/internal/stages"
	"github.com/spigell/skill-gap/internal/youtube"
)

// components are the wired collaborators shared by the commands.
type components struct {
	engine     *matching.Engine
	stages     []pipeline.Stage
	router     pipeline.Router
	controller *pipeline.Controller
}

func geminiConfig(cfg *GeminiConfig) gemini.Config {
	return gemini.Config{
		Model:             cfg.Model,
		EmbeddingModel:    cfg.EmbeddingModel,
		MaxRetries:        cfg.MaxRetries,
		MaxLogLength:      cfg.MaxLogLength,
		RequestsPerMinute: cfg.RequestsPerMinute,
		Timeout:           cfg.Timeout,
	}
}

func newGeminiClient(ctx context.Context, cfg *AIConfig) (*genai.Client, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != gemini.Provider {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: cfg.Gemini.APIKey,
		Env:   "GEMINI_API_KEY",
		File:  cfg.Gemini.APIKeyFile,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (or set ai.gemini.api-key-file / GEMINI_API_KEY_FILE)", err)
	}

	return gemini.NewClient(ctx, apiKey)
}

func newEngine(client *genai.Client, config *Config, logger *zap.Logger) (*matching.Engine, error) {
	embedder, err := gemini.NewEmbedder(client, geminiConfig(config.AI.Gemini), logger)
	if err != nil {
		return nil, err
	}

	return matching.New(embedder,
		matching.WithPolicy(config.Matching.Policy()),
		matching.WithSkillsSection(config.Matching.SkillsSection),
		matching.WithLogger(logger),
	)
}

// newComponents wires the matching engine, the stages and the router.
func newComponents(ctx context.Context, config *Config, logger *zap.Logger) (*components, error) {
	client, err := newGeminiClient(ctx, config.AI)
	if err != nil {
		return nil, err
	}

	engine, err := newEngine(client, config, logger)
	if err != nil {
		return nil, fmt.Errorf("building matching engine: %w", err)
	}

	generator, err := gemini.NewGenerator(client, geminiConfig(config.AI.Gemini), logger)
	if err != nil {
		return nil, err
	}
	maxLog := config.AI.Gemini.MaxLogLength

	writer := gemini.NewWriter(generator, maxLog, logger)
	writer.SetPromptOverrides(config.Prompts)

	advisor, source := newAdvisor(config, generator, logger)

	all := stages.All(stages.Deps{
		Extractor:     gemini.NewSkillExtractor(generator, config.AI.Gemini.MaxSkills, maxLog, logger),
		DefaultSkills: config.Matching.DefaultSkills,
		Matcher:       engine,
		Advisor:       advisor,
		AdvisorSource: source,
		Writer:        writer,
		Mailer:        newMailer(config.SMTP, logger),
		Logger:        logger,
	})

	var router pipeline.Router = pipeline.NewTaskRouter()
	if config.Pipeline.Router == "llm" {
		router = gemini.NewRouter(generator, maxLog, logger)
	}

	return &components{
		engine:     engine,
		stages:     all,
		router:     router,
		controller: pipeline.NewController(logger, pipeline.WithMaxSteps(config.Pipeline.MaxSteps)),
	}, nil
}

// newAdvisor prefers YouTube search and falls back to asking the model.
func newAdvisor(config *Config, generator *gemini.Generator, logger *zap.Logger) (ai.Advisor, string) {
	src := secrets.Source{
		Name:  "youtube api key",
		Value: config.YouTube.APIKey,
		Env:   "YOUTUBE_API_KEY",
		File:  config.YouTube.APIKeyFile,
	}
	if src.Provided() {
		key, err := secrets.Load(src)
		if err == nil {
			client := youtube.New(logger, key)
			return youtube.NewAdvisor(client, config.YouTube.PerSkill), "youtube"
		}
		logger.Warn("youtube api key is not usable, falling back to the model advisor", zap.Error(err))
	}

	return gemini.NewAdvisor(generator, config.AI.Gemini.MaxLogLength, logger), gemini.Provider
}

// newMailer returns an SMTP mailer when a host is configured and a log-only mailer otherwise.
func newMailer(cfg *SMTPConfig, logger *zap.Logger) notify.Mailer {
	if !cfg.Configured() {
		return notify.NewLogMailer(logger)
	}

	smtpCfg := cfg.SMTPConfig
	if smtpCfg.From == "" {
		smtpCfg.From = smtpCfg.Username
	}
	if smtpCfg.Username != "" {
		password, err := secrets.Load(secrets.Source{
			Name: "smtp password",
			Env:  "SMTP_PASSWORD",
			File: cfg.PasswordFile,
		})
		if err != nil {
			logger.Warn("smtp password is not configured, sending without auth", zap.Error(err))
			smtpCfg.Username = ""
		}
		smtpCfg.Password = password
	}

	mailer, err := notify.NewSMTPMailer(smtpCfg, logger)
	if err != nil {
		logger.Warn("smtp is misconfigured, delivery is logged only", zap.Error(err))
		return notify.NewLogMailer(logger)
	}
	return mailer
}
