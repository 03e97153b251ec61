package cmd

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/skill-gap/internal/ai/gemini"
	"github.com/spigell/skill-gap/internal/matching"
	"github.com/spigell/skill-gap/internal/notify"
)

const (
	app = "skill-gap"
)

type Config struct {
	Matching *MatchingConfig        `mapstructure:"matching"`
	Pipeline *PipelineConfig        `mapstructure:"pipeline"`
	AI       *AIConfig              `mapstructure:"ai"`
	YouTube  *YouTubeConfig         `mapstructure:"youtube"`
	SMTP     *SMTPConfig            `mapstructure:"smtp"`
	Prompts  gemini.PromptOverrides `mapstructure:"prompts"`
}

type MatchingConfig struct {
	SimilarityThreshold float64  `mapstructure:"similarity-threshold"`
	HighAlignment       float64  `mapstructure:"high-alignment"`
	ModerateAlignment   float64  `mapstructure:"moderate-alignment"`
	MinTokens           int      `mapstructure:"min-tokens"`
	SkillsSection       bool     `mapstructure:"skills-section"`
	DefaultSkills       []string `mapstructure:"default-skills" validate:"dive,required"`
	// Concurrency bounds parallel matches in the match command.
	Concurrency int `mapstructure:"concurrency" validate:"gte=1,lte=32"`
}

func (m *MatchingConfig) Policy() matching.Policy {
	return matching.Policy{
		SimilarityThreshold: m.SimilarityThreshold,
		HighAlignment:       m.HighAlignment,
		ModerateAlignment:   m.ModerateAlignment,
		MinTokens:           m.MinTokens,
	}
}

type PipelineConfig struct {
	MaxSteps int `mapstructure:"max-steps" validate:"gte=1"`
	// Router is "task" for the rule-based router or "llm" to let the model decide.
	Router string `mapstructure:"router" validate:"oneof=task llm"`
}

type AIConfig struct {
	Provider string        `mapstructure:"provider" validate:"omitempty,oneof=gemini"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey            string        `mapstructure:"api-key"`
	APIKeyFile        string        `mapstructure:"api-key-file"`
	Model             string        `mapstructure:"model"`
	EmbeddingModel    string        `mapstructure:"embedding-model"`
	MaxRetries        int           `mapstructure:"max-retries" validate:"gte=0"`
	MaxLogLength      int           `mapstructure:"max-log-length" validate:"gte=0"`
	RequestsPerMinute int           `mapstructure:"requests-per-minute" validate:"gte=0"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxSkills         int           `mapstructure:"max-skills" validate:"gte=0"`
}

type YouTubeConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	PerSkill   int    `mapstructure:"per-skill" validate:"gte=1,lte=5"`
}

type SMTPConfig struct {
	notify.SMTPConfig `mapstructure:",squash"`
	PasswordFile      string `mapstructure:"password-file"`
}

// defaultSkills are checked when the job description yields no skills.
var defaultSkills = []string{
	"Python", "TensorFlow", "PyTorch", "Scikit-learn", "Deep Learning",
	"Machine Learning", "NLP", "CNN", "Data Analysis", "NumPy", "pandas",
	"Matplotlib", "Transformer", "LLM", "AutoEncoder", "PCA", "GAN", "OpenCV",
	"FastAPI", "Docker", "SQL", "Git",
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "skill-gap scores résumés against job descriptions and runs the follow-up pipeline",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	envs := map[string]string{
		"ai.gemini.api-key-file": "GEMINI_API_KEY_FILE",
		"youtube.api-key-file":   "YOUTUBE_API_KEY_FILE",
		"smtp.host":              "SMTP_HOST",
		"smtp.username":          "SMTP_USERNAME",
		"smtp.password-file":     "SMTP_PASSWORD_FILE",
	}
	for key, env := range envs {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	setDefaults()
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is skill-gap.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func setDefaults() {
	policy := matching.DefaultPolicy()
	viper.SetDefault("matching.similarity-threshold", policy.SimilarityThreshold)
	viper.SetDefault("matching.high-alignment", policy.HighAlignment)
	viper.SetDefault("matching.moderate-alignment", policy.ModerateAlignment)
	viper.SetDefault("matching.min-tokens", policy.MinTokens)
	viper.SetDefault("matching.skills-section", true)
	viper.SetDefault("matching.default-skills", defaultSkills)
	viper.SetDefault("matching.concurrency", 4)

	viper.SetDefault("pipeline.max-steps", 16)
	viper.SetDefault("pipeline.router", "task")

	viper.SetDefault("ai.provider", gemini.Provider)
	viper.SetDefault("youtube.per-skill", 2)
	viper.SetDefault("smtp.port", 587)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
	}

	// A missing default config file is fine: defaults and env cover a run.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}
	if config == nil {
		config = &Config{}
	}
	if config.Matching == nil || config.Pipeline == nil {
		return nil, errors.New("matching and pipeline sections are required")
	}
	if config.AI == nil {
		config.AI = &AIConfig{}
	}
	if config.AI.Gemini == nil {
		config.AI.Gemini = &GeminiConfig{}
	}
	if config.YouTube == nil {
		config.YouTube = &YouTubeConfig{PerSkill: 2}
	}
	if config.SMTP == nil {
		config.SMTP = &SMTPConfig{}
	}

	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}
