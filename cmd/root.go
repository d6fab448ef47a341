package cmd

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/interview-coach/internal/ai"
)

const (
	app = "interview-coach"
)

type Config struct {
	AI        *AIConfig        `mapstructure:"ai"`
	Interview *InterviewConfig `mapstructure:"interview"`
	Prompts   *PromptsConfig   `mapstructure:"prompts"`
	// Prices overrides or extends the built-in per-million token prices.
	Prices map[string]any `mapstructure:"prices"`
}

type AIConfig struct {
	ai.GenerationParams `mapstructure:",squash"`

	Provider     string        `mapstructure:"provider"`
	MaxAttempts  int           `mapstructure:"max-attempts"`
	CallTimeout  time.Duration `mapstructure:"call-timeout"`
	MaxLogLength int           `mapstructure:"max-log-length"`
	OpenAI       *OpenAIConfig `mapstructure:"openai"`
	Gemini       *GeminiConfig `mapstructure:"gemini"`
}

type OpenAIConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	BaseURL    string `mapstructure:"base-url"`
}

type GeminiConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
}

type InterviewConfig struct {
	EvaluationStyle       string   `mapstructure:"evaluation-style"`
	QuestionTechnique     string   `mapstructure:"question-technique"`
	SummaryTechnique      string   `mapstructure:"summary-technique"`
	ResetUsageOnRestart   bool     `mapstructure:"reset-usage-on-restart"`
	OfflineClarifications []string `mapstructure:"offline-clarifications"`
	TranscriptFormat      string   `mapstructure:"transcript-format"`
}

type PromptsConfig struct {
	// Dir replaces the built-in templates with {category}/{name}.tmpl files.
	Dir string `mapstructure:"dir"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "interview-coach is a cli for practicing job interviews with a language model",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	for key, env := range map[string]string{
		"ai.openai.api-key-file": "OPENAI_API_KEY_FILE",
		"ai.gemini.api-key-file": "GEMINI_API_KEY_FILE",
	} {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	viper.SetEnvPrefix("INTERVIEW_COACH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	setDefaults()

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is interview-coach.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func setDefaults() {
	viper.SetDefault("ai.provider", providerOpenAI)
	viper.SetDefault("ai.temperature", 0.2)
	viper.SetDefault("ai.max-output-tokens", 250)
	viper.SetDefault("ai.max-attempts", 3)
	viper.SetDefault("ai.call-timeout", 30*time.Second)
	viper.SetDefault("ai.max-log-length", 200)

	viper.SetDefault("interview.evaluation-style", "Hiring Manager")
	viper.SetDefault("interview.reset-usage-on-restart", false)
	viper.SetDefault("interview.offline-clarifications", []string{"Wizard of Light", "Dragon Tamer"})
	viper.SetDefault("interview.transcript-format", "json")
}

func initConfig() {
	// Only the practice command needs configuration.
	if practiceCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
	}

	// A missing default config is fine; everything has a default or an env var.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	if config == nil {
		config = &Config{}
	}
	if config.AI == nil {
		config.AI = &AIConfig{}
	}
	if config.AI.OpenAI == nil {
		config.AI.OpenAI = &OpenAIConfig{}
	}
	if config.AI.Gemini == nil {
		config.AI.Gemini = &GeminiConfig{}
	}
	if config.Interview == nil {
		config.Interview = &InterviewConfig{}
	}
	if config.Prompts == nil {
		config.Prompts = &PromptsConfig{}
	}

	return config, nil
}
