package cmd

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/mfenderov/recaplet/internal/config"
	"github.com/mfenderov/recaplet/internal/llm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

var (
	cfgFile   string
	envFile   string
	logFormat string
	verbose   bool
	cfg       config.Config
)

// GetConfig returns the loaded configuration.
func GetConfig() config.Config {
	return cfg
}

var rootCmd = &cobra.Command{
	Use:   "recaplet",
	Short: "Recaplet: a summarizing news aggregator",
	Long: `Recaplet reads RSS/Atom feeds, summarizes each article with a language
model, and keeps a bounded, newest-first news document on disk.

Commands:
  generate  Fetch feeds, summarize new articles and update the document
  extract   Show what text would be extracted from a page or feed
  serve     Start the MCP server over the news document`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initLogger, initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env.local", "dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text or json")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

func initLogger() {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if logFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func initConfig() {
	// Start with defaults
	cfg = config.Defaults()

	// Existing environment variables take precedence over the dotenv file.
	if envFile != "" {
		if err := gotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("env file error", "path", envFile, "error", err)
		}
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/recaplet")
		viper.AddConfigPath(".")
	}

	// RECAPLET_SUMMARIZER_API_KEY -> summarizer.api_key
	viper.SetEnvPrefix("RECAPLET")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Explicitly bind nested env vars
	viper.BindEnv("feeds_file", "RECAPLET_FEEDS_FILE")
	viper.BindEnv("pipeline.items_per_feed", "RECAPLET_PIPELINE_ITEMS_PER_FEED")
	viper.BindEnv("pipeline.max_items", "RECAPLET_PIPELINE_MAX_ITEMS")
	viper.BindEnv("pipeline.max_content_chars", "RECAPLET_PIPELINE_MAX_CONTENT_CHARS")
	viper.BindEnv("pipeline.min_content_chars", "RECAPLET_PIPELINE_MIN_CONTENT_CHARS")
	viper.BindEnv("pipeline.summary_delay", "RECAPLET_PIPELINE_SUMMARY_DELAY")
	viper.BindEnv("summarizer.provider", "RECAPLET_SUMMARIZER_PROVIDER")
	viper.BindEnv("summarizer.model", "RECAPLET_SUMMARIZER_MODEL", "AZURE_OPENAI_DEPLOYMENT_NAME")
	viper.BindEnv("summarizer.api_key", "RECAPLET_SUMMARIZER_API_KEY", "AZURE_OPENAI_API_KEY", "OPENAI_API_KEY")
	viper.BindEnv("summarizer.endpoint", "RECAPLET_SUMMARIZER_ENDPOINT", "AZURE_OPENAI_ENDPOINT")
	viper.BindEnv("summarizer.api_version", "RECAPLET_SUMMARIZER_API_VERSION", "AZURE_OPENAI_API_VERSION")
	viper.BindEnv("summarizer.socket_path", "RECAPLET_SUMMARIZER_SOCKET_PATH")
	viper.BindEnv("summarizer.base_url", "RECAPLET_SUMMARIZER_BASE_URL")
	viper.BindEnv("summarizer.language", "RECAPLET_SUMMARIZER_LANGUAGE")
	viper.BindEnv("summarizer.max_chars", "RECAPLET_SUMMARIZER_MAX_CHARS")
	viper.BindEnv("summarizer.max_tokens", "RECAPLET_SUMMARIZER_MAX_TOKENS")
	viper.BindEnv("fetcher.retries", "RECAPLET_FETCHER_RETRIES")
	viper.BindEnv("fetcher.timeout", "RECAPLET_FETCHER_TIMEOUT")
	viper.BindEnv("fetcher.backoff", "RECAPLET_FETCHER_BACKOFF")
	viper.BindEnv("fetcher.user_agent", "RECAPLET_FETCHER_USER_AGENT")
	viper.BindEnv("output.path", "RECAPLET_OUTPUT_PATH")
	viper.BindEnv("output.mirror_path", "RECAPLET_OUTPUT_MIRROR_PATH")
	viper.BindEnv("storage.endpoint", "RECAPLET_STORAGE_ENDPOINT")
	viper.BindEnv("storage.bucket", "RECAPLET_STORAGE_BUCKET")
	viper.BindEnv("storage.key", "RECAPLET_STORAGE_KEY")
	viper.BindEnv("storage.access_key_id", "RECAPLET_STORAGE_ACCESS_KEY_ID")
	viper.BindEnv("storage.secret_access_key", "RECAPLET_STORAGE_SECRET_ACCESS_KEY")
	viper.BindEnv("storage.use_ssl", "RECAPLET_STORAGE_USE_SSL")
	viper.BindEnv("metrics.pushgateway_url", "RECAPLET_METRICS_PUSHGATEWAY_URL")
	viper.BindEnv("metrics.job", "RECAPLET_METRICS_JOB")

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("config file error", "error", err)
		}
		// No config file - use defaults + env vars
	}

	// Unmarshal into struct (merges config file with defaults)
	if err := viper.Unmarshal(&cfg); err != nil {
		slog.Warn("failed to parse config", "error", err)
	}

	// An Azure endpoint in the environment selects Azure unless a provider
	// was chosen explicitly.
	if !viper.IsSet("summarizer.provider") && os.Getenv("AZURE_OPENAI_ENDPOINT") != "" {
		cfg.Summarizer.Provider = llm.ProviderAzure
	}
}
