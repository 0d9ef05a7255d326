package cmd

import (
	"errors"
	"io/fs"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/job-autopilot/internal/applicant"
	"github.com/spigell/job-autopilot/internal/browser"
	"github.com/spigell/job-autopilot/internal/logger"
	"github.com/spigell/job-autopilot/internal/mailer"
	"github.com/spigell/job-autopilot/internal/tasks"
)

const (
	app = "job-autopilot"
)

type Config struct {
	Storage       StorageConfig       `mapstructure:"storage"`
	AI            *AIConfig           `mapstructure:"ai"`
	Platforms     PlatformsConfig     `mapstructure:"platforms"`
	Browser       browser.Options     `mapstructure:"browser"`
	Scheduler     SchedulerConfig     `mapstructure:"scheduler"`
	Apply         ApplyConfig         `mapstructure:"apply"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Mail          MailConfig          `mapstructure:"mail"`
	Metrics       MetricsConfig       `mapstructure:"metrics"`
}

type StorageConfig struct {
	// Backend is either "fs" or "redis".
	Backend  string `mapstructure:"backend"`
	Dir      string `mapstructure:"dir"`
	RedisURL string `mapstructure:"redis-url"`
	Prefix   string `mapstructure:"prefix"`
}

type AIConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
	MaxRetries int    `mapstructure:"max-retries"`
}

type PlatformsConfig struct {
	Adzuna     AdzunaConfig     `mapstructure:"adzuna"`
	HeadHunter HeadHunterConfig `mapstructure:"headhunter"`
	HackerNews HackerNewsConfig `mapstructure:"hackernews"`
}

type AdzunaConfig struct {
	AppID      string        `mapstructure:"app-id"`
	AppKeyFile string        `mapstructure:"app-key-file"`
	Country    string        `mapstructure:"country"`
	MaxPages   int           `mapstructure:"max-pages"`
	CacheTTL   time.Duration `mapstructure:"cache-ttl"`
}

type HeadHunterConfig struct {
	TokenFile  string        `mapstructure:"token-file"`
	Areas      []int         `mapstructure:"areas"`
	Experience string        `mapstructure:"experience"`
	Period     uint          `mapstructure:"period"`
	CacheTTL   time.Duration `mapstructure:"cache-ttl"`
}

type HackerNewsConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	CacheTTL      time.Duration `mapstructure:"cache-ttl"`
	BatchSize     int           `mapstructure:"batch-size"`
	MaxItems      int           `mapstructure:"max-items"`
	RatePerSecond float64       `mapstructure:"rate-per-second"`
}

type SchedulerConfig struct {
	CheckInterval time.Duration `mapstructure:"check-interval"`
	// RunOnStart runs every task on the first tick after start instead of
	// waiting a full interval.
	RunOnStart bool `mapstructure:"run-on-start"`
	// Disabled lists tasks that are registered but never run on schedule.
	Disabled []string `mapstructure:"disabled"`
}

type ApplyConfig struct {
	applicant.Config `mapstructure:",squash"`
	Pacing           tasks.Config `mapstructure:",squash"`
}

type NotificationsConfig struct {
	Redis *RedisStreamConfig `mapstructure:"redis"`
}

type RedisStreamConfig struct {
	// URL is optional when the store itself is redis.
	URL    string `mapstructure:"url"`
	Stream string `mapstructure:"stream"`
}

type MailConfig struct {
	mailer.Config `mapstructure:",squash"`
	PasswordFile  string `mapstructure:"password-file"`
}

type MetricsConfig struct {
	Listen string `mapstructure:"listen"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "job-autopilot discovers job postings, ranks them against your profile and applies on your behalf",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	for key, env := range map[string]string{
		"platforms.headhunter.token-file": "HH_TOKEN_FILE",
		"ai.gemini.api-key-file":          "GEMINI_API_KEY_FILE",
		"storage.redis-url":               "JOB_AUTOPILOT_REDIS_URL",
	} {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	viper.SetDefault("storage.backend", "fs")
	viper.SetDefault("storage.dir", "data")
	viper.SetDefault("platforms.hackernews.enabled", true)
	viper.SetDefault("scheduler.run-on-start", true)
	viper.SetDefault("metrics.listen", ":9090")

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is job-autopilot.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	if versionCmd.CalledAs() != "" {
		return
	}

	// A missing .env is fine, the environment may already be populated.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("loading .env: %v", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	err := viper.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return
	}
	// We can't proceed if the config file parsed with error.
	if err != nil {
		log.Fatal(err)
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

	return config, nil
}

// setup builds the logger and reads the config for a command.
func setup() (*zap.Logger, *Config) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	return logger, config
}
