package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	SQLite     SQLiteConfig
	Redis      RedisConfig
	Classifier ClassifierConfig
	Archive    ArchiveConfig
	Triage     TriageConfig
	Logging    LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type ClassifierConfig struct {
	Enabled     bool
	Provider    string
	Model       string
	APIKey      string
	Temperature float32
	MaxTokens   int
	TimeoutSec  int
}

type ArchiveConfig struct {
	ProcessedDir string
	ReviewDir    string
}

// SourceConfig describes one collector output consumed by the triage run.
type SourceConfig struct {
	ID      string
	Path    string
	Trusted bool
}

type TriageConfig struct {
	Sources          []SourceConfig
	TrustedSources   []string
	ConfirmThreshold float64
	RejectThreshold  float64
	SourceTimeoutSec int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/leakscope")

	viper.SetEnvPrefix("LEAKSCOPE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 30)
	viper.SetDefault("server.bodyLimit", 10485760)

	viper.SetDefault("sqlite.path", "./data/leakscope.db")

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("classifier.enabled", true)
	viper.SetDefault("classifier.provider", "openai")
	viper.SetDefault("classifier.model", "gpt-4o-mini")
	viper.SetDefault("classifier.temperature", 0.1)
	viper.SetDefault("classifier.maxTokens", 64)
	viper.SetDefault("classifier.timeoutSec", 20)

	viper.SetDefault("archive.processedDir", "./data/processed")
	viper.SetDefault("archive.reviewDir", "./data/to_review")

	viper.SetDefault("triage.trustedSources", []string{"gazeta.ru", "t.me/dataleak"})
	viper.SetDefault("triage.confirmThreshold", 0.85)
	viper.SetDefault("triage.rejectThreshold", 0.5)
	viper.SetDefault("triage.sourceTimeoutSec", 120)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
