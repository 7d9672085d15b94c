package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/nkapur/unipipe/internal/db"
)

// Config is the full runtime configuration: defaults, then config.yaml, then
// UNIPIPE_* environment overrides.
type Config struct {
	Database   db.Config
	Server     ServerConfig
	Storage    StorageConfig
	Classifier ClassifierConfig
	Pipeline   PipelineConfig
}

type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
}

type StorageConfig struct {
	DataDir        string
	MigrationsPath string
}

type ClassifierConfig struct {
	APIKey         string
	Model          string
	Timeout        time.Duration
	TurboBatchSize int
}

type PipelineConfig struct {
	ConfidenceThreshold float64
	MaxHeaderScan       int
}

// Load reads configuration from configPath (optional config.yaml) plus
// environment variables.
func Load(configPath string) (Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()
	v.SetEnvPrefix("UNIPIPE")

	dbDefaults := db.DefaultConfig()
	v.SetDefault("database.host", dbDefaults.Host)
	v.SetDefault("database.port", dbDefaults.Port)
	v.SetDefault("database.user", dbDefaults.User)
	v.SetDefault("database.password", dbDefaults.Password)
	v.SetDefault("database.dbname", dbDefaults.DBName)
	v.SetDefault("database.sslmode", dbDefaults.SSLMode)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("storage.data_dir", "./data")
	v.SetDefault("storage.migrations_path", "./migrations")

	v.SetDefault("classifier.api_key", "")
	v.SetDefault("classifier.model", "")
	v.SetDefault("classifier.timeout", "20s")
	v.SetDefault("classifier.turbo_batch_size", 8)

	v.SetDefault("pipeline.confidence_threshold", 0.85)
	v.SetDefault("pipeline.max_header_scan", 100)

	// Map nested keys to flat env vars like UNIPIPE_DATABASE_HOST.
	for _, key := range []string{
		"database.host", "database.port", "database.user", "database.password",
		"database.dbname", "database.sslmode",
		"server.addr", "storage.data_dir", "storage.migrations_path",
		"classifier.api_key", "classifier.model", "classifier.timeout",
		"classifier.turbo_batch_size",
		"pipeline.confidence_threshold", "pipeline.max_header_scan",
	} {
		_ = v.BindEnv(key)
	}

	// Config file not found is fine; defaults plus env vars apply.
	_ = v.ReadInConfig()

	cfg := Config{
		Database: db.Config{
			Host:     v.GetString("database.host"),
			Port:     v.GetInt("database.port"),
			User:     v.GetString("database.user"),
			Password: v.GetString("database.password"),
			DBName:   v.GetString("database.dbname"),
			SSLMode:  v.GetString("database.sslmode"),
		},
		Server: ServerConfig{
			Addr:           v.GetString("server.addr"),
			AllowedOrigins: v.GetStringSlice("server.allowed_origins"),
		},
		Storage: StorageConfig{
			DataDir:        v.GetString("storage.data_dir"),
			MigrationsPath: v.GetString("storage.migrations_path"),
		},
		Classifier: ClassifierConfig{
			APIKey:         v.GetString("classifier.api_key"),
			Model:          v.GetString("classifier.model"),
			Timeout:        v.GetDuration("classifier.timeout"),
			TurboBatchSize: v.GetInt("classifier.turbo_batch_size"),
		},
		Pipeline: PipelineConfig{
			ConfidenceThreshold: v.GetFloat64("pipeline.confidence_threshold"),
			MaxHeaderScan:       v.GetInt("pipeline.max_header_scan"),
		},
	}

	return cfg, nil
}
