// internal/config/config.go
package config

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/ProfDian/water-qual-sub000/internal/auth"
	"github.com/ProfDian/water-qual-sub000/internal/notify"
	"github.com/ProfDian/water-qual-sub000/internal/quality"
)

type Config struct {
	Server struct {
		DataPort int `mapstructure:"data_port"`
		UIPort   int `mapstructure:"ui_port"`
	} `mapstructure:"server"`

	Storage struct {
		Backend       string `mapstructure:"backend"` // mongo | memory
		MongoURI      string `mapstructure:"mongo_uri"`
		MongoDatabase string `mapstructure:"mongo_database"`
	} `mapstructure:"storage"`

	Buffer struct {
		MergeWindowMinutes  int    `mapstructure:"merge_window_minutes"`
		ReportWindowMinutes int    `mapstructure:"report_window_minutes"`
		SweepSchedule       string `mapstructure:"sweep_schedule"` // cron expression
	} `mapstructure:"buffer"`

	Quality quality.Config `mapstructure:"quality"`

	Auth auth.Config `mapstructure:"auth"`

	Notify struct {
		EmailEnabled bool              `mapstructure:"email_enabled"`
		SMTP         notify.SMTPConfig `mapstructure:"smtp"`
	} `mapstructure:"notify"`
}

var AppConfig Config

// LoadConfig reads config.yaml from path (plus matching environment
// variables) into AppConfig. Missing file is not fatal; defaults apply.
func LoadConfig(path string) error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(path)
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		logrus.WithError(err).Warn("config file not read, continuing with defaults")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}

	// The quality rule tables are merged rather than defaulted through
	// viper: an absent section falls back wholesale to the built-ins.
	def := quality.DefaultConfig()
	if len(AppConfig.Quality.Rules) == 0 {
		AppConfig.Quality.Rules = def.Rules
	}
	if len(AppConfig.Quality.Weights) == 0 {
		AppConfig.Quality.Weights = def.Weights
	}
	if len(AppConfig.Quality.Severity) == 0 {
		AppConfig.Quality.Severity = def.Severity
	}
	if len(AppConfig.Quality.MinReduction) == 0 {
		AppConfig.Quality.MinReduction = def.MinReduction
	}

	logrus.WithFields(logrus.Fields{
		"data_port": AppConfig.Server.DataPort,
		"ui_port":   AppConfig.Server.UIPort,
		"backend":   AppConfig.Storage.Backend,
	}).Info("configuration loaded")
	return nil
}

func setDefaults() {
	viper.SetDefault("server.data_port", 8080)
	viper.SetDefault("server.ui_port", 8081)

	viper.SetDefault("storage.backend", "memory")
	viper.SetDefault("storage.mongo_uri", "mongodb://localhost:27017")
	viper.SetDefault("storage.mongo_database", "water_quality")

	viper.SetDefault("buffer.merge_window_minutes", 5)
	viper.SetDefault("buffer.report_window_minutes", 10)
	viper.SetDefault("buffer.sweep_schedule", "@every 1m")

	viper.SetDefault("auth.enabled", false)
	viper.SetDefault("auth.jwt_expiration", 60)

	viper.SetDefault("notify.email_enabled", false)
	viper.SetDefault("notify.smtp.port", 587)
}
