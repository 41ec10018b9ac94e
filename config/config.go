package config

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Client   Client
	Timers   Timers
	Practice Practice
}

type Client struct {
	BaseURL        string
	Timeout        time.Duration
	CSRFCookieName string
	CSRFHeaderName string
}

type Timers struct {
	// Quiz-wide warning marks, in seconds remaining. Each fires at most once per attempt.
	FirstWarningSeconds int
	FinalWarningSeconds int
	// Delay before re-fetching the current question after a transient submit failure.
	RetryDelay time.Duration
}

type Practice struct {
	Port string
}

func NewConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()

	viper.SetDefault("API_BASE_URL", "http://localhost:8080")
	viper.SetDefault("API_TIMEOUT_SECONDS", 15)
	viper.SetDefault("CSRF_COOKIE_NAME", "csrftoken")
	viper.SetDefault("CSRF_HEADER_NAME", "X-CSRF-Token")
	viper.SetDefault("QUIZ_FIRST_WARNING_SECONDS", 300)
	viper.SetDefault("QUIZ_FINAL_WARNING_SECONDS", 60)
	viper.SetDefault("SUBMIT_RETRY_DELAY_SECONDS", 2)
	viper.SetDefault("PRACTICE_PORT", "8080")

	if err := viper.ReadInConfig(); err != nil {
		log.Warn().Err(err).Msg("Error reading config file")
	}

	var config Config

	config.Client.BaseURL = viper.GetString("API_BASE_URL")
	config.Client.Timeout = time.Duration(viper.GetInt("API_TIMEOUT_SECONDS")) * time.Second
	config.Client.CSRFCookieName = viper.GetString("CSRF_COOKIE_NAME")
	config.Client.CSRFHeaderName = viper.GetString("CSRF_HEADER_NAME")

	config.Timers.FirstWarningSeconds = viper.GetInt("QUIZ_FIRST_WARNING_SECONDS")
	config.Timers.FinalWarningSeconds = viper.GetInt("QUIZ_FINAL_WARNING_SECONDS")
	config.Timers.RetryDelay = time.Duration(viper.GetInt("SUBMIT_RETRY_DELAY_SECONDS")) * time.Second

	config.Practice.Port = viper.GetString("PRACTICE_PORT")

	log.Info().Str("base_url", config.Client.BaseURL).Msg("Config loaded")
	return &config, nil
}
