package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Environment string
	HTTPAddr    string
	Secret      string

	V1BaseURL     string
	V1AccessToken string

	Memory          time.Duration
	DedupPerChannel bool

	TypesFile       string
	LocRefreshCron  string
	JournalDBPath   string
	SlackRTMToken   string
	SlackAPIBase    string
	SlackRTMEnabled bool
}

func FromEnv() Config {
	cfg := Config{
		Environment:     stringOrDefault("SLAUG_ENV", "development"),
		HTTPAddr:        stringOrDefault("SLAUG_HTTP_ADDR", ":61525"),
		Secret:          strings.TrimSpace(os.Getenv("SLAUG_SECRET")),
		V1BaseURL:       strings.TrimRight(strings.TrimSpace(os.Getenv("SLAUG_V1_URL")), "/"),
		V1AccessToken:   strings.TrimSpace(os.Getenv("SLAUG_V1_ACCESSTOKEN")),
		Memory:          time.Duration(intOrDefault("SLAUG_MEMORY_MS", 120_000)) * time.Millisecond,
		DedupPerChannel: boolOrDefault("SLAUG_DEDUP_PER_CHANNEL", false),
		TypesFile:       strings.TrimSpace(os.Getenv("SLAUG_TYPES_FILE")),
		LocRefreshCron:  strings.TrimSpace(os.Getenv("SLAUG_LOC_REFRESH_CRON")),
		JournalDBPath:   strings.TrimSpace(os.Getenv("SLAUG_DB_PATH")),
		SlackRTMToken:   strings.TrimSpace(os.Getenv("SLAUG_SLACK_RTM_TOKEN")),
		SlackAPIBase:    stringOrDefault("SLAUG_SLACK_API_BASE", "https://slack.com/api"),
	}
	cfg.SlackRTMEnabled = cfg.SlackRTMToken != ""
	return cfg
}

func (c Config) Production() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Validate reports the startup-fatal configuration gaps. Everything else has
// a workable default.
func (c Config) Validate() error {
	if c.V1BaseURL == "" {
		return errors.New("SLAUG_V1_URL is not defined")
	}
	if c.V1AccessToken == "" {
		return errors.New("SLAUG_V1_ACCESSTOKEN is not defined")
	}
	return nil
}

func stringOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func intOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 1 {
		return fallback
	}
	return parsed
}

func boolOrDefault(name string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
