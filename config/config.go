package config

import (
	"errors"
	"flag"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	defaultRunAddr       = ":8080"
	defaultDatabaseDSN   = ""
	defaultKaspiAPIURL   = "https://kaspi.kz/shop/api/v2"
	defaultPollInterval  = 10 * time.Minute
	defaultLogLevel      = "info"
	defaultLabelAttempts = 2
)

// defaultLabelDelays is delay schedule of waybill readiness polling.
// Waybill generation is asynchronous on the marketplace side.
var defaultLabelDelays = []time.Duration{5 * time.Second, 15 * time.Second}

// LabelRetryPolicy is bounded retry schedule for waybill readiness polling
type LabelRetryPolicy struct {
	MaxAttempts int
	Delays      []time.Duration
}

// Delay returns delay before given attempt. Attempts beyond the schedule
// reuse the last delay.
func (p LabelRetryPolicy) Delay(attempt int) time.Duration {
	if len(p.Delays) == 0 {
		return 0
	}
	if attempt >= len(p.Delays) {
		return p.Delays[len(p.Delays)-1]
	}
	return p.Delays[attempt]
}

type Config struct {
	RunAddr          string
	OpsToken         string
	DatabaseDSN      string
	KaspiAPIURL      string
	KaspiAPIToken    string
	TelegramToken    string
	TelegramChatID   int64
	TelegramAdminIDs []int64
	PollInterval     time.Duration
	LabelRetry       LabelRetryPolicy
	LogLevel         string
}

var (
	once      sync.Once
	singleton *Config
)

// New returns new Config. It parses command line and environment variables only once.
func New() (*Config, error) {
	var err error
	once.Do(func() {
		cfg := Config{
			LabelRetry: LabelRetryPolicy{
				MaxAttempts: defaultLabelAttempts,
				Delays:      defaultLabelDelays,
			},
		}

		// initialize flags
		flag.StringVar(&cfg.RunAddr, "a", defaultRunAddr, "ops server address")
		flag.StringVar(&cfg.DatabaseDSN, "d", defaultDatabaseDSN, "database DSN")
		flag.StringVar(&cfg.KaspiAPIURL, "k", defaultKaspiAPIURL, "kaspi merchant api base url")
		flag.DurationVar(&cfg.PollInterval, "i", defaultPollInterval, "order poll interval")
		flag.StringVar(&cfg.LogLevel, "l", defaultLogLevel, "log level")

		flag.Parse()

		// if environment variable is set, then using it
		if runAddrEnv := os.Getenv("RUN_ADDRESS"); runAddrEnv != "" {
			cfg.RunAddr = runAddrEnv
		}
		if dsnEnv := os.Getenv("DATABASE_URI"); dsnEnv != "" {
			cfg.DatabaseDSN = dsnEnv
		}
		if apiURLEnv := os.Getenv("KASPI_API_URL"); apiURLEnv != "" {
			cfg.KaspiAPIURL = apiURLEnv
		}
		if logLevelEnv := os.Getenv("LOG_LEVEL"); logLevelEnv != "" {
			cfg.LogLevel = logLevelEnv
		}
		if intervalEnv := os.Getenv("POLL_INTERVAL"); intervalEnv != "" {
			if d, perr := time.ParseDuration(intervalEnv); perr == nil {
				cfg.PollInterval = d
			}
		}

		cfg.OpsToken = os.Getenv("OPS_API_TOKEN")
		cfg.KaspiAPIToken = os.Getenv("KASPI_API_TOKEN")
		cfg.TelegramToken = os.Getenv("TELEGRAM_BOT_TOKEN")

		if chatIDEnv := os.Getenv("TELEGRAM_CHAT_ID"); chatIDEnv != "" {
			cfg.TelegramChatID, err = strconv.ParseInt(chatIDEnv, 10, 64)
			if err != nil {
				return
			}
		}
		if adminsEnv := os.Getenv("TELEGRAM_ADMIN_IDS"); adminsEnv != "" {
			cfg.TelegramAdminIDs, err = parseAdminIDs(adminsEnv)
			if err != nil {
				return
			}
		}

		err = cfg.validate()
		if err != nil {
			return
		}

		singleton = &cfg
	})

	if err != nil {
		return nil, err
	}
	if singleton == nil {
		return nil, errors.New("config is not initialized")
	}

	return singleton, nil
}

// parseAdminIDs parses comma-separated list of telegram user ids
func parseAdminIDs(s string) ([]int64, error) {
	parts := strings.Split(s, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// validate checks required variables are set
func (c *Config) validate() error {
	if c.KaspiAPIToken == "" {
		return errors.New("KASPI_API_TOKEN is required")
	}
	if c.TelegramToken == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is required")
	}
	if c.TelegramChatID == 0 {
		return errors.New("TELEGRAM_CHAT_ID is required")
	}
	if c.PollInterval <= 0 {
		return errors.New("poll interval must be positive")
	}
	return nil
}
