package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"
)

const (
	SourceCertStream = "certstream"
	SourceCTLog      = "ctlog"
)

type Config struct {
	DatabaseURL     string
	PatternFile     string
	Source          string
	FeedURL         string
	CTLogURL        string
	CTBatchSize     int
	CTPollInterval  time.Duration
	DedupCacheSize  int
	HTTPAddr        string
	CORSAllowOrigin string
	LogFormat       string
	LogLevel        string
}

// Load reads the environment and then applies command line overrides from
// args. pflag.ErrHelp is returned unchanged when -h or --help is given.
func Load(args []string) (*Config, error) {
	cfg := &Config{
		DatabaseURL:     getEnv("DATABASE_URL", "data/certstream.db"),
		PatternFile:     getEnv("MONITOR_CONFIG", "certstream_monitor_config.json"),
		Source:          getEnv("FEED_SOURCE", SourceCertStream),
		FeedURL:         getEnv("FEED_URL", "wss://certstream.calidog.io"),
		CTLogURL:        getEnv("CT_LOG_URL", "https://oak.ct.letsencrypt.org/2026h2"),
		CTBatchSize:     getInt("CT_BATCH_SIZE", 100),
		CTPollInterval:  getDuration("CT_POLL_INTERVAL", 10*time.Second),
		DedupCacheSize:  getInt("DEDUP_CACHE_SIZE", 10000),
		HTTPAddr:        getEnv("HTTP_ADDR", ""),
		CORSAllowOrigin: getEnv("CORS_ALLOW_ORIGIN", "*"),
		LogFormat:       getEnv("LOG_FORMAT", "json"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
	}

	fs := pflag.NewFlagSet("certmonitor", pflag.ContinueOnError)
	fs.StringVar(&cfg.DatabaseURL, "db", cfg.DatabaseURL, "SQLite path or postgres:// URL")
	fs.StringVar(&cfg.PatternFile, "config", cfg.PatternFile, "pattern configuration file (JSON, comments allowed)")
	fs.StringVar(&cfg.Source, "source", cfg.Source, "feed source: certstream or ctlog")
	fs.StringVar(&cfg.FeedURL, "feed-url", cfg.FeedURL, "CertStream websocket URL")
	fs.StringVar(&cfg.CTLogURL, "ct-log-url", cfg.CTLogURL, "CT log base URL for the ctlog source")
	fs.IntVar(&cfg.CTBatchSize, "ct-batch-size", cfg.CTBatchSize, "entries fetched per get-entries call")
	fs.DurationVar(&cfg.CTPollInterval, "ct-poll-interval", cfg.CTPollInterval, "wait between polls once caught up")
	fs.IntVar(&cfg.DedupCacheSize, "dedup-cache", cfg.DedupCacheSize, "recently seen cert indexes kept in memory (0 disables)")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "listen address for the query API (empty disables it)")
	fs.StringVar(&cfg.CORSAllowOrigin, "cors-origin", cfg.CORSAllowOrigin, "Access-Control-Allow-Origin for the API")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: json or text")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("invalid duration for env var, using default",
			"key", key, "value", v, "default", fallback)
		return fallback
	}
	return d
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("invalid integer for env var, using default",
			"key", key, "value", v, "default", fallback)
		return fallback
	}
	return n
}
