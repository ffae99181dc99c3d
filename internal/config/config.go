package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	// APIKey is the MTA API key sent with every feed request. Read once at
	// startup; components receive it by value.
	APIKey string

	DatabaseURL string `validate:"required"`
	NATSURL     string `validate:"required"`
	NATSBucket  string `validate:"required"`

	UpdateInterval time.Duration `validate:"gt=0"`
	FailureBackoff time.Duration `validate:"gt=0"`
	FeedTimeout    time.Duration `validate:"gt=0"`

	Port        int `validate:"gt=0"`
	MetricsAddr string

	StationsCSV string `validate:"required"`
}

func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{}

	apiKey, err := loadAPIKey()
	if err != nil {
		return nil, err
	}
	cfg.APIKey = apiKey

	// Database URL (metadata store): prefer DATABASE_URL / PG_DSN, else build from PG* vars
	dsn := firstNonEmpty(
		os.Getenv("DATABASE_URL"),
		os.Getenv("PG_DSN"),
	)
	if dsn == "" {
		host := getenvDefault("PGHOST", "127.0.0.1")
		port := getenvDefault("PGPORT", "5432")
		user := getenvDefault("PGUSER", "postgres")
		pass := os.Getenv("PGPASSWORD")
		db := os.Getenv("PGDATABASE")
		if db == "" {
			return nil, errors.New("PGDATABASE or DATABASE_URL must be set")
		}
		sslmode := getenvDefault("PGSSLMODE", "disable")
		if pass != "" {
			cfg.DatabaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", urlEscape(user), urlEscape(pass), host, port, db, sslmode)
		} else {
			cfg.DatabaseURL = fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s", urlEscape(user), host, port, db, sslmode)
		}
	} else {
		cfg.DatabaseURL = dsn
	}

	cfg.NATSURL = getenvDefault("NATS_URL", "nats://127.0.0.1:4222")
	cfg.NATSBucket = getenvDefault("NATS_BUCKET", "mta-feeds")

	cfg.UpdateInterval, err = secondsEnv("UPDATE_INTERVAL_SEC", 15*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.FailureBackoff, err = secondsEnv("FAILURE_BACKOFF_SEC", 5*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.FeedTimeout, err = secondsEnv("FEED_TIMEOUT_SEC", 30*time.Second)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p <= 0 {
			return nil, fmt.Errorf("invalid PORT: %q", v)
		}
		cfg.Port = p
	} else {
		cfg.Port = 8080
	}

	// Metrics listen address (e.g., ":9102"). Empty disables the metrics server.
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")

	cfg.StationsCSV = getenvDefault("STATIONS_CSV", "data/stops.csv")

	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadAPIKey reads the MTA API key from MTA_API_KEY, or from the file named
// by MTA_API_KEY_FILE. Either may be unset; the feeds are keyless then.
func loadAPIKey() (string, error) {
	if v := os.Getenv("MTA_API_KEY"); v != "" {
		return strings.TrimSpace(v), nil
	}
	if path := os.Getenv("MTA_API_KEY_FILE"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read MTA_API_KEY_FILE: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	return "", nil
}

func secondsEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	sec, err := strconv.Atoi(v)
	if err != nil || sec <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return time.Duration(sec) * time.Second, nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func urlEscape(s string) string {
	// Minimal escape for DSN user/pass with special chars
	r := strings.NewReplacer("@", "%40", ":", "%3A", "/", "%2F", "?", "%3F", "#", "%23")
	return r.Replace(s)
}
