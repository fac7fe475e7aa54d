package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	RunAddress  string
	DatabaseURI string
	JWTSecret   string

	RazorpayKeyID     string
	RazorpayKeySecret string
	RazorpayBaseURL   string
	CallbackSecret    string
	WebhookSecret     string
	Currency          string
	GatewayTimeout    time.Duration

	OrderTTL      time.Duration
	SweepInterval time.Duration

	CORSOrigins []string
	LogFile     string
}

func defaultConfig() *Config {
	return &Config{
		RunAddress:      "localhost:8080",
		RazorpayBaseURL: "https://api.razorpay.com",
		Currency:        "INR",
		GatewayTimeout:  10 * time.Second,
		OrderTTL:        30 * time.Minute,
		SweepInterval:   time.Minute,
		CORSOrigins:     []string{"http://localhost:3000"},
		LogFile:         "server.log",
	}
}

// NewConfig reads .env, command line flags and the environment, in that order
// of increasing precedence.
func NewConfig() (*Config, error) {
	loadDotEnv()

	cfg := defaultConfig()
	flag.StringVar(&cfg.RunAddress, "a", cfg.RunAddress, "HTTP server address")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "DB connection string")
	flag.StringVar(&cfg.JWTSecret, "j", "", "JWT signing secret")
	flag.StringVar(&cfg.Currency, "c", cfg.Currency, "Checkout currency (INR or USD)")
	flag.DurationVar(&cfg.SweepInterval, "s", cfg.SweepInterval, "Pending order sweep interval, 0 disables")
	flag.Parse()

	if err := ReadServerEnvironment(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadEnvironment builds a config without touching command line flags.
func LoadEnvironment() (*Config, error) {
	loadDotEnv()

	cfg := defaultConfig()
	if err := ReadServerEnvironment(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadDotEnv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}
}

func ReadServerEnvironment(cfg *Config) error {
	if runAddress := os.Getenv("RUN_ADDRESS"); runAddress != "" {
		cfg.RunAddress = runAddress
	}

	if databaseURI := os.Getenv("DATABASE_URI"); databaseURI != "" {
		cfg.DatabaseURI = databaseURI
	}

	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.JWTSecret = secret
	}

	if keyID := os.Getenv("RAZORPAY_KEY_ID"); keyID != "" {
		cfg.RazorpayKeyID = keyID
	}

	if keySecret := os.Getenv("RAZORPAY_KEY_SECRET"); keySecret != "" {
		cfg.RazorpayKeySecret = keySecret
	}

	if baseURL := os.Getenv("RAZORPAY_BASE_URL"); baseURL != "" {
		cfg.RazorpayBaseURL = strings.TrimRight(baseURL, "/")
	}

	if secret := os.Getenv("PAYMENT_CALLBACK_SECRET"); secret != "" {
		cfg.CallbackSecret = secret
	}

	if secret := os.Getenv("PAYMENT_WEBHOOK_SECRET"); secret != "" {
		cfg.WebhookSecret = secret
	}

	if currency := os.Getenv("PAYMENT_CURRENCY"); currency != "" {
		cfg.Currency = strings.ToUpper(currency)
	}

	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.CORSOrigins = strings.Split(origins, ",")
	}

	if logFile := os.Getenv("LOG_FILE"); logFile != "" {
		cfg.LogFile = logFile
	}

	durations := []struct {
		env string
		dst *time.Duration
	}{
		{"GATEWAY_TIMEOUT", &cfg.GatewayTimeout},
		{"ORDER_TTL", &cfg.OrderTTL},
		{"SWEEP_INTERVAL", &cfg.SweepInterval},
	}
	for _, d := range durations {
		v := os.Getenv(d.env)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", d.env, err)
		}
		*d.dst = parsed
	}

	// Razorpay signs checkout callbacks with the key secret.
	if cfg.CallbackSecret == "" {
		cfg.CallbackSecret = cfg.RazorpayKeySecret
	}

	return nil
}

func (cfg *Config) Validate() error {
	if cfg.DatabaseURI == "" {
		return errors.New("database URI is required")
	}
	if cfg.JWTSecret == "" {
		return errors.New("JWT secret is required")
	}
	if cfg.Currency != "INR" && cfg.Currency != "USD" {
		return fmt.Errorf("unsupported currency %q", cfg.Currency)
	}
	if cfg.GatewayTimeout <= 0 {
		return errors.New("gateway timeout must be positive")
	}
	if cfg.OrderTTL <= 0 {
		return errors.New("order TTL must be positive")
	}
	return nil
}
