// Package config содержит логику чтения конфигурации сервиса флеш-распродаж.
package config

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	defaultRunAddress   = "localhost:8080"
	defaultKafkaBrokers = "localhost:9092"
)

// Config содержит параметры конфигурации сервиса флеш-распродаж.
type Config struct {
	RunAddress            string   `env:"RUN_ADDRESS"`
	DatabaseURI           string   `env:"DATABASE_URI"`
	KafkaBrokers          []string `env:"KAFKA_BROKERS" envSeparator:","`
	PaymentGatewayAddress string   `env:"PAYMENT_GATEWAY_ADDRESS"`

	KafkaGroupID        string        `env:"KAFKA_GROUP_ID" envDefault:"flashsales"`
	PaymentSuccessRate  float64       `env:"PAYMENT_SUCCESS_RATE" envDefault:"0.9"`
	ScanInterval        time.Duration `env:"SCAN_INTERVAL" envDefault:"30s"`
	MaxDeliveryAttempts int           `env:"MAX_DELIVERY_ATTEMPTS" envDefault:"5"`
	RetryBackoff        time.Duration `env:"RETRY_BACKOFF" envDefault:"500ms"`
	MinSaleDuration     time.Duration `env:"MIN_SALE_DURATION" envDefault:"5m"`
	PendingRequeueAfter time.Duration `env:"PENDING_REQUEUE_AFTER" envDefault:"2m"`
	PaymentClaimTTL     time.Duration `env:"PAYMENT_CLAIM_TTL" envDefault:"1m"`
	AuthSecret          string        `env:"AUTH_SECRET" envDefault:"flashsales-secret"`
	AdminKey            string        `env:"ADMIN_KEY"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envKafkaBrokers := cfg.KafkaBrokers
	envGatewayAddress := cfg.PaymentGatewayAddress

	var brokers string
	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&brokers, "k", defaultKafkaBrokers, "comma separated kafka brokers")
	flag.StringVar(&cfg.PaymentGatewayAddress, "p", "", "payment gateway address")

	flag.Parse()

	cfg.KafkaBrokers = splitList(brokers)

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if len(envKafkaBrokers) > 0 {
		cfg.KafkaBrokers = envKafkaBrokers
	}
	if envGatewayAddress != "" {
		cfg.PaymentGatewayAddress = envGatewayAddress
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.PaymentSuccessRate < 0 || c.PaymentSuccessRate > 1 {
		return fmt.Errorf("payment success rate must be within [0, 1], got %v", c.PaymentSuccessRate)
	}
	if c.MaxDeliveryAttempts < 1 {
		return fmt.Errorf("max delivery attempts must be positive, got %d", c.MaxDeliveryAttempts)
	}
	if c.ScanInterval <= 0 {
		return fmt.Errorf("scan interval must be positive, got %s", c.ScanInterval)
	}
	if c.PaymentClaimTTL <= 0 {
		return fmt.Errorf("payment claim ttl must be positive, got %s", c.PaymentClaimTTL)
	}
	return nil
}

func splitList(s string) []string {
	var res []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			res = append(res, p)
		}
	}
	return res
}
