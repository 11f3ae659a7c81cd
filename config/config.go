package config

import (
	"github.com/caarlos0/env/v11"
)

// Config is the full service configuration, loaded from the environment
// (a .env file is read first when present).
type Config struct {
	Port           string `env:"PORT" envDefault:"5300"`
	DatabaseURL    string `env:"DATABASE_URL,required"`
	AllowedOrigins string `env:"ALLOWED_ORIGINS" envDefault:"http://localhost:3000"`

	// Shared secret the Gateway presents on every request.
	ServiceToken string `env:"ARENA_SERVICE_TOKEN,required"`

	// Payment provider polled by the reconciliation worker.
	PaymentProviderURL   string `env:"PAYMENT_PROVIDER_URL"`
	PaymentPollSeconds   int    `env:"PAYMENT_POLL_SECONDS" envDefault:"15"`
	PaymentExpiryMinutes int    `env:"PAYMENT_EXPIRY_MINUTES" envDefault:"30"`

	// Identity provider mirrored by the user sync worker.
	ProfileServiceURL string `env:"PROFILE_SERVICE_URL"`

	// R2 object storage for match-report evidence.
	CloudflareAccountID string `env:"CLOUDFLARE_ACCOUNT_ID"`
	R2AccessKeyID       string `env:"R2_ACCESS_KEY_ID"`
	R2AccessKeySecret   string `env:"R2_ACCESS_KEY_SECRET"`
	R2Bucket            string `env:"R2_BUCKET_NAME"`
	CDNBaseURL          string `env:"CDN_BASE_URL"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
