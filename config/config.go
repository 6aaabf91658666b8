// config/config.go
package config

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is the full service configuration, parsed from the environment.
// The shipping key arrives base64-encoded and is decoded (and
// length-checked by the vault) before any crypto code sees it.
type Config struct {
	ListenAddr  string `envconfig:"LISTEN_ADDR" default:":8080"`
	DatabaseURL string `envconfig:"DATABASE_URL"`

	// SHIPPING_ENCRYPTION_KEY: base64 of exactly 32 bytes
	ShippingEncryptionKey string `envconfig:"SHIPPING_ENCRYPTION_KEY" required:"true"`

	SolanaRPCURL  string `envconfig:"SOLANA_RPC_URL" default:"https://api.mainnet-beta.solana.com"`
	SignerURL     string `envconfig:"SIGNER_SERVICE_URL" required:"true"`
	ServiceToken  string `envconfig:"SERVICE_TOKEN" required:"true"`
	OperatorToken string `envconfig:"OPERATOR_TOKEN" required:"true"`

	CarrierAPIURL string `envconfig:"CARRIER_API_URL" required:"true"`
	CarrierAPIKey string `envconfig:"CARRIER_API_KEY" required:"true"`

	NotifyURL string `envconfig:"NOTIFY_SERVICE_URL"` // optional

	RedisAddr string `envconfig:"REDIS_ADDR"` // optional, replay cache

	RedemptionClaimTimeout time.Duration `envconfig:"REDEMPTION_CLAIM_TIMEOUT" default:"10m"`
	BurnTimeout            time.Duration `envconfig:"BURN_TIMEOUT" default:"60s"`
}

// Load parses configuration and decodes the shipping key.
func Load() (*Config, []byte, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	key, err := base64.StdEncoding.DecodeString(cfg.ShippingEncryptionKey)
	if err != nil {
		return nil, nil, fmt.Errorf("SHIPPING_ENCRYPTION_KEY is not valid base64: %w", err)
	}
	return &cfg, key, nil
}
