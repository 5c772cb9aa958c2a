package config

import (
	"errors"
	"os"
)

const defaultPaystackBaseURL = "https://api.paystack.co"

// PaystackConfig carries everything the gateway client needs. It is
// built once at startup and handed to the services that talk to
// Paystack, so tests can point BaseURL at a local server.
type PaystackConfig struct {
	SecretKey   string
	PublicKey   string
	BaseURL     string
	CallbackURL string
}

// LoadPaystackConfig reads Paystack settings from the environment. The
// secret key is required: without it the service can neither
// initialize transactions nor authenticate webhooks.
func LoadPaystackConfig() (*PaystackConfig, error) {
	secret := os.Getenv("PAYSTACK_SECRET_KEY")
	if secret == "" {
		return nil, errors.New("PAYSTACK_SECRET_KEY is not set")
	}

	cfg := &PaystackConfig{
		SecretKey:   secret,
		PublicKey:   os.Getenv("PAYSTACK_PUBLIC_KEY"),
		BaseURL:     os.Getenv("PAYSTACK_BASE_URL"),
		CallbackURL: os.Getenv("PAYSTACK_CALLBACK_URL"),
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultPaystackBaseURL
	}
	return cfg, nil
}
