package wallet

import (
	"errors"
	"testing"
	"time"
)

func TestConfigFromEnvDisabledWithoutURL(t *testing.T) {
	t.Setenv("WALLET_RPC_URL", "")
	_, err := ConfigFromEnv()
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestConfigFromEnvDefaults(t *testing.T) {
	t.Setenv("WALLET_RPC_URL", "https://rpc.example.com/")
	t.Setenv("WALLET_API_KEY", "k")
	t.Setenv("WALLET_API_KEY_HEADER", "")
	t.Setenv("WALLET_API_KEY_PREFIX", "")
	t.Setenv("HOUSE_WALLET_ADDRESS", "")
	t.Setenv("CONFIRM_RETRIES", "")
	t.Setenv("CONFIRM_DELAY_MS", "")
	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv: %v", err)
	}
	if cfg.RPCURL != "https://rpc.example.com" {
		t.Fatalf("unexpected url %q", cfg.RPCURL)
	}
	if cfg.HeaderName != "Authorization" || cfg.HeaderPrefix != "Bearer " {
		t.Fatalf("unexpected auth header %q %q", cfg.HeaderName, cfg.HeaderPrefix)
	}
	if cfg.HouseAddress != DefaultHouseAddress {
		t.Fatalf("unexpected house address %q", cfg.HouseAddress)
	}
	if cfg.ConfirmRetries != 3 || cfg.ConfirmDelay != time.Second {
		t.Fatalf("unexpected retry policy %d %v", cfg.ConfirmRetries, cfg.ConfirmDelay)
	}
}

func TestConfigFromEnvOverrides(t *testing.T) {
	t.Setenv("WALLET_RPC_URL", "http://localhost:8899")
	t.Setenv("WALLET_API_KEY_HEADER", "X-Api-Key")
	t.Setenv("WALLET_API_KEY_PREFIX", "")
	t.Setenv("HOUSE_WALLET_ADDRESS", "House123")
	t.Setenv("CONFIRM_RETRIES", "5")
	t.Setenv("CONFIRM_DELAY_MS", "250")
	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv: %v", err)
	}
	if cfg.HeaderName != "X-Api-Key" || cfg.HeaderPrefix != "" {
		t.Fatalf("unexpected auth header %q %q", cfg.HeaderName, cfg.HeaderPrefix)
	}
	if cfg.HouseAddress != "House123" || cfg.ConfirmRetries != 5 || cfg.ConfirmDelay != 250*time.Millisecond {
		t.Fatalf("unexpected cfg %+v", cfg)
	}
}
