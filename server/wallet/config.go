package wallet

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultHouseAddress receives deposits when HOUSE_WALLET_ADDRESS is unset.
const DefaultHouseAddress = "7sFxqhKxuHBhwWxGkqtxKk2a3tX3M5xk8B7RUL94ZKzF"

var ErrNotConfigured = errors.New("wallet RPC not configured: set WALLET_RPC_URL")

type Config struct {
	RPCURL         string
	APIKey         string
	HeaderName     string
	HeaderPrefix   string
	HouseAddress   string
	ConfirmRetries int
	ConfirmDelay   time.Duration
	Timeout        time.Duration
}

// ConfigFromEnv reads WALLET_* settings. Deposits are disabled (ErrNotConfigured)
// when no RPC endpoint is set.
func ConfigFromEnv() (Config, error) {
	cfg := Config{
		RPCURL:         strings.TrimRight(strings.TrimSpace(os.Getenv("WALLET_RPC_URL")), "/"),
		APIKey:         strings.TrimSpace(os.Getenv("WALLET_API_KEY")),
		HouseAddress:   firstNonEmpty(os.Getenv("HOUSE_WALLET_ADDRESS"), DefaultHouseAddress),
		ConfirmRetries: envInt("CONFIRM_RETRIES", 3),
		ConfirmDelay:   time.Duration(envInt("CONFIRM_DELAY_MS", 1000)) * time.Millisecond,
		Timeout:        30 * time.Second,
	}
	if cfg.RPCURL == "" {
		return cfg, ErrNotConfigured
	}
	if cfg.ConfirmRetries <= 0 {
		cfg.ConfirmRetries = 1
	}

	headerName := strings.TrimSpace(os.Getenv("WALLET_API_KEY_HEADER"))
	if headerName == "" {
		headerName = "Authorization"
	}
	prefix := os.Getenv("WALLET_API_KEY_PREFIX")
	if headerName == "Authorization" && strings.TrimSpace(prefix) == "" {
		prefix = "Bearer "
	}
	cfg.HeaderName = headerName
	cfg.HeaderPrefix = prefix
	return cfg, nil
}

func envInt(k string, def int) int {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
