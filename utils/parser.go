package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dgate-org/dgate-go/types"
	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// ValidateStruct runs the struct-tag validation shared by every package.
func ValidateStruct(v interface{}) error {
	return validate.Struct(v)
}

// ParseConfig parses and validates a Config from JSON
func ParseConfig(data []byte) (*types.Config, error) {
	var config types.Config

	if err := json.Unmarshal(data, &config); err != nil {
		return nil, types.NewError(types.CodeInvalidConfig, fmt.Sprintf("failed to parse config: %v", err), err)
	}

	if err := ValidateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// ValidateConfig checks the struct tags of config and its addresses. Address
// errors also match types.ErrInvalidAddress.
func ValidateConfig(config *types.Config) error {
	if err := ValidateStruct(config); err != nil {
		return types.NewError(types.CodeInvalidConfig, fmt.Sprintf("validation failed: %v", err), err)
	}
	if err := ValidateAddress(config.WalletAddress); err != nil {
		return types.NewError(types.CodeInvalidConfig, "invalid wallet address", err)
	}
	if config.ContractAddress != "" {
		if err := ValidateAddress(config.ContractAddress); err != nil {
			return types.NewError(types.CodeInvalidConfig, "invalid contract address", err)
		}
	}
	return nil
}

// ConfigFromEnv builds a Config from DGATE_* environment variables.
// Unset variables fall back to defaults: Mainnet, no overrides, info logging.
func ConfigFromEnv() (*types.Config, error) {
	config := types.Config{
		WalletAddress:   getEnv("DGATE_WALLET_ADDRESS", ""),
		Chain:           types.Chain(getEnv("DGATE_CHAIN", string(types.ChainMainnet))),
		ContractAddress: getEnv("DGATE_CONTRACT_ADDRESS", ""),
		RPCURL:          getEnv("DGATE_RPC_URL", ""),
		Timeout:         getEnvAsDuration("DGATE_TIMEOUT", 30*time.Second),
		PollInterval:    getEnvAsDuration("DGATE_POLL_INTERVAL", 4*time.Second),
		LogLevel:        getEnv("DGATE_LOG_LEVEL", "info"),
		EnableMetrics:   getEnvAsBool("DGATE_ENABLE_METRICS", false),
	}

	if chain, err := types.ParseChain(string(config.Chain)); err == nil {
		config.Chain = chain
	}

	if err := ValidateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
