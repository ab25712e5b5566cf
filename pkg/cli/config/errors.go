package config

import "github.com/m-mizutani/goerr/v2"

// Sentinel errors for configuration validation
var (
	ErrConfigNotFound  = goerr.New("configuration file not found")
	ErrInvalidConfig   = goerr.New("invalid configuration")
	ErrUnknownProvider = goerr.New("unknown provider")
	ErrUnknownBackend  = goerr.New("unknown repository backend")
	ErrMissingOption   = goerr.New("required option is missing")
)

// Context keys for error values
const (
	ConfigPathKey = "config_path"
	ProviderKey   = "provider"
	BackendKey    = "backend"
	OptionKey     = "option"
	MaxTokensKey  = "max_tokens"
)
