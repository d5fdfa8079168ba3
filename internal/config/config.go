package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every setting for the service, loaded from environment
// variables with an optional .env file. Ledger-level validation (fee rate
// ceiling, non-zero collector, non-zero feed) happens at ledger
// construction; Load only carries values.
type Config struct {
	ServerPort int    `mapstructure:"SERVER_PORT"`
	LogLevel   string `mapstructure:"LOG_LEVEL"`
	LogFormat  string `mapstructure:"LOG_FORMAT"`

	APIHMACSecret      string `mapstructure:"API_HMAC_SECRET"`
	OperatorHMACSecret string `mapstructure:"OPERATOR_HMAC_SECRET"`
	AdminHMACSecret    string `mapstructure:"ADMIN_HMAC_SECRET"`
	HMACClockSkewSecs  int    `mapstructure:"HMAC_CLOCK_SKEW_SECONDS"`

	IdempotencyWindowSecs int    `mapstructure:"IDEMPOTENCY_WINDOW_SECONDS"`
	IdempotencyStorePath  string `mapstructure:"IDEMPOTENCY_STORE_PATH"`
	PostgresDSN           string `mapstructure:"POSTGRES_DSN"`

	AMQPURL       string `mapstructure:"AMQP_URL"`
	EventExchange string `mapstructure:"EVENT_EXCHANGE"`

	ChainRPCURL          string `mapstructure:"CHAIN_RPC_URL"`
	ChainPrivateKey      string `mapstructure:"CHAIN_PRIVATE_KEY"`
	NativePriceFeedAddr  string `mapstructure:"NATIVE_PRICE_FEED_ADDRESS"`
	StaticNativePriceUSD string `mapstructure:"STATIC_NATIVE_PRICE_USD"`
	StaticPriceDecimals  int    `mapstructure:"STATIC_PRICE_DECIMALS"`

	OwnerAddress        string `mapstructure:"OWNER_ADDRESS"`
	FeeCollectorAddress string `mapstructure:"FEE_COLLECTOR_ADDRESS"`
	PlatformFeeRateBps  uint32 `mapstructure:"PLATFORM_FEE_RATE_BPS"`

	SupportedCountries string `mapstructure:"SUPPORTED_COUNTRIES"`
	SupportedProviders string `mapstructure:"SUPPORTED_PROVIDERS"`
}

// Load reads configuration from the environment, falling back to an optional
// .env file in path.
func Load(path string) (Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", 3000)
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "console")
	viper.SetDefault("HMAC_CLOCK_SKEW_SECONDS", 60)
	viper.SetDefault("IDEMPOTENCY_WINDOW_SECONDS", 3600)
	viper.SetDefault("IDEMPOTENCY_STORE_PATH", "")
	viper.SetDefault("EVENT_EXCHANGE", "remitrails.events")
	viper.SetDefault("STATIC_NATIVE_PRICE_USD", "325000000000") // $3250, 8 decimals
	viper.SetDefault("STATIC_PRICE_DECIMALS", 8)
	viper.SetDefault("PLATFORM_FEE_RATE_BPS", 0)
	viper.SetDefault("SUPPORTED_COUNTRIES", "KE,NG,GH,UG,TZ,RW")
	viper.SetDefault("SUPPORTED_PROVIDERS", "mpesa,airtel,opay,kuda,mtn")

	keys := []string{
		"SERVER_PORT", "LOG_LEVEL", "LOG_FORMAT",
		"API_HMAC_SECRET", "OPERATOR_HMAC_SECRET", "ADMIN_HMAC_SECRET",
		"HMAC_CLOCK_SKEW_SECONDS", "IDEMPOTENCY_WINDOW_SECONDS",
		"IDEMPOTENCY_STORE_PATH", "POSTGRES_DSN", "AMQP_URL", "EVENT_EXCHANGE",
		"CHAIN_RPC_URL", "CHAIN_PRIVATE_KEY", "NATIVE_PRICE_FEED_ADDRESS",
		"STATIC_NATIVE_PRICE_USD", "STATIC_PRICE_DECIMALS",
		"OWNER_ADDRESS", "FEE_COLLECTOR_ADDRESS", "PLATFORM_FEE_RATE_BPS",
		"SUPPORTED_COUNTRIES", "SUPPORTED_PROVIDERS",
	}
	for _, k := range keys {
		_ = viper.BindEnv(k)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	if cfg.OwnerAddress == "" {
		return Config{}, errors.New("OWNER_ADDRESS is required")
	}
	if cfg.FeeCollectorAddress == "" {
		return Config{}, errors.New("FEE_COLLECTOR_ADDRESS is required")
	}
	return cfg, nil
}

// HMACClockSkew returns the signature timestamp tolerance.
func (c Config) HMACClockSkew() time.Duration {
	return time.Duration(c.HMACClockSkewSecs) * time.Second
}

// IdempotencyWindow returns how long cached responses are replayed.
func (c Config) IdempotencyWindow() time.Duration {
	return time.Duration(c.IdempotencyWindowSecs) * time.Second
}

// Countries splits the configured country allow-list.
func (c Config) Countries() []string {
	return splitList(c.SupportedCountries)
}

// Providers splits the configured provider allow-list.
func (c Config) Providers() []string {
	return splitList(c.SupportedProviders)
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
