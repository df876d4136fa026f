package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"wallet-score-lab/internal/domain"
)

// EnvPrefix prefixes every environment override, e.g. WALLETSCORE_LOG_LEVEL.
const EnvPrefix = "WALLETSCORE"

// APIKeyEnv is the conventional environment variable for the provider key.
const APIKeyEnv = "COVALENT_API_KEY"

// ErrMissingAPIKey is returned when a command needs the provider but no key is set.
var ErrMissingAPIKey = errors.New("provider api key is not set (" + APIKeyEnv + ")")

type Config struct {
	Provider ProviderConfig `mapstructure:"provider"`
	Resolver ResolverConfig `mapstructure:"resolver"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Paths    PathsConfig    `mapstructure:"paths"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Log      LogConfig      `mapstructure:"log"`
	Server   ServerConfig   `mapstructure:"server"`
	Markets  []MarketConfig `mapstructure:"markets"`
}

type ProviderConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	ChainID    int           `mapstructure:"chain_id"`
	PageSize   int           `mapstructure:"page_size"`
	MaxPages   int           `mapstructure:"max_pages"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	MaxDelay   time.Duration `mapstructure:"max_delay"`
}

type ResolverConfig struct {
	MinInterval time.Duration `mapstructure:"min_interval"`
	Cache       string        `mapstructure:"cache"` // none | memory | redis
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
	RedisURL    string        `mapstructure:"redis_url"`
}

type FetchConfig struct {
	Workers   int `mapstructure:"workers"`
	BatchSize int `mapstructure:"batch_size"`
}

type PathsConfig struct {
	Wallets   string `mapstructure:"wallets"`
	Raw       string `mapstructure:"raw"`
	Decoded   string `mapstructure:"decoded"`
	Processed string `mapstructure:"processed"`
	Scores    string `mapstructure:"scores"`
}

type StorageConfig struct {
	PostgresDSN   string `mapstructure:"postgres_dsn"`
	ClickhouseDSN string `mapstructure:"clickhouse_dsn"`
	MaxConns      int32  `mapstructure:"max_conns"`
	Migrate       bool   `mapstructure:"migrate"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type ServerConfig struct {
	HTTPAddr   string `mapstructure:"http_addr"`
	Schedule   string `mapstructure:"schedule"`
	RunOnStart bool   `mapstructure:"run_on_start"`
}

// MarketConfig lists the contracts of one lending market.
// Contracts are a list rather than a map so symbol case survives viper.
type MarketConfig struct {
	Name      string           `mapstructure:"name"`
	Protocol  string           `mapstructure:"protocol"`
	Contracts []ContractConfig `mapstructure:"contracts"`
}

type ContractConfig struct {
	Symbol  string `mapstructure:"symbol"`
	Address string `mapstructure:"address"`
}

// Load reads configuration from an optional YAML file, a local .env file and
// the environment. An empty path skips the file.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.BindEnv("provider.api_key", EnvPrefix+"_PROVIDER_API_KEY", APIKeyEnv); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if len(cfg.Markets) == 0 {
		cfg.Markets = DefaultMarkets()
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider.base_url", "https://api.covalenthq.com/v1")
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.chain_id", 1)
	v.SetDefault("provider.page_size", 10000)
	v.SetDefault("provider.max_pages", 10)
	v.SetDefault("provider.timeout", "30s")
	v.SetDefault("provider.max_retries", 3)
	v.SetDefault("provider.retry_delay", "500ms")
	v.SetDefault("provider.max_delay", "10s")

	v.SetDefault("resolver.min_interval", "200ms")
	v.SetDefault("resolver.cache", "memory")
	v.SetDefault("resolver.cache_ttl", "24h")
	v.SetDefault("resolver.redis_url", "")

	v.SetDefault("fetch.workers", 1)
	v.SetDefault("fetch.batch_size", 1000)

	v.SetDefault("paths.wallets", "data/wallets.csv")
	v.SetDefault("paths.raw", "data/raw_transactions.csv")
	v.SetDefault("paths.decoded", "data/raw_transactions_decoded.csv")
	v.SetDefault("paths.processed", "data/processed_data.csv")
	v.SetDefault("paths.scores", "data/scored_wallets.csv")

	v.SetDefault("storage.postgres_dsn", "")
	v.SetDefault("storage.clickhouse_dsn", "")
	v.SetDefault("storage.max_conns", 4)
	v.SetDefault("storage.migrate", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", false)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", true)

	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.schedule", "@every 6h")
	v.SetDefault("server.run_on_start", true)
}

// DefaultMarkets returns the Compound V2 and V3 markets in config form.
func DefaultMarkets() []MarketConfig {
	markets := domain.DefaultMarkets()
	out := make([]MarketConfig, 0, len(markets))
	for _, m := range markets {
		out = append(out, fromMarket(m))
	}
	return out
}

func fromMarket(m domain.Market) MarketConfig {
	mc := MarketConfig{Name: m.Name, Protocol: m.Protocol}
	for symbol, addr := range m.Contracts {
		mc.Contracts = append(mc.Contracts, ContractConfig{Symbol: symbol, Address: addr})
	}
	sort.Slice(mc.Contracts, func(i, j int) bool {
		return mc.Contracts[i].Symbol < mc.Contracts[j].Symbol
	})
	return mc
}

// DomainMarkets converts the configured markets.
func (c Config) DomainMarkets() []domain.Market {
	out := make([]domain.Market, 0, len(c.Markets))
	for _, mc := range c.Markets {
		m := domain.Market{Name: mc.Name, Protocol: mc.Protocol, Contracts: make(map[string]string, len(mc.Contracts))}
		for _, cc := range mc.Contracts {
			m.Contracts[cc.Symbol] = cc.Address
		}
		out = append(out, m)
	}
	return out
}

// ContractSet builds the target contract set from the configured markets.
func (c Config) ContractSet() *domain.ContractSet {
	return domain.NewContractSet(c.DomainMarkets()...)
}

// Validate checks the values every command depends on.
func (c Config) Validate() error {
	var errs []error

	if c.Provider.BaseURL == "" {
		errs = append(errs, errors.New("provider.base_url is required"))
	}
	if c.Provider.ChainID <= 0 {
		errs = append(errs, fmt.Errorf("provider.chain_id must be positive, got %d", c.Provider.ChainID))
	}
	if c.Provider.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("provider.page_size must be positive, got %d", c.Provider.PageSize))
	}
	if c.Provider.MaxPages < 1 {
		errs = append(errs, fmt.Errorf("provider.max_pages must be at least 1, got %d", c.Provider.MaxPages))
	}
	if c.Provider.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("provider.max_retries must not be negative, got %d", c.Provider.MaxRetries))
	}
	if c.Fetch.Workers < 1 {
		errs = append(errs, fmt.Errorf("fetch.workers must be at least 1, got %d", c.Fetch.Workers))
	}

	switch c.Resolver.Cache {
	case "", "none", "memory":
	case "redis":
		if c.Resolver.RedisURL == "" {
			errs = append(errs, errors.New("resolver.redis_url is required when resolver.cache is redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("resolver.cache must be none, memory or redis, got %q", c.Resolver.Cache))
	}

	for name, p := range map[string]string{
		"paths.wallets":   c.Paths.Wallets,
		"paths.raw":       c.Paths.Raw,
		"paths.decoded":   c.Paths.Decoded,
		"paths.processed": c.Paths.Processed,
		"paths.scores":    c.Paths.Scores,
	} {
		if p == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
		}
	}

	if len(c.Markets) == 0 {
		errs = append(errs, errors.New("at least one market is required"))
	}
	for _, m := range c.Markets {
		if m.Name == "" {
			errs = append(errs, errors.New("market name is required"))
		}
		if len(m.Contracts) == 0 {
			errs = append(errs, fmt.Errorf("market %s has no contracts", m.Name))
		}
		for _, cc := range m.Contracts {
			if !common.IsHexAddress(cc.Address) {
				errs = append(errs, fmt.Errorf("market %s: contract %s has invalid address %q", m.Name, cc.Symbol, cc.Address))
			}
		}
	}

	return errors.Join(errs...)
}

// RequireAPIKey reports ErrMissingAPIKey when no provider key is configured.
func (c Config) RequireAPIKey() error {
	if strings.TrimSpace(c.Provider.APIKey) == "" {
		return ErrMissingAPIKey
	}
	return nil
}
