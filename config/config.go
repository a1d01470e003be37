package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Diamond is the aggregator's router contract, deployed at the same
// address on every supported chain.
const Diamond = "0x1231DEB6f5749EF6cE6943a275A1D3E7486F4EaE"

// Config holds the application configuration
type Config struct {
	BaseURL string
	APIKey  string
	DataDir string

	// PrivateKey signs transactions; hex encoded, no 0x prefix
	// required.
	PrivateKey     string
	DefaultChainID int64
	RPCEndpoints   map[int64]string
	Routers        map[int64][]string

	// Quote hygiene thresholds.
	StablePegLow  float64
	StablePegHigh float64
	PriceFloors   map[string]float64

	QuoteTTLSeconds int

	// Monitoring ceilings before a transaction is declared stuck.
	SwapCeilingMinutes   int
	BridgeCeilingMinutes int
}

// QuoteTTL is how long a fetched quote stays executable.
func (c *Config) QuoteTTL() time.Duration {
	return time.Duration(c.QuoteTTLSeconds) * time.Second
}

// SwapCeiling is the stuck threshold for same-chain swaps.
func (c *Config) SwapCeiling() time.Duration {
	return time.Duration(c.SwapCeilingMinutes) * time.Minute
}

// BridgeCeiling is the stuck threshold for cross-chain swaps.
func (c *Config) BridgeCeiling() time.Duration {
	return time.Duration(c.BridgeCeilingMinutes) * time.Minute
}

var globalConfig *Config

// Load reads configuration from environment variables and config file
func Load() (*Config, error) {
	viper.SetConfigName(".xswap")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME")
	viper.AddConfigPath(".")

	// Set default values
	viper.SetDefault("base_url", "https://li.quest/v1")
	viper.SetDefault("default_chain_id", 1)
	viper.SetDefault("stable_peg_low", 0.90)
	viper.SetDefault("stable_peg_high", 1.10)
	viper.SetDefault("quote_ttl_seconds", 60)
	viper.SetDefault("swap_ceiling_minutes", 30)
	viper.SetDefault("bridge_ceiling_minutes", 60)
	viper.SetDefault("rpc_endpoints", map[string]string{
		"1":     "https://eth.llamarpc.com",
		"10":    "https://mainnet.optimism.io",
		"137":   "https://polygon-rpc.com",
		"42161": "https://arb1.arbitrum.io/rpc",
	})

	// Read from environment variables
	viper.SetEnvPrefix("XSWAP")
	viper.AutomaticEnv()

	// Read config file (optional)
	_ = viper.ReadInConfig()

	endpoints, err := chainMap(viper.GetStringMapString("rpc_endpoints"))
	if err != nil {
		return nil, err
	}

	routers := make(map[int64][]string, len(endpoints))
	for chainID := range endpoints {
		routers[chainID] = []string{Diamond}
	}
	extra, err := chainListMap(viper.GetStringMapStringSlice("routers"))
	if err != nil {
		return nil, err
	}
	for chainID, addrs := range extra {
		routers[chainID] = append(routers[chainID], addrs...)
	}

	floors, err := floatMap("price_floors", viper.GetStringMapString("price_floors"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		BaseURL:         viper.GetString("base_url"),
		APIKey:          viper.GetString("api_key"),
		DataDir:         viper.GetString("data_dir"),
		PrivateKey:      viper.GetString("private_key"),
		DefaultChainID:  viper.GetInt64("default_chain_id"),
		RPCEndpoints:    endpoints,
		Routers:         routers,
		StablePegLow:    viper.GetFloat64("stable_peg_low"),
		StablePegHigh:   viper.GetFloat64("stable_peg_high"),
		PriceFloors:     floors,
		QuoteTTLSeconds: viper.GetInt("quote_ttl_seconds"),

		SwapCeilingMinutes:   viper.GetInt("swap_ceiling_minutes"),
		BridgeCeilingMinutes: viper.GetInt("bridge_ceiling_minutes"),
	}

	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(home, ".xswap")
	}

	globalConfig = cfg
	return cfg, nil
}

// RequireSigner validates the fields a transaction-signing command
// needs. Read-only commands (quotes, token lists, status by hash) work
// without them.
func (c *Config) RequireSigner() error {
	if c.PrivateKey == "" {
		return fmt.Errorf("private key not found. Please set XSWAP_PRIVATE_KEY environment variable or add private_key to the .xswap.yaml config file")
	}
	if _, ok := c.RPCEndpoints[c.DefaultChainID]; !ok {
		return fmt.Errorf("no RPC endpoint configured for chain %d", c.DefaultChainID)
	}
	return nil
}

func chainMap(raw map[string]string) (map[int64]string, error) {
	out := make(map[int64]string, len(raw))
	for key, value := range raw {
		chainID, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("rpc_endpoints key %q is not a chain id", key)
		}
		out[chainID] = value
	}
	return out, nil
}

func floatMap(name string, raw map[string]string) (map[string]float64, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]float64, len(raw))
	for key, value := range raw {
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("%s value %q for %s is not a number", name, value, key)
		}
		out[strings.ToUpper(key)] = v
	}
	return out, nil
}

func chainListMap(raw map[string][]string) (map[int64][]string, error) {
	out := make(map[int64][]string, len(raw))
	for key, values := range raw {
		chainID, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("routers key %q is not a chain id", key)
		}
		out[chainID] = values
	}
	return out, nil
}

// Get returns the global configuration
func Get() *Config {
	if globalConfig == nil {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
			os.Exit(1)
		}
		return cfg
	}
	return globalConfig
}

// Set updates the global configuration
func Set(cfg *Config) {
	globalConfig = cfg
}
