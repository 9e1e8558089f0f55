package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"nftlend/core/types"
)

// Config is the top-level daemon configuration.
type Config struct {
	ListenAddress string  `toml:"ListenAddress"`
	DataDir       string  `toml:"DataDir"`
	NetworkName   string  `toml:"NetworkName"`
	LogPath       string  `toml:"LogPath"`
	Genesis       Genesis `toml:"Genesis"`
}

// Genesis seeds the governance root and the initial platform parameters on
// first start. It is ignored once the multisig record exists in the store.
type Genesis struct {
	Owners        []string `toml:"Owners"`
	Threshold     uint64   `toml:"Threshold"`
	Authority     string   `toml:"Authority"`
	Vault         string   `toml:"Vault"`
	FeePercentage uint32   `toml:"FeePercentage"`
	InterestRate  uint32   `toml:"InterestRate"`
	LoanToValue   uint32   `toml:"LoanToValue"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = "127.0.0.1:8645"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./lendd-data"
	}
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "lend-local"
	}
}

// Validate checks that the genesis addresses decode and the threshold fits
// the owner set.
func (c *Config) Validate() error {
	if len(c.Genesis.Owners) == 0 {
		return fmt.Errorf("config: genesis owner set is empty")
	}
	if c.Genesis.Threshold == 0 || c.Genesis.Threshold > uint64(len(c.Genesis.Owners)) {
		return fmt.Errorf("config: genesis threshold %d out of range for %d owners", c.Genesis.Threshold, len(c.Genesis.Owners))
	}
	for _, owner := range c.Genesis.Owners {
		if _, err := ParseAddress(owner); err != nil {
			return fmt.Errorf("config: genesis owner %q: %w", owner, err)
		}
	}
	if _, err := ParseAddress(c.Genesis.Authority); err != nil {
		return fmt.Errorf("config: genesis authority: %w", err)
	}
	if _, err := ParseAddress(c.Genesis.Vault); err != nil {
		return fmt.Errorf("config: genesis vault: %w", err)
	}
	return nil
}

// GenesisOwners decodes the configured owner addresses.
func (c *Config) GenesisOwners() ([]types.Address, error) {
	owners := make([]types.Address, 0, len(c.Genesis.Owners))
	for _, raw := range c.Genesis.Owners {
		addr, err := ParseAddress(raw)
		if err != nil {
			return nil, err
		}
		owners = append(owners, addr)
	}
	return owners, nil
}

// ParseAddress decodes a 20-byte hex address, accepting an optional 0x
// prefix.
func ParseAddress(raw string) (types.Address, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return types.Address{}, err
	}
	if len(decoded) != len(types.Address{}) {
		return types.Address{}, fmt.Errorf("address must be %d bytes, got %d", len(types.Address{}), len(decoded))
	}
	var addr types.Address
	copy(addr[:], decoded)
	return addr, nil
}

// createDefault creates and saves a default configuration file. The default
// single-owner genesis is only usable for local development.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		ListenAddress: "127.0.0.1:8645",
		DataDir:       "./lendd-data",
		NetworkName:   "lend-local",
		Genesis: Genesis{
			Owners:        []string{strings.Repeat("11", 20)},
			Threshold:     1,
			Authority:     strings.Repeat("aa", 20),
			Vault:         strings.Repeat("bb", 20),
			FeePercentage: 1_000,
			InterestRate:  5_000,
			LoanToValue:   50_000,
		},
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
