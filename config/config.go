package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"

	"nftlend/native/loan"
)

// Config captures the runtime settings for the lending daemon.
type Config struct {
	RPCAddress string  `toml:"RPCAddress"`
	DataDir    string  `toml:"DataDir"`
	LogFile    string  `toml:"LogFile"`
	Env        string  `toml:"Env"`
	Genesis    Genesis `toml:"genesis"`
}

// Genesis seeds the protocol parameters and the initial collateral whitelist
// on first start. Existing on-disk parameters always win over these values.
type Genesis struct {
	Treasury           string   `toml:"Treasury"`
	FeeBps             uint64   `toml:"FeeBps"`
	MinDurationSeconds uint64   `toml:"MinDurationSeconds"`
	MaxDurationSeconds uint64   `toml:"MaxDurationSeconds"`
	MinInterestRateBps uint64   `toml:"MinInterestRateBps"`
	MaxInterestRateBps uint64   `toml:"MaxInterestRateBps"`
	BatchLimit         uint64   `toml:"BatchLimit"`
	Collections        []string `toml:"Collections"`
}

const defaultConfig = `RPCAddress = "127.0.0.1:8545"
DataDir = "./lendd-data"
LogFile = ""
Env = "local"

[genesis]
Treasury = ""
FeeBps = 250
MinDurationSeconds = 86400
MaxDurationSeconds = 31536000
MinInterestRateBps = 1
MaxInterestRateBps = 50000
BatchLimit = 20
Collections = []
`

// Load reads the configuration from the given path, creating a commented
// default file when none exists yet.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func createDefault(path string) (*Config, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	if err := os.WriteFile(path, []byte(defaultConfig), 0o644); err != nil {
		return nil, err
	}
	cfg := &Config{}
	if _, err := toml.Decode(defaultConfig, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = "127.0.0.1:8545"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./lendd-data"
	}
}

// Validate ensures the configuration can boot a daemon.
func (c *Config) Validate() error {
	if _, err := c.LoanParams(); err != nil {
		return err
	}
	for _, collection := range c.Genesis.Collections {
		if !common.IsHexAddress(collection) {
			return fmt.Errorf("config: invalid collection address %q", collection)
		}
	}
	return nil
}

// LoanParams converts the genesis section into engine parameters.
func (c *Config) LoanParams() (loan.Params, error) {
	treasury := strings.TrimSpace(c.Genesis.Treasury)
	if !common.IsHexAddress(treasury) {
		return loan.Params{}, fmt.Errorf("config: invalid treasury address %q", treasury)
	}
	params := loan.Params{
		FeeBps:             c.Genesis.FeeBps,
		MinDurationSeconds: c.Genesis.MinDurationSeconds,
		MaxDurationSeconds: c.Genesis.MaxDurationSeconds,
		MinInterestRateBps: c.Genesis.MinInterestRateBps,
		MaxInterestRateBps: c.Genesis.MaxInterestRateBps,
		BatchLimit:         c.Genesis.BatchLimit,
		Treasury:           common.HexToAddress(treasury),
	}
	if err := params.Validate(); err != nil {
		return loan.Params{}, err
	}
	return params, nil
}

// GenesisCollections returns the parsed initial whitelist.
func (c *Config) GenesisCollections() []common.Address {
	collections := make([]common.Address, 0, len(c.Genesis.Collections))
	for _, collection := range c.Genesis.Collections {
		if common.IsHexAddress(collection) {
			collections = append(collections, common.HexToAddress(collection))
		}
	}
	return collections
}
