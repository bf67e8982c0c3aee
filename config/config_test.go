package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lendd.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.FileExists(t, path)
	require.Equal(t, "127.0.0.1:8545", cfg.RPCAddress)
	require.Equal(t, "./lendd-data", cfg.DataDir)
	require.Equal(t, uint64(250), cfg.Genesis.FeeBps)
	require.Equal(t, uint64(20), cfg.Genesis.BatchLimit)

	// The default treasury is empty, so the file cannot boot as-is.
	require.Error(t, cfg.Validate())
}

func TestLoadParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lendd.toml")
	content := `RPCAddress = "0.0.0.0:9000"
DataDir = "/var/lib/lendd"
Env = "production"

[genesis]
Treasury = "0x00000000000000000000000000000000000000FE"
FeeBps = 100
MinDurationSeconds = 3600
MaxDurationSeconds = 86400
MinInterestRateBps = 10
MaxInterestRateBps = 20000
BatchLimit = 5
Collections = ["0x00000000000000000000000000000000000000AA"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:9000", cfg.RPCAddress)
	require.Equal(t, "production", cfg.Env)
	require.NoError(t, cfg.Validate())

	params, err := cfg.LoanParams()
	require.NoError(t, err)
	require.Equal(t, uint64(100), params.FeeBps)
	require.Equal(t, uint64(5), params.BatchLimit)
	require.Equal(t, common.HexToAddress("0x00000000000000000000000000000000000000FE"), params.Treasury)

	collections := cfg.GenesisCollections()
	require.Len(t, collections, 1)
	require.Equal(t, common.HexToAddress("0x00000000000000000000000000000000000000AA"), collections[0])
}

func TestValidateRejectsBadAddresses(t *testing.T) {
	cfg := &Config{Genesis: Genesis{
		Treasury:           "not-an-address",
		FeeBps:             250,
		MinDurationSeconds: 3600,
		MaxDurationSeconds: 86400,
		MinInterestRateBps: 1,
		MaxInterestRateBps: 50000,
		BatchLimit:         10,
	}}
	require.Error(t, cfg.Validate())

	cfg.Genesis.Treasury = "0x00000000000000000000000000000000000000FE"
	require.NoError(t, cfg.Validate())

	cfg.Genesis.Collections = []string{"bogus"}
	require.Error(t, cfg.Validate())
}

func TestLoanParamsValidatesBounds(t *testing.T) {
	cfg := &Config{Genesis: Genesis{
		Treasury:           "0x00000000000000000000000000000000000000FE",
		FeeBps:             20_000, // above 100%
		MinDurationSeconds: 3600,
		MaxDurationSeconds: 86400,
		MinInterestRateBps: 1,
		MaxInterestRateBps: 50000,
		BatchLimit:         10,
	}}
	_, err := cfg.LoanParams()
	require.Error(t, err)
}

func TestApplyDefaultsFillsBlanks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lendd.toml")
	content := `Env = "test"

[genesis]
Treasury = "0x00000000000000000000000000000000000000FE"
FeeBps = 250
MinDurationSeconds = 3600
MaxDurationSeconds = 86400
MinInterestRateBps = 1
MaxInterestRateBps = 50000
BatchLimit = 10
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:8545", cfg.RPCAddress)
	require.Equal(t, "./lendd-data", cfg.DataDir)
}
