package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testNetworks = `[
	{"chainId": 97, "name": "BSC Testnet", "explorer": "https://testnet.bscscan.com", "rpcURL": "https://data-seed-prebsc-1-s1.binance.org:8545", "bridgeAddress": "0x1111111111111111111111111111111111111111"},
	{"chainId": 5, "name": "Goerli", "explorer": "https://goerli.etherscan.io", "rpcURL": "https://rpc.ankr.com/eth_goerli", "wsURL": "wss://goerli.example.org"}
]`

const testTokens = `[
	{"name": "Tether", "address": "0x2222222222222222222222222222222222222222", "symbol": "USDT", "decimals": 6, "logoURI": "usdt.png"},
	{"name": "Broken", "address": "not-an-address", "symbol": "BRK", "decimals": 18}
]`

func writeConfigDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, NetworksFile), []byte(testNetworks), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, TokensDir), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, TokensDir, "97.json"), []byte(testTokens), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, TokensDir, "5.json"), []byte("{not json"), 0o644))
	return dir
}

func TestRegistry(t *testing.T) {
	reg, err := NewRegistry(writeConfigDir(t), nil)
	require.NoError(t, err)

	networks := reg.Networks()
	require.Len(t, networks, 2)
	assert.Equal(t, int64(5), networks[0].ChainID, "networks are sorted by chainId")

	n, ok := reg.NetworkByName("bsc testnet")
	require.True(t, ok)
	assert.Equal(t, int64(97), n.ChainID)
	assert.Equal(t, "https://testnet.bscscan.com/tx/0xabc", n.TxURL("0xabc"))

	n, ok = reg.NetworkByName("5")
	require.True(t, ok)
	assert.Equal(t, "Goerli", n.Name)

	_, ok = reg.Network(1)
	assert.False(t, ok)
}

func TestLoadTokens(t *testing.T) {
	dir := writeConfigDir(t)

	tests := []struct {
		name     string
		chainID  int64
		expected []string
	}{
		{name: "valid file skips invalid entries", chainID: 97, expected: []string{"USDT"}},
		{name: "invalid json yields empty list", chainID: 5, expected: []string{}},
		{name: "missing file yields empty list", chainID: 1, expected: []string{}},
		{name: "zero chain id", chainID: 0, expected: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := LoadTokens(dir, tt.chainID, nil)
			symbols := []string{}
			for _, tok := range tokens {
				symbols = append(symbols, tok.Symbol)
			}
			assert.Equal(t, tt.expected, symbols)
		})
	}
}

func TestRegistryToken(t *testing.T) {
	reg, err := NewRegistry(writeConfigDir(t), nil)
	require.NoError(t, err)

	tok, ok := reg.Token(97, "usdt")
	require.True(t, ok)
	assert.Equal(t, 6, tok.Decimals)
	assert.Equal(t, "usdt.png", tok.LogoURI)

	tok, ok = reg.Token(97, "0x2222222222222222222222222222222222222222")
	require.True(t, ok)
	assert.Equal(t, "USDT", tok.Symbol)

	_, ok = reg.Token(97, "BRK")
	assert.False(t, ok)
}

func TestLoadNetworksRejectsDuplicates(t *testing.T) {
	dir := t.TempDir()
	dup := `[{"chainId": 1, "name": "A"}, {"chainId": 1, "name": "B"}]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, NetworksFile), []byte(dup), 0o644))

	_, err := LoadNetworks(dir)
	assert.ErrorContains(t, err, "duplicate chainId")
}

func TestLoadApp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bridge.yaml")
	content := "config_dir: /etc/bridge\nreceipt: ws\npoll_interval: 5s\nlog_level: warn\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Setenv("BRIDGE_LOG_LEVEL", "debug")

	cfg, err := LoadApp(path)
	require.NoError(t, err)
	assert.Equal(t, "/etc/bridge", cfg.ConfigDir)
	assert.Equal(t, ReceiptWS, cfg.Receipt)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, "debug", cfg.LogLevel, "env overrides file")
	assert.Equal(t, "BRIDGE_PRIVATE_KEY", cfg.PrivateKeyEnv)
}

func TestLoadAppInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("receipt: sometimes\n"), 0o644))

	_, err := LoadApp(path)
	assert.ErrorContains(t, err, "invalid config")
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("BRIDGE_TEST_KEY=0xabc\n"), 0o644))
	t.Setenv("BRIDGE_TEST_KEY", "")
	os.Unsetenv("BRIDGE_TEST_KEY")

	require.NoError(t, LoadEnv(filepath.Join(dir, "missing.env"), path))

	cfg := DefaultAppConfig()
	cfg.PrivateKeyEnv = "BRIDGE_TEST_KEY"
	key, err := cfg.PrivateKey()
	require.NoError(t, err)
	assert.Equal(t, "0xabc", key)
}
