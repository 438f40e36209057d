package main

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shuail0/cross-bridge/pkg/bridge/chain"
	"github.com/shuail0/cross-bridge/pkg/bridge/common"
	"github.com/shuail0/cross-bridge/pkg/bridge/ledger"
)

const (
	testKey    = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"
	testKeyEnv = "BRIDGECTL_TEST_KEY"
)

var (
	bridgeAddr = ethcommon.HexToAddress("0x1111111111111111111111111111111111111111")
	usdtAddr   = ethcommon.HexToAddress("0x2222222222222222222222222222222222222222")
)

// rpcNode 最小 JSON-RPC 节点, 记录收到的交易, 回执立即可用
type rpcNode struct {
	mu        sync.Mutex
	balance   *big.Int
	allowance *big.Int
	sent      []*types.Transaction
}

func (n *rpcNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     json.RawMessage   `json:"id"`
		Method string            `json:"method"`
		Params []json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	n.mu.Lock()
	result, msg := n.handle(req.Method, req.Params)
	n.mu.Unlock()

	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	if msg != "" {
		resp["error"] = map[string]any{"code": -32000, "message": msg}
	} else {
		resp["result"] = result
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (n *rpcNode) handle(method string, params []json.RawMessage) (any, string) {
	switch method {
	case "eth_chainId":
		return "0x61", ""
	case "eth_call":
		var call struct {
			Data  hexutil.Bytes `json:"data"`
			Input hexutil.Bytes `json:"input"`
		}
		json.Unmarshal(params[0], &call)
		data := call.Input
		if len(data) == 0 {
			data = call.Data
		}
		balanceOf, _ := chain.PackBalanceOf(ethcommon.Address{})
		allowance, _ := chain.PackAllowance(ethcommon.Address{}, ethcommon.Address{})
		switch {
		case len(data) >= 4 && bytes.Equal(data[:4], balanceOf[:4]):
			return hexutil.Encode(ethcommon.LeftPadBytes(n.balance.Bytes(), 32)), ""
		case len(data) >= 4 && bytes.Equal(data[:4], allowance[:4]):
			return hexutil.Encode(ethcommon.LeftPadBytes(n.allowance.Bytes(), 32)), ""
		}
		return "0x", ""
	case "eth_getTransactionCount":
		return "0x1", ""
	case "eth_estimateGas":
		return "0xc350", ""
	case "eth_maxPriorityFeePerGas":
		return "0x3b9aca00", ""
	case "eth_getBlockByNumber":
		return map[string]any{
			"parentHash":       ethcommon.Hash{}.Hex(),
			"sha3Uncles":       types.EmptyUncleHash.Hex(),
			"miner":            ethcommon.Address{}.Hex(),
			"stateRoot":        ethcommon.Hash{}.Hex(),
			"transactionsRoot": types.EmptyTxsHash.Hex(),
			"receiptsRoot":     types.EmptyReceiptsHash.Hex(),
			"logsBloom":        hexutil.Encode(make([]byte, 256)),
			"difficulty":       "0x0",
			"number":           "0x64",
			"gasLimit":         "0x1c9c380",
			"gasUsed":          "0x0",
			"timestamp":        "0x64",
			"extraData":        "0x",
			"mixHash":          ethcommon.Hash{}.Hex(),
			"nonce":            "0x0000000000000000",
			"baseFeePerGas":    "0x3b9aca00",
		}, ""
	case "eth_sendRawTransaction":
		var raw hexutil.Bytes
		json.Unmarshal(params[0], &raw)
		tx := new(types.Transaction)
		if err := tx.UnmarshalBinary(raw); err != nil {
			return nil, err.Error()
		}
		n.sent = append(n.sent, tx)
		return tx.Hash().Hex(), ""
	case "eth_getTransactionReceipt":
		if len(n.sent) == 0 {
			return nil, ""
		}
		return map[string]any{
			"type":              "0x2",
			"status":            "0x1",
			"cumulativeGasUsed": "0xc350",
			"logsBloom":         hexutil.Encode(make([]byte, 256)),
			"logs":              []any{},
			"transactionHash":   n.sent[len(n.sent)-1].Hash().Hex(),
			"gasUsed":           "0xc350",
			"effectiveGasPrice": "0x77359400",
			"blockHash":         ethcommon.HexToHash("0x01").Hex(),
			"blockNumber":       "0x65",
			"transactionIndex":  "0x0",
		}, ""
	}
	return nil, "method not found: " + method
}

func (n *rpcNode) transactions() []*types.Transaction {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*types.Transaction(nil), n.sent...)
}

// nodeFixture 启动节点并写入指向它的配置
func nodeFixture(t *testing.T, node *rpcNode) (string, string) {
	t.Helper()
	srv := httptest.NewServer(node)
	t.Cleanup(srv.Close)
	t.Setenv(testKeyEnv, testKey)
	return writeConfig(t, srv.URL, "private_key_env: "+testKeyEnv+"\nreceipt: poll\npoll_interval: 10ms\n")
}

// runInteractive 以终端模式运行, input 作为用户输入
func runInteractive(t *testing.T, configPath, input string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	a := &app{out: &out, in: strings.NewReader(input), interactive: func() bool { return true }}
	cmd := newAppCmd(a)
	cmd.SetArgs(append([]string{"--config", configPath, "--env", filepath.Join(t.TempDir(), "missing.env")}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func walletAddress(t *testing.T) string {
	t.Helper()
	w, err := chain.NewKeyWallet(testKey, nil)
	require.NoError(t, err)
	return w.Address().Hex()
}

func transferArgs(extra ...string) []string {
	return append([]string{"transfer", "--from", "97", "--to", "11155111", "--token", "USDT"}, extra...)
}

func approveArgs(extra ...string) []string {
	return append([]string{"approve", "--from", "97", "--to", "11155111", "--token", "USDT"}, extra...)
}

func TestTransferCmdYes(t *testing.T) {
	node := &rpcNode{balance: big.NewInt(5_000_000), allowance: big.NewInt(10_000_000)}
	configPath, ledgerPath := nodeFixture(t, node)

	out, err := run(t, configPath, transferArgs("--amount", "1.5", "--yes")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Now you can claim your USDT on Sepolia.")
	assert.Contains(t, out, "1.5 USDT")

	sent := node.transactions()
	require.Len(t, sent, 1)
	want, err := chain.PackRequestBridge(usdtAddr, big.NewInt(1_500_000), big.NewInt(11155111))
	require.NoError(t, err)
	assert.Equal(t, bridgeAddr, *sent[0].To())
	assert.Equal(t, want, sent[0].Data())
	assert.Zero(t, sent[0].Value().Sign())

	store, err := ledger.OpenLevelStore(ledgerPath)
	require.NoError(t, err)
	defer store.Close()
	txs, err := store.List(context.Background(), walletAddress(t), 97)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, sent[0].Hash().Hex(), txs[0].RequestHash)
	assert.Equal(t, "1500000", txs[0].Amount)
}

func TestTransferCmdMax(t *testing.T) {
	node := &rpcNode{balance: big.NewInt(5_250_000), allowance: big.NewInt(10_000_000)}
	configPath, _ := nodeFixture(t, node)

	_, err := run(t, configPath, transferArgs("--max", "--yes")...)
	require.NoError(t, err)

	sent := node.transactions()
	require.Len(t, sent, 1)
	want, err := chain.PackRequestBridge(usdtAddr, big.NewInt(5_250_000), big.NewInt(11155111))
	require.NoError(t, err)
	assert.Equal(t, want, sent[0].Data())
}

func TestTransferCmdAllowanceTooLow(t *testing.T) {
	node := &rpcNode{balance: big.NewInt(5_000_000), allowance: big.NewInt(0)}
	configPath, _ := nodeFixture(t, node)

	_, err := run(t, configPath, transferArgs("--amount", "1", "--yes")...)
	assert.ErrorContains(t, err, "allowance too low, run: bridgectl approve --from 97 --to 11155111 --token USDT --amount 1")
	assert.Empty(t, node.transactions())
}

func TestTransferCmdAboveBalance(t *testing.T) {
	node := &rpcNode{balance: big.NewInt(1_000_000), allowance: big.NewInt(10_000_000)}
	configPath, _ := nodeFixture(t, node)

	_, err := run(t, configPath, transferArgs("--amount", "2", "--yes")...)
	assert.ErrorContains(t, err, "cannot transfer 2 USDT: available 1")
	assert.Empty(t, node.transactions())
}

func TestTransferCmdPrompt(t *testing.T) {
	t.Run("declined", func(t *testing.T) {
		node := &rpcNode{balance: big.NewInt(5_000_000), allowance: big.NewInt(10_000_000)}
		configPath, _ := nodeFixture(t, node)

		out, err := runInteractive(t, configPath, "n\n", transferArgs("--amount", "1")...)
		require.NoError(t, err)
		assert.Contains(t, out, "Note! Are you sure you want to transfer 1 USDT from BSC Testnet to Sepolia? [y/N]")
		assert.Contains(t, out, "transfer cancelled")
		assert.Empty(t, node.transactions())
	})

	t.Run("confirmed", func(t *testing.T) {
		node := &rpcNode{balance: big.NewInt(5_000_000), allowance: big.NewInt(10_000_000)}
		configPath, _ := nodeFixture(t, node)

		out, err := runInteractive(t, configPath, "y\n", transferArgs("--amount", "1")...)
		require.NoError(t, err)
		assert.Contains(t, out, "recorded")
		assert.Len(t, node.transactions(), 1)
	})

	t.Run("no terminal", func(t *testing.T) {
		node := &rpcNode{balance: big.NewInt(5_000_000), allowance: big.NewInt(10_000_000)}
		configPath, _ := nodeFixture(t, node)

		_, err := run(t, configPath, transferArgs("--amount", "1")...)
		assert.ErrorIs(t, err, errNotInteractive)
		assert.Empty(t, node.transactions())
	})
}

func TestApproveCmd(t *testing.T) {
	t.Run("yes", func(t *testing.T) {
		node := &rpcNode{balance: big.NewInt(0), allowance: big.NewInt(0)}
		configPath, _ := nodeFixture(t, node)

		out, err := run(t, configPath, approveArgs("--amount", "2", "--yes")...)
		require.NoError(t, err)
		assert.Contains(t, out, "Now you can transfer your USDT to Sepolia.")

		sent := node.transactions()
		require.Len(t, sent, 1)
		want, err := chain.PackApprove(bridgeAddr, big.NewInt(2_000_000))
		require.NoError(t, err)
		assert.Equal(t, usdtAddr, *sent[0].To())
		assert.Equal(t, want, sent[0].Data())
	})

	t.Run("unlimited", func(t *testing.T) {
		node := &rpcNode{balance: big.NewInt(0), allowance: big.NewInt(0)}
		configPath, _ := nodeFixture(t, node)

		_, err := run(t, configPath, approveArgs("--amount", "1", "--unlimited", "--yes")...)
		require.NoError(t, err)

		sent := node.transactions()
		require.Len(t, sent, 1)
		want, err := chain.PackApprove(bridgeAddr, common.MustParseUnits(common.MaxUint256, 0))
		require.NoError(t, err)
		assert.Equal(t, want, sent[0].Data())
	})

	t.Run("already approved", func(t *testing.T) {
		node := &rpcNode{balance: big.NewInt(0), allowance: big.NewInt(3_000_000)}
		configPath, _ := nodeFixture(t, node)

		out, err := run(t, configPath, approveArgs("--amount", "2", "--yes")...)
		require.NoError(t, err)
		assert.Contains(t, out, "USDT allowance already covers 2")
		assert.Empty(t, node.transactions())
	})

	t.Run("signature declined", func(t *testing.T) {
		node := &rpcNode{balance: big.NewInt(0), allowance: big.NewInt(0)}
		configPath, _ := nodeFixture(t, node)

		out, err := runInteractive(t, configPath, "n\n", approveArgs("--amount", "2")...)
		require.NoError(t, err)
		assert.Contains(t, out, "Sign transaction to "+usdtAddr.Hex())
		assert.Contains(t, out, "approve cancelled")
		assert.NotContains(t, out, "Error!")
		assert.Empty(t, node.transactions())
	})

	t.Run("signature accepted", func(t *testing.T) {
		node := &rpcNode{balance: big.NewInt(0), allowance: big.NewInt(0)}
		configPath, _ := nodeFixture(t, node)

		_, err := runInteractive(t, configPath, "y\n", approveArgs("--amount", "2")...)
		require.NoError(t, err)
		assert.Len(t, node.transactions(), 1)
	})

	t.Run("amount too large", func(t *testing.T) {
		node := &rpcNode{balance: big.NewInt(0), allowance: big.NewInt(0)}
		configPath, _ := nodeFixture(t, node)

		tooLarge := common.FormatUnits(new(big.Int).Lsh(big.NewInt(1), 256), 6)
		_, err := run(t, configPath, approveArgs("--amount", tooLarge, "--yes")...)
		assert.Error(t, err)
		assert.Empty(t, node.transactions())
	})
}
