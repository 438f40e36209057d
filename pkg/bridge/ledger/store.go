package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/shuail0/cross-bridge/pkg/bridge/common"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("transaction not found")

// UpdateFunc 修改单条记录
type UpdateFunc func(tx *Transaction) error

// Store 按 (account, chainId) 分组的交易记录存储, 列表按时间倒序
type Store interface {
	// List 返回记录列表, 最新的在前
	List(ctx context.Context, account string, chainID int64) ([]Transaction, error)
	// Append 在列表头部插入一条记录
	Append(ctx context.Context, account string, chainID int64, tx Transaction) error
	// Update 修改 id 对应的记录, 不存在时返回 ErrNotFound
	Update(ctx context.Context, account string, chainID int64, id string, fn UpdateFunc) error
}

// Key 存储 key: transactions_{account}_{chainId}
// 合法地址统一转为 EIP-55 校验和格式, 大小写不同的同一地址共用一个列表
func Key(account string, chainID int64) string {
	if ethcommon.IsHexAddress(account) {
		account = ethcommon.HexToAddress(account).Hex()
	}
	return fmt.Sprintf("%s_%s_%d", common.LedgerKeyPrefix, account, chainID)
}

// decodeList 解析 JSON 列表, 空值视为空列表
func decodeList(data []byte) ([]Transaction, error) {
	if len(data) == 0 {
		return []Transaction{}, nil
	}
	var txs []Transaction
	if err := json.Unmarshal(data, &txs); err != nil {
		return nil, fmt.Errorf("decode transactions: %w", err)
	}
	if txs == nil {
		txs = []Transaction{}
	}
	return txs, nil
}

// prepend 插入到列表头部
func prepend(txs []Transaction, tx Transaction) []Transaction {
	out := make([]Transaction, 0, len(txs)+1)
	out = append(out, tx)
	return append(out, txs...)
}

// applyUpdate 在列表中查找并修改记录
func applyUpdate(txs []Transaction, id string, fn UpdateFunc) error {
	for i := range txs {
		if txs[i].ID == id {
			return fn(&txs[i])
		}
	}
	return ErrNotFound
}

// MarkClaimed 记录目标链上的领取交易
func MarkClaimed(ctx context.Context, s Store, account string, chainID int64, id, claimHash string) error {
	return s.Update(ctx, account, chainID, id, func(tx *Transaction) error {
		tx.Claimed = true
		tx.ClaimHash = claimHash
		tx.ClaimHashLink.ClaimHash = common.Ellipsis(claimHash, 6, 4)
		tx.ClaimHashLink.ClaimHashURL = tx.ToNetwork.TxURL(claimHash)
		return nil
	})
}
