package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryStore 内存存储, 值以 JSON 保存以保持与持久化实现一致的拷贝语义
type MemoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// List 返回记录列表
func (s *MemoryStore) List(_ context.Context, account string, chainID int64) ([]Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return decodeList(s.data[Key(account, chainID)])
}

// Append 在列表头部插入一条记录
func (s *MemoryStore) Append(_ context.Context, account string, chainID int64, tx Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := Key(account, chainID)
	txs, err := decodeList(s.data[key])
	if err != nil {
		return err
	}
	return s.put(key, prepend(txs, tx))
}

// Update 修改记录
func (s *MemoryStore) Update(_ context.Context, account string, chainID int64, id string, fn UpdateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := Key(account, chainID)
	txs, err := decodeList(s.data[key])
	if err != nil {
		return err
	}
	if err := applyUpdate(txs, id, fn); err != nil {
		return err
	}
	return s.put(key, txs)
}

func (s *MemoryStore) put(key string, txs []Transaction) error {
	data, err := json.Marshal(txs)
	if err != nil {
		return fmt.Errorf("encode transactions: %w", err)
	}
	s.data[key] = data
	return nil
}
