package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
)

// LevelStore goleveldb 存储
// 写操作在 leveldb 事务中执行, 同一进程内的并发写不会丢失更新;
// 数据库文件锁保证同一时间只有一个进程打开
type LevelStore struct {
	db *leveldb.DB
}

// OpenLevelStore 打开或创建数据库
func OpenLevelStore(path string) (*LevelStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}
	return &LevelStore{db: db}, nil
}

// Close 关闭数据库
func (s *LevelStore) Close() error {
	return s.db.Close()
}

// List 返回记录列表
func (s *LevelStore) List(_ context.Context, account string, chainID int64) ([]Transaction, error) {
	data, err := s.db.Get([]byte(Key(account, chainID)), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return []Transaction{}, nil
		}
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	return decodeList(data)
}

// Append 在列表头部插入一条记录
func (s *LevelStore) Append(ctx context.Context, account string, chainID int64, tx Transaction) error {
	return s.modify(ctx, Key(account, chainID), func(txs []Transaction) ([]Transaction, error) {
		return prepend(txs, tx), nil
	})
}

// Update 修改记录
func (s *LevelStore) Update(ctx context.Context, account string, chainID int64, id string, fn UpdateFunc) error {
	return s.modify(ctx, Key(account, chainID), func(txs []Transaction) ([]Transaction, error) {
		if err := applyUpdate(txs, id, fn); err != nil {
			return nil, err
		}
		return txs, nil
	})
}

// modify 在事务中读-改-写
func (s *LevelStore) modify(ctx context.Context, key string, fn func([]Transaction) ([]Transaction, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tr, err := s.db.OpenTransaction()
	if err != nil {
		return fmt.Errorf("open transaction: %w", err)
	}

	data, err := tr.Get([]byte(key), nil)
	if err != nil && !errors.Is(err, leveldb.ErrNotFound) {
		tr.Discard()
		return fmt.Errorf("read ledger: %w", err)
	}

	txs, err := decodeList(data)
	if err != nil {
		tr.Discard()
		return err
	}
	txs, err = fn(txs)
	if err != nil {
		tr.Discard()
		return err
	}

	encoded, err := json.Marshal(txs)
	if err != nil {
		tr.Discard()
		return fmt.Errorf("encode transactions: %w", err)
	}
	if err := tr.Put([]byte(key), encoded, nil); err != nil {
		tr.Discard()
		return fmt.Errorf("write ledger: %w", err)
	}
	if err := tr.Commit(); err != nil {
		return fmt.Errorf("commit ledger: %w", err)
	}
	return nil
}
