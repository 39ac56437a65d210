// Package repo 实现购物车快照的持久化，负责与数据库、缓存的交互。
package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/MorseWayne/shopcart/internal/domain"
)

// DefaultStorageKey 购物车快照的存储键前缀
const DefaultStorageKey = "ecommerce-cart-storage"

// CartSnapshotRepository 定义购物车快照的存取接口。
// 快照不存在时 Load 返回 (nil, nil)。
type CartSnapshotRepository interface {
	Load(ctx context.Context, sessionID string) (*domain.CartSnapshot, error)
	Save(ctx context.Context, sessionID string, snap domain.CartSnapshot) error
	Delete(ctx context.Context, sessionID string) error
}

// StorageKey 生成会话的快照键，例如 "ecommerce-cart-storage:3f2a..."
func StorageKey(prefix, sessionID string) string {
	if prefix == "" {
		prefix = DefaultStorageKey
	}
	return prefix + ":" + sessionID
}

// cartSnapshotRepo MySQL 实现
type cartSnapshotRepo struct {
	db     *sql.DB
	prefix string
}

// NewCartSnapshotRepository 创建基于 MySQL cart_snapshots 表的快照仓储
func NewCartSnapshotRepository(db *sql.DB, prefix string) CartSnapshotRepository {
	return &cartSnapshotRepo{db: db, prefix: prefix}
}

// Load 读取快照
func (r *cartSnapshotRepo) Load(ctx context.Context, sessionID string) (*domain.CartSnapshot, error) {
	query := `
		SELECT payload, updated_at
		FROM cart_snapshots
		WHERE storage_key = ?
	`

	var payload []byte
	snap := &domain.CartSnapshot{}
	err := r.db.QueryRowContext(ctx, query, StorageKey(r.prefix, sessionID)).Scan(&payload, &snap.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load cart snapshot: %w", err)
	}

	updatedAt := snap.UpdatedAt
	if err := json.Unmarshal(payload, snap); err != nil {
		return nil, fmt.Errorf("failed to decode cart snapshot: %w", err)
	}
	if snap.UpdatedAt.IsZero() {
		snap.UpdatedAt = updatedAt
	}
	return snap, nil
}

// Save 写入快照（存在则覆盖并递增版本号）
func (r *cartSnapshotRepo) Save(ctx context.Context, sessionID string, snap domain.CartSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode cart snapshot: %w", err)
	}

	query := `
		INSERT INTO cart_snapshots (storage_key, payload, total_items, total_price)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			payload = VALUES(payload),
			total_items = VALUES(total_items),
			total_price = VALUES(total_price),
			version = version + 1
	`

	_, err = r.db.ExecContext(ctx, query,
		StorageKey(r.prefix, sessionID),
		payload,
		snap.TotalItems,
		decimal.NewFromFloat(snap.TotalPrice).Round(2),
	)
	if err != nil {
		return fmt.Errorf("failed to save cart snapshot: %w", err)
	}
	return nil
}

// Delete 删除快照，不存在时不报错
func (r *cartSnapshotRepo) Delete(ctx context.Context, sessionID string) error {
	query := `DELETE FROM cart_snapshots WHERE storage_key = ?`
	if _, err := r.db.ExecContext(ctx, query, StorageKey(r.prefix, sessionID)); err != nil {
		return fmt.Errorf("failed to delete cart snapshot: %w", err)
	}
	return nil
}
