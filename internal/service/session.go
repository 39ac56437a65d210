package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/MorseWayne/shopcart/internal/catalog"
	"github.com/MorseWayne/shopcart/internal/debounce"
	"github.com/MorseWayne/shopcart/internal/domain"
	"github.com/MorseWayne/shopcart/internal/repo"
)

// Session 一个匿名购物会话：独立的目录视图和购物车。
// Store 与 Cart 本身不是并发安全的，只能在 SessionRegistry.With 的回调中访问。
type Session struct {
	ID string

	mu             sync.Mutex
	store          *catalog.Store
	cart           *domain.Cart
	catalogVersion uint64
	lastSeen       time.Time
	evicted        bool
	persist        *debounce.Debouncer[domain.CartSnapshot]
	repo           repo.CartSnapshotRepository
}

// Store 会话的目录视图
func (s *Session) Store() *catalog.Store { return s.store }

// Cart 会话的购物车
func (s *Session) Cart() *domain.Cart { return s.cart }

// CartChanged 购物车变更后调用，快照经防抖后写回存储
func (s *Session) CartChanged() {
	s.persist.Call(s.cart.Snapshot())
}

// SaveNow 取消待写回的快照并立即同步保存当前状态
func (s *Session) SaveNow(ctx context.Context) error {
	s.persist.Stop()
	return writeSnapshot(ctx, s.repo, s.ID, s.cart.Snapshot())
}

// writeSnapshot 保存快照；空且关闭的购物车与新建的无异，直接删除存储中的记录
func writeSnapshot(ctx context.Context, r repo.CartSnapshotRepository, sessionID string, snap domain.CartSnapshot) error {
	if len(snap.Items) == 0 && !snap.IsOpen {
		return r.Delete(ctx, sessionID)
	}
	return r.Save(ctx, sessionID, snap)
}

// SessionOptions 会话注册表参数
type SessionOptions struct {
	PersistDelay time.Duration // 写回防抖间隔
	IdleTimeout  time.Duration // 空闲多久后从内存中回收
	SaveTimeout  time.Duration
	Debounce     []debounce.Option
}

// SessionRegistry 管理内存中的会话。
// 每个会话有自己的互斥锁，同一会话的请求串行执行，不同会话互不阻塞。
type SessionRegistry struct {
	catalog CatalogService
	repo    repo.CartSnapshotRepository
	opts    SessionOptions
	logger  *zap.Logger
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
	// 已移出 sessions、快照尚未写回完成的会话
	draining map[string]chan struct{}
}

// NewSessionRegistry 创建会话注册表
func NewSessionRegistry(cs CatalogService, r repo.CartSnapshotRepository, opts SessionOptions, logger *zap.Logger) *SessionRegistry {
	if opts.SaveTimeout <= 0 {
		opts.SaveTimeout = 5 * time.Second
	}
	return &SessionRegistry{
		catalog:  cs,
		repo:     r,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*Session),
		draining: make(map[string]chan struct{}),
	}
}

// With 在会话锁内执行 fn。会话不存在时创建，并从持久化存储恢复购物车；
// 共享目录版本前进时，会话的 Store 在这里重新加载（过滤条件保持不变）。
func (r *SessionRegistry) With(ctx context.Context, sessionID string, fn func(s *Session) error) error {
	var s *Session
	for {
		var err error
		if s, err = r.get(ctx, sessionID); err != nil {
			return err
		}
		s.mu.Lock()
		if !s.evicted {
			break
		}
		// 已被回收，快照写回后重新创建
		s.mu.Unlock()
	}
	defer s.mu.Unlock()

	if snap := r.catalog.Snapshot(); snap.Version != s.catalogVersion {
		s.store.Load(snap.A, snap.B)
		s.catalogVersion = snap.Version
	}
	s.lastSeen = r.now()
	return fn(s)
}

func (r *SessionRegistry) get(ctx context.Context, sessionID string) (*Session, error) {
	for {
		r.mu.Lock()
		if s, ok := r.sessions[sessionID]; ok {
			r.mu.Unlock()
			return s, nil
		}
		done, draining := r.draining[sessionID]
		r.mu.Unlock()
		if !draining {
			break
		}
		// 等回收的写回完成，否则会读到旧快照
		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	// 在注册表锁外读取快照，避免慢存储阻塞其他会话
	cart := domain.NewCart()
	snap, err := r.repo.Load(ctx, sessionID)
	if err != nil {
		r.logger.Warn("failed to restore cart, starting empty",
			zap.String("session_id", sessionID), zap.Error(err))
	} else if snap != nil {
		cart = domain.RestoreCart(*snap)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[sessionID]; ok {
		return s, nil
	}
	s := r.newSession(sessionID, cart)
	r.sessions[sessionID] = s
	return s, nil
}

func (r *SessionRegistry) newSession(sessionID string, cart *domain.Cart) *Session {
	s := &Session{
		ID:       sessionID,
		store:    catalog.NewStore(),
		cart:     cart,
		lastSeen: r.now(),
		repo:     r.repo,
	}
	s.persist = debounce.New(func(snap domain.CartSnapshot) {
		ctx, cancel := context.WithTimeout(context.Background(), r.opts.SaveTimeout)
		defer cancel()
		if err := writeSnapshot(ctx, r.repo, sessionID, snap); err != nil {
			r.logger.Error("failed to persist cart snapshot",
				zap.String("session_id", sessionID), zap.Error(err))
		}
	}, r.opts.PersistDelay, r.opts.Debounce...)
	return s
}

// Len 内存中的会话数
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// FlushAll 立即写回所有待保存的快照，用于优雅关闭
func (r *SessionRegistry) FlushAll() int {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	flushed := 0
	for _, s := range sessions {
		if s.persist.Flush() {
			flushed++
		}
	}
	return flushed
}

// Evict 回收空闲超时的会话。
// 注册表锁内只做摘除，写回在锁外进行，期间同一会话的新请求等待写回完成。
func (r *SessionRegistry) Evict() int {
	if r.opts.IdleTimeout <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.opts.IdleTimeout)

	r.mu.Lock()
	var idle []*Session
	for id, s := range r.sessions {
		if !s.mu.TryLock() {
			continue
		}
		if !s.lastSeen.Before(cutoff) {
			s.mu.Unlock()
			continue
		}
		// 会话锁一直持有到写回结束
		s.evicted = true
		idle = append(idle, s)
		delete(r.sessions, id)
		r.draining[id] = make(chan struct{})
	}
	r.mu.Unlock()

	for _, s := range idle {
		s.persist.Flush()
		r.mu.Lock()
		close(r.draining[s.ID])
		delete(r.draining, s.ID)
		r.mu.Unlock()
		s.mu.Unlock()
	}

	if len(idle) > 0 {
		r.logger.Debug("evicted idle sessions", zap.Int("count", len(idle)))
	}
	return len(idle)
}

// RunJanitor 定期回收空闲会话，直到 ctx 结束
func (r *SessionRegistry) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Evict()
		}
	}
}
