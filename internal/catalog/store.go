// Package catalog 维护合并后的商品目录、当前过滤条件和过滤结果视图。
package catalog

import (
	"github.com/MorseWayne/shopcart/internal/domain"
)

// Store 目录状态容器。
// 过滤视图在每次 Load / SetFilter 时同步全量重算，任何时刻都等于对当前条件重新过滤的结果。
// Store 不是并发安全的，由持有者保证单写者。
type Store struct {
	records    []domain.SourceRecord
	normalized []domain.NormalizedProduct
	filter     domain.Filter
	view       []int
	remote     []domain.SourceRecord
	searchMode bool
}

// NewStore 创建使用默认过滤条件的空目录
func NewStore() *Store {
	return &Store{filter: domain.DefaultFilter()}
}

// Load 整体替换原始记录（先 A 后 B），并按当前过滤条件重算视图。
// 加载会退出远程搜索模式。
func (s *Store) Load(recordsA, recordsB []domain.SourceRecord) {
	records := make([]domain.SourceRecord, 0, len(recordsA)+len(recordsB))
	records = append(records, recordsA...)
	records = append(records, recordsB...)

	s.records = records
	s.normalized = domain.NormalizeAll(records)
	s.remote = nil
	s.searchMode = false
	s.recompute()
}

// SetFilter 浅合并补丁并同步重算视图，返回合并后的条件。
// 修改条件同样会退出远程搜索模式。
func (s *Store) SetFilter(patch domain.FilterPatch) domain.Filter {
	s.filter = s.filter.Merge(patch)
	s.remote = nil
	s.searchMode = false
	s.recompute()
	return s.filter
}

// ResetFilter 恢复默认过滤条件
func (s *Store) ResetFilter() domain.Filter {
	s.filter = domain.DefaultFilter()
	s.remote = nil
	s.searchMode = false
	s.recompute()
	return s.filter
}

// ReplaceView 用远程搜索结果整体替换视图（不与本地过滤结果合并）
func (s *Store) ReplaceView(results []domain.SourceRecord) {
	s.remote = make([]domain.SourceRecord, len(results))
	copy(s.remote, results)
	s.searchMode = true
}

// SearchMode 当前视图是否来自远程搜索
func (s *Store) SearchMode() bool {
	return s.searchMode
}

// Query 返回当前视图，保持加载顺序
func (s *Store) Query() []domain.SourceRecord {
	if s.searchMode {
		out := make([]domain.SourceRecord, len(s.remote))
		copy(out, s.remote)
		return out
	}
	out := make([]domain.SourceRecord, 0, len(s.view))
	for _, i := range s.view {
		out = append(out, s.records[i])
	}
	return out
}

// Products 返回当前视图的规范化形式
func (s *Store) Products() []domain.NormalizedProduct {
	if s.searchMode {
		return domain.NormalizeAll(s.remote)
	}
	out := make([]domain.NormalizedProduct, 0, len(s.view))
	for _, i := range s.view {
		out = append(out, s.normalized[i])
	}
	return out
}

// Filter 当前过滤条件
func (s *Store) Filter() domain.Filter {
	return s.filter
}

// Len 当前视图中的商品数
func (s *Store) Len() int {
	if s.searchMode {
		return len(s.remote)
	}
	return len(s.view)
}

// Total 已加载的原始记录总数
func (s *Store) Total() int {
	return len(s.records)
}

// Find 在全部原始记录（以及远程搜索结果）中按 uniqueId 查找
func (s *Store) Find(uniqueID string) (domain.SourceRecord, bool) {
	for i := range s.normalized {
		if s.normalized[i].UniqueID == uniqueID {
			return s.records[i], true
		}
	}
	for _, r := range s.remote {
		if r.UniqueID() == uniqueID {
			return r, true
		}
	}
	return domain.SourceRecord{}, false
}

// Related 同分类的其他商品，最多 limit 个，limit <= 0 表示不限
func (s *Store) Related(uniqueID string, limit int) []domain.NormalizedProduct {
	rec, ok := s.Find(uniqueID)
	if !ok {
		return nil
	}
	category := rec.Normalize().Category

	var out []domain.NormalizedProduct
	for _, p := range s.normalized {
		if p.UniqueID == uniqueID || p.Category != category {
			continue
		}
		out = append(out, p)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

func (s *Store) recompute() {
	view := make([]int, 0, len(s.normalized))
	for i, p := range s.normalized {
		if s.filter.Matches(p) {
			view = append(view, i)
		}
	}
	s.view = view
}
