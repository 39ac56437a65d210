package domain

import "strings"

// CategoryAll 表示不按分类过滤
const CategoryAll = "all"

// DefaultMaxPrice 默认价格上限
const DefaultMaxPrice = 1000

// Filter 商品目录的过滤条件，四个条件取交集
type Filter struct {
	Category  string  `json:"category"`
	Search    string  `json:"search"`
	MinPrice  float64 `json:"minPrice"`
	MaxPrice  float64 `json:"maxPrice"`
	MinRating float64 `json:"minRating"`
}

// DefaultFilter 返回初始过滤条件：全部分类、无搜索词、价格 0~1000、评分不限
func DefaultFilter() Filter {
	return Filter{
		Category:  CategoryAll,
		MaxPrice:  DefaultMaxPrice,
		MinRating: 0,
	}
}

// FilterPatch 过滤条件的部分更新，nil 字段表示保持原值
type FilterPatch struct {
	Category  *string  `json:"category,omitempty"`
	Search    *string  `json:"search,omitempty"`
	MinPrice  *float64 `json:"minPrice,omitempty"`
	MaxPrice  *float64 `json:"maxPrice,omitempty"`
	MinRating *float64 `json:"minRating,omitempty"`
}

// IsEmpty 补丁是否不包含任何字段
func (p FilterPatch) IsEmpty() bool {
	return p.Category == nil && p.Search == nil && p.MinPrice == nil && p.MaxPrice == nil && p.MinRating == nil
}

// Merge 浅合并补丁，返回新的过滤条件。
// 不校验取值：minPrice > maxPrice 之类的组合会被接受，只是匹配不到任何商品。
func (f Filter) Merge(p FilterPatch) Filter {
	if p.Category != nil {
		f.Category = *p.Category
	}
	if p.Search != nil {
		f.Search = *p.Search
	}
	if p.MinPrice != nil {
		f.MinPrice = *p.MinPrice
	}
	if p.MaxPrice != nil {
		f.MaxPrice = *p.MaxPrice
	}
	if p.MinRating != nil {
		f.MinRating = *p.MinRating
	}
	return f
}

// Matches 判断商品是否满足过滤条件
func (f Filter) Matches(p NormalizedProduct) bool {
	if f.Category != CategoryAll && p.Category != f.Category {
		return false
	}
	if f.Search != "" {
		// 只匹配名称，描述不参与
		if !strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Search)) {
			return false
		}
	}
	if p.Price < f.MinPrice || p.Price > f.MaxPrice {
		return false
	}
	return p.Rating >= f.MinRating
}
