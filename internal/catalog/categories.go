package catalog

import (
	"strings"

	"github.com/MorseWayne/shopcart/internal/domain"
)

// Categories 合并两个来源的分类列表，生成分类选项：
// 非字符串与空字符串被丢弃，统一小写去空格后按首次出现顺序去重，最前面固定为 "all"。
func Categories(a, b []any) []string {
	out := []string{domain.CategoryAll}
	seen := map[string]struct{}{domain.CategoryAll: {}}

	add := func(values []any) {
		for _, v := range values {
			name, ok := v.(string)
			if !ok {
				continue
			}
			name = strings.ToLower(strings.TrimSpace(name))
			if name == "" {
				continue
			}
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	add(a)
	add(b)
	return out
}
