// Package domain 定义商品目录与购物车的领域模型和核心业务规则。
// 领域模型独立于外部依赖（HTTP、缓存、数据库），所有函数均为纯函数或显式的状态变更。
package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// SourceTag 标识商品来自哪个上游目录
type SourceTag string

const (
	SourceFakeStore SourceTag = "fs" // 简单结构：标量 image + 对象 rating
	SourceDummyJSON SourceTag = "dj" // 丰富结构：images 列表 + 标量 rating + stock/brand
)

// PlaceholderImage 两个来源都没有图片时使用的占位图
const PlaceholderImage = "/assets/images/placeholder.jpg"

var (
	ErrUnknownSource   = errors.New("unknown source tag")
	ErrMalformedRecord = errors.New("malformed source record")
)

// Valid 判断标签是否为已知来源
func (t SourceTag) Valid() bool {
	return t == SourceFakeStore || t == SourceDummyJSON
}

// UniqueID 由来源标签和来源内 ID 组成跨目录唯一的商品标识，例如 "fs-5" / "dj-5"。
func UniqueID(tag SourceTag, id int64) string {
	return fmt.Sprintf("%s-%d", tag, id)
}

// Rating 同时兼容两种评分形态：标量 4.5 或对象 {"rate":4.5,"count":120}。
// 无法识别的形态解码为 0，不返回错误。
type Rating struct {
	Rate   float64
	Count  int
	Scalar bool
}

// ScalarRating 构造标量形态的评分
func ScalarRating(rate float64) Rating {
	return Rating{Rate: rate, Scalar: true}
}

// RateCount 构造对象形态的评分
func RateCount(rate float64, count int) Rating {
	return Rating{Rate: rate, Count: count}
}

// UnmarshalJSON 实现 json.Unmarshaler
func (r *Rating) UnmarshalJSON(b []byte) error {
	*r = Rating{}

	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		r.Rate = n
		r.Scalar = true
		return nil
	}

	var obj map[string]any
	if err := json.Unmarshal(b, &obj); err == nil {
		if rate, ok := obj["rate"].(float64); ok {
			r.Rate = rate
		}
		if count, ok := obj["count"].(float64); ok {
			r.Count = int(count)
		}
	}
	return nil
}

// MarshalJSON 按原始形态输出
func (r Rating) MarshalJSON() ([]byte, error) {
	if r.Scalar {
		return json.Marshal(r.Rate)
	}
	return json.Marshal(struct {
		Rate  float64 `json:"rate"`
		Count int     `json:"count"`
	}{r.Rate, r.Count})
}

// SimpleRecord 简单来源（fs）的原始商品记录
type SimpleRecord struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Price       float64 `json:"price"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Image       string  `json:"image"`
	Rating      Rating  `json:"rating"`
}

// RichRecord 丰富来源（dj）的原始商品记录
type RichRecord struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Price       float64  `json:"price"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Images      []string `json:"images"`
	Thumbnail   string   `json:"thumbnail"`
	Rating      Rating   `json:"rating"`
	Stock       *int     `json:"stock,omitempty"`
	Brand       *string  `json:"brand,omitempty"`
}

// SourceRecord 显式打标签的原始记录。
// 来源在进入系统时（provider 边界）确定并保存，任何调用方都不再通过字段探测推断来源。
type SourceRecord struct {
	Source SourceTag
	Simple *SimpleRecord
	Rich   *RichRecord
}

// FromSimple 包装 fs 记录
func FromSimple(r SimpleRecord) SourceRecord {
	return SourceRecord{Source: SourceFakeStore, Simple: &r}
}

// FromRich 包装 dj 记录
func FromRich(r RichRecord) SourceRecord {
	return SourceRecord{Source: SourceDummyJSON, Rich: &r}
}

// FromSimpleList 批量包装 fs 记录
func FromSimpleList(records []SimpleRecord) []SourceRecord {
	out := make([]SourceRecord, 0, len(records))
	for _, r := range records {
		out = append(out, FromSimple(r))
	}
	return out
}

// FromRichList 批量包装 dj 记录
func FromRichList(records []RichRecord) []SourceRecord {
	out := make([]SourceRecord, 0, len(records))
	for _, r := range records {
		out = append(out, FromRich(r))
	}
	return out
}

// LocalID 返回来源内 ID（跨来源不唯一）
func (r SourceRecord) LocalID() int64 {
	switch {
	case r.Simple != nil:
		return r.Simple.ID
	case r.Rich != nil:
		return r.Rich.ID
	}
	return 0
}

// UniqueID 返回跨来源唯一标识，与 Normalize().UniqueID 相同
func (r SourceRecord) UniqueID() string {
	return UniqueID(r.Source, r.LocalID())
}

type taggedRecord struct {
	Source SourceTag       `json:"source"`
	Record json.RawMessage `json:"record"`
}

// MarshalJSON 输出 {"source":"fs","record":{...}}，缓存和快照中的副本保留来源标签
func (r SourceRecord) MarshalJSON() ([]byte, error) {
	var payload any
	switch r.Source {
	case SourceFakeStore:
		payload = r.Simple
	case SourceDummyJSON:
		payload = r.Rich
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, r.Source)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(taggedRecord{Source: r.Source, Record: raw})
}

// UnmarshalJSON 按保存的标签解码对应结构
func (r *SourceRecord) UnmarshalJSON(b []byte) error {
	var t taggedRecord
	if err := json.Unmarshal(b, &t); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}

	switch t.Source {
	case SourceFakeStore:
		var s SimpleRecord
		if err := json.Unmarshal(t.Record, &s); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedRecord, err)
		}
		*r = FromSimple(s)
	case SourceDummyJSON:
		var d RichRecord
		if err := json.Unmarshal(t.Record, &d); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedRecord, err)
		}
		*r = FromRich(d)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSource, t.Source)
	}
	return nil
}

// ClassifyRaw 为未打标签的原始 JSON 记录确定来源。
// 判定规则只有一条：存在标量字符串 image 字段即为 fs，否则为 dj。
// 这是系统中唯一做结构探测的地方。
func ClassifyRaw(raw []byte) (SourceRecord, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return SourceRecord{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}

	if img, ok := fields["image"]; ok && isJSONString(img) {
		var s SimpleRecord
		if err := json.Unmarshal(raw, &s); err != nil {
			return SourceRecord{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
		}
		return FromSimple(s), nil
	}

	var d RichRecord
	if err := json.Unmarshal(raw, &d); err != nil {
		return SourceRecord{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	return FromRich(d), nil
}

func isJSONString(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '"'
}

// NormalizedProduct 统一后的商品视图，按需生成，不作为数据源保存
type NormalizedProduct struct {
	UniqueID    string   `json:"uniqueId"`
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Price       float64  `json:"price"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Image       string   `json:"image"`
	Images      []string `json:"images"`
	Rating      float64  `json:"rating"`
	Brand       *string  `json:"brand,omitempty"`
	Stock       *int     `json:"stock,omitempty"`
}

// Normalize 将任一来源的记录转换为 NormalizedProduct。
// 全函数：缺失或异常字段按回退规则处理，不返回错误；价格、评分、库存不做范围校验。
func (r SourceRecord) Normalize() NormalizedProduct {
	switch {
	case r.Source == SourceFakeStore && r.Simple != nil:
		return normalizeSimple(r.Simple)
	case r.Source == SourceDummyJSON && r.Rich != nil:
		return normalizeRich(r.Rich)
	}

	p := NormalizedProduct{
		Image:  PlaceholderImage,
		Images: []string{PlaceholderImage},
	}
	if r.Source.Valid() {
		p.UniqueID = UniqueID(r.Source, 0)
	}
	return p
}

// NormalizeAll 批量规范化，保持顺序
func NormalizeAll(records []SourceRecord) []NormalizedProduct {
	out := make([]NormalizedProduct, 0, len(records))
	for _, r := range records {
		out = append(out, r.Normalize())
	}
	return out
}

func normalizeSimple(s *SimpleRecord) NormalizedProduct {
	image := pickImage(s.Image, nil, "")
	return NormalizedProduct{
		UniqueID:    UniqueID(SourceFakeStore, s.ID),
		ID:          s.ID,
		Name:        s.Title,
		Price:       s.Price,
		Description: s.Description,
		Category:    s.Category,
		Image:       image,
		Images:      pickImages(nil, image),
		Rating:      s.Rating.Rate,
	}
}

func normalizeRich(d *RichRecord) NormalizedProduct {
	image := pickImage("", d.Images, d.Thumbnail)
	p := NormalizedProduct{
		UniqueID:    UniqueID(SourceDummyJSON, d.ID),
		ID:          d.ID,
		Name:        d.Title,
		Price:       d.Price,
		Description: d.Description,
		Category:    d.Category,
		Image:       image,
		Images:      pickImages(d.Images, image),
		Rating:      d.Rating.Rate,
	}
	if d.Brand != nil {
		brand := *d.Brand
		p.Brand = &brand
	}
	if d.Stock != nil {
		stock := *d.Stock
		p.Stock = &stock
	}
	return p
}

// pickImage 主图优先级：标量 image > images[0] > thumbnail > 占位图
func pickImage(scalar string, images []string, thumbnail string) string {
	if scalar != "" {
		return scalar
	}
	if len(images) > 0 && images[0] != "" {
		return images[0]
	}
	if thumbnail != "" {
		return thumbnail
	}
	return PlaceholderImage
}

// pickImages 图集优先使用非空 images，否则退化为只含主图的单元素列表
func pickImages(images []string, primary string) []string {
	if len(images) > 0 {
		out := make([]string, len(images))
		copy(out, images)
		return out
	}
	return []string{primary}
}
