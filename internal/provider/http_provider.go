package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/MorseWayne/shopcart/internal/domain"
)

// HTTPOptions 上游地址与超时
type HTTPOptions struct {
	FakeStoreURL   string
	DummyJSONURL   string
	DummyJSONLimit int
	Timeout        time.Duration
}

type httpProvider struct {
	opts   HTTPOptions
	client *http.Client
	logger *zap.Logger
}

// NewHTTPProvider 创建访问两个公开目录 API 的 Provider。client 为 nil 时使用默认客户端。
func NewHTTPProvider(opts HTTPOptions, client *http.Client, logger *zap.Logger) Provider {
	if client == nil {
		client = &http.Client{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	opts.FakeStoreURL = strings.TrimRight(opts.FakeStoreURL, "/")
	opts.DummyJSONURL = strings.TrimRight(opts.DummyJSONURL, "/")
	return &httpProvider{opts: opts, client: client, logger: logger}
}

// dummyList DummyJSON 列表接口的分页包装
type dummyList struct {
	Products []domain.RichRecord `json:"products"`
	Total    int                 `json:"total"`
}

func (p *httpProvider) FetchCatalogA(ctx context.Context) ([]domain.SourceRecord, error) {
	var records []domain.SimpleRecord
	if err := p.getJSON(ctx, p.opts.FakeStoreURL+"/products", &records); err != nil {
		return nil, fmt.Errorf("fetch catalog %s: %w", domain.SourceFakeStore, err)
	}
	return domain.FromSimpleList(records), nil
}

func (p *httpProvider) FetchCatalogB(ctx context.Context) ([]domain.SourceRecord, error) {
	u := p.opts.DummyJSONURL + "/products"
	if p.opts.DummyJSONLimit > 0 {
		u += "?limit=" + strconv.Itoa(p.opts.DummyJSONLimit)
	}

	var list dummyList
	if err := p.getJSON(ctx, u, &list); err != nil {
		return nil, fmt.Errorf("fetch catalog %s: %w", domain.SourceDummyJSON, err)
	}
	return domain.FromRichList(list.Products), nil
}

func (p *httpProvider) FetchCategoriesA(ctx context.Context) ([]any, error) {
	var raw []any
	if err := p.getJSON(ctx, p.opts.FakeStoreURL+"/products/categories", &raw); err != nil {
		return nil, fmt.Errorf("fetch categories %s: %w", domain.SourceFakeStore, err)
	}
	return raw, nil
}

// FetchCategoriesB DummyJSON 新版接口返回 {"slug","name","url"} 对象，这里取 slug；
// 其他形态原样保留，交给下游清洗。
func (p *httpProvider) FetchCategoriesB(ctx context.Context) ([]any, error) {
	var raw []any
	if err := p.getJSON(ctx, p.opts.DummyJSONURL+"/products/categories", &raw); err != nil {
		return nil, fmt.Errorf("fetch categories %s: %w", domain.SourceDummyJSON, err)
	}
	for i, v := range raw {
		if obj, ok := v.(map[string]any); ok {
			if slug, ok := obj["slug"].(string); ok {
				raw[i] = slug
			}
		}
	}
	return raw, nil
}

func (p *httpProvider) SearchByText(ctx context.Context, query string) ([]domain.SourceRecord, error) {
	u := p.opts.DummyJSONURL + "/products/search?q=" + url.QueryEscape(query)

	var list dummyList
	if err := p.getJSON(ctx, u, &list); err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	return domain.FromRichList(list.Products), nil
}

func (p *httpProvider) getJSON(ctx context.Context, u string, dest any) error {
	ctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make HTTP request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	p.logger.Debug("upstream request",
		zap.String("url", u),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		p.logger.Warn("upstream returned error status",
			zap.String("url", u),
			zap.Int("status", resp.StatusCode))
		return fmt.Errorf("%w: HTTP %d", ErrUpstream, resp.StatusCode)
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("%w: failed to unmarshal response: %v", ErrUpstream, err)
	}
	return nil
}
