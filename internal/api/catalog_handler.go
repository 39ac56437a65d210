package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/shopcart/internal/domain"
	"github.com/MorseWayne/shopcart/internal/middleware"
	"github.com/MorseWayne/shopcart/internal/resp"
	"github.com/MorseWayne/shopcart/internal/service"
)

const maxNormalizeBody = 1 << 20

// CatalogHandler 目录浏览相关的HTTP处理器
type CatalogHandler struct {
	browse  service.BrowseService
	catalog service.CatalogService
	logger  *zap.Logger
}

// NewCatalogHandler 创建目录处理器实例
func NewCatalogHandler(browse service.BrowseService, catalog service.CatalogService, logger *zap.Logger) *CatalogHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogHandler{browse: browse, catalog: catalog, logger: logger}
}

// ListProducts 当前会话的商品视图
// GET /api/v1/catalog/products?category=&search=&minPrice=&maxPrice=&minRating=
// 查询参数会合并进会话的过滤条件
func (h *CatalogHandler) ListProducts(c *gin.Context) {
	patch, err := parseFilterQuery(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	page, err := h.browse.Products(c.Request.Context(), middleware.CartSessionID(c), patch)
	if err != nil {
		fail(c, h.logger, err, resp.CodeInternalError)
		return
	}
	success(c, page)
}

// GetFilter 当前过滤条件
// GET /api/v1/catalog/filter
func (h *CatalogHandler) GetFilter(c *gin.Context) {
	f, err := h.browse.Filter(c.Request.Context(), middleware.CartSessionID(c))
	if err != nil {
		fail(c, h.logger, err, resp.CodeInternalError)
		return
	}
	success(c, f)
}

// UpdateFilter 部分更新过滤条件
// PATCH /api/v1/catalog/filter
func (h *CatalogHandler) UpdateFilter(c *gin.Context) {
	var patch domain.FilterPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "invalid filter payload")
		return
	}

	page, err := h.browse.Products(c.Request.Context(), middleware.CartSessionID(c), patch)
	if err != nil {
		fail(c, h.logger, err, resp.CodeInternalError)
		return
	}
	success(c, page)
}

// ResetFilter 恢复默认过滤条件
// DELETE /api/v1/catalog/filter
func (h *CatalogHandler) ResetFilter(c *gin.Context) {
	page, err := h.browse.ResetFilter(c.Request.Context(), middleware.CartSessionID(c))
	if err != nil {
		fail(c, h.logger, err, resp.CodeInternalError)
		return
	}
	success(c, page)
}

// Categories 分类选项，"all" 在首位
// GET /api/v1/catalog/categories
func (h *CatalogHandler) Categories(c *gin.Context) {
	cats, err := h.catalog.Categories(c.Request.Context())
	if err != nil {
		fail(c, h.logger, err, resp.CodeUpstreamError)
		return
	}
	success(c, cats)
}

// Search 远程全文搜索，结果替换会话视图
// GET /api/v1/catalog/search?q=
func (h *CatalogHandler) Search(c *gin.Context) {
	page, err := h.browse.Search(c.Request.Context(), middleware.CartSessionID(c), c.Query("q"))
	if err != nil {
		fail(c, h.logger, err, resp.CodeUpstreamError)
		return
	}
	success(c, page)
}

// GetProduct 商品详情及同分类推荐
// GET /api/v1/catalog/products/:uniqueId
func (h *CatalogHandler) GetProduct(c *gin.Context) {
	detail, err := h.browse.Product(c.Request.Context(), middleware.CartSessionID(c), c.Param("uniqueId"))
	if err != nil {
		fail(c, h.logger, err, resp.CodeInternalError)
		return
	}
	success(c, detail)
}

// Refresh 强制重新拉取两个上游目录（跳过缓存）
// POST /api/v1/catalog/refresh
func (h *CatalogHandler) Refresh(c *gin.Context) {
	if err := h.catalog.Refresh(c.Request.Context(), true); err != nil {
		fail(c, h.logger, err, resp.CodeUpstreamError)
		return
	}
	success(c, h.catalog.Status())
}

// Status 目录快照状态
// GET /api/v1/catalog/status
func (h *CatalogHandler) Status(c *gin.Context) {
	success(c, h.catalog.Status())
}

// Normalize 将一条未打标签的原始上游记录归一化
// POST /api/v1/catalog/normalize
func (h *CatalogHandler) Normalize(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxNormalizeBody))
	if err != nil {
		badRequest(c, "failed to read request body")
		return
	}

	rec, err := domain.ClassifyRaw(body)
	if err != nil {
		if errors.Is(err, domain.ErrMalformedRecord) {
			badRequest(c, "body must be a JSON product record")
			return
		}
		fail(c, h.logger, err, resp.CodeInternalError)
		return
	}

	resp.WriteJSON(c.Writer, http.StatusOK, resp.CodeOK, "success", gin.H{
		"source":  rec.Source,
		"product": rec.Normalize(),
	}, getRequestID(c), "")
}
