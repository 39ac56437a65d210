// Package api 提供目录浏览、购物车和结算的 HTTP 处理器（gin）。
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/shopcart/internal/domain"
	"github.com/MorseWayne/shopcart/internal/middleware"
	"github.com/MorseWayne/shopcart/internal/resp"
	"github.com/MorseWayne/shopcart/internal/service"
)

// getRequestID 获取请求ID
func getRequestID(c *gin.Context) string {
	if id := middleware.RequestIDFromContext(c.Request.Context()); id != "" {
		return id
	}
	return c.GetString("request_id")
}

func success[T any](c *gin.Context, data T) {
	resp.OK(c.Writer, data, getRequestID(c), "")
}

func badRequest(c *gin.Context, message string) {
	resp.Error(c.Writer, http.StatusBadRequest, resp.CodeInvalidParam, message, getRequestID(c), "")
}

// fail 将业务错误映射为统一响应。未识别的错误使用 fallback 错误码
func fail(c *gin.Context, logger *zap.Logger, err error, fallback int) {
	reqID := getRequestID(c)

	code, message := fallback, "internal server error"
	switch {
	case errors.Is(err, domain.ErrInvalidQuantity):
		code, message = resp.CodeInvalidParam, "quantity must not be negative"
	case errors.Is(err, domain.ErrEmptyCart):
		code, message = resp.CodeInvalidParam, "cart is empty"
	case errors.Is(err, service.ErrProductNotFound):
		code, message = resp.CodeNotFound, "product not found"
	case errors.Is(err, context.DeadlineExceeded):
		code, message = resp.CodeTimeout, "request timeout"
	case fallback == resp.CodeUpstreamError:
		message = "catalog upstream unavailable"
	}

	status := resp.HTTPStatusFromCode(code)
	fields := append(middleware.LogFields(c.Request.Context()),
		zap.String("path", c.FullPath()),
		zap.Error(err))
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", fields...)
	} else {
		logger.Debug("request rejected", fields...)
	}
	resp.Error(c.Writer, status, code, message, reqID, "")
}

// parseFilterQuery 将查询参数转换为过滤补丁；未出现的参数保持原值
func parseFilterQuery(c *gin.Context) (domain.FilterPatch, error) {
	var patch domain.FilterPatch
	if v, ok := c.GetQuery("category"); ok {
		patch.Category = &v
	}
	if v, ok := c.GetQuery("search"); ok {
		patch.Search = &v
	}

	floats := []struct {
		name string
		dst  **float64
	}{
		{"minPrice", &patch.MinPrice},
		{"maxPrice", &patch.MaxPrice},
		{"minRating", &patch.MinRating},
	}
	for _, f := range floats {
		raw, ok := c.GetQuery(f.name)
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return domain.FilterPatch{}, errors.New("invalid " + f.name)
		}
		*f.dst = &v
	}
	return patch, nil
}
