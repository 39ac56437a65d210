// Package main 提供目录调试用的命令行工具：浏览过滤、列出分类、归一化单条原始记录
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/MorseWayne/shopcart/internal/config"
	"github.com/MorseWayne/shopcart/internal/logger"
	"github.com/MorseWayne/shopcart/internal/provider"
)

var (
	fakeStoreURL string
	dummyJSONURL string
	fetchTimeout time.Duration
	verbose      bool
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "shopctl",
		Short:         "Inspect the merged storefront catalog from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// 默认值取自环境变量/.env，与服务端保持一致
	defaults := catalogDefaults()
	root.PersistentFlags().StringVar(&fakeStoreURL, "fakestore-url", defaults.FakeStoreURL, "base URL of the simple catalog API")
	root.PersistentFlags().StringVar(&dummyJSONURL, "dummyjson-url", defaults.DummyJSONURL, "base URL of the rich catalog API")
	root.PersistentFlags().DurationVar(&fetchTimeout, "timeout", defaults.FetchTimeout, "per-request upstream timeout")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log upstream requests to stderr")

	root.AddCommand(newBrowseCmd(), newCategoriesCmd(), newNormalizeCmd())
	return root
}

func catalogDefaults() config.CatalogConfig {
	cfg, err := config.Load()
	if err != nil {
		return config.CatalogConfig{
			FakeStoreURL: "https://fakestoreapi.com",
			DummyJSONURL: "https://dummyjson.com",
			FetchTimeout: 8 * time.Second,
		}
	}
	return cfg.Catalog
}

// newLogger CLI 默认静默，-v 时输出 console 格式的 debug 日志
func newLogger() *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	lg, err := logger.New("dev", "debug", "console", "shopctl", "")
	if err != nil {
		return zap.NewNop()
	}
	return lg
}

func newProvider(lg *zap.Logger) provider.Provider {
	return provider.NewHTTPProvider(provider.HTTPOptions{
		FakeStoreURL:   fakeStoreURL,
		DummyJSONURL:   dummyJSONURL,
		DummyJSONLimit: 100,
		Timeout:        fetchTimeout,
	}, nil, lg)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
