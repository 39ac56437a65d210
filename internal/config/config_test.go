package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("SESSION_SECRET", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Cart.StorageKey != "ecommerce-cart-storage" {
		t.Errorf("StorageKey = %q, want ecommerce-cart-storage", cfg.Cart.StorageKey)
	}
	if cfg.Checkout.TaxRate != 0.08 {
		t.Errorf("TaxRate = %v, want 0.08", cfg.Checkout.TaxRate)
	}
	if cfg.Session.Secret == "" {
		t.Error("dev session secret should be filled in")
	}
	if cfg.Catalog.FakeStoreURL != "https://fakestoreapi.com" {
		t.Errorf("FakeStoreURL = %q", cfg.Catalog.FakeStoreURL)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("CART_PERSIST_DELAY", "2s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.App.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.App.Port)
	}
	if cfg.Cart.PersistDelay != 2*time.Second {
		t.Errorf("PersistDelay = %v, want 2s", cfg.Cart.PersistDelay)
	}
	if len(cfg.CORS.AllowedOrigins) != 2 || cfg.CORS.AllowedOrigins[1] != "http://b.test" {
		t.Errorf("AllowedOrigins = %v", cfg.CORS.AllowedOrigins)
	}
}

func TestLoad_InvalidCombinations(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"prod without secret", map[string]string{"APP_ENV": "prod", "SESSION_SECRET": ""}},
		{"mysql cart store without database", map[string]string{"CART_STORE": "mysql", "DB_ENABLED": "false"}},
		{"redis cart store without redis", map[string]string{"CART_STORE": "redis", "REDIS_ENABLED": "false"}},
		{"unknown cache type", map[string]string{"CACHE_TYPE": "memcached"}},
		{"tax rate above one", map[string]string{"CHECKOUT_TAX_RATE": "1.5"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Error("Load() expected error, got nil")
			}
		})
	}
}
