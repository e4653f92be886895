package app

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-pricing/internal/config"
	"github.com/noah-isme/toko-pricing/internal/ratelimit"
)

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:            "test",
		CurrencyCode:      "IDR",
		CurrencyPrecision: 2,
		TaxRateBPS:        1100,
		MaxBatch:          10,
		BatchConcurrency:  2,
		RateLimitStrategy: "sliding",
		RateLimitWindow:   time.Minute,
		RateLimitMax:      100,
		MaxBodyBytes:      1 << 10,
		SecurityHeaders:   true,
		Obs: config.ObsConfig{
			MetricsEnabled:   true,
			MetricsNamespace: "test",
		},
	}
}

func newServer(t *testing.T, cfg *config.Config, rdb *redis.Client) *httptest.Server {
	t.Helper()
	handler, err := NewRouter(Dependencies{
		Config:   cfg,
		Logger:   zerolog.Nop(),
		Redis:    rdb,
		Registry: prometheus.NewRegistry(),
	})
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

func TestRouterSaleAmount(t *testing.T) {
	srv := newServer(t, testConfig(), nil)

	resp := postJSON(t, srv.URL+"/api/v1/pricing/sale-amount",
		`{"raw_prices":{"regular_price":"1000","price":"800","precision":2}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, readBody(t, resp), `"sale_amount":200`)
	require.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	require.Equal(t, "100", resp.Header.Get("X-RateLimit-Limit"))

	metrics, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = metrics.Body.Close() }()
	body := readBody(t, metrics)
	require.Contains(t, body, `test_pricing_sale_amount_total{result="ok"} 1`)
	require.Contains(t, body, `route="/api/v1/pricing/sale-amount"`)
}

func TestRouterRejectsOversizedBody(t *testing.T) {
	cfg := testConfig()
	cfg.MaxBodyBytes = 16
	srv := newServer(t, cfg, nil)

	resp := postJSON(t, srv.URL+"/api/v1/pricing/sale-amount",
		`{"raw_prices":{"regular_price":"1000","price":"800","precision":2}}`)
	require.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestRouterRateLimitsPricing(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	cfg := testConfig()
	cfg.RateLimitMax = 1
	srv := newServer(t, cfg, rdb)

	body := `{"items":[{"qty":1,"unit_price":100}]}`
	first := postJSON(t, srv.URL+"/api/v1/pricing/quote", body)
	require.Equal(t, http.StatusOK, first.StatusCode)

	second := postJSON(t, srv.URL+"/api/v1/pricing/quote", body)
	require.Equal(t, http.StatusTooManyRequests, second.StatusCode)

	health, err := http.Get(srv.URL + "/health/ready")
	require.NoError(t, err)
	defer func() { _ = health.Body.Close() }()
	require.Equal(t, http.StatusOK, health.StatusCode, "health checks are not rate limited")
	require.Contains(t, readBody(t, health), `"redis":"ok"`)
}

func TestNewRateLimiterStrategies(t *testing.T) {
	cfg := testConfig()
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer func() { _ = rdb.Close() }()

	l, err := NewRateLimiter(cfg, rdb)
	require.NoError(t, err)
	require.IsType(t, ratelimit.SlidingLimiter{}, l)

	l, err = NewRateLimiter(cfg, nil)
	require.NoError(t, err)
	require.IsType(t, &ratelimit.StoreLimiter{}, l)

	cfg.RateLimitStrategy = "off"
	l, err = NewRateLimiter(cfg, rdb)
	require.NoError(t, err)
	require.Nil(t, l)

	cfg.RateLimitStrategy = "leaky"
	_, err = NewRateLimiter(cfg, nil)
	require.Error(t, err)
}

func TestPprofRequiresBasicAuth(t *testing.T) {
	cfg := testConfig()
	cfg.Obs.PprofEnabled = true
	cfg.Obs.PprofUser = "ops"
	cfg.Obs.PprofPass = "secret"
	srv := newServer(t, cfg, nil)

	resp, err := http.Get(srv.URL + "/debug/pprof/")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/debug/pprof/cmdline", nil)
	require.NoError(t, err)
	req.SetBasicAuth("ops", "secret")
	authed, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = authed.Body.Close() }()
	require.Equal(t, http.StatusOK, authed.StatusCode)
}
