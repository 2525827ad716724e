package recommend_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"Storefront/internal/auth"
	"Storefront/internal/recommend"
	"Storefront/pkg/kit"
)

const jwtSecret = "0123456789abcdef0123456789abcdef"

type apiFixture struct {
	ts     *httptest.Server
	src    *recommend.MemSource
	tokens *auth.TokenMaker
}

func newAPI(t *testing.T, limiter *kit.IPRateLimiter) apiFixture {
	t.Helper()

	catalogItems := []recommend.Item{
		{Handle: "a", Tags: []string{"interest:frogs", "occasion:birthday"}, Available: true},
		{Handle: "b", Tags: []string{"interest:frogs", "occasion:birthday"}, Available: true},
		{Handle: "c", Tags: []string{"interest:dogs", "occasion:birthday"}, Available: true},
	}
	best := []recommend.Item{{Handle: "top", Available: true}}
	src := recommend.NewMemSource(catalogItems, best)

	reg := prometheus.NewRegistry()
	m := recommend.NewMetrics(reg)
	cache := recommend.NewCache(src, recommend.CacheOptions{Metrics: m})
	tokens := auth.NewTokenMaker(jwtSecret)

	s := &recommend.Server{
		Engine:  recommend.NewEngine(cache, src, recommend.EngineOptions{Limit: 3, Metrics: m}),
		Cache:   cache,
		Log:     zap.NewNop(),
		Limiter: limiter,
		Tokens:  tokens,
	}
	h := recommend.NewHandler(s, recommend.HTTPDeps{
		Log:            zap.NewNop(),
		Service:        "recommend",
		Registry:       reg,
		MetricsEnabled: true,
		MetricsToken:   "scrape",
	})

	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return apiFixture{ts: ts, src: src, tokens: tokens}
}

type recommendBody struct {
	Handle     string   `json:"handle"`
	Mode       string   `json:"mode"`
	Items      []string `json:"items"`
	Snapshot   string   `json:"snapshot"`
	Backfilled int      `json:"backfilled"`
}

func get(t *testing.T, url string, headers map[string]string, out any) *http.Response {
	t.Helper()
	return do(t, http.MethodGet, url, headers, out)
}

func do(t *testing.T, method, url string, headers map[string]string, out any) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, url, nil)
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestAPI_Recommendations(t *testing.T) {
	f := newAPI(t, nil)

	var body recommendBody
	resp := get(t, f.ts.URL+"/recommendations/a", nil, &body)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "similar", body.Mode)
	assert.Equal(t, []string{"b", "c", "top"}, body.Items)
	assert.Equal(t, 1, body.Backfilled)
	assert.NotEmpty(t, body.Snapshot)
	assert.Equal(t, body.Snapshot, resp.Header.Get(recommend.SnapshotHeader))
}

func TestAPI_RecommendationsPivot(t *testing.T) {
	f := newAPI(t, nil)

	var body recommendBody
	resp := get(t, f.ts.URL+"/recommendations/a?mode=interest", nil, &body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"b", "top"}, body.Items)
}

func TestAPI_RecommendationsBadMode(t *testing.T) {
	f := newAPI(t, nil)

	resp := get(t, f.ts.URL+"/recommendations/a?mode=vibes", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_EmptyCatalogStillAnswers(t *testing.T) {
	f := newAPI(t, nil)
	f.src.SetCatalog(nil, assert.AnError)
	f.src.SetBestsellers(nil, assert.AnError)

	var body recommendBody
	resp := get(t, f.ts.URL+"/recommendations/a", nil, &body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotNil(t, body.Items)
	assert.Empty(t, body.Items)

	resp = get(t, f.ts.URL+"/readyz", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestAPI_FindByHandle(t *testing.T) {
	f := newAPI(t, nil)

	var it struct {
		Handle     string              `json:"handle"`
		ParsedTags map[string][]string `json:"parsed_tags"`
	}
	resp := get(t, f.ts.URL+"/catalog/c", nil, &it)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "c", it.Handle)
	assert.Equal(t, []string{"dogs"}, it.ParsedTags["interest"])

	resp = get(t, f.ts.URL+"/catalog/zzz", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_AdminRefresh(t *testing.T) {
	f := newAPI(t, nil)

	resp := do(t, http.MethodPost, f.ts.URL+"/admin/cache/refresh", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	tok, err := f.tokens.New("ops", auth.RoleAdmin, time.Minute)
	require.NoError(t, err)
	authz := map[string]string{"Authorization": "Bearer " + tok}

	var before recommendBody
	get(t, f.ts.URL+"/recommendations/a", nil, &before)

	var status struct {
		State    string `json:"state"`
		Snapshot string `json:"snapshot"`
		Items    int    `json:"items"`
	}
	resp = do(t, http.MethodPost, f.ts.URL+"/admin/cache/refresh", authz, &status)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ready", status.State)
	assert.Equal(t, 3, status.Items)
	assert.NotEqual(t, before.Snapshot, status.Snapshot)
	assert.EqualValues(t, 2, f.src.CatalogCalls())

	resp = get(t, f.ts.URL+"/admin/cache", authz, &status)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ready", status.State)
}

func TestAPI_RateLimited(t *testing.T) {
	f := newAPI(t, kit.NewIPRateLimiter(0.001, 2))

	for range 2 {
		resp := get(t, f.ts.URL+"/recommendations/a", nil, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp := get(t, f.ts.URL+"/recommendations/a", nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	resp = get(t, f.ts.URL+"/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "health checks are not limited")
}

func TestAPI_MetricsRequiresToken(t *testing.T) {
	f := newAPI(t, nil)

	resp := get(t, f.ts.URL+"/metrics", nil, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = get(t, f.ts.URL+"/metrics", map[string]string{"Authorization": "Bearer scrape"}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
