package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clubbackend/internal/data"
	"clubbackend/internal/instagram"
	"clubbackend/internal/ledger"
	"clubbackend/internal/teaser"
)

func testMux(t *testing.T) *http.ServeMux {
	t.Helper()
	dir := t.TempDir()
	return routes(
		ledger.New(filepath.Join(dir, "stock.csv"), filepath.Join(dir, "borrow_log.csv"), nil),
		teaser.NewService(filepath.Join(dir, "teaser_entries.csv")),
		instagram.NewClient(""),
		data.NewNoticeRepository(),
		data.NewScheduleRepository(),
	)
}

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	testMux(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestItemsRouteServesEmptyInventory(t *testing.T) {
	rec := httptest.NewRecorder()
	testMux(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/items", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "success", body["status"])
}

func TestAdminRoutesAreGated(t *testing.T) {
	mux := testMux(t)
	gated := []struct {
		method string
		target string
	}{
		{http.MethodGet, "/api/admin/dashboard"},
		{http.MethodGet, "/api/admin/requests"},
		{http.MethodGet, "/api/admin/logs"},
		{http.MethodGet, "/api/admin/teaser"},
		{http.MethodPost, "/api/admin/approve"},
		{http.MethodPost, "/api/admin/stock/add"},
		{http.MethodDelete, "/api/notices/1"},
	}

	for _, route := range gated {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(route.method, route.target, nil))
		assert.Equalf(t, http.StatusUnauthorized, rec.Code, "%s %s must require a session", route.method, route.target)
	}
}

func TestMethodMismatchIsRejected(t *testing.T) {
	rec := httptest.NewRecorder()
	testMux(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/borrow", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestInstagramRouteServesFallbackFeed(t *testing.T) {
	rec := httptest.NewRecorder()
	testMux(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/instagram/posts", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Status string           `json:"status"`
		Data   []instagram.Post `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "success", body.Status)
	assert.Len(t, body.Data, 7)
}
