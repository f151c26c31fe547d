package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/quorum/internal/assist"
	pointsdomain "github.com/smallbiznis/quorum/internal/points/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type stubHealth struct {
	order  []string
	health map[string]bool
}

func (s stubHealth) CheckHealth(context.Context) map[string]bool {
	return s.health
}

func (s stubHealth) Providers() []string {
	return s.order
}

func newRouter(t *testing.T, llm HealthChecker) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))), &gorm.Config{})
	require.NoError(t, err)

	r := gin.New()
	r.Use(ErrorHandlingMiddleware())
	Register(r, db, llm)
	return r
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHealth(t *testing.T) {
	w := get(newRouter(t, nil), "/health")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ok", body["database"])
}

func TestLLMHealth(t *testing.T) {
	tests := []struct {
		name   string
		llm    HealthChecker
		status int
	}{
		{"no providers", stubHealth{}, http.StatusServiceUnavailable},
		{"one healthy", stubHealth{order: []string{"openai", "qwen"}, health: map[string]bool{"openai": false, "qwen": true}}, http.StatusOK},
		{"all down", stubHealth{order: []string{"openai"}, health: map[string]bool{"openai": false}}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(newRouter(t, tt.llm), "/health/llm")
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	w := get(newRouter(t, nil), "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMapError(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{pointsdomain.ErrInvalidAmount, http.StatusBadRequest},
		{pointsdomain.ErrAccountNotFound, http.StatusNotFound},
		{&pointsdomain.InsufficientBalanceError{Required: 10, Available: 1}, http.StatusUnprocessableEntity},
		{&assist.RateLimitedError{}, http.StatusTooManyRequests},
		{assist.ErrServiceUnavailable, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		status, _ := mapError(tt.err)
		assert.Equal(t, tt.status, status, "%v", tt.err)
	}
}
