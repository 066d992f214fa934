package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/repoviral/backend/internal/ai"
	"github.com/repoviral/backend/internal/config"
	"github.com/repoviral/backend/internal/middleware"
	"github.com/repoviral/backend/internal/models"
	"github.com/repoviral/backend/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// newAPIApp wires the protected routes the way main does.
func newAPIApp(t *testing.T) (*fiber.App, *gorm.DB, *config.Config) {
	t.Helper()
	db := newTestDB(t)
	cfg := &config.Config{
		JWTSecret:      "test-secret",
		JWTExpireHours: 1,
	}

	usage := services.NewUsageService(db)
	generator := ai.NewGenerator(cfg)
	generateHandler := NewGenerateHandler(cfg, db, usage, generator)
	historyHandler := NewHistoryHandler(db, usage)

	app := fiber.New()
	protected := app.Group("/api", middleware.AuthRequired(cfg))
	protected.Post("/generate", generateHandler.Generate)
	protected.Get("/history", historyHandler.List)
	protected.Get("/profile", historyHandler.Profile)
	return app, db, cfg
}

func authedRequest(t *testing.T, cfg *config.Config, method, target, body string) *http.Request {
	t.Helper()
	token, err := middleware.GenerateToken("user-1", "one@example.com", cfg)
	require.NoError(t, err)

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func TestGenerateRequiresAuth(t *testing.T) {
	app, _, _ := newAPIApp(t)

	req := httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader(`{"url":"https://github.com/acme/widget"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGenerateRejectsMissingURL(t *testing.T) {
	app, db, cfg := newAPIApp(t)

	resp, err := app.Test(authedRequest(t, cfg, http.MethodPost, "/api/generate", `{}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Rejected before the quota check: no credit spent, no record created
	var count int64
	require.NoError(t, db.Model(&models.UserUsage{}).Count(&count).Error)
	assert.EqualValues(t, 0, count)
}

func TestGenerateQuotaExhausted(t *testing.T) {
	app, db, cfg := newAPIApp(t)

	require.NoError(t, db.Create(&models.UserUsage{
		UserID:     "user-1",
		Email:      "one@example.com",
		UsageCount: 1,
	}).Error)

	resp, err := app.Test(authedRequest(t, cfg, http.MethodPost, "/api/generate", `{"url":"https://github.com/acme/widget"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["message"], "Upgrade to Pro")
}

func TestHistoryNewestFirst(t *testing.T) {
	app, db, cfg := newAPIApp(t)

	now := time.Now()
	require.NoError(t, db.Create(&models.ContentHistory{
		UserID:    "user-1",
		RepoURL:   "https://github.com/acme/older",
		Platform:  "all",
		CreatedAt: now.Add(-time.Hour),
	}).Error)
	require.NoError(t, db.Create(&models.ContentHistory{
		UserID:    "user-1",
		RepoURL:   "https://github.com/acme/newer",
		Platform:  "all",
		CreatedAt: now,
	}).Error)
	require.NoError(t, db.Create(&models.ContentHistory{
		UserID:  "user-2",
		RepoURL: "https://github.com/other/repo",
	}).Error)

	resp, err := app.Test(authedRequest(t, cfg, http.MethodGet, "/api/history", ""))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Success bool                    `json:"success"`
		Data    []models.ContentHistory `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Success)
	require.Len(t, body.Data, 2)
	assert.Equal(t, "https://github.com/acme/newer", body.Data[0].RepoURL)
	assert.Equal(t, "https://github.com/acme/older", body.Data[1].RepoURL)
}

func TestProfile(t *testing.T) {
	app, db, cfg := newAPIApp(t)

	require.NoError(t, db.Create(&models.UserUsage{
		UserID:     "user-1",
		Email:      "one@example.com",
		UsageCount: 1,
		IsPro:      true,
	}).Error)

	resp, err := app.Test(authedRequest(t, cfg, http.MethodGet, "/api/profile", ""))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Success bool             `json:"success"`
		Data    models.UserUsage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Success)
	assert.Equal(t, "user-1", body.Data.UserID)
	assert.Equal(t, 1, body.Data.UsageCount)
	assert.True(t, body.Data.IsPro)
}

func TestProfileNotFound(t *testing.T) {
	app, _, cfg := newAPIApp(t)

	resp, err := app.Test(authedRequest(t, cfg, http.MethodGet, "/api/profile", ""))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
