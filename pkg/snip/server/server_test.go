package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/snipdev/snip/pkg/snip/apperr"
	"github.com/snipdev/snip/pkg/snip/auth"
	"github.com/snipdev/snip/pkg/snip/config"
	"github.com/snipdev/snip/pkg/snip/links"
	"github.com/snipdev/snip/pkg/snip/models"
	"github.com/snipdev/snip/pkg/snip/store"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestDB creates an in-memory SQLite database for testing
func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}

// setupFullServer wires the engine the same way cmd/snip-server does
func setupFullServer(t *testing.T, db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	st := store.NewGorm(db)
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	issuer, err := auth.NewTokenIssuer("test-secret", "snip", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer failed: %v", err)
	}
	authService := auth.NewService(st, auth.NewBcryptHasher(bcrypt.MinCost), issuer, logger)
	linkService := links.NewService(st, &links.ServiceConfig{Logger: logger})

	return NewRouter(Deps{Auth: authService, Links: linkService, Logger: logger})
}

func request(t *testing.T, router *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Host = "sn.ip"
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestServerStartup(t *testing.T) {
	// Panics on route conflicts
	router := setupFullServer(t, setupTestDB(t))
	if router == nil {
		t.Fatal("Expected router to be created")
	}
}

func TestHealthEndpoint(t *testing.T) {
	router := setupFullServer(t, setupTestDB(t))

	resp := request(t, router, "GET", "/health", "", nil)
	if resp.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.Code)
	}
	if resp.Body.String() != "alive" {
		t.Errorf("Expected 'alive', got %q", resp.Body.String())
	}
	if !strings.HasPrefix(resp.Header().Get("Content-Type"), "text/plain") {
		t.Errorf("Expected text/plain, got %s", resp.Header().Get("Content-Type"))
	}
}

func TestUnknownRouteReturnsJSON(t *testing.T) {
	router := setupFullServer(t, setupTestDB(t))

	for _, path := range []string{"/", "/a/b"} {
		resp := request(t, router, "GET", path, "", nil)
		if resp.Code != http.StatusNotFound {
			t.Errorf("GET %s: expected status 404, got %d", path, resp.Code)
		}
		var body apperr.Response
		if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
			t.Fatalf("GET %s: expected JSON body, got %q", path, resp.Body.String())
		}
		if body.StatusCode != 404 || body.Error != "Not Found" || body.Message == "" {
			t.Errorf("GET %s: unexpected error body: %+v", path, body)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router := setupFullServer(t, setupTestDB(t))
	request(t, router, "GET", "/health", "", nil)

	resp := request(t, router, "GET", "/metrics", "", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `http_requests_total{method="GET",route="/health",status="200"}`) {
		t.Error("Expected health request to be counted")
	}
}

func TestRequestIDHeader(t *testing.T) {
	router := setupFullServer(t, setupTestDB(t))

	resp := request(t, router, "GET", "/health", "", nil)
	if resp.Header().Get(RequestIDHeader) == "" {
		t.Error("Expected a generated request id")
	}

	req, _ := http.NewRequest("GET", "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Header().Get(RequestIDHeader) != "abc-123" {
		t.Errorf("Expected request id to be echoed, got %q", resp.Header().Get(RequestIDHeader))
	}
}

func TestRequestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), Logger(logger), Recovery(logger))
	r.GET("/stats/:shortCode", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/panic", func(c *gin.Context) { panic("kaboom") })

	req, _ := http.NewRequest("GET", "/stats/abc", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	r.ServeHTTP(httptest.NewRecorder(), req)

	var record map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &record); err != nil {
		t.Fatalf("Expected one JSON record, got %q: %v", buf.String(), err)
	}
	if record["msg"] != "http request" || record["route"] != "/stats/:shortCode" || record["request_id"] != "req-1" {
		t.Errorf("Unexpected record %v", record)
	}

	buf.Reset()
	req, _ = http.NewRequest("GET", "/panic", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", resp.Code)
	}
	if !strings.Contains(buf.String(), "panic recovered") {
		t.Error("Expected panic to be logged")
	}
}

func TestNamedRoutesWinOverRedirect(t *testing.T) {
	router := setupFullServer(t, setupTestDB(t))

	resp := request(t, router, "GET", "/my-urls", "", nil)
	if resp.Code != http.StatusUnauthorized {
		t.Errorf("Expected /my-urls to require auth, got %d", resp.Code)
	}

	resp = request(t, router, "GET", "/nothing-here", "", nil)
	if resp.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.Code)
	}
	var body map[string]interface{}
	json.Unmarshal(resp.Body.Bytes(), &body)
	if body["statusCode"] != float64(404) || body["error"] != "Not Found" || body["message"] == "" {
		t.Errorf("Unexpected 404 body %v", body)
	}
}

// TestFullFlow walks a user through register, shorten, redirect, update and delete
func TestFullFlow(t *testing.T) {
	router := setupFullServer(t, setupTestDB(t))

	resp := request(t, router, "POST", "/auth/register", "", gin.H{
		"email":    "flow@example.com",
		"name":     "Flow User",
		"password": "password123",
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("Register: expected 201, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = request(t, router, "POST", "/auth/login", "", gin.H{
		"email":    "flow@example.com",
		"password": "password123",
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("Login: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var session auth.Session
	json.Unmarshal(resp.Body.Bytes(), &session)

	resp = request(t, router, "GET", "/auth/me", session.AccessToken, nil)
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), "flow@example.com") {
		t.Fatalf("Me: expected 200 with email, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = request(t, router, "POST", "/shorten", session.AccessToken, gin.H{
		"originalUrl": "https://example.com/flow",
		"customAlias": "flow",
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("Shorten: expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var view links.LinkView
	json.Unmarshal(resp.Body.Bytes(), &view)
	if view.ShortURL != "http://sn.ip/flow" {
		t.Errorf("Expected short URL http://sn.ip/flow, got %s", view.ShortURL)
	}

	for i := 0; i < 2; i++ {
		resp = request(t, router, "GET", "/flow", "", nil)
		if resp.Code != http.StatusMovedPermanently {
			t.Fatalf("Redirect: expected 301, got %d", resp.Code)
		}
		if resp.Header().Get("Location") != "https://example.com/flow" {
			t.Errorf("Unexpected Location %s", resp.Header().Get("Location"))
		}
	}

	resp = request(t, router, "GET", "/stats/flow", "", nil)
	json.Unmarshal(resp.Body.Bytes(), &view)
	if view.Clicks != 2 {
		t.Errorf("Expected 2 clicks, got %d", view.Clicks)
	}

	resp = request(t, router, "PUT", "/urls/flow", session.AccessToken, gin.H{"originalUrl": "https://example.com/moved"})
	if resp.Code != http.StatusOK {
		t.Fatalf("Update: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	resp = request(t, router, "GET", "/flow", "", nil)
	if resp.Header().Get("Location") != "https://example.com/moved" {
		t.Errorf("Expected redirect to follow update, got %s", resp.Header().Get("Location"))
	}

	resp = request(t, router, "GET", "/my-urls", session.AccessToken, nil)
	var mine []links.LinkView
	json.Unmarshal(resp.Body.Bytes(), &mine)
	if len(mine) != 1 || mine[0].ShortCode != "flow" {
		t.Errorf("Expected one owned link, got %+v", mine)
	}

	resp = request(t, router, "DELETE", "/urls/flow", session.AccessToken, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("Delete: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	for _, tc := range []struct {
		method, path string
		want         int
	}{
		{"GET", "/flow", http.StatusNotFound},
		{"GET", "/stats/flow", http.StatusNotFound},
		{"DELETE", "/urls/flow", http.StatusNotFound},
	} {
		resp = request(t, router, tc.method, tc.path, session.AccessToken, nil)
		if resp.Code != tc.want {
			t.Errorf("%s %s after delete: expected %d, got %d", tc.method, tc.path, tc.want, resp.Code)
		}
	}
}

func TestRunShutsDownOnCancel(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	srv := New(config.ServerConfig{Port: "0", ShutdownTimeout: time.Second}, logger, http.NotFoundHandler())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
