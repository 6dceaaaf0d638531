package http

import (
	"encoding/json"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/vibecodezero/subscriber-service/internal/api/http/handlers"
	"github.com/vibecodezero/subscriber-service/internal/auth"
	"github.com/vibecodezero/subscriber-service/internal/cache"
	"github.com/vibecodezero/subscriber-service/internal/config"
	"github.com/vibecodezero/subscriber-service/internal/events"
	"github.com/vibecodezero/subscriber-service/internal/observability"
	"github.com/vibecodezero/subscriber-service/internal/registry"
	"github.com/vibecodezero/subscriber-service/internal/storage"
)

const testAdminPassword = "correct-horse"

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()

	adapter, err := storage.NewFileAdapter(filepath.Join(t.TempDir(), "subscribers.json"))
	if err != nil {
		t.Fatalf("NewFileAdapter: %v", err)
	}

	logger := zap.NewNop()
	reg := registry.New(adapter, events.NewInMemoryDispatcher(), logger)
	statsCache := cache.NewStatsCache(nil, logger, 0)

	hash, err := auth.HashPassword(testAdminPassword, 4)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	adminCfg := config.AdminConfig{JWTSecret: "test-secret", TokenTTLMinutes: 5, PasswordHash: hash}
	tokens := auth.NewTokenManager(adminCfg.JWTSecret, adminCfg.TokenTTLMinutes)

	app := fiber.New()
	RegisterMiddlewares(app, logger, observability.NewMetrics(), 0)
	RegisterRoutes(app, RouteConfig{
		Health:          handlers.NewHealthHandler("test", "dev", nil, logger),
		Subscribers:     handlers.NewSubscribersHandler(reg, nil, statsCache),
		Admin:           handlers.NewAdminHandler(tokens, adminCfg),
		AdminMiddleware: auth.NewAdminMiddleware(tokens, true),
	})
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, body, bearer string) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	payload := map[string]any{}
	data, _ := io.ReadAll(resp.Body)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &payload); err != nil {
			t.Fatalf("%s %s: invalid JSON response %q", method, path, data)
		}
	}
	return resp.StatusCode, payload
}

func adminToken(t *testing.T, app *fiber.App) string {
	t.Helper()
	status, body := doJSON(t, app, nethttp.MethodPost, "/api/admin/login",
		`{"password":"`+testAdminPassword+`"}`, "")
	if status != nethttp.StatusOK {
		t.Fatalf("admin login: status %d body %v", status, body)
	}
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatal("admin login returned no token")
	}
	return token
}

func TestSubscribeLifecycleOverHTTP(t *testing.T) {
	app := newTestApp(t)

	status, body := doJSON(t, app, nethttp.MethodPost, "/api/subscribe", `{"email":"a@b.com"}`, "")
	if status != nethttp.StatusOK {
		t.Fatalf("subscribe: status %d body %v", status, body)
	}
	if body["success"] != true {
		t.Errorf("subscribe: success = %v", body["success"])
	}
	if id, _ := body["subscriber_id"].(string); id == "" {
		t.Error("subscribe: missing subscriber_id")
	}

	status, body = doJSON(t, app, nethttp.MethodPost, "/api/subscribe", `{"email":"a@b.com"}`, "")
	if status != nethttp.StatusConflict {
		t.Fatalf("duplicate subscribe: status %d body %v", status, body)
	}
	errObj, _ := body["error"].(map[string]any)
	if errObj["code"] != "ALREADY_SUBSCRIBED" {
		t.Errorf("duplicate subscribe: error = %v", body["error"])
	}

	status, body = doJSON(t, app, nethttp.MethodPost, "/api/unsubscribe", `{"email":"a@b.com"}`, "")
	if status != nethttp.StatusOK || body["success"] != true {
		t.Fatalf("unsubscribe: status %d body %v", status, body)
	}

	status, body = doJSON(t, app, nethttp.MethodPost, "/api/subscribe", `{"email":"a@b.com"}`, "")
	if status != nethttp.StatusOK {
		t.Fatalf("resubscribe: status %d body %v", status, body)
	}
	if msg, _ := body["message"].(string); !strings.Contains(msg, "reactivated") {
		t.Errorf("resubscribe message = %q, want reactivation notice", msg)
	}
}

func TestSubscribeRejectsInvalidEmail(t *testing.T) {
	app := newTestApp(t)

	status, body := doJSON(t, app, nethttp.MethodPost, "/api/subscribe", `{"email":"not-an-email"}`, "")
	if status != nethttp.StatusBadRequest {
		t.Fatalf("status %d body %v", status, body)
	}
	errObj, _ := body["error"].(map[string]any)
	if errObj["code"] != "INVALID_EMAIL" {
		t.Errorf("error = %v", body["error"])
	}
}

func TestUnsubscribeFailureModes(t *testing.T) {
	app := newTestApp(t)

	status, _ := doJSON(t, app, nethttp.MethodPost, "/api/unsubscribe", `{}`, "")
	if status != nethttp.StatusBadRequest {
		t.Errorf("missing identifier: status %d, want 400", status)
	}

	status, _ = doJSON(t, app, nethttp.MethodPost, "/api/unsubscribe", `{"email":"ghost@b.com"}`, "")
	if status != nethttp.StatusNotFound {
		t.Errorf("unknown email: status %d, want 404", status)
	}
}

func TestAdminSurfaceRequiresToken(t *testing.T) {
	app := newTestApp(t)

	status, _ := doJSON(t, app, nethttp.MethodGet, "/api/subscribers", "", "")
	if status != nethttp.StatusUnauthorized {
		t.Errorf("no token: status %d, want 401", status)
	}

	status, _ = doJSON(t, app, nethttp.MethodGet, "/api/subscribers", "", "garbage")
	if status != nethttp.StatusUnauthorized {
		t.Errorf("bad token: status %d, want 401", status)
	}

	status, _ = doJSON(t, app, nethttp.MethodPost, "/api/admin/login", `{"password":"wrong"}`, "")
	if status != nethttp.StatusUnauthorized {
		t.Errorf("wrong password: status %d, want 401", status)
	}
}

func TestAdminListAndStats(t *testing.T) {
	app := newTestApp(t)
	token := adminToken(t, app)

	emails := []string{"a@b.com", "b@b.com", "c@b.com"}
	for _, email := range emails {
		if status, body := doJSON(t, app, nethttp.MethodPost, "/api/subscribe", `{"email":"`+email+`"}`, ""); status != nethttp.StatusOK {
			t.Fatalf("seed subscribe %s: status %d body %v", email, status, body)
		}
	}
	if status, _ := doJSON(t, app, nethttp.MethodPost, "/api/unsubscribe", `{"email":"c@b.com"}`, ""); status != nethttp.StatusOK {
		t.Fatal("seed unsubscribe failed")
	}

	status, body := doJSON(t, app, nethttp.MethodGet, "/api/subscribers?page=1&limit=2&status=active", "", token)
	if status != nethttp.StatusOK {
		t.Fatalf("list: status %d body %v", status, body)
	}
	data, _ := body["data"].(map[string]any)
	subs, _ := data["subscribers"].([]any)
	if len(subs) != 2 {
		t.Errorf("len(subscribers) = %d, want 2", len(subs))
	}
	pagination, _ := data["pagination"].(map[string]any)
	if pagination["total_count"] != float64(2) {
		t.Errorf("total_count = %v, want 2", pagination["total_count"])
	}

	status, body = doJSON(t, app, nethttp.MethodGet, "/api/subscribers/stats", "", token)
	if status != nethttp.StatusOK {
		t.Fatalf("stats: status %d body %v", status, body)
	}
	stats, _ := body["stats"].(map[string]any)
	if stats["total_subscribers"] != float64(3) {
		t.Errorf("total_subscribers = %v, want 3", stats["total_subscribers"])
	}
	if stats["active_subscribers"] != float64(2) {
		t.Errorf("active_subscribers = %v, want 2", stats["active_subscribers"])
	}
	if stats["unsubscribed_count"] != float64(1) {
		t.Errorf("unsubscribed_count = %v, want 1", stats["unsubscribed_count"])
	}
}

func TestListValidatesPagination(t *testing.T) {
	app := newTestApp(t)
	token := adminToken(t, app)

	status, body := doJSON(t, app, nethttp.MethodGet, "/api/subscribers?page=0&limit=10", "", token)
	if status != nethttp.StatusBadRequest {
		t.Errorf("page=0: status %d body %v, want 400", status, body)
	}
}
