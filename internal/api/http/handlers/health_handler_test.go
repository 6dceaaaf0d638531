package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func readyResponse(t *testing.T, deps map[string]DependencyPinger) (int, string) {
	t.Helper()

	h := NewHealthHandler("test", "dev", deps, zap.NewNop())
	app := fiber.New()
	app.Get("/health/ready", h.Ready)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/health/ready", nil), -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestReadyReportsHealthyDependencies(t *testing.T) {
	status, body := readyResponse(t, map[string]DependencyPinger{
		"redis": pingFunc(func(ctx context.Context) error { return nil }),
	})
	if status != fiber.StatusOK {
		t.Fatalf("status = %d, want 200: %s", status, body)
	}
	if !strings.Contains(body, `"redis":"ok"`) {
		t.Errorf("missing dependency status: %s", body)
	}
}

func TestReadyHidesDependencyErrors(t *testing.T) {
	status, body := readyResponse(t, map[string]DependencyPinger{
		"redis":    pingFunc(func(ctx context.Context) error { return errors.New("dial tcp 10.0.0.5:6379: connection refused") }),
		"postgres": pingFunc(func(ctx context.Context) error { return nil }),
	})
	if status != fiber.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503: %s", status, body)
	}
	if strings.Contains(body, "connection refused") || strings.Contains(body, "10.0.0.5") {
		t.Errorf("raw dependency error leaked to client: %s", body)
	}

	var payload struct {
		Error struct {
			Details map[string]string `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		t.Fatalf("invalid JSON: %s", body)
	}
	if payload.Error.Details["redis"] != "unavailable" {
		t.Errorf("redis status = %q, want unavailable", payload.Error.Details["redis"])
	}
	if payload.Error.Details["postgres"] != "ok" {
		t.Errorf("postgres status = %q, want ok", payload.Error.Details["postgres"])
	}
}
