//go:build integration

package http_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"

	handler "github.com/samirrijal/pinmap/internal/adapters/http"
	"github.com/samirrijal/pinmap/internal/adapters/postgres"
	"github.com/samirrijal/pinmap/internal/core/domain"
	"github.com/samirrijal/pinmap/internal/core/usecases"
	"github.com/samirrijal/pinmap/internal/pkg/auth"
	"github.com/samirrijal/pinmap/internal/pkg/config"
)

// setupTestDB migrates and empties the configured test database.
func setupTestDB(t *testing.T) *postgres.DB {
	cfg, err := config.Load("pinmap-test")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	dsn := cfg.Database.DSN()
	if err := postgres.MigrateUp(dsn); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := postgres.New(ctx, dsn, 10)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	if _, err := db.Pool.Exec(ctx, `TRUNCATE confirmations, pins, users CASCADE`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return db
}

// setupTestDeps wires real repositories with no cache and no event bus.
func setupTestDeps(db *postgres.DB) *handler.Dependencies {
	counters := postgres.NewCounterMaintainer(db)
	pins := postgres.NewPinRepo(db)
	ledger := postgres.NewConfirmationRepo(db, counters)
	users := postgres.NewUserRepo(db, counters)
	tokens := auth.NewJWTService(testSecret, "", time.Minute, time.Hour)

	return &handler.Dependencies{
		Pins:  usecases.NewPinService(pins, ledger, nil, nil),
		Admin: usecases.NewAdminService(pins, ledger, users, usecases.NewReconcileService(counters, 500, slog.Default()), nil, nil),
		Auth:  usecases.NewAuthService(users, tokens).WithCost(bcrypt.MinCost),
		DB:    db,
	}
}

func call(t *testing.T, app *fiber.App, method, path, token, body string, out any) int {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func login(t *testing.T, app *fiber.App, name string) string {
	t.Helper()
	creds := `{"username":"` + name + `","password":"pw-` + name + `"}`
	if code := call(t, app, "POST", "/v1/auth/register", "", creds, nil); code != 201 {
		t.Fatalf("register %s: %d", name, code)
	}
	var pair domain.TokenPair
	if code := call(t, app, "POST", "/v1/auth/token", "", creds, &pair); code != 200 {
		t.Fatalf("login %s: %d", name, code)
	}
	return pair.Access
}

// TestConfirmationScenario_Integration walks a pin from submission through
// approval and a series of confirmations against a real database.
func TestConfirmationScenario_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	defer db.Close()

	deps := setupTestDeps(db)
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)

	if _, err := deps.Auth.CreateAdmin(context.Background(), "mod", "pw-mod"); err != nil {
		t.Fatalf("create admin: %v", err)
	}
	var modPair domain.TokenPair
	call(t, app, "POST", "/v1/auth/token", "", `{"username":"mod","password":"pw-mod"}`, &modPair)

	owner, b, c := login(t, app, "owner"), login(t, app, "bee"), login(t, app, "cee")

	var pin domain.PinView
	code := call(t, app, "POST", "/v1/pins", owner,
		`{"title":"Fallen tree","lat":43.26,"lng":-2.93,"status":"active","is_public":true}`, &pin)
	if code != 201 || pin.Status != domain.StatusPending || pin.IsPublic {
		t.Fatalf("create: %d %+v", code, pin)
	}

	// Not visible to others until approved.
	if code := call(t, app, "POST", "/v1/pins/"+pin.ID+"/confirm", b, "", nil); code != 404 {
		t.Fatalf("expected 404 before approval, got %d", code)
	}
	if code := call(t, app, "POST", "/v1/admin/pins/approve", modPair.Access, `{"ids":["`+pin.ID+`"]}`, nil); code != 200 {
		t.Fatalf("approve: %d", code)
	}

	steps := []struct {
		method, token string
		count         int
		tier          domain.Tier
	}{
		{"POST", b, 1, domain.TierBlue},
		{"POST", b, 1, domain.TierBlue},
		{"POST", c, 2, domain.TierYellow},
		{"DELETE", b, 1, domain.TierBlue},
	}
	for i, s := range steps {
		var v domain.PinView
		if code := call(t, app, s.method, "/v1/pins/"+pin.ID+"/confirm", s.token, "", &v); code != 200 {
			t.Fatalf("step %d: %d", i, code)
		}
		if v.ConfirmationsCount != s.count || v.Color != s.tier {
			t.Errorf("step %d: got %d/%s, want %d/%s", i, v.ConfirmationsCount, v.Color, s.count, s.tier)
		}
	}

	if code := call(t, app, "POST", "/v1/pins/"+pin.ID+"/confirm", owner, "", nil); code != 400 {
		t.Errorf("expected 400 for self-confirmation, got %d", code)
	}

	var corrected map[string]int
	call(t, app, "POST", "/v1/admin/reconcile", modPair.Access, "", &corrected)
	if corrected["corrected"] != 0 {
		t.Errorf("counter drifted: %v", corrected)
	}
}
