package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"

	"github.com/samirrijal/pinmap/internal/adapters/postgres"
	"github.com/samirrijal/pinmap/internal/core/usecases"
	"github.com/samirrijal/pinmap/internal/pkg/auth"
	"github.com/samirrijal/pinmap/internal/pkg/config"
	"github.com/samirrijal/pinmap/internal/pkg/logging"
)

const usage = `usage:
  pinctl migrate up
  pinctl migrate down [steps]
  pinctl create-admin <username> <password>
  pinctl reconcile [pin-id ...]`

func main() {
	if len(os.Args) < 2 {
		log.Fatal(usage)
	}

	cfg, err := config.Load("pinmap-ctl")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, "text")

	ctx := context.Background()
	args := os.Args[2:]

	switch os.Args[1] {
	case "migrate":
		err = runMigrate(cfg, args)
	case "create-admin":
		err = runCreateAdmin(ctx, cfg, args)
	case "reconcile":
		err = runReconcile(ctx, cfg, args)
	default:
		log.Fatalf("unknown command: %s\n%s", os.Args[1], usage)
	}
	if err != nil {
		log.Fatalf("%s: %v", os.Args[1], err)
	}
}

func runMigrate(cfg *config.Config, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing direction\n%s", usage)
	}
	switch args[0] {
	case "up":
		return postgres.MigrateUp(cfg.Database.DSN())
	case "down":
		steps := 1
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n <= 0 {
				return fmt.Errorf("steps must be a positive integer, got %q", args[1])
			}
			steps = n
		}
		return postgres.MigrateDown(cfg.Database.DSN(), steps)
	default:
		return fmt.Errorf("unknown direction %q", args[0])
	}
}

func runCreateAdmin(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("expected <username> <password>\n%s", usage)
	}
	db, err := postgres.New(ctx, cfg.Database.DSN(), 2)
	if err != nil {
		return err
	}
	defer db.Close()

	// Tokens are never issued here, so the secret is not validated.
	tokens := auth.NewJWTService(cfg.Auth.JWTSecret, "", cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL)
	svc := usecases.NewAuthService(postgres.NewUserRepo(db, postgres.NewCounterMaintainer(db)), tokens)

	user, err := svc.CreateAdmin(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Printf("OK  %s is staff (id %s)\n", user.Username, user.ID)
	return nil
}

func runReconcile(ctx context.Context, cfg *config.Config, pinIDs []string) error {
	db, err := postgres.New(ctx, cfg.Database.DSN(), 4)
	if err != nil {
		return err
	}
	defer db.Close()

	svc := usecases.NewReconcileService(postgres.NewCounterMaintainer(db), cfg.Reconcile.BatchSize, slog.Default())

	var corrected int64
	if len(pinIDs) == 0 {
		corrected, err = svc.ReconcileAll(ctx)
	} else {
		corrected, err = svc.ReconcilePins(ctx, pinIDs...)
	}
	if err != nil {
		return err
	}
	fmt.Printf("OK  %d pin(s) corrected\n", corrected)
	return nil
}
