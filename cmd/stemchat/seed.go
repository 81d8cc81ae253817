package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/stemchat/internal/auth"
	"github.com/BaSui01/stemchat/internal/inventory"
	"github.com/BaSui01/stemchat/internal/lessons"
)

// seedUsers are the starter accounts of a fresh installation.
var seedUsers = []struct{ username, password string }{
	{"admin", "admin123"},
	{"teacher1", "password123"},
}

// SeedSummary counts what one seed run inserted.
type SeedSummary struct {
	Users     int
	Items     int
	Suppliers int
	Lessons   int
	Skipped   bool
}

func runSeed(args []string) {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	_ = fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := migrateUp(ctx, cfg.Database, logger); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	db, err := openDatabase(cfg.Database, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	tokens := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	summary, err := seedAll(ctx, db, auth.NewService(db, tokens, logger), logger)
	if sqlDB, dbErr := db.DB(); dbErr == nil {
		_ = sqlDB.Close()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Seed complete")
	fmt.Printf("  Users created:  %d\n", summary.Users)
	if summary.Skipped {
		fmt.Println("  Inventory:      already present, skipped")
	} else {
		fmt.Printf("  Items:          %d\n", summary.Items)
		fmt.Printf("  Suppliers:      %d\n", summary.Suppliers)
	}
	fmt.Printf("  Lesson plans:   %d\n", summary.Lessons)
}

// seedAll inserts users, inventory and lesson plans. Every step is
// idempotent so the command can be rerun.
func seedAll(ctx context.Context, db *gorm.DB, users *auth.Service, logger *zap.Logger) (SeedSummary, error) {
	var summary SeedSummary
	for _, u := range seedUsers {
		created, err := users.EnsureUser(ctx, u.username, u.password)
		if err != nil {
			return summary, fmt.Errorf("seed user %s: %w", u.username, err)
		}
		if created {
			summary.Users++
		}
	}

	inv, err := inventory.Seed(ctx, db, logger)
	if err != nil {
		return summary, fmt.Errorf("seed inventory: %w", err)
	}
	summary.Items, summary.Suppliers, summary.Skipped = inv.Items, inv.Suppliers, inv.Skipped

	n, err := lessons.Seed(ctx, db, logger)
	if err != nil {
		return summary, fmt.Errorf("seed lesson plans: %w", err)
	}
	summary.Lessons = n
	return summary, nil
}
