package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"go.uber.org/zap"

	"github.com/BaSui01/stemchat/config"
	"github.com/BaSui01/stemchat/internal/migration"
)

// =============================================================================
// 🗄️ migrate 命令
// =============================================================================

// migrateAction runs one subcommand. pos holds the positional arguments
// left after flag parsing.
type migrateAction func(ctx context.Context, cli *migration.CLI, pos []string) error

var migrateActions = map[string]migrateAction{
	"up": func(ctx context.Context, cli *migration.CLI, _ []string) error { return cli.RunUp(ctx) },
	"down": func(ctx context.Context, cli *migration.CLI, pos []string) error {
		if len(pos) > 0 {
			n, err := strconv.Atoi(pos[0])
			if err != nil || n <= 0 {
				return fmt.Errorf("invalid step count %q", pos[0])
			}
			return cli.RunSteps(ctx, -n)
		}
		return cli.RunDown(ctx)
	},
	"status":  func(ctx context.Context, cli *migration.CLI, _ []string) error { return cli.RunStatus(ctx) },
	"version": func(ctx context.Context, cli *migration.CLI, _ []string) error { return cli.RunVersion(ctx) },
	"info":    func(ctx context.Context, cli *migration.CLI, _ []string) error { return cli.RunInfo(ctx) },
	"reset":   func(ctx context.Context, cli *migration.CLI, _ []string) error { return cli.RunReset(ctx) },
	"goto": func(ctx context.Context, cli *migration.CLI, pos []string) error {
		if len(pos) < 1 {
			return fmt.Errorf("usage: stemchat migrate goto <version>")
		}
		v, err := strconv.ParseUint(pos[0], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid version %q", pos[0])
		}
		return cli.RunGoto(ctx, uint(v))
	},
	"force": func(ctx context.Context, cli *migration.CLI, pos []string) error {
		if len(pos) < 1 {
			return fmt.Errorf("usage: stemchat migrate force <version>")
		}
		v, err := strconv.ParseInt(pos[0], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid version %q", pos[0])
		}
		return cli.RunForce(ctx, int(v))
	},
}

// runMigrate handles "stemchat migrate <subcommand> [flags] [args]".
func runMigrate(args []string) {
	if len(args) < 1 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printMigrateUsage()
		if len(args) < 1 {
			os.Exit(1)
		}
		return
	}

	action, ok := migrateActions[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown migrate subcommand: %s\n", args[0])
		printMigrateUsage()
		os.Exit(1)
	}

	fs := flag.NewFlagSet("migrate "+args[0], flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	dbType := fs.String("db-type", "", "Database type (postgres, mysql, sqlite)")
	dbURL := fs.String("db-url", "", "Database connection URL")
	_ = fs.Parse(args[1:])

	migrator, err := createMigrator(*configPath, *dbType, *dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create migrator: %v\n", err)
		os.Exit(1)
	}
	defer migrator.Close()

	if err := action(context.Background(), migration.NewCLI(migrator), fs.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "migrate %s failed: %v\n", args[0], err)
		migrator.Close()
		os.Exit(1)
	}
}

// createMigrator prefers an explicit --db-type/--db-url pair, otherwise the
// database section of the loaded config.
func createMigrator(configPath, dbType, dbURL string) (*migration.DefaultMigrator, error) {
	if dbType != "" && dbURL != "" {
		return migration.NewMigratorFromURL(dbType, dbURL, zap.NewNop())
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if dbType != "" {
		cfg.Database.Driver = dbType
	}
	return migration.NewMigratorFromDatabaseConfig(cfg.Database, initLogger(cfg.Log))
}

// loadConfig loads defaults, the optional YAML file and env overrides.
func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()
	if path != "" {
		loader = loader.WithConfigPath(path)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func printMigrateUsage() {
	fmt.Println(`Database Migration Commands

Usage:
  stemchat migrate <subcommand> [options] [args]

Subcommands:
  up            Apply all pending migrations
  down [n]      Roll back the last migration, or the last n
  status        Show every migration and whether it is applied
  version       Show the current migration version
  info          Show version, dirty flag and pending count
  goto <v>      Migrate up or down to version v
  force <v>     Set the version without running migrations (fixes a dirty state)
  reset         Roll back every migration

Options:
  --config <path>     Path to configuration file (YAML)
  --db-type <type>    postgres, mysql or sqlite (default: from config)
  --db-url <url>      Connection URL (default: from config)

Examples:
  stemchat migrate up
  stemchat migrate status --config /etc/stemchat/config.yaml
  stemchat migrate goto 2
  stemchat migrate up --db-type sqlite --db-url ./stemchat.db`)
}
