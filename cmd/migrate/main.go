// Command migrate inspects and changes the database schema outside the API
// process.
//
//	migrate [-env-file .env] [-timeout 2m] <command> [version]
//
// Commands: list, status, up, auto, down <version>.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"postapp/internal/config"
	"postapp/internal/database"
	"postapp/internal/middleware"

	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

const usageText = "usage: migrate [-env-file path] [-timeout d] <list|status|up|auto|down <version>>"

var errUsage = errors.New(usageText)

// command is one parsed invocation. version is only set for down.
type command struct {
	name    string
	version int
}

func parseCommand(args []string) (command, error) {
	if len(args) == 0 {
		return command{}, errUsage
	}
	cmd := command{name: strings.ToLower(strings.TrimSpace(args[0]))}
	switch cmd.name {
	case "list", "status", "up", "auto":
		if len(args) > 1 {
			return command{}, fmt.Errorf("%s takes no arguments: %w", cmd.name, errUsage)
		}
	case "down":
		if len(args) != 2 {
			return command{}, fmt.Errorf("down needs exactly one version: %w", errUsage)
		}
		v, err := strconv.Atoi(args[1])
		if err != nil || v < 1 {
			return command{}, fmt.Errorf("invalid version %q", args[1])
		}
		cmd.version = v
	default:
		return command{}, fmt.Errorf("unknown command %q: %w", args[0], errUsage)
	}
	return cmd, nil
}

type migrator struct {
	db  *gorm.DB
	cfg *config.Config
	log *slog.Logger
}

func (m *migrator) run(ctx context.Context, cmd command) error {
	switch cmd.name {
	case "list":
		for _, mig := range database.GetMigrations() {
			m.log.Info("migration", slog.String("id", mig.String()))
		}
		return nil
	case "status":
		return m.status(ctx)
	case "up":
		if err := database.RunMigrations(ctx, m.db); err != nil {
			return fmt.Errorf("apply sql migrations: %w", err)
		}
		m.log.Info("SQL migrations applied")
		return nil
	case "auto":
		cfg := *m.cfg
		cfg.DBSchemaMode = database.SchemaModeAuto
		if err := database.ApplySchema(ctx, m.db, &cfg); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
		m.log.Info("AutoMigrate applied")
		return nil
	case "down":
		if err := database.RollbackMigration(ctx, m.db, cmd.version); err != nil {
			return fmt.Errorf("roll back %d: %w", cmd.version, err)
		}
		m.log.Info("Migration rolled back", slog.Int("version", cmd.version))
		return nil
	}
	return errUsage
}

func (m *migrator) status(ctx context.Context) error {
	st, err := database.GetSchemaStatus(ctx, m.db, m.cfg)
	if err != nil {
		return fmt.Errorf("schema status: %w", err)
	}
	m.log.Info("Schema status",
		slog.String("mode", st.Mode),
		slog.String("env", st.Environment),
		slog.Bool("run_sql", st.WillRunSQL),
		slog.Bool("run_auto", st.WillRunAutoMigrate),
		slog.Int("applied", len(st.AppliedVersions)),
		slog.Int("pending", len(st.PendingMigrations)),
	)
	for _, mig := range st.PendingMigrations {
		m.log.Info("Pending migration", slog.String("id", mig.String()))
	}
	return nil
}

func main() {
	envFile := flag.String("env-file", ".env", "Environment file to load before reading configuration")
	timeout := flag.Duration("timeout", 2*time.Minute, "Give up after this long")
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), usageText)
		flag.PrintDefaults()
	}
	flag.Parse()

	cmd, err := parseCommand(flag.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load %s: %v\n", *envFile, err)
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := middleware.SetupLogger(cfg.Env).With(slog.String("command", cmd.name))

	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: false})
	if err != nil {
		logger.Error("Failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	err = (&migrator{db: db, cfg: cfg, log: logger}).run(ctx, cmd)
	cancel()
	if err != nil {
		logger.Error("Migration command failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
