package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log"
	"os"
	"path"
	"strconv"
	"sync"

	"github.com/pressly/goose/v3"

	"github.com/angelmondragon/tradevouch/pkg/db"
)

// DefaultDir is the on-disk root used by the create/validate CLI commands.
const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var embedded embed.FS

// goose keeps its dialect and base FS in package globals.
var gooseMu sync.Mutex

// Embedded exposes the migrations compiled into the binary.
func Embedded() embed.FS {
	return embedded
}

// DirFor returns the migration directory inside the embedded FS for a db driver.
func DirFor(driver string) (string, error) {
	switch driver {
	case db.DriverPostgres:
		return path.Join("migrations", "postgres"), nil
	case db.DriverSQLite:
		return path.Join("migrations", "sqlite"), nil
	default:
		return "", fmt.Errorf("unsupported migration driver %q", driver)
	}
}

func gooseDialect(driver string) string {
	if driver == db.DriverSQLite {
		return "sqlite3"
	}
	return "postgres"
}

func prepare(driver string) (string, error) {
	dir, err := DirFor(driver)
	if err != nil {
		return "", err
	}
	goose.SetBaseFS(embedded)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(gooseDialect(driver)); err != nil {
		return "", fmt.Errorf("set goose dialect: %w", err)
	}
	return dir, nil
}

// Up applies every pending embedded migration. Already-applied versions are skipped.
func Up(ctx context.Context, sqlDB *sql.DB, driver string) error {
	if sqlDB == nil {
		return fmt.Errorf("db is required")
	}
	gooseMu.Lock()
	defer gooseMu.Unlock()

	dir, err := prepare(driver)
	if err != nil {
		return err
	}
	if err := goose.UpContext(ctx, sqlDB, dir); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// Run executes a standard goose command that requires a DB connection.
func Run(ctx context.Context, sqlDB *sql.DB, driver string, command string, args ...string) error {
	if sqlDB == nil {
		return fmt.Errorf("db is required")
	}
	gooseMu.Lock()
	defer gooseMu.Unlock()

	dir, err := prepare(driver)
	if err != nil {
		return err
	}
	// status output goes to the goose logger, so restore the default one for CLI use
	goose.SetLogger(log.New(os.Stdout, "", log.LstdFlags))
	if err := goose.RunContext(ctx, command, sqlDB, dir, args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

// MigrateToVersion migrates up/down to the requested version by comparing current DB version.
func MigrateToVersion(ctx context.Context, sqlDB *sql.DB, driver string, targetVersion string) error {
	if targetVersion == "" {
		return fmt.Errorf("targetVersion is required")
	}
	target, err := strconv.ParseInt(targetVersion, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", targetVersion, err)
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	dir, err := prepare(driver)
	if err != nil {
		return err
	}

	current, err := goose.GetDBVersionContext(ctx, sqlDB)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}

	switch {
	case current == target:
		return nil
	case current < target:
		if err := goose.UpToContext(ctx, sqlDB, dir, target); err != nil {
			return fmt.Errorf("goose up-to %d: %w", target, err)
		}
		return nil
	default:
		if err := goose.DownToContext(ctx, sqlDB, dir, target); err != nil {
			return fmt.Errorf("goose down-to %d: %w", target, err)
		}
		return nil
	}
}
