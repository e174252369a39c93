package tools

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

//go:embed migration/*.sql
var migrationFiles embed.FS

// ConnectSqlite opens the results database and applies any pending migrations.
func ConnectSqlite(filePath string, log *logrus.Logger) (*sql.DB, error) {
	db, err := connectWithBackoff("sqlite3", filePath, 3, log)
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// RunMigrations applies each embedded migration once, in file name order.
func RunMigrations(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		name TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	dirEntries, err := fs.ReadDir(migrationFiles, "migration")
	if err != nil {
		return err
	}
	names := make([]string, 0, len(dirEntries))
	for _, entry := range dirEntries {
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		var applied int
		if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE name = ?", name).Scan(&applied); err != nil {
			return err
		}
		if applied > 0 {
			continue
		}
		fileData, err := fs.ReadFile(migrationFiles, path.Join("migration", name))
		if err != nil {
			return err
		}
		if _, err := db.Exec(string(fileData)); err != nil {
			return fmt.Errorf("migration %s: %w", name, err)
		}
		if _, err := db.Exec("INSERT INTO schema_migrations (name) VALUES (?)", name); err != nil {
			return err
		}
	}
	return nil
}

func connectWithBackoff(driver string, connStr string, maxRetries int, log *logrus.Logger) (*sql.DB, error) {
	var db *sql.DB
	var err error
	for i := 0; i < maxRetries; i++ {
		db, err = sql.Open(driver, connStr)
		if err == nil {
			err = db.Ping()
			if err == nil {
				return db, nil
			}
			db.Close()
		}
		log.WithError(err).WithField("attempt", i+1).Warnf("Failed attempt to connect to %s", driver)
		if i < maxRetries-1 {
			time.Sleep(time.Duration(i+1) * (3 * time.Second))
		}
	}
	return nil, err
}
