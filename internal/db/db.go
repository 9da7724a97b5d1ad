// internal/db/db.go
package db

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	sqlitecgo "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const DefaultFile = "colppy2gs.db"

// Handle is an open ledger database.
type Handle struct {
	DB     *gorm.DB
	Driver string
	DSN    string
}

// Open connects with one of: sqlite (pure Go, default), sqlite-cgo, mysql,
// postgres.
func Open(driver, dsn string) (*Handle, error) {
	driver = strings.ToLower(strings.TrimSpace(driver))
	if driver == "" {
		driver = "sqlite"
	}
	var dial gorm.Dialector
	switch driver {
	case "sqlite":
		dial = sqlite.Open(dsn)
	case "sqlite-cgo", "sqlite3":
		dial = sqlitecgo.Open(dsn)
	case "mysql":
		dial = mysql.Open(dsn)
	case "postgres":
		dial = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}
	if dsn == "" {
		return nil, fmt.Errorf("database %s: empty dsn", driver)
	}
	gdb, err := gorm.Open(dial, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	return &Handle{DB: gdb, Driver: driver, DSN: dsn}, nil
}

// OpenAt opens the default sqlite file inside dir.
func OpenAt(dir string) (*Handle, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return Open("sqlite", filepath.Join(dir, DefaultFile))
}

func (h *Handle) Close() error {
	sqlDB, err := h.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
