package database

import (
	"io"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens the database named by dsn.
// postgres:// and postgresql:// URLs use the Postgres driver; anything else is a SQLite path.
// Driver errors are translated so unique violations surface as gorm.ErrDuplicatedKey.
func Connect(dsn string) (*gorm.DB, error) {
	return Open(dsn, os.Stderr)
}

// Open is Connect with GORM's warnings written to out.
// Lookups that miss are expected and are not logged.
func Open(dsn string, out io.Writer) (*gorm.DB, error) {
	return gorm.Open(Dialector(dsn), &gorm.Config{
		TranslateError: true,
		Logger: logger.New(log.New(out, "\r\n", log.LstdFlags), logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
}

// Dialector picks the GORM driver for a DSN.
func Dialector(dsn string) gorm.Dialector {
	if IsPostgres(dsn) {
		return postgres.Open(dsn)
	}
	return sqlite.Open(dsn)
}

// IsPostgres reports whether dsn addresses a Postgres server.
func IsPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}
