package database

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
)

// NormalizeDSN accepts either a go-sql-driver DSN
// (user:pass@tcp(host:3306)/shop) or the same string prefixed with
// "mysql://", and returns a driver DSN with the settings every client
// database needs: parseTime=true, loc=UTC, utf8mb4.
func NormalizeDSN(raw string) (string, error) {
	dsn := strings.TrimPrefix(strings.TrimSpace(raw), "mysql://")
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", errors.Wrap(err, "parse database url")
	}
	if cfg.DBName == "" {
		return "", errors.New("database url has no database name")
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	if cfg.Params == nil {
		cfg.Params = map[string]string{}
	}
	if !strings.Contains(dsn, "charset=") {
		cfg.Params["charset"] = "utf8mb4"
	}
	return cfg.FormatDSN(), nil
}

// Open connects to MySQL and verifies the connection.
func Open(ctx context.Context, rawDSN string) (*sql.DB, error) {
	dsn, err := NormalizeDSN(rawDSN)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	// Ping with timeout
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping database")
	}
	return db, nil
}

// IsDuplicateKey reports whether err is a MySQL unique-index violation.
func IsDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	return false
}
