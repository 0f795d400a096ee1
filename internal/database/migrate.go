package database

import (
	"database/sql"
	"embed"

	"github.com/golang-migrate/migrate/v4"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/pkg/errors"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies every pending migration to one client database.  It takes
// ownership of db: the connection is closed when Migrate returns.
func Migrate(db *sql.DB) (version uint, err error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		_ = db.Close()
		return 0, errors.Wrap(err, "load migrations")
	}
	driver, err := migratemysql.WithInstance(db, &migratemysql.Config{})
	if err != nil {
		_ = db.Close()
		return 0, errors.Wrap(err, "migration driver")
	}
	m, err := migrate.NewWithInstance("iofs", src, "mysql", driver)
	if err != nil {
		_ = db.Close()
		return 0, errors.Wrap(err, "migration instance")
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if err == nil && srcErr != nil {
			err = srcErr
		}
		if err == nil && dbErr != nil {
			err = dbErr
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, errors.Wrap(err, "apply migrations")
	}
	v, _, verr := m.Version()
	if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
		return 0, errors.Wrap(verr, "read migration version")
	}
	return v, nil
}
