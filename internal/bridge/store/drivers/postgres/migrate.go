package postgres

import (
	"database/sql"

	"github.com/aussiebroadwan/seatbridge/internal/bridge/store/drivers/postgres/migrations"
	"github.com/aussiebroadwan/seatbridge/internal/bridge/store/drivers/sqlstore"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
)

func applyMigrations(db *sql.DB) error {
	driver, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	if err != nil {
		return err
	}
	return sqlstore.Migrate(migrations.Migrations, "pgx5", driver)
}
