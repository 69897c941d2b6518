package sqlite

import (
	"database/sql"

	"github.com/aussiebroadwan/seatbridge/internal/bridge/store/drivers/sqlite/migrations"
	"github.com/aussiebroadwan/seatbridge/internal/bridge/store/drivers/sqlstore"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
)

func applyMigrations(db *sql.DB) error {
	driver, err := sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
	if err != nil {
		return err
	}
	return sqlstore.Migrate(migrations.Migrations, "sqlite", driver)
}
