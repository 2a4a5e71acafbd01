package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	payoutdomain "github.com/smallbiznis/rewardzway/internal/payout/domain"
	referraldomain "github.com/smallbiznis/rewardzway/internal/referral/domain"
	rewarddomain "github.com/smallbiznis/rewardzway/internal/reward/domain"
	rewardclaimdomain "github.com/smallbiznis/rewardzway/internal/rewardclaim/domain"
	rewardconfigdomain "github.com/smallbiznis/rewardzway/internal/rewardconfig/domain"
	"gorm.io/gorm"
)

// Models lists every table the reward engine reads or writes.
func Models() []any {
	return []any{
		&referraldomain.User{},
		&referraldomain.Address{},
		&referraldomain.Order{},
		&rewardconfigdomain.Configuration{},
		&rewarddomain.PrimaryRewardPoint{},
		&rewarddomain.PRPMatching{},
		&rewarddomain.SecondaryRewardPoint{},
		&rewarddomain.SpotRewardPoint{},
		&rewardclaimdomain.RewardClaim{},
		&payoutdomain.Payout{},
	}
}

// Apply brings the schema up to date. Postgres runs the embedded SQL
// migrations; the other dialects are for local use and are auto-migrated.
func Apply(conn *gorm.DB, dbType string) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	if dbType != "postgres" {
		return conn.AutoMigrate(Models()...)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return RunMigrations(sqlDB)
}

func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Closing the migrator would close the shared *sql.DB.

	return nil
}
