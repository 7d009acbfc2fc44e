package bootstrap

import (
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/deskbot/core/config"
	coredatabase "github.com/m3rciful/deskbot/core/database"
)

func noLogger(*coreconfig.Config) error { return nil }

func TestRunSkipsDatabase(t *testing.T) {
	res, err := Run(Options{
		Config:       &coreconfig.Config{},
		SkipDatabase: true,
		LoggerInit:   noLogger,
		Connect: func(coredatabase.Config) (*sqlx.DB, error) {
			t.Fatal("connect must not be called")
			return nil, nil
		},
	})
	require.NoError(t, err)
	assert.Nil(t, res.DB)
	assert.NoError(t, res.Close())
}

func TestRunConnectsAndMigrates(t *testing.T) {
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectClose()

	migrated := false
	res, err := Run(Options{
		Config:     &coreconfig.Config{},
		Database:   coredatabase.Config{Name: "deskbot"},
		LoggerInit: noLogger,
		Connect: func(cfg coredatabase.Config) (*sqlx.DB, error) {
			assert.Equal(t, "deskbot", cfg.Name)
			return sqlx.NewDb(raw, "postgres"), nil
		},
		Migrate: func(coredatabase.Config) error { migrated = true; return nil },
	})
	require.NoError(t, err)
	assert.True(t, migrated)
	require.NoError(t, res.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunClosesPoolWhenMigrationsFail(t *testing.T) {
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectClose()

	_, err = Run(Options{
		Config:     &coreconfig.Config{},
		LoggerInit: noLogger,
		Connect:    func(coredatabase.Config) (*sqlx.DB, error) { return sqlx.NewDb(raw, "postgres"), nil },
		Migrate:    func(coredatabase.Config) error { return errors.New("dirty") },
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migrations failed")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRequiresConfig(t *testing.T) {
	_, err := Run(Options{})
	assert.Error(t, err)
}
