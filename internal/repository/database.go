package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // SQLite driver
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

//go:embed migrations
var migrationFiles embed.FS

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Connector hands out one dedicated connection per store operation, retrying
// while the database is unreachable.
type Connector struct {
	driver   string
	dsn      string
	attempts int
	delay    time.Duration
	logger   *zap.Logger
}

// NewConnector creates a Connector for the given driver and data source.
func NewConnector(driver, dsn string, attempts int, delay time.Duration, logger *zap.Logger) *Connector {
	return &Connector{
		driver:   driver,
		dsn:      dsn,
		attempts: attempts,
		delay:    delay,
		logger:   logger,
	}
}

// Driver returns the configured database/sql driver name.
func (c *Connector) Driver() string {
	return c.driver
}

// Acquire opens a single-connection handle. The caller owns it and must Close it.
func (c *Connector) Acquire(ctx context.Context) (*sqlx.DB, error) {
	return Acquire(ctx, c.dial, c.attempts, c.delay, c.logger)
}

func (c *Connector) dial(ctx context.Context) (*sqlx.DB, error) {
	db, err := sqlx.Open(c.driver, c.dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, classifyDialError(fmt.Errorf("failed to connect to database: %w", err))
	}
	return db, nil
}

// withConn runs fn on a freshly acquired connection and releases it afterwards.
func (c *Connector) withConn(ctx context.Context, fn func(db *sqlx.DB) error) error {
	db, err := c.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			c.logger.Warn("Failed to close database connection", zap.Error(cerr))
		}
	}()
	return fn(db)
}

// OpenPool opens a long-lived connection pool for the serving API.
func OpenPool(ctx context.Context, c *Connector, maxOpen int) (*sqlx.DB, error) {
	dial := func(ctx context.Context) (*sqlx.DB, error) {
		db, err := sqlx.Open(c.driver, c.dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, classifyDialError(fmt.Errorf("failed to connect to database: %w", err))
		}
		return db, nil
	}

	db, err := Acquire(ctx, dial, c.attempts, c.delay, c.logger)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(1)

	c.logger.Info("Successfully connected to the database!", zap.String("driver", c.driver))
	return db, nil
}

// EnsureSchema applies the embedded migrations for the connector's dialect.
// It is idempotent and meant to run on every process start.
func EnsureSchema(ctx context.Context, c *Connector) error {
	db, err := c.Acquire(ctx)
	if err != nil {
		return err
	}

	var driver database.Driver
	switch c.driver {
	case DriverPostgres:
		driver, err = postgres.WithInstance(db.DB, &postgres.Config{})
	case DriverSQLite:
		driver, err = sqlite.WithInstance(db.DB, &sqlite.Config{})
	default:
		err = fmt.Errorf("unsupported database driver %q", c.driver)
	}
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("couldn't get database instance for running migrations: %w", err)
	}

	src, err := iofs.New(migrationFiles, "migrations/"+c.driver)
	if err != nil {
		_ = driver.Close()
		return fmt.Errorf("couldn't open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, c.driver, driver)
	if err != nil {
		_ = driver.Close()
		return fmt.Errorf("couldn't create migrate instance: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			c.logger.Warn("Failed to close migrate instance", zap.NamedError("source", srcErr), zap.NamedError("database", dbErr))
		}
	}()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			c.logger.Info("No new migrations to apply.")
			return nil
		}
		return fmt.Errorf("couldn't run database migration: %w", err)
	}

	c.logger.Info("Database migration was run successfully")
	return nil
}
