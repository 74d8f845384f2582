package integration

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/pittsbowling/api/internal/database"
	"github.com/pittsbowling/api/internal/models"
	pkgauth "github.com/pittsbowling/api/pkg/auth"
)

// TestDB manages the PostgreSQL testcontainer and database handle
type TestDB struct {
	Container  testcontainers.Container
	ConnString string
	Pool       *pgxpool.Pool
	DB         *database.DB
}

// SetupTestDatabase creates a PostgreSQL testcontainer, runs the embedded
// migrations, and returns a TestDB ready for repository use.
func SetupTestDatabase(ctx context.Context) (*TestDB, error) {
	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("pittsbowling"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	db := database.NewFromPool(pool, quiet)

	if err := db.Migrate(quiet); err != nil {
		pool.Close()
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &TestDB{
		Container:  container,
		ConnString: connStr,
		Pool:       pool,
		DB:         db,
	}, nil
}

// Teardown stops the container and closes the connection pool
func (db *TestDB) Teardown(ctx context.Context) error {
	if db.Pool != nil {
		db.Pool.Close()
	}
	if db.Container != nil {
		return db.Container.Terminate(ctx)
	}
	return nil
}

// CleanupTables truncates all tables for test isolation
func (db *TestDB) CleanupTables(ctx context.Context) error {
	tables := []string{
		"order_notes",
		"reservation_lanes",
		"reservations",
		"lanes",
		"refresh_tokens",
		"users",
	}

	for _, table := range tables {
		if _, err := db.Pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)); err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	return nil
}

// SeedUser inserts a verified user with the given password
func SeedUser(ctx context.Context, pool *pgxpool.Pool, email, password string) (*models.User, error) {
	hashed, err := pkgauth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		ID:            uuid.NewString(),
		Name:          "Test",
		LastName:      "User",
		Username:      "user-" + uuid.NewString()[:8],
		Email:         email,
		PasswordHash:  hashed,
		EmailVerified: true,
		Role:          "user",
	}

	query := `
		INSERT INTO users (id, name, last_name, username, email, password_hash, email_verified, role)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if _, err := pool.Exec(ctx, query,
		user.ID, user.Name, user.LastName, user.Username,
		user.Email, user.PasswordHash, user.EmailVerified, user.Role,
	); err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	return user, nil
}

// SeedLane inserts an active lane with the given number and hourly price
func SeedLane(ctx context.Context, pool *pgxpool.Pool, laneNumber, maxPlayers, priceCents int) (*models.Lane, error) {
	lane := &models.Lane{
		ID:                uuid.NewString(),
		LaneNumber:        laneNumber,
		Name:              fmt.Sprintf("Lane %d", laneNumber),
		MaxPlayers:        maxPlayers,
		PricePerHourCents: priceCents,
		Active:            true,
	}

	query := `
		INSERT INTO lanes (id, lane_number, name, description, max_players, price_per_hour_cents, active)
		VALUES ($1, $2, $3, '', $4, $5, TRUE)
	`
	if _, err := pool.Exec(ctx, query,
		lane.ID, lane.LaneNumber, lane.Name, lane.MaxPlayers, lane.PricePerHourCents,
	); err != nil {
		return nil, fmt.Errorf("failed to insert lane: %w", err)
	}

	return lane, nil
}
