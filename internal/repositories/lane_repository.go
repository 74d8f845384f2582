package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pittsbowling/api/internal/database"
	"github.com/pittsbowling/api/internal/models"
)

const laneColumns = `id, lane_number, name, description, max_players, price_per_hour_cents, active, created_at, updated_at`

// liveStatusFilter matches the statuses in models.LiveReservationStatuses.
const liveStatusFilter = `('pending', 'confirmed', 'paid')`

type LaneRepository struct {
	db *database.DB
}

func NewLaneRepository(db *database.DB) *LaneRepository {
	return &LaneRepository{db: db}
}

func scanLane(row pgx.Row) (*models.Lane, error) {
	var l models.Lane
	err := row.Scan(
		&l.ID, &l.LaneNumber, &l.Name, &l.Description, &l.MaxPlayers,
		&l.PricePerHourCents, &l.Active, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &l, nil
}

func (r *LaneRepository) Create(ctx context.Context, lane *models.Lane) error {
	if lane.ID == "" {
		lane.ID = uuid.New().String()
	}

	query := `
		INSERT INTO lanes (id, lane_number, name, description, max_players, price_per_hour_cents, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	err := r.db.Pool.QueryRow(ctx, query,
		lane.ID, lane.LaneNumber, lane.Name, lane.Description,
		lane.MaxPlayers, lane.PricePerHourCents, lane.Active,
	).Scan(&lane.CreatedAt, &lane.UpdatedAt)

	return database.MapPostgresError(err)
}

func (r *LaneRepository) GetByID(ctx context.Context, id string) (*models.Lane, error) {
	query := `SELECT ` + laneColumns + ` FROM lanes WHERE id = $1`
	return scanLane(r.db.Pool.QueryRow(ctx, query, id))
}

func (r *LaneRepository) List(ctx context.Context, activeOnly bool) ([]*models.Lane, error) {
	query := `SELECT ` + laneColumns + ` FROM lanes`
	if activeOnly {
		query += ` WHERE active = TRUE`
	}
	query += ` ORDER BY lane_number`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	var lanes []*models.Lane
	for rows.Next() {
		lane, err := scanLane(rows)
		if err != nil {
			return nil, err
		}
		lanes = append(lanes, lane)
	}
	return lanes, database.MapPostgresError(rows.Err())
}

func (r *LaneRepository) Update(ctx context.Context, lane *models.Lane) error {
	query := `
		UPDATE lanes
		SET lane_number = $2, name = $3, description = $4, max_players = $5,
		    price_per_hour_cents = $6, active = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.Pool.QueryRow(ctx, query,
		lane.ID, lane.LaneNumber, lane.Name, lane.Description,
		lane.MaxPlayers, lane.PricePerHourCents, lane.Active,
	).Scan(&lane.UpdatedAt)

	return database.MapPostgresError(err)
}

// Deactivate retires a lane without breaking historical reservations.
func (r *LaneRepository) Deactivate(ctx context.Context, id string) error {
	query := `UPDATE lanes SET active = FALSE, updated_at = NOW() WHERE id = $1`
	tag, err := r.db.Pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *LaneRepository) CountActive(ctx context.Context) (int, error) {
	var count int
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM lanes WHERE active = TRUE`).Scan(&count)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}

// FindAvailable returns active lanes whose booked intervals do not
// overlap [from, until). Intervals are half-open, so a booking ending at
// 19:00 never blocks one starting at 19:00. Lanes come back in
// lane_number order so assignment is deterministic.
func (r *LaneRepository) FindAvailable(ctx context.Context, from, until time.Time) ([]*models.Lane, error) {
	query := `
		SELECT ` + laneColumns + `
		FROM lanes l
		WHERE l.active = TRUE
		  AND NOT EXISTS (
			SELECT 1
			FROM reservation_lanes rl
			JOIN reservations res ON res.id = rl.reservation_id
			WHERE rl.lane_id = l.id
			  AND res.status IN ` + liveStatusFilter + `
			  AND rl.booked_from < $2
			  AND rl.booked_until > $1
		  )
		ORDER BY l.lane_number`

	rows, err := r.db.Pool.Query(ctx, query, from, until)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	var lanes []*models.Lane
	for rows.Next() {
		lane, err := scanLane(rows)
		if err != nil {
			return nil, err
		}
		lanes = append(lanes, lane)
	}
	return lanes, database.MapPostgresError(rows.Err())
}

// BookedWindows lists the live booked intervals for every active lane
// that intersect [from, until). Feeds the busy-hours view.
func (r *LaneRepository) BookedWindows(ctx context.Context, from, until time.Time) ([]*models.ReservationLane, error) {
	query := `
		SELECT rl.reservation_id, rl.lane_id, rl.booked_from, rl.booked_until
		FROM reservation_lanes rl
		JOIN reservations res ON res.id = rl.reservation_id
		WHERE res.status IN ` + liveStatusFilter + `
		  AND rl.booked_from < $2
		  AND rl.booked_until > $1
		ORDER BY rl.booked_from`

	rows, err := r.db.Pool.Query(ctx, query, from, until)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	var windows []*models.ReservationLane
	for rows.Next() {
		var w models.ReservationLane
		if err := rows.Scan(&w.ReservationID, &w.LaneID, &w.BookedFrom, &w.BookedUntil); err != nil {
			return nil, database.MapPostgresError(err)
		}
		windows = append(windows, &w)
	}
	return windows, database.MapPostgresError(rows.Err())
}
