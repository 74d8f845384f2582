package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pittsbowling/api/internal/database"
	"github.com/pittsbowling/api/internal/models"
)

type ReservationRepository struct {
	db *database.DB
}

func NewReservationRepository(db *database.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

// CreateWithLanes inserts the reservation and its lane holds in one
// transaction. The lane rows are locked with SELECT FOR UPDATE before
// the overlap check, so of two checkouts racing for the same lane one
// blocks until the other commits and then sees its holds. Returns
// models.ErrLaneConflict when a lane was taken in the meantime.
func (r *ReservationRepository) CreateWithLanes(ctx context.Context, res *models.Reservation, laneIDs []string, from, until time.Time) error {
	if res.ID == "" {
		res.ID = uuid.New().String()
	}

	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		// Ordered by id so two transactions locking overlapping lane
		// sets cannot deadlock.
		lockLanes := `SELECT id FROM lanes WHERE id = ANY($1::uuid[]) ORDER BY id FOR UPDATE`
		if _, err := tx.Exec(ctx, lockLanes, laneIDs); err != nil {
			return database.MapPostgresError(err)
		}

		conflictQuery := `
			SELECT EXISTS (
				SELECT 1
				FROM reservation_lanes rl
				JOIN reservations existing ON existing.id = rl.reservation_id
				WHERE rl.lane_id = $1
				  AND existing.status IN ` + liveStatusFilter + `
				  AND rl.booked_from < $3
				  AND rl.booked_until > $2
			)`

		for _, laneID := range laneIDs {
			var conflict bool
			if err := tx.QueryRow(ctx, conflictQuery, laneID, from, until).Scan(&conflict); err != nil {
				return database.MapPostgresError(err)
			}
			if conflict {
				return models.ErrLaneConflict
			}
		}

		insertRes := `
			INSERT INTO reservations (id, user_id, package_id, start_time, end_time,
				number_of_people, total_price_cents, status, payment_method, payment_reference, shoe_sizes)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING created_at`

		err := tx.QueryRow(ctx, insertRes,
			res.ID, res.UserID, res.PackageID, res.StartTime, res.EndTime,
			res.NumberOfPeople, res.TotalPriceCents, res.Status,
			res.PaymentMethod, res.PaymentReference, res.ShoeSizes,
		).Scan(&res.CreatedAt)
		if err != nil {
			return database.MapPostgresError(err)
		}

		insertLane := `
			INSERT INTO reservation_lanes (reservation_id, lane_id, booked_from, booked_until)
			VALUES ($1, $2, $3, $4)`

		for _, laneID := range laneIDs {
			if _, err := tx.Exec(ctx, insertLane, res.ID, laneID, from, until); err != nil {
				return database.MapPostgresError(err)
			}
		}

		return nil
	})
}

const reservationSelect = `
	SELECT res.id, res.user_id, res.package_id, res.start_time, res.end_time,
	       res.number_of_people, res.total_price_cents, res.status,
	       res.payment_method, COALESCE(res.payment_reference, ''), COALESCE(res.shoe_sizes, ''),
	       res.created_at,
	       u.name, u.last_name, u.email,
	       COALESCE(ARRAY_AGG(l.lane_number ORDER BY l.lane_number)
	                FILTER (WHERE l.lane_number IS NOT NULL), '{}')
	FROM reservations res
	JOIN users u ON u.id = res.user_id
	LEFT JOIN reservation_lanes rl ON rl.reservation_id = res.id
	LEFT JOIN lanes l ON l.id = rl.lane_id`

func scanReservation(row pgx.Row) (*models.Reservation, error) {
	var res models.Reservation
	err := row.Scan(
		&res.ID, &res.UserID, &res.PackageID, &res.StartTime, &res.EndTime,
		&res.NumberOfPeople, &res.TotalPriceCents, &res.Status,
		&res.PaymentMethod, &res.PaymentReference, &res.ShoeSizes,
		&res.CreatedAt,
		&res.UserName, &res.UserLast, &res.UserEmail,
		&res.LaneNumbers,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &res, nil
}

func (r *ReservationRepository) GetByID(ctx context.Context, id string) (*models.Reservation, error) {
	query := reservationSelect + `
		WHERE res.id = $1
		GROUP BY res.id, u.name, u.last_name, u.email`
	return scanReservation(r.db.Pool.QueryRow(ctx, query, id))
}

// List returns reservations newest first, optionally filtered by status.
func (r *ReservationRepository) List(ctx context.Context, status string) ([]*models.Reservation, error) {
	query := reservationSelect
	args := []any{}
	if status != "" {
		query += ` WHERE res.status = $1`
		args = append(args, status)
	}
	query += `
		GROUP BY res.id, u.name, u.last_name, u.email
		ORDER BY res.created_at DESC`

	return r.queryReservations(ctx, query, args...)
}

func (r *ReservationRepository) ListForUser(ctx context.Context, userID string) ([]*models.Reservation, error) {
	query := reservationSelect + `
		WHERE res.user_id = $1
		GROUP BY res.id, u.name, u.last_name, u.email
		ORDER BY res.start_time DESC`
	return r.queryReservations(ctx, query, userID)
}

func (r *ReservationRepository) queryReservations(ctx context.Context, query string, args ...any) ([]*models.Reservation, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	var out []*models.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, database.MapPostgresError(rows.Err())
}

func (r *ReservationRepository) UpdateStatus(ctx context.Context, id, status string) error {
	tag, err := r.db.Pool.Exec(ctx, `UPDATE reservations SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// Delete removes the reservation; its lane holds go with it via cascade.
func (r *ReservationRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM reservations WHERE id = $1`, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *ReservationRepository) CountByStatus(ctx context.Context, status string) (int, error) {
	var count int
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM reservations WHERE status = $1`, status).Scan(&count)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}
