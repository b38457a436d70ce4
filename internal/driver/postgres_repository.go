package driver

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL driver repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// ReserveCapacity decrements the driver's capacity if it covers passengers.
// The single conditional UPDATE is the atomic read-check-write; concurrent
// reservations against the same driver serialize on the row lock.
func (r *PostgresRepository) ReserveCapacity(ctx context.Context, id string, passengers int) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE drivers SET capacity = capacity - $2 WHERE id = $1 AND capacity >= $2`,
		id, passengers,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ReleaseCapacity returns previously reserved seats to the driver.
func (r *PostgresRepository) ReleaseCapacity(ctx context.Context, id string, passengers int) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE drivers SET capacity = capacity + $2 WHERE id = $1`,
		id, passengers,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDriverNotFound
	}
	return nil
}

// UpdateCurrentPath stores the driver's new encoded current path.
func (r *PostgresRepository) UpdateCurrentPath(ctx context.Context, id string, encodedPath string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE drivers SET current_path = $2 WHERE id = $1`,
		id, encodedPath,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDriverNotFound
	}
	return nil
}

// NotificationToken returns the driver's push token.
func (r *PostgresRepository) NotificationToken(ctx context.Context, id string) (string, error) {
	var token *string
	err := r.pool.QueryRow(ctx,
		`SELECT notification_token FROM drivers WHERE id = $1`,
		id,
	).Scan(&token)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrDriverNotFound
		}
		return "", err
	}
	if token == nil {
		return "", nil
	}
	return *token, nil
}

// GetWithVehicle returns the driver record and its registered vehicle.
func (r *PostgresRepository) GetWithVehicle(ctx context.Context, id string) (*Driver, *Vehicle, error) {
	query := `
		SELECT
			d.id, d.display_name, d.capacity, COALESCE(d.notification_token, ''), d.vehicle_id,
			v.id, v.plate, v.description
		FROM drivers d
		JOIN vehicles v ON v.id = d.vehicle_id
		WHERE d.id = $1
	`

	var (
		drv Driver
		veh Vehicle
	)
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&drv.ID, &drv.DisplayName, &drv.Capacity, &drv.NotificationToken, &drv.VehicleID,
		&veh.ID, &veh.Plate, &veh.Description,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrDriverNotFound
		}
		return nil, nil, err
	}

	return &drv, &veh, nil
}
