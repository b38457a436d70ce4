package trip

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

// NewPostgresRepository creates a new PostgreSQL trip repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// CreatePending stores a new trip in PENDING status.
func (r *PostgresRepository) CreatePending(ctx context.Context, t *Trip) error {
	query := `
		INSERT INTO trips (
			id, rider_id, type, vehicle_type, payment_method, passengers, status,
			pickup_lat, pickup_lng, pickup_address, pickup_polyline,
			dropoff_lat, dropoff_lng, dropoff_address,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11,
			$12, $13, $14,
			$15, $16
		)
	`

	_, err := r.pool.Exec(ctx, query,
		t.ID, t.RiderID, t.Type, t.VehicleType, t.PaymentMethod, t.Passengers, t.Status,
		t.Pickup.Coordinates.Lat, t.Pickup.Coordinates.Lng, t.Pickup.Address, t.Pickup.Polyline,
		t.DropOff.Coordinates.Lat, t.DropOff.Coordinates.Lng, t.DropOff.Address,
		t.CreatedAt, t.UpdatedAt,
	)
	return err
}

// Get retrieves a trip by ID.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*Trip, error) {
	query := `
		SELECT
			id, rider_id, type, vehicle_type, payment_method, passengers, status,
			pickup_lat, pickup_lng, pickup_address, pickup_polyline,
			dropoff_lat, dropoff_lng, dropoff_address,
			trip_polyline,
			pickup_walk_polyline, pickup_walk_length,
			dropoff_walk_polyline, dropoff_walk_length,
			driver_id, driver_display_name,
			vehicle_id, vehicle_plate, vehicle_description,
			created_at, updated_at
		FROM trips
		WHERE id = $1
	`

	var (
		t                  Trip
		tripPolyline       *string
		pickupWalkPoly     *string
		pickupWalkLength   *float64
		dropoffWalkPoly    *string
		dropoffWalkLength  *float64
		driverID           *string
		driverDisplayName  *string
		vehicleID          *string
		vehiclePlate       *string
		vehicleDescription *string
	)

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&t.ID, &t.RiderID, &t.Type, &t.VehicleType, &t.PaymentMethod, &t.Passengers, &t.Status,
		&t.Pickup.Coordinates.Lat, &t.Pickup.Coordinates.Lng, &t.Pickup.Address, &t.Pickup.Polyline,
		&t.DropOff.Coordinates.Lat, &t.DropOff.Coordinates.Lng, &t.DropOff.Address,
		&tripPolyline,
		&pickupWalkPoly, &pickupWalkLength,
		&dropoffWalkPoly, &dropoffWalkLength,
		&driverID, &driverDisplayName,
		&vehicleID, &vehiclePlate, &vehicleDescription,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTripNotFound
		}
		return nil, err
	}

	if tripPolyline != nil {
		t.TripPolyline = *tripPolyline
	}
	if pickupWalkPoly != nil && pickupWalkLength != nil {
		t.PickupWalk = &Walk{Polyline: *pickupWalkPoly, LengthMeters: *pickupWalkLength}
	}
	if dropoffWalkPoly != nil && dropoffWalkLength != nil {
		t.DropoffWalk = &Walk{Polyline: *dropoffWalkPoly, LengthMeters: *dropoffWalkLength}
	}
	if driverID != nil {
		t.Driver = &DriverInfo{ID: *driverID}
		if driverDisplayName != nil {
			t.Driver.DisplayName = *driverDisplayName
		}
	}
	if vehicleID != nil {
		t.Vehicle = &VehicleInfo{ID: *vehicleID, VehicleType: t.VehicleType}
		if vehiclePlate != nil {
			t.Vehicle.Plate = *vehiclePlate
		}
		if vehicleDescription != nil {
			t.Vehicle.Description = *vehicleDescription
		}
	}

	return &t, nil
}

// Finalize records the matched driver, vehicle and route and moves the trip
// to MATCHED.
func (r *PostgresRepository) Finalize(ctx context.Context, id string, m Match) error {
	query := `
		UPDATE trips SET
			status = $2,
			trip_polyline = $3,
			pickup_walk_polyline = $4, pickup_walk_length = $5,
			dropoff_walk_polyline = $6, dropoff_walk_length = $7,
			driver_id = $8, driver_display_name = $9,
			vehicle_id = $10, vehicle_plate = $11, vehicle_description = $12,
			updated_at = now()
		WHERE id = $1
	`

	var (
		pickupWalkPoly, dropoffWalkPoly     *string
		pickupWalkLength, dropoffWalkLength *float64
	)
	if m.PickupWalk != nil {
		pickupWalkPoly = &m.PickupWalk.Polyline
		pickupWalkLength = &m.PickupWalk.LengthMeters
	}
	if m.DropoffWalk != nil {
		dropoffWalkPoly = &m.DropoffWalk.Polyline
		dropoffWalkLength = &m.DropoffWalk.LengthMeters
	}

	tag, err := r.pool.Exec(ctx, query,
		id, StatusMatched,
		m.TripPolyline,
		pickupWalkPoly, pickupWalkLength,
		dropoffWalkPoly, dropoffWalkLength,
		m.Driver.ID, m.Driver.DisplayName,
		m.Vehicle.ID, m.Vehicle.Plate, m.Vehicle.Description,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTripNotFound
	}
	return nil
}

// SetStatus transitions a trip's lifecycle status.
func (r *PostgresRepository) SetStatus(ctx context.Context, id string, status Status) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE trips SET status = $2, updated_at = now() WHERE id = $1`,
		id, status,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTripNotFound
	}
	return nil
}

// Delete removes a trip.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM trips WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTripNotFound
	}
	return nil
}
