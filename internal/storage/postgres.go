package storage

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"

	"github.com/idorenyinbassey/vip-ride-platform-sub001/internal/models"
)

// PostgresStore backs the ride archive and the trust-relationship lookups
// with one shared connection pool.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) SaveRide(ctx context.Context, r *models.Ride) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO rides(id, customer_id, driver_id, pickup_lat, pickup_lon, dest_lat, dest_lon, status, surge_multiplier, created_at, updated_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (id) DO UPDATE SET driver_id = EXCLUDED.driver_id, status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`,
		r.ID, r.CustomerID, r.DriverID, r.Pickup.Lat, r.Pickup.Lon,
		r.Destination.Lat, r.Destination.Lon, r.Status, r.SurgeMultiplier, r.CreatedAt, r.UpdatedAt)
	return err
}

func (p *PostgresStore) UpdateRide(ctx context.Context, r *models.Ride) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE rides SET driver_id=$1, status=$2, updated_at=$3 WHERE id=$4`,
		r.DriverID, r.Status, time.Now(), r.ID)
	return err
}

// Lookup returns the successful ride count between a customer and driver.
// Absence is zero, not an error.
func (p *PostgresStore) Lookup(ctx context.Context, customerID, driverID string) (int, error) {
	var n int
	err := p.db.QueryRowContext(ctx,
		`SELECT successful_ride_count FROM trust_relationships WHERE customer_id=$1 AND driver_id=$2`,
		customerID, driverID).Scan(&n)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return n, err
}

// RecordCompletion bumps the trust counter after a completed ride. Called by
// the completion event consumer, not by the matching path.
func (p *PostgresStore) RecordCompletion(ctx context.Context, customerID, driverID string, at time.Time) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO trust_relationships(customer_id, driver_id, successful_ride_count, last_ride_at)
		VALUES($1,$2,1,$3)
		ON CONFLICT (customer_id, driver_id)
		DO UPDATE SET successful_ride_count = trust_relationships.successful_ride_count + 1, last_ride_at = EXCLUDED.last_ride_at`,
		customerID, driverID, at)
	return err
}

func (p *PostgresStore) Close() error { return p.db.Close() }
