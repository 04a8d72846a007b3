// README: Postgres archive backed by pgxpool (see migrations/0001_offer_audit.sql).
package audit

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresArchive struct {
	db *pgxpool.Pool
}

func NewPostgresArchive(db *pgxpool.Pool) *PostgresArchive {
	return &PostgresArchive{db: db}
}

func (a *PostgresArchive) Append(ctx context.Context, e Entry) error {
	_, err := a.db.Exec(ctx, `
        INSERT INTO offer_audit (
            trip_id, passenger_id, driver_id, status,
            estimated_fare, requested_at, resolved_at, reason
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.TripID,
		e.PassengerID,
		nullable(e.DriverID),
		e.Status,
		e.EstimatedFare,
		e.RequestedAt,
		e.ResolvedAt,
		nullable(e.Reason),
	)
	return err
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
