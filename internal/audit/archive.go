// README: Offer audit trail; resolved offers are retained outside the pending table.
package audit

import (
	"context"
	"time"
)

// Entry is one resolved dispatch attempt.
type Entry struct {
	TripID        string
	PassengerID   string
	DriverID      string // empty when the offer expired unanswered
	Status        string // accepted | rejected | expired
	EstimatedFare int
	RequestedAt   time.Time
	ResolvedAt    time.Time
	Reason        string
}

// Archive is a write-only side channel; it never feeds back into matching.
type Archive interface {
	Append(ctx context.Context, e Entry) error
}
