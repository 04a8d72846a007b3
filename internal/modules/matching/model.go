// README: Trip offers and their acceptance-window lifecycle.
package matching

import (
	"time"

	"tripsim/internal/modules/trip"
	"tripsim/internal/types"
)

type OfferStatus string

const (
	OfferPending  OfferStatus = "pending"
	OfferAccepted OfferStatus = "accepted"
	OfferRejected OfferStatus = "rejected"
	OfferExpired  OfferStatus = "expired"
)

// Offer is one dispatch attempt. An offer leaves the pending table on its
// terminal status; the record itself survives in the audit archive.
type Offer struct {
	TripID               types.ID  `json:"trip_id"`
	PassengerID          types.ID  `json:"passenger_id"`
	PassengerName        string    `json:"passenger_name"`
	PassengerRating      float64   `json:"passenger_rating"`
	Pickup               trip.Stop `json:"pickup_location"`
	Dropoff              trip.Stop `json:"dropoff_location"`
	EstimatedDistanceKm  float64   `json:"estimated_distance"`
	EstimatedDurationMin int       `json:"estimated_duration"`
	EstimatedFare        int       `json:"estimated_fare"`
	RequestedAt          time.Time `json:"request_time"`
	ExpiresAt            time.Time `json:"expires_at"`

	Status OfferStatus `json:"-"`
	// TargetDriver is set when the offer was unicast to one driver
	// connection; empty means it was broadcast to all drivers.
	TargetDriver types.ID `json:"-"`
	// RejectedBy / RejectReason record the first rejection for audit.
	RejectedBy   types.ID `json:"-"`
	RejectReason string   `json:"-"`
}

func (o Offer) Resolved() bool {
	return o.Status != OfferPending
}
