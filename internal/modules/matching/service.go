// README: Matching service; pending offer table with cancellable expiry timers.
package matching

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zoobzio/clockz"

	"tripsim/internal/audit"
	"tripsim/internal/events"
	"tripsim/internal/modules/geo"
	"tripsim/internal/modules/trip"
	"tripsim/internal/types"
)

// Notifier delivers offers to driver connections.
type Notifier interface {
	BroadcastDrivers(event string, payload any)
	SendTo(conn types.ID, event string, payload any)
}

// RouteEstimator supplies the pickup→dropoff distance. The default is the
// great-circle estimate; a road-network estimator can be plugged in.
type RouteEstimator interface {
	DistanceKm(ctx context.Context, from, to types.Point) (float64, error)
}

// DriverIndex locates a nearby driver connection for unicast targeting.
// Nil means every offer is broadcast to all drivers.
type DriverIndex interface {
	Nearest(ctx context.Context, p types.Point, radiusKm float64) (types.ID, bool, error)
}

type Service struct {
	mu      sync.Mutex
	pending map[types.ID]*pendingOffer

	trips     *trip.Service
	notifier  Notifier
	archive   audit.Archive
	estimator RouteEstimator
	index     DriverIndex
	clock     clockz.Clock
	ttl       time.Duration
	radiusKm  float64
	log       *slog.Logger
}

type pendingOffer struct {
	offer Offer
	// done cancels the expiry watcher when the offer resolves first.
	done chan struct{}
}

func NewService(log *slog.Logger, trips *trip.Service, notifier Notifier, archive audit.Archive, ttl time.Duration) *Service {
	return &Service{
		pending:  make(map[types.ID]*pendingOffer),
		trips:    trips,
		notifier: notifier,
		archive:  archive,
		ttl:      ttl,
		radiusKm: 5.0,
		log:      log,
	}
}

// WithClock replaces the timer source, used by tests to drive expiry.
func (s *Service) WithClock(clock clockz.Clock) *Service {
	s.clock = clock
	return s
}

func (s *Service) WithEstimator(est RouteEstimator) *Service {
	s.estimator = est
	return s
}

func (s *Service) WithDriverIndex(index DriverIndex, radiusKm float64) *Service {
	s.index = index
	if radiusKm > 0 {
		s.radiusKm = radiusKm
	}
	return s
}

type RequestCommand struct {
	Conn      types.ID
	Passenger trip.PassengerProfile
	Pickup    trip.Stop
	Dropoff   trip.Stop
}

// RequestTrip estimates the trip, moves the aggregate to searching, creates
// a pending offer with a 30-second acceptance window, and delivers it to
// drivers (unicast when the index knows a nearby driver, broadcast
// otherwise).
func (s *Service) RequestTrip(ctx context.Context, cmd RequestCommand) (Offer, error) {
	distance := s.estimateKm(ctx, cmd.Pickup.Point(), cmd.Dropoff.Point())
	duration := geo.DurationMin(distance)
	fare := geo.Fare(distance)

	if _, err := s.trips.StartSearch(cmd.Conn, cmd.Pickup, cmd.Dropoff, cmd.Passenger, fare); err != nil {
		return Offer{}, err
	}

	now := s.getClock().Now()
	offer := Offer{
		TripID:               types.ID(uuid.NewString()),
		PassengerID:          cmd.Passenger.PassengerID,
		PassengerName:        cmd.Passenger.FullName,
		PassengerRating:      cmd.Passenger.Rating,
		Pickup:               cmd.Pickup,
		Dropoff:              cmd.Dropoff,
		EstimatedDistanceKm:  distance,
		EstimatedDurationMin: duration,
		EstimatedFare:        fare,
		RequestedAt:          now,
		ExpiresAt:            now.Add(s.ttl),
		Status:               OfferPending,
	}

	if s.index != nil {
		if target, ok, err := s.index.Nearest(ctx, cmd.Pickup.Point(), s.radiusKm); err == nil && ok {
			offer.TargetDriver = target
		} else if err != nil {
			s.log.Warn("driver index lookup failed, falling back to broadcast", "error", err)
		}
	}

	done := make(chan struct{})
	s.mu.Lock()
	s.pending[offer.TripID] = &pendingOffer{offer: offer, done: done}
	s.mu.Unlock()

	go s.watchExpiry(offer.TripID, done)

	if offer.TargetDriver != "" {
		s.SendOfferToDriver(offer.TargetDriver, offer)
	} else {
		s.BroadcastOffer(offer)
	}

	s.log.Info("trip offer created",
		"trip_id", string(offer.TripID),
		"distance_km", distance,
		"fare", fare,
		"expires_at", offer.ExpiresAt)
	return offer, nil
}

// BroadcastOffer delivers the offer to every connected driver.
func (s *Service) BroadcastOffer(o Offer) {
	s.notifier.BroadcastDrivers(events.TripAvailable, o)
}

// SendOfferToDriver delivers the offer to one driver connection.
func (s *Service) SendOfferToDriver(conn types.ID, o Offer) {
	s.notifier.SendTo(conn, events.TripAvailable, o)
}

// AcceptOffer honors only the first accept for a trip id. A missing or
// already-resolved offer is a no-op: ok=false, no error, no mutation.
func (s *Service) AcceptOffer(ctx context.Context, tripID, driverID types.ID) (trip.TripChange, bool) {
	s.mu.Lock()
	p, ok := s.pending[tripID]
	if !ok || p.offer.Resolved() {
		s.mu.Unlock()
		return s.trips.Change(), false
	}
	p.offer.Status = OfferAccepted
	close(p.done)
	delete(s.pending, tripID)
	resolved := p.offer
	s.mu.Unlock()

	s.appendAudit(ctx, resolved, string(driverID), "")
	change := s.trips.Accept(driverID)
	return change, true
}

// RejectOffer records the rejection and retires the offer. The trip
// aggregate is untouched; rematching is the caller's responsibility.
func (s *Service) RejectOffer(ctx context.Context, tripID, driverID types.ID, reason string) bool {
	s.mu.Lock()
	p, ok := s.pending[tripID]
	if !ok || p.offer.Resolved() {
		s.mu.Unlock()
		return false
	}
	p.offer.Status = OfferRejected
	p.offer.RejectedBy = driverID
	p.offer.RejectReason = reason
	close(p.done)
	delete(s.pending, tripID)
	resolved := p.offer
	s.mu.Unlock()

	s.log.Info("trip offer rejected", "trip_id", string(tripID), "driver_id", string(driverID), "reason", reason)
	s.appendAudit(ctx, resolved, string(driverID), reason)
	return true
}

// Lookup returns a pending offer. Resolved and expired offers are absent.
func (s *Service) Lookup(tripID types.ID) (Offer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[tripID]
	if !ok {
		return Offer{}, false
	}
	return p.offer, true
}

func (s *Service) watchExpiry(tripID types.ID, done <-chan struct{}) {
	select {
	case <-s.getClock().After(s.ttl):
		s.expire(tripID)
	case <-done:
	}
}

// expire fires at the deadline; exactly one of accept and expiry wins,
// decided by the pending-table critical section.
func (s *Service) expire(tripID types.ID) {
	s.mu.Lock()
	p, ok := s.pending[tripID]
	if !ok || p.offer.Resolved() {
		s.mu.Unlock()
		return
	}
	p.offer.Status = OfferExpired
	delete(s.pending, tripID)
	resolved := p.offer
	s.mu.Unlock()

	// No notification is pushed; the expiry surfaces only in the archive.
	s.log.Info("trip offer expired", "trip_id", string(tripID))
	s.appendAudit(context.Background(), resolved, "", "")
}

func (s *Service) appendAudit(ctx context.Context, o Offer, driverID, reason string) {
	if s.archive == nil {
		return
	}
	err := s.archive.Append(ctx, audit.Entry{
		TripID:        string(o.TripID),
		PassengerID:   string(o.PassengerID),
		DriverID:      driverID,
		Status:        string(o.Status),
		EstimatedFare: o.EstimatedFare,
		RequestedAt:   o.RequestedAt,
		ResolvedAt:    s.getClock().Now(),
		Reason:        reason,
	})
	if err != nil {
		s.log.Error("offer audit append failed", "trip_id", string(o.TripID), "error", err)
	}
}

func (s *Service) estimateKm(ctx context.Context, from, to types.Point) float64 {
	if s.estimator != nil {
		if km, err := s.estimator.DistanceKm(ctx, from, to); err == nil {
			return km
		} else {
			s.log.Warn("route estimator failed, using great-circle distance", "error", err)
		}
	}
	return geo.DistanceKm(from, to)
}

func (s *Service) getClock() clockz.Clock {
	if s.clock == nil {
		return clockz.RealClock
	}
	return s.clock
}
