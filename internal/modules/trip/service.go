// README: Dispatch core; owns the trip aggregate and implements all state transitions.
package trip

import (
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"tripsim/internal/events"
	"tripsim/internal/types"
)

var (
	ErrBadRequest = errors.New("bad request")
	ErrTripActive = errors.New("trip already in progress")
)

// Emitter is the outbound half of the fan-out boundary. Implementations
// must preserve per-connection send order.
type Emitter interface {
	Broadcast(event string, payload any)
	SendTo(conn types.ID, event string, payload any)
}

// Service serializes every mutation of the shared trip aggregate. All
// read-modify-write sequences, including their emissions, run under one
// lock so no observer can see a half-applied update.
type Service struct {
	mu      sync.Mutex
	trip    Trip
	emitter Emitter
	log     *slog.Logger

	// strictCancel stops Cancel from forcing passengerBoarded=true.
	strictCancel bool
}

func NewService(log *slog.Logger, emitter Emitter, strictCancel bool) *Service {
	return &Service{
		trip:         newTrip(),
		emitter:      emitter,
		log:          log,
		strictCancel: strictCancel,
	}
}

// StartSearch resets the aggregate and begins a new search. Allowed from
// idle and from any terminal state; a live trip rejects the request.
func (s *Service) StartSearch(conn types.ID, pickup, dropoff Stop, passenger PassengerProfile, fare int) (TripChange, error) {
	if err := validatePoint(pickup.Point()); err != nil {
		return TripChange{}, err
	}
	if err := validatePoint(dropoff.Point()); err != nil {
		return TripChange{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if st := s.trip.Change.Status; st != StatusIdle && !st.Terminal() {
		return s.trip.Change, ErrTripActive
	}

	t := newTrip()
	pickup.Index = 0
	dropoff.Index = 1
	t.Stops = TripStops{Start: pickup, End: dropoff, Stops: []Stop{}}
	t.CarLocation = pickup.Point()
	if passenger.PassengerID != "" {
		t.Passenger = passenger
	}
	t.Payment.AmountPassenger = fare
	t.Payment.AmountDriver = fare
	s.trip = t

	s.setStatus(StatusSearching)
	s.log.Info("trip search started", "passenger_id", s.trip.Passenger.PassengerID, "fare", fare)
	s.sendTo(conn, events.SendChangeTrip, s.trip.Change)
	return s.trip.Change, nil
}

// Accept assigns the driver and moves the trip to driverAccepted. Offer
// gating (first accept wins) lives in the matching subsystem; by the time
// this runs the caller has already won the offer.
func (s *Service) Accept(driverID types.ID) TripChange {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trip.Driver.DriverID = driverID
	s.setStatus(StatusDriverAccepted)
	s.log.Info("driver accepted trip", "driver_id", driverID)
	s.broadcast(events.SendChangeTrip, s.trip.Change)
	return s.trip.Change
}

// DriverLocationUpdate rebroadcasts the position and advances the simulated
// progression. The counter selects sequence[min(n, len-1)], increments, and
// wraps to 0 after the final element so the next update starts a new cycle.
func (s *Service) DriverLocationUpdate(p types.Point, ts time.Time) (TripChange, error) {
	if err := validatePoint(p); err != nil {
		return TripChange{}, err
	}
	if ts.IsZero() {
		ts = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.trip.CarLocation = p

	idx := s.trip.progress
	if idx > len(progressSequence)-1 {
		idx = len(progressSequence) - 1
	}
	next := progressSequence[idx]
	s.trip.progress++
	if idx == len(progressSequence)-1 {
		s.trip.progress = 0
	}

	s.setStatus(next)
	s.trip.Change.PassengerBoarded = next >= StatusTripStarted
	s.trip.Change.PaymentConfirmed = next == StatusTripCompleted

	s.log.Debug("driver location advanced trip", "status", next.String(), "lat", p.Lat, "lon", p.Lon)
	s.broadcast(events.DriverLocationUpdate, locationUpdate{Lat: p.Lat, Lon: p.Lon, Timestamp: ts.UnixMilli()})
	s.broadcast(events.SendChangeTrip, s.trip.Change)
	return s.trip.Change, nil
}

// PassengerLocationUpdate rebroadcasts the position and echoes the current
// TripChange to the sender. It never advances trip state.
func (s *Service) PassengerLocationUpdate(conn types.ID, p types.Point, ts time.Time) error {
	if err := validatePoint(p); err != nil {
		return err
	}
	if ts.IsZero() {
		ts = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.broadcast(events.LocationPassengerSend, locationUpdate{Lat: p.Lat, Lon: p.Lon, Timestamp: ts.UnixMilli()})
	s.sendTo(conn, events.SendChangeTrip, s.trip.Change)
	return nil
}

// Override overwrites the fields present in the patch verbatim, with no
// validation against the transition graph. Any status is reachable from any
// other; this is the ops/test control path and is intentionally permissive.
func (s *Service) Override(patch ChangePatch) (TripChange, error) {
	if patch.Status != nil && !patch.Status.Valid() {
		return TripChange{}, ErrBadRequest
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if patch.Status != nil {
		s.setStatus(*patch.Status)
	}
	if patch.PassengerBoarded != nil {
		s.trip.Change.PassengerBoarded = *patch.PassengerBoarded
	}
	if patch.PaymentConfirmed != nil {
		s.trip.Change.PaymentConfirmed = *patch.PaymentConfirmed
	}

	s.log.Info("trip change overridden", "status", s.trip.Change.StatusText)
	s.broadcast(events.SendChangeTrip, s.trip.Change)
	return s.trip.Change, nil
}

// Cancel ends the trip from any non-terminal state. By default the boarded
// flag is forced true even before boarding, which the cancellation screens
// rely on; strictCancel leaves the flag as-is instead.
func (s *Service) Cancel(actor types.Actor) (TripChange, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.trip.Change.Status.Terminal() {
		return s.trip.Change, false
	}

	next := StatusTripCancelled
	if actor == types.ActorDriver {
		next = StatusTripCancelledByDriver
	}
	s.setStatus(next)
	if !s.strictCancel {
		s.trip.Change.PassengerBoarded = true
	}
	s.trip.Change.PaymentConfirmed = false

	s.log.Info("trip cancelled", "by", string(actor))
	s.broadcast(events.CancelNotice, s.trip.Change)
	s.broadcast(events.SendChangeTrip, s.trip.Change)
	return s.trip.Change, true
}

// RecordIncident appends to the incident log and broadcasts the incident
// followed by the updated TripChange as one unit.
func (s *Service) RecordIncident(actor types.Actor, text string) (Incident, error) {
	if !actor.Valid() || text == "" {
		return Incident{}, ErrBadRequest
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	inc := Incident{
		ID:        types.ID(uuid.NewString()),
		Actor:     actor,
		Text:      text,
		Timestamp: time.Now(),
	}
	s.trip.Incidents = append(s.trip.Incidents, inc)
	s.trip.Change.IncidentCount++

	s.log.Info("incident recorded", "actor", string(actor), "incident_id", string(inc.ID))
	s.broadcast(events.IncidentNotice, inc)
	s.broadcast(events.SendChangeTrip, s.trip.Change)
	return inc, nil
}

// RecordMessage is symmetric to RecordIncident for chat messages.
func (s *Service) RecordMessage(actor types.Actor, text string) (Message, error) {
	if !actor.Valid() || text == "" {
		return Message{}, ErrBadRequest
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	msg := Message{
		ID:        types.ID(uuid.NewString()),
		Actor:     actor,
		Text:      text,
		Timestamp: time.Now(),
	}
	s.trip.Messages = append(s.trip.Messages, msg)
	s.trip.Change.MessageCount++

	s.broadcast(events.MessageNotice, msg)
	s.broadcast(events.SendChangeTrip, s.trip.Change)
	return msg, nil
}

// Change returns a copy of the current TripChange.
func (s *Service) Change() TripChange {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trip.Change
}

// Logs returns a read-only snapshot of the message and incident logs.
func (s *Service) Logs() LogSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return LogSnapshot{
		Messages:      copyMessages(s.trip.Messages),
		Incidents:     copyIncidents(s.trip.Incidents),
		MessageCount:  s.trip.Change.MessageCount,
		IncidentCount: s.trip.Change.IncidentCount,
		TripChange:    s.trip.Change,
	}
}

// PassengerSnapshot shapes the aggregate for a passenger connection.
func (s *Service) PassengerSnapshot() PassengerView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return PassengerView{
		ServiceID:     s.trip.ServiceID,
		TripStops:     s.trip.Stops,
		DriverProfile: s.trip.Driver,
		CarLocation:   s.trip.CarLocation,
		TripChange:    s.trip.Change,
		Filters:       s.trip.Filters,
		Payment:       s.trip.Payment,
		Incidents:     copyIncidents(s.trip.Incidents),
		Messages:      copyMessages(s.trip.Messages),
	}
}

// DriverSnapshot shapes the aggregate for a driver connection.
func (s *Service) DriverSnapshot() DriverView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return DriverView{
		ServiceID:        s.trip.ServiceID,
		TripStops:        s.trip.Stops,
		PassengerProfile: s.trip.Passenger,
		TripChange:       s.trip.Change,
		Filters:          s.trip.Filters,
		Payment:          s.trip.Payment,
		Incidents:        copyIncidents(s.trip.Incidents),
		Messages:         copyMessages(s.trip.Messages),
	}
}

type locationUpdate struct {
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Timestamp int64   `json:"timestamp"`
}

// setStatus keeps StatusText in lockstep with Status. Callers hold the lock.
func (s *Service) setStatus(next TripStatus) {
	s.trip.Change.Status = next
	s.trip.Change.StatusText = next.String()
}

func (s *Service) broadcast(event string, payload any) {
	if s.emitter != nil {
		s.emitter.Broadcast(event, payload)
	}
}

func (s *Service) sendTo(conn types.ID, event string, payload any) {
	if s.emitter != nil {
		s.emitter.SendTo(conn, event, payload)
	}
}

func validatePoint(p types.Point) error {
	if math.Abs(p.Lat) > 90 || math.Abs(p.Lon) > 180 {
		return ErrBadRequest
	}
	return nil
}

func copyMessages(in []Message) []Message {
	out := make([]Message, len(in))
	copy(out, in)
	return out
}

func copyIncidents(in []Incident) []Incident {
	out := make([]Incident, len(in))
	copy(out, in)
	return out
}
