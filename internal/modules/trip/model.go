// README: Trip aggregate, status enumeration, and log entry definitions.
package trip

import (
	"time"

	"tripsim/internal/types"
)

// TripStatus is ordered by lifecycle progress; ordinal comparison is
// meaningful (passengerBoarded flips at StatusTripStarted).
type TripStatus int

const (
	StatusIdle TripStatus = iota
	StatusSearching
	StatusDriverNotFound
	StatusDriverFound
	StatusDriverAccepted
	StatusDriverOnWay
	StatusDriverArrived
	StatusTripStarted
	StatusTripInProgress
	StatusTripCompleted
	StatusTripCancelled
	StatusTripCancelledByDriver
	StatusError
)

var statusText = map[TripStatus]string{
	StatusIdle:                  "idle",
	StatusSearching:             "searching",
	StatusDriverNotFound:        "driverNotFound",
	StatusDriverFound:           "driverFound",
	StatusDriverAccepted:        "driverAccepted",
	StatusDriverOnWay:           "driverOnWay",
	StatusDriverArrived:         "driverArrived",
	StatusTripStarted:           "tripStarted",
	StatusTripInProgress:        "tripInProgress",
	StatusTripCompleted:         "tripCompleted",
	StatusTripCancelled:         "tripCancelled",
	StatusTripCancelledByDriver: "tripCancelledByDriver",
	StatusError:                 "error",
}

func (s TripStatus) String() string {
	if t, ok := statusText[s]; ok {
		return t
	}
	return "unknown"
}

func (s TripStatus) Valid() bool {
	_, ok := statusText[s]
	return ok
}

// Terminal states may be exited only by starting a brand-new trip.
func (s TripStatus) Terminal() bool {
	switch s {
	case StatusTripCompleted, StatusTripCancelled, StatusTripCancelledByDriver, StatusError:
		return true
	}
	return false
}

// progressSequence is the simulated in-trip status progression driven by
// driver location updates.
var progressSequence = [...]TripStatus{
	StatusDriverOnWay,
	StatusDriverArrived,
	StatusTripStarted,
	StatusTripInProgress,
	StatusTripCompleted,
}

// TripChange is the authoritative snapshot of trip progress. StatusText
// mirrors Status and is never set independently.
type TripChange struct {
	Status           TripStatus `json:"tripStatus"`
	StatusText       string     `json:"tripStatusText"`
	PassengerBoarded bool       `json:"passenger_boarded"`
	PaymentConfirmed bool       `json:"payment_confirmed"`
	MessageCount     int        `json:"message_number"`
	IncidentCount    int        `json:"incident_number"`
}

// ChangePatch is a partial TripChange override; nil fields are left alone.
type ChangePatch struct {
	Status           *TripStatus `json:"tripStatus"`
	PassengerBoarded *bool       `json:"passenger_boarded"`
	PaymentConfirmed *bool       `json:"payment_confirmed"`
}

type Stop struct {
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Reached bool    `json:"status"`
	Index   int     `json:"index"`
}

func (s Stop) Point() types.Point {
	return types.Point{Lat: s.Lat, Lon: s.Lon}
}

type TripStops struct {
	Start Stop   `json:"start_address"`
	End   Stop   `json:"end_address"`
	Stops []Stop `json:"stops"`
}

type DriverProfile struct {
	DriverID   types.ID `json:"driver_id"`
	FullName   string   `json:"full_name"`
	Rating     float64  `json:"qualifications"`
	Selfie     string   `json:"selfie"`
	TotalTrips int      `json:"total_trips"`
	CarModel   string   `json:"car_model"`
	CarColor   string   `json:"car_color"`
	CarPlate   string   `json:"car_plate"`
	Phone      string   `json:"phone"`
}

type PassengerProfile struct {
	PassengerID types.ID `json:"passenger_id"`
	FullName    string   `json:"full_name"`
	Rating      float64  `json:"qualifications"`
	Selfie      string   `json:"selfie"`
	TotalTrips  int      `json:"total_trips"`
	Phone       string   `json:"phone"`
}

type Payment struct {
	Type            string `json:"payment_type"`
	AmountPassenger int    `json:"amount_passenger"`
	AmountDriver    int    `json:"amount_driver"`
}

type Filters struct {
	Luggage    bool `json:"luggage"`
	Pets       bool `json:"pets"`
	Packages   bool `json:"packages"`
	Wheelchair bool `json:"wheelchair"`
}

// Incident and Message are append-only log entries, never mutated or
// removed during a trip's lifetime.
type Incident struct {
	ID        types.ID    `json:"incident_id"`
	Actor     types.Actor `json:"incident_user"`
	Text      string      `json:"incident_message"`
	Timestamp time.Time   `json:"incident_timestamp"`
}

type Message struct {
	ID        types.ID    `json:"message_id"`
	Actor     types.Actor `json:"message_user"`
	Text      string      `json:"message_message"`
	Timestamp time.Time   `json:"message_timestamp"`
}

// Trip is the single shared mutable record of the active trip. It is owned
// by the Service and only ever touched under its lock.
type Trip struct {
	ServiceID   types.ID
	Stops       TripStops
	Driver      DriverProfile
	Passenger   PassengerProfile
	CarLocation types.Point
	Payment     Payment
	Filters     Filters
	Change      TripChange
	Messages    []Message
	Incidents   []Incident

	// progress counts location-driven advances through progressSequence.
	progress int
}

// PassengerView is the role-shaped snapshot returned to passengers.
type PassengerView struct {
	ServiceID      types.ID      `json:"service_id"`
	TripStops      TripStops     `json:"tripStops"`
	DriverProfile  DriverProfile `json:"driverProfile"`
	CarLocation    types.Point   `json:"carDriverLocation"`
	TripChange     TripChange    `json:"tripChange"`
	Filters        Filters       `json:"filters"`
	Payment        Payment       `json:"payment"`
	Incidents      []Incident    `json:"incident"`
	Messages       []Message     `json:"message"`
}

// DriverView is the role-shaped snapshot returned to drivers.
type DriverView struct {
	ServiceID        types.ID         `json:"service_id"`
	TripStops        TripStops        `json:"tripStops"`
	PassengerProfile PassengerProfile `json:"passengerProfile"`
	TripChange       TripChange       `json:"tripChange"`
	Filters          Filters          `json:"filters"`
	Payment          Payment          `json:"payment"`
	Incidents        []Incident       `json:"incident"`
	Messages         []Message        `json:"message"`
}

// LogSnapshot is the read-only reply to get-messages-incidents.
type LogSnapshot struct {
	Messages      []Message  `json:"messages"`
	Incidents     []Incident `json:"incidents"`
	MessageCount  int        `json:"message_number"`
	IncidentCount int        `json:"incident_number"`
	TripChange    TripChange `json:"tripChange"`
}
