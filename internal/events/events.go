// README: Wire event names shared by the core and the websocket boundary.
package events

// Passenger events.
const (
	GetTripPassenger      = "get-trip-p-on"
	LocationPassengerSend = "location-p-send"
	IncidentPassengerSend = "trip-incident-p-send"
	MessagePassengerSend  = "trip-message-p-send"
	CancelPassengerSend   = "trip-cancel-p-send"
	RequestTrip           = "request-trip"
)

// Driver events.
const (
	GetTripDriver      = "get-trip-d-on"
	DriverLocation     = "driver-location"
	LocationDriverSend = "location-d-send"
	IncidentDriverSend = "trip-incident-d-send"
	MessageDriverSend  = "trip-message-d-send"
	CancelDriverSend   = "trip-cancel-d-send"
	TripAccept         = "trip-accept"
	TripReject         = "trip-reject"
)

// Shared events.
const (
	SendChangeTrip       = "send-change-trip"
	GetMessagesIncidents = "get-messages-incidents"
)

// Server-emitted events.
const (
	GetTripResponse      = "get-trip-response"
	TripAvailable        = "trip-available"
	DriverLocationUpdate = "driver-location-update"
	IncidentNotice       = "trip-incident-p-on"
	MessageNotice        = "trip-message-p-on"
	CancelNotice         = "trip-cancel-p-on"
	AllMessages          = "all-messages"
	Error                = "error"
)
