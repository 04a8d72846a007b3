// README: Common value objects shared across modules.
package types

// ID is an opaque identifier (trip, connection, message, incident).
type ID string

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Actor identifies which side of the trip produced an event.
type Actor string

const (
	ActorDriver    Actor = "driver"
	ActorPassenger Actor = "passenger"
)

func (a Actor) Valid() bool {
	return a == ActorDriver || a == ActorPassenger
}
