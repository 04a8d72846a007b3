// README: Inbound event dispatch; maps wire events onto the core services.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"tripsim/internal/events"
	"tripsim/internal/modules/matching"
	"tripsim/internal/modules/trip"
	"tripsim/internal/types"
)

// DriverLocator mirrors the matching store surface the gateway feeds:
// driver positions go in on location events and out on disconnect.
type DriverLocator interface {
	UpdateDriver(ctx context.Context, conn types.ID, p types.Point) error
	RemoveDriver(ctx context.Context, conn types.ID) error
}

// Gateway translates wire envelopes into service calls. Failures are
// reported only to the connection that caused them; broadcasts stay clean.
type Gateway struct {
	trips   *trip.Service
	match   *matching.Service
	locator DriverLocator // nil when no driver index is configured
	log     *slog.Logger
}

func NewGateway(log *slog.Logger, trips *trip.Service, match *matching.Service, locator DriverLocator) *Gateway {
	return &Gateway{trips: trips, match: match, locator: locator, log: log}
}

type requestTripPayload struct {
	Passenger trip.PassengerProfile `json:"passenger"`
	Pickup    trip.Stop             `json:"pickup_location"`
	Dropoff   trip.Stop             `json:"dropoff_location"`
}

type locationPayload struct {
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Timestamp int64   `json:"timestamp"`
}

func (p locationPayload) point() types.Point {
	return types.Point{Lat: p.Lat, Lon: p.Lon}
}

func (p locationPayload) time() time.Time {
	if p.Timestamp == 0 {
		return time.Time{}
	}
	return time.UnixMilli(p.Timestamp)
}

type textPayload struct {
	Text string `json:"message"`
}

type offerReplyPayload struct {
	TripID   types.ID `json:"trip_id"`
	DriverID types.ID `json:"driver_id"`
	Reason   string   `json:"reason,omitempty"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// OnConnect pushes the role-shaped snapshot so a reconnecting client
// resynchronizes without asking.
func (g *Gateway) OnConnect(c *Client) {
	if c.Role == types.ActorDriver {
		g.reply(c, events.GetTripResponse, g.trips.DriverSnapshot())
		return
	}
	g.reply(c, events.GetTripResponse, g.trips.PassengerSnapshot())
}

func (g *Gateway) OnDisconnect(c *Client) {
	if g.locator == nil || c.Role != types.ActorDriver {
		return
	}
	if err := g.locator.RemoveDriver(context.Background(), c.ID); err != nil {
		g.log.Warn("driver index cleanup failed", "conn_id", string(c.ID), "error", err)
	}
}

func (g *Gateway) HandleMessage(c *Client, event string, data json.RawMessage) {
	switch event {
	case events.GetTripPassenger:
		g.reply(c, events.GetTripResponse, g.trips.PassengerSnapshot())

	case events.GetTripDriver:
		g.reply(c, events.GetTripResponse, g.trips.DriverSnapshot())

	case events.RequestTrip:
		g.handleRequestTrip(c, data)

	case events.DriverLocation, events.LocationDriverSend:
		g.handleDriverLocation(c, data)

	case events.LocationPassengerSend:
		g.handlePassengerLocation(c, data)

	case events.SendChangeTrip:
		g.handleOverride(c, data)

	case events.CancelPassengerSend:
		g.trips.Cancel(types.ActorPassenger)

	case events.CancelDriverSend:
		g.trips.Cancel(types.ActorDriver)

	case events.IncidentPassengerSend:
		g.handleIncident(c, types.ActorPassenger, data)

	case events.IncidentDriverSend:
		g.handleIncident(c, types.ActorDriver, data)

	case events.MessagePassengerSend:
		g.handleChat(c, types.ActorPassenger, data)

	case events.MessageDriverSend:
		g.handleChat(c, types.ActorDriver, data)

	case events.TripAccept:
		g.handleAccept(c, data)

	case events.TripReject:
		g.handleReject(c, data)

	case events.GetMessagesIncidents:
		g.reply(c, events.AllMessages, g.trips.Logs())

	default:
		g.fail(c, "unknown event: "+event)
	}
}

func (g *Gateway) handleRequestTrip(c *Client, data json.RawMessage) {
	var p requestTripPayload
	if err := json.Unmarshal(data, &p); err != nil {
		g.fail(c, "malformed trip request")
		return
	}
	_, err := g.match.RequestTrip(context.Background(), matching.RequestCommand{
		Conn:      c.ID,
		Passenger: p.Passenger,
		Pickup:    p.Pickup,
		Dropoff:   p.Dropoff,
	})
	if err != nil {
		g.failErr(c, err)
	}
}

func (g *Gateway) handleDriverLocation(c *Client, data json.RawMessage) {
	var p locationPayload
	if err := json.Unmarshal(data, &p); err != nil {
		g.fail(c, "malformed location")
		return
	}
	if _, err := g.trips.DriverLocationUpdate(p.point(), p.time()); err != nil {
		g.failErr(c, err)
		return
	}
	if g.locator != nil && c.Role == types.ActorDriver {
		if err := g.locator.UpdateDriver(context.Background(), c.ID, p.point()); err != nil {
			g.log.Warn("driver index update failed", "conn_id", string(c.ID), "error", err)
		}
	}
}

func (g *Gateway) handlePassengerLocation(c *Client, data json.RawMessage) {
	var p locationPayload
	if err := json.Unmarshal(data, &p); err != nil {
		g.fail(c, "malformed location")
		return
	}
	if err := g.trips.PassengerLocationUpdate(c.ID, p.point(), p.time()); err != nil {
		g.failErr(c, err)
	}
}

func (g *Gateway) handleOverride(c *Client, data json.RawMessage) {
	var patch trip.ChangePatch
	if err := json.Unmarshal(data, &patch); err != nil {
		g.fail(c, "malformed trip change")
		return
	}
	if _, err := g.trips.Override(patch); err != nil {
		g.failErr(c, err)
	}
}

func (g *Gateway) handleIncident(c *Client, actor types.Actor, data json.RawMessage) {
	var p textPayload
	if err := json.Unmarshal(data, &p); err != nil {
		g.fail(c, "malformed incident")
		return
	}
	if _, err := g.trips.RecordIncident(actor, p.Text); err != nil {
		g.failErr(c, err)
	}
}

func (g *Gateway) handleChat(c *Client, actor types.Actor, data json.RawMessage) {
	var p textPayload
	if err := json.Unmarshal(data, &p); err != nil {
		g.fail(c, "malformed message")
		return
	}
	if _, err := g.trips.RecordMessage(actor, p.Text); err != nil {
		g.failErr(c, err)
	}
}

func (g *Gateway) handleAccept(c *Client, data json.RawMessage) {
	var p offerReplyPayload
	if err := json.Unmarshal(data, &p); err != nil {
		g.fail(c, "malformed accept")
		return
	}
	driverID := p.DriverID
	if driverID == "" {
		driverID = c.ID
	}
	// A losing or late accept is a silent no-op; the winner's broadcast
	// already told everyone the trip was taken.
	g.match.AcceptOffer(context.Background(), p.TripID, driverID)
}

func (g *Gateway) handleReject(c *Client, data json.RawMessage) {
	var p offerReplyPayload
	if err := json.Unmarshal(data, &p); err != nil {
		g.fail(c, "malformed reject")
		return
	}
	driverID := p.DriverID
	if driverID == "" {
		driverID = c.ID
	}
	g.match.RejectOffer(context.Background(), p.TripID, driverID, p.Reason)
}

func (g *Gateway) reply(c *Client, event string, payload any) {
	c.Send(event, payload)
}

func (g *Gateway) failErr(c *Client, err error) {
	switch {
	case errors.Is(err, trip.ErrTripActive):
		g.fail(c, "a trip is already in progress")
	case errors.Is(err, trip.ErrBadRequest):
		g.fail(c, "invalid request")
	default:
		g.log.Error("handler failed", "conn_id", string(c.ID), "error", err)
		g.fail(c, "internal error")
	}
}

func (g *Gateway) fail(c *Client, msg string) {
	c.Send(events.Error, errorPayload{Message: msg})
}
