package trip

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"tripsim/internal/events"
	"tripsim/internal/types"
)

type sentEvent struct {
	event string
	conn  types.ID
	data  any
}

type recorder struct {
	mu     sync.Mutex
	events []sentEvent
}

func (r *recorder) Broadcast(event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, sentEvent{event: event, data: payload})
}

func (r *recorder) SendTo(conn types.ID, event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, sentEvent{event: event, conn: conn, data: payload})
}

func (r *recorder) all() []sentEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]sentEvent, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

func newTestService(t *testing.T, strictCancel bool) (*Service, *recorder) {
	t.Helper()
	rec := &recorder{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(log, rec, strictCancel), rec
}

func startTestTrip(t *testing.T, svc *Service) {
	t.Helper()
	pickup := Stop{Address: "Origen", Lat: -34.6037, Lon: -58.3816}
	dropoff := Stop{Address: "Destino", Lat: -34.6157, Lon: -58.4333}
	passenger := PassengerProfile{PassengerID: "passenger-1", FullName: "Ana Pérez"}
	if _, err := svc.StartSearch("conn-1", pickup, dropoff, passenger, 2170); err != nil {
		t.Fatalf("start search: %v", err)
	}
}

func TestStatusProgressionCycle(t *testing.T) {
	svc, _ := newTestService(t, false)
	startTestTrip(t, svc)
	svc.Accept("driver-1")

	steps := []struct {
		status  TripStatus
		boarded bool
		paid    bool
	}{
		{StatusDriverOnWay, false, false},
		{StatusDriverArrived, false, false},
		{StatusTripStarted, true, false},
		{StatusTripInProgress, true, false},
		{StatusTripCompleted, true, true},
	}
	p := types.Point{Lat: -34.60, Lon: -58.40}
	for i, want := range steps {
		change, err := svc.DriverLocationUpdate(p, time.Now())
		if err != nil {
			t.Fatalf("update %d: %v", i+1, err)
		}
		if change.Status != want.status {
			t.Errorf("update %d: expected status %v, got %v", i+1, want.status, change.Status)
		}
		if change.StatusText != want.status.String() {
			t.Errorf("update %d: status text %q out of step with %v", i+1, change.StatusText, change.Status)
		}
		if change.PassengerBoarded != want.boarded {
			t.Errorf("update %d: expected boarded=%v, got %v", i+1, want.boarded, change.PassengerBoarded)
		}
		if change.PaymentConfirmed != want.paid {
			t.Errorf("update %d: expected paid=%v, got %v", i+1, want.paid, change.PaymentConfirmed)
		}
	}

	// The counter wraps after the final element; a sixth update starts a
	// fresh cycle.
	change, err := svc.DriverLocationUpdate(p, time.Now())
	if err != nil {
		t.Fatalf("sixth update: %v", err)
	}
	if change.Status != StatusDriverOnWay {
		t.Errorf("expected wrap to driverOnWay, got %v", change.Status)
	}
	if change.PassengerBoarded || change.PaymentConfirmed {
		t.Errorf("expected flags reset on wrap, got boarded=%v paid=%v",
			change.PassengerBoarded, change.PaymentConfirmed)
	}
}

func TestStartSearchRejectsActiveTrip(t *testing.T) {
	svc, _ := newTestService(t, false)
	startTestTrip(t, svc)

	pickup := Stop{Address: "Otro", Lat: -34.60, Lon: -58.40}
	if _, err := svc.StartSearch("conn-2", pickup, pickup, PassengerProfile{}, 100); !errors.Is(err, ErrTripActive) {
		t.Fatalf("expected ErrTripActive, got %v", err)
	}

	// Terminal states accept a new search.
	if _, ok := svc.Cancel(types.ActorPassenger); !ok {
		t.Fatal("cancel should succeed on a live trip")
	}
	startTestTrip(t, svc)
	if got := svc.Change().Status; got != StatusSearching {
		t.Errorf("expected searching after restart, got %v", got)
	}
}

func TestStartSearchValidatesCoordinates(t *testing.T) {
	svc, _ := newTestService(t, false)
	cases := []struct {
		name     string
		lat, lon float64
	}{
		{"latitude above range", 91, 0},
		{"latitude below range", -91, 0},
		{"longitude above range", 0, 181},
		{"longitude below range", 0, -181},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			bad := Stop{Lat: tc.lat, Lon: tc.lon}
			good := Stop{Lat: -34.6, Lon: -58.4}
			if _, err := svc.StartSearch("conn-1", bad, good, PassengerProfile{}, 0); !errors.Is(err, ErrBadRequest) {
				t.Errorf("expected ErrBadRequest, got %v", err)
			}
		})
	}
}

func TestOverridePatchesOnlyPresentFields(t *testing.T) {
	svc, _ := newTestService(t, false)
	startTestTrip(t, svc)

	paid := true
	change, err := svc.Override(ChangePatch{PaymentConfirmed: &paid})
	if err != nil {
		t.Fatalf("override: %v", err)
	}
	if !change.PaymentConfirmed {
		t.Error("expected paymentConfirmed=true")
	}
	if change.Status != StatusSearching {
		t.Errorf("status should be untouched, got %v", change.Status)
	}
	if change.PassengerBoarded {
		t.Error("passengerBoarded should be untouched")
	}

	// Any valid status is reachable from any other.
	st := StatusTripCompleted
	change, err = svc.Override(ChangePatch{Status: &st})
	if err != nil {
		t.Fatalf("override: %v", err)
	}
	if change.Status != StatusTripCompleted || change.StatusText != "tripCompleted" {
		t.Errorf("expected tripCompleted, got %v/%q", change.Status, change.StatusText)
	}
	if !change.PaymentConfirmed {
		t.Error("earlier override should survive")
	}
}

func TestOverrideRejectsUnknownStatus(t *testing.T) {
	svc, _ := newTestService(t, false)
	bad := TripStatus(99)
	if _, err := svc.Override(ChangePatch{Status: &bad}); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("expected ErrBadRequest, got %v", err)
	}
}

func TestCancelSemantics(t *testing.T) {
	t.Run("passenger cancel before boarding", func(t *testing.T) {
		svc, _ := newTestService(t, false)
		startTestTrip(t, svc)

		change, ok := svc.Cancel(types.ActorPassenger)
		if !ok {
			t.Fatal("expected cancel to apply")
		}
		if change.Status != StatusTripCancelled {
			t.Errorf("expected tripCancelled, got %v", change.Status)
		}
		// Default mode forces boarded true even though the passenger
		// never boarded.
		if !change.PassengerBoarded {
			t.Error("expected passengerBoarded forced true")
		}
		if change.PaymentConfirmed {
			t.Error("expected paymentConfirmed false")
		}
	})

	t.Run("driver cancel", func(t *testing.T) {
		svc, _ := newTestService(t, false)
		startTestTrip(t, svc)

		change, ok := svc.Cancel(types.ActorDriver)
		if !ok {
			t.Fatal("expected cancel to apply")
		}
		if change.Status != StatusTripCancelledByDriver {
			t.Errorf("expected tripCancelledByDriver, got %v", change.Status)
		}
	})

	t.Run("cancel on terminal state is a no-op", func(t *testing.T) {
		svc, rec := newTestService(t, false)
		startTestTrip(t, svc)
		svc.Cancel(types.ActorPassenger)
		rec.reset()

		if _, ok := svc.Cancel(types.ActorPassenger); ok {
			t.Fatal("expected second cancel to be refused")
		}
		if got := len(rec.all()); got != 0 {
			t.Errorf("no emission expected on refused cancel, got %d", got)
		}
	})

	t.Run("strict mode leaves boarded flag alone", func(t *testing.T) {
		svc, _ := newTestService(t, true)
		startTestTrip(t, svc)

		change, ok := svc.Cancel(types.ActorPassenger)
		if !ok {
			t.Fatal("expected cancel to apply")
		}
		if change.PassengerBoarded {
			t.Error("strict cancel must not force passengerBoarded")
		}
	})
}

func TestLogsKeepInsertionOrderAndCounts(t *testing.T) {
	svc, _ := newTestService(t, false)
	startTestTrip(t, svc)

	texts := []string{"first", "second", "third"}
	for _, txt := range texts {
		if _, err := svc.RecordMessage(types.ActorPassenger, txt); err != nil {
			t.Fatalf("record message: %v", err)
		}
	}
	if _, err := svc.RecordIncident(types.ActorDriver, "flat tire"); err != nil {
		t.Fatalf("record incident: %v", err)
	}

	logs := svc.Logs()
	if logs.MessageCount != 3 || logs.IncidentCount != 1 {
		t.Fatalf("expected counts 3/1, got %d/%d", logs.MessageCount, logs.IncidentCount)
	}
	if len(logs.Messages) != logs.MessageCount {
		t.Errorf("message count %d out of step with log length %d", logs.MessageCount, len(logs.Messages))
	}
	for i, txt := range texts {
		if logs.Messages[i].Text != txt {
			t.Errorf("message %d: expected %q, got %q", i, txt, logs.Messages[i].Text)
		}
		if logs.Messages[i].ID == "" {
			t.Errorf("message %d: missing id", i)
		}
	}
	if logs.Incidents[0].Actor != types.ActorDriver {
		t.Errorf("expected driver incident, got %v", logs.Incidents[0].Actor)
	}

	// The snapshot is a copy; mutating it must not reach the aggregate.
	logs.Messages[0].Text = "mutated"
	if svc.Logs().Messages[0].Text != "first" {
		t.Error("snapshot mutation leaked into the aggregate")
	}
}

func TestRecordValidation(t *testing.T) {
	svc, _ := newTestService(t, false)
	if _, err := svc.RecordMessage("ghost", "hi"); !errors.Is(err, ErrBadRequest) {
		t.Errorf("expected ErrBadRequest for unknown actor, got %v", err)
	}
	if _, err := svc.RecordIncident(types.ActorDriver, ""); !errors.Is(err, ErrBadRequest) {
		t.Errorf("expected ErrBadRequest for empty text, got %v", err)
	}
}

func TestIncidentEmitsNoticeThenChange(t *testing.T) {
	svc, rec := newTestService(t, false)
	startTestTrip(t, svc)
	rec.reset()

	if _, err := svc.RecordIncident(types.ActorPassenger, "wrong route"); err != nil {
		t.Fatalf("record incident: %v", err)
	}

	got := rec.all()
	if len(got) != 2 {
		t.Fatalf("expected 2 emissions, got %d", len(got))
	}
	if got[0].event != events.IncidentNotice || got[1].event != events.SendChangeTrip {
		t.Errorf("expected [%s %s], got [%s %s]",
			events.IncidentNotice, events.SendChangeTrip, got[0].event, got[1].event)
	}
	change, ok := got[1].data.(TripChange)
	if !ok {
		t.Fatalf("expected TripChange payload, got %T", got[1].data)
	}
	if change.IncidentCount != 1 {
		t.Errorf("expected incident count 1 in emitted change, got %d", change.IncidentCount)
	}
}

func TestPassengerLocationUpdateLeavesStateAlone(t *testing.T) {
	svc, rec := newTestService(t, false)
	startTestTrip(t, svc)
	before := svc.Change()
	rec.reset()

	if err := svc.PassengerLocationUpdate("conn-1", types.Point{Lat: -34.61, Lon: -58.39}, time.Time{}); err != nil {
		t.Fatalf("passenger location: %v", err)
	}
	if got := svc.Change(); got != before {
		t.Errorf("passenger location must not change trip state: %+v != %+v", got, before)
	}

	got := rec.all()
	if len(got) != 2 {
		t.Fatalf("expected 2 emissions, got %d", len(got))
	}
	if got[0].event != events.LocationPassengerSend {
		t.Errorf("expected rebroadcast of %s, got %s", events.LocationPassengerSend, got[0].event)
	}
	if got[1].event != events.SendChangeTrip || got[1].conn != "conn-1" {
		t.Errorf("expected change echoed to sender, got %s → %q", got[1].event, got[1].conn)
	}
}

func TestSnapshotsAreRoleShaped(t *testing.T) {
	svc, _ := newTestService(t, false)
	startTestTrip(t, svc)
	svc.Accept("driver-1")

	pv := svc.PassengerSnapshot()
	if pv.DriverProfile.DriverID != "driver-1" {
		t.Errorf("passenger view missing driver, got %q", pv.DriverProfile.DriverID)
	}
	if pv.TripChange.Status != StatusDriverAccepted {
		t.Errorf("expected driverAccepted in view, got %v", pv.TripChange.Status)
	}

	dv := svc.DriverSnapshot()
	if dv.PassengerProfile.PassengerID != "passenger-1" {
		t.Errorf("driver view missing passenger, got %q", dv.PassengerProfile.PassengerID)
	}
	if dv.Payment.AmountDriver != 2170 {
		t.Errorf("expected fare 2170 in driver view, got %d", dv.Payment.AmountDriver)
	}
}
