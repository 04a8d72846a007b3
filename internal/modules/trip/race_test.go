package trip

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"tripsim/internal/types"
)

// The aggregate is shared by every connection; these tests hammer it from
// many goroutines and check the lock keeps the record coherent.

func TestConcurrentDriverUpdatesStayConsistent(t *testing.T) {
	svc, _ := newTestService(t, false)
	startTestTrip(t, svc)
	svc.Accept("driver-1")

	const updates = 50
	var wg sync.WaitGroup
	for i := 0; i < updates; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			p := types.Point{Lat: -34.6 + float64(n)*0.001, Lon: -58.4}
			if _, err := svc.DriverLocationUpdate(p, time.Now()); err != nil {
				t.Errorf("update %d: %v", n, err)
			}
		}(i)
	}
	wg.Wait()

	change := svc.Change()
	inSequence := false
	for _, st := range progressSequence {
		if change.Status == st {
			inSequence = true
		}
	}
	if !inSequence {
		t.Fatalf("final status %v is outside the progression", change.Status)
	}
	// Flags are derived from the status inside the same critical section,
	// so they can never be observed out of step with it.
	if change.PassengerBoarded != (change.Status >= StatusTripStarted) {
		t.Errorf("boarded=%v inconsistent with status %v", change.PassengerBoarded, change.Status)
	}
	if change.PaymentConfirmed != (change.Status == StatusTripCompleted) {
		t.Errorf("paid=%v inconsistent with status %v", change.PaymentConfirmed, change.Status)
	}
}

func TestConcurrentRecordingKeepsCountsExact(t *testing.T) {
	svc, _ := newTestService(t, false)
	startTestTrip(t, svc)

	const (
		writers    = 4
		perWriter  = 25
		totalMsgs  = writers * perWriter
		totalIncid = writers
	)
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				if _, err := svc.RecordMessage(types.ActorPassenger, fmt.Sprintf("msg %d-%d", w, i)); err != nil {
					t.Errorf("record message: %v", err)
				}
			}
			if _, err := svc.RecordIncident(types.ActorDriver, fmt.Sprintf("incident %d", w)); err != nil {
				t.Errorf("record incident: %v", err)
			}
		}(w)
	}
	wg.Wait()

	logs := svc.Logs()
	if logs.MessageCount != totalMsgs || len(logs.Messages) != totalMsgs {
		t.Errorf("expected %d messages, got count=%d len=%d", totalMsgs, logs.MessageCount, len(logs.Messages))
	}
	if logs.IncidentCount != totalIncid || len(logs.Incidents) != totalIncid {
		t.Errorf("expected %d incidents, got count=%d len=%d", totalIncid, logs.IncidentCount, len(logs.Incidents))
	}

	seen := make(map[types.ID]bool, totalMsgs)
	for _, m := range logs.Messages {
		if seen[m.ID] {
			t.Fatalf("duplicate message id %s", m.ID)
		}
		seen[m.ID] = true
	}
}
