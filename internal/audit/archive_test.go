package audit

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestMemoryArchiveKeepsInsertionOrder(t *testing.T) {
	a := NewMemoryArchive()
	for i := 0; i < 3; i++ {
		err := a.Append(context.Background(), Entry{
			TripID:      fmt.Sprintf("trip-%d", i),
			Status:      "expired",
			RequestedAt: time.Now(),
			ResolvedAt:  time.Now(),
		})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	entries := a.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i, e := range entries {
		if e.TripID != fmt.Sprintf("trip-%d", i) {
			t.Errorf("entry %d out of order: %q", i, e.TripID)
		}
	}

	// The returned slice is a copy.
	entries[0].TripID = "mutated"
	if a.Entries()[0].TripID != "trip-0" {
		t.Error("snapshot mutation leaked into the archive")
	}
}

func TestMemoryArchiveConcurrentAppends(t *testing.T) {
	a := NewMemoryArchive()
	const writers = 8
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			_ = a.Append(context.Background(), Entry{TripID: fmt.Sprintf("trip-%d", w), Status: "accepted"})
		}(w)
	}
	wg.Wait()

	if got := len(a.Entries()); got != writers {
		t.Errorf("expected %d entries, got %d", writers, got)
	}
}
