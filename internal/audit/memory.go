// README: In-memory archive, the default when no audit DSN is configured.
package audit

import (
	"context"
	"sync"
)

type MemoryArchive struct {
	mu      sync.Mutex
	entries []Entry
}

func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{}
}

func (a *MemoryArchive) Append(_ context.Context, e Entry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
	return nil
}

// Entries returns a copy in insertion order.
func (a *MemoryArchive) Entries() []Entry {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Entry, len(a.entries))
	copy(out, a.entries)
	return out
}
