package dedup

import (
	"context"
	"sync"
)

// SeenSet is the durable registry of processed entry identities, partitioned
// per parser. Membership is updated only after the owning batch has been
// persisted, so a crash mid-batch reprocesses instead of silently losing
// entries.
type SeenSet interface {
	IsSeen(ctx context.Context, parserID string, identity uint64) (bool, error)
	MarkSeen(ctx context.Context, parserID string, identities []uint64) error
}

// MemorySeenSet keeps identities in process memory. Used in tests and as a
// degraded mode when Redis is not configured; it does not survive restarts.
type MemorySeenSet struct {
	mu   sync.RWMutex
	seen map[string]map[uint64]struct{}
}

func NewMemorySeenSet() *MemorySeenSet {
	return &MemorySeenSet{seen: make(map[string]map[uint64]struct{})}
}

func (m *MemorySeenSet) IsSeen(ctx context.Context, parserID string, identity uint64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	identities, ok := m.seen[parserID]
	if !ok {
		return false, nil
	}
	_, ok = identities[identity]
	return ok, nil
}

func (m *MemorySeenSet) MarkSeen(ctx context.Context, parserID string, identities []uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.seen[parserID]
	if !ok {
		set = make(map[uint64]struct{})
		m.seen[parserID] = set
	}
	for _, identity := range identities {
		set[identity] = struct{}{}
	}
	return nil
}
