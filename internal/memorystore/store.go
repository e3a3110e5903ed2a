package memorystore

import (
	"sort"
	"sync"
	"time"

	"premiumcollector/internal/premium"
)

// MemoryStore keeps the latest state and date-partitioned history in memory.
type MemoryStore struct {
	globalMu      sync.RWMutex
	latest        *premium.LatestState
	partitions    map[string]*partition
	retentionDays int
}

type partition struct {
	mu        sync.Mutex
	snapshots []premium.Snapshot
}

func NewMemoryStore(retentionDays int) *MemoryStore {
	return &MemoryStore{
		partitions:    make(map[string]*partition),
		retentionDays: retentionDays,
	}
}

func (s *MemoryStore) SaveLatest(state premium.LatestState) error {
	s.globalMu.Lock()
	defer s.globalMu.Unlock()
	s.latest = &state
	return nil
}

// Latest returns the last saved state, if any.
func (s *MemoryStore) Latest() (premium.LatestState, bool) {
	s.globalMu.RLock()
	defer s.globalMu.RUnlock()
	if s.latest == nil {
		return premium.LatestState{}, false
	}
	return *s.latest, true
}

func (s *MemoryStore) AppendHistory(snap premium.Snapshot) (int, error) {
	date := snap.Timestamp.UTC().Format("2006-01-02")

	// Fast path: lock per-date partition only
	s.globalMu.RLock()
	p, ok := s.partitions[date]
	s.globalMu.RUnlock()

	if !ok {
		s.globalMu.Lock()
		if p, ok = s.partitions[date]; !ok {
			p = &partition{}
			s.partitions[date] = p
		}
		s.globalMu.Unlock()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshots = append(p.snapshots, snap)
	return len(p.snapshots), nil
}

// PruneHistory drops partitions dated strictly before now - retentionDays.
func (s *MemoryStore) PruneHistory(now time.Time) ([]string, error) {
	cutoff := now.UTC().AddDate(0, 0, -s.retentionDays).Format("2006-01-02")

	s.globalMu.Lock()
	defer s.globalMu.Unlock()

	var removed []string
	for date := range s.partitions {
		if date < cutoff {
			delete(s.partitions, date)
			removed = append(removed, date)
		}
	}
	sort.Strings(removed)
	return removed, nil
}

// Partition returns a copy of the snapshots stored for date.
func (s *MemoryStore) Partition(date string) []premium.Snapshot {
	s.globalMu.RLock()
	p, ok := s.partitions[date]
	s.globalMu.RUnlock()
	if !ok {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make([]premium.Snapshot, len(p.snapshots))
	copy(cp, p.snapshots)
	return cp
}

// CountAll returns the total number of snapshots stored across all dates.
func (s *MemoryStore) CountAll() int {
	s.globalMu.RLock()
	defer s.globalMu.RUnlock()

	total := 0
	for _, p := range s.partitions {
		p.mu.Lock()
		total += len(p.snapshots)
		p.mu.Unlock()
	}
	return total
}
