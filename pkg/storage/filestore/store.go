package filestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"premiumcollector/config"
	"premiumcollector/internal/premium"

	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// Store persists the latest-state file and the date-partitioned history.
type Store struct {
	latestPath    string
	historyDir    string
	retentionDays int
	logger        *zap.Logger

	// guards read-modify-write of a partition
	mu sync.Mutex

	remove func(name string) error
}

// New creates the data and history directories if needed.
func New(cfg config.StorageConfig, logger *zap.Logger) (*Store, error) {
	for _, dir := range []string{cfg.DataDir, cfg.HistoryDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return &Store{
		latestPath:    cfg.LatestPath(),
		historyDir:    cfg.HistoryDir,
		retentionDays: cfg.RetentionDays,
		logger:        logger,
		remove:        os.Remove,
	}, nil
}

// SaveLatest replaces the latest-state file.
func (s *Store) SaveLatest(state premium.LatestState) error {
	b, err := json.MarshalIndent(toLatestFile(state), "", "  ")
	if err != nil {
		return fmt.Errorf("encode latest state: %w", err)
	}
	if err := writeFile(s.latestPath, b); err != nil {
		return err
	}
	s.logger.Info("latest state saved", zap.String("path", s.latestPath), zap.Int("coins", len(state.Coins)))
	return nil
}

// AppendHistory adds snap to the partition of its UTC date and rewrites the
// whole partition file. It returns the partition length after the append.
func (s *Store) AppendHistory(snap premium.Snapshot) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	date := snap.Timestamp.UTC().Format(dateLayout)
	records := s.loadRecords(date)
	records = append(records, toSnapshotRecord(snap))

	b, err := json.Marshal(records)
	if err != nil {
		return 0, fmt.Errorf("encode partition %s: %w", date, err)
	}
	path := s.partitionPath(date)
	if err := writeFile(path, b); err != nil {
		return 0, err
	}

	s.logger.Info("snapshot appended", zap.String("path", path), zap.Int("entries", len(records)))
	return len(records), nil
}

// LoadPartition returns the snapshots stored for date (YYYY-MM-DD).
// Missing, unreadable or corrupt partitions yield an empty slice.
func (s *Store) LoadPartition(date string) []premium.Snapshot {
	s.mu.Lock()
	records := s.loadRecords(date)
	s.mu.Unlock()

	return s.fromRecords(date, records)
}

// PruneHistory deletes partitions dated strictly before today - retentionDays.
// Individual deletion failures are logged and skipped.
func (s *Store) PruneHistory(now time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dates, err := s.partitionDates()
	if err != nil {
		return nil, err
	}

	cutoff := utcDate(now).AddDate(0, 0, -s.retentionDays)
	var removed []string
	for _, date := range dates {
		day, _ := time.Parse(dateLayout, date)
		if !day.Before(cutoff) {
			continue
		}
		path := s.partitionPath(date)
		if err := s.remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("failed to remove expired partition", zap.String("path", path), zap.Error(err))
			continue
		}
		removed = append(removed, date)
	}

	if len(removed) > 0 {
		s.logger.Info("expired partitions removed", zap.Strings("dates", removed))
	}
	return removed, nil
}

// LoadHistory concatenates the partitions dated on or after now - days, in
// ascending date order. Unreadable partitions are skipped.
func (s *Store) LoadHistory(days int, now time.Time) ([]premium.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dates, err := s.partitionDates()
	if err != nil {
		return nil, err
	}

	cutoff := utcDate(now).AddDate(0, 0, -days)
	var history []premium.Snapshot
	for _, date := range dates {
		day, _ := time.Parse(dateLayout, date)
		if day.Before(cutoff) {
			continue
		}
		history = append(history, s.fromRecords(date, s.loadRecords(date))...)
	}
	return history, nil
}

// Partitions lists the stored partition dates in ascending order.
func (s *Store) Partitions() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.partitionDates()
}

func (s *Store) partitionPath(date string) string {
	return filepath.Join(s.historyDir, date+".json")
}

// partitionDates returns sorted dates of files named YYYY-MM-DD.json.
func (s *Store) partitionDates() ([]string, error) {
	entries, err := os.ReadDir(s.historyDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list history: %w", err)
	}

	var dates []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		date := strings.TrimSuffix(name, ".json")
		if _, err := time.Parse(dateLayout, date); err != nil {
			continue
		}
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return dates, nil
}

func (s *Store) loadRecords(date string) []snapshotRecord {
	path := s.partitionPath(date)
	b, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("unreadable partition treated as empty", zap.String("path", path), zap.Error(err))
		}
		return nil
	}

	var records []snapshotRecord
	if err := json.Unmarshal(b, &records); err != nil {
		s.logger.Warn("corrupt partition treated as empty", zap.String("path", path), zap.Error(err))
		return nil
	}
	return records
}

func (s *Store) fromRecords(date string, records []snapshotRecord) []premium.Snapshot {
	out := make([]premium.Snapshot, 0, len(records))
	for _, rec := range records {
		snap, err := fromSnapshotRecord(rec)
		if err != nil {
			s.logger.Warn("skipping malformed snapshot", zap.String("date", date), zap.Error(err))
			continue
		}
		out = append(out, snap)
	}
	return out
}

// writeFile replaces path with b via a temp file and rename.
func writeFile(path string, b []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

func utcDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
