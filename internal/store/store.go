// Package store persists the per-PR overrides, the notification ledger, the
// app settings and the activity log. Each lives in its own JSON file under the
// data directory and is guarded by its own lock, so contention on one never
// blocks the others. Every write goes through a temp-file rename and the
// in-memory copy is updated only after the write landed.
package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/natefinch/atomic"
	"github.com/tailscale/hujson"

	"github.com/prpulse/prpulse/internal/domain"
)

const (
	overridesFile = "overrides.json"
	ledgerFile    = "ledger.json"
	settingsFile  = "settings.json"
	activityFile  = "activity.json"
)

// Store owns the four persisted resources. Safe for concurrent use.
type Store struct {
	dir string

	overridesMu sync.Mutex
	overrides   map[string]domain.Override

	ledgerMu sync.Mutex
	ledger   map[string]time.Time

	settingsMu sync.Mutex
	settings   domain.Settings

	activityMu sync.Mutex
	activity   []domain.ActivityEvent
}

// settingsRecord is the on-disk shape of domain.Settings. The token is not
// part of it: even if the in-memory settings carry one, it never reaches the
// settings file.
type settingsRecord struct {
	RefreshIntervalSeconds  int                       `json:"refreshIntervalSeconds"`
	RefreshOnLaunch         bool                      `json:"refreshOnLaunch"`
	NotifyNeedsReview       bool                      `json:"notifyNeedsReview"`
	NotifyNewReviewRequests bool                      `json:"notifyNewReviewRequests"`
	QuietHours              *domain.QuietHours        `json:"quietHours,omitempty"`
	SnoozeDefaultHour       int                       `json:"snoozeDefaultHour"`
	DigestCadence           domain.DigestCadence      `json:"digestCadence"`
	WatchedRepositories     []domain.RepoSubscription `json:"watchedRepositories"`
}

func toRecord(s domain.Settings) settingsRecord {
	return settingsRecord{
		RefreshIntervalSeconds:  int(s.RefreshInterval / time.Second),
		RefreshOnLaunch:         s.RefreshOnLaunch,
		NotifyNeedsReview:       s.NotifyNeedsReview,
		NotifyNewReviewRequests: s.NotifyNewReviewRequests,
		QuietHours:              s.QuietHours,
		SnoozeDefaultHour:       s.SnoozeDefaultHour,
		DigestCadence:           s.DigestCadence,
		WatchedRepositories:     s.WatchedRepositories,
	}
}

func fromRecord(r settingsRecord) domain.Settings {
	s := domain.Settings{
		RefreshInterval:         time.Duration(r.RefreshIntervalSeconds) * time.Second,
		RefreshOnLaunch:         r.RefreshOnLaunch,
		NotifyNeedsReview:       r.NotifyNeedsReview,
		NotifyNewReviewRequests: r.NotifyNewReviewRequests,
		QuietHours:              r.QuietHours,
		SnoozeDefaultHour:       r.SnoozeDefaultHour,
		DigestCadence:           r.DigestCadence,
		WatchedRepositories:     r.WatchedRepositories,
	}
	if s.RefreshInterval <= 0 {
		s.RefreshInterval = domain.DefaultSettings().RefreshInterval
	}
	if s.DigestCadence == "" {
		s.DigestCadence = domain.DefaultSettings().DigestCadence
	}
	if s.SnoozeDefaultHour <= 0 || s.SnoozeDefaultHour > 23 {
		s.SnoozeDefaultHour = domain.DefaultSettings().SnoozeDefaultHour
	}
	return s
}

// Open loads the store from dir, creating it if needed. A missing or corrupt
// file degrades to its empty default; Open fails only if the directory cannot
// be created.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	s := &Store{
		dir:       dir,
		overrides: make(map[string]domain.Override),
		ledger:    make(map[string]time.Time),
		settings:  domain.DefaultSettings(),
	}

	readJSON(filepath.Join(dir, overridesFile), &s.overrides)
	readJSON(filepath.Join(dir, ledgerFile), &s.ledger)
	readJSON(filepath.Join(dir, activityFile), &s.activity)

	// settings.json is hand-editable, so tolerate comments and trailing
	// commas before decoding.
	if data, err := os.ReadFile(filepath.Join(dir, settingsFile)); err == nil {
		if std, err := hujson.Standardize(data); err == nil {
			var rec settingsRecord
			if json.Unmarshal(std, &rec) == nil {
				s.settings = fromRecord(rec)
			}
		}
	}

	if s.overrides == nil {
		s.overrides = make(map[string]domain.Override)
	}
	if s.ledger == nil {
		s.ledger = make(map[string]time.Time)
	}

	return s, nil
}

// Dir returns the data directory backing the store.
func (s *Store) Dir() string { return s.dir }

// SettingsPath returns the path of the settings file, for opening it in an
// editor.
func (s *Store) SettingsPath() string { return filepath.Join(s.dir, settingsFile) }

// Override returns the stored override for id, or the zero override.
func (s *Store) Override(id string) domain.Override {
	s.overridesMu.Lock()
	defer s.overridesMu.Unlock()
	return s.overrides[id]
}

// SetOverride replaces the override for id and persists it before returning.
// Full replace, not merge. On write failure the in-memory state keeps the
// previous value.
func (s *Store) SetOverride(id string, o domain.Override) error {
	s.overridesMu.Lock()
	defer s.overridesMu.Unlock()

	next := make(map[string]domain.Override, len(s.overrides)+1)
	for k, v := range s.overrides {
		next[k] = v
	}
	if o.IsZero() {
		delete(next, id)
	} else {
		next[id] = o
	}

	if err := writeJSON(filepath.Join(s.dir, overridesFile), next); err != nil {
		return fmt.Errorf("persist overrides: %w", err)
	}
	s.overrides = next
	return nil
}

// LedgerTimestamp returns the last-sent timestamp for the composite key.
func (s *Store) LedgerTimestamp(key string) (time.Time, bool) {
	s.ledgerMu.Lock()
	defer s.ledgerMu.Unlock()
	t, ok := s.ledger[key]
	return t, ok
}

// SetLedgerTimestamp records the last-sent timestamp for the composite key.
func (s *Store) SetLedgerTimestamp(key string, t time.Time) error {
	s.ledgerMu.Lock()
	defer s.ledgerMu.Unlock()

	next := make(map[string]time.Time, len(s.ledger)+1)
	for k, v := range s.ledger {
		next[k] = v
	}
	next[key] = t

	if err := writeJSON(filepath.Join(s.dir, ledgerFile), next); err != nil {
		return fmt.Errorf("persist ledger: %w", err)
	}
	s.ledger = next
	return nil
}

// Settings returns the current settings.
func (s *Store) Settings() domain.Settings {
	s.settingsMu.Lock()
	defer s.settingsMu.Unlock()
	return s.settings
}

// SetSettings replaces and persists the settings. The token field never
// reaches the settings file; it survives only in memory.
func (s *Store) SetSettings(settings domain.Settings) error {
	s.settingsMu.Lock()
	defer s.settingsMu.Unlock()

	if err := writeJSON(filepath.Join(s.dir, settingsFile), toRecord(settings)); err != nil {
		return fmt.Errorf("persist settings: %w", err)
	}
	s.settings = settings
	return nil
}

// AppendActivity appends one event to the activity log and persists it.
func (s *Store) AppendActivity(e domain.ActivityEvent) error {
	s.activityMu.Lock()
	defer s.activityMu.Unlock()

	next := make([]domain.ActivityEvent, 0, len(s.activity)+1)
	next = append(next, s.activity...)
	next = append(next, e)

	if err := writeJSON(filepath.Join(s.dir, activityFile), next); err != nil {
		return fmt.Errorf("persist activity: %w", err)
	}
	s.activity = next
	return nil
}

// RecentActivity returns events with Date >= since, in log order. The log is
// not consumed.
func (s *Store) RecentActivity(since time.Time) []domain.ActivityEvent {
	s.activityMu.Lock()
	defer s.activityMu.Unlock()

	var out []domain.ActivityEvent
	for _, e := range s.activity {
		if !e.Date.Before(since) {
			out = append(out, e)
		}
	}
	return out
}

// PruneActivity drops events older than before. Digest results for events
// inside any supported cadence window are unaffected as long as before is at
// least the longest cadence in the past.
func (s *Store) PruneActivity(before time.Time) error {
	s.activityMu.Lock()
	defer s.activityMu.Unlock()

	next := make([]domain.ActivityEvent, 0, len(s.activity))
	for _, e := range s.activity {
		if !e.Date.Before(before) {
			next = append(next, e)
		}
	}
	if len(next) == len(s.activity) {
		return nil
	}

	if err := writeJSON(filepath.Join(s.dir, activityFile), next); err != nil {
		return fmt.Errorf("prune activity: %w", err)
	}
	s.activity = next
	return nil
}

// readJSON loads path into v, ignoring missing or unreadable files.
func readJSON(path string, v any) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	_ = json.Unmarshal(data, v)
}

// writeJSON marshals v and writes it atomically (temp file + rename).
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}
