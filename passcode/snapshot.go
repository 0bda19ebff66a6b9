// Copyright © 2024-2026 IngressFS Labs. Licensed under the terms of the MIT License.

package passcode

import (
	"context"
	"encoding/json"
	"os"
	"sort"
	"time"

	"github.com/ingressfs/passbot/app/errors"
	"github.com/ingressfs/passbot/app/log"
	"github.com/ingressfs/passbot/app/z"
)

// Snapshot is the JSON-persisted form of the store.
type Snapshot struct {
	PasscodeURL  string                              `json:"passcode_url"`
	PasscodePatt string                              `json:"passcode_patt"`
	UserReports  map[string]map[int][]snapshotReport `json:"user_reports"`
	UserTrusted  []string                            `json:"user_trusted"`
	UserInfo     map[string]snapshotReporter         `json:"user_info"`
}

type snapshotReport struct {
	Time  int64  `json:"time"`
	Name  string `json:"name"`
	Media string `json:"media"`
}

type snapshotReporter struct {
	ID        string `json:"id"`
	ChatID    int64  `json:"chat_id,omitempty"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
}

// emptySnapshot returns a snapshot of an empty store.
func emptySnapshot() Snapshot {
	return Snapshot{
		UserReports: make(map[string]map[int][]snapshotReport),
		UserTrusted: []string{},
		UserInfo:    make(map[string]snapshotReporter),
	}
}

// Snapshot returns a deep copy of the store content in its persisted form.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := emptySnapshot()
	snap.PasscodeURL = s.imageURL
	snap.PasscodePatt = s.pattern

	for id, byIndex := range s.reports {
		indexes := make(map[int][]snapshotReport, len(byIndex))
		for index, history := range byIndex {
			reports := make([]snapshotReport, 0, len(history))
			for _, r := range history {
				reports = append(reports, snapshotReport{
					Time:  r.Time.Unix(),
					Name:  r.Label,
					Media: r.Symbol,
				})
			}
			indexes[index] = reports
		}
		snap.UserReports[string(id)] = indexes
	}

	for id := range s.trusted {
		snap.UserTrusted = append(snap.UserTrusted, string(id))
	}

	sort.Strings(snap.UserTrusted)

	for id, r := range s.info {
		snap.UserInfo[string(id)] = snapshotReporter{
			ID:        string(r.ID),
			ChatID:    r.ChatID,
			Username:  r.Username,
			FirstName: r.FirstName,
		}
	}

	return snap
}

// Restore replaces the store content with the snapshot content.
func (s *Store) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.imageURL = snap.PasscodeURL
	s.pattern = snap.PasscodePatt

	s.reports = make(map[ReporterID]map[int][]Report)
	for id, indexes := range snap.UserReports {
		byIndex := make(map[int][]Report, len(indexes))
		for index, history := range indexes {
			reports := make([]Report, 0, len(history))
			for _, r := range history {
				reports = append(reports, Report{
					Time:   time.Unix(r.Time, 0),
					Label:  r.Name,
					Symbol: r.Media,
				})
			}
			byIndex[index] = reports
		}
		s.reports[ReporterID(id)] = byIndex
	}

	s.trusted = make(map[ReporterID]struct{})
	for _, id := range snap.UserTrusted {
		s.trusted[ReporterID(id)] = struct{}{}
	}

	s.info = make(map[ReporterID]Reporter)
	for id, r := range snap.UserInfo {
		s.info[ReporterID(id)] = Reporter{
			ID:        ReporterID(r.ID),
			ChatID:    r.ChatID,
			Username:  r.Username,
			FirstName: r.FirstName,
		}
	}
}

// DumpTask returns a worker pool task that persists the store's snapshot via
// the gateway. The snapshot is taken when the task executes, not when it is
// scheduled, so a dump always reflects the latest state.
func DumpTask(store *Store, gateway Gateway) func(context.Context) {
	return func(ctx context.Context) {
		if err := gateway.Save(store.Snapshot()); err != nil {
			log.Error(ctx, "Snapshot save failed", err)
			return
		}

		dumpCounter.Inc()
		log.Debug(ctx, "Snapshot saved")
	}
}

// Gateway loads and saves store snapshots to a single file on disk.
// It is stateless beyond the file path and assumes a single writer.
type Gateway struct {
	path string
}

// NewGateway returns a new persistence gateway for the provided file path.
func NewGateway(path string) Gateway {
	return Gateway{path: path}
}

// Load reads the snapshot from disk. If the file does not exist an empty
// default is written first and then re-read, guaranteeing the file exists
// before the process proceeds.
func (g Gateway) Load(ctx context.Context) (Snapshot, error) {
	if _, err := os.Stat(g.path); os.IsNotExist(err) {
		log.Info(ctx, "Snapshot file not found, initialising empty", z.Str("path", g.path))

		if err := g.Save(emptySnapshot()); err != nil {
			return Snapshot{}, err
		}
	}

	b, err := os.ReadFile(g.path)
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "read snapshot", z.Str("path", g.path))
	}

	var snap Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return Snapshot{}, errors.Wrap(err, "unmarshal snapshot", z.Str("path", g.path))
	}

	return snap, nil
}

// Save writes the snapshot to disk, replacing any previous content.
func (g Gateway) Save(snap Snapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return errors.Wrap(err, "marshal snapshot")
	}

	if err := os.WriteFile(g.path, b, 0o644); err != nil {
		return errors.Wrap(err, "write snapshot", z.Str("path", g.path))
	}

	return nil
}
