// Copyright © 2024-2026 IngressFS Labs. Licensed under the terms of the MIT License.

package passcode

import (
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/jonboulle/clockwork"

	"github.com/ingressfs/passbot/app/errors"
	"github.com/ingressfs/passbot/app/z"
)

// ErrUnknownReporter is returned when a reporter handle or ID cannot be resolved.
var ErrUnknownReporter = errors.NewSentinel("unknown reporter")

// Thresholds are the consensus acceptance and trust promotion parameters.
type Thresholds struct {
	// MinCount is the minimum absolute number of matching votes a value needs to qualify.
	MinCount int
	// MinRate is the minimum proportion of all votes at an index a value needs to qualify.
	MinRate float64
	// MinCorrect is the exclusive lower bound of consensus-matching reports a
	// reporter needs across indexes to be promoted to the trust set.
	MinCorrect int
}

// DefaultThresholds returns the default consensus thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinCount:   3,
		MinRate:    0.5,
		MinCorrect: 3,
	}
}

// Store is the single source of truth for reports, reporter metadata, the
// trust set and the passcode template. A single internal mutex guards all
// fields; composite operations keep a mutation and its dependent
// re-derivation (trust promotion) in one critical section. No I/O happens
// under the lock.
type Store struct {
	mu    sync.Mutex
	clock clockwork.Clock

	portalCount int
	thresholds  Thresholds

	reports map[ReporterID]map[int][]Report
	info    map[ReporterID]Reporter
	trusted map[ReporterID]struct{}

	pattern  string
	imageURL string
}

// NewStore returns a new empty store.
func NewStore(portalCount int, thresholds Thresholds) *Store {
	return &Store{
		clock:       clockwork.NewRealClock(),
		portalCount: portalCount,
		thresholds:  thresholds,
		reports:     make(map[ReporterID]map[int][]Report),
		info:        make(map[ReporterID]Reporter),
		trusted:     make(map[ReporterID]struct{}),
	}
}

// NewStoreForT returns a new store for testing supporting a fake clock.
func NewStoreForT(t *testing.T, clock clockwork.Clock, portalCount int, thresholds Thresholds) *Store {
	t.Helper()

	s := NewStore(portalCount, thresholds)
	s.clock = clock

	return s
}

// RegisterReporter upserts the reporter metadata. It is idempotent;
// later registrations overwrite earlier ones.
func (s *Store) RegisterReporter(r Reporter) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.info[r.ID] = r
}

// SubmitReport appends a timestamped report for the reporter at the index and
// re-evaluates trust promotion in the same critical section. Duplicate
// resubmission is allowed; the latest report per reporter-per-index wins.
func (s *Store) SubmitReport(id ReporterID, index int, label, symbol string) error {
	if index < 1 || index > s.portalCount {
		return errors.New("portal index out of range",
			z.Int("index", index), z.Int("portal_count", s.portalCount))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	byIndex, ok := s.reports[id]
	if !ok {
		byIndex = make(map[int][]Report)
		s.reports[id] = byIndex
	}

	byIndex[index] = append(byIndex[index], Report{
		Time:   s.clock.Now(),
		Label:  label,
		Symbol: symbol,
	})

	reportCounter.Inc()

	s.promoteTrusted()

	return nil
}

// promoteTrusted adds all reporters whose consensus-matching report count
// exceeds the trust threshold to the trust set. Promotion is monotone and
// idempotent; the set only ever grows. Must be called with the lock held.
func (s *Store) promoteTrusted() {
	_, correct := resolve(s.reports, s.thresholds.MinCount, s.thresholds.MinRate)

	for id, n := range correct {
		if n > s.thresholds.MinCorrect {
			s.trusted[id] = struct{}{}
		}
	}

	trustedGauge.Set(float64(len(s.trusted)))
}

// LatestReportsOf returns one entry per index the reporter has reported,
// using only the latest report at each index, sorted ascending by index.
func (s *Store) LatestReportsOf(id ReporterID) []IndexedReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	var resp []IndexedReport
	for index, history := range s.reports[id] {
		last := history[len(history)-1]
		resp = append(resp, IndexedReport{
			Index:  index,
			Label:  last.Label,
			Symbol: last.Symbol,
		})
	}

	sort.Slice(resp, func(i, j int) bool {
		return resp[i].Index < resp[j].Index
	})

	return resp
}

// Consensus computes the majority label and symbol per index and the set of
// reporters whose correct-count exceeds the trust threshold, so callers can
// trust-promote in the same pass. Reporter IDs are returned sorted.
func (s *Store) Consensus() (map[int]Entry, []ReporterID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, correct := resolve(s.reports, s.thresholds.MinCount, s.thresholds.MinRate)

	var trustworthy []ReporterID
	for id, n := range correct {
		if n > s.thresholds.MinCorrect {
			trustworthy = append(trustworthy, id)
		}
	}

	sort.Slice(trustworthy, func(i, j int) bool {
		return trustworthy[i] < trustworthy[j]
	})

	return entries, trustworthy
}

// ConsensusView returns the resolved consensus as a deterministic slice
// sorted ascending by index. Suitable for rendering and for value-equality
// comparison against a previously broadcast view.
func (s *Store) ConsensusView() []IndexedReport {
	entries, _ := s.Consensus()

	resp := make([]IndexedReport, 0, len(entries))
	for index, entry := range entries {
		resp = append(resp, IndexedReport{
			Index:  index,
			Label:  entry.Label,
			Symbol: entry.Symbol,
		})
	}

	sort.Slice(resp, func(i, j int) bool {
		return resp[i].Index < resp[j].Index
	})

	return resp
}

// IsTrusted returns true if the reporter is in the trust set.
func (s *Store) IsTrusted(id ReporterID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.trusted[id]

	return ok
}

// TrustReporter adds the reporter to the trust set. Idempotent.
func (s *Store) TrustReporter(id ReporterID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trusted[id] = struct{}{}
	trustedGauge.Set(float64(len(s.trusted)))
}

// TrustByHandle adds the reporter with the provided display handle to the
// trust set and returns their metadata. Handles are compared case-insensitively;
// when multiple reporters share a handle the one with the lowest ID wins.
func (s *Store) TrustByHandle(handle string) (Reporter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range sortedReporterIDs(s.info) {
		r := s.info[id]
		if strings.EqualFold(r.Handle(), handle) {
			s.trusted[id] = struct{}{}
			trustedGauge.Set(float64(len(s.trusted)))

			return r, nil
		}
	}

	return Reporter{}, errors.Wrap(ErrUnknownReporter, "trust by handle", z.Str("handle", handle))
}

// ListTrusted returns the metadata of all trusted reporters sorted by ID.
// Trusted reporters without registered metadata are returned with only the ID set.
func (s *Store) ListTrusted() []Reporter {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]ReporterID, 0, len(s.trusted))
	for id := range s.trusted {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool {
		return ids[i] < ids[j]
	})

	resp := make([]Reporter, 0, len(ids))
	for _, id := range ids {
		r, ok := s.info[id]
		if !ok {
			r = Reporter{ID: id}
		}
		resp = append(resp, r)
	}

	return resp
}

// ReporterByID returns the metadata of the reporter if known.
func (s *Store) ReporterByID(id ReporterID) (Reporter, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.info[id]

	return r, ok
}

// SetTemplate sets the passcode pattern template.
func (s *Store) SetTemplate(pattern string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pattern = pattern
}

// SetImageSource sets the background image source URL.
func (s *Store) SetImageSource(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.imageURL = url
}

// Template returns the passcode pattern template and the image source URL.
func (s *Store) Template() (pattern string, imageURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pattern, s.imageURL
}

// PortalCount returns the configured grid size.
func (s *Store) PortalCount() int {
	return s.portalCount
}
