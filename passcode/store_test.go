// Copyright © 2024-2026 IngressFS Labs. Licensed under the terms of the MIT License.

package passcode_test

import (
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/ingressfs/passbot/app/errors"
	"github.com/ingressfs/passbot/passcode"
)

func newTestStore(t *testing.T) *passcode.Store {
	t.Helper()

	return passcode.NewStoreForT(t, clockwork.NewFakeClock(), 11, passcode.DefaultThresholds())
}

func TestSubmitReportRange(t *testing.T) {
	s := newTestStore(t)

	require.Error(t, s.SubmitReport("u1", 0, "", "A"))
	require.Error(t, s.SubmitReport("u1", 12, "", "A"))
	require.NoError(t, s.SubmitReport("u1", 1, "", "A"))
	require.NoError(t, s.SubmitReport("u1", 11, "", "A"))
}

func TestLastReportWins(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SubmitReport("u1", 3, "north", "A"))
	require.NoError(t, s.SubmitReport("u1", 3, "south", "B"))

	reports := s.LatestReportsOf("u1")
	require.Equal(t, []passcode.IndexedReport{{Index: 3, Label: "south", Symbol: "B"}}, reports)
}

func TestIdempotentReReport(t *testing.T) {
	s := newTestStore(t)

	for _, id := range []passcode.ReporterID{"u1", "u2", "u3"} {
		require.NoError(t, s.SubmitReport(id, 1, "anchor", "X"))
	}

	before := s.ConsensusView()
	require.Equal(t, []passcode.IndexedReport{{Index: 1, Label: "anchor", Symbol: "X"}}, before)

	// Resubmitting an identical report changes nothing.
	require.NoError(t, s.SubmitReport("u1", 1, "anchor", "X"))
	require.Equal(t, before, s.ConsensusView())
}

func TestTrustPromotion(t *testing.T) {
	s := newTestStore(t)

	// Five reporters agree on four indexes; correct-count 4 exceeds the
	// exclusive threshold of 3 and everyone is promoted.
	for index := 1; index <= 4; index++ {
		for _, id := range []passcode.ReporterID{"u1", "u2", "u3", "u4", "u5"} {
			require.False(t, s.IsTrusted(id))
			require.NoError(t, s.SubmitReport(id, index, "", "X"))
		}
	}

	for _, id := range []passcode.ReporterID{"u1", "u2", "u3", "u4", "u5"} {
		require.True(t, s.IsTrusted(id))
	}
}

func TestTrustPromotionExclusiveBound(t *testing.T) {
	s := newTestStore(t)

	// Exactly three correct indexes does not promote.
	for index := 1; index <= 3; index++ {
		for _, id := range []passcode.ReporterID{"u1", "u2", "u3"} {
			require.NoError(t, s.SubmitReport(id, index, "", "X"))
		}
	}

	require.False(t, s.IsTrusted("u1"))
}

func TestTrustMonotone(t *testing.T) {
	s := newTestStore(t)

	for index := 1; index <= 4; index++ {
		for _, id := range []passcode.ReporterID{"u1", "u2", "u3"} {
			require.NoError(t, s.SubmitReport(id, index, "", "X"))
		}
	}
	require.True(t, s.IsTrusted("u1"))

	// u1 flips to a minority value at every index, dropping their
	// correct-count to zero. Trust is never revoked.
	for index := 1; index <= 4; index++ {
		require.NoError(t, s.SubmitReport("u1", index, "", "Z"))
	}
	require.True(t, s.IsTrusted("u1"))
}

func TestTrustByHandle(t *testing.T) {
	s := newTestStore(t)

	s.RegisterReporter(passcode.Reporter{ID: "100", Username: "alice"})
	s.RegisterReporter(passcode.Reporter{ID: "200", FirstName: "Bob"})

	r, err := s.TrustByHandle("ALICE")
	require.NoError(t, err)
	require.Equal(t, passcode.ReporterID("100"), r.ID)
	require.True(t, s.IsTrusted("100"))

	r, err = s.TrustByHandle("bob")
	require.NoError(t, err)
	require.Equal(t, passcode.ReporterID("200"), r.ID)

	_, err = s.TrustByHandle("nobody")
	require.ErrorIs(t, err, passcode.ErrUnknownReporter)
	require.True(t, errors.Is(err, passcode.ErrUnknownReporter))
}

func TestListTrusted(t *testing.T) {
	s := newTestStore(t)

	s.RegisterReporter(passcode.Reporter{ID: "200", Username: "bob"})
	s.TrustReporter("200")
	s.TrustReporter("050") // No metadata registered.

	trusted := s.ListTrusted()
	require.Equal(t, []passcode.Reporter{
		{ID: "050"},
		{ID: "200", Username: "bob"},
	}, trusted)
}

func TestEndToEndConsensus(t *testing.T) {
	s := newTestStore(t)

	// Five reporters report portal 1. Three agree on "7", two disagree.
	require.NoError(t, s.SubmitReport("u1", 1, "anchor", "7"))
	require.NoError(t, s.SubmitReport("u2", 1, "anchor", "7"))
	require.NoError(t, s.SubmitReport("u3", 1, "anchor", "7"))
	require.NoError(t, s.SubmitReport("u4", 1, "decoy", "8"))
	require.NoError(t, s.SubmitReport("u5", 1, "decoy", "9"))

	view := s.ConsensusView()
	require.Equal(t, []passcode.IndexedReport{{Index: 1, Label: "anchor", Symbol: "7"}}, view)

	// u4 corrects themselves; the majority strengthens to 4 of 5.
	require.NoError(t, s.SubmitReport("u4", 1, "anchor", "7"))
	require.Equal(t, view, s.ConsensusView())

	// Portal 2 only gets two votes, below the absolute minimum.
	require.NoError(t, s.SubmitReport("u1", 2, "", "5"))
	require.NoError(t, s.SubmitReport("u2", 2, "", "5"))
	require.Equal(t, view, s.ConsensusView())
}

func TestTemplate(t *testing.T) {
	s := newTestStore(t)

	pattern, imageURL := s.Template()
	require.Empty(t, pattern)
	require.Empty(t, imageURL)

	s.SetTemplate("pass#@$")
	s.SetImageSource("https://example.com/grid.png")

	pattern, imageURL = s.Template()
	require.Equal(t, "pass#@$", pattern)
	require.Equal(t, "https://example.com/grid.png", imageURL)
}
