// Copyright © 2024-2026 IngressFS Labs. Licensed under the terms of the MIT License.

package passcode_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/ingressfs/passbot/passcode"
)

func TestSnapshotRoundTrip(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := passcode.NewStoreForT(t, clock, 11, passcode.DefaultThresholds())

	s.SetTemplate("#@$")
	s.SetImageSource("https://example.com/grid.png")
	s.RegisterReporter(passcode.Reporter{ID: "100", ChatID: 100, Username: "alice"})
	s.RegisterReporter(passcode.Reporter{ID: "200", ChatID: 200, FirstName: "Bob"})
	s.TrustReporter("100")

	require.NoError(t, s.SubmitReport("100", 1, "anchor", "7"))
	clock.Advance(1)
	require.NoError(t, s.SubmitReport("100", 1, "anchor", "8"))
	require.NoError(t, s.SubmitReport("200", 5, "decoy", "x"))

	path := filepath.Join(t.TempDir(), "state.json")
	gateway := passcode.NewGateway(path)
	require.NoError(t, gateway.Save(s.Snapshot()))

	snap, err := gateway.Load(context.Background())
	require.NoError(t, err)

	restored := passcode.NewStoreForT(t, clock, 11, passcode.DefaultThresholds())
	restored.Restore(snap)

	pattern, imageURL := restored.Template()
	require.Equal(t, "#@$", pattern)
	require.Equal(t, "https://example.com/grid.png", imageURL)
	require.True(t, restored.IsTrusted("100"))
	require.False(t, restored.IsTrusted("200"))
	require.Equal(t, s.LatestReportsOf("100"), restored.LatestReportsOf("100"))
	require.Equal(t, s.LatestReportsOf("200"), restored.LatestReportsOf("200"))
	require.Equal(t, s.ConsensusView(), restored.ConsensusView())

	r, ok := restored.ReporterByID("200")
	require.True(t, ok)
	require.Equal(t, passcode.Reporter{ID: "200", ChatID: 200, FirstName: "Bob"}, r)
}

func TestSnapshotWireFormat(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := passcode.NewStoreForT(t, clock, 11, passcode.DefaultThresholds())

	s.SetTemplate("patt")
	require.NoError(t, s.SubmitReport("100", 2, "anchor", "7"))
	s.TrustReporter("100")

	b, err := json.Marshal(s.Snapshot())
	require.NoError(t, err)

	var wire map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(b, &wire))
	require.Contains(t, wire, "passcode_url")
	require.Contains(t, wire, "passcode_patt")
	require.Contains(t, wire, "user_reports")
	require.Contains(t, wire, "user_trusted")
	require.Contains(t, wire, "user_info")

	var reports map[string]map[string][]map[string]any
	require.NoError(t, json.Unmarshal(wire["user_reports"], &reports))
	require.Len(t, reports["100"]["2"], 1)
	require.Equal(t, "anchor", reports["100"]["2"][0]["name"])
	require.Equal(t, "7", reports["100"]["2"][0]["media"])
	require.Contains(t, reports["100"]["2"][0], "time")
}

func TestGatewayLoadInitialisesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	gateway := passcode.NewGateway(path)

	snap, err := gateway.Load(context.Background())
	require.NoError(t, err)
	require.Empty(t, snap.UserReports)
	require.Empty(t, snap.UserTrusted)

	// The file now exists on disk with the empty default.
	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestGatewayLoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := passcode.NewGateway(path).Load(context.Background())
	require.ErrorContains(t, err, "unmarshal snapshot")
}
