// Copyright © 2024-2026 IngressFS Labs. Licensed under the terms of the MIT License.

package passcode_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ingressfs/passbot/app/errors"
	"github.com/ingressfs/passbot/passcode"
)

// testMessenger records sent messages and photos, optionally failing
// configured chat IDs.
type testMessenger struct {
	mu       sync.Mutex
	messages map[int64][]string
	photos   map[int64][]passcode.Photo
	failing  map[int64]bool
	updates  []passcode.Update
	err      error
}

func newTestMessenger() *testMessenger {
	return &testMessenger{
		messages: make(map[int64][]string),
		photos:   make(map[int64][]passcode.Photo),
		failing:  make(map[int64]bool),
	}
}

func (m *testMessenger) GetUpdates(_ context.Context, _ int64) ([]passcode.Update, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}

	resp := m.updates
	m.updates = nil

	return resp, nil
}

func (m *testMessenger) SendMessage(_ context.Context, chatID int64, text string, _ int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failing[chatID] {
		return errors.New("send failed")
	}

	m.messages[chatID] = append(m.messages[chatID], text)

	return nil
}

func (m *testMessenger) SendPhoto(_ context.Context, chatID int64, photo passcode.Photo) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failing[chatID] {
		return "", errors.New("send failed")
	}

	m.photos[chatID] = append(m.photos[chatID], photo)

	return "file-1", nil
}

func (m *testMessenger) sentTo(chatID int64) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]string(nil), m.messages[chatID]...)
}

func (m *testMessenger) photosTo(chatID int64) []passcode.Photo {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]passcode.Photo(nil), m.photos[chatID]...)
}

// testRenderer returns fixed image bytes or an error.
type testRenderer struct {
	image []byte
	err   error
}

func (r testRenderer) Render(context.Context, string, []passcode.IndexedReport) ([]byte, error) {
	return r.image, r.err
}

// seedConsensus submits enough agreeing reports for portal 1 to resolve.
func seedConsensus(t *testing.T, s *passcode.Store, symbol string) {
	t.Helper()

	for _, id := range []passcode.ReporterID{"u1", "u2", "u3"} {
		require.NoError(t, s.SubmitReport(id, 1, "anchor", symbol))
	}
}

func TestBroadcastDedupe(t *testing.T) {
	s := newTestStore(t)
	msgr := newTestMessenger()
	b := passcode.NewBroadcaster(s, msgr, testRenderer{}, "admin")

	s.RegisterReporter(passcode.Reporter{ID: "admin", ChatID: 99})
	s.SetTemplate("##")
	seedConsensus(t, s, "7")

	ctx := context.Background()
	b.MaybeBroadcast(ctx)
	require.Equal(t, []string{"7#"}, msgr.sentTo(99))

	// Unchanged consensus: a second pass sends nothing.
	b.MaybeBroadcast(ctx)
	require.Equal(t, []string{"7#"}, msgr.sentTo(99))

	// Changed consensus broadcasts again.
	for _, id := range []passcode.ReporterID{"u1", "u2", "u3"} {
		require.NoError(t, s.SubmitReport(id, 2, "", "8"))
	}
	b.MaybeBroadcast(ctx)
	require.Equal(t, []string{"7#", "78"}, msgr.sentTo(99))
}

func TestForceBroadcastBypassesDedupe(t *testing.T) {
	s := newTestStore(t)
	msgr := newTestMessenger()
	b := passcode.NewBroadcaster(s, msgr, testRenderer{}, "admin")

	s.RegisterReporter(passcode.Reporter{ID: "admin", ChatID: 99})
	s.SetTemplate("#")
	seedConsensus(t, s, "7")

	ctx := context.Background()
	b.MaybeBroadcast(ctx)
	require.NoError(t, b.ForceBroadcast(ctx))
	require.Equal(t, []string{"7", "7"}, msgr.sentTo(99))
}

func TestBroadcastSkipsEmptyConsensus(t *testing.T) {
	s := newTestStore(t)
	msgr := newTestMessenger()
	b := passcode.NewBroadcaster(s, msgr, testRenderer{}, "admin")

	s.RegisterReporter(passcode.Reporter{ID: "admin", ChatID: 99})

	b.MaybeBroadcast(context.Background())
	require.Empty(t, msgr.sentTo(99))
}

func TestBroadcastSkipsUnknownAdmin(t *testing.T) {
	s := newTestStore(t)
	msgr := newTestMessenger()
	b := passcode.NewBroadcaster(s, msgr, testRenderer{}, "admin")

	seedConsensus(t, s, "7")

	b.MaybeBroadcast(context.Background())
	require.Empty(t, msgr.sentTo(99))
}

func TestBroadcastFanout(t *testing.T) {
	s := newTestStore(t)
	msgr := newTestMessenger()
	b := passcode.NewBroadcaster(s, msgr, testRenderer{image: []byte("png")}, "admin")

	s.RegisterReporter(passcode.Reporter{ID: "admin", ChatID: 99})
	s.RegisterReporter(passcode.Reporter{ID: "u1", ChatID: 1})
	s.RegisterReporter(passcode.Reporter{ID: "u2", ChatID: 2})
	s.RegisterReporter(passcode.Reporter{ID: "u3", ChatID: 3})
	s.TrustReporter("admin")
	s.TrustReporter("u1")
	s.TrustReporter("u2")
	s.TrustReporter("u3")
	s.SetTemplate("#")
	s.SetImageSource("https://example.com/grid.png")
	seedConsensus(t, s, "7")

	// u2 fails; the rest still receive the text and the re-used upload.
	msgr.failing[2] = true

	b.MaybeBroadcast(context.Background())

	require.Equal(t, []string{"7"}, msgr.sentTo(99))
	require.Equal(t, []string{"7"}, msgr.sentTo(1))
	require.Empty(t, msgr.sentTo(2))
	require.Equal(t, []string{"7"}, msgr.sentTo(3))

	// The admin receives the rendered bytes; others the uploaded file ID.
	adminPhotos := msgr.photosTo(99)
	require.Len(t, adminPhotos, 1)
	require.Equal(t, []byte("png"), adminPhotos[0].Bytes)

	u1Photos := msgr.photosTo(1)
	require.Len(t, u1Photos, 1)
	require.Equal(t, "file-1", u1Photos[0].FileID)
	require.Empty(t, u1Photos[0].Bytes)
}

func TestBroadcastRenderFailureTextOnly(t *testing.T) {
	s := newTestStore(t)
	msgr := newTestMessenger()
	b := passcode.NewBroadcaster(s, msgr, testRenderer{err: errors.New("fetch failed")}, "admin")

	s.RegisterReporter(passcode.Reporter{ID: "admin", ChatID: 99})
	s.SetTemplate("#")
	s.SetImageSource("https://example.com/grid.png")
	seedConsensus(t, s, "7")

	b.MaybeBroadcast(context.Background())

	require.Equal(t, []string{"7"}, msgr.sentTo(99))
	require.Empty(t, msgr.photosTo(99))
}

func TestBroadcastAdminFailureRetried(t *testing.T) {
	s := newTestStore(t)
	msgr := newTestMessenger()
	b := passcode.NewBroadcaster(s, msgr, testRenderer{}, "admin")

	s.RegisterReporter(passcode.Reporter{ID: "admin", ChatID: 99})
	s.SetTemplate("#")
	seedConsensus(t, s, "7")

	ctx := context.Background()

	msgr.failing[99] = true
	require.Error(t, b.ForceBroadcast(ctx))

	// The failed view was not recorded, so the next pass is not deduped.
	msgr.failing[99] = false
	b.MaybeBroadcast(ctx)
	require.Equal(t, []string{"7"}, msgr.sentTo(99))
}
