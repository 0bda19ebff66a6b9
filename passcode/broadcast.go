// Copyright © 2024-2026 IngressFS Labs. Licensed under the terms of the MIT License.

package passcode

import (
	"context"
	"sync"

	"github.com/ingressfs/passbot/app/errors"
	"github.com/ingressfs/passbot/app/forkjoin"
	"github.com/ingressfs/passbot/app/log"
	"github.com/ingressfs/passbot/app/z"
)

// Broadcaster renders the current consensus as the secret passcode string
// and fans it out, with the annotated image, to the admin and all trusted
// reporters. Consecutive identical consensus views broadcast at most once.
type Broadcaster struct {
	store    *Store
	msgr     Messenger
	renderer ImageRenderer
	adminID  ReporterID

	mu       sync.Mutex
	lastView []IndexedReport
}

// NewBroadcaster returns a new broadcaster.
func NewBroadcaster(store *Store, msgr Messenger, renderer ImageRenderer, adminID ReporterID) *Broadcaster {
	return &Broadcaster{
		store:    store,
		msgr:     msgr,
		renderer: renderer,
		adminID:  adminID,
	}
}

// MaybeBroadcast broadcasts the current consensus view unless it equals the
// last successfully broadcast view. Intended as the debounce scheduler's
// broadcast task.
func (b *Broadcaster) MaybeBroadcast(ctx context.Context) {
	if err := b.broadcast(ctx, false); err != nil {
		log.Error(ctx, "Broadcast failed", err)
	}
}

// ForceBroadcast broadcasts the current consensus view regardless of whether
// it changed since the last broadcast. Used by the admin broadcast command.
func (b *Broadcaster) ForceBroadcast(ctx context.Context) error {
	return b.broadcast(ctx, true)
}

func (b *Broadcaster) broadcast(ctx context.Context, force bool) error {
	view := b.store.ConsensusView()
	if len(view) == 0 {
		broadcastSkipCounter.WithLabelValues("empty").Inc()
		log.Debug(ctx, "No consensus to broadcast")

		return nil
	}

	b.mu.Lock()
	unchanged := viewsEqual(b.lastView, view)
	b.mu.Unlock()

	if unchanged && !force {
		broadcastSkipCounter.WithLabelValues("unchanged").Inc()
		log.Debug(ctx, "Consensus unchanged since last broadcast, skipping")

		return nil
	}

	admin, ok := b.store.ReporterByID(b.adminID)
	if !ok || admin.ChatID == 0 {
		broadcastSkipCounter.WithLabelValues("no_admin").Inc()
		log.Warn(ctx, "Cannot broadcast, admin reporter unknown", nil, z.Str("admin", string(b.adminID)))

		return nil
	}

	pattern, imageURL := b.store.Template()
	secret := RenderSecret(pattern, view)

	var imageBytes []byte
	if imageURL != "" {
		var err error
		imageBytes, err = b.renderer.Render(ctx, imageURL, view)
		if err != nil {
			// Send text-only rather than dropping the whole broadcast.
			log.Warn(ctx, "Image render failed, broadcasting text only", err)
			imageBytes = nil
		}
	}

	if err := b.msgr.SendMessage(ctx, admin.ChatID, secret, 0); err != nil {
		return errors.Wrap(err, "send broadcast to admin", z.I64("chat_id", admin.ChatID))
	}

	var fileID string
	if len(imageBytes) > 0 {
		var err error
		fileID, err = b.msgr.SendPhoto(ctx, admin.ChatID, Photo{Bytes: imageBytes, Caption: secret})
		if err != nil {
			log.Warn(ctx, "Send photo to admin failed", err, z.I64("chat_id", admin.ChatID))
			fileID = ""
		}
	}

	b.fanout(ctx, secret, fileID, admin.ID)

	b.mu.Lock()
	b.lastView = view
	b.mu.Unlock()

	broadcastCounter.Inc()
	log.Info(ctx, "Broadcast completed", z.Int("resolved_indexes", len(view)))

	return nil
}

// fanout best-effort sends the secret and the already-uploaded image to every
// trusted reporter except the admin. One failed recipient does not abort the
// fan-out to the rest.
func (b *Broadcaster) fanout(ctx context.Context, secret string, fileID string, adminID ReporterID) {
	var recipients []Reporter
	for _, r := range b.store.ListTrusted() {
		if r.ID == adminID || r.ChatID == 0 {
			continue
		}
		recipients = append(recipients, r)
	}

	if len(recipients) == 0 {
		return
	}

	work := func(ctx context.Context, r Reporter) (any, error) {
		if err := b.msgr.SendMessage(ctx, r.ChatID, secret, 0); err != nil {
			return nil, err
		}

		if fileID != "" {
			if _, err := b.msgr.SendPhoto(ctx, r.ChatID, Photo{FileID: fileID, Caption: secret}); err != nil {
				return nil, err
			}
		}

		return nil, nil
	}

	results, cancel := forkjoin.NewWithInputs(ctx, work, recipients, forkjoin.WithoutFailFast())
	defer cancel()

	for result := range results {
		if result.Err != nil {
			log.Warn(ctx, "Broadcast to trusted reporter failed", result.Err,
				z.Str("reporter", string(result.Input.ID)))
		}
	}
}

func viewsEqual(a, b []IndexedReport) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}
