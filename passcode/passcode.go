// Copyright © 2024-2026 IngressFS Labs. Licensed under the terms of the MIT License.

// Package passcode implements the crowd-sourced passcode consensus engine:
// a store of per-reporter observations, the majority resolution algorithm that
// turns them into a trusted answer, the command pipeline around the store, and
// the debounced scheduling of persistence and broadcasts.
package passcode

import (
	"context"
	"time"
)

// ReporterID is the stable opaque identity of a reporter.
type ReporterID string

// Reporter holds reporter metadata as last reported by the platform.
// It is overwritten on every message seen from the reporter.
type Reporter struct {
	ID        ReporterID
	ChatID    int64 // Private chat destination for direct sends.
	Username  string
	FirstName string
}

// Handle returns the reporter's display handle; the username if set, the first name otherwise.
func (r Reporter) Handle() string {
	if r.Username != "" {
		return r.Username
	}

	return r.FirstName
}

// Report is a single timestamped observation of one portal index by one reporter.
// Label is free text (may be empty) and Symbol is the value resolved by consensus.
type Report struct {
	Time   time.Time
	Label  string
	Symbol string
}

// IndexedReport is a report annotated with its portal index.
// Used for per-reporter summaries and the resolved consensus view.
type IndexedReport struct {
	Index  int
	Label  string
	Symbol string
}

// Update is a single inbound event from the messaging platform.
type Update struct {
	ID      int64
	Message *Message
}

// Message is an inbound text message.
type Message struct {
	ID   int64
	Chat Chat
	From User
	Text string
}

// Chat identifies the conversation a message arrived in.
type Chat struct {
	ID int64
}

// User identifies the platform account a message came from.
type User struct {
	ID        int64
	Username  string
	FirstName string
}

// Photo is an outbound image; either raw bytes to upload or a
// platform-assigned file reference from a previous upload.
type Photo struct {
	Bytes   []byte
	FileID  string
	Caption string
}

// Messenger abstracts the bot-platform wire client.
type Messenger interface {
	// GetUpdates long-polls for inbound updates at or after the provided offset.
	// It returns an empty slice on poll timeout and must never block indefinitely.
	GetUpdates(ctx context.Context, offset int64) ([]Update, error)

	// SendMessage sends text to the chat, optionally as a reply (replyTo > 0).
	// Provider-reported errors surface as a typed error, never a silent no-op.
	SendMessage(ctx context.Context, chatID int64, text string, replyTo int64) error

	// SendPhoto sends a photo to the chat and returns the platform-assigned
	// file reference which may be reused to send the same photo again
	// without re-uploading the bytes.
	SendPhoto(ctx context.Context, chatID int64, photo Photo) (fileID string, err error)
}

// ImageRenderer abstracts the image-compositing collaborator that draws
// resolved reports onto the background image fetched from baseURL.
type ImageRenderer interface {
	Render(ctx context.Context, baseURL string, reports []IndexedReport) ([]byte, error)
}
