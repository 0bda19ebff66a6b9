// Copyright © 2024-2026 IngressFS Labs. Licensed under the terms of the MIT License.

// Package telegram implements the passcode.Messenger contract against the
// Telegram bot HTTP API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/ingressfs/passbot/app/errors"
	"github.com/ingressfs/passbot/app/version"
	"github.com/ingressfs/passbot/app/z"
	"github.com/ingressfs/passbot/passcode"
)

const (
	defaultBotURL      = "https://api.telegram.org/bot"
	defaultPollTimeout = time.Second * 25
	defaultHTTPTimeout = time.Second * 30
)

var defaultUserAgent = "passbot/" + version.Version

// APIError is a provider-reported failure; it surfaces ok=false responses as
// a typed error so callers can distinguish a no-op from a failure.
type APIError struct {
	Code        int
	Description string
}

func (e APIError) Error() string {
	return fmt.Sprintf("telegram api error %d: %s", e.Code, e.Description)
}

// Option configures the client.
type Option func(*Client)

// WithBotURL overrides the bot API base URL.
func WithBotURL(url string) Option {
	return func(c *Client) {
		c.botURL = url
	}
}

// WithUserAgent overrides the user-agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithPollTimeout overrides the long-poll timeout of GetUpdates.
func WithPollTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.pollTimeout = d
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpCl *http.Client) Option {
	return func(c *Client) {
		c.httpCl = httpCl
	}
}

// Client is a Telegram bot API client.
type Client struct {
	token       string
	botURL      string
	userAgent   string
	pollTimeout time.Duration
	httpCl      *http.Client
}

// New returns a new Telegram client for the provided bot token.
func New(token string, opts ...Option) *Client {
	c := &Client{
		token:       token,
		botURL:      defaultBotURL,
		userAgent:   defaultUserAgent,
		pollTimeout: defaultPollTimeout,
		httpCl:      &http.Client{Timeout: defaultHTTPTimeout + defaultPollTimeout},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// wire types, a subset of the bot API objects.

type apiUser struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
}

type apiChat struct {
	ID int64 `json:"id"`
}

type apiMessage struct {
	MessageID int64      `json:"message_id"`
	Chat      apiChat    `json:"chat"`
	From      *apiUser   `json:"from"`
	Text      string     `json:"text"`
	Photo     []apiPhoto `json:"photo"`
}

type apiPhoto struct {
	FileID string `json:"file_id"`
}

type apiUpdate struct {
	UpdateID int64       `json:"update_id"`
	Message  *apiMessage `json:"message"`
}

// GetMe returns the bot's own user info.
func (c *Client) GetMe(ctx context.Context) (passcode.User, error) {
	var resp apiUser
	if err := c.query(ctx, "getMe", nil, &resp); err != nil {
		return passcode.User{}, err
	}

	return passcode.User{
		ID:        resp.ID,
		Username:  resp.Username,
		FirstName: resp.FirstName,
	}, nil
}

// GetUpdates long-polls for message updates at or after offset.
// It returns an empty slice on poll timeout; the bounded long-poll timeout
// ensures it never blocks indefinitely.
func (c *Client) GetUpdates(ctx context.Context, offset int64) ([]passcode.Update, error) {
	req := map[string]any{
		"offset":          offset,
		"timeout":         int(c.pollTimeout.Seconds()),
		"allowed_updates": []string{"message"},
	}

	var resp []apiUpdate
	if err := c.query(ctx, "getUpdates", req, &resp); err != nil {
		return nil, err
	}

	updates := make([]passcode.Update, 0, len(resp))
	for _, u := range resp {
		update := passcode.Update{ID: u.UpdateID}
		if m := u.Message; m != nil && m.From != nil {
			update.Message = &passcode.Message{
				ID:   m.MessageID,
				Chat: passcode.Chat{ID: m.Chat.ID},
				From: passcode.User{
					ID:        m.From.ID,
					Username:  m.From.Username,
					FirstName: m.From.FirstName,
				},
				Text: m.Text,
			}
		}
		updates = append(updates, update)
	}

	return updates, nil
}

// SendMessage sends text to the chat, as a reply if replyTo > 0.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, replyTo int64) error {
	req := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	if replyTo > 0 {
		req["reply_parameters"] = map[string]any{"message_id": replyTo}
	}

	return c.query(ctx, "sendMessage", req, nil)
}

// SendPhoto sends a photo to the chat and returns the platform-assigned file
// reference of the largest rendition, which may be reused to send the same
// photo again without re-uploading the bytes.
func (c *Client) SendPhoto(ctx context.Context, chatID int64, photo passcode.Photo) (string, error) {
	var (
		msg apiMessage
		err error
	)
	if photo.FileID != "" {
		req := map[string]any{
			"chat_id": chatID,
			"photo":   photo.FileID,
			"caption": photo.Caption,
		}
		err = c.query(ctx, "sendPhoto", req, &msg)
	} else {
		err = c.upload(ctx, "sendPhoto", chatID, photo, &msg)
	}
	if err != nil {
		return "", err
	}

	if len(msg.Photo) == 0 {
		return "", errors.New("send photo response without file reference")
	}

	return msg.Photo[len(msg.Photo)-1].FileID, nil
}

// query POSTs the request object as JSON to the bot API method and unmarshals
// the result into resp if non-nil.
func (c *Client) query(ctx context.Context, method string, req any, resp any) error {
	var body io.Reader
	if req != nil {
		b, err := json.Marshal(req)
		if err != nil {
			return errors.Wrap(err, "marshal request", z.Str("method", method))
		}
		body = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), body)
	if err != nil {
		return errors.Wrap(err, "new request", z.Str("method", method))
	}

	httpReq.Header.Set("User-Agent", c.userAgent)
	if req != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	return c.do(httpReq, method, resp)
}

// upload POSTs a multipart photo upload to the bot API method.
func (c *Client) upload(ctx context.Context, method string, chatID int64, photo passcode.Photo, resp any) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("chat_id", strconv.FormatInt(chatID, 10)); err != nil {
		return errors.Wrap(err, "write field")
	}
	if photo.Caption != "" {
		if err := w.WriteField("caption", photo.Caption); err != nil {
			return errors.Wrap(err, "write field")
		}
	}

	fw, err := w.CreateFormFile("photo", "passcode.png")
	if err != nil {
		return errors.Wrap(err, "create form file")
	}
	if _, err := fw.Write(photo.Bytes); err != nil {
		return errors.Wrap(err, "write photo")
	}
	if err := w.Close(); err != nil {
		return errors.Wrap(err, "close multipart writer")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), &buf)
	if err != nil {
		return errors.Wrap(err, "new request", z.Str("method", method))
	}

	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set("Content-Type", w.FormDataContentType())

	return c.do(httpReq, method, resp)
}

// do executes the request and decodes the bot API response envelope.
func (c *Client) do(httpReq *http.Request, method string, resp any) error {
	httpResp, err := c.httpCl.Do(httpReq)
	if err != nil {
		return errors.Wrap(err, "do request", z.Str("method", method))
	}
	defer httpResp.Body.Close()

	var envelope struct {
		OK          bool            `json:"ok"`
		Result      json.RawMessage `json:"result"`
		ErrorCode   int             `json:"error_code"`
		Description string          `json:"description"`
	}
	if err := json.NewDecoder(httpResp.Body).Decode(&envelope); err != nil {
		return errors.Wrap(err, "decode response", z.Str("method", method))
	}

	if !envelope.OK {
		return errors.Wrap(APIError{
			Code:        envelope.ErrorCode,
			Description: envelope.Description,
		}, "query", z.Str("method", method))
	}

	if resp != nil {
		if err := json.Unmarshal(envelope.Result, resp); err != nil {
			return errors.Wrap(err, "unmarshal result", z.Str("method", method))
		}
	}

	return nil
}

func (c *Client) methodURL(method string) string {
	return c.botURL + c.token + "/" + method
}
