// Package api provides the HTTP client for the Halo companion server.
//
// The server exposes five endpoints consumed by this client:
//
//   - GET  /response/{uid}?is_first={bool} — one-shot opening turn fetch.
//   - GET  /response/stream/{uid}          — long-lived line-delimited JSON
//     response stream.
//   - GET  /interrupt/{uid}                — fire-and-forget interrupt
//     notification; the response body is ignored.
//   - POST /heartbeat                      — multipart upload of one captured
//     frame plus session metadata.
//   - GET  /get_token                      — time-boxed credential for the
//     cloud speech recognizer.
//
// The active server base URL is resolved through a callback on every request,
// so a runtime server switch takes effect on the next call without
// reconstructing the client.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

const (
	defaultTimeout = 10 * time.Second

	// statusOK is the in-band success code used by the companion server.
	statusOK = 1
)

// Option is a functional option for configuring the Client.
type Option func(*Client)

// WithTimeout sets the timeout for one-shot requests (opening fetch,
// interrupt, heartbeat, token). The stream connection is never subject to
// this timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithHTTPClient replaces the underlying client for one-shot requests.
// Useful in tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// Client is the companion-server HTTP client. All methods are safe for
// concurrent use.
type Client struct {
	// baseURL resolves the active server base URL at call time.
	baseURL func() string

	// http serves one-shot requests with a bounded timeout.
	http *http.Client

	// stream serves the response stream: no timeout, the connection lives
	// until the server closes it or the context is cancelled.
	stream *http.Client
}

// NewClient creates a Client. baseURL must return the active server base URL
// (e.g., "https://companion.example.com") and must not return an empty
// string once the session is running.
func NewClient(baseURL func() string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultTimeout},
		stream:  &http.Client{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ---- opening turn ----

// Opening is the decoded body of the one-shot opening turn fetch.
type Opening struct {
	// Text is the opening message content.
	Text string

	// VoiceURL locates the synthesized opening audio. May be empty.
	VoiceURL string
}

// openingEnvelope mirrors the /response/{uid} wire shape.
type openingEnvelope struct {
	Status   int `json:"status"`
	Response struct {
		Message struct {
			Text  string `json:"text"`
			Voice string `json:"voice"`
		} `json:"message"`
	} `json:"response"`
}

// ErrNotReady is returned by [Client.FetchOpening] when the server reports a
// non-success status, meaning no opening turn is available yet.
var ErrNotReady = errors.New("api: server has no response ready")

// FetchOpening performs the one-shot GET /response/{uid}?is_first={bool}
// that retrieves the opening turn of a session.
func (c *Client) FetchOpening(ctx context.Context, uid string, isFirst bool) (*Opening, error) {
	u := fmt.Sprintf("%s/response/%s?is_first=%t", c.baseURL(), url.PathEscape(uid), isFirst)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("api: opening request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api: opening fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("api: opening fetch: unexpected HTTP status %d", resp.StatusCode)
	}

	var env openingEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("api: opening decode: %w", err)
	}
	if env.Status != statusOK {
		return nil, ErrNotReady
	}
	return &Opening{
		Text:     env.Response.Message.Text,
		VoiceURL: env.Response.Message.Voice,
	}, nil
}

// ---- response stream ----

// OpenStream connects to GET /response/stream/{uid} and returns the raw body
// for line-by-line consumption. The connection has no read timeout; it stays
// open until the server closes it or ctx is cancelled. The caller owns the
// returned body and must close it.
func (c *Client) OpenStream(ctx context.Context, uid string) (io.ReadCloser, error) {
	u := fmt.Sprintf("%s/response/stream/%s", c.baseURL(), url.PathEscape(uid))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("api: stream request: %w", err)
	}
	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api: stream connect: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("api: stream connect: unexpected HTTP status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// ---- interrupt ----

// Interrupt notifies the server that the user interrupted the in-progress
// reply. The response body is ignored; only transport errors are reported.
func (c *Client) Interrupt(ctx context.Context, uid string) error {
	u := fmt.Sprintf("%s/interrupt/%s", c.baseURL(), url.PathEscape(uid))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("api: interrupt request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("api: interrupt: %w", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return nil
}

// ---- heartbeat ----

// Gaze is the synthetic gaze placeholder carried in heartbeat metadata.
// The wearable has no eye tracker; the server expects the field regardless.
type Gaze struct {
	Timestamp  int64   `json:"timestamp"`
	Confidence float64 `json:"confidence"`
	NormPosX   float64 `json:"norm_pos_x"`
	NormPosY   float64 `json:"norm_pos_y"`
	Diameter   float64 `json:"diameter"`
}

// heartbeatData is the JSON payload of the multipart "data" field.
type heartbeatData struct {
	UID       string `json:"uid"`
	Gazes     []Gaze `json:"gazes"`
	Timestamp int64  `json:"timestamp"`
}

// Heartbeat uploads one staged frame to POST /heartbeat as a multipart form.
// voicePath and scenePath are paths to staging files; either may be empty,
// in which case that part is omitted. The staging files are NOT removed here
// — cleanup is the uploader's responsibility so it happens on failure too.
func (c *Client) Heartbeat(ctx context.Context, uid string, voicePath, scenePath string) error {
	now := time.Now().UnixMilli()
	data := heartbeatData{
		UID: uid,
		Gazes: []Gaze{{
			Timestamp: now,
			NormPosX:  0.5,
			NormPosY:  0.5,
		}},
		Timestamp: now,
	}
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("api: heartbeat data: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("data", string(dataJSON)); err != nil {
		return fmt.Errorf("api: heartbeat form: %w", err)
	}
	if voicePath != "" {
		if err := attachFile(mw, "voice_file", voicePath); err != nil {
			return fmt.Errorf("api: heartbeat voice part: %w", err)
		}
	}
	if scenePath != "" {
		if err := attachFile(mw, "scene_file", scenePath); err != nil {
			return fmt.Errorf("api: heartbeat scene part: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("api: heartbeat form: %w", err)
	}

	u := c.baseURL() + "/heartbeat"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, &body)
	if err != nil {
		return fmt.Errorf("api: heartbeat request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("api: heartbeat: %w", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("api: heartbeat: unexpected HTTP status %d", resp.StatusCode)
	}
	return nil
}

// attachFile streams the file at path into a multipart part named field.
func attachFile(mw *multipart.Writer, field, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	part, err := mw.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return err
	}
	_, err = io.Copy(part, f)
	return err
}

// ---- ASR token ----

// Token is a time-boxed credential for the cloud speech recognizer.
type Token struct {
	// Value is the opaque credential string.
	Value string

	// ExpiresAt is when the credential stops working.
	ExpiresAt time.Time
}

// tokenEnvelope mirrors the /get_token wire shape. expire_time is a Unix
// timestamp in seconds.
type tokenEnvelope struct {
	Status     int    `json:"status"`
	Token      string `json:"token"`
	ExpireTime int64  `json:"expire_time"`
}

// ErrTokenUnavailable is returned by [Client.FetchToken] when the server
// reports a non-success status.
var ErrTokenUnavailable = errors.New("api: recognizer token unavailable")

// FetchToken retrieves a fresh recognizer credential from GET /get_token.
func (c *Client) FetchToken(ctx context.Context) (Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL()+"/get_token", nil)
	if err != nil {
		return Token{}, fmt.Errorf("api: token request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return Token{}, fmt.Errorf("api: token fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Token{}, fmt.Errorf("api: token fetch: unexpected HTTP status %d", resp.StatusCode)
	}

	var env tokenEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return Token{}, fmt.Errorf("api: token decode: %w", err)
	}
	if env.Status != statusOK || env.Token == "" {
		return Token{}, ErrTokenUnavailable
	}
	return Token{
		Value:     env.Token,
		ExpiresAt: time.Unix(env.ExpireTime, 0),
	}, nil
}
