// Package nls implements [asr.Recognizer] against an NLS-compatible cloud
// speech service over its streaming WebSocket protocol, authenticated with
// the time-boxed token issued by the companion server.
package nls

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/coder/websocket"

	"github.com/voxhalo/halo/internal/asr"
)

const (
	defaultSampleRate = 16000
	defaultFormat     = "pcm"
)

// Event names used by the NLS streaming protocol.
const (
	eventResultChanged = "TranscriptionResultChanged"
	eventSentenceEnd   = "SentenceEnd"
)

// TokenSource supplies a valid recognizer credential per session. Implemented
// by [asr.TokenManager].
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Option configures a [Recognizer].
type Option func(*Recognizer)

// WithSampleRate sets the PCM sample rate in Hz. Default: 16000.
func WithSampleRate(rate int) Option {
	return func(r *Recognizer) {
		r.sampleRate = rate
	}
}

// WithFormat sets the audio container format. Default: "pcm".
func WithFormat(format string) Option {
	return func(r *Recognizer) {
		r.format = format
	}
}

// Recognizer implements [asr.Recognizer] backed by an NLS streaming service.
type Recognizer struct {
	endpoint   string
	tokens     TokenSource
	sampleRate int
	format     string
}

// New creates a Recognizer for the given WebSocket endpoint. endpoint and
// tokens must be non-empty.
func New(endpoint string, tokens TokenSource, opts ...Option) (*Recognizer, error) {
	if endpoint == "" {
		return nil, errors.New("nls: endpoint must not be empty")
	}
	if tokens == nil {
		return nil, errors.New("nls: token source must not be nil")
	}
	r := &Recognizer{
		endpoint:   endpoint,
		tokens:     tokens,
		sampleRate: defaultSampleRate,
		format:     defaultFormat,
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// StartSession dials the service and opens one streaming recognition
// session. The caller owns the returned session and must Close it.
func (r *Recognizer) StartSession(ctx context.Context) (asr.Session, error) {
	tok, err := r.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("nls: obtain token: %w", err)
	}

	wsURL, err := r.buildURL()
	if err != nil {
		return nil, fmt.Errorf("nls: build URL: %w", err)
	}

	headers := http.Header{}
	headers.Set("X-NLS-Token", tok)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: headers,
	})
	if err != nil {
		return nil, fmt.Errorf("nls: dial: %w", err)
	}

	sess := &session{
		conn:     conn,
		partials: make(chan asr.Transcript, 64),
		finals:   make(chan asr.Transcript, 64),
		audio:    make(chan []byte, 256),
		done:     make(chan struct{}),
	}
	sess.wg.Add(2)
	go sess.readLoop(ctx)
	go sess.writeLoop(ctx)
	return sess, nil
}

func (r *Recognizer) buildURL() (string, error) {
	u, err := url.Parse(r.endpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("format", r.format)
	q.Set("sample_rate", strconv.Itoa(r.sampleRate))
	q.Set("enable_intermediate_result", "true")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// nlsEvent is the JSON envelope of one server message.
type nlsEvent struct {
	Header struct {
		Name string `json:"name"`
	} `json:"header"`
	Payload struct {
		Result     string  `json:"result"`
		Confidence float64 `json:"confidence"`
	} `json:"payload"`
}

// session is one live recognition stream. It implements [asr.Session].
type session struct {
	conn     *websocket.Conn
	partials chan asr.Transcript
	finals   chan asr.Transcript
	audio    chan []byte

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// SendAudio queues a PCM chunk for delivery.
func (s *session) SendAudio(chunk []byte) error {
	select {
	case <-s.done:
		return errors.New("nls: session is closed")
	default:
	}
	select {
	case s.audio <- chunk:
		return nil
	case <-s.done:
		return errors.New("nls: session is closed")
	}
}

func (s *session) Partials() <-chan asr.Transcript { return s.partials }

func (s *session) Finals() <-chan asr.Transcript { return s.finals }

// Close ends the session, asking the service to flush and commit whatever
// audio is still buffered.
func (s *session) Close() error {
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.Write(context.Background(), websocket.MessageText,
			[]byte(`{"header":{"name":"StopTranscription"}}`))
		s.wg.Wait()
		s.conn.Close(websocket.StatusNormalClosure, "session closed")
	})
	return nil
}

func (s *session) writeLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case chunk := <-s.audio:
			if err := s.conn.Write(ctx, websocket.MessageBinary, chunk); err != nil {
				return
			}
		case <-s.done:
			// Flush whatever is still queued.
			for {
				select {
				case chunk := <-s.audio:
					_ = s.conn.Write(ctx, websocket.MessageBinary, chunk)
				default:
					return
				}
			}
		}
	}
}

func (s *session) readLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.partials)
	defer close(s.finals)

	for {
		_, msg, err := s.conn.Read(ctx)
		if err != nil {
			return
		}

		t, final, ok := parseEvent(msg)
		if !ok {
			continue
		}
		if final {
			select {
			case s.finals <- t:
			case <-s.done:
			}
			continue
		}
		// Partials are advisory; a consumer that only drains finals must
		// not stall the read loop.
		select {
		case s.partials <- t:
		default:
		}
	}
}

// parseEvent maps one server message to a transcript. Events other than
// result updates and sentence ends are ignored.
func parseEvent(data []byte) (t asr.Transcript, final, ok bool) {
	var ev nlsEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return asr.Transcript{}, false, false
	}
	switch ev.Header.Name {
	case eventResultChanged:
		final = false
	case eventSentenceEnd:
		final = true
	default:
		return asr.Transcript{}, false, false
	}
	if ev.Payload.Result == "" {
		return asr.Transcript{}, false, false
	}
	return asr.Transcript{
		Text:       ev.Payload.Result,
		IsFinal:    final,
		Confidence: ev.Payload.Confidence,
	}, final, true
}
