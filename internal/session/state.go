// Package session holds the mutable state shared by every Halo loop and the
// interrupt coordinator that mutates it when the user speaks the hot-word.
//
// A [State] is the only cross-task shared data in the client besides the
// queues: the stream consumer writes the current response id, the interrupt
// coordinator writes the banned response id, and both the uploader and the
// consumer read the uid and active server URL. Every field is updated with
// single-field atomic semantics — there are no multi-field transactions
// except the snapshot-before-ban rule implemented by [Interruptor].
package session

import (
	"sync"
	"sync/atomic"
)

// NoResponse is the empty response identity. The server's opening and inform
// messages carry no start_time; they leave the current response id untouched.
const NoResponse = ""

// State is the process-wide session record. The zero value is not usable;
// construct with [NewState].
//
// All methods are safe for concurrent use.
type State struct {
	uid       atomic.Value // string
	serverURL atomic.Value // string

	currentResponseID atomic.Value // string
	bannedResponseID  atomic.Value // string

	firstTurn atomic.Bool

	// reconnect carries at most one pending restart request for the stream
	// consumer. Buffered so signalling never blocks the UI-facing setters.
	reconnect chan struct{}

	// banMu serialises the observe-new-id/clear-ban step in
	// SetCurrentResponseID against Ban, so a ban can never be dropped by a
	// concurrent advance to the very id being banned.
	banMu sync.Mutex
}

// NewState creates a State for the given user and server.
// The session starts on its first turn.
func NewState(uid, serverURL string) *State {
	s := &State{
		reconnect: make(chan struct{}, 1),
	}
	s.uid.Store(uid)
	s.serverURL.Store(serverURL)
	s.currentResponseID.Store(NoResponse)
	s.bannedResponseID.Store(NoResponse)
	s.firstTurn.Store(true)
	return s
}

// UID returns the active user id.
func (s *State) UID() string {
	return s.uid.Load().(string)
}

// SetUID switches the active user and requests a stream restart. The session
// restarts on a first turn and any ban is dropped: a banned id belongs to the
// previous user's conversation.
func (s *State) SetUID(uid string) {
	if uid == "" || uid == s.UID() {
		return
	}
	s.uid.Store(uid)
	s.resetTurnState()
	s.RequestReconnect()
}

// ServerURL returns the active server base URL.
func (s *State) ServerURL() string {
	return s.serverURL.Load().(string)
}

// SetServerURL switches the active server and requests a stream restart.
// State from the old server's stream is discarded.
func (s *State) SetServerURL(u string) {
	if u == "" || u == s.ServerURL() {
		return
	}
	s.serverURL.Store(u)
	s.resetTurnState()
	s.RequestReconnect()
}

// CurrentResponseID returns the identity of the reply currently streaming,
// or [NoResponse].
func (s *State) CurrentResponseID() string {
	return s.currentResponseID.Load().(string)
}

// SetCurrentResponseID records id as the live reply. Observing an id
// different from the banned one ends the ban's scope: the ban applies to a
// single response, never to the turns that follow it.
func (s *State) SetCurrentResponseID(id string) {
	if id == NoResponse {
		return
	}
	s.banMu.Lock()
	defer s.banMu.Unlock()

	s.currentResponseID.Store(id)
	if banned := s.bannedResponseID.Load().(string); banned != NoResponse && banned != id {
		s.bannedResponseID.Store(NoResponse)
	}
}

// BannedResponseID returns the banned reply identity, or [NoResponse].
func (s *State) BannedResponseID() string {
	return s.bannedResponseID.Load().(string)
}

// Ban marks id as interrupted: its remaining chunks and clips are suppressed
// until a different response id is observed. Banning [NoResponse] is a no-op.
func (s *State) Ban(id string) {
	if id == NoResponse {
		return
	}
	s.banMu.Lock()
	defer s.banMu.Unlock()
	s.bannedResponseID.Store(id)
}

// Banned reports whether id is the currently banned response identity.
// [NoResponse] is never banned.
func (s *State) Banned(id string) bool {
	return id != NoResponse && id == s.BannedResponseID()
}

// FirstTurn reports whether the opening turn has not yet been received.
func (s *State) FirstTurn() bool {
	return s.firstTurn.Load()
}

// MarkOpeningReceived flips the first-turn flag after the opening turn
// arrived.
func (s *State) MarkOpeningReceived() {
	s.firstTurn.Store(false)
}

// RequestReconnect asks the stream consumer to drop its connection and
// reconnect against the current uid and server URL. Safe to call from any
// goroutine; duplicate requests coalesce.
func (s *State) RequestReconnect() {
	select {
	case s.reconnect <- struct{}{}:
	default:
	}
}

// ReconnectRequests returns the channel the stream consumer watches for
// restart requests.
func (s *State) ReconnectRequests() <-chan struct{} {
	return s.reconnect
}

// resetTurnState clears per-conversation state on a uid or server switch.
func (s *State) resetTurnState() {
	s.banMu.Lock()
	defer s.banMu.Unlock()
	s.currentResponseID.Store(NoResponse)
	s.bannedResponseID.Store(NoResponse)
	s.firstTurn.Store(true)
}
