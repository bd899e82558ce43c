// Package ui keeps the conversation transcript and status lines the way a
// front end wants them: newest entries first, history bounded so a day-long
// session cannot grow memory without limit.
package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// historyLimit caps each ring. Thirty entries covers what fits on screen.
const historyLimit = 30

// Role tags who produced a transcript entry.
type Role int

const (
	// RoleAgent is a spoken reply chunk from the server.
	RoleAgent Role = iota
	// RoleUser is the user's own transcribed speech.
	RoleUser
)

// Entry is one transcript line.
type Entry struct {
	Role Role
	Text string
	At   time.Time
}

// Transcript is a bounded conversation log plus a bounded status-line log.
// It implements the stream consumer's display sink. Safe for concurrent use.
type Transcript struct {
	mu      sync.Mutex
	entries []Entry
	states  []string
	now     func() time.Time
}

// NewTranscript creates an empty Transcript.
func NewTranscript() *Transcript {
	return &Transcript{now: time.Now}
}

// Response appends an agent reply chunk.
func (tr *Transcript) Response(text string) {
	tr.append(Entry{Role: RoleAgent, Text: text})
}

// UserEcho appends the user's transcribed words as a user turn.
func (tr *Transcript) UserEcho(text string) {
	tr.append(Entry{Role: RoleUser, Text: text})
}

// State records a transient status line such as [UNDER_PROCESSING].
func (tr *Transcript) State(text string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.states = append(tr.states, text)
	if len(tr.states) > historyLimit {
		tr.states = tr.states[len(tr.states)-historyLimit:]
	}
}

func (tr *Transcript) append(e Entry) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	e.At = tr.now()
	tr.entries = append(tr.entries, e)
	if len(tr.entries) > historyLimit {
		tr.entries = tr.entries[len(tr.entries)-historyLimit:]
	}
}

// Entries returns the retained transcript, oldest first.
func (tr *Transcript) Entries() []Entry {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]Entry(nil), tr.entries...)
}

// States returns the retained status lines, oldest first.
func (tr *Transcript) States() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]string(nil), tr.states...)
}

// Render formats the transcript for a plain-text display, one line per
// entry, user turns marked.
func (tr *Transcript) Render() string {
	var b strings.Builder
	for _, e := range tr.Entries() {
		switch e.Role {
		case RoleUser:
			fmt.Fprintf(&b, "[%s] you: %s\n", e.At.Format("15:04:05"), e.Text)
		default:
			fmt.Fprintf(&b, "[%s] halo: %s\n", e.At.Format("15:04:05"), e.Text)
		}
	}
	return b.String()
}
