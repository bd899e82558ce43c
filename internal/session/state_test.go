package session

import (
	"sync"
	"testing"
)

func TestStateDefaults(t *testing.T) {
	s := NewState("u1", "http://srv-a.example")
	if got := s.UID(); got != "u1" {
		t.Errorf("UID() = %q, want %q", got, "u1")
	}
	if got := s.ServerURL(); got != "http://srv-a.example" {
		t.Errorf("ServerURL() = %q, want %q", got, "http://srv-a.example")
	}
	if got := s.CurrentResponseID(); got != NoResponse {
		t.Errorf("CurrentResponseID() = %q, want none", got)
	}
	if got := s.BannedResponseID(); got != NoResponse {
		t.Errorf("BannedResponseID() = %q, want none", got)
	}
	if !s.FirstTurn() {
		t.Error("FirstTurn() = false for a fresh session")
	}
}

func TestBanScope(t *testing.T) {
	s := NewState("u1", "http://srv-a.example")

	s.SetCurrentResponseID("T1")
	s.Ban("T1")
	if !s.Banned("T1") {
		t.Fatal("Banned(T1) = false after Ban(T1)")
	}

	// Re-observing the banned id keeps the ban.
	s.SetCurrentResponseID("T1")
	if !s.Banned("T1") {
		t.Error("ban dropped on re-observing the banned id")
	}

	// A new response id ends the ban's scope.
	s.SetCurrentResponseID("T2")
	if s.Banned("T1") {
		t.Error("ban survived a new response id")
	}
	if s.Banned("T2") {
		t.Error("new response id reported banned")
	}
}

func TestBanEmptyIDIsNoop(t *testing.T) {
	s := NewState("u1", "http://srv-a.example")
	s.Ban(NoResponse)
	if got := s.BannedResponseID(); got != NoResponse {
		t.Errorf("BannedResponseID() = %q after banning the empty id", got)
	}
	if s.Banned(NoResponse) {
		t.Error("Banned(NoResponse) = true")
	}
}

func TestSetCurrentResponseIDIgnoresEmpty(t *testing.T) {
	s := NewState("u1", "http://srv-a.example")
	s.SetCurrentResponseID("T1")
	s.SetCurrentResponseID(NoResponse)
	if got := s.CurrentResponseID(); got != "T1" {
		t.Errorf("CurrentResponseID() = %q, want %q", got, "T1")
	}
}

func TestSetUIDResetsTurnState(t *testing.T) {
	s := NewState("u1", "http://srv-a.example")
	s.SetCurrentResponseID("T1")
	s.Ban("T1")
	s.MarkOpeningReceived()

	s.SetUID("u2")

	if got := s.UID(); got != "u2" {
		t.Errorf("UID() = %q, want %q", got, "u2")
	}
	if got := s.CurrentResponseID(); got != NoResponse {
		t.Errorf("CurrentResponseID() = %q after uid switch, want none", got)
	}
	if s.Banned("T1") {
		t.Error("ban survived a uid switch")
	}
	if !s.FirstTurn() {
		t.Error("FirstTurn() = false after uid switch")
	}
	select {
	case <-s.ReconnectRequests():
	default:
		t.Error("no reconnect request after uid switch")
	}
}

func TestSetUIDSameValueIsNoop(t *testing.T) {
	s := NewState("u1", "http://srv-a.example")
	s.MarkOpeningReceived()
	s.SetUID("u1")
	if s.FirstTurn() {
		t.Error("turn state reset on a same-uid switch")
	}
	select {
	case <-s.ReconnectRequests():
		t.Error("reconnect requested on a same-uid switch")
	default:
	}
}

func TestSetServerURLRequestsReconnect(t *testing.T) {
	s := NewState("u1", "http://srv-a.example")
	s.SetServerURL("http://srv-b.example")
	if got := s.ServerURL(); got != "http://srv-b.example" {
		t.Errorf("ServerURL() = %q, want %q", got, "http://srv-b.example")
	}
	select {
	case <-s.ReconnectRequests():
	default:
		t.Error("no reconnect request after server switch")
	}
}

func TestReconnectRequestsCoalesce(t *testing.T) {
	s := NewState("u1", "http://srv-a.example")
	s.RequestReconnect()
	s.RequestReconnect()
	s.RequestReconnect()

	<-s.ReconnectRequests()
	select {
	case <-s.ReconnectRequests():
		t.Error("duplicate reconnect requests did not coalesce")
	default:
	}
}

func TestConcurrentBanAndAdvance(t *testing.T) {
	s := NewState("u1", "http://srv-a.example")
	s.SetCurrentResponseID("T1")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Ban("T1")
		}()
		go func() {
			defer wg.Done()
			s.SetCurrentResponseID("T1")
		}()
	}
	wg.Wait()

	// Re-observing T1 must never clear its own ban.
	if !s.Banned("T1") {
		t.Error("ban on the current id lost under concurrent advance")
	}
}
