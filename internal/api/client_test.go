package api

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// newTestClient returns a Client pointed at srv.
func newTestClient(srv *httptest.Server) *Client {
	return NewClient(func() string { return srv.URL })
}

func TestFetchOpening(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/response/device-1" {
				t.Errorf("unexpected path %q", r.URL.Path)
			}
			if r.URL.Query().Get("is_first") != "true" {
				t.Errorf("expected is_first=true, got %q", r.URL.Query().Get("is_first"))
			}
			fmt.Fprint(w, `{"status":1,"response":{"message":{"text":"hello","voice":"http://x/a.wav"}}}`)
		}))
		defer srv.Close()

		got, err := newTestClient(srv).FetchOpening(context.Background(), "device-1", true)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Text != "hello" || got.VoiceURL != "http://x/a.wav" {
			t.Errorf("unexpected opening: %+v", got)
		}
	})

	t.Run("not ready", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"status":0,"response":{"message":{"text":"","voice":""}}}`)
		}))
		defer srv.Close()

		_, err := newTestClient(srv).FetchOpening(context.Background(), "device-1", false)
		if !errors.Is(err, ErrNotReady) {
			t.Errorf("expected ErrNotReady, got %v", err)
		}
	})
}

func TestOpenStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/response/stream/device-1" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		fmt.Fprintln(w, `{"status":1}`)
		fmt.Fprintln(w, `{"status":1}`)
	}))
	defer srv.Close()

	body, err := newTestClient(srv).OpenStream(context.Background(), "device-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer body.Close()

	sc := bufio.NewScanner(body)
	lines := 0
	for sc.Scan() {
		lines++
	}
	if lines != 2 {
		t.Errorf("expected 2 lines, got %d", lines)
	}
}

func TestInterrupt(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		// Body content is irrelevant to the client.
		fmt.Fprint(w, "whatever")
	}))
	defer srv.Close()

	if err := newTestClient(srv).Interrupt(context.Background(), "device-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/interrupt/device-1" {
		t.Errorf("unexpected path %q", gotPath)
	}
}

func TestHeartbeat(t *testing.T) {
	staged := filepath.Join(t.TempDir(), "audio-1.pcm")
	if err := os.WriteFile(staged, []byte("pcm-bytes"), 0o600); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		data := r.FormValue("data")
		for _, sub := range []string{`"uid":"device-1"`, `"gazes"`, `"norm_pos_x":0.5`} {
			if !strings.Contains(data, sub) {
				t.Errorf("data field missing %s: %s", sub, data)
			}
		}

		f, hdr, err := r.FormFile("voice_file")
		if err != nil {
			t.Fatalf("voice_file part: %v", err)
		}
		defer f.Close()
		if hdr.Filename != "audio-1.pcm" {
			t.Errorf("unexpected filename %q", hdr.Filename)
		}

		if _, _, err := r.FormFile("scene_file"); err == nil {
			t.Error("scene_file part should be absent")
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := newTestClient(srv).Heartbeat(context.Background(), "device-1", staged, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The client must not delete the staged file; that is the uploader's job.
	if _, err := os.Stat(staged); err != nil {
		t.Errorf("staging file should survive the upload: %v", err)
	}
}

func TestHeartbeat_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := newTestClient(srv).Heartbeat(context.Background(), "device-1", "", "")
	if err == nil {
		t.Fatal("expected error on HTTP 500")
	}
}

func TestFetchToken(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		expire := time.Now().Add(24 * time.Hour).Unix()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/get_token" {
				t.Errorf("unexpected path %q", r.URL.Path)
			}
			fmt.Fprintf(w, `{"status":1,"token":"tok-123","expire_time":%d}`, expire)
		}))
		defer srv.Close()

		tok, err := newTestClient(srv).FetchToken(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if tok.Value != "tok-123" {
			t.Errorf("unexpected token %q", tok.Value)
		}
		if tok.ExpiresAt.Unix() != expire {
			t.Errorf("unexpected expiry %v", tok.ExpiresAt)
		}
	})

	t.Run("unavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"status":0}`)
		}))
		defer srv.Close()

		_, err := newTestClient(srv).FetchToken(context.Background())
		if !errors.Is(err, ErrTokenUnavailable) {
			t.Errorf("expected ErrTokenUnavailable, got %v", err)
		}
	})
}

