package nls

import (
	"context"
	"net/url"
	"testing"
)

type staticTokens struct{ tok string }

func (s staticTokens) Token(context.Context) (string, error) { return s.tok, nil }

func TestNewValidation(t *testing.T) {
	if _, err := New("", staticTokens{"t"}); err == nil {
		t.Error("New() accepted an empty endpoint")
	}
	if _, err := New("wss://nls.example/v1", nil); err == nil {
		t.Error("New() accepted a nil token source")
	}
}

func TestBuildURLDefaults(t *testing.T) {
	r, err := New("wss://nls.example/ws/v1", staticTokens{"t"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	raw, err := r.buildURL()
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse URL: %v", err)
	}
	q := u.Query()
	if got := q.Get("format"); got != "pcm" {
		t.Errorf("format = %q, want pcm", got)
	}
	if got := q.Get("sample_rate"); got != "16000" {
		t.Errorf("sample_rate = %q, want 16000", got)
	}
	if got := q.Get("enable_intermediate_result"); got != "true" {
		t.Errorf("enable_intermediate_result = %q, want true", got)
	}
}

func TestBuildURLOptions(t *testing.T) {
	r, err := New("wss://nls.example/ws/v1", staticTokens{"t"},
		WithSampleRate(8000), WithFormat("opus"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	raw, _ := r.buildURL()
	u, _ := url.Parse(raw)
	q := u.Query()
	if got := q.Get("sample_rate"); got != "8000" {
		t.Errorf("sample_rate = %q, want 8000", got)
	}
	if got := q.Get("format"); got != "opus" {
		t.Errorf("format = %q, want opus", got)
	}
}

func TestParseEvent(t *testing.T) {
	tests := []struct {
		name      string
		data      string
		wantOK    bool
		wantFinal bool
		wantText  string
	}{
		{
			name:      "intermediate result",
			data:      `{"header":{"name":"TranscriptionResultChanged"},"payload":{"result":"turn the","confidence":0.8}}`,
			wantOK:    true,
			wantFinal: false,
			wantText:  "turn the",
		},
		{
			name:      "sentence end",
			data:      `{"header":{"name":"SentenceEnd"},"payload":{"result":"turn the lights off","confidence":0.93}}`,
			wantOK:    true,
			wantFinal: true,
			wantText:  "turn the lights off",
		},
		{
			name:   "unrelated event",
			data:   `{"header":{"name":"TranscriptionStarted"}}`,
			wantOK: false,
		},
		{
			name:   "empty result",
			data:   `{"header":{"name":"SentenceEnd"},"payload":{"result":""}}`,
			wantOK: false,
		},
		{
			name:   "malformed json",
			data:   `{{{`,
			wantOK: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, final, ok := parseEvent([]byte(tt.data))
			if ok != tt.wantOK {
				t.Fatalf("parseEvent() ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if final != tt.wantFinal || tr.IsFinal != tt.wantFinal {
				t.Errorf("final = %v/%v, want %v", final, tr.IsFinal, tt.wantFinal)
			}
			if tr.Text != tt.wantText {
				t.Errorf("text = %q, want %q", tr.Text, tt.wantText)
			}
		})
	}
}
