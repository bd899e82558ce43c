package stream

import "testing"

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Message
	}{
		{
			name: "content chunk",
			line: `{"status":1,"response":{"message":{"text":"hello","voice":"http://x/a.wav","start_time":"T1"}}}`,
			want: Message{OK: true, ResponseID: "T1", Text: "hello", VoiceURL: "http://x/a.wav"},
		},
		{
			name: "numeric start_time",
			line: `{"status":1,"response":{"message":{"text":"hi","start_time":1719482000123}}}`,
			want: Message{OK: true, ResponseID: "1719482000123", Text: "hi"},
		},
		{
			name: "missing start_time",
			line: `{"status":1,"response":{"message":{"text":"[UNDER_PROCESSING]"}}}`,
			want: Message{OK: true, Text: "[UNDER_PROCESSING]"},
		},
		{
			name: "null start_time",
			line: `{"status":1,"response":{"message":{"text":"hi","start_time":null}}}`,
			want: Message{OK: true, Text: "hi"},
		},
		{
			name: "non-ok status",
			line: `{"status":0,"response":{"message":{"text":"hello","start_time":"T1"}}}`,
			want: Message{OK: false, ResponseID: "T1", Text: "hello"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.line))
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if got.OK != tt.want.OK || got.ResponseID != tt.want.ResponseID ||
				got.Text != tt.want.Text || got.VoiceURL != tt.want.VoiceURL {
				t.Errorf("Decode() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDecodeExtra(t *testing.T) {
	line := `{"status":1,"response":{"message":{"text":"hi","start_time":"T1"},"extra":{"asr_delay":"0.12","tts_delay":"0.40"}}}`
	got, err := Decode([]byte(line))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got.Extra["asr_delay"] != "0.12" || got.Extra["tts_delay"] != "0.40" {
		t.Errorf("Extra = %v", got.Extra)
	}
}

func TestDecodeMalformed(t *testing.T) {
	for _, line := range []string{
		`not json at all`,
		`{"status":"one"}`,
		`{"status":1,"response":{"message":{"start_time":{"nested":true}}}}`,
	} {
		if _, err := Decode([]byte(line)); err == nil {
			t.Errorf("Decode(%q) succeeded, want error", line)
		}
	}
}

func TestDecodeIdempotent(t *testing.T) {
	line := []byte(`{"status":1,"response":{"message":{"text":"hello","voice":"http://x/a.wav","start_time":"T1"}}}`)
	a, err := Decode(line)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	b, err := Decode(line)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if a.ResponseID != b.ResponseID || a.Text != b.Text || a.VoiceURL != b.VoiceURL {
		t.Errorf("repeated decode differs: %+v vs %+v", a, b)
	}
}
