package stream

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want Event
	}{
		{
			name: "interrupt command",
			msg:  Message{Text: "[INTERRUPT]"},
			want: Command{Kind: CommandInterrupt, Raw: "[INTERRUPT]"},
		},
		{
			name: "under processing command",
			msg:  Message{Text: "[UNDER_PROCESSING]"},
			want: Command{Kind: CommandUnderProcessing, Raw: "[UNDER_PROCESSING]"},
		},
		{
			name: "unknown bracketed command",
			msg:  Message{Text: "[SOMETHING_NEW]"},
			want: Command{Kind: CommandOther, Raw: "[SOMETHING_NEW]"},
		},
		{
			name: "user echo",
			msg:  Message{Text: "<User> turn the lights off"},
			want: UserEcho{Text: "turn the lights off"},
		},
		{
			name: "content with voice",
			msg:  Message{Text: "hello there", VoiceURL: "http://x/a.wav"},
			want: Content{Text: "hello there", VoiceURL: "http://x/a.wav"},
		},
		{
			name: "content without voice",
			msg:  Message{Text: "hello"},
			want: Content{Text: "hello"},
		},
		{
			name: "empty text is content",
			msg:  Message{Text: "", VoiceURL: "http://x/a.wav"},
			want: Content{VoiceURL: "http://x/a.wav"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.msg)
			if got != tt.want {
				t.Errorf("Classify(%q) = %#v, want %#v", tt.msg.Text, got, tt.want)
			}
		})
	}
}

// A command tag embedded mid-string is content, not a command: the server's
// contract matches by prefix only.
func TestClassifyPrefixOnly(t *testing.T) {
	got := Classify(Message{Text: "say [INTERRUPT] out loud"})
	if _, ok := got.(Content); !ok {
		t.Errorf("Classify() = %#v, want Content", got)
	}
}
