package stream

import "strings"

// CommandKind names the server's in-band control commands.
type CommandKind int

const (
	// CommandOther is a bracketed command this client does not act on.
	CommandOther CommandKind = iota
	// CommandInterrupt tells the client to drop every queued voice clip.
	CommandInterrupt
	// CommandUnderProcessing announces that the server started working on a
	// reply; it seeds the processing-latency timer.
	CommandUnderProcessing
)

// Event is the classified form of a stream line's text. Classification
// happens once at the stream boundary; downstream code switches on the
// concrete type instead of re-checking string prefixes.
type Event interface {
	isEvent()
}

// Command is a bracketed control line such as [INTERRUPT].
type Command struct {
	Kind CommandKind
	Raw  string
}

// UserEcho is the server echoing the user's own transcribed words back,
// prefixed with <User>. Display only, never spoken.
type UserEcho struct {
	Text string
}

// Content is an ordinary spoken reply chunk.
type Content struct {
	Text     string
	VoiceURL string
}

func (Command) isEvent()  {}
func (UserEcho) isEvent() {}
func (Content) isEvent()  {}

const (
	interruptTag       = "[INTERRUPT]"
	underProcessingTag = "[UNDER_PROCESSING]"
	userEchoTag        = "<User>"
)

// Classify turns a message's text into its tagged form. The prefix encoding
// is the server's contract: `[` opens a command, `<User>` marks an echo,
// anything else is content.
func Classify(m Message) Event {
	switch {
	case strings.HasPrefix(m.Text, "["):
		kind := CommandOther
		switch {
		case strings.HasPrefix(m.Text, interruptTag):
			kind = CommandInterrupt
		case strings.HasPrefix(m.Text, underProcessingTag):
			kind = CommandUnderProcessing
		}
		return Command{Kind: kind, Raw: m.Text}
	case strings.HasPrefix(m.Text, userEchoTag):
		return UserEcho{Text: strings.TrimSpace(strings.TrimPrefix(m.Text, userEchoTag))}
	default:
		return Content{Text: m.Text, VoiceURL: m.VoiceURL}
	}
}
