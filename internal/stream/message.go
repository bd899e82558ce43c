// Package stream consumes the server's line-delimited JSON response stream:
// it decodes each line into a [Message], classifies the text once at the
// boundary, updates the session state and feeds voice clips to the playback
// queue. The consumer reconnects forever on failure and restarts immediately
// when the active server or user changes.
package stream

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// wire mirrors one line of the response stream:
//
//	{"status":1,"response":{"message":{"text":"...","voice":"...","start_time":"T1"},"extra":{...}}}
type wire struct {
	Status   int `json:"status"`
	Response struct {
		Message struct {
			Text      string          `json:"text"`
			Voice     string          `json:"voice"`
			StartTime json.RawMessage `json:"start_time"`
		} `json:"message"`
		Extra map[string]string `json:"extra"`
	} `json:"response"`
}

// statusOK is the server's in-band success code.
const statusOK = 1

// Message is one decoded stream line. Consumed exactly once, never mutated.
type Message struct {
	OK         bool
	ResponseID string
	Text       string
	VoiceURL   string
	Extra      map[string]string
}

// Decode parses one stream line. The start_time field is the response
// identity; servers have emitted it both as a JSON string and as a number,
// so both shapes are accepted.
func Decode(line []byte) (Message, error) {
	var w wire
	if err := json.Unmarshal(line, &w); err != nil {
		return Message{}, fmt.Errorf("stream: decode line: %w", err)
	}
	id, err := decodeResponseID(w.Response.Message.StartTime)
	if err != nil {
		return Message{}, err
	}
	return Message{
		OK:         w.Status == statusOK,
		ResponseID: id,
		Text:       w.Response.Message.Text,
		VoiceURL:   w.Response.Message.Voice,
		Extra:      w.Response.Extra,
	}, nil
}

func decodeResponseID(raw json.RawMessage) (string, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return "", nil
	}
	if s[0] == '"' {
		var id string
		if err := json.Unmarshal(raw, &id); err != nil {
			return "", fmt.Errorf("stream: decode start_time: %w", err)
		}
		return id, nil
	}
	// Numeric identity: render it back without float mangling.
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("stream: decode start_time: %w", err)
	}
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10), nil
	}
	return n.String(), nil
}
