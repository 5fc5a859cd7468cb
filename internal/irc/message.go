package irc

import (
	"errors"
	"strings"
)

// ErrMalformedMessage is returned when a PRIVMSG line has no message body
var ErrMalformedMessage = errors.New("malformed PRIVMSG line")

// A Message is a decoded PRIVMSG
type Message struct {
	Sender string // nickname before the '!'
	Source string // a channel, or the bot's own nick for direct messages
	Text   string
}

// FromChannel reports whether the message was said in a channel
func (m Message) FromChannel() bool {
	return strings.HasPrefix(m.Source, "#")
}

// ReplyTo is where responses to the message belong: the channel it was said in,
// or the sender for direct messages.
func (m Message) ReplyTo() string {
	if m.FromChannel() {
		return m.Source
	}
	return m.Sender
}

// ParseMessage decodes a raw line containing PRIVMSG, e.g.
//
//	:alice!alice@host PRIVMSG #general :bob++ thanks
func ParseMessage(line string) (Message, error) {
	i := strings.Index(line, "PRIVMSG")
	if i < 0 {
		return Message{}, ErrMalformedMessage
	}

	sender, _, _ := strings.Cut(line, "!")
	if len(sender) > 0 {
		sender = sender[1:]
	}

	source, text, ok := strings.Cut(line[i+len("PRIVMSG"):], ":")
	if !ok {
		return Message{}, ErrMalformedMessage
	}

	return Message{
		Sender: sender,
		Source: strings.TrimSpace(source),
		Text:   text,
	}, nil
}
