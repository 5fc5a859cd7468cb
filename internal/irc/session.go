// Package irc owns the connection to an IRC server: the login handshake,
// reading lines off the socket, keepalives, and the line-oriented loop that
// hands chat messages to a Handler
package irc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ReadLimit is the most bytes a single line read returns
const ReadLimit = 2048

const namesSentinel = "End of /NAMES list."

// ErrConnection is returned when the server cannot be reached
var ErrConnection = errors.New("connection error")

// State is where a Session is in its lifecycle
type State int

const (
	Disconnected State = iota
	Connecting
	LoggedIn
	Listening
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case LoggedIn:
		return "logged in"
	case Listening:
		return "listening"
	default:
		return "disconnected"
	}
}

// A Handler receives the chat messages read by Listen. Returning quit ends the loop.
type Handler interface {
	HandleMessage(ctx context.Context, m Message) (quit bool, err error)
}

type Config struct {
	Addr string
	Nick string
	// How long to wait after sending the login lines
	SettleDelay time.Duration
}

// A Session is a single connection to an IRC server. It is not safe for
// concurrent use; everything runs on the goroutine driving Listen.
type Session struct {
	cfg    Config
	dialer net.Dialer

	conn  net.Conn
	r     *bufio.Reader
	state State

	l *zap.SugaredLogger
}

func NewSession(c Config, l *zap.SugaredLogger) *Session {
	return &Session{
		cfg: c,
		l:   l,
	}
}

func (s *Session) State() State {
	return s.state
}

func (s *Session) connected() bool {
	return s.state == LoggedIn || s.state == Listening
}

// Connect dials the server, logs in, and waits out the settle delay
func (s *Session) Connect(ctx context.Context) error {
	if s.state != Disconnected {
		return fmt.Errorf("error connecting: session is %s", s.state)
	}
	s.state = Connecting

	s.l.Infow("connecting", "addr", s.cfg.Addr)
	conn, err := s.dialer.DialContext(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		s.state = Disconnected
		return fmt.Errorf("%w: error dialing %s: %s", ErrConnection, s.cfg.Addr, err)
	}
	s.conn = conn
	s.r = bufio.NewReaderSize(conn, ReadLimit)

	if err := s.login(); err != nil {
		s.Close()
		return fmt.Errorf("%w: error logging in: %s", ErrConnection, err)
	}
	s.state = LoggedIn

	t := time.NewTimer(s.cfg.SettleDelay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
		return ctx.Err()
	}

	return nil
}

func (s *Session) login() error {
	lines := []string{
		"CAPS LS",
		"NICK " + s.cfg.Nick,
		fmt.Sprintf("USER %[1]s 8 * %[1]s", s.cfg.Nick),
	}
	for _, line := range lines {
		if err := s.send(line); err != nil {
			return err
		}
	}

	return nil
}

// Listen reads lines until the handler asks to quit, the context is cancelled,
// or the connection fails. Each line is fully handled before the next is read.
func (s *Session) Listen(ctx context.Context, h Handler) error {
	if !s.connected() {
		return errors.New("error listening: not connected")
	}
	s.state = Listening

	stop := s.interruptOn(ctx)
	defer stop()

	for {
		line, err := s.ReadLine()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("error reading from server: %w", err)
		}

		switch {
		case strings.Contains(line, "PRIVMSG"):
			m, err := ParseMessage(line)
			if err != nil {
				s.l.Warnw("skipping line", "line", line, "err", err)
				continue
			}

			quit, err := h.HandleMessage(ctx, m)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("error handling message: %w", err)
			}
			if quit {
				return nil
			}
		case strings.Contains(line, "PING :"):
			if err := s.Pong(); err != nil {
				return fmt.Errorf("error answering ping: %w", err)
			}
		}
	}
}

// Unblocks socket reads and writes once ctx is done. The returned func must be called.
func (s *Session) interruptOn(ctx context.Context) func() {
	done := make(chan struct{})
	conn := s.conn
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.SetDeadline(time.Now())
		case <-done:
		}
	}()

	return func() { close(done) }
}

// ReadLine returns the next line from the server with the trailing CR/LF removed.
// Lines longer than ReadLimit come back in ReadLimit sized pieces.
func (s *Session) ReadLine() (string, error) {
	if s.r == nil {
		return "", errors.New("error reading: not connected")
	}

	b, err := s.r.ReadSlice('\n')
	if err != nil && !errors.Is(err, bufio.ErrBufferFull) && len(b) == 0 {
		return "", err
	}

	line := strings.TrimRight(string(b), "\r\n")
	s.l.Debugw("received", "line", line)

	return line, nil
}

func (s *Session) send(line string) error {
	if s.conn == nil {
		return errors.New("error sending: not connected")
	}

	if _, err := s.conn.Write([]byte(line + "\n")); err != nil {
		return fmt.Errorf("error sending %q: %w", line, err)
	}

	return nil
}

// Privmsg sends text to a channel or nick
func (s *Session) Privmsg(ctx context.Context, target, text string) error {
	if target == "" {
		s.l.Warnw("message has no target", "text", text)
	}
	return s.send(fmt.Sprintf("PRIVMSG %s :%s", target, text))
}

// Join joins the channels, then consumes lines until the server finishes the
// NAMES listing and posts announcement in each channel. Anything said while
// waiting is read and dropped.
func (s *Session) Join(ctx context.Context, channels []string, announcement string) error {
	if len(channels) == 0 {
		return nil
	}

	if err := s.send("JOIN " + strings.Join(channels, ",")); err != nil {
		return err
	}

	for {
		line, err := s.ReadLine()
		if err != nil {
			return fmt.Errorf("error waiting for NAMES list: %w", err)
		}
		if strings.Contains(line, namesSentinel) {
			break
		}
	}

	for _, ch := range channels {
		if err := s.Privmsg(ctx, ch, announcement); err != nil {
			return err
		}
	}

	return nil
}

// Part posts announcement in each channel, then leaves them
func (s *Session) Part(ctx context.Context, channels []string, announcement string) error {
	if len(channels) == 0 {
		return nil
	}

	for _, ch := range channels {
		if err := s.Privmsg(ctx, ch, announcement); err != nil {
			return err
		}
	}

	return s.send("PART " + strings.Join(channels, ","))
}

func (s *Session) Pong() error {
	return s.send("PONG :pingis")
}

// Quit tells the server we are leaving. The socket stays open.
func (s *Session) Quit(ctx context.Context) error {
	return s.send("QUIT ")
}

// Disconnect quits the server if logged in and closes the socket
func (s *Session) Disconnect(ctx context.Context) error {
	var err error
	if s.connected() {
		err = s.Quit(ctx)
	}
	if cErr := s.Close(); err == nil {
		err = cErr
	}

	return err
}

// Reconnect drops any current connection and connects again. There is no retry.
func (s *Session) Reconnect(ctx context.Context) error {
	if s.connected() {
		if err := s.Disconnect(ctx); err != nil {
			s.l.Warnw("error disconnecting before reconnect", "err", err)
		}
	}

	return s.Connect(ctx)
}

// Close closes the socket without saying goodbye
func (s *Session) Close() error {
	s.state = Disconnected
	if s.conn == nil {
		return nil
	}

	err := s.conn.Close()
	s.conn = nil
	s.r = nil

	return err
}
