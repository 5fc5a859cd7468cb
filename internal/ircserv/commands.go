// Package ircserv turns chat messages into bot actions: channel management,
// karma changes and listings, polls, help and quitting
package ircserv

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/jdholdren/karmabot/internal/core/models"
	"github.com/jdholdren/karmabot/internal/irc"
	"github.com/jdholdren/karmabot/internal/strawpoll"
)

// The strawpoll command does not follow the configured nick
const strawpollCommand = ".karmabot strawpoll"

const defaultSummoner = "A mysterious force"

var (
	// A bare word (optionally @-prefixed, letters and digits in any script) or a
	// quoted phrase, directly followed by two or more '+' or '-'
	karmaRe = regexp.MustCompile(`(?:((@?[aA-zZ\w\p{L}\p{N}]+)|['"].+?['"]))(\+{2,}|\-{2,})`)

	pollArgRe = regexp.MustCompile(`['"]([^'"]*)['"]`)

	// ErrNotEnoughPollArgs is returned when a poll lacks a title or two options
	ErrNotEnoughPollArgs = errors.New("not enough args for strawpoll")
)

// Conn is the part of an IRC session the commands drive
type Conn interface {
	Privmsg(ctx context.Context, target, text string) error
	Join(ctx context.Context, channels []string, announcement string) error
	Part(ctx context.Context, channels []string, announcement string) error
	Quit(ctx context.Context) error
}

// Karma applies and lists karma
type Karma interface {
	ApplyKarma(ctx context.Context, name, token string) models.KarmaChange
	ListKarma(ctx context.Context, modifier string) (string, []models.UserKarma, error)
}

// Poller creates remote polls
type Poller interface {
	CreatePoll(ctx context.Context, title string, options []string) (strawpoll.Poll, error)
	ShareURL(p strawpoll.Poll) string
}

type Config struct {
	Nick string
}

// Server dispatches the messages a session reads
type Server struct {
	prefix   string
	quitLine string

	conn   Conn
	karma  Karma
	poller Poller

	// Polls created this session, id to title
	polls map[string]string

	l *zap.SugaredLogger
}

func New(l *zap.SugaredLogger, c Config, conn Conn, karma Karma, poller Poller) *Server {
	prefix := strings.ToLower(c.Nick)

	return &Server{
		prefix:   prefix,
		quitLine: fmt.Sprintf(".%s quit", prefix),
		conn:     conn,
		karma:    karma,
		poller:   poller,
		polls:    map[string]string{},
		l:        l,
	}
}

// Polls returns a copy of the polls created so far
func (s *Server) Polls() map[string]string {
	out := make(map[string]string, len(s.polls))
	for id, title := range s.polls {
		out[id] = title
	}
	return out
}

func (s *Server) command(name string) string {
	return fmt.Sprintf(".%s %s", s.prefix, name)
}

// HandleMessage runs every command the message matches, in a fixed order. More
// than one can fire for the same message. quit is true once the quit line is seen.
func (s *Server) HandleMessage(ctx context.Context, m irc.Message) (bool, error) {
	to := m.ReplyTo()
	text := m.Text

	if strings.HasPrefix(text, s.command("join")) {
		if err := s.handleRooms(ctx, m, s.joinRooms); err != nil {
			return false, err
		}
	}

	if strings.HasPrefix(text, s.command("leave")) {
		if err := s.handleRooms(ctx, m, s.leaveRooms); err != nil {
			return false, err
		}
	}

	// Karma can only be granted in channels
	if m.FromChannel() {
		if err := s.handleKarma(ctx, to, text); err != nil {
			return false, err
		}
	}

	if strings.HasPrefix(text, s.command("list-karma")) {
		if err := s.handleListKarma(ctx, to, text); err != nil {
			return false, err
		}
	}

	if strings.HasPrefix(text, strawpollCommand) {
		if err := s.handleStrawpoll(ctx, to, text); err != nil {
			return false, err
		}
	}

	if strings.HasPrefix(text, s.command("help")) {
		if err := s.handleHelp(ctx, to); err != nil {
			return false, err
		}
	}

	if strings.TrimRightFunc(text, unicode.IsSpace) == s.quitLine {
		s.l.Infow("asked to quit", "by", m.Sender)
		if err := s.conn.Quit(ctx); err != nil {
			return false, err
		}
		return true, nil
	}

	return false, nil
}

func (s *Server) say(ctx context.Context, to string, lines ...string) error {
	for _, line := range lines {
		if err := s.conn.Privmsg(ctx, to, line); err != nil {
			return err
		}
	}
	return nil
}
