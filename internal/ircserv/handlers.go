package ircserv

import (
	"context"
	"fmt"
	"strings"

	"github.com/jdholdren/karmabot/internal/irc"
)

const (
	strawpollUsage = "Not enough arguments supplied for strawpoll command. " +
		"<PollTitle> <quoted options separated by spaces>" +
		"Ex: .strawpollbot strawpoll 'Where shall we eat " +
		"today?' 'Ramensan' 'Ajida' 'Slurping Turtle'"
	strawpollNotEnough = "Not enough arguments to create a " +
		"Strawpoll. Please provide a poll title, " +
		"and at least 2 poll options"
	strawpollUnreachable = "I wasn't able to contact the strawpoll server... ;("
)

func (s *Server) roomsUsage() string {
	return fmt.Sprintf("Uses: .%s [join|leave] [#channel1, #channel2, ...]", s.prefix)
}

// Splits "<title> <subcommand> <args>"; ok is false unless all three are present
func splitCommand(text string) (string, bool) {
	parts := strings.SplitN(text, " ", 3)
	if len(parts) != 3 {
		return "", false
	}
	return parts[2], true
}

func (s *Server) handleRooms(ctx context.Context, m irc.Message, fn func(context.Context, []string, string) error) error {
	arg, ok := splitCommand(m.Text)
	if !ok {
		return s.say(ctx, m.ReplyTo(), s.roomsUsage())
	}

	summoner := m.Sender
	if summoner == "" {
		summoner = defaultSummoner
	}

	return fn(ctx, strings.Split(arg, " "), summoner)
}

func (s *Server) joinRooms(ctx context.Context, channels []string, summoner string) error {
	s.l.Infow("joining", "channels", channels, "summoner", summoner)
	announcement := fmt.Sprintf("%s has summoned me. Type '.%s help' for commands", summoner, s.prefix)
	return s.conn.Join(ctx, channels, announcement)
}

func (s *Server) leaveRooms(ctx context.Context, channels []string, summoner string) error {
	s.l.Infow("leaving", "channels", channels, "summoner", summoner)
	announcement := fmt.Sprintf("Disconnecting... (requested by: %s)", summoner)
	return s.conn.Part(ctx, channels, announcement)
}

// Every karma token in the message is applied and confirmed on its own, left to right
func (s *Server) handleKarma(ctx context.Context, to, text string) error {
	for _, match := range karmaRe.FindAllStringSubmatch(text, -1) {
		target, token := match[1], match[3]

		change := s.karma.ApplyKarma(ctx, target, token)
		msg := fmt.Sprintf("%s's karma has been %s to %d.", change.Name, change.Direction, change.Karma)
		if err := s.say(ctx, to, msg); err != nil {
			return err
		}
	}

	return nil
}

func (s *Server) handleListKarma(ctx context.Context, to, text string) error {
	modifier, ok := splitCommand(text)
	if !ok {
		return s.say(ctx, to, fmt.Sprintf("Uses: .%s list-karma [top|bottom|name]", s.prefix))
	}

	heading, rows, err := s.karma.ListKarma(ctx, modifier)
	if err != nil {
		s.l.Errorw("error listing karma", "modifier", modifier, "err", err)
		return nil
	}

	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, heading)
	for _, r := range rows {
		lines = append(lines, fmt.Sprintf("%s: %d", r.Name, r.Karma))
	}

	return s.say(ctx, to, lines...)
}

// ParsePollArgs pulls the quoted title and options out of a strawpoll command
func ParsePollArgs(args string) (string, []string, error) {
	matches := pollArgRe.FindAllStringSubmatch(args, -1)
	if len(matches) < 3 {
		return "", nil, ErrNotEnoughPollArgs
	}

	options := make([]string, 0, len(matches)-1)
	for _, m := range matches[1:] {
		options = append(options, m[1])
	}

	return matches[0][1], options, nil
}

func (s *Server) handleStrawpoll(ctx context.Context, to, text string) error {
	arg, ok := splitCommand(text)
	if !ok {
		return s.say(ctx, to, strawpollUsage)
	}

	title, options, err := ParsePollArgs(arg)
	if err != nil {
		return s.say(ctx, to, strawpollNotEnough)
	}

	p, err := s.poller.CreatePoll(ctx, title, options)
	if err != nil {
		s.l.Errorw("error creating poll", "title", title, "err", err)
		return s.say(ctx, to, strawpollUnreachable)
	}
	s.polls[p.ID] = p.Title

	return s.say(ctx, to, fmt.Sprintf("Poll '%s': %s", p.Title, s.poller.ShareURL(p)))
}

func (s *Server) handleHelp(ctx context.Context, to string) error {
	return s.say(ctx, to,
		"Commands available:",
		fmt.Sprintf(".%s [join|leave] [#server1, #server2, ...]", s.prefix),
		fmt.Sprintf(".%s list-karma [top|bottom|name]", s.prefix),
		fmt.Sprintf(".%s quit", s.prefix),
	)
}
