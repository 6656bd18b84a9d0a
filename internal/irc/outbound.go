package irc

import (
	"context"
	"fmt"
	"strings"

	"github.com/ergochat/irc-go/ircmsg"
	"go.uber.org/zap"
)

// SendMessage sends text to channel as a chat message.
func (s *Session) SendMessage(ctx context.Context, channel, text string) error {
	name, err := normalizeChannel(channel)
	if err != nil {
		return err
	}
	return s.SendCommand(ctx, "PRIVMSG #"+name+" :"+trimCRLF(text))
}

// SendCommand queues a raw protocol command on the message queue, or
// writes it immediately in direct-send mode.
//
// It fails with ErrNotConnected when the session is disconnected. While
// reconnecting, it first reconnects on the calling goroutine and fails if
// that does not restore the connection. That error wraps both
// ErrNotConnected and the reconnect's own cause, such as ErrAuthentication.
func (s *Session) SendCommand(ctx context.Context, raw string) error {
	line, err := commandLine(raw)
	if err != nil {
		return err
	}

	switch s.State() {
	case Disconnected:
		return fmt.Errorf("%w: cannot send %q", ErrNotConnected, trimCRLF(line))
	case Reconnecting:
		s.log.Info("reconnecting before send")
		if err := s.restore(ctx); err != nil {
			return fmt.Errorf("%w: %w", ErrNotConnected, err)
		}
		if s.State() != Connected {
			return fmt.Errorf("%w: reconnect did not complete", ErrNotConnected)
		}
	}
	return s.submit(ctx, s.messages, line)
}

// JoinChannel joins a single channel.
func (s *Session) JoinChannel(name string) error {
	return s.JoinChannels([]string{name})
}

// PartChannel leaves a single channel.
func (s *Session) PartChannel(name string) error {
	return s.PartChannels([]string{name})
}

// JoinChannels records each channel as joined and queues its JOIN. While
// not connected the channels are only recorded; they are joined when the
// next connect succeeds.
func (s *Session) JoinChannels(names []string) error {
	chans, err := normalizeChannels(names)
	if err != nil {
		return err
	}
	for _, name := range chans {
		s.chanMu.Lock()
		s.channels[name] = struct{}{}
		s.chanMu.Unlock()

		if err := s.membershipCommand("JOIN #" + name + "\r\n"); err != nil {
			return err
		}
	}
	return nil
}

// PartChannels removes each channel from the joined set and queues its
// PART. Parting a channel that was never joined is not an error.
func (s *Session) PartChannels(names []string) error {
	chans, err := normalizeChannels(names)
	if err != nil {
		return err
	}
	for _, name := range chans {
		s.chanMu.Lock()
		delete(s.channels, name)
		s.chanMu.Unlock()

		if err := s.membershipCommand("PART #" + name + "\r\n"); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) membershipCommand(line string) error {
	if s.State() != Connected {
		s.log.Debug("not connected, command deferred to next connect", zap.String("line", trimCRLF(line)))
		return nil
	}
	return s.submit(context.Background(), s.membership, line)
}

// submit hands line to q, or writes it straight to the socket in
// direct-send mode.
func (s *Session) submit(ctx context.Context, q *scheduler, line string) error {
	if !s.cfg.DirectSend {
		return q.enqueue(ctx, line)
	}
	l := s.link.Load()
	if l == nil {
		return ErrNotConnected
	}
	if err := l.writeLine(line); err != nil {
		s.lost(l, err)
		return fmt.Errorf("%w: %w", ErrNotConnected, err)
	}
	return nil
}

// Pending returns the number of commands waiting in the membership and
// message queues.
func (s *Session) Pending() (membership, messages int) {
	return s.membership.pending(), s.messages.pending()
}

// commandLine validates a raw command and terminates it with CRLF.
func commandLine(raw string) (string, error) {
	body := trimCRLF(raw)
	if body == "" || strings.ContainsAny(body, "\r\n") {
		return "", fmt.Errorf("%w: malformed command %q", ErrInvalidArgument, raw)
	}
	msg, err := ircmsg.ParseLine(body)
	if err != nil || msg.Command == "" {
		return "", fmt.Errorf("%w: malformed command %q", ErrInvalidArgument, raw)
	}
	return body + "\r\n", nil
}

func normalizeChannels(names []string) ([]string, error) {
	if names == nil {
		return nil, fmt.Errorf("%w: channel list is nil", ErrInvalidArgument)
	}
	chans := make([]string, 0, len(names))
	for _, name := range names {
		n, err := normalizeChannel(name)
		if err != nil {
			return nil, err
		}
		chans = append(chans, n)
	}
	return chans, nil
}

// normalizeChannel strips a leading '#' and lower-cases the name.
func normalizeChannel(name string) (string, error) {
	n := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "#"))
	if n == "" || strings.ContainsAny(n, " ,\r\n\x00") {
		return "", fmt.Errorf("%w: invalid channel name %q", ErrInvalidArgument, name)
	}
	return n, nil
}
