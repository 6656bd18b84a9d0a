package irc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ergochat/irc-go/ircmsg"
	"github.com/ergochat/irc-go/ircreader"
	"go.uber.org/zap"
)

// ConnectionState is the session's position in the connection lifecycle.
type ConnectionState int32

const (
	Disconnected ConnectionState = iota
	Connected
	Reconnecting
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Config holds the session settings. Token and Identity are required;
// everything else has a default.
type Config struct {
	// Token is the bearer credential, including its "oauth:" prefix.
	Token string
	// Identity is the login name. It is lower-cased.
	Identity string

	// CommandPrefix marks a chat line as a bot command. Default "!".
	CommandPrefix string

	Host             string
	Port             int
	HandshakeTimeout time.Duration

	// ModAccount raises the message ceiling from 20 to 100 per 30 seconds.
	ModAccount bool

	// DirectSend bypasses both rate-limited queues and writes commands on
	// the calling goroutine. Sending too fast this way gets the account
	// throttled or temporarily banned by the gateway.
	DirectSend bool

	// Pacing is the minimum gap between two commands from the same queue.
	// Default 500ms; negative disables pacing.
	Pacing time.Duration

	// QueueSize bounds each outbound queue. Enqueueing blocks when full.
	QueueSize int

	// Dial opens the connection. Default is a net.Dialer.
	Dial func(ctx context.Context, network, addr string) (net.Conn, error)

	// Clock drives the rate windows and the pacing gap. Default is the
	// wall clock.
	Clock clock.Clock

	Logger *zap.Logger
}

func (c *Config) setDefaults() {
	if c.CommandPrefix == "" {
		c.CommandPrefix = DefaultCommandPrefix
	}
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Pacing == 0 {
		c.Pacing = DefaultPacing
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.Dial == nil {
		var d net.Dialer
		c.Dial = d.DialContext
	}
	if c.Clock == nil {
		c.Clock = clock.New()
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

// Session is a client connection to the chat gateway. It owns the socket,
// a read loop that dispatches every inbound line to the registered
// handlers, and two rate-limited writers for outbound commands.
type Session struct {
	cfg      Config
	token    string
	identity string
	log      *zap.Logger

	prefix atomic.Value // string
	state  atomic.Int32

	// connMu serializes connect, reconnect and close.
	connMu sync.Mutex
	link   atomic.Pointer[link]

	chanMu   sync.Mutex
	channels map[string]struct{}

	membership *scheduler
	messages   *scheduler

	reg registry

	hookMu        sync.Mutex
	shutdownHooks []func()

	shutdown atomic.Bool
	stopOnce sync.Once
	stopped  chan struct{}
}

// New validates cfg and returns a disconnected session.
func New(cfg Config) (*Session, error) {
	if strings.TrimSpace(cfg.Token) == "" || strings.ContainsAny(cfg.Token, " \r\n") {
		return nil, fmt.Errorf("%w: invalid oauth token", ErrInvalidArgument)
	}
	if strings.TrimSpace(cfg.Identity) == "" || strings.ContainsAny(cfg.Identity, " \r\n") {
		return nil, fmt.Errorf("%w: invalid identity", ErrInvalidArgument)
	}
	if cfg.CommandPrefix != "" && strings.ContainsAny(cfg.CommandPrefix, " \r\n") {
		return nil, fmt.Errorf("%w: invalid command prefix %q", ErrInvalidArgument, cfg.CommandPrefix)
	}
	cfg.setDefaults()

	s := &Session{
		cfg:      cfg,
		token:    cfg.Token,
		identity: strings.ToLower(cfg.Identity),
		log:      cfg.Logger.Named("irc"),
		channels: make(map[string]struct{}),
		stopped:  make(chan struct{}),
	}
	s.prefix.Store(cfg.CommandPrefix)

	ceiling := messageCeiling
	if cfg.ModAccount {
		ceiling = modMessageCeiling
	}
	s.membership = newScheduler("membership", membershipWindow, membershipCeiling, &s.cfg, s.log)
	s.messages = newScheduler("message", messageWindow, ceiling, &s.cfg, s.log)
	return s, nil
}

// Identity returns the normalized login name.
func (s *Session) Identity() string { return s.identity }

// CommandPrefix returns the current command prefix.
func (s *Session) CommandPrefix() string { return s.prefix.Load().(string) }

// SetCommandPrefix changes the command prefix. It applies from the next
// dispatched line.
func (s *Session) SetCommandPrefix(p string) error {
	if p == "" || strings.ContainsAny(p, " \r\n") {
		return fmt.Errorf("%w: invalid command prefix %q", ErrInvalidArgument, p)
	}
	s.prefix.Store(p)
	return nil
}

// State returns the current connection state.
func (s *Session) State() ConnectionState {
	return ConnectionState(s.state.Load())
}

func (s *Session) setState(st ConnectionState) {
	if old := ConnectionState(s.state.Swap(int32(st))); old != st {
		s.log.Debug("state change", zap.Stringer("from", old), zap.Stringer("to", st))
	}
}

// Channels returns the joined channel names, sorted.
func (s *Session) Channels() []string {
	s.chanMu.Lock()
	defer s.chanMu.Unlock()
	names := make([]string, 0, len(s.channels))
	for name := range s.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OnShutdown registers fn to run when Shutdown is called, before the
// socket is closed.
func (s *Session) OnShutdown(fn func()) {
	s.hookMu.Lock()
	s.shutdownHooks = append(s.shutdownHooks, fn)
	s.hookMu.Unlock()
}

// Connect dials the configured gateway and logs in.
func (s *Session) Connect(ctx context.Context) error {
	return s.ConnectTo(ctx, s.cfg.HandshakeTimeout, s.cfg.Host, s.cfg.Port)
}

// ConnectTo dials host:port and logs in. timeout bounds the whole attempt,
// dial included. A dial failure is returned as is; a rejected login wraps
// ErrAuthentication and a login that never completes wraps ErrProtocolTimeout.
//
// On success the read loop and both queue workers are started and every
// channel already recorded as joined is joined again.
func (s *Session) ConnectTo(ctx context.Context, timeout time.Duration, host string, port int) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.connect(ctx, timeout, host, port)
}

func (s *Session) connect(ctx context.Context, timeout time.Duration, host string, port int) error {
	if s.shutdown.Load() {
		return fmt.Errorf("%w: session is shut down", ErrNotConnected)
	}
	if s.teardown() {
		// The old connection is gone. Until the new login succeeds nothing
		// can be sent.
		s.setState(Disconnected)
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	deadline := time.Now().Add(timeout)
	log := s.log.With(zap.String("addr", addr))

	log.Info("connecting")
	dctx, cancel := context.WithDeadline(ctx, deadline)
	conn, err := s.cfg.Dial(dctx, "tcp", addr)
	cancel()
	if err != nil {
		log.Error("cannot connect to gateway", zap.Error(err))
		return err
	}

	l := newLink(conn)
	if err := s.login(ctx, l, deadline); err != nil {
		log.Error("login failed", zap.Error(err))
		l.close()
		return err
	}

	// Membership events (JOIN, PART, MODE, NAMES) and the custom commands
	// (HOSTTARGET, CLEARCHAT, NOTICE with msg-id, ...).
	for _, capability := range []string{MembershipCapability, CommandsCapability} {
		if err := l.writeLine("CAP REQ :" + capability + "\r\n"); err != nil {
			log.Error("capability request failed", zap.Error(err))
			l.close()
			return fmt.Errorf("request capability %s: %w", capability, err)
		}
	}

	if s.shutdown.Load() {
		l.close()
		return fmt.Errorf("%w: session is shut down", ErrNotConnected)
	}

	s.link.Store(l)
	s.setState(Connected)
	s.start(l)
	log.Info("connected", zap.String("identity", s.identity))

	if chans := s.Channels(); len(chans) > 0 {
		log.Info("rejoining channels", zap.Strings("channels", chans))
		for _, name := range chans {
			if err := s.submit(context.Background(), s.membership, "JOIN #"+name+"\r\n"); err != nil {
				log.Warn("rejoin failed", zap.String("channel", name), zap.Error(err))
			}
		}
	}
	return nil
}

// login sends the credentials and waits for either a login failure notice
// or both welcome numerics (001 and 376) addressed to our identity.
func (s *Session) login(ctx context.Context, l *link, deadline time.Time) error {
	if err := l.conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("set deadline: %w", err)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = l.conn.SetDeadline(time.Now())
	})
	defer stop()

	if err := l.writeLine("PASS " + s.token + "\r\n"); err != nil {
		return s.loginError(ctx, l, err)
	}
	if err := l.writeLine("NICK " + s.identity + "\r\n"); err != nil {
		return s.loginError(ctx, l, err)
	}

	var welcome, motdEnd bool
	for !(welcome && motdEnd) {
		raw, err := l.reader.ReadLine()
		if err != nil {
			return s.loginError(ctx, l, err)
		}
		msg, err := ircmsg.ParseLine(string(raw))
		if err != nil {
			continue
		}
		switch msg.Command {
		case "NOTICE":
			if text := lastParam(msg); isAuthFailure(text) {
				return fmt.Errorf("%w: %s", ErrAuthentication, text)
			}
		case "001":
			welcome = welcome || s.addressedToUs(msg)
		case "376":
			motdEnd = motdEnd || s.addressedToUs(msg)
		}
	}

	return l.conn.SetDeadline(time.Time{})
}

func (s *Session) loginError(ctx context.Context, l *link, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w from %s", ErrProtocolTimeout, l.conn.RemoteAddr())
	}
	return fmt.Errorf("login: %w", err)
}

func (s *Session) addressedToUs(msg ircmsg.Message) bool {
	return len(msg.Params) > 0 && strings.EqualFold(msg.Params[0], s.identity)
}

func lastParam(msg ircmsg.Message) string {
	if len(msg.Params) == 0 {
		return ""
	}
	return msg.Params[len(msg.Params)-1]
}

func isAuthFailure(text string) bool {
	for _, notice := range authFailureNotices {
		if strings.Contains(text, notice) {
			return true
		}
	}
	return false
}

// start launches the read loop and one worker per queue for l.
func (s *Session) start(l *link) {
	go s.readLoop(l)

	l.workers.Add(2)
	for _, q := range []*scheduler{s.membership, s.messages} {
		go func(q *scheduler) {
			defer l.workers.Done()
			q.run(l.ctx, linkSink{s: s, l: l})
		}(q)
	}
}

// Reconnect closes the current connection and logs in again with the
// configured parameters. It blocks until the new login succeeds or fails.
func (s *Session) Reconnect(ctx context.Context) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.reconnect(ctx)
}

func (s *Session) reconnect(ctx context.Context) error {
	if s.shutdown.Load() {
		return fmt.Errorf("%w: session is shut down", ErrNotConnected)
	}
	s.log.Info("reconnecting")
	s.setState(Reconnecting)
	s.teardown()

	if err := s.connect(ctx, s.cfg.HandshakeTimeout, s.cfg.Host, s.cfg.Port); err != nil {
		s.setState(Disconnected)
		return err
	}
	return nil
}

// restore reconnects unless another caller already did.
func (s *Session) restore(ctx context.Context) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.State() != Reconnecting {
		return nil
	}
	return s.reconnect(ctx)
}

// teardown closes the current connection and waits for its workers. It
// reports whether there was a connection to close.
func (s *Session) teardown() bool {
	l := s.link.Swap(nil)
	if l == nil {
		return false
	}
	l.close()
	l.workers.Wait()
	return true
}

// Close disconnects. The read loop exits once the socket is closed.
// A closed session may be connected again.
func (s *Session) Close() error {
	s.setState(Disconnected)
	l := s.link.Swap(nil)
	if l == nil {
		return nil
	}
	err := l.close()
	l.workers.Wait()
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	return err
}

// Shutdown runs the shutdown hooks, closes the session for good and
// releases ServeForever.
func (s *Session) Shutdown() error {
	if !s.shutdown.CompareAndSwap(false, true) {
		return nil
	}
	s.log.Info("shutting down")

	s.hookMu.Lock()
	hooks := s.shutdownHooks
	s.hookMu.Unlock()
	for _, fn := range hooks {
		s.safely("shutdown hook", fn)
	}

	err := s.Close()
	s.stopOnce.Do(func() { close(s.stopped) })
	return err
}

// ServeForever blocks until Shutdown is called or ctx is done.
//
// It does not watch the connection. After a read failure the session stays
// Reconnecting until the next SendCommand restores it, so a bot that only
// listens should call Reconnect itself, for example from a ticker that
// checks State.
func (s *Session) ServeForever(ctx context.Context) error {
	select {
	case <-s.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// readLoop is the only reader of l. It exits when the socket fails or when
// a reconnect has replaced l.
func (s *Session) readLoop(l *link) {
	for {
		raw, err := l.reader.ReadLine()
		if err != nil {
			s.lost(l, err)
			return
		}
		s.handleLine(trimCRLF(string(raw)))
		if s.link.Load() != l {
			return
		}
	}
}

// lost handles a broken connection. A deliberate Close has already moved the
// state away from Connected, so only unexpected failures land in Reconnecting,
// where the next outbound command restores the connection. Nothing else
// does: without a send or an explicit Reconnect the session stays there.
func (s *Session) lost(l *link, err error) {
	if s.link.Load() != l || !s.state.CompareAndSwap(int32(Connected), int32(Reconnecting)) {
		return
	}
	if errors.Is(err, io.EOF) {
		s.log.Warn("connection closed by gateway")
	} else {
		s.log.Warn("connection lost", zap.Error(err))
	}
	l.close()
}

func (s *Session) handleLine(line string) {
	switch line {
	case pingLine:
		if fn := s.reg.hook(&s.reg.ping); fn != nil {
			s.safely("ping hook", func() { fn(s, line) })
			return
		}
		if err := s.pong(); err != nil {
			s.log.Warn("pong failed", zap.Error(err))
		}
	case reconnectLine:
		if fn := s.reg.hook(&s.reg.reconnect); fn != nil {
			s.safely("reconnect hook", func() { fn(s, line) })
			return
		}
		s.log.Info("gateway requested reconnect")
		if err := s.Reconnect(context.Background()); err != nil {
			s.log.Error("reconnect failed", zap.Error(err))
		}
	default:
		if fn := s.reg.hook(&s.reg.rawLine); fn != nil {
			s.safely("raw line hook", func() { fn(s, line) })
			return
		}
		s.Dispatch(line)
	}
}

func (s *Session) pong() error {
	l := s.link.Load()
	if l == nil {
		return ErrNotConnected
	}
	return l.writeLine(pongLine + "\r\n")
}

// Dispatch classifies line and invokes the handler registered for its kind.
// It runs on the read loop; handlers that block stall reading.
func (s *Session) Dispatch(line string) {
	ev := Classify(line, s.CommandPrefix(), s.identity)
	if u, ok := ev.(Unknown); ok {
		s.log.Debug("unknown response type", zap.String("raw", u.Raw))
	}
	fn := s.reg.get(ev.Kind())
	if fn == nil {
		return
	}
	s.safely(ev.Kind().String(), func() { fn(s, ev) })
}

// safely runs fn, logging instead of propagating a panic.
func (s *Session) safely(what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("handler panicked", zap.String("handler", what), zap.Any("panic", r))
		}
	}()
	fn()
}

func trimCRLF(line string) string {
	return strings.TrimRight(line, "\r\n")
}

// link is one connection: the socket, its line reader and the context
// that stops its workers.
type link struct {
	conn   net.Conn
	reader *ircreader.Reader

	ctx    context.Context
	cancel context.CancelFunc

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
	workers   sync.WaitGroup
}

func newLink(conn net.Conn) *link {
	ctx, cancel := context.WithCancel(context.Background())
	return &link{
		conn:   conn,
		reader: ircreader.NewIRCReader(conn),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (l *link) writeLine(line string) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	_, err := io.WriteString(l.conn, line)
	return err
}

func (l *link) close() error {
	l.closeOnce.Do(func() {
		l.cancel()
		l.closeErr = l.conn.Close()
	})
	return l.closeErr
}

// linkSink binds a queue worker to one connection.
type linkSink struct {
	s *Session
	l *link
}

func (ls linkSink) online() bool                { return ls.s.State() == Connected && ls.s.link.Load() == ls.l }
func (ls linkSink) writeLine(line string) error { return ls.l.writeLine(line) }
func (ls linkSink) lost(err error)              { ls.s.lost(ls.l, err) }
