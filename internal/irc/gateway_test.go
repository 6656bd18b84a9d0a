package irc

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"
)

type loginMode int

const (
	loginWelcome loginMode = iota
	loginReject
	loginSilent
)

// fakeGateway is a scripted chat gateway on a loopback port. It answers
// NICK according to its mode and records every line a client sends.
type fakeGateway struct {
	t  *testing.T
	ln net.Listener

	recv chan string

	mu     sync.Mutex
	mode   loginMode
	conn   net.Conn
	logins int
}

func newGateway(t *testing.T, mode loginMode) *fakeGateway {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	g := &fakeGateway{t: t, ln: ln, mode: mode, recv: make(chan string, 1024)}
	go g.accept()
	t.Cleanup(g.close)
	return g
}

func (g *fakeGateway) accept() {
	for {
		conn, err := g.ln.Accept()
		if err != nil {
			return
		}
		g.mu.Lock()
		g.conn = conn
		g.mu.Unlock()
		go g.serve(conn)
	}
}

func (g *fakeGateway) serve(conn net.Conn) {
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		g.recv <- line

		if nick, ok := strings.CutPrefix(line, "NICK "); ok {
			g.mu.Lock()
			g.logins++
			mode := g.mode
			g.mu.Unlock()
			switch mode {
			case loginWelcome:
				fmt.Fprintf(conn, ":tmi.twitch.tv 001 %s :Welcome, GLHF!\r\n", nick)
				fmt.Fprintf(conn, ":tmi.twitch.tv 002 %s :Your host is tmi.twitch.tv\r\n", nick)
				fmt.Fprintf(conn, ":tmi.twitch.tv 372 %s :You are in a maze of twisty passages.\r\n", nick)
				fmt.Fprintf(conn, ":tmi.twitch.tv 376 %s :>\r\n", nick)
			case loginReject:
				fmt.Fprint(conn, ":tmi.twitch.tv NOTICE * :Login authentication failed\r\n")
			}
		}
	}
}

// setMode changes how later logins are answered.
func (g *fakeGateway) setMode(mode loginMode) {
	g.mu.Lock()
	g.mode = mode
	g.mu.Unlock()
}

func (g *fakeGateway) host() string {
	return g.ln.Addr().(*net.TCPAddr).IP.String()
}

func (g *fakeGateway) port() int {
	return g.ln.Addr().(*net.TCPAddr).Port
}

func (g *fakeGateway) loginCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.logins
}

// send writes a line to the most recent client connection.
func (g *fakeGateway) send(line string) {
	g.t.Helper()
	g.mu.Lock()
	conn := g.conn
	g.mu.Unlock()
	if conn == nil {
		g.t.Fatalf("no client connected")
	}
	if _, err := fmt.Fprint(conn, line+"\r\n"); err != nil {
		g.t.Fatalf("gateway write: %v", err)
	}
}

// drop closes the current client connection from the gateway side.
func (g *fakeGateway) drop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.conn != nil {
		g.conn.Close()
	}
}

// expect waits for the client to send want, skipping other lines.
func (g *fakeGateway) expect(want string) {
	g.t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case line := <-g.recv:
			if line == want {
				return
			}
		case <-timeout:
			g.t.Fatalf("gateway never received %q", want)
		}
	}
}

func (g *fakeGateway) close() {
	g.ln.Close()
	g.drop()
}

// newTestSession returns a session pointed at g with pacing disabled.
func newTestSession(t *testing.T, g *fakeGateway, mutate ...func(*Config)) *Session {
	t.Helper()
	cfg := Config{
		Token:            "oauth:abcdefghijklmnopqrstuvwxyz",
		Identity:         "TestUser",
		Host:             g.host(),
		Port:             g.port(),
		HandshakeTimeout: 2 * time.Second,
		Pacing:           -1,
	}
	for _, fn := range mutate {
		fn(&cfg)
	}
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// waitFor polls cond until it holds or a deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
