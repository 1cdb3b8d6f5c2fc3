package streamer

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeEngine speaks the engine's control protocol over TCP: one
// command per line, reply body then an END line.
type fakeEngine struct {
	ln net.Listener

	mu       sync.Mutex
	vars     map[string]string
	meta     map[string]map[string]string
	onAir    string
	commands []string
	// dropNext makes the engine close that many incoming connections
	// before answering anything, to simulate transient failures.
	dropNext int
}

func newFakeEngine(t *testing.T) *fakeEngine {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	e := &fakeEngine{
		ln:   ln,
		vars: make(map[string]string),
		meta: make(map[string]map[string]string),
	}
	go e.serve()
	t.Cleanup(func() { ln.Close() })
	return e
}

func (e *fakeEngine) addr() string { return e.ln.Addr().String() }

func (e *fakeEngine) serve() {
	for {
		conn, err := e.ln.Accept()
		if err != nil {
			return
		}

		e.mu.Lock()
		drop := e.dropNext > 0
		if drop {
			e.dropNext--
		}
		e.mu.Unlock()

		if drop {
			conn.Close()
			continue
		}
		go e.handle(conn)
	}
}

func (e *fakeEngine) handle(conn net.Conn) {
	defer conn.Close()
	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		fmt.Fprintf(conn, "%s\nEND\n", e.reply(sc.Text()))
	}
}

func (e *fakeEngine) reply(cmd string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.commands = append(e.commands, cmd)

	switch {
	case cmd == "var.list":
		return "radio1_dealer_active : bool"

	case strings.HasPrefix(cmd, "var.get "):
		return e.vars[strings.TrimPrefix(cmd, "var.get ")]

	case strings.HasPrefix(cmd, "var.set "):
		kv := strings.SplitN(strings.TrimPrefix(cmd, "var.set "), "=", 2)
		if len(kv) == 2 {
			e.vars[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
		}
		return "Done"

	case cmd == "request.on_air":
		return e.onAir

	case strings.HasPrefix(cmd, "request.metadata "):
		return metadataReply(e.meta[strings.TrimPrefix(cmd, "request.metadata ")])

	case strings.HasSuffix(cmd, ".get"):
		return metadataReply(e.meta[strings.TrimSuffix(cmd, ".get")])

	case strings.HasSuffix(cmd, ".skip"):
		return "Done"

	case strings.Contains(cmd, ".seek "):
		return "Done"
	}
	return ""
}

func metadataReply(meta map[string]string) string {
	if meta == nil {
		return ""
	}
	var lines []string
	for k, v := range meta {
		lines = append(lines, fmt.Sprintf("%s=%q", k, v))
	}
	return strings.Join(lines, "\n")
}

func (e *fakeEngine) sent() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.commands...)
}

func testConnector(t *testing.T, e *fakeEngine) *Connector {
	t.Helper()
	c := NewConnector(e.addr())
	c.Timeout = 2 * time.Second
	t.Cleanup(c.Close)
	return c
}

func TestSendStripsSentinel(t *testing.T) {
	e := newFakeEngine(t)
	c := testConnector(t, e)

	e.vars["radio1_dealer_active"] = "true"
	got := c.Send("var.get ", "radio1_dealer_active")
	if got != "true" {
		t.Errorf("Send = %q, want %q", got, "true")
	}
	if !c.Available() {
		t.Error("connector should be available after a successful send")
	}
}

func TestSendEmptyBody(t *testing.T) {
	e := newFakeEngine(t)
	c := testConnector(t, e)

	if got := c.Send("var.get ", "unset_var"); got != "" {
		t.Errorf("Send = %q, want empty", got)
	}
}

func TestSendRetriesOnce(t *testing.T) {
	e := newFakeEngine(t)
	c := testConnector(t, e)

	// The engine drops the first connection; the retry budget of 1
	// must absorb the failure.
	e.vars["x"] = "1"
	e.mu.Lock()
	e.dropNext = 1
	e.mu.Unlock()

	if got := c.Send("var.get ", "x"); got != "1" {
		t.Errorf("Send after one failure = %q, want %q", got, "1")
	}
}

func TestSendExhaustedBudgetReturnsEmpty(t *testing.T) {
	ln, _ := net.Listen("tcp", "127.0.0.1:0")
	addr := ln.Addr().String()
	ln.Close()

	c := NewConnector(addr)
	c.Timeout = time.Second

	if got := c.Send("var.list"); got != "" {
		t.Errorf("Send against dead address = %q, want empty", got)
	}
	if c.Available() {
		t.Error("connector must not report available after total failure")
	}
}

func TestParsePairs(t *testing.T) {
	c := NewConnector("")
	reply := "rid=\"42\"\nsource=\"radio1_stream_jazz\"\ninitial_uri=\"/x/a.mp3\"\nthis line is noise\nstatus=playing"

	data := c.Parse(reply)
	want := map[string]string{
		"rid":         "42",
		"source":      "radio1_stream_jazz",
		"initial_uri": "/x/a.mp3",
		"status":      "playing",
	}
	if len(data) != len(want) {
		t.Fatalf("Parse = %v, want %v", data, want)
	}
	for k, v := range want {
		if data[k] != v {
			t.Errorf("Parse[%q] = %q, want %q", k, data[k], v)
		}
	}
}

func TestParseEscapedQuotes(t *testing.T) {
	c := NewConnector("")
	data := c.Parse(`title="a \"quoted\" name"`)
	if got := data["title"]; got != `a \"quoted\" name` {
		t.Errorf("Parse title = %q", got)
	}
}

func TestParseJSON(t *testing.T) {
	c := NewConnector("")

	if v := c.ParseJSON(`"[1,2,3]"`); v == nil {
		t.Error("quote-wrapped JSON should decode")
	}
	if v := c.ParseJSON(`[1, 2, 3]`); v == nil {
		t.Error("bare JSON should decode")
	}
	if v := c.ParseJSON("not json at all {"); v != nil {
		t.Errorf("invalid JSON should yield nil, got %v", v)
	}
	if v := c.ParseJSON(""); v != nil {
		t.Errorf("empty reply should yield nil, got %v", v)
	}
}
