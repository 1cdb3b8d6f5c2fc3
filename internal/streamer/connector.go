package streamer

import (
	"encoding/json"
	"net"
	"regexp"
	"strings"
	"time"
)

// Replies end with a line consisting of END. The body (possibly empty)
// comes before it.
var endReg = regexp.MustCompile(`(?s)(.*\n|^)[ \t]*END[ \t\r\n]*$`)

// key="value" pairs, one or more per line; values may contain escaped
// quotes. Anything else on the line is ignored.
var pairReg = regexp.MustCompile(`([^=\s][^=]*)="?((?:\\"|[^"])*)"?`)

// Connector is a client for the engine's line-based control protocol,
// over a unix-domain or TCP stream socket. It keeps a single lazily
// opened connection and reopens it on failure.
//
// A Connector is not safe for concurrent use: the Controller owning it
// serializes calls.
type Connector struct {
	// Address is either a unix socket path or a "host:port" pair.
	Address string
	// Timeout bounds each dial, write and read. Zero means OS defaults.
	Timeout time.Duration
	// TryCount is how many times Send reopens and resends after an I/O
	// error before giving up.
	TryCount int

	conn      net.Conn
	available bool
}

func NewConnector(address string) *Connector {
	return &Connector{
		Address:  address,
		Timeout:  10 * time.Second,
		TryCount: 1,
	}
}

// Available reports whether the last operation left a usable socket.
func (c *Connector) Available() bool {
	return c.available
}

// Open establishes the connection if there is none. It is a no-op when
// already connected and never panics: a dial failure only clears the
// available flag.
func (c *Connector) Open() error {
	if c.available {
		return nil
	}

	network := "unix"
	if strings.Contains(c.Address, ":") && !strings.ContainsRune(c.Address, '/') {
		network = "tcp"
	}

	conn, err := net.DialTimeout(network, c.Address, c.Timeout)
	if err != nil {
		c.available = false
		return err
	}
	c.conn = conn
	c.available = true
	return nil
}

// Send concatenates its parts into one command line, writes it and
// reads until the END sentinel. It returns the reply body with the
// sentinel stripped, or "" after the retry budget is exhausted.
// Callers must treat "" as "no data", never as a hard failure.
func (c *Connector) Send(parts ...string) string {
	rpcCommands.Inc()
	return c.send(c.TryCount, parts...)
}

func (c *Connector) send(tries int, parts ...string) string {
	if c.Open() != nil {
		if tries > 0 {
			return c.send(tries-1, parts...)
		}
		rpcFailures.Inc()
		return ""
	}

	line := strings.Join(parts, "") + "\n"

	if c.Timeout > 0 {
		c.conn.SetDeadline(time.Now().Add(c.Timeout))
	}
	if _, err := c.conn.Write([]byte(line)); err != nil {
		return c.retry(tries, parts...)
	}

	var data string
	buf := make([]byte, 1024)
	for !endReg.MatchString(data) {
		if c.Timeout > 0 {
			c.conn.SetDeadline(time.Now().Add(c.Timeout))
		}
		n, err := c.conn.Read(buf)
		if err != nil {
			return c.retry(tries, parts...)
		}
		data += string(buf[:n])
	}

	return strings.TrimSpace(endReg.FindStringSubmatch(data)[1])
}

// retry drops the broken socket and resends while the budget allows.
func (c *Connector) retry(tries int, parts ...string) string {
	c.Close()
	rpcReopens.Inc()
	if tries > 0 {
		return c.send(tries-1, parts...)
	}
	rpcFailures.Inc()
	return ""
}

// Close drops the connection. The next Send reopens it.
func (c *Connector) Close() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.available = false
}

// Parse extracts the key="value" pairs of a metadata reply. Malformed
// lines are skipped silently.
func (c *Connector) Parse(reply string) map[string]string {
	data := make(map[string]string)
	for _, line := range strings.Split(reply, "\n") {
		m := pairReg.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		data[strings.TrimSpace(m[1])] = m[2]
	}
	return data
}

// ParseJSON decodes a JSON reply, stripping one layer of enclosing
// quotes if present. A decode failure yields nil rather than an error.
func (c *Connector) ParseJSON(reply string) interface{} {
	if len(reply) >= 2 && reply[0] == '"' && reply[len(reply)-1] == '"' {
		reply = reply[1 : len(reply)-1]
	}
	if reply == "" {
		return nil
	}

	var value interface{}
	if err := json.Unmarshal([]byte(reply), &value); err != nil {
		return nil
	}
	return value
}
