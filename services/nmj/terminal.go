package nmj

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net"
)

const defaultTelnetPort = "23"

// Telnet protocol bytes (RFC 854).
const (
	iac  = 255
	dont = 254
	do   = 253
	wont = 252
	will = 251
	sb   = 250
	se   = 240
)

// Dialer opens the raw TCP connection for a terminal session.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// terminal is a minimal line-oriented telnet client. Option negotiation is
// refused and stripped so callers only see shell text.
type terminal struct {
	conn   net.Conn
	reader *bufio.Reader
}

func dialTerminal(ctx context.Context, dialer Dialer, address string) (*terminal, error) {
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	t := &terminal{conn: conn}
	t.reader = bufio.NewReader(&telnetReader{conn: conn})
	return t, nil
}

// terminalAddress appends the telnet port unless host already carries one.
func terminalAddress(host string) string {
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	return net.JoinHostPort(host, defaultTelnetPort)
}

// hostname strips an optional port from host.
func hostname(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

// readUntil returns everything up to and including marker.
func (t *terminal) readUntil(marker string) ([]byte, error) {
	if marker == "" {
		return nil, errors.New("empty marker")
	}
	var buf bytes.Buffer
	last := marker[len(marker)-1]
	for {
		b, err := t.reader.ReadByte()
		if err != nil {
			return buf.Bytes(), err
		}
		buf.WriteByte(b)
		if b == last && bytes.HasSuffix(buf.Bytes(), []byte(marker)) {
			return buf.Bytes(), nil
		}
	}
}

func (t *terminal) writeLine(line string) error {
	_, err := t.conn.Write([]byte(line + "\n"))
	return err
}

// readAll drains the session until the remote side hangs up.
func (t *terminal) readAll() ([]byte, error) {
	data, err := io.ReadAll(t.reader)
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return data, err
	}
	return data, nil
}

func (t *terminal) Close() error {
	return t.conn.Close()
}

// telnetReader filters IAC sequences out of the byte stream and answers
// every DO with WONT and every WILL with DONT.
type telnetReader struct {
	conn  net.Conn
	state int
	verb  byte
}

const (
	tsData = iota
	tsIAC
	tsOption
	tsSub
	tsSubIAC
)

func (r *telnetReader) Read(p []byte) (int, error) {
	raw := make([]byte, len(p))
	for {
		n, err := r.conn.Read(raw)
		out := 0
		for _, b := range raw[:n] {
			switch r.state {
			case tsData:
				if b == iac {
					r.state = tsIAC
					continue
				}
				p[out] = b
				out++
			case tsIAC:
				switch b {
				case iac:
					p[out] = b
					out++
					r.state = tsData
				case do, dont, will, wont:
					r.verb = b
					r.state = tsOption
				case sb:
					r.state = tsSub
				default:
					r.state = tsData
				}
			case tsOption:
				r.refuse(r.verb, b)
				r.state = tsData
			case tsSub:
				if b == iac {
					r.state = tsSubIAC
				}
			case tsSubIAC:
				if b == se {
					r.state = tsData
				} else {
					r.state = tsSub
				}
			}
		}
		if out > 0 || err != nil {
			return out, err
		}
	}
}

func (r *telnetReader) refuse(verb, option byte) {
	var reply byte
	switch verb {
	case do:
		reply = wont
	case will:
		reply = dont
	default:
		return
	}
	// a failed write shows up on the next read
	_, _ = r.conn.Write([]byte{iac, reply, option})
}
