package nmj

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"medialib/internal/nmjsim"
)

func startDevice(t *testing.T, dev *nmjsim.Device) *nmjsim.Server {
	t.Helper()
	srv, err := dev.Start()
	if err != nil {
		t.Fatalf("start emulated device: %v", err)
	}
	t.Cleanup(func() { srv.Close() })
	return srv
}

func TestProber_LocalDisk(t *testing.T) {
	dev := &nmjsim.Device{Database: "/share/Video/nmj_database/media.db", Source: "HARD_DISK"}
	srv := startDevice(t, dev)

	settings, err := NewProber(nil, 5*time.Second).Probe(context.Background(), srv.TerminalAddr)
	if err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if settings.Database != dev.Database {
		t.Fatalf("expected database %q, got %q", dev.Database, settings.Database)
	}
	if settings.Host != "127.0.0.1" {
		t.Fatalf("expected port to be stripped from host, got %q", settings.Host)
	}
	if settings.Mount != "" {
		t.Fatalf("expected no mount for a local disk, got %q", settings.Mount)
	}
}

func TestProber_NetworkShare(t *testing.T) {
	dev := &nmjsim.Device{
		Database:              "/opt/sybhttpd/localhost.drives/NETWORK_SHARE/disk1/nmj_database/media.db",
		Source:                "NETWORK_SHARE/disk1",
		SourceTrailingNewline: true,
		Netshare:              "smb://127.0.0.1/Video\ndisk1\n",
	}
	srv := startDevice(t, dev)

	settings, err := NewProber(nil, 5*time.Second).Probe(context.Background(), srv.TerminalAddr)
	if err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if settings.Mount != "smb://127.0.0.1/Video" {
		t.Fatalf("unexpected mount %q", settings.Mount)
	}
}

func TestProber_NotRunning(t *testing.T) {
	srv := startDevice(t, &nmjsim.Device{})

	_, err := NewProber(nil, 5*time.Second).Probe(context.Background(), srv.TerminalAddr)
	if !errors.Is(err, ErrNoDatabase) {
		t.Fatalf("expected ErrNoDatabase, got %v", err)
	}
}

func TestProber_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	if _, err := NewProber(nil, time.Second).Probe(context.Background(), addr); err == nil {
		t.Fatalf("expected connection error")
	}
}

func TestProber_ClosesSessionOnTimeout(t *testing.T) {
	dev := &nmjsim.Device{Silent: true}
	srv := startDevice(t, dev)

	_, err := NewProber(nil, 200*time.Millisecond).Probe(context.Background(), srv.TerminalAddr)
	if err == nil {
		t.Fatalf("expected timeout waiting for prompt")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if opened, closed := dev.Sessions(); opened == 1 && closed == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	opened, closed := dev.Sessions()
	t.Fatalf("expected the session to be released, opened=%d closed=%d", opened, closed)
}

type pipeConn struct {
	net.Conn
	written bytes.Buffer
}

func (p *pipeConn) Write(b []byte) (int, error) {
	return p.written.Write(b)
}

func TestTelnetReader_StripsNegotiation(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	go func() {
		defer server.Close()
		server.Write([]byte{iac, do, 1, 'h', 'i', iac, will, 3, iac, sb, 31, 0, 80, iac, se, iac, iac, '\r', '\n'})
		// swallow the refusals sent back by the reader
		io.Copy(io.Discard, server)
	}()

	conn := &pipeConn{Conn: client}
	reader := bufio.NewReader(&telnetReader{conn: conn})
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if line != "hi\xff\r\n" {
		t.Fatalf("unexpected filtered output %q", line)
	}

	want := []byte{iac, wont, 1, iac, dont, 3}
	if !bytes.Equal(conn.written.Bytes(), want) {
		t.Fatalf("expected refusals %v, got %v", want, conn.written.Bytes())
	}
}
