// Package nmjsim emulates the parts of a Popcorn Hour that the NMJ notifier
// talks to: the root telnet shell and the metadata_database control endpoint.
package nmjsim

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/mux"
)

const prompt = "sh-3.00# "

// Device holds the emulated box state. Zero values describe a box with a
// local hard disk database that accepts every scan.
type Device struct {
	Database string // first line of /tmp/source
	Source   string // second line of /tmp/source, e.g. NETWORK_SHARE/disk1
	Netshare string // full contents of /tmp/netshare

	// SourceTrailingNewline controls whether /tmp/source ends in a newline.
	// Real boxes leave it off, so the next prompt lands on the device line.
	SourceTrailingNewline bool

	// Silent suppresses the login banner and prompt, like a hung shell.
	Silent bool

	ReturnValue string // body of <returnValue>, "0" when empty
	XMLOverride string // raw response body for metadata_database, if set

	mu       sync.Mutex
	scans    []Scan
	mounts   int
	sessions int
	closed   int
}

// Scan is one metadata_database request the device received.
type Scan struct {
	Database   string
	Background bool
}

// Scans returns the scan requests received so far.
func (d *Device) Scans() []Scan {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Scan(nil), d.scans...)
}

// Mounts returns how many times the mount endpoint was hit.
func (d *Device) Mounts() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mounts
}

// Sessions returns how many telnet sessions were opened and how many of them
// have been closed by either side.
func (d *Device) Sessions() (opened, closed int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sessions, d.closed
}

// ServeTerminal accepts telnet sessions on ln until it is closed.
func (d *Device) ServeTerminal(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go d.handleSession(conn)
	}
}

func (d *Device) handleSession(conn net.Conn) {
	d.mu.Lock()
	d.sessions++
	d.mu.Unlock()
	defer func() {
		conn.Close()
		d.mu.Lock()
		d.closed++
		d.mu.Unlock()
	}()

	w := bufio.NewWriter(conn)
	if d.Silent {
		// drain until the client gives up
		_, _ = io.Copy(io.Discard, conn)
		return
	}
	fmt.Fprintf(w, "\r\nPopcorn Hour login: root (automatic login)\r\n\r\nBusyBox v1.00 built-in shell (msh)\r\n%s", prompt)
	if err := w.Flush(); err != nil {
		return
	}

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		cmd := strings.TrimSpace(scanner.Text())
		// the pty echoes what was typed
		fmt.Fprintf(w, "%s\r\n", cmd)
		switch cmd {
		case "exit":
			w.Flush()
			return
		case "cat /tmp/source":
			w.WriteString(d.sourceFile())
		case "cat /tmp/netshare":
			w.WriteString(toCRLF(d.Netshare))
		case "":
		default:
			fmt.Fprintf(w, "sh: %s: not found\r\n", strings.Fields(cmd)[0])
		}
		w.WriteString(prompt)
		if err := w.Flush(); err != nil {
			return
		}
	}
}

func (d *Device) sourceFile() string {
	if d.Database == "" {
		return ""
	}
	out := d.Database + "\r\n" + d.Source
	if d.SourceTrailingNewline {
		out += "\r\n"
	}
	return out
}

func toCRLF(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\n", "\r\n")
}

// Handler serves the HTTP control port and a /mount endpoint that counts hits.
func (d *Device) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/metadata_database", d.metadataDatabase).Methods(http.MethodGet)
	r.HandleFunc("/mount", d.mount).Methods(http.MethodGet)
	return r
}

func (d *Device) metadataDatabase(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("arg0") != "scanner_start" {
		http.Error(w, "unknown command", http.StatusBadRequest)
		return
	}

	d.mu.Lock()
	d.scans = append(d.scans, Scan{Database: q.Get("arg1"), Background: q.Get("arg2") == "background"})
	d.mu.Unlock()
	log.Printf("[nmjsim] scanner_start %s", q.Get("arg1"))

	w.Header().Set("Content-Type", "text/xml")
	if d.XMLOverride != "" {
		fmt.Fprint(w, d.XMLOverride)
		return
	}
	code := d.ReturnValue
	if code == "" {
		code = "0"
	}
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><theDavidBox><request><arg0>scanner_start</arg0></request><returnValue>%s</returnValue></theDavidBox>`, code)
}

func (d *Device) mount(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	d.mounts++
	d.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

// Server is a running emulated device.
type Server struct {
	TerminalAddr string // host:port of the telnet shell
	HTTPPort     int    // port of the control endpoint on 127.0.0.1

	terminal net.Listener
	http     *http.Server
}

// Start listens on loopback ports for both the shell and the control endpoint.
func (d *Device) Start() (*Server, error) {
	termLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	httpLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		termLn.Close()
		return nil, err
	}

	srv := &Server{
		TerminalAddr: termLn.Addr().String(),
		HTTPPort:     httpLn.Addr().(*net.TCPAddr).Port,
		terminal:     termLn,
		http:         &http.Server{Handler: d.Handler()},
	}
	go d.ServeTerminal(termLn)
	go srv.http.Serve(httpLn)
	return srv, nil
}

// MountURL is a mount address on the control endpoint with the host written
// as the loopback address, the way /tmp/netshare stores it.
func (s *Server) MountURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d/mount", s.HTTPPort)
}

func (s *Server) Close() error {
	s.terminal.Close()
	return s.http.Close()
}
