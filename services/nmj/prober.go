package nmj

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"time"
)

var (
	// ErrNoDatabase means the terminal transcript did not reveal an NMJ database.
	ErrNoDatabase = errors.New("nmj database not found in terminal output")
	// ErrNoMount means the database is on a network share but the mount URL was not found.
	ErrNoMount = errors.New("network share detected but mount url not found")
)

const defaultProbeTimeout = 30 * time.Second

// DeviceSettings is what the notifier needs to start a scan on a Popcorn Hour.
type DeviceSettings struct {
	Host     string `json:"host"`
	Database string `json:"database"`
	Mount    string `json:"mount,omitempty"`
}

// Prober reads the active NMJ database from a Popcorn Hour over telnet.
type Prober struct {
	dialer  Dialer
	timeout time.Duration
}

// NewProber constructs a prober. A nil dialer uses net.Dialer and a zero
// timeout falls back to 30 seconds.
func NewProber(dialer Dialer, timeout time.Duration) *Prober {
	if dialer == nil {
		dialer = &net.Dialer{}
	}
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	return &Prober{dialer: dialer, timeout: timeout}
}

// Probe logs into host, dumps /tmp/source and /tmp/netshare and extracts the
// database path and, for network shares, the mount URL.
func (p *Prober) Probe(ctx context.Context, host string) (DeviceSettings, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	term, err := dialTerminal(ctx, p.dialer, terminalAddress(host))
	if err != nil {
		return DeviceSettings{}, fmt.Errorf("telnet session to %s: %w", host, err)
	}
	defer term.Close()

	log.Printf("[nmj] Connected to %s via telnet", host)
	if _, err := term.readUntil(shellPrompt); err != nil {
		return DeviceSettings{}, fmt.Errorf("wait for shell prompt: %w", err)
	}
	for _, cmd := range []string{"cat /tmp/source", "cat /tmp/netshare", "exit"} {
		if err := term.writeLine(cmd); err != nil {
			return DeviceSettings{}, fmt.Errorf("send %q: %w", cmd, err)
		}
	}
	output, err := term.readAll()
	if err != nil {
		return DeviceSettings{}, fmt.Errorf("read terminal output: %w", err)
	}

	return parseDeviceSettings(string(output), host)
}

func parseDeviceSettings(transcript, host string) (DeviceSettings, error) {
	source, ok := parseSource(transcript)
	if !ok {
		return DeviceSettings{}, ErrNoDatabase
	}
	log.Printf("[nmj] Found NMJ database %s on device %s", source.Database, source.Device)

	settings := DeviceSettings{Host: hostname(host), Database: source.Database}
	if !source.IsNetworkShare() {
		return settings, nil
	}

	mount, ok := findMount(transcript, source.ShareName(), hostname(host))
	if !ok {
		return settings, ErrNoMount
	}
	log.Printf("[nmj] Found mounting url on the Popcorn Hour in configuration: %s", mount)
	settings.Mount = mount
	return settings, nil
}
