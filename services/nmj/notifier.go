package nmj

import (
	"context"
	"errors"
	"log"
	"strings"

	"medialib/config"
)

type settingsStore interface {
	Load() (config.Settings, error)
	UpdateNMJ(fn func(*config.NMJSettings)) (config.Settings, error)
}

type deviceProber interface {
	Probe(ctx context.Context, host string) (DeviceSettings, error)
}

type scanner interface {
	Scan(ctx context.Context, dev DeviceSettings) error
}

var (
	_ settingsStore = (*config.Manager)(nil)
	_ deviceProber  = (*Prober)(nil)
	_ scanner       = (*ScanClient)(nil)
)

// Notifier starts NMJ library scans on a Popcorn Hour when new media lands.
// Every failure is logged and reported as false; nothing is retried.
type Notifier struct {
	settings settingsStore
	prober   deviceProber
	scanner  scanner
}

func NewNotifier(settings settingsStore, prober deviceProber, scanner scanner) *Notifier {
	if prober == nil {
		prober = NewProber(nil, 0)
	}
	if scanner == nil {
		scanner = NewScanClient(nil)
	}
	return &Notifier{settings: settings, prober: prober, scanner: scanner}
}

// NotifySettings probes host for its NMJ database and mount URL and saves
// them to the settings file.
func (n *Notifier) NotifySettings(ctx context.Context, host string) bool {
	_, ok := n.ProbeSettings(ctx, host)
	return ok
}

// ProbeSettings is NotifySettings that also returns what was found.
func (n *Notifier) ProbeSettings(ctx context.Context, host string) (DeviceSettings, bool) {
	host = strings.TrimSpace(host)
	if host == "" {
		log.Printf("[nmj] No Popcorn Hour host given, cannot read settings")
		return DeviceSettings{}, false
	}

	dev, err := n.prober.Probe(ctx, host)
	switch {
	case errors.Is(err, ErrNoDatabase):
		log.Printf("[nmj] Could not get current NMJ database on %s, NMJ is probably not running!", host)
		return DeviceSettings{}, false
	case errors.Is(err, ErrNoMount):
		log.Printf("[nmj] Detected a network share on the Popcorn Hour, but could not get the mounting url")
		return DeviceSettings{}, false
	case err != nil:
		log.Printf("[nmj] Warning: unable to get a telnet session to %s: %v", host, err)
		return DeviceSettings{}, false
	}

	if n.settings != nil {
		_, err := n.settings.UpdateNMJ(func(s *config.NMJSettings) {
			s.Host = dev.Host
			s.Database = dev.Database
			s.Mount = dev.Mount
		})
		if err != nil {
			log.Printf("[nmj] failed to save device settings for %s: %v", host, err)
			return dev, false
		}
	}
	return dev, true
}

// NotifySnatch never scans: a snatched release is not on the disk yet.
func (n *Notifier) NotifySnatch(ctx context.Context, epName string) bool {
	return false
}

func (n *Notifier) NotifyDownload(ctx context.Context, epName string) bool {
	return n.notifyIfEnabled(ctx)
}

func (n *Notifier) NotifySubtitleDownload(ctx context.Context, epName, lang string) bool {
	return n.notifyIfEnabled(ctx)
}

// NotifyGitUpdate has nothing to scan.
func (n *Notifier) NotifyGitUpdate(ctx context.Context, newVersion string) bool {
	return false
}

func (n *Notifier) NotifyLogin(ctx context.Context, ipAddress string) bool {
	return false
}

// TestNotify sends a scan to the given device regardless of the enabled flag.
func (n *Notifier) TestNotify(ctx context.Context, host, database, mount string) bool {
	return n.send(ctx, DeviceSettings{Host: host, Database: database, Mount: mount})
}

func (n *Notifier) notifyIfEnabled(ctx context.Context) bool {
	s, ok := n.loadSettings()
	if !ok || !s.Enabled {
		return false
	}
	return n.notifyWith(ctx, s, DeviceSettings{}, false)
}

// Notify sends a scan command using saved settings for any field target
// leaves empty. Unless force is set it does nothing while NMJ is disabled or
// the settings cannot be read.
func (n *Notifier) Notify(ctx context.Context, target DeviceSettings, force bool) bool {
	s, ok := n.loadSettings()
	if !ok && !force {
		return false
	}
	return n.notifyWith(ctx, s, target, force)
}

func (n *Notifier) notifyWith(ctx context.Context, s config.NMJSettings, target DeviceSettings, force bool) bool {
	if !s.Enabled && !force {
		log.Printf("[nmj] Notification for NMJ scan update not enabled, skipping this notification")
		return false
	}

	if target.Host == "" {
		target.Host = s.Host
	}
	if target.Database == "" {
		target.Database = s.Database
	}
	if target.Mount == "" {
		target.Mount = s.Mount
	}

	log.Printf("[nmj] Sending scan command for NMJ")
	return n.send(ctx, target)
}

func (n *Notifier) send(ctx context.Context, dev DeviceSettings) bool {
	dev.Host = strings.TrimSpace(dev.Host)
	dev.Database = strings.TrimSpace(dev.Database)
	dev.Mount = strings.TrimSpace(dev.Mount)
	if dev.Host == "" || dev.Database == "" {
		log.Printf("[nmj] Missing host or database, not sending scan command")
		return false
	}

	if err := n.scanner.Scan(ctx, dev); err != nil {
		log.Printf("[nmj] scan on %s failed: %v", dev.Host, err)
		return false
	}
	log.Printf("[nmj] NMJ started background scan")
	return true
}

func (n *Notifier) loadSettings() (config.NMJSettings, bool) {
	if n.settings == nil {
		return config.NMJSettings{}, true
	}
	s, err := n.settings.Load()
	if err != nil {
		log.Printf("[nmj] failed to load settings: %v", err)
		return config.NMJSettings{}, false
	}
	return s.NMJ, true
}
